package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"

	"autoerp/internal/core/apperror"
	"autoerp/internal/core/entity"
	"autoerp/internal/core/id"
	"autoerp/internal/core/tenant"
	"autoerp/internal/domain/hr"
	"autoerp/internal/infrastructure/http/v1/dto"
)

type HRService interface {
	CreateEmployee(ctx context.Context, in hr.EmployeeInput) (*hr.Employee, error)
	UpdateEmployee(ctx context.Context, employeeID id.ID, in hr.EmployeeInput) (*hr.Employee, error)
	GetEmployee(ctx context.Context, employeeID id.ID) (*hr.Employee, error)
	Me(ctx context.Context) (*hr.Employee, error)
	ListEmployees(ctx context.Context, f hr.EmployeeFilter) (entity.List[hr.Employee], error)

	RecordAttendance(ctx context.Context, in hr.AttendanceInput) (*hr.Attendance, error)
	ListAttendance(ctx context.Context, f hr.AttendanceFilter) (entity.List[hr.Attendance], error)

	RequestLeave(ctx context.Context, in hr.LeaveInput) (*hr.Leave, error)
	DecideLeave(ctx context.Context, leaveID id.ID, d hr.Decision) (*hr.Leave, error)
	CancelLeave(ctx context.Context, leaveID id.ID) (*hr.Leave, error)
	ListLeaves(ctx context.Context, f hr.LeaveFilter) (entity.List[hr.Leave], error)

	SubmitExpense(ctx context.Context, in hr.ExpenseInput) (*hr.Expense, error)
	DecideExpense(ctx context.Context, expenseID id.ID, d hr.Decision) (*hr.Expense, error)
	ReimburseExpense(ctx context.Context, expenseID id.ID) (*hr.Expense, error)
	ListExpenses(ctx context.Context, f hr.ExpenseFilter) (entity.List[hr.Expense], error)

	CalcCommissions(ctx context.Context, periode string) (*hr.CalcResult, error)
	ListCommissions(ctx context.Context, f hr.CommissionFilter) (entity.List[hr.Commission], error)
}

// CommissionQueue hands commission calculations to the background worker.
type CommissionQueue interface {
	EnqueueCommission(ctx context.Context, tenantID, periode string) (*asynq.TaskInfo, error)
}

// HRHandler serves /api/rhep.
type HRHandler struct {
	*BaseHandler
	service HRService
	queue   CommissionQueue // nil: async calculation disabled
}

func NewHRHandler(base *BaseHandler, service HRService, queue CommissionQueue) *HRHandler {
	return &HRHandler{BaseHandler: base, service: service, queue: queue}
}

// --- Employees ---

// ListEmployees handles GET /rhep/employees
func (h *HRHandler) ListEmployees(c *gin.Context) {
	var q dto.EmployeeListQuery
	if !h.BindQuery(c, &q) {
		return
	}
	res, err := h.service.ListEmployees(c.Request.Context(), q.ToFilter())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, res)
}

// Me handles GET /rhep/employees/me
func (h *HRHandler) Me(c *gin.Context) {
	e, err := h.service.Me(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, e)
}

// GetEmployee handles GET /rhep/employees/:id
func (h *HRHandler) GetEmployee(c *gin.Context) {
	employeeID, ok := h.ParamID(c)
	if !ok {
		return
	}
	e, err := h.service.GetEmployee(c.Request.Context(), employeeID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, e)
}

// CreateEmployee handles POST /rhep/employees
func (h *HRHandler) CreateEmployee(c *gin.Context) {
	var req dto.EmployeeRequest
	if !h.BindJSON(c, &req) {
		return
	}
	if req.UserID == (id.ID{}) {
		h.Error(c, apperror.NewValidation("invalid request").WithDetail("fields", map[string]string{"user_id": "is required"}))
		return
	}
	e, err := h.service.CreateEmployee(c.Request.Context(), req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, e)
}

// UpdateEmployee handles PUT /rhep/employees/:id
func (h *HRHandler) UpdateEmployee(c *gin.Context) {
	employeeID, ok := h.ParamID(c)
	if !ok {
		return
	}
	var req dto.EmployeeRequest
	if !h.BindJSON(c, &req) {
		return
	}
	e, err := h.service.UpdateEmployee(c.Request.Context(), employeeID, req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, e)
}

// --- Attendance ---

// ListAttendance handles GET /rhep/attendance
func (h *HRHandler) ListAttendance(c *gin.Context) {
	var q dto.AttendanceListQuery
	if !h.BindQuery(c, &q) {
		return
	}
	res, err := h.service.ListAttendance(c.Request.Context(), q.ToFilter())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, res)
}

// RecordAttendance handles POST /rhep/attendance; one record per employee and day.
func (h *HRHandler) RecordAttendance(c *gin.Context) {
	var req dto.AttendanceRequest
	if !h.BindJSON(c, &req) {
		return
	}
	a, err := h.service.RecordAttendance(c.Request.Context(), req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, a)
}

// --- Leaves ---

// ListLeaves handles GET /rhep/leaves
func (h *HRHandler) ListLeaves(c *gin.Context) {
	var q dto.LeaveListQuery
	if !h.BindQuery(c, &q) {
		return
	}
	res, err := h.service.ListLeaves(c.Request.Context(), q.ToFilter())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, res)
}

// RequestLeave handles POST /rhep/leaves
func (h *HRHandler) RequestLeave(c *gin.Context) {
	var req dto.LeaveRequest
	if !h.BindJSON(c, &req) {
		return
	}
	l, err := h.service.RequestLeave(c.Request.Context(), req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, l)
}

// DecideLeave handles PUT /rhep/leaves/:id/approve
func (h *HRHandler) DecideLeave(c *gin.Context) {
	leaveID, ok := h.ParamID(c)
	if !ok {
		return
	}
	var req dto.DecisionRequest
	if !h.BindJSON(c, &req) {
		return
	}
	l, err := h.service.DecideLeave(c.Request.Context(), leaveID, req.ToDecision())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, l)
}

// CancelLeave handles PUT /rhep/leaves/:id/cancel
func (h *HRHandler) CancelLeave(c *gin.Context) {
	leaveID, ok := h.ParamID(c)
	if !ok {
		return
	}
	l, err := h.service.CancelLeave(c.Request.Context(), leaveID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, l)
}

// --- Expenses ---

// ListExpenses handles GET /rhep/expenses
func (h *HRHandler) ListExpenses(c *gin.Context) {
	var q dto.ExpenseListQuery
	if !h.BindQuery(c, &q) {
		return
	}
	res, err := h.service.ListExpenses(c.Request.Context(), q.ToFilter())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, res)
}

// SubmitExpense handles POST /rhep/expenses
func (h *HRHandler) SubmitExpense(c *gin.Context) {
	var req dto.ExpenseRequest
	if !h.BindJSON(c, &req) {
		return
	}
	e, err := h.service.SubmitExpense(c.Request.Context(), req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, e)
}

// DecideExpense handles PUT /rhep/expenses/:id/approve
func (h *HRHandler) DecideExpense(c *gin.Context) {
	expenseID, ok := h.ParamID(c)
	if !ok {
		return
	}
	var req dto.DecisionRequest
	if !h.BindJSON(c, &req) {
		return
	}
	e, err := h.service.DecideExpense(c.Request.Context(), expenseID, req.ToDecision())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, e)
}

// ReimburseExpense handles PUT /rhep/expenses/:id/rembourser
func (h *HRHandler) ReimburseExpense(c *gin.Context) {
	expenseID, ok := h.ParamID(c)
	if !ok {
		return
	}
	e, err := h.service.ReimburseExpense(c.Request.Context(), expenseID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, e)
}

// --- Commissions ---

// ListCommissions handles GET /rhep/commissions
func (h *HRHandler) ListCommissions(c *gin.Context) {
	var q dto.CommissionListQuery
	if !h.BindQuery(c, &q) {
		return
	}
	res, err := h.service.ListCommissions(c.Request.Context(), q.ToFilter())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, res)
}

// CalcCommissions handles POST /rhep/commissions/calc. With async the
// calculation is queued and answered with 202.
func (h *HRHandler) CalcCommissions(c *gin.Context) {
	var req dto.CommissionCalcRequest
	if !h.BindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()

	if !req.Async {
		res, err := h.service.CalcCommissions(ctx, req.Periode)
		if err != nil {
			h.Error(c, err)
			return
		}
		h.OK(c, res)
		return
	}

	if h.queue == nil {
		h.Error(c, apperror.NewBusinessRule("ASYNC_UNAVAILABLE", "background calculation is not configured"))
		return
	}
	info, err := h.queue.EnqueueCommission(ctx, tenant.GetTenantID(ctx), req.Periode)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		h.Error(c, apperror.NewConflict("commission calculation already queued").
			WithCode("CALC_ALREADY_QUEUED").
			WithDetail("periode", req.Periode))
		return
	}
	if err != nil {
		h.Error(c, apperror.NewInternal(err))
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"task_id": info.ID, "queue": info.Queue, "periode": req.Periode})
}
