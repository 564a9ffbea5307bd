package portal

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"autoerp/internal/core/apperror"
	"autoerp/internal/core/entity"
	"autoerp/internal/core/id"
	"autoerp/internal/core/tenant"
	"autoerp/internal/domain"
	"autoerp/internal/domain/catalog"
	"autoerp/internal/domain/client"
	"autoerp/internal/domain/order"
	"autoerp/pkg/logger"
)

// Clients is the part of the client service used by the portal.
type Clients interface {
	GetByTelephone(ctx context.Context, telephone string) (*client.Client, error)
	CreateProspect(ctx context.Context, in client.Input) (*client.Client, error)
}

// Catalog is the read side of the catalog.
type Catalog interface {
	List(ctx context.Context, f catalog.Filter) (entity.List[catalog.Article], error)
	GetMany(ctx context.Context, articleIDs []id.ID) ([]catalog.Article, error)
	Familles(ctx context.Context) ([]string, error)
	SousFamilles(ctx context.Context, famille string) ([]string, error)
}

// Orders is the part of the order service used by the portal.
type Orders interface {
	CreatePortal(ctx context.Context, clientID id.ID, items []order.LigneInput) (*order.Commande, error)
	ForClient(ctx context.Context, clientID id.ID, page entity.Page) (entity.List[order.Commande], error)
	Track(ctx context.Context, numero string) (*order.Tracking, error)
}

type Config struct {
	OTPTTL      time.Duration
	MaxAttempts int
	SessionTTL  time.Duration
	// ExposeCode returns the OTP in the response. Development only.
	ExposeCode bool
}

func DefaultConfig() Config {
	return Config{OTPTTL: 5 * time.Minute, MaxAttempts: 5, SessionTTL: 24 * time.Hour}
}

type Service struct {
	clients  Clients
	catalog  Catalog
	orders   Orders
	otps     OTPStore
	sessions SessionStore
	cfg      Config
	now      func() time.Time
}

func NewService(clients Clients, cat Catalog, orders Orders, otps OTPStore, sessions SessionStore, cfg Config) *Service {
	return &Service{
		clients:  clients,
		catalog:  cat,
		orders:   orders,
		otps:     otps,
		sessions: sessions,
		cfg:      cfg,
		now:      time.Now,
	}
}

// OTPRequest is the answer to an OTP request.
type OTPRequest struct {
	ExpiresIn int    `json:"expires_in"`
	Code      string `json:"code,omitempty"`
}

// RequestOTP issues a 6-digit code for the active client owning telephone.
// A new request replaces the pending code.
func (s *Service) RequestOTP(ctx context.Context, telephone string) (*OTPRequest, error) {
	telephone = domain.NormalizePhone(telephone)
	if !domain.PhonePattern.MatchString(telephone) {
		return nil, apperror.NewValidation("invalid phone number").WithDetail("field", "telephone")
	}
	c, err := s.clients.GetByTelephone(ctx, telephone)
	if err != nil {
		return nil, err
	}
	if !c.IsActive {
		return nil, apperror.NewNotFound("client", telephone)
	}

	code, err := newCode()
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("generate otp: %w", err))
	}
	if err := s.otps.Put(ctx, otpKey(ctx, telephone), OTP{Code: code, ClientID: c.ID}, s.cfg.OTPTTL); err != nil {
		return nil, fmt.Errorf("store otp: %w", err)
	}

	logger.Info(ctx, "portal otp issued", "client_id", c.ID)
	// No SMS gateway: the code only reaches debug-level logs.
	logger.Debug(ctx, "portal otp code", "telephone", telephone, "code", code)

	res := &OTPRequest{ExpiresIn: int(s.cfg.OTPTTL.Seconds())}
	if s.cfg.ExposeCode {
		res.Code = code
	}
	return res, nil
}

// VerifyOTP exchanges a valid code for a session. A code is single use and
// burns after MaxAttempts failures.
func (s *Service) VerifyOTP(ctx context.Context, telephone, code string) (*Session, *client.Client, error) {
	telephone = domain.NormalizePhone(telephone)
	key := otpKey(ctx, telephone)

	pending, err := s.otps.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return nil, nil, invalidOTP()
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load otp: %w", err)
	}
	if pending.Attempts >= s.cfg.MaxAttempts {
		if err := s.burn(ctx, key); err != nil {
			return nil, nil, err
		}
		return nil, nil, invalidOTP().WithDetail("reason", "too_many_attempts")
	}
	if subtle.ConstantTimeCompare([]byte(pending.Code), []byte(code)) != 1 {
		attempts, err := s.otps.Fail(ctx, key)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, nil, fmt.Errorf("count otp attempt: %w", err)
		}
		if attempts >= s.cfg.MaxAttempts {
			if err := s.burn(ctx, key); err != nil {
				return nil, nil, err
			}
		}
		return nil, nil, invalidOTP().WithDetail("attempts_left", max(s.cfg.MaxAttempts-attempts, 0))
	}
	if err := s.otps.Delete(ctx, key); err != nil {
		return nil, nil, fmt.Errorf("consume otp: %w", err)
	}

	c, err := s.clients.GetByTelephone(ctx, telephone)
	if err != nil {
		return nil, nil, err
	}
	now := s.now().UTC()
	sess := &Session{
		Token:     uuid.NewString(),
		TenantID:  tenant.GetTenantID(ctx),
		ClientID:  c.ID,
		Telephone: telephone,
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.SessionTTL),
	}
	if err := s.sessions.Create(ctx, sess, s.cfg.SessionTTL); err != nil {
		return nil, nil, fmt.Errorf("create session: %w", err)
	}
	logger.Info(ctx, "portal session opened", "client_id", c.ID)
	return sess, c, nil
}

// burn drops a code that ran out of attempts.
func (s *Service) burn(ctx context.Context, key string) error {
	if err := s.otps.Delete(ctx, key); err != nil && !errors.Is(err, ErrNotFound) {
		logger.Warn(ctx, "portal otp burn failed", "error", err)
		return fmt.Errorf("burn otp: %w", err)
	}
	return nil
}

// Authenticate resolves a session token. Sessions of another tenant are rejected.
func (s *Service) Authenticate(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, apperror.NewUnauthorized("portal session required").WithCode("SESSION_REQUIRED")
	}
	sess, err := s.sessions.Get(ctx, token)
	if errors.Is(err, ErrNotFound) {
		return nil, apperror.NewUnauthorized("portal session expired").WithCode("INVALID_SESSION")
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if sess.TenantID != tenant.GetTenantID(ctx) {
		return nil, apperror.NewUnauthorized("portal session expired").WithCode("INVALID_SESSION")
	}
	sess.Token = token
	return sess, nil
}

// Logout ends the session.
func (s *Service) Logout(ctx context.Context, sess *Session) error {
	if err := s.sessions.Delete(ctx, sess.Token); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Register creates an inactive prospect awaiting review by the sales team.
func (s *Service) Register(ctx context.Context, in client.Input) (*client.Client, error) {
	in.CommercialID = nil
	return s.clients.CreateProspect(ctx, in)
}

// Checkout places a draft order for the session's client at public prices.
func (s *Service) Checkout(ctx context.Context, sess *Session, clientID id.ID, items []order.LigneInput) (*order.Commande, error) {
	if clientID != sess.ClientID {
		return nil, apperror.NewForbidden("client does not match the portal session").WithCode("CLIENT_MISMATCH")
	}
	return s.orders.CreatePortal(ctx, clientID, items)
}

// MyOrders lists the session client's orders, drafts excluded.
func (s *Service) MyOrders(ctx context.Context, sess *Session, page entity.Page) (entity.List[order.Commande], error) {
	return s.orders.ForClient(ctx, sess.ClientID, page)
}

// Track returns the public summary of an order.
func (s *Service) Track(ctx context.Context, numero string) (*order.Tracking, error) {
	return s.orders.Track(ctx, numero)
}

// Articles lists active articles.
func (s *Service) Articles(ctx context.Context, f catalog.Filter) (entity.List[catalog.Article], error) {
	f.ActiveOnly = true
	f.SousSeuil = false
	return s.catalog.List(ctx, f)
}

// Article returns an active article.
func (s *Service) Article(ctx context.Context, articleID id.ID) (*catalog.Article, error) {
	found, err := s.catalog.GetMany(ctx, []id.ID{articleID})
	if err != nil {
		return nil, err
	}
	if len(found) == 0 || !found[0].IsActive {
		return nil, apperror.NewNotFound("article", articleID.String())
	}
	return &found[0], nil
}

func (s *Service) Familles(ctx context.Context) ([]string, error) {
	return s.catalog.Familles(ctx)
}

func (s *Service) SousFamilles(ctx context.Context, famille string) ([]string, error) {
	return s.catalog.SousFamilles(ctx, famille)
}

func otpKey(ctx context.Context, telephone string) string {
	return tenant.GetTenantID(ctx) + ":" + telephone
}

var codeSpace = big.NewInt(1_000_000)

func newCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpace)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func invalidOTP() *apperror.AppError {
	return apperror.NewUnauthorized("invalid or expired code").WithCode("INVALID_OTP")
}
