package client

import (
	"context"
	"fmt"

	"autoerp/internal/core/apperror"
	appctx "autoerp/internal/core/context"
	"autoerp/internal/core/entity"
	"autoerp/internal/core/id"
	"autoerp/internal/core/security"
	"autoerp/internal/core/tx"
	"autoerp/internal/domain"
	"autoerp/pkg/logger"
)

// Service provides client operations.
type Service struct {
	repo      Repository
	policy    *security.Policy
	txManager tx.Manager
}

func NewService(repo Repository, policy *security.Policy, txManager tx.Manager) *Service {
	return &Service{repo: repo, policy: policy, txManager: txManager}
}

// List returns a page of clients. A commercial only sees the clients assigned to them.
func (s *Service) List(ctx context.Context, f Filter) (entity.List[Client], error) {
	if user := appctx.GetUser(ctx); user != nil && user.Role == string(security.RoleCommercial) {
		uid, err := id.Parse(user.UserID)
		if err != nil {
			return entity.List[Client]{}, apperror.NewUnauthorized("invalid token subject")
		}
		f.CommercialID = &uid
	}
	f.Page = f.Page.Normalize()
	items, total, err := s.repo.List(ctx, f)
	if err != nil {
		return entity.List[Client]{}, fmt.Errorf("list clients: %w", err)
	}
	return entity.NewList(items, total, f.Page), nil
}

// Get returns one client.
func (s *Service) Get(ctx context.Context, clientID id.ID) (*Client, error) {
	return s.repo.GetByID(ctx, clientID)
}

// GetByTelephone returns the client owning telephone.
func (s *Service) GetByTelephone(ctx context.Context, telephone string) (*Client, error) {
	return s.repo.GetByTelephone(ctx, domain.NormalizePhone(telephone))
}

// Create registers a client. A commercial creating a client becomes its commercial.
func (s *Service) Create(ctx context.Context, in Input) (*Client, error) {
	c := &Client{Base: entity.NewBase(), IsActive: true}
	in.apply(c)
	if user := appctx.GetUser(ctx); user != nil {
		if c.CommercialID == nil && user.Role == string(security.RoleCommercial) {
			if uid, err := id.Parse(user.UserID); err == nil {
				c.CommercialID = &uid
			}
		}
		if c.AgenceID == nil && user.AgenceID != "" {
			if aid, err := id.Parse(user.AgenceID); err == nil {
				c.AgenceID = &aid
			}
		}
	}
	if err := s.insert(ctx, c); err != nil {
		return nil, err
	}
	logger.Info(ctx, "client created", "client_id", c.ID, "prospect", c.IsProspect)
	return c, nil
}

// CreateProspect registers an inactive prospect, as done by the reseller portal.
func (s *Service) CreateProspect(ctx context.Context, in Input) (*Client, error) {
	c := &Client{Base: entity.NewBase(), IsActive: false}
	in.apply(c)
	c.IsProspect = true
	if err := s.insert(ctx, c); err != nil {
		return nil, err
	}
	logger.Info(ctx, "prospect registered", "client_id", c.ID)
	return c, nil
}

func (s *Service) insert(ctx context.Context, c *Client) error {
	if err := c.Validate(ctx); err != nil {
		return err
	}
	return domain.InTx(ctx, s.txManager, func(ctx context.Context) error {
		if err := s.ensurePhoneFree(ctx, c.Telephone, nil); err != nil {
			return err
		}
		return s.repo.Create(ctx, c)
	})
}

// Update replaces the writable fields of a client.
func (s *Service) Update(ctx context.Context, clientID id.ID, in Input) (*Client, error) {
	var c *Client
	err := domain.InTx(ctx, s.txManager, func(ctx context.Context) error {
		var err error
		if c, err = s.repo.GetByID(ctx, clientID); err != nil {
			return err
		}
		if err := s.policy.Authorize(ctx, security.CapClientsWrite, c.Resource()); err != nil {
			return err
		}
		in.apply(c)
		if err := c.Validate(ctx); err != nil {
			return err
		}
		if err := s.ensurePhoneFree(ctx, c.Telephone, &c.ID); err != nil {
			return err
		}
		c.Touch()
		return s.repo.Update(ctx, c)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ConvertToClient turns a prospect into an active client.
func (s *Service) ConvertToClient(ctx context.Context, clientID id.ID) (*Client, error) {
	var c *Client
	err := domain.InTx(ctx, s.txManager, func(ctx context.Context) error {
		var err error
		if c, err = s.repo.GetByID(ctx, clientID); err != nil {
			return err
		}
		if !c.IsProspect {
			return apperror.NewBusinessRule("ALREADY_CLIENT", "client is not a prospect")
		}
		return s.markClient(ctx, c)
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "prospect converted", "client_id", c.ID)
	return c, nil
}

// EnsureClient converts c when it is still a prospect. It runs inside the
// caller's transaction and is used when a prospect pays an order.
func (s *Service) EnsureClient(ctx context.Context, c *Client) error {
	if !c.IsProspect {
		return nil
	}
	return s.markClient(ctx, c)
}

func (s *Service) markClient(ctx context.Context, c *Client) error {
	c.IsProspect = false
	c.IsActive = true
	c.Touch()
	return s.repo.Update(ctx, c)
}

// Deactivate sets is_active=false.
func (s *Service) Deactivate(ctx context.Context, clientID id.ID) error {
	return domain.InTx(ctx, s.txManager, func(ctx context.Context) error {
		c, err := s.repo.GetByID(ctx, clientID)
		if err != nil {
			return err
		}
		if err := s.policy.Authorize(ctx, security.CapClientsWrite, c.Resource()); err != nil {
			return err
		}
		c.IsActive = false
		c.Touch()
		return s.repo.Update(ctx, c)
	})
}

func (s *Service) ensurePhoneFree(ctx context.Context, telephone string, exclude *id.ID) error {
	exists, err := s.repo.ExistsByTelephone(ctx, telephone, exclude)
	if err != nil {
		return fmt.Errorf("check telephone: %w", err)
	}
	if exists {
		return apperror.NewDuplicate("client", "telephone", telephone).WithCode("DUPLICATE_PHONE")
	}
	return nil
}
