package identity

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"autoerp/internal/core/apperror"
	appctx "autoerp/internal/core/context"
	"autoerp/internal/core/entity"
	"autoerp/internal/core/id"
	"autoerp/internal/core/security"
	"autoerp/internal/core/tenant"
	"autoerp/internal/core/tx"
	"autoerp/internal/domain"
	"autoerp/pkg/logger"
)

// ServiceConfig configures authentication.
type ServiceConfig struct {
	RefreshTokenTTL time.Duration
	BcryptCost      int
}

// DefaultServiceConfig returns a 7 day refresh TTL.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		RefreshTokenTTL: 7 * 24 * time.Hour,
		BcryptCost:      bcrypt.DefaultCost,
	}
}

// Service handles authentication, user administration and agences.
type Service struct {
	users     UserRepository
	agences   AgenceRepository
	tokens    TokenRepository
	txManager tx.Manager // nil: taken from the tenant context
	jwt       *JWTService
	policy    *security.Policy
	config    ServiceConfig
	now       func() time.Time
}

func NewService(
	users UserRepository,
	agences AgenceRepository,
	tokens TokenRepository,
	txManager tx.Manager,
	jwtService *JWTService,
	policy *security.Policy,
	config ServiceConfig,
) *Service {
	return &Service{
		users:     users,
		agences:   agences,
		tokens:    tokens,
		txManager: txManager,
		jwt:       jwtService,
		policy:    policy,
		config:    config,
		now:       time.Now,
	}
}

// Login checks credentials and issues a token pair.
func (s *Service) Login(ctx context.Context, email, password string) (*TokenPair, *User, error) {
	user, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, nil, invalidCredentials()
		}
		return nil, nil, fmt.Errorf("get user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, nil, invalidCredentials()
	}
	if !user.IsActive {
		return nil, nil, apperror.NewUnauthorized("account is disabled").WithCode("USER_INACTIVE")
	}

	var pair *TokenPair
	err = domain.InTx(ctx, s.txManager, func(ctx context.Context) error {
		now := s.now()
		if err := s.users.SetLastLogin(ctx, user.ID, now); err != nil {
			return fmt.Errorf("set last login: %w", err)
		}
		user.LastLogin = &now
		pair, err = s.issueTokens(ctx, user)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	s.attachAgence(ctx, user)
	logger.Info(ctx, "user logged in", "user_id", user.ID, "role", user.Role)
	return pair, user, nil
}

// Refresh rotates a refresh token: the presented one is revoked and a new pair is issued.
func (s *Service) Refresh(ctx context.Context, rawToken string) (*TokenPair, error) {
	if rawToken == "" {
		return nil, apperror.NewUnauthorized("refresh token required").WithCode("REFRESH_TOKEN_REQUIRED")
	}

	token, err := s.tokens.GetByHash(ctx, hashToken(rawToken))
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, invalidRefreshToken()
		}
		return nil, fmt.Errorf("get refresh token: %w", err)
	}
	if !token.IsValid(s.now()) {
		return nil, invalidRefreshToken()
	}

	user, err := s.users.GetByID(ctx, token.UserID)
	if err != nil || !user.IsActive {
		return nil, invalidRefreshToken()
	}

	var pair *TokenPair
	err = domain.InTx(ctx, s.txManager, func(ctx context.Context) error {
		if err := s.tokens.Revoke(ctx, token.ID, "rotated"); err != nil {
			return fmt.Errorf("revoke refresh token: %w", err)
		}
		pair, err = s.issueTokens(ctx, user)
		return err
	})
	return pair, err
}

// Logout revokes every refresh token of the user.
func (s *Service) Logout(ctx context.Context, userID id.ID) error {
	if err := s.tokens.RevokeAllForUser(ctx, userID, "logout"); err != nil {
		return fmt.Errorf("revoke tokens: %w", err)
	}
	logger.Info(ctx, "user logged out", "user_id", userID)
	return nil
}

// Me returns the current user with its agence.
func (s *Service) Me(ctx context.Context) (*User, error) {
	current := appctx.GetUser(ctx)
	if current == nil {
		return nil, apperror.NewUnauthorized("authentication required")
	}
	userID, err := id.Parse(current.UserID)
	if err != nil {
		return nil, apperror.NewUnauthorized("invalid token subject")
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.attachAgence(ctx, user)
	return user, nil
}

func (s *Service) issueTokens(ctx context.Context, user *User) (*TokenPair, error) {
	access, expiresAt, err := s.jwt.GenerateAccessToken(user, tenant.GetTenantID(ctx), s.policy.Capabilities(user.Role))
	if err != nil {
		return nil, err
	}

	raw, err := randomToken(32)
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}
	now := s.now()
	if err := s.tokens.Save(ctx, &RefreshToken{
		ID:        id.New(),
		UserID:    user.ID,
		TokenHash: hashToken(raw),
		ExpiresAt: now.Add(s.config.RefreshTokenTTL),
		CreatedAt: now,
	}); err != nil {
		return nil, fmt.Errorf("save refresh token: %w", err)
	}

	return &TokenPair{AccessToken: access, RefreshToken: raw, ExpiresAt: expiresAt, TokenType: "Bearer"}, nil
}

func (s *Service) attachAgence(ctx context.Context, u *User) {
	if u.AgenceID == nil {
		return
	}
	if a, err := s.agences.GetByID(ctx, *u.AgenceID); err == nil {
		u.Agence = a
	}
}

// --- users ---

// ListUsers lists users; users without scope:all only see their agence.
func (s *Service) ListUsers(ctx context.Context, f UserFilter) (entity.List[User], error) {
	if scope := s.policy.AgenceScope(ctx); scope != "" {
		agenceID, err := id.Parse(scope)
		if err != nil {
			return entity.List[User]{}, apperror.NewForbidden("user has no agence")
		}
		f.AgenceID = &agenceID
	}
	f.Page = f.Page.Normalize()
	items, total, err := s.users.List(ctx, f)
	if err != nil {
		return entity.List[User]{}, fmt.Errorf("list users: %w", err)
	}
	return entity.NewList(items, total, f.Page), nil
}

// GetUser returns a user. Non-admins may only read their own profile.
func (s *Service) GetUser(ctx context.Context, userID id.ID) (*User, error) {
	current := appctx.GetUser(ctx)
	if current == nil || (!current.IsAdmin() && current.UserID != userID.String()) {
		return nil, apperror.NewForbidden("insufficient permissions").WithCode("INSUFFICIENT_PERMISSIONS")
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.attachAgence(ctx, user)
	return user, nil
}

// CreateUser creates an account. Register uses the same rules.
func (s *Service) CreateUser(ctx context.Context, in CreateUserInput) (*User, error) {
	if len(in.Password) < MinPasswordLength {
		return nil, apperror.NewValidation(fmt.Sprintf("password must be at least %d characters", MinPasswordLength)).
			WithDetail("field", "password")
	}

	user := &User{
		Base:      entity.NewBase(),
		Email:     strings.ToLower(strings.TrimSpace(in.Email)),
		Nom:       strings.TrimSpace(in.Nom),
		Prenom:    strings.TrimSpace(in.Prenom),
		Telephone: domain.NormalizePhone(in.Telephone),
		Role:      in.Role,
		AgenceID:  in.AgenceID,
		IsActive:  in.IsActive == nil || *in.IsActive,
	}
	if current := appctx.GetUser(ctx); current != nil {
		if creator, err := id.Parse(current.UserID); err == nil {
			user.CreatedBy = &creator
		}
	}
	if err := user.Validate(ctx); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.config.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = string(hash)

	err = domain.InTx(ctx, s.txManager, func(ctx context.Context) error {
		if err := s.ensureEmailFree(ctx, user.Email); err != nil {
			return err
		}
		if user.AgenceID != nil {
			if _, err := s.agences.GetByID(ctx, *user.AgenceID); err != nil {
				return err
			}
		}
		return s.users.Create(ctx, user)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "user created", "user_id", user.ID, "role", user.Role)
	return user, nil
}

// Register is the admin-only account creation exposed under /auth.
func (s *Service) Register(ctx context.Context, in CreateUserInput) (*User, error) {
	if current := appctx.GetUser(ctx); current == nil || !current.IsAdmin() {
		return nil, apperror.NewForbidden("only administrators can create users").WithCode("INSUFFICIENT_PERMISSIONS")
	}
	return s.CreateUser(ctx, in)
}

// UpdateUser applies the non-nil fields of in.
func (s *Service) UpdateUser(ctx context.Context, userID id.ID, in UpdateUserInput) (*User, error) {
	var user *User
	err := domain.InTx(ctx, s.txManager, func(ctx context.Context) error {
		var err error
		if user, err = s.users.GetByID(ctx, userID); err != nil {
			return err
		}

		if in.Email != nil {
			email := strings.ToLower(strings.TrimSpace(*in.Email))
			if email != user.Email {
				if err := s.ensureEmailFree(ctx, email); err != nil {
					return err
				}
				user.Email = email
			}
		}
		if in.Password != nil && *in.Password != "" {
			if len(*in.Password) < MinPasswordLength {
				return apperror.NewValidation(fmt.Sprintf("password must be at least %d characters", MinPasswordLength)).
					WithDetail("field", "password")
			}
			hash, err := bcrypt.GenerateFromPassword([]byte(*in.Password), s.config.BcryptCost)
			if err != nil {
				return fmt.Errorf("hash password: %w", err)
			}
			user.PasswordHash = string(hash)
		}
		setString(&user.Nom, in.Nom)
		setString(&user.Prenom, in.Prenom)
		setString(&user.Telephone, in.Telephone)
		setString(&user.Role, in.Role)
		if in.ClearAgence {
			user.AgenceID = nil
		} else if in.AgenceID != nil {
			if _, err := s.agences.GetByID(ctx, *in.AgenceID); err != nil {
				return err
			}
			user.AgenceID = in.AgenceID
		}
		if in.IsActive != nil {
			user.IsActive = *in.IsActive
		}

		if err := user.Validate(ctx); err != nil {
			return err
		}
		user.Touch()
		return s.users.Update(ctx, user)
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// DeactivateUser sets is_active=false and revokes the user's refresh tokens.
func (s *Service) DeactivateUser(ctx context.Context, userID id.ID) error {
	if appctx.GetUserID(ctx) == userID.String() {
		return apperror.NewValidation("cannot deactivate your own account").WithCode("CANNOT_DEACTIVATE_SELF")
	}
	return domain.InTx(ctx, s.txManager, func(ctx context.Context) error {
		user, err := s.users.GetByID(ctx, userID)
		if err != nil {
			return err
		}
		user.IsActive = false
		user.Touch()
		if err := s.users.Update(ctx, user); err != nil {
			return err
		}
		return s.tokens.RevokeAllForUser(ctx, userID, "deactivated")
	})
}

func (s *Service) ensureEmailFree(ctx context.Context, email string) error {
	exists, err := s.users.ExistsByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("check email: %w", err)
	}
	if exists {
		return apperror.NewDuplicate("user", "email", email).WithCode("DUPLICATE_EMAIL")
	}
	return nil
}

// --- agences ---

// ListAgences lists active agences, optionally filtered by kind.
func (s *Service) ListAgences(ctx context.Context, f AgenceFilter) ([]Agence, error) {
	agences, err := s.agences.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list agences: %w", err)
	}
	return agences, nil
}

// GetAgence returns one agence.
func (s *Service) GetAgence(ctx context.Context, agenceID id.ID) (*Agence, error) {
	return s.agences.GetByID(ctx, agenceID)
}

// CreateAgence creates an agence with a unique code.
func (s *Service) CreateAgence(ctx context.Context, in AgenceInput) (*Agence, error) {
	a := &Agence{Base: entity.NewBase(), IsActive: true}
	applyAgenceInput(a, in)
	if err := a.Validate(ctx); err != nil {
		return nil, err
	}

	err := domain.InTx(ctx, s.txManager, func(ctx context.Context) error {
		exists, err := s.agences.ExistsByCode(ctx, a.Code)
		if err != nil {
			return fmt.Errorf("check agence code: %w", err)
		}
		if exists {
			return apperror.NewDuplicate("agence", "code", a.Code).WithCode("DUPLICATE_CODE")
		}
		return s.agences.Create(ctx, a)
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "agence created", "agence_id", a.ID, "code", a.Code)
	return a, nil
}

// UpdateAgence replaces the fields of an agence.
func (s *Service) UpdateAgence(ctx context.Context, agenceID id.ID, in AgenceInput) (*Agence, error) {
	var a *Agence
	err := domain.InTx(ctx, s.txManager, func(ctx context.Context) error {
		var err error
		if a, err = s.agences.GetByID(ctx, agenceID); err != nil {
			return err
		}
		oldCode := a.Code
		applyAgenceInput(a, in)
		if err := a.Validate(ctx); err != nil {
			return err
		}
		if a.Code != oldCode {
			exists, err := s.agences.ExistsByCode(ctx, a.Code)
			if err != nil {
				return fmt.Errorf("check agence code: %w", err)
			}
			if exists {
				return apperror.NewDuplicate("agence", "code", a.Code).WithCode("DUPLICATE_CODE")
			}
		}
		a.Touch()
		return s.agences.Update(ctx, a)
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

func applyAgenceInput(a *Agence, in AgenceInput) {
	a.Nom = strings.TrimSpace(in.Nom)
	a.Code = in.Code
	a.Adresse = in.Adresse
	a.Ville = in.Ville
	a.Telephone = in.Telephone
	a.Email = in.Email
	a.IsDepot = in.IsDepot
	a.IsVehicule = in.IsVehicule
	a.CommercialID = in.CommercialID
	if in.IsActive != nil {
		a.IsActive = *in.IsActive
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}

func invalidCredentials() *apperror.AppError {
	return apperror.NewUnauthorized("invalid email or password").WithCode("INVALID_CREDENTIALS")
}

func invalidRefreshToken() *apperror.AppError {
	return apperror.NewUnauthorized("invalid refresh token").WithCode("INVALID_REFRESH_TOKEN")
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func randomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
