package identity

import (
	"context"
	"strings"
	"sync"
	"time"

	"autoerp/internal/core/apperror"
	"autoerp/internal/core/id"
)

type memUsers struct {
	mu   sync.Mutex
	rows map[id.ID]User
}

func newMemUsers() *memUsers { return &memUsers{rows: map[id.ID]User{}} }

func (m *memUsers) Create(_ context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[u.ID] = *u
	return nil
}

func (m *memUsers) GetByID(_ context.Context, userID id.ID) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.rows[userID]
	if !ok {
		return nil, apperror.NewNotFound("user", userID)
	}
	return &u, nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.rows {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, apperror.NewNotFound("user", email)
}

func (m *memUsers) Update(ctx context.Context, u *User) error { return m.Create(ctx, u) }

func (m *memUsers) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := m.GetByEmail(ctx, email)
	return err == nil, nil
}

func (m *memUsers) List(_ context.Context, f UserFilter) ([]User, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []User
	for _, u := range m.rows {
		if f.AgenceID != nil && (u.AgenceID == nil || *u.AgenceID != *f.AgenceID) {
			continue
		}
		if f.Role != "" && u.Role != f.Role {
			continue
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(u.Email+u.Nom+u.Prenom), strings.ToLower(f.Search)) {
			continue
		}
		out = append(out, u)
	}
	return out, int64(len(out)), nil
}

func (m *memUsers) SetLastLogin(_ context.Context, userID id.ID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.rows[userID]
	u.LastLogin = &at
	m.rows[userID] = u
	return nil
}

type memAgences struct {
	rows map[id.ID]Agence
}

func newMemAgences() *memAgences { return &memAgences{rows: map[id.ID]Agence{}} }

func (m *memAgences) Create(_ context.Context, a *Agence) error {
	m.rows[a.ID] = *a
	return nil
}

func (m *memAgences) GetByID(_ context.Context, agenceID id.ID) (*Agence, error) {
	a, ok := m.rows[agenceID]
	if !ok {
		return nil, apperror.NewNotFound("agence", agenceID)
	}
	return &a, nil
}

func (m *memAgences) Update(ctx context.Context, a *Agence) error { return m.Create(ctx, a) }

func (m *memAgences) List(_ context.Context, f AgenceFilter) ([]Agence, error) {
	var out []Agence
	for _, a := range m.rows {
		if f.IsDepot != nil && a.IsDepot != *f.IsDepot {
			continue
		}
		if f.IsVehicule != nil && a.IsVehicule != *f.IsVehicule {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (m *memAgences) ExistsByCode(_ context.Context, code string) (bool, error) {
	for _, a := range m.rows {
		if a.Code == code {
			return true, nil
		}
	}
	return false, nil
}

type memTokens struct {
	rows map[string]*RefreshToken
}

func newMemTokens() *memTokens { return &memTokens{rows: map[string]*RefreshToken{}} }

func (m *memTokens) Save(_ context.Context, t *RefreshToken) error {
	m.rows[t.TokenHash] = t
	return nil
}

func (m *memTokens) GetByHash(_ context.Context, hash string) (*RefreshToken, error) {
	t, ok := m.rows[hash]
	if !ok {
		return nil, apperror.NewNotFound("token", "")
	}
	return t, nil
}

func (m *memTokens) Revoke(_ context.Context, tokenID id.ID, reason string) error {
	for _, t := range m.rows {
		if t.ID == tokenID {
			now := time.Now()
			t.RevokedAt = &now
			t.RevokedReason = &reason
		}
	}
	return nil
}

func (m *memTokens) RevokeAllForUser(_ context.Context, userID id.ID, reason string) error {
	for _, t := range m.rows {
		if t.UserID == userID && t.RevokedAt == nil {
			now := time.Now()
			t.RevokedAt = &now
			t.RevokedReason = &reason
		}
	}
	return nil
}

func (m *memTokens) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	var n int64
	for k, t := range m.rows {
		if t.ExpiresAt.Before(before) {
			delete(m.rows, k)
			n++
		}
	}
	return n, nil
}

func (m *memTokens) active(userID id.ID) int {
	n := 0
	for _, t := range m.rows {
		if t.UserID == userID && t.RevokedAt == nil {
			n++
		}
	}
	return n
}
