// Package audit records state transitions of business documents
// (commandes, factures, BCG) for later review.
package audit

import (
	"context"
	"fmt"
	"time"

	appctx "autoerp/internal/core/context"
	"autoerp/internal/core/id"
)

// Action is the audited transition.
type Action string

const (
	ActionCreate   Action = "create"
	ActionValidate Action = "validate"
	ActionDeliver  Action = "deliver"
	ActionInvoice  Action = "invoice"
	ActionCancel   Action = "cancel"
	ActionDeclare  Action = "declare"
	ActionPayment  Action = "payment"
	ActionReturn   Action = "return"
	ActionAdjust   Action = "adjust"
)

// Entry is one audit record.
type Entry struct {
	ID         id.ID          `json:"id"`
	EntityType string         `json:"entity_type"`
	EntityID   id.ID          `json:"entity_id"`
	Action     Action         `json:"action"`
	UserID     string         `json:"user_id,omitempty"`
	Changes    map[string]any `json:"changes,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Recorder persists audit entries inside the caller's transaction.
type Recorder interface {
	Record(ctx context.Context, e Entry) error
}

// Nop discards entries.
type Nop struct{}

func (Nop) Record(context.Context, Entry) error { return nil }

// Fill sets the id, user and timestamp of e when they are empty.
func Fill(ctx context.Context, e *Entry) {
	if id.IsNil(e.ID) {
		e.ID = id.New()
	}
	if e.UserID == "" {
		e.UserID = appctx.GetUserID(ctx)
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
}

// Transition builds the entry of a status change.
func Transition(entityType string, entityID id.ID, action Action, from, to string) Entry {
	return Entry{
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		Changes:    Diff(map[string]any{"statut": from}, map[string]any{"statut": to}),
	}
}

// Diff returns {field: {old, new}} for every field that differs between the two states.
func Diff(oldState, newState map[string]any) map[string]any {
	changes := make(map[string]any)
	for key, newVal := range newState {
		oldVal, ok := oldState[key]
		if !ok || fmt.Sprint(oldVal) != fmt.Sprint(newVal) {
			if !ok {
				oldVal = nil
			}
			changes[key] = map[string]any{"old": oldVal, "new": newVal}
		}
	}
	for key, oldVal := range oldState {
		if _, ok := newState[key]; !ok {
			changes[key] = map[string]any{"old": oldVal, "new": nil}
		}
	}
	return changes
}
