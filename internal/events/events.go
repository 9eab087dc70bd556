// Package events carries lifecycle-change notifications. Events are re-fetch
// triggers only: they name the entity that changed but never carry
// authoritative state, which always comes from the stores and the ledger
// gateway.
package events

import (
	"context"
	"time"
)

// Type names a lifecycle transition.
type Type string

const (
	TypeDonationConfirmed Type = "donation_confirmed"
	TypeBatchCreated      Type = "batch_created"
	TypeBatchReleased     Type = "batch_released"
	TypeDisasterTriggered Type = "disaster_triggered"
	TypeOrgEscrowFinished Type = "org_escrow_finished"
	TypeDisasterCompleted Type = "disaster_completed"
)

// Event is a single lifecycle notification.
type Event struct {
	Type Type      `json:"type"`
	ID   string    `json:"id"`
	At   time.Time `json:"at"`
}

// Publisher emits lifecycle events. Services hold this narrow interface so
// tests can capture emissions without a broker.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// NopPublisher discards events; used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
