package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// POSExternalEvent is the append-only idempotency ledger for webhook
// deliveries. One row per distinct (provider, external_event_id); a retried
// delivery of the same id must not create a second row. Rows are never
// updated or deleted by normal operation.
type POSExternalEvent struct {
	ID           string `json:"id" gorm:"primaryKey;type:uuid"`
	RestaurantID string `json:"restaurant_id" gorm:"type:uuid;not null;index"`

	Provider        POSProvider    `json:"provider" gorm:"type:varchar(20);not null;uniqueIndex:ux_event_provider_id,priority:1"`
	ExternalEventID string         `json:"external_event_id" gorm:"type:varchar(191);not null;uniqueIndex:ux_event_provider_id,priority:2"`
	EventType       string         `json:"event_type" gorm:"type:varchar(100)"`
	Payload         datatypes.JSON `json:"payload" gorm:"type:jsonb"`

	ReceivedAt time.Time `json:"received_at"`
}

func (e *POSExternalEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.ReceivedAt.IsZero() {
		e.ReceivedAt = time.Now()
	}
	return nil
}

// POSExternalObject is the last-known snapshot of one remote object. It is
// upserted whenever a newer representation is observed, via webhook or an
// explicit re-fetch; it holds state, not history.
type POSExternalObject struct {
	ID           string `json:"id" gorm:"primaryKey;type:uuid"`
	RestaurantID string `json:"restaurant_id" gorm:"type:uuid;not null;uniqueIndex:ux_object_key,priority:1"`

	Provider   POSProvider    `json:"provider" gorm:"type:varchar(20);not null;uniqueIndex:ux_object_key,priority:2"`
	ObjectType string         `json:"object_type" gorm:"type:varchar(50);not null;uniqueIndex:ux_object_key,priority:3"`
	ObjectID   string         `json:"object_id" gorm:"type:varchar(191);not null;uniqueIndex:ux_object_key,priority:4"`
	Payload    datatypes.JSON `json:"payload" gorm:"type:jsonb"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at" gorm:"index"`
}

func (o *POSExternalObject) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	return nil
}
