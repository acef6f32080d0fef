package webhook

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Mizan-AI-Org/Mizan-BE-sub001/internal/jobs"
	"github.com/Mizan-AI-Org/Mizan-BE-sub001/internal/model"
	"github.com/Mizan-AI-Org/Mizan-BE-sub001/internal/store"
	"github.com/Mizan-AI-Org/Mizan-BE-sub001/pkg/config"
	"github.com/Mizan-AI-Org/Mizan-BE-sub001/prometheus"

	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// Rejection reasons. All rejections look the same to the caller so a probe
// cannot distinguish a bad signature from an unknown merchant.
const (
	ReasonInvalidSignature = "invalid_signature"
	ReasonMalformedPayload = "malformed_payload"
	ReasonUnknownMerchant  = "unknown_merchant"
	ReasonMerchantMismatch = "merchant_mismatch"
)

// ErrNotConfigured reports a deployment missing its webhook signature key or
// notification URL. It is not a delivery rejection: without the settings no
// delivery could ever verify, so the caller should surface a server error and
// let the provider keep retrying.
var ErrNotConfigured = errors.New("webhook verification is not configured")

// Delivery statuses.
const (
	StatusAccepted  = "accepted"
	StatusDuplicate = "duplicate"
)

// RejectError is a webhook delivery rejection with a stable reason.
type RejectError struct {
	Reason string
	Err    error
}

func (e *RejectError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("webhook rejected: %s: %v", e.Reason, e.Err)
	}
	return "webhook rejected: " + e.Reason
}

func (e *RejectError) Unwrap() error { return e.Err }

// Result reports what happened to an accepted delivery.
type Result struct {
	Status       string `json:"status"`
	EventID      string `json:"event_id"`
	EventType    string `json:"event_type"`
	RestaurantID string `json:"restaurant_id"`
}

// Enqueuer hands sync jobs to the background queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, job jobs.Job) error
}

// Ingestor verifies, deduplicates and dispatches webhook deliveries.
type Ingestor struct {
	cfg    config.SquareConfig
	store  store.Store
	queue  Enqueuer
	logger *zap.Logger
}

// NewIngestor builds the webhook ingestion pipeline.
func NewIngestor(cfg config.SquareConfig, st store.Store, queue Enqueuer, logger *zap.Logger) *Ingestor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingestor{cfg: cfg, store: st, queue: queue, logger: logger}
}

type squareEvent struct {
	MerchantID string `json:"merchant_id"`
	Type       string `json:"type"`
	EventID    string `json:"event_id"`
	Data       struct {
		Type   string          `json:"type"`
		ID     string          `json:"id"`
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// objectType names the kind of remote object an event refers to, falling
// back to the event type's first segment when data.type is absent.
func (e *squareEvent) objectType() string {
	if e.Data.Type != "" {
		return e.Data.Type
	}
	return strings.SplitN(e.Type, ".", 2)[0]
}

// Ingest runs one delivery through verification, restaurant resolution,
// idempotent recording and job dispatch. A duplicate delivery is an
// accepted no-op.
func (in *Ingestor) Ingest(ctx context.Context, restaurantIDHint string, body []byte, signature string) (*Result, error) {
	if in.cfg.WebhookSignatureKey == "" || in.cfg.NotificationURL == "" {
		return nil, ErrNotConfigured
	}
	if !VerifySignature(in.cfg.WebhookSignatureKey, in.cfg.NotificationURL, body, signature) {
		prometheus.RecordWebhookRejected(string(model.ProviderSquare), ReasonInvalidSignature)
		return nil, &RejectError{Reason: ReasonInvalidSignature}
	}

	var event squareEvent
	if err := json.Unmarshal(body, &event); err != nil {
		prometheus.RecordWebhookRejected(string(model.ProviderSquare), ReasonMalformedPayload)
		return nil, &RejectError{Reason: ReasonMalformedPayload, Err: err}
	}

	r, err := in.resolveRestaurant(ctx, restaurantIDHint, event.MerchantID)
	if err != nil {
		var rej *RejectError
		if errors.As(err, &rej) {
			prometheus.RecordWebhookRejected(string(model.ProviderSquare), rej.Reason)
		}
		return nil, err
	}

	eventID := event.EventID
	if eventID == "" {
		sum := sha256.Sum256(body)
		eventID = hex.EncodeToString(sum[:])
	}

	inserted, err := in.store.InsertEventIfAbsent(ctx, &model.POSExternalEvent{
		RestaurantID:    r.ID,
		Provider:        model.ProviderSquare,
		ExternalEventID: eventID,
		EventType:       event.Type,
		Payload:         datatypes.JSON(body),
	})
	if err != nil {
		return nil, err
	}
	if !inserted {
		prometheus.RecordWebhookDuplicate(string(model.ProviderSquare))
		in.logger.Info("duplicate webhook ignored",
			zap.String("restaurant_id", r.ID), zap.String("event_id", eventID))
		return &Result{Status: StatusDuplicate, EventID: eventID, EventType: event.Type, RestaurantID: r.ID}, nil
	}

	prometheus.RecordWebhookReceived(string(model.ProviderSquare), event.Type)
	in.snapshotFromDelivery(ctx, r, &event)
	if err := in.dispatch(ctx, r, &event); err != nil {
		// The event row stands; the job can be replayed by a full sync.
		in.logger.Error("webhook dispatch failed",
			zap.String("restaurant_id", r.ID),
			zap.String("event_type", event.Type),
			zap.Error(err))
	}
	return &Result{Status: StatusAccepted, EventID: eventID, EventType: event.Type, RestaurantID: r.ID}, nil
}

func (in *Ingestor) resolveRestaurant(ctx context.Context, hint, merchantID string) (*model.Restaurant, error) {
	if hint != "" {
		r, err := in.store.GetRestaurant(ctx, hint)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, &RejectError{Reason: ReasonUnknownMerchant}
			}
			return nil, err
		}
		if merchantID != "" && r.POSMerchantID != "" && r.POSMerchantID != merchantID {
			return nil, &RejectError{Reason: ReasonMerchantMismatch}
		}
		return r, nil
	}
	if merchantID == "" {
		return nil, &RejectError{Reason: ReasonUnknownMerchant}
	}
	r, err := in.store.FindRestaurantByMerchant(ctx, model.ProviderSquare, merchantID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, &RejectError{Reason: ReasonUnknownMerchant}
		}
		return nil, err
	}
	return r, nil
}

// snapshotFromDelivery stores the object embedded in the delivery itself, so
// a snapshot exists even when the follow-up refetch never succeeds. The
// refetch then replaces it with the authoritative remote state.
func (in *Ingestor) snapshotFromDelivery(ctx context.Context, r *model.Restaurant, event *squareEvent) {
	if event.Data.ID == "" || len(event.Data.Object) == 0 {
		return
	}
	err := in.store.UpsertExternalObject(ctx, &model.POSExternalObject{
		RestaurantID: r.ID,
		Provider:     model.ProviderSquare,
		ObjectType:   event.objectType(),
		ObjectID:     event.Data.ID,
		Payload:      datatypes.JSON(event.Data.Object),
	})
	if err != nil {
		in.logger.Error("webhook snapshot upsert failed",
			zap.String("restaurant_id", r.ID),
			zap.String("object_id", event.Data.ID),
			zap.Error(err))
	}
}

func (in *Ingestor) dispatch(ctx context.Context, r *model.Restaurant, event *squareEvent) error {
	switch {
	case strings.HasPrefix(event.Type, "catalog."):
		return in.queue.Enqueue(ctx, jobs.Job{
			Type:         jobs.TypeCatalogSync,
			RestaurantID: r.ID,
		})
	case strings.HasPrefix(event.Type, "order."), strings.HasPrefix(event.Type, "payment."):
		if event.Data.ID == "" {
			return nil
		}
		return in.queue.Enqueue(ctx, jobs.Job{
			Type:         jobs.TypeObjectRefetch,
			RestaurantID: r.ID,
			ObjectType:   event.objectType(),
			ObjectID:     event.Data.ID,
		})
	default:
		in.logger.Debug("webhook event type has no handler",
			zap.String("event_type", event.Type))
		return nil
	}
}
