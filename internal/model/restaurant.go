package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// POSProvider identifies the external point-of-sale system a restaurant is
// connected to.
type POSProvider string

const (
	ProviderNone   POSProvider = "NONE"
	ProviderSquare POSProvider = "SQUARE"
	ProviderToast  POSProvider = "TOAST"
	ProviderClover POSProvider = "CLOVER"
	ProviderCustom POSProvider = "CUSTOM"
)

// Restaurant is the tenant record. The POS integration subsystem owns the
// pos_* fields; the rest of the platform reads them but never writes them.
type Restaurant struct {
	ID       string `json:"id" gorm:"primaryKey;type:uuid"`
	Name     string `json:"name" gorm:"type:varchar(255);not null"`
	Currency string `json:"currency" gorm:"type:varchar(3);default:'USD'"`

	POSProvider       POSProvider `json:"pos_provider" gorm:"type:varchar(20);default:'NONE';index"`
	POSMerchantID     string      `json:"pos_merchant_id" gorm:"type:varchar(191);index"`
	POSLocationID     string      `json:"pos_location_id" gorm:"type:varchar(191)"`
	POSCredentials    string      `json:"-" gorm:"type:text"` // encrypted blob, vault access only
	POSTokenExpiresAt *time.Time  `json:"pos_token_expires_at"`
	POSConnected      bool        `json:"pos_connected" gorm:"default:false"`
	POSLastSyncAt     *time.Time  `json:"pos_last_sync_at"`

	// Base URL for the CUSTOM provider's HTTP API; unused for the others.
	CustomAPIBaseURL string `json:"custom_api_base_url" gorm:"type:varchar(512)"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate hook assigns a UUID primary key when absent
func (r *Restaurant) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// HasProvider reports whether a POS provider has been selected.
func (r *Restaurant) HasProvider() bool {
	return r.POSProvider != "" && r.POSProvider != ProviderNone
}
