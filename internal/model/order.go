package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Order statuses
const (
	OrderStatusPending   = "PENDING"
	OrderStatusCompleted = "COMPLETED"
	OrderStatusCancelled = "CANCELLED"
)

// Payment statuses
const (
	PaymentStatusPending   = "PENDING"
	PaymentStatusCompleted = "COMPLETED"
	PaymentStatusFailed    = "FAILED"
)

// Order is a reconciled order row. Orders imported from an external POS carry
// the provider and remote order id; the pair is checked before insert so a
// remote order is imported at most once.
type Order struct {
	ID           string `json:"id" gorm:"primaryKey;type:uuid"`
	RestaurantID string `json:"restaurant_id" gorm:"type:uuid;not null;index:idx_orders_restaurant_time,priority:1"`

	OrderNumber string `json:"order_number" gorm:"type:varchar(50);uniqueIndex;not null"`
	Status      string `json:"status" gorm:"type:varchar(20);default:'PENDING';index"`

	Subtotal    decimal.Decimal `json:"subtotal" gorm:"type:numeric(10,2);default:0"`
	TaxAmount   decimal.Decimal `json:"tax_amount" gorm:"type:numeric(10,2);default:0"`
	TipAmount   decimal.Decimal `json:"tip_amount" gorm:"type:numeric(10,2);default:0"`
	TotalAmount decimal.Decimal `json:"total_amount" gorm:"type:numeric(10,2);default:0"`

	ExternalProvider POSProvider `json:"external_provider" gorm:"type:varchar(20);index:idx_orders_external,priority:1"`
	ExternalID       string      `json:"external_id" gorm:"type:varchar(191);index:idx_orders_external,priority:2"`

	OrderTime      time.Time  `json:"order_time" gorm:"index:idx_orders_restaurant_time,priority:2"`
	CompletionTime *time.Time `json:"completion_time"`

	LineItems []OrderLineItem `json:"line_items" gorm:"foreignKey:OrderID"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.OrderTime.IsZero() {
		o.OrderTime = time.Now()
	}
	return nil
}

// OrderLineItem is one item line of a reconciled order.
type OrderLineItem struct {
	ID         string  `json:"id" gorm:"primaryKey;type:uuid"`
	OrderID    string  `json:"order_id" gorm:"type:uuid;not null;index"`
	MenuItemID *string `json:"menu_item_id" gorm:"type:uuid"`
	Name       string  `json:"name" gorm:"type:varchar(255);not null"`

	Quantity   int             `json:"quantity" gorm:"default:1"`
	UnitPrice  decimal.Decimal `json:"unit_price" gorm:"type:numeric(10,2)"`
	TotalPrice decimal.Decimal `json:"total_price" gorm:"type:numeric(10,2)"`

	CreatedAt time.Time `json:"created_at"`
}

func (l *OrderLineItem) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return nil
}

// Payment is a reconciled payment for an order.
type Payment struct {
	ID           string `json:"id" gorm:"primaryKey;type:uuid"`
	OrderID      string `json:"order_id" gorm:"type:uuid;not null;uniqueIndex"`
	RestaurantID string `json:"restaurant_id" gorm:"type:uuid;not null;index"`

	PaymentMethod string          `json:"payment_method" gorm:"type:varchar(20)"`
	Amount        decimal.Decimal `json:"amount" gorm:"type:numeric(10,2)"`
	TipAmount     decimal.Decimal `json:"tip_amount" gorm:"type:numeric(10,2);default:0"`
	Status        string          `json:"status" gorm:"type:varchar(20);default:'PENDING'"`

	TransactionID string `json:"transaction_id" gorm:"type:varchar(100)"`
	ProcessorName string `json:"processor_name" gorm:"type:varchar(50)"`

	PaymentTime time.Time `json:"payment_time"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.PaymentTime.IsZero() {
		p.PaymentTime = time.Now()
	}
	return nil
}
