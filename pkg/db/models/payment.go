package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/openshelf-backend/pkg/enums"
)

// Payment is the money owed for one borrowing: the up-front PAYMENT row
// created with the borrowing, or a FINE row created on a late return. The
// session columns point at the provider-hosted checkout session currently
// collecting the amount; renewal replaces them wholesale.
type Payment struct {
	ID          uuid.UUID           `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Status      enums.PaymentStatus `gorm:"column:status;type:text;not null;default:'PENDING'" json:"status"`
	Type        enums.PaymentType   `gorm:"column:type;type:text;not null" json:"type"`
	BorrowingID uuid.UUID           `gorm:"column:borrowing_id;type:uuid;not null" json:"borrowing_id"`
	SessionID   *string             `gorm:"column:session_id;type:text" json:"session_id,omitempty"`
	SessionURL  *string             `gorm:"column:session_url;type:text" json:"session_url,omitempty"`
	MoneyToPay  decimal.Decimal     `gorm:"column:money_to_pay;type:numeric(7,2);not null" json:"money_to_pay"`
	CreatedAt   time.Time           `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time           `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`

	Borrowing *Borrowing `gorm:"foreignKey:BorrowingID;constraint:OnDelete:RESTRICT" json:"borrowing,omitempty"`
}

func (p *Payment) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
