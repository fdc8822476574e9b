package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/openshelf-backend/pkg/enums"
)

// Book is a catalog title with a live inventory count. Inventory only ever
// moves by one, down on borrow and up on return, inside the owning
// transaction.
type Book struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Title     string          `gorm:"column:title;type:text;not null" json:"title"`
	Author    string          `gorm:"column:author;type:text;not null" json:"author"`
	Cover     enums.BookCover `gorm:"column:cover;type:text;not null" json:"cover"`
	Inventory int             `gorm:"column:inventory;not null;check:inventory >= 0" json:"inventory"`
	DailyFee  decimal.Decimal `gorm:"column:daily_fee;type:numeric(5,2);not null" json:"daily_fee"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (b *Book) BeforeCreate(*gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}
