package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Borrowing records one borrow cycle of a book by a user. BorrowDate is set
// at creation and never changes; ActualReturnDate is written exactly once,
// on return. Books and users stay referenced by borrowings forever, so both
// foreign keys restrict deletion.
type Borrowing struct {
	ID                 uuid.UUID  `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	BorrowDate         time.Time  `gorm:"column:borrow_date;type:date;not null" json:"borrow_date"`
	ExpectedReturnDate time.Time  `gorm:"column:expected_return_date;type:date;not null" json:"expected_return_date"`
	ActualReturnDate   *time.Time `gorm:"column:actual_return_date;type:date" json:"actual_return_date"`
	BookID             uuid.UUID  `gorm:"column:book_id;type:uuid;not null" json:"book_id"`
	UserID             uuid.UUID  `gorm:"column:user_id;type:uuid;not null" json:"user_id"`
	CreatedAt          time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`

	Book     *Book     `gorm:"foreignKey:BookID;constraint:OnDelete:RESTRICT" json:"book,omitempty"`
	User     *User     `gorm:"foreignKey:UserID;constraint:OnDelete:RESTRICT" json:"user,omitempty"`
	Payments []Payment `gorm:"foreignKey:BorrowingID" json:"payments,omitempty"`
}

func (b *Borrowing) BeforeCreate(*gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// IsReturned reports whether the borrow cycle is closed.
func (b Borrowing) IsReturned() bool {
	return b.ActualReturnDate != nil
}
