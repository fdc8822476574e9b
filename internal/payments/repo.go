package payments

import (
	"context"

	"github.com/angelmondragon/openshelf-backend/pkg/db/models"
	"github.com/angelmondragon/openshelf-backend/pkg/enums"
	"github.com/angelmondragon/openshelf-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository exposes persistence helpers for the payment ledger.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, payment *models.Payment) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	List(ctx context.Context, params ListPaymentsParams) ([]models.Payment, *pagination.Cursor, error)
	CountPendingByUser(ctx context.Context, userID uuid.UUID) (int64, error)
	ListPendingWithSession(ctx context.Context) ([]models.Payment, error)
	MarkPaid(ctx context.Context, id uuid.UUID) (int64, error)
	MarkExpired(ctx context.Context, id uuid.UUID) (int64, error)
	AttachSession(ctx context.Context, id uuid.UUID, sessionID, sessionURL string) error
	RenewSession(ctx context.Context, id uuid.UUID, sessionID, sessionURL string) (int64, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a payments repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

type ListPaymentsParams struct {
	UserID *uuid.UUID
	Status *enums.PaymentStatus
	Limit  int
	Cursor *pagination.Cursor
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *repositoryImpl) GetByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).
		Preload("Borrowing").
		Preload("Borrowing.Book").
		First(&payment, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repositoryImpl) List(ctx context.Context, params ListPaymentsParams) ([]models.Payment, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)
	query := r.db.WithContext(ctx).Model(&models.Payment{})
	if params.UserID != nil {
		query = query.
			Joins("JOIN borrowings ON borrowings.id = payments.borrowing_id").
			Where("borrowings.user_id = ?", *params.UserID)
	}
	if params.Status != nil {
		query = query.Where("payments.status = ?", *params.Status)
	}
	if params.Cursor != nil {
		query = query.Where("(payments.created_at, payments.id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var payments []models.Payment
	if err := query.Order("payments.created_at DESC, payments.id DESC").Limit(limit).Find(&payments).Error; err != nil {
		return nil, nil, err
	}

	if len(payments) > normalized {
		next := payments[normalized]
		payments = payments[:normalized]
		return payments, &pagination.Cursor{CreatedAt: next.CreatedAt, ID: next.ID}, nil
	}
	return payments, nil, nil
}

func (r *repositoryImpl) CountPendingByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Joins("JOIN borrowings ON borrowings.id = payments.borrowing_id").
		Where("borrowings.user_id = ? AND payments.status = ?", userID, enums.PaymentStatusPending).
		Count(&count).Error
	return count, err
}

func (r *repositoryImpl) ListPendingWithSession(ctx context.Context) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.WithContext(ctx).
		Where("status = ? AND session_id IS NOT NULL", enums.PaymentStatusPending).
		Order("created_at ASC").
		Find(&payments).Error
	if err != nil {
		return nil, err
	}
	return payments, nil
}

// MarkPaid is conditional on the row not already being PAID, which makes the
// success callback idempotent.
func (r *repositoryImpl) MarkPaid(ctx context.Context, id uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ? AND status <> ?", id, enums.PaymentStatusPaid).
		UpdateColumn("status", enums.PaymentStatusPaid)
	return result.RowsAffected, result.Error
}

func (r *repositoryImpl) MarkExpired(ctx context.Context, id uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ? AND status = ?", id, enums.PaymentStatusPending).
		UpdateColumn("status", enums.PaymentStatusExpired)
	return result.RowsAffected, result.Error
}

func (r *repositoryImpl) AttachSession(ctx context.Context, id uuid.UUID, sessionID, sessionURL string) error {
	return r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"session_id":  sessionID,
			"session_url": sessionURL,
		}).Error
}

// RenewSession swaps in a fresh checkout session and reopens the payment.
// Conditional on the row being EXPIRED, or PENDING without a session (a
// borrow whose session creation failed after commit).
func (r *repositoryImpl) RenewSession(ctx context.Context, id uuid.UUID, sessionID, sessionURL string) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ? AND (status = ? OR (status = ? AND session_id IS NULL))",
			id, enums.PaymentStatusExpired, enums.PaymentStatusPending).
		Updates(map[string]any{
			"status":      enums.PaymentStatusPending,
			"session_id":  sessionID,
			"session_url": sessionURL,
		})
	return result.RowsAffected, result.Error
}
