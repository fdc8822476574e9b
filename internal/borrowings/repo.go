package borrowings

import (
	"context"
	"time"

	"github.com/angelmondragon/openshelf-backend/pkg/db/models"
	"github.com/angelmondragon/openshelf-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository exposes persistence helpers for borrow cycles.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, borrowing *models.Borrowing) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Borrowing, error)
	List(ctx context.Context, params ListBorrowingsParams) ([]models.Borrowing, *pagination.Cursor, error)
	MarkReturned(ctx context.Context, id uuid.UUID, returnDate time.Time) (int64, error)
	ListOverdue(ctx context.Context, asOf time.Time) ([]models.Borrowing, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a borrowings repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

type ListBorrowingsParams struct {
	UserID   *uuid.UUID
	IsActive *bool
	Limit    int
	Cursor   *pagination.Cursor
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, borrowing *models.Borrowing) error {
	return r.db.WithContext(ctx).Create(borrowing).Error
}

func (r *repositoryImpl) GetByID(ctx context.Context, id uuid.UUID) (*models.Borrowing, error) {
	var borrowing models.Borrowing
	err := r.db.WithContext(ctx).
		Preload("Book").
		Preload("Payments").
		First(&borrowing, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &borrowing, nil
}

func (r *repositoryImpl) List(ctx context.Context, params ListBorrowingsParams) ([]models.Borrowing, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)
	query := r.db.WithContext(ctx).Model(&models.Borrowing{}).Preload("Book")
	if params.UserID != nil {
		query = query.Where("user_id = ?", *params.UserID)
	}
	if params.IsActive != nil {
		if *params.IsActive {
			query = query.Where("actual_return_date IS NULL")
		} else {
			query = query.Where("actual_return_date IS NOT NULL")
		}
	}
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var borrowings []models.Borrowing
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&borrowings).Error; err != nil {
		return nil, nil, err
	}

	if len(borrowings) > normalized {
		next := borrowings[normalized]
		borrowings = borrowings[:normalized]
		return borrowings, &pagination.Cursor{CreatedAt: next.CreatedAt, ID: next.ID}, nil
	}
	return borrowings, nil, nil
}

// MarkReturned closes the borrow cycle only while it is still open, so two
// racing returns cannot both succeed.
func (r *repositoryImpl) MarkReturned(ctx context.Context, id uuid.UUID, returnDate time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Borrowing{}).
		Where("id = ? AND actual_return_date IS NULL", id).
		UpdateColumn("actual_return_date", returnDate)
	return result.RowsAffected, result.Error
}

func (r *repositoryImpl) ListOverdue(ctx context.Context, asOf time.Time) ([]models.Borrowing, error) {
	var borrowings []models.Borrowing
	err := r.db.WithContext(ctx).
		Preload("Book").
		Preload("User").
		Where("expected_return_date < ? AND actual_return_date IS NULL", asOf).
		Order("expected_return_date ASC").
		Find(&borrowings).Error
	if err != nil {
		return nil, err
	}
	return borrowings, nil
}
