package books

import (
	"context"
	"strings"

	"github.com/angelmondragon/openshelf-backend/pkg/db/models"
	"github.com/angelmondragon/openshelf-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository exposes persistence helpers for the book catalog.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, book *models.Book) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Book, error)
	List(ctx context.Context, params ListBooksParams) ([]models.Book, *pagination.Cursor, error)
	Update(ctx context.Context, book *models.Book) error
	Delete(ctx context.Context, id uuid.UUID) (int64, error)
	DecrementInventory(ctx context.Context, id uuid.UUID) (bool, error)
	IncrementInventory(ctx context.Context, id uuid.UUID) error
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a book repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

type ListBooksParams struct {
	Title  string
	Author string
	Limit  int
	Cursor *pagination.Cursor
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, book *models.Book) error {
	return r.db.WithContext(ctx).Create(book).Error
}

func (r *repositoryImpl) GetByID(ctx context.Context, id uuid.UUID) (*models.Book, error) {
	var book models.Book
	if err := r.db.WithContext(ctx).First(&book, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &book, nil
}

func (r *repositoryImpl) List(ctx context.Context, params ListBooksParams) ([]models.Book, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)
	query := r.db.WithContext(ctx).Model(&models.Book{})
	if title := strings.TrimSpace(params.Title); title != "" {
		query = query.Where("title LIKE ?", "%"+title+"%")
	}
	if author := strings.TrimSpace(params.Author); author != "" {
		query = query.Where("author LIKE ?", "%"+author+"%")
	}
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var books []models.Book
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&books).Error; err != nil {
		return nil, nil, err
	}

	if len(books) > normalized {
		next := books[normalized]
		books = books[:normalized]
		return books, &pagination.Cursor{CreatedAt: next.CreatedAt, ID: next.ID}, nil
	}
	return books, nil, nil
}

func (r *repositoryImpl) Update(ctx context.Context, book *models.Book) error {
	return r.db.WithContext(ctx).Save(book).Error
}

func (r *repositoryImpl) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).Delete(&models.Book{}, "id = ?", id)
	return result.RowsAffected, result.Error
}

// DecrementInventory subtracts one copy only while stock remains. The
// conditional write keeps concurrent borrows from driving inventory negative.
func (r *repositoryImpl) DecrementInventory(ctx context.Context, id uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Book{}).
		Where("id = ? AND inventory > 0", id).
		UpdateColumn("inventory", gorm.Expr("inventory - 1"))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repositoryImpl) IncrementInventory(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Book{}).
		Where("id = ?", id).
		UpdateColumn("inventory", gorm.Expr("inventory + 1")).Error
}
