package books

import (
	"context"
	"errors"
	"strings"

	"github.com/angelmondragon/openshelf-backend/pkg/db"
	"github.com/angelmondragon/openshelf-backend/pkg/db/models"
	"github.com/angelmondragon/openshelf-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/openshelf-backend/pkg/errors"
	"github.com/angelmondragon/openshelf-backend/pkg/pagination"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Service defines catalog operations over books.
type Service interface {
	Create(ctx context.Context, input CreateBookInput) (*models.Book, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Book, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateBookInput) (*models.Book, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type service struct {
	repo Repository
}

// CreateBookInput carries the fields accepted when adding a book.
type CreateBookInput struct {
	Title     string
	Author    string
	Cover     enums.BookCover
	Inventory int
	DailyFee  decimal.Decimal
}

// UpdateBookInput carries optional fields for a partial update.
type UpdateBookInput struct {
	Title     *string
	Author    *string
	Cover     *enums.BookCover
	Inventory *int
	DailyFee  *decimal.Decimal
}

// ListParams configures filtering and pagination for the catalog.
type ListParams struct {
	Title  string
	Author string
	Limit  int
	Cursor string
}

// ListResult wraps returned books and the cursor for the next page.
type ListResult struct {
	Items  []models.Book `json:"items"`
	Cursor string        `json:"cursor"`
}

// NewService wires book catalog dependencies.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "books repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Create(ctx context.Context, input CreateBookInput) (*models.Book, error) {
	if err := validateCreate(input); err != nil {
		return nil, err
	}

	book := &models.Book{
		Title:     strings.TrimSpace(input.Title),
		Author:    strings.TrimSpace(input.Author),
		Cover:     input.Cover,
		Inventory: input.Inventory,
		DailyFee:  input.DailyFee,
	}
	if err := s.repo.Create(ctx, book); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create book")
	}
	return book, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Book, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "book id required")
	}
	book, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "book not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "get book")
	}
	return book, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	query := ListBooksParams{
		Title:  params.Title,
		Author: params.Author,
		Limit:  params.Limit,
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list books")
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &ListResult{Items: rows, Cursor: cursor}, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateBookInput) (*models.Book, error) {
	book, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Title != nil {
		if strings.TrimSpace(*input.Title) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "title cannot be empty")
		}
		book.Title = strings.TrimSpace(*input.Title)
	}
	if input.Author != nil {
		if strings.TrimSpace(*input.Author) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "author cannot be empty")
		}
		book.Author = strings.TrimSpace(*input.Author)
	}
	if input.Cover != nil {
		if !input.Cover.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid cover type")
		}
		book.Cover = *input.Cover
	}
	if input.Inventory != nil {
		if *input.Inventory < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "inventory cannot be negative")
		}
		book.Inventory = *input.Inventory
	}
	if input.DailyFee != nil {
		if input.DailyFee.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "daily fee cannot be negative")
		}
		book.DailyFee = *input.DailyFee
	}

	if err := s.repo.Update(ctx, book); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update book")
	}
	return book, nil
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "book id required")
	}

	affected, err := s.repo.Delete(ctx, id)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return pkgerrors.New(pkgerrors.CodeConflict, "book has borrowing history and cannot be deleted")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete book")
	}
	if affected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "book not found")
	}
	return nil
}

func validateCreate(input CreateBookInput) error {
	if strings.TrimSpace(input.Title) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "title is required")
	}
	if strings.TrimSpace(input.Author) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "author is required")
	}
	if !input.Cover.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid cover type")
	}
	if input.Inventory < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "inventory cannot be negative")
	}
	if input.DailyFee.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "daily fee cannot be negative")
	}
	return nil
}
