package controllers

import (
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/openshelf-backend/api/responses"
	"github.com/angelmondragon/openshelf-backend/api/validators"
	booksvc "github.com/angelmondragon/openshelf-backend/internal/books"
	"github.com/angelmondragon/openshelf-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/openshelf-backend/pkg/errors"
	"github.com/angelmondragon/openshelf-backend/pkg/logger"
	"github.com/angelmondragon/openshelf-backend/pkg/pagination"
)

type createBookRequest struct {
	Title     string `json:"title" validate:"required,max=500"`
	Author    string `json:"author" validate:"required,max=255"`
	Cover     string `json:"cover" validate:"required"`
	Inventory int    `json:"inventory" validate:"gte=0"`
	DailyFee  string `json:"daily_fee" validate:"required"`
}

type updateBookRequest struct {
	Title     *string `json:"title,omitempty" validate:"omitempty,max=500"`
	Author    *string `json:"author,omitempty" validate:"omitempty,max=255"`
	Cover     *string `json:"cover,omitempty"`
	Inventory *int    `json:"inventory,omitempty" validate:"omitempty,gte=0"`
	DailyFee  *string `json:"daily_fee,omitempty"`
}

func parseFee(raw string) (decimal.Decimal, error) {
	fee, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid daily fee")
	}
	if fee.IsNegative() {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "daily fee cannot be negative")
	}
	return fee, nil
}

// CreateBook adds a catalog entry. Staff only.
func CreateBook(svc booksvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "books service unavailable"))
			return
		}

		var payload createBookRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		cover, err := enums.ParseBookCover(strings.TrimSpace(payload.Cover))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cover"))
			return
		}
		fee, err := parseFee(payload.DailyFee)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		book, err := svc.Create(r.Context(), booksvc.CreateBookInput{
			Title:     payload.Title,
			Author:    payload.Author,
			Cover:     cover,
			Inventory: payload.Inventory,
			DailyFee:  fee,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, book)
	}
}

// GetBook reads a single catalog entry.
func GetBook(svc booksvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "books service unavailable"))
			return
		}

		id, err := pathUUID(r, "bookID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		book, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, book)
	}
}

// ListBooks lists the catalog with optional title/author filters.
func ListBooks(svc booksvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "books service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.List(r.Context(), booksvc.ListParams{
			Title:  validators.SanitizeString(r.URL.Query().Get("title"), 500),
			Author: validators.SanitizeString(r.URL.Query().Get("author"), 255),
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

// UpdateBook partially updates a catalog entry. Staff only.
func UpdateBook(svc booksvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "books service unavailable"))
			return
		}

		id, err := pathUUID(r, "bookID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateBookRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := booksvc.UpdateBookInput{
			Title:     payload.Title,
			Author:    payload.Author,
			Inventory: payload.Inventory,
		}
		if payload.Cover != nil {
			cover, err := enums.ParseBookCover(strings.TrimSpace(*payload.Cover))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cover"))
				return
			}
			input.Cover = &cover
		}
		if payload.DailyFee != nil {
			fee, err := parseFee(*payload.DailyFee)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			input.DailyFee = &fee
		}

		book, err := svc.Update(r.Context(), id, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, book)
	}
}

// DeleteBook removes a catalog entry that has no borrowing history. Staff only.
func DeleteBook(svc booksvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "books service unavailable"))
			return
		}

		id, err := pathUUID(r, "bookID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Delete(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}
