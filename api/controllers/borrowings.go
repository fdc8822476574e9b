package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/openshelf-backend/api/responses"
	"github.com/angelmondragon/openshelf-backend/api/validators"
	borrowsvc "github.com/angelmondragon/openshelf-backend/internal/borrowings"
	pkgerrors "github.com/angelmondragon/openshelf-backend/pkg/errors"
	"github.com/angelmondragon/openshelf-backend/pkg/logger"
	"github.com/angelmondragon/openshelf-backend/pkg/pagination"
	"github.com/google/uuid"
)

type createBorrowingRequest struct {
	BookID             string `json:"book_id" validate:"required,uuid"`
	ExpectedReturnDate string `json:"expected_return_date" validate:"required"`
}

// CreateBorrowing opens a borrow cycle for the authenticated user.
func CreateBorrowing(svc borrowsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "borrowings service unavailable"))
			return
		}

		var payload createBorrowingRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		bookID, err := uuid.Parse(payload.BookID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid book id"))
			return
		}
		expected, err := time.Parse("2006-01-02", strings.TrimSpace(payload.ExpectedReturnDate))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "expected_return_date must be YYYY-MM-DD"))
			return
		}

		result, err := svc.Create(r.Context(), borrowsvc.CreateInput{
			UserID:             userIDFromRequest(r),
			BookID:             bookID,
			ExpectedReturnDate: expected,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// GetBorrowing reads one borrowing, scoped to owner or staff.
func GetBorrowing(svc borrowsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "borrowings service unavailable"))
			return
		}

		id, err := pathUUID(r, "borrowingID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		borrowing, err := svc.Get(r.Context(), borrowsvc.GetParams{
			BorrowingID: id,
			ActorUserID: userIDFromRequest(r),
			ActorStaff:  isStaffRequest(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, borrowing)
	}
}

// ListBorrowings lists borrowings with optional user_id and is_active filters.
func ListBorrowings(svc borrowsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "borrowings service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		userID, err := validators.ParseQueryUUID(r, "user_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		isActive, err := validators.ParseQueryBool(r, "is_active")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.List(r.Context(), borrowsvc.ListParams{
			ActorUserID: userIDFromRequest(r),
			ActorStaff:  isStaffRequest(r),
			UserID:      userID,
			IsActive:    isActive,
			Limit:       limit,
			Cursor:      strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

// ReturnBorrowing closes a borrow cycle and reports any fine.
func ReturnBorrowing(svc borrowsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "borrowings service unavailable"))
			return
		}

		id, err := pathUUID(r, "borrowingID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Return(r.Context(), borrowsvc.ReturnInput{
			BorrowingID: id,
			ActorUserID: userIDFromRequest(r),
			ActorStaff:  isStaffRequest(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}
