package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/openshelf-backend/api/middleware"
	borrowsvc "github.com/angelmondragon/openshelf-backend/internal/borrowings"
	"github.com/angelmondragon/openshelf-backend/pkg/db/models"
	"github.com/angelmondragon/openshelf-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/openshelf-backend/pkg/errors"
	"github.com/angelmondragon/openshelf-backend/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "controllers-test", Output: io.Discard})
}

type stubBorrowingsService struct {
	createFn func(ctx context.Context, input borrowsvc.CreateInput) (*borrowsvc.CreateResult, error)
	returnFn func(ctx context.Context, input borrowsvc.ReturnInput) (*borrowsvc.ReturnResult, error)
	listFn   func(ctx context.Context, params borrowsvc.ListParams) (*borrowsvc.ListResult, error)
}

func (s *stubBorrowingsService) Create(ctx context.Context, input borrowsvc.CreateInput) (*borrowsvc.CreateResult, error) {
	if s.createFn != nil {
		return s.createFn(ctx, input)
	}
	return &borrowsvc.CreateResult{Borrowing: &models.Borrowing{ID: uuid.New()}}, nil
}

func (s *stubBorrowingsService) Get(ctx context.Context, params borrowsvc.GetParams) (*models.Borrowing, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "borrowing not found")
}

func (s *stubBorrowingsService) List(ctx context.Context, params borrowsvc.ListParams) (*borrowsvc.ListResult, error) {
	if s.listFn != nil {
		return s.listFn(ctx, params)
	}
	return &borrowsvc.ListResult{}, nil
}

func (s *stubBorrowingsService) Return(ctx context.Context, input borrowsvc.ReturnInput) (*borrowsvc.ReturnResult, error) {
	if s.returnFn != nil {
		return s.returnFn(ctx, input)
	}
	return &borrowsvc.ReturnResult{Borrowing: &models.Borrowing{}}, nil
}

func authedContext(userID uuid.UUID, role enums.UserRole) context.Context {
	return middleware.WithUser(context.Background(), userID, role)
}

func TestCreateBorrowing(t *testing.T) {
	logg := testLogger()
	userID := uuid.New()
	bookID := uuid.New()

	t.Run("success", func(t *testing.T) {
		var captured borrowsvc.CreateInput
		stub := &stubBorrowingsService{createFn: func(ctx context.Context, input borrowsvc.CreateInput) (*borrowsvc.CreateResult, error) {
			captured = input
			return &borrowsvc.CreateResult{Borrowing: &models.Borrowing{ID: uuid.New()}}, nil
		}}

		body := `{"book_id":"` + bookID.String() + `","expected_return_date":"2026-04-01"}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/borrowings", strings.NewReader(body))
		req = req.WithContext(authedContext(userID, enums.UserRoleMember))
		rec := httptest.NewRecorder()
		CreateBorrowing(stub, logg).ServeHTTP(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		if captured.UserID != userID {
			t.Fatal("actor must come from the auth context")
		}
		if captured.BookID != bookID {
			t.Fatal("book id must come from the body")
		}
		if captured.ExpectedReturnDate.Format("2006-01-02") != "2026-04-01" {
			t.Fatalf("unexpected expected return date: %s", captured.ExpectedReturnDate)
		}
	})

	t.Run("bad date", func(t *testing.T) {
		body := `{"book_id":"` + bookID.String() + `","expected_return_date":"01/04/2026"}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/borrowings", strings.NewReader(body))
		req = req.WithContext(authedContext(userID, enums.UserRoleMember))
		rec := httptest.NewRecorder()
		CreateBorrowing(&stubBorrowingsService{}, logg).ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("conflict maps to 409", func(t *testing.T) {
		stub := &stubBorrowingsService{createFn: func(ctx context.Context, input borrowsvc.CreateInput) (*borrowsvc.CreateResult, error) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "you have pending payments")
		}}
		body := `{"book_id":"` + bookID.String() + `","expected_return_date":"2026-04-01"}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/borrowings", strings.NewReader(body))
		req = req.WithContext(authedContext(userID, enums.UserRoleMember))
		rec := httptest.NewRecorder()
		CreateBorrowing(stub, logg).ServeHTTP(rec, req)

		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
		var envelope struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if envelope.Error.Code != string(pkgerrors.CodeConflict) {
			t.Fatalf("unexpected error code %q", envelope.Error.Code)
		}
	})
}

func TestReturnBorrowing(t *testing.T) {
	logg := testLogger()
	userID := uuid.New()
	borrowingID := uuid.New()

	request := func(stub *stubBorrowingsService, id string) *httptest.ResponseRecorder {
		routeCtx := chi.NewRouteContext()
		routeCtx.URLParams.Add("borrowingID", id)
		ctx := context.WithValue(authedContext(userID, enums.UserRoleMember), chi.RouteCtxKey, routeCtx)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/borrowings/"+id+"/return", nil)
		req = req.WithContext(ctx)
		rec := httptest.NewRecorder()
		ReturnBorrowing(stub, logg).ServeHTTP(rec, req)
		return rec
	}

	t.Run("success", func(t *testing.T) {
		var captured borrowsvc.ReturnInput
		stub := &stubBorrowingsService{returnFn: func(ctx context.Context, input borrowsvc.ReturnInput) (*borrowsvc.ReturnResult, error) {
			captured = input
			return &borrowsvc.ReturnResult{Borrowing: &models.Borrowing{ID: input.BorrowingID}}, nil
		}}
		rec := request(stub, borrowingID.String())
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if captured.BorrowingID != borrowingID || captured.ActorUserID != userID {
			t.Fatal("identity and id must flow through")
		}
	})

	t.Run("invalid id", func(t *testing.T) {
		rec := request(&stubBorrowingsService{}, "not-a-uuid")
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("already returned maps to 422", func(t *testing.T) {
		stub := &stubBorrowingsService{returnFn: func(ctx context.Context, input borrowsvc.ReturnInput) (*borrowsvc.ReturnResult, error) {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "already returned")
		}}
		rec := request(stub, borrowingID.String())
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", rec.Code)
		}
	})
}

func TestListBorrowingsFilters(t *testing.T) {
	logg := testLogger()
	userID := uuid.New()

	var captured borrowsvc.ListParams
	stub := &stubBorrowingsService{listFn: func(ctx context.Context, params borrowsvc.ListParams) (*borrowsvc.ListResult, error) {
		captured = params
		return &borrowsvc.ListResult{}, nil
	}}

	filterID := uuid.New()
	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/borrowings?user_id="+filterID.String()+"&is_active=true&limit=5", nil)
	req = req.WithContext(authedContext(userID, enums.UserRoleStaff))
	rec := httptest.NewRecorder()
	ListBorrowings(stub, logg).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if captured.UserID == nil || *captured.UserID != filterID {
		t.Fatal("user_id filter must pass through")
	}
	if captured.IsActive == nil || !*captured.IsActive {
		t.Fatal("is_active filter must pass through")
	}
	if captured.Limit != 5 {
		t.Fatalf("unexpected limit %d", captured.Limit)
	}
	if !captured.ActorStaff {
		t.Fatal("staff flag must come from the role claim")
	}
}
