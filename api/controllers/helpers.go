package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/openshelf-backend/api/middleware"
	pkgerrors "github.com/angelmondragon/openshelf-backend/pkg/errors"
)

func userIDFromRequest(r *http.Request) uuid.UUID {
	return middleware.UserIDFromContext(r.Context())
}

func isStaffRequest(r *http.Request) bool {
	return middleware.IsStaffFromContext(r.Context())
}

func pathUUID(r *http.Request, key string) (uuid.UUID, error) {
	raw := chi.URLParam(r, key)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid id in path").
			WithDetails(map[string]any{"field": key})
	}
	return id, nil
}
