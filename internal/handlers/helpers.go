package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"gorm.io/gorm"

	"github.com/phara0n/ecarv1/internal/auth"
	"github.com/phara0n/ecarv1/internal/httpx"
	"github.com/phara0n/ecarv1/internal/models"
	"github.com/phara0n/ecarv1/internal/policy"
	"github.com/phara0n/ecarv1/internal/services"
)

// principal loads the authenticated customer and builds the policy
// principal. The auth middleware guarantees a customer id is present;
// a stale token for a deleted account still gets a 401.
func principal(db *gorm.DB, w http.ResponseWriter, r *http.Request) (policy.Principal, *models.Customer, bool) {
	id, ok := auth.CustomerIDFromContext(r.Context())
	if !ok {
		httpx.JSONError(w, http.StatusUnauthorized, auth.ErrTokenMissing.Error(), nil)
		return policy.Principal{}, nil, false
	}
	var c models.Customer
	if err := db.WithContext(r.Context()).First(&c, id).Error; err != nil {
		httpx.JSONError(w, http.StatusUnauthorized, auth.ErrTokenInvalid.Error(), nil)
		return policy.Principal{}, nil, false
	}
	return policy.Principal{ID: c.ID, Role: c.Role}, &c, true
}

// pathID parses the {id}-style path value; zero means malformed.
func pathID(r *http.Request, key string) uint {
	n, err := strconv.ParseUint(r.PathValue(key), 10, 64)
	if err != nil {
		return 0
	}
	return uint(n)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return false
	}
	return true
}

// writeError maps service and policy errors onto API status codes.
func writeError(w http.ResponseWriter, err error) {
	if ve, ok := services.AsValidation(err); ok {
		httpx.JSONError(w, http.StatusUnprocessableEntity, "validation_failed", ve.Violations)
		return
	}
	switch {
	case errors.Is(err, services.ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
	case errors.Is(err, services.ErrConflict):
		httpx.JSONError(w, http.StatusConflict, "conflict", nil)
	case errors.Is(err, policy.ErrUnauthorized):
		httpx.JSONError(w, http.StatusForbidden, "forbidden", nil)
	default:
		httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
	}
}

type pageMeta struct {
	TotalCount  int64 `json:"total_count"`
	TotalPages  int   `json:"total_pages"`
	CurrentPage int   `json:"current_page"`
	PerPage     int   `json:"per_page"`
}

// pagination reads page/per_page with sane bounds.
func pagination(r *http.Request) (page, perPage int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	perPage, _ = strconv.Atoi(r.URL.Query().Get("per_page"))
	if perPage < 1 {
		perPage = 20
	}
	if perPage > 100 {
		perPage = 100
	}
	return page, perPage
}

func meta(total int64, page, perPage int) pageMeta {
	pages := int((total + int64(perPage) - 1) / int64(perPage))
	return pageMeta{TotalCount: total, TotalPages: pages, CurrentPage: page, PerPage: perPage}
}
