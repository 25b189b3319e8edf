package handlers

import (
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/phara0n/ecarv1/internal/auth"
	"github.com/phara0n/ecarv1/internal/httpx"
	"github.com/phara0n/ecarv1/internal/models"
)

type AuthHandler struct {
	db     *gorm.DB
	tokens *auth.TokenIssuer
}

func NewAuthHandler(db *gorm.DB, tokens *auth.TokenIssuer) *AuthHandler {
	return &AuthHandler{db: db, tokens: tokens}
}

// Login exchanges email+password for a bearer token. The response never
// distinguishes unknown email from bad password.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	var customer models.Customer
	err := h.db.WithContext(r.Context()).
		Where("lower(email) = ?", strings.ToLower(strings.TrimSpace(req.Email))).
		First(&customer).Error
	if err != nil {
		httpx.JSONError(w, http.StatusUnauthorized, "Invalid email or password", nil)
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(customer.PasswordHash), []byte(req.Password)) != nil {
		httpx.JSONError(w, http.StatusUnauthorized, "Invalid email or password", nil)
		return
	}

	token, err := h.tokens.Issue(customer.ID, time.Now())
	if err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"message":  "Login successful",
		"token":    token,
		"customer": customer,
	})
}
