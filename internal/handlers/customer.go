package handlers

import (
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/phara0n/ecarv1/internal/httpx"
	"github.com/phara0n/ecarv1/internal/models"
	"github.com/phara0n/ecarv1/internal/policy"
	"github.com/phara0n/ecarv1/internal/validation"
)

type CustomerHandler struct {
	db   *gorm.DB
	gate *policy.Gate
}

func NewCustomerHandler(db *gorm.DB, gate *policy.Gate) *CustomerHandler {
	return &CustomerHandler{db: db, gate: gate}
}

func (h *CustomerHandler) List(w http.ResponseWriter, r *http.Request) {
	p, _, ok := principal(h.db, w, r)
	if !ok {
		return
	}
	if err := h.gate.Authorize(p, policy.ActionList, "customer", nil); err != nil {
		writeError(w, err)
		return
	}

	page, perPage := pagination(r)
	query := r.URL.Query().Get("q")

	db := h.db.WithContext(r.Context()).Model(&models.Customer{})
	if query != "" {
		like := "%" + strings.ToLower(query) + "%"
		db = db.Where("lower(name) LIKE ? OR lower(email) LIKE ?", like, like)
	}

	var total int64
	db.Count(&total)

	var customers []models.Customer
	if err := db.Order("name").Limit(perPage).Offset((page - 1) * perPage).Find(&customers).Error; err != nil {
		writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"customers": customers,
		"meta":      meta(total, page, perPage),
	})
}

type customerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
	Password string `json:"password"`
}

// Create registers a new customer account. It is the only unauthenticated
// write: the created account always gets the customer role.
func (h *CustomerHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req customerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	v := make(validation.Violations)
	validation.Required("name", req.Name, v)
	validation.Required("email", req.Email, v)
	validation.Email("email", req.Email, v)
	validation.Required("phone", req.Phone, v)
	validation.Required("password", req.Password, v)
	if len(req.Password) > 0 && len(req.Password) < 6 {
		v["password"] = "too_short"
	}
	if !v.Empty() {
		httpx.JSONError(w, http.StatusUnprocessableEntity, "validation_failed", v)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
		return
	}
	customer := models.Customer{
		Name:         req.Name,
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:        req.Phone,
		Address:      req.Address,
		PasswordHash: string(hash),
		Role:         models.RoleCustomer,
	}
	if err := h.db.WithContext(r.Context()).Create(&customer).Error; err != nil {
		httpx.JSONError(w, http.StatusConflict, "email_taken", nil)
		return
	}
	httpx.JSON(w, http.StatusCreated, customer)
}

func (h *CustomerHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, _, ok := principal(h.db, w, r)
	if !ok {
		return
	}
	var customer models.Customer
	if err := h.db.WithContext(r.Context()).Preload("Vehicles").First(&customer, pathID(r, "id")).Error; err != nil {
		writeError(w, err)
		return
	}
	if err := h.gate.Authorize(p, policy.ActionView, "customer", &customer); err != nil {
		writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, customer)
}

func (h *CustomerHandler) Update(w http.ResponseWriter, r *http.Request) {
	p, _, ok := principal(h.db, w, r)
	if !ok {
		return
	}
	var customer models.Customer
	if err := h.db.WithContext(r.Context()).First(&customer, pathID(r, "id")).Error; err != nil {
		writeError(w, err)
		return
	}
	if err := h.gate.Authorize(p, policy.ActionUpdate, "customer", &customer); err != nil {
		writeError(w, err)
		return
	}

	var req struct {
		Name    *string      `json:"name"`
		Email   *string      `json:"email"`
		Phone   *string      `json:"phone"`
		Address *string      `json:"address"`
		Role    *models.Role `json:"role"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	v := make(validation.Violations)
	if req.Name != nil {
		validation.Required("name", *req.Name, v)
		customer.Name = *req.Name
	}
	if req.Email != nil {
		validation.Required("email", *req.Email, v)
		validation.Email("email", *req.Email, v)
		customer.Email = strings.ToLower(strings.TrimSpace(*req.Email))
	}
	if req.Phone != nil {
		validation.Required("phone", *req.Phone, v)
		customer.Phone = *req.Phone
	}
	if req.Address != nil {
		customer.Address = *req.Address
	}
	if req.Role != nil {
		// only an admin may change roles
		if p.Role != models.RoleAdmin {
			writeError(w, policy.ErrUnauthorized)
			return
		}
		validation.OneOf("role", string(*req.Role), []string{
			string(models.RoleAdmin), string(models.RoleManager),
			string(models.RoleTechnician), string(models.RoleCustomer),
		}, v)
		customer.Role = *req.Role
	}
	if !v.Empty() {
		httpx.JSONError(w, http.StatusUnprocessableEntity, "validation_failed", v)
		return
	}

	if err := h.db.WithContext(r.Context()).Save(&customer).Error; err != nil {
		httpx.JSONError(w, http.StatusConflict, "email_taken", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, customer)
}

func (h *CustomerHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p, _, ok := principal(h.db, w, r)
	if !ok {
		return
	}
	var customer models.Customer
	if err := h.db.WithContext(r.Context()).First(&customer, pathID(r, "id")).Error; err != nil {
		writeError(w, err)
		return
	}
	if err := h.gate.Authorize(p, policy.ActionDelete, "customer", &customer); err != nil {
		writeError(w, err)
		return
	}
	if err := h.db.WithContext(r.Context()).Select("Vehicles").Delete(&customer).Error; err != nil {
		writeError(w, err)
		return
	}
	httpx.NoContent(w)
}
