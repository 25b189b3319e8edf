package handlers

import (
	"net/http"
	"time"

	"gorm.io/gorm"

	"github.com/phara0n/ecarv1/internal/httpx"
	"github.com/phara0n/ecarv1/internal/models"
	"github.com/phara0n/ecarv1/internal/policy"
	"github.com/phara0n/ecarv1/internal/validation"
)

type VehicleHandler struct {
	db   *gorm.DB
	gate *policy.Gate
}

func NewVehicleHandler(db *gorm.DB, gate *policy.Gate) *VehicleHandler {
	return &VehicleHandler{db: db, gate: gate}
}

// vehicleView adds the derived service-schedule fields to the model.
type vehicleView struct {
	models.Vehicle
	NextServiceDueDate   *time.Time `json:"next_service_due_date,omitempty"`
	DaysUntilNextService *int       `json:"days_until_next_service,omitempty"`
}

func newVehicleView(v models.Vehicle) vehicleView {
	return vehicleView{
		Vehicle:              v,
		NextServiceDueDate:   v.NextServiceDueDate(),
		DaysUntilNextService: v.DaysUntilNextService(time.Now()),
	}
}

func (h *VehicleHandler) List(w http.ResponseWriter, r *http.Request) {
	p, _, ok := principal(h.db, w, r)
	if !ok {
		return
	}
	if err := h.gate.Authorize(p, policy.ActionList, "vehicle", nil); err != nil {
		writeError(w, err)
		return
	}

	db := h.db.WithContext(r.Context()).Preload("Repairs")
	if p.Role == models.RoleCustomer {
		db = db.Where("customer_id = ?", p.ID)
	} else if cid := r.URL.Query().Get("customer_id"); cid != "" {
		db = db.Where("customer_id = ?", cid)
	}

	var vehicles []models.Vehicle
	if err := db.Order("id").Find(&vehicles).Error; err != nil {
		writeError(w, err)
		return
	}
	views := make([]vehicleView, 0, len(vehicles))
	for _, v := range vehicles {
		views = append(views, newVehicleView(v))
	}
	httpx.JSON(w, http.StatusOK, views)
}

type vehicleRequest struct {
	CustomerID      uint    `json:"customer_id"`
	Brand           string  `json:"brand"`
	Model           string  `json:"model"`
	Year            int     `json:"year"`
	LicensePlate    string  `json:"license_plate"`
	VIN             *string `json:"vin"`
	CurrentMileage  int     `json:"current_mileage"`
	AvgDailyUsageKM float64 `json:"average_daily_usage"`
}

func (h *VehicleHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, _, ok := principal(h.db, w, r)
	if !ok {
		return
	}
	if err := h.gate.Authorize(p, policy.ActionCreate, "vehicle", nil); err != nil {
		writeError(w, err)
		return
	}

	var req vehicleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	// a customer registers vehicles on their own account only
	if p.Role == models.RoleCustomer {
		req.CustomerID = p.ID
	}

	v := make(validation.Violations)
	validation.Required("brand", req.Brand, v)
	validation.Required("model", req.Model, v)
	validation.Required("license_plate", req.LicensePlate, v)
	validation.VehicleYear("year", req.Year, v)
	validation.NonNegativeInt("current_mileage", req.CurrentMileage, v)
	validation.NonNegativeFloat("average_daily_usage", req.AvgDailyUsageKM, v)
	if req.CustomerID == 0 {
		v["customer_id"] = "required"
	}
	if !v.Empty() {
		httpx.JSONError(w, http.StatusUnprocessableEntity, "validation_failed", v)
		return
	}

	var owner models.Customer
	if err := h.db.WithContext(r.Context()).First(&owner, req.CustomerID).Error; err != nil {
		writeError(w, err)
		return
	}

	vehicle := models.Vehicle{
		CustomerID:      owner.ID,
		Brand:           req.Brand,
		Model:           req.Model,
		Year:            req.Year,
		LicensePlate:    req.LicensePlate,
		VIN:             req.VIN,
		CurrentMileage:  req.CurrentMileage,
		AvgDailyUsageKM: req.AvgDailyUsageKM,
	}
	if err := h.db.WithContext(r.Context()).Create(&vehicle).Error; err != nil {
		httpx.JSONError(w, http.StatusConflict, "license_plate_taken", nil)
		return
	}
	httpx.JSON(w, http.StatusCreated, vehicle)
}

func (h *VehicleHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, _, ok := principal(h.db, w, r)
	if !ok {
		return
	}
	var vehicle models.Vehicle
	if err := h.db.WithContext(r.Context()).Preload("Repairs").First(&vehicle, pathID(r, "id")).Error; err != nil {
		writeError(w, err)
		return
	}
	if err := h.gate.Authorize(p, policy.ActionView, "vehicle", &vehicle); err != nil {
		writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newVehicleView(vehicle))
}

func (h *VehicleHandler) Update(w http.ResponseWriter, r *http.Request) {
	p, _, ok := principal(h.db, w, r)
	if !ok {
		return
	}
	var vehicle models.Vehicle
	if err := h.db.WithContext(r.Context()).First(&vehicle, pathID(r, "id")).Error; err != nil {
		writeError(w, err)
		return
	}
	if err := h.gate.Authorize(p, policy.ActionUpdate, "vehicle", &vehicle); err != nil {
		writeError(w, err)
		return
	}

	var req struct {
		Brand           *string  `json:"brand"`
		Model           *string  `json:"model"`
		Year            *int     `json:"year"`
		LicensePlate    *string  `json:"license_plate"`
		VIN             *string  `json:"vin"`
		CurrentMileage  *int     `json:"current_mileage"`
		AvgDailyUsageKM *float64 `json:"average_daily_usage"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	v := make(validation.Violations)
	if req.Brand != nil {
		validation.Required("brand", *req.Brand, v)
		vehicle.Brand = *req.Brand
	}
	if req.Model != nil {
		validation.Required("model", *req.Model, v)
		vehicle.Model = *req.Model
	}
	if req.Year != nil {
		validation.VehicleYear("year", *req.Year, v)
		vehicle.Year = *req.Year
	}
	if req.LicensePlate != nil {
		validation.Required("license_plate", *req.LicensePlate, v)
		vehicle.LicensePlate = *req.LicensePlate
	}
	if req.VIN != nil {
		vehicle.VIN = req.VIN
	}
	if req.CurrentMileage != nil {
		validation.NonNegativeInt("current_mileage", *req.CurrentMileage, v)
		vehicle.CurrentMileage = *req.CurrentMileage
	}
	if req.AvgDailyUsageKM != nil {
		validation.NonNegativeFloat("average_daily_usage", *req.AvgDailyUsageKM, v)
		vehicle.AvgDailyUsageKM = *req.AvgDailyUsageKM
	}
	if !v.Empty() {
		httpx.JSONError(w, http.StatusUnprocessableEntity, "validation_failed", v)
		return
	}

	if err := h.db.WithContext(r.Context()).Save(&vehicle).Error; err != nil {
		httpx.JSONError(w, http.StatusConflict, "license_plate_taken", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, vehicle)
}

// UpdateMileage is the single-field member action used by the mobile
// app after each visit.
func (h *VehicleHandler) UpdateMileage(w http.ResponseWriter, r *http.Request) {
	p, _, ok := principal(h.db, w, r)
	if !ok {
		return
	}
	var vehicle models.Vehicle
	if err := h.db.WithContext(r.Context()).First(&vehicle, pathID(r, "id")).Error; err != nil {
		writeError(w, err)
		return
	}
	if err := h.gate.Authorize(p, policy.ActionUpdate, "vehicle", &vehicle); err != nil {
		writeError(w, err)
		return
	}

	var req struct {
		CurrentMileage *int `json:"current_mileage"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	v := make(validation.Violations)
	if req.CurrentMileage == nil {
		v["current_mileage"] = "required"
	} else {
		validation.NonNegativeInt("current_mileage", *req.CurrentMileage, v)
	}
	if !v.Empty() {
		httpx.JSONError(w, http.StatusUnprocessableEntity, "validation_failed", v)
		return
	}

	vehicle.CurrentMileage = *req.CurrentMileage
	if err := h.db.WithContext(r.Context()).Save(&vehicle).Error; err != nil {
		writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, vehicle)
}

func (h *VehicleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p, _, ok := principal(h.db, w, r)
	if !ok {
		return
	}
	var vehicle models.Vehicle
	if err := h.db.WithContext(r.Context()).First(&vehicle, pathID(r, "id")).Error; err != nil {
		writeError(w, err)
		return
	}
	if err := h.gate.Authorize(p, policy.ActionDelete, "vehicle", &vehicle); err != nil {
		writeError(w, err)
		return
	}
	if err := h.db.WithContext(r.Context()).Select("Repairs").Delete(&vehicle).Error; err != nil {
		writeError(w, err)
		return
	}
	httpx.NoContent(w)
}
