package handlers

import (
	"net/http"
	"time"

	"gorm.io/gorm"

	"github.com/phara0n/ecarv1/internal/httpx"
	"github.com/phara0n/ecarv1/internal/models"
	"github.com/phara0n/ecarv1/internal/policy"
	"github.com/phara0n/ecarv1/internal/services"
	"github.com/phara0n/ecarv1/internal/validation"
)

type RepairHandler struct {
	db    *gorm.DB
	gate  *policy.Gate
	store services.AttachmentStore
}

func NewRepairHandler(db *gorm.DB, gate *policy.Gate, store services.AttachmentStore) *RepairHandler {
	return &RepairHandler{db: db, gate: gate, store: store}
}

type repairView struct {
	models.Repair
	TotalDays *int `json:"total_days,omitempty"`
}

func newRepairView(r models.Repair) repairView {
	return repairView{Repair: r, TotalDays: r.TotalDays()}
}

// List returns the repairs of one vehicle, newest first.
func (h *RepairHandler) List(w http.ResponseWriter, r *http.Request) {
	p, _, ok := principal(h.db, w, r)
	if !ok {
		return
	}
	var vehicle models.Vehicle
	if err := h.db.WithContext(r.Context()).First(&vehicle, pathID(r, "vehicleID")).Error; err != nil {
		writeError(w, err)
		return
	}
	if err := h.gate.Authorize(p, policy.ActionView, "vehicle", &vehicle); err != nil {
		writeError(w, err)
		return
	}

	var repairs []models.Repair
	err := h.db.WithContext(r.Context()).
		Where("vehicle_id = ?", vehicle.ID).
		Order("start_date DESC").
		Find(&repairs).Error
	if err != nil {
		writeError(w, err)
		return
	}
	views := make([]repairView, 0, len(repairs))
	for _, rep := range repairs {
		views = append(views, newRepairView(rep))
	}
	httpx.JSON(w, http.StatusOK, views)
}

type repairRequest struct {
	Description         string     `json:"description"`
	StartDate           *time.Time `json:"start_date"`
	CompletionDate      *time.Time `json:"completion_date"`
	Cost                float64    `json:"cost"`
	Status              string     `json:"status"`
	Mechanic            string     `json:"mechanic"`
	TechnicianID        *uint      `json:"technician_id"`
	PartsUsed           string     `json:"parts_used"`
	LaborHours          float64    `json:"labor_hours"`
	NextServiceEstimate *time.Time `json:"next_service_estimate"`
}

func (h *RepairHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, _, ok := principal(h.db, w, r)
	if !ok {
		return
	}
	if err := h.gate.Authorize(p, policy.ActionCreate, "repair", nil); err != nil {
		writeError(w, err)
		return
	}
	var vehicle models.Vehicle
	if err := h.db.WithContext(r.Context()).First(&vehicle, pathID(r, "vehicleID")).Error; err != nil {
		writeError(w, err)
		return
	}

	var req repairRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	v := make(validation.Violations)
	validation.Required("description", req.Description, v)
	validation.NonNegativeFloat("cost", req.Cost, v)
	validation.NonNegativeFloat("labor_hours", req.LaborHours, v)
	validation.OneOf("status", req.Status, models.RepairStatuses(), v)
	if !v.Empty() {
		httpx.JSONError(w, http.StatusUnprocessableEntity, "validation_failed", v)
		return
	}

	repair := models.Repair{
		VehicleID:           vehicle.ID,
		Description:         req.Description,
		StartDate:           time.Now(),
		CompletionDate:      req.CompletionDate,
		Cost:                req.Cost,
		Status:              models.RepairStatusScheduled,
		Mechanic:            req.Mechanic,
		TechnicianID:        req.TechnicianID,
		PartsUsed:           req.PartsUsed,
		LaborHours:          req.LaborHours,
		NextServiceEstimate: req.NextServiceEstimate,
	}
	if req.StartDate != nil {
		repair.StartDate = *req.StartDate
	}
	if req.Status != "" {
		repair.Status = models.RepairStatus(req.Status)
	}
	// a technician creating the repair is assigned to it by default
	if p.Role == models.RoleTechnician && repair.TechnicianID == nil {
		repair.TechnicianID = &p.ID
	}

	if err := h.db.WithContext(r.Context()).Create(&repair).Error; err != nil {
		writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, repair)
}

func (h *RepairHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, _, ok := principal(h.db, w, r)
	if !ok {
		return
	}
	var repair models.Repair
	err := h.db.WithContext(r.Context()).
		Preload("Vehicle").Preload("Invoice").
		First(&repair, pathID(r, "id")).Error
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.gate.Authorize(p, policy.ActionView, "repair", &repair); err != nil {
		writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newRepairView(repair))
}

func (h *RepairHandler) Update(w http.ResponseWriter, r *http.Request) {
	p, _, ok := principal(h.db, w, r)
	if !ok {
		return
	}
	var repair models.Repair
	if err := h.db.WithContext(r.Context()).Preload("Vehicle").First(&repair, pathID(r, "id")).Error; err != nil {
		writeError(w, err)
		return
	}
	if err := h.gate.Authorize(p, policy.ActionUpdate, "repair", &repair); err != nil {
		writeError(w, err)
		return
	}

	var req struct {
		Description         *string    `json:"description"`
		StartDate           *time.Time `json:"start_date"`
		CompletionDate      *time.Time `json:"completion_date"`
		Cost                *float64   `json:"cost"`
		Status              *string    `json:"status"`
		Mechanic            *string    `json:"mechanic"`
		TechnicianID        *uint      `json:"technician_id"`
		PartsUsed           *string    `json:"parts_used"`
		LaborHours          *float64   `json:"labor_hours"`
		NextServiceEstimate *time.Time `json:"next_service_estimate"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	v := make(validation.Violations)
	if req.Description != nil {
		validation.Required("description", *req.Description, v)
		repair.Description = *req.Description
	}
	if req.StartDate != nil {
		repair.StartDate = *req.StartDate
	}
	if req.CompletionDate != nil {
		repair.CompletionDate = req.CompletionDate
	}
	if req.Cost != nil {
		validation.NonNegativeFloat("cost", *req.Cost, v)
		repair.Cost = *req.Cost
	}
	if req.Status != nil {
		validation.OneOf("status", *req.Status, models.RepairStatuses(), v)
		if *req.Status != "" {
			repair.Status = models.RepairStatus(*req.Status)
		}
	}
	if req.Mechanic != nil {
		repair.Mechanic = *req.Mechanic
	}
	if req.TechnicianID != nil {
		repair.TechnicianID = req.TechnicianID
	}
	if req.PartsUsed != nil {
		repair.PartsUsed = *req.PartsUsed
	}
	if req.LaborHours != nil {
		validation.NonNegativeFloat("labor_hours", *req.LaborHours, v)
		repair.LaborHours = *req.LaborHours
	}
	if req.NextServiceEstimate != nil {
		repair.NextServiceEstimate = req.NextServiceEstimate
	}
	if !v.Empty() {
		httpx.JSONError(w, http.StatusUnprocessableEntity, "validation_failed", v)
		return
	}

	if err := h.db.WithContext(r.Context()).Save(&repair).Error; err != nil {
		writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newRepairView(repair))
}

func (h *RepairHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p, _, ok := principal(h.db, w, r)
	if !ok {
		return
	}
	var repair models.Repair
	if err := h.db.WithContext(r.Context()).Preload("Vehicle").First(&repair, pathID(r, "id")).Error; err != nil {
		writeError(w, err)
		return
	}
	if err := h.gate.Authorize(p, policy.ActionDelete, "repair", &repair); err != nil {
		writeError(w, err)
		return
	}
	// the invoice and its documents row cascade with the repair, so the
	// stored PDF has to be removed before the rows disappear
	var invoice models.Invoice
	if err := h.db.WithContext(r.Context()).Where("repair_id = ?", repair.ID).First(&invoice).Error; err == nil && h.store != nil {
		_ = h.store.Remove(invoice.ID)
	}
	if err := h.db.WithContext(r.Context()).Delete(&repair).Error; err != nil {
		writeError(w, err)
		return
	}
	httpx.NoContent(w)
}
