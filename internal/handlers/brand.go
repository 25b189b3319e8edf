package handlers

import (
	"net/http"

	"gorm.io/gorm"

	"github.com/phara0n/ecarv1/internal/httpx"
	"github.com/phara0n/ecarv1/internal/models"
)

type BrandHandler struct {
	db *gorm.DB
}

func NewBrandHandler(db *gorm.DB) *BrandHandler {
	return &BrandHandler{db: db}
}

// List returns the seeded brand catalogue with models, for pickers.
// Any authenticated principal may read it.
func (h *BrandHandler) List(w http.ResponseWriter, r *http.Request) {
	if _, _, ok := principal(h.db, w, r); !ok {
		return
	}
	var brands []models.Brand
	err := h.db.WithContext(r.Context()).
		Preload("Models", func(db *gorm.DB) *gorm.DB { return db.Order("name") }).
		Order("name").
		Find(&brands).Error
	if err != nil {
		writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, brands)
}
