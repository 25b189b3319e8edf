package db

import (
	"os"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/phara0n/ecarv1/internal/logger"
	"github.com/phara0n/ecarv1/internal/models"
)

type seedModel struct {
	name     string
	from, to int
}

// Brands and models popular on the Tunisian market.
var seedBrands = map[string][]seedModel{
	"Volkswagen": {
		{"Golf", 2005, 2023}, {"Polo", 2005, 2023}, {"Passat", 2005, 2023},
		{"Tiguan", 2008, 2023}, {"Caddy", 2005, 2023},
	},
	"Renault": {
		{"Clio", 2005, 2023}, {"Symbol", 2008, 2023}, {"Mégane", 2005, 2023},
		{"Duster", 2010, 2023}, {"Kadjar", 2015, 2023}, {"Captur", 2013, 2023},
	},
	"Peugeot": {
		{"208", 2012, 2023}, {"301", 2012, 2023}, {"3008", 2009, 2023},
		{"508", 2011, 2023}, {"2008", 2013, 2023},
	},
	"Citroën": {
		{"C3", 2005, 2023}, {"C4", 2005, 2023}, {"Berlingo", 2005, 2023},
	},
	"Toyota": {
		{"Yaris", 2005, 2023}, {"Corolla", 2005, 2023}, {"Hilux", 2005, 2023},
		{"RAV4", 2006, 2023},
	},
	"Kia": {
		{"Picanto", 2005, 2023}, {"Rio", 2005, 2023}, {"Sportage", 2005, 2023},
	},
	"Hyundai": {
		{"i10", 2008, 2023}, {"i20", 2009, 2023}, {"Accent", 2005, 2023},
		{"Tucson", 2005, 2023},
	},
}

// Seed inserts reference data: the vehicle brand catalogue and, when
// ADMIN_EMAIL/ADMIN_PASSWORD are set, an initial admin account.
func Seed(db *gorm.DB) {
	log := logger.WithComponent("db")
	for name, seedModels := range seedBrands {
		var brand models.Brand
		if err := db.Where("name = ?", name).First(&brand).Error; err == gorm.ErrRecordNotFound {
			brand = models.Brand{Name: name}
			if err := db.Create(&brand).Error; err != nil {
				log.Warn().Err(err).Str("brand", name).Msg("seed brand failed")
				continue
			}
		}
		for _, sm := range seedModels {
			var existing models.BrandModel
			err := db.Where("brand_id = ? AND name = ?", brand.ID, sm.name).First(&existing).Error
			if err == gorm.ErrRecordNotFound {
				db.Create(&models.BrandModel{BrandID: brand.ID, Name: sm.name, FromYear: sm.from, ToYear: sm.to})
			}
		}
	}

	email := os.Getenv("ADMIN_EMAIL")
	pass := os.Getenv("ADMIN_PASSWORD")
	if email == "" || pass == "" {
		return
	}
	var count int64
	db.Model(&models.Customer{}).Where("email = ?", email).Count(&count)
	if count > 0 {
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pass), bcrypt.DefaultCost)
	if err != nil {
		log.Error().Err(err).Msg("hash admin password")
		return
	}
	admin := models.Customer{
		Name:         "Administrateur",
		Email:        email,
		Phone:        "-",
		PasswordHash: string(hash),
		Role:         models.RoleAdmin,
	}
	if err := db.Create(&admin).Error; err != nil {
		log.Error().Err(err).Msg("seed admin failed")
		return
	}
	log.Info().Str("email", email).Msg("seeded admin account")
}
