package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/gorm"

	"github.com/phara0n/ecarv1/internal/models"
)

var ErrNotStored = errors.New("no document stored for invoice")

// Store keeps rendered invoice PDFs on the local filesystem, one file
// per invoice, with a documents row tracking each attachment.
type Store struct {
	dir string
	db  *gorm.DB
}

func New(dir string, db *gorm.DB) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create dir %s: %w", dir, err)
	}
	return &Store{dir: dir, db: db}, nil
}

// Put writes the PDF under the given name and upserts the invoice's
// documents row. Re-rendering an invoice replaces the previous file.
func (s *Store) Put(invoiceID uint, name string, data []byte) (*models.Document, error) {
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("storage: write %s: %w", path, err)
	}

	var doc models.Document
	err := s.db.Where("invoice_id = ?", invoiceID).First(&doc).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		doc = models.Document{
			InvoiceID: invoiceID,
			Name:      name,
			Path:      path,
			MimeType:  "application/pdf",
			Size:      int64(len(data)),
		}
		if err := s.db.Create(&doc).Error; err != nil {
			return nil, fmt.Errorf("storage: record document: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("storage: lookup document: %w", err)
	default:
		// name may change when the invoice is renumbered; drop the old file
		if doc.Name != name {
			_ = os.Remove(filepath.Join(s.dir, doc.Name))
		}
		doc.Name = name
		doc.Path = path
		doc.Size = int64(len(data))
		if err := s.db.Save(&doc).Error; err != nil {
			return nil, fmt.Errorf("storage: update document: %w", err)
		}
	}
	return &doc, nil
}

// Get returns the stored PDF bytes and its documents row, or
// ErrNotStored when the invoice has never been rendered.
func (s *Store) Get(invoiceID uint) (*models.Document, []byte, error) {
	var doc models.Document
	if err := s.db.Where("invoice_id = ?", invoiceID).First(&doc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrNotStored
		}
		return nil, nil, fmt.Errorf("storage: lookup document: %w", err)
	}
	data, err := os.ReadFile(doc.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, ErrNotStored
		}
		return nil, nil, fmt.Errorf("storage: read %s: %w", doc.Path, err)
	}
	return &doc, data, nil
}

// Remove deletes the invoice's file and documents row. Missing
// attachments are not an error.
func (s *Store) Remove(invoiceID uint) error {
	var doc models.Document
	if err := s.db.Where("invoice_id = ?", invoiceID).First(&doc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return fmt.Errorf("storage: lookup document: %w", err)
	}
	if err := os.Remove(doc.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("storage: remove %s: %w", doc.Path, err)
	}
	return s.db.Delete(&doc).Error
}
