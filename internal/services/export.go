package services

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Ananth-NQI/segurobot-backend/internal/models"
	"github.com/Ananth-NQI/segurobot-backend/internal/storage"
)

// Exporter receives each finalized quote intake exactly once
type Exporter interface {
	Export(ctx context.Context, record *models.QuoteRecord) error
}

// StoreExporter saves quote records through the storage layer
type StoreExporter struct {
	store storage.Store
}

func NewStoreExporter(store storage.Store) *StoreExporter {
	return &StoreExporter{store: store}
}

func (e *StoreExporter) Export(ctx context.Context, record *models.QuoteRecord) error {
	_, err := e.store.CreateQuote(record)
	return err
}

var csvHeader = []string{
	"timestamp", "name", "email", "phone", "national_id",
	"insurance_type", "vehicle_info", "postal_code", "notes",
}

// CSVExporter appends quote records to a spreadsheet-friendly CSV file
type CSVExporter struct {
	path string
	mu   sync.Mutex
}

func NewCSVExporter(path string) *CSVExporter {
	return &CSVExporter{path: path}
}

func (e *CSVExporter) Export(ctx context.Context, record *models.QuoteRecord) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(e.path), 0o755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}

	needHeader := false
	if info, err := os.Stat(e.path); errors.Is(err, os.ErrNotExist) || (err == nil && info.Size() == 0) {
		needHeader = true
	}

	f, err := os.OpenFile(e.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open export file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if needHeader {
		if err := w.Write(csvHeader); err != nil {
			return fmt.Errorf("failed to write csv header: %w", err)
		}
	}
	ts := record.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	row := []string{
		ts.Format(time.RFC3339),
		record.Name,
		record.Email,
		record.Phone,
		record.NationalID,
		record.InsuranceType,
		record.VehicleInfo,
		record.PostalCode,
		record.Notes,
	}
	if err := w.Write(row); err != nil {
		return fmt.Errorf("failed to write csv row: %w", err)
	}
	w.Flush()
	return w.Error()
}

// MultiExporter fans a record out to every sink and joins their errors
type MultiExporter []Exporter

func (m MultiExporter) Export(ctx context.Context, record *models.QuoteRecord) error {
	var errs []error
	for _, e := range m {
		if err := e.Export(ctx, record); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
