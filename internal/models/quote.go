package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Insurance types offered by the quote intake
const (
	InsuranceAuto     = "auto"
	InsuranceHome     = "residencial"
	InsuranceLife     = "vida"
	InsuranceBusiness = "empresarial"
	InsuranceTravel   = "viagem"
)

// QuoteRecord is the finalized output of one completed quote intake
type QuoteRecord struct {
	gorm.Model
	RecordID      string    `json:"record_id" gorm:"uniqueIndex;not null"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	Phone         string    `json:"phone" gorm:"index"`
	NationalID    string    `json:"national_id"`
	InsuranceType string    `json:"insurance_type"`
	VehicleInfo   string    `json:"vehicle_info"`
	PostalCode    string    `json:"postal_code"`
	Notes         string    `json:"notes"`
	Timestamp     time.Time `json:"timestamp"`
}

func (q *QuoteRecord) BeforeCreate(tx *gorm.DB) error {
	if q.RecordID == "" {
		q.RecordID = uuid.NewString()
	}
	if q.Timestamp.IsZero() {
		q.Timestamp = time.Now()
	}
	return nil
}
