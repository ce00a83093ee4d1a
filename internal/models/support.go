package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// SupportTicket tracks a request that a human broker must follow up on
type SupportTicket struct {
	gorm.Model
	TicketID    string     `gorm:"uniqueIndex;not null" json:"ticket_id"` // protocol number shown to the customer
	UserPhone   string     `gorm:"index;not null" json:"user_phone"`
	UserName    string     `json:"user_name"`
	IssueType   string     `json:"issue_type"` // claim, renewal, handoff
	NationalID  string     `json:"national_id,omitempty"`
	Description string     `json:"description"`
	Status      string     `gorm:"default:'open'" json:"status"` // open, in_progress, resolved, closed
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
}

const (
	IssueTypeClaim   = "claim"
	IssueTypeRenewal = "renewal"
	IssueTypeHandoff = "handoff"
)

const (
	TicketStatusOpen     = "open"
	TicketStatusResolved = "resolved"
)

func (st *SupportTicket) BeforeCreate(tx *gorm.DB) error {
	if st.TicketID == "" {
		st.TicketID = fmt.Sprintf("TK%d", time.Now().UnixNano())
	}
	if st.IssueType == "" {
		st.IssueType = IssueTypeHandoff
	}
	if st.Status == "" {
		st.Status = TicketStatusOpen
	}
	return nil
}
