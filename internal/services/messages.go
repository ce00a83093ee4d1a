package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// WhatsApp list-message limits
const (
	maxListRows        = 10
	maxRowTitleLen     = 24
	maxRowDescLen      = 72
	maxButtonLabelLen  = 20
	maxSectionTitleLen = 24
)

var (
	// ErrInvalidOptionList is returned when a list breaks the WhatsApp limits
	ErrInvalidOptionList = errors.New("invalid option list")
	// ErrInteractiveUnsupported means the transport cannot render the list natively
	ErrInteractiveUnsupported = errors.New("interactive list not supported by transport")
)

// OptionRow is one selectable entry of an option list
type OptionRow struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// OptionSection groups rows under a heading
type OptionSection struct {
	Title string      `json:"title"`
	Rows  []OptionRow `json:"rows"`
}

// OptionList is an interactive list message with a plain-text fallback
type OptionList struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	ButtonLabel string          `json:"button_label"`
	Sections    []OptionSection `json:"sections"`
	ContentSID  string          `json:"content_sid,omitempty"` // approved Twilio list-picker template, if any
}

// Rows returns every row in display order
func (l OptionList) Rows() []OptionRow {
	var rows []OptionRow
	for _, s := range l.Sections {
		rows = append(rows, s.Rows...)
	}
	return rows
}

// Validate checks the list against the transport limits
func (l OptionList) Validate() error {
	rows := l.Rows()
	if len(rows) == 0 {
		return fmt.Errorf("%w: no rows", ErrInvalidOptionList)
	}
	if len(rows) > maxListRows {
		return fmt.Errorf("%w: %d rows exceeds %d", ErrInvalidOptionList, len(rows), maxListRows)
	}
	if l.ButtonLabel == "" || len([]rune(l.ButtonLabel)) > maxButtonLabelLen {
		return fmt.Errorf("%w: button label %q", ErrInvalidOptionList, l.ButtonLabel)
	}
	seen := make(map[string]bool, len(rows))
	for _, s := range l.Sections {
		if len([]rune(s.Title)) > maxSectionTitleLen {
			return fmt.Errorf("%w: section title %q too long", ErrInvalidOptionList, s.Title)
		}
	}
	for _, r := range rows {
		if r.ID == "" || seen[r.ID] {
			return fmt.Errorf("%w: missing or duplicate row id %q", ErrInvalidOptionList, r.ID)
		}
		seen[r.ID] = true
		if len([]rune(r.Title)) > maxRowTitleLen {
			return fmt.Errorf("%w: row title %q too long", ErrInvalidOptionList, r.Title)
		}
		if len([]rune(r.Description)) > maxRowDescLen {
			return fmt.Errorf("%w: row description for %q too long", ErrInvalidOptionList, r.ID)
		}
	}
	return nil
}

// RenderText renders the numbered plain-text fallback. The numbers match the
// row order so a typed "2" selects the second row.
func (l OptionList) RenderText() string {
	var b strings.Builder
	if l.Title != "" {
		b.WriteString("*" + l.Title + "*\n")
	}
	if l.Description != "" {
		b.WriteString(l.Description + "\n")
	}
	n := 0
	for _, s := range l.Sections {
		if s.Title != "" && len(l.Sections) > 1 {
			b.WriteString("\n_" + s.Title + "_\n")
		} else {
			b.WriteString("\n")
		}
		for _, r := range s.Rows {
			n++
			fmt.Fprintf(&b, "%d. %s", n, r.Title)
			if r.Description != "" {
				b.WriteString(" - " + r.Description)
			}
			b.WriteString("\n")
		}
	}
	b.WriteString("\nResponda com o número da opção.")
	return b.String()
}

// Sender delivers messages to a chat address. TwilioService and LogTransport
// are transports; Messenger wraps one of them with queueing and pacing.
type Sender interface {
	SendText(ctx context.Context, to, text string) error
	SendOptionList(ctx context.Context, to string, list OptionList) error
}
