package flows

import (
	"strconv"

	"github.com/Ananth-NQI/segurobot-backend/internal/services"
)

// Option is one choice of a menu step. Keywords are normalized phrases that
// select it from free text.
type Option struct {
	ID          string
	Title       string
	Description string
	Keywords    []string
}

// Menu is the option set a step offers, plus how it is presented
type Menu struct {
	Title       string
	Description string
	Button      string
	Section     string
	Options     []Option
}

// List renders the menu as an interactive option list
func (m Menu) List() services.OptionList {
	rows := make([]services.OptionRow, 0, len(m.Options))
	for _, o := range m.Options {
		rows = append(rows, services.OptionRow{ID: o.ID, Title: o.Title, Description: o.Description})
	}
	return services.OptionList{
		Title:       m.Title,
		Description: m.Description,
		ButtonLabel: m.Button,
		Sections:    []services.OptionSection{{Title: m.Section, Rows: rows}},
	}
}

// Match selects an option. A structured reply id wins; otherwise the row
// number of the text fallback, then the normalized title, then keywords.
func (m Menu) Match(in Input) (Option, bool) {
	if in.ReplyID != "" {
		for _, o := range m.Options {
			if o.ID == in.ReplyID {
				return o, true
			}
		}
	}
	if in.Text == "" {
		return Option{}, false
	}
	if n, err := strconv.Atoi(in.Text); err == nil {
		if n >= 1 && n <= len(m.Options) {
			return m.Options[n-1], true
		}
		return Option{}, false
	}
	for _, o := range m.Options {
		if Normalize(o.Title) == in.Text {
			return o, true
		}
	}
	for _, o := range m.Options {
		for _, k := range o.Keywords {
			if containsPhrase(in.Text, k) {
				return o, true
			}
		}
	}
	return Option{}, false
}
