package flows

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalogYAML []byte

// Intent is a global command recognized in any flow
type Intent string

const (
	IntentNone     Intent = ""
	IntentReset    Intent = "reset"
	IntentGreeting Intent = "greeting"
	IntentFarewell Intent = "farewell"
	IntentHuman    Intent = "human"
	IntentBack     Intent = "back"
)

// Global commands are checked in this order; the first match wins.
var intentPriority = []Intent{IntentReset, IntentGreeting, IntentFarewell, IntentHuman}

const (
	matchExact    = "exact"
	matchContains = "contains"
)

// IntentRule lists the phrases of one intent and how they are matched
type IntentRule struct {
	Match   string   `yaml:"match"`
	Phrases []string `yaml:"phrases"`
}

// CatalogOption is a selectable entry with free-text keywords
type CatalogOption struct {
	ID          string   `yaml:"id"`
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	Keywords    []string `yaml:"keywords"`
}

// Insurer is a partner carrier shown in the insurers directory
type Insurer struct {
	ID         string   `yaml:"id"`
	Name       string   `yaml:"name"`
	Website    string   `yaml:"website"`
	Assistance string   `yaml:"assistance"` // 24h assistance phone
	Lines      []string `yaml:"lines"`
}

// Catalog is the conversation vocabulary: command phrases, insurance types
// and the insurers directory.
type Catalog struct {
	CompanyName    string                `yaml:"company_name"`
	Intents        map[Intent]IntentRule `yaml:"intents"`
	InsuranceTypes []CatalogOption       `yaml:"insurance_types"`
	Insurers       []Insurer             `yaml:"insurers"`
}

// ParseCatalog decodes and validates a YAML catalog. Phrases and keywords are
// normalized once here.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if c.CompanyName == "" {
		return nil, fmt.Errorf("catalog: company_name is required")
	}
	for _, intent := range append(intentPriority, IntentBack) {
		rule, ok := c.Intents[intent]
		if !ok || len(rule.Phrases) == 0 {
			return nil, fmt.Errorf("catalog: intent %q has no phrases", intent)
		}
		if rule.Match == "" {
			rule.Match = matchExact
		}
		if rule.Match != matchExact && rule.Match != matchContains {
			return nil, fmt.Errorf("catalog: intent %q has unknown match mode %q", intent, rule.Match)
		}
		for i, p := range rule.Phrases {
			rule.Phrases[i] = Normalize(p)
		}
		c.Intents[intent] = rule
	}
	if len(c.InsuranceTypes) == 0 {
		return nil, fmt.Errorf("catalog: no insurance types")
	}
	for i := range c.InsuranceTypes {
		opt := &c.InsuranceTypes[i]
		if opt.ID == "" || opt.Title == "" {
			return nil, fmt.Errorf("catalog: insurance type %d needs id and title", i)
		}
		for j, k := range opt.Keywords {
			opt.Keywords[j] = Normalize(k)
		}
	}
	if len(c.Insurers) == 0 || len(c.Insurers) > 10 {
		return nil, fmt.Errorf("catalog: need between 1 and 10 insurers, got %d", len(c.Insurers))
	}
	for i, ins := range c.Insurers {
		if ins.ID == "" || ins.Name == "" {
			return nil, fmt.Errorf("catalog: insurer %d needs id and name", i)
		}
		if strings.TrimSpace(ins.Assistance) == "" {
			return nil, fmt.Errorf("catalog: insurer %q has no assistance phone", ins.ID)
		}
	}
	return &c, nil
}

// LoadCatalog reads a catalog from path, or returns the embedded default
// when path is empty.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return ParseCatalog(defaultCatalogYAML)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	return ParseCatalog(data)
}

// DefaultCatalog returns the embedded catalog and panics if it is broken
func DefaultCatalog() *Catalog {
	c, err := ParseCatalog(defaultCatalogYAML)
	if err != nil {
		panic(err)
	}
	return c
}

// Detect returns the global command carried by normalized text, if any
func (c *Catalog) Detect(text string) Intent {
	if text == "" {
		return IntentNone
	}
	for _, intent := range intentPriority {
		if c.matches(intent, text) {
			return intent
		}
	}
	return IntentNone
}

// IsBack reports whether normalized text asks for the previous step
func (c *Catalog) IsBack(text string) bool {
	return text != "" && c.matches(IntentBack, text)
}

func (c *Catalog) matches(intent Intent, text string) bool {
	rule := c.Intents[intent]
	for _, p := range rule.Phrases {
		if rule.Match == matchContains {
			if containsPhrase(text, p) {
				return true
			}
		} else if text == p {
			return true
		}
	}
	return false
}

// InsuranceType looks up an insurance type by id
func (c *Catalog) InsuranceType(id string) (CatalogOption, bool) {
	for _, t := range c.InsuranceTypes {
		if t.ID == id {
			return t, true
		}
	}
	return CatalogOption{}, false
}

// Insurer looks up a partner carrier by id
func (c *Catalog) Insurer(id string) (Insurer, bool) {
	for _, ins := range c.Insurers {
		if ins.ID == id {
			return ins, true
		}
	}
	return Insurer{}, false
}
