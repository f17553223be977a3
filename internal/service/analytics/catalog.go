package analytics

import (
	_ "embed"
	"fmt"
	"slices"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var catalogYAML []byte

// Catalog lists accepted events, field limits and geo headers
type Catalog struct {
	Events     []string `yaml:"events"`
	Limits     Limits   `yaml:"limits"`
	GeoHeaders []string `yaml:"geo_headers"`
}

// Limits are maximum field lengths in characters
type Limits struct {
	EventName      int `yaml:"event_name"`
	InstallationID int `yaml:"installation_id"`
	SessionID      int `yaml:"session_id"`
	AppVersion     int `yaml:"app_version"`
	Platform       int `yaml:"platform"`
	Props          int `yaml:"props"`
}

// LoadCatalog parses the embedded catalog
func LoadCatalog() (*Catalog, error) {
	return ParseCatalog(catalogYAML)
}

// ParseCatalog parses a catalog document
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse event catalog: %w", err)
	}
	if len(c.Events) == 0 {
		return nil, fmt.Errorf("event catalog lists no events")
	}
	return &c, nil
}

// Allowed reports whether name is an accepted event
func (c *Catalog) Allowed(name string) bool {
	return slices.Contains(c.Events, name)
}
