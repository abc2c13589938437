// Package catalog loads device templates grouped into categories and merges
// locally authored categories into them.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"racksum/internal/models"
)

var validate = validator.New()

// Category groups device templates
type Category struct {
	ID      string                  `json:"id" yaml:"id" validate:"required"`
	Name    string                  `json:"name" yaml:"name" validate:"required"`
	Devices []models.DeviceTemplate `json:"devices" yaml:"devices" validate:"dive"`
}

// Catalog is the document served by the catalog provider
type Catalog struct {
	Categories []Category `json:"categories" yaml:"categories" validate:"dive"`
}

// Load reads a catalog file. Files ending in .yaml or .yml are parsed as YAML,
// anything else as JSON. An empty path yields an empty catalog.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return &Catalog{Categories: []Category{}}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	format := "json"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		format = "yaml"
	}
	return Parse(data, format)
}

// Parse decodes and validates a catalog in the given format ("json" or "yaml")
func Parse(data []byte, format string) (*Catalog, error) {
	var c Catalog
	var err error
	if format == "yaml" {
		err = yaml.Unmarshal(data, &c)
	} else {
		err = json.Unmarshal(data, &c)
	}
	if err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if c.Categories == nil {
		c.Categories = []Category{}
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks every category and template
func (c *Catalog) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid catalog: %w", err)
	}
	return nil
}

// Merge returns base with custom categories folded in. A custom category whose
// name matches a base category case-insensitively contributes its devices to
// that category; otherwise it is appended. base is not modified.
func Merge(base *Catalog, custom []Category) *Catalog {
	out := &Catalog{Categories: make([]Category, 0, len(base.Categories)+len(custom))}
	byName := make(map[string]int, len(base.Categories))
	for _, c := range base.Categories {
		c.Devices = append([]models.DeviceTemplate{}, c.Devices...)
		byName[strings.ToLower(c.Name)] = len(out.Categories)
		out.Categories = append(out.Categories, c)
	}
	for _, c := range custom {
		key := strings.ToLower(c.Name)
		if i, ok := byName[key]; ok {
			out.Categories[i].Devices = append(out.Categories[i].Devices, c.Devices...)
			continue
		}
		c.Devices = append([]models.DeviceTemplate{}, c.Devices...)
		byName[key] = len(out.Categories)
		out.Categories = append(out.Categories, c)
	}
	return out
}

// Find returns the template with the given id
func (c *Catalog) Find(id string) (models.DeviceTemplate, bool) {
	for _, cat := range c.Categories {
		for _, d := range cat.Devices {
			if d.ID == id {
				return d, true
			}
		}
	}
	return models.DeviceTemplate{}, false
}

// Templates returns every template in category order
func (c *Catalog) Templates() []models.DeviceTemplate {
	var out []models.DeviceTemplate
	for _, cat := range c.Categories {
		out = append(out, cat.Devices...)
	}
	return out
}

// AddCustom adds a template to the named category of a custom category list,
// creating the category when needed
func AddCustom(custom []Category, categoryName string, d models.DeviceTemplate) ([]Category, error) {
	if d.Category == "" {
		d.Category = categoryName
	}
	if err := validate.Struct(d); err != nil {
		return custom, fmt.Errorf("invalid device template: %w", err)
	}
	for i := range custom {
		if strings.EqualFold(custom[i].Name, categoryName) {
			custom[i].Devices = append(custom[i].Devices, d)
			return custom, nil
		}
	}
	return append(custom, Category{
		ID:      "custom-" + strings.ReplaceAll(strings.ToLower(categoryName), " ", "-"),
		Name:    categoryName,
		Devices: []models.DeviceTemplate{d},
	}), nil
}
