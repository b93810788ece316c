package deckmerge

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for a deck generation run.
type Config struct {
	// Variant names the preset the rest of the fields started from.
	// It is informational once the config is built; see Variants.
	Variant string `json:"variant" yaml:"variant"`

	// TemplatePath is the bundled template deck used when no template is
	// uploaded with the run.
	TemplatePath string `json:"template_path" yaml:"template_path"`

	// AllowTemplateUpload makes the form offer a template upload control.
	// An uploaded template always wins over TemplatePath.
	AllowTemplateUpload bool `json:"allow_template_upload" yaml:"allow_template_upload"`

	// Picture layout, in centimeters.
	ImageHeightCm float64 `json:"image_height_cm" yaml:"image_height_cm"`
	RightMarginCm float64 `json:"right_margin_cm" yaml:"right_margin_cm"`

	// ItemField is the column whose value prefixes image filenames.
	ItemField string `json:"item_field" yaml:"item_field"`

	// DimensionFields are converted from inches to centimeters. Header
	// matching is exact: case and whitespace sensitive.
	DimensionFields []string `json:"dimension_fields" yaml:"dimension_fields"`

	// ImageExtensions are the recognized image extensions, lower case with
	// the leading dot.
	ImageExtensions []string `json:"image_extensions" yaml:"image_extensions"`

	OutputFilename string `json:"output_filename" yaml:"output_filename"`

	// ScratchDir is the parent of per-run scratch directories.
	// Empty means the OS temp dir.
	ScratchDir string `json:"scratch_dir" yaml:"scratch_dir"`

	// MaxUploadMB bounds a multipart form in the HTTP server.
	MaxUploadMB int64 `json:"max_upload_mb" yaml:"max_upload_mb"`
}

const (
	VariantBundled   = "bundled"
	VariantBundled14 = "bundled-14"
	VariantUpload    = "upload"
)

// DefaultConfig returns the bundled-template configuration: a fixed
// 1.pptx next to the binary and 18cm pictures.
func DefaultConfig() Config {
	return Config{
		Variant:       VariantBundled,
		TemplatePath:  "1.pptx",
		ImageHeightCm: 18,
		RightMarginCm: 3,
		ItemField:     "ITEM#",
		DimensionFields: []string{
			"Item Width (inch)",
			"Item Depth (inch)",
			"Item Height (inch)",
		},
		ImageExtensions: []string{".jpg", ".jpeg", ".png", ".bmp", ".gif"},
		OutputFilename:  "output.pptx",
		MaxUploadMB:     200,
	}
}

// Variants returns the named presets. They differ only in template source,
// picture height and the spelling of the width header.
func Variants() map[string]Config {
	bundled := DefaultConfig()

	bundled14 := DefaultConfig()
	bundled14.Variant = VariantBundled14
	bundled14.ImageHeightCm = 14

	upload := DefaultConfig()
	upload.Variant = VariantUpload
	upload.TemplatePath = ""
	upload.AllowTemplateUpload = true
	upload.ImageHeightCm = 14
	upload.DimensionFields = []string{
		"Item Width(Inch)",
		"Item Depth (inch)",
		"Item Height (inch)",
	}

	return map[string]Config{
		VariantBundled:   bundled,
		VariantBundled14: bundled14,
		VariantUpload:    upload,
	}
}

// VariantNames returns the preset names in sorted order.
func VariantNames() []string {
	v := Variants()
	names := make([]string, 0, len(v))
	for name := range v {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ConfigForVariant returns the preset with the given name.
func ConfigForVariant(name string) (Config, error) {
	cfg, ok := Variants()[name]
	if !ok {
		return Config{}, fmt.Errorf("%w: unknown variant %q", ErrInvalidConfig, name)
	}
	return cfg, nil
}

// LoadConfig reads a YAML (.yaml, .yml) or JSON config file. When the file
// names a variant, that preset supplies every field the file leaves out.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}

	unmarshal := json.Unmarshal
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		unmarshal = yaml.Unmarshal
	}

	var head struct {
		Variant string `json:"variant" yaml:"variant"`
	}
	if err := unmarshal(data, &head); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}

	cfg := DefaultConfig()
	if head.Variant != "" {
		if cfg, err = ConfigForVariant(head.Variant); err != nil {
			return Config{}, err
		}
	}
	if err := unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from DECKMERGE_* environment variables.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("DECKMERGE_TEMPLATE_PATH"); v != "" {
		c.TemplatePath = v
	}
	if v := os.Getenv("DECKMERGE_ALLOW_TEMPLATE_UPLOAD"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: DECKMERGE_ALLOW_TEMPLATE_UPLOAD: %v", ErrInvalidConfig, err)
		}
		c.AllowTemplateUpload = b
	}
	if v := os.Getenv("DECKMERGE_IMAGE_HEIGHT_CM"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%w: DECKMERGE_IMAGE_HEIGHT_CM: %v", ErrInvalidConfig, err)
		}
		c.ImageHeightCm = f
	}
	if v := os.Getenv("DECKMERGE_RIGHT_MARGIN_CM"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%w: DECKMERGE_RIGHT_MARGIN_CM: %v", ErrInvalidConfig, err)
		}
		c.RightMarginCm = f
	}
	if v := os.Getenv("DECKMERGE_SCRATCH_DIR"); v != "" {
		c.ScratchDir = v
	}
	if v := os.Getenv("DECKMERGE_OUTPUT_FILENAME"); v != "" {
		c.OutputFilename = v
	}
	return nil
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	switch {
	case c.ImageHeightCm <= 0:
		return fmt.Errorf("%w: image_height_cm must be positive", ErrInvalidConfig)
	case c.RightMarginCm < 0:
		return fmt.Errorf("%w: right_margin_cm must not be negative", ErrInvalidConfig)
	case c.ItemField == "":
		return fmt.Errorf("%w: item_field is required", ErrInvalidConfig)
	case len(c.ImageExtensions) == 0:
		return fmt.Errorf("%w: image_extensions is empty", ErrInvalidConfig)
	case c.OutputFilename == "":
		return fmt.Errorf("%w: output_filename is required", ErrInvalidConfig)
	case c.TemplatePath == "" && !c.AllowTemplateUpload:
		return fmt.Errorf("%w: template_path is required when uploads are disabled", ErrInvalidConfig)
	}
	for _, ext := range c.ImageExtensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("%w: image extension %q must start with a dot", ErrInvalidConfig, ext)
		}
	}
	return nil
}

// normalizedExtensions lower-cases the configured extensions.
func (c Config) normalizedExtensions() []string {
	out := make([]string, len(c.ImageExtensions))
	for i, ext := range c.ImageExtensions {
		out[i] = strings.ToLower(ext)
	}
	return out
}
