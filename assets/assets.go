// Package assets materializes uploaded product images into a per-run
// scratch directory and selects them by item identifier.
package assets

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "golang.org/x/image/bmp"
)

// Scratch is a run-scoped directory holding uploaded images.
// Close removes it.
type Scratch struct {
	root   string
	images string
}

// NewScratch creates a fresh scratch directory under base
// (the OS temp dir when base is empty).
func NewScratch(base string) (*Scratch, error) {
	root, err := os.MkdirTemp(base, "deckmerge-*")
	if err != nil {
		return nil, fmt.Errorf("creating scratch dir: %w", err)
	}
	images := filepath.Join(root, "images")
	if err := os.MkdirAll(images, 0o755); err != nil {
		os.RemoveAll(root)
		return nil, fmt.Errorf("creating image dir: %w", err)
	}
	return &Scratch{root: root, images: images}, nil
}

// Dir returns the image directory.
func (s *Scratch) Dir() string { return s.images }

// Write stores an image under its base filename. A second write with the
// same name replaces the first.
func (s *Scratch) Write(name string, r io.Reader) error {
	// Sanitise filename to prevent path traversal.
	safe := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if safe == "" || safe == "." || safe == ".." || safe == "/" {
		return fmt.Errorf("invalid image filename %q", name)
	}

	dst, err := os.Create(filepath.Join(s.images, safe))
	if err != nil {
		return fmt.Errorf("creating %s: %w", safe, err)
	}
	if _, err := io.Copy(dst, r); err != nil {
		dst.Close()
		return fmt.Errorf("writing %s: %w", safe, err)
	}
	return dst.Close()
}

// Close removes the scratch directory and everything in it.
func (s *Scratch) Close() error {
	if err := os.RemoveAll(s.root); err != nil {
		return fmt.Errorf("removing scratch dir: %w", err)
	}
	return nil
}

// Asset is an image file in the scratch directory.
type Asset struct {
	Name string
	Path string
}

// Match returns the images whose filename starts with prefix and whose
// lower-cased extension is one of exts, sorted by filename. The test is a
// plain string prefix, so "123" also selects "1234.jpg".
func (s *Scratch) Match(prefix string, exts []string) ([]Asset, error) {
	entries, err := os.ReadDir(s.images)
	if err != nil {
		return nil, fmt.Errorf("listing images: %w", err)
	}

	var out []Asset
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasPrefix(name, prefix) || !hasExt(name, exts) {
			continue
		}
		out = append(out, Asset{Name: name, Path: filepath.Join(s.images, name)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func hasExt(name string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}

// Image is a loaded asset with its pixel dimensions.
type Image struct {
	Name   string
	Ext    string // lower case, with dot
	Data   []byte
	Width  int
	Height int
}

// Load reads the asset and decodes its dimensions.
func (a Asset) Load() (*Image, error) {
	data, err := os.ReadFile(a.Path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", a.Name, err)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", a.Name, err)
	}
	slog.Debug("assets: loaded image", "name", a.Name, "format", format,
		"width", cfg.Width, "height", cfg.Height)

	return &Image{
		Name:   a.Name,
		Ext:    strings.ToLower(filepath.Ext(a.Name)),
		Data:   data,
		Width:  cfg.Width,
		Height: cfg.Height,
	}, nil
}

// MIMEType returns the content type for an image extension.
func MIMEType(ext string) string {
	switch strings.ToLower(ext) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".bmp":
		return "image/bmp"
	default:
		return ""
	}
}
