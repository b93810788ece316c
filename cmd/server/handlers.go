package main

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/brunobiangulo/deckmerge"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// Multipart field names of the upload form.
const (
	fieldTemplate = "template"
	fieldTables   = "tables"
	fieldImages   = "images"
)

type handler struct {
	engine    deckmerge.Engine
	cfg       deckmerge.Config
	downloads *downloadStore
}

func newHandler(e deckmerge.Engine) *handler {
	return &handler{engine: e, cfg: e.Config(), downloads: newDownloadStore(downloadTTL)}
}

func (h *handler) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", h.handleIndex)
	mux.HandleFunc("POST /generate", h.handleGenerateForm)
	mux.HandleFunc("POST /api/generate", h.handleGenerateAPI)
	mux.HandleFunc("GET /download/{token}", h.handleDownload)
	mux.HandleFunc("GET /health", h.handleHealth)
	return mux
}

// pageData feeds both HTML pages.
type pageData struct {
	AllowTemplateUpload bool
	ImageHeightCm       float64
	ItemField           string
	DimensionFields     []string
	Extensions          string
	Error               string

	// Confirmation page.
	Filename string
	Token    string
	Slides   int
	Size     string
}

func (h *handler) page() pageData {
	return pageData{
		AllowTemplateUpload: h.cfg.AllowTemplateUpload,
		ImageHeightCm:       h.cfg.ImageHeightCm,
		ItemField:           h.cfg.ItemField,
		DimensionFields:     h.cfg.DimensionFields,
		Extensions:          strings.Join(h.cfg.ImageExtensions, " "),
	}
}

// GET /
func (h *handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	h.render(w, http.StatusOK, "index.html", h.page())
}

// POST /generate
// Form submit: renders a confirmation page linking to a one-shot download.
func (h *handler) handleGenerateForm(w http.ResponseWriter, r *http.Request) {
	res, status, err := h.generate(w, r)
	if err != nil {
		data := h.page()
		data.Error = err.Error()
		h.render(w, status, "index.html", data)
		return
	}

	data := h.page()
	data.Filename = res.Filename
	data.Slides = len(res.Slides)
	data.Size = humanize.Bytes(uint64(len(res.Data)))
	data.Token = h.downloads.put(res.Filename, res.RunID, res.Data)
	h.render(w, http.StatusOK, "done.html", data)
}

// GET /download/{token}
// Serves a deck generated by the form once, then forgets it.
func (h *handler) handleDownload(w http.ResponseWriter, r *http.Request) {
	d, ok := h.downloads.take(r.PathValue("token"))
	if !ok {
		http.Error(w, "download expired or already fetched", http.StatusNotFound)
		return
	}
	writeDeck(w, d.filename, d.runID, d.data)
}

// POST /api/generate
// Same multipart fields as the form; responds with the deck itself.
func (h *handler) handleGenerateAPI(w http.ResponseWriter, r *http.Request) {
	res, status, err := h.generate(w, r)
	if err != nil {
		writeError(w, status, err.Error())
		return
	}

	writeDeck(w, res.Filename, res.RunID, res.Data)
}

func writeDeck(w http.ResponseWriter, filename, runID string, data []byte) {
	w.Header().Set("Content-Type", deckmerge.PPTXContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("X-Run-Id", runID)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// GET /health
func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"variant": h.cfg.Variant,
	})
}

// generate parses the upload form and runs the engine. On failure it
// returns the status code and a message safe to show to the client.
func (h *handler) generate(w http.ResponseWriter, r *http.Request) (*deckmerge.Result, int, error) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Minute)
	defer cancel()

	limit := h.cfg.MaxUploadMB << 20
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, http.StatusRequestEntityTooLarge,
				fmt.Errorf("upload exceeds %s", humanize.Bytes(uint64(limit)))
		}
		return nil, http.StatusBadRequest, errors.New("invalid request: expected a multipart form")
	}
	defer r.MultipartForm.RemoveAll()

	var in deckmerge.Input
	var err error
	if in.Tables, err = readUploads(r.MultipartForm, fieldTables); err != nil {
		slog.Error("reading uploaded tables", "error", err)
		return nil, http.StatusBadRequest, errors.New("failed to read uploaded tables")
	}
	if in.Images, err = readUploads(r.MultipartForm, fieldImages); err != nil {
		slog.Error("reading uploaded images", "error", err)
		return nil, http.StatusBadRequest, errors.New("failed to read uploaded images")
	}
	if h.cfg.AllowTemplateUpload {
		templates, err := readUploads(r.MultipartForm, fieldTemplate)
		if err != nil {
			slog.Error("reading uploaded template", "error", err)
			return nil, http.StatusBadRequest, errors.New("failed to read uploaded template")
		}
		if len(templates) > 0 {
			in.Template = &templates[0]
		}
	}

	res, err := h.engine.Generate(ctx, in)
	if err != nil {
		status, msg := classify(err)
		slog.Error("generate error", "tables", len(in.Tables), "images", len(in.Images),
			"status", status, "error", err)
		return nil, status, errors.New(msg)
	}

	slog.Info("deck generated", "run_id", res.RunID, "slides", len(res.Slides),
		"without_images", countWithoutImages(res.Slides))
	return res, http.StatusOK, nil
}

// classify maps pipeline errors to a status code and client message.
// Missing input is the client's fault; everything else stays generic.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, deckmerge.ErrNoTables):
		return http.StatusBadRequest, "please upload at least one table file"
	case errors.Is(err, deckmerge.ErrTemplateNotFound):
		return http.StatusBadRequest, "no template deck available"
	case errors.Is(err, deckmerge.ErrUnsupportedFormat):
		return http.StatusBadRequest, "unsupported table format"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "generation cancelled"
	default:
		return http.StatusInternalServerError, "generation failed"
	}
}

// readUploads reads every non-empty file of a multipart field. Only the
// base filename is kept.
func readUploads(form *multipart.Form, field string) ([]deckmerge.File, error) {
	var out []deckmerge.File
	for _, fh := range form.File[field] {
		// Browsers send an empty part when no file was chosen.
		if fh.Filename == "" {
			continue
		}
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", fh.Filename, err)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", fh.Filename, err)
		}
		// Sanitise filename to prevent path traversal.
		name := filepath.Base(strings.ReplaceAll(fh.Filename, "\\", "/"))
		out = append(out, deckmerge.File{Name: name, Data: data})
	}
	return out, nil
}

func countWithoutImages(slides []deckmerge.SlideReport) int {
	n := 0
	for _, s := range slides {
		if len(s.Images) == 0 {
			n++
		}
	}
	return n
}

func (h *handler) render(w http.ResponseWriter, status int, name string, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := pages.ExecuteTemplate(w, name, data); err != nil {
		slog.Error("rendering page", "page", name, "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
