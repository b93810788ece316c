package deckmerge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/brunobiangulo/deckmerge/assets"
	"github.com/brunobiangulo/deckmerge/pptx"
	"github.com/brunobiangulo/deckmerge/table"
)

// PPTXContentType is the MIME type of the generated deck.
const PPTXContentType = "application/vnd.openxmlformats-officedocument.presentationml.presentation"

// Engine generates slide decks from tabular product data and images.
type Engine interface {
	// Generate runs the whole pipeline once. It either returns a complete
	// deck or an error; partial output is never returned.
	Generate(ctx context.Context, in Input, opts ...GenerateOption) (*Result, error)

	// Placeholders lists the {Token} names of the template's first slide.
	// A nil template means the configured bundled template.
	Placeholders(template *File) ([]string, error)

	// Config returns the engine configuration.
	Config() Config
}

// File is an uploaded file: its client-side name and content.
type File struct {
	Name string
	Data []byte
}

// Input is everything a run needs besides configuration.
type Input struct {
	// Template is the uploaded template deck. Nil means the bundled
	// template at Config.TemplatePath.
	Template *File

	// Tables are the tabular data files, read in order.
	Tables []File

	// Images are the product images. Only the base filename is kept.
	Images []File
}

// Result is a finished deck.
type Result struct {
	Data     []byte        `json:"-"`
	Filename string        `json:"filename"`
	Slides   []SlideReport `json:"slides"`
	RunID    string        `json:"run_id"`
}

// SlideReport describes one generated slide.
type SlideReport struct {
	Item   string   `json:"item"`
	Images []string `json:"images,omitempty"`
}

// GenerateOption configures a single run.
type GenerateOption func(*generateOptions)

type generateOptions struct {
	imageHeightCm float64
	runID         string
}

// WithImageHeight overrides the picture height for this run.
func WithImageHeight(cm float64) GenerateOption {
	return func(o *generateOptions) { o.imageHeightCm = cm }
}

// WithRunID sets the id used in log lines and the result. By default a
// random UUID is generated.
func WithRunID(id string) GenerateOption {
	return func(o *generateOptions) { o.runID = id }
}

// engine is the concrete implementation of Engine.
type engine struct {
	cfg    Config
	tables *table.Registry
}

// New creates an engine with the given configuration.
func New(cfg Config) (Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &engine{cfg: cfg, tables: table.NewRegistry()}, nil
}

// Generate is a one-shot convenience around New and Engine.Generate.
func Generate(ctx context.Context, cfg Config, in Input, opts ...GenerateOption) (*Result, error) {
	e, err := New(cfg)
	if err != nil {
		return nil, err
	}
	return e.Generate(ctx, in, opts...)
}

func (e *engine) Config() Config { return e.cfg }

func (e *engine) Generate(ctx context.Context, in Input, opts ...GenerateOption) (*Result, error) {
	options := &generateOptions{imageHeightCm: e.cfg.ImageHeightCm}
	for _, o := range opts {
		o(options)
	}
	if options.imageHeightCm <= 0 {
		return nil, fmt.Errorf("%w: image height must be positive", ErrInvalidConfig)
	}
	if options.runID == "" {
		options.runID = uuid.NewString()
	}
	log := slog.With("run_id", options.runID)
	start := time.Now()

	if len(in.Tables) == 0 {
		return nil, ErrNoTables
	}
	templateData, err := e.templateData(in.Template)
	if err != nil {
		return nil, err
	}

	scratch, err := assets.NewScratch(e.cfg.ScratchDir)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := scratch.Close(); err != nil {
			log.Warn("removing scratch dir failed", "dir", scratch.Dir(), "error", err)
		}
	}()
	for _, img := range in.Images {
		if img.Name == "" {
			continue
		}
		if err := scratch.Write(img.Name, bytes.NewReader(img.Data)); err != nil {
			return nil, fmt.Errorf("storing image: %w", err)
		}
	}

	records, err := e.readRecords(ctx, in.Tables)
	if err != nil {
		return nil, err
	}
	log.Info("generate: tables read", "files", len(in.Tables), "rows", len(records),
		"images", len(in.Images))

	tmpl, err := pptx.OpenTemplate(templateData)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTemplate, err)
	}
	deck := pptx.NewDeck(tmpl)
	layout := stackLayout{
		slideW: tmpl.Width(),
		slideH: tmpl.Height(),
		height: pptx.Cm(options.imageHeightCm),
		margin: pptx.Cm(e.cfg.RightMarginCm),
	}
	exts := e.cfg.normalizedExtensions()

	res := &Result{
		Filename: e.cfg.OutputFilename,
		Slides:   make([]SlideReport, 0, len(records)),
		RunID:    options.runID,
	}
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		slide, err := deck.AddSlide()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidTemplate, err)
		}
		if err := slide.Substitute(fields(rec)); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidTemplate, err)
		}

		// An empty or missing item id is still a prefix: it selects every image.
		item, _ := rec.Get(e.cfg.ItemField)
		placed, err := placeImages(deck, slide, scratch, item, exts, layout)
		if err != nil {
			return nil, err
		}
		report := SlideReport{Item: item, Images: placed}
		log.Debug("generate: slide added", "slide", deck.SlideCount(), "item", item,
			"images", len(report.Images))
		res.Slides = append(res.Slides, report)
	}

	var buf bytes.Buffer
	if _, err := deck.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmitFailed, err)
	}
	res.Data = buf.Bytes()

	log.Info("generate: deck ready",
		"slides", deck.SlideCount(),
		"size", humanize.Bytes(uint64(len(res.Data))),
		"elapsed", time.Since(start).Round(time.Millisecond))
	return res, nil
}

func (e *engine) Placeholders(template *File) ([]string, error) {
	data, err := e.templateData(template)
	if err != nil {
		return nil, err
	}
	tmpl, err := pptx.OpenTemplate(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTemplate, err)
	}
	names, err := tmpl.Placeholders()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTemplate, err)
	}
	return names, nil
}

// templateData returns the uploaded template, or the bundled one when
// nothing was uploaded.
func (e *engine) templateData(upload *File) ([]byte, error) {
	if upload != nil && len(upload.Data) > 0 {
		return upload.Data, nil
	}
	if e.cfg.TemplatePath == "" {
		return nil, fmt.Errorf("%w: no template uploaded", ErrTemplateNotFound)
	}
	data, err := os.ReadFile(e.cfg.TemplatePath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, e.cfg.TemplatePath)
	}
	if err != nil {
		return nil, fmt.Errorf("reading template: %w", err)
	}
	return data, nil
}

// readRecords reads every table in order and normalizes the combined rows.
func (e *engine) readRecords(ctx context.Context, files []File) ([]table.Record, error) {
	tables := make([]*table.Table, 0, len(files))
	for _, f := range files {
		rd, err := e.tables.ForFile(f.Name)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, f.Name)
		}
		t, err := rd.Read(ctx, f.Name, bytes.NewReader(f.Data))
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("%w: %s: %v", ErrReadingTable, f.Name, err)
		}
		slog.Debug("generate: table read", "file", f.Name, "columns", len(t.Header), "rows", len(t.Rows))
		tables = append(tables, t)
	}
	return table.Normalize(table.Concat(tables...), table.Options{
		DimensionFields: e.cfg.DimensionFields,
	}), nil
}

// fields turns a record into placeholder substitutions, in column order.
func fields(rec table.Record) []pptx.Field {
	pairs := rec.Pairs()
	out := make([]pptx.Field, len(pairs))
	for i, p := range pairs {
		out[i] = pptx.Field{Name: p.Key, Value: p.Value}
	}
	return out
}

type stackLayout struct {
	slideW, slideH int64
	height, margin int64
}

// placeImages stacks every image matching item on the slide and returns
// the placed filenames.
func placeImages(deck *pptx.Deck, slide *pptx.Slide, scratch *assets.Scratch, item string, exts []string, l stackLayout) ([]string, error) {
	matches, err := scratch.Match(item, exts)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, nil
	}

	images := make([]*assets.Image, len(matches))
	sizes := make([]pptx.Size, len(matches))
	for i, a := range matches {
		img, err := a.Load()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnreadableImage, err)
		}
		images[i] = img
		sizes[i] = pptx.Size{Width: img.Width, Height: img.Height}
	}

	rects := pptx.Stack(l.slideW, l.slideH, l.height, l.margin, sizes)
	names := make([]string, len(images))
	for i, img := range images {
		pic := pptx.Picture{
			Name:        img.Name,
			Ext:         img.Ext,
			ContentType: assets.MIMEType(img.Ext),
			Data:        img.Data,
		}
		if err := deck.AddPicture(slide, pic, rects[i]); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEmitFailed, err)
		}
		names[i] = img.Name
	}
	return names, nil
}
