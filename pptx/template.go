// Package pptx clones a template slide per record, fills its placeholder
// tokens, places pictures and writes the finished presentation package.
package pptx

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
)

const (
	contentTypesPath = "[Content_Types].xml"
	rootRelsPath     = "_rels/.rels"
	appPropsPath     = "docProps/app.xml"

	slideContentType = "application/vnd.openxmlformats-officedocument.presentationml.slide+xml"

	// Default slide size of a new presentation (10in x 7.5in).
	defaultSlideWidth  = 9144000
	defaultSlideHeight = 6858000
)

// Relationship types are matched by suffix so that strict-conformance
// packages (purl.oclc.org namespaces) work too.
const (
	relOfficeDocument = "/officeDocument"
	relSlide          = "/slide"
	relNotesSlide     = "/notesSlide"
	relComments       = "/comments"
	relImage          = "/image"

	relImageType = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/image"
	relSlideType = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/slide"
)

// relationships represents a .rels part.
type relationships struct {
	XMLName xml.Name       `xml:"http://schemas.openxmlformats.org/package/2006/relationships Relationships"`
	Rels    []relationship `xml:"Relationship"`
}

type relationship struct {
	ID         string `xml:"Id,attr"`
	Type       string `xml:"Type,attr"`
	Target     string `xml:"Target,attr"`
	TargetMode string `xml:"TargetMode,attr,omitempty"`
}

func (r relationship) is(suffix string) bool { return strings.HasSuffix(r.Type, suffix) }

// contentTypes represents [Content_Types].xml.
type contentTypes struct {
	XMLName   xml.Name     `xml:"http://schemas.openxmlformats.org/package/2006/content-types Types"`
	Defaults  []ctDefault  `xml:"Default"`
	Overrides []ctOverride `xml:"Override"`
}

type ctDefault struct {
	Extension   string `xml:"Extension,attr"`
	ContentType string `xml:"ContentType,attr"`
}

type ctOverride struct {
	PartName    string `xml:"PartName,attr"`
	ContentType string `xml:"ContentType,attr"`
}

// presentation is the subset of presentation.xml needed to find slides.
type presentation struct {
	SldIDs []struct {
		RID string `xml:"http://schemas.openxmlformats.org/officeDocument/2006/relationships id,attr"`
	} `xml:"sldIdLst>sldId"`
	SldSz *struct {
		CX int64 `xml:"cx,attr"`
		CY int64 `xml:"cy,attr"`
	} `xml:"sldSz"`
}

// Template is an opened template deck. Its first slide is the clone
// source for every generated slide.
type Template struct {
	files []*zip.File
	index map[string]*zip.File

	presPath     string
	presRelsPath string
	presXML      []byte
	presRels     relationships
	types        contentTypes

	slidePath string
	slideXML  []byte
	slideRels []relationship

	width, height int64

	// dropped holds template parts that are not carried into the output:
	// the template's own slides and their notes and comments.
	dropped map[string]bool
}

// OpenTemplate reads a .pptx package.
func OpenTemplate(data []byte) (*Template, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("opening PPTX: %w", err)
	}

	t := &Template{
		files:   zr.File,
		index:   make(map[string]*zip.File, len(zr.File)),
		dropped: make(map[string]bool),
	}
	for _, f := range zr.File {
		t.index[f.Name] = f
	}

	ctData, err := t.read(contentTypesPath)
	if err != nil {
		return nil, err
	}
	if err := xml.Unmarshal(ctData, &t.types); err != nil {
		return nil, fmt.Errorf("parsing content types: %w", err)
	}

	t.presPath = "ppt/presentation.xml"
	if rootRels, err := t.readRels(rootRelsPath); err == nil {
		for _, rel := range rootRels.Rels {
			if rel.is(relOfficeDocument) {
				t.presPath = strings.TrimPrefix(rel.Target, "/")
				break
			}
		}
	}
	if t.presXML, err = t.read(t.presPath); err != nil {
		return nil, err
	}
	t.presRelsPath = relsPathFor(t.presPath)
	if t.presRels, err = t.readRels(t.presRelsPath); err != nil {
		return nil, err
	}

	var pres presentation
	if err := xml.Unmarshal(t.presXML, &pres); err != nil {
		return nil, fmt.Errorf("parsing presentation: %w", err)
	}
	t.width, t.height = defaultSlideWidth, defaultSlideHeight
	if pres.SldSz != nil && pres.SldSz.CX > 0 && pres.SldSz.CY > 0 {
		t.width, t.height = pres.SldSz.CX, pres.SldSz.CY
	}
	if len(pres.SldIDs) == 0 {
		return nil, fmt.Errorf("template has no slides")
	}

	targets := make(map[string]string, len(t.presRels.Rels))
	for _, rel := range t.presRels.Rels {
		if rel.is(relSlide) {
			targets[rel.ID] = resolvePart(t.presPath, rel.Target)
		}
	}
	first, ok := targets[pres.SldIDs[0].RID]
	if !ok {
		return nil, fmt.Errorf("first slide relationship %q not found", pres.SldIDs[0].RID)
	}
	t.slidePath = first

	for _, slidePath := range targets {
		if err := t.dropSlide(slidePath); err != nil {
			return nil, err
		}
	}

	if t.slideXML, err = t.read(t.slidePath); err != nil {
		return nil, err
	}
	if rels, err := t.readRels(relsPathFor(t.slidePath)); err == nil {
		for _, rel := range rels.Rels {
			if rel.is(relNotesSlide) || rel.is(relComments) {
				continue
			}
			t.slideRels = append(t.slideRels, rel)
		}
	}
	return t, nil
}

// dropSlide marks a template slide, its relationships part and its notes
// and comments parts as not copied to the output.
func (t *Template) dropSlide(slidePath string) error {
	t.dropped[slidePath] = true
	relsPath := relsPathFor(slidePath)
	if _, ok := t.index[relsPath]; !ok {
		return nil
	}
	t.dropped[relsPath] = true
	rels, err := t.readRels(relsPath)
	if err != nil {
		return err
	}
	for _, rel := range rels.Rels {
		if rel.TargetMode == "External" || !(rel.is(relNotesSlide) || rel.is(relComments)) {
			continue
		}
		part := resolvePart(slidePath, rel.Target)
		t.dropped[part] = true
		t.dropped[relsPathFor(part)] = true
	}
	return nil
}

// Width and Height return the slide size in EMU.
func (t *Template) Width() int64  { return t.width }
func (t *Template) Height() int64 { return t.height }

// Placeholders returns the distinct {Token} names found in the template
// slide's text runs, sorted.
func (t *Template) Placeholders() ([]string, error) {
	seen := make(map[string]bool)
	_, err := rewriteRuns(t.slideXML, func(text string) string {
		for _, tok := range tokensIn(text) {
			seen[tok] = true
		}
		return text
	})
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(seen))
	for tok := range seen {
		out = append(out, tok)
	}
	sort.Strings(out)
	return out, nil
}

func (t *Template) read(name string) ([]byte, error) {
	f, ok := t.index[name]
	if !ok {
		return nil, fmt.Errorf("missing part %s", name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	return data, nil
}

func (t *Template) readRels(name string) (relationships, error) {
	var rels relationships
	data, err := t.read(name)
	if err != nil {
		return rels, err
	}
	if err := xml.Unmarshal(data, &rels); err != nil {
		return rels, fmt.Errorf("parsing %s: %w", name, err)
	}
	return rels, nil
}

// relsPathFor returns the relationships part of a part:
// ppt/slides/slide1.xml -> ppt/slides/_rels/slide1.xml.rels.
func relsPathFor(part string) string {
	return path.Join(path.Dir(part), "_rels", path.Base(part)+".rels")
}

// resolvePart resolves a relationship target against its source part.
func resolvePart(source, target string) string {
	if strings.HasPrefix(target, "/") {
		return strings.TrimPrefix(target, "/")
	}
	return path.Join(path.Dir(source), target)
}
