package pptx

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"regexp"
	"strconv"
	"strings"
)

// sectionsExtURI identifies the PowerPoint 2010 section list extension,
// which lists slide ids and would point at removed slides.
const sectionsExtURI = "{521415D9-36F7-43E2-AB2F-B90AF26B5E84}"

// Picture is an image to embed in a slide.
type Picture struct {
	Name        string // source filename, used for de-duplication and alt text
	Ext         string // lower case, with dot
	ContentType string
	Data        []byte
}

// Deck is the presentation being assembled from a template. It reuses
// the template package (masters, layouts, theme, slide size) and replaces
// the template's slides with the generated ones.
type Deck struct {
	tmpl   *Template
	slides []*Slide

	media     map[string]string // picture name -> part path
	mediaData map[string][]byte // part path -> bytes
	mediaPath []string          // insertion order
	exts      map[string]string // extension without dot -> content type
}

// NewDeck starts an empty deck on top of a template.
func NewDeck(t *Template) *Deck {
	return &Deck{
		tmpl:      t,
		media:     make(map[string]string),
		mediaData: make(map[string][]byte),
		exts:      make(map[string]string),
	}
}

func (d *Deck) Width() int64  { return d.tmpl.width }
func (d *Deck) Height() int64 { return d.tmpl.height }

// SlideCount returns the number of generated slides.
func (d *Deck) SlideCount() int { return len(d.slides) }

// AddSlide appends a deep copy of the template slide.
func (d *Deck) AddSlide() (*Slide, error) {
	s, err := newSlide(d.tmpl)
	if err != nil {
		return nil, err
	}
	d.slides = append(d.slides, s)
	return s, nil
}

// AddPicture embeds pic in slide s at r. Pictures with the same name are
// stored once per deck.
func (d *Deck) AddPicture(s *Slide, pic Picture, r Rect) error {
	part, ok := d.media[pic.Name]
	if !ok {
		ext := strings.ToLower(pic.Ext)
		for n := len(d.mediaPath) + 1; ; n++ {
			part = fmt.Sprintf("ppt/media/deckmerge%d%s", n, ext)
			if _, clash := d.tmpl.index[part]; !clash {
				break
			}
		}
		d.media[pic.Name] = part
		d.mediaData[part] = pic.Data
		d.mediaPath = append(d.mediaPath, part)
		if pic.ContentType != "" {
			d.exts[strings.TrimPrefix(ext, ".")] = pic.ContentType
		}
	}

	slideDir := path.Dir(d.tmpl.slidePath)
	target, err := relTarget(slideDir, part)
	if err != nil {
		return err
	}
	relID := s.addRel(relImageType, target)
	return s.insertPicture(relID, pic.Name, r)
}

// relTarget makes part relative to dir (both package paths).
func relTarget(dir, part string) (string, error) {
	from := strings.Split(dir, "/")
	to := strings.Split(part, "/")
	i := 0
	for i < len(from) && i < len(to)-1 && from[i] == to[i] {
		i++
	}
	var b strings.Builder
	for j := i; j < len(from); j++ {
		if from[j] == "" || from[j] == "." {
			continue
		}
		b.WriteString("../")
	}
	b.WriteString(strings.Join(to[i:], "/"))
	if b.Len() == 0 {
		return "", fmt.Errorf("empty relationship target for %s", part)
	}
	return b.String(), nil
}

func (d *Deck) slidePath(i int) string {
	return path.Join(path.Dir(d.tmpl.slidePath), fmt.Sprintf("slide%d.xml", i+1))
}

// WriteTo writes the finished package.
func (d *Deck) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	zw := zip.NewWriter(cw)

	slideRelIDs := d.slideRelIDs()

	types, err := d.contentTypes()
	if err != nil {
		return cw.n, err
	}
	pres, err := d.presentationXML(slideRelIDs)
	if err != nil {
		return cw.n, err
	}
	presRels, err := d.presentationRels(slideRelIDs)
	if err != nil {
		return cw.n, err
	}

	replaced := map[string][]byte{
		contentTypesPath:    types,
		d.tmpl.presPath:     pres,
		d.tmpl.presRelsPath: presRels,
	}
	if app, err := d.tmpl.read(appPropsPath); err == nil {
		if app, err = setSlideCount(app, len(d.slides)); err == nil {
			replaced[appPropsPath] = app
		}
	}

	generated := make(map[string]bool, 2*len(d.slides)+len(d.mediaPath))
	for i := range d.slides {
		generated[d.slidePath(i)] = true
		generated[relsPathFor(d.slidePath(i))] = true
	}
	for _, part := range d.mediaPath {
		generated[part] = true
	}

	if err := writePart(zw, contentTypesPath, types); err != nil {
		return cw.n, err
	}
	for _, f := range d.tmpl.files {
		if f.Name == contentTypesPath || d.tmpl.dropped[f.Name] || generated[f.Name] {
			continue
		}
		if data, ok := replaced[f.Name]; ok {
			if err := writePart(zw, f.Name, data); err != nil {
				return cw.n, err
			}
			continue
		}
		if err := zw.Copy(f); err != nil {
			return cw.n, fmt.Errorf("copying %s: %w", f.Name, err)
		}
	}

	for i, s := range d.slides {
		name := d.slidePath(i)
		if err := writePart(zw, name, s.xml); err != nil {
			return cw.n, err
		}
		rels, err := marshalRels(relationships{Rels: s.rels})
		if err != nil {
			return cw.n, err
		}
		if err := writePart(zw, relsPathFor(name), rels); err != nil {
			return cw.n, err
		}
	}
	for _, part := range d.mediaPath {
		if err := writePart(zw, part, d.mediaData[part]); err != nil {
			return cw.n, err
		}
	}

	if err := zw.Close(); err != nil {
		return cw.n, fmt.Errorf("closing package: %w", err)
	}
	return cw.n, nil
}

// slideRelIDs allocates presentation relationship ids for the new slides,
// above every id the presentation part already uses.
func (d *Deck) slideRelIDs() []string {
	next := 0
	for _, rel := range d.tmpl.presRels.Rels {
		if n, err := strconv.Atoi(strings.TrimPrefix(rel.ID, "rId")); err == nil && n > next {
			next = n
		}
	}
	ids := make([]string, len(d.slides))
	for i := range ids {
		next++
		ids[i] = "rId" + strconv.Itoa(next)
	}
	return ids
}

func (d *Deck) presentationRels(ids []string) ([]byte, error) {
	out := relationships{}
	for _, rel := range d.tmpl.presRels.Rels {
		if rel.is(relSlide) {
			continue
		}
		out.Rels = append(out.Rels, rel)
	}
	for i, id := range ids {
		target, err := relTarget(path.Dir(d.tmpl.presPath), d.slidePath(i))
		if err != nil {
			return nil, err
		}
		out.Rels = append(out.Rels, relationship{ID: id, Type: relSlideType, Target: target})
	}
	return marshalRels(out)
}

var relPrefixRe = regexp.MustCompile(`([A-Za-z_][\w.-]*):id=`)

// presentationXML rewrites the slide id list and drops the section and
// custom show lists, which reference the template's slide ids.
func (d *Deck) presentationXML(ids []string) ([]byte, error) {
	data := append([]byte(nil), d.tmpl.presXML...)

	lst, ok, err := findElement(data, named(nsP, "sldIdLst"))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("presentation has no slide list")
	}
	p := prefixOf(lst.QName)
	if p != "" {
		p += ":"
	}
	r := "r"
	if m := relPrefixRe.FindSubmatch(data[lst.InnerStart:lst.InnerEnd]); m != nil {
		r = string(m[1])
	}

	var b strings.Builder
	b.WriteString("<" + lst.QName + ">")
	for i, id := range ids {
		fmt.Fprintf(&b, `<%ssldId id="%d" %s:id="%s"/>`, p, 256+i, r, id)
	}
	b.WriteString("</" + lst.QName + ">")
	if len(ids) == 0 {
		// An empty list is not allowed; omit the element.
		b.Reset()
	}
	data = splice(data, lst.Start, lst.End, []byte(b.String()))

	for _, match := range []elementMatcher{
		func(_ []xml.Name, se xml.StartElement) bool {
			if se.Name.Local != "ext" {
				return false
			}
			for _, a := range se.Attr {
				if a.Name.Local == "uri" && a.Value == sectionsExtURI {
					return true
				}
			}
			return false
		},
		named(nsP, "custShowLst"),
	} {
		sp, ok, err := findElement(data, match)
		if err != nil {
			return nil, err
		}
		if ok {
			data = splice(data, sp.Start, sp.End, nil)
		}
	}
	return data, nil
}

func (d *Deck) contentTypes() ([]byte, error) {
	out := contentTypes{XMLName: d.tmpl.types.XMLName}
	out.Defaults = append(out.Defaults, d.tmpl.types.Defaults...)
	for _, o := range d.tmpl.types.Overrides {
		if d.tmpl.dropped[strings.TrimPrefix(o.PartName, "/")] {
			continue
		}
		out.Overrides = append(out.Overrides, o)
	}

	have := make(map[string]bool, len(out.Defaults))
	for _, def := range out.Defaults {
		have[strings.ToLower(def.Extension)] = true
	}
	for _, part := range d.mediaPath {
		ext := strings.TrimPrefix(path.Ext(part), ".")
		ct, ok := d.exts[ext]
		if !ok || have[ext] {
			continue
		}
		have[ext] = true
		out.Defaults = append(out.Defaults, ctDefault{Extension: ext, ContentType: ct})
	}

	for i := range d.slides {
		out.Overrides = append(out.Overrides, ctOverride{
			PartName:    "/" + d.slidePath(i),
			ContentType: slideContentType,
		})
	}
	return marshalPart(out)
}

// setSlideCount updates the <Slides> count in docProps/app.xml.
func setSlideCount(app []byte, n int) ([]byte, error) {
	sp, ok, err := findElement(app, func(path []xml.Name, se xml.StartElement) bool {
		return len(path) == 2 && se.Name.Local == "Slides"
	})
	if err != nil || !ok || sp.SelfClosing {
		return app, err
	}
	return splice(app, sp.InnerStart, sp.InnerEnd, []byte(strconv.Itoa(n))), nil
}

func marshalRels(r relationships) ([]byte, error) {
	r.XMLName = xml.Name{Space: "http://schemas.openxmlformats.org/package/2006/relationships", Local: "Relationships"}
	return marshalPart(r)
}

func marshalPart(v any) ([]byte, error) {
	data, err := xml.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding XML: %w", err)
	}
	return append([]byte(xml.Header), data...), nil
}

func writePart(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
	if err != nil {
		return fmt.Errorf("creating %s: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	return nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
