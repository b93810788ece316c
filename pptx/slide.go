package pptx

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
)

// Field is one placeholder substitution: {Name} becomes Value.
type Field struct {
	Name  string
	Value string
}

// Slide is a generated slide: a private copy of the template slide XML
// and relationships.
type Slide struct {
	xml     []byte
	rels    []relationship
	nextRel int
	nextID  int
}

func newSlide(t *Template) (*Slide, error) {
	s := &Slide{
		xml:  append([]byte(nil), t.slideXML...),
		rels: append([]relationship(nil), t.slideRels...),
	}
	for _, rel := range s.rels {
		if n, err := strconv.Atoi(strings.TrimPrefix(rel.ID, "rId")); err == nil && n > s.nextRel {
			s.nextRel = n
		}
	}
	s.nextRel++

	id, err := maxShapeID(s.xml)
	if err != nil {
		return nil, err
	}
	s.nextID = id + 1
	return s, nil
}

// Substitute replaces every {Name} token in each text run with its value.
// Fields are applied one after another in order, so a value containing a
// later token is itself substituted. Tokens split across runs are not
// recognized and tokens without a field are left as they are.
func (s *Slide) Substitute(fields []Field) error {
	out, err := rewriteRuns(s.xml, func(text string) string {
		if !strings.Contains(text, "{") {
			return text
		}
		for _, f := range fields {
			text = strings.ReplaceAll(text, "{"+f.Name+"}", f.Value)
		}
		return text
	})
	if err != nil {
		return err
	}
	s.xml = out
	return nil
}

// Texts returns the text of every run, in document order.
func (s *Slide) Texts() ([]string, error) {
	var out []string
	_, err := rewriteRuns(s.xml, func(text string) string {
		out = append(out, text)
		return text
	})
	return out, err
}

// XML returns the slide part content.
func (s *Slide) XML() []byte { return s.xml }

func (s *Slide) addRel(relType, target string) string {
	id := "rId" + strconv.Itoa(s.nextRel)
	s.nextRel++
	s.rels = append(s.rels, relationship{ID: id, Type: relType, Target: target})
	return id
}

const picTemplate = `<p:pic xmlns:p="` + nsP + `" xmlns:a="` + nsA + `" xmlns:r="` + nsR + `">` +
	`<p:nvPicPr><p:cNvPr id="%d" name="Picture %d" descr="%s"/>` +
	`<p:cNvPicPr><a:picLocks noChangeAspect="1"/></p:cNvPicPr><p:nvPr/></p:nvPicPr>` +
	`<p:blipFill><a:blip r:embed="%s"/><a:stretch><a:fillRect/></a:stretch></p:blipFill>` +
	`<p:spPr><a:xfrm><a:off x="%d" y="%d"/><a:ext cx="%d" cy="%d"/></a:xfrm>` +
	`<a:prstGeom prst="rect"><a:avLst/></a:prstGeom></p:spPr></p:pic>`

// insertPicture appends a p:pic to the shape tree, ahead of the tree's
// own p:extLst when it has one.
func (s *Slide) insertPicture(relID, descr string, r Rect) error {
	tree, ok, err := findElement(s.xml, named(nsP, "spTree"))
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("slide has no shape tree")
	}

	var escaped bytes.Buffer
	if err := xml.EscapeText(&escaped, []byte(descr)); err != nil {
		return err
	}
	id := s.nextID
	s.nextID++
	pic := fmt.Sprintf(picTemplate, id, id, escaped.String(), relID, r.X, r.Y, r.CX, r.CY)

	if tree.SelfClosing {
		q := tree.QName
		s.xml = splice(s.xml, tree.Start, tree.End, []byte("<"+q+">"+pic+"</"+q+">"))
		return nil
	}

	at := tree.InnerEnd
	ext, ok, err := findElement(s.xml, func(path []xml.Name, se xml.StartElement) bool {
		if len(path) < 2 || se.Name.Local != "extLst" {
			return false
		}
		parent := path[len(path)-2]
		return parent.Space == nsP && parent.Local == "spTree"
	})
	if err != nil {
		return err
	}
	if ok && ext.Start >= tree.InnerStart && ext.End <= tree.InnerEnd {
		at = ext.Start
	}
	s.xml = splice(s.xml, at, at, []byte(pic))
	return nil
}
