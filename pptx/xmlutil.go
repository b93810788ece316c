package pptx

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
)

const (
	nsP = "http://schemas.openxmlformats.org/presentationml/2006/main"
	nsA = "http://schemas.openxmlformats.org/drawingml/2006/main"
	nsR = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
)

// span locates an element inside a document. [Start, End) covers the whole
// element and [InnerStart, InnerEnd) its content.
type span struct {
	Start, InnerStart, InnerEnd, End int
	QName                            string // as written, e.g. "p:sldIdLst"
	SelfClosing                      bool
}

type elementMatcher func(path []xml.Name, se xml.StartElement) bool

// findElement returns the first element accepted by match. path holds the
// names of the element and its ancestors, outermost first.
func findElement(data []byte, match elementMatcher) (span, bool, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	var (
		stack []xml.Name
		found *span
		depth int
	)
	for {
		off := int(dec.InputOffset())
		tok, err := dec.Token()
		if err == io.EOF {
			return span{}, false, nil
		}
		if err != nil {
			return span{}, false, fmt.Errorf("parsing XML: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			stack = append(stack, t.Name)
			if found == nil && match(stack, t) {
				found = &span{Start: off, InnerStart: int(dec.InputOffset()), QName: rawName(data[off:])}
				depth = len(stack)
			}
		case xml.EndElement:
			if found != nil && len(stack) == depth {
				found.InnerEnd = off
				found.End = int(dec.InputOffset())
				if found.InnerStart == found.End {
					found.SelfClosing = true
					found.InnerStart, found.InnerEnd = found.End, found.End
				}
				return *found, true, nil
			}
			stack = stack[:len(stack)-1]
		}
	}
}

// rawName reads the qualified tag name at the start of b ("<p:sld ...").
func rawName(b []byte) string {
	if len(b) == 0 || b[0] != '<' {
		return ""
	}
	end := bytes.IndexAny(b[1:], " \t\r\n/>")
	if end < 0 {
		return ""
	}
	return string(b[1 : 1+end])
}

// prefixOf returns the namespace prefix of a qualified name, "" if none.
func prefixOf(qname string) string {
	if i := strings.IndexByte(qname, ':'); i >= 0 {
		return qname[:i]
	}
	return ""
}

func named(space, local string) elementMatcher {
	return func(path []xml.Name, se xml.StartElement) bool {
		return se.Name.Space == space && se.Name.Local == local
	}
}

// splice replaces data[start:end] with repl.
func splice(data []byte, start, end int, repl []byte) []byte {
	out := make([]byte, 0, len(data)-(end-start)+len(repl))
	out = append(out, data[:start]...)
	out = append(out, repl...)
	return append(out, data[end:]...)
}

// rewriteRuns calls fn with the text of every a:t inside an a:r and
// writes back whatever fn returns. Runs fn leaves unchanged keep their
// original bytes.
func rewriteRuns(data []byte, fn func(text string) string) ([]byte, error) {
	type edit struct {
		start, end int
		text       string
	}
	var edits []edit

	dec := xml.NewDecoder(bytes.NewReader(data))
	var (
		stack   []xml.Name
		inText  bool
		start   int
		current bytes.Buffer
	)
	for {
		off := int(dec.InputOffset())
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parsing slide XML: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Space == nsA && t.Name.Local == "t" && len(stack) > 0 {
				parent := stack[len(stack)-1]
				if parent.Space == nsA && parent.Local == "r" {
					inText = true
					start = int(dec.InputOffset())
					current.Reset()
				}
			}
			stack = append(stack, t.Name)
		case xml.CharData:
			if inText {
				current.Write(t)
			}
		case xml.EndElement:
			stack = stack[:len(stack)-1]
			if inText && t.Name.Space == nsA && t.Name.Local == "t" {
				inText = false
				old := current.String()
				if repl := fn(old); repl != old && off >= start {
					edits = append(edits, edit{start: start, end: off, text: repl})
				}
			}
		}
	}

	if len(edits) == 0 {
		return data, nil
	}
	var out bytes.Buffer
	out.Grow(len(data))
	last := 0
	for _, e := range edits {
		out.Write(data[last:e.start])
		if err := xml.EscapeText(&out, []byte(e.text)); err != nil {
			return nil, err
		}
		last = e.end
	}
	out.Write(data[last:])
	return out.Bytes(), nil
}

// maxShapeID returns the largest p:cNvPr-style id in the document.
func maxShapeID(data []byte) (int, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	highest := 0
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return highest, nil
		}
		if err != nil {
			return 0, fmt.Errorf("parsing slide XML: %w", err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "cNvPr" {
			continue
		}
		for _, a := range se.Attr {
			if a.Name.Local == "id" && a.Name.Space == "" {
				if n, err := strconv.Atoi(a.Value); err == nil && n > highest {
					highest = n
				}
			}
		}
	}
}

var placeholderRe = regexp.MustCompile(`\{([^{}]+)\}`)

// tokensIn returns the placeholder names in s, in order of appearance.
func tokensIn(s string) []string {
	var out []string
	for _, m := range placeholderRe.FindAllStringSubmatch(s, -1) {
		out = append(out, m[1])
	}
	return out
}
