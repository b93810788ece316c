package main

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/brunobiangulo/deckmerge"
)

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--env", ""}, args...))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, s, want string) {
	t.Helper()
	if !strings.Contains(s, want) {
		t.Fatalf("output missing %q:\n%s", want, s)
	}
}

func writeTemplate(t *testing.T, dir string) string {
	t.Helper()
	parts := map[string]string{
		"[Content_Types].xml": `<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
			`<Default Extension="xml" ContentType="application/xml"/></Types>`,
		"ppt/presentation.xml": `<p:presentation xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships" xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main">` +
			`<p:sldIdLst><p:sldId id="256" r:id="rId1"/></p:sldIdLst></p:presentation>`,
		"ppt/_rels/presentation.xml.rels": `<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
			`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/slide" Target="slides/slide1.xml"/></Relationships>`,
		"ppt/slides/slide1.xml": `<p:sld xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main">` +
			`<p:cSld><p:spTree><p:sp><p:txBody><a:p><a:r><a:t>{ITEM#} {Item Depth (inch)} {Retail AUD}</a:t></a:r></a:p></p:txBody></p:sp></p:spTree></p:cSld></p:sld>`,
	}
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, body := range parts {
		f, err := w.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		f.Write([]byte(body))
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "template.pptx")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestVariantsCommand(t *testing.T) {
	out, _, err := runCLI(t, "variants")
	if err != nil {
		t.Fatalf("variants: %v", err)
	}
	requireContains(t, out, "bundled-14")
	requireContains(t, out, "uploaded")
	requireContains(t, out, "Item Width(Inch)")
}

func TestInspectCommand(t *testing.T) {
	tpl := writeTemplate(t, t.TempDir())
	out, _, err := runCLI(t, "inspect", tpl)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	requireContains(t, out, "{ITEM#}")
	requireContains(t, out, "item id")
	requireContains(t, out, "inches converted to cm")
	requireContains(t, out, "{Retail AUD}")
}

func TestGenerateCommand(t *testing.T) {
	dir := t.TempDir()
	tpl := writeTemplate(t, dir)

	images := filepath.Join(dir, "images")
	if err := os.Mkdir(images, 0o755); err != nil {
		t.Fatal(err)
	}
	var img bytes.Buffer
	png.Encode(&img, image.NewGray(image.Rect(0, 0, 3, 3)))
	if err := os.WriteFile(filepath.Join(images, "12345.png"), img.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	table := filepath.Join(dir, "items.csv")
	if err := os.WriteFile(table, []byte("ITEM#,Retail AUD\n12345,19.99\n777,5\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	outPath := filepath.Join(dir, "deck.pptx")
	out, _, err := runCLI(t, "generate", "--template", tpl, "--images", images, "--out", outPath, "--height", "14", table)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	requireContains(t, out, "12345.png")
	requireContains(t, out, "Wrote "+outPath+" (2 slides")

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := zip.NewReader(bytes.NewReader(data), int64(len(data))); err != nil {
		t.Errorf("output is not a package: %v", err)
	}
}

func TestGenerateCommandErrors(t *testing.T) {
	if _, _, err := runCLI(t, "generate"); err == nil {
		t.Error("expected error without table arguments")
	}

	table := filepath.Join(t.TempDir(), "items.csv")
	os.WriteFile(table, []byte("ITEM#\n1\n"), 0o644)
	_, _, err := runCLI(t, "--variant", "bundled", "generate", table)
	if !errors.Is(err, deckmerge.ErrTemplateNotFound) {
		t.Errorf("err = %v, want ErrTemplateNotFound", err)
	}

	if _, _, err := runCLI(t, "--variant", "sideways", "variants"); err != nil {
		t.Errorf("variants ignores the preset flag, got %v", err)
	}
	if _, _, err := runCLI(t, "--variant", "sideways", "inspect"); !errors.Is(err, deckmerge.ErrInvalidConfig) {
		t.Errorf("unknown variant: err = %v", err)
	}
}
