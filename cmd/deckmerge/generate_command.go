package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/brunobiangulo/deckmerge"
)

func newGenerateCommand(ctx *commandContext) *cobra.Command {
	var (
		templatePath string
		imagesDir    string
		outPath      string
		heightCm     float64
		quiet        bool
	)

	cmd := &cobra.Command{
		Use:   "generate TABLE...",
		Short: "Generate a deck with one slide per table row",
		Long: "Reads every table file in order, clones the template's first slide for each row,\n" +
			"fills {Column} placeholders and stacks the row's images on the right.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := ctx.engine(templatePath != "")
			if err != nil {
				return err
			}

			var in deckmerge.Input
			if templatePath != "" {
				f, err := readFile(templatePath)
				if err != nil {
					return err
				}
				in.Template = &f
			}
			for _, path := range args {
				f, err := readFile(path)
				if err != nil {
					return err
				}
				in.Tables = append(in.Tables, f)
			}
			if imagesDir != "" {
				if in.Images, err = readDir(imagesDir); err != nil {
					return err
				}
			}

			var opts []deckmerge.GenerateOption
			if heightCm > 0 {
				opts = append(opts, deckmerge.WithImageHeight(heightCm))
			}
			res, err := engine.Generate(cmd.Context(), in, opts...)
			if err != nil {
				return err
			}

			if outPath == "" {
				outPath = res.Filename
			}
			if err := os.WriteFile(outPath, res.Data, 0o644); err != nil {
				return fmt.Errorf("writing deck: %w", err)
			}

			out := cmd.OutOrStdout()
			if !quiet {
				fmt.Fprintln(out, renderReport(res.Slides))
			}
			fmt.Fprintf(out, "Wrote %s (%s, %s)\n", outPath,
				plural(len(res.Slides), "slide"), humanize.Bytes(uint64(len(res.Data))))
			return nil
		},
	}

	cmd.Flags().StringVarP(&templatePath, "template", "t", "", "Template deck (.pptx); defaults to the configured bundled template")
	cmd.Flags().StringVarP(&imagesDir, "images", "i", "", "Directory of product images")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Output path (default: configured output filename)")
	cmd.Flags().Float64Var(&heightCm, "height", 0, "Picture height in cm (default: configured height)")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Only print the summary line")
	return cmd
}

func renderReport(slides []deckmerge.SlideReport) string {
	rows := make([][]string, 0, len(slides))
	for i, s := range slides {
		images := strings.Join(s.Images, ", ")
		if images == "" {
			images = "-"
		}
		item := s.Item
		if item == "" {
			item = "-"
		}
		rows = append(rows, []string{strconv.Itoa(i + 1), item, images})
	}
	return renderTable([]string{"Slide", "Item", "Images"}, rows, []columnAlignment{alignRight, alignLeft, alignLeft})
}

func readFile(path string) (deckmerge.File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return deckmerge.File{}, err
	}
	return deckmerge.File{Name: filepath.Base(path), Data: data}, nil
}

// readDir reads the regular files directly inside dir. Filtering by
// extension and item prefix happens in the pipeline.
func readDir(dir string) ([]deckmerge.File, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading image dir: %w", err)
	}
	var out []deckmerge.File
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		f, err := readFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

func plural(n int, word string) string {
	if n == 1 {
		return "1 " + word
	}
	return strconv.Itoa(n) + " " + word + "s"
}
