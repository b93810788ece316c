package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/brunobiangulo/deckmerge"
)

func newVariantsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "variants",
		Short: "List the configuration presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			presets := deckmerge.Variants()
			rows := make([][]string, 0, len(presets))
			for _, name := range deckmerge.VariantNames() {
				cfg := presets[name]
				template := cfg.TemplatePath
				if cfg.AllowTemplateUpload {
					template = "uploaded"
				}
				rows = append(rows, []string{
					name,
					template,
					strconv.FormatFloat(cfg.ImageHeightCm, 'f', -1, 64),
					strings.Join(cfg.DimensionFields, ", "),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Variant", "Template", "Height (cm)", "Dimension columns"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
			))
			return nil
		},
	}
}
