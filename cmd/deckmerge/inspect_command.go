package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/brunobiangulo/deckmerge"
)

func newInspectCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect [TEMPLATE]",
		Short: "List the {Column} placeholders of a template's first slide",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := ctx.engine(len(args) == 1)
			if err != nil {
				return err
			}
			var tmpl *deckmerge.File
			if len(args) == 1 {
				f, err := readFile(args[0])
				if err != nil {
					return err
				}
				tmpl = &f
			}

			names, err := engine.Placeholders(tmpl)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(names) == 0 {
				fmt.Fprintln(out, "No placeholders found.")
				return nil
			}

			cfg := engine.Config()
			rows := make([][]string, 0, len(names))
			for _, name := range names {
				rows = append(rows, []string{"{" + name + "}", placeholderNote(cfg, name)})
			}
			fmt.Fprintln(out, renderTable([]string{"Placeholder", "Filled with"}, rows, nil))
			return nil
		},
	}
}

func placeholderNote(cfg deckmerge.Config, name string) string {
	if name == cfg.ItemField {
		return "item id (also selects images)"
	}
	for _, f := range cfg.DimensionFields {
		if name == f {
			return "inches converted to cm"
		}
	}
	return "column value"
}
