package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"compgrid/internal/definition"
)

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <definition>",
		Short: "Load and validate a grid definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := definition.Load(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: ok\n", def.Name)
			fmt.Fprintf(out, "columns: %s\n", strings.Join(columnNames(def), ", "))
			fmt.Fprintf(out, "rows: %s\n", strings.Join(def.Names(), ", "))
			if keys := def.FieldKeys(); len(keys) > 0 {
				fmt.Fprintf(out, "fields: %s\n", strings.Join(keys, ", "))
			}
			return nil
		},
	}
}

func columnNames(def *definition.Definition) []string {
	names := make([]string, len(def.Columns))
	for i, c := range def.Columns {
		names[i] = c.Name
	}
	return names
}
