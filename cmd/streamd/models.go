package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"streamd/internal/registry"
)

var modelsCmd = &cobra.Command{
	Use:     "models",
	Aliases: []string{"list"},
	Short:   "List models found in the models directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		models, err := registry.NewGGUFScanner(cfg.Backend).Scan(cfg.ModelsDir)
		if err != nil {
			return err
		}
		if len(models) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "No models found in %s\n", cfg.ModelsDir)
			return nil
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tFAMILY\tTYPE\tPATH")
		for _, m := range models {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", m.ID, m.Family, m.Type, m.Path)
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}

