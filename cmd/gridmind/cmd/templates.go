package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/gridmind/gridmind/internal/core"
	"github.com/gridmind/gridmind/internal/template"
)

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "List available instruction templates",
	Long: `List the built-in instruction templates plus any loaded from the
configured template pack directory.`,
	RunE: runTemplates,
}

func init() {
	rootCmd.AddCommand(templatesCmd)
}

func runTemplates(_ *cobra.Command, _ []string) error {
	registry := template.NewRegistry()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Templates.Dir != "" {
		contracts, err := template.LoadPackDir(cfg.Templates.Dir)
		if err != nil {
			return fmt.Errorf("loading template pack: %w", err)
		}
		for _, c := range contracts {
			if err := registry.Register(c); err != nil {
				return err
			}
		}
	}

	described := registry.Describe()
	ids := make([]string, 0, len(described))
	for id := range described {
		ids = append(ids, string(id))
	}
	sort.Strings(ids)

	for _, id := range ids {
		fmt.Printf("  %-12s %s\n", id, described[core.TemplateID(id)])
	}
	return nil
}
