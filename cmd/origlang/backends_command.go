package main

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"origlang/internal/api"
	"origlang/internal/config"
)

func newBackendsCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "backends",
		Short: "List lookup backends and whether they will be used",
		RunE: func(cmd *cobra.Command, args []string) error {
			det, err := ctx.newDetector()
			if err != nil {
				return err
			}
			defer det.Close()
			cfg := det.Config()
			active := det.AvailableBackends()

			if jsonOutput {
				return writeJSON(cmd, api.NewDetectionService(det, 0).Backends())
			}

			rows := make([][]string, 0, len(config.KnownBackends()))
			for _, name := range config.KnownBackends() {
				priority := "-"
				if idx := slices.Index(cfg.Detection.BackendPriorities, name); idx >= 0 {
					priority = fmt.Sprint(idx + 1)
				}
				rows = append(rows, []string{
					name,
					priority,
					yesNo(cfg.IsBackendAvailable(name)),
					yesNo(slices.Contains(active, name)),
					backendNote(cfg, name),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Backend", "Priority", "Available", "Active", "Note"},
				rows,
				[]columnAlignment{alignLeft, alignRight},
			))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit the active backends as JSON")
	return cmd
}

func backendNote(cfg *config.Config, name string) string {
	switch {
	case !cfg.Detection.Enabled:
		return "detection disabled"
	case name == config.BackendTMDB && cfg.TMDB.APIKey == "":
		return "set tmdb.api_key or TMDB_API_KEY"
	case !slices.Contains(cfg.Detection.BackendPriorities, name):
		return "not in detection.backend_priorities"
	default:
		return ""
	}
}
