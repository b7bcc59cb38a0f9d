package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/theratcoder/ratinit/internal/config"
	"github.com/theratcoder/ratinit/internal/service"
)

func newCheckCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate and list the configured services",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}

			registry := service.NewRegistry()
			if err := registry.LoadDir(cfg.ServicesDir, cfg.LogDir); err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tRESTART\tCOMMAND")
			for _, svc := range registry.Services() {
				fmt.Fprintf(w, "%s\t%s\t%s\n", svc.Name, svc.Restart, svc.Command)
			}
			return w.Flush()
		},
	}
}
