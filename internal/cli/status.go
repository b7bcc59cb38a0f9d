package cli

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/theratcoder/ratinit/internal/config"
	"github.com/theratcoder/ratinit/internal/state"
)

func newStatusCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the last recorded supervisor state",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}

			snap, err := state.Read(cfg.StateFile)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "recorded %s\n", snap.Timestamp.Format("2006-01-02 15:04:05"))
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tRESTART\tSTATE\tPID\tLAST EXIT")
			for _, entry := range snap.Services {
				stateStr := "stopped"
				if entry.Running {
					stateStr = "running"
				}
				lastExit := strconv.Itoa(entry.ExitCode)
				if entry.Signal != "" {
					lastExit = entry.Signal
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", entry.Name, entry.Restart, stateStr, entry.PID, lastExit)
			}
			return w.Flush()
		},
	}
}
