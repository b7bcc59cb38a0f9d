package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/theratcoder/ratinit/internal/boot"
	"github.com/theratcoder/ratinit/internal/cliutil"
	"github.com/theratcoder/ratinit/internal/config"
	"github.com/theratcoder/ratinit/internal/service"
	"github.com/theratcoder/ratinit/internal/state"
	"github.com/theratcoder/ratinit/internal/supervisor"
)

func newRunCmd(configPath *string) *cobra.Command {
	var noMounts bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Boot the system and supervise services",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}

			for _, err := range boot.Setup(boot.Options{
				Mounts:    !noMounts && !cfg.Mounts.Disabled && os.Getpid() == 1,
				LogDir:    cfg.LogDir,
				StateFile: cfg.StateFile,
			}) {
				fmt.Fprintf(cmd.ErrOrStderr(), "boot: %v\n", err)
			}

			registry := service.NewRegistry()
			if err := registry.LoadDir(cfg.ServicesDir, cfg.LogDir); err != nil {
				return err
			}
			if !cfg.Getty.Disabled {
				registry.Add(service.Console(cfg.Getty.TTY))
			}

			sup := supervisor.New(supervisor.Config{
				Registry:        registry,
				Backoff:         cfg.RestartBackoff.Duration,
				ShutdownTimeout: cfg.ShutdownTimeout.Duration,
				PoweroffPath:    cfg.PoweroffPath,
				Recorder:        state.NewFile(cfg.StateFile),
			})

			enc := json.NewEncoder(cmd.OutOrStdout())
			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error {
				for event := range sup.Events() {
					cliutil.EncodeLogEvent(enc, cmd.ErrOrStderr(), event)
				}
				return nil
			})
			g.Go(func() error {
				return sup.Run(ctx)
			})
			return g.Wait()
		},
	}
	cmd.Flags().BoolVar(&noMounts, "no-mount", false, "skip pseudo-filesystem mounting")
	return cmd
}
