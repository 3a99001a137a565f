package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"

	"github.com/wisptree/vprojfs/internal/config"
	"github.com/wisptree/vprojfs/internal/host"
	"github.com/wisptree/vprojfs/internal/host/platform"
	"github.com/wisptree/vprojfs/internal/logicalfs/billyadapter"
	"github.com/wisptree/vprojfs/internal/telemetry"
)

var logLevel string

var mountCmd = &cobra.Command{
	Use:   "mount",
	Short: "Start the ProjFS virtualization host and block until interrupted",
	RunE:  runMount,
}

func init() {
	mountCmd.Flags().StringVar(&logLevel, "log-level", "info", "trace, debug, info, warn, error, or none")
}

func runMount(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Debug {
		logLevel = "debug"
	}
	telemetry.Configure(logLevel, os.Stderr)

	backing := osfs.New(cfg.InstancePath)
	fs := billyadapter.New(backing)

	h := host.New(cfg, fs, platform.NewProvider())
	if err := h.Start(); err != nil {
		return fmt.Errorf("mount: %w", err)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	return h.Stop()
}
