package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/vuminh/resumebase/internal/control"
	"github.com/vuminh/resumebase/internal/infra/backend"
	"github.com/vuminh/resumebase/internal/reachability"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Probe the backend once and report reachability",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	factory, err := control.NewFactory(cfg.Backend)
	if err != nil {
		slog.Error("Failed to initialize backend", "error", err)
		os.Exit(1)
	}

	pool, err := backend.NewPool(factory, 1)
	if err != nil {
		slog.Error("Failed to build handle", "error", err)
		os.Exit(1)
	}
	defer pool.Stop()

	probeExec := backend.NewExecutor(pool, backend.ProbeRetryConfig)
	monitor := reachability.NewMonitor(probeExec, cfg.Reachability.ProbeInterval)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	start := time.Now()
	ok := monitor.ProbeNow(ctx)
	state, _ := monitor.Status()

	fmt.Printf("backend: %s (%s, probe took %v)\n",
		cfg.Backend.Kind, state, time.Since(start).Round(time.Millisecond))

	if !ok {
		os.Exit(1)
	}
}
