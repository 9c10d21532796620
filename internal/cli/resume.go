package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vuminh/resumebase/internal/control"
	"github.com/vuminh/resumebase/internal/core/config"
	"github.com/vuminh/resumebase/internal/core/domain"
	"github.com/vuminh/resumebase/internal/infra/backend"
	"github.com/vuminh/resumebase/internal/store"
)

var saveCmd = &cobra.Command{
	Use:   "save <file.json>",
	Short: "Save a resume from a JSON file (full replace when the id exists)",
	Args:  cobra.ExactArgs(1),
	Run:   runSave,
}

var getCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Fetch a resume by id and print it as JSON",
	Args:  cobra.ExactArgs(1),
	Run:   runGet,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all resumes, newest first",
	Run:   runList,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a resume and its child entries",
	Args:  cobra.ExactArgs(1),
	Run:   runDelete,
}

func init() {
	rootCmd.AddCommand(saveCmd, getCmd, listCmd, deleteCmd)
}

// withRepo builds a short-lived pool and repository for one-shot
// commands. No background health check; the pool is torn down on return.
func withRepo(fn func(ctx context.Context, repo store.ResumeRepository) error) {
	cfg, err := loadConfig()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	repo, cleanup, err := newRepo(cfg)
	if err != nil {
		slog.Error("Failed to initialize backend", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := fn(ctx, repo); err != nil {
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

func newRepo(cfg *config.AppConfig) (store.ResumeRepository, func(), error) {
	factory, err := control.NewFactory(cfg.Backend)
	if err != nil {
		return nil, nil, err
	}

	pool, err := backend.NewPool(factory, cfg.Pool.Size)
	if err != nil {
		return nil, nil, err
	}

	exec := backend.NewExecutor(pool, cfg.Retry)
	return store.NewRepo(exec), pool.Stop, nil
}

func runSave(cmd *cobra.Command, args []string) {
	withRepo(func(ctx context.Context, repo store.ResumeRepository) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read resume file: %w", err)
		}

		var res domain.Resume
		if err := json.Unmarshal(data, &res); err != nil {
			return fmt.Errorf("parse resume file: %w", err)
		}

		id, err := repo.Save(ctx, &res)
		if err != nil {
			return err
		}

		fmt.Println(id)
		return nil
	})
}

func runGet(cmd *cobra.Command, args []string) {
	withRepo(func(ctx context.Context, repo store.ResumeRepository) error {
		res, err := repo.Get(ctx, args[0])
		if err != nil {
			return err
		}

		out, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	})
}

func runList(cmd *cobra.Command, args []string) {
	withRepo(func(ctx context.Context, repo store.ResumeRepository) error {
		resumes, err := repo.GetAll(ctx)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
		_, _ = fmt.Fprintln(w, "ID\tNAME\tEMAIL\tUPDATED")
		for _, r := range resumes {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				r.ID, r.FullName, r.Email, r.UpdatedAt.Format(time.RFC3339))
		}
		return w.Flush()
	})
}

func runDelete(cmd *cobra.Command, args []string) {
	withRepo(func(ctx context.Context, repo store.ResumeRepository) error {
		if err := repo.Delete(ctx, args[0]); err != nil {
			return err
		}
		fmt.Println("deleted", args[0])
		return nil
	})
}
