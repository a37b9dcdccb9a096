package main

import (
	"context"
	"fmt"
	"maps"
	"os"
	"slices"
	"text/tabwriter"
	"time"

	"staybooking/internal/config"
	"staybooking/internal/database"
	"staybooking/internal/export"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type app struct {
	dbPath string
	logger zerolog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{logger: zerolog.New(os.Stderr).With().Timestamp().Logger()}

	root := &cobra.Command{
		Use:          "stayctl",
		Short:        "Maintenance commands for the staybooking database",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&a.dbPath, "db", "./data/staybooking.db", "path to sqlite db")

	root.AddCommand(a.exportCmd())
	root.AddCommand(a.backupCmd())
	root.AddCommand(a.geoCmd())
	return root
}

// withDB opens the database for the duration of fn.
func (a *app) withDB(cmd *cobra.Command, fn func(ctx context.Context, db *database.DB) error) error {
	db, err := database.NewDB(a.dbPath, &a.logger)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
	defer cancel()
	return fn(ctx, db)
}

func (a *app) exportCmd() *cobra.Command {
	var stayID int64
	var outPath string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a stay's reservations to an xlsx file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if stayID <= 0 {
				return fmt.Errorf("--stay is required")
			}
			return a.withDB(cmd, func(ctx context.Context, db *database.DB) error {
				stay, err := db.GetStay(ctx, stayID)
				if err != nil {
					return fmt.Errorf("get stay %d: %w", stayID, err)
				}
				reservations, err := db.ListReservationsByStay(ctx, stay.ID)
				if err != nil {
					return fmt.Errorf("list reservations: %w", err)
				}

				path := outPath
				if path == "" {
					path = export.FileName(stay.ID)
				}
				f, err := os.Create(path)
				if err != nil {
					return err
				}
				if err := export.WriteReservations(f, stay, reservations); err != nil {
					_ = f.Close()
					return fmt.Errorf("write xlsx: %w", err)
				}
				if err := f.Close(); err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "exported %d reservations to %s\n", len(reservations), path)
				return nil
			})
		},
	}

	cmd.Flags().Int64Var(&stayID, "stay", 0, "stay id")
	cmd.Flags().StringVar(&outPath, "out", "", "output file (default stay_<id>_reservations.xlsx)")
	return cmd
}

func (a *app) backupCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Snapshot the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDB(cmd, func(ctx context.Context, db *database.DB) error {
				svc := database.NewBackupService(db, config.BackupConfig{StoragePath: dir}, &a.logger)
				path, err := svc.PerformBackup(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "backup: %s\n", path)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "./backups", "backup directory")
	return cmd
}

func (a *app) geoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "geo",
		Short: "Inspect the geo sync queue",
	}
	cmd.AddCommand(a.geoFailedCmd())
	cmd.AddCommand(a.geoRequeueCmd())
	cmd.AddCommand(a.geoReindexCmd())
	return cmd
}

func (a *app) geoFailedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "failed",
		Short: "List failed geo sync tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDB(cmd, func(ctx context.Context, db *database.DB) error {
				tasks, err := db.GetFailedGeoSyncTasks(ctx)
				if err != nil {
					return err
				}
				if len(tasks) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "no failed tasks")
					return nil
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tTYPE\tSTAY\tRETRIES\tERROR")
				for _, t := range tasks {
					lastErr := ""
					if t.LastError != nil {
						lastErr = *t.LastError
					}
					fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%s\n", t.ID, t.TaskType, t.StayID, t.RetryCount, lastErr)
				}
				return w.Flush()
			})
		},
	}
}

func (a *app) geoRequeueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "requeue",
		Short: "Move failed geo sync tasks back to pending",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDB(cmd, func(ctx context.Context, db *database.DB) error {
				tasks, err := db.GetFailedGeoSyncTasks(ctx)
				if err != nil {
					return err
				}
				for i := range tasks {
					if err := db.RequeueGeoSyncTask(ctx, tasks[i].ID); err != nil {
						return fmt.Errorf("requeue task %d: %w", tasks[i].ID, err)
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "requeued: %d\n", len(tasks))
				return nil
			})
		},
	}
}

// geoReindexCmd ставит в очередь индексацию всех объектов, воркер API догонит Redis.
func (a *app) geoReindexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Enqueue an index task for every stay",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDB(cmd, func(ctx context.Context, db *database.DB) error {
				locations, err := db.StayLocations(ctx)
				if err != nil {
					return err
				}
				for _, id := range slices.Sorted(maps.Keys(locations)) {
					task, err := database.NewGeoIndexTask(id, locations[id])
					if err != nil {
						return err
					}
					if err := db.CreateGeoSyncTask(ctx, task); err != nil {
						return fmt.Errorf("enqueue stay %d: %w", id, err)
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "enqueued: %d\n", len(locations))
				return nil
			})
		},
	}
}
