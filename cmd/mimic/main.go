package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mimic/mimic/internal/config"
	"github.com/mimic/mimic/internal/domain/admission"
	"github.com/mimic/mimic/internal/domain/note"
	"github.com/mimic/mimic/internal/platform/db"
	"github.com/mimic/mimic/internal/platform/logging"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "mimic",
		Short: "MIMIC-III clinical note sectioning and admission API",
	}
	root.AddCommand(serveCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(showCmd())
	root.AddCommand(primeCmd())
	root.AddCommand(statsCmd())
	return root
}

func loadConfig() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	logger := logging.New(logging.Config{Level: cfg.LogLevel, Pretty: cfg.IsDev(), Output: os.Stderr})
	return cfg, logger, nil
}

// withApp loads the configuration, builds the app and runs fn with it.
func withApp(fn func(ctx context.Context, a *app) error) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(runServer)
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	withMigrator := func(cmd *cobra.Command, fn func(context.Context, *db.Migrator, string) error) error {
		schema, _ := cmd.Flags().GetString("schema")
		dir, _ := cmd.Flags().GetString("dir")

		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		if schema == "" {
			schema = cfg.DBSchema
		}
		ctx := context.Background()
		pool, err := db.NewPool(ctx, db.PoolConfig{
			URL:      cfg.DatabaseURL,
			MaxConns: cfg.DBMaxConns,
			MinConns: cfg.DBMinConns,
			Schema:   schema,
		})
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := db.CreateSchema(ctx, pool, schema); err != nil {
			return err
		}
		return fn(ctx, db.NewMigrator(pool, dir, schema), schema)
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, func(ctx context.Context, m *db.Migrator, schema string) error {
				fmt.Printf("Running migrations on schema: %s\n", schema)
				count, err := m.Up(ctx)
				if err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Printf("Applied %d migration(s) successfully.\n", count)
				return nil
			})
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, func(ctx context.Context, m *db.Migrator, schema string) error {
				statuses, err := m.Status(ctx)
				if err != nil {
					return fmt.Errorf("failed to get migration status: %w", err)
				}
				fmt.Printf("Migration status for schema: %s\n", schema)
				fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
				for _, s := range statuses {
					status, appliedAt := "pending", ""
					if s.Applied {
						status = "applied"
						if s.AppliedAt != nil {
							appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
						}
					}
					fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
				}
				return nil
			})
		},
	}

	for _, c := range []*cobra.Command{upCmd, statusCmd} {
		c.Flags().String("schema", "", "Target schema (defaults to DB_SCHEMA)")
		c.Flags().String("dir", "./migrations", "Path to migrations directory")
		cmd.AddCommand(c)
	}
	return cmd
}

func showCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Render an admission or a note",
	}

	admCmd := &cobra.Command{
		Use:   "admission <hadm_id>",
		Short: "Render a hospital admission and its notes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, f, gaps, err := showArgs(cmd, args)
			if err != nil {
				return err
			}
			return withApp(func(ctx context.Context, a *app) error {
				h, err := a.admissions.Load(ctx, ids[0])
				if err != nil {
					return err
				}
				opts := admission.RenderOptions{Gaps: gaps, FilterEmpty: a.cfg.GapFilterEmpty}
				return admission.Render(cmd.OutOrStdout(), h, f, opts)
			})
		},
	}

	noteCmd := &cobra.Command{
		Use:   "note <row_id>",
		Short: "Render a note and its sections",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, f, gaps, err := showArgs(cmd, args)
			if err != nil {
				return err
			}
			return withApp(func(ctx context.Context, a *app) error {
				return showNote(ctx, cmd.OutOrStdout(), a.notes, ids[0], f, gaps)
			})
		},
	}

	for _, c := range []*cobra.Command{admCmd, noteCmd} {
		c.Flags().String("format", string(note.FormatText), "Output format (text|raw|verbose|summary|json|yaml|markdown)")
		c.Flags().Bool("gaps", false, "Include the text between sections as gap sections")
		cmd.AddCommand(c)
	}
	return cmd
}

func showArgs(cmd *cobra.Command, args []string) ([]int64, note.Format, bool, error) {
	ids, err := parseIDs(args)
	if err != nil {
		return nil, "", false, err
	}
	name, _ := cmd.Flags().GetString("format")
	f, err := note.ParseFormat(name)
	if err != nil {
		return nil, "", false, err
	}
	gaps, _ := cmd.Flags().GetBool("gaps")
	return ids, f, gaps, nil
}

func showNote(ctx context.Context, w io.Writer, svc *note.Service, rowID int64, f note.Format, gaps bool) error {
	n, c, err := svc.Container(ctx, rowID, gaps)
	if err != nil {
		return err
	}
	return note.Render(w, n, c, f)
}

func primeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prime [hadm_id...]",
		Short: "Load admissions and parse their notes into the caches",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			sample, _ := cmd.Flags().GetInt("sample")
			workers, _ := cmd.Flags().GetInt("workers")
			if len(ids) == 0 && sample <= 0 {
				return fmt.Errorf("give admission ids or --sample")
			}
			return withApp(func(ctx context.Context, a *app) error {
				if len(ids) == 0 {
					if ids, err = a.noteRepo.SampleHadmIDs(ctx, sample); err != nil {
						return err
					}
				}
				if workers <= 0 {
					workers = a.cfg.PrimeWorkers
				}
				res, err := a.admissions.Prime(ctx, ids, workers)
				fmt.Fprintf(cmd.OutOrStdout(), "Primed %d admission(s), %d note(s), %d document(s).\n",
					res.Admissions, res.Notes, res.Documents)
				return err
			})
		},
	}
	cmd.Flags().Int("sample", 0, "Prime this many admissions that have notes when no ids are given")
	cmd.Flags().Int("workers", 0, "Concurrent admissions (defaults to PRIME_WORKERS)")
	return cmd
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print patient, admission and note counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				st, err := a.admissions.Stats(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "patients:   %d\nadmissions: %d\nnotes:      %d\n",
					st.Patients, st.Admissions, st.Notes)
				return nil
			})
		},
	}
}
