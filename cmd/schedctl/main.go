package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/availability"
	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/conflict"
	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/internal/dependency"
	"github.com/hackgods/clinic-scheduling/internal/domain"
	"github.com/hackgods/clinic-scheduling/internal/logging"
	"github.com/hackgods/clinic-scheduling/internal/seed"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "schedctl",
		Short:         "Operate the clinic scheduling database",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(depsCmd())
	rootCmd.AddCommand(slotsCmd())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// connect loads config and opens the pool every subcommand works against.
func connect(ctx context.Context) (*pgxpool.Pool, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	logger := logging.New(cfg.LogLevel, cfg.Env)
	if cfg.StoreBackend != config.StoreBackendPostgres {
		return nil, logger, fmt.Errorf("schedctl needs STORE_BACKEND=postgres, got %q", cfg.StoreBackend)
	}

	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	pool, err := db.ConnectPostgres(connCtx, cfg.PostgresDSN)
	if err != nil {
		return nil, logger, err
	}
	return pool, logger, nil
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			pool, logger, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()
			return db.Migrate(ctx, pool, logger)
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the embedded migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			migrations, err := db.Migrations()
			if err != nil {
				return err
			}
			for _, m := range migrations {
				fmt.Println(m.Version)
			}
			return nil
		},
	})

	return cmd
}

func seedCmd() *cobra.Command {
	opts := seed.DefaultOptions()
	var start string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Fill the database with a generated clinic",
		RunE: func(cmd *cobra.Command, args []string) error {
			if start != "" {
				d, err := time.Parse("2006-01-02", start)
				if err != nil {
					return fmt.Errorf("--start: %w", err)
				}
				opts.StartDate = d
			}

			ctx := cmd.Context()
			pool, logger, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := db.Migrate(ctx, pool, logger); err != nil {
				return err
			}
			ds, err := seed.Generate(opts)
			if err != nil {
				return err
			}
			return seed.WritePostgres(ctx, pool, ds, logger)
		},
	}

	cmd.Flags().IntVar(&opts.Doctors, "doctors", opts.Doctors, "number of doctors")
	cmd.Flags().IntVar(&opts.Assistants, "assistants", opts.Assistants, "number of assistants")
	cmd.Flags().IntVar(&opts.Nurses, "nurses", opts.Nurses, "number of nurses")
	cmd.Flags().IntVar(&opts.Chairs, "chairs", opts.Chairs, "number of general treatment rooms")
	cmd.Flags().IntVar(&opts.Patients, "patients", opts.Patients, "number of patients")
	cmd.Flags().IntVar(&opts.Days, "days", opts.Days, "weekdays of shifts to generate")
	cmd.Flags().Uint64Var(&opts.Seed, "seed", 0, "fake data seed, 0 for random")
	cmd.Flags().StringVar(&start, "start", "", "first shift date (YYYY-MM-DD), defaults to today")

	return cmd
}

func depsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deps",
		Short: "Manage clinical service dependencies",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Print every dependency edge",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			pool, logger, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			deps, err := dependency.NewEngine(appointment.NewPgRepository(pool), logger).ListDependencies(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("%-36s %-36s %-22s %s\n", "SERVICE", "DEPENDS ON", "RULE", "MIN DAYS")
			for _, d := range deps {
				minDays := ""
				if d.MinDaysApart != nil {
					minDays = fmt.Sprint(*d.MinDaysApart)
				}
				fmt.Printf("%-36s %-36s %-22s %s\n", d.ServiceID, d.DependentServiceID, d.RuleType, minDays)
			}
			return nil
		},
	})

	var (
		serviceCode, dependsOn, rule, note string
		minDays                            int
	)
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Add a dependency between two services by code",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			pool, logger, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			from, to := strings.ToUpper(serviceCode), strings.ToUpper(dependsOn)
			repo := appointment.NewPgRepository(pool)
			services, err := availability.LoadServices(ctx, repo, []string{from, to})
			if err != nil {
				return err
			}
			ids := make(map[string]uuid.UUID, len(services))
			for _, s := range services {
				ids[s.Code] = s.ID
			}

			dep := domain.ServiceDependency{
				ServiceID:          ids[from],
				DependentServiceID: ids[to],
				RuleType:           domain.RuleType(strings.ToUpper(rule)),
				Note:               note,
			}
			if minDays > 0 {
				dep.MinDaysApart = &minDays
			}

			created, err := dependency.NewEngine(repo, logger).AddDependency(ctx, dep)
			if err != nil {
				return err
			}
			return json.NewEncoder(os.Stdout).Encode(created)
		},
	}
	addCmd.Flags().StringVar(&serviceCode, "service", "", "code of the governed service")
	addCmd.Flags().StringVar(&dependsOn, "depends-on", "", "code of the service it depends on")
	addCmd.Flags().StringVar(&rule, "rule", "", "REQUIRES_PREREQUISITE, REQUIRES_MIN_DAYS, EXCLUDES_SAME_DAY or BUNDLES_WITH")
	addCmd.Flags().IntVar(&minDays, "min-days", 0, "days apart, only for REQUIRES_MIN_DAYS")
	addCmd.Flags().StringVar(&note, "note", "", "free text shown to staff")
	_ = addCmd.MarkFlagRequired("service")
	_ = addCmd.MarkFlagRequired("depends-on")
	_ = addCmd.MarkFlagRequired("rule")
	cmd.AddCommand(addCmd)

	return cmd
}

func slotsCmd() *cobra.Command {
	var (
		date     string
		doctor   string
		duration int
	)
	cmd := &cobra.Command{
		Use:   "slots",
		Short: "Show a doctor's free gaps on a date",
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := time.Parse("2006-01-02", date)
			if err != nil {
				return fmt.Errorf("--date: %w", err)
			}
			doctorID, err := uuid.Parse(doctor)
			if err != nil {
				return fmt.Errorf("--doctor: %w", err)
			}

			ctx := cmd.Context()
			pool, logger, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			repo := appointment.NewPgRepository(pool)
			res, err := availability.NewResolver(repo, repo, conflict.NewDetector(repo), logger).ResolveSlots(ctx, day, doctorID, duration)
			if err != nil {
				return err
			}
			if res.Explanation != "" {
				fmt.Println(res.Explanation)
			}
			for _, s := range res.Slots {
				fmt.Printf("%s - %s\n", s.Start.Format("15:04"), s.End.Format("15:04"))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&doctor, "doctor", "", "doctor id")
	cmd.Flags().IntVar(&duration, "minutes", 30, "minimum gap length")
	_ = cmd.MarkFlagRequired("date")
	_ = cmd.MarkFlagRequired("doctor")

	return cmd
}
