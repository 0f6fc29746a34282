// Command migrate applies the schema store migrations and provisions the
// BigQuery audit table.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dvloznov/sheetledger/internal/config"
	infraBQ "github.com/dvloznov/sheetledger/internal/infra/bigquery"
	"github.com/dvloznov/sheetledger/internal/logger"
	"github.com/dvloznov/sheetledger/internal/schemastore/postgres"
	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"
)

// Commands understood by migrate.
const (
	cmdUp     = "up"
	cmdDown   = "down"
	cmdStatus = "status"
)

// Targets selectable with -target.
const (
	targetPostgres = "postgres"
	targetBigQuery = "bigquery"
	targetAll      = "all"
)

type plan struct {
	command  string
	postgres bool
	bigquery bool
}

var (
	target  = flag.String("target", targetAll, "What to migrate: postgres, bigquery or all")
	timeout = flag.Duration("timeout", 2*time.Minute, "Overall timeout")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: migrate [flags] up|down|status\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	_ = godotenv.Load()
	log := logger.New()

	p, err := newPlan(flag.Arg(0), *target)
	if err != nil {
		flag.Usage()
		log.Fatal().Err(err).Msg("Invalid arguments")
	}

	cfg, err := config.LoadPartial()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	ctx, cancel := context.WithTimeout(logger.WithContext(context.Background(), log), *timeout)
	defer cancel()

	if p.postgres {
		if err := migratePostgres(ctx, cfg.Store, p.command, os.Stdout); err != nil {
			log.Fatal().Err(err).Msg("Postgres migration failed")
		}
	}
	if p.bigquery {
		if err := migrateBigQuery(ctx, cfg.Audit, p.command); err != nil {
			log.Fatal().Err(err).Msg("BigQuery migration failed")
		}
	}
}

// newPlan validates the command and target. BigQuery only supports up; for
// status and down it is skipped when selected through "all".
func newPlan(command, target string) (plan, error) {
	switch command {
	case cmdUp, cmdDown, cmdStatus:
	case "":
		return plan{}, fmt.Errorf("a command is required")
	default:
		return plan{}, fmt.Errorf("unknown command %q", command)
	}

	p := plan{command: command}
	switch target {
	case targetPostgres:
		p.postgres = true
	case targetBigQuery:
		if command != cmdUp {
			return plan{}, fmt.Errorf("bigquery supports only %q", cmdUp)
		}
		p.bigquery = true
	case targetAll:
		p.postgres = true
		p.bigquery = command == cmdUp
	default:
		return plan{}, fmt.Errorf("unknown target %q", target)
	}
	return p, nil
}

func migratePostgres(ctx context.Context, cfg config.StoreConfig, command string, out io.Writer) error {
	log := logger.FromContext(ctx)
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	pool, err := postgres.Connect(ctx, cfg.DatabaseURL, cfg.MaxConns, cfg.MinConns)
	if err != nil {
		return err
	}
	defer pool.Close()

	switch command {
	case cmdUp:
		if err := postgres.Migrate(ctx, pool); err != nil {
			return err
		}
		log.Info().Msg("Postgres migrations applied")
	case cmdDown:
		if err := postgres.MigrateDown(ctx, pool); err != nil {
			return err
		}
		log.Info().Msg("Rolled back the latest Postgres migration")
	case cmdStatus:
		statuses, err := postgres.MigrationStatus(ctx, pool)
		if err != nil {
			return err
		}
		return printStatus(out, statuses)
	}
	return nil
}

func migrateBigQuery(ctx context.Context, cfg config.AuditConfig, command string) error {
	log := logger.FromContext(ctx)
	if !cfg.Enabled() {
		log.Warn().Msg("No audit project configured - skipping BigQuery")
		return nil
	}

	repo, err := infraBQ.NewAuditRepository(ctx, infraBQ.Config{
		ProjectID: cfg.ProjectID,
		DatasetID: cfg.DatasetID,
		Table:     cfg.Table,
	})
	if err != nil {
		return err
	}
	defer repo.Close()

	created, err := repo.EnsureTable(ctx)
	if err != nil {
		return err
	}
	log.Info().
		Str("project", cfg.ProjectID).
		Str("dataset", cfg.DatasetID).
		Str("table", cfg.Table).
		Bool("created", created).
		Msg("Audit table ready")
	return nil
}

func printStatus(out io.Writer, statuses []*goose.MigrationStatus) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tFILE\tSTATE\tAPPLIED AT")
	for _, s := range statuses {
		applied := "-"
		if !s.AppliedAt.IsZero() {
			applied = s.AppliedAt.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", s.Source.Version, s.Source.Path, s.State, applied)
	}
	return w.Flush()
}
