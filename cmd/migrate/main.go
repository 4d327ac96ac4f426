package main

import (
	"context"
	"crypto/sha256"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/dvloznov/wealthflow/internal/logger"
)

// Migration is a single migration file.
type Migration struct {
	Version  int
	Name     string
	Filename string
	SQL      string
	Checksum string
}

// AppliedMigration is a row of schema_migrations.
type AppliedMigration struct {
	Version   int
	Name      string
	AppliedAt time.Time
	Checksum  string
	AppliedBy string
}

// migrator is the database specific part of a migration run.
type migrator interface {
	// EnsureTable creates schema_migrations if needed.
	EnsureTable(ctx context.Context) error
	Applied(ctx context.Context) ([]AppliedMigration, error)
	// Apply runs the migration and records it.
	Apply(ctx context.Context, m Migration, appliedBy string) error
	Close() error
}

var filenamePattern = regexp.MustCompile(`^(\d{4})_(.+)\.sql$`)

var (
	driver        = flag.String("driver", "bigquery", "Database driver: bigquery or postgres")
	projectID     = flag.String("project", os.Getenv("GCP_PROJECT_ID"), "GCP project ID (bigquery)")
	datasetID     = flag.String("dataset", "wealthflow", "BigQuery dataset ID")
	databaseURL   = flag.String("database-url", "", "PostgreSQL connection URL (postgres, or set DATABASE_URL)")
	appliedBy     = flag.String("applied-by", "migrate-cli", "Name of the tool applying migrations")
	migrationsDir = flag.String("migrations", "", "Path to migrations directory (default migrations/<driver>)")
	dryRun        = flag.Bool("dry-run", false, "List pending migrations without applying them")
)

func main() {
	flag.Parse()
	_ = godotenv.Load()

	log := logger.New()
	ctx := context.Background()

	dir := *migrationsDir
	if dir == "" {
		dir = filepath.Join("migrations", *driver)
	}

	var m migrator
	var replacements map[string]string
	var err error

	switch *driver {
	case "bigquery":
		if *projectID == "" {
			log.Fatal().Msg("Error: -project flag is required. Please specify your GCP project ID.")
		}
		replacements = map[string]string{"{{PROJECT_ID}}": *projectID, "{{DATASET_ID}}": *datasetID}
		m, err = newBigQueryMigrator(ctx, *projectID, *datasetID)
		log.Info().Str("project_id", *projectID).Str("dataset", *datasetID).Msg("Connecting to BigQuery")
	case "postgres":
		url := *databaseURL
		if url == "" {
			url = os.Getenv("DATABASE_URL")
		}
		if url == "" {
			log.Fatal().Msg("Error: -database-url or DATABASE_URL is required")
		}
		m, err = newPostgresMigrator(ctx, url)
		log.Info().Msg("Connecting to PostgreSQL")
	default:
		log.Fatal().Str("driver", *driver).Msg("Error: unknown driver")
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect")
	}
	defer m.Close()

	migrations, err := readMigrations(dir, replacements, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read migrations")
	}
	log.Info().Int("count", len(migrations)).Str("dir", dir).Msg("Found migration files")

	applied, err := run(ctx, m, migrations, *appliedBy, *dryRun, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Migration failed")
	}

	if applied == 0 {
		log.Info().Msg("No new migrations to apply. Database is up to date.")
	} else {
		log.Info().Int("applied", applied).Bool("dry_run", *dryRun).Msg("Migrations applied")
	}
}

// run applies every migration not yet recorded and returns how many ran.
// A recorded migration whose checksum changed is reported but not rerun.
func run(ctx context.Context, m migrator, migrations []Migration, appliedBy string, dryRun bool, log zerolog.Logger) (int, error) {
	if err := m.EnsureTable(ctx); err != nil {
		return 0, fmt.Errorf("ensuring schema_migrations table: %w", err)
	}

	done, err := m.Applied(ctx)
	if err != nil {
		return 0, fmt.Errorf("getting applied migrations: %w", err)
	}
	log.Info().Int("count", len(done)).Msg("Found already applied migrations")

	byVersion := make(map[int]AppliedMigration, len(done))
	for _, am := range done {
		byVersion[am.Version] = am
	}

	count := 0
	for _, mig := range migrations {
		label := fmt.Sprintf("%04d_%s", mig.Version, mig.Name)

		if am, ok := byVersion[mig.Version]; ok {
			if am.Checksum != "" && am.Checksum != mig.Checksum {
				log.Warn().Str("migration", label).Msg("Applied migration was modified since it ran")
			}
			log.Info().Str("migration", label).Msg("[SKIP] already applied")
			continue
		}

		if dryRun {
			log.Info().Str("migration", label).Msg("[PENDING]")
			count++
			continue
		}

		log.Info().Str("migration", label).Msg("[RUN]")
		if err := m.Apply(ctx, mig, appliedBy); err != nil {
			return count, fmt.Errorf("applying %s: %w", label, err)
		}
		log.Info().Str("migration", label).Msg("[OK]")
		count++
	}
	return count, nil
}

// readMigrations reads dir, falling back to ../../dir when run from
// cmd/migrate. Files not named NNNN_name.sql are skipped.
func readMigrations(dir string, replacements map[string]string, log zerolog.Logger) ([]Migration, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		alt := filepath.Join("..", "..", dir)
		if _, err := os.Stat(alt); err != nil {
			return nil, fmt.Errorf("migrations directory not found: %s", dir)
		}
		dir = alt
	}

	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading migrations directory: %w", err)
	}

	var migrations []Migration
	for _, file := range files {
		if file.IsDir() {
			continue
		}

		matches := filenamePattern.FindStringSubmatch(file.Name())
		if matches == nil {
			log.Warn().Str("file", file.Name()).Msg("Skipping file with invalid format")
			continue
		}
		version, _ := strconv.Atoi(matches[1])

		content, err := os.ReadFile(filepath.Join(dir, file.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading file %s: %w", file.Name(), err)
		}

		// The checksum covers the file as written, before placeholders
		// are filled in.
		sql := string(content)
		for placeholder, value := range replacements {
			sql = strings.ReplaceAll(sql, placeholder, value)
		}

		migrations = append(migrations, Migration{
			Version:  version,
			Name:     matches[2],
			Filename: file.Name(),
			SQL:      sql,
			Checksum: fmt.Sprintf("%x", sha256.Sum256(content)),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	for i := 1; i < len(migrations); i++ {
		if migrations[i].Version == migrations[i-1].Version {
			return nil, fmt.Errorf("duplicate migration version %04d: %s and %s",
				migrations[i].Version, migrations[i-1].Filename, migrations[i].Filename)
		}
	}

	return migrations, nil
}
