package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"
	"github.com/saeid-a/ToolConnectBack/internal/observability"
	"github.com/spf13/viper"
)

// migration is one invocation: up, down, steps N, force V or version.
type migration struct {
	action string
	arg    int
}

func main() {
	if err := godotenv.Load(); err != nil {
		observability.Logger.Info("no .env file found")
	}

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("APP_ENV", "production")
	v.SetDefault("MIGRATIONS_DIR", "")
	observability.Configure(v.GetString("APP_ENV"))

	if err := run(v, os.Args[1:]); err != nil {
		observability.Logger.Error("migration failed", "error", err)
		os.Exit(1)
	}
}

func run(v *viper.Viper, args []string) error {
	dbURL := v.GetString("DB_URL")
	if dbURL == "" {
		return errors.New("DB_URL environment variable is required")
	}

	op, err := parseMigration(args)
	if err != nil {
		return err
	}

	dir, err := migrationsDir(v.GetString("MIGRATIONS_DIR"))
	if err != nil {
		return err
	}

	m, err := migrate.New("file://"+dir, dbURL)
	if err != nil {
		return fmt.Errorf("open migrations at %s: %w", dir, err)
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			observability.Logger.Warn("closing migrator", "source_error", srcErr, "database_error", dbErr)
		}
	}()

	if op.action == "version" {
		version, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			observability.Logger.Info("no migrations applied")
			return nil
		}
		if err != nil {
			return err
		}
		observability.Logger.Info("schema version", "version", version, "dirty", dirty)
		return nil
	}

	switch op.action {
	case "up":
		err = m.Up()
	case "down":
		err = m.Down()
	case "steps":
		err = m.Steps(op.arg)
	case "force":
		err = m.Force(op.arg)
	}
	if errors.Is(err, migrate.ErrNoChange) {
		observability.Logger.Info("schema already current", "action", op.action)
		return nil
	}
	if err != nil {
		return fmt.Errorf("migrate %s: %w", op.action, err)
	}

	observability.Logger.Info("migration applied", "action", op.action, "dir", dir)
	return nil
}

func parseMigration(args []string) (migration, error) {
	if len(args) == 0 {
		return migration{action: "up"}, nil
	}

	switch args[0] {
	case "up", "down", "version":
		return migration{action: args[0]}, nil
	case "steps", "force":
		if len(args) < 2 {
			return migration{}, fmt.Errorf("%s needs a number", args[0])
		}
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return migration{}, fmt.Errorf("%s: invalid number %q", args[0], args[1])
		}
		if args[0] == "steps" && n == 0 {
			return migration{}, errors.New("steps must not be zero")
		}
		return migration{action: args[0], arg: n}, nil
	default:
		return migration{}, fmt.Errorf("unknown command %q", args[0])
	}
}

// migrationsDir resolves the migrations folder. An explicit path wins; otherwise it walks up from
// the working directory and then looks next to the executable.
func migrationsDir(explicit string) (string, error) {
	var candidates []string
	if explicit != "" {
		candidates = append(candidates, explicit)
	} else {
		if cwd, err := os.Getwd(); err == nil {
			current := cwd
			for i := 0; i < 6; i++ {
				candidates = append(candidates, filepath.Join(current, "migrations"))
				parent := filepath.Dir(current)
				if parent == current {
					break
				}
				current = parent
			}
		}
		if exePath, err := os.Executable(); err == nil {
			exeDir := filepath.Dir(exePath)
			candidates = append(candidates,
				filepath.Join(exeDir, "migrations"),
				filepath.Join(exeDir, "..", "migrations"),
			)
		}
	}

	for _, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err == nil && info.IsDir() {
			return filepath.Abs(candidate)
		}
	}
	return "", errors.New("migrations directory not found")
}
