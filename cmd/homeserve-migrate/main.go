// README: Schema migration CLI (up, down, goto, version) over golang-migrate.
package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"homeserve/internal/config"
	"homeserve/internal/logger"
)

var (
	cfgPath string
	dir     string
	log     = logger.New("migrate")
)

var rootCmd = &cobra.Command{
	Use:   "homeserve-migrate",
	Short: "Apply database migrations",
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "configuration file (yaml or json)")
	rootCmd.PersistentFlags().StringVar(&dir, "dir", "migrations", "migrations directory")
	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: withMigrate(func(m *migrate.Migrate, _ []string) error {
				return noChange(m.Up())
			}),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the last migration",
			RunE: withMigrate(func(m *migrate.Migrate, _ []string) error {
				return m.Steps(-1)
			}),
		},
		&cobra.Command{
			Use:   "goto VERSION",
			Short: "Migrate to a specific version",
			Args:  cobra.ExactArgs(1),
			RunE: withMigrate(func(m *migrate.Migrate, args []string) error {
				v, err := strconv.ParseUint(args[0], 10, 64)
				if err != nil {
					return fmt.Errorf("invalid version %q: %w", args[0], err)
				}
				return noChange(m.Migrate(uint(v)))
			}),
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the current schema version",
			RunE: withMigrate(func(m *migrate.Migrate, _ []string) error {
				v, dirty, err := m.Version()
				if errors.Is(err, migrate.ErrNilVersion) {
					log.Infof("no migrations applied")
					return nil
				}
				if err != nil {
					return err
				}
				log.Infof("version %d dirty=%t", v, dirty)
				return nil
			}),
		},
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func withMigrate(fn func(m *migrate.Migrate, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		m, err := migrate.New("file://"+dir, migrateURL(cfg.DB.DSN))
		if err != nil {
			return fmt.Errorf("init migrate: %w", err)
		}
		defer func() {
			if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
				log.Warnf("close migrate: %v, %v", srcErr, dbErr)
			}
		}()
		if err := fn(m, args); err != nil {
			log.Errorf("%s: %v", cmd.Name(), err)
			return err
		}
		log.Infof("%s done", cmd.Name())
		return nil
	}
}

func noChange(err error) error {
	if errors.Is(err, migrate.ErrNoChange) {
		log.Infof("no change")
		return nil
	}
	return err
}

// migrateURL rewrites a postgres DSN to the pgx5 scheme the driver registers.
func migrateURL(dsn string) string {
	for _, p := range []string{"postgres://", "postgresql://"} {
		if rest, ok := strings.CutPrefix(dsn, p); ok {
			return "pgx5://" + rest
		}
	}
	return dsn
}
