package cmd

import (
	"errors"
	"log"

	"github.com/unimarket/matchmaker/internal/logger"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const defaultMigrations = "migrations"

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Run: func(_ *cobra.Command, _ []string) {
		runMigrations()
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrations() {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	db, err := connect(config)
	if err != nil {
		logger.Fatal("connecting to the database", zap.Error(err))
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db.DB, &postgres.Config{})
	if err != nil {
		logger.Fatal("creating the migration driver", zap.Error(err))
	}

	dir := config.Database.Migrations
	if dir == "" {
		dir = defaultMigrations
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+dir, "postgres", driver)
	if err != nil {
		logger.Fatal("creating the migrate instance", zap.Error(err))
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info("no new migrations to apply")
			return
		}
		logger.Fatal("applying migrations", zap.Error(err))
	}

	logger.Info("successfully applied migrations", zap.String("dir", dir))
}
