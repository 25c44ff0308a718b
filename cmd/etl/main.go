package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mspr-sante/backend/config"
	"github.com/mspr-sante/backend/internal/database"
	"github.com/mspr-sante/backend/internal/etl"
	"github.com/mspr-sante/backend/internal/server"
)

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	var (
		dataDir string
		dbDSN   string
		port    string
	)

	root := &cobra.Command{
		Use:           "etl",
		Short:         "Patient health ETL pipeline and KPI API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Execute the batch pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(dataDir, dbDSN)
			if err != nil {
				return err
			}
			db, err := database.New(cfg)
			if err != nil {
				return err
			}
			if err := database.Migrate(db); err != nil {
				return err
			}
			cache, err := database.NewRedisClient(cfg)
			if err != nil {
				log.Warn().Err(err).Msg("Redis unavailable, continuing without cache")
				cache = nil
			}

			pipeline := etl.NewPipeline(cfg, db, cache, log)
			result, err := pipeline.Run(context.Background())
			if err != nil {
				return err
			}
			printSummary(result)
			return nil
		},
	}
	runCmd.Flags().StringVar(&dataDir, "data-dir", "", "directory holding the source CSV files")
	runCmd.Flags().StringVar(&dbDSN, "db", "", "database DSN (SQLite path or postgres URL)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the KPI HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig("", dbDSN)
			if err != nil {
				return err
			}
			if port != "" {
				cfg.ServerPort = port
			}
			db, err := database.New(cfg)
			if err != nil {
				return err
			}
			cache, err := database.NewRedisClient(cfg)
			if err != nil {
				log.Warn().Err(err).Msg("Redis unavailable, continuing without cache")
				cache = nil
			}

			srv := server.New(cfg, db, cache, log)
			log.Info().Str("port", cfg.ServerPort).Msg("starting KPI API")
			return srv.Run()
		},
	}
	serveCmd.Flags().StringVar(&port, "port", "", "listen port (overrides ETL_SERVER_PORT)")
	serveCmd.Flags().StringVar(&dbDSN, "db", "", "database DSN (SQLite path or postgres URL)")

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig("", dbDSN)
			if err != nil {
				return err
			}
			db, err := database.New(cfg)
			if err != nil {
				return err
			}
			if err := database.Migrate(db); err != nil {
				return err
			}
			log.Info().Msg("schema up to date")
			return nil
		},
	}
	migrateCmd.Flags().StringVar(&dbDSN, "db", "", "database DSN (SQLite path or postgres URL)")

	root.AddCommand(runCmd, serveCmd, migrateCmd)

	if err := root.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

// loadConfig reads the environment configuration, letting command flags
// override the data directory and DSN.
func loadConfig(dataDir, dbDSN string) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if dbDSN != "" {
		cfg.DatabaseDSN = dbDSN
	}
	return cfg, nil
}

// printSummary prints the per-source batch report to stdout.
func printSummary(result *etl.RunResult) {
	fmt.Println("source      read  rejected  duplicates  loaded")
	for _, stat := range result.Run.SourceStats {
		fmt.Printf("%-10s %5d %9d %11d %7d\n",
			stat.Source, stat.RowsRead, stat.RowsRejected, stat.DuplicateKeys, stat.RowsLoaded)
	}
	fmt.Printf("patients loaded: %d (sessions: %d new, %d already known)\n",
		result.Stats.Patients, result.Stats.SessionsNew, result.Stats.SessionsKnown)
}
