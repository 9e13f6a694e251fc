package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"fiberqc/internal/config"
	"fiberqc/internal/database"
	"fiberqc/internal/export"
	"fiberqc/internal/logger"
	"fiberqc/internal/server"
	"fiberqc/internal/store"
)

const shutdownTimeout = 10 * time.Second

var (
	configPath   string
	flagPort     int
	flagDBPath   string
	flagEnv      string
	exportFormat string
	exportOut    string
)

var rootCmd = &cobra.Command{
	Use:   "fiberqc",
	Short: "Fiber optic cable production and QC tracking service",
	Long: `fiberqc records bare fiber test results, assembles fibers into cables,
records QC inspections and serves printable cable reports over a JSON API.

Run without a subcommand to start the HTTP server.`,
	SilenceUsage: true,
	RunE:         runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the database schema and exit",
	RunE:  runMigrate,
}

var exportCmd = &cobra.Command{
	Use:   "export [bare-fibers|cables|qc-checks]",
	Short: "Write a table export to a file or stdout",
	Example: `  fiberqc export cables --format xlsx --out cables.xlsx
  fiberqc export qc-checks > qc.csv`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

var hashKeyCmd = &cobra.Command{
	Use:   "hash-key [key]",
	Short: "Print the bcrypt hash of an API key for auth.api_key_hashes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hash, err := server.HashAPIKey(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	rootCmd.PersistentFlags().IntVar(&flagPort, "port", 0, "HTTP port (overrides config and PORT)")
	rootCmd.PersistentFlags().StringVar(&flagDBPath, "db", "", "SQLite database path (overrides config and FIBERQC_DB)")
	rootCmd.PersistentFlags().StringVar(&flagEnv, "env", "", "development or production")
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", export.FormatCSV, "csv or xlsx")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file (default stdout)")
	rootCmd.AddCommand(serveCmd, migrateCmd, exportCmd, hashKeyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig layers command-line flags over the file and environment.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if changed(cmd, "port") {
		cfg.HTTP.Port = flagPort
	}
	if changed(cmd, "db") {
		cfg.Database.Path = flagDBPath
	}
	if changed(cmd, "env") {
		cfg.Env = flagEnv
	}
	return cfg, cfg.Validate()
}

func changed(cmd *cobra.Command, name string) bool {
	f := cmd.Flag(name)
	return f != nil && f.Changed
}

// setup loads config and opens the logger and database shared by every
// subcommand.
func setup(cmd *cobra.Command) (*config.Config, *logger.Logger, *store.Store, func(), error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	log, err := logger.New(cfg.Env)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		log.Sync()
		return nil, nil, nil, nil, fmt.Errorf("open database: %w", err)
	}
	cleanup := func() {
		if err := db.Close(); err != nil {
			log.Warn("database close failed", "error", err)
		}
		log.Sync()
	}
	return cfg, log, store.New(db), cleanup, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, st, cleanup, err := setup(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	app := server.NewApp(cfg, st.DB, log)
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           app.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server starting", "addr", srv.Addr, "env", cfg.Env, "db", cfg.Database.Path)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		app.Hub.Close()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	if err := g.Wait(); err != nil {
		log.Error("server stopped", "error", err)
		return err
	}
	return nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	// database.Open already migrates; running it again reports any drift.
	cfg, log, st, cleanup, err := setup(cmd)
	if err != nil {
		return err
	}
	defer cleanup()
	if err := database.Migrate(st.DB); err != nil {
		return err
	}
	log.Info("schema up to date", "db", cfg.Database.Path, "tables", len(database.Tables()))
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	format, err := export.ParseFormat(exportFormat)
	if err != nil {
		return err
	}
	_, _, st, cleanup, err := setup(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	table, err := export.Load(cmd.Context(), st, args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if exportOut != "" {
		f, err := os.Create(exportOut)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	return export.Write(out, format, table)
}
