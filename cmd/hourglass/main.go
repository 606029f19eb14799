/*
main.go - Application entry point

PURPOSE:
  Starts the hours tracker: loads configuration, opens the state
  database, assembles the cycle engine, and either serves the widget API
  (serve) or runs a single cycle and prints the result (run).

COMMANDS:
  serve    Start the HTTP API with the background cycle runner
  run      Execute one cycle and print the summary as JSON

FLAGS:
  --config   Path to the YAML config file (overrides HOURGLASS_CONFIG)
  --db       SQLite database path (overrides config)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the cycle runner and wait for the in-flight cycle
  4. Close the database and exit

EXAMPLES:
  # Serve with defaults
  hourglass serve

  # One-shot cycle against QA
  HOURGLASS_ENV=qa hourglass run

SEE ALSO:
  - config/config.go: Configuration loading and precedence
  - api/server.go: Router configuration
  - engine/runner.go: Cycle cadence
*/
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jaime-alvarez-trilogy/hourglass/api"
	"github.com/jaime-alvarez-trilogy/hourglass/config"
	"github.com/jaime-alvarez-trilogy/hourglass/crossover"
	"github.com/jaime-alvarez-trilogy/hourglass/engine"
	"github.com/jaime-alvarez-trilogy/hourglass/notify"
	"github.com/jaime-alvarez-trilogy/hourglass/store/sqlite"
	"github.com/jaime-alvarez-trilogy/hourglass/tracker"
)

var (
	flagConfig string
	flagDB     string
)

var rootCmd = &cobra.Command{
	Use:   "hourglass",
	Short: "Weekly hours tracker and approval engine",
	Long: `hourglass tracks the current week's logged hours and earnings against
an unreliable upstream time-tracking service, and runs the manager
approval workflow for pending manual time and overtime requests.`,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the widget API with the background cycle runner",
	RunE:  runServe,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute one cycle and print the summary as JSON",
	RunE:  runOnce,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "SQLite database path")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(runCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// assemble builds the engine stack from configuration.
func assemble() (*config.Config, *sqlite.Store, *engine.Engine, error) {
	if flagConfig != "" {
		os.Setenv("HOURGLASS_CONFIG", flagConfig)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, err
	}
	if flagDB != "" {
		cfg.Database.Path = flagDB
	}

	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	client := crossover.New(tracker.Environment(cfg.Upstream.Environment))
	eng := engine.New(client, store, notify.NewLogScheduler(), engine.Credentials{
		Username: cfg.Upstream.Username,
		Password: cfg.Upstream.Password,
	})
	return cfg, store, eng, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, store, eng, err := assemble()
	if err != nil {
		return err
	}
	defer store.Close()

	runner := engine.NewRunner(eng, cfg.Cycle.Interval)
	runner.Start()
	defer runner.Stop()

	router := api.NewRouter(api.NewHandler(eng, runner))
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on http://localhost:%d", cfg.Server.Port)
		log.Printf("API available at http://localhost:%d/api", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("Server stopped")
	return nil
}

func runOnce(cmd *cobra.Command, args []string) error {
	_, store, eng, err := assemble()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	res, err := eng.Cycle(ctx, time.Now())
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
