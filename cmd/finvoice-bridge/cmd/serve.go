package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rezonia/finvoice-bridge/internal/processor"
	"github.com/rezonia/finvoice-bridge/internal/server"
)

var (
	serverAddr   string
	serverDebug  bool
	readTimeout  time.Duration
	writeTimeout time.Duration
	runTimeout   time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start an HTTP API server for the Finvoice codec and on-demand profile runs.

The API provides endpoints for:
  - POST /api/v1/decode             - Finvoice XML to JSON document
  - POST /api/v1/encode             - JSON document to Finvoice XML (UTF-8)
  - POST /api/v1/envelope           - JSON document to SOAP envelope
  - GET  /api/v1/reference/:seed    - Generate a payment reference
  - POST /api/v1/profiles/:name/run - Run one profile
  - GET  /api/v1/journal            - Recent status transitions
  - GET  /health                    - Health check

Examples:
  # Start server on the configured address
  finvoice-bridge serve

  # Start on a custom port in debug mode
  finvoice-bridge serve --address :9090 --debug`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverAddr, "address", "", "Server listen address (default from config, env: FINVOICE_SERVER_ADDRESS)")
	serveCmd.Flags().BoolVar(&serverDebug, "debug", false, "Enable debug mode")
	serveCmd.Flags().DurationVar(&readTimeout, "read-timeout", 30*time.Second, "HTTP read timeout")
	serveCmd.Flags().DurationVar(&writeTimeout, "write-timeout", 15*time.Minute, "HTTP write timeout")
	serveCmd.Flags().DurationVar(&runTimeout, "run-timeout", 10*time.Minute, "Timeout of one profile run")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serverAddr == "" {
		serverAddr = cfg.ServerAddress
	}

	stores, err := processor.OpenStores(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer stores.Close()

	runner := processor.NewRunner(cfg, processor.WithPipelineOptions(stores.PipelineOptions()...))

	srv := server.NewServer(&server.Config{
		Address:      serverAddr,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		RunTimeout:   runTimeout,
		Debug:        serverDebug,
	}, server.WithRunner(runner), server.WithJournal(stores.Journal))

	// Handle graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		fmt.Println("\nShutting down server...")
		_ = stores.Close()
		os.Exit(0)
	}()

	fmt.Printf("Starting server on %s\n", serverAddr)
	printVerbose("%d profiles configured\n", len(cfg.Profiles))

	return srv.Run()
}
