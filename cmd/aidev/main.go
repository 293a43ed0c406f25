// aidev: AI-assisted project development server
//
// A tool server that stores projects and development phases, and an
// agent that plans (and optionally implements) them with an LLM.
//
// Usage:
//
//	aidev serve    # Start the HTTP tool server
//	aidev stdio    # Start the MCP server (stdio transport)
//	aidev agent    # Run the planning agent for one project
//	aidev update   # Self-update to the latest release
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/HendryAvila/aidev/internal/agent"
	"github.com/HendryAvila/aidev/internal/config"
	"github.com/HendryAvila/aidev/internal/httpapi"
	"github.com/HendryAvila/aidev/internal/implementer"
	"github.com/HendryAvila/aidev/internal/llm"
	"github.com/HendryAvila/aidev/internal/logging"
	"github.com/HendryAvila/aidev/internal/protocol"
	aidevserver "github.com/HendryAvila/aidev/internal/server"
	"github.com/HendryAvila/aidev/internal/store"
	"github.com/HendryAvila/aidev/internal/updater"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		exitOnError(runServe())
	case "stdio":
		exitOnError(runStdio())
	case "agent":
		exitOnError(runAgent(os.Args[2:]))
	case "update":
		runUpdate()
	case "--help", "-h", "help":
		printUsage()
	case "--version", "-v", "version":
		fmt.Printf("aidev v%s\n", aidevserver.Version)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func exitOnError(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("loading configuration: %w", err)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("creating logger: %w", err)
	}
	return cfg, logger, nil
}

// runServe starts the HTTP tool server and blocks until interrupted.
func runServe() error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	st, err := store.New(store.Config{Path: cfg.DatabasePath})
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	srv, err := httpapi.NewServer(st, protocol.New(st, logger), logger, &httpapi.Config{
		Host:    cfg.HTTPHost,
		Port:    cfg.HTTPPort,
		Version: aidevserver.Version,
	})
	if err != nil {
		return fmt.Errorf("creating http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}
}

// runStdio starts the MCP server on stdin/stdout. The logger writes
// to stderr, so stdout stays clean for the transport.
func runStdio() error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	s, cleanup, err := aidevserver.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	defer cleanup()

	// Background version check — prints to stderr so it doesn't
	// interfere with MCP's stdio transport on stdout.
	go checkForUpdates()

	return aidevserver.ServeStdio(s)
}

// checkForUpdates runs a non-blocking version check and prints a notice
// to stderr if an update is available. Network failures are silently
// ignored.
func checkForUpdates() {
	result := updater.CheckVersion(aidevserver.Version)
	if result.UpdateAvailable {
		fmt.Fprintf(os.Stderr,
			"\n  Update available: v%s -> v%s\n"+
				"  Run: aidev update\n"+
				"  Release: %s\n\n",
			result.CurrentVersion, result.LatestVersion, result.ReleaseURL,
		)
	}
}

// runUpdate performs a self-update to the latest version.
func runUpdate() {
	fmt.Fprintln(os.Stderr, "Checking for updates...")

	result := updater.CheckVersion(aidevserver.Version)
	if !result.UpdateAvailable {
		fmt.Fprintf(os.Stderr, "Already at the latest version (v%s)\n", result.CurrentVersion)
		return
	}

	fmt.Fprintf(os.Stderr, "New version available: v%s -> v%s\n", result.CurrentVersion, result.LatestVersion)
	fmt.Fprintln(os.Stderr, "Downloading...")

	if err := updater.SelfUpdate(aidevserver.Version); err != nil {
		fmt.Fprintf(os.Stderr, "Update failed: %v\n", err)
		fmt.Fprintf(os.Stderr, "You can download manually from:\n  %s\n", result.ReleaseURL)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "Updated to v%s. Restart aidev to use the new version.\n", result.LatestVersion)
}

// runAgent plans one project from the command line and prints the
// final workflow state as JSON.
func runAgent(args []string) error {
	flags := flag.NewFlagSet("agent", flag.ExitOnError)
	name := flags.String("name", "", "project name (required)")
	description := flags.String("description", "", "project description")
	maxPhases := flags.Int("max-phases", 0, "phases to plan (defaults to configuration)")
	auto := flags.Bool("auto", false, "implement phases on disk, not just plan them")
	remote := flags.Bool("remote", false, "use the remote tool server instead of a local database")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if *name == "" {
		flags.Usage()
		return fmt.Errorf("-name is required")
	}

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	if *maxPhases == 0 {
		*maxPhases = cfg.MaxPhases
	}

	client, err := llm.New(cfg.LLM)
	if err != nil {
		return fmt.Errorf("creating llm client: %w", err)
	}

	var invoker agent.Invoker
	if *remote {
		invoker = agent.NewHTTPInvoker(cfg.ServerURL, cfg.HTTPTimeout)
	} else {
		st, err := store.New(store.Config{Path: cfg.DatabasePath})
		if err != nil {
			return fmt.Errorf("opening store: %w", err)
		}
		defer st.Close()
		invoker = agent.NewLocalInvoker(protocol.New(st, logger))
	}

	opts := []agent.RunnerOption{agent.WithLogger(logger)}
	if *auto {
		impl := implementer.New(client, cfg.ProjectBasePath, implementer.WithLogger(logger))
		opts = append(opts, agent.WithImplementer(impl))
	}

	runner := agent.NewRunner(client, invoker, *maxPhases, opts...)
	final := runner.Run(context.Background(), agent.State{
		ProjectName:        *name,
		ProjectDescription: *description,
	})

	out, err := json.MarshalIndent(final, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding final state: %w", err)
	}
	fmt.Println(string(out))

	if final.Err != "" {
		return fmt.Errorf("workflow failed: %s", final.Err)
	}
	return nil
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `aidev v%s — AI-assisted project development server

Usage:
  aidev serve    Start the HTTP tool server
  aidev stdio    Start the MCP server (stdio transport)
  aidev agent    Run the planning agent for one project
  aidev update   Update to the latest version
  aidev version  Print the version

Agent flags:
  -name string        project name (required)
  -description string project description
  -max-phases int     phases to plan (defaults to configuration)
  -auto               implement phases on disk, not just plan them
  -remote             use the remote tool server (AIDEV_SERVER_URL)

Configuration is read from AIDEV_* environment variables, e.g.
AIDEV_LLM_PROVIDER, AIDEV_API_KEY, AIDEV_DATABASE_PATH, AIDEV_HTTP_PORT.
`, aidevserver.Version)
}
