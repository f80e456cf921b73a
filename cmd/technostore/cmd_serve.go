package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	storehttp "github.com/technostore/technostore/go/http"
	"github.com/technostore/technostore/go/mcp"
	"github.com/technostore/technostore/go/node"
	"github.com/technostore/technostore/go/statestore"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a node and serve its HTTP API",
	Long: `Starts a node on the configured genesis, or resumes the state saved in the
data directory, and serves the JSON API. With MCP enabled the read-only tools
are served over SSE on the MCP path.`,
	RunE: runServe,
}

var (
	serveListen string
	serveMCP    bool
)

func init() {
	serveCmd.Flags().StringVarP(&serveListen, "listen", "l", "", "override listen address")
	serveCmd.Flags().BoolVar(&serveMCP, "mcp", false, "serve MCP tools")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if serveListen != "" {
		cfg.Listen = serveListen
	}
	if serveMCP {
		cfg.MCP.Enabled = true
	}
	if logLevel == "" {
		if err := setLogLevel(cfg.LogLevel); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	n, err := startNode(ctx, cfg)
	if err != nil {
		return err
	}
	defer n.Close()

	gin.SetMode(gin.ReleaseMode)
	var opts []storehttp.ServerOption
	if cfg.MCP.Enabled {
		opts = append(opts, storehttp.WithHandler(cfg.MCP.Path, mcp.NewServer(n).Handler()))
	}

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           storehttp.NewServer(n, opts...).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	log.Infow("serving", "listen", cfg.Listen, "mcp", cfg.MCP.Enabled, "height", n.Height())

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func startNode(ctx context.Context, cfg *Config) (*node.Node, error) {
	genesis, err := cfg.Genesis.NodeGenesis()
	if err != nil {
		return nil, err
	}

	var state *statestore.Store
	if cfg.DataDir != "" {
		state, err = statestore.OpenLevelDB(cfg.DataDir)
		if err != nil {
			return nil, err
		}
	} else {
		log.Warn("no data directory configured; state will not survive a restart")
		state = statestore.NewMemory()
	}

	n, err := node.New(ctx, genesis, node.WithStateStore(state))
	if err != nil {
		_ = state.Close()
		return nil, fmt.Errorf("failed to start node: %w", err)
	}
	return n, nil
}
