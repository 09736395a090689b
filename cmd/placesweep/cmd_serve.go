package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"placesweep/internal/server"
	"placesweep/internal/store"
)

var serveAddr string

// serveCmd runs the read-only browse API
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve stored places over a read-only JSON API",
	Long: `Endpoints:
  GET /api/places?page=N   paged list
  GET /api/places/{id}     one place
  GET /api/stats           place count and recent runs
  GET /health`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default: server.addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	addr := serveAddr
	if addr == "" {
		addr = cfg.Server.Addr
	}

	st, err := store.Open(cfg.Store.Driver, cfg.Store.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, cancel := commandContext()
	defer cancel()

	logger.Info("Serving places", zap.String("addr", addr), zap.String("db", cfg.Store.Path))
	fmt.Printf("Serving %s on %s\n", cfg.Store.Path, addr)
	return server.New(st, cfg.Server.PageSize, logger).ListenAndServe(ctx, addr)
}
