package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gridmind/gridmind/internal/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start the gridmind HTTP API server.

The server exposes sheet CRUD, column instruction management, apply and
regenerate operations, and an SSE stream of cell events.

Examples:
  # Start with defaults (:8080)
  gridmind serve

  # Start on a custom address with persistence
  gridmind serve --addr :3000 --store ./sheets.db`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", ":8080", "listen address")
	serveCmd.Flags().String("store", "", "SQLite database path (empty: in-memory only)")
	serveCmd.Flags().String("templates", "", "template pack directory")
	serveCmd.Flags().Bool("watch-templates", false, "reload the template pack on changes")

	_ = viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
	_ = viper.BindPFlag("store.path", serveCmd.Flags().Lookup("store"))
	_ = viper.BindPFlag("templates.dir", serveCmd.Flags().Lookup("templates"))
	_ = viper.BindPFlag("templates.watch", serveCmd.Flags().Lookup("watch-templates"))
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	st, err := buildStack(cfg, logger)
	if err != nil {
		return err
	}
	defer st.close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := api.NewServer(st.service, st.registry, st.bus, logger)
	return server.ListenAndServe(ctx, cfg.Server.Addr)
}
