package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/solar-cli/internal/api"
	"github.com/sells-group/solar-cli/internal/metrics"
)

var (
	servePort    int
	serveNoLeads bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the estimator HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}

		m := metrics.New()
		env, err := initEnv(cfg, "serve", m, optionalInstallers)
		if err != nil {
			return err
		}

		opts := []api.Option{
			api.WithCache(env.Cache),
			api.WithBreakers(env.Breakers),
			api.WithCORSOrigins(cfg.Server.CORSOrigins),
		}
		if !serveNoLeads {
			leads, err := initLeads(ctx, cfg, m)
			if err != nil {
				return err
			}
			defer leads.Close()
			opts = append(opts, api.WithLeads(leads.Service))
		}

		srv := api.NewServer(fmt.Sprintf(":%d", cfg.Server.Port), env.Pipeline, opts...)

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				zap.L().Warn("server shutdown", zap.Error(err))
			}
		}()

		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().BoolVar(&serveNoLeads, "no-leads", false, "disable POST /create_lead")
	rootCmd.AddCommand(serveCmd)
}
