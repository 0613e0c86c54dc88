package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aretw0/skillflow/internal/cli"
	httpAdapter "github.com/aretw0/skillflow/pkg/adapters/http"
	"github.com/aretw0/skillflow/pkg/observability"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve [dir]",
	Short: "Start the HTTP turn API",
	Long: `Serves the skill over HTTP. Turns are posted to /turns, validated against
the embedded OpenAPI document, and Prometheus metrics are exposed at /metrics.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := projectDir(cmd, args)
		debug, _ := cmd.Flags().GetBool("debug")
		redisURL, _ := cmd.Flags().GetString("redis")
		port, _ := cmd.Flags().GetString("port")
		ttl, _ := cmd.Flags().GetDuration("session-ttl")

		logger := cli.NewLogger(debug)
		metrics := observability.NewMetrics(prometheus.NewRegistry())

		project, err := cli.LoadProject(dir, cli.ProjectOptions{
			Logger: logger,
			Hooks:  observability.Combine(observability.LoggingHooks(logger), metrics.Hooks()),
		})
		if err != nil {
			return err
		}

		store, err := cli.OpenStore(cli.StoreOptions{Dir: dir, RedisURL: redisURL, TTL: ttl, Logger: logger})
		if err != nil {
			return err
		}
		defer store.Close()

		handler := httpAdapter.NewHandler(project.Skill, store.Manager,
			httpAdapter.WithLogger(logger),
			httpAdapter.WithRoutes(func(r chi.Router) {
				r.Handle("/metrics", metrics.Handler())
			}),
		)

		srv := &http.Server{
			Addr:              ":" + port,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			fmt.Printf("Starting skillflow server on %s (sessions: %s)\n", srv.Addr, store.Backend)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			if sig := ctx.Signal(); sig != nil {
				fmt.Printf("\nStart shutdown... Signal: %v\n", sig)
			}

			// Give outstanding requests a deadline for completion.
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				fmt.Printf("Graceful shutdown did not complete in %v: %v\n", 5*time.Second, err)
				return srv.Close()
			}
			fmt.Println("skillflow server stopped gracefully")
			return nil
		})
		return g.Wait()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	serveCmd.Flags().Duration("session-ttl", 0, "Expire idle Redis sessions after this duration")
}
