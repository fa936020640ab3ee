package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/iota-pico/iota-pico-storage-sub001/internal/devseed"
	"github.com/iota-pico/iota-pico-storage-sub001/internal/logging"
	"github.com/iota-pico/iota-pico-storage-sub001/internal/sandbox"
	"github.com/iota-pico/iota-pico-storage-sub001/pkg/cstore"
	"github.com/iota-pico/iota-pico-storage-sub001/pkg/cstore/mock"
)

func newSandboxCmd() *cobra.Command {
	var (
		addr    string
		seed    string
		latency time.Duration
		fail    string
	)
	cmd := &cobra.Command{
		Use:   "sandbox",
		Short: "Serve an in-memory store over the remote store HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			failure, err := sandbox.ParseFailure(fail)
			if err != nil {
				return err
			}
			store := mock.New()
			if seed != "" {
				entries, err := devseed.Load(seed)
				if err != nil {
					return err
				}
				if _, err := devseed.Apply(cmd.Context(), cstore.NewStore(cstore.NewWithBackend(store)), entries); err != nil {
					return err
				}
			}

			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return err
			}
			logger := logging.L()
			srv := &http.Server{
				Handler:           sandbox.NewHandler(store, sandbox.Options{Latency: latency, Failure: failure, Logger: logger}),
				ReadHeaderTimeout: 5 * time.Second,
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "sandbox listening on %s\n\n", ln.Addr())
			fmt.Fprintln(out, "export R1_RUNTIME_MODE=http")
			fmt.Fprintf(out, "export EE_CHAINSTORE_API_URL=http://%s\n", ln.Addr())

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					logger.Warn("sandbox shutdown", zap.Error(err))
				}
			}()

			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8787", "listen address")
	cmd.Flags().StringVar(&seed, "seed", "", "YAML or JSON seed file")
	cmd.Flags().DurationVar(&latency, "latency", 0, "artificial latency per request")
	cmd.Flags().StringVar(&fail, "fail", "", "failure injection: rate=<0..1>,code=<status>")
	return cmd
}
