package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/inference-sim/bouncer/sim"
	"github.com/inference-sim/bouncer/sim/venue"
	"github.com/inference-sim/bouncer/sim/workload"
)

var (
	serveAddr       string // Listen address of the emulated game server
	serveStreamPath string // Stream spec served for every scenario
)

// serveCmd runs the in-process venue as an HTTP game server, so `run` can be
// exercised end to end without the real server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a local emulation of the game server",
	Run: func(cmd *cobra.Command, args []string) {
		specFor := workload.ScenarioSpec
		if serveStreamPath != "" {
			spec, err := workload.LoadStreamSpec(serveStreamPath)
			if err != nil {
				logrus.Fatalf("%v", err)
			}
			specFor = venue.Fixed(spec)
		}
		srv := &http.Server{
			Addr:              serveAddr,
			Handler:           venue.New(specFor, sim.RunSeed(seed)).Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		logrus.Infof("Serving emulated game server on %s (seed %d)", serveAddr, seed)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("server: %v", err)
		}
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "127.0.0.1:8080", "Listen address")
	serveCmd.Flags().StringVar(&serveStreamPath, "stream", "", "Stream spec YAML served for every scenario")

	rootCmd.AddCommand(serveCmd)
}
