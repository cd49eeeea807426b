package cmd

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/jmcleod/firmgate/bridge"
	"github.com/jmcleod/firmgate/device"
	bboltstore "github.com/jmcleod/firmgate/devstore/bbolt"
)

var (
	listenAddr string
	dataDir    string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the device and its HTTP bridge",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := os.MkdirAll(dataDir, 0o700); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}

		store, err := bboltstore.NewStoreFromFile(dataDir+"/device.db", nil)
		if err != nil {
			return fmt.Errorf("failed to open device storage: %w", err)
		}
		defer store.Close()

		logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
		sc := device.NewSecurityContext(store, device.WithLogger(logger))
		b := bridge.New(sc, bridge.WithLogger(logger))

		r := chi.NewRouter()
		r.Use(middleware.Recoverer)
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("OK"))
		})
		r.Mount("/", b.Router())

		logger.Info("bridge listening", "addr", listenAddr)
		return http.ListenAndServe(listenAddr, r)
	},
}

func init() {
	serveCmd.Flags().StringVar(&listenAddr, "listen", "127.0.0.1:21325", "bridge listen address")
	serveCmd.Flags().StringVar(&dataDir, "data-dir", "./data", "device storage directory")
	rootCmd.AddCommand(serveCmd)
}
