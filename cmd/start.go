/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opentdf/contextvault/api"
	"github.com/opentdf/contextvault/api/middleware/auth"
	"github.com/opentdf/contextvault/pkg/oidc"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the blob and ledger HTTP API",
	Run:   start,
}

func init() {
	rootCmd.AddCommand(startCmd)

	startCmd.Flags().String("addr", ":8080", "address to listen on")
	startCmd.Flags().StringSlice("allowed-origins", nil, "CORS allowed origins (default any)")
	viper.BindPFlag("server.addr", startCmd.Flags().Lookup("addr"))
}

func start(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	profile, err := loadProfile(profileName)
	if err != nil {
		slog.Error("could not load profile", slog.String("profile", profileName), slog.Any("error", err))
		os.Exit(1)
	}
	if profile.Storage.Backend == "http" {
		slog.Error("the server needs a local storage backend", slog.String("backend", profile.Storage.Backend))
		os.Exit(1)
	}
	b, err := openBackends(ctx, profile, openOptions{})
	if err != nil {
		slog.Error("could not open backends", slog.Any("error", err))
		os.Exit(1)
	}
	defer b.Close()

	var authMiddleware func(http.Handler) http.Handler
	if profile.Oidc.DiscoveryEndpoint != "" {
		endpoints, err := oidc.Discover(ctx, profile.Oidc.DiscoveryEndpoint)
		if err != nil {
			slog.Error("could not discover oidc endpoints", slog.Any("error", err))
			os.Exit(1)
		}
		authMiddleware, err = auth.OidcAuth(ctx, endpoints.JwksURI)
		if err != nil {
			slog.Error("could not start jwk cache", slog.Any("error", err))
			os.Exit(1)
		}
	}

	origins, _ := cmd.Flags().GetStringSlice("allowed-origins")
	r := api.NewRouter(api.RouterOptions{
		Store:          b.store,
		Ledger:         b.ledger,
		Auth:           authMiddleware,
		AllowedOrigins: origins,
	})
	api.LogRoutes(r)

	addr := viper.GetString("server.addr")
	server := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start the HTTP server in a goroutine
	go func() {
		slog.Info("starting server", slog.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("ListenAndServe()", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down server...")

	// Create a context with a 15-second timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	// Initiate graceful shutdown
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown failed", slog.Any("error", err))
		os.Exit(1)
	}
	slog.Info("server stopped gracefully")
}
