package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/avancel/dashgate/api"
	"github.com/avancel/dashgate/auditlog"
	"github.com/avancel/dashgate/upstream"
)

var (
	port            int
	backendURL      string
	dataDir         string
	sessionCookie   string
	csrfCookie      string
	sessionTTL      time.Duration
	csrfTTL         time.Duration
	csrfRefresh     time.Duration
	secureCookies   bool
	upstreamTimeout time.Duration
	trustedProxies  []string
)

// envOr returns the environment variable value or a fallback. Flags win
// over the environment; the environment wins over defaults.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the dashboard gateway server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if backendURL == "" {
			backendURL = os.Getenv("BACKEND_API_URL")
		}
		if backendURL == "" {
			return fmt.Errorf("backend API URL is required (--backend-url or BACKEND_API_URL)")
		}

		cfg := api.DefaultConfig()
		cfg.SessionCookieName = sessionCookie
		cfg.CSRFCookieName = csrfCookie
		cfg.SessionTTL = sessionTTL
		cfg.CSRFTTL = csrfTTL
		cfg.CSRFRefreshThreshold = csrfRefresh
		cfg.SecureCookies = secureCookies
		for _, cidr := range trustedProxies {
			prefix, err := netip.ParsePrefix(cidr)
			if err != nil {
				return fmt.Errorf("invalid trusted proxy CIDR %q: %w", cidr, err)
			}
			cfg.TrustedProxies = append(cfg.TrustedProxies, prefix)
		}

		up, err := upstream.New(backendURL, upstream.WithTimeout(upstreamTimeout))
		if err != nil {
			return fmt.Errorf("configuring upstream client: %w", err)
		}
		defer up.Close()

		if err := os.MkdirAll(dataDir, 0o700); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
		trail, err := auditlog.Open(filepath.Join(dataDir, "audit.db"))
		if err != nil {
			return fmt.Errorf("failed to open audit trail: %w", err)
		}
		defer trail.Close()

		a := api.New(cfg, up, api.WithAuditTrail(trail))

		r := chi.NewRouter()
		r.Use(middleware.Logger)
		r.Use(middleware.Recoverer)
		r.Use(api.SecurityHeaders)

		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("OK"))
		})

		r.Mount("/api/v1", a.Router())

		server := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		// Graceful shutdown on SIGINT/SIGTERM.
		done := make(chan error, 1)
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				done <- fmt.Errorf("server failed: %w", err)
				return
			}
			done <- nil
		}()

		printBanner()
		fmt.Printf("Starting gateway on port %d (backend: %s)...\n", port, backendURL)

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			fmt.Printf("\nReceived %s, shutting down...\n", sig)
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil {
				return fmt.Errorf("server shutdown failed: %w", err)
			}
			return nil
		case err := <-done:
			return err
		}
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
	serverCmd.Flags().IntVarP(&port, "port", "p", 8080, "Port to listen on")
	serverCmd.Flags().StringVar(&backendURL, "backend-url", "", "Backend API base URL (or BACKEND_API_URL)")
	serverCmd.Flags().StringVar(&dataDir, "data-dir", "./data", "Directory for persistent data")
	serverCmd.Flags().StringVar(&sessionCookie, "session-cookie", envOr("SESSION_COOKIE_NAME", "dashgate_session"), "Session cookie name")
	serverCmd.Flags().StringVar(&csrfCookie, "csrf-cookie", envOr("CSRF_COOKIE_NAME", "dashgate_csrf"), "CSRF cookie name")
	serverCmd.Flags().DurationVar(&sessionTTL, "session-ttl", 3*time.Hour, "Session cookie lifetime")
	serverCmd.Flags().DurationVar(&csrfTTL, "csrf-ttl", time.Hour, "CSRF token lifetime")
	serverCmd.Flags().DurationVar(&csrfRefresh, "csrf-refresh-threshold", 15*time.Minute, "Remaining lifetime below which the CSRF token is reissued")
	serverCmd.Flags().BoolVar(&secureCookies, "secure-cookies", os.Getenv("SECURE_COOKIES") == "true", "Force the Secure attribute on all cookies")
	serverCmd.Flags().DurationVar(&upstreamTimeout, "upstream-timeout", 30*time.Second, "Timeout for outbound backend calls")
	serverCmd.Flags().StringSliceVar(&trustedProxies, "trusted-proxies", nil, "CIDR ranges whose proxy headers are trusted for rate limiting")
}
