// Package main serves the NeuroLink Remote panel and its HTTP/WebSocket API
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/edgecli/neurolink/internal/api"
	"github.com/edgecli/neurolink/internal/config"
	"github.com/edgecli/neurolink/internal/core"
	"github.com/edgecli/neurolink/internal/web"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const (
	shutdownTimeout = 5 * time.Second
	bodyLimit       = "64K"
)

func main() {
	configFile := flag.String("config", os.Getenv(config.EnvPrefix+"CONFIG"), "path to neurolink.ini")
	addr := flag.String("addr", "", "listen address (overrides web_addr)")
	flag.Parse()

	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Printf("[INFO] No .env file found or error loading it: %v", err)
	}

	cfg, err := config.New(*configFile)
	if err != nil {
		log.Fatalf("[ERROR] Failed to load configuration: %v", err)
	}
	if *addr != "" {
		cfg.WebAddr = *addr
	}

	c, err := core.Build(cfg)
	if err != nil {
		log.Fatalf("[ERROR] Failed to initialise: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c.Start(ctx)

	h := api.NewHandler(api.Deps{
		Device:    c.Controller,
		Logs:      c.Logs,
		Chat:      c.Assistant,
		Telemetry: c.Telemetry,
		Provider:  c.Provider,
		Version:   Version,
	})
	wsHandler := api.NewWebSocketHandler(h)

	e := newServer(cfg)
	api.RegisterRoutes(e, h, wsHandler)
	if err := web.RegisterStaticRoutes(e); err != nil {
		log.Printf("[WARN] failed to register static routes: %v", err)
	}

	printBanner(cfg)

	s := &http.Server{
		Addr:              cfg.WebAddr,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- e.StartServer(s)
	}()

	select {
	case <-ctx.Done():
		log.Printf("[INFO] Shutting down")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("[ERROR] Server failed: %v", err)
		}
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("[WARN] Shutdown: %v", err)
	}

	c.Wait()
	log.Printf("[INFO] Stopped")
}

func newServer(cfg *config.Config) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Debug = cfg.Verbose
	e.HTTPErrorHandler = api.ErrorHandler

	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Skipper: func(c echo.Context) bool {
			if !cfg.RequestLogging {
				return true
			}
			path := c.Request().URL.Path
			return path == "/api/health" || strings.HasPrefix(path, "/assets/")
		},
	}))

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 1024 * 4,
	}))

	e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Skipper: func(c echo.Context) bool {
			return c.Request().URL.Path == "/api/ws"
		},
	}))

	e.Use(middleware.BodyLimit(bodyLimit))

	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
	}))

	return e
}

func printBanner(cfg *config.Config) {
	source := cfg.Source
	if source == "" {
		source = "(defaults)"
	}

	fmt.Printf("\n")
	fmt.Printf("╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Printf("║           NeuroLink Remote                                ║\n")
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Version:    %-45s║\n", Version)
	fmt.Printf("║  Build Time: %-45s║\n", BuildTime)
	fmt.Printf("║  Target:     %-45s║\n", cfg.MACAddress+" ("+cfg.IPAddress+")")
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Config:    %-46s║\n", source)
	fmt.Printf("║  Listen:    %-46s║\n", cfg.WebAddr)
	fmt.Printf("╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Printf("\n")
}
