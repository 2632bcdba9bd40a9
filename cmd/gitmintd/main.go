// Package main is the entry point for the gitmintd gateway.
//
// gitmintd serves the pointer registry that maps collection names to
// grove:// blob URIs, an audit history of pointer moves, and the GitHub
// account link flow. Configuration is read from CLI flags, a .env file
// (for OAuth credentials), and server_config.json (for the JWT secret and
// rate limits).
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"

	"github.com/gitmint/gitmint/internal/gateway"
	"github.com/gitmint/gitmint/internal/grove"
	"github.com/gitmint/gitmint/internal/registry"
	"github.com/gitmint/gitmint/internal/store"
)

func main() {
	if err := mainImpl(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "gitmintd: %v\n", err)
		os.Exit(1)
	}
}

func mainImpl() error {
	version := flag.Bool("version", false, "Print version and exit")
	httpAddr := flag.String("http", "localhost:8080", "Address to listen on (e.g., localhost:8080, :8080, 0.0.0.0:8080)")
	dataDir := flag.String("data-dir", "./data", "Data directory")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	baseURL := flag.String("base-url", "http://localhost", "Base URL for OAuth callbacks (e.g., https://example.com)")
	groveEndpoint := flag.String("grove-endpoint", "https://api.grove.storage", "Grove storage endpoint")
	githubClientID := flag.String("github-client-id", "", "GitHub OAuth client ID")
	githubClientSecret := flag.String("github-client-secret", "", "GitHub OAuth client secret")
	geoDB := flag.String("geo-db", "", "Path to MaxMind MMDB file for IP geolocation (optional)")
	seedFile := flag.String("seed", "", "YAML file of initial pointers, loaded once at startup")
	gitHistory := flag.Bool("git-history", true, "Record pointer moves in a git audit log")
	printToken := flag.String("print-token", "", "Print a registry write token for the given wallet and exit")
	dumpSchema := flag.Bool("dump-schema", false, "Print the JSON schema of the stored entities and exit")
	flag.Parse()
	if len(flag.Args()) > 0 {
		return fmt.Errorf("unknown arguments: %v", flag.Args())
	}

	if *version {
		printVersion()
		return nil
	}
	if *dumpSchema {
		return dumpSchemas(os.Stdout)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()
	ll := &slog.LevelVar{}
	ll.Set(slog.LevelInfo)
	// Skip timestamps when running under systemd (it adds its own).
	underSystemd := os.Getenv("JOURNAL_STREAM") != ""
	logger := slog.New(tint.NewHandler(colorable.NewColorable(os.Stderr), &tint.Options{
		Level:      ll,
		TimeFormat: "15:04:05.000", // Like time.TimeOnly plus milliseconds.
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Drop time when running under systemd.
			if underSystemd && a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}
			// Drop localhost IPs (not useful in logs).
			if a.Key == "ip" {
				if v := a.Value.String(); v == "127.0.0.1" || v == "::1" {
					return slog.Attr{}
				}
			}
			val := a.Value.Any()
			skip := false
			switch t := val.(type) {
			case string:
				skip = t == ""
			case bool:
				skip = !t
			case int64:
				skip = t == 0
			case time.Duration:
				skip = t == 0
			case nil:
				skip = true
			}
			if skip {
				return slog.Attr{}
			}
			return a
		},
	}))
	slog.SetDefault(logger)

	if err := os.MkdirAll(*dataDir, 0o755); err != nil { //nolint:gosec // G301: 0o755 is intentional for data directories
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	// Load .env for OAuth credentials and bootstrap settings.
	env, err := loadDotEnv(*dataDir)
	if err != nil {
		return err
	}

	serverCfg, err := gateway.LoadServerConfig(*dataDir)
	if err != nil {
		return fmt.Errorf("failed to load server_config.json: %w", err)
	}

	// Override with .env file values if not explicitly set via flags.
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})
	if !set["http"] {
		if v := env["HTTP"]; v != "" {
			*httpAddr = v
		}
	}
	if !set["log-level"] {
		if v := env["LOG_LEVEL"]; v != "" {
			*logLevel = v
		}
	}
	if !set["base-url"] {
		if v := env["BASE_URL"]; v != "" {
			*baseURL = v
		}
	}
	if !set["grove-endpoint"] {
		if v := env["GROVE_ENDPOINT"]; v != "" {
			*groveEndpoint = v
		}
	}
	if !set["github-client-id"] {
		if v := env["GITHUB_CLIENT_ID"]; v != "" {
			*githubClientID = v
		}
	}
	if !set["github-client-secret"] {
		if v := env["GITHUB_CLIENT_SECRET"]; v != "" {
			*githubClientSecret = v
		}
	}
	if !set["geo-db"] {
		if v := env["GEO_DB"]; v != "" {
			*geoDB = v
		}
	}
	if (*githubClientID == "") != (*githubClientSecret == "") {
		return errors.New("github-client-id and github-client-secret must both be set or both be empty")
	}

	if *printToken != "" {
		token, err := gateway.NewRegistryToken(serverCfg.JWTSecret, *printToken)
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	}

	// Normalize addr: ":8080" becomes "localhost:8080".
	addr := *httpAddr
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	// Append port to base URL if localhost and no port specified.
	if u, err := url.Parse(*baseURL); err == nil && u.Port() == "" && u.Hostname() == "localhost" {
		if _, p, err := net.SplitHostPort(addr); err == nil {
			u.Host = net.JoinHostPort(u.Hostname(), p)
			*baseURL = u.String()
		}
	}

	switch *logLevel {
	case "debug":
		ll.Set(slog.LevelDebug)
	case "info":
	case "warn":
		ll.Set(slog.LevelWarn)
	case "error":
		ll.Set(slog.LevelError)
	default:
		return fmt.Errorf("unknown log level: %q", *logLevel)
	}

	reg, err := registry.NewStore(*dataDir, logger)
	if err != nil {
		return fmt.Errorf("failed to open pointer registry: %w", err)
	}
	if *gitHistory {
		if err := reg.EnableHistory(); err != nil {
			return fmt.Errorf("failed to enable pointer history: %w", err)
		}
	}
	if *seedFile != "" {
		if err := reg.Seed(*seedFile); err != nil {
			return fmt.Errorf("failed to seed registry: %w", err)
		}
	}
	// Pick up external edits to registry.json while running.
	go func() {
		if err := reg.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.WarnContext(ctx, "Registry watch stopped", "error", err)
		}
	}()

	var geoChecker *gateway.GeoChecker
	if *geoDB != "" {
		geoChecker, err = gateway.OpenGeoDB(*geoDB)
		if err != nil {
			return fmt.Errorf("failed to open geo database: %w", err)
		}
		defer func() { _ = geoChecker.Close() }()
		slog.InfoContext(ctx, "IP geolocation enabled", "db", *geoDB)
	}

	// The link flow writes through the gateway's own pointer API so its
	// updates take the same path as any other client.
	var data *store.Store
	if *githubClientID != "" {
		token, err := gateway.NewRegistryToken(serverCfg.JWTSecret, "gitmintd")
		if err != nil {
			return err
		}
		cache := grove.NewCache(grove.DefaultTTL, nil)
		blobs := grove.NewClient(*groveEndpoint, cache)
		pointers := registry.NewClient("http://"+addr, token, cache, logger)
		data = store.New(blobs, pointers, logger)
	}

	srv := gateway.NewServer(serverCfg, reg, data, logger, gateway.Options{
		GitHubClientID:     *githubClientID,
		GitHubClientSecret: *githubClientSecret,
		BaseURL:            *baseURL,
		GeoDB:              geoChecker,
	})
	defer srv.Close()

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.InfoContext(ctx, "Starting gateway", "addr", addr, "baseURL", *baseURL, "grove", *groveEndpoint)
		serverErr <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		slog.InfoContext(ctx, "Shutting down gateway")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		slog.InfoContext(ctx, "Gateway stopped")
	}
	return nil
}

func printVersion() {
	version, goVersion, revision, dirty := getBuildInfo()
	fmt.Printf("gitmintd %s\n", version)
	fmt.Printf("  Go version: %s\n", goVersion)
	fmt.Printf("  Revision:   %s\n", revision)
	if dirty {
		fmt.Printf("  Modified:   true\n")
	}
}

func getBuildInfo() (version, goVersion, revision string, dirty bool) {
	version = "unknown"
	goVersion = "unknown"
	revision = "unknown"
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	version = info.Main.Version
	if version == "" || version == "(devel)" {
		version = "dev"
	}
	goVersion = info.GoVersion
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.modified":
			dirty = setting.Value == "true"
		}
	}
	return
}

func loadDotEnv(dataDir string) (map[string]string, error) {
	path := filepath.Join(dataDir, ".env")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	env, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse .env: %w", err)
	}
	return env, nil
}
