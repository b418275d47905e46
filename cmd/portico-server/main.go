package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/portico-labs/portico/internal/docfetch"
	"github.com/portico-labs/portico/internal/logx"
	"github.com/portico-labs/portico/internal/server"
	"github.com/portico-labs/portico/internal/server/db"
	"github.com/portico-labs/portico/internal/version"
)

func main() {
	showVersion := flag.Bool("version", false, "Print version and exit")
	verbose := flag.Bool("verbose", false, "Enable verbose debug logs (same as --log-level debug)")
	logLevel := flag.String("log-level", "", "Log level: debug|info|warn|error (or PORTICO_LOG_LEVEL)")
	flag.BoolVar(showVersion, "v", false, "Print version and exit")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s\n\n", version.String("portico-server"))
		fmt.Fprintf(os.Stderr, "Portico server registers third-party HTTP APIs once and executes dynamic authenticated calls against them.\n\n")
		fmt.Fprintf(os.Stderr, "Environment variables:\n")
		fmt.Fprintf(os.Stderr, "  PORTICO_ADMIN_TOKEN      Admin Bearer token for registry writes (min 16 chars, required)\n")
		fmt.Fprintf(os.Stderr, "  PORTICO_SERVICE_TOKEN    Bearer token for lookup/execute only (optional)\n")
		fmt.Fprintf(os.Stderr, "  PORTICO_MASTER_KEY       Vault master key (64 hex chars, required)\n")
		fmt.Fprintf(os.Stderr, "  PORTICO_DB_PATH          SQLite database path (default: portico.db)\n")
		fmt.Fprintf(os.Stderr, "  PORTICO_LISTEN_ADDR      Listen address (default: :8080)\n")
		fmt.Fprintf(os.Stderr, "  PORTICO_UPSTREAM_SCHEME  Scheme for outbound calls: https|http (default: https)\n")
		fmt.Fprintf(os.Stderr, "  PORTICO_CALL_TIMEOUT     Per-call timeout for outbound calls (default: 30s)\n")
		fmt.Fprintf(os.Stderr, "  PORTICO_DOCS_TIMEOUT     Timeout for documentation descriptor fetches (default: 10s)\n")
		fmt.Fprintf(os.Stderr, "  PORTICO_CORS_ORIGINS     Comma-separated allowed CORS origins\n")
		fmt.Fprintf(os.Stderr, "  PORTICO_LOG_LEVEL        Log level: debug|info|warn|error (default: info)\n")
		fmt.Fprintf(os.Stderr, "\nFlags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String("portico-server"))
		os.Exit(0)
	}

	// A .env file is a convenience for local runs; absence is not an error.
	_ = godotenv.Load()

	if err := logx.Configure(*logLevel, *verbose); err != nil {
		log.Fatalf("configure logging: %v", err)
	}

	cfg, err := server.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	store, err := db.NewStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer store.Close()

	fetcher := docfetch.NewHTTPFetcher(cfg.DocsTimeout)
	r := server.NewRouter(store, cfg, fetcher)
	logx.Infof("server config: upstream_scheme=%s call_timeout=%s db=%s", cfg.UpstreamScheme, cfg.CallTimeout, cfg.DBPath)

	log.Printf("portico-server listening on %s", cfg.ListenAddr)
	if err := r.Run(cfg.ListenAddr); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
