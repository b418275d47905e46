package server

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"time"
)

// Config holds server configuration loaded from environment variables.
type Config struct {
	AdminToken     string
	ServiceToken   string
	MasterKey      [32]byte
	DBPath         string
	ListenAddr     string
	UpstreamScheme string
	CallTimeout    time.Duration
	DocsTimeout    time.Duration
	CORSOrigins    []string
}

// LoadConfig loads server configuration from environment variables.
func LoadConfig() (*Config, error) {
	adminToken := os.Getenv("PORTICO_ADMIN_TOKEN")
	if adminToken == "" {
		return nil, fmt.Errorf("PORTICO_ADMIN_TOKEN is required")
	}
	if len(adminToken) < 16 {
		return nil, fmt.Errorf("PORTICO_ADMIN_TOKEN must be at least 16 characters")
	}

	// The service token covers lookup/execute only. When unset, the admin
	// token is the single tier.
	serviceToken := os.Getenv("PORTICO_SERVICE_TOKEN")
	if serviceToken != "" && len(serviceToken) < 16 {
		return nil, fmt.Errorf("PORTICO_SERVICE_TOKEN must be at least 16 characters")
	}

	masterKeyHex := os.Getenv("PORTICO_MASTER_KEY")
	if masterKeyHex == "" {
		return nil, fmt.Errorf("PORTICO_MASTER_KEY is required")
	}
	keyBytes, err := hex.DecodeString(strings.TrimSpace(masterKeyHex))
	if err != nil || len(keyBytes) != 32 {
		return nil, fmt.Errorf("PORTICO_MASTER_KEY must be 64 hex characters")
	}
	var masterKey [32]byte
	copy(masterKey[:], keyBytes)

	dbPath := os.Getenv("PORTICO_DB_PATH")
	if dbPath == "" {
		dbPath = "portico.db"
	}

	listenAddr := os.Getenv("PORTICO_LISTEN_ADDR")
	if listenAddr == "" {
		listenAddr = ":8080"
	}

	scheme := strings.TrimSpace(strings.ToLower(os.Getenv("PORTICO_UPSTREAM_SCHEME")))
	switch scheme {
	case "":
		scheme = "https"
	case "https", "http":
	default:
		return nil, fmt.Errorf("PORTICO_UPSTREAM_SCHEME must be https or http")
	}

	callTimeout := 30 * time.Second
	if v := os.Getenv("PORTICO_CALL_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("PORTICO_CALL_TIMEOUT must be a positive duration (e.g. 30s)")
		}
		callTimeout = d
	}

	docsTimeout := 10 * time.Second
	if v := os.Getenv("PORTICO_DOCS_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("PORTICO_DOCS_TIMEOUT must be a positive duration (e.g. 10s)")
		}
		docsTimeout = d
	}

	var corsOrigins []string
	if v := os.Getenv("PORTICO_CORS_ORIGINS"); v != "" {
		for _, o := range strings.Split(v, ",") {
			o = strings.TrimSpace(o)
			if o != "" {
				corsOrigins = append(corsOrigins, o)
			}
		}
	}

	return &Config{
		AdminToken:     adminToken,
		ServiceToken:   serviceToken,
		MasterKey:      masterKey,
		DBPath:         dbPath,
		ListenAddr:     listenAddr,
		UpstreamScheme: scheme,
		CallTimeout:    callTimeout,
		DocsTimeout:    docsTimeout,
		CORSOrigins:    corsOrigins,
	}, nil
}
