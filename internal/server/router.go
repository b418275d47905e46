package server

import (
	"github.com/gin-gonic/gin"
	"github.com/portico-labs/portico/internal/docfetch"
	"github.com/portico-labs/portico/internal/gateway"
	"github.com/portico-labs/portico/internal/server/db"
	"github.com/portico-labs/portico/internal/server/handler"
	"github.com/portico-labs/portico/internal/vault"
)

// NewRouter creates and configures the Gin router with all routes.
// fetcher may be nil; registration then requires the caller to supply a host.
func NewRouter(store *db.Store, cfg *Config, fetcher docfetch.Fetcher) *gin.Engine {
	r := gin.Default()

	if len(cfg.CORSOrigins) > 0 {
		r.Use(CORS(cfg.CORSOrigins))
	}

	r.GET("/", func(c *gin.Context) {
		c.String(200, "ok")
	})

	// The vault is opened read-write for the registration/rotation paths and
	// read-only for the gateway, mirroring the write/read access split.
	adminVault := vault.New(store, cfg.MasterKey, vault.ReadWrite)
	gatewayVault := vault.New(store, cfg.MasterKey, vault.ReadOnly)

	gw := gateway.New(store, gatewayVault, gateway.Options{
		Scheme:  cfg.UpstreamScheme,
		Timeout: cfg.CallTimeout,
	})

	admin := BearerAuth(cfg.AdminToken)
	service := BearerAuth(cfg.AdminToken, cfg.ServiceToken)

	v1 := r.Group("/v1")
	{
		// Registry (writes: admin tier)
		v1.POST("/apis", admin, handler.HandleRegisterAPI(store, adminVault, fetcher))
		v1.PUT("/apis/:name/status", admin, handler.HandleUpdateStatus(store))
		v1.PUT("/apis/:name/credential", admin, handler.HandleRotateCredential(store, adminVault, gw))
		v1.DELETE("/apis/:name", admin, handler.HandleDeregisterAPI(store, adminVault, gw))

		// Registry (reads: service tier)
		v1.GET("/apis", service, handler.HandleListAPIs(store))
		v1.GET("/apis/:name", service, handler.HandleGetAPI(store))

		// Execution
		v1.POST("/apis/:name/execute", service, handler.HandleExecuteAPI(gw))
	}

	return r
}
