package handler

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/portico-labs/portico/internal/gateway"
	"github.com/portico-labs/portico/internal/registry"
	"github.com/portico-labs/portico/internal/server/db"
	"github.com/portico-labs/portico/internal/vault"
)

type rotateCredentialRequest struct {
	Credential string `json:"credential" binding:"required"`
}

// HandleRotateCredential handles PUT /v1/apis/:name/credential. Overwrites
// the stored credential and invalidates the gateway cache so the new value
// takes effect within the staleness bound. The value itself is never echoed.
func HandleRotateCredential(store *db.Store, vlt *vault.Vault, gw *gateway.Gateway) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("name")
		var req rotateCredentialRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		api, err := store.GetAPIByName(name)
		if err != nil {
			log.Printf("RotateCredential(%q) lookup error: %v", name, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to rotate credential"})
			return
		}
		if api == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "api not registered", "api_name": name})
			return
		}
		if api.AuthType == registry.AuthNone {
			c.JSON(http.StatusBadRequest, gin.H{"error": "api has auth_type none, no credential to rotate"})
			return
		}

		if err := vlt.Put(api.AuthType, api.Name, req.Credential); err != nil {
			log.Printf("RotateCredential(%q) error: %v", name, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to rotate credential"})
			return
		}
		gw.InvalidateCredential(api.AuthType, api.Name)

		c.JSON(http.StatusOK, gin.H{
			"api_name":     api.Name,
			"secret_scope": api.SecretScope,
			"status":       "rotated",
		})
	}
}
