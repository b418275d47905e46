package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/portico-labs/portico/internal/docfetch"
	"github.com/portico-labs/portico/internal/gateway"
	"github.com/portico-labs/portico/internal/logx"
	"github.com/portico-labs/portico/internal/registry"
	"github.com/portico-labs/portico/internal/server/db"
	"github.com/portico-labs/portico/internal/vault"
)

type registerAPIRequest struct {
	Name               string                 `json:"api_name" binding:"required"`
	Description        string                 `json:"description"`
	DocumentationURL   string                 `json:"documentation_url"`
	Host               string                 `json:"host"`
	BasePath           string                 `json:"base_path"`
	AuthType           string                 `json:"auth_type"`
	APIKeyParam        string                 `json:"api_key_param"`
	Credential         string                 `json:"credential"`
	AvailableEndpoints []registry.Endpoint    `json:"available_endpoints"`
	ExampleCalls       []registry.ExampleCall `json:"example_calls"`
	RequestedBy        string                 `json:"requested_by"`
	Validated          bool                   `json:"validated"`
}

// HandleRegisterAPI handles POST /v1/apis. One registration per API: the
// uniqueness check and the insert are a single atomic operation in the store,
// so concurrent registrations of one name produce exactly one row.
func HandleRegisterAPI(store *db.Store, vlt *vault.Vault, fetcher docfetch.Fetcher) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req registerAPIRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		// Best-effort documentation discovery fills gaps the caller left;
		// its failure never blocks a manually complete registration.
		if req.Host == "" && req.DocumentationURL != "" && fetcher != nil {
			summary, err := fetcher.Fetch(c.Request.Context(), req.DocumentationURL)
			if err != nil {
				logx.Warnf("documentation fetch for %q failed: %v", req.Name, err)
			} else {
				req.Host = summary.Host
				if req.BasePath == "" {
					req.BasePath = summary.BasePath
				}
				if req.AuthType == "" {
					req.AuthType = string(summary.AuthType)
				}
				if len(req.AvailableEndpoints) == 0 {
					req.AvailableEndpoints = summary.Endpoints
				}
			}
		}

		authType, err := registry.ParseAuthType(req.AuthType)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if authType == registry.AuthNone && req.Credential != "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "credential not accepted for auth_type none"})
			return
		}

		status := registry.StatusPending
		if req.Validated {
			status = registry.StatusValidated
		}

		api := &registry.API{
			ID:                 uuid.NewString(),
			Name:               req.Name,
			Description:        req.Description,
			DocumentationURL:   req.DocumentationURL,
			Host:               req.Host,
			BasePath:           req.BasePath,
			AuthType:           authType,
			APIKeyParam:        req.APIKeyParam,
			AvailableEndpoints: req.AvailableEndpoints,
			ExampleCalls:       req.ExampleCalls,
			Status:             status,
			RequestedBy:        req.RequestedBy,
		}
		api.Normalize()
		if err := api.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if err := store.CreateAPI(api); err != nil {
			if errors.Is(err, db.ErrDuplicateName) {
				c.JSON(http.StatusConflict, gin.H{
					"error": "api name already registered",
					"hint":  "names are unique case-insensitively; use PUT /v1/apis/:name/credential to rotate, or DELETE to deregister",
				})
				return
			}
			log.Printf("RegisterAPI(%q) error: %v", req.Name, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to register api"})
			return
		}

		if req.Credential != "" {
			if err := vlt.Put(authType, api.Name, req.Credential); err != nil {
				log.Printf("RegisterAPI(%q) credential store error: %v", api.Name, err)
				c.JSON(http.StatusInternalServerError, gin.H{
					"error":  "api registered but credential storage failed",
					"hint":   "rotate the credential via PUT /v1/apis/:name/credential",
					"api_id": api.ID,
				})
				return
			}
		}

		c.JSON(http.StatusCreated, gin.H{
			"api_id":   api.ID,
			"api_name": api.Name,
			"status":   api.Status,
		})
	}
}

// HandleGetAPI handles GET /v1/apis/:name (case-insensitive exact match).
func HandleGetAPI(store *db.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("name")
		api, err := store.GetAPIByName(name)
		if err != nil {
			log.Printf("GetAPI(%q) error: %v", name, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve api"})
			return
		}
		if api == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "api not registered", "api_name": name})
			return
		}
		c.JSON(http.StatusOK, api)
	}
}

// HandleListAPIs handles GET /v1/apis. Stable creation order; optional
// ?status= filter. Enumeration only; execution never consults this.
func HandleListAPIs(store *db.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var status registry.Status
		if v := c.Query("status"); v != "" {
			parsed, err := registry.ParseStatus(v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			status = parsed
		}

		apis, err := store.ListAPIs(status)
		if err != nil {
			log.Printf("ListAPIs error: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list apis"})
			return
		}
		if apis == nil {
			apis = []registry.API{}
		}
		c.JSON(http.StatusOK, apis)
	}
}

type updateStatusRequest struct {
	Status            string `json:"status" binding:"required"`
	ValidationMessage string `json:"validation_message"`
}

// HandleUpdateStatus handles PUT /v1/apis/:name/status. Only
// pending→validated and pending→failed are permitted; replacing a terminal
// registration requires deregister + register.
func HandleUpdateStatus(store *db.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("name")
		var req updateStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		status, err := registry.ParseStatus(req.Status)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		api, err := store.GetAPIByName(name)
		if err != nil {
			log.Printf("UpdateStatus(%q) lookup error: %v", name, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update status"})
			return
		}
		if api == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "api not registered", "api_name": name})
			return
		}

		if err := store.UpdateAPIStatus(api.ID, status, req.ValidationMessage); err != nil {
			switch {
			case errors.Is(err, db.ErrStatusTransition):
				c.JSON(http.StatusConflict, gin.H{
					"error":  "status transition not permitted",
					"status": api.Status,
				})
			case errors.Is(err, db.ErrAPINotFound):
				c.JSON(http.StatusNotFound, gin.H{"error": "api not registered", "api_name": name})
			default:
				log.Printf("UpdateStatus(%q) error: %v", name, err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update status"})
			}
			return
		}

		c.JSON(http.StatusOK, gin.H{"api_id": api.ID, "status": status})
	}
}

// HandleDeregisterAPI handles DELETE /v1/apis/:name. Removes the registration
// and its vault credential; the only path besides rotation that touches a
// stored credential.
func HandleDeregisterAPI(store *db.Store, vlt *vault.Vault, gw *gateway.Gateway) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("name")

		api, err := store.GetAPIByName(name)
		if err != nil {
			log.Printf("DeregisterAPI(%q) lookup error: %v", name, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to deregister api"})
			return
		}
		if api == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "api not registered", "api_name": name})
			return
		}

		if _, err := store.DeleteAPI(api.Name); err != nil {
			log.Printf("DeregisterAPI(%q) error: %v", name, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to deregister api"})
			return
		}

		if api.AuthType != registry.AuthNone {
			if _, err := vlt.Delete(api.AuthType, api.Name); err != nil {
				log.Printf("DeregisterAPI(%q) credential delete error: %v", name, err)
			}
			gw.InvalidateCredential(api.AuthType, api.Name)
		}

		c.JSON(http.StatusOK, gin.H{"status": "deleted", "api_name": api.Name})
	}
}
