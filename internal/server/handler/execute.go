package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/portico-labs/portico/internal/gateway"
	"github.com/portico-labs/portico/internal/registry"
)

type executeRequest struct {
	Path        string            `json:"path" binding:"required"`
	Method      string            `json:"http_method"`
	QueryParams map[string]string `json:"query_params"`
	Headers     map[string]string `json:"headers"`
	Body        json.RawMessage   `json:"body"`
}

// HandleExecuteAPI handles POST /v1/apis/:name/execute. Any path under the
// registered API may be called; there is no allow-listing here. The remote
// outcome, 2xx or not, is reported in a structured envelope; gateway-side
// failures map to distinct HTTP statuses so the caller can tell "fix your
// registration" from "fix your path" from "the remote API failed".
func HandleExecuteAPI(gw *gateway.Gateway) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("name")
		var req executeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		res, err := gw.Execute(c.Request.Context(), gateway.Request{
			APIName:     name,
			Path:        req.Path,
			Method:      req.Method,
			QueryParams: req.QueryParams,
			Headers:     req.Headers,
			Body:        requestBody(req.Body),
		})
		if err != nil {
			writeExecuteError(c, name, req.Path, err)
			return
		}

		resp := gin.H{
			"api_name":    name,
			"path":        req.Path,
			"status_code": res.StatusCode,
			"elapsed_ms":  res.Elapsed.Milliseconds(),
			"body":        res.Body,
		}
		if res.JSON != nil {
			resp["json"] = res.JSON
		}
		c.JSON(http.StatusOK, resp)
	}
}

// requestBody passes raw JSON through verbatim, unquoting a plain JSON string
// so callers can send text bodies without double encoding.
func requestBody(raw json.RawMessage) []byte {
	if len(raw) == 0 {
		return nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return []byte(s)
		}
	}
	return raw
}

func writeExecuteError(c *gin.Context, name, path string, err error) {
	var (
		verr *registry.ValidationError
		perr *gateway.PathError
		rerr *gateway.RemoteError
		terr *gateway.TransportError
	)
	switch {
	case errors.Is(err, gateway.ErrNotRegistered):
		c.JSON(http.StatusNotFound, gin.H{
			"error":    "api not registered",
			"api_name": name,
		})
	case errors.As(err, &perr), errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":    err.Error(),
			"api_name": name,
			"path":     path,
		})
	case errors.Is(err, gateway.ErrCredentialMissing):
		c.JSON(http.StatusConflict, gin.H{
			"error":    "no credential stored for this api",
			"hint":     "rotate the credential via PUT /v1/apis/:name/credential",
			"api_name": name,
		})
	case errors.As(err, &rerr):
		// The gateway reached the remote API; its non-2xx answer is the
		// result, carried verbatim and never retried.
		c.JSON(http.StatusOK, gin.H{
			"api_name":    name,
			"path":        rerr.Path,
			"status_code": rerr.StatusCode,
			"body":        rerr.Body,
			"error":       rerr.Error(),
		})
	case errors.As(err, &terr):
		c.JSON(http.StatusBadGateway, gin.H{
			"error":    terr.Error(),
			"api_name": name,
			"path":     path,
		})
	default:
		log.Printf("ExecuteAPI(%q) error: %v", name, err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":    "execution failed",
			"api_name": name,
		})
	}
}
