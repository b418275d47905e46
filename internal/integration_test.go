package internal

import (
	"bytes"
	"crypto/rand"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/portico-labs/portico/internal/server"
	"github.com/portico-labs/portico/internal/server/db"
)

const (
	testAdminToken   = "test-admin-token-1234567890"
	testServiceToken = "test-service-token-0987654321"
)

func setupTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	var masterKey [32]byte
	rand.Read(masterKey[:])

	store, err := db.NewStore(":memory:")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	cfg := &server.Config{
		AdminToken:     testAdminToken,
		ServiceToken:   testServiceToken,
		MasterKey:      masterKey,
		UpstreamScheme: "http",
		CallTimeout:    5 * time.Second,
	}

	router := server.NewRouter(store, cfg, nil)
	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)
	return ts
}

// upstreamRecorder holds what the last proxied request looked like, observed
// at the upstream itself. Response bodies coming back through the gateway are
// credential-redacted, so injection has to be verified on this side.
type upstreamRecorder struct {
	path  string
	query string
	auth  string
}

// echoUpstream serves a fixed JSON body and records each request it receives.
func echoUpstream(t *testing.T) (*httptest.Server, *upstreamRecorder, string) {
	t.Helper()
	rec := &upstreamRecorder{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.path = r.URL.Path
		rec.query = r.URL.RawQuery
		rec.auth = r.Header.Get("Authorization")
		w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(ts.Close)
	return ts, rec, strings.TrimPrefix(ts.URL, "http://")
}

func request(t *testing.T, token, method, url string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	raw, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	return resp, raw
}

func TestRegisterExecuteFlow(t *testing.T) {
	ts := setupTestServer(t)
	_, rec, upstreamHost := echoUpstream(t)

	// Register an api_key API with its credential.
	resp, body := request(t, testAdminToken, "POST", ts.URL+"/v1/apis", map[string]any{
		"api_name":   "fred",
		"host":       upstreamHost,
		"base_path":  "/fred",
		"auth_type":  "api_key",
		"credential": "key-abc",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register: status %d, body %s", resp.StatusCode, body)
	}
	var reg struct {
		APIID  string `json:"api_id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &reg); err != nil {
		t.Fatalf("decode register response: %v", err)
	}
	if reg.APIID == "" || reg.Status != "pending" {
		t.Fatalf("register response: %s", body)
	}

	// Round trip: lookup returns the registered fields.
	resp, body = request(t, testServiceToken, "GET", ts.URL+"/v1/apis/FRED", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get: status %d, body %s", resp.StatusCode, body)
	}
	var got struct {
		APIID       string `json:"api_id"`
		Host        string `json:"host"`
		SecretScope string `json:"secret_scope"`
	}
	json.Unmarshal(body, &got)
	if got.APIID != reg.APIID || got.Host != upstreamHost || got.SecretScope != "portico-api-keys" {
		t.Fatalf("lookup mismatch: %s", body)
	}
	if bytes.Contains(body, []byte("key-abc")) {
		t.Fatal("credential leaked in lookup response")
	}

	// Execute: the injected key wins over a caller-supplied api_key param.
	resp, body = request(t, testServiceToken, "POST", ts.URL+"/v1/apis/fred/execute", map[string]any{
		"path":         "/series/GDPC1",
		"query_params": map[string]string{"api_key": "attacker", "units": "lin"},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("execute: status %d, body %s", resp.StatusCode, body)
	}
	var exec struct {
		StatusCode int    `json:"status_code"`
		Body       string `json:"body"`
	}
	json.Unmarshal(body, &exec)
	if exec.StatusCode != 200 {
		t.Fatalf("execute envelope: %s", body)
	}
	if rec.path != "/fred/series/GDPC1" {
		t.Errorf("upstream path = %q", rec.path)
	}
	if !strings.Contains(rec.query, "api_key=key-abc") || strings.Contains(rec.query, "attacker") {
		t.Errorf("upstream query = %q", rec.query)
	}
	if !strings.Contains(rec.query, "units=lin") {
		t.Errorf("caller params dropped: %q", rec.query)
	}
	if strings.Contains(exec.Body, "key-abc") {
		t.Errorf("credential leaked in execute body: %s", exec.Body)
	}
}

func TestDuplicateRegistrationRejected(t *testing.T) {
	ts := setupTestServer(t)

	reg := map[string]any{"api_name": "github_api", "host": "api.github.com", "auth_type": "none"}
	resp, _ := request(t, testAdminToken, "POST", ts.URL+"/v1/apis", reg)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("first register: status %d", resp.StatusCode)
	}

	reg["api_name"] = "GitHub_API"
	resp, body := request(t, testAdminToken, "POST", ts.URL+"/v1/apis", reg)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate register: status %d, body %s", resp.StatusCode, body)
	}
}

func TestExecuteErrorMapping(t *testing.T) {
	ts := setupTestServer(t)
	upstream, _, upstreamHost := echoUpstream(t)

	request(t, testAdminToken, "POST", ts.URL+"/v1/apis", map[string]any{
		"api_name": "demo", "host": upstreamHost, "auth_type": "none",
	})

	// Unknown api_name
	resp, _ := request(t, testServiceToken, "POST", ts.URL+"/v1/apis/nope/execute", map[string]any{"path": "/x"})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown api: status %d", resp.StatusCode)
	}

	// Traversal path rejected before dispatch
	resp, body := request(t, testServiceToken, "POST", ts.URL+"/v1/apis/demo/execute", map[string]any{"path": "/a/../../b"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("traversal: status %d, body %s", resp.StatusCode, body)
	}

	// Missing credential: registered bearer API without a stored secret
	request(t, testAdminToken, "POST", ts.URL+"/v1/apis", map[string]any{
		"api_name": "tokenless", "host": upstreamHost, "auth_type": "bearer_token",
	})
	resp, _ = request(t, testServiceToken, "POST", ts.URL+"/v1/apis/tokenless/execute", map[string]any{"path": "/x"})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("missing credential: status %d", resp.StatusCode)
	}

	// Transport failure
	upstream.Close()
	resp, _ = request(t, testServiceToken, "POST", ts.URL+"/v1/apis/demo/execute", map[string]any{"path": "/x"})
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("transport failure: status %d", resp.StatusCode)
	}
}

func TestRemoteErrorEnvelope(t *testing.T) {
	ts := setupTestServer(t)
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"no such series"}`, http.StatusNotFound)
	}))
	t.Cleanup(upstream.Close)
	host := strings.TrimPrefix(upstream.URL, "http://")

	request(t, testAdminToken, "POST", ts.URL+"/v1/apis", map[string]any{
		"api_name": "demo", "host": host, "auth_type": "none",
	})

	resp, body := request(t, testServiceToken, "POST", ts.URL+"/v1/apis/demo/execute", map[string]any{"path": "/series/NOPE"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("remote error envelope: status %d", resp.StatusCode)
	}
	var envelope struct {
		StatusCode int    `json:"status_code"`
		Body       string `json:"body"`
		Path       string `json:"path"`
		Error      string `json:"error"`
	}
	json.Unmarshal(body, &envelope)
	if envelope.StatusCode != 404 || envelope.Error == "" {
		t.Fatalf("envelope: %s", body)
	}
	if !strings.Contains(envelope.Body, "no such series") {
		t.Errorf("remote body not carried: %s", body)
	}
	if envelope.Path != "/series/NOPE" {
		t.Errorf("envelope path = %q", envelope.Path)
	}
}

func TestRotateTakesEffectImmediately(t *testing.T) {
	ts := setupTestServer(t)
	_, rec, upstreamHost := echoUpstream(t)

	request(t, testAdminToken, "POST", ts.URL+"/v1/apis", map[string]any{
		"api_name": "github_api", "host": upstreamHost,
		"auth_type": "bearer_token", "credential": "tok-old",
	})

	execute := func() string {
		resp, body := request(t, testServiceToken, "POST", ts.URL+"/v1/apis/github_api/execute", map[string]any{"path": "/user"})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("execute: status %d, body %s", resp.StatusCode, body)
		}
		if bytes.Contains(body, []byte("tok-old")) || bytes.Contains(body, []byte("tok-new")) {
			t.Fatalf("credential leaked in execute response: %s", body)
		}
		return rec.auth
	}

	if got := execute(); got != "Bearer tok-old" {
		t.Fatalf("before rotate: %q", got)
	}

	resp, body := request(t, testAdminToken, "PUT", ts.URL+"/v1/apis/github_api/credential", map[string]any{"credential": "tok-new"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("rotate: status %d, body %s", resp.StatusCode, body)
	}
	if bytes.Contains(body, []byte("tok-new")) {
		t.Fatal("rotate echoed the credential")
	}

	if got := execute(); got != "Bearer tok-new" {
		t.Fatalf("after rotate: %q", got)
	}
}

func TestStatusLifecycle(t *testing.T) {
	ts := setupTestServer(t)

	request(t, testAdminToken, "POST", ts.URL+"/v1/apis", map[string]any{
		"api_name": "demo", "host": "example.com", "auth_type": "none",
	})

	resp, _ := request(t, testAdminToken, "PUT", ts.URL+"/v1/apis/demo/status", map[string]any{"status": "validated"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("validate: status %d", resp.StatusCode)
	}

	// Terminal: a second transition is refused.
	resp, _ = request(t, testAdminToken, "PUT", ts.URL+"/v1/apis/demo/status", map[string]any{"status": "failed"})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("re-transition: status %d", resp.StatusCode)
	}

	// Deregister frees the name for re-registration.
	resp, _ = request(t, testAdminToken, "DELETE", ts.URL+"/v1/apis/demo", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("deregister: status %d", resp.StatusCode)
	}
	resp, _ = request(t, testServiceToken, "GET", ts.URL+"/v1/apis/demo", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("get after deregister: status %d", resp.StatusCode)
	}
	resp, _ = request(t, testAdminToken, "POST", ts.URL+"/v1/apis", map[string]any{
		"api_name": "demo", "host": "example.com", "auth_type": "none",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("re-register: status %d", resp.StatusCode)
	}
}

func TestServiceTokenCannotWrite(t *testing.T) {
	ts := setupTestServer(t)

	resp, _ := request(t, testServiceToken, "POST", ts.URL+"/v1/apis", map[string]any{
		"api_name": "demo", "host": "example.com", "auth_type": "none",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("service-token register: status %d", resp.StatusCode)
	}

	resp, _ = request(t, "not-a-token", "GET", ts.URL+"/v1/apis", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad token list: status %d", resp.StatusCode)
	}
}

func TestAdvisoryMetadataNeverGatesExecution(t *testing.T) {
	ts := setupTestServer(t)
	_, _, upstreamHost := echoUpstream(t)

	// Register with a single documented endpoint, then call a different one.
	request(t, testAdminToken, "POST", ts.URL+"/v1/apis", map[string]any{
		"api_name": "demo", "host": upstreamHost, "auth_type": "none",
		"available_endpoints": []map[string]string{
			{"path": "/documented", "method": "GET"},
		},
	})

	resp, body := request(t, testServiceToken, "POST", ts.URL+"/v1/apis/demo/execute", map[string]any{"path": "/undocumented/route"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("undocumented path: status %d, body %s", resp.StatusCode, body)
	}
	var envelope struct {
		StatusCode int `json:"status_code"`
	}
	json.Unmarshal(body, &envelope)
	if envelope.StatusCode != 200 {
		t.Fatalf("undocumented path blocked: %s", body)
	}
}

func init() {
	gin.SetMode(gin.TestMode)
}
