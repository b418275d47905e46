package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/portico-labs/portico/internal/client"
	"github.com/portico-labs/portico/internal/registry"
	"github.com/portico-labs/portico/internal/version"
	"github.com/spf13/cobra"
)

// resolveServerURL returns the server URL from the flag or PORTICO_SERVER_URL
// env var. Prints a warning to stderr when falling back to the env var.
// Returns an error if neither is set.
func resolveServerURL(cmd *cobra.Command, flagValue string) (string, error) {
	normalize := func(v string) string {
		return strings.TrimRight(v, "/")
	}
	if cmd.Flags().Changed("server") {
		return normalize(flagValue), nil
	}
	if v := os.Getenv("PORTICO_SERVER_URL"); v != "" {
		fmt.Fprintf(os.Stderr, "portico: WARNING: using server URL from PORTICO_SERVER_URL environment variable\n")
		return normalize(v), nil
	}
	return "", fmt.Errorf("server URL required: use --server flag or set PORTICO_SERVER_URL")
}

// resolveToken returns the Bearer token from the flag or environment.
// Admin-tier commands need PORTICO_ADMIN_TOKEN; lookup/execute also accept
// PORTICO_SERVICE_TOKEN.
func resolveToken(flagValue string, serviceOK bool) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if v := os.Getenv("PORTICO_ADMIN_TOKEN"); v != "" {
		return v, nil
	}
	if serviceOK {
		if v := os.Getenv("PORTICO_SERVICE_TOKEN"); v != "" {
			return v, nil
		}
	}
	return "", fmt.Errorf("token required: use --token flag or set PORTICO_ADMIN_TOKEN")
}

func newClient(cmd *cobra.Command, serverURL, token string, serviceOK bool) (*client.Client, error) {
	url, err := resolveServerURL(cmd, serverURL)
	if err != nil {
		return nil, err
	}
	tok, err := resolveToken(token, serviceOK)
	if err != nil {
		return nil, err
	}
	return client.New(url, tok), nil
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func main() {
	rootCmd := &cobra.Command{
		Use:     "portico",
		Short:   "Portico - register third-party HTTP APIs once, call any path dynamically",
		Version: version.Version,
	}
	rootCmd.SetVersionTemplate(version.String("portico") + "\n")

	rootCmd.AddCommand(newRegisterCmd())
	rootCmd.AddCommand(newGetCmd())
	rootCmd.AddCommand(newListCmd())
	rootCmd.AddCommand(newCallCmd())
	rootCmd.AddCommand(newRotateCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newDeregisterCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRegisterCmd() *cobra.Command {
	var (
		serverURL   string
		token       string
		host        string
		basePath    string
		authType    string
		keyParam    string
		credential  string
		docURL      string
		description string
		requestedBy string
		validated   bool
	)

	cmd := &cobra.Command{
		Use:   "register <api_name>",
		Short: "Register an API once: host, base path and auth mode",
		Long: `Register a third-party HTTP API. After registration any path under the
API can be called with "portico call" without further registration.
The credential, if given, is stored in the segregated secret vault, never
in the registry itself.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(cmd, serverURL, token, false)
			if err != nil {
				return err
			}
			resp, err := c.Register(client.RegisterRequest{
				Name:             args[0],
				Description:      description,
				DocumentationURL: docURL,
				Host:             host,
				BasePath:         basePath,
				AuthType:         authType,
				APIKeyParam:      keyParam,
				Credential:       credential,
				RequestedBy:      requestedBy,
				Validated:        validated,
			})
			if err != nil {
				return err
			}
			return printJSON(resp)
		},
	}

	cmd.Flags().StringVar(&serverURL, "server", "", "Portico server URL")
	cmd.Flags().StringVar(&token, "token", "", "Admin Bearer token")
	cmd.Flags().StringVar(&host, "host", "", "API host, no scheme (e.g. api.stlouisfed.org)")
	cmd.Flags().StringVar(&basePath, "base-path", "", "Path prefix prepended to every call (e.g. /fred)")
	cmd.Flags().StringVar(&authType, "auth", "none", "Auth type: none|api_key|bearer_token")
	cmd.Flags().StringVar(&keyParam, "key-param", "", "Query parameter name for api_key injection (default api_key)")
	cmd.Flags().StringVar(&credential, "credential", "", "Credential value to store in the vault")
	cmd.Flags().StringVar(&docURL, "doc-url", "", "Documentation URL; consulted when --host is omitted")
	cmd.Flags().StringVar(&description, "description", "", "Free-text description")
	cmd.Flags().StringVar(&requestedBy, "requested-by", "", "Audit: who requested this registration")
	cmd.Flags().BoolVar(&validated, "validated", false, "Mark the registration validated immediately")

	return cmd
}

func newGetCmd() *cobra.Command {
	var serverURL, token string

	cmd := &cobra.Command{
		Use:   "get <api_name>",
		Short: "Look up a registration by name (case-insensitive)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(cmd, serverURL, token, true)
			if err != nil {
				return err
			}
			api, err := c.Get(args[0])
			if err != nil {
				return err
			}
			return printJSON(api)
		},
	}

	cmd.Flags().StringVar(&serverURL, "server", "", "Portico server URL")
	cmd.Flags().StringVar(&token, "token", "", "Bearer token")
	return cmd
}

func newListCmd() *cobra.Command {
	var serverURL, token, status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered APIs in creation order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(cmd, serverURL, token, true)
			if err != nil {
				return err
			}
			apis, err := c.List(status)
			if err != nil {
				return err
			}
			return printJSON(apis)
		},
	}

	cmd.Flags().StringVar(&serverURL, "server", "", "Portico server URL")
	cmd.Flags().StringVar(&token, "token", "", "Bearer token")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status: pending|validated|failed")
	return cmd
}

func newCallCmd() *cobra.Command {
	var (
		serverURL string
		token     string
		method    string
		params    []string
		headers   []string
		body      string
	)

	cmd := &cobra.Command{
		Use:   "call <api_name> <path>",
		Short: "Execute a dynamic path under a registered API",
		Long: `Execute any path under a registered API. The path must start with "/".
Credentials are injected server-side per the registered auth mode; they
never pass through this client.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(cmd, serverURL, token, true)
			if err != nil {
				return err
			}

			queryParams, err := parseKeyValues(params)
			if err != nil {
				return fmt.Errorf("--param: %w", err)
			}
			headerMap, err := parseKeyValues(headers)
			if err != nil {
				return fmt.Errorf("--header: %w", err)
			}

			req := client.ExecuteRequest{
				Path:        args[1],
				Method:      method,
				QueryParams: queryParams,
				Headers:     headerMap,
			}
			if body != "" {
				if json.Valid([]byte(body)) {
					req.Body = json.RawMessage(body)
				} else {
					raw, _ := json.Marshal(body)
					req.Body = raw
				}
			}

			res, err := c.Execute(args[0], req)
			if err != nil {
				return err
			}
			return printJSON(res)
		},
	}

	cmd.Flags().StringVar(&serverURL, "server", "", "Portico server URL")
	cmd.Flags().StringVar(&token, "token", "", "Bearer token")
	cmd.Flags().StringVarP(&method, "method", "X", "", "HTTP method (default GET)")
	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "Query parameter key=value (repeatable)")
	cmd.Flags().StringArrayVarP(&headers, "header", "H", nil, "Header key=value (repeatable)")
	cmd.Flags().StringVarP(&body, "body", "d", "", "Request body (JSON or plain text)")
	return cmd
}

func newRotateCmd() *cobra.Command {
	var serverURL, token, credential string

	cmd := &cobra.Command{
		Use:   "rotate <api_name>",
		Short: "Overwrite the stored credential for an API",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if credential == "" {
				return fmt.Errorf("--credential is required")
			}
			c, err := newClient(cmd, serverURL, token, false)
			if err != nil {
				return err
			}
			if err := c.Rotate(args[0], credential); err != nil {
				return err
			}
			fmt.Printf("credential rotated for %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&serverURL, "server", "", "Portico server URL")
	cmd.Flags().StringVar(&token, "token", "", "Admin Bearer token")
	cmd.Flags().StringVar(&credential, "credential", "", "New credential value")
	return cmd
}

func newStatusCmd() *cobra.Command {
	var serverURL, token, message string

	cmd := &cobra.Command{
		Use:   "status <api_name> <validated|failed>",
		Short: "Transition a pending registration to validated or failed",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := registry.ParseStatus(args[1]); err != nil {
				return err
			}
			c, err := newClient(cmd, serverURL, token, false)
			if err != nil {
				return err
			}
			if err := c.UpdateStatus(args[0], args[1], message); err != nil {
				return err
			}
			fmt.Printf("%s is now %s\n", args[0], args[1])
			return nil
		},
	}

	cmd.Flags().StringVar(&serverURL, "server", "", "Portico server URL")
	cmd.Flags().StringVar(&token, "token", "", "Admin Bearer token")
	cmd.Flags().StringVar(&message, "message", "", "Validation message (recorded when status is failed)")
	return cmd
}

func newDeregisterCmd() *cobra.Command {
	var serverURL, token string

	cmd := &cobra.Command{
		Use:   "deregister <api_name>",
		Short: "Remove a registration and its stored credential",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(cmd, serverURL, token, false)
			if err != nil {
				return err
			}
			if err := c.Deregister(args[0]); err != nil {
				return err
			}
			fmt.Printf("%s deregistered\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&serverURL, "server", "", "Portico server URL")
	cmd.Flags().StringVar(&token, "token", "", "Admin Bearer token")
	return cmd
}

func parseKeyValues(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("expected key=value, got %q", p)
		}
		out[k] = v
	}
	return out, nil
}
