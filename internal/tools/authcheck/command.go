package authcheck

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/makersmarket/session-auth-service/internal/security"
	"github.com/makersmarket/session-auth-service/internal/tools/common"
	"github.com/makersmarket/session-auth-service/internal/tools/loadgen"
	"github.com/makersmarket/session-auth-service/internal/tools/ui"
)

type options struct {
	baseURL string
	timeout time.Duration
	ci      bool
}

func NewRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{Use: "authcheck", Short: "Verify the session auth flow end to end"}
	cmd.PersistentFlags().StringVar(&opts.baseURL, "base-url", "http://localhost:8080", "API base URL")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 2*time.Minute, "overall check timeout")
	cmd.PersistentFlags().BoolVar(&opts.ci, "ci", false, "non-interactive machine-readable output")
	cmd.AddCommand(newFlowCommand(opts))
	cmd.AddCommand(newLoadCommand(opts))
	return cmd
}

func newFlowCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "flow",
		Short: "Register, login, validate, logout and verify rejection",
		RunE: func(cmd *cobra.Command, args []string) error {
			details, err := run(opts, "authcheck flow", func(ctx context.Context) ([]string, error) {
				return flow(ctx, opts.baseURL)
			})
			if opts.ci {
				common.PrintCIResult(err == nil, "authcheck flow", details, err)
			}
			if err != nil {
				os.Exit(4)
			}
			return nil
		},
	}
}

func newLoadCommand(opts *options) *cobra.Command {
	var (
		profile     string
		duration    time.Duration
		rps         int
		concurrency int
		seed        int64
	)
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Generate login and validation traffic",
		RunE: func(cmd *cobra.Command, args []string) error {
			details, err := run(opts, "authcheck load", func(ctx context.Context) ([]string, error) {
				res, err := loadgen.Run(ctx, loadgen.Config{
					BaseURL:     opts.baseURL,
					Profile:     profile,
					Duration:    duration,
					RPS:         rps,
					Concurrency: concurrency,
					Seed:        seed,
				})
				if err != nil {
					return nil, err
				}
				details := []string{fmt.Sprintf("total=%d failures=%d", res.TotalRequests, res.Failures)}
				for class, count := range res.StatusClasses {
					details = append(details, fmt.Sprintf("%s=%d", class, count))
				}
				return details, nil
			})
			if opts.ci {
				common.PrintCIResult(err == nil, "authcheck load", details, err)
			}
			if err != nil {
				os.Exit(4)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&profile, "profile", "mixed", "traffic profile: login, validate or mixed")
	cmd.Flags().DurationVar(&duration, "duration", 10*time.Second, "traffic duration")
	cmd.Flags().IntVar(&rps, "rps", 20, "requests per second")
	cmd.Flags().IntVar(&concurrency, "concurrency", 6, "worker count")
	cmd.Flags().Int64Var(&seed, "seed", 42, "random seed")
	return cmd
}

func run(opts *options, title string, fn func(context.Context) ([]string, error)) ([]string, error) {
	if opts.ci {
		ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
		defer cancel()
		return fn(ctx)
	}
	return ui.Run(title, fn)
}

func flow(ctx context.Context, baseURL string) ([]string, error) {
	client := &http.Client{Timeout: 15 * time.Second}
	email := fmt.Sprintf("authcheck-%d@example.com", time.Now().UnixNano())
	password := "Authcheck#Pass1234"
	var details []string

	status, _, err := call(ctx, client, http.MethodPost, baseURL+"/api/v1/auth/register", "", map[string]string{
		"email": email, "name": "Auth Check", "password": password,
	})
	if err != nil {
		return details, err
	}
	if status != http.StatusCreated {
		return details, fmt.Errorf("register: unexpected status %d", status)
	}
	details = append(details, "register: ok")

	status, body, err := call(ctx, client, http.MethodPost, baseURL+"/api/v1/auth/login", "", map[string]string{
		"email": email, "password": password,
	})
	if err != nil {
		return details, err
	}
	if status != http.StatusOK {
		return details, fmt.Errorf("login: unexpected status %d", status)
	}
	var loginPayload struct {
		Data struct {
			Token     string    `json:"token"`
			ExpiresAt time.Time `json:"expires_at"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &loginPayload); err != nil {
		return details, fmt.Errorf("decode login response: %w", err)
	}
	token := loginPayload.Data.Token
	if len(token) != security.SessionTokenLength {
		return details, fmt.Errorf("login: token length %d, want %d", len(token), security.SessionTokenLength)
	}
	ttl := time.Until(loginPayload.Data.ExpiresAt)
	if ttl < 29*24*time.Hour || ttl > 31*24*time.Hour {
		return details, fmt.Errorf("login: expiry %s from now, want about 30 days", ttl)
	}
	details = append(details, "login: token and expiry ok")

	status, _, err = call(ctx, client, http.MethodGet, baseURL+"/api/v1/me", token, nil)
	if err != nil {
		return details, err
	}
	if status != http.StatusOK {
		return details, fmt.Errorf("me with token: unexpected status %d", status)
	}
	details = append(details, "profile with token: ok")

	status, body, err = call(ctx, client, http.MethodGet, baseURL+"/api/v1/session", token, nil)
	if err != nil {
		return details, err
	}
	var whoami struct {
		Data struct {
			Authenticated bool `json:"authenticated"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &whoami); err != nil {
		return details, fmt.Errorf("decode whoami response: %w", err)
	}
	if status != http.StatusOK || !whoami.Data.Authenticated {
		return details, fmt.Errorf("whoami: status %d authenticated %v", status, whoami.Data.Authenticated)
	}
	details = append(details, "whoami: authenticated")

	status, _, err = call(ctx, client, http.MethodPost, baseURL+"/api/v1/auth/logout", token, nil)
	if err != nil {
		return details, err
	}
	if status != http.StatusOK {
		return details, fmt.Errorf("logout: unexpected status %d", status)
	}
	details = append(details, "logout: ok")

	status, body, err = call(ctx, client, http.MethodGet, baseURL+"/api/v1/me", token, nil)
	if err != nil {
		return details, err
	}
	if status != http.StatusUnauthorized || errorCode(body) != "token_invalid_or_expired" {
		return details, fmt.Errorf("me after logout: status %d code %q", status, errorCode(body))
	}
	details = append(details, "revoked token rejected")

	status, body, err = call(ctx, client, http.MethodGet, baseURL+"/api/v1/me", "", nil)
	if err != nil {
		return details, err
	}
	if status != http.StatusUnauthorized || errorCode(body) != "token_missing" {
		return details, fmt.Errorf("me without token: status %d code %q", status, errorCode(body))
	}
	details = append(details, "missing token rejected")
	return details, nil
}

func call(ctx context.Context, client *http.Client, method, url, token string, payload any) (int, []byte, error) {
	var reqBody *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, err
		}
		reqBody = bytes.NewReader(raw)
	} else {
		reqBody = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return 0, nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := readBody(resp)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, body, nil
}

func readBody(resp *http.Response) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func errorCode(body []byte) string {
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	return payload.Error.Code
}
