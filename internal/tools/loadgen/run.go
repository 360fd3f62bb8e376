package loadgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Config drives synthetic session traffic against a running instance:
// repeated logins (session creates) and authenticated reads (session
// validations) from many workers at once.
type Config struct {
	BaseURL     string
	Profile     string // login | validate | mixed
	Duration    time.Duration
	RPS         int
	Concurrency int
	Seed        int64
}

type Result struct {
	TotalRequests int
	Failures      int
	StatusClasses map[string]int
}

func Run(ctx context.Context, cfg Config) (*Result, error) {
	profile := normalizeProfile(cfg.Profile)
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.RPS <= 0 {
		cfg.RPS = 10
	}
	if cfg.Duration <= 0 {
		cfg.Duration = 5 * time.Second
	}

	client := &http.Client{Timeout: 10 * time.Second}
	email := fmt.Sprintf("loadgen-%d-%d@example.com", cfg.Seed, time.Now().UnixNano())
	password := "Loadgen#Pass1234"
	if err := register(ctx, client, cfg.BaseURL, email, password); err != nil {
		return nil, err
	}
	token, err := login(ctx, client, cfg.BaseURL, email, password)
	if err != nil {
		return nil, err
	}

	deadline, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()

	var mu sync.Mutex
	result := &Result{StatusClasses: make(map[string]int)}
	interval := time.Second * time.Duration(cfg.Concurrency) / time.Duration(cfg.RPS)

	g, gctx := errgroup.WithContext(deadline)
	for i := 0; i < cfg.Concurrency; i++ {
		rng := rand.New(rand.NewSource(cfg.Seed + int64(i)))
		g.Go(func() error {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
				}
				status, err := fire(gctx, client, cfg.BaseURL, profile, token, rng)
				mu.Lock()
				result.TotalRequests++
				if err != nil {
					result.Failures++
				} else {
					result.StatusClasses[classifyStatusClass(status)]++
					if status >= 500 {
						result.Failures++
					}
				}
				mu.Unlock()
			}
		})
	}
	if err := g.Wait(); err != nil {
		return result, err
	}
	return result, nil
}

func fire(ctx context.Context, client *http.Client, baseURL, profile, token string, rng *rand.Rand) (int, error) {
	kind := profile
	if kind == "mixed" {
		if rng.Intn(2) == 0 {
			kind = "login"
		} else {
			kind = "validate"
		}
	}
	switch kind {
	case "login":
		// deliberately wrong password: exercises the hashing path
		// without piling up sessions
		body, _ := json.Marshal(map[string]string{"email": "loadgen-miss@example.com", "password": "wrong"})
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/api/v1/auth/login", bytes.NewReader(body))
		if err != nil {
			return 0, err
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := client.Do(req)
		if err != nil {
			return 0, err
		}
		defer func() { _ = resp.Body.Close() }()
		return resp.StatusCode, nil
	default:
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/api/v1/me", nil)
		if err != nil {
			return 0, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := client.Do(req)
		if err != nil {
			return 0, err
		}
		defer func() { _ = resp.Body.Close() }()
		return resp.StatusCode, nil
	}
}

func register(ctx context.Context, client *http.Client, baseURL, email, password string) error {
	body, _ := json.Marshal(map[string]string{"email": email, "name": "Load Generator", "password": password})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/api/v1/auth/register", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("register loadgen user: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("register loadgen user: unexpected status %d", resp.StatusCode)
	}
	return nil
}

func login(ctx context.Context, client *http.Client, baseURL, email, password string) (string, error) {
	body, _ := json.Marshal(map[string]string{"email": email, "password": password})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/api/v1/auth/login", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("login loadgen user: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("login loadgen user: unexpected status %d", resp.StatusCode)
	}
	var payload struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode login response: %w", err)
	}
	if payload.Data.Token == "" {
		return "", fmt.Errorf("login response missing token")
	}
	return payload.Data.Token, nil
}

func classifyStatusClass(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 300 && status < 400:
		return "3xx"
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500 && status < 600:
		return "5xx"
	default:
		return "other"
	}
}

func normalizeProfile(profile string) string {
	v := strings.TrimSpace(strings.ToLower(profile))
	if v == "" {
		return "mixed"
	}
	return v
}
