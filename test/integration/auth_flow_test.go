package integration

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"
)

type loginData struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func TestFullAuthenticationFlow(t *testing.T) {
	baseURL, client, _, closeFn := newAuthTestServer(t, 720*time.Hour)
	defer closeFn()

	registerBody := map[string]string{
		"email":    "ana@example.com",
		"name":     "Ana",
		"password": "CorrectPass1",
	}
	resp, env := doJSON(t, client, http.MethodPost, baseURL+"/api/v1/auth/register", registerBody, "")
	if resp.StatusCode != http.StatusCreated || !env.Success {
		t.Fatalf("register failed: status=%d success=%v", resp.StatusCode, env.Success)
	}

	resp, env = doJSON(t, client, http.MethodPost, baseURL+"/api/v1/auth/login", map[string]string{
		"email":    "ana@example.com",
		"password": "CorrectPass1",
	}, "")
	if resp.StatusCode != http.StatusOK || !env.Success {
		t.Fatalf("login failed: status=%d success=%v", resp.StatusCode, env.Success)
	}
	var login loginData
	if err := json.Unmarshal(env.Data, &login); err != nil {
		t.Fatalf("decode login data: %v", err)
	}
	if len(login.Token) != 43 {
		t.Fatalf("token length=%d want 43", len(login.Token))
	}
	ttl := time.Until(login.ExpiresAt)
	if ttl < 719*time.Hour || ttl > 721*time.Hour {
		t.Fatalf("expiry %s from now, want about 30 days", ttl)
	}

	resp, env = doJSON(t, client, http.MethodGet, baseURL+"/api/v1/me", nil, login.Token)
	if resp.StatusCode != http.StatusOK || !env.Success {
		t.Fatalf("profile failed: status=%d success=%v", resp.StatusCode, env.Success)
	}
	var profile struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal(env.Data, &profile); err != nil {
		t.Fatalf("decode profile: %v", err)
	}
	if profile.Email != "ana@example.com" {
		t.Fatalf("profile email=%q", profile.Email)
	}

	resp, env = doJSON(t, client, http.MethodGet, baseURL+"/api/v1/session", nil, login.Token)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("whoami failed: status=%d", resp.StatusCode)
	}
	var who struct {
		Authenticated bool `json:"authenticated"`
		UserID        uint `json:"user_id"`
	}
	if err := json.Unmarshal(env.Data, &who); err != nil {
		t.Fatalf("decode whoami: %v", err)
	}
	if !who.Authenticated || who.UserID == 0 {
		t.Fatalf("whoami %+v", who)
	}

	resp, env = doJSON(t, client, http.MethodPost, baseURL+"/api/v1/auth/logout", nil, login.Token)
	if resp.StatusCode != http.StatusOK || !env.Success {
		t.Fatalf("logout failed: status=%d success=%v", resp.StatusCode, env.Success)
	}

	resp, env = doJSON(t, client, http.MethodGet, baseURL+"/api/v1/me", nil, login.Token)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("revoked token accepted: status=%d", resp.StatusCode)
	}
	if env.Error == nil || env.Error.Code != "token_invalid_or_expired" {
		t.Fatalf("unexpected error payload %+v", env.Error)
	}

	resp, env = doJSON(t, client, http.MethodGet, baseURL+"/api/v1/me", nil, "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("missing token accepted: status=%d", resp.StatusCode)
	}
	if env.Error == nil || env.Error.Code != "token_missing" {
		t.Fatalf("unexpected error payload %+v", env.Error)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	baseURL, client, _, closeFn := newAuthTestServer(t, time.Hour)
	defer closeFn()

	resp, env := doJSON(t, client, http.MethodPost, baseURL+"/api/v1/auth/register", map[string]string{
		"email":    "ana@example.com",
		"name":     "Ana",
		"password": "CorrectPass1",
	}, "")
	if resp.StatusCode != http.StatusCreated || !env.Success {
		t.Fatalf("register failed: status=%d", resp.StatusCode)
	}

	// wrong password and unknown email must be indistinguishable
	for _, creds := range []map[string]string{
		{"email": "ana@example.com", "password": "WrongPass1"},
		{"email": "ghost@example.com", "password": "CorrectPass1"},
	} {
		resp, env = doJSON(t, client, http.MethodPost, baseURL+"/api/v1/auth/login", creds, "")
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("login %v: status=%d want 401", creds["email"], resp.StatusCode)
		}
		if env.Error == nil || env.Error.Code != "invalid_credentials" {
			t.Fatalf("login %v: error %+v", creds["email"], env.Error)
		}
	}
}

func TestExpiredSessionIsRejectedAndPurged(t *testing.T) {
	baseURL, client, sessions, closeFn := newAuthTestServer(t, 50*time.Millisecond)
	defer closeFn()

	resp, env := doJSON(t, client, http.MethodPost, baseURL+"/api/v1/auth/register", map[string]string{
		"email":    "short@example.com",
		"name":     "Short Lived",
		"password": "CorrectPass1",
	}, "")
	if resp.StatusCode != http.StatusCreated || !env.Success {
		t.Fatalf("register failed: status=%d", resp.StatusCode)
	}
	resp, env = doJSON(t, client, http.MethodPost, baseURL+"/api/v1/auth/login", map[string]string{
		"email":    "short@example.com",
		"password": "CorrectPass1",
	}, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login failed: status=%d", resp.StatusCode)
	}
	var login loginData
	if err := json.Unmarshal(env.Data, &login); err != nil {
		t.Fatalf("decode login data: %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	resp, env = doJSON(t, client, http.MethodGet, baseURL+"/api/v1/me", nil, login.Token)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expired token accepted: status=%d", resp.StatusCode)
	}
	if env.Error == nil || env.Error.Code != "token_invalid_or_expired" {
		t.Fatalf("unexpected error payload %+v", env.Error)
	}

	// validation of the expired token removed it from the store
	if sess, err := sessions.Validate(t.Context(), login.Token); err != nil || sess != nil {
		t.Fatalf("expired session not purged: sess=%v err=%v", sess, err)
	}
}

func TestLogoutAllRevokesEveryDevice(t *testing.T) {
	baseURL, client, _, closeFn := newAuthTestServer(t, time.Hour)
	defer closeFn()

	resp, env := doJSON(t, client, http.MethodPost, baseURL+"/api/v1/auth/register", map[string]string{
		"email":    "multi@example.com",
		"name":     "Multi Device",
		"password": "CorrectPass1",
	}, "")
	if resp.StatusCode != http.StatusCreated || !env.Success {
		t.Fatalf("register failed: status=%d", resp.StatusCode)
	}

	tokens := make([]string, 0, 3)
	for i := 0; i < 3; i++ {
		resp, env = doJSON(t, client, http.MethodPost, baseURL+"/api/v1/auth/login", map[string]string{
			"email":    "multi@example.com",
			"password": "CorrectPass1",
		}, "")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("login %d failed: status=%d", i, resp.StatusCode)
		}
		var login loginData
		if err := json.Unmarshal(env.Data, &login); err != nil {
			t.Fatalf("decode login data: %v", err)
		}
		tokens = append(tokens, login.Token)
	}

	resp, env = doJSON(t, client, http.MethodGet, baseURL+"/api/v1/me/sessions", nil, tokens[2])
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list sessions failed: status=%d", resp.StatusCode)
	}
	var views []struct {
		ID        string `json:"id"`
		IsCurrent bool   `json:"is_current"`
	}
	if err := json.Unmarshal(env.Data, &views); err != nil {
		t.Fatalf("decode sessions: %v", err)
	}
	if len(views) != 3 {
		t.Fatalf("sessions=%d want 3", len(views))
	}
	current := 0
	for _, v := range views {
		if v.IsCurrent {
			current++
		}
	}
	if current != 1 {
		t.Fatalf("current sessions=%d want 1", current)
	}

	resp, env = doJSON(t, client, http.MethodPost, baseURL+"/api/v1/auth/logout-all", nil, tokens[2])
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("logout-all failed: status=%d", resp.StatusCode)
	}
	var revoked struct {
		Revoked int `json:"revoked"`
	}
	if err := json.Unmarshal(env.Data, &revoked); err != nil {
		t.Fatalf("decode revoked count: %v", err)
	}
	if revoked.Revoked != 3 {
		t.Fatalf("revoked=%d want 3", revoked.Revoked)
	}

	for i, token := range tokens {
		resp, _ = doJSON(t, client, http.MethodGet, baseURL+"/api/v1/me", nil, token)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("token %d still accepted: status=%d", i, resp.StatusCode)
		}
	}
}

func TestDuplicateRegistrationConflicts(t *testing.T) {
	baseURL, client, _, closeFn := newAuthTestServer(t, time.Hour)
	defer closeFn()

	body := map[string]string{
		"email":    "dup@example.com",
		"name":     "First",
		"password": "CorrectPass1",
	}
	resp, env := doJSON(t, client, http.MethodPost, baseURL+"/api/v1/auth/register", body, "")
	if resp.StatusCode != http.StatusCreated || !env.Success {
		t.Fatalf("register failed: status=%d", resp.StatusCode)
	}

	resp, env = doJSON(t, client, http.MethodPost, baseURL+"/api/v1/auth/register", body, "")
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate register: status=%d want 409", resp.StatusCode)
	}
	if env.Error == nil || env.Error.Code != "email_taken" {
		t.Fatalf("unexpected error payload %+v", env.Error)
	}
}
