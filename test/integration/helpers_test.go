package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/makersmarket/session-auth-service/internal/domain"
	"github.com/makersmarket/session-auth-service/internal/http/handler"
	"github.com/makersmarket/session-auth-service/internal/http/router"
	"github.com/makersmarket/session-auth-service/internal/repository"
	"github.com/makersmarket/session-auth-service/internal/service"
	"github.com/makersmarket/session-auth-service/internal/store"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// newAuthTestServer wires the full HTTP stack against sqlite and the
// in-memory session store.
func newAuthTestServer(t *testing.T, sessionTTL time.Duration) (string, *http.Client, store.Store, func()) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.User{}); err != nil {
		t.Fatalf("migrate user: %v", err)
	}

	sessions := store.NewMemoryStore(sessionTTL)
	auth := service.NewAuthService(repository.NewUserRepository(db), sessions)

	h := router.NewRouter(router.Dependencies{
		AuthHandler:      handler.NewAuthHandler(auth, false),
		UserHandler:      handler.NewUserHandler(auth),
		Sessions:         sessions,
		APIRateLimitRPM:  10000,
		AuthRateLimitRPM: 10000,
	})
	server := httptest.NewServer(h)
	return server.URL, server.Client(), sessions, server.Close
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, token string) (*http.Response, envelope) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encode request body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode response envelope: %v", err)
	}
	return resp, env
}
