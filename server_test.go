package main

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panshare/quarkshare/internal/config"
	"github.com/panshare/quarkshare/internal/quark"
	"github.com/panshare/quarkshare/internal/session"
)

const testCookies = "__pus=abc; __puus=def"

// testEnvelope mirrors the wire envelope with the payload left raw so
// each test decodes its own shape.
type testEnvelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// newTestServer builds the API server against a fake drive backend.
func newTestServer(t *testing.T, drive http.Handler) *server {
	t.Helper()

	backend := httptest.NewServer(drive)
	t.Cleanup(backend.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.Default()

	return &server{
		cfg:    cfg,
		store:  session.NewStore(cfg.TokenTTL(), logger),
		logger: logger,
		newClient: func(cookies string) *quark.Client {
			return quark.New(quark.Config{
				PanBaseURL:   backend.URL,
				DriveBaseURL: backend.URL,
				Cookie:       cookies,
				Logger:       logger,
			})
		},
	}
}

// accountHandler serves the identity endpoint with a fixed nickname.
// An empty nickname simulates dead cookies.
func accountHandler(nickname string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /account/info", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if nickname == "" {
			_, _ = w.Write([]byte(`{"data": {}}`))
			return
		}

		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"nickname": nickname},
		})
	})

	return mux
}

// do runs one request through the router and decodes the envelope.
func do(t *testing.T, s *server, method, path, token string, body any) (int, testEnvelope) {
	t.Helper()

	var reqBody io.Reader

	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(t, err)
		reqBody = bytes.NewReader(buf)
	}

	req := httptest.NewRequest(method, path, reqBody)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, req)

	var env testEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), "body: %s", rec.Body.String())

	return rec.Code, env
}

// login performs a successful login and returns the session token.
func login(t *testing.T, s *server) string {
	t.Helper()

	status, env := do(t, s, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"cookies": testCookies,
	})
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, http.StatusOK, env.Code)

	var payload struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	require.NotEmpty(t, payload.AccessToken)

	return payload.AccessToken
}

func TestHandleRoot(t *testing.T) {
	s := newTestServer(t, http.NotFoundHandler())

	status, env := do(t, s, http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, http.StatusOK, env.Code)
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(t, http.NotFoundHandler())

	status, env := do(t, s, http.MethodGet, "/api/health", "", nil)
	require.Equal(t, http.StatusOK, status)

	var payload struct {
		Status       string `json:"status"`
		SessionCount int    `json:"session_count"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	assert.Equal(t, "healthy", payload.Status)
	assert.Zero(t, payload.SessionCount)
}

func TestLogin(t *testing.T) {
	s := newTestServer(t, accountHandler("夸克用户"))

	status, env := do(t, s, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"cookies": testCookies,
		"user_id": "u1",
	})
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, http.StatusOK, env.Code)

	var payload struct {
		AccessToken string `json:"access_token"`
		UserInfo    struct {
			Nickname string `json:"nickname"`
		} `json:"user_info"`
		ExpireTime int64 `json:"expire_time"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &payload))

	assert.NotEmpty(t, payload.AccessToken)
	assert.Equal(t, "夸克用户", payload.UserInfo.Nickname)

	wantExpiry := time.Now().Add(s.cfg.TokenTTL()).Unix()
	assert.InDelta(t, wantExpiry, payload.ExpireTime, 5)

	assert.Equal(t, 1, s.store.Count())
}

func TestLogin_DeadCookies(t *testing.T) {
	s := newTestServer(t, accountHandler(""))

	status, env := do(t, s, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"cookies": testCookies,
	})

	// Domain failures ride on HTTP 200; auth failures carry code 401.
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, http.StatusUnauthorized, env.Code)
	assert.Zero(t, s.store.Count())
}

func TestLogin_CookiesTooShort(t *testing.T) {
	s := newTestServer(t, accountHandler("n"))

	status, env := do(t, s, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"cookies": "short",
	})

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, http.StatusBadRequest, env.Code)
}

func TestLogin_UnknownFieldRejected(t *testing.T) {
	s := newTestServer(t, accountHandler("n"))

	status, env := do(t, s, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"cookies": testCookies,
		"cokies":  "typo",
	})

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, http.StatusBadRequest, env.Code)
	assert.Contains(t, env.Message, "invalid request body")
}

func TestSessionInfo(t *testing.T) {
	s := newTestServer(t, accountHandler("nick"))
	token := login(t, s)

	status, env := do(t, s, http.MethodGet, "/api/v1/auth/session", token, nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, http.StatusOK, env.Code)

	var payload struct {
		Token     string `json:"token"`
		ExpireAt  string `json:"expire_at"`
		IsExpired bool   `json:"is_expired"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &payload))

	assert.Equal(t, token, payload.Token)
	assert.False(t, payload.IsExpired)

	_, err := time.Parse(time.RFC3339, payload.ExpireAt)
	assert.NoError(t, err)
}

func TestSessionInfo_UnknownToken(t *testing.T) {
	s := newTestServer(t, http.NotFoundHandler())

	status, _ := do(t, s, http.MethodGet, "/api/v1/auth/session", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestAuth_MissingHeader(t *testing.T) {
	s := newTestServer(t, http.NotFoundHandler())

	status, env := do(t, s, http.MethodGet, "/api/v1/auth/verify", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Contains(t, env.Message, "Authorization")
}

func TestAuth_MalformedHeader(t *testing.T) {
	s := newTestServer(t, http.NotFoundHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/session", nil)
	req.Header.Set("Authorization", "Token abc")

	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestVerify(t *testing.T) {
	s := newTestServer(t, accountHandler("nick"))
	token := login(t, s)

	status, env := do(t, s, http.MethodGet, "/api/v1/auth/verify", token, nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, http.StatusOK, env.Code)

	var payload struct {
		IsValid bool `json:"is_valid"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	assert.True(t, payload.IsValid)
}

func TestVerify_CookiesWentStale(t *testing.T) {
	// Login succeeds, then the backend stops recognizing the cookies.
	var stale atomic.Bool

	mux := http.NewServeMux()
	mux.HandleFunc("GET /account/info", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if stale.Load() {
			_, _ = w.Write([]byte(`{"data": {}}`))
			return
		}

		_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"nickname": "nick"}})
	})

	s := newTestServer(t, mux)
	token := login(t, s)

	stale.Store(true)

	status, env := do(t, s, http.MethodGet, "/api/v1/auth/verify", token, nil)

	// The session token stays live; the invalid login state is reported
	// in the envelope.
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, http.StatusUnauthorized, env.Code)

	var payload struct {
		IsValid bool `json:"is_valid"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	assert.False(t, payload.IsValid)
}

func TestCreateDirectory(t *testing.T) {
	mux := http.NewServeMux()
	mux.Handle("GET /account/info", accountHandler("nick"))
	mux.HandleFunc("POST /file", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"code": 0,
			"data": map[string]any{"fid": "dir-1"},
		})
	})

	s := newTestServer(t, mux)
	token := login(t, s)

	status, env := do(t, s, http.MethodPost, "/api/v1/directory/create", token, map[string]string{
		"dir_name": "来自分享",
	})
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, http.StatusOK, env.Code)

	var payload struct {
		Fid         string `json:"fid"`
		DirName     string `json:"dir_name"`
		ParentDirID string `json:"parent_dir_id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &payload))

	assert.Equal(t, "dir-1", payload.Fid)
	assert.Equal(t, "来自分享", payload.DirName)
	assert.Equal(t, "0", payload.ParentDirID, "empty parent defaults to root")
}

func TestCreateDirectory_EmptyName(t *testing.T) {
	s := newTestServer(t, accountHandler("nick"))
	token := login(t, s)

	status, env := do(t, s, http.MethodPost, "/api/v1/directory/create", token, map[string]string{
		"dir_name": "",
	})

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, http.StatusBadRequest, env.Code)
	assert.Contains(t, env.Message, "dir_name")
}

func TestTransferAndShare_Validation(t *testing.T) {
	s := newTestServer(t, accountHandler("nick"))
	token := login(t, s)

	tests := []struct {
		name    string
		body    map[string]any
		wantMsg string
	}{
		{"short url", map[string]any{"share_url": "x"}, "share_url"},
		{"bad expire type", map[string]any{"share_url": "https://pan.quark.cn/s/abc", "share_expire_type": 9}, "share_expire_type"},
		{"bad url type", map[string]any{"share_url": "https://pan.quark.cn/s/abc", "share_url_type": 3}, "share_url_type"},
		{"long password", map[string]any{"share_url": "https://pan.quark.cn/s/abc", "share_password": "toolong"}, "share_password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, env := do(t, s, http.MethodPost, "/api/v1/share/transfer-and-share", token, tt.body)
			assert.Equal(t, http.StatusOK, status)
			assert.Equal(t, http.StatusBadRequest, env.Code)
			assert.Contains(t, env.Message, tt.wantMsg)
		})
	}
}

func TestBatchTransferAndShare_EmptyList(t *testing.T) {
	s := newTestServer(t, accountHandler("nick"))
	token := login(t, s)

	status, env := do(t, s, http.MethodPost, "/api/v1/share/batch-transfer-and-share", token, map[string]any{
		"share_urls": []string{},
	})

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, http.StatusBadRequest, env.Code)
	assert.Contains(t, env.Message, "share_urls")
}

func TestTaskStatus(t *testing.T) {
	mux := http.NewServeMux()
	mux.Handle("GET /account/info", accountHandler("nick"))
	mux.HandleFunc("GET /task", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"code":    0,
			"message": "ok",
			"data": map[string]any{
				"task_id":         r.URL.Query().Get("task_id"),
				"status":          0,
				"task_title":      "转存任务",
				"finished_amount": 3,
				"total_amount":    10,
			},
		})
	})

	s := newTestServer(t, mux)
	token := login(t, s)

	status, env := do(t, s, http.MethodPost, "/api/v1/task/status", token, map[string]string{
		"task_id": "T42",
	})
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, http.StatusOK, env.Code)

	var payload struct {
		TaskID   string `json:"task_id"`
		Status   int    `json:"status"`
		Progress *int   `json:"progress"`
		Message  string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &payload))

	assert.Equal(t, "T42", payload.TaskID)
	assert.Equal(t, 0, payload.Status)
	require.NotNil(t, payload.Progress)
	assert.Equal(t, 30, *payload.Progress)
	assert.Equal(t, "task in progress", payload.Message)
}

func TestTaskStatus_MissingID(t *testing.T) {
	s := newTestServer(t, accountHandler("nick"))
	token := login(t, s)

	status, env := do(t, s, http.MethodPost, "/api/v1/task/status", token, map[string]string{})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, http.StatusBadRequest, env.Code)
	assert.Contains(t, env.Message, "task_id")
}

func TestMethodNotAllowed(t *testing.T) {
	s := newTestServer(t, http.NotFoundHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/login", nil)
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
