package main

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/panshare/quarkshare/internal/config"
	"github.com/panshare/quarkshare/internal/quark"
	"github.com/panshare/quarkshare/internal/session"
	"github.com/panshare/quarkshare/internal/transfer"
)

// outboundTimeout bounds each request to the drive API. The API can be
// slow under load; the web client uses a 60s budget.
const outboundTimeout = 60 * time.Second

// server carries the HTTP surface's dependencies.
type server struct {
	cfg    *config.Config
	store  *session.Store
	logger *slog.Logger

	// newClient builds a drive client for a set of credentials.
	// Tests swap this for a client pointed at a fake drive API.
	newClient func(cookies string) *quark.Client
}

func newServer(cfg *config.Config, store *session.Store, logger *slog.Logger) *server {
	httpClient := &http.Client{Timeout: outboundTimeout}

	return &server{
		cfg:    cfg,
		store:  store,
		logger: logger,
		newClient: func(cookies string) *quark.Client {
			return quark.New(quark.Config{
				PanBaseURL:   cfg.PanBaseURL,
				DriveBaseURL: cfg.DriveBaseURL,
				HTTPClient:   httpClient,
				Cookie:       cookies,
				Logger:       logger,
			})
		},
	}
}

// newOrchestrator builds a transfer orchestrator for one session's
// client with the configured poll budgets.
func (s *server) newOrchestrator(client *quark.Client) *transfer.Orchestrator {
	orch := transfer.NewOrchestrator(client, s.logger)
	orch.TransferPollAttempts = s.cfg.TransferPollAttempts
	orch.SharePollAttempts = s.cfg.SharePollAttempts

	return orch
}

// routes registers every endpoint. The URL layout mirrors the service
// this replaces, so existing clients keep working.
func (s *server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("POST /api/v1/auth/login", s.handleLogin)
	mux.HandleFunc("GET /api/v1/auth/session", s.handleSessionInfo)
	mux.HandleFunc("GET /api/v1/auth/verify", s.handleVerify)
	mux.HandleFunc("POST /api/v1/directory/create", s.handleCreateDirectory)
	mux.HandleFunc("POST /api/v1/share/transfer-and-share", s.handleTransferAndShare)
	mux.HandleFunc("POST /api/v1/share/batch-transfer-and-share", s.handleBatchTransferAndShare)
	mux.HandleFunc("POST /api/v1/task/status", s.handleTaskStatus)
	mux.HandleFunc("GET /{$}", s.handleRoot)

	return mux
}
