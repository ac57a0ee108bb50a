package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/panshare/quarkshare/internal/quark"
	"github.com/panshare/quarkshare/internal/transfer"
)

// Request validation bounds, matching the API this replaces.
const (
	minCookieLength   = 10
	minShareURLLength = 10
	maxDirNameLength  = 255
	maxPasscodeLength = 6
)

func (s *server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	s.respondOK(w, "quarkshare API", map[string]any{
		"version": version,
	})
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respondOK(w, "service healthy", map[string]any{
		"status":        "healthy",
		"version":       version,
		"session_count": s.store.Count(),
	})
}

type loginRequest struct {
	Cookies string `json:"cookies"`
	UserID  string `json:"user_id"`
}

type userInfoPayload struct {
	Nickname string `json:"nickname"`
}

type loginResponse struct {
	AccessToken string          `json:"access_token"`
	UserInfo    userInfoPayload `json:"user_info"`
	ExpireTime  int64           `json:"expire_time"`
}

// handleLogin verifies the submitted cookies against the drive account
// endpoint and mints a session token. The verified client is bound to
// the session so later requests reuse it.
func (s *server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	if len(req.Cookies) < minCookieLength {
		s.respondErr(w, "login failed", fmt.Errorf("%w: cookies too short", quark.ErrInvalidInput))
		return
	}

	client := s.newClient(req.Cookies)

	profile, err := client.VerifyIdentity(r.Context())
	if err != nil {
		s.respondErr(w, "login failed", err)
		return
	}

	token, sess := s.store.Create(req.Cookies, req.UserID)

	// Bind the already-verified client instead of building a second one.
	sess.Client(func(string) *quark.Client { return client })

	s.logger.Info("login", slog.String("nickname", profile.Nickname))

	s.respondOK(w, "login successful", loginResponse{
		AccessToken: token,
		UserInfo:    userInfoPayload{Nickname: profile.Nickname},
		ExpireTime:  sess.ExpiresAt.Unix(),
	})
}

type sessionInfoPayload struct {
	Token      string `json:"token"`
	UserID     string `json:"user_id"`
	CreatedAt  string `json:"created_at"`
	ExpireAt   string `json:"expire_at"`
	LastAccess string `json:"last_access"`
	IsExpired  bool   `json:"is_expired"`
}

// handleSessionInfo reports session metadata without refreshing the
// session's last-access time.
func (s *server) handleSessionInfo(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		s.respondUnauthorized(w, "missing or malformed Authorization header, expected: Bearer <token>")
		return
	}

	info, ok := s.store.Info(token)
	if !ok {
		s.respondUnauthorized(w, "token invalid or expired")
		return
	}

	s.respondOK(w, "session found", sessionInfoPayload{
		Token:      info.Token,
		UserID:     info.UserID,
		CreatedAt:  info.CreatedAt.Format(time.RFC3339),
		ExpireAt:   info.ExpiresAt.Format(time.RFC3339),
		LastAccess: info.LastAccess.Format(time.RFC3339),
		IsExpired:  info.Expired,
	})
}

// handleVerify re-validates the session's cookies against the drive.
// An invalid cookie is reported in the envelope, not as a transport
// failure: the session token itself is still live.
func (s *server) handleVerify(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.authenticate(w, r)
	if !ok {
		return
	}

	client := sess.Client(s.newClient)

	profile, err := client.VerifyIdentity(r.Context())
	if err != nil {
		s.writeJSON(w, http.StatusOK, envelope{
			Code:    http.StatusUnauthorized,
			Message: "login state invalid: " + err.Error(),
			Data: map[string]any{
				"is_valid": false,
				"error":    err.Error(),
			},
		})

		return
	}

	s.respondOK(w, "login state valid", map[string]any{
		"is_valid":  true,
		"user_info": userInfoPayload{Nickname: profile.Nickname},
	})
}

type createDirRequest struct {
	DirName     string `json:"dir_name"`
	ParentDirID string `json:"parent_dir_id"`
}

type createDirResponse struct {
	Fid         string `json:"fid"`
	DirName     string `json:"dir_name"`
	ParentDirID string `json:"parent_dir_id"`
}

func (s *server) handleCreateDirectory(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.authenticate(w, r)
	if !ok {
		return
	}

	var req createDirRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	if req.DirName == "" || len(req.DirName) > maxDirNameLength {
		s.respondErr(w, "create directory failed", fmt.Errorf("%w: dir_name must be 1-%d characters", quark.ErrInvalidInput, maxDirNameLength))
		return
	}

	if req.ParentDirID == "" {
		req.ParentDirID = "0"
	}

	dir, err := sess.Client(s.newClient).CreateDir(r.Context(), req.ParentDirID, req.DirName)
	if err != nil {
		s.respondErr(w, "create directory failed", err)
		return
	}

	s.respondOK(w, "directory created", createDirResponse{
		Fid:         dir.Fid,
		DirName:     dir.Name,
		ParentDirID: dir.ParentFid,
	})
}

type transferAndShareRequest struct {
	ShareURL        string `json:"share_url"`
	SaveDirID       string `json:"save_dir_id"`
	ShareExpireType int    `json:"share_expire_type"`
	ShareURLType    int    `json:"share_url_type"`
	SharePassword   string `json:"share_password"`
}

// toRequest validates the DTO and converts it into an orchestrator
// request, applying the API's defaults for unset fields.
func (req *transferAndShareRequest) toRequest() (transfer.Request, error) {
	if len(req.ShareURL) < minShareURLLength {
		return transfer.Request{}, fmt.Errorf("%w: share_url is required", quark.ErrInvalidInput)
	}

	if req.SaveDirID == "" {
		req.SaveDirID = "0"
	}

	if req.ShareExpireType == 0 {
		req.ShareExpireType = quark.ShareExpiryOneDay
	}

	if req.ShareURLType == 0 {
		req.ShareURLType = quark.ShareVisibilityPublic
	}

	if req.ShareExpireType < quark.ShareExpiryForever || req.ShareExpireType > quark.ShareExpiryMonth {
		return transfer.Request{}, fmt.Errorf("%w: share_expire_type must be 1-4", quark.ErrInvalidInput)
	}

	if req.ShareURLType != quark.ShareVisibilityPublic && req.ShareURLType != quark.ShareVisibilityPassword {
		return transfer.Request{}, fmt.Errorf("%w: share_url_type must be 1 or 2", quark.ErrInvalidInput)
	}

	if len(req.SharePassword) > maxPasscodeLength {
		return transfer.Request{}, fmt.Errorf("%w: share_password too long", quark.ErrInvalidInput)
	}

	return transfer.Request{
		ShareURL:   req.ShareURL,
		SaveDirFid: req.SaveDirID,
		Expiry:     req.ShareExpireType,
		Visibility: req.ShareURLType,
		Passcode:   req.SharePassword,
	}, nil
}

type transferInfoPayload struct {
	FileCount   int      `json:"file_count"`
	FolderCount int      `json:"folder_count"`
	FileList    []string `json:"file_list"`
	FolderList  []string `json:"folder_list"`
	SaveDirName string   `json:"save_dir_name"`
}

func toTransferInfoPayload(info transfer.TransferInfo) transferInfoPayload {
	p := transferInfoPayload{
		FileCount:   info.FileCount,
		FolderCount: info.FolderCount,
		FileList:    info.Files,
		FolderList:  info.Folders,
		SaveDirName: info.SaveDirName,
	}

	// Encode empty lists as [], not null.
	if p.FileList == nil {
		p.FileList = []string{}
	}

	if p.FolderList == nil {
		p.FolderList = []string{}
	}

	return p
}

type transferAndShareResponse struct {
	TransferInfo transferInfoPayload `json:"transfer_info"`
	ShareURL     string              `json:"share_url"`
	ShareTitle   string              `json:"share_title"`
}

func (s *server) handleTransferAndShare(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.authenticate(w, r)
	if !ok {
		return
	}

	var req transferAndShareRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	orchReq, err := req.toRequest()
	if err != nil {
		s.respondErr(w, "operation failed", err)
		return
	}

	orch := s.newOrchestrator(sess.Client(s.newClient))

	outcome, err := orch.Run(r.Context(), orchReq)
	if err != nil {
		s.respondErr(w, "operation failed", err)
		return
	}

	s.respondOK(w, "transfer and share successful", transferAndShareResponse{
		TransferInfo: toTransferInfoPayload(outcome.Transfer),
		ShareURL:     outcome.ShareURL,
		ShareTitle:   outcome.ShareTitle,
	})
}

type batchTransferAndShareRequest struct {
	ShareURLs       []string `json:"share_urls"`
	SaveDirID       string   `json:"save_dir_id"`
	ShareExpireType int      `json:"share_expire_type"`
	ShareURLType    int      `json:"share_url_type"`
	SharePassword   string   `json:"share_password"`
}

type batchItemPayload struct {
	OriginalURL  string               `json:"original_url"`
	Success      bool                 `json:"success"`
	NewShareURL  string               `json:"new_share_url,omitempty"`
	ShareTitle   string               `json:"share_title,omitempty"`
	ErrorMessage string               `json:"error_message,omitempty"`
	TransferInfo *transferInfoPayload `json:"transfer_info,omitempty"`
}

type batchResponse struct {
	Total        int                `json:"total"`
	SuccessCount int                `json:"success_count"`
	FailedCount  int                `json:"failed_count"`
	Results      []batchItemPayload `json:"results"`
}

func (s *server) handleBatchTransferAndShare(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.authenticate(w, r)
	if !ok {
		return
	}

	var req batchTransferAndShareRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	if len(req.ShareURLs) == 0 {
		s.respondErr(w, "batch operation failed", fmt.Errorf("%w: share_urls must not be empty", quark.ErrInvalidInput))
		return
	}

	base := transferAndShareRequest{
		ShareURL:        req.ShareURLs[0],
		SaveDirID:       req.SaveDirID,
		ShareExpireType: req.ShareExpireType,
		ShareURLType:    req.ShareURLType,
		SharePassword:   req.SharePassword,
	}

	baseReq, err := base.toRequest()
	if err != nil {
		s.respondErr(w, "batch operation failed", err)
		return
	}

	orch := s.newOrchestrator(sess.Client(s.newClient))
	outcome := orch.RunBatch(r.Context(), req.ShareURLs, baseReq)

	results := make([]batchItemPayload, len(outcome.Items))
	for i, item := range outcome.Items {
		results[i] = batchItemPayload{
			OriginalURL:  item.ShareURL,
			Success:      item.Success,
			NewShareURL:  item.NewShareURL,
			ShareTitle:   item.ShareTitle,
			ErrorMessage: item.ErrorMessage,
		}

		if item.Transfer != nil {
			p := toTransferInfoPayload(*item.Transfer)
			results[i].TransferInfo = &p
		}
	}

	message := fmt.Sprintf("batch complete: %d succeeded, %d failed", outcome.Succeeded, outcome.Failed)

	s.respondOK(w, message, batchResponse{
		Total:        outcome.Total,
		SuccessCount: outcome.Succeeded,
		FailedCount:  outcome.Failed,
		Results:      results,
	})
}

type taskStatusRequest struct {
	TaskID string `json:"task_id"`
}

type taskStatusResponse struct {
	TaskID    string `json:"task_id"`
	Status    int    `json:"status"`
	TaskTitle string `json:"task_title"`
	Progress  *int   `json:"progress"`
	Message   string `json:"message"`
}

// handleTaskStatus reports one observation of an asynchronous drive
// task; clients poll it for long transfers that outlive the request.
func (s *server) handleTaskStatus(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.authenticate(w, r)
	if !ok {
		return
	}

	var req taskStatusRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	if req.TaskID == "" {
		s.respondErr(w, "task query failed", fmt.Errorf("%w: task_id is required", quark.ErrInvalidInput))
		return
	}

	state, err := sess.Client(s.newClient).QueryTask(r.Context(), req.TaskID, 0)
	if err != nil {
		s.respondErr(w, "task query failed", err)
		return
	}

	resp := taskStatusResponse{
		TaskID:    state.TaskID,
		Status:    state.Status,
		TaskTitle: state.Title,
	}

	if p := state.Progress(); p >= 0 {
		resp.Progress = &p
	}

	switch {
	case state.Finished():
		resp.Message = "task succeeded"
	case state.Failed():
		resp.Message = "task failed"
	default:
		resp.Message = "task in progress"
	}

	s.respondOK(w, "query successful", resp)
}
