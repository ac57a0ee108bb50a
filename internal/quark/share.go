package quark

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strconv"
)

// sharePageSize is the _size value for share content listing requests.
const sharePageSize = 50

// Share visibility classes (url_type on the wire).
const (
	ShareVisibilityPublic   = 1
	ShareVisibilityPassword = 2
)

// Share expiry classes (expired_type on the wire).
const (
	ShareExpiryForever = 1
	ShareExpiryOneDay  = 2
	ShareExpiryWeek    = 3
	ShareExpiryMonth   = 4
)

type shareTokenRequest struct {
	PwdID    string `json:"pwd_id"`
	Passcode string `json:"passcode"`
}

type shareTokenResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Data    *struct {
		Stoken string `json:"stoken"`
	} `json:"data"`
}

// ShareToken exchanges a share identifier and optional passcode for a
// short-lived share-page token. The remote rejection message (wrong
// password, expired share) is surfaced verbatim.
func (c *Client) ShareToken(ctx context.Context, pwdID, passcode string) (string, error) {
	c.logger.Info("resolving share token", slog.String("pwd_id", pwdID))

	reqBody := shareTokenRequest{PwdID: pwdID, Passcode: passcode}

	var resp shareTokenResponse
	if err := c.doJSON(ctx, http.MethodPost, c.driveURL("/share/sharepage/token"), c.commonQuery(), reqBody, &resp); err != nil {
		return "", err
	}

	if resp.Status != http.StatusOK || resp.Data == nil || resp.Data.Stoken == "" {
		return "", remoteErr(ErrRemoteFailure, resp.Status, resp.Message)
	}

	return resp.Data.Stoken, nil
}

type shareDetailResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    *struct {
		IsOwner int             `json:"is_owner"`
		List    []entryResponse `json:"list"`
	} `json:"data"`
	Metadata *struct {
		Total int `json:"_total"`
		Size  int `json:"_size"`
		Count int `json:"_count"`
	} `json:"metadata"`
}

// ListShareContents paginates the share's content listing under
// parentFid and returns all entries plus the ownership flag. The loop
// stops when the declared total is covered or a short page arrives.
func (c *Client) ListShareContents(ctx context.Context, pwdID, stoken, parentFid string) (isOwner bool, entries []Entry, err error) {
	for page := 1; ; page++ {
		q := c.commonQuery()
		q.Set("pwd_id", pwdID)
		q.Set("stoken", stoken)
		q.Set("pdir_fid", parentFid)
		q.Set("force", "0")
		q.Set("_page", strconv.Itoa(page))
		q.Set("_size", strconv.Itoa(sharePageSize))
		q.Set("_sort", "file_type:asc,updated_at:desc")

		var resp shareDetailResponse
		if err := c.doJSON(ctx, http.MethodGet, c.driveURL("/share/sharepage/detail"), q, nil, &resp); err != nil {
			return false, nil, err
		}

		if resp.Data == nil || resp.Metadata == nil {
			return false, nil, remoteErr(ErrProtocol, resp.Code, resp.Message)
		}

		isOwner = resp.Data.IsOwner == 1

		if resp.Metadata.Total < 1 {
			return isOwner, entries, nil
		}

		for i := range resp.Data.List {
			entries = append(entries, resp.Data.List[i].toEntry())
		}

		c.logger.Debug("fetched share page",
			slog.String("pwd_id", pwdID),
			slog.Int("page", page),
			slog.Int("count", resp.Metadata.Count),
		)

		if resp.Metadata.Total <= resp.Metadata.Size || resp.Metadata.Count < resp.Metadata.Size {
			return isOwner, entries, nil
		}
	}
}

type transferRequest struct {
	FidList      []string `json:"fid_list"`
	FidTokenList []string `json:"fid_token_list"`
	ToPdirFid    string   `json:"to_pdir_fid"`
	PwdID        string   `json:"pwd_id"`
	Stoken       string   `json:"stoken"`
	PdirFid      string   `json:"pdir_fid"`
	Scene        string   `json:"scene"`
}

type taskIDResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    *struct {
		TaskID string `json:"task_id"`
	} `json:"data"`
}

// SubmitTransfer submits a transfer task copying the shared entries
// into the destination directory, returning the task id for polling.
// fids and fidTokens are parallel slices from the share listing.
func (c *Client) SubmitTransfer(ctx context.Context, pwdID, stoken string, fids, fidTokens []string, destFid string) (string, error) {
	c.logger.Info("submitting transfer task",
		slog.String("pwd_id", pwdID),
		slog.Int("entries", len(fids)),
		slog.String("dest_fid", destFid),
	)

	reqBody := transferRequest{
		FidList:      fids,
		FidTokenList: fidTokens,
		ToPdirFid:    destFid,
		PwdID:        pwdID,
		Stoken:       stoken,
		PdirFid:      "0",
		Scene:        "link",
	}

	var resp taskIDResponse
	if err := c.doJSON(ctx, http.MethodPost, c.driveURL("/share/sharepage/save"), c.commonQuery(), reqBody, &resp); err != nil {
		return "", err
	}

	if resp.Data == nil || resp.Data.TaskID == "" {
		return "", remoteErr(ErrRemoteFailure, resp.Code, resp.Message)
	}

	return resp.Data.TaskID, nil
}

type shareSubmitRequest struct {
	FidList     []string `json:"fid_list"`
	Title       string   `json:"title"`
	URLType     int      `json:"url_type"`
	ExpiredType int      `json:"expired_type"`
	Passcode    string   `json:"passcode,omitempty"`
}

// SubmitShare submits a share-creation task over the given fids and
// returns the task id. For password-protected shares with no passcode
// supplied, a random one is generated; the effective passcode is
// returned alongside the task id.
func (c *Client) SubmitShare(ctx context.Context, fids []string, title string, visibility, expiry int, passcode string) (taskID, effectivePasscode string, err error) {
	if visibility == ShareVisibilityPassword && passcode == "" {
		passcode = randomPasscode()
	}

	if visibility != ShareVisibilityPassword {
		passcode = ""
	}

	c.logger.Info("submitting share task",
		slog.String("title", title),
		slog.Int("fids", len(fids)),
		slog.Int("visibility", visibility),
	)

	reqBody := shareSubmitRequest{
		FidList:     fids,
		Title:       title,
		URLType:     visibility,
		ExpiredType: expiry,
		Passcode:    passcode,
	}

	var resp taskIDResponse
	if err := c.doJSON(ctx, http.MethodPost, c.driveURL("/share"), c.commonQuery(), reqBody, &resp); err != nil {
		return "", "", err
	}

	if resp.Data == nil || resp.Data.TaskID == "" {
		return "", "", remoteErr(ErrRemoteFailure, resp.Code, resp.Message)
	}

	return resp.Data.TaskID, passcode, nil
}

type finalizeShareRequest struct {
	ShareID string `json:"share_id"`
}

type finalizeShareResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    *struct {
		ShareURL string `json:"share_url"`
		Title    string `json:"title"`
		Passcode string `json:"passcode"`
	} `json:"data"`
}

// FinalizeShare exchanges a completed share task's share id for the
// public URL and title. For password-protected shares the passcode is
// appended as a ?pwd= query parameter, matching the web client's
// shareable link format.
func (c *Client) FinalizeShare(ctx context.Context, shareID string) (*ShareResult, error) {
	reqBody := finalizeShareRequest{ShareID: shareID}

	var resp finalizeShareResponse
	if err := c.doJSON(ctx, http.MethodPost, c.driveURL("/share/password"), c.commonQuery(), reqBody, &resp); err != nil {
		return nil, err
	}

	if resp.Data == nil || resp.Data.ShareURL == "" {
		return nil, remoteErr(ErrRemoteFailure, resp.Code, resp.Message)
	}

	result := &ShareResult{
		URL:      resp.Data.ShareURL,
		Title:    resp.Data.Title,
		Passcode: resp.Data.Passcode,
	}

	if result.Passcode != "" {
		result.URL = fmt.Sprintf("%s?pwd=%s", result.URL, result.Passcode)
	}

	c.logger.Info("share finalized",
		slog.String("share_id", shareID),
		slog.String("title", result.Title),
	)

	return result, nil
}

// passcodeAlphabet excludes visually ambiguous characters.
const passcodeAlphabet = "abcdefghjkmnpqrstuvwxyz23456789"

// passcodeLength matches the web client's generated share passwords.
const passcodeLength = 4

// randomPasscode generates a share passcode for protected shares when
// the caller did not supply one.
func randomPasscode() string {
	b := make([]byte, passcodeLength)
	for i := range b {
		b[i] = passcodeAlphabet[rand.IntN(len(passcodeAlphabet))] //nolint:gosec // share passcode, not a credential
	}

	return string(b)
}
