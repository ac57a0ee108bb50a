// Package transfer drives the transfer-and-share workflow: resolve a
// share link, copy its contents into the caller's drive, re-locate the
// copied entries, and publish them under a fresh share link.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/panshare/quarkshare/internal/poll"
	"github.com/panshare/quarkshare/internal/quark"
)

// Terminal orchestration errors.
var (
	// ErrAlreadyOwned means the share's content is already present in
	// the caller's drive; a transfer would be redundant.
	ErrAlreadyOwned = errors.New("transfer: share content already in caller's drive")

	// ErrEmptyShare means the share link resolved but contains nothing.
	ErrEmptyShare = errors.New("transfer: share contains no files")
)

// Default poll attempt budgets. Transfer tasks move real data and get
// a larger budget than share-creation tasks.
const (
	defaultTransferPollAttempts = 50
	defaultSharePollAttempts    = 30
)

// settleDelay is waited after a transfer task completes before
// re-listing the destination: the copied entries are not always
// visible in listings immediately.
const settleDelay = 1 * time.Second

// rootDirName is the display name used when the remote does not report
// a destination directory name (transfers into the drive root).
const rootDirName = "根目录"

// Request describes one transfer-and-share invocation.
type Request struct {
	ShareURL   string
	SaveDirFid string // destination directory, "0" for root
	Expiry     int    // quark.ShareExpiry* class for the new share
	Visibility int    // quark.ShareVisibility* class for the new share
	Passcode   string // optional; generated when empty on protected shares
}

// TransferInfo summarizes what was copied.
type TransferInfo struct {
	FileCount   int
	FolderCount int
	Files       []string
	Folders     []string
	SaveDirName string
}

// Outcome is the aggregate result of a successful run.
type Outcome struct {
	Transfer   TransferInfo
	ShareURL   string
	ShareTitle string
}

// Orchestrator runs the workflow against one drive client. One
// instance serves any number of concurrent Run calls.
type Orchestrator struct {
	client *quark.Client
	logger *slog.Logger

	// TransferPollAttempts and SharePollAttempts bound the task polls.
	// Adjust before the first Run call.
	TransferPollAttempts int
	SharePollAttempts    int

	// sleep is used for poll delays and the post-transfer settle wait.
	// Tests override this to avoid real waiting.
	sleep func(ctx context.Context, d time.Duration) error

	// batchLimit bounds concurrent batch items.
	batchLimit int
}

// NewOrchestrator creates an orchestrator bound to the given client.
func NewOrchestrator(client *quark.Client, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}

	return &Orchestrator{
		client:               client,
		logger:               logger,
		TransferPollAttempts: defaultTransferPollAttempts,
		SharePollAttempts:    defaultSharePollAttempts,
		sleep:                defaultSleep,
		batchLimit:           defaultBatchLimit,
	}
}

// parseShareURL extracts the share identifier and optional passcode
// from a share link. The identifier is the path segment after /s/; the
// passcode is the pwd query value when present.
func parseShareURL(raw string) (pwdID, passcode string, err error) {
	base, query, _ := strings.Cut(raw, "?")

	_, pwdID, ok := strings.Cut(base, "/s/")
	if !ok || pwdID == "" || strings.Contains(pwdID, "/") {
		return "", "", fmt.Errorf("%w: malformed share URL %q", quark.ErrInvalidInput, raw)
	}

	for _, kv := range strings.Split(query, "&") {
		if v, found := strings.CutPrefix(kv, "pwd="); found {
			passcode = v
			break
		}
	}

	return pwdID, passcode, nil
}

// Run executes the full workflow for one share URL. Any step's failure
// aborts the run; entries transferred before a later failure stay
// transferred, there is no rollback.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Outcome, error) {
	pwdID, urlPasscode, err := parseShareURL(req.ShareURL)
	if err != nil {
		return nil, err
	}

	o.logger.Info("starting transfer-and-share",
		slog.String("pwd_id", pwdID),
		slog.String("save_dir", req.SaveDirFid),
	)

	stoken, err := o.client.ShareToken(ctx, pwdID, urlPasscode)
	if err != nil {
		return nil, fmt.Errorf("resolving share token: %w", err)
	}

	isOwner, entries, err := o.client.ListShareContents(ctx, pwdID, stoken, "0")
	if err != nil {
		return nil, fmt.Errorf("listing share contents: %w", err)
	}

	if len(entries) == 0 {
		return nil, ErrEmptyShare
	}

	if isOwner {
		return nil, ErrAlreadyOwned
	}

	info := summarize(entries)

	saveDirName, err := o.runTransfer(ctx, pwdID, stoken, entries, req.SaveDirFid)
	if err != nil {
		return nil, err
	}

	info.SaveDirName = saveDirName

	shareFids, shareTitle, err := o.matchTransferred(ctx, entries, req.SaveDirFid, saveDirName)
	if err != nil {
		return nil, err
	}

	result, err := o.runShare(ctx, shareFids, shareTitle, req)
	if err != nil {
		return nil, fmt.Errorf("creating share link: %w", err)
	}

	o.logger.Info("transfer-and-share complete",
		slog.String("pwd_id", pwdID),
		slog.Int("files", info.FileCount),
		slog.Int("folders", info.FolderCount),
		slog.String("share_title", result.Title),
	)

	return &Outcome{
		Transfer:   info,
		ShareURL:   result.URL,
		ShareTitle: result.Title,
	}, nil
}

// summarize partitions share entries into files and directories for
// reporting.
func summarize(entries []quark.Entry) TransferInfo {
	var info TransferInfo

	for _, e := range entries {
		if e.IsDir {
			info.FolderCount++
			info.Folders = append(info.Folders, e.Name)
		} else {
			info.FileCount++
			info.Files = append(info.Files, e.Name)
		}
	}

	return info
}

// runTransfer submits the transfer task and polls it to completion,
// returning the destination directory's display name.
func (o *Orchestrator) runTransfer(ctx context.Context, pwdID, stoken string, entries []quark.Entry, destFid string) (string, error) {
	fids := make([]string, len(entries))
	fidTokens := make([]string, len(entries))

	for i, e := range entries {
		fids[i] = e.Fid
		fidTokens[i] = e.ShareFidToken
	}

	taskID, err := o.client.SubmitTransfer(ctx, pwdID, stoken, fids, fidTokens, destFid)
	if err != nil {
		return "", fmt.Errorf("submitting transfer: %w", err)
	}

	policy := poll.Policy{MaxAttempts: o.TransferPollAttempts, Sleep: o.sleep}

	state, err := poll.Run(ctx, taskID, policy, func(ctx context.Context, attempt int) (*quark.TaskState, bool, error) {
		st, err := o.client.QueryTask(ctx, taskID, attempt)
		if err != nil {
			return nil, false, err
		}

		if st.Failed() {
			return nil, false, &quark.Error{Message: st.Title, Err: quark.ErrRemoteFailure}
		}

		return st, st.Finished(), nil
	})
	if err != nil {
		return "", fmt.Errorf("awaiting transfer: %w", err)
	}

	if state.SaveDirName == "" {
		return rootDirName, nil
	}

	return state.SaveDirName, nil
}

// matchTransferred re-lists the destination directory and matches each
// transferred entry by (name, isDir), first match wins; the transfer
// API does not return destination fids. When nothing matches (or the
// listing is empty), the destination directory itself becomes the sole
// share target instead of failing the run.
//
// Two share entries with identical name and directory flag will match
// the same destination entry; share semantics tolerate this and the
// ambiguity is accepted here.
func (o *Orchestrator) matchTransferred(ctx context.Context, entries []quark.Entry, destFid, destName string) (fids []string, title string, err error) {
	if err := o.sleep(ctx, settleDelay); err != nil {
		return nil, "", fmt.Errorf("transfer: canceled: %w", err)
	}

	listing, err := o.client.ListDir(ctx, destFid)
	if err != nil {
		return nil, "", fmt.Errorf("listing destination directory: %w", err)
	}

	var names []string

	for _, want := range entries {
		wantName := norm.NFC.String(want.Name)

		for _, got := range listing {
			if got.IsDir == want.IsDir && norm.NFC.String(got.Name) == wantName {
				fids = append(fids, got.Fid)
				names = append(names, got.Name)

				break
			}
		}
	}

	if len(fids) == 0 {
		o.logger.Warn("no transferred entries matched, sharing destination directory",
			slog.String("dest_fid", destFid),
			slog.String("dest_name", destName),
		)

		return []string{destFid}, destName, nil
	}

	if len(fids) < len(entries) {
		o.logger.Warn("partial match of transferred entries",
			slog.Int("matched", len(fids)),
			slog.Int("transferred", len(entries)),
		)
	}

	if len(fids) == 1 {
		return fids, names[0], nil
	}

	return fids, fmt.Sprintf("%s 等%d个文件", names[0], len(fids)), nil
}

// runShare submits the share-creation task, polls it for the share id,
// and finalizes the share into a public URL.
func (o *Orchestrator) runShare(ctx context.Context, fids []string, title string, req Request) (*quark.ShareResult, error) {
	taskID, _, err := o.client.SubmitShare(ctx, fids, title, req.Visibility, req.Expiry, req.Passcode)
	if err != nil {
		return nil, err
	}

	policy := poll.Policy{MaxAttempts: o.SharePollAttempts, Sleep: o.sleep}

	shareID, err := poll.Run(ctx, taskID, policy, func(ctx context.Context, attempt int) (string, bool, error) {
		st, err := o.client.QueryTask(ctx, taskID, attempt)
		if err != nil {
			return "", false, err
		}

		if st.Failed() {
			return "", false, &quark.Error{Message: st.Title, Err: quark.ErrRemoteFailure}
		}

		if st.Finished() && st.ShareID != "" {
			return st.ShareID, true, nil
		}

		return "", false, nil
	})
	if err != nil {
		return nil, err
	}

	return o.client.FinalizeShare(ctx, shareID)
}

// defaultSleep waits for d or until the context is canceled.
func defaultSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
