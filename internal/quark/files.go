package quark

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
)

// listPageSize is the _size value for directory listing requests.
const listPageSize = 100

type entryResponse struct {
	Fid           string `json:"fid"`
	FileName      string `json:"file_name"`
	Dir           bool   `json:"dir"`
	PdirFid       string `json:"pdir_fid"`
	ShareFidToken string `json:"share_fid_token"`
	Status        int    `json:"status"`
}

// toEntry normalizes an API file record into our Entry type.
func (e *entryResponse) toEntry() Entry {
	return Entry{
		Fid:           e.Fid,
		Name:          e.FileName,
		IsDir:         e.Dir,
		ParentFid:     e.PdirFid,
		ShareFidToken: e.ShareFidToken,
		Status:        e.Status,
	}
}

type createDirRequest struct {
	PdirFid     string `json:"pdir_fid"`
	FileName    string `json:"file_name"`
	DirPath     string `json:"dir_path"`
	DirInitLock bool   `json:"dir_init_lock"`
}

type createDirResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    *struct {
		Fid string `json:"fid"`
	} `json:"data"`
}

type listDirResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    *struct {
		List []entryResponse `json:"list"`
	} `json:"data"`
}

// CreateDir creates a directory under the given parent. On a name
// collision the existing same-name directory is looked up and returned
// instead, so the call is idempotent: two calls with the same
// (parentFid, name) yield the same fid.
func (c *Client) CreateDir(ctx context.Context, parentFid, name string) (*DirInfo, error) {
	c.logger.Info("creating directory",
		slog.String("parent_fid", parentFid),
		slog.String("name", name),
	)

	reqBody := createDirRequest{
		PdirFid:  parentFid,
		FileName: name,
	}

	var resp createDirResponse
	if err := c.doJSON(ctx, http.MethodPost, c.driveURL("/file"), c.commonQuery(), reqBody, &resp); err != nil {
		return nil, err
	}

	switch {
	case resp.Code == 0 && resp.Data != nil:
		return &DirInfo{Fid: resp.Data.Fid, Name: name, ParentFid: parentFid}, nil
	case resp.Code == codeDirConflict:
		return c.findExistingDir(ctx, parentFid, name)
	default:
		return nil, remoteErr(ErrRemoteFailure, resp.Code, resp.Message)
	}
}

// findExistingDir resolves a create-directory name collision by listing
// the parent and returning the same-name directory entry.
func (c *Client) findExistingDir(ctx context.Context, parentFid, name string) (*DirInfo, error) {
	c.logger.Info("directory exists, resolving collision",
		slog.String("parent_fid", parentFid),
		slog.String("name", name),
	)

	entries, err := c.ListDir(ctx, parentFid)
	if err != nil {
		return nil, fmt.Errorf("resolving directory collision: %w", err)
	}

	for _, e := range entries {
		if e.IsDir && e.Name == name {
			return &DirInfo{Fid: e.Fid, Name: name, ParentFid: parentFid}, nil
		}
	}

	return nil, remoteErr(ErrConflict, codeDirConflict,
		fmt.Sprintf("name conflict for %q but existing directory not found", name))
}

// ListDir returns the first page of entries under the given directory,
// sub-directories included. One page of listPageSize covers the
// collision-resolution and transfer-matching callers.
func (c *Client) ListDir(ctx context.Context, parentFid string) ([]Entry, error) {
	q := c.commonQuery()
	q.Set("pdir_fid", parentFid)
	q.Set("_page", "1")
	q.Set("_size", strconv.Itoa(listPageSize))
	q.Set("_fetch_total", "false")
	q.Set("_fetch_sub_dirs", "1")
	q.Set("_sort", "")

	var resp listDirResponse
	if err := c.doJSON(ctx, http.MethodGet, c.driveURL("/file/sort"), q, nil, &resp); err != nil {
		return nil, err
	}

	if resp.Data == nil {
		return nil, remoteErr(ErrProtocol, resp.Code, resp.Message)
	}

	entries := make([]Entry, 0, len(resp.Data.List))
	for i := range resp.Data.List {
		entries = append(entries, resp.Data.List[i].toEntry())
	}

	c.logger.Debug("listed directory",
		slog.String("parent_fid", parentFid),
		slog.Int("count", len(entries)),
	)

	return entries, nil
}
