package quark

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
)

type accountInfoResponse struct {
	Data *struct {
		Nickname string `json:"nickname"`
	} `json:"data"`
}

// VerifyIdentity checks the session credentials against the account
// endpoint and returns the owning profile. Invalid or expired
// credentials yield ErrAuth.
func (c *Client) VerifyIdentity(ctx context.Context) (*Profile, error) {
	q := url.Values{}
	q.Set("fr", "pc")
	q.Set("platform", "pc")

	var resp accountInfoResponse
	if err := c.doJSON(ctx, http.MethodGet, c.panBase+"/account/info", q, nil, &resp); err != nil {
		return nil, err
	}

	// The account endpoint reports anonymous visitors with an empty
	// data object rather than an error status.
	if resp.Data == nil || resp.Data.Nickname == "" {
		return nil, remoteErr(ErrAuth, 0, "cookies invalid or expired")
	}

	c.logger.Info("verified identity", slog.String("nickname", resp.Data.Nickname))

	return &Profile{Nickname: resp.Data.Nickname}, nil
}
