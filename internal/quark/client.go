package quark

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Default API endpoints. The drive web client talks to two hosts:
// the pan host serves account endpoints, the drive host everything else.
const (
	DefaultPanBaseURL   = "https://pan.quark.cn"
	DefaultDriveBaseURL = "https://drive-pc.quark.cn/1/clouddrive"
)

// userAgent mimics the desktop web client; the API rejects unknown agents.
const userAgent = "Mozilla/5.0 (Windows NT 10.0; WOW64) AppleWebKit/537.36 (KHTML, like Gecko)" +
	" Chrome/94.0.4606.71 Safari/537.36 Core/1.94.225.400 QQBrowser/12.2.5544.400"

// Config carries the constructor parameters for Client.
// Zero-value base URLs and HTTPClient fall back to defaults.
type Config struct {
	PanBaseURL   string
	DriveBaseURL string
	HTTPClient   *http.Client
	Cookie       string // opaque browser-session credentials, sent verbatim
	Logger       *slog.Logger
}

// Client is a stateless adapter for the Quark drive API, bound to one
// set of session credentials. Safe for concurrent use.
type Client struct {
	panBase    string
	driveBase  string
	httpClient *http.Client
	cookie     string
	logger     *slog.Logger

	// now is called for the anti-cache timestamp parameter.
	// Tests override this for deterministic URLs.
	now func() time.Time
}

// New creates a drive API client for the given credentials.
func New(cfg Config) *Client {
	if cfg.PanBaseURL == "" {
		cfg.PanBaseURL = DefaultPanBaseURL
	}

	if cfg.DriveBaseURL == "" {
		cfg.DriveBaseURL = DefaultDriveBaseURL
	}

	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}

	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Client{
		panBase:    cfg.PanBaseURL,
		driveBase:  cfg.DriveBaseURL,
		httpClient: cfg.HTTPClient,
		cookie:     cfg.Cookie,
		logger:     cfg.Logger,
		now:        time.Now,
	}
}

// commonQuery returns the query parameters the drive API expects on
// every call: client identification plus anti-cache values.
func (c *Client) commonQuery() url.Values {
	q := url.Values{}
	q.Set("pr", "ucpro")
	q.Set("fr", "pc")
	q.Set("uc_param_str", "")
	q.Set("__dt", strconv.Itoa(100+rand.IntN(9900))) //nolint:gosec // anti-cache value, not security-relevant
	q.Set("__t", strconv.FormatInt(c.now().UnixMilli(), 10))

	return q
}

// doJSON issues a request and decodes the JSON response body into out.
// The body, when non-nil, is JSON-encoded. Non-2xx statuses are
// classified before decoding is attempted.
func (c *Client) doJSON(ctx context.Context, method, rawURL string, q url.Values, body, out any) error {
	if len(q) > 0 {
		rawURL += "?" + q.Encode()
	}

	var reqBody io.Reader

	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("quark: marshaling request body: %w", err)
		}

		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reqBody)
	if err != nil {
		return fmt.Errorf("quark: creating request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Origin", "https://pan.quark.cn")
	req.Header.Set("Referer", "https://pan.quark.cn/")
	req.Header.Set("Accept-Language", "zh-CN,zh;q=0.9")
	req.Header.Set("Cookie", c.cookie)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("quark: %s %s: %w", method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return remoteErr(ErrAuth, resp.StatusCode, "credentials rejected")
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return remoteErr(ErrProtocol, resp.StatusCode, fmt.Sprintf("HTTP %d from %s", resp.StatusCode, req.URL.Path))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decoding %s response: %w", ErrProtocol, req.URL.Path, err)
	}

	c.logger.Debug("drive API call",
		slog.String("method", method),
		slog.String("path", req.URL.Path),
		slog.Int("status", resp.StatusCode),
	)

	return nil
}

// driveURL joins a path onto the drive API base.
func (c *Client) driveURL(path string) string {
	return c.driveBase + path
}
