package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/gatekeeper/internal/common"
	"golang.org/x/time/rate"
)

const (
	tokenHeader = "X-Emby-Token"
	authHeader  = "X-Emby-Authorization"

	// clientIdentity is sent with password checks; the server ties issued
	// tokens to a device.
	clientIdentity = `MediaBrowser Client="gatekeeper", Device="gatekeeper", DeviceId="gatekeeper", Version="1.0.0"`

	// layoutClient is the display-preferences namespace used by the web client.
	layoutClient = "emby"

	maxErrorBody = 512
)

// ClientConfig configures an HTTP Client.
type ClientConfig struct {
	BaseURL string
	APIKey  string
	// Timeout bounds each call, including waiting for the rate limiter.
	Timeout time.Duration
	// RateLimit is the sustained number of requests per second. Zero or
	// negative disables pacing.
	RateLimit float64
	// HTTPClient defaults to a client with no timeout of its own.
	HTTPClient *http.Client
}

// Client is the HTTP implementation of Gateway.
type Client struct {
	baseURL *url.URL
	apiKey  string
	timeout time.Duration
	limiter *rate.Limiter
	http    *http.Client
}

func NewClient(cfg ClientConfig) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("remote base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("remote base url %q: unsupported scheme", cfg.BaseURL)
	}

	limit := rate.Inf
	burst := 1
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
		burst = max(1, int(cfg.RateLimit))
	}

	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}

	return &Client{
		baseURL: u,
		apiKey:  cfg.APIKey,
		timeout: cfg.Timeout,
		limiter: rate.NewLimiter(limit, burst),
		http:    hc,
	}, nil
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = c.baseURL.Path + path
	u.RawQuery = query.Encode()
	return u.String()
}

// do performs one request. A nil out discards the response body.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any, header http.Header) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %s %s: %w", common.ErrRemoteUnavailable, method, path, err)
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", path, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), body)
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set(tokenHeader, c.apiKey)
	}
	for k, v := range header {
		req.Header[k] = v
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", common.ErrRemoteUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		kind := common.ErrRemoteUnavailable
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			kind = common.ErrRemoteRejected
		}
		return &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: strings.TrimSpace(string(snippet)), kind: kind}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s response: %w", common.ErrRemoteUnavailable, path, err)
	}
	return nil
}

// StatusError reports a non-2xx response. It matches
// common.ErrRemoteRejected for 4xx codes and common.ErrRemoteUnavailable
// otherwise.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
	kind   error
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s returned %d", e.Method, e.Path, e.Code)
	}
	return fmt.Sprintf("%s %s returned %d: %s", e.Method, e.Path, e.Code, e.Body)
}

func (e *StatusError) Unwrap() error { return e.kind }

func (c *Client) ListAccounts(ctx context.Context) ([]Account, error) {
	var accounts []Account
	if err := c.do(ctx, http.MethodGet, "/Users", nil, nil, &accounts, nil); err != nil {
		return nil, err
	}
	for _, a := range accounts {
		if a.ID == "" {
			return nil, fmt.Errorf("%w: account %q without id", common.ErrRemoteUnavailable, a.Name)
		}
	}
	return accounts, nil
}

func (c *Client) GetAccount(ctx context.Context, id string) (*Account, error) {
	var a Account
	if err := c.do(ctx, http.MethodGet, "/Users/"+url.PathEscape(id), nil, nil, &a, nil); err != nil {
		if errors.Is(err, common.ErrRemoteRejected) && statusCode(err) == http.StatusNotFound {
			return nil, fmt.Errorf("remote account %s: %w", id, common.ErrorNotFound)
		}
		return nil, err
	}
	if a.ID == "" || a.Policy == nil {
		return nil, fmt.Errorf("%w: account %s: incomplete detail", common.ErrRemoteUnavailable, id)
	}
	return &a, nil
}

func (c *Client) SetPolicy(ctx context.Context, id string, policy *Policy) error {
	return c.do(ctx, http.MethodPost, "/Users/"+url.PathEscape(id)+"/Policy", nil, policy, nil, nil)
}

func (c *Client) SetDisabledOnly(ctx context.Context, id string, disabled bool) error {
	payload := map[string]bool{"IsDisabled": disabled}
	return c.do(ctx, http.MethodPost, "/Users/"+url.PathEscape(id)+"/Policy", nil, payload, nil, nil)
}

type authenticateRequest struct {
	Username string `json:"Username"`
	Pw       string `json:"Pw"`
}

type authenticateResponse struct {
	User        *Account `json:"User"`
	AccessToken string   `json:"AccessToken"`
}

func (c *Client) Authenticate(ctx context.Context, userName, password string) (*Account, error) {
	var resp authenticateResponse
	header := http.Header{authHeader: []string{clientIdentity}}
	err := c.do(ctx, http.MethodPost, "/Users/AuthenticateByName", nil,
		authenticateRequest{Username: userName, Pw: password}, &resp, header)
	if err != nil {
		if errors.Is(err, common.ErrRemoteRejected) {
			return nil, fmt.Errorf("%w (remote status %d)", common.ErrInvalidCredentials, statusCode(err))
		}
		return nil, err
	}
	if resp.User == nil || resp.User.ID == "" {
		return nil, fmt.Errorf("%w: authenticate: missing user", common.ErrRemoteUnavailable)
	}
	return resp.User, nil
}

type createAccountRequest struct {
	Name     string `json:"Name"`
	Password string `json:"Password"`
}

func (c *Client) CreateAccount(ctx context.Context, userName, password string) (*Account, error) {
	var a Account
	err := c.do(ctx, http.MethodPost, "/Users/New", nil, createAccountRequest{Name: userName, Password: password}, &a, nil)
	if err != nil {
		return nil, err
	}
	if a.ID == "" {
		return nil, fmt.Errorf("%w: create account: missing id", common.ErrRemoteUnavailable)
	}
	return &a, nil
}

func (c *Client) ListLibraryFolders(ctx context.Context) ([]Folder, error) {
	var folders []Folder
	if err := c.do(ctx, http.MethodGet, "/Library/VirtualFolders", nil, nil, &folders, nil); err != nil {
		return nil, err
	}
	return folders, nil
}

func layoutQuery(id string) url.Values {
	return url.Values{"userId": {id}, "client": {layoutClient}}
}

func (c *Client) GetHomeLayout(ctx context.Context, id string) (json.RawMessage, error) {
	var layout json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/DisplayPreferences/usersettings", layoutQuery(id), nil, &layout, nil); err != nil {
		return nil, err
	}
	return layout, nil
}

func (c *Client) SetHomeLayout(ctx context.Context, id string, layout json.RawMessage) error {
	return c.do(ctx, http.MethodPost, "/DisplayPreferences/usersettings", layoutQuery(id), layout, nil, nil)
}

func statusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}
