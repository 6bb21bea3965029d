package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/jrsteele09/backoffice-session/backend"
	apperrors "github.com/jrsteele09/backoffice-session/internal/errors"
	"github.com/jrsteele09/backoffice-session/profiles"
	"golang.org/x/oauth2"
)

var (
	_ backend.AuthClient     = (*Client)(nil)
	_ backend.PasswordSigner = (*Client)(nil)
	_ profiles.Repo          = (*Client)(nil)
)

const (
	authPath     = "/auth/v1"
	restPath     = "/rest/v1"
	profileTable = "profiles"
	lastLoginRPC = "update_last_login"
)

// APIError is a non-2xx answer from the backend.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("backend returned %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("backend returned %d: %s", e.Status, e.Message)
}

func (e *APIError) Is(target error) bool {
	return target == apperrors.ErrUnexpectedStatus
}

// Client talks to the hosted backend: the auth endpoints and the profiles
// table plus its RPC. It holds the current session like the browser SDK
// does and optionally persists its token to disk so a restart restores it.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	store      *tokenFile
	notifier   *backend.Notifier
	nowTime    func() time.Time

	lock    sync.RWMutex
	session *backend.Session
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets the transport used for every call
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithSessionFile persists the session token at path
func WithSessionFile(path string) ClientOption {
	return func(c *Client) {
		c.store = &tokenFile{path: path}
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ClientOption {
	return func(c *Client) {
		c.nowTime = nowFunc
	}
}

// New creates a backend client for baseURL authenticated by the project's public apiKey.
func New(baseURL, apiKey string, options ...ClientOption) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("[rest.New] baseURL is required")
	}
	if apiKey == "" {
		return nil, errors.New("[rest.New] apiKey is required")
	}

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		notifier:   backend.NewNotifier(),
		nowTime:    time.Now,
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// do sends a JSON request. A nil token source sends the api key as bearer.
func (c *Client) do(ctx context.Context, ts oauth2.TokenSource, method, path string, body any, headers map[string]string, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return apperrors.Wrapf(err, "marshal %s %s", method, path)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return apperrors.Wrapf(err, "build %s %s", method, path)
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	hc := c.httpClient
	if ts != nil {
		hc = oauth2.NewClient(context.WithValue(ctx, oauth2.HTTPClient, c.httpClient), ts)
	} else {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", apperrors.ErrBackendUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperrors.Wrapf(err, "read %s %s", method, path)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp.StatusCode, payload)
	}
	if out == nil || len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return apperrors.Wrapf(err, "decode %s %s", method, path)
	}
	return nil
}

func decodeAPIError(status int, payload []byte) error {
	var body struct {
		Code        any    `json:"code"`
		ErrorCode   string `json:"error_code"`
		Message     string `json:"message"`
		Msg         string `json:"msg"`
		Error       string `json:"error"`
		Description string `json:"error_description"`
	}
	_ = json.Unmarshal(payload, &body)

	apiErr := &APIError{Status: status}
	switch v := body.Code.(type) {
	case string:
		apiErr.Code = v
	case float64:
		apiErr.Code = fmt.Sprintf("%d", int(v))
	}
	if body.ErrorCode != "" {
		apiErr.Code = body.ErrorCode
	}
	for _, m := range []string{body.Message, body.Msg, body.Description, body.Error} {
		if m != "" {
			apiErr.Message = m
			break
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}
	return apiErr
}

// BaseURL returns the backend root the client was created with
func (c *Client) BaseURL() string {
	return c.baseURL
}
