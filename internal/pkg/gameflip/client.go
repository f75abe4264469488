package gameflip

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ManuelReschke/EZPoster/internal/pkg/env"
)

const (
	DefaultBaseURL  = "https://production-gameflip.fingershock.com/api/v1"
	DefaultMaxPages = 100

	contentTypeJSON      = "application/json"
	contentTypeJSONPatch = "application/json-patch+json"

	maxResponseBytes = 8 << 20
)

// ErrTooManyPages is returned by SearchListings when the upstream keeps
// returning a next page past the configured cap.
var ErrTooManyPages = errors.New("gameflip: pagination exceeded max pages")

// Credentials identify one marketplace account.
type Credentials struct {
	APIKey    string
	APISecret string
	OwnerID   string
}

// APIError is an error reported by the marketplace, either through the
// response envelope or through a non-2xx status without one.
type APIError struct {
	StatusCode int
	Message    string
	Code       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("gameflip: %s (status=%d code=%s)", e.Message, e.StatusCode, e.Code)
	}
	return fmt.Sprintf("gameflip: %s (status=%d)", e.Message, e.StatusCode)
}

// envelope is the body shape of every marketplace response.
type envelope struct {
	Status   string          `json:"status"`
	Data     json.RawMessage `json:"data"`
	NextPage *string         `json:"next_page"`
	Error    *envelopeError  `json:"error"`
}

type envelopeError struct {
	Message string   `json:"message"`
	Code    flexCode `json:"code"`
}

// flexCode accepts both numeric and string error codes.
type flexCode string

func (c *flexCode) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*c = ""
		return nil
	}
	*c = flexCode(strings.Trim(s, `"`))
	return nil
}

// Client talks to the marketplace on behalf of one account.
type Client struct {
	creds      Credentials
	baseURL    string
	httpClient *http.Client
	now        func() time.Time
	maxPages   int
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithClock overrides the time source used for request signing.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

func WithMaxPages(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxPages = n
		}
	}
}

// NewClient creates a client for the given account
func NewClient(creds Credentials, opts ...Option) *Client {
	c := &Client{
		creds:   creds,
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		now:      time.Now,
		maxPages: DefaultMaxPages,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Factory builds clients that share base URL and transport settings.
type Factory func(creds Credentials) *Client

// NewFactoryFromEnv reads GAMEFLIP_API_BASE_URL and GAMEFLIP_HTTP_TIMEOUT.
func NewFactoryFromEnv() Factory {
	baseURL := strings.TrimSpace(env.GetEnv("GAMEFLIP_API_BASE_URL", DefaultBaseURL))
	timeout := env.GetEnvDuration("GAMEFLIP_HTTP_TIMEOUT", 30*time.Second)
	maxPages := env.GetEnvInt("GAMEFLIP_MAX_PAGES", DefaultMaxPages)
	hc := &http.Client{Timeout: timeout}
	return func(creds Credentials) *Client {
		return NewClient(creds, WithBaseURL(baseURL), WithHTTPClient(hc), WithMaxPages(maxPages))
	}
}

func (c *Client) authHeader() (string, error) {
	return AuthHeader(c.creds.APIKey, c.creds.APISecret, c.now())
}

// do performs one signed request and unwraps the response envelope.
// rawQuery is appended verbatim after "?".
func (c *Client) do(ctx context.Context, method, path, rawQuery string, body any, contentType string) (*envelope, error) {
	endpoint := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if rawQuery != "" {
		endpoint += "?" + rawQuery
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("gameflip: encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("gameflip: build request: %w", err)
	}
	// The one-time code is computed per request and never reused.
	auth, err := c.authHeader()
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", auth)
	req.Header.Set("Accept", contentTypeJSON)
	if body != nil {
		if contentType == "" {
			contentType = contentTypeJSON
		}
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gameflip: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("gameflip: read response: %w", err)
	}
	ok := resp.StatusCode >= 200 && resp.StatusCode < 300

	if len(bytes.TrimSpace(raw)) == 0 {
		if ok {
			return &envelope{}, nil
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}

	var out envelope
	if err := json.Unmarshal(raw, &out); err != nil {
		if !ok {
			return nil, &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
		return nil, fmt.Errorf("gameflip: decode response: %w", err)
	}
	if out.Error != nil {
		msg := strings.TrimSpace(out.Error.Message)
		if msg == "" {
			msg = "Unknown error"
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Message: msg, Code: string(out.Error.Code)}
	}
	if !ok {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}
	return &out, nil
}

func decodeData(resp *envelope, out any) error {
	if len(resp.Data) == 0 || string(resp.Data) == "null" {
		return errors.New("gameflip: response has no data")
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return fmt.Errorf("gameflip: decode data: %w", err)
	}
	return nil
}
