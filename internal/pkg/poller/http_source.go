package poller

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ManuelReschke/FoxPass/internal/pkg/entitlements"
)

const (
	verifyPath      = "/api/v1/billing/verify"
	entitlementPath = "/api/v1/entitlement"
	maxResponseBody = 1 << 20
)

// ErrUnauthorized is returned when the server rejects the token.
var ErrUnauthorized = errors.New("token rejected by server")

// HTTPSource reads entitlement state from a FoxPass API with a bearer token.
type HTTPSource struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

type verifyResponse struct {
	Success bool   `json:"success"`
	IsPro   bool   `json:"is_pro"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

// NewHTTPSource creates a source for baseURL.
func NewHTTPSource(baseURL, token string) *HTTPSource {
	return &HTTPSource{
		BaseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		Token:   strings.TrimSpace(token),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (s *HTTPSource) Verify(ctx context.Context, sessionID string) (bool, error) {
	payload, err := json.Marshal(map[string]string{"sessionId": strings.TrimSpace(sessionID)})
	if err != nil {
		return false, err
	}
	body, err := s.do(ctx, http.MethodPost, s.BaseURL+verifyPath, bytes.NewReader(payload), s.HTTPClient)
	if err != nil {
		return false, err
	}
	var out verifyResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return false, err
	}
	return out.Success && out.IsPro, nil
}

func (s *HTTPSource) Fetch(ctx context.Context) (*entitlements.Snapshot, error) {
	body, err := s.do(ctx, http.MethodGet, s.BaseURL+entitlementPath, nil, s.HTTPClient)
	if err != nil {
		return nil, err
	}
	return decodeSnapshot(body)
}

// WaitForChange long-polls the entitlement endpoint until the version moves
// past sinceVersion or wait elapses on the server.
func (s *HTTPSource) WaitForChange(ctx context.Context, sinceVersion uint64, wait time.Duration) (*entitlements.Snapshot, error) {
	q := url.Values{}
	q.Set("since_version", strconv.FormatUint(sinceVersion, 10))
	q.Set("wait", strconv.Itoa(int(wait/time.Second)))

	// The client timeout must outlast the server side wait.
	client := *s.httpClient()
	client.Timeout = wait + 15*time.Second

	body, err := s.do(ctx, http.MethodGet, s.BaseURL+entitlementPath+"?"+q.Encode(), nil, &client)
	if err != nil {
		return nil, err
	}
	return decodeSnapshot(body)
}

func (s *HTTPSource) httpClient() *http.Client {
	if s.HTTPClient == nil {
		return http.DefaultClient
	}
	return s.HTTPClient
}

func (s *HTTPSource) do(ctx context.Context, method, target string, payload io.Reader, client *http.Client) ([]byte, error) {
	if s.BaseURL == "" {
		return nil, errors.New("base url is required")
	}
	if s.Token == "" {
		return nil, errors.New("access token is required")
	}
	if client == nil {
		client = s.httpClient()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, payload)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+s.Token)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, fmt.Errorf("%w: %s %s: status=%d", ErrUnauthorized, method, target, resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%s %s failed: status=%d body=%s", method, target, resp.StatusCode, string(body))
	}
	return body, nil
}

func decodeSnapshot(body []byte) (*entitlements.Snapshot, error) {
	var snap entitlements.Snapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}
