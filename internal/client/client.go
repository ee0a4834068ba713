// Package client is the settlement-flow client: a thin wrapper over
// the REST API plus the lookup-then-create-then-reconcile logic that
// guarantees a taxi party never ends up with a duplicate settlement.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/liontaxi/settlement-engine/internal/domain"
	customError "github.com/liontaxi/settlement-engine/pkg/errors"
)

// ErrNoAuthToken is returned before any network call when no bearer
// token is available.
var ErrNoAuthToken = errors.New("로그인 정보가 없습니다")

// defaultErrorMessage stands in when the server supplies no message.
const defaultErrorMessage = "요청에 실패했습니다. 잠시 후 다시 시도해주세요"

// TokenSource supplies the bearer token for each request.
type TokenSource interface {
	Token() (string, error)
}

// StaticToken is a TokenSource backed by a fixed token string.
type StaticToken string

func (t StaticToken) Token() (string, error) {
	if t == "" {
		return "", ErrNoAuthToken
	}
	return string(t), nil
}

// APIError is a normalized non-2xx / success:false response.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// IsDuplicate classifies an error as a duplicate-settlement conflict.
// The structured code and 409 status are authoritative; the substring
// match and the bare-400 check remain as fallbacks for backends that
// predate the error code.
func (e *APIError) IsDuplicate() bool {
	if e.Code == customError.ErrCodeSettlementAlreadyExists {
		return true
	}
	if e.Status == http.StatusConflict {
		return true
	}

	msg := strings.ToLower(e.Message)
	if strings.Contains(msg, "already exists") || strings.Contains(msg, "duplicate") || strings.Contains(e.Message, "이미") {
		return true
	}

	return e.Status == http.StatusBadRequest && e.Message == defaultErrorMessage
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.http = httpClient }
}

func WithLogger(log *slog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// Client calls the settlement API. It never retries on its own; every
// failure surfaces to the caller after at most one reconciliation
// lookup (see EnsureSettlement).
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
	log     *slog.Logger
}

func New(baseURL string, tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    http.DefaultClient,
		tokens:  tokens,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CurrentSettlement probes for the party's live settlement.
func (c *Client) CurrentSettlement(ctx context.Context, taxiPartyID int64) (*domain.CurrentSettlementResponse, error) {
	var current domain.CurrentSettlementResponse
	path := fmt.Sprintf("/api/settlements/current?taxiPartyId=%d", taxiPartyID)
	if err := c.do(ctx, http.MethodGet, path, nil, &current); err != nil {
		return nil, err
	}
	return &current, nil
}

// CreateSettlement submits a settlement and returns the assigned id.
func (c *Client) CreateSettlement(ctx context.Context, request *domain.CreateSettlementRequest) (int64, error) {
	var created domain.CreateSettlementResponse
	if err := c.do(ctx, http.MethodPost, "/api/settlements", request, &created); err != nil {
		return 0, err
	}
	return created.SettlementID, nil
}

// Settlement fetches the settlement detail view.
func (c *Client) Settlement(ctx context.Context, settlementID int64) (*domain.SettlementDetailResponse, error) {
	var detail domain.SettlementDetailResponse
	path := fmt.Sprintf("/api/settlements/%d", settlementID)
	if err := c.do(ctx, http.MethodGet, path, nil, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// MarkPaid records a participant's payment.
func (c *Client) MarkPaid(ctx context.Context, settlementID, userID int64) error {
	path := fmt.Sprintf("/api/settlements/%d/participants/%d/pay", settlementID, userID)
	return c.do(ctx, http.MethodPost, path, nil, nil)
}

// Remind asks the server to nudge unpaid participants.
func (c *Client) Remind(ctx context.Context, settlementID int64) (*domain.RemindResponse, error) {
	var result domain.RemindResponse
	path := fmt.Sprintf("/api/settlements/%d/remind", settlementID)
	if err := c.do(ctx, http.MethodPost, path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Party fetches the party detail; its hostId tags the host rider.
func (c *Client) Party(ctx context.Context, taxiPartyID, userID int64) (*domain.PartyDetailResponse, error) {
	var detail domain.PartyDetailResponse
	path := fmt.Sprintf("/api/taxi-party/%d?userId=%d", taxiPartyID, userID)
	if err := c.do(ctx, http.MethodGet, path, nil, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// PartyRequests fetches every ride request of a party.
func (c *Client) PartyRequests(ctx context.Context, taxiPartyID int64) ([]*domain.RideRequest, error) {
	var result domain.PartyRequestsResponse
	path := fmt.Sprintf("/api/taxi-party/%d/requests", taxiPartyID)
	if err := c.do(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return result.Requests, nil
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	// Token absence fails locally, before any network traffic.
	token, err := c.tokens.Token()
	if err != nil {
		return err
	}

	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("request failed", "method", method, "path", path, "error", err)
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	var env envelope
	// A body that is not the expected envelope still yields a usable
	// APIError below; decoding failures are not fatal here.
	_ = json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !env.Success {
		message := env.Message
		if message == "" {
			message = env.Error
		}
		if message == "" {
			message = defaultErrorMessage
		}
		return &APIError{Status: resp.StatusCode, Code: env.Code, Message: message}
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}

	return nil
}
