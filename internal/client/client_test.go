package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/liontaxi/settlement-engine/internal/domain"
	customError "github.com/liontaxi/settlement-engine/pkg/errors"
	"github.com/liontaxi/settlement-engine/pkg/response"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeData(w http.ResponseWriter, status int, data interface{}) {
	response.JSON(w, status, data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	response.ErrorWithCode(w, status, code, message, nil)
}

func TestEnsureSettlement_CreatesWhenNoneExists(t *testing.T) {
	createCalls := 0

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/settlements/current", func(w http.ResponseWriter, r *http.Request) {
		writeData(w, http.StatusOK, domain.CurrentSettlementResponse{HasSettlement: false})
	})
	mux.HandleFunc("POST /api/settlements", func(w http.ResponseWriter, r *http.Request) {
		createCalls++
		assert.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))

		var request domain.CreateSettlementRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&request))
		assert.Equal(t, int64(5001), request.TotalFare)

		writeData(w, http.StatusCreated, domain.CreateSettlementResponse{SettlementID: 77})
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	c := New(server.URL, StaticToken("token-1"))
	outcome, err := c.EnsureSettlement(context.Background(), sampleRequest(), 5)

	require.NoError(t, err)
	assert.Equal(t, int64(77), outcome.SettlementID)
	assert.Equal(t, int64(5), outcome.ChatRoomID)
	assert.False(t, outcome.AlreadyExisted)
	assert.False(t, outcome.Recovered)
	assert.Equal(t, 1, createCalls)
}

func TestEnsureSettlement_ExistingSettlementShortCircuits(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/settlements/current", func(w http.ResponseWriter, r *http.Request) {
		writeData(w, http.StatusOK, domain.CurrentSettlementResponse{HasSettlement: true, SettlementID: 42})
	})
	mux.HandleFunc("POST /api/settlements", func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("creation must not be attempted when a settlement already exists")
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	c := New(server.URL, StaticToken("token-1"))
	outcome, err := c.EnsureSettlement(context.Background(), sampleRequest(), 5)

	require.NoError(t, err)
	assert.Equal(t, int64(42), outcome.SettlementID)
	assert.True(t, outcome.AlreadyExisted)
	assert.False(t, outcome.Recovered)
}

func TestEnsureSettlement_RecoversFromDuplicateConflict(t *testing.T) {
	currentCalls := 0

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/settlements/current", func(w http.ResponseWriter, r *http.Request) {
		currentCalls++
		if currentCalls == 1 {
			// Another actor creates the settlement between the probe
			// and our create.
			writeData(w, http.StatusOK, domain.CurrentSettlementResponse{HasSettlement: false})
			return
		}
		writeData(w, http.StatusOK, domain.CurrentSettlementResponse{HasSettlement: true, SettlementID: 42})
	})
	mux.HandleFunc("POST /api/settlements", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusConflict, customError.ErrCodeSettlementAlreadyExists, "Settlement for taxi party 10 already exists")
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	c := New(server.URL, StaticToken("token-1"))
	outcome, err := c.EnsureSettlement(context.Background(), sampleRequest(), 5)

	require.NoError(t, err)
	assert.Equal(t, int64(42), outcome.SettlementID)
	assert.True(t, outcome.Recovered)
	assert.False(t, outcome.AlreadyExisted)
	assert.Equal(t, 2, currentCalls)
}

func TestEnsureSettlement_DuplicateWithoutRecoveryIsFatal(t *testing.T) {
	currentCalls := 0

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/settlements/current", func(w http.ResponseWriter, r *http.Request) {
		currentCalls++
		writeData(w, http.StatusOK, domain.CurrentSettlementResponse{HasSettlement: false})
	})
	mux.HandleFunc("POST /api/settlements", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusConflict, customError.ErrCodeSettlementAlreadyExists, "already exists")
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	c := New(server.URL, StaticToken("token-1"))
	_, err := c.EnsureSettlement(context.Background(), sampleRequest(), 5)

	assert.ErrorIs(t, err, ErrReconcileFailed)
	// Exactly one recovery lookup, never a loop.
	assert.Equal(t, 2, currentCalls)
}

func TestEnsureSettlement_DuplicateDetectedBySubstringFallback(t *testing.T) {
	currentCalls := 0

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/settlements/current", func(w http.ResponseWriter, r *http.Request) {
		currentCalls++
		if currentCalls == 1 {
			writeData(w, http.StatusOK, domain.CurrentSettlementResponse{HasSettlement: false})
			return
		}
		writeData(w, http.StatusOK, domain.CurrentSettlementResponse{HasSettlement: true, SettlementID: 42})
	})
	mux.HandleFunc("POST /api/settlements", func(w http.ResponseWriter, r *http.Request) {
		// Legacy backend: 400 with no structured code.
		writeError(w, http.StatusBadRequest, "", "settlement already exists for this party")
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	c := New(server.URL, StaticToken("token-1"))
	outcome, err := c.EnsureSettlement(context.Background(), sampleRequest(), 5)

	require.NoError(t, err)
	assert.True(t, outcome.Recovered)
	assert.Equal(t, int64(42), outcome.SettlementID)
}

func TestEnsureSettlement_OtherFailuresSurface(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/settlements/current", func(w http.ResponseWriter, r *http.Request) {
		writeData(w, http.StatusOK, domain.CurrentSettlementResponse{HasSettlement: false})
	})
	mux.HandleFunc("POST /api/settlements", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusBadRequest, customError.ErrCodeAmountMismatch, "Participant amounts sum to 4999, expected total fare 5001")
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	c := New(server.URL, StaticToken("token-1"))
	_, err := c.EnsureSettlement(context.Background(), sampleRequest(), 5)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, customError.ErrCodeAmountMismatch, apiErr.Code)
}

func TestMissingTokenFailsBeforeNetwork(t *testing.T) {
	hits := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
	}))
	defer server.Close()

	c := New(server.URL, StaticToken(""))
	_, err := c.CurrentSettlement(context.Background(), 10)

	assert.ErrorIs(t, err, ErrNoAuthToken)
	assert.Equal(t, 0, hits)
}

func TestBuildSettlementRequest(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/taxi-party/10", func(w http.ResponseWriter, r *http.Request) {
		writeData(w, http.StatusOK, domain.PartyDetailResponse{
			Party:  &domain.TaxiParty{ID: 10, HostID: 1, ChatRoomID: 5},
			IsHost: true,
		})
	})
	mux.HandleFunc("GET /api/taxi-party/10/requests", func(w http.ResponseWriter, r *http.Request) {
		writeData(w, http.StatusOK, domain.PartyRequestsResponse{
			TaxiPartyID: 10,
			Requests: []*domain.RideRequest{
				{TaxiPartyID: 10, UserID: 2, Status: domain.RequestStatusAccepted},
				{TaxiPartyID: 10, UserID: 3, Status: domain.RequestStatusRequested},
				{TaxiPartyID: 10, UserID: 4, Status: domain.RequestStatusAccepted},
			},
		})
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	c := New(server.URL, StaticToken("token-1"))
	request, chatRoomID, err := c.BuildSettlementRequest(context.Background(), 10, 1, "5,000원", "슈니은행 110-012-345-6789")

	require.NoError(t, err)
	assert.Equal(t, int64(5), chatRoomID)
	assert.Equal(t, int64(5000), request.TotalFare)
	assert.Equal(t, "슈니은행", request.BankName)
	assert.Equal(t, "110-012-345-6789", request.AccountNumber)

	// Accepted riders plus the force-included host; the pending
	// request for user 3 is excluded.
	require.Len(t, request.Participants, 3)
	assert.Equal(t, int64(2), request.Participants[0].UserID)
	assert.Equal(t, int64(1666), request.Participants[0].Amount)
	assert.Equal(t, int64(4), request.Participants[1].UserID)
	assert.Equal(t, int64(1666), request.Participants[1].Amount)
	assert.Equal(t, int64(1), request.Participants[2].UserID)
	assert.Equal(t, int64(1668), request.Participants[2].Amount)
}

func TestAPIErrorIsDuplicate(t *testing.T) {
	tests := []struct {
		name     string
		err      APIError
		expected bool
	}{
		{name: "structured code", err: APIError{Status: 400, Code: customError.ErrCodeSettlementAlreadyExists, Message: "x"}, expected: true},
		{name: "conflict status", err: APIError{Status: 409, Message: "x"}, expected: true},
		{name: "already exists substring", err: APIError{Status: 400, Message: "record already exists"}, expected: true},
		{name: "duplicate substring", err: APIError{Status: 500, Message: "duplicate key value"}, expected: true},
		{name: "korean duplicate message", err: APIError{Status: 400, Message: "이미 정산이 존재합니다"}, expected: true},
		{name: "generic 400 fallback", err: APIError{Status: 400, Message: defaultErrorMessage}, expected: true},
		{name: "specific 400 is not duplicate", err: APIError{Status: 400, Code: customError.ErrCodeAmountMismatch, Message: "sum mismatch"}, expected: false},
		{name: "server error is not duplicate", err: APIError{Status: 500, Message: "boom"}, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.IsDuplicate())
		})
	}
}

func TestRemindThrottle(t *testing.T) {
	remindCalls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/settlements/42/remind", func(w http.ResponseWriter, r *http.Request) {
		remindCalls++
		writeData(w, http.StatusOK, domain.RemindResponse{RemindedCount: 2})
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	c := New(server.URL, StaticToken("token-1"))

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	throttle := NewRemindThrottle(c, 42)
	throttle.now = func() time.Time { return now }

	require.True(t, throttle.Allowed())
	require.NoError(t, throttle.Trigger(context.Background()))
	assert.Equal(t, 1, remindCalls)
	assert.True(t, throttle.Confirming())
	assert.False(t, throttle.Allowed())

	// Within the cooldown: rejected locally, no network call.
	assert.ErrorIs(t, throttle.Trigger(context.Background()), ErrRemindTooSoon)
	assert.Equal(t, 1, remindCalls)

	// Confirmation indicator drops independently of the cooldown.
	now = now.Add(4 * time.Second)
	assert.False(t, throttle.Confirming())
	assert.False(t, throttle.Allowed())
	assert.Equal(t, DefaultRemindCooldown-4*time.Second, throttle.Remaining())

	// After the cooldown the trigger works again.
	now = now.Add(DefaultRemindCooldown)
	require.True(t, throttle.Allowed())
	require.NoError(t, throttle.Trigger(context.Background()))
	assert.Equal(t, 2, remindCalls)
}

func TestRemindThrottle_FailedCallDoesNotStartCooldown(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/settlements/42/remind", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusTooManyRequests, customError.ErrCodeRemindCooldown, "Reminder for settlement 42 was sent recently")
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	c := New(server.URL, StaticToken("token-1"))
	throttle := NewRemindThrottle(c, 42)

	var apiErr *APIError
	require.ErrorAs(t, throttle.Trigger(context.Background()), &apiErr)
	assert.Equal(t, customError.ErrCodeRemindCooldown, apiErr.Code)

	assert.True(t, throttle.Allowed())
	assert.False(t, throttle.Confirming())
}

func sampleRequest() *domain.CreateSettlementRequest {
	return &domain.CreateSettlementRequest{
		TaxiPartyID:   10,
		TotalFare:     5001,
		BankName:      "슈니은행",
		AccountNumber: "110-012-345-6789",
		Participants: []domain.ParticipantShare{
			{UserID: 1, Amount: 1251},
			{UserID: 2, Amount: 1250},
			{UserID: 3, Amount: 1250},
			{UserID: 4, Amount: 1250},
		},
	}
}
