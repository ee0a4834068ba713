package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/liontaxi/settlement-engine/internal/domain"
	customError "github.com/liontaxi/settlement-engine/pkg/errors"
	"github.com/liontaxi/settlement-engine/pkg/response"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
)

// SettlementService is the surface the settlement handler needs.
type SettlementService interface {
	CreateSettlement(ctx context.Context, request *domain.CreateSettlementRequest) (*domain.Settlement, error)
	GetSettlement(ctx context.Context, settlementID int64) (*domain.SettlementDetailResponse, error)
	GetCurrentSettlement(ctx context.Context, taxiPartyID int64) (*domain.CurrentSettlementResponse, error)
	MarkPaid(ctx context.Context, settlementID, userID int64) error
	Remind(ctx context.Context, settlementID int64) (*domain.RemindResponse, error)
}

type SettlementHandler struct {
	service   SettlementService
	validator *validator.Validate
}

func NewSettlementHandler(service SettlementService) *SettlementHandler {
	return &SettlementHandler{
		service:   service,
		validator: validator.New(),
	}
}

// Create handles POST /api/settlements
func (h *SettlementHandler) Create(w http.ResponseWriter, r *http.Request) {
	var request domain.CreateSettlementRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		response.BadRequest(w, "invalid request body", err)
		return
	}

	if err := h.validator.Struct(&request); err != nil {
		response.BadRequest(w, "invalid settlement request", err)
		return
	}

	settlement, err := h.service.CreateSettlement(r.Context(), &request)
	if err != nil {
		writeBusinessError(w, err)
		return
	}

	response.Created(w, domain.CreateSettlementResponse{SettlementID: settlement.ID})
}

// Get handles GET /api/settlements/{settlementId}
func (h *SettlementHandler) Get(w http.ResponseWriter, r *http.Request) {
	settlementID, ok := pathID(w, r, "settlementId")
	if !ok {
		return
	}

	detail, err := h.service.GetSettlement(r.Context(), settlementID)
	if err != nil {
		writeBusinessError(w, err)
		return
	}

	response.Success(w, detail)
}

// Current handles GET /api/settlements/current?taxiPartyId=
func (h *SettlementHandler) Current(w http.ResponseWriter, r *http.Request) {
	taxiPartyID, err := strconv.ParseInt(r.URL.Query().Get("taxiPartyId"), 10, 64)
	if err != nil || taxiPartyID <= 0 {
		response.BadRequest(w, "taxiPartyId is required", err)
		return
	}

	current, serviceErr := h.service.GetCurrentSettlement(r.Context(), taxiPartyID)
	if serviceErr != nil {
		writeBusinessError(w, serviceErr)
		return
	}

	response.Success(w, current)
}

// Pay handles POST /api/settlements/{settlementId}/participants/{userId}/pay
func (h *SettlementHandler) Pay(w http.ResponseWriter, r *http.Request) {
	settlementID, ok := pathID(w, r, "settlementId")
	if !ok {
		return
	}
	userID, ok := pathID(w, r, "userId")
	if !ok {
		return
	}

	if err := h.service.MarkPaid(r.Context(), settlementID, userID); err != nil {
		writeBusinessError(w, err)
		return
	}

	response.Success(w, nil)
}

// Remind handles POST /api/settlements/{settlementId}/remind
func (h *SettlementHandler) Remind(w http.ResponseWriter, r *http.Request) {
	settlementID, ok := pathID(w, r, "settlementId")
	if !ok {
		return
	}

	result, err := h.service.Remind(r.Context(), settlementID)
	if err != nil {
		writeBusinessError(w, err)
		return
	}

	response.Success(w, result)
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(w, name+" must be a positive integer", err)
		return 0, false
	}
	return id, true
}

// writeBusinessError maps business error codes onto HTTP statuses and
// always carries the code in the body so clients never have to guess
// from message text.
func writeBusinessError(w http.ResponseWriter, err error) {
	var be *customError.BusinessError
	if !errors.As(err, &be) {
		response.InternalServerError(w, "internal error", err)
		return
	}

	switch be.Code {
	case customError.ErrCodeSettlementNotFound,
		customError.ErrCodePartyNotFound,
		customError.ErrCodeParticipantNotFound:
		response.ErrorWithCode(w, http.StatusNotFound, be.Code, be.Message, be.Err)
	case customError.ErrCodeSettlementAlreadyExists:
		response.Conflict(w, be.Code, be.Message, be.Err)
	case customError.ErrCodeRemindCooldown:
		response.TooManyRequests(w, be.Code, be.Message)
	case customError.ErrCodeNoCompanions,
		customError.ErrCodeNoHost,
		customError.ErrCodeInvalidFare,
		customError.ErrCodeAmountMismatch,
		customError.ErrCodeDuplicateParticipant,
		customError.ErrCodeSettlementAlreadySettled:
		response.ErrorWithCode(w, http.StatusBadRequest, be.Code, be.Message, be.Err)
	default:
		response.ErrorWithCode(w, http.StatusInternalServerError, be.Code, be.Message, be.Err)
	}
}
