/**
 * @description
 * HTTP handlers for the account-service. Handlers parse and validate requests,
 * call the application layer, and let httpx translate classified errors.
 */
package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Lgsalgado/banking-system-backend/account-service/internal/app"
	"github.com/Lgsalgado/banking-system-backend/account-service/internal/domain"
	"github.com/Lgsalgado/banking-system-backend/account-service/internal/store"
	"github.com/Lgsalgado/banking-system-backend/pkg/apperror"
	"github.com/Lgsalgado/banking-system-backend/pkg/httpx"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

var (
	errInvalidID   = apperror.New(apperror.KindValidation, "INVALID_ID", "id must be a positive integer")
	errInvalidDate = apperror.New(apperror.KindValidation, "INVALID_DATE", "dates must use the YYYY-MM-DD format")
)

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errInvalidID
	}
	return id, nil
}

// AccountHandler serves account CRUD.
type AccountHandler struct {
	service   *app.AccountService
	validator *httpx.Validator
	logger    *slog.Logger
}

// CreateAccountRequest is the body of POST /accounts.
type CreateAccountRequest struct {
	AccountNumber  string          `json:"accountNumber" validate:"required,max=32"`
	AccountType    string          `json:"accountType" validate:"required"`
	InitialBalance decimal.Decimal `json:"initialBalance"`
	Active         *bool           `json:"active"`
	CustomerID     int64           `json:"customerId" validate:"required,gt=0"`
}

// UpdateAccountRequest is the body of PUT /accounts/{id}.
type UpdateAccountRequest struct {
	AccountType string `json:"accountType" validate:"required"`
	Active      *bool  `json:"active" validate:"required"`
	CustomerID  int64  `json:"customerId" validate:"required,gt=0"`
}

func (h *AccountHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := h.validator.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	account, err := h.service.CreateAccount(r.Context(), app.CreateAccountInput{
		Number:         req.AccountNumber,
		Type:           req.AccountType,
		InitialBalance: req.InitialBalance,
		Active:         active,
		CustomerID:     req.CustomerID,
	})
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, account)
}

func (h *AccountHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.service.ListAccounts(r.Context())
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	if accounts == nil {
		accounts = []domain.Account{}
	}
	httpx.WriteJSON(w, http.StatusOK, accounts)
}

func (h *AccountHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	account, err := h.service.GetAccount(r.Context(), id)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, account)
}

func (h *AccountHandler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	var req UpdateAccountRequest
	if err := h.validator.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	account, err := h.service.UpdateAccount(r.Context(), id, app.UpdateAccountInput{
		Type:       req.AccountType,
		Active:     *req.Active,
		CustomerID: req.CustomerID,
	})
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, account)
}

func (h *AccountHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	if err := h.service.DeleteAccount(r.Context(), id); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MovementHandler serves movement creation.
type MovementHandler struct {
	engine    *app.LedgerEngine
	validator *httpx.Validator
	logger    *slog.Logger
}

// CreateMovementRequest is the body of POST /movements. The type and value are
// checked by the ledger engine so every caller gets the same errors.
type CreateMovementRequest struct {
	AccountNumber string          `json:"accountNumber" validate:"required"`
	MovementType  string          `json:"movementType"`
	Value         decimal.Decimal `json:"value"`
}

// MovementResponse is the created movement.
type MovementResponse struct {
	ID            int64               `json:"id"`
	AccountNumber string              `json:"accountNumber"`
	Timestamp     time.Time           `json:"timestamp"`
	MovementType  domain.MovementType `json:"movementType"`
	Value         decimal.Decimal     `json:"value"`
	Balance       decimal.Decimal     `json:"balance"`
}

func (h *MovementHandler) CreateMovement(w http.ResponseWriter, r *http.Request) {
	var req CreateMovementRequest
	if err := h.validator.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	movementType, err := domain.ParseMovementType(req.MovementType)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	movement, err := h.engine.ApplyMovement(r.Context(), req.AccountNumber, movementType, req.Value)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, MovementResponse{
		ID:            movement.ID,
		AccountNumber: req.AccountNumber,
		Timestamp:     movement.Timestamp,
		MovementType:  movement.Type,
		Value:         movement.Value,
		Balance:       movement.Balance,
	})
}

// ReportHandler serves account statements.
type ReportHandler struct {
	statements *app.StatementService
	logger     *slog.Logger
}

// GetStatement handles GET /reports?clientId=&startDate=&endDate=.
func (h *ReportHandler) GetStatement(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	customerID, err := strconv.ParseInt(query.Get("clientId"), 10, 64)
	if err != nil || customerID <= 0 {
		httpx.WriteError(w, h.logger, domain.ErrInvalidCustomerID)
		return
	}
	start, err := time.Parse(dateLayout, query.Get("startDate"))
	if err != nil {
		httpx.WriteError(w, h.logger, errInvalidDate)
		return
	}
	end, err := time.Parse(dateLayout, query.Get("endDate"))
	if err != nil {
		httpx.WriteError(w, h.logger, errInvalidDate)
		return
	}

	statement, err := h.statements.AccountStatement(r.Context(), customerID, start, end)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, statement)
}

// CustomerHandler exposes the local customer projection.
type CustomerHandler struct {
	projections store.ProjectionRepository
	logger      *slog.Logger
}

func (h *CustomerHandler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	projection, err := h.projections.FindProjection(r.Context(), id)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, projection)
}
