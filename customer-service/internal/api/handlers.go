package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Lgsalgado/banking-system-backend/customer-service/internal/app"
	"github.com/Lgsalgado/banking-system-backend/customer-service/internal/domain"
	"github.com/Lgsalgado/banking-system-backend/pkg/apperror"
	"github.com/Lgsalgado/banking-system-backend/pkg/httpx"
	"github.com/go-chi/chi/v5"
)

var errInvalidID = apperror.New(apperror.KindValidation, "INVALID_ID", "id must be a positive integer")

// CustomerHandler serves customer CRUD.
type CustomerHandler struct {
	service   *app.CustomerService
	validator *httpx.Validator
	logger    *slog.Logger
}

// CustomerRequest is the body of POST and PUT /customers. Password is
// optional on PUT. bcrypt only reads the first 72 bytes, so longer values are rejected.
type CustomerRequest struct {
	Name           string `json:"name" validate:"required,max=120"`
	Gender         string `json:"gender" validate:"max=20"`
	Identification string `json:"identification" validate:"required,max=20"`
	Address        string `json:"address" validate:"max=200"`
	Phone          string `json:"phone" validate:"max=20"`
	Password       string `json:"password" validate:"max=72"`
	Active         *bool  `json:"active"`
}

// CustomerResponse is a customer plus a warning when its change event is still pending.
type CustomerResponse struct {
	domain.Customer
	Warning string `json:"warning,omitempty"`
}

func (req CustomerRequest) input() app.CustomerInput {
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	return app.CustomerInput{
		Name:           req.Name,
		Gender:         req.Gender,
		Identification: req.Identification,
		Address:        req.Address,
		Phone:          req.Phone,
		Password:       req.Password,
		Active:         active,
	}
}

func (h *CustomerHandler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req CustomerRequest
	if err := h.validator.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	customer, err := h.service.CreateCustomer(r.Context(), req.input())
	h.writeSaved(w, http.StatusCreated, customer, err)
}

func (h *CustomerHandler) UpdateCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	var req CustomerRequest
	if err := h.validator.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	customer, err := h.service.UpdateCustomer(r.Context(), id, req.input())
	h.writeSaved(w, http.StatusOK, customer, err)
}

// writeSaved answers a committed write. A pending event downgrades the status
// to 202 and adds a warning; any other error is written as usual.
func (h *CustomerHandler) writeSaved(w http.ResponseWriter, status int, customer *domain.Customer, err error) {
	if err != nil && !(customer != nil && errors.Is(err, domain.ErrDeliveryFailed)) {
		httpx.WriteError(w, h.logger, err)
		return
	}
	resp := CustomerResponse{Customer: *customer}
	if err != nil {
		status = httpx.StatusFor(apperror.KindDelivery)
		resp.Warning = domain.ErrDeliveryFailed.Message
	}
	httpx.WriteJSON(w, status, resp)
}

func (h *CustomerHandler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := h.service.ListCustomers(r.Context())
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	if customers == nil {
		customers = []domain.Customer{}
	}
	httpx.WriteJSON(w, http.StatusOK, customers)
}

func (h *CustomerHandler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	customer, err := h.service.GetCustomer(r.Context(), id)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, customer)
}

func (h *CustomerHandler) DeleteCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	if err := h.service.DeleteCustomer(r.Context(), id); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errInvalidID
	}
	return id, nil
}
