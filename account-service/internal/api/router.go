/**
 * @description
 * HTTP router for the account-service using chi. Registers account CRUD,
 * movement application, statements and the read-only customer projection.
 *
 * @dependencies
 * - github.com/go-chi/chi/v5: The routing library.
 * - github.com/go-chi/cors: CORS handling.
 */
package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Lgsalgado/banking-system-backend/account-service/internal/app"
	"github.com/Lgsalgado/banking-system-backend/account-service/internal/store"
	"github.com/Lgsalgado/banking-system-backend/pkg/httpx"
	"github.com/Lgsalgado/banking-system-backend/pkg/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Dependencies are the collaborators the HTTP layer calls into.
type Dependencies struct {
	Accounts       *app.AccountService
	Ledger         *app.LedgerEngine
	Statements     *app.StatementService
	Projections    store.ProjectionRepository
	RateLimiter    middleware.Limiter
	AllowedOrigins []string
	Logger         *slog.Logger
}

// NewRouter creates and configures the HTTP router.
func NewRouter(deps Dependencies) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	validator := httpx.NewValidator()

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: deps.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"Retry-After"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	accountHandler := &AccountHandler{service: deps.Accounts, validator: validator, logger: logger}
	movementHandler := &MovementHandler{engine: deps.Ledger, validator: validator, logger: logger}
	reportHandler := &ReportHandler{statements: deps.Statements, logger: logger}
	customerHandler := &CustomerHandler{projections: deps.Projections, logger: logger}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/accounts", func(r chi.Router) {
			r.Get("/", accountHandler.ListAccounts)
			r.Post("/", accountHandler.CreateAccount)
			r.Get("/{id}", accountHandler.GetAccount)
			r.Put("/{id}", accountHandler.UpdateAccount)
			r.Delete("/{id}", accountHandler.DeleteAccount)
		})

		r.With(middleware.RateLimit(deps.RateLimiter, "movements", accountNumberFromBody, logger)).
			Post("/movements", movementHandler.CreateMovement)

		r.Get("/reports", reportHandler.GetStatement)
		r.Get("/customers/{id}", customerHandler.GetCustomer)
	})

	return r
}

// accountNumberFromBody peeks at the movement body so limits apply per account.
func accountNumberFromBody(r *http.Request) string {
	if r.Body == nil {
		return ""
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return ""
	}
	r.Body = io.NopCloser(bytes.NewReader(raw))

	var probe struct {
		AccountNumber string `json:"accountNumber"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return ""
	}
	return strings.TrimSpace(probe.AccountNumber)
}
