/**
 * @description
 * The projection synchronizer keeps the local customer read-model in step with
 * customer.changed events published by the customer-service.
 *
 * @notes
 * - Apply is an idempotent upsert by customer id: the last applied event wins.
 *   Events carry no version, so a stale redelivery that arrives after a newer
 *   update will overwrite it. That regression is accepted; the next update for
 *   the customer converges the projection again.
 * - Writes for one customer id are serialised; different ids proceed in parallel.
 * - A delivery is acknowledged only after its write commits. Malformed payloads
 *   are discarded and reported, store failures are requeued.
 */
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/Lgsalgado/banking-system-backend/account-service/internal/domain"
	"github.com/Lgsalgado/banking-system-backend/account-service/internal/store"
	"github.com/Lgsalgado/banking-system-backend/pkg/apperror"
	"github.com/Lgsalgado/banking-system-backend/pkg/events"
	"github.com/Lgsalgado/banking-system-backend/pkg/keylock"
	"github.com/Lgsalgado/banking-system-backend/pkg/rabbitmq"
)

// Outcome is the result of applying one event.
type Outcome int

const (
	OutcomeApplied Outcome = iota + 1
	OutcomeDuplicateIgnored
)

func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeDuplicateIgnored:
		return "duplicate_ignored"
	}
	return "unknown"
}

const deliveryTimeout = 30 * time.Second

// ProjectionSynchronizer applies customer events to the projection store.
type ProjectionSynchronizer struct {
	repo   store.ProjectionRepository
	locks  *keylock.Locker
	now    Clock
	logger *slog.Logger
}

// NewProjectionSynchronizer creates a synchronizer. A nil clock uses time.Now.
func NewProjectionSynchronizer(repo store.ProjectionRepository, clock Clock, logger *slog.Logger) *ProjectionSynchronizer {
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &ProjectionSynchronizer{
		repo:   repo,
		locks:  keylock.New(),
		now:    clock,
		logger: logger.With("component", "projection_synchronizer"),
	}
}

// OnEvent upserts the projection for event.CustomerID. It reports
// OutcomeDuplicateIgnored when the stored projection already matches.
func (s *ProjectionSynchronizer) OnEvent(ctx context.Context, event events.CustomerChanged) (Outcome, error) {
	if err := validateCustomerEvent(event); err != nil {
		return 0, err
	}

	unlock, err := s.locks.Lock(ctx, strconv.FormatInt(event.CustomerID, 10))
	if err != nil {
		return 0, fmt.Errorf("wait for projection %d: %w", event.CustomerID, err)
	}
	defer unlock()

	current, err := s.repo.FindProjection(ctx, event.CustomerID)
	switch {
	case err == nil:
		if current.Name == event.Name {
			return OutcomeDuplicateIgnored, nil
		}
	case errors.Is(err, domain.ErrProjectionNotFound):
	default:
		return 0, fmt.Errorf("read projection %d: %w", event.CustomerID, err)
	}

	projection := domain.CustomerProjection{
		CustomerID: event.CustomerID,
		Name:       event.Name,
		UpdatedAt:  s.now().UTC(),
	}
	if err := s.repo.UpsertProjection(ctx, projection); err != nil {
		return 0, err
	}
	return OutcomeApplied, nil
}

func validateCustomerEvent(event events.CustomerChanged) error {
	if event.CustomerID <= 0 {
		return fmt.Errorf("%w: customerId must be a positive integer, got %d", domain.ErrMalformedEvent, event.CustomerID)
	}
	if strings.TrimSpace(event.Name) == "" {
		return fmt.Errorf("%w: name is required for customer %d", domain.ErrMalformedEvent, event.CustomerID)
	}
	return nil
}

// HandleDelivery decodes a customer.changed message and decides its acknowledgment.
func (s *ProjectionSynchronizer) HandleDelivery(body []byte) rabbitmq.Decision {
	var event events.CustomerChanged
	if err := json.Unmarshal(body, &event); err != nil {
		s.logger.Error("discarding undecodable customer event", "error", err, "body", truncate(body, 256))
		return rabbitmq.Discard
	}

	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()

	outcome, err := s.OnEvent(ctx, event)
	if err != nil {
		if apperror.KindOf(err) == apperror.KindValidation {
			s.logger.Error("discarding malformed customer event", "error", err, "body", truncate(body, 256))
			return rabbitmq.Discard
		}
		s.logger.Warn("projection write failed; requeueing", "customer_id", event.CustomerID, "error", err)
		return rabbitmq.Requeue
	}

	s.logger.Info("customer event processed", "customer_id", event.CustomerID, "outcome", outcome.String())
	return rabbitmq.Ack
}

func truncate(body []byte, max int) string {
	if len(body) <= max {
		return string(body)
	}
	return string(body[:max]) + "..."
}
