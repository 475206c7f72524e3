/**
 * @description
 * Customer management for the customer-service. Every create or update is
 * committed first and then announced on the customer events exchange. A failed
 * announcement never rolls the write back: the row stays publish-pending and
 * the caller gets the saved customer plus ErrDeliveryFailed.
 *
 * @notes
 * - Update, publish and mark run under a per-customer lock so events for one
 *   customer leave this process in commit order.
 * - Deleting a customer does not publish; the account projections are kept.
 */
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/Lgsalgado/banking-system-backend/customer-service/internal/domain"
	"github.com/Lgsalgado/banking-system-backend/customer-service/internal/store"
	"github.com/Lgsalgado/banking-system-backend/pkg/events"
	"github.com/Lgsalgado/banking-system-backend/pkg/keylock"
	"golang.org/x/crypto/bcrypt"
)

const DefaultPublishTimeout = 5 * time.Second

// EventPublisher sends a message to an exchange and waits for the broker to accept it.
type EventPublisher interface {
	Publish(ctx context.Context, exchange, routingKey string, payload interface{}) error
}

// CustomerService owns customer writes and their change events.
type CustomerService struct {
	repo           store.CustomerRepository
	publisher      EventPublisher
	exchange       string
	routingKey     string
	publishTimeout time.Duration
	locks          *keylock.Locker
	logger         *slog.Logger
}

// Option configures a CustomerService.
type Option func(*CustomerService)

// WithRouting overrides the exchange and routing key used for change events.
func WithRouting(exchange, routingKey string) Option {
	return func(s *CustomerService) {
		s.exchange = exchange
		s.routingKey = routingKey
	}
}

// WithPublishTimeout bounds how long a single publish may wait for a confirm.
func WithPublishTimeout(d time.Duration) Option {
	return func(s *CustomerService) {
		if d > 0 {
			s.publishTimeout = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *CustomerService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewCustomerService creates a new instance of CustomerService.
func NewCustomerService(repo store.CustomerRepository, publisher EventPublisher, opts ...Option) *CustomerService {
	s := &CustomerService{
		repo:           repo,
		publisher:      publisher,
		exchange:       events.CustomerExchange,
		routingKey:     events.CustomerChangedRoutingKey,
		publishTimeout: DefaultPublishTimeout,
		locks:          keylock.New(),
		logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "customer_service")
	return s
}

// CustomerInput carries the writable customer fields. Password is required on
// create; on update an empty password keeps the current hash.
type CustomerInput struct {
	Name           string
	Gender         string
	Identification string
	Address        string
	Phone          string
	Password       string
	Active         bool
}

func (s *CustomerService) CreateCustomer(ctx context.Context, in CustomerInput) (*domain.Customer, error) {
	if in.Password == "" {
		return nil, domain.ErrPasswordRequired
	}
	customer := &domain.Customer{
		Name:           in.Name,
		Gender:         in.Gender,
		Identification: in.Identification,
		Address:        in.Address,
		Phone:          in.Phone,
		Active:         in.Active,
	}
	if err := customer.Normalize(); err != nil {
		return nil, err
	}
	hash, err := hashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	customer.PasswordHash = hash

	if err := s.repo.CreateCustomer(ctx, customer); err != nil {
		return nil, err
	}
	s.logger.Info("customer created", "customer_id", customer.ID)

	unlock, err := s.locks.Lock(ctx, lockKey(customer.ID))
	if err != nil {
		return customer, fmt.Errorf("%w: customer %d: %v", domain.ErrDeliveryFailed, customer.ID, err)
	}
	defer unlock()

	return customer, s.announce(ctx, customer)
}

func (s *CustomerService) UpdateCustomer(ctx context.Context, id int64, in CustomerInput) (*domain.Customer, error) {
	unlock, err := s.locks.Lock(ctx, lockKey(id))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCustomerBusy, err)
	}
	defer unlock()

	customer, err := s.repo.FindCustomerByID(ctx, id)
	if err != nil {
		return nil, err
	}
	customer.Name = in.Name
	customer.Gender = in.Gender
	customer.Identification = in.Identification
	customer.Address = in.Address
	customer.Phone = in.Phone
	customer.Active = in.Active
	if err := customer.Normalize(); err != nil {
		return nil, err
	}
	if in.Password != "" {
		hash, err := hashPassword(in.Password)
		if err != nil {
			return nil, err
		}
		customer.PasswordHash = hash
	}

	if err := s.repo.UpdateCustomer(ctx, customer); err != nil {
		return nil, err
	}
	s.logger.Info("customer updated", "customer_id", customer.ID, "version", customer.Version)

	return customer, s.announce(ctx, customer)
}

func (s *CustomerService) GetCustomer(ctx context.Context, id int64) (*domain.Customer, error) {
	return s.repo.FindCustomerByID(ctx, id)
}

func (s *CustomerService) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	return s.repo.ListCustomers(ctx)
}

func (s *CustomerService) DeleteCustomer(ctx context.Context, id int64) error {
	unlock, err := s.locks.Lock(ctx, lockKey(id))
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrCustomerBusy, err)
	}
	defer unlock()

	if err := s.repo.DeleteCustomer(ctx, id); err != nil {
		return err
	}
	s.logger.Info("customer deleted", "customer_id", id)
	return nil
}

// RepublishPending re-announces up to limit customers whose last change was
// never confirmed. Each row is re-read under its lock so a newer write that
// already published is not overtaken by stale data. It returns how many
// events were confirmed.
func (s *CustomerService) RepublishPending(ctx context.Context, limit int) (int, error) {
	pending, err := s.repo.ListPublishPending(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("list pending customers: %w", err)
	}

	published := 0
	var failures []error
	for _, candidate := range pending {
		if ctx.Err() != nil {
			return published, ctx.Err()
		}
		ok, err := s.republish(ctx, candidate.ID)
		if err != nil {
			failures = append(failures, err)
			continue
		}
		if ok {
			published++
		}
	}
	return published, errors.Join(failures...)
}

func (s *CustomerService) republish(ctx context.Context, id int64) (bool, error) {
	unlock, err := s.locks.Lock(ctx, lockKey(id))
	if err != nil {
		return false, err
	}
	defer unlock()

	current, err := s.repo.FindCustomerByID(ctx, id)
	if errors.Is(err, domain.ErrCustomerNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !current.PublishPending {
		return false, nil
	}
	if err := s.announce(ctx, current); err != nil {
		return false, err
	}
	return true, nil
}

// announce publishes the change event for c and clears its pending flag. The
// caller must hold the customer's lock.
func (s *CustomerService) announce(ctx context.Context, c *domain.Customer) error {
	publishCtx, cancel := context.WithTimeout(ctx, s.publishTimeout)
	defer cancel()

	event := events.CustomerChanged{CustomerID: c.ID, Name: c.Name}
	if err := s.publisher.Publish(publishCtx, s.exchange, s.routingKey, event); err != nil {
		s.logger.Warn("customer change not delivered, left pending",
			"customer_id", c.ID, "version", c.Version, "error", err)
		return fmt.Errorf("%w: customer %d: %v", domain.ErrDeliveryFailed, c.ID, err)
	}

	cleared, err := s.repo.MarkPublished(ctx, c.ID, c.Version)
	if err != nil {
		// The event is out; the flag stays set and the resync job sends it again.
		s.logger.Warn("failed to clear publish flag", "customer_id", c.ID, "version", c.Version, "error", err)
		return nil
	}
	if cleared {
		c.PublishPending = false
	}
	s.logger.Debug("customer change published", "customer_id", c.ID, "version", c.Version)
	return nil
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func lockKey(id int64) string {
	return strconv.FormatInt(id, 10)
}
