/**
 * @description
 * Data access for customers. The repository runs on database/sql through the
 * pgx stdlib driver. Every write bumps the row version and flags the row as
 * publish-pending; MarkPublished clears the flag only for the version that was
 * actually delivered.
 *
 * @dependencies
 * - database/sql with github.com/jackc/pgx/v5/stdlib registered as "pgx".
 * - github.com/jackc/pgx/v5/pgconn: For classifying PostgreSQL errors.
 */
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Lgsalgado/banking-system-backend/customer-service/internal/domain"
	"github.com/jackc/pgx/v5/pgconn"
)

const customerColumns = `id, name, gender, identification, address, phone, password_hash, active, version, publish_pending, created_at, updated_at`

// CustomerRepository defines the customer storage operations needed by this service.
type CustomerRepository interface {
	CreateCustomer(ctx context.Context, customer *domain.Customer) error
	UpdateCustomer(ctx context.Context, customer *domain.Customer) error
	FindCustomerByID(ctx context.Context, id int64) (*domain.Customer, error)
	ListCustomers(ctx context.Context) ([]domain.Customer, error)
	DeleteCustomer(ctx context.Context, id int64) error
	MarkPublished(ctx context.Context, id, version int64) (bool, error)
	ListPublishPending(ctx context.Context, limit int) ([]domain.Customer, error)
}

// PostgresCustomerRepository is the PostgreSQL implementation of CustomerRepository.
type PostgresCustomerRepository struct {
	db *sql.DB
}

// NewPostgresCustomerRepository creates a new instance of PostgresCustomerRepository.
func NewPostgresCustomerRepository(db *sql.DB) *PostgresCustomerRepository {
	return &PostgresCustomerRepository{db: db}
}

// CreateCustomer inserts the customer as version 1 with a pending event and
// fills in the generated fields.
func (r *PostgresCustomerRepository) CreateCustomer(ctx context.Context, c *domain.Customer) error {
	query := `
		INSERT INTO customers (name, gender, identification, address, phone, password_hash, active, version, publish_pending)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 1, TRUE)
		RETURNING id, version, publish_pending, created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query, c.Name, c.Gender, c.Identification, c.Address, c.Phone, c.PasswordHash, c.Active).
		Scan(&c.ID, &c.Version, &c.PublishPending, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return classify(err, "create customer")
	}
	return nil
}

// UpdateCustomer overwrites the mutable fields, increments the version and
// flags the row for publishing.
func (r *PostgresCustomerRepository) UpdateCustomer(ctx context.Context, c *domain.Customer) error {
	query := `
		UPDATE customers
		SET name = $2, gender = $3, identification = $4, address = $5, phone = $6,
		    password_hash = $7, active = $8, version = version + 1, publish_pending = TRUE, updated_at = NOW()
		WHERE id = $1
		RETURNING version, publish_pending, created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query, c.ID, c.Name, c.Gender, c.Identification, c.Address, c.Phone, c.PasswordHash, c.Active).
		Scan(&c.Version, &c.PublishPending, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return classify(err, fmt.Sprintf("update customer %d", c.ID))
	}
	return nil
}

func (r *PostgresCustomerRepository) FindCustomerByID(ctx context.Context, id int64) (*domain.Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers WHERE id = $1`
	customer, err := scanCustomer(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, classify(err, fmt.Sprintf("find customer %d", id))
	}
	return customer, nil
}

func (r *PostgresCustomerRepository) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers ORDER BY id`
	return r.list(ctx, query)
}

// ListPublishPending returns the oldest customers whose last change has not
// been confirmed by the broker.
func (r *PostgresCustomerRepository) ListPublishPending(ctx context.Context, limit int) ([]domain.Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers WHERE publish_pending ORDER BY updated_at, id LIMIT $1`
	return r.list(ctx, query, limit)
}

func (r *PostgresCustomerRepository) DeleteCustomer(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete customer %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete customer %d: %w", id, err)
	}
	if affected == 0 {
		return domain.ErrCustomerNotFound
	}
	return nil
}

// MarkPublished clears the pending flag if the row is still at version. It
// reports false when a newer write is waiting for its own event.
func (r *PostgresCustomerRepository) MarkPublished(ctx context.Context, id, version int64) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE customers SET publish_pending = FALSE WHERE id = $1 AND version = $2`, id, version)
	if err != nil {
		return false, fmt.Errorf("mark customer %d published: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark customer %d published: %w", id, err)
	}
	return affected > 0, nil
}

func (r *PostgresCustomerRepository) list(ctx context.Context, query string, args ...any) ([]domain.Customer, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	defer rows.Close()

	var customers []domain.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		customers = append(customers, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	return customers, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCustomer(row rowScanner) (*domain.Customer, error) {
	var c domain.Customer
	var gender, address, phone sql.NullString
	err := row.Scan(&c.ID, &c.Name, &gender, &c.Identification, &address, &phone,
		&c.PasswordHash, &c.Active, &c.Version, &c.PublishPending, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.Gender = gender.String
	c.Address = address.String
	c.Phone = phone.String
	return &c, nil
}

func classify(err error, op string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrCustomerNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return domain.ErrDuplicateIdentification
	}
	return fmt.Errorf("%s: %w", op, err)
}
