package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/Lgsalgado/banking-system-backend/customer-service/internal/domain"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var columns = []string{"id", "name", "gender", "identification", "address", "phone", "password_hash", "active", "version", "publish_pending", "created_at", "updated_at"}

func newMockRepo(t *testing.T) (*PostgresCustomerRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return NewPostgresCustomerRepository(db), mock
}

func joseLema() *domain.Customer {
	return &domain.Customer{
		Name:           "Jose Lema",
		Gender:         "M",
		Identification: "1712345678",
		Address:        "Otavalo sn y principal",
		Phone:          "098254785",
		PasswordHash:   "hash",
		Active:         true,
	}
}

func TestCreateCustomer(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Date(2024, 2, 10, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery("INSERT INTO customers").
		WithArgs("Jose Lema", "M", "1712345678", "Otavalo sn y principal", "098254785", "hash", true).
		WillReturnRows(sqlmock.NewRows([]string{"id", "version", "publish_pending", "created_at", "updated_at"}).
			AddRow(int64(1), int64(1), true, now, now))

	c := joseLema()
	require.NoError(t, repo.CreateCustomer(context.Background(), c))
	assert.Equal(t, int64(1), c.ID)
	assert.Equal(t, int64(1), c.Version)
	assert.True(t, c.PublishPending)
	assert.Equal(t, now, c.CreatedAt)
}

func TestCreateCustomer_DuplicateIdentification(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("INSERT INTO customers").
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"})

	err := repo.CreateCustomer(context.Background(), joseLema())
	assert.ErrorIs(t, err, domain.ErrDuplicateIdentification)
}

func TestUpdateCustomer(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()

	c := joseLema()
	c.ID = 1
	c.Name = "Jose Lema Jr"

	mock.ExpectQuery("UPDATE customers").
		WithArgs(int64(1), "Jose Lema Jr", "M", "1712345678", "Otavalo sn y principal", "098254785", "hash", true).
		WillReturnRows(sqlmock.NewRows([]string{"version", "publish_pending", "created_at", "updated_at"}).
			AddRow(int64(4), true, now, now))

	require.NoError(t, repo.UpdateCustomer(context.Background(), c))
	assert.Equal(t, int64(4), c.Version)
	assert.True(t, c.PublishPending)
}

func TestUpdateCustomer_NotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("UPDATE customers").
		WillReturnRows(sqlmock.NewRows([]string{"version", "publish_pending", "created_at", "updated_at"}))

	c := joseLema()
	c.ID = 42
	assert.ErrorIs(t, repo.UpdateCustomer(context.Background(), c), domain.ErrCustomerNotFound)
}

func TestFindCustomerByID(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT (.+) FROM customers WHERE id = \\$1").
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow(int64(2), "Marianela Montalvo", nil, "0102030405", nil, "097548965", "hash", true, int64(2), false, now, now))

	c, err := repo.FindCustomerByID(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, "Marianela Montalvo", c.Name)
	assert.Empty(t, c.Gender)
	assert.Empty(t, c.Address)
	assert.Equal(t, "097548965", c.Phone)
	assert.False(t, c.PublishPending)
}

func TestFindCustomerByID_NotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("SELECT (.+) FROM customers WHERE id = \\$1").
		WithArgs(int64(9)).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindCustomerByID(context.Background(), 9)
	assert.ErrorIs(t, err, domain.ErrCustomerNotFound)
}

func TestFindCustomerByID_WrapsDriverErrors(t *testing.T) {
	repo, mock := newMockRepo(t)
	boom := errors.New("connection reset")

	mock.ExpectQuery("SELECT (.+) FROM customers WHERE id = \\$1").WillReturnError(boom)

	_, err := repo.FindCustomerByID(context.Background(), 3)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, domain.ErrCustomerNotFound)
}

func TestListPublishPending(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT (.+) FROM customers WHERE publish_pending ORDER BY updated_at, id LIMIT \\$1").
		WithArgs(2).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow(int64(1), "Jose Lema", "M", "1712345678", "Otavalo", "098254785", "hash", true, int64(3), true, now, now).
			AddRow(int64(7), "Old", nil, "0707070707", nil, nil, "hash", true, int64(1), true, now, now))

	customers, err := repo.ListPublishPending(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, customers, 2)
	assert.Equal(t, int64(3), customers[0].Version)
	assert.Equal(t, "Old", customers[1].Name)
}

func TestDeleteCustomer(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("DELETE FROM customers WHERE id = \\$1").WithArgs(int64(1)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM customers WHERE id = \\$1").WithArgs(int64(9)).WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, repo.DeleteCustomer(context.Background(), 1))
	assert.ErrorIs(t, repo.DeleteCustomer(context.Background(), 9), domain.ErrCustomerNotFound)
}

func TestMarkPublished(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("UPDATE customers SET publish_pending = FALSE WHERE id = \\$1 AND version = \\$2").
		WithArgs(int64(1), int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE customers SET publish_pending = FALSE WHERE id = \\$1 AND version = \\$2").
		WithArgs(int64(1), int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	cleared, err := repo.MarkPublished(context.Background(), 1, 3)
	require.NoError(t, err)
	assert.True(t, cleared)

	cleared, err = repo.MarkPublished(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.False(t, cleared, "an older version must not clear a newer pending write")
}

func TestEnsureSchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS customers").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS idx_customers_publish_pending").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, EnsureSchema(context.Background(), db))
	assert.NoError(t, mock.ExpectationsWereMet())
}
