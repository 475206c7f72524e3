package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/Lgsalgado/banking-system-backend/customer-service/internal/domain"
	"github.com/Lgsalgado/banking-system-backend/pkg/apperror"
	"github.com/Lgsalgado/banking-system-backend/pkg/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeCustomerRepo keeps customers in memory with the same version and
// publish-pending rules as the Postgres repository.
type fakeCustomerRepo struct {
	mu        sync.Mutex
	nextID    int64
	rows      map[int64]domain.Customer
	commits   []string
	extraList []domain.Customer
	markErr   error
}

func newFakeRepo() *fakeCustomerRepo {
	return &fakeCustomerRepo{rows: make(map[int64]domain.Customer)}
}

func (r *fakeCustomerRepo) CreateCustomer(ctx context.Context, c *domain.Customer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.rows {
		if existing.Identification == c.Identification {
			return domain.ErrDuplicateIdentification
		}
	}
	r.nextID++
	c.ID = r.nextID
	c.Version = 1
	c.PublishPending = true
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	r.rows[c.ID] = *c
	r.commits = append(r.commits, c.Name)
	return nil
}

func (r *fakeCustomerRepo) UpdateCustomer(ctx context.Context, c *domain.Customer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.rows[c.ID]
	if !ok {
		return domain.ErrCustomerNotFound
	}
	c.Version = current.Version + 1
	c.PublishPending = true
	c.UpdatedAt = time.Now()
	r.rows[c.ID] = *c
	r.commits = append(r.commits, c.Name)
	return nil
}

func (r *fakeCustomerRepo) FindCustomerByID(ctx context.Context, id int64) (*domain.Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.rows[id]
	if !ok {
		return nil, domain.ErrCustomerNotFound
	}
	return &c, nil
}

func (r *fakeCustomerRepo) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Customer
	for _, c := range r.rows {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeCustomerRepo) DeleteCustomer(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[id]; !ok {
		return domain.ErrCustomerNotFound
	}
	delete(r.rows, id)
	return nil
}

func (r *fakeCustomerRepo) MarkPublished(ctx context.Context, id, version int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.markErr != nil {
		return false, r.markErr
	}
	c, ok := r.rows[id]
	if !ok || c.Version != version {
		return false, nil
	}
	c.PublishPending = false
	r.rows[id] = c
	return true, nil
}

func (r *fakeCustomerRepo) ListPublishPending(ctx context.Context, limit int) ([]domain.Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := append([]domain.Customer(nil), r.extraList...)
	for _, c := range r.rows {
		if c.PublishPending {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeCustomerRepo) pending(id int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rows[id].PublishPending
}

type published struct {
	exchange   string
	routingKey string
	event      events.CustomerChanged
}

// recordingPublisher records confirmed events. failNext makes the next n publishes fail.
type recordingPublisher struct {
	mu       sync.Mutex
	sent     []published
	failNext int
}

func (p *recordingPublisher) Publish(ctx context.Context, exchange, routingKey string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failNext > 0 {
		p.failNext--
		return errors.New("broker nacked message")
	}
	event, ok := payload.(events.CustomerChanged)
	if !ok {
		return fmt.Errorf("unexpected payload %T", payload)
	}
	p.sent = append(p.sent, published{exchange: exchange, routingKey: routingKey, event: event})
	return nil
}

func (p *recordingPublisher) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	names := make([]string, 0, len(p.sent))
	for _, s := range p.sent {
		names = append(names, s.event.Name)
	}
	return names
}

func newService(repo *fakeCustomerRepo, pub *recordingPublisher) *CustomerService {
	return NewCustomerService(repo, pub, WithLogger(testLogger()), WithPublishTimeout(time.Second))
}

func joseInput() CustomerInput {
	return CustomerInput{
		Name:           "Jose Lema",
		Gender:         "M",
		Identification: "1712345678",
		Address:        "Otavalo sn y principal",
		Phone:          "098254785",
		Password:       "1234",
		Active:         true,
	}
}

func TestCreateCustomer_PublishesAfterCommit(t *testing.T) {
	repo := newFakeRepo()
	pub := &recordingPublisher{}
	svc := newService(repo, pub)

	customer, err := svc.CreateCustomer(context.Background(), joseInput())
	require.NoError(t, err)

	require.Len(t, pub.sent, 1)
	assert.Equal(t, events.CustomerExchange, pub.sent[0].exchange)
	assert.Equal(t, events.CustomerChangedRoutingKey, pub.sent[0].routingKey)
	assert.Equal(t, events.CustomerChanged{CustomerID: customer.ID, Name: "Jose Lema"}, pub.sent[0].event)

	assert.False(t, customer.PublishPending)
	assert.False(t, repo.pending(customer.ID))
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(customer.PasswordHash), []byte("1234")))
}

func TestCreateCustomer_DeliveryFailureKeepsWrite(t *testing.T) {
	repo := newFakeRepo()
	pub := &recordingPublisher{failNext: 1}
	svc := newService(repo, pub)

	customer, err := svc.CreateCustomer(context.Background(), joseInput())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDeliveryFailed)
	assert.Equal(t, apperror.KindDelivery, apperror.KindOf(err))

	require.NotNil(t, customer)
	stored, findErr := repo.FindCustomerByID(context.Background(), customer.ID)
	require.NoError(t, findErr)
	assert.Equal(t, "Jose Lema", stored.Name)
	assert.True(t, stored.PublishPending)
	assert.Empty(t, pub.sent)
}

func TestCreateCustomer_Validation(t *testing.T) {
	repo := newFakeRepo()
	pub := &recordingPublisher{}
	svc := newService(repo, pub)

	in := joseInput()
	in.Name = "   "
	_, err := svc.CreateCustomer(context.Background(), in)
	assert.ErrorIs(t, err, domain.ErrNameRequired)

	in = joseInput()
	in.Password = ""
	_, err = svc.CreateCustomer(context.Background(), in)
	assert.ErrorIs(t, err, domain.ErrPasswordRequired)

	_, err = svc.CreateCustomer(context.Background(), joseInput())
	require.NoError(t, err)
	_, err = svc.CreateCustomer(context.Background(), joseInput())
	assert.ErrorIs(t, err, domain.ErrDuplicateIdentification)

	assert.Len(t, pub.sent, 1)
}

func TestUpdateCustomer(t *testing.T) {
	repo := newFakeRepo()
	pub := &recordingPublisher{}
	svc := newService(repo, pub)
	ctx := context.Background()

	created, err := svc.CreateCustomer(ctx, joseInput())
	require.NoError(t, err)

	in := joseInput()
	in.Name = "Jose Lema Jr"
	in.Password = ""
	updated, err := svc.UpdateCustomer(ctx, created.ID, in)
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.Version)
	assert.Equal(t, created.PasswordHash, updated.PasswordHash)
	assert.Equal(t, []string{"Jose Lema", "Jose Lema Jr"}, pub.names())

	_, err = svc.UpdateCustomer(ctx, 99, in)
	assert.ErrorIs(t, err, domain.ErrCustomerNotFound)
}

func TestUpdateCustomer_EventsFollowCommitOrder(t *testing.T) {
	repo := newFakeRepo()
	pub := &recordingPublisher{}
	svc := newService(repo, pub)
	ctx := context.Background()

	created, err := svc.CreateCustomer(ctx, joseInput())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			in := joseInput()
			in.Name = fmt.Sprintf("Jose Lema %d", n)
			in.Password = ""
			_, err := svc.UpdateCustomer(ctx, created.ID, in)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	repo.mu.Lock()
	commits := append([]string(nil), repo.commits...)
	repo.mu.Unlock()

	assert.Equal(t, commits, pub.names())
	assert.False(t, repo.pending(created.ID))
}

func TestUpdateCustomer_OlderPublishDoesNotClearNewerWrite(t *testing.T) {
	repo := newFakeRepo()
	pub := &recordingPublisher{}
	svc := newService(repo, pub)
	ctx := context.Background()

	created, err := svc.CreateCustomer(ctx, joseInput())
	require.NoError(t, err)

	stale := *created
	in := joseInput()
	in.Name = "Renamed"
	pub.failNext = 1
	_, err = svc.UpdateCustomer(ctx, created.ID, in)
	require.ErrorIs(t, err, domain.ErrDeliveryFailed)

	cleared, err := repo.MarkPublished(ctx, stale.ID, stale.Version)
	require.NoError(t, err)
	assert.False(t, cleared)
	assert.True(t, repo.pending(created.ID))
}

func TestDeleteCustomer_DoesNotPublish(t *testing.T) {
	repo := newFakeRepo()
	pub := &recordingPublisher{}
	svc := newService(repo, pub)
	ctx := context.Background()

	created, err := svc.CreateCustomer(ctx, joseInput())
	require.NoError(t, err)

	require.NoError(t, svc.DeleteCustomer(ctx, created.ID))
	assert.ErrorIs(t, svc.DeleteCustomer(ctx, created.ID), domain.ErrCustomerNotFound)
	assert.Len(t, pub.sent, 1)
}

func TestMarkPublishedFailureStillReportsSuccess(t *testing.T) {
	repo := newFakeRepo()
	repo.markErr = errors.New("connection reset")
	pub := &recordingPublisher{}
	svc := newService(repo, pub)

	customer, err := svc.CreateCustomer(context.Background(), joseInput())
	require.NoError(t, err)
	assert.True(t, customer.PublishPending)
	assert.Len(t, pub.sent, 1)
}

func TestRepublishPending(t *testing.T) {
	repo := newFakeRepo()
	pub := &recordingPublisher{failNext: 2}
	svc := newService(repo, pub)
	ctx := context.Background()

	first, err := svc.CreateCustomer(ctx, joseInput())
	require.ErrorIs(t, err, domain.ErrDeliveryFailed)
	in := joseInput()
	in.Name = "Marianela Montalvo"
	in.Identification = "0102030405"
	second, err := svc.CreateCustomer(ctx, in)
	require.ErrorIs(t, err, domain.ErrDeliveryFailed)

	count, err := svc.RepublishPending(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.False(t, repo.pending(first.ID))
	assert.False(t, repo.pending(second.ID))
	assert.Equal(t, []string{"Jose Lema", "Marianela Montalvo"}, pub.names())

	count, err = svc.RepublishPending(ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestRepublishPending_RereadsUnderLock(t *testing.T) {
	repo := newFakeRepo()
	pub := &recordingPublisher{}
	svc := newService(repo, pub)
	ctx := context.Background()

	created, err := svc.CreateCustomer(ctx, joseInput())
	require.NoError(t, err)

	stale := *created
	stale.Name = "Stale Name"
	stale.PublishPending = true
	repo.extraList = []domain.Customer{stale, {ID: 404, Name: "Gone", PublishPending: true}}

	count, err := svc.RepublishPending(ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Equal(t, []string{"Jose Lema"}, pub.names())
}

func TestRepublishPending_ReportsFailures(t *testing.T) {
	repo := newFakeRepo()
	pub := &recordingPublisher{failNext: 2}
	svc := newService(repo, pub)
	ctx := context.Background()

	_, err := svc.CreateCustomer(ctx, joseInput())
	require.ErrorIs(t, err, domain.ErrDeliveryFailed)

	count, err := svc.RepublishPending(ctx, 10)
	assert.Zero(t, count)
	assert.ErrorIs(t, err, domain.ErrDeliveryFailed)
}
