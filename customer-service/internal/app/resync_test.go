package app

import (
	"context"
	"testing"

	"github.com/Lgsalgado/banking-system-backend/customer-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResyncJob_RunOnce(t *testing.T) {
	repo := newFakeRepo()
	pub := &recordingPublisher{failNext: 1}
	svc := newService(repo, pub)

	created, err := svc.CreateCustomer(context.Background(), joseInput())
	require.ErrorIs(t, err, domain.ErrDeliveryFailed)

	job := NewResyncJob(svc, "@every 1m", 50, testLogger())
	assert.Equal(t, 1, job.RunOnce(context.Background()))
	assert.False(t, repo.pending(created.ID))
	assert.Equal(t, 0, job.RunOnce(context.Background()))
}

func TestResyncJob_StartRejectsBadSchedule(t *testing.T) {
	job := NewResyncJob(newService(newFakeRepo(), &recordingPublisher{}), "not a schedule", 10, testLogger())
	assert.Error(t, job.Start())
}

func TestResyncJob_StartStop(t *testing.T) {
	job := NewResyncJob(newService(newFakeRepo(), &recordingPublisher{}), "@every 1h", 10, testLogger())
	require.NoError(t, job.Start())
	<-job.Stop().Done()
}
