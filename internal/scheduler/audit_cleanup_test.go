package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEnqueuer struct {
	mu   sync.Mutex
	days []int
	err  error
}

func (f *fakeEnqueuer) EnqueueAuditCleanup(retentionDays int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.days = append(f.days, retentionDays)
	return "task-1", nil
}

type fakeAuditor struct {
	mu     sync.Mutex
	events []error
}

func (f *fakeAuditor) LogMaintenance(_, _ string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, err)
}

func TestValidateSchedule(t *testing.T) {
	assert.NoError(t, ValidateSchedule("0 3 * * *"))
	assert.NoError(t, ValidateSchedule("*/5 * * * *"))
	assert.Error(t, ValidateSchedule("0 0 3 * * *"), "seconds field is not accepted")
	assert.Error(t, ValidateSchedule("nonsense"))
}

func TestAuditCleanupScheduler_StartStop(t *testing.T) {
	s := NewAuditCleanupScheduler(&fakeEnqueuer{}, nil, "", 30, nil)

	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsRunning())
	require.NotNil(t, s.NextRun())
	assert.True(t, s.NextRun().After(time.Now()))

	// starting twice is a no-op
	require.NoError(t, s.Start(context.Background()))

	s.Stop()
	assert.False(t, s.IsRunning())
	assert.Nil(t, s.NextRun())
	s.Stop()
}

func TestAuditCleanupScheduler_StopsOnContextCancel(t *testing.T) {
	s := NewAuditCleanupScheduler(&fakeEnqueuer{}, nil, "0 3 * * *", 30, nil)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx))
	cancel()

	assert.Eventually(t, func() bool { return !s.IsRunning() }, time.Second, 10*time.Millisecond)
}

func TestAuditCleanupScheduler_InvalidSchedule(t *testing.T) {
	s := NewAuditCleanupScheduler(&fakeEnqueuer{}, nil, "every day", 30, nil)
	assert.Error(t, s.Start(context.Background()))
	assert.False(t, s.IsRunning())
}

func TestAuditCleanupScheduler_RunNow(t *testing.T) {
	enqueuer := &fakeEnqueuer{}
	auditor := &fakeAuditor{}
	s := NewAuditCleanupScheduler(enqueuer, auditor, "", 7, nil)

	id, err := s.RunNow()
	require.NoError(t, err)
	assert.Equal(t, "task-1", id)
	assert.Equal(t, []int{7}, enqueuer.days)

	enqueuer.err = errors.New("queue closed")
	_, err = s.RunNow()
	assert.Error(t, err)

	require.Len(t, auditor.events, 2)
	assert.NoError(t, auditor.events[0])
	assert.Error(t, auditor.events[1])
}
