package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterRejectsInvalidSpec(t *testing.T) {
	s := New(nil, 0)
	err := s.Register("bad", "every tuesday", func(context.Context) error { return nil })
	assert.Error(t, err)
}

func TestSchedulerRunsJobs(t *testing.T) {
	s := New(nil, time.Second)
	var runs atomic.Int32
	require.NoError(t, s.Register("tick", "@every 1s", func(ctx context.Context) error {
		runs.Add(1)
		return errors.New("ignored")
	}))
	s.Start()
	defer s.Stop(context.Background())

	assert.Eventually(t, func() bool { return runs.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)
}
