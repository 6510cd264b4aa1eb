package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_RunsAndDrainsOnStop(t *testing.T) {
	p := NewPool("test", 2, nil)
	p.Start(context.Background())

	var done int32
	for i := 0; i < 20; i++ {
		require.NoError(t, p.Submit(func(ctx context.Context) error {
			atomic.AddInt32(&done, 1)
			return nil
		}))
	}
	p.Stop()
	assert.Equal(t, int32(20), atomic.LoadInt32(&done))
	assert.ErrorIs(t, p.Submit(func(ctx context.Context) error { return nil }), ErrPoolClosed)
	p.Stop() // second Stop is a no-op
}

func TestPool_SurvivesPanicsAndErrors(t *testing.T) {
	p := NewPool("test", 1, nil)
	p.Start(context.Background())

	var ran int32
	_ = p.Submit(func(ctx context.Context) error { panic("boom") })
	_ = p.Submit(func(ctx context.Context) error { return errors.New("fail") })
	_ = p.Submit(func(ctx context.Context) error { atomic.AddInt32(&ran, 1); return nil })
	p.Stop()
	assert.Equal(t, int32(1), atomic.LoadInt32(&ran))
}

func TestPool_RejectsWhenFull(t *testing.T) {
	p := NewPool("test", 1, nil) // not started: nothing consumes
	var err error
	for i := 0; i < 100 && err == nil; i++ {
		err = p.Submit(func(ctx context.Context) error { return nil })
	}
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.ErrorIs(t, p.Submit(nil), ErrNilTask)
}
