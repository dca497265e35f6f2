package event

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/langcore/pkg/types"
)

func TestDispatchAndWait_WaitsForAllSubscribers(t *testing.T) {
	d := NewDispatcher(nil)
	var finished atomic.Int32

	for i := 0; i < 3; i++ {
		d.Subscribe(DocumentOpen, func(ctx context.Context, payload any) error {
			time.Sleep(10 * time.Millisecond)
			assert.Equal(t, "doc", payload)
			finished.Add(1)
			return nil
		})
	}
	d.Subscribe(DocumentClose, func(ctx context.Context, payload any) error {
		t.Error("close subscriber must not run on open")
		return nil
	})

	require.NoError(t, d.DispatchAndWait(context.Background(), DocumentOpen, "doc"))
	assert.Equal(t, int32(3), finished.Load())
	assert.Equal(t, 3, d.Subscribers(DocumentOpen))
}

func TestDispatchAndWait_NoSubscribers(t *testing.T) {
	d := NewDispatcher(nil)
	assert.NoError(t, d.DispatchAndWait(context.Background(), ProjectOpen, nil))
}

func TestDispatchAndWait_PropagatesFailure(t *testing.T) {
	d := NewDispatcher(nil)
	want := errors.New("indexer failed")

	d.Subscribe(DocumentChange, func(ctx context.Context, payload any) error { return nil })
	d.Subscribe(DocumentChange, func(ctx context.Context, payload any) error { return want })

	err := d.DispatchAndWait(context.Background(), DocumentChange, nil)
	assert.ErrorIs(t, err, want)
}

func TestDispatchAndWait_RecoversPanic(t *testing.T) {
	d := NewDispatcher(nil)
	d.Subscribe(ProjectClose, func(ctx context.Context, payload any) error { panic("bad subscriber") })

	err := d.DispatchAndWait(context.Background(), ProjectClose, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad subscriber")
}

func TestDispatchAndWait_Cancelled(t *testing.T) {
	d := NewDispatcher(nil)
	release := make(chan struct{})
	defer close(release)

	d.Subscribe(DocumentOpen, func(ctx context.Context, payload any) error {
		<-release
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := d.DispatchAndWait(ctx, DocumentOpen, nil)
	assert.ErrorIs(t, err, types.ErrCancelled)
	assert.Less(t, time.Since(start), time.Second)
}
