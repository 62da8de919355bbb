package events

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBrokerDispatchesToAllListeners(t *testing.T) {
	b := NewBroker()
	b.Start()
	t.Cleanup(b.Stop)

	var mu sync.Mutex
	var got []interface{}
	done := make(chan struct{}, 2)

	for i := 0; i < 2; i++ {
		b.AddListener(func(ev Event) {
			mu.Lock()
			got = append(got, ev.Payload)
			mu.Unlock()
			done <- struct{}{}
		})
	}

	b.Publish("failure-1")

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("listener was not invoked")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 2)
	assert.Equal(t, "failure-1", got[0])
}

func TestBrokerStopIsIdempotent(t *testing.T) {
	b := NewBroker()
	b.Start()
	assert.NotPanics(t, func() {
		b.Stop()
		b.Stop()
	})
}
