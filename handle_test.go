package ddc

import (
	"sync"
	"testing"
	"time"

	"github.com/ddcio/ddcci/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithLockSerializesSameDisplay(t *testing.T) {
	d := &Display{}
	h1 := NewHandle(d)
	h2 := NewHandle(d)

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		h1.WithLock("a", func() (interface{}, *status.ErrorInfo) {
			time.Sleep(20 * time.Millisecond)
			mu.Lock()
			order = append(order, 1)
			mu.Unlock()
			return nil, nil
		})
	}()
	time.Sleep(5 * time.Millisecond)
	go func() {
		defer wg.Done()
		h2.WithLock("b", func() (interface{}, *status.ErrorInfo) {
			mu.Lock()
			order = append(order, 2)
			mu.Unlock()
			return nil, nil
		})
	}()
	wg.Wait()
	assert.Equal(t, []int{1, 2}, order)
}

func TestWithLockTimeoutYieldsDisplayBusy(t *testing.T) {
	d := &Display{}
	h1 := NewHandle(d)
	h2 := NewHandle(d)
	h2.LockTimeout = 10 * time.Millisecond

	released := make(chan struct{})
	go h1.WithLock("a", func() (interface{}, *status.ErrorInfo) {
		<-released
		return nil, nil
	})
	time.Sleep(5 * time.Millisecond)

	_, err := h2.WithLock("b", func() (interface{}, *status.ErrorInfo) {
		t.Fatal("should not acquire lock")
		return nil, nil
	})
	require.NotNil(t, err)
	assert.Equal(t, status.StatusDisplayBusy, err.Status)
	close(released)
}

func TestWithLockRejectsRemovedDisplay(t *testing.T) {
	d := &Display{}
	d.MarkRemoved()
	h := NewHandle(d)
	_, err := h.WithLock("a", func() (interface{}, *status.ErrorInfo) {
		t.Fatal("should not run")
		return nil, nil
	})
	require.NotNil(t, err)
	assert.Equal(t, status.StatusDisplayRemoved, err.Status)
}
