package dispatch

import (
	"sync"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
)

func TestCompletion(t *testing.T) {
	released := 0
	c := newCompletion(func() { released++ })

	select {
	case <-c.Done():
		t.Fatal("done before finish")
	default:
	}

	assert.True(t, c.finish("done", nil))
	assert.False(t, c.finish("timeout", nil))
	assert.Equal(t, 1, released)
	assert.Equal(t, "done", c.Trigger())
	assert.NoError(t, c.Err())
}

func TestCompletion_FirstErrorWins(t *testing.T) {
	c := newCompletion(func() {})
	boom := errors.New("render crashed")

	assert.True(t, c.finish("failed", boom))
	assert.False(t, c.finish("done", nil))
	assert.Equal(t, "failed", c.Trigger())
	assert.ErrorIs(t, c.Err(), boom)
}

func TestCompletion_Concurrent(t *testing.T) {
	var (
		mu       sync.Mutex
		released int
	)
	c := newCompletion(func() {
		mu.Lock()
		released++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.finish("done", nil)
		}()
	}
	wg.Wait()

	<-c.Done()
	assert.Equal(t, 1, released)
}
