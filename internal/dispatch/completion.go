package dispatch

import "sync"

// completion collapses the normal, failure, timeout and cancellation signals
// of a fallback render into a single cleanup.
type completion struct {
	once    sync.Once
	done    chan struct{}
	release func()
	by      string
	err     error
}

func newCompletion(release func()) *completion {
	return &completion{done: make(chan struct{}), release: release}
}

// finish runs release and closes Done on the first call. It reports whether
// this call was the one that did so. err is kept only from that call.
func (c *completion) finish(by string, err error) bool {
	first := false
	c.once.Do(func() {
		first = true
		c.by = by
		c.err = err
		c.release()
		close(c.done)
	})
	return first
}

// Done is closed after the first finish.
func (c *completion) Done() <-chan struct{} {
	return c.done
}

// Trigger returns which signal finished c. Valid after Done is closed.
func (c *completion) Trigger() string {
	<-c.done
	return c.by
}

// Err returns the error passed to the first finish.
func (c *completion) Err() error {
	<-c.done
	return c.err
}
