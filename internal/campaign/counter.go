package campaign

import (
	"log"
	"strconv"
	"sync"

	"github.com/lumenworks/ideaengine/internal/store"
)

const (
	monthlyCountKey = "daily-idea-engine-monthly-count"
	currentMonthKey = "daily-idea-engine-current-month"
)

// Counter tracks the cumulative number of ideas sent in the current
// calendar month. Count and month are always persisted together in a
// single write so they can never drift apart across a crash.
type Counter struct {
	kv    store.KV
	mu    sync.Mutex
	count int
	month string
}

// NewCounter loads the persisted counter state, defaulting to
// {0, ""} on absence or any read failure.
func NewCounter(kv store.KV) *Counter {
	c := &Counter{kv: kv}

	rawMonth, err := kv.Get(currentMonthKey)
	if err != nil {
		log.Printf("[counter] load month warning: %v", err)
		return c
	}
	rawCount, err := kv.Get(monthlyCountKey)
	if err != nil {
		log.Printf("[counter] load count warning: %v", err)
		return c
	}

	c.month = rawMonth
	if n, err := strconv.Atoi(rawCount); err == nil {
		c.count = n
	}
	return c
}

// Reconcile rolls the counter over when the calendar month has
// advanced since the last persisted state. Called once per session
// start, not continuously.
func (c *Counter) Reconcile(nowMonth string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.month == nowMonth {
		return
	}
	c.count = 0
	c.month = nowMonth
	c.persist()
}

// Increment adds to the reconciled count and persists both fields.
func (c *Counter) Increment(by int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count += by
	c.persist()
}

func (c *Counter) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

func (c *Counter) Month() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.month
}

// persist writes count and month in one call; failures are swallowed,
// durability here is best-effort. Callers must hold c.mu.
func (c *Counter) persist() {
	err := c.kv.SetMany(map[string]string{
		monthlyCountKey: strconv.Itoa(c.count),
		currentMonthKey: c.month,
	})
	if err != nil {
		log.Printf("[counter] persist warning: %v", err)
	}
}
