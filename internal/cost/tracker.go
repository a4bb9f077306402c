package cost

import (
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrCeilingReached signals that the run's spend ceiling is exhausted.
// It halts new paid work; already-committed documents are unaffected.
var ErrCeilingReached = eris.New("cost: run ceiling reached")

// Tracker accumulates spend across a run. Safe for concurrent use by
// the worker pool.
type Tracker struct {
	mu      sync.Mutex
	ceiling float64 // USD, 0 disables the ceiling
	spent   float64
}

// NewTracker creates a Tracker with the given ceiling in USD. A zero
// or negative ceiling disables enforcement.
func NewTracker(ceilingUSD float64) *Tracker {
	return &Tracker{ceiling: ceilingUSD}
}

// Add records spend in USD.
func (t *Tracker) Add(usd float64) {
	if usd <= 0 {
		return
	}
	t.mu.Lock()
	t.spent += usd
	spent, ceiling := t.spent, t.ceiling
	t.mu.Unlock()

	if ceiling > 0 && spent >= ceiling {
		zap.L().Warn("run cost ceiling reached",
			zap.Float64("spent_usd", spent),
			zap.Float64("ceiling_usd", ceiling))
	}
}

// Spent returns the total recorded spend in USD.
func (t *Tracker) Spent() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.spent
}

// Check returns ErrCeilingReached once spend meets or exceeds the
// ceiling. Callers check before starting paid work, so a document in
// flight is never cut off mid-extraction.
func (t *Tracker) Check() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ceiling > 0 && t.spent >= t.ceiling {
		return ErrCeilingReached
	}
	return nil
}
