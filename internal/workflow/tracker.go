package workflow

import "sync"

// Tracker holds progress snapshots for in-flight runs and fans them out to
// subscribers (the websocket progress stream). Finished runs are dropped;
// their record lives in the run history store.
type Tracker struct {
	mu   sync.RWMutex
	runs map[string]Snapshot
	subs map[string][]chan Snapshot
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		runs: make(map[string]Snapshot),
		subs: make(map[string][]chan Snapshot),
	}
}

// Update records the latest snapshot for a run and notifies subscribers.
// Slow subscribers miss intermediate snapshots rather than blocking the run.
// A terminal snapshot closes the run's subscriptions.
func (t *Tracker) Update(snap Snapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if snap.Status.Terminal() {
		delete(t.runs, snap.RunID)
		for _, ch := range t.subs[snap.RunID] {
			select {
			case ch <- snap:
			default:
			}
			close(ch)
		}
		delete(t.subs, snap.RunID)
		return
	}

	t.runs[snap.RunID] = snap
	for _, ch := range t.subs[snap.RunID] {
		select {
		case ch <- snap:
		default:
		}
	}
}

// Get returns the latest snapshot for an active run.
func (t *Tracker) Get(runID string) (Snapshot, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	snap, ok := t.runs[runID]
	return snap, ok
}

// Active returns the snapshots of all in-flight runs.
func (t *Tracker) Active() []Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Snapshot, 0, len(t.runs))
	for _, snap := range t.runs {
		out = append(out, snap)
	}
	return out
}

// Subscribe registers for snapshot updates of one run. The returned cancel
// function must be called unless the channel has been closed by a terminal
// update.
func (t *Tracker) Subscribe(runID string) (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 8)

	t.mu.Lock()
	t.subs[runID] = append(t.subs[runID], ch)
	t.mu.Unlock()

	cancel := func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		subs := t.subs[runID]
		for i, c := range subs {
			if c == ch {
				t.subs[runID] = append(subs[:i], subs[i+1:]...)
				close(c)
				break
			}
		}
		if len(t.subs[runID]) == 0 {
			delete(t.subs, runID)
		}
	}
	return ch, cancel
}
