package drive

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/drivesync/internal/logging"
)

// DefaultAutosaveDelay is the quiet period after the last edit before a
// document's content is written.
const DefaultAutosaveDelay = time.Second

// SaveFunc persists one document's content.
type SaveFunc func(ctx context.Context, id, content string) error

type pendingSave struct {
	timer   *time.Timer
	gen     uint64
	content string
}

// Autosaver debounces content edits per document. Only the last edit in a
// burst is written, once the delay has passed without another edit. Stop
// drops whatever is still pending.
type Autosaver struct {
	save    SaveFunc
	delay   time.Duration
	log     logging.Logger
	onError func(id string, err error)

	mu      sync.Mutex
	pending map[string]*pendingSave
	gen     uint64
	stopped bool
	wg      sync.WaitGroup
}

func NewAutosaver(save SaveFunc, delay time.Duration, log logging.Logger) *Autosaver {
	if delay <= 0 {
		delay = DefaultAutosaveDelay
	}
	return &Autosaver{
		save:    save,
		delay:   delay,
		log:     logging.OrNop(log).With("module", "autosave"),
		pending: make(map[string]*pendingSave),
	}
}

// NewAutosaver returns an autosaver writing through UpdateContent.
func (d *Drive) NewAutosaver(delay time.Duration) *Autosaver {
	return NewAutosaver(d.UpdateContent, delay, d.log)
}

// OnError registers a callback for failed writes.
func (a *Autosaver) OnError(fn func(id string, err error)) {
	a.mu.Lock()
	a.onError = fn
	a.mu.Unlock()
}

// Edit records new content for id and re-arms its timer.
func (a *Autosaver) Edit(id, content string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopped {
		return
	}

	a.gen++
	gen := a.gen
	if p, ok := a.pending[id]; ok {
		p.timer.Stop()
	}
	a.pending[id] = &pendingSave{
		gen:     gen,
		content: content,
		timer:   time.AfterFunc(a.delay, func() { a.fire(id, gen) }),
	}
}

func (a *Autosaver) fire(id string, gen uint64) {
	a.mu.Lock()
	p, ok := a.pending[id]
	if a.stopped || !ok || p.gen != gen {
		a.mu.Unlock()
		return
	}
	delete(a.pending, id)
	a.wg.Add(1)
	onError := a.onError
	a.mu.Unlock()
	defer a.wg.Done()

	ctx := context.Background()
	if err := a.save(ctx, id, p.content); err != nil {
		a.log.Warn(ctx, "autosave failed", "id", id, "error", err)
		if onError != nil {
			onError(id, err)
		}
		return
	}
	a.log.Debug(ctx, "autosaved", "id", id, "bytes", len(p.content))
}

// Pending reports how many documents have an unsaved edit.
func (a *Autosaver) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pending)
}

// Stop cancels all pending writes without flushing them and waits for any
// write already in flight.
func (a *Autosaver) Stop() {
	a.mu.Lock()
	a.stopped = true
	for id, p := range a.pending {
		p.timer.Stop()
		delete(a.pending, id)
	}
	a.mu.Unlock()
	a.wg.Wait()
}
