package crawler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// LeaseToken is issued by Frontier.Next and must be returned, exactly once,
// to Frontier.Release. It carries the bookkeeping Release needs without
// exposing host state to callers.
type LeaseToken struct {
	id   uuid.UUID
	host string
}

// hostState is the per-host politeness ledger: its queue, how many of its
// leases are currently outstanding, and when it may next be dispatched.
// Entries are created lazily and never removed, matching the append-only
// lifetime called out for per-host state: a host that goes quiet keeps its
// (tiny) slot rather than being torn down and racily recreated.
type hostState struct {
	host                 string
	queue                []NormalizedURL
	inFlight             int
	nextEarliestDispatch time.Time
}

// Frontier is the admission-controlled, per-host FIFO work queue at the
// center of the crawl. It owns the VisitedSet test-and-add so enqueue is
// race-free, and it tracks outstanding work (queued + in-flight) with a
// WaitGroup so a controller can detect natural exhaustion without polling.
type Frontier struct {
	mu     sync.Mutex
	cond   *sync.Cond
	closed bool

	visited VisitedSet
	hosts   map[string]*hostState
	order   []string // insertion order, used for round-robin admission scans
	cursor  int

	maxPerHost      int
	minInterval     time.Duration
	maxQueuePerHost int
	dropped         int64

	pendingTimer *time.Timer
	pendingWake  time.Time

	outstanding sync.WaitGroup
}

// NewFrontier constructs a Frontier. maxQueuePerHost of zero means no cap.
func NewFrontier(visited VisitedSet, maxPerHost int, minInterval time.Duration, maxQueuePerHost int) *Frontier {
	f := &Frontier{
		visited:         visited,
		hosts:           make(map[string]*hostState),
		maxPerHost:      maxPerHost,
		minInterval:     minInterval,
		maxQueuePerHost: maxQueuePerHost,
	}
	f.cond = sync.NewCond(&f.mu)
	return f
}

func (f *Frontier) getOrCreateHost(host string) *hostState {
	hs, ok := f.hosts[host]
	if !ok {
		hs = &hostState{host: host}
		f.hosts[host] = hs
		f.order = append(f.order, host)
	}
	return hs
}

// Enqueue adds u to its host's queue, unless u was already seen (per
// VisitedSet) or the host's queue is already at MaxQueuePerHost. It is
// safe to call from any goroutine, including from within worker
// processing of a just-fetched page's discovered links.
func (f *Frontier) Enqueue(u NormalizedURL) {
	if !f.visited.AddIfAbsent(u) {
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}

	hs := f.getOrCreateHost(u.Host())
	if f.maxQueuePerHost > 0 && len(hs.queue) >= f.maxQueuePerHost {
		f.dropped++
		return
	}

	hs.queue = append(hs.queue, u)
	f.outstanding.Add(1)
	f.cond.Broadcast()
}

// Next blocks until a URL is admissible (its host is under MaxPerHost
// in-flight fetches and past its next earliest dispatch time), the
// frontier is closed with no outstanding work, or ctx is done. The
// returned bool is false exactly when the caller should stop calling Next.
func (f *Frontier) Next(ctx context.Context) (NormalizedURL, LeaseToken, bool) {
	if done := ctx.Done(); done != nil {
		stop := make(chan struct{})
		defer close(stop)
		go func() {
			select {
			case <-done:
				f.mu.Lock()
				f.cond.Broadcast()
				f.mu.Unlock()
			case <-stop:
			}
		}()
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	for {
		if ctx.Err() != nil {
			return NormalizedURL{}, LeaseToken{}, false
		}

		if host, idx, ok := f.findAdmissible(); ok {
			hs := f.hosts[host]
			u := hs.queue[0]
			hs.queue = hs.queue[1:]
			hs.inFlight++
			f.cursor = idx + 1
			return u, LeaseToken{id: uuid.New(), host: host}, true
		}

		if f.closed && f.idleLocked() {
			return NormalizedURL{}, LeaseToken{}, false
		}

		if wake := f.earliestWakeLocked(); !wake.IsZero() {
			f.armTimerLocked(wake)
		}
		f.cond.Wait()
	}
}

// findAdmissible scans hosts in round-robin order starting at f.cursor so
// no single host can starve the others, returning the first whose queue is
// non-empty, under its concurrency cap, and past its dispatch floor.
func (f *Frontier) findAdmissible() (string, int, bool) {
	n := len(f.order)
	if n == 0 {
		return "", 0, false
	}
	now := time.Now()
	for i := 0; i < n; i++ {
		idx := (f.cursor + i) % n
		host := f.order[idx]
		hs := f.hosts[host]
		if len(hs.queue) == 0 {
			continue
		}
		if hs.inFlight >= f.maxPerHost {
			continue
		}
		if now.Before(hs.nextEarliestDispatch) {
			continue
		}
		return host, idx, true
	}
	return "", 0, false
}

// earliestWakeLocked returns the soonest nextEarliestDispatch among hosts
// that are blocked purely by time (not by concurrency), or the zero Time
// if no host is time-blocked. Concurrency-blocked hosts need no timer:
// Release's Broadcast wakes waiters when a slot frees up.
func (f *Frontier) earliestWakeLocked() time.Time {
	var earliest time.Time
	now := time.Now()
	for _, host := range f.order {
		hs := f.hosts[host]
		if len(hs.queue) == 0 || hs.inFlight >= f.maxPerHost {
			continue
		}
		if hs.nextEarliestDispatch.After(now) {
			if earliest.IsZero() || hs.nextEarliestDispatch.Before(earliest) {
				earliest = hs.nextEarliestDispatch
			}
		}
	}
	return earliest
}

// idleLocked reports whether every host has an empty queue and no
// in-flight leases: the termination condition once closed is also true.
func (f *Frontier) idleLocked() bool {
	for _, hs := range f.hosts {
		if len(hs.queue) > 0 || hs.inFlight > 0 {
			return false
		}
	}
	return true
}

// armTimerLocked schedules a wakeup Broadcast at wake, unless an earlier
// or equal timer is already pending.
func (f *Frontier) armTimerLocked(wake time.Time) {
	if f.pendingTimer != nil {
		if !f.pendingWake.IsZero() && !wake.Before(f.pendingWake) {
			return
		}
		f.pendingTimer.Stop()
	}
	d := time.Until(wake)
	if d <= 0 {
		d = time.Millisecond
	}
	f.pendingWake = wake
	f.pendingTimer = time.AfterFunc(d, func() {
		f.mu.Lock()
		f.pendingTimer = nil
		f.pendingWake = time.Time{}
		f.cond.Broadcast()
		f.mu.Unlock()
	})
}

// Release returns a lease obtained from Next, decrementing the host's
// in-flight count and resetting its dispatch floor to now + MinInterval.
// It must be called exactly once per successful Next, after any links
// discovered while processing that URL have already been Enqueued, so
// outstanding work never transiently touches zero mid-page.
func (f *Frontier) Release(lease LeaseToken) {
	f.mu.Lock()
	hs, ok := f.hosts[lease.host]
	if ok && hs.inFlight > 0 {
		hs.inFlight--
		if f.minInterval > 0 {
			hs.nextEarliestDispatch = time.Now().Add(f.minInterval)
		}
	}
	f.cond.Broadcast()
	f.mu.Unlock()

	f.outstanding.Done()
}

// Close marks the frontier closed: once idle, Next returns false to every
// waiter. Close is idempotent and safe to call more than once.
func (f *Frontier) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	f.cond.Broadcast()
	f.mu.Unlock()
}

// Wait blocks until outstanding work (enqueued but not yet released) drops
// to zero. A controller uses this to detect natural exhaustion and call
// Close, without polling.
func (f *Frontier) Wait() {
	f.outstanding.Wait()
}

// VisitedCount returns how many distinct URLs have been admitted.
func (f *Frontier) VisitedCount() int {
	return f.visited.Size()
}

// Dropped returns how many enqueue attempts were discarded for exceeding
// MaxQueuePerHost.
func (f *Frontier) Dropped() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dropped
}

// Depth returns the total number of URLs currently queued across all hosts.
func (f *Frontier) Depth() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, hs := range f.hosts {
		total += len(hs.queue)
	}
	return total
}
