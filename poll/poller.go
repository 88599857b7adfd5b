// Package poll drives the job-status polling loop. The poller fetches one
// snapshot immediately on start and then on a fixed interval, delivering
// results to a latest-wins channel. Stopping it deterministically prevents
// further fetches.
package poll

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"storyforge/types"
)

// FetchFunc retrieves one job snapshot. The poller accepts a function so it
// never depends on the HTTP client package directly.
type FetchFunc func(ctx context.Context, jobID string) (*types.Job, error)

// Policy controls the polling loop lifetime.
type Policy struct {
	// Interval between fetches. Defaults to 2s.
	Interval time.Duration
	// RequestTimeout bounds each individual fetch. Defaults to 10s.
	RequestTimeout time.Duration
	// StopOnTerminal halts the loop after a snapshot with a terminal
	// status has been applied.
	StopOnTerminal bool
	// MaxAttempts caps the number of fetches issued; 0 means unlimited.
	MaxAttempts int
}

func (p Policy) withDefaults() Policy {
	if p.Interval <= 0 {
		p.Interval = 2 * time.Second
	}
	if p.RequestTimeout <= 0 {
		p.RequestTimeout = 10 * time.Second
	}
	return p
}

// Snapshot is one applied poll result. FailureStreak counts consecutive
// failed fetches since the last success; renderers use it for a
// reconnecting indicator.
type Snapshot struct {
	Job           *types.Job
	Seq           uint64
	ReceivedAt    time.Time
	FailureStreak int
}

// Poller polls one job at a time. Safe for concurrent use; Start and Stop
// may be called from different goroutines.
type Poller struct {
	fetch  FetchFunc
	policy Policy
	log    zerolog.Logger

	mu          sync.Mutex
	cancel      context.CancelFunc
	done        chan struct{}
	nextSeq     uint64
	lastApplied uint64
	latest      Snapshot
	hasLatest   bool
	streak      int

	updates chan Snapshot
}

// New creates a poller. fetch must not be nil.
func New(fetch FetchFunc, policy Policy, log zerolog.Logger) *Poller {
	return &Poller{
		fetch:   fetch,
		policy:  policy.withDefaults(),
		log:     log,
		updates: make(chan Snapshot, 1),
	}
}

// Start begins polling the given job. A previous loop, if any, is stopped
// first; sequence state carries over so a late response from the old job
// cannot overwrite a snapshot of the new one.
func (p *Poller) Start(ctx context.Context, jobID string) {
	p.Stop()

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	p.mu.Lock()
	p.cancel = cancel
	p.done = done
	p.streak = 0
	p.mu.Unlock()

	go p.loop(ctx, jobID, done)
}

// Stop halts the loop and cancels any in-flight fetch. It blocks until the
// loop goroutine has exited, so no fetch is issued after Stop returns.
// Idempotent.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// Updates returns the latest-wins snapshot channel. A snapshot nobody has
// read yet is replaced when a newer one arrives.
func (p *Poller) Updates() <-chan Snapshot {
	return p.updates
}

// Latest returns the most recently applied snapshot, if any.
func (p *Poller) Latest() (Snapshot, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.latest, p.hasLatest
}

func (p *Poller) loop(ctx context.Context, jobID string, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.policy.Interval)
	defer ticker.Stop()

	stop := make(chan struct{})
	var stopOnce sync.Once
	halt := func() { stopOnce.Do(func() { close(stop) }) }

	attempts := 0
	issue := func() {
		attempts++
		p.mu.Lock()
		p.nextSeq++
		seq := p.nextSeq
		p.mu.Unlock()

		// Each fetch runs in its own goroutine so a slow response never
		// delays the next tick. Sequence numbers keep receipt order from
		// rolling state backward.
		go func() {
			fctx, cancel := context.WithTimeout(ctx, p.policy.RequestTimeout)
			defer cancel()

			job, err := p.fetch(fctx, jobID)
			if ctx.Err() != nil {
				return
			}
			if terminal := p.apply(jobID, seq, job, err); terminal && p.policy.StopOnTerminal {
				halt()
			}
		}()
	}

	issue()
	for {
		if p.policy.MaxAttempts > 0 && attempts >= p.policy.MaxAttempts {
			p.log.Debug().Str("jobId", jobID).Int("attempts", attempts).Msg("poll attempt ceiling reached")
			return
		}
		select {
		case <-ticker.C:
			issue()
		case <-stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

// apply records one fetch result and reports whether the applied snapshot
// carries a terminal status.
func (p *Poller) apply(jobID string, seq uint64, job *types.Job, err error) bool {
	p.mu.Lock()

	if seq <= p.lastApplied {
		p.mu.Unlock()
		p.log.Debug().Str("jobId", jobID).Uint64("seq", seq).Uint64("applied", p.lastApplied).
			Msg("discarding stale poll response")
		return false
	}

	if err != nil {
		// Transient failure: keep the previous snapshot, count the miss,
		// let the next tick retry. The retained snapshot is republished
		// with the streak so renderers can show connectivity.
		p.lastApplied = seq
		p.streak++
		p.latest.FailureStreak = p.streak
		snap := p.latest
		p.mu.Unlock()
		p.log.Warn().Err(err).Str("jobId", jobID).Int("streak", snap.FailureStreak).Msg("poll failed")
		p.publish(snap)
		return false
	}

	p.lastApplied = seq
	p.streak = 0
	snap := Snapshot{Job: job, Seq: seq, ReceivedAt: time.Now()}
	p.latest = snap
	p.hasLatest = true
	p.mu.Unlock()

	p.publish(snap)
	return job != nil && job.Status.Terminal()
}

func (p *Poller) publish(snap Snapshot) {
	for {
		select {
		case p.updates <- snap:
			return
		default:
			// Channel full: drop the undelivered older snapshot.
			select {
			case <-p.updates:
			default:
			}
		}
	}
}
