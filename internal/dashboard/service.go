package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"tradingdash/internal/board"
	"tradingdash/internal/quote"
	"tradingdash/internal/source"
)

// User-facing messages carried in Snapshot.Error.
const (
	MsgFetch   = "Unable to load data from the pricing API"
	MsgProcess = "Error while processing data"
)

var (
	// ErrFetch means the upstream could not be reached or answered badly.
	ErrFetch = errors.New("fetch failed")
	// ErrProcess means the upstream body could not be turned into instruments.
	ErrProcess = errors.New("processing failed")
	// ErrSuperseded means a newer cycle started before this one finished;
	// nothing was published.
	ErrSuperseded = errors.New("refresh superseded")
)

// Service owns the published dashboard snapshot and the refresh cycles that
// replace it.
type Service struct {
	src     source.Source
	deriver quote.Deriver
	log     zerolog.Logger
	now     func() time.Time
	newID   func() string

	gen      atomic.Uint64
	inflight atomic.Int32
	snap     atomic.Pointer[board.Snapshot]

	// mu serializes publishing and guards cancel.
	mu     sync.Mutex
	cancel context.CancelFunc

	wg sync.WaitGroup
}

type Option func(*Service)

func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.log = l }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator replaces the random refresh ID generator.
func WithIDGenerator(f func() string) Option {
	return func(s *Service) { s.newID = f }
}

func New(src source.Source, d quote.Deriver, opts ...Option) *Service {
	s := &Service{
		src:     src,
		deriver: d,
		log:     zerolog.Nop(),
		now:     time.Now,
		newID:   func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}
	empty := board.Summarize(nil, s.now())
	s.snap.Store(&empty)
	return s
}

// Snapshot returns the last published snapshot. Callers must not modify the
// instruments slice.
func (s *Service) Snapshot() board.Snapshot { return *s.snap.Load() }

// Loading reports whether a refresh cycle is in flight.
func (s *Service) Loading() bool { return s.inflight.Load() > 0 }

// Refresh runs one cycle and publishes its result. Starting a cycle cancels
// the one before it, and a cycle publishes only while it is the newest, so a
// slow response never overwrites newer state. On fetch or processing failure
// the fallback snapshot is published and the error is returned alongside it.
func (s *Service) Refresh(ctx context.Context) (board.Snapshot, error) {
	s.inflight.Add(1)
	defer s.inflight.Add(-1)

	cctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	gen := s.gen.Add(1)
	if s.cancel != nil {
		s.cancel()
	}
	s.cancel = cancel
	s.mu.Unlock()

	snap, commit, err := s.cycle(cctx)
	if cctx.Err() != nil {
		if ctx.Err() != nil {
			return board.Snapshot{}, ctx.Err()
		}
		return board.Snapshot{}, ErrSuperseded
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen.Load() != gen {
		return board.Snapshot{}, ErrSuperseded
	}
	commit()
	snap.RefreshID = s.newID()
	s.snap.Store(&snap)

	ev := s.log.Info()
	if err != nil {
		ev = s.log.Warn().Err(err)
	}
	ev.Str("refresh_id", snap.RefreshID).
		Int("instruments", snap.TotalInstruments).
		Int("signals", snap.ActiveSignals).
		Bool("fallback", snap.Fallback).
		Msg("snapshot published")
	return snap, err
}

// RefreshNow drops any cached upstream body before refreshing, so a manual
// refresh always reaches the upstream.
func (s *Service) RefreshNow(ctx context.Context) (board.Snapshot, error) {
	if inv, ok := s.src.(source.Invalidator); ok {
		inv.Invalidate()
	}
	return s.Refresh(ctx)
}

// cycle fetches and processes one body. commit applies the state the
// derivation accumulated; it must only run for a published result.
func (s *Service) cycle(ctx context.Context) (snap board.Snapshot, commit func(), err error) {
	body, err := s.src.Fetch(ctx)
	if err != nil {
		return s.fallback(MsgFetch), noCommit, fmt.Errorf("%w: %s: %w", ErrFetch, s.src.Name(), err)
	}
	snap, commit, err = s.process(body)
	if err != nil {
		return s.fallback(MsgProcess), noCommit, fmt.Errorf("%w: %w", ErrProcess, err)
	}
	return snap, commit, nil
}

func noCommit() {}

func (s *Service) process(body []byte) (snap board.Snapshot, commit func(), err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()

	p, err := quote.Parse(body)
	if err != nil {
		return board.Snapshot{}, noCommit, err
	}
	if !p.Enveloped {
		s.log.Warn().Msg("unexpected response shape, reading body as payload")
	}
	total, failed := p.Counts()
	s.log.Debug().Int("entries", total).Int("error_marked", failed).Msg("payload parsed")

	d, commit := s.deriver, noCommit
	if st, ok := s.deriver.(quote.Stager); ok {
		sess := st.Begin()
		d, commit = sess, sess.Commit
	}
	now := s.now()
	return board.Summarize(quote.Normalize(p, d, now), now), commit, nil
}

func (s *Service) fallback(msg string) board.Snapshot {
	now := s.now()
	snap := board.Summarize(board.Fallback(now), now)
	snap.Error = msg
	snap.Fallback = true
	return snap
}

// Run refreshes immediately and then every interval until ctx is done. Each
// tick runs in its own goroutine; Run returns after all of them finish.
func (s *Service) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.spawn(ctx)
	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			return
		case <-ticker.C:
			s.spawn(ctx)
		}
	}
}

func (s *Service) spawn(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if _, err := s.Refresh(ctx); err != nil {
			switch {
			case errors.Is(err, ErrSuperseded), errors.Is(err, context.Canceled):
				s.log.Debug().Err(err).Msg("refresh dropped")
			case errors.Is(err, ErrFetch), errors.Is(err, ErrProcess):
				// Logged on publish.
			default:
				s.log.Error().Err(err).Msg("refresh failed")
			}
		}
	}()
}
