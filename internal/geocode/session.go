package geocode

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

// Default autocomplete tuning. DefaultSuggestionsLimit is also the most
// suggestions a session ever asks for.
const (
	DefaultDebounce         = 300 * time.Millisecond
	DefaultMinChars         = 3
	DefaultSuggestionsLimit = 5
)

// SessionOptions tunes an autocomplete session.
type SessionOptions struct {
	Debounce time.Duration
	MinChars int
	Limit    int
}

// Outcome is one autocomplete answer. Err is nil for a successful lookup,
// including one with no places.
type Outcome struct {
	Query  string
	Places []Place
	Err    error
}

// Session is the state of one caller's search box: a pending debounce timer
// and the in-flight lookup. Each Input supersedes everything issued before
// it, and only the newest lookup may deliver. Safe for concurrent use.
type Session struct {
	lookup  Lookup
	opts    SessionOptions
	deliver func(Outcome)

	mu       sync.Mutex
	seq      uint64
	timer    *time.Timer
	cancel   context.CancelFunc
	closed   bool
	base     context.Context
	stopBase context.CancelFunc

	// deliverMu orders deliveries so an older outcome cannot land after a newer one.
	deliverMu sync.Mutex
}

// NewSession starts a session. deliver is called from a timer goroutine,
// never concurrently with itself.
func NewSession(lookup Lookup, opts SessionOptions, deliver func(Outcome)) *Session {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.MinChars <= 0 {
		opts.MinChars = DefaultMinChars
	}
	if opts.Limit <= 0 || opts.Limit > DefaultSuggestionsLimit {
		opts.Limit = DefaultSuggestionsLimit
	}
	base, stop := context.WithCancel(context.Background())
	return &Session{
		lookup:   lookup,
		opts:     opts,
		deliver:  deliver,
		base:     base,
		stopBase: stop,
	}
}

// Input records new text in the search box. Any pending timer and in-flight
// lookup are cancelled. A lookup is scheduled only when the trimmed text has
// at least MinChars characters, and it fires after Debounce of quiet.
func (s *Session) Input(text string) {
	query := strings.TrimSpace(text)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	seq := s.supersedeLocked()

	if utf8.RuneCountInString(query) < s.opts.MinChars {
		return
	}
	s.timer = time.AfterFunc(s.opts.Debounce, func() { s.fire(seq, query) })
}

// Submit is the explicit search action. It skips debouncing, cancels pending
// autocomplete work and returns the single best match, if any.
func (s *Session) Submit(ctx context.Context, text string) ([]Place, error) {
	query := strings.TrimSpace(text)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	s.mu.Lock()
	if !s.closed {
		s.supersedeLocked()
	}
	s.mu.Unlock()

	return s.lookup.Search(ctx, query, 1)
}

// Close stops the session. Nothing is delivered afterwards.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.supersedeLocked()
	s.stopBase()
}

// supersedeLocked invalidates earlier work and returns the new sequence number.
func (s *Session) supersedeLocked() uint64 {
	s.seq++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	return s.seq
}

func (s *Session) current(seq uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed && seq == s.seq
}

func (s *Session) fire(seq uint64, query string) {
	s.mu.Lock()
	if s.closed || seq != s.seq {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(s.base)
	s.cancel = cancel
	s.timer = nil
	s.mu.Unlock()
	defer cancel()

	places, err := s.lookup.Search(ctx, query, s.opts.Limit)
	if errors.Is(err, context.Canceled) {
		return
	}

	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()
	if !s.current(seq) {
		return
	}
	if places == nil {
		places = []Place{}
	}
	s.deliver(Outcome{Query: query, Places: places, Err: err})
}
