package identity

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aussiebroadwan/warden/internal/warden/domain"
	"github.com/aussiebroadwan/warden/pkg/slogx"
	"golang.org/x/sync/singleflight"
)

// DefaultStrategyTimeout bounds each individual strategy lookup.
const DefaultStrategyTimeout = 3 * time.Second

type Config struct {
	// StrategyTimeout bounds each strategy. Zero means DefaultStrategyTimeout.
	StrategyTimeout time.Duration

	// GlobalOverride, when set, is returned for every session that has no
	// session override of its own.
	GlobalOverride string

	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

// Resolver runs the ordered strategy chain and owns the per-session cache.
// All session state lives here, keyed by Session.ID.
type Resolver struct {
	timeout time.Duration
	now     func() time.Time
	global  string

	mu         sync.RWMutex
	strategies map[domain.IdentitySource][]Strategy
	sessions   map[string]*session

	group singleflight.Group
}

type session struct {
	override  string
	cached    domain.ClientIdentity
	synthetic string
	gen       uint64 // bumped on every invalidation
	lastSeen  time.Time
}

func NewResolver(cfg Config) (*Resolver, error) {
	r := &Resolver{
		timeout:    cfg.StrategyTimeout,
		now:        cfg.Now,
		strategies: make(map[domain.IdentitySource][]Strategy),
		sessions:   make(map[string]*session),
	}
	if r.timeout <= 0 {
		r.timeout = DefaultStrategyTimeout
	}
	if r.now == nil {
		r.now = time.Now
	}

	if cfg.GlobalOverride != "" {
		addr, err := Normalize(cfg.GlobalOverride)
		if err != nil {
			return nil, fmt.Errorf("%w: global override %q", ErrInvalidAddress, cfg.GlobalOverride)
		}
		r.global = addr
	}

	return r, nil
}

// Register adds a strategy. Strategies run in source priority order and, for
// the same source, in registration order.
func (r *Resolver) Register(s Strategy) error {
	if !knownSource(s.Source()) {
		return fmt.Errorf("identity: cannot register strategy for source %q", s.Source())
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies[s.Source()] = append(r.strategies[s.Source()], s)
	return nil
}

// Resolve returns the best identity for req. It never fails: when every
// strategy comes back empty the session gets a stable synthetic token.
func (r *Resolver) Resolve(ctx context.Context, req Request) domain.ClientIdentity {
	sid := req.Session.ID

	if id, ok := r.Peek(sid); ok {
		return id
	}

	if sid == "" {
		id, _ := r.runChain(ctx, req)
		if id.IsZero() {
			id = r.identity(syntheticAddress(r.now()), domain.SourceSynthetic)
		}
		return id
	}

	v, _, _ := r.group.Do(sid, func() (any, error) {
		r.mu.Lock()
		gen := r.sessionLocked(sid).gen
		r.mu.Unlock()

		id, cacheable := r.runChain(ctx, req)

		r.mu.Lock()
		defer r.mu.Unlock()
		s := r.sessionLocked(sid)
		if id.IsZero() {
			// ResolverExhausted: fall back to the session's synthetic token
			if s.synthetic == "" {
				s.synthetic = syntheticAddress(r.now())
			}
			id = r.identity(s.synthetic, domain.SourceSynthetic)
		}
		if cacheable && s.gen == gen {
			s.cached = id
		}
		return id, nil
	})

	return v.(domain.ClientIdentity)
}

// Peek returns the override or cached identity of a session without running
// any strategy. Callers that must not block, such as the login path, use it.
func (r *Resolver) Peek(sessionID string) (domain.ClientIdentity, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Unknown ids are not recorded; they arrive straight from clients.
	s := r.sessions[sessionID]
	if s != nil {
		s.lastSeen = r.now()
	}

	switch {
	case s != nil && s.override != "":
		return r.identity(s.override, domain.SourceOverride), true
	case r.global != "":
		return r.identity(r.global, domain.SourceOverride), true
	case s != nil && !s.cached.IsZero():
		return s.cached, true
	}
	return domain.ClientIdentity{}, false
}

// SetOverride pins a session to an operator supplied address.
func (r *Resolver) SetOverride(sessionID, address string) (domain.ClientIdentity, error) {
	if sessionID == "" {
		return domain.ClientIdentity{}, fmt.Errorf("identity: empty session id")
	}
	addr, err := Normalize(address)
	if err != nil {
		return domain.ClientIdentity{}, fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.sessionLocked(sessionID)
	s.override = addr
	r.invalidateLocked(s)
	return r.identity(addr, domain.SourceOverride), nil
}

// ClearOverride removes a session override. The next resolve starts over.
func (r *Resolver) ClearOverride(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok || s.override == "" {
		return false
	}
	s.override = ""
	r.invalidateLocked(s)
	return true
}

// Invalidate drops the cached identity of a session. Its synthetic token is
// kept so the session stays stable if the chain is still empty.
func (r *Resolver) Invalidate(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[sessionID]; ok {
		r.invalidateLocked(s)
	}
}

// Prune forgets sessions not seen for longer than olderThan and returns how
// many were removed.
func (r *Resolver) Prune(olderThan time.Duration) int {
	cutoff := r.now().Add(-olderThan)

	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for id, s := range r.sessions {
		if s.lastSeen.Before(cutoff) {
			delete(r.sessions, id)
			n++
		}
	}
	return n
}

// runChain walks the strategies in priority order. The bool reports whether
// the result may be cached; override sourced results never are.
func (r *Resolver) runChain(ctx context.Context, req Request) (domain.ClientIdentity, bool) {
	log := slogx.FromContext(ctx)

	r.mu.RLock()
	chain := make([]Strategy, 0, len(r.strategies))
	for _, src := range priority {
		chain = append(chain, r.strategies[src]...)
	}
	r.mu.RUnlock()

	for _, s := range chain {
		addr, err := r.lookup(ctx, s, req)
		if err != nil {
			log.Debug("identity strategy produced nothing", "source", s.Source(), "error", err)
			continue
		}
		return r.identity(addr, s.Source()), s.Source() != domain.SourceOverride
	}

	log.Debug("identity strategies exhausted", "session_id", req.Session.ID)
	return domain.ClientIdentity{}, true
}

func (r *Resolver) lookup(ctx context.Context, s Strategy, req Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	type result struct {
		addr string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		addr, err := s.Lookup(ctx, req)
		done <- result{addr, err}
	}()

	// Strategies are expected to honour ctx, but a misbehaving one must not
	// hold the chain past its deadline.
	select {
	case res := <-done:
		if res.err != nil {
			return "", res.err
		}
		return Normalize(res.addr)
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (r *Resolver) identity(addr string, src domain.IdentitySource) domain.ClientIdentity {
	return domain.ClientIdentity{
		Address:    addr,
		Source:     src,
		Confidence: domain.ConfidenceOf(src),
		ResolvedAt: r.now().UTC(),
	}
}

// sessionLocked returns the state for id, creating it. r.mu must be held for
// writing.
func (r *Resolver) sessionLocked(id string) *session {
	s, ok := r.sessions[id]
	if !ok {
		s = &session{lastSeen: r.now()}
		r.sessions[id] = s
	}
	return s
}

func (r *Resolver) invalidateLocked(s *session) {
	s.cached = domain.ClientIdentity{}
	s.gen++
}
