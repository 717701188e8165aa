package session

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/user"
)

// Options configures a Store. Tokens is required.
type Options struct {
	Tokens   TokenStorage
	Profiles ProfileCache // defaults to no caching
	Verifier *Verifier    // defaults to a private Verifier over the Store's Authenticator
	Logger   core.Logger
	NowFunc  func() time.Time
}

// Store is the single source of truth for who is logged in on one client.
// It is mutated only by Restore, Login and Logout; everything else reads Snapshots.
type Store struct {
	auth     Authenticator
	tokens   TokenStorage
	profiles ProfileCache
	verifier *Verifier
	logger   core.Logger
	nowFunc  func() time.Time

	mu       sync.Mutex
	snap     Snapshot
	gen      uint64 // bumped by every mutation; stale confirmations compare against it
	resolved chan struct{}
	closed   bool
	subs     map[int]func(Snapshot)
	nextSub  int
}

func NewStore(auth Authenticator, opts Options) *Store {
	s := &Store{
		auth:     auth,
		tokens:   opts.Tokens,
		profiles: opts.Profiles,
		verifier: opts.Verifier,
		logger:   opts.Logger,
		nowFunc:  opts.NowFunc,
		snap:     Snapshot{State: Pending},
		resolved: make(chan struct{}),
		subs:     make(map[int]func(Snapshot)),
	}
	if s.tokens == nil {
		s.tokens = NewMemoryTokens("")
	}
	if s.profiles == nil {
		s.profiles = noCache{}
	}
	if s.verifier == nil {
		s.verifier = NewVerifier(auth, 0)
	}
	if s.logger == nil {
		s.logger = core.NopLogger()
	}
	if s.nowFunc == nil {
		s.nowFunc = time.Now
	}
	return s
}

// Snapshot returns the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// Subscribe registers fn to be called after every state change. The returned func unregisters it.
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Wait blocks until the Store is no longer Pending, or ctx is done.
func (s *Store) Wait(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	ch := s.resolved
	s.mu.Unlock()

	select {
	case <-ch:
		return s.Snapshot(), nil
	case <-ctx.Done():
		return s.Snapshot(), ctx.Err()
	}
}

// Restore resolves the session from the persisted token.
// It returns immediately: when the token still has to be confirmed by the backend the returned Snapshot is Pending
// and the Store resolves in the background; use Wait to block on it.
func (s *Store) Restore(ctx context.Context) Snapshot {
	gen := s.begin()

	token, err := s.tokens.Token()
	if err != nil {
		s.logger.Warn("session: reading persisted token", errors.Wrap(err, "restore"))
		return s.apply(gen, Snapshot{State: Anonymous})
	}
	if token == "" {
		return s.apply(gen, Snapshot{State: Anonymous})
	}

	if tokenExpired(token, s.nowFunc()) {
		s.discard(ctx, token)
		return s.apply(gen, Snapshot{State: Anonymous})
	}

	usr, err := s.profiles.Get(ctx, token)
	if err == nil {
		return s.apply(gen, authenticated(usr, token))
	}
	if errors.Cause(err) != ErrProfileNotFound {
		s.logger.Warn("session: reading cached profile", errors.Wrap(err, "restore"))
	}

	ch := s.verifier.Verify(token)
	go s.awaitVerification(gen, token, ch)
	return s.Snapshot()
}

func (s *Store) awaitVerification(gen uint64, token string, ch <-chan Verification) {
	res := <-ch
	ctx := context.Background()

	switch {
	case res.Err == nil:
		if err := s.profiles.Set(ctx, token, res.User); err != nil {
			s.logger.Warn("session: caching profile", errors.Wrap(err, "restore"), res.User)
		}
		s.apply(gen, authenticated(res.User, token))
	case errors.Is(res.Err, core.ErrAuthExpired):
		if s.current(gen) {
			s.discard(ctx, token)
		}
		s.apply(gen, Snapshot{State: Anonymous})
	default:
		// keep the token: a later call may still confirm it
		s.logger.Warn("session: confirming restored token", errors.Wrap(res.Err, "restore"))
		s.apply(gen, Snapshot{State: Anonymous})
	}
}

// Login authenticates with the backend and, on success, persists the token and becomes Authenticated.
// On failure the Store is left unchanged and the returned error carries the server's message.
func (s *Store) Login(ctx context.Context, email, password string) (Session, error) {
	usr, token, err := s.auth.Login(ctx, email, password)
	if err != nil {
		return Session{}, classify(err)
	}
	if err := s.tokens.SetToken(token); err != nil {
		return Session{}, errors.Wrap(err, "persisting token")
	}
	if err := s.profiles.Set(ctx, token, usr); err != nil {
		s.logger.Warn("session: caching profile", errors.Wrap(err, "login"), usr)
	}

	gen := s.begin()
	snap := s.apply(gen, authenticated(usr, token))
	return *snap.Session, nil
}

// Logout clears the session and the persisted token. It never contacts the backend and is idempotent.
func (s *Store) Logout(ctx context.Context) error {
	gen := s.begin()

	var errs []error
	token, err := s.tokens.Token()
	if err != nil {
		errs = append(errs, err)
	}
	if err := s.tokens.ClearToken(); err != nil {
		errs = append(errs, err)
	}
	if token != "" {
		if err := s.profiles.Delete(ctx, token); err != nil {
			s.logger.Warn("session: dropping cached profile", errors.Wrap(err, "logout"))
		}
	}
	s.apply(gen, Snapshot{State: Anonymous})

	if len(errs) > 0 {
		return errors.Wrap(errs[0], "clearing persisted token")
	}
	return nil
}

// HandleAuthFailure logs out when err says the backend no longer accepts the token. It reports whether it did.
func (s *Store) HandleAuthFailure(ctx context.Context, err error) bool {
	if !errors.Is(err, core.ErrAuthExpired) {
		return false
	}
	if lErr := s.Logout(ctx); lErr != nil {
		s.logger.Warn("session: forced logout", lErr)
	}
	return true
}

// begin starts a new mutation, superseding any confirmation still in flight.
func (s *Store) begin() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	if s.closed {
		s.resolved = make(chan struct{})
		s.closed = false
	}
	s.snap = Snapshot{State: Pending}
	return s.gen
}

func (s *Store) current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen == gen
}

// apply sets snap if gen is still current, wakes waiters and notifies subscribers.
func (s *Store) apply(gen uint64, snap Snapshot) Snapshot {
	s.mu.Lock()
	if s.gen != gen {
		cur := s.snap
		s.mu.Unlock()
		return cur
	}
	s.snap = snap
	if snap.State != Pending && !s.closed {
		close(s.resolved)
		s.closed = true
	}
	subs := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
	return snap
}

// discard forgets a token the backend will not accept anymore.
func (s *Store) discard(ctx context.Context, token string) {
	if err := s.tokens.ClearToken(); err != nil {
		s.logger.Warn("session: clearing expired token", err)
	}
	if err := s.profiles.Delete(ctx, token); err != nil {
		s.logger.Warn("session: dropping cached profile", err)
	}
}

func authenticated(usr user.User, token string) Snapshot {
	return Snapshot{State: Authenticated, Session: &Session{User: usr, Token: token}}
}

// classify maps a login failure onto the error taxonomy. Anything unrecognised is a network error.
func classify(err error) error {
	if errors.Is(err, core.ErrInvalidCredentials) || errors.Is(err, core.ErrNetwork) {
		return err
	}
	msg := core.ErrorMessage(err)
	if msg == "" {
		msg = "Login failed"
	}
	return core.NewRequestError(core.ErrNetwork, msg, err)
}
