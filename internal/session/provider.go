package session

import (
	"context"
	"sync"

	"github.com/npezzotti/go-fellowship/internal/types"
	"github.com/rs/zerolog"
)

type Session struct {
	User  types.User `json:"user"`
	Token string     `json:"token,omitempty"`
}

type SignUpRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
}

// Authenticator is the identity backend. CurrentSession returns nil when
// there is no session to restore.
type Authenticator interface {
	CurrentSession(ctx context.Context) (*Session, error)
	SignIn(ctx context.Context, email, password string) (Session, error)
	SignUp(ctx context.Context, req SignUpRequest) (Session, error)
	SignOut(ctx context.Context) error
}

type RoleFetcher interface {
	FetchRole(ctx context.Context, userId int) (string, error)
}

// State is a snapshot of the provider. Role is empty whenever User is nil.
type State struct {
	User    *types.User
	Token   string
	Role    string
	Loading bool
}

func (s State) SignedIn() bool {
	return s.User != nil
}

// Provider tracks the current session and publishes every change to its
// subscribers. Identity changes are published immediately; the role follows
// in a second publication once it has been fetched.
type Provider struct {
	auth  Authenticator
	roles RoleFetcher
	log   zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	state    State
	gen      uint64
	subs     map[int]func(State)
	nextSub  int
	pending  []State
	draining bool
	idle     *sync.Cond
	closed   bool
}

func NewProvider(auth Authenticator, roles RoleFetcher, log zerolog.Logger) *Provider {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Provider{
		auth:   auth,
		roles:  roles,
		log:    log,
		ctx:    ctx,
		cancel: cancel,
		state:  State{Loading: true},
		subs:   make(map[int]func(State)),
	}
	p.idle = sync.NewCond(&p.mu)
	return p
}

func (p *Provider) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Subscribe registers fn for every subsequent state publication. The
// returned function removes it and may be called more than once.
func (p *Provider) Subscribe(fn func(State)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return func() {}
	}

	id := p.nextSub
	p.nextSub++
	p.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.subs, id)
			p.mu.Unlock()
		})
	}
}

// Init restores an existing session, if any, and ends the loading phase.
func (p *Provider) Init(ctx context.Context) {
	sess, err := p.auth.CurrentSession(ctx)
	if err != nil {
		p.log.Warn().Err(err).Msg("failed to restore session")
		sess = nil
	}
	p.setSession(sess)
}

func (p *Provider) SignIn(ctx context.Context, email, password string) error {
	sess, err := p.auth.SignIn(ctx, email, password)
	if err != nil {
		p.log.Warn().Err(err).Str("email", email).Msg("sign in failed")
		return signInError(err)
	}

	p.setSession(&sess)
	return nil
}

// SignUp registers a new account. The requested role is ignored and the
// account is always created as a member.
func (p *Provider) SignUp(ctx context.Context, email, password, firstName, lastName, requestedRole string) error {
	if requestedRole != "" && requestedRole != types.RoleMember {
		p.log.Info().Str("requested_role", requestedRole).Msg("ignoring requested role on sign up")
	}

	sess, err := p.auth.SignUp(ctx, SignUpRequest{
		Email:     email,
		Password:  password,
		FirstName: firstName,
		LastName:  lastName,
		Role:      types.RoleMember,
	})
	if err != nil {
		p.log.Warn().Err(err).Str("email", email).Msg("sign up failed")
		return signUpError(err)
	}

	p.setSession(&sess)
	return nil
}

// SignOut ends the backend session and clears local state. Local state is
// cleared even if the backend call fails.
func (p *Provider) SignOut(ctx context.Context) {
	if err := p.auth.SignOut(ctx); err != nil {
		p.log.Warn().Err(err).Msg("backend sign out failed")
	}
	p.setSession(nil)
}

// Close drops all subscribers and waits for in-flight role fetches.
func (p *Provider) Close() {
	p.mu.Lock()
	p.closed = true
	p.subs = make(map[int]func(State))
	p.pending = nil
	p.mu.Unlock()

	p.cancel()
	p.wg.Wait()
}

// Wait blocks until in-flight role fetches and their publications are done.
// It must not be called from a subscriber.
func (p *Provider) Wait() {
	p.wg.Wait()

	p.mu.Lock()
	for p.draining || len(p.pending) > 0 {
		p.idle.Wait()
	}
	p.mu.Unlock()
}

func (p *Provider) setSession(sess *Session) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}

	p.gen++
	gen := p.gen

	prev := p.state
	if sess == nil {
		p.state = State{}
	} else {
		user := sess.User
		p.state.User = &user
		p.state.Token = sess.Token
		if prev.User == nil || prev.User.Id != user.Id {
			p.state.Role = ""
		}
	}
	p.state.Loading = false
	p.enqueueLocked()

	if sess != nil {
		p.wg.Add(1)
		go p.fetchRole(gen, sess.User.Id)
	}
	p.mu.Unlock()

	p.drain()
}

func (p *Provider) fetchRole(gen uint64, userId int) {
	defer p.wg.Done()

	role, err := p.roles.FetchRole(p.ctx, userId)
	if err != nil {
		p.log.Warn().Err(err).Int("user_id", userId).Msg("role lookup failed, using default")
		role = types.RoleMember
	} else if role == "" {
		role = types.RoleMember
	}

	p.mu.Lock()
	if p.closed || gen != p.gen {
		p.mu.Unlock()
		p.log.Debug().Int("user_id", userId).Msg("discarding superseded role")
		return
	}
	p.state.Role = role
	p.enqueueLocked()
	p.mu.Unlock()

	p.drain()
}

func (p *Provider) enqueueLocked() {
	p.pending = append(p.pending, p.state)
}

// drain delivers queued snapshots in order. Only one goroutine drains at a
// time; others leave their snapshots to it.
func (p *Provider) drain() {
	p.mu.Lock()
	if p.draining {
		p.mu.Unlock()
		return
	}
	p.draining = true

	for len(p.pending) > 0 {
		next := p.pending[0]
		p.pending = p.pending[1:]

		subs := make([]func(State), 0, len(p.subs))
		for i := 0; i < p.nextSub; i++ {
			if fn, ok := p.subs[i]; ok {
				subs = append(subs, fn)
			}
		}
		p.mu.Unlock()

		for _, fn := range subs {
			p.deliver(fn, next)
		}

		p.mu.Lock()
	}

	p.draining = false
	p.idle.Broadcast()
	p.mu.Unlock()
}

func (p *Provider) deliver(fn func(State), s State) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error().Interface("panic", r).Msg("session subscriber panicked")
		}
	}()
	fn(s)
}
