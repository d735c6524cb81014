package session

import (
	"context"
	"log/slog"
	"sync"
)

// Provider tracks the current session from the initial probe and the auth
// change stream, and notifies subscribers when loading completes or the
// signed-in identity changes.
type Provider struct {
	auth   Authenticator
	logger *slog.Logger

	mu     sync.RWMutex
	state  State
	subs   map[int]chan State
	nextID int
}

// NewProvider returns a Provider in the loading state.
func NewProvider(auth Authenticator, logger *slog.Logger) *Provider {
	return &Provider{
		auth:   auth,
		logger: logger,
		state:  State{Loading: true},
		subs:   make(map[int]chan State),
	}
}

// Current returns a copy of the current state.
func (p *Provider) Current() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return State{Session: clone(p.state.Session), Loading: p.state.Loading}
}

// AccessToken returns the bearer token of the current session, or "".
func (p *Provider) AccessToken() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.state.Session == nil {
		return ""
	}
	return p.state.Session.AccessToken
}

// Subscribe returns a channel carrying the latest state after each
// notification. Slow readers only ever see the most recent state.
func (p *Provider) Subscribe() (<-chan State, func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextID
	p.nextID++
	ch := make(chan State, 1)
	p.subs[id] = ch
	if !p.state.Loading {
		ch <- State{Session: clone(p.state.Session)}
	}
	return ch, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if _, ok := p.subs[id]; ok {
			delete(p.subs, id)
			close(ch)
		}
	}
}

// Run performs the initial probe and then follows the change stream until
// ctx is done or the stream closes. A failed probe resolves to no session.
func (p *Provider) Run(ctx context.Context) error {
	changes, unsubscribe := p.auth.Subscribe()
	defer unsubscribe()

	sess, err := p.auth.CurrentSession(ctx)
	if err != nil {
		p.logger.Warn("initial session probe failed", "error", err)
		sess = nil
	}
	p.apply(sess)

	for {
		select {
		case <-ctx.Done():
			return nil
		case change, ok := <-changes:
			if !ok {
				return nil
			}
			p.logger.Debug("auth state changed", "event", change.Event)
			p.apply(change.Session)
		}
	}
}

// SignOut ends the session remotely and clears it locally.
func (p *Provider) SignOut(ctx context.Context) error {
	if err := p.auth.SignOut(ctx); err != nil {
		return err
	}
	p.apply(nil)
	return nil
}

func (p *Provider) apply(sess *Session) {
	p.mu.Lock()
	defer p.mu.Unlock()

	wasLoading := p.state.Loading
	changed := !SameUser(p.state.Session, sess)
	p.state = State{Session: clone(sess)}

	if !wasLoading && !changed {
		return
	}
	if changed {
		p.logger.Info("session changed", "present", sess != nil)
	}
	for _, ch := range p.subs {
		next := State{Session: clone(sess)}
		select {
		case ch <- next:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- next
		}
	}
}
