// Package store is the synchronization store: the single owner of the
// per-user record cache and of every remote read and write that touches it.
package store

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/350ops/walleybranch/internal/backend"
	"github.com/350ops/walleybranch/internal/domain"
	"github.com/350ops/walleybranch/internal/lifecycle"
	"github.com/350ops/walleybranch/internal/session"
)

const tracerName = "github.com/350ops/walleybranch/internal/store"

// ErrUnauthenticated is returned by mutations attempted without a session.
var ErrUnauthenticated = errors.New("store: no authenticated user")

type cache struct {
	profile       *domain.Profile
	cards         []domain.Card
	recipients    []domain.Recipient
	transactions  []domain.Transaction
	settings      *domain.UserSettings
	notifications []domain.Notification
	account       *domain.Account

	// accountKnownAbsent is set when the last account read found no row.
	accountKnownAbsent bool
}

// Snapshot is a point-in-time copy of the cache.
type Snapshot struct {
	UserID        string                `json:"userId,omitempty"`
	Hydrated      bool                  `json:"hydrated"`
	Loading       map[Entity]bool       `json:"loading"`
	Revisions     map[Entity]uint64     `json:"revisions"`
	Profile       *domain.Profile       `json:"profile"`
	Cards         []domain.Card         `json:"cards"`
	Recipients    []domain.Recipient    `json:"recipients"`
	Transactions  []domain.Transaction  `json:"transactions"`
	Settings      *domain.UserSettings  `json:"userSettings"`
	Notifications []domain.Notification `json:"notifications"`
	Account       *domain.Account       `json:"account"`
}

// Store holds the cache for the current session user.
type Store struct {
	src     backend.Source
	logger  *slog.Logger
	tracer  trace.Tracer
	events  ChangePublisher
	opening decimal.Decimal
	nowFn   func() time.Time

	mu        sync.Mutex
	session   *session.Session
	gen       uint64
	hydrated  bool
	loading   map[Entity]int
	revisions map[Entity]uint64
	cache     cache
	subs      map[int]chan struct{}
	nextSub   int

	// cardMu serializes card creation so the clear-then-insert pair of one
	// call never interleaves with another.
	cardMu sync.Mutex

	wg sync.WaitGroup
}

// Option configures a Store.
type Option func(*Store)

// WithPublisher sets the sink for change events.
func WithPublisher(p ChangePublisher) Option {
	return func(s *Store) {
		if p != nil {
			s.events = p
		}
	}
}

// WithTracer overrides the tracer used for refresh and mutation spans.
func WithTracer(t trace.Tracer) Option {
	return func(s *Store) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithOpeningBalance makes the store create the account with the given
// balance after a full refresh finds none. Zero disables seeding.
func WithOpeningBalance(amount decimal.Decimal) Option {
	return func(s *Store) {
		s.opening = amount
	}
}

// WithClock overrides the time provider used to stamp change events.
func WithClock(nowFn func() time.Time) Option {
	return func(s *Store) {
		if nowFn != nil {
			s.nowFn = nowFn
		}
	}
}

// New constructs an empty, unhydrated store.
func New(src backend.Source, logger *slog.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		src:       src,
		logger:    logger.With("component", "store"),
		tracer:    otel.Tracer(tracerName),
		events:    noopPublisher{},
		nowFn:     time.Now,
		loading:   map[Entity]int{},
		revisions: map[Entity]uint64{},
		subs:      map[int]chan struct{}{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetSession installs the session used to scope every read and write. A
// change of user identity drops the cache and invalidates in-flight work;
// a token-only change keeps the cache.
func (s *Store) SetSession(sess *session.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	identityChanged := !session.SameUser(s.session, sess)
	if sess != nil {
		c := *sess
		s.session = &c
	} else {
		s.session = nil
	}
	if !identityChanged {
		return
	}
	s.gen++
	s.cache = cache{}
	s.hydrated = false
	s.loading = map[Entity]int{}
	for _, e := range Entities {
		s.revisions[e]++
	}
	s.notifyLocked()
}

// current returns the session user id and the generation it belongs to.
func (s *Store) current() (string, uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return "", s.gen, false
	}
	return s.session.UserID, s.gen, true
}

// RefreshAll reloads every entity for the current session. Without a session
// it clears the cache. Either way the store is hydrated on return.
func (s *Store) RefreshAll(ctx context.Context) {
	userID, gen, ok := s.current()
	if !ok {
		s.mu.Lock()
		if s.session == nil {
			s.clearLocked()
			s.hydrated = true
			s.notifyLocked()
		}
		s.mu.Unlock()
		return
	}

	ctx, span := s.tracer.Start(ctx, "store.RefreshAll", trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	outcomes := settleAll(ctx, Entities, func(ctx context.Context, e Entity) error {
		return s.refresh(ctx, e, userID, gen)
	})
	failed := 0
	for _, o := range outcomes {
		if o.Err != nil {
			failed++
			s.logger.Warn("refresh failed", "entity", o.Key, "userId", userID, "error", o.Err)
		}
	}
	span.SetAttributes(attribute.Int("refresh.failed", failed))

	s.mu.Lock()
	stale := s.gen != gen
	seed := !stale && s.cache.accountKnownAbsent && s.opening.IsPositive()
	if !stale {
		s.hydrated = true
		s.notifyLocked()
	}
	s.mu.Unlock()
	if stale {
		s.logger.Debug("discarding refresh for previous session", "userId", userID)
		return
	}

	if seed {
		if err := s.SetBalance(ctx, s.opening); err != nil {
			s.logger.Warn("seed opening balance failed", "userId", userID, "error", err)
		}
	}
}

// Refresh reloads a single entity. Failures are logged and leave the cached
// value unchanged.
func (s *Store) Refresh(ctx context.Context, e Entity) {
	if _, ok := fetchers[e]; !ok {
		s.logger.Warn("refresh of unknown entity", "entity", e)
		return
	}
	userID, gen, ok := s.current()
	if !ok {
		s.mu.Lock()
		if s.session == nil {
			s.clearSlotLocked(e)
			s.revisions[e]++
			s.notifyLocked()
		}
		s.mu.Unlock()
		return
	}

	ctx, span := s.tracer.Start(ctx, "store.Refresh", trace.WithAttributes(
		attribute.String("user.id", userID),
		attribute.String("entity", string(e)),
	))
	defer span.End()

	if err := s.refresh(ctx, e, userID, gen); err != nil {
		span.RecordError(err)
		s.logger.Warn("refresh failed", "entity", e, "userId", userID, "error", err)
	}
}

func (s *Store) RefreshProfile(ctx context.Context) { s.Refresh(ctx, EntityProfile) }
func (s *Store) RefreshCards(ctx context.Context) { s.Refresh(ctx, EntityCards) }
func (s *Store) RefreshRecipients(ctx context.Context) { s.Refresh(ctx, EntityRecipients) }
func (s *Store) RefreshTransactions(ctx context.Context) { s.Refresh(ctx, EntityTransactions) }
func (s *Store) RefreshUserSettings(ctx context.Context) { s.Refresh(ctx, EntitySettings) }
func (s *Store) RefreshNotifications(ctx context.Context) { s.Refresh(ctx, EntityNotifications) }
func (s *Store) RefreshAccount(ctx context.Context) { s.Refresh(ctx, EntityAccount) }

// refresh runs one fetcher and applies its result if gen is still current.
func (s *Store) refresh(ctx context.Context, e Entity, userID string, gen uint64) error {
	s.setLoading(e, gen, 1)
	defer s.setLoading(e, gen, -1)

	patch, dropped, err := fetchers[e](ctx, s.src, userID)
	if err != nil {
		return err
	}
	if len(dropped) > 0 {
		s.logger.Warn("dropped invalid rows", "entity", e, "count", len(dropped), "error", errors.Join(dropped...))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return nil
	}
	patch(&s.cache)
	s.revisions[e]++
	s.notifyLocked()
	return nil
}

func (s *Store) setLoading(e Entity, gen uint64, delta int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return
	}
	before := s.loading[e] > 0
	s.loading[e] += delta
	if s.loading[e] <= 0 {
		delete(s.loading, e)
	}
	if before != (s.loading[e] > 0) {
		s.notifyLocked()
	}
}

func (s *Store) clearLocked() {
	s.cache = cache{}
	for _, e := range Entities {
		s.revisions[e]++
	}
}

func (s *Store) clearSlotLocked(e Entity) {
	switch e {
	case EntityProfile:
		s.cache.profile = nil
	case EntityCards:
		s.cache.cards = nil
	case EntityRecipients:
		s.cache.recipients = nil
	case EntityTransactions:
		s.cache.transactions = nil
	case EntitySettings:
		s.cache.settings = nil
	case EntityNotifications:
		s.cache.notifications = nil
	case EntityAccount:
		s.cache.account = nil
		s.cache.accountKnownAbsent = false
	}
}

// Snapshot returns a deep copy of the cache.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Hydrated:      s.hydrated,
		Loading:       make(map[Entity]bool, len(Entities)),
		Revisions:     make(map[Entity]uint64, len(Entities)),
		Cards:         append([]domain.Card{}, s.cache.cards...),
		Recipients:    append([]domain.Recipient{}, s.cache.recipients...),
		Transactions:  append([]domain.Transaction{}, s.cache.transactions...),
		Notifications: append([]domain.Notification{}, s.cache.notifications...),
	}
	if s.session != nil {
		snap.UserID = s.session.UserID
	}
	for _, e := range Entities {
		snap.Loading[e] = s.loading[e] > 0
		snap.Revisions[e] = s.revisions[e]
	}
	if p := s.cache.profile; p != nil {
		c := *p
		snap.Profile = &c
	}
	if st := s.cache.settings; st != nil {
		c := *st
		c.PushTokens = append([]string(nil), st.PushTokens...)
		snap.Settings = &c
	}
	if a := s.cache.account; a != nil {
		c := *a
		snap.Account = &c
	}
	return snap
}

// Hydrated reports whether the first refresh after the last identity change
// has completed.
func (s *Store) Hydrated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hydrated
}

// Subscribe returns a channel signalled after every cache change. Signals
// coalesce: a slow reader sees at most one pending notification.
func (s *Store) Subscribe() (<-chan struct{}, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	ch := make(chan struct{}, 1)
	s.subs[id] = ch
	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

func (s *Store) notifyLocked() {
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Run drives the refresh trigger policy until ctx is done: one full refresh
// for every settled session state, and one whenever the process returns to
// the foreground while signed in.
func (s *Store) Run(ctx context.Context, sessions <-chan session.State, transitions <-chan lifecycle.Transition) error {
	defer s.wg.Wait()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case st, ok := <-sessions:
			if !ok {
				sessions = nil
				continue
			}
			if st.Loading {
				continue
			}
			s.SetSession(st.Session)
			s.goRefreshAll(ctx)
		case tr, ok := <-transitions:
			if !ok {
				transitions = nil
				continue
			}
			if !tr.Foregrounded() {
				continue
			}
			if _, _, signedIn := s.current(); signedIn {
				s.logger.Debug("foregrounded, refreshing")
				s.goRefreshAll(ctx)
			}
		}
	}
}

func (s *Store) goRefreshAll(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.RefreshAll(ctx)
	}()
}

func recordSpanError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
