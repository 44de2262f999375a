package authkit

import (
	"context"
	"errors"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/vantagecms/authkit/broadcast"
	"github.com/vantagecms/authkit/internal/schedule"
	"github.com/vantagecms/authkit/internal/singleflight"
	"github.com/vantagecms/authkit/store"
	"github.com/vantagecms/authkit/token"
)

// Manager defines a public type used by authkit APIs.
//
// Manager instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
// Manager owns the in-memory session exclusively: the persisted refresh token
// and the renewal timer are each a single systemwide resource per process, and
// all mutation goes through Manager methods. Methods are safe to call from
// multiple goroutines after initialization through [Builder.Build].
type Manager struct {
	config    Config
	backend   Backend
	store     store.Store
	caster    broadcast.Broadcaster
	codec     token.Codec
	scheduler *schedule.Scheduler
	flight    singleflight.Group
	metrics   *Metrics
	events    *eventDispatcher

	mu           sync.Mutex
	user         *User
	accessToken  string
	refreshToken string
	permissions  map[string]struct{}
	status       Status
	ready        bool
	bootstrapped bool
	closed       bool
}

// Close describes the close operation and its observable behavior.
//
// Close does not mutate shared global state beyond the manager and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) Close() {
	if m == nil {
		return
	}
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.mu.Unlock()

	m.scheduler.Disarm()
	m.flight.Reset(ErrManagerClosed)
	if m.caster != nil {
		if err := m.caster.Close(); err != nil {
			log.Print("authkit: broadcaster close failed")
		}
	}
	m.events.Close()
}

// EventsDropped describes the eventsdropped operation and its observable behavior.
//
// EventsDropped does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) EventsDropped() uint64 {
	if m == nil {
		return 0
	}
	return m.events.Dropped()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) MetricsSnapshot() MetricsSnapshot {
	if m == nil || m.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return m.metrics.Snapshot()
}

func (m *Manager) metricInc(id MetricID) {
	if m == nil || m.metrics == nil {
		return
	}
	m.metrics.Inc(id)
}

// Snapshot describes the snapshot operation and its observable behavior.
//
// Snapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Snapshot{
		Status:        m.status,
		Ready:         m.ready,
		Authenticated: m.status == StatusAuthenticated || m.status == StatusRenewing,
	}
	if m.user != nil {
		u := *m.user
		s.User = &u
	}
	if len(m.permissions) > 0 {
		s.Permissions = make([]string, 0, len(m.permissions))
		for p := range m.permissions {
			s.Permissions = append(s.Permissions, p)
		}
		sort.Strings(s.Permissions)
	}
	return s
}

// AccessToken describes the accesstoken operation and its observable behavior.
//
// AccessToken does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) AccessToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accessToken
}

// IsAuthenticated describes the isauthenticated operation and its observable behavior.
//
// IsAuthenticated does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) IsAuthenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status == StatusAuthenticated || m.status == StatusRenewing
}

// Ready reports whether the initial bootstrap attempt has settled. UI layers
// must not redirect to or from protected routes before Ready is true.
func (m *Manager) Ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ready
}

// Bootstrap describes the bootstrap operation and its observable behavior.
//
// Bootstrap may return an error when input validation, dependency calls, or security checks fail.
// Bootstrap does not mutate shared global state beyond the manager and can be used concurrently when the receiver and dependencies are concurrently safe.
// It runs at most once per Manager: if a persisted refresh token exists, one
// renewal is attempted; on any failure storage is cleared and the session
// transitions to unauthenticated. Ready becomes true exactly once, after the
// attempt settles.
func (m *Manager) Bootstrap(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrManagerClosed
	}
	if m.bootstrapped {
		m.mu.Unlock()
		return nil
	}
	m.bootstrapped = true
	m.status = StatusBootstrapping
	m.mu.Unlock()

	refreshToken, err := m.store.RefreshToken(ctx)
	if err != nil {
		log.Print("authkit: refresh token read failed during bootstrap")
	}
	if refreshToken == "" {
		m.mu.Lock()
		m.status = StatusUnauthenticated
		m.mu.Unlock()
		m.setReady()
		return nil
	}

	if err := m.renew(ctx, refreshToken); err != nil {
		// Bootstrap failure is terminal regardless of classification: a stale
		// persisted token must not park the UI behind a broken session.
		if clearErr := m.store.Clear(ctx); clearErr != nil {
			log.Print("authkit: store clear failed during bootstrap")
		}
		m.mu.Lock()
		m.user = nil
		m.accessToken = ""
		m.refreshToken = ""
		m.permissions = nil
		m.status = StatusUnauthenticated
		m.mu.Unlock()
		m.scheduler.Disarm()
		m.metricInc(MetricBootstrapFailure)
		m.setReady()
		return err
	}

	m.metricInc(MetricBootstrapSuccess)
	m.setReady()
	return nil
}

func (m *Manager) setReady() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.ready {
		m.ready = true
	}
}

// Login describes the login operation and its observable behavior.
//
// Login may return an error when input validation, dependency calls, or security checks fail.
// Login does not mutate shared global state beyond the manager and can be used concurrently when the receiver and dependencies are concurrently safe.
// On failure the error propagates without mutating session state.
func (m *Manager) Login(ctx context.Context, email, password string) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrManagerClosed
	}
	m.mu.Unlock()

	grant, err := m.backend.Login(ctx, email, password)
	if err != nil {
		m.metricInc(MetricLoginFailure)
		return err
	}
	if grant == nil || grant.AccessToken == "" || grant.RefreshToken == "" {
		m.metricInc(MetricLoginFailure)
		return errors.Join(ErrTransient, errors.New("backend returned incomplete grant"))
	}

	m.applyGrant(ctx, grant, broadcast.KindLogin)
	m.metricInc(MetricLoginSuccess)
	m.emitEvent(ctx, EventLogin, grant.User.ID, false, nil)
	return nil
}

// Renew describes the renew operation and its observable behavior.
//
// Renew may return an error when input validation, dependency calls, or security checks fail.
// Renew does not mutate shared global state beyond the manager and can be used concurrently when the receiver and dependencies are concurrently safe.
// Concurrent callers share a single network renewal and observe the same
// outcome. An [ErrAuthRejected] failure is terminal: session state and storage
// are cleared and one session-expired notice is surfaced. Transient failures
// propagate untouched so the caller may retry; the scheduler's next proactive
// fire will try again.
func (m *Manager) Renew(ctx context.Context) error {
	return m.renew(ctx, "")
}

func (m *Manager) renew(ctx context.Context, explicitRefreshToken string) error {
	shared, err := m.flight.Do(ctx, func() error {
		return m.renewOnce(ctx, explicitRefreshToken)
	})
	if shared {
		m.metricInc(MetricRenewJoined)
	}
	return err
}

func (m *Manager) renewOnce(ctx context.Context, explicitRefreshToken string) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrManagerClosed
	}
	refreshToken := explicitRefreshToken
	if refreshToken == "" {
		refreshToken = m.refreshToken
	}
	if refreshToken == "" {
		m.mu.Unlock()
		return ErrNoRefreshToken
	}
	previous := m.status
	if m.status == StatusAuthenticated {
		m.status = StatusRenewing
	}
	m.mu.Unlock()

	start := time.Now()
	grant, err := m.backend.Renew(ctx, refreshToken)
	if m.metrics.LatencyEnabled() {
		m.metrics.Observe(MetricRenewLatency, time.Since(start))
	}
	if err != nil {
		if IsAuthRejected(err) {
			m.metricInc(MetricRenewRejected)
			m.expire(ctx, err)
			return err
		}
		m.metricInc(MetricRenewFailure)
		m.mu.Lock()
		if m.status == StatusRenewing {
			m.status = previous
		}
		m.mu.Unlock()
		return err
	}
	if grant == nil || grant.AccessToken == "" || grant.RefreshToken == "" {
		m.metricInc(MetricRenewFailure)
		m.mu.Lock()
		if m.status == StatusRenewing {
			m.status = previous
		}
		m.mu.Unlock()
		return errors.Join(ErrTransient, errors.New("backend returned incomplete grant"))
	}

	m.applyGrant(ctx, grant, broadcast.KindRenewed)
	m.metricInc(MetricRenewSuccess)
	m.emitEvent(ctx, EventRenewed, grant.User.ID, false, nil)
	return nil
}

// Logout describes the logout operation and its observable behavior.
//
// Logout may return an error when input validation, dependency calls, or security checks fail.
// Logout does not mutate shared global state beyond the manager and can be used concurrently when the receiver and dependencies are concurrently safe.
// The backend notification is best-effort; local state, storage, and the
// renewal timer are cleared unconditionally, and a logged-out broadcast is
// published so sibling contexts follow. The only returned error is
// [ErrManagerClosed]; a failed backend notification never fails the local
// logout.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrManagerClosed
	}
	accessToken := m.accessToken
	m.mu.Unlock()

	if accessToken != "" {
		if err := m.backend.Logout(ctx, accessToken); err != nil {
			log.Print("authkit: backend logout notification failed")
		}
	}

	// Queued renew callers must not resurrect the session they were renewing.
	m.flight.Reset(ErrNoRefreshToken)

	wasAuthenticated := m.clearSession(ctx)
	m.publish(ctx, broadcast.KindLoggedOut, nil)
	if wasAuthenticated {
		m.metricInc(MetricLogout)
		m.emitEvent(ctx, EventLoggedOut, "", false, nil)
	}
	return nil
}

// expire is the terminal renewal-failure path: the backend rejected the
// refresh token itself.
func (m *Manager) expire(ctx context.Context, cause error) {
	wasAuthenticated := m.clearSession(ctx)
	m.publish(ctx, broadcast.KindLoggedOut, nil)
	if wasAuthenticated {
		m.metricInc(MetricSessionExpired)
		m.emitEvent(ctx, EventSessionExpired, "", false, cause)
	}
}

// clearSession wipes in-memory state, the timer, and storage. It reports
// whether the session was authenticated before the wipe, which gates the
// single user-facing notice per logout transition.
func (m *Manager) clearSession(ctx context.Context) bool {
	m.mu.Lock()
	wasAuthenticated := m.status == StatusAuthenticated || m.status == StatusRenewing
	m.user = nil
	m.accessToken = ""
	m.refreshToken = ""
	m.permissions = nil
	m.status = StatusUnauthenticated
	m.mu.Unlock()

	m.scheduler.Disarm()
	if err := m.store.Clear(ctx); err != nil {
		log.Print("authkit: store clear failed")
	}
	return wasAuthenticated
}

// applyGrant installs a successful login/renewal: session fields, persistence,
// the renewal timer, and the sibling broadcast, in that order.
func (m *Manager) applyGrant(ctx context.Context, grant *Grant, kind broadcast.Kind) {
	user := grant.User

	m.mu.Lock()
	m.user = &user
	m.accessToken = grant.AccessToken
	m.refreshToken = grant.RefreshToken
	m.permissions = permissionSet(grant.Permissions)
	m.status = StatusAuthenticated
	m.mu.Unlock()

	if err := m.store.SetRefreshToken(ctx, grant.RefreshToken); err != nil {
		log.Print("authkit: refresh token persist failed")
	}
	if m.config.Session.PersistAccessToken {
		if err := m.store.SetAccessToken(ctx, grant.AccessToken); err != nil {
			log.Print("authkit: access token persist failed")
		}
	}

	m.scheduler.Arm(grant.AccessToken, m.onScheduledRenewal)
	m.publish(ctx, kind, grantPayload(grant))
}

// onScheduledRenewal is the proactive timer callback. Failure handling lives
// entirely in renewOnce; the scheduler never retries on its own.
func (m *Manager) onScheduledRenewal() {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return
	}

	if err := m.Renew(context.Background()); err != nil {
		if !IsAuthRejected(err) && !errors.Is(err, ErrNoRefreshToken) {
			log.Print("authkit: scheduled renewal failed")
		}
	}
}

func (m *Manager) emitEvent(ctx context.Context, kind EventKind, userID string, remote bool, cause error) {
	if m.events == nil {
		return
	}
	event := Event{
		Timestamp: time.Now(),
		Kind:      kind,
		UserID:    userID,
		Remote:    remote,
	}
	if cause != nil {
		event.Error = cause.Error()
	}
	m.events.Emit(ctx, event)
}

func permissionSet(perms []string) map[string]struct{} {
	if len(perms) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(perms))
	for _, p := range perms {
		if p == "" {
			continue
		}
		set[p] = struct{}{}
	}
	return set
}
