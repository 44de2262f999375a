package authkit

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vantagecms/authkit/broadcast"
	"github.com/vantagecms/authkit/store"
	"github.com/vantagecms/authkit/token"
)

type fakeBackend struct {
	mu       sync.Mutex
	loginFn  func(ctx context.Context, email, password string) (*Grant, error)
	renewFn  func(ctx context.Context, refreshToken string) (*Grant, error)
	logoutFn func(ctx context.Context, accessToken string) error

	renewCalls  atomic.Int32
	logoutCalls atomic.Int32
}

func testGrant(suffix string) *Grant {
	return &Grant{
		User:         User{ID: "user-1", Email: "alice@example.com", Name: "Alice"},
		AccessToken:  "at-" + suffix,
		RefreshToken: "rt-" + suffix,
		Permissions:  []string{"articles:read", "articles:write"},
	}
}

func (b *fakeBackend) Login(ctx context.Context, email, password string) (*Grant, error) {
	b.mu.Lock()
	fn := b.loginFn
	b.mu.Unlock()
	if fn != nil {
		return fn(ctx, email, password)
	}
	if password != "correct-password-123" {
		return nil, ErrInvalidCredentials
	}
	return testGrant("login"), nil
}

func (b *fakeBackend) Renew(ctx context.Context, refreshToken string) (*Grant, error) {
	b.renewCalls.Add(1)
	b.mu.Lock()
	fn := b.renewFn
	b.mu.Unlock()
	if fn != nil {
		return fn(ctx, refreshToken)
	}
	return testGrant("renewed"), nil
}

func (b *fakeBackend) Logout(ctx context.Context, accessToken string) error {
	b.logoutCalls.Add(1)
	b.mu.Lock()
	fn := b.logoutFn
	b.mu.Unlock()
	if fn != nil {
		return fn(ctx, accessToken)
	}
	return nil
}

func (b *fakeBackend) setRenew(fn func(ctx context.Context, refreshToken string) (*Grant, error)) {
	b.mu.Lock()
	b.renewFn = fn
	b.mu.Unlock()
}

func newTestManager(t *testing.T, opts ...func(*Builder)) (*Manager, *fakeBackend) {
	t.Helper()

	backend := &fakeBackend{}
	b := New().
		WithBackend(backend).
		WithTokenCodec(token.FixedCodec{TTL: time.Hour}).
		WithMetricsEnabled(true)
	for _, opt := range opts {
		opt(b)
	}

	m, err := b.Build()
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	t.Cleanup(m.Close)

	return m, backend
}

func TestBootstrapWithoutPersistedToken(t *testing.T) {
	m, _ := newTestManager(t)

	if m.Ready() {
		t.Fatal("manager must not be ready before bootstrap")
	}
	if err := m.Bootstrap(context.Background()); err != nil {
		t.Fatalf("bootstrap failed: %v", err)
	}
	if !m.Ready() {
		t.Fatal("manager must be ready after bootstrap")
	}
	if m.IsAuthenticated() {
		t.Fatal("expected unauthenticated session")
	}
	if got := m.Snapshot().Status; got != StatusUnauthenticated {
		t.Fatalf("expected %v, got %v", StatusUnauthenticated, got)
	}
}

func TestBootstrapRestoresPersistedSession(t *testing.T) {
	shared := store.NewMemory()

	first, _ := newTestManager(t, func(b *Builder) { b.WithStore(shared) })
	if err := first.Bootstrap(context.Background()); err != nil {
		t.Fatalf("bootstrap failed: %v", err)
	}
	if err := first.Login(context.Background(), "alice@example.com", "correct-password-123"); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	first.Close()

	// A fresh process sharing the same store resumes the session.
	second, backend := newTestManager(t, func(b *Builder) { b.WithStore(shared) })
	if err := second.Bootstrap(context.Background()); err != nil {
		t.Fatalf("second bootstrap failed: %v", err)
	}
	if !second.IsAuthenticated() {
		t.Fatal("expected restored authenticated session")
	}
	if got := backend.renewCalls.Load(); got != 1 {
		t.Fatalf("expected one renewal during bootstrap, got %d", got)
	}

	snap := second.Snapshot()
	if snap.User == nil || snap.User.ID != "user-1" {
		t.Fatalf("expected restored user, got %+v", snap.User)
	}
	if !second.Can("articles:read") {
		t.Fatal("expected restored permissions")
	}
}

func TestBootstrapRejectedTokenClearsStorage(t *testing.T) {
	shared := store.NewMemory()
	if err := shared.SetRefreshToken(context.Background(), "stale-rt"); err != nil {
		t.Fatalf("seed store failed: %v", err)
	}

	m, backend := newTestManager(t, func(b *Builder) { b.WithStore(shared) })
	backend.setRenew(func(context.Context, string) (*Grant, error) {
		return nil, ErrAuthRejected
	})

	err := m.Bootstrap(context.Background())
	if !IsAuthRejected(err) {
		t.Fatalf("expected auth rejection, got %v", err)
	}
	if !m.Ready() {
		t.Fatal("manager must be ready even after failed bootstrap")
	}
	if m.IsAuthenticated() {
		t.Fatal("expected unauthenticated session")
	}

	remaining, err := shared.RefreshToken(context.Background())
	if err != nil {
		t.Fatalf("store read failed: %v", err)
	}
	if remaining != "" {
		t.Fatalf("expected cleared store, got %q", remaining)
	}
	if got := m.MetricsSnapshot().Counters[MetricBootstrapFailure]; got != 1 {
		t.Fatalf("expected one bootstrap failure, got %d", got)
	}
}

func TestBootstrapRunsOnce(t *testing.T) {
	m, backend := newTestManager(t)

	if err := m.Bootstrap(context.Background()); err != nil {
		t.Fatalf("bootstrap failed: %v", err)
	}
	if err := m.Bootstrap(context.Background()); err != nil {
		t.Fatalf("second bootstrap failed: %v", err)
	}
	if got := backend.renewCalls.Load(); got != 0 {
		t.Fatalf("expected no renewals, got %d", got)
	}
}

func TestLoginSuccess(t *testing.T) {
	m, _ := newTestManager(t)

	if err := m.Login(context.Background(), "alice@example.com", "correct-password-123"); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if !m.IsAuthenticated() {
		t.Fatal("expected authenticated session")
	}
	if got := m.AccessToken(); got != "at-login" {
		t.Fatalf("expected at-login, got %q", got)
	}

	rt, err := m.store.RefreshToken(context.Background())
	if err != nil {
		t.Fatalf("store read failed: %v", err)
	}
	if rt != "rt-login" {
		t.Fatalf("expected persisted refresh token, got %q", rt)
	}
	if got := m.MetricsSnapshot().Counters[MetricLoginSuccess]; got != 1 {
		t.Fatalf("expected one login success, got %d", got)
	}
}

func TestLoginFailureLeavesStateUntouched(t *testing.T) {
	m, _ := newTestManager(t)

	err := m.Login(context.Background(), "alice@example.com", "wrong")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if m.IsAuthenticated() {
		t.Fatal("failed login must not authenticate")
	}
	if got := m.AccessToken(); got != "" {
		t.Fatalf("expected empty access token, got %q", got)
	}
}

func TestRenewWithoutRefreshToken(t *testing.T) {
	m, _ := newTestManager(t)

	if err := m.Renew(context.Background()); !errors.Is(err, ErrNoRefreshToken) {
		t.Fatalf("expected ErrNoRefreshToken, got %v", err)
	}
}

func TestRenewRotatesTokenPair(t *testing.T) {
	m, backend := newTestManager(t)

	if err := m.Login(context.Background(), "alice@example.com", "correct-password-123"); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	backend.setRenew(func(_ context.Context, refreshToken string) (*Grant, error) {
		if refreshToken != "rt-login" {
			t.Errorf("expected rt-login, got %q", refreshToken)
		}
		return testGrant("rotated"), nil
	})

	if err := m.Renew(context.Background()); err != nil {
		t.Fatalf("renew failed: %v", err)
	}
	if got := m.AccessToken(); got != "at-rotated" {
		t.Fatalf("expected at-rotated, got %q", got)
	}

	rt, err := m.store.RefreshToken(context.Background())
	if err != nil {
		t.Fatalf("store read failed: %v", err)
	}
	if rt != "rt-rotated" {
		t.Fatalf("expected rotated refresh token persisted, got %q", rt)
	}
}

func TestRenewTransientFailureKeepsSession(t *testing.T) {
	m, backend := newTestManager(t)

	if err := m.Login(context.Background(), "alice@example.com", "correct-password-123"); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	transient := errors.Join(ErrTransient, errors.New("connection refused"))
	backend.setRenew(func(context.Context, string) (*Grant, error) {
		return nil, transient
	})

	err := m.Renew(context.Background())
	if !IsTransient(err) {
		t.Fatalf("expected transient error, got %v", err)
	}
	if !m.IsAuthenticated() {
		t.Fatal("transient renewal failure must not end the session")
	}
	if got := m.AccessToken(); got != "at-login" {
		t.Fatalf("expected original access token, got %q", got)
	}

	rt, err2 := m.store.RefreshToken(context.Background())
	if err2 != nil {
		t.Fatalf("store read failed: %v", err2)
	}
	if rt != "rt-login" {
		t.Fatalf("expected refresh token untouched, got %q", rt)
	}
}

func TestRenewRejectionExpiresSession(t *testing.T) {
	m, backend := newTestManager(t)

	if err := m.Login(context.Background(), "alice@example.com", "correct-password-123"); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	backend.setRenew(func(context.Context, string) (*Grant, error) {
		return nil, ErrAuthRejected
	})

	err := m.Renew(context.Background())
	if !IsAuthRejected(err) {
		t.Fatalf("expected auth rejection, got %v", err)
	}
	if m.IsAuthenticated() {
		t.Fatal("rejected renewal must end the session")
	}
	if got := m.AccessToken(); got != "" {
		t.Fatalf("expected cleared access token, got %q", got)
	}

	rt, err2 := m.store.RefreshToken(context.Background())
	if err2 != nil {
		t.Fatalf("store read failed: %v", err2)
	}
	if rt != "" {
		t.Fatalf("expected cleared store, got %q", rt)
	}

	counters := m.MetricsSnapshot().Counters
	if counters[MetricSessionExpired] != 1 {
		t.Fatalf("expected one session expiry, got %d", counters[MetricSessionExpired])
	}
	if counters[MetricRenewRejected] != 1 {
		t.Fatalf("expected one rejected renewal, got %d", counters[MetricRenewRejected])
	}
}

func TestConcurrentRenewalsShareOneCall(t *testing.T) {
	m, backend := newTestManager(t)

	if err := m.Login(context.Background(), "alice@example.com", "correct-password-123"); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	backend.renewCalls.Store(0)

	release := make(chan struct{})
	backend.setRenew(func(context.Context, string) (*Grant, error) {
		<-release
		return testGrant("shared"), nil
	})

	leaderDone := make(chan error, 1)
	go func() { leaderDone <- m.Renew(context.Background()) }()

	deadline := time.Now().Add(2 * time.Second)
	for !m.flight.InFlight() {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for renewal to start")
		}
		time.Sleep(time.Millisecond)
	}

	const n = 16
	var wg sync.WaitGroup
	wg.Add(n)
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			results <- m.Renew(context.Background())
		}()
	}
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()
	close(results)

	if err := <-leaderDone; err != nil {
		t.Fatalf("leader renewal failed: %v", err)
	}
	for err := range results {
		if err != nil {
			t.Fatalf("joined renewal failed: %v", err)
		}
	}
	if got := backend.renewCalls.Load(); got != 1 {
		t.Fatalf("expected exactly one network renewal, got %d", got)
	}
	if got := m.MetricsSnapshot().Counters[MetricRenewJoined]; got != n {
		t.Fatalf("expected %d joined renewals, got %d", n, got)
	}
}

func TestLogoutClearsSessionAndBlocksRenew(t *testing.T) {
	m, backend := newTestManager(t)

	if err := m.Login(context.Background(), "alice@example.com", "correct-password-123"); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	if err := m.Logout(context.Background()); err != nil {
		t.Fatalf("logout failed: %v", err)
	}

	if m.IsAuthenticated() {
		t.Fatal("expected unauthenticated session after logout")
	}
	if got := backend.logoutCalls.Load(); got != 1 {
		t.Fatalf("expected one backend logout call, got %d", got)
	}

	rt, err := m.store.RefreshToken(context.Background())
	if err != nil {
		t.Fatalf("store read failed: %v", err)
	}
	if rt != "" {
		t.Fatalf("expected cleared store, got %q", rt)
	}

	if err := m.Renew(context.Background()); !errors.Is(err, ErrNoRefreshToken) {
		t.Fatalf("expected ErrNoRefreshToken after logout, got %v", err)
	}
}

func TestLogoutBackendFailureStillClearsLocally(t *testing.T) {
	m, backend := newTestManager(t)
	backend.logoutFn = func(context.Context, string) error {
		return errors.Join(ErrTransient, errors.New("backend unreachable"))
	}

	if err := m.Login(context.Background(), "alice@example.com", "correct-password-123"); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	if err := m.Logout(context.Background()); err != nil {
		t.Fatalf("logout failed: %v", err)
	}
	if m.IsAuthenticated() {
		t.Fatal("local logout must succeed even when the backend call fails")
	}
}

func TestBroadcastLoginAppliedBySibling(t *testing.T) {
	hub := broadcast.NewHub()

	a, _ := newTestManager(t, func(b *Builder) { b.WithBroadcaster(hub.Join(0)) })
	sibling, siblingBackend := newTestManager(t, func(b *Builder) { b.WithBroadcaster(hub.Join(0)) })

	if err := a.Login(context.Background(), "alice@example.com", "correct-password-123"); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for !sibling.IsAuthenticated() {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for sibling to apply login broadcast")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if got := siblingBackend.renewCalls.Load(); got != 0 {
		t.Fatalf("sibling must apply broadcast without network calls, got %d renewals", got)
	}
	if got := sibling.AccessToken(); got != "at-login" {
		t.Fatalf("expected broadcast access token, got %q", got)
	}
	snap := sibling.Snapshot()
	if snap.User == nil || snap.User.ID != "user-1" {
		t.Fatalf("expected broadcast user, got %+v", snap.User)
	}
}

func TestBroadcastLogoutFollowedBySibling(t *testing.T) {
	hub := broadcast.NewHub()

	a, _ := newTestManager(t, func(b *Builder) { b.WithBroadcaster(hub.Join(0)) })
	sibling, _ := newTestManager(t, func(b *Builder) { b.WithBroadcaster(hub.Join(0)) })

	if err := a.Login(context.Background(), "alice@example.com", "correct-password-123"); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for !sibling.IsAuthenticated() {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for sibling login")
		}
		time.Sleep(5 * time.Millisecond)
	}

	a.Logout(context.Background())

	deadline = time.Now().Add(2 * time.Second)
	for sibling.IsAuthenticated() {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for sibling to follow logout broadcast")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRemoteLogoutLosesToLocalRenewal(t *testing.T) {
	m, backend := newTestManager(t)

	if err := m.Login(context.Background(), "alice@example.com", "correct-password-123"); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	release := make(chan struct{})
	backend.setRenew(func(context.Context, string) (*Grant, error) {
		<-release
		return testGrant("fresh"), nil
	})

	renewDone := make(chan error, 1)
	go func() { renewDone <- m.Renew(context.Background()) }()

	deadline := time.Now().Add(2 * time.Second)
	for !m.flight.InFlight() {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for renewal to start")
		}
		time.Sleep(time.Millisecond)
	}

	// A sibling logs out while our renewal is in flight; the fresher local
	// outcome wins.
	m.handleBroadcast(broadcast.Message{Kind: broadcast.KindLoggedOut, Origin: "sibling", IssuedAt: time.Now()})

	close(release)
	if err := <-renewDone; err != nil {
		t.Fatalf("renew failed: %v", err)
	}
	if !m.IsAuthenticated() {
		t.Fatal("in-flight renewal must survive a remote logout")
	}
	if got := m.AccessToken(); got != "at-fresh" {
		t.Fatalf("expected at-fresh, got %q", got)
	}
	if got := m.MetricsSnapshot().Counters[MetricBroadcastDiscarded]; got != 1 {
		t.Fatalf("expected one discarded broadcast, got %d", got)
	}
}

func TestSessionExpiredEventEmittedOnce(t *testing.T) {
	sink := NewChannelSink(8)
	m, backend := newTestManager(t, func(b *Builder) { b.WithEventSink(sink) })

	if err := m.Login(context.Background(), "alice@example.com", "correct-password-123"); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	backend.setRenew(func(context.Context, string) (*Grant, error) {
		return nil, ErrAuthRejected
	})

	_ = m.Renew(context.Background())
	// Second rejection on an already-ended session must not notify again.
	_ = m.Renew(context.Background())

	// Close flushes the dispatcher queue into the sink.
	m.Close()

	var expired int
drain:
	for {
		select {
		case ev := <-sink.Events():
			if ev.Kind == EventSessionExpired {
				expired++
			}
		default:
			break drain
		}
	}
	if expired != 1 {
		t.Fatalf("expected exactly one session-expired event, got %d", expired)
	}
}

func TestManagerClosedRejectsOperations(t *testing.T) {
	m, _ := newTestManager(t)
	m.Close()

	if err := m.Login(context.Background(), "alice@example.com", "correct-password-123"); !errors.Is(err, ErrManagerClosed) {
		t.Fatalf("expected ErrManagerClosed, got %v", err)
	}
	if err := m.Bootstrap(context.Background()); !errors.Is(err, ErrManagerClosed) {
		t.Fatalf("expected ErrManagerClosed, got %v", err)
	}
	if err := m.Logout(context.Background()); !errors.Is(err, ErrManagerClosed) {
		t.Fatalf("expected ErrManagerClosed, got %v", err)
	}
}

func TestLogoutAfterCloseTouchesNothing(t *testing.T) {
	backend := &fakeBackend{}
	shared := store.NewMemory()
	if err := shared.SetRefreshToken(context.Background(), "rt-kept"); err != nil {
		t.Fatalf("seed store failed: %v", err)
	}

	m, err := New().
		WithBackend(backend).
		WithStore(shared).
		WithTokenCodec(token.FixedCodec{TTL: time.Hour}).
		Build()
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	m.Close()

	if err := m.Logout(context.Background()); !errors.Is(err, ErrManagerClosed) {
		t.Fatalf("expected ErrManagerClosed, got %v", err)
	}
	if got := backend.logoutCalls.Load(); got != 0 {
		t.Fatalf("closed manager must not call the backend, got %d", got)
	}

	rt, err := shared.RefreshToken(context.Background())
	if err != nil {
		t.Fatalf("store read failed: %v", err)
	}
	if rt != "rt-kept" {
		t.Fatalf("closed manager must not clear storage, got %q", rt)
	}
}

func TestSnapshotPermissionsSorted(t *testing.T) {
	m, backend := newTestManager(t)
	backend.loginFn = func(context.Context, string, string) (*Grant, error) {
		g := testGrant("login")
		g.Permissions = []string{"z", "a", "m"}
		return g, nil
	}

	if err := m.Login(context.Background(), "alice@example.com", "any"); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	snap := m.Snapshot()
	want := []string{"a", "m", "z"}
	if len(snap.Permissions) != len(want) {
		t.Fatalf("expected %v, got %v", want, snap.Permissions)
	}
	for i := range want {
		if snap.Permissions[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, snap.Permissions)
		}
	}
}
