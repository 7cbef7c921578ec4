// ABOUTME: Tests for the session lifecycle manager
// ABOUTME: Covers login classification, logout cleanup, expiry deferral and token validation

package session

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/bloomapp/bloom/internal/config"
	"github.com/bloomapp/bloom/internal/events"
	"github.com/bloomapp/bloom/internal/models"
	"github.com/bloomapp/bloom/internal/remote"
	"github.com/bloomapp/bloom/internal/secrets"
)

const testDeviceID = "Bloom-testbox-1234"

type staticDevice string

func (d staticDevice) DeviceID() string { return string(d) }

type fakeAuthClient struct {
	mu         sync.Mutex
	loginFn    func(serverURL, username, password string) (*remote.LoginResult, error)
	fetchFn    func(serverURL, token, userID string) (*remote.User, int, error)
	loginCalls int
	fetchCalls int
}

func (f *fakeAuthClient) Login(ctx context.Context, serverURL, username, password string) (*remote.LoginResult, error) {
	f.mu.Lock()
	f.loginCalls++
	fn := f.loginFn
	f.mu.Unlock()
	if fn == nil {
		return nil, errors.New("login not configured")
	}
	return fn(serverURL, username, password)
}

func (f *fakeAuthClient) FetchUser(ctx context.Context, serverURL, token, userID string) (*remote.User, int, error) {
	f.mu.Lock()
	f.fetchCalls++
	fn := f.fetchFn
	f.mu.Unlock()
	if fn == nil {
		return nil, 0, errors.New("fetch not configured")
	}
	return fn(serverURL, token, userID)
}

func (f *fakeAuthClient) fetches() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetchCalls
}

// acceptingLogin returns a login func handing out the given token for any
// credentials.
func acceptingLogin(token string) func(string, string, string) (*remote.LoginResult, error) {
	return func(serverURL, username, password string) (*remote.LoginResult, error) {
		return &remote.LoginResult{AccessToken: token, UserID: "user-1", Username: username}, nil
	}
}

// acceptingFetch returns a fetch func answering 200 for the given token and
// 401 for everything else.
func acceptingFetch(token string) func(string, string, string) (*remote.User, int, error) {
	return func(serverURL, got, userID string) (*remote.User, int, error) {
		if got != token {
			return nil, http.StatusUnauthorized, nil
		}
		return &remote.User{ID: userID, Name: "alice"}, http.StatusOK, nil
	}
}

type testEnv struct {
	manager *Manager
	cfg     *config.File
	store   secrets.Store
	queue   *secrets.Queue
	bus     *events.Bus
	client  *fakeAuthClient
}

func newTestEnv(t *testing.T, client *fakeAuthClient) *testEnv {
	return newTestEnvWithStore(t, client, secrets.NewMemory())
}

func newTestEnvWithStore(t *testing.T, client *fakeAuthClient, store secrets.Store) *testEnv {
	t.Helper()
	cfg, err := config.Load(t.TempDir())
	if err != nil {
		t.Fatalf("loading config: %v", err)
	}
	queue := secrets.NewQueue(store)
	t.Cleanup(queue.Close)
	bus := events.NewBus()
	return &testEnv{
		manager: NewManager(cfg, queue, client, staticDevice(testDeviceID), bus),
		cfg:     cfg,
		store:   store,
		queue:   queue,
		bus:     bus,
		client:  client,
	}
}

// drain waits for every queued secret-store operation to finish.
func (e *testEnv) drain(t *testing.T) {
	t.Helper()
	if err := e.queue.Do(func(secrets.Store) error { return nil }); err != nil {
		t.Fatalf("draining queue: %v", err)
	}
}

// record collects events of type T; the returned func snapshots them.
func record[T events.Event](t *testing.T, bus *events.Bus) func() []T {
	t.Helper()
	var mu sync.Mutex
	var got []T
	unsubscribe := events.Subscribe(bus, func(e T) {
		mu.Lock()
		got = append(got, e)
		mu.Unlock()
	})
	t.Cleanup(unsubscribe)
	return func() []T {
		mu.Lock()
		defer mu.Unlock()
		return append([]T(nil), got...)
	}
}

func TestNormalizeServerURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"unchanged", "https://media.example.com", "https://media.example.com"},
		{"one trailing slash", "https://media.example.com/", "https://media.example.com"},
		{"many trailing slashes", "https://media.example.com///", "https://media.example.com"},
		{"surrounding whitespace", "  https://media.example.com  ", "https://media.example.com"},
		{"whitespace and slashes", " https://media.example.com// ", "https://media.example.com"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeServerURL(tt.in); got != tt.want {
				t.Errorf("NormalizeServerURL(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestAuthenticateSuccess(t *testing.T) {
	client := &fakeAuthClient{loginFn: acceptingLogin("tok-1")}
	env := newTestEnv(t, client)
	authenticated := record[events.Authenticated](t, env.bus)

	if err := env.manager.Authenticate(context.Background(), "https://media.example.com/", "alice", "pw"); err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}

	if got := env.manager.State(); got != StateAuthenticated {
		t.Errorf("State() = %v, want %v", got, StateAuthenticated)
	}
	session := env.manager.Session()
	if session.ServerURL != "https://media.example.com" {
		t.Errorf("ServerURL = %q, want normalized URL", session.ServerURL)
	}
	if session.UserID != "user-1" || session.Username != "alice" || session.AccessToken != "tok-1" {
		t.Errorf("Session = %+v, want user-1/alice/tok-1", session)
	}

	// Non-secret metadata persisted for the next startup.
	meta := env.cfg.Session()
	if meta.ServerURL != "https://media.example.com" || meta.UserID != "user-1" || meta.Username != "alice" {
		t.Errorf("persisted meta = %+v", meta)
	}
	if meta.LegacyToken != "" {
		t.Error("access token leaked into config")
	}

	// Token written to the secret store under the account key.
	env.drain(t)
	key := secrets.AccountKey("https://media.example.com", "alice", testDeviceID)
	token, found, err := env.store.Get(secrets.ServiceName, key)
	if err != nil || !found || token != "tok-1" {
		t.Errorf("stored token = (%q, %v, %v), want (tok-1, true, nil)", token, found, err)
	}

	if got := authenticated(); len(got) != 1 || got[0].AccessToken != "tok-1" {
		t.Errorf("Authenticated events = %+v, want one with tok-1", got)
	}
}

func TestAuthenticateFailureClassification(t *testing.T) {
	tests := []struct {
		name     string
		loginErr error
		want     string
	}{
		{
			name:     "invalid credentials",
			loginErr: &remote.StatusError{Code: http.StatusUnauthorized},
			want:     "Invalid username or password",
		},
		{
			name:     "no connection",
			loginErr: remote.ErrConnection,
			want:     "Could not connect to server",
		},
		{
			name:     "other status",
			loginErr: &remote.StatusError{Code: http.StatusInternalServerError},
			want:     "Login failed: server returned status 500",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeAuthClient{loginFn: func(string, string, string) (*remote.LoginResult, error) {
				return nil, tt.loginErr
			}}
			env := newTestEnv(t, client)
			failures := record[events.LoginFailed](t, env.bus)

			err := env.manager.Authenticate(context.Background(), "https://s/", "bob", "pw")
			if err == nil {
				t.Fatal("Authenticate succeeded, want failure")
			}
			if err.Error() != tt.want {
				t.Errorf("error = %q, want %q", err.Error(), tt.want)
			}

			if got := env.manager.State(); got != StateLoggedOut {
				t.Errorf("State() = %v, want %v", got, StateLoggedOut)
			}
			if session := env.manager.Session(); session.IsValid() {
				t.Errorf("session mutated on failed login: %+v", session)
			}

			env.drain(t)
			if accounts, _ := env.store.ListAccounts(secrets.ServiceName); len(accounts) != 0 {
				t.Errorf("secret store written on failed login: %v", accounts)
			}

			if got := failures(); len(got) != 1 || got[0].Message != tt.want {
				t.Errorf("LoginFailed events = %+v, want one with %q", got, tt.want)
			}
		})
	}
}

func TestAuthenticateFailureKeepsExistingSession(t *testing.T) {
	client := &fakeAuthClient{loginFn: acceptingLogin("tok-1")}
	env := newTestEnv(t, client)

	if err := env.manager.Authenticate(context.Background(), "https://media.example.com", "alice", "pw"); err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}

	client.mu.Lock()
	client.loginFn = func(string, string, string) (*remote.LoginResult, error) {
		return nil, &remote.StatusError{Code: http.StatusUnauthorized}
	}
	client.mu.Unlock()

	if err := env.manager.Authenticate(context.Background(), "https://other.example.com", "alice", "wrong"); err == nil {
		t.Fatal("second Authenticate succeeded, want failure")
	}

	if got := env.manager.State(); got != StateAuthenticated {
		t.Errorf("State() = %v after failed re-login, want %v", got, StateAuthenticated)
	}
	if session := env.manager.Session(); session.AccessToken != "tok-1" {
		t.Errorf("session token = %q after failed re-login, want tok-1", session.AccessToken)
	}
}

func TestRepeatedLoginLogoutLeavesNoSecret(t *testing.T) {
	client := &fakeAuthClient{loginFn: acceptingLogin("tok-1")}
	env := newTestEnv(t, client)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := env.manager.Authenticate(ctx, "https://media.example.com", "alice", "pw"); err != nil {
			t.Fatalf("Authenticate #%d failed: %v", i+1, err)
		}
		env.manager.Logout(ctx)
	}
	env.drain(t)

	accounts, err := env.store.ListAccounts(secrets.ServiceName)
	if err != nil {
		t.Fatalf("ListAccounts failed: %v", err)
	}
	if len(accounts) != 0 {
		t.Errorf("secret store holds %v after repeated login/logout, want none", accounts)
	}
}

func TestLogoutClearsStateAndEmits(t *testing.T) {
	client := &fakeAuthClient{loginFn: acceptingLogin("tok-1")}
	env := newTestEnv(t, client)
	loggedOut := record[events.LoggedOut](t, env.bus)
	ctx := context.Background()

	if err := env.manager.Authenticate(ctx, "https://media.example.com", "alice", "pw"); err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	env.manager.Logout(ctx)

	if got := env.manager.State(); got != StateLoggedOut {
		t.Errorf("State() = %v, want %v", got, StateLoggedOut)
	}
	if session := env.manager.Session(); session.IsValid() || session.AccessToken != "" {
		t.Errorf("session not cleared: %+v", session)
	}
	if meta := env.cfg.Session(); meta != (models.SessionMeta{}) {
		t.Errorf("persisted meta not cleared: %+v", meta)
	}
	if len(loggedOut()) != 1 {
		t.Errorf("LoggedOut events = %d, want 1", len(loggedOut()))
	}
}

func TestCheckSessionExpiryImmediate(t *testing.T) {
	client := &fakeAuthClient{loginFn: acceptingLogin("tok-1")}
	env := newTestEnv(t, client)
	expired := record[events.SessionExpired](t, env.bus)
	loggedOut := record[events.LoggedOut](t, env.bus)
	ctx := context.Background()

	if err := env.manager.Authenticate(ctx, "https://media.example.com", "alice", "pw"); err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}

	if !env.manager.CheckSessionExpiry(ctx, http.StatusUnauthorized, false) {
		t.Error("CheckSessionExpiry(401) = false, want true")
	}

	if got := env.manager.State(); got != StateLoggedOut {
		t.Errorf("State() = %v after expiry, want %v", got, StateLoggedOut)
	}
	got := expired()
	if len(got) != 1 || got[0].Deferred {
		t.Errorf("SessionExpired events = %+v, want one immediate", got)
	}
	if len(loggedOut()) != 1 {
		t.Errorf("LoggedOut events = %d, want 1", len(loggedOut()))
	}

	// The follow-up 401 of a burst finds no authenticated session.
	if env.manager.CheckSessionExpiry(ctx, http.StatusUnauthorized, false) {
		t.Error("CheckSessionExpiry after logout = true, want false")
	}
	if len(expired()) != 1 {
		t.Errorf("SessionExpired events after burst = %d, want 1", len(expired()))
	}
}

func TestCheckSessionExpiryIgnoresOtherStatuses(t *testing.T) {
	client := &fakeAuthClient{loginFn: acceptingLogin("tok-1")}
	env := newTestEnv(t, client)
	expired := record[events.SessionExpired](t, env.bus)
	ctx := context.Background()

	if err := env.manager.Authenticate(ctx, "https://media.example.com", "alice", "pw"); err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}

	for _, status := range []int{http.StatusOK, http.StatusForbidden, http.StatusInternalServerError} {
		if env.manager.CheckSessionExpiry(ctx, status, false) {
			t.Errorf("CheckSessionExpiry(%d) = true, want false", status)
		}
	}
	if got := env.manager.State(); got != StateAuthenticated {
		t.Errorf("State() = %v, want %v", got, StateAuthenticated)
	}
	if len(expired()) != 0 {
		t.Errorf("SessionExpired events = %d, want 0", len(expired()))
	}
}

func TestDeferredExpiryFlushesExactlyOnce(t *testing.T) {
	client := &fakeAuthClient{loginFn: acceptingLogin("tok-1")}
	env := newTestEnv(t, client)
	expired := record[events.SessionExpired](t, env.bus)
	ctx := context.Background()

	if err := env.manager.Authenticate(ctx, "https://media.example.com", "alice", "pw"); err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}

	// 401s during playback defer; no notification yet.
	if !env.manager.CheckSessionExpiry(ctx, http.StatusUnauthorized, true) {
		t.Error("deferred CheckSessionExpiry = false, want true")
	}
	if !env.manager.CheckSessionExpiry(ctx, http.StatusUnauthorized, true) {
		t.Error("second deferred CheckSessionExpiry = false, want true")
	}
	if got := env.manager.State(); got != StateExpiredPending {
		t.Errorf("State() = %v, want %v", got, StateExpiredPending)
	}
	if len(expired()) != 0 {
		t.Errorf("SessionExpired emitted during deferral: %d", len(expired()))
	}

	env.manager.FlushPendingExpiry(ctx)
	env.manager.FlushPendingExpiry(ctx)

	got := expired()
	if len(got) != 1 {
		t.Fatalf("SessionExpired events = %d, want exactly 1", len(got))
	}
	if !got[0].Deferred {
		t.Error("SessionExpired.Deferred = false, want true")
	}
	if state := env.manager.State(); state != StateLoggedOut {
		t.Errorf("State() = %v after flush, want %v", state, StateLoggedOut)
	}
}

func TestFlushWithoutPendingExpiryDoesNothing(t *testing.T) {
	client := &fakeAuthClient{loginFn: acceptingLogin("tok-1")}
	env := newTestEnv(t, client)
	expired := record[events.SessionExpired](t, env.bus)
	ctx := context.Background()

	if err := env.manager.Authenticate(ctx, "https://media.example.com", "alice", "pw"); err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	env.manager.FlushPendingExpiry(ctx)

	if got := env.manager.State(); got != StateAuthenticated {
		t.Errorf("State() = %v, want %v", got, StateAuthenticated)
	}
	if len(expired()) != 0 {
		t.Errorf("SessionExpired events = %d, want 0", len(expired()))
	}
}

func TestValidateAccessToken(t *testing.T) {
	client := &fakeAuthClient{
		loginFn: acceptingLogin("tok-1"),
		fetchFn: acceptingFetch("tok-1"),
	}
	env := newTestEnv(t, client)
	ctx := context.Background()

	// No session: synchronous false, no network call.
	if env.manager.ValidateAccessToken(ctx) {
		t.Error("ValidateAccessToken = true with no session")
	}
	if client.fetches() != 0 {
		t.Errorf("fetch calls = %d for empty session, want 0", client.fetches())
	}

	if err := env.manager.Authenticate(ctx, "https://media.example.com", "alice", "pw"); err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if !env.manager.ValidateAccessToken(ctx) {
		t.Error("ValidateAccessToken = false for accepted token")
	}

	client.mu.Lock()
	client.fetchFn = func(string, string, string) (*remote.User, int, error) {
		return nil, http.StatusUnauthorized, nil
	}
	client.mu.Unlock()
	if env.manager.ValidateAccessToken(ctx) {
		t.Error("ValidateAccessToken = true for rejected token")
	}
}

func TestValidateAccessTokenCollapsesConcurrentProbes(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once

	client := &fakeAuthClient{
		loginFn: acceptingLogin("tok-1"),
		fetchFn: func(serverURL, token, userID string) (*remote.User, int, error) {
			once.Do(func() { close(started) })
			<-release
			return &remote.User{ID: userID, Name: "alice"}, http.StatusOK, nil
		},
	}
	env := newTestEnv(t, client)
	ctx := context.Background()

	if err := env.manager.Authenticate(ctx, "https://media.example.com", "alice", "pw"); err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}

	var wg sync.WaitGroup
	results := make([]bool, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = env.manager.ValidateAccessToken(ctx)
		}(i)
	}

	<-started
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()

	for i, ok := range results {
		if !ok {
			t.Errorf("validation %d = false, want true", i)
		}
	}
	if got := client.fetches(); got != 1 {
		t.Errorf("fetch calls = %d, want 1 (collapsed)", got)
	}
}

func TestAccountIdentity(t *testing.T) {
	client := &fakeAuthClient{loginFn: acceptingLogin("tok-1")}
	env := newTestEnv(t, client)
	ctx := context.Background()

	if _, _, hasToken := env.manager.AccountIdentity(); hasToken {
		t.Error("AccountIdentity reports a token while logged out")
	}

	if err := env.manager.Authenticate(ctx, "https://media.example.com", "alice", "pw"); err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	server, username, hasToken := env.manager.AccountIdentity()
	if server != "https://media.example.com" || username != "alice" || !hasToken {
		t.Errorf("AccountIdentity = (%q, %q, %v)", server, username, hasToken)
	}
}

func TestStateStrings(t *testing.T) {
	states := map[State]string{
		StateLoggedOut:      "logged_out",
		StateRestoring:      "restoring",
		StateAuthenticating: "authenticating",
		StateAuthenticated:  "authenticated",
		StateExpiredPending: "expiry_pending",
		StateExpired:        "expired",
		State(42):           "unknown",
	}
	for state, want := range states {
		if got := state.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", int(state), got, want)
		}
	}
}

func TestAwaitRestorationWithoutFlight(t *testing.T) {
	client := &fakeAuthClient{}
	env := newTestEnv(t, client)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := env.manager.AwaitRestoration(ctx); err != nil {
		t.Errorf("AwaitRestoration with no flight = %v, want nil", err)
	}
	if env.manager.IsRestoring() {
		t.Error("IsRestoring() = true with no flight")
	}
}
