// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package userservice_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/taibuivan/yomira/internal/dbauth"
	"github.com/taibuivan/yomira/internal/docstore"
	"github.com/taibuivan/yomira/internal/events"
	"github.com/taibuivan/yomira/internal/mailer"
	"github.com/taibuivan/yomira/internal/sessionstore"
	"github.com/taibuivan/yomira/internal/userservice"
	"golang.org/x/time/rate"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeProvisioner is a minimal no-op [dbauth.Provisioner], sufficient for
// userservice's tests: it only needs databases to exist, never to be
// inspected for security documents or design docs.
type fakeProvisioner struct {
	mu      sync.Mutex
	dropped map[string]bool
}

func newFakeProvisioner() *fakeProvisioner {
	return &fakeProvisioner{dropped: make(map[string]bool)}
}

func (f *fakeProvisioner) EnsureDatabase(context.Context, string) error { return nil }
func (f *fakeProvisioner) SetSecurity(context.Context, string, []string, []string) error {
	return nil
}
func (f *fakeProvisioner) SeedDesignDocs(context.Context, string, string, []string) error {
	return nil
}
func (f *fakeProvisioner) DropDatabase(_ context.Context, physicalName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dropped[physicalName] = true
	return nil
}

var _ dbauth.Provisioner = (*fakeProvisioner)(nil)

// fakeAuthStore is a minimal in-memory [dbauth.AuthStore].
type fakeAuthStore struct {
	mu          sync.Mutex
	credentials map[string]bool
	memberships map[string]map[string]bool // physicalName -> key -> granted
}

func newFakeAuthStore() *fakeAuthStore {
	return &fakeAuthStore{
		credentials: make(map[string]bool),
		memberships: make(map[string]map[string]bool),
	}
}

func (f *fakeAuthStore) PutCredential(_ context.Context, key, _, _ string, _ []string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.credentials[key] = true
	return nil
}

func (f *fakeAuthStore) GrantMembership(_ context.Context, physicalName, key string, _ []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.memberships[physicalName] == nil {
		f.memberships[physicalName] = make(map[string]bool)
	}
	f.memberships[physicalName][key] = true
	return nil
}

func (f *fakeAuthStore) RevokeMembership(_ context.Context, physicalName, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.memberships[physicalName], key)
	return nil
}

func (f *fakeAuthStore) RevokeAllMemberships(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for physicalName := range f.memberships {
		delete(f.memberships[physicalName], key)
	}
	return nil
}

func (f *fakeAuthStore) DeleteCredentials(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.credentials, k)
	}
	return nil
}

func (f *fakeAuthStore) ExpiredCredentialKeys(context.Context, time.Time) ([]string, error) {
	return nil, nil
}

func (f *fakeAuthStore) hasCredential(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.credentials[key]
}

var _ dbauth.AuthStore = (*fakeAuthStore)(nil)

// fakeMailer records every send instead of dispatching it.
type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

type sentMail struct {
	template mailer.TemplateKey
	to       string
	data     map[string]any
}

func newFakeMailer() *fakeMailer { return &fakeMailer{} }

func (f *fakeMailer) Send(_ context.Context, template mailer.TemplateKey, to string, data map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMail{template: template, to: to, data: data})
	return nil
}

func (f *fakeMailer) last() (sentMail, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return sentMail{}, false
	}
	return f.sent[len(f.sent)-1], true
}

var _ mailer.Mailer = (*fakeMailer)(nil)

// recordingEmitter captures every emitted event for assertions, backed
// by the real [events.Bus] dispatch rather than duplicating its logic.
type recordingEmitter struct {
	bus *events.Bus
	mu  sync.Mutex
	got []events.Event
}

func newRecordingEmitter() *recordingEmitter {
	r := &recordingEmitter{bus: events.NewBus()}
	r.bus.Subscribe(func(e events.Event) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.got = append(r.got, e)
	})
	return r
}

func (r *recordingEmitter) Emit(e events.Event) { r.bus.Emit(e) }

func (r *recordingEmitter) names() []events.Name {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Name, len(r.got))
	for i, e := range r.got {
		out[i] = e.Name
	}
	return out
}

// testHarness bundles a [userservice.Service] with the fakes backing it,
// for assertions the Service's public surface doesn't expose directly.
type testHarness struct {
	service     *userservice.Service
	store       docstore.Store
	sessions    sessionstore.Store
	provisioner *fakeProvisioner
	authStore   *fakeAuthStore
	mail        *fakeMailer
	events      *recordingEmitter
}

func newHarness(cfg userservice.Config) *testHarness {
	store := docstore.NewMemoryStore()
	sessions := sessionstore.NewMemoryStore()
	provisioner := newFakeProvisioner()
	authStore := newFakeAuthStore()
	dbAuth := dbauth.New(dbauth.Config{PrivatePrefix: "userdb"}, provisioner, authStore, testLogger())
	mail := newFakeMailer()
	emitter := newRecordingEmitter()

	svc := userservice.New(store, sessions, dbAuth, emitter, mail, testLogger(), cfg, rate.NewLimiter(rate.Inf, 1))

	return &testHarness{
		service:     svc,
		store:       store,
		sessions:    sessions,
		provisioner: provisioner,
		authStore:   authStore,
		mail:        mail,
		events:      emitter,
	}
}

// expireSession backdates sessionKey's expiry on userID's stored document
// directly through the docstore, bypassing the service so a GC path can be
// exercised without a config hack or a real sleep.
func expireSession(t testingT, store docstore.Store, userID, sessionKey string) {
	t.Helper()
	ctx := context.Background()

	doc, err := store.Get(ctx, userID)
	if err != nil {
		t.Fatalf("expireSession: get %s: %v", userID, err)
	}

	var raw map[string]any
	if err := json.Unmarshal(doc.Data, &raw); err != nil {
		t.Fatalf("expireSession: unmarshal: %v", err)
	}
	sessions, ok := raw["session"].(map[string]any)
	if !ok {
		t.Fatalf("expireSession: %s has no session map", userID)
	}
	rec, ok := sessions[sessionKey].(map[string]any)
	if !ok {
		t.Fatalf("expireSession: %s has no session %s", userID, sessionKey)
	}
	rec["expires"] = time.Now().Add(-time.Hour).Format(time.RFC3339Nano)

	data, err := json.Marshal(raw)
	if err != nil {
		t.Fatalf("expireSession: marshal: %v", err)
	}
	if _, err := store.Put(ctx, docstore.Doc{ID: doc.ID, Rev: doc.Rev, Data: data}); err != nil {
		t.Fatalf("expireSession: put: %v", err)
	}
}

// testingT is the subset of *testing.T expireSession needs, small enough
// to satisfy from any test file without importing "testing" twice here.
type testingT interface {
	Helper()
	Fatalf(format string, args ...any)
}

func baseConfig() userservice.Config {
	return userservice.Config{
		Security: userservice.SecurityConfig{
			DefaultRoles:        []string{"member"},
			UserActivityLogSize: 3,
			SessionLife:         3600,
			TokenLife:           3600,
		},
		Local: userservice.LocalConfig{
			UsernameKeys:  []string{"username"},
			UsernameField: "username",
			UUIDAsID:      false,
		},
		DBServer: userservice.DBServerConfig{TypeField: "type"},
	}
}
