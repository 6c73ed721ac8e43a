package server

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"type-royale/internal/config"
	"type-royale/internal/events"
	"type-royale/internal/snippets"

	"github.com/jonboulle/clockwork"
)

var testEpoch = time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) {
	return "plain:" + password, nil
}

func (plainHasher) Compare(hash, password string) (bool, error) {
	return hash == "plain:"+password, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error {
	return nil
}

func (p *recordingPublisher) count(eventType events.Type) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, event := range p.events {
		if event.Type == eventType {
			n++
		}
	}
	return n
}

type testApp struct {
	srv    *Server
	clock  *clockwork.FakeClock
	events *recordingPublisher
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Env = "test"
	cfg.RateLimitPerMinute = 0
	return cfg
}

func newTestApp(t *testing.T, configure ...func(*config.Config)) *testApp {
	t.Helper()
	cfg := testConfig()
	for _, fn := range configure {
		fn(&cfg)
	}
	pool, err := snippets.Parse([]byte("snippets:\n  - race me\n"))
	if err != nil {
		t.Fatalf("snippets: %v", err)
	}
	clock := clockwork.NewFakeClockAt(testEpoch)
	recorder := &recordingPublisher{}
	srv := New(cfg, Options{
		Clock:    clock,
		Snippets: pool,
		Hasher:   plainHasher{},
		Events:   recorder,
	})
	t.Cleanup(func() {
		_ = srv.Close()
	})
	return &testApp{srv: srv, clock: clock, events: recorder}
}

func newTestServer(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()
	listener, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Skipf("skipping test; listen unavailable: %v", err)
	}
	ts := &httptest.Server{
		Listener: listener,
		Config:   &http.Server{Handler: handler},
	}
	ts.Start()
	t.Cleanup(ts.Close)
	return ts
}
