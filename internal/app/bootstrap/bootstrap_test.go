package bootstrap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"

	appconfig "github.com/wolfman30/careportal-chat/internal/config"
	"github.com/wolfman30/careportal-chat/internal/portalapi"
	"github.com/wolfman30/careportal-chat/internal/portalmock"
	"github.com/wolfman30/careportal-chat/internal/selection"
	"github.com/wolfman30/careportal-chat/internal/widgets"
	"github.com/wolfman30/careportal-chat/pkg/logging"
)

func testConfig() *appconfig.Config {
	return &appconfig.Config{
		Env:               "development",
		Port:              "8080",
		CSRFSecret:        "test-secret",
		CSRFPagePath:      "/booking/{id}/chat",
		AllowFakePayments: true,
		CheckoutMode:      "auto",
		Currency:          "INR",
		OTPMaxSends:       3,
		OTPMaxAttempts:    5,
		OTPWindow:         15 * time.Minute,
		RequestTimeout:    5 * time.Second,
		LinkSuccessDelay:  time.Millisecond,
	}
}

func TestBuildRedisClientDisabled(t *testing.T) {
	if client := BuildRedisClient(context.Background(), &appconfig.Config{}, nil, true); client != nil {
		t.Fatalf("expected nil client without REDIS_ADDR")
	}
	if client := BuildRedisClient(context.Background(), nil, nil, true); client != nil {
		t.Fatalf("expected nil client for nil config")
	}
}

func TestBuildRedisClientVerifies(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := &appconfig.Config{RedisAddr: mr.Addr()}

	client := BuildRedisClient(context.Background(), cfg, logging.New("error"), true)
	if client == nil {
		t.Fatalf("expected client for reachable redis")
	}
	_ = client.Close()

	mr.Close()
	if client := BuildRedisClient(context.Background(), cfg, logging.New("error"), true); client != nil {
		t.Fatalf("expected nil client when ping fails")
	}
}

func TestBuildDirectoryInMemory(t *testing.T) {
	dir, closeDir, err := BuildDirectory(context.Background(), &appconfig.Config{}, logging.New("error"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer closeDir()
	if _, ok := dir.(*portalmock.MemoryDirectory); !ok {
		t.Fatalf("expected in-memory directory, got %T", dir)
	}
}

func TestBuildDirectoryRequiresConfig(t *testing.T) {
	_, closeDir, err := BuildDirectory(context.Background(), nil, nil)
	if err == nil {
		t.Fatalf("expected error for nil config")
	}
	closeDir()
}

func TestBuildPortalServerRefusesUnsafeProduction(t *testing.T) {
	cfg := testConfig()
	cfg.Env = "production"
	if _, err := BuildPortalServer(context.Background(), cfg, PortalDeps{}, logging.New("error")); err == nil {
		t.Fatalf("expected fake payments to be refused in production")
	}

	cfg.AllowFakePayments = false
	cfg.CSRFSecret = ""
	if _, err := BuildPortalServer(context.Background(), cfg, PortalDeps{}, logging.New("error")); err == nil {
		t.Fatalf("expected missing CSRF secret to be refused in production")
	}
}

func TestBuildPortalServerExposesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	srv, err := BuildPortalServer(context.Background(), testConfig(), PortalDeps{Registry: reg}, logging.New("error"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ts := httptest.NewServer(srv.Routes())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestBuildPortalClientStaticToken(t *testing.T) {
	var got string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get(portalapi.CSRFHeader)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","messages":[]}`))
	}))
	defer ts.Close()

	cfg := testConfig()
	cfg.PortalBaseURL = ts.URL
	cfg.CSRFToken = "static-token"
	client, err := BuildPortalClient(cfg, "c1", nil, logging.New("error"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := client.GetConversation(context.Background(), "c1"); err != nil {
		t.Fatalf("get conversation: %v", err)
	}
	if got != "static-token" {
		t.Fatalf("expected static token header, got %q", got)
	}
}

func TestBuildPortalClientRequiresConversation(t *testing.T) {
	if _, err := BuildPortalClient(testConfig(), " ", nil, nil); err == nil {
		t.Fatalf("expected error for empty conversation id")
	}
}

func TestBuildControllerAgainstPortal(t *testing.T) {
	cfg := testConfig()
	srv, err := BuildPortalServer(context.Background(), cfg, PortalDeps{}, logging.New("error"))
	if err != nil {
		t.Fatalf("build portal: %v", err)
	}
	ts := httptest.NewServer(srv.Routes())
	defer ts.Close()
	cfg.PortalBaseURL = ts.URL

	ctrl, err := BuildController(cfg, "conv-1", ClientDeps{Registry: prometheus.NewRegistry()}, logging.New("error"))
	if err != nil {
		t.Fatalf("build controller: %v", err)
	}
	ctx := context.Background()
	if err := ctrl.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := ctrl.Select(ctx, selection.TypeUrgency, selection.Selection{"urgency": "urgent"}); err != nil {
		t.Fatalf("select: %v", err)
	}
	msgs := ctrl.Messages()
	if last := msgs[len(msgs)-1]; last.ComponentType != selection.TypeTextInput {
		t.Fatalf("expected text input next, got %q", last.ComponentType)
	}
}

func TestFamilyMembersReachPatientSelector(t *testing.T) {
	path := filepath.Join(t.TempDir(), "family.json")
	body := `[{"id":"p1","name":"Asha","relationship":"self"},{"id":"","name":"nobody"},{"id":"p2","name":"Ravi","relationship":"father","age":58}]`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	members, err := LoadFamilyMembers(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(members) != 2 || members[1].ID != "p2" {
		t.Fatalf("expected 2 members ending with p2, got %+v", members)
	}

	cfg := testConfig()
	cfg.DefaultPatientID = "p2"
	ctx := widgetContext(cfg, ClientDeps{FamilyMembers: members}, nil, nil)
	w := widgets.NewPatientSelector(widgets.PatientProps{}, ctx)
	opts := w.View().Options
	if len(opts) != 3 || opts[0].ID != "p1" || !opts[1].Selected {
		t.Fatalf("expected family members with p2 preselected, got %+v", opts)
	}
}

func TestLoadFamilyMembersErrors(t *testing.T) {
	if members, err := LoadFamilyMembers(" "); err != nil || members != nil {
		t.Fatalf("expected no members for empty path, got %v %v", members, err)
	}
	if _, err := LoadFamilyMembers(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatalf("expected error for missing file")
	}
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadFamilyMembers(path); err == nil {
		t.Fatalf("expected error for malformed file")
	}
}
