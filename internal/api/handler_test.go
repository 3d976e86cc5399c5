package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	extratelimit "github.com/vnmchuo/ratelimiter"
	"go.uber.org/zap"

	"github.com/brandcraft/brandcraft/internal/auth"
	"github.com/brandcraft/brandcraft/internal/billing"
	"github.com/brandcraft/brandcraft/internal/brand"
	"github.com/brandcraft/brandcraft/internal/cache"
	"github.com/brandcraft/brandcraft/internal/credits"
	"github.com/brandcraft/brandcraft/internal/pricing"
	"github.com/brandcraft/brandcraft/internal/provider"
	"github.com/brandcraft/brandcraft/internal/router"
	"github.com/brandcraft/brandcraft/internal/task"
	"github.com/brandcraft/brandcraft/pkg/ratelimit"
)

// fakeRow satisfies pgx.Row for the credit manager's conditional UPDATE.
type fakeRow struct {
	remaining int
	err       error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) > 0 {
		if p, ok := dest[0].(*int); ok {
			*p = r.remaining
		}
	}
	return nil
}

type fakeCreditDB struct {
	remaining int
	err       error
}

func (d *fakeCreditDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return fakeRow{remaining: d.remaining, err: d.err}
}

func (d *fakeCreditDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

type mockBillingStore struct {
	logged chan *billing.UsageLog
}

func (m *mockBillingStore) LogUsage(ctx context.Context, log *billing.UsageLog) error {
	if m.logged != nil {
		m.logged <- log
	}
	return nil
}

func (m *mockBillingStore) GetUsageByUser(ctx context.Context, userID string, from, to time.Time) ([]*billing.UsageLog, error) {
	return nil, nil
}

func (m *mockBillingStore) GetTotalCostByUser(ctx context.Context, userID string, from, to time.Time) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

func (m *mockBillingStore) CostByProvider(ctx context.Context, from, to time.Time) ([]*billing.ProviderCost, error) {
	return nil, nil
}

type mockBrandStore struct {
	contexts map[string]*brand.Context
}

func (m *mockBrandStore) Create(ctx context.Context, bc *brand.Context) error {
	if bc.ID == "" {
		bc.ID = "ctx-1"
	}
	if m.contexts == nil {
		m.contexts = map[string]*brand.Context{}
	}
	m.contexts[bc.ID] = bc
	return nil
}

func (m *mockBrandStore) Get(ctx context.Context, id string) (*brand.Context, error) {
	if bc, ok := m.contexts[id]; ok {
		return bc, nil
	}
	return nil, brand.ErrContextNotFound
}

func (m *mockBrandStore) Update(ctx context.Context, bc *brand.Context) error { return nil }
func (m *mockBrandStore) Delete(ctx context.Context, id string) error         { return nil }

func (m *mockBrandStore) ListByUser(ctx context.Context, userID string) ([]*brand.Context, error) {
	return nil, nil
}

type mockLimiterStore struct {
	allowed bool
}

func (m *mockLimiterStore) AllowN(ctx context.Context, key string, n int) (*extratelimit.Result, error) {
	return &extratelimit.Result{Allowed: m.allowed}, nil
}

func (m *mockLimiterStore) Allow(ctx context.Context, key string) (*extratelimit.Result, error) {
	return &extratelimit.Result{Allowed: m.allowed}, nil
}

func (m *mockLimiterStore) Status(ctx context.Context, key string) (*extratelimit.Result, error) {
	return &extratelimit.Result{Allowed: m.allowed}, nil
}

type mockText struct {
	name string
	text string
	err  error
}

func (m *mockText) Name() string  { return m.name }
func (m *mockText) Model() string { return "mock-model" }

func (m *mockText) GenerateText(ctx context.Context, prompt string) (*provider.Generation, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &provider.Generation{
		Text:  m.text,
		Usage: provider.Usage{PromptTokens: 5, CompletionTokens: 5},
	}, nil
}

type testEnv struct {
	handler *Handler
	billing *mockBillingStore
	credits *fakeCreditDB
}

func setupTest(t *testing.T, gen provider.TextGenerator, limiterAllowed bool) *testEnv {
	t.Helper()

	chains := router.Chains{Text: map[task.Task][]provider.TextGenerator{}}
	if gen != nil {
		for _, tk := range []task.Task{task.BrandNames, task.Content, task.Assistant} {
			chains.Text[tk] = []provider.TextGenerator{gen}
		}
	}
	prices, err := pricing.New("0.002", nil)
	if err != nil {
		t.Fatalf("pricing.New failed: %v", err)
	}
	rt := router.New(chains, cache.NewMemory(), prices, 0, zap.NewNop())

	creditDB := &fakeCreditDB{remaining: 9}
	billingStore := &mockBillingStore{logged: make(chan *billing.UsageLog, 1)}
	h := NewHandler(
		rt,
		credits.NewManager(creditDB),
		billingStore,
		&mockBrandStore{},
		ratelimit.NewTestLimiter(&mockLimiterStore{allowed: limiterAllowed}),
		nil,
		zap.NewNop(),
	)
	return &testEnv{handler: h, billing: billingStore, credits: creditDB}
}

func authedRequest(method, target string, body []byte) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	return req.WithContext(auth.WithUserID(req.Context(), "user-1"))
}

func TestHandleGenerateName_Unauthorized(t *testing.T) {
	env := setupTest(t, nil, true)
	req := httptest.NewRequest("POST", "/v1/branding/generate-name", strings.NewReader(`{}`))
	w := httptest.NewRecorder()

	env.handler.HandleGenerateName(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestHandleGenerateName_Success(t *testing.T) {
	env := setupTest(t, &mockText{name: "google", text: "Acme, Zenith"}, true)
	body, _ := json.Marshal(GenerateNameRequest{Vibe: "modern"})
	w := httptest.NewRecorder()

	env.handler.HandleGenerateName(w, authedRequest("POST", "/v1/branding/generate-name", body))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp["provider"] != "google" {
		t.Errorf("expected provider google, got %v", resp["provider"])
	}
	if resp["text"] != "Acme, Zenith" {
		t.Errorf("unexpected text %v", resp["text"])
	}
	if _, ok := resp["cost_estimate"]; !ok {
		t.Error("response must carry a cost estimate")
	}

	select {
	case entry := <-env.billing.logged:
		if entry.UserID != "user-1" || entry.Task != task.BrandNames {
			t.Errorf("unexpected usage log %+v", entry)
		}
		if entry.CreditsSpent != 1 {
			t.Errorf("brand names cost 1 credit, logged %d", entry.CreditsSpent)
		}
	case <-time.After(time.Second):
		t.Error("expected a usage log entry")
	}
}

func TestHandleGenerateContent_ValidatesContentType(t *testing.T) {
	env := setupTest(t, &mockText{name: "google", text: "out"}, true)
	body, _ := json.Marshal(GenerateContentRequest{ContentType: "press-release"})
	w := httptest.NewRecorder()

	env.handler.HandleGenerateContent(w, authedRequest("POST", "/v1/branding/generate-content", body))

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown content type, got %d", w.Code)
	}
}

func TestHandleGenerateContent_InsufficientCredits(t *testing.T) {
	env := setupTest(t, &mockText{name: "google", text: "out"}, true)
	env.credits.err = pgx.ErrNoRows

	body, _ := json.Marshal(GenerateContentRequest{ContentType: "tagline"})
	w := httptest.NewRecorder()

	env.handler.HandleGenerateContent(w, authedRequest("POST", "/v1/branding/generate-content", body))

	if w.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d", w.Code)
	}

	var resp map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["error"] != true || resp["message"] != "insufficient credits" {
		t.Errorf("unexpected error body %v", resp)
	}
}

func TestHandleGenerateName_RateLimited(t *testing.T) {
	env := setupTest(t, &mockText{name: "google", text: "out"}, false)
	body, _ := json.Marshal(GenerateNameRequest{Vibe: "modern"})
	w := httptest.NewRecorder()

	env.handler.HandleGenerateName(w, authedRequest("POST", "/v1/branding/generate-name", body))

	if w.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") != "60" {
		t.Errorf("expected Retry-After header, got %q", w.Header().Get("Retry-After"))
	}
}

func TestHandleAssistant_AllProvidersDown(t *testing.T) {
	env := setupTest(t, &mockText{name: "google", err: errors.New("down")}, true)
	body, _ := json.Marshal(AssistantRequest{Message: "help me"})
	w := httptest.NewRecorder()

	env.handler.HandleAssistant(w, authedRequest("POST", "/v1/branding/assistant", body))

	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", w.Code)
	}

	var resp map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["error"] != true {
		t.Error("error responses must set error: true")
	}
	if resp["message"] != "no providers available for task" {
		t.Errorf("unexpected message %v", resp["message"])
	}
	if resp["details"] == nil {
		t.Error("exhaustion responses should carry per-provider details")
	}
}

func TestHandleSentiment_InvalidBody(t *testing.T) {
	env := setupTest(t, nil, true)
	w := httptest.NewRecorder()

	env.handler.HandleSentiment(w, authedRequest("POST", "/v1/branding/sentiment", []byte(`{invalid`)))

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestHandleUsage_InvalidDateFormat(t *testing.T) {
	env := setupTest(t, nil, true)
	req := authedRequest("GET", "/v1/usage?from=not-a-date", nil)
	w := httptest.NewRecorder()

	env.handler.HandleUsage(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestHandleCreateContext_Success(t *testing.T) {
	env := setupTest(t, nil, true)
	body, _ := json.Marshal(BrandContextRequest{
		Industry: "specialty coffee",
		Tone:     "warm",
		Keywords: []string{"roast"},
	})
	w := httptest.NewRecorder()

	env.handler.HandleCreateContext(w, authedRequest("POST", "/v1/contexts", body))

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var bc brand.Context
	if err := json.Unmarshal(w.Body.Bytes(), &bc); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if bc.UserID != "user-1" || bc.Industry != "specialty coffee" {
		t.Errorf("unexpected context %+v", bc)
	}
}

func TestHandleCreateContext_RequiresIndustry(t *testing.T) {
	env := setupTest(t, nil, true)
	body, _ := json.Marshal(BrandContextRequest{Tone: "warm"})
	w := httptest.NewRecorder()

	env.handler.HandleCreateContext(w, authedRequest("POST", "/v1/contexts", body))

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}
