package router

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/librotran/librotran/internal/config"
)

type fakeModel struct {
	name      string
	available bool
	resp      *Response
	err       error
	calls     int
}

func (m *fakeModel) Name() string { return m.name }

func (m *fakeModel) Available(_ context.Context) bool { return m.available }

func (m *fakeModel) Translate(_ context.Context, chunk, systemPrompt string) (*Response, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.resp, nil
}

func TestNew_RequiresModels(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Fatal("expected error for empty model list")
	}
}

func TestTranslate_UsesFirstAvailable(t *testing.T) {
	primary := &fakeModel{name: "primary", available: true, resp: &Response{Translation: "hola", ModelUsed: "primary"}}
	backup := &fakeModel{name: "backup", available: true, resp: &Response{Translation: "hello", ModelUsed: "backup"}}
	r, err := New([]Model{primary, backup})
	if err != nil {
		t.Fatal(err)
	}

	resp, err := r.Translate(context.Background(), "chunk", "prompt")
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}
	if resp.ModelUsed != "primary" {
		t.Errorf("expected primary model, got %s", resp.ModelUsed)
	}
	if backup.calls != 0 {
		t.Errorf("backup should not have been called")
	}
}

func TestTranslate_SkipsUnavailable(t *testing.T) {
	primary := &fakeModel{name: "primary", available: false}
	backup := &fakeModel{name: "backup", available: true, resp: &Response{Translation: "hello", ModelUsed: "backup"}}
	r, _ := New([]Model{primary, backup})

	resp, err := r.Translate(context.Background(), "chunk", "prompt")
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}
	if resp.ModelUsed != "backup" {
		t.Errorf("expected backup model, got %s", resp.ModelUsed)
	}
	if primary.calls != 0 {
		t.Errorf("unavailable model must not be called")
	}
}

func TestTranslate_FailsOverOnRetryableError(t *testing.T) {
	primary := &fakeModel{name: "primary", available: true, err: errors.New("rate limited")}
	backup := &fakeModel{name: "backup", available: true, resp: &Response{Translation: "hello", ModelUsed: "backup"}}
	r, _ := New([]Model{primary, backup})

	resp, err := r.Translate(context.Background(), "chunk", "prompt")
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}
	if resp.ModelUsed != "backup" {
		t.Errorf("expected failover to backup, got %s", resp.ModelUsed)
	}
	if primary.calls != 1 {
		t.Errorf("primary calls = %d, want 1", primary.calls)
	}
}

func TestTranslate_ContentErrorStopsFailover(t *testing.T) {
	contentErr := &ContentError{Model: "primary", Status: 422, Err: errors.New("blocked")}
	primary := &fakeModel{name: "primary", available: true, err: contentErr}
	backup := &fakeModel{name: "backup", available: true, resp: &Response{Translation: "hello"}}
	r, _ := New([]Model{primary, backup})

	_, err := r.Translate(context.Background(), "chunk", "prompt")
	if !IsContentError(err) {
		t.Fatalf("expected content error, got %v", err)
	}
	if backup.calls != 0 {
		t.Errorf("content error must not fail over to backup")
	}
}

func TestTranslate_AllExhausted(t *testing.T) {
	a := &fakeModel{name: "a", available: true, err: errors.New("timeout")}
	b := &fakeModel{name: "b", available: false}
	r, _ := New([]Model{a, b})

	_, err := r.Translate(context.Background(), "chunk", "prompt")
	if !errors.Is(err, ErrAllModelsExhausted) {
		t.Fatalf("expected ErrAllModelsExhausted, got %v", err)
	}
	// The last failure travels with the sentinel.
	if !strings.Contains(err.Error(), "timeout") {
		t.Errorf("error should carry the last failure: %v", err)
	}
}

func TestTranslate_AllUnavailable(t *testing.T) {
	a := &fakeModel{name: "a"}
	b := &fakeModel{name: "b"}
	r, _ := New([]Model{a, b})

	_, err := r.Translate(context.Background(), "chunk", "prompt")
	if !errors.Is(err, ErrAllModelsExhausted) {
		t.Fatalf("expected ErrAllModelsExhausted, got %v", err)
	}
}

func TestAvailableModels(t *testing.T) {
	r, _ := New([]Model{
		&fakeModel{name: "a", available: true},
		&fakeModel{name: "b", available: false},
		&fakeModel{name: "c", available: true},
	})

	names := r.AvailableModels(context.Background())
	if len(names) != 2 || names[0] != "a" || names[1] != "c" {
		t.Errorf("AvailableModels = %v, want [a c]", names)
	}
}

// --- modelBase tests ---

type fakeQuota struct {
	used map[string]int
	err  error
}

func (q *fakeQuota) AddTokenUsage(_ context.Context, model string, tokens int) error {
	if q.used == nil {
		q.used = map[string]int{}
	}
	q.used[model] += tokens
	return nil
}

func (q *fakeQuota) TokenUsageToday(_ context.Context, model string) (int, error) {
	if q.err != nil {
		return 0, q.err
	}
	return q.used[model], nil
}

func TestModelBase_QuotaExhaustion(t *testing.T) {
	quota := &fakeQuota{used: map[string]int{"m": 999}}
	b := &modelBase{cfg: config.ModelEntry{Name: "m", DailyTokenLimit: 1000}, quota: quota}

	if !b.Available(context.Background()) {
		t.Fatal("model under quota should be available")
	}
	b.recordUsage(context.Background(), 10)
	if b.Available(context.Background()) {
		t.Fatal("model over quota should be unavailable")
	}
}

func TestModelBase_QuotaErrorAssumesAvailable(t *testing.T) {
	quota := &fakeQuota{err: errors.New("db locked")}
	b := &modelBase{cfg: config.ModelEntry{Name: "m", DailyTokenLimit: 1000}, quota: quota}

	if !b.Available(context.Background()) {
		t.Fatal("quota lookup failure should not block the model")
	}
}

func TestModelBase_CooldownAfterRetryable(t *testing.T) {
	quota := &fakeQuota{}
	b := &modelBase{cfg: config.ModelEntry{Name: "m", DailyTokenLimit: 1000}, quota: quota}

	err := b.retryable(errors.New("connection reset"))
	if err == nil {
		t.Fatal("retryable must return the wrapped error")
	}
	if b.Available(context.Background()) {
		t.Fatal("model should be cooling down after a retryable error")
	}

	// Expired cooldown restores availability.
	b.mu.Lock()
	b.unavailableUntil = time.Now().Add(-time.Second)
	b.mu.Unlock()
	if !b.Available(context.Background()) {
		t.Fatal("model should be available once the cooldown expires")
	}
}

func TestModelBase_ClassifyStatus(t *testing.T) {
	b := &modelBase{cfg: config.ModelEntry{Name: "m", DailyTokenLimit: 1000}, quota: &fakeQuota{}}

	for _, status := range []int{400, 413, 422} {
		if !IsContentError(b.classifyStatus(status, "bad input")) {
			t.Errorf("status %d should classify as content error", status)
		}
	}
	if IsContentError(b.classifyStatus(429, "rate limited")) {
		t.Error("status 429 should be retryable, not a content error")
	}
	if IsContentError(b.classifyStatus(500, "server error")) {
		t.Error("status 500 should be retryable, not a content error")
	}
}
