package router

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/librotran/librotran/internal/config"
	"github.com/librotran/librotran/internal/logging"
)

// After a network or rate-limit error the model sits out for this long
// before the router considers it again.
const errorCooldown = 5 * time.Minute

// QuotaStore is the slice of the repository the adapters need: daily token
// accounting keyed by model name.
type QuotaStore interface {
	AddTokenUsage(ctx context.Context, model string, tokens int) error
	TokenUsageToday(ctx context.Context, model string) (int, error)
}

// modelBase holds the state shared by every adapter: its config entry, the
// quota store, and the runtime cooldown window.
type modelBase struct {
	cfg   config.ModelEntry
	quota QuotaStore

	mu               sync.Mutex
	unavailableUntil time.Time
}

func (b *modelBase) Name() string { return b.cfg.Name }

// Available checks cooldown first, then quota, without any network call.
func (b *modelBase) Available(ctx context.Context) bool {
	b.mu.Lock()
	inCooldown := time.Now().Before(b.unavailableUntil)
	b.mu.Unlock()
	if inCooldown {
		return false
	}

	used, err := b.quota.TokenUsageToday(ctx, b.cfg.Name)
	if err != nil {
		log := logging.With("router")
		log.Warn().Str("model", b.cfg.Name).Err(err).Msg("quota lookup failed, assuming available")
		return true
	}
	return used < b.cfg.DailyTokenLimit
}

func (b *modelBase) startCooldown() {
	b.mu.Lock()
	b.unavailableUntil = time.Now().Add(errorCooldown)
	b.mu.Unlock()
}

func (b *modelBase) recordUsage(ctx context.Context, tokens int) {
	if tokens <= 0 {
		return
	}
	if err := b.quota.AddTokenUsage(ctx, b.cfg.Name, tokens); err != nil {
		log := logging.With("router")
		log.Warn().Str("model", b.cfg.Name).Err(err).Msg("failed to record token usage")
	}
}

// retryable wraps a transport failure and puts the model in cooldown so the
// router moves on and does not hammer it for the next few minutes.
func (b *modelBase) retryable(err error) error {
	b.startCooldown()
	return fmt.Errorf("%s: %w", b.cfg.Name, err)
}

// classifyStatus maps an HTTP status to the failover taxonomy: client errors
// about the request body are content errors and stop the failover chain,
// everything else is retryable.
func (b *modelBase) classifyStatus(status int, detail string) error {
	err := fmt.Errorf("api returned status %d: %s", status, detail)
	switch status {
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge, http.StatusUnprocessableEntity:
		return &ContentError{Model: b.cfg.Name, Status: status, Err: err}
	}
	return b.retryable(err)
}

func (b *modelBase) timeout() time.Duration {
	if b.cfg.TimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(b.cfg.TimeoutSeconds) * time.Second
}
