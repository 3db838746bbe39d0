package xlsx

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"

	"hotel_pricesheet/internal/adapters/observability"
	"hotel_pricesheet/internal/domain"
)

const (
	DefaultSaveAttempts = 10
	DefaultSaveDelay    = 5 * time.Second
)

// Gateway loads templates and saves results, retrying saves while the
// target is held by another process.
type Gateway struct {
	attempts int
	delay    time.Duration
}

func NewGateway(attempts int, delay time.Duration) *Gateway {
	if attempts <= 0 {
		attempts = DefaultSaveAttempts
	}
	if delay < 0 {
		delay = DefaultSaveDelay
	}
	return &Gateway{attempts: attempts, delay: delay}
}

func (g *Gateway) Load(ctx context.Context, path string) (domain.Workbook, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open template %s: %w", path, err)
	}
	return &Workbook{f: f, path: path}, nil
}

func (g *Gateway) Save(ctx context.Context, wb domain.Workbook, path string) error {
	var lastErr error
	for i := 1; i <= g.attempts; i++ {
		lastErr = wb.WriteFile(path)
		if lastErr == nil {
			observability.ObserveSave("ok")
			return nil
		}
		observability.ObserveSave("retry")
		log.Warn().Err(lastErr).Str("path", path).Int("attempt", i).Int("of", g.attempts).
			Msg("save failed, file may be open elsewhere")
		if i < g.attempts && !sleepCtx(ctx, g.delay) {
			return ctx.Err()
		}
	}
	observability.ObserveSave("exhausted")
	return fmt.Errorf("%w: %s after %d attempts: %v", domain.ErrSaveExhausted, path, g.attempts, lastErr)
}

// sleepCtx waits for d or returns early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
