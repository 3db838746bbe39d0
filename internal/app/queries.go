package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"hotel_pricesheet/internal/domain"
)

// ErrHistoryDisabled is returned by queries when no run repository is wired.
var ErrHistoryDisabled = errors.New("run history disabled")

// runsGenKey versions cached run listings; every recorded run bumps it.
const runsGenKey = "runs:gen"

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

type QueryService struct {
	repo     domain.RunRepository
	cache    domain.Cache
	cacheTTL time.Duration
}

func NewQueryService(r domain.RunRepository, c domain.Cache, ttl time.Duration) *QueryService {
	if c == nil {
		c = NopCache{}
	}
	return &QueryService{repo: r, cache: c, cacheTTL: ttl}
}

func clampLimit(n int) int {
	switch {
	case n <= 0:
		return DefaultListLimit
	case n > MaxListLimit:
		return MaxListLimit
	}
	return n
}

func (s *QueryService) generation(ctx context.Context) string {
	var gen int64
	if ok, _ := s.cache.Get(ctx, runsGenKey, &gen); ok {
		return strconv.FormatInt(gen, 10)
	}
	return "0"
}

func (s *QueryService) ListRuns(ctx context.Context, limit int) ([]domain.Run, error) {
	if s.repo == nil {
		return nil, ErrHistoryDisabled
	}
	limit = clampLimit(limit)
	key := fmt.Sprintf("runs:%s:%d", s.generation(ctx), limit)
	var out []domain.Run
	if ok, _ := s.cache.Get(ctx, key, &out); ok {
		return out, nil
	}
	rs, err := s.repo.ListRuns(ctx, limit)
	if err != nil {
		return nil, err
	}
	out = make([]domain.Run, len(rs))
	copy(out, rs)
	_ = s.cache.Set(ctx, key, out, int(s.cacheTTL.Seconds()))
	return out, nil
}

// GetRun reads one run. Recorded runs never change, so they cache by id.
func (s *QueryService) GetRun(ctx context.Context, id string) (domain.Run, error) {
	if s.repo == nil {
		return domain.Run{}, ErrHistoryDisabled
	}
	key := "run:" + id
	var r domain.Run
	if ok, _ := s.cache.Get(ctx, key, &r); ok {
		return r, nil
	}
	r, err := s.repo.GetRun(ctx, id)
	if err != nil {
		return domain.Run{}, err
	}
	_ = s.cache.Set(ctx, key, r, int(s.cacheTTL.Seconds()))
	return r, nil
}

func (s *QueryService) ListMisses(ctx context.Context, runID string, limit int) ([]domain.Miss, error) {
	if s.repo == nil {
		return nil, ErrHistoryDisabled
	}
	limit = clampLimit(limit)
	key := fmt.Sprintf("misses:%s:%d", runID, limit)
	var out []domain.Miss
	if ok, _ := s.cache.Get(ctx, key, &out); ok {
		return out, nil
	}
	ms, err := s.repo.ListMisses(ctx, runID, limit)
	if err != nil {
		return nil, err
	}
	out = make([]domain.Miss, len(ms))
	copy(out, ms)
	_ = s.cache.Set(ctx, key, out, int(s.cacheTTL.Seconds()))
	return out, nil
}
