package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"hotel_pricesheet/internal/domain"
	"hotel_pricesheet/internal/matching"
)

// AliasIndex resolves aggregator-specific hotel names to template names.
// A nil index resolves nothing.
type AliasIndex struct {
	byAgg map[string]map[string]string
}

func BuildAliasIndex(t domain.AliasTable) *AliasIndex {
	idx := &AliasIndex{byAgg: map[string]map[string]string{}}
	for agg, names := range t {
		k := strings.ToLower(string(agg))
		if idx.byAgg[k] == nil {
			idx.byAgg[k] = map[string]string{}
		}
		for scraped, canonical := range names {
			if n := matching.NormalizeName(scraped); n != "" {
				idx.byAgg[k][n] = canonical
			}
		}
	}
	return idx
}

func (i *AliasIndex) Lookup(agg domain.Aggregator, hotelRaw string) (string, bool) {
	if i == nil {
		return "", false
	}
	names := i.byAgg[strings.ToLower(string(agg))]
	if names == nil {
		return "", false
	}
	v, ok := names[matching.NormalizeName(hotelRaw)]
	return v, ok
}

func (i *AliasIndex) Size() int {
	if i == nil {
		return 0
	}
	n := 0
	for _, m := range i.byAgg {
		n += len(m)
	}
	return n
}

// AliasService loads the alias table once per file version, going through
// the cache before touching the spreadsheet.
type AliasService struct {
	src   domain.AliasSource
	cache domain.Cache
	path  string
	ttl   time.Duration

	mu      sync.Mutex
	version string
	idx     *AliasIndex
}

func NewAliasService(src domain.AliasSource, cache domain.Cache, path string, ttl time.Duration) *AliasService {
	if cache == nil {
		cache = NopCache{}
	}
	return &AliasService{src: src, cache: cache, path: path, ttl: ttl}
}

func aliasKey(path, version string) string { return fmt.Sprintf("aliases:%s:%s", path, version) }

// Index returns the alias index for the current table version. No path
// configured means no aliases.
func (s *AliasService) Index(ctx context.Context) (*AliasIndex, error) {
	return s.load(ctx, false)
}

// Reload drops memoized and cached copies and reads the table again.
func (s *AliasService) Reload(ctx context.Context) (*AliasIndex, error) {
	return s.load(ctx, true)
}

func (s *AliasService) load(ctx context.Context, force bool) (*AliasIndex, error) {
	if s == nil || s.path == "" {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	ver, err := s.src.Version(s.path)
	if err != nil {
		return nil, fmt.Errorf("alias table %s: %w", s.path, err)
	}
	key := aliasKey(s.path, ver)
	if force {
		s.idx = nil
		_ = s.cache.Del(ctx, key)
	}
	if s.idx != nil && s.version == ver {
		return s.idx, nil
	}

	var tbl domain.AliasTable
	if ok, _ := s.cache.Get(ctx, key, &tbl); !ok {
		tbl, err = s.src.Load(s.path)
		if err != nil {
			return nil, err
		}
		if err := s.cache.Set(ctx, key, tbl, int(s.ttl.Seconds())); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("alias table cache set failed")
		}
	}
	s.idx, s.version = BuildAliasIndex(tbl), ver
	log.Info().Str("path", s.path).Int("aliases", s.idx.Size()).Msg("alias table loaded")
	return s.idx, nil
}

// NopCache never stores anything.
type NopCache struct{}

func (NopCache) Get(context.Context, string, any) (bool, error) { return false, nil }
func (NopCache) Set(context.Context, string, any, int) error { return nil }
func (NopCache) Del(context.Context, string) error { return nil }
