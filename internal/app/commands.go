package app

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"hotel_pricesheet/internal/adapters/observability"
	"hotel_pricesheet/internal/domain"
	"hotel_pricesheet/internal/sheet"
	"hotel_pricesheet/internal/shared"
)

type ReconcileConfig struct {
	TemplatePath string
	Sheet        string
	OutputMode   string
	OutputDir    string
	UpdateMode   bool
	ForceRefresh bool
	// Profiles picks the layout of a destination; nil means sheet.ProfileFor.
	Profiles func(destination string) sheet.Profile
}

// ReconcileService runs one session per batch: load the template, reconcile,
// save, record. Sessions writing the same output path are serialized.
type ReconcileService struct {
	gw      domain.WorkbookGateway
	runs    domain.RunRepository
	aliases *AliasService
	cache   domain.Cache
	cfg     ReconcileConfig
	log     zerolog.Logger
	now     func() time.Time
	newID   func() string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewReconcileService(gw domain.WorkbookGateway, runs domain.RunRepository, aliases *AliasService, cache domain.Cache, cfg ReconcileConfig, log zerolog.Logger) *ReconcileService {
	if cache == nil {
		cache = NopCache{}
	}
	if cfg.Profiles == nil {
		cfg.Profiles = sheet.ProfileFor
	}
	return &ReconcileService{
		gw:      gw,
		runs:    runs,
		aliases: aliases,
		cache:   cache,
		cfg:     cfg,
		log:     log,
		now:     time.Now,
		newID:   func() string { return uuid.NewString() },
		locks:   map[string]*sync.Mutex{},
	}
}

// WithClock replaces the time source used for run timestamps and output names.
func (s *ReconcileService) WithClock(now func() time.Time) *ReconcileService {
	s.now = now
	return s
}

func (s *ReconcileService) lock(path string) func() {
	s.mu.Lock()
	m, ok := s.locks[path]
	if !ok {
		m = &sync.Mutex{}
		s.locks[path] = m
	}
	s.mu.Unlock()
	m.Lock()
	return m.Unlock
}

// OutputPath is where a session for destination saves its workbook.
func (s *ReconcileService) OutputPath(destination, runID string, at time.Time) string {
	if s.cfg.OutputMode == shared.OutputInPlace {
		return s.cfg.TemplatePath
	}
	short := runID
	if len(short) > 8 {
		short = short[:8]
	}
	name := fmt.Sprintf("FilledTemplate-%s-%s-%s.xlsx", slug(destination), at.Format("20060102-150405"), short)
	return filepath.Join(s.cfg.OutputDir, name)
}

func slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	out := strings.TrimSuffix(b.String(), "-")
	if out == "" {
		return "batch"
	}
	return out
}

// Reconcile never returns an error: whole-session failures come back as an
// unsuccessful Result, per-offer failures as recorded misses.
func (s *ReconcileService) Reconcile(ctx context.Context, b domain.Batch) domain.Result {
	if len(b.Offers) == 0 {
		s.log.Warn().Err(domain.ErrNoOffers).Str("destination", b.Destination).Msg("batch skipped")
		return domain.Result{Success: true, Message: "no offers to reconcile"}
	}

	id := s.newID()
	started := s.now()
	profile := s.cfg.Profiles(b.Destination)
	out := s.OutputPath(b.Destination, id, started)
	log := observability.RunLogger(s.log, id, profile.Name, s.cfg.Sheet)

	run := domain.Run{
		ID:           id,
		Destination:  b.Destination,
		TemplatePath: s.cfg.TemplatePath,
		OffersTotal:  len(b.Offers),
		StartedAt:    started,
	}
	fail := func(err error, what string) domain.Result {
		log.Error().Err(err).Msg(what)
		run.Message = fmt.Sprintf("%s: %v", what, err)
		s.record(ctx, run, nil, profile.Name)
		return domain.Result{Success: false, Message: run.Message, RunID: id}
	}

	unlock := s.lock(out)
	defer unlock()

	wb, err := s.gw.Load(ctx, s.cfg.TemplatePath)
	if err != nil {
		return fail(err, "load template")
	}
	defer wb.Close()

	ws, err := wb.Sheet(s.cfg.Sheet)
	if err != nil {
		return fail(err, "open worksheet")
	}

	idx, err := s.aliases.Index(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("alias table unavailable, matching without aliases")
	}

	start := b.StartDate
	if start.IsZero() {
		for _, o := range b.Offers {
			if start.IsZero() || o.Date.Before(start) {
				start = o.Date
			}
		}
	}

	opts := Options{UpdateMode: s.cfg.UpdateMode, ForceRefresh: s.cfg.ForceRefresh}
	sess := NewSession(id, ws, profile, start, idx, opts, log)
	st, err := sess.Run(ctx, b.Offers)
	run.OffersWritten = st.Written + st.Flagged
	run.OffersSkipped = st.Skipped + st.Duplicates
	run.BlocksCreated = st.BlocksCreated
	if err != nil {
		return fail(err, "reconcile")
	}

	if err := s.gw.Save(ctx, wb, out); err != nil {
		return fail(err, "save workbook")
	}

	run.Success = true
	run.OutputPath = out
	run.Message = fmt.Sprintf("reconciled %d of %d offers (%d unchanged, %d skipped) into %s",
		run.OffersWritten, run.OffersTotal, st.Unchanged, run.OffersSkipped, filepath.Base(out))
	s.record(ctx, run, sess.Misses(), profile.Name)
	log.Info().Str("path", out).Msg(run.Message)
	return domain.Result{Success: true, Message: run.Message, FilePath: out, RunID: id}
}

func (s *ReconcileService) record(ctx context.Context, run domain.Run, misses []domain.Miss, profile string) {
	run.FinishedAt = s.now()
	observability.ObserveRun(profile, run.Success)
	if s.runs == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	if err := s.runs.InsertRun(ctx, run); err != nil {
		s.log.Error().Err(err).Str("run_id", run.ID).Msg("record run failed")
		return
	}
	if len(misses) > 0 {
		if err := s.runs.InsertMisses(ctx, misses); err != nil {
			s.log.Error().Err(err).Str("run_id", run.ID).Msg("record misses failed")
		}
	}
	if err := s.cache.Set(ctx, runsGenKey, run.FinishedAt.UnixNano(), 0); err != nil {
		s.log.Warn().Err(err).Str("run_id", run.ID).Msg("bump run listing generation failed")
	}
}
