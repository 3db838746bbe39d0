package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"hotel_pricesheet/internal/domain"
)

// missBatchSize bounds the placeholders of one multi-row insert.
const missBatchSize = 500

func valStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func valTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}

// clip cuts s to at most n runes to fit a VARCHAR column.
func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

func (r *Repo) InsertRun(ctx context.Context, run domain.Run) error {
	_, err := r.db.ExecContext(ctx, insertRunSQL,
		run.ID,
		clip(run.Destination, 128),
		run.TemplatePath,
		valStr(run.OutputPath),
		run.OffersTotal,
		run.OffersWritten,
		run.OffersSkipped,
		run.BlocksCreated,
		run.Success,
		valStr(run.Message),
		run.StartedAt.UTC(),
		valTime(run.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}
	return nil
}

func (r *Repo) InsertMisses(ctx context.Context, ms []domain.Miss) error {
	for len(ms) > 0 {
		n := len(ms)
		if n > missBatchSize {
			n = missBatchSize
		}
		chunk := ms[:n]
		ms = ms[n:]

		values := make([]string, 0, len(chunk))
		args := make([]any, 0, len(chunk)*5)
		for _, m := range chunk {
			values = append(values, "(?,?,?,?,?)")
			args = append(args,
				m.RunID,
				clip(m.Hotel, 512),
				clip(string(m.Aggregator), 64),
				m.Date,
				clip(m.Reason, 1024),
			)
		}
		if _, err := r.db.ExecContext(ctx, insertMissesPrefix+strings.Join(values, ","), args...); err != nil {
			return fmt.Errorf("insert %d misses: %w", len(chunk), err)
		}
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (domain.Run, error) {
	var (
		run        domain.Run
		outputPath sql.NullString
		message    sql.NullString
		finishedAt sql.NullTime
	)
	if err := s.Scan(
		&run.ID,
		&run.Destination,
		&run.TemplatePath,
		&outputPath,
		&run.OffersTotal,
		&run.OffersWritten,
		&run.OffersSkipped,
		&run.BlocksCreated,
		&run.Success,
		&message,
		&run.StartedAt,
		&finishedAt,
	); err != nil {
		return domain.Run{}, err
	}
	run.OutputPath = outputPath.String
	run.Message = message.String
	if finishedAt.Valid {
		run.FinishedAt = finishedAt.Time
	}
	return run, nil
}

func (r *Repo) ListRuns(ctx context.Context, limit int) ([]domain.Run, error) {
	rows, err := r.db.QueryContext(ctx, listRunsSQL, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

func (r *Repo) GetRun(ctx context.Context, id string) (domain.Run, error) {
	run, err := scanRun(r.db.QueryRowContext(ctx, getRunSQL, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Run{}, domain.ErrNotFound
	}
	return run, err
}

func (r *Repo) ListMisses(ctx context.Context, runID string, limit int) ([]domain.Miss, error) {
	rows, err := r.db.QueryContext(ctx, listMissesSQL, runID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Miss
	for rows.Next() {
		var m domain.Miss
		var agg string
		if err := rows.Scan(&m.RunID, &m.Hotel, &agg, &m.Date, &m.Reason); err != nil {
			return nil, err
		}
		m.Aggregator = domain.Aggregator(agg)
		out = append(out, m)
	}
	return out, rows.Err()
}
