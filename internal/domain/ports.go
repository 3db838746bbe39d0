package domain

import "context"

// Worksheet is the cell-level view the engine works against. Rows and
// columns are 1-based.
type Worksheet interface {
	Name() string
	Cell(row, col int) (CellValue, error)
	SetCell(row, col int, v CellValue) error
	// MergeColumn merges rows top..bottom of one column into a single cell.
	MergeColumn(col, top, bottom int) error
	// Merged reports the merged range covering (row, col), if any.
	Merged(row, col int) (top, bottom int, ok bool)
	// LastRow is the highest row holding any value or merge.
	LastRow() (int, error)
}

type Workbook interface {
	// Sheet returns the named worksheet; an empty name selects the first one.
	Sheet(name string) (Worksheet, error)
	WriteFile(path string) error
	Close() error
}

type WorkbookGateway interface {
	Load(ctx context.Context, path string) (Workbook, error)
	Save(ctx context.Context, wb Workbook, path string) error
}

type RunRepository interface {
	// Write paths
	InsertRun(ctx context.Context, r Run) error
	InsertMisses(ctx context.Context, ms []Miss) error

	// Read paths
	ListRuns(ctx context.Context, limit int) ([]Run, error)
	GetRun(ctx context.Context, id string) (Run, error)
	ListMisses(ctx context.Context, runID string, limit int) ([]Miss, error)
}

// BatchSource fetches raw batch payloads produced by the external scraper.
type BatchSource interface {
	GetBatch(ctx context.Context, id string) (map[string]any, error)
}

// AliasSource reads the aggregator alias table. Version must be cheap and
// change whenever the underlying table changes.
type AliasSource interface {
	Version(path string) (string, error)
	Load(path string) (AliasTable, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}
