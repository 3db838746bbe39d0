package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Aggregator identifies one price source. Each aggregator owns exactly one
// price column inside a hotel block.
type Aggregator string

type Offer struct {
	HotelRaw   string
	Aggregator Aggregator
	Date       time.Time
	RoomType   string
	Price      decimal.Decimal
}

// Batch is one scrape result for a destination. StartDate anchors the date
// rows of newly populated blocks.
type Batch struct {
	Destination string
	StartDate   time.Time
	Offers      []Offer
}

// Result is what callers of a reconciliation receive.
type Result struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	FilePath string `json:"filePath,omitempty"`
	RunID    string `json:"runId,omitempty"`
}

// Run is the persisted summary of one reconciliation session.
type Run struct {
	ID            string    `json:"id"`
	Destination   string    `json:"destination"`
	TemplatePath  string    `json:"templatePath"`
	OutputPath    string    `json:"outputPath,omitempty"`
	OffersTotal   int       `json:"offersTotal"`
	OffersWritten int       `json:"offersWritten"`
	OffersSkipped int       `json:"offersSkipped"`
	BlocksCreated int       `json:"blocksCreated"`
	Success       bool      `json:"success"`
	Message       string    `json:"message"`
	StartedAt     time.Time `json:"startedAt"`
	FinishedAt    time.Time `json:"finishedAt"`
}

// Miss records an offer that was skipped during a run.
type Miss struct {
	RunID      string     `json:"runId"`
	Hotel      string     `json:"hotel"`
	Aggregator Aggregator `json:"aggregator"`
	Date       string     `json:"date"`
	Reason     string     `json:"reason"`
}

// AliasTable maps, per aggregator, a scraped hotel name to the name used in
// the template. Keys are stored as read; callers normalize before lookup.
type AliasTable map[Aggregator]map[string]string
