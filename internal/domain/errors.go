package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrEmptyHotelName    = errors.New("empty hotel name")
	ErrUnknownAggregator = errors.New("unknown aggregator")
	ErrDateOutOfRange    = errors.New("date out of range")
	ErrBlockFull         = errors.New("block full")
	ErrInvalidDate       = errors.New("invalid date")
	ErrNoOffers          = errors.New("no offers")
	ErrSaveExhausted     = errors.New("save retries exhausted")
	ErrSheetNotFound     = errors.New("worksheet not found")
)
