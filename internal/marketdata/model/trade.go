package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Side uint8

const (
	SideUnknown Side = iota + 1
	SideBuy
	SideSell
)

func (s Side) String() string {
	switch s {
	case SideBuy:
		return "BUY"
	case SideSell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

// Trade is the normalized trade model fed into the volume-clock pipeline.
//
// Aggressor is the side whose order crossed the spread. For a Binance
// aggTrade, m=true means the buyer was the maker, so the aggressor was
// the seller.
//
// Price and Qty stay decimal end to end: the accumulator splits trades
// across bucket boundaries and float64 would leak volume on every split.
type Trade struct {
	Symbol    string
	Price     decimal.Decimal
	Qty       decimal.Decimal
	Aggressor Side
	Time      time.Time
	TradeID   string
}
