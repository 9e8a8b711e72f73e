package stream

import (
	"time"

	"github.com/shopspring/decimal"

	"vpinscope.com/internal/vpin"
)

type EventType string

const (
	EventReading EventType = "bucket_closed"
	EventBrief   EventType = "intelligence_brief"
	EventReset   EventType = "system_reset"
)

// Event is what the bus fans out. Payload is one of ReadingPayload,
// agent.Brief (for EventBrief) or Status (for EventReset); subscribers
// that speak JSON marshal it as the "data" member.
type Event struct {
	Type    EventType `json:"type"`
	Payload any       `json:"data"`
}

// ReadingPayload is the wire form of a toxicity reading, with the stream
// counters the dashboard wants alongside it.
type ReadingPayload struct {
	BucketID       uint64           `json:"bucket_id"`
	Timestamp      time.Time        `json:"timestamp"`
	VPIN           float64          `json:"vpin"`
	AlertLevel     vpin.AlertLevel  `json:"alert_level"`
	Alert          bool             `json:"alert"`
	BuyVolume      decimal.Decimal  `json:"buy_volume"`
	SellVolume     decimal.Decimal  `json:"sell_volume"`
	OrderImbalance float64          `json:"order_imbalance"`
	TradeCount     uint64           `json:"trade_count"`
	LatestPrice    *decimal.Decimal `json:"latest_price,omitempty"`
}

func readingPayload(r vpin.Reading, trades uint64, price *decimal.Decimal) *ReadingPayload {
	return &ReadingPayload{
		BucketID:       r.BucketID,
		Timestamp:      r.Timestamp,
		VPIN:           r.Score,
		AlertLevel:     r.Level,
		Alert:          r.Alert,
		BuyVolume:      r.BuyVolume,
		SellVolume:     r.SellVolume,
		OrderImbalance: r.OrderImbalance,
		TradeCount:     trades,
		LatestPrice:    price,
	}
}
