package binance

import (
	"errors"
	"strconv"
	"time"

	"github.com/segmentio/encoding/json"
	"github.com/shopspring/decimal"

	"vpinscope.com/internal/marketdata/model"
)

type bnAggTrade struct {
	EventType string `json:"e"`
	EventTime int64  `json:"E"`
	Symbol    string `json:"s"`
	AggID     int64  `json:"a"`
	Price     string `json:"p"`
	Qty       string `json:"q"`
	TradeTime int64  `json:"T"`
	M         bool   `json:"m"`
}

var errNotAggTrade = errors.New("not aggTrade")

// ParseAggTrade decodes a raw single-stream aggTrade frame.
//
// m=true means the buyer was the maker, so the seller crossed the spread:
// aggressor side SELL. m=false is a buy-initiated trade.
func ParseAggTrade(b []byte) (model.Trade, error) {
	var a bnAggTrade
	if err := json.Unmarshal(b, &a); err != nil {
		return model.Trade{}, err
	}
	if a.EventType != "aggTrade" {
		return model.Trade{}, errNotAggTrade
	}

	price, err := decimal.NewFromString(a.Price)
	if err != nil {
		return model.Trade{}, err
	}
	qty, err := decimal.NewFromString(a.Qty)
	if err != nil {
		return model.Trade{}, err
	}

	aggressor := model.SideBuy
	if a.M {
		aggressor = model.SideSell
	}

	return model.Trade{
		Symbol:    a.Symbol,
		Price:     price,
		Qty:       qty,
		Aggressor: aggressor,
		Time:      time.UnixMilli(a.TradeTime).UTC(),
		TradeID:   strconv.FormatInt(a.AggID, 10),
	}, nil
}
