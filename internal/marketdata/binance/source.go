package binance

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"vpinscope.com/internal/marketdata/model"
	"vpinscope.com/internal/marketdata/source"
	"vpinscope.com/internal/vpinmetrics"
)

// Source streams aggTrade frames for one symbol over the raw
// single-stream endpoint, e.g. wss://stream.binance.com:9443/ws/btcusdt@aggTrade.
type Source struct {
	BaseURL string // e.g. wss://stream.binance.com:9443
	Symbol  string // e.g. "BTCUSDT"

	ReadLimit int64
	PongWait  time.Duration
	WriteWait time.Duration
	Dialer    *websocket.Dialer
}

func NewSource(symbol string) *Source {
	return &Source{
		BaseURL:   "wss://stream.binance.com:9443",
		Symbol:    symbol,
		ReadLimit: 1 << 20,
		PongWait:  60 * time.Second,
		WriteWait: 2 * time.Second,
		Dialer:    websocket.DefaultDialer,
	}
}

func (s *Source) Name() string { return "binance" }

func (s *Source) Run(ctx context.Context, out chan<- model.Trade) error {
	url := s.BaseURL + "/ws/" + strings.ToLower(s.Symbol) + "@aggTrade"

	c, _, err := s.Dialer.DialContext(ctx, url, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	c.SetReadLimit(s.ReadLimit)
	_ = c.SetReadDeadline(time.Now().Add(s.PongWait))
	c.SetPongHandler(func(string) error {
		_ = c.SetReadDeadline(time.Now().Add(s.PongWait))
		return nil
	})

	// Binance pings us; answer with the same payload. The payload must be
	// copied because gorilla reuses the buffer after the handler returns.
	var writeMu sync.Mutex
	c.SetPingHandler(func(appData string) error {
		cp := make([]byte, len(appData))
		copy(cp, appData)

		writeMu.Lock()
		defer writeMu.Unlock()
		_ = c.SetWriteDeadline(time.Now().Add(s.WriteWait))
		return c.WriteControl(websocket.PongMessage, cp, time.Now().Add(s.WriteWait))
	})

	for ctx.Err() == nil {
		_, msg, err := c.ReadMessage()
		if err != nil {
			return err
		}
		tr, err := ParseAggTrade(msg)
		if err != nil {
			// One malformed frame must never take the stream down.
			vpinmetrics.ParseErrorsTotal.Inc()
			continue
		}
		select {
		case out <- tr:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return ctx.Err()
}

var _ source.Source = (*Source)(nil)
