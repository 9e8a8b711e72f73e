package influxsink

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"go.uber.org/zap"

	"vpinscope.com/internal/stream"
	"vpinscope.com/pkg/logger"
	"vpinscope.com/pkg/safe"
)

type Config struct {
	URL    string
	Token  string
	Org    string
	Bucket string

	BatchSize     uint
	FlushInterval time.Duration
	UseGzip       bool
}

// Sink persists toxicity readings to InfluxDB through the async write
// API. It subscribes to the event bus like any other consumer and only
// records bucket_closed events; briefs and resets are ephemeral.
type Sink struct {
	client influxdb2.Client
	write  api.WriteAPI
	symbol string
}

func New(cfg Config, symbol string) *Sink {
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 2000
	}
	if cfg.FlushInterval == 0 {
		cfg.FlushInterval = 1 * time.Second
	}

	opt := influxdb2.DefaultOptions().
		SetBatchSize(cfg.BatchSize).
		SetFlushInterval(uint(cfg.FlushInterval.Milliseconds())).
		SetUseGZip(cfg.UseGzip)

	c := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, opt)
	w := c.WriteAPI(cfg.Org, cfg.Bucket)

	// Errors() must be drained or the async writer can stall.
	safe.Go(func() {
		for err := range w.Errors() {
			logger.Warn(context.Background(), "influx write error", zap.Error(err))
		}
	})

	return &Sink{client: c, write: w, symbol: symbol}
}

// Send implements stream.Subscriber. WritePoint only appends to the
// client's batch buffer, so the bus pump is never blocked on I/O.
func (s *Sink) Send(ctx context.Context, ev stream.Event) error {
	if ev.Type != stream.EventReading {
		return nil
	}
	rp, ok := ev.Payload.(*stream.ReadingPayload)
	if !ok {
		return nil
	}

	tags := map[string]string{
		"symbol":      s.symbol,
		"alert_level": string(rp.AlertLevel),
	}
	fields := map[string]interface{}{
		"vpin":            rp.VPIN,
		"buy_volume":      rp.BuyVolume.InexactFloat64(),
		"sell_volume":     rp.SellVolume.InexactFloat64(),
		"order_imbalance": rp.OrderImbalance,
		"bucket_id":       int64(rp.BucketID),
		"trade_count":     int64(rp.TradeCount),
		"alert":           rp.Alert,
	}
	if rp.LatestPrice != nil {
		fields["latest_price"] = rp.LatestPrice.InexactFloat64()
	}

	p := write.NewPoint("vpin_reading", tags, fields, rp.Timestamp)
	s.write.WritePoint(p)
	return nil
}

// Close flushes any buffered points.
func (s *Sink) Close() {
	s.client.Close()
}

func (cfg Config) String() string {
	return fmt.Sprintf("url=%s org=%s bucket=%s batch=%d flush=%s gzip=%v",
		cfg.URL, cfg.Org, cfg.Bucket, cfg.BatchSize, cfg.FlushInterval, cfg.UseGzip)
}
