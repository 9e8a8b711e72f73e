package natspub

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/nats-io/nats.go"

	"vpinscope.com/internal/stream"
)

// Publisher mirrors toxicity events onto NATS so downstream consumers
// (risk engines, recorders) get the same feed as websocket clients.
// Subjects follow vpin.<SYMBOL>.<event type>, e.g. vpin.BTCUSDT.bucket_closed.
type Publisher struct {
	nc     *nats.Conn
	symbol string
}

func New(url, symbol string, opts ...nats.Option) (*Publisher, error) {
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, err
	}
	return &Publisher{nc: nc, symbol: strings.ToUpper(symbol)}, nil
}

// Send implements stream.Subscriber. Publish is fire-and-forget; NATS
// buffers internally, so this never blocks the bus pump.
func (p *Publisher) Send(ctx context.Context, ev stream.Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.nc.Publish(p.subject(ev.Type), b)
}

func (p *Publisher) subject(t stream.EventType) string {
	return "vpin." + p.symbol + "." + string(t)
}

func (p *Publisher) Close() {
	if p.nc != nil {
		_ = p.nc.Drain()
		p.nc.Close()
	}
}
