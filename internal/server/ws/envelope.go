package ws

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/alanyoungcy/mmsignal/internal/domain"
)

var errInvalidPayload = errors.New("ws: payload is not JSON")

// Envelope is the frame sent to clients.
type Envelope struct {
	Type    string          `json:"type"`
	Channel string          `json:"channel,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

// subscribeMsg is sent by clients to change what they receive, e.g.
// {"action":"subscribe","channels":["books:BTC/USDT"]}.
type subscribeMsg struct {
	Action   string   `json:"action"`
	Channels []string `json:"channels"`
}

// resolveChannel turns a "books:*" delivery into "books:<instrument>" using
// the payload's instrument field. Pattern subscriptions lose the concrete
// channel name on the way through the bus.
func resolveChannel(channel string, data []byte) string {
	prefix, ok := strings.CutSuffix(channel, "*")
	if !ok {
		return channel
	}
	var probe struct {
		Instrument string `json:"instrument"`
	}
	if json.Unmarshal(data, &probe) != nil || probe.Instrument == "" {
		return channel
	}
	return prefix + probe.Instrument
}

func encodeEnvelope(channel string, payload []byte) ([]byte, error) {
	if !json.Valid(payload) {
		return nil, errInvalidPayload
	}
	return json.Marshal(Envelope{Type: envelopeType(channel), Channel: channel, Payload: payload})
}

func envelopeType(channel string) string {
	switch channel {
	case domain.ChannelOpportunities:
		return "opportunity"
	case domain.ChannelSignals:
		return "signal"
	case domain.ChannelBacktests:
		return "backtest"
	}
	if strings.HasPrefix(channel, domain.ChannelBooksPrefix) {
		return "book"
	}
	return "message"
}

func statusFrame(s domain.EngineStatus) ([]byte, error) {
	payload, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: "status", Payload: payload})
}
