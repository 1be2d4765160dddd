package events

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type EventType string

const (
	EventTypeSubscribe   EventType = "subscribe"
	EventTypeUnsubscribe EventType = "unsubscribe"
	EventTypeCustom      EventType = "custom"
)

// Event is one decoded broker event.
type Event struct {
	Type    EventType
	Channel string
	Payload EventPayload

	// Raw is the undecoded payload, kept for custom event consumers that
	// carry fields beyond the envelope.
	Raw []byte
}

// EventPayload is the inbound event envelope. Meta is optional; anonymous
// connections carry none.
type EventPayload struct {
	SessionID string                 `json:"session_id"`
	Meta      map[string]interface{} `json:"meta,omitempty"`
}

// MetaValue returns the stringified identity stored under key in the event
// meta. The second return reports whether the field was present and non-null.
func (p EventPayload) MetaValue(key string) (string, bool) {
	if p.Meta == nil {
		return "", false
	}

	v, ok := p.Meta[key]
	if !ok || v == nil {
		return "", false
	}

	switch x := v.(type) {
	case string:
		return x, true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(x), true
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return "", false
		}

		return string(b), true
	}
}

type DecodeError struct {
	Channel string
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("events: decode %q: %s", e.Channel, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

var errBadChannel = errors.New("channel name carries no event suffix")

// EncodePublish builds the outbound publish envelope. Channels are
// deduplicated and sorted, so the encoding is deterministic but input order
// is not preserved. Keys in extra are merged last and may overwrite the
// envelope fields.
func EncodePublish(channels []string, data interface{}, except []string, extra map[string]interface{}) ([]byte, error) {
	d := map[string]interface{}{
		"channels": dedupeChannels(channels),
		"data":     data,
	}

	if len(except) > 0 {
		d["except"] = except
	}

	for k, v := range extra {
		d[k] = v
	}

	return json.Marshal(d)
}

func dedupeChannels(channels []string) []string {
	seen := make(map[string]struct{}, len(channels))
	out := make([]string, 0, len(channels))

	for _, c := range channels {
		if _, ok := seen[c]; ok {
			continue
		}

		seen[c] = struct{}{}

		out = append(out, c)
	}

	sort.Strings(out)

	return out
}

// DecodeEvent decodes one raw broker message. The event type is the channel
// name's suffix past the first ':' delimiter.
func DecodeEvent(channel string, payload []byte) (Event, error) {
	_, suffix, ok := strings.Cut(channel, ":")
	if !ok {
		return Event{}, &DecodeError{Channel: channel, Err: errBadChannel}
	}

	var p EventPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return Event{}, &DecodeError{Channel: channel, Err: err}
	}

	return Event{
		Type:    EventType(suffix),
		Channel: channel,
		Payload: p,
		Raw:     payload,
	}, nil
}
