package stream

import (
	"strings"

	"github.com/starford/skald/internal/event"
)

// frameDecoder reassembles text/event-stream frames from arbitrarily
// chunked reads. Pending event type, pending data, and the trailing
// partial line all survive across Feed calls, so the dispatched sequence
// is independent of how the transport split the bytes.
type frameDecoder struct {
	remainder string
	eventType string
	data      string
	emit      func(kind event.Kind, data string)
}

func newFrameDecoder(emit func(kind event.Kind, data string)) *frameDecoder {
	return &frameDecoder{emit: emit}
}

// Feed consumes the next chunk of the stream body.
func (d *frameDecoder) Feed(chunk []byte) {
	buf := d.remainder + string(chunk)

	lines := strings.Split(buf, "\n")
	d.remainder = lines[len(lines)-1]
	lines = lines[:len(lines)-1]

	for _, line := range lines {
		line = strings.TrimSuffix(line, "\r")
		switch {
		case strings.HasPrefix(line, ":"):
			// Comment / heartbeat.
		case strings.HasPrefix(line, "event:"):
			d.eventType = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			d.data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		case line == "":
			if d.data != "" {
				kind := event.Kind(d.eventType)
				if kind == "" {
					kind = event.KindMessage
				}
				d.emit(kind, d.data)
			}
			d.eventType = ""
			d.data = ""
		}
	}
}
