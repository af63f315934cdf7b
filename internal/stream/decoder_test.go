package stream

import (
	"fmt"
	"testing"

	"github.com/starford/skald/internal/event"
)

type dispatched struct {
	kind event.Kind
	data string
}

func collect() (*[]dispatched, func(event.Kind, string)) {
	var got []dispatched
	return &got, func(k event.Kind, d string) {
		got = append(got, dispatched{kind: k, data: d})
	}
}

const sampleStream = ": hello\n" +
	"event: connected\n" +
	"data: {\"session_id\":\"s1\"}\n" +
	"\n" +
	": ping\n" +
	"\n" +
	"event: note_updated\n" +
	"data: {\"note_uuid\":\"n1\"}\n" +
	"\n" +
	"data: {\"note_uuid\":\"n2\"}\n" +
	"\n" +
	"event: task_updated\n" +
	"data: {\"task_uuid\":\"t1\"}\n" +
	"\n"

var sampleWant = []dispatched{
	{event.KindConnected, `{"session_id":"s1"}`},
	{event.KindNoteUpdated, `{"note_uuid":"n1"}`},
	{event.KindMessage, `{"note_uuid":"n2"}`},
	{event.KindTaskUpdated, `{"task_uuid":"t1"}`},
}

func TestDecodeSingleRead(t *testing.T) {
	got, emit := collect()
	d := newFrameDecoder(emit)
	d.Feed([]byte(sampleStream))

	compareDispatches(t, *got, sampleWant)
}

// Chunk-boundary independence: any split of the input produces the same
// dispatch sequence as one contiguous read.
func TestDecodeChunkBoundaryIndependence(t *testing.T) {
	for _, size := range []int{1, 2, 3, 5, 7, 16, 64} {
		t.Run(fmt.Sprintf("chunk=%d", size), func(t *testing.T) {
			got, emit := collect()
			d := newFrameDecoder(emit)
			for i := 0; i < len(sampleStream); i += size {
				end := i + size
				if end > len(sampleStream) {
					end = len(sampleStream)
				}
				d.Feed([]byte(sampleStream[i:end]))
			}
			compareDispatches(t, *got, sampleWant)
		})
	}
}

func TestDecodeSplitBetweenEventAndData(t *testing.T) {
	got, emit := collect()
	d := newFrameDecoder(emit)
	d.Feed([]byte("event: note_updated\n"))
	d.Feed([]byte("data: {\"note_uuid\":\"n1\"}\n\n"))

	compareDispatches(t, *got, []dispatched{
		{event.KindNoteUpdated, `{"note_uuid":"n1"}`},
	})
}

func TestDecodeCRLFLines(t *testing.T) {
	got, emit := collect()
	d := newFrameDecoder(emit)
	d.Feed([]byte("event: connected\r\ndata: {}\r\n\r\n"))

	compareDispatches(t, *got, []dispatched{
		{event.KindConnected, `{}`},
	})
}

func TestDecodeBlankLineWithoutDataIsSilent(t *testing.T) {
	got, emit := collect()
	d := newFrameDecoder(emit)
	d.Feed([]byte(": heartbeat\n\n\n\n"))

	if len(*got) != 0 {
		t.Errorf("dispatched %d frames from heartbeats, want 0", len(*got))
	}
}

func TestDecodePartialTrailingLineIsHeld(t *testing.T) {
	got, emit := collect()
	d := newFrameDecoder(emit)
	d.Feed([]byte("data: {\"no"))

	if len(*got) != 0 {
		t.Fatalf("partial line dispatched early")
	}
	d.Feed([]byte("te_uuid\":\"n9\"}\n\n"))
	compareDispatches(t, *got, []dispatched{
		{event.KindMessage, `{"note_uuid":"n9"}`},
	})
}

func compareDispatches(t *testing.T, got, want []dispatched) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("dispatched %d frames, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("frame %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}
