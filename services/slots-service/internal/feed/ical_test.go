package feed

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-ical"
)

func TestWriteRoundTrip(t *testing.T) {
	start := time.Date(2025, 4, 20, 9, 0, 0, 0, time.UTC)
	events := []Event{
		{UID: "free-1", Summary: "Free", Start: start, End: start.Add(time.Hour), Free: true},
		{UID: "slot-1", Summary: "Busy", Start: start.Add(time.Hour), End: start.Add(2 * time.Hour)},
	}

	var buf bytes.Buffer
	if err := Write(&buf, "Free time", events, start); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if !strings.Contains(buf.String(), "TRANSP:TRANSPARENT") {
		t.Fatalf("expected free event to be transparent:\n%s", buf.String())
	}

	cal, err := ical.NewDecoder(&buf).Decode()
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	got := cal.Events()
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
	uid, err := got[0].Props.Text(ical.PropUID)
	if err != nil || uid != "free-1" {
		t.Fatalf("unexpected uid %q (%v)", uid, err)
	}
	dtstart, err := got[0].DateTimeStart(time.UTC)
	if err != nil || !dtstart.Equal(start) {
		t.Fatalf("unexpected DTSTART %s (%v)", dtstart, err)
	}
}
