package realtime

import "testing"

func TestPendingQueueFIFO(t *testing.T) {
	var q pendingQueue
	q.push("a", []byte("1"))
	q.push("b", []byte("2"))
	q.push("c", []byte("3"))

	if q.len() != 3 {
		t.Fatalf("len = %d, want 3", q.len())
	}
	frames := q.drain()
	if len(frames) != 3 {
		t.Fatalf("drained %d frames, want 3", len(frames))
	}
	for i, want := range []string{"a", "b", "c"} {
		if frames[i].eventType != want {
			t.Errorf("frame %d type = %q, want %q", i, frames[i].eventType, want)
		}
	}
	if q.len() != 0 {
		t.Errorf("len after drain = %d, want 0", q.len())
	}
	if frames := q.drain(); frames != nil {
		t.Errorf("second drain = %v, want nil", frames)
	}
}
