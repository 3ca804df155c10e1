package realtime

import "strings"

type transcriptKey struct {
	responseID string
	itemID     string
}

// transcriptAccumulator assembles output-transcript deltas into complete
// utterances, keyed by (response, item) so interleaved streams never mix.
// Callers hold the client mutex; the accumulator itself is not locked.
type transcriptAccumulator struct {
	parts map[transcriptKey]*strings.Builder
}

func newTranscriptAccumulator() *transcriptAccumulator {
	return &transcriptAccumulator{parts: make(map[transcriptKey]*strings.Builder)}
}

// add appends a delta to the stream's buffer and returns the text so far.
func (a *transcriptAccumulator) add(responseID, itemID, delta string) string {
	k := transcriptKey{responseID, itemID}
	b, ok := a.parts[k]
	if !ok {
		b = &strings.Builder{}
		a.parts[k] = b
	}
	b.WriteString(delta)
	return b.String()
}

// finish returns the accumulated text for the stream and releases its buffer.
// When no deltas were ever seen for the stream, fallback is returned instead,
// covering remote sides that only send the final transcript frame.
func (a *transcriptAccumulator) finish(responseID, itemID, fallback string) string {
	k := transcriptKey{responseID, itemID}
	b, ok := a.parts[k]
	if !ok {
		return fallback
	}
	delete(a.parts, k)
	return b.String()
}

// dropResponse releases all buffers belonging to a response, used when the
// response completes without per-item done frames (e.g. cancellation).
func (a *transcriptAccumulator) dropResponse(responseID string) {
	for k := range a.parts {
		if k.responseID == responseID {
			delete(a.parts, k)
		}
	}
}

// reset discards every buffered stream. Called when a connection is lost,
// since in-flight responses do not resume across reconnects.
func (a *transcriptAccumulator) reset() {
	a.parts = make(map[transcriptKey]*strings.Builder)
}
