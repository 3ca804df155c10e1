package realtime

// pendingFrame is an outbound frame accepted while the socket was not open.
type pendingFrame struct {
	eventType string
	payload   []byte
}

// pendingQueue buffers outbound frames in arrival order until the connection
// (re)opens. It is unbounded; callers that need backpressure should stop
// producing on state-change notifications instead. Callers hold the client
// mutex.
type pendingQueue struct {
	frames []pendingFrame
}

func (q *pendingQueue) push(eventType string, payload []byte) {
	q.frames = append(q.frames, pendingFrame{eventType: eventType, payload: payload})
}

// drain removes and returns all buffered frames in FIFO order.
func (q *pendingQueue) drain() []pendingFrame {
	frames := q.frames
	q.frames = nil
	return frames
}

func (q *pendingQueue) len() int { return len(q.frames) }
