package mqtt

// Sink publishes each packet to one topic. It never blocks the caller
// on the broker; only failures already known at publish time are returned.
type Sink struct {
	Queue *Queue
	Topic string
}

// NewSink creates a Sink publishing to the telemetry topic of robotID.
func NewSink(q *Queue, robotID string) *Sink {
	return &Sink{Queue: q, Topic: TelemetryTopic(robotID)}
}

// WritePacket implements telemetry.Sink.
func (s *Sink) WritePacket(pkt []byte) error {
	token := s.Queue.Pub(s.Topic, pkt)
	if token.WaitTimeout(0) {
		return token.Error()
	}
	return nil
}
