package gpusieve

// Event names published by a Sieve.
const (
	EventPlanned         = "planned"
	EventAllocated       = "allocated"
	EventInitFailed      = "init_failed"
	EventExponentChanged = "exponent_changed"
	EventClassStarted    = "class_started"
	EventSegment         = "segment"
	EventFreed           = "freed"
)

// Event represents a sieve lifecycle event: name, run id and optional fields.
type Event struct {
	Name   string
	RunID  string
	Fields map[string]any
}

// EventPublisher receives events from a Sieve. Implementations should be
// lightweight and non-blocking; Publish must not panic.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}

func (s *Sieve) publish(name string, fields map[string]any) {
	s.publisher.Publish(Event{Name: name, RunID: s.ID(), Fields: fields})
}
