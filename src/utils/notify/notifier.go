package notify

// Receives workflow events. Never blocks the caller.
type Notifier interface {
	Notify(event *Event)
}

// Drops every event
type Noop struct{}

func (Noop) Notify(*Event) {}

// Collects events in memory
type Recorder struct {
	Events chan *Event
}

func NewRecorder(size int) *Recorder {
	return &Recorder{Events: make(chan *Event, size)}
}

func (self *Recorder) Notify(event *Event) {
	select {
	case self.Events <- event:
	default:
	}
}
