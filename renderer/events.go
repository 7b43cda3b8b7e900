package renderer

// FrameInfo describes the clock at the time of an event.
type FrameInfo struct {
	Time  float64
	Frame int
	DT    float64
	FPS   float64
}

// Event is one of BeforeFrame, AfterFrame, Paused, Resumed or Stopped.
type Event interface {
	Info() FrameInfo
	event()
}

func (f FrameInfo) Info() FrameInfo { return f }

type (
	BeforeFrame struct{ FrameInfo }
	AfterFrame  struct{ FrameInfo }
	Paused      struct{ FrameInfo }
	Resumed     struct{ FrameInfo }
	Stopped     struct{ FrameInfo }
)

func (BeforeFrame) event() {}
func (AfterFrame) event()  {}
func (Paused) event()      {}
func (Resumed) event()     {}
func (Stopped) event()     {}

type subscriber struct {
	id int
	fn func(Event)
}

// subscribers delivers events in subscription order.
type subscribers struct {
	next int
	list []subscriber
}

func (s *subscribers) add(fn func(Event)) func() {
	s.next++
	id := s.next
	s.list = append(s.list, subscriber{id: id, fn: fn})
	return func() { s.remove(id) }
}

func (s *subscribers) remove(id int) {
	for i, sub := range s.list {
		if sub.id == id {
			s.list = append(s.list[:i:i], s.list[i+1:]...)
			return
		}
	}
}

func (s *subscribers) emit(e Event) {
	// Handlers may unsubscribe while the event is delivered.
	for _, sub := range append([]subscriber(nil), s.list...) {
		sub.fn(e)
	}
}
