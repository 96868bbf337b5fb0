package progress

import "context"

// Sink consumes batches of events. Implementations must honor ctx deadlines and tolerate
// repeated Consume calls.
type Sink interface {
	Consume(ctx context.Context, batch []Event) error
	Close(ctx context.Context) error
}

// Emitter publishes individual events. Hub satisfies it.
type Emitter interface {
	Emit(evt Event)
}

// Emit forwards evt to e, tolerating a nil emitter.
func Emit(e Emitter, evt Event) {
	if e == nil {
		return
	}
	e.Emit(evt)
}
