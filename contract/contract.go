package contract

import (
	"context"
	"reflect"

	"github.com/xtzs123/uniapp-backend/domain"
)

// Sink is the delivery side of one live connection. Implementations
// must be non-blocking: a slow consumer drops frames rather than
// stalling the caller.
type Sink interface {
	Consume(ctx context.Context, frame domain.Frame) error
	Close() error
}

// IRegistry is the process-wide presence table: at most one live sink
// per authenticated user id.
type IRegistry interface {
	// Register binds a sink to a user, replacing any existing binding.
	// The replaced sink is returned so the caller can close it.
	Register(userID int64, sink Sink) (replaced Sink)
	// Unregister removes the binding only if sink is still the bound
	// one, so a superseded connection cannot evict its successor.
	Unregister(userID int64, sink Sink)
	// Send delivers best-effort to one user. A false return means the
	// user is not online, which is a normal state, not an error.
	Send(ctx context.Context, userID int64, frame domain.Frame) bool
	// BroadcastAll delivers to every registered session and returns
	// the number of sessions reached.
	BroadcastAll(ctx context.Context, frame domain.Frame) int
	Online(userID int64) bool
	Count() int
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}
