package runtime

import (
	"context"
	"log/slog"
	"sync"

	"github.com/xtzs123/uniapp-backend/contract"
	"github.com/xtzs123/uniapp-backend/domain"
)

// Registry is the process-wide presence table. It holds at most one
// live sink per authenticated user and is the only shared mutable
// structure touched by connection workers.
type Registry struct {
	mu       sync.RWMutex
	sessions map[int64]contract.Sink
	log      *slog.Logger
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		sessions: make(map[int64]contract.Sink),
		log:      log,
	}
}

// Register binds the sink to the user with last-register-wins
// semantics. Any previously bound sink is returned so the caller can
// close the superseded connection instead of orphaning it.
func (r *Registry) Register(userID int64, sink contract.Sink) contract.Sink {
	r.mu.Lock()
	replaced := r.sessions[userID]
	r.sessions[userID] = sink
	online := len(r.sessions)
	r.mu.Unlock()

	r.log.Info("Session registered", "user_id", userID, "superseded", replaced != nil, "online", online)
	return replaced
}

// Unregister removes the binding only when sink is still the bound
// one. A superseded connection unwinding its own teardown therefore
// cannot evict the session that replaced it.
func (r *Registry) Unregister(userID int64, sink contract.Sink) {
	r.mu.Lock()
	current, ok := r.sessions[userID]
	if ok && current == sink {
		delete(r.sessions, userID)
	}
	online := len(r.sessions)
	r.mu.Unlock()

	if ok && current == sink {
		r.log.Info("Session unregistered", "user_id", userID, "online", online)
	}
}

// Send delivers best-effort to one user. Absence of the recipient is a
// normal state: the frame is dropped and false returned. Nothing is
// queued or retried; catch-up relies on the client re-fetching state
// after reconnecting.
func (r *Registry) Send(ctx context.Context, userID int64, frame domain.Frame) bool {
	r.mu.RLock()
	sink, ok := r.sessions[userID]
	r.mu.RUnlock()

	if !ok {
		return false
	}
	if err := sink.Consume(ctx, frame); err != nil {
		r.log.Debug("Delivery dropped", "user_id", userID, "frame", frame.FrameType(), "error", err)
		return false
	}
	return true
}

// BroadcastAll delivers to every registered session, returning how
// many were reached. Reserved for operational announcements.
func (r *Registry) BroadcastAll(ctx context.Context, frame domain.Frame) int {
	r.mu.RLock()
	sinks := make(map[int64]contract.Sink, len(r.sessions))
	for userID, sink := range r.sessions {
		sinks[userID] = sink
	}
	r.mu.RUnlock()

	reached := 0
	for userID, sink := range sinks {
		if err := sink.Consume(ctx, frame); err != nil {
			r.log.Debug("Broadcast delivery dropped", "user_id", userID, "error", err)
			continue
		}
		reached++
	}
	return reached
}

func (r *Registry) Online(userID int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sessions[userID]
	return ok
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
