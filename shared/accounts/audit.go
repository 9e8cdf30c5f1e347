package accounts

import (
	"context"
	"sync"
	"time"

	"github.com/tvloc02/EventVer1-sub001/shared/database/models/auth"
	"github.com/tvloc02/EventVer1-sub001/shared/logging"
	"github.com/tvloc02/EventVer1-sub001/shared/session"
)

const (
	auditTimeout = 2 * time.Second
	auditBuffer  = 256
)

// AuditRecorder persists session and account events as AuditLog rows. Record
// only queues the event; a single worker writes it. When the queue is full
// the event is dropped and logged, and a failed write is logged and
// otherwise ignored.
type AuditRecorder struct {
	store Store
	log   logging.Logger

	mu     sync.RWMutex
	closed bool
	events chan session.Event
	done   chan struct{}
}

// NewAuditRecorder starts the writer. Call Close to flush queued events.
func NewAuditRecorder(store Store, log logging.Logger) *AuditRecorder {
	if log == nil {
		log = logging.Nop()
	}
	a := &AuditRecorder{
		store:  store,
		log:    log,
		events: make(chan session.Event, auditBuffer),
		done:   make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *AuditRecorder) Record(ctx context.Context, ev session.Event) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return
	}
	select {
	case a.events <- ev:
	default:
		a.log.Warn(ctx, "audit queue full, event dropped", "event", ev.Type, "subject", ev.Subject)
	}
}

// Close stops accepting events and waits until the queued ones are written.
func (a *AuditRecorder) Close() {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.events)
	}
	a.mu.Unlock()
	<-a.done
}

func (a *AuditRecorder) run() {
	defer close(a.done)
	for ev := range a.events {
		a.write(ev)
	}
}

func (a *AuditRecorder) write(ev session.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), auditTimeout)
	defer cancel()

	reason := ev.Reason
	if len(reason) > 255 {
		reason = reason[:255]
	}
	entry := &auth.AuditLog{
		Event:     ev.Type,
		Subject:   ev.Subject,
		Success:   ev.Success,
		Reason:    reason,
		IPAddress: ev.Device.IP,
		UserAgent: ev.Device.UserAgent,
		Platform:  ev.Device.Platform,
		CreatedAt: ev.At,
	}
	if err := a.store.SaveAudit(ctx, entry); err != nil {
		a.log.Warn(ctx, "failed to write audit log", "event", ev.Type, "subject", ev.Subject, "error", err)
	}
}
