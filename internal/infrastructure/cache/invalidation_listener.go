package cache

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/zutrittswerk/portier/internal/repositories/postgres"
	"github.com/zutrittswerk/portier/internal/services"
)

// Invalidator is the resolver-side surface the listener drives.
type Invalidator interface {
	Invalidate(ctx context.Context, principalIDs map[int64]bool)
	InvalidateAll(ctx context.Context)
}

// InvalidationListener keeps the local resolved-set cache consistent across
// engine instances sharing a database. It uses PostgreSQL LISTEN/NOTIFY:
// every gateway mutation publishes its invalidation scope, and every other
// instance drops the named entries. Local mutations invalidate directly;
// the listener only matters for remote writers.
type InvalidationListener struct {
	mu       sync.Mutex
	resolver Invalidator
	listener *pq.Listener
	connStr  string
	stopCh   chan struct{}
	stopped  bool
}

// NewInvalidationListener creates a listener over the given connection
// string. Start must be called before notifications are processed.
func NewInvalidationListener(connStr string, resolver Invalidator) *InvalidationListener {
	return &InvalidationListener{
		resolver: resolver,
		connStr:  connStr,
		stopCh:   make(chan struct{}),
	}
}

// Start opens the LISTEN connection and begins processing notifications.
func (l *InvalidationListener) Start() error {
	reportProblem := func(ev pq.ListenerEventType, err error) {
		if err != nil {
			// A broken listener self-reconnects; entries still expire by TTL.
			log.Printf("invalidation listener error: %v", err)
		}
	}

	l.listener = pq.NewListener(l.connStr, 10*time.Second, time.Minute, reportProblem)
	if err := l.listener.Listen(postgres.InvalidationChannel); err != nil {
		return fmt.Errorf("failed to listen on %s: %w", postgres.InvalidationChannel, err)
	}

	go l.handleNotifications()
	return nil
}

// Stop stops the listener and closes its connection.
func (l *InvalidationListener) Stop() error {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return nil
	}
	l.stopped = true
	close(l.stopCh)
	l.mu.Unlock()

	if l.listener != nil {
		return l.listener.Close()
	}
	return nil
}

// handleNotifications processes incoming NOTIFY events.
func (l *InvalidationListener) handleNotifications() {
	ctx := context.Background()
	for {
		select {
		case <-l.stopCh:
			return
		case notification := <-l.listener.Notify:
			if notification == nil {
				// Connection was lost and re-established; anything may have
				// changed in between, so flush everything.
				l.resolver.InvalidateAll(ctx)
				continue
			}
			ids, all := services.ParseScope(notification.Extra)
			if all {
				l.resolver.InvalidateAll(ctx)
			} else {
				l.resolver.Invalidate(ctx, ids)
			}
		case <-time.After(90 * time.Second):
			// Periodic ping to keep connection alive
			go func() {
				if err := l.listener.Ping(); err != nil {
					log.Printf("invalidation listener ping error: %v", err)
				}
			}()
		}
	}
}
