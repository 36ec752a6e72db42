// Package notify delivers the post-commit events returned by the decision
// engine. Delivery is best effort: failures are logged and counted, never
// returned to the caller.
package notify

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stake-plus/bandgov/src/governance/metrics"
	"github.com/stake-plus/bandgov/src/governance/proposals"
	"github.com/stake-plus/bandgov/src/logging"
	"golang.org/x/sync/errgroup"
)

// Notification is the payload delivered to one member.
type Notification struct {
	Type      proposals.EventType `json:"type"`
	Title     string              `json:"title"`
	Message   string              `json:"message"`
	ActionURL string              `json:"actionUrl"`
	Priority  proposals.Priority  `json:"priority"`
}

// Notifier delivers a notification to one user.
type Notifier interface {
	Notify(ctx context.Context, userID uint64, n Notification) error
}

// Announcer posts a band-wide message, once per event kind.
type Announcer interface {
	Announce(ctx context.Context, bandID uint64, n Notification) error
}

// Dispatcher fans events out to notifiers with bounded concurrency.
type Dispatcher struct {
	notifier   Notifier
	announcers []Announcer
	limit      int
	timeout    time.Duration
	logger     *log.Logger
}

// NewDispatcher returns a dispatcher. A limit below 1 means 4.
func NewDispatcher(notifier Notifier, logger *log.Logger, limit int, announcers ...Announcer) *Dispatcher {
	if limit < 1 {
		limit = 4
	}
	return &Dispatcher{
		notifier:   notifier,
		announcers: announcers,
		limit:      limit,
		timeout:    10 * time.Second,
		logger:     logger,
	}
}

func toNotification(ev proposals.Event) Notification {
	return Notification{
		Type:      ev.Type,
		Title:     ev.Title,
		Message:   ev.Message,
		ActionURL: ev.ActionURL,
		Priority:  ev.Priority,
	}
}

type announcement struct {
	bandID     uint64
	proposalID uint64
	kind       proposals.EventType
}

// Dispatch delivers every event and blocks until all attempts finished.
// It never fails.
func (d *Dispatcher) Dispatch(ctx context.Context, events []proposals.Event) {
	if len(events) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	var g errgroup.Group
	g.SetLimit(d.limit)

	seen := make(map[announcement]struct{})
	for _, ev := range events {
		ev := ev
		n := toNotification(ev)
		if d.notifier != nil {
			g.Go(func() error {
				if err := d.notifier.Notify(ctx, ev.UserID, n); err != nil {
					d.failed(err, "user", ev.UserID, "type", ev.Type, "proposal", ev.ProposalID)
				}
				return nil
			})
		}

		key := announcement{ev.BandID, ev.ProposalID, ev.Type}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		for _, a := range d.announcers {
			a := a
			g.Go(func() error {
				if err := a.Announce(ctx, ev.BandID, n); err != nil {
					d.failed(err, "band", ev.BandID, "type", ev.Type, "proposal", ev.ProposalID)
				}
				return nil
			})
		}
	}
	_ = g.Wait()
}

// DispatchAsync runs Dispatch in the background, detached from the request.
func (d *Dispatcher) DispatchAsync(events []proposals.Event) {
	if len(events) == 0 {
		return
	}
	go d.Dispatch(context.Background(), events)
}

func (d *Dispatcher) failed(err error, keyvals ...any) {
	metrics.ObserveNotifyFailure()
	d.logger.Warn("notification failed", append(keyvals, "rate_limited", logging.IsRateLimit(err), "err", err)...)
}
