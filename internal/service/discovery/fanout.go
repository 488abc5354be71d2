package discovery

import (
	"context"
	"log/slog"

	"github.com/oggyb/muzz-discovery/internal/db"
	"github.com/oggyb/muzz-discovery/internal/delivery"
	svcErr "github.com/oggyb/muzz-discovery/internal/errors"
	"github.com/oggyb/muzz-discovery/internal/logger"
	"github.com/oggyb/muzz-discovery/internal/metrics"
)

// NewProfileNotice is the alert text that precedes a pushed profile.
const NewProfileNotice = "There is a new profile!"

// Report summarizes a best-effort fanout.
type Report struct {
	Delivered int
	Failed    []uint64
}

// SubscriberLister resolves who opted in to new-profile alerts.
type SubscriberLister interface {
	Subscribers(ctx context.Context) ([]uint64, error)
}

// Fanout pushes alerts to many users. A failing recipient is logged and
// skipped; it never stops delivery to the others.
type Fanout struct {
	delivery delivery.Deliverer
	log      *slog.Logger
}

// NewFanout creates a Fanout. A nil deliverer turns every push into a no-op.
func NewFanout(d delivery.Deliverer, log *slog.Logger) *Fanout {
	if log == nil {
		log = slog.Default()
	}
	return &Fanout{delivery: d, log: log}
}

// NotifyNewProfile tells every subscriber except the owner about p and shows
// it to them right away. Recipients' queues are left untouched.
func (f *Fanout) NotifyNewProfile(ctx context.Context, subs SubscriberLister, p *db.Profile) Report {
	var report Report
	if f.delivery == nil {
		return report
	}
	log := logger.From(ctx, f.log)

	recipients, err := subs.Subscribers(ctx)
	if err != nil {
		log.Error("load subscribers failed", "profile", p.UserID, "err", err)
		return report
	}

	card := (&Candidate{Profile: p}).Card()
	opts := delivery.Options{ContactLink: true}
	for _, to := range recipients {
		if to == p.UserID {
			continue
		}
		err := f.delivery.DeliverNotice(ctx, to, NewProfileNotice)
		if err == nil {
			err = f.delivery.DeliverProfile(ctx, to, card, opts)
		}
		metrics.ObserveDelivery("new_profile", err)
		if err != nil {
			report.Failed = append(report.Failed, to)
			log.Error("new profile alert failed", "err", &svcErr.DeliveryError{UserID: to, Err: err})
			continue
		}
		report.Delivered++
	}
	return report
}

// Broadcast sends text to every recipient.
func (f *Fanout) Broadcast(ctx context.Context, recipients []uint64, text string) Report {
	var report Report
	if f.delivery == nil {
		return report
	}
	log := logger.From(ctx, f.log)

	for _, to := range recipients {
		err := f.delivery.DeliverNotice(ctx, to, text)
		metrics.ObserveDelivery("broadcast", err)
		if err != nil {
			report.Failed = append(report.Failed, to)
			log.Error("broadcast delivery failed", "err", &svcErr.DeliveryError{UserID: to, Err: err})
			continue
		}
		report.Delivered++
	}
	return report
}
