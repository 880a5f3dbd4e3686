// Package dispatch sends one webhook message per matched (party, group)
// pair and records confirmed deliveries in the notified-ID store.
package dispatch

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	appLog "partywatch/internal/log"
	"partywatch/internal/model"
	"partywatch/internal/notified"
)

// DefaultInterval is the minimum spacing between two sends.
const DefaultInterval = time.Second

// Match is a party and the groups it matched, in configuration order.
type Match struct {
	Party  model.PartyRecord
	Groups []model.InterestGroup
}

// Outcome is the result of one (party, group) send.
type Outcome struct {
	Party model.PartyRecord
	Group model.InterestGroup
	Err   error
}

func (o Outcome) Sent() bool { return o.Err == nil }

type Options struct {
	// Interval is the minimum delay between sends. Zero disables the limit.
	Interval time.Duration

	Username      string
	AvatarURL     string
	FooterText    string
	FooterIconURL string

	// Now stamps messages; defaults to time.Now.
	Now func() time.Time
}

// Dispatcher delivers matches sequentially. It is safe to reuse across
// passes; the rate limiter carries over so the first send of a pass is still
// spaced from the last send of the previous one.
type Dispatcher struct {
	sink    Sink
	store   *notified.Store
	opts    Options
	limiter *rate.Limiter
}

func New(sink Sink, store *notified.Store, opts Options) *Dispatcher {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	limit := rate.Inf
	if opts.Interval > 0 {
		limit = rate.Every(opts.Interval)
	}
	return &Dispatcher{
		sink:    sink,
		store:   store,
		opts:    opts,
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Dispatch sends every (party, group) pair not already in the store, in
// order. A failed send is logged and left unmarked so a later pass retries
// it; it never stops the remaining sends. The store is flushed once after
// the batch.
//
// Cancellation of ctx is ignored once Dispatch starts: a batch always runs
// to completion so marks and the flush stay consistent with what was sent.
func (d *Dispatcher) Dispatch(ctx context.Context, matches []Match) []Outcome {
	ctx = context.WithoutCancel(ctx)

	var outcomes []Outcome
	for _, m := range matches {
		for _, g := range m.Groups {
			key := model.NotifiedKey{PartyID: m.Party.ID, GroupName: g.Name}
			if d.store.Has(key) {
				continue
			}
			err := d.send(ctx, m.Party, g)
			if err == nil {
				d.store.Add(key)
			}
			outcomes = append(outcomes, Outcome{Party: m.Party, Group: g, Err: err})
		}
	}

	if len(outcomes) == 0 {
		return nil
	}
	if err := d.store.Flush(ctx); err != nil {
		flushFailures.Inc()
		appLog.Error("dispatch: failed to persist notified ids", err, "pairs", len(outcomes))
	}
	return outcomes
}

func (d *Dispatcher) send(ctx context.Context, p model.PartyRecord, g model.InterestGroup) error {
	if g.Webhook == "" {
		sendTotal.WithLabelValues(g.Name, "skipped").Inc()
		appLog.Warn("dispatch: no webhook for group", "group", g.Name, "party", p.ID)
		return ErrNoEndpoint
	}

	if err := d.limiter.Wait(ctx); err != nil {
		sendTotal.WithLabelValues(g.Name, "error").Inc()
		appLog.Error("dispatch: rate limiter", err, "group", g.Name, "party", p.ID)
		return err
	}

	if p.Sparse() {
		appLog.Debug("dispatch: sending sparse record", "party", p.ID)
	}

	msg := BuildMessage(p, g, d.opts, d.opts.Now())
	start := time.Now()
	err := d.sink.Send(ctx, g.Webhook, msg)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		sendTotal.WithLabelValues(g.Name, "error").Inc()
		sendDuration.WithLabelValues("error").Observe(elapsed)
		appLog.Error("dispatch: send failed", err,
			"group", g.Name,
			"party", p.ID,
			"endpoint", RedactURL(g.Webhook),
		)
		return err
	}

	sendTotal.WithLabelValues(g.Name, "success").Inc()
	sendDuration.WithLabelValues("success").Observe(elapsed)
	appLog.Info("dispatch: sent", "group", g.Name, "party", p.ID, "title", p.Title)
	return nil
}
