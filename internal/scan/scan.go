// Package scan runs one fetch, extract, classify, filter and dispatch pass.
package scan

import (
	"context"
	"errors"
	"sync"
	"time"

	"partywatch/internal/capture"
	"partywatch/internal/dispatch"
	"partywatch/internal/extract"
	appLog "partywatch/internal/log"
	"partywatch/internal/match"
	"partywatch/internal/model"
	"partywatch/internal/notified"
	"partywatch/internal/notify"
	"partywatch/internal/settings"
)

// Deps are the collaborators of an Orchestrator.
type Deps struct {
	Source     capture.Source
	Extractor  *extract.Extractor
	Dispatcher *dispatch.Dispatcher
	Notified   *notified.Store
	Settings   *settings.Store
	Notifier   notify.Notifier

	// Groups are the configured interest groups, in config order. The
	// settings document may toggle or re-key them per pass.
	Groups []model.InterestGroup

	Selector    string
	WaitTimeout time.Duration
}

// Report summarizes one pass.
type Report struct {
	StartedAt  time.Time `json:"started_at"`
	DurationMs int64     `json:"duration_ms"`

	// TimedOut is set when no entry rendered in time; the pass then saw an
	// empty listing.
	TimedOut bool `json:"timed_out"`

	Groups     int `json:"groups"`
	Candidates int `json:"candidates"`
	Extracted  int `json:"extracted"`
	Unique     int `json:"unique"`
	Matched    int `json:"matched"`
	Pending    int `json:"pending"`
	Sent       int `json:"sent"`
	Failed     int `json:"failed"`

	// Notified lists titles with at least one delivered message.
	Notified []string `json:"notified,omitempty"`
	Error    string   `json:"error,omitempty"`
}

type Orchestrator struct {
	deps Deps
	now  func() time.Time

	// runMu serializes passes.
	runMu sync.Mutex

	mu   sync.RWMutex
	last *Report
}

func New(deps Deps) *Orchestrator {
	if deps.Notifier == nil {
		deps.Notifier = notify.LogNotifier{}
	}
	return &Orchestrator{deps: deps, now: time.Now}
}

// LastReport returns the most recent pass report, if any pass has run.
func (o *Orchestrator) LastReport() (Report, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.last == nil {
		return Report{}, false
	}
	return *o.last, true
}

// ConfiguredGroups returns the groups with the current settings applied.
func (o *Orchestrator) ConfiguredGroups(ctx context.Context) []model.InterestGroup {
	st := o.loadSettings(ctx)
	return st.ApplyGroups(o.deps.Groups)
}

func (o *Orchestrator) NotifiedCount() int {
	return o.deps.Notified.Len()
}

// ClearNotified forgets every delivered pair and persists the empty set, so
// currently listed parties are reported again on the next pass.
func (o *Orchestrator) ClearNotified(ctx context.Context) error {
	o.runMu.Lock()
	defer o.runMu.Unlock()

	n := o.deps.Notified.Len()
	o.deps.Notified.Clear()
	if err := o.deps.Notified.Flush(ctx); err != nil {
		return err
	}
	appLog.Info("scan: cleared notified ids", "count", n)
	return nil
}

// RunPass performs one scan. Only a failing source is an error; everything
// after it is best effort and recorded in the report.
func (o *Orchestrator) RunPass(ctx context.Context) (Report, error) {
	o.runMu.Lock()
	defer o.runMu.Unlock()

	start := o.now()
	rep := Report{StartedAt: start}

	err := o.run(ctx, &rep)
	rep.DurationMs = o.now().Sub(start).Milliseconds()
	if err != nil {
		rep.Error = err.Error()
		passTotal.WithLabelValues("error").Inc()
	} else {
		passTotal.WithLabelValues("ok").Inc()
	}
	lastPassTimestamp.SetToCurrentTime()

	o.mu.Lock()
	o.last = &rep
	o.mu.Unlock()

	return rep, err
}

func (o *Orchestrator) run(ctx context.Context, rep *Report) error {
	st := o.loadSettings(ctx)

	groups := st.EnabledGroups(o.deps.Groups)
	rep.Groups = len(groups)
	if len(groups) == 0 {
		appLog.Info("scan: no enabled groups; skipping pass")
		return nil
	}
	classifier := match.NewClassifier(groups)

	nodes, err := o.deps.Source.LoadCandidateNodes(ctx, o.deps.Selector, o.deps.WaitTimeout)
	switch {
	case errors.Is(err, capture.ErrTimeout):
		appLog.Info("scan: no entries rendered before timeout", "selector", o.deps.Selector)
		rep.TimedOut = true
		return nil
	case err != nil:
		appLog.Error("scan: load candidates failed", err)
		return err
	case nodes == nil:
		return nil
	}
	rep.Candidates = nodes.Length()
	candidatesSeen.Add(float64(rep.Candidates))

	records := o.deps.Extractor.ExtractAll(nodes)
	rep.Extracted = len(records)

	seen := make(map[string]bool, len(records))
	var matches []dispatch.Match
	for _, rec := range records {
		if seen[rec.ID] {
			continue
		}
		seen[rec.ID] = true
		rep.Unique++

		hit := classifier.Classify(rec.Title)
		if len(hit) == 0 {
			continue
		}
		rep.Matched++

		var pending []model.InterestGroup
		for _, g := range hit {
			if !o.deps.Notified.Has(model.NotifiedKey{PartyID: rec.ID, GroupName: g.Name}) {
				pending = append(pending, g)
			}
		}
		if len(pending) == 0 {
			continue
		}
		if rec.Sparse() {
			appLog.Debug("scan: matched record has no detail fields", "party", rec.ID)
		}
		rep.Pending += len(pending)
		matches = append(matches, dispatch.Match{Party: rec, Groups: pending})
	}

	appLog.Info("scan: pass classified",
		"candidates", rep.Candidates,
		"unique", rep.Unique,
		"matched", rep.Matched,
		"pending", rep.Pending,
	)
	if len(matches) == 0 {
		return nil
	}

	outcomes := o.deps.Dispatcher.Dispatch(ctx, matches)
	reported := make(map[string]bool)
	for _, oc := range outcomes {
		if !oc.Sent() {
			rep.Failed++
			continue
		}
		rep.Sent++
		if !reported[oc.Party.ID] {
			reported[oc.Party.ID] = true
			rep.Notified = append(rep.Notified, oc.Party.Title)
		}
	}

	if st.Notify {
		notify.Show(ctx, o.deps.Notifier, rep.Notified)
	}
	return nil
}

func (o *Orchestrator) loadSettings(ctx context.Context) settings.Settings {
	st, err := o.deps.Settings.Load(ctx)
	if err != nil {
		appLog.Error("scan: settings unreadable; using defaults", err)
	}
	return st
}
