package main

import (
	"context"
	"fmt"
	"time"

	"partywatch/internal/capture"
	"partywatch/internal/config"
	"partywatch/internal/dispatch"
	"partywatch/internal/extract"
	"partywatch/internal/kvstore"
	appLog "partywatch/internal/log"
	"partywatch/internal/notified"
	"partywatch/internal/notify"
	"partywatch/internal/scan"
	"partywatch/internal/settings"
)

// app holds the wired components shared by every subcommand.
type app struct {
	cfg      *config.Config
	kv       kvstore.Store
	notified *notified.Store
	settings *settings.Store
	orch     *scan.Orchestrator
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	kv, err := kvstore.Open(cfg.Store.Driver, cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	ns := notified.New(kv, notified.DefaultSlot)
	if err := ns.Load(ctx); err != nil {
		// Start empty; the next flush rewrites the slot.
		appLog.Error("notified ids unreadable; starting empty", err)
	}
	appLog.Info("notified ids loaded", "count", ns.Len())

	ext, err := extract.New(cfg.Site.BaseURL)
	if err != nil {
		kv.Close()
		return nil, err
	}

	var src capture.Source
	switch cfg.Site.Source {
	case "http":
		src = capture.NewHTTPSource(cfg.Site.URL, cfg.Site.CacheDir)
	default:
		src = capture.NewChromeSource(cfg.Site.URL, cfg.Site.ChromeRemoteURL)
	}

	sink := dispatch.NewWebhookSink(time.Duration(cfg.Dispatch.TimeoutSeconds) * time.Second)
	disp := dispatch.New(sink, ns, dispatch.Options{
		Interval:      time.Duration(cfg.Dispatch.IntervalMs) * time.Millisecond,
		Username:      cfg.Dispatch.Username,
		AvatarURL:     cfg.Dispatch.AvatarURL,
		FooterText:    cfg.Dispatch.FooterText,
		FooterIconURL: cfg.Dispatch.FooterIconURL,
	})

	st := settings.NewStore(kv)
	orch := scan.New(scan.Deps{
		Source:      src,
		Extractor:   ext,
		Dispatcher:  disp,
		Notified:    ns,
		Settings:    st,
		Notifier:    notify.New(cfg.LocalNotify),
		Groups:      cfg.InterestGroups(),
		Selector:    cfg.Site.Selector,
		WaitTimeout: time.Duration(cfg.Site.WaitTimeoutSeconds) * time.Second,
	})

	return &app{cfg: cfg, kv: kv, notified: ns, settings: st, orch: orch}, nil
}

func (a *app) Close() {
	if err := a.kv.Close(); err != nil {
		appLog.Error("close store", err)
	}
}
