// Package settings holds the runtime settings document: the knobs an
// operator changes while the scanner runs, persisted in the key-value store
// next to the notified-ID set.
package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"partywatch/internal/kvstore"
	"partywatch/internal/model"
)

// Slot is the key-value slot holding the document.
const Slot = "settings"

const (
	DefaultRefreshSeconds = 30
	MinRefreshSeconds     = 10
	MaxRefreshSeconds     = 300
)

// GroupSetting overrides one configured group. Nil fields keep the
// configured value.
type GroupSetting struct {
	Enabled  *bool    `json:"enabled,omitempty"`
	Keywords []string `json:"keywords,omitempty"`
}

type Settings struct {
	// Notify gates the local pass summary. Webhook dispatch ignores it.
	Notify         bool                    `json:"notify"`
	RefreshSeconds int                     `json:"refreshSeconds"`
	GroupSettings  map[string]GroupSetting `json:"groupSettings,omitempty"`
}

func Defaults() Settings {
	return Settings{Notify: true, RefreshSeconds: DefaultRefreshSeconds}
}

// ClampRefresh maps an unset value to the default and bounds the rest.
func ClampRefresh(seconds int) int {
	switch {
	case seconds == 0:
		return DefaultRefreshSeconds
	case seconds < MinRefreshSeconds:
		return MinRefreshSeconds
	case seconds > MaxRefreshSeconds:
		return MaxRefreshSeconds
	default:
		return seconds
	}
}

func (s *Settings) Normalize() {
	s.RefreshSeconds = ClampRefresh(s.RefreshSeconds)
}

func (s Settings) RefreshInterval() time.Duration {
	return time.Duration(ClampRefresh(s.RefreshSeconds)) * time.Second
}

// ApplyGroups returns a copy of groups with per-group overrides applied.
// Order is preserved; overrides for unknown names are ignored.
func (s Settings) ApplyGroups(groups []model.InterestGroup) []model.InterestGroup {
	out := make([]model.InterestGroup, len(groups))
	for i, g := range groups {
		g.Keywords = append([]string(nil), g.Keywords...)
		if gs, ok := s.GroupSettings[g.Name]; ok {
			if gs.Enabled != nil {
				g.Enabled = *gs.Enabled
			}
			if gs.Keywords != nil {
				g.Keywords = append([]string(nil), gs.Keywords...)
			}
		}
		out[i] = g
	}
	return out
}

// EnabledGroups is ApplyGroups filtered to enabled groups.
func (s Settings) EnabledGroups(groups []model.InterestGroup) []model.InterestGroup {
	var out []model.InterestGroup
	for _, g := range s.ApplyGroups(groups) {
		if g.Enabled {
			out = append(out, g)
		}
	}
	return out
}

// Patch is a partial update. Nil fields keep the current value, per group
// as well as at the top level. An empty keywords list drops the override.
type Patch struct {
	Notify         *bool                   `json:"notify,omitempty"`
	RefreshSeconds *int                    `json:"refreshSeconds,omitempty"`
	GroupSettings  map[string]GroupSetting `json:"groupSettings,omitempty"`
}

// Apply returns s with p merged over it. s is not modified.
func (s Settings) Apply(p Patch) Settings {
	out := s
	if p.Notify != nil {
		out.Notify = *p.Notify
	}
	if p.RefreshSeconds != nil {
		out.RefreshSeconds = *p.RefreshSeconds
	}

	if len(s.GroupSettings) > 0 || len(p.GroupSettings) > 0 {
		out.GroupSettings = make(map[string]GroupSetting, len(s.GroupSettings)+len(p.GroupSettings))
		for name, gs := range s.GroupSettings {
			out.GroupSettings[name] = gs
		}
	}
	for name, gp := range p.GroupSettings {
		gs := out.GroupSettings[name]
		if gp.Enabled != nil {
			v := *gp.Enabled
			gs.Enabled = &v
		}
		switch {
		case gp.Keywords == nil:
		case len(gp.Keywords) == 0:
			gs.Keywords = nil
		default:
			gs.Keywords = append([]string(nil), gp.Keywords...)
		}
		if gs.Enabled == nil && gs.Keywords == nil {
			delete(out.GroupSettings, name)
			continue
		}
		out.GroupSettings[name] = gs
	}
	if len(out.GroupSettings) == 0 {
		out.GroupSettings = nil
	}
	out.Normalize()
	return out
}

// Store reads and writes the document.
type Store struct {
	kv kvstore.Store
}

func NewStore(kv kvstore.Store) *Store {
	return &Store{kv: kv}
}

// Load returns the stored document. Missing fields take their defaults. On
// a read or decode failure it returns Defaults() together with the error,
// so callers can log and carry on.
func (st *Store) Load(ctx context.Context) (Settings, error) {
	data, ok, err := st.kv.Get(ctx, Slot)
	if err != nil {
		return Defaults(), fmt.Errorf("settings: read: %w", err)
	}
	if !ok || len(data) == 0 {
		return Defaults(), nil
	}

	s := Defaults()
	if err := json.Unmarshal(data, &s); err != nil {
		return Defaults(), fmt.Errorf("settings: decode: %w", err)
	}
	s.Normalize()
	return s, nil
}

func (st *Store) Save(ctx context.Context, s Settings) error {
	s.Normalize()
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	if err := st.kv.Set(ctx, Slot, data); err != nil {
		return fmt.Errorf("settings: write: %w", err)
	}
	return nil
}
