package settings

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"partywatch/internal/kvstore"
	"partywatch/internal/model"
)

type brokenKV struct{ *kvstore.MemoryStore }

func (brokenKV) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("disk gone")
}

func TestLoadDefaults(t *testing.T) {
	st := NewStore(kvstore.NewMemoryStore())
	s, err := st.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Defaults(), s)
	assert.True(t, s.Notify)
	assert.Equal(t, 30*time.Second, s.RefreshInterval())
}

func TestLoadFailureFallsBackToDefaults(t *testing.T) {
	st := NewStore(brokenKV{kvstore.NewMemoryStore()})
	s, err := st.Load(context.Background())
	assert.Error(t, err)
	assert.Equal(t, Defaults(), s)
}

func TestLoadCorruptFallsBackToDefaults(t *testing.T) {
	ctx := context.Background()
	kv := kvstore.NewMemoryStore()
	require.NoError(t, kv.Set(ctx, Slot, []byte(`{"notify": "yes"`)))

	s, err := NewStore(kv).Load(ctx)
	assert.Error(t, err)
	assert.Equal(t, Defaults(), s)
}

func TestLoadMissingFieldsKeepDefaults(t *testing.T) {
	ctx := context.Background()
	kv := kvstore.NewMemoryStore()
	require.NoError(t, kv.Set(ctx, Slot, []byte(`{"refreshSeconds": 5000}`)))

	s, err := NewStore(kv).Load(ctx)
	require.NoError(t, err)
	assert.True(t, s.Notify)
	assert.Equal(t, MaxRefreshSeconds, s.RefreshSeconds)
}

func TestSaveRoundTrip(t *testing.T) {
	ctx := context.Background()
	st := NewStore(kvstore.NewMemoryStore())
	off := false
	in := Settings{
		Notify:         false,
		RefreshSeconds: 3,
		GroupSettings:  map[string]GroupSetting{"Cakes": {Enabled: &off}},
	}
	require.NoError(t, st.Save(ctx, in))

	out, err := st.Load(ctx)
	require.NoError(t, err)
	assert.False(t, out.Notify)
	assert.Equal(t, MinRefreshSeconds, out.RefreshSeconds)
	require.NotNil(t, out.GroupSettings["Cakes"].Enabled)
	assert.False(t, *out.GroupSettings["Cakes"].Enabled)
}

func TestClampRefresh(t *testing.T) {
	assert.Equal(t, 30, ClampRefresh(0))
	assert.Equal(t, 10, ClampRefresh(-4))
	assert.Equal(t, 10, ClampRefresh(9))
	assert.Equal(t, 45, ClampRefresh(45))
	assert.Equal(t, 300, ClampRefresh(301))
}

func TestApplyGroups(t *testing.T) {
	groups := []model.InterestGroup{
		{Name: "Cakes", Keywords: []string{"cake"}, Enabled: true},
		{Name: "Fishing", Keywords: []string{"fishing"}, Enabled: false},
		{Name: "Legendary", Keywords: []string{"epic"}, Enabled: true},
	}
	off, on := false, true
	s := Settings{GroupSettings: map[string]GroupSetting{
		"Cakes":   {Enabled: &off},
		"Fishing": {Enabled: &on, Keywords: []string{"rare catch"}},
		"Ghost":   {Enabled: &on},
	}}

	applied := s.ApplyGroups(groups)
	require.Len(t, applied, 3)
	assert.False(t, applied[0].Enabled)
	assert.True(t, applied[1].Enabled)
	assert.Equal(t, []string{"rare catch"}, applied[1].Keywords)
	assert.True(t, applied[2].Enabled)

	// the input is untouched
	assert.True(t, groups[0].Enabled)
	assert.Equal(t, []string{"fishing"}, groups[1].Keywords)

	enabled := s.EnabledGroups(groups)
	require.Len(t, enabled, 2)
	assert.Equal(t, "Fishing", enabled[0].Name)
	assert.Equal(t, "Legendary", enabled[1].Name)
}

func TestApplyPatchMergesPerGroup(t *testing.T) {
	on, off := true, false
	stored := Settings{
		Notify:         true,
		RefreshSeconds: 60,
		GroupSettings: map[string]GroupSetting{
			"Fishing": {Keywords: []string{"rare catch"}},
			"Cakes":   {Enabled: &off},
		},
	}

	got := stored.Apply(Patch{GroupSettings: map[string]GroupSetting{
		"Fishing":   {Enabled: &off},
		"Legendary": {Enabled: &on},
	}})

	assert.True(t, got.Notify)
	assert.Equal(t, 60, got.RefreshSeconds)
	require.NotNil(t, got.GroupSettings["Fishing"].Enabled)
	assert.False(t, *got.GroupSettings["Fishing"].Enabled)
	assert.Equal(t, []string{"rare catch"}, got.GroupSettings["Fishing"].Keywords)
	assert.Contains(t, got.GroupSettings, "Cakes")
	require.NotNil(t, got.GroupSettings["Legendary"].Enabled)
	assert.True(t, *got.GroupSettings["Legendary"].Enabled)

	// the receiver is untouched
	assert.Nil(t, stored.GroupSettings["Fishing"].Enabled)
	assert.NotContains(t, stored.GroupSettings, "Legendary")
}

func TestApplyPatchTopLevelAndClearing(t *testing.T) {
	off, refresh := false, 5
	stored := Settings{
		Notify:         true,
		RefreshSeconds: 60,
		GroupSettings: map[string]GroupSetting{
			"Fishing": {Keywords: []string{"rare catch"}},
		},
	}

	got := stored.Apply(Patch{
		Notify:         &off,
		RefreshSeconds: &refresh,
		GroupSettings:  map[string]GroupSetting{"Fishing": {Keywords: []string{}}},
	})
	assert.False(t, got.Notify)
	assert.Equal(t, MinRefreshSeconds, got.RefreshSeconds)
	assert.Nil(t, got.GroupSettings)

	assert.Equal(t, stored, stored.Apply(Patch{}))
}
