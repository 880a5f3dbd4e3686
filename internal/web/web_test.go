package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"partywatch/internal/config"
	"partywatch/internal/kvstore"
	"partywatch/internal/model"
	"partywatch/internal/scan"
	"partywatch/internal/settings"
)

type fakeScanner struct {
	report   *scan.Report
	groups   []model.InterestGroup
	notified int
	clearErr error
	cleared  int
}

func (f *fakeScanner) LastReport() (scan.Report, bool) {
	if f.report == nil {
		return scan.Report{}, false
	}
	return *f.report, true
}

func (f *fakeScanner) ConfiguredGroups(context.Context) []model.InterestGroup { return f.groups }

func (f *fakeScanner) ClearNotified(context.Context) error {
	f.cleared++
	if f.clearErr != nil {
		return f.clearErr
	}
	f.notified = 0
	return nil
}

func (f *fakeScanner) NotifiedCount() int { return f.notified }

type fakeTrigger struct {
	runs  int
	specs []string
}

func (f *fakeTrigger) RunNow() { f.runs++ }

func (f *fakeTrigger) Reschedule(spec string) error {
	f.specs = append(f.specs, spec)
	return nil
}

func (f *fakeTrigger) Spec() string {
	if len(f.specs) == 0 {
		return "@every 30s"
	}
	return f.specs[len(f.specs)-1]
}

type fixture struct {
	cfg      *config.Config
	scanner  *fakeScanner
	trigger  *fakeTrigger
	settings *settings.Store
	handler  http.Handler
}

func newFixture(t *testing.T, withAuth bool) *fixture {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Site.URL = "https://parties.example.test"
	if withAuth {
		cfg.BasicAuth = &config.BasicAuthConfig{Username: "admin", Password: "hunter2"}
	}
	f := &fixture{
		cfg: cfg,
		scanner: &fakeScanner{
			groups: []model.InterestGroup{
				{Name: "Cakes", Keywords: []string{"cake"}, Webhook: "https://discord.example.test/api/webhooks/1/tok", Color: 0xf472b6, Enabled: true},
				{Name: "Legendary", Keywords: []string{"epic"}, Enabled: false},
			},
			notified: 4,
		},
		trigger:  &fakeTrigger{},
		settings: settings.NewStore(kvstore.NewMemoryStore()),
	}
	f.handler = NewServer(cfg, f.scanner, f.settings, f.trigger).Handler()
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if f.cfg.BasicAuth != nil {
		req.SetBasicAuth(f.cfg.BasicAuth.Username, f.cfg.BasicAuth.Password)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthSkipsAuth(t *testing.T) {
	f := newFixture(t, true)

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "partywatch")

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.SetBasicAuth("admin", "wrong")
	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/status", "").Code)
}

func TestStatus(t *testing.T) {
	f := newFixture(t, false)

	var resp statusResponse
	rec := f.do(t, http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Nil(t, resp.LastPass)
	assert.Equal(t, 4, resp.NotifiedCount)
	assert.Equal(t, "@every 30s", resp.Schedule)

	f.scanner.report = &scan.Report{Candidates: 7, Sent: 2, Notified: []string{"Cake party"}}
	rec = f.do(t, http.MethodGet, "/api/status", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.LastPass)
	assert.Equal(t, 7, resp.LastPass.Candidates)
	assert.Equal(t, []string{"Cake party"}, resp.LastPass.Notified)
}

func TestGroupsHideWebhooks(t *testing.T) {
	f := newFixture(t, false)

	rec := f.do(t, http.MethodGet, "/api/groups", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "discord.example.test")

	var groups []groupDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &groups))
	require.Len(t, groups, 2)
	assert.Equal(t, "#f472b6", groups[0].Color)
	assert.True(t, groups[0].HasWebhook)
	assert.False(t, groups[1].HasWebhook)
	assert.False(t, groups[1].Enabled)
}

func TestSettingsRoundTrip(t *testing.T) {
	f := newFixture(t, false)

	rec := f.do(t, http.MethodGet, "/api/settings", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"notify":true,"refreshSeconds":30}`, rec.Body.String())

	rec = f.do(t, http.MethodPut, "/api/settings",
		`{"refreshSeconds": 5, "groupSettings": {"Legendary": {"enabled": true}}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	st, err := f.settings.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, st.Notify)
	assert.Equal(t, 10, st.RefreshSeconds)
	require.NotNil(t, st.GroupSettings["Legendary"].Enabled)
	assert.True(t, *st.GroupSettings["Legendary"].Enabled)

	assert.Equal(t, []string{"@every 10s"}, f.trigger.specs)

	// A later partial update keeps earlier fields.
	rec = f.do(t, http.MethodPut, "/api/settings", `{"notify": false}`)
	require.Equal(t, http.StatusOK, rec.Code)
	st, err = f.settings.Load(context.Background())
	require.NoError(t, err)
	assert.False(t, st.Notify)
	assert.Equal(t, 10, st.RefreshSeconds)
	assert.Contains(t, st.GroupSettings, "Legendary")
}

func TestSettingsGroupUpdateKeepsKeywordOverride(t *testing.T) {
	f := newFixture(t, false)

	rec := f.do(t, http.MethodPut, "/api/settings",
		`{"groupSettings": {"Fishing": {"keywords": ["rare catch"]}}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodPut, "/api/settings",
		`{"groupSettings": {"Fishing": {"enabled": false}}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	st, err := f.settings.Load(context.Background())
	require.NoError(t, err)
	fishing := st.GroupSettings["Fishing"]
	require.NotNil(t, fishing.Enabled)
	assert.False(t, *fishing.Enabled)
	assert.Equal(t, []string{"rare catch"}, fishing.Keywords)
}

func TestSettingsCronOverrideSkipsReschedule(t *testing.T) {
	f := newFixture(t, false)
	f.cfg.RefreshCron = "*/5 * * * *"

	rec := f.do(t, http.MethodPut, "/api/settings", `{"refreshSeconds": 60}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, f.trigger.specs)
}

func TestSettingsRejectsBadInput(t *testing.T) {
	f := newFixture(t, false)

	rec := f.do(t, http.MethodPut, "/api/settings", `{"groupSettings": {"Nope": {"enabled": true}}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `unknown group`)

	rec = f.do(t, http.MethodPut, "/api/settings", `{"keywords": ["cake"]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPut, "/api/settings", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestClearNotified(t *testing.T) {
	f := newFixture(t, false)

	rec := f.do(t, http.MethodDelete, "/api/notified", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 1, f.scanner.cleared)
	assert.Zero(t, f.scanner.notified)

	f.scanner.clearErr = errors.New("disk full")
	rec = f.do(t, http.MethodDelete, "/api/notified", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestScanTrigger(t *testing.T) {
	f := newFixture(t, false)
	rec := f.do(t, http.MethodPost, "/api/scan", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 1, f.trigger.runs)

	rec = f.do(t, http.MethodGet, "/api/scan", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, false)
	rec := f.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
