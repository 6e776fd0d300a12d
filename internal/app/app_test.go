package app

import (
	"bytes"
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poku-e/ecopack/internal/api"
	"github.com/poku-e/ecopack/internal/api/apitest"
	"github.com/poku-e/ecopack/internal/config"
	"github.com/poku-e/ecopack/internal/export"
	"github.com/poku-e/ecopack/internal/logger"
	"github.com/poku-e/ecopack/internal/recommend"
	"github.com/poku-e/ecopack/internal/ui"
)

func newApp(t *testing.T) (*App, *apitest.Upstream) {
	t.Helper()
	up := apitest.New()
	ms, err := apitest.LoadMaterialsCSV("../api/apitest/testdata/materials.csv")
	require.NoError(t, err)
	up.Materials = ms
	srv := up.Start()
	t.Cleanup(srv.Close)

	cfg := config.Default()
	cfg.Catalog.PageSize = 4
	a, err := New(cfg, srv.URL, logger.NewNop())
	require.NoError(t, err)
	return a, up
}

var form = recommend.Form{Category: "Electronics", ShippingMode: "Air", Weight: "1.5", TopK: "3"}

func TestInitShowsQuota(t *testing.T) {
	a, _ := newApp(t)
	a.Init(context.Background())

	st := a.State(time.Now())
	assert.Equal(t, ui.SectionHome, st.Section)
	require.NotNil(t, st.Session)
	assert.Equal(t, 3, st.Session.Remaining)
	assert.Equal(t, "📊 3 recommendations remaining (20 min window)", st.Quota[ui.RegionHeader])
}

func TestGenerateThenExport(t *testing.T) {
	a, up := newApp(t)
	ctx := context.Background()
	a.Init(ctx)

	batch, err := a.Recommend.Generate(ctx, form)
	require.NoError(t, err)
	assert.Len(t, batch.Recommendations, 3)

	st := a.State(time.Now())
	assert.Equal(t, 2, st.Session.Remaining)
	require.NotNil(t, st.LastBatch)
	require.NotNil(t, st.Toast)
	assert.Equal(t, "✅ Success! 2 recommendations remaining (20 min window).", st.Toast.Message)
	assert.Contains(t, string(a.Page.Snapshot(time.Now()).Results), "Recycled Kraft Paper")

	sink := &export.MemorySink{}
	_, err = a.Export.Download(ctx, export.KindExcel, sink)
	require.NoError(t, err)
	sum, err := export.Summarize(bytes.NewReader(sink.Data()))
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Rows)
	assert.Equal(t, 1, up.Hits(http.MethodPost, config.RouteExportExcel))
}

func TestQuotaExhaustion(t *testing.T) {
	a, up := newApp(t)
	ctx := context.Background()
	a.Init(ctx)
	up.SetUsed(3)

	_, err := a.Recommend.Generate(ctx, form)
	assert.ErrorIs(t, err, recommend.ErrRateLimited)

	v := a.Page.Snapshot(time.Now())
	require.NotNil(t, v.Toast)
	assert.Contains(t, v.Toast.Message, "quota of 3 calls per 20 minutes")
	assert.Equal(t, "⚠️ 0 recommendations remaining (20 min window). Wait and try again later.", v.QuotaForm.String())
	assert.Equal(t, ui.SeverityError, v.QuotaHeader.Severity)
	assert.Equal(t, ui.Button{Label: ui.ButtonIdleLabel}, v.Button)
}

func TestNavigateMaterialsLoadsOnce(t *testing.T) {
	a, up := newApp(t)
	ctx := context.Background()

	require.NoError(t, a.Navigate(ctx, ui.SectionMaterials))
	require.NoError(t, a.Navigate(ctx, ui.SectionHome))
	require.NoError(t, a.Navigate(ctx, ui.SectionMaterials))
	assert.Equal(t, 1, up.Hits(http.MethodGet, config.RouteMaterials))
	assert.Equal(t, 4, a.Catalog.Loaded())

	_, err := a.Catalog.LoadMore(ctx)
	require.NoError(t, err)
	v := a.Page.Snapshot(time.Now())
	assert.Len(t, v.MaterialCards, 7)
	assert.False(t, v.LoadMoreVisible)
	assert.Equal(t, ui.SectionMaterials, v.Section)
}

func TestNavigateDashboard(t *testing.T) {
	a, up := newApp(t)
	ctx := context.Background()

	require.NoError(t, a.Navigate(ctx, ui.SectionDashboard))
	assert.Nil(t, a.Page.Snapshot(time.Now()).Dashboard)

	up.SetDashboardAvailable(true)
	require.NoError(t, a.Navigate(ctx, ui.SectionDashboard))
	d := a.Page.Snapshot(time.Now()).Dashboard
	require.NotNil(t, d)
	assert.Equal(t, a.BaseURL()+"/bi/dashboard", d.Src)

	require.NoError(t, a.Navigate(ctx, ui.SectionDashboard))
	assert.Equal(t, 2, up.Hits(http.MethodGet, config.RouteDashboardAvailable))
}

func TestLogoutResetsState(t *testing.T) {
	a, up := newApp(t)
	ctx := context.Background()
	a.Init(ctx)
	_, err := a.Recommend.Generate(ctx, form)
	require.NoError(t, err)
	require.NoError(t, a.Navigate(ctx, ui.SectionMaterials))

	require.NoError(t, a.Logout(ctx))
	st := a.State(time.Now())
	assert.Equal(t, ui.SectionHome, st.Section)
	assert.Nil(t, st.LastBatch)
	assert.Zero(t, st.MaterialsLoaded)
	assert.Equal(t, 1, st.MaterialsPage)
	require.NotNil(t, st.Session)
	assert.Equal(t, 3, st.Session.Remaining, "new upstream session starts with a full quota")
	require.NotNil(t, st.Toast)
	assert.Equal(t, MsgLoggedOut, st.Toast.Message)
	assert.Empty(t, a.Page.Snapshot(time.Now()).Results)
	assert.Equal(t, 1, up.Hits(http.MethodPost, config.RouteAuthLogout))
}

func TestLogoutFailure(t *testing.T) {
	a, err := New(config.Default(), "http://127.0.0.1:1", logger.NewNop())
	require.NoError(t, err)

	err = a.Logout(context.Background())
	var te *api.TransportError
	assert.ErrorAs(t, err, &te)
	toast, ok := a.Page.Toast(time.Now())
	require.True(t, ok)
	assert.Equal(t, MsgLogoutFailed, toast.Message)
	assert.Equal(t, ui.ToastError, toast.Kind)
}

func TestAppsSharingHTTPClientKeepSeparateSessions(t *testing.T) {
	up := apitest.New()
	srv := up.Start()
	t.Cleanup(srv.Close)

	hc := &http.Client{Timeout: 10 * time.Second}
	ctx := context.Background()
	first, err := New(config.Default(), srv.URL, logger.NewNop(), WithHTTPClient(hc))
	require.NoError(t, err)
	second, err := New(config.Default(), srv.URL, logger.NewNop(), WithHTTPClient(hc))
	require.NoError(t, err)

	first.Init(ctx)
	_, err = first.Recommend.Generate(ctx, form)
	require.NoError(t, err)
	second.Init(ctx)

	st := second.State(time.Now())
	require.NotNil(t, st.Session)
	assert.Equal(t, 3, st.Session.Remaining)
	assert.Equal(t, 2, first.State(time.Now()).Session.Remaining)
	assert.Nil(t, hc.Jar)
}
