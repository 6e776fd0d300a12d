package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/poku-e/ecopack/internal/api"
	"github.com/poku-e/ecopack/internal/catalog"
	"github.com/poku-e/ecopack/internal/config"
	"github.com/poku-e/ecopack/internal/dashboard"
	"github.com/poku-e/ecopack/internal/export"
	"github.com/poku-e/ecopack/internal/logger"
	"github.com/poku-e/ecopack/internal/recommend"
	"github.com/poku-e/ecopack/internal/session"
	"github.com/poku-e/ecopack/internal/ui"
)

const moduleName = "APP"

const (
	MsgLoggedOut    = "Logged out successfully. Creating new session..."
	MsgLogoutFailed = "Logout failed"
)

// App is the state of one front end session: one upstream cookie jar, one
// page and the components that drive it.
type App struct {
	cfg    *config.Config
	log    logger.Logger
	client *api.Client

	Page      *ui.Page
	Session   *session.Tracker
	Recommend *recommend.Orchestrator
	Catalog   *catalog.Browser
	Dashboard *dashboard.Loader
	Export    *export.Downloader
}

type Option func(*options)

type options struct {
	bus        *ui.Bus
	httpClient *http.Client
}

// WithBus publishes page events on b.
func WithBus(b *ui.Bus) Option { return func(o *options) { o.bus = b } }

// WithHTTPClient sends upstream requests through a copy of hc. Unless hc has
// a Jar, each App keeps its own cookie jar.
func WithHTTPClient(hc *http.Client) Option { return func(o *options) { o.httpClient = hc } }

// New wires every component against baseURL.
func New(cfg *config.Config, baseURL string, log logger.Logger, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	clientOpts := []api.Option{api.WithLogger(log)}
	if o.httpClient != nil {
		clientOpts = append(clientOpts, api.WithHTTPClient(o.httpClient))
	}
	client, err := api.New(baseURL, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("api client: %w", err)
	}

	page := ui.NewPage(
		ui.WithBus(o.bus),
		ui.WithToastDuration(cfg.UI.ToastDuration),
		ui.WithSplash(cfg.UI.SplashDuration),
	)
	tracker := session.NewTracker(client, page, cfg.Quota, log)

	return &App{
		cfg:       cfg,
		log:       log,
		client:    client,
		Page:      page,
		Session:   tracker,
		Recommend: recommend.NewOrchestrator(client, page, tracker, cfg, log),
		Catalog:   catalog.NewBrowser(client, page, cfg.Catalog.PageSize, log),
		Dashboard: dashboard.NewLoader(client, page, log),
		Export:    export.NewDownloader(client, page, log),
	}, nil
}

func (a *App) BaseURL() string { return a.client.BaseURL() }

func (a *App) Config() *config.Config { return a.cfg }

// Init checks the session and shows the home section. A failed session check
// is logged and does not stop startup.
func (a *App) Init(ctx context.Context) {
	if err := a.Session.Check(ctx); err != nil {
		a.log.Warn(moduleName, "Initial session check failed", map[string]interface{}{"error": err.Error()})
	}
	a.Page.ShowSection(ui.SectionHome)
	a.log.Info(moduleName, "Application initialized successfully", map[string]interface{}{"base_url": a.BaseURL()})
}

// Navigate shows section and starts whatever the section needs: the dashboard
// embed, or the first catalog page when nothing has been loaded yet.
func (a *App) Navigate(ctx context.Context, section ui.Section) error {
	a.Page.ShowSection(section)
	switch section {
	case ui.SectionDashboard:
		_, err := a.Dashboard.Load(ctx)
		return err
	case ui.SectionMaterials:
		if a.Catalog.Loaded() == 0 && !a.Catalog.Exhausted() {
			_, err := a.Catalog.LoadMore(ctx)
			return err
		}
	}
	return nil
}

// Logout ends the upstream session. On success the whole front end state is
// rebuilt and the new session's quota is fetched.
func (a *App) Logout(ctx context.Context) error {
	resp, err := a.client.Post(ctx, config.RouteAuthLogout, nil)
	if err != nil {
		a.logoutFailed(err)
		return err
	}
	var out api.LogoutResponse
	if err := a.client.DecodeJSON(resp, api.SchemaLogout, &out); err != nil {
		a.logoutFailed(err)
		return err
	}
	if !out.Success {
		err := fmt.Errorf("logout refused: %s", out.Message)
		a.logoutFailed(err)
		return err
	}

	a.Page.ShowToast(MsgLoggedOut, ui.ToastSuccess)
	a.reset()
	if err := a.Session.Check(ctx); err != nil {
		a.log.Warn(moduleName, "Session check after logout failed", map[string]interface{}{"error": err.Error()})
	}
	a.log.Info(moduleName, "Logged out", map[string]interface{}{"new_session": out.NewSessionID != ""})
	return nil
}

func (a *App) logoutFailed(err error) {
	a.log.Error(moduleName, "Logout error", map[string]interface{}{"error": err.Error()})
	a.Page.ShowToast(MsgLogoutFailed, ui.ToastError)
}

// reset drops every component's state before clearing the page, so a load
// finishing meanwhile cannot repopulate the fresh page.
func (a *App) reset() {
	a.Catalog.Reset()
	a.Recommend.Reset()
	a.Dashboard.Reset()
	a.Session.Forget()
	a.Page.Reset()
}

// State is a serialisable snapshot of the session.
type State struct {
	BaseURL         string               `json:"base_url"`
	Section         ui.Section           `json:"section"`
	Session         *api.SessionInfo     `json:"session,omitempty"`
	Generating      bool                 `json:"generating"`
	LastBatch       *recommend.Batch     `json:"last_batch,omitempty"`
	MaterialsLoaded int                  `json:"materials_loaded"`
	MaterialsPage   int                  `json:"materials_next_page"`
	CatalogDone     bool                 `json:"materials_exhausted"`
	DashboardLoaded bool                 `json:"dashboard_loaded"`
	Toast           *ui.Toast            `json:"toast,omitempty"`
	Quota           map[ui.Region]string `json:"quota,omitempty"`
	At              time.Time            `json:"at"`
}

func (a *App) State(now time.Time) State {
	v := a.Page.Snapshot(now)
	s := State{
		BaseURL:         a.BaseURL(),
		Section:         v.Section,
		Generating:      a.Recommend.InFlight(),
		MaterialsLoaded: a.Catalog.Loaded(),
		MaterialsPage:   a.Catalog.Page(),
		CatalogDone:     a.Catalog.Exhausted(),
		DashboardLoaded: a.Dashboard.Loaded(),
		Toast:           v.Toast,
		At:              now,
	}
	if info, ok := a.Session.Snapshot(); ok {
		s.Session = &info
	}
	if b, ok := a.Recommend.LastBatch(); ok {
		s.LastBatch = &b
	}
	if v.HasQuota {
		s.Quota = map[ui.Region]string{
			ui.RegionHeader: v.QuotaHeader.String(),
			ui.RegionForm:   v.QuotaForm.String(),
		}
	}
	return s
}
