package dashboard

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/poku-e/ecopack/internal/api"
	"github.com/poku-e/ecopack/internal/config"
	"github.com/poku-e/ecopack/internal/logger"
)

const moduleName = "DASHBOARD"

// FrameTitle is the accessible title of the embedded dashboard frame.
const FrameTitle = "EcoPackAI BI Dashboard"

type View interface {
	EmbedDashboard(src, title string)
}

// Loader embeds the BI dashboard once it is published upstream. After one
// successful embed further loads do nothing.
type Loader struct {
	client *api.Client
	view   View
	log    logger.Logger

	mu      sync.Mutex
	loaded  bool
	loading bool
}

func NewLoader(client *api.Client, view View, log logger.Logger) *Loader {
	return &Loader{client: client, view: view, log: log}
}

func (l *Loader) Loaded() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loaded
}

// Load checks availability and embeds the dashboard when it is available.
// An unavailable dashboard or a failed check leaves the placeholder alone.
func (l *Loader) Load(ctx context.Context) (bool, error) {
	l.mu.Lock()
	if l.loaded || l.loading {
		loaded := l.loaded
		l.mu.Unlock()
		return loaded, nil
	}
	l.loading = true
	l.mu.Unlock()
	defer func() {
		l.mu.Lock()
		l.loading = false
		l.mu.Unlock()
	}()

	available, err := l.Available(ctx)
	if err != nil {
		l.log.Error(moduleName, "Dashboard load failed", map[string]interface{}{"error": err.Error()})
		return false, err
	}
	if !available {
		return false, nil
	}

	l.view.EmbedDashboard(l.client.URL(config.RouteDashboard), FrameTitle)
	l.mu.Lock()
	l.loaded = true
	l.mu.Unlock()
	l.log.Info(moduleName, "Dashboard embedded", nil)
	return true, nil
}

// Available asks the upstream whether a dashboard has been published.
func (l *Loader) Available(ctx context.Context) (bool, error) {
	resp, err := l.client.Get(ctx, config.RouteDashboardAvailable)
	if err != nil {
		return false, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return false, fmt.Errorf("dashboard availability: unexpected status %d", resp.StatusCode)
	}
	var data api.DashboardAvailability
	if err := l.client.DecodeJSON(resp, api.SchemaAvailability, &data); err != nil {
		return false, err
	}
	return data.Available, nil
}

// Reset forgets a previous embed.
func (l *Loader) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.loaded = false
}
