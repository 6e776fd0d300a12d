package session

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/poku-e/ecopack/internal/api"
	"github.com/poku-e/ecopack/internal/config"
	"github.com/poku-e/ecopack/internal/logger"
	"github.com/poku-e/ecopack/internal/ui"
)

const moduleName = "SESSION"

// QuotaView is the part of the page showing the remaining quota.
type QuotaView interface {
	SetQuota(region ui.Region, n ui.QuotaNotice)
}

// Tracker mirrors the upstream usage counters. It never decides anything on
// its own: values only come from polling or from a recommendation response.
type Tracker struct {
	client        *api.Client
	view          QuotaView
	log           logger.Logger
	limit         int
	windowMinutes int

	mu    sync.RWMutex
	info  api.SessionInfo
	known bool
}

func NewTracker(client *api.Client, view QuotaView, quota config.QuotaConfig, log logger.Logger) *Tracker {
	return &Tracker{
		client:        client,
		view:          view,
		log:           log,
		limit:         quota.Limit,
		windowMinutes: quota.WindowMinutes(),
	}
}

// Check polls the status endpoint and refreshes both quota regions. A failed
// poll is logged and leaves the previous counters in place.
func (t *Tracker) Check(ctx context.Context) error {
	resp, err := t.client.Get(ctx, config.RouteAuthStatus)
	if err != nil {
		t.log.Error(moduleName, "Session check failed", map[string]interface{}{"error": err.Error()})
		return err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		err := fmt.Errorf("session status: unexpected status %d", resp.StatusCode)
		t.log.Error(moduleName, "Session check failed", map[string]interface{}{"status": resp.StatusCode})
		return err
	}
	var status api.StatusResponse
	if err := t.client.DecodeJSON(resp, api.SchemaStatus, &status); err != nil {
		t.log.Error(moduleName, "Session check failed", map[string]interface{}{"error": err.Error()})
		return err
	}

	info := status.SessionInfo(t.limit)
	t.store(info)
	t.log.Info(moduleName, "Session info", map[string]interface{}{
		"used":      info.Used,
		"remaining": info.Remaining,
	})
	return nil
}

// Overwrite replaces the counters with values returned by the server.
func (t *Tracker) Overwrite(info api.SessionInfo) {
	t.store(info)
}

// Snapshot returns the last known counters; ok is false before the first
// successful poll or overwrite.
func (t *Tracker) Snapshot() (info api.SessionInfo, ok bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.info, t.known
}

// Forget drops the mirrored counters, as after a logout.
func (t *Tracker) Forget() {
	t.mu.Lock()
	t.info, t.known = api.SessionInfo{}, false
	t.mu.Unlock()
}

func (t *Tracker) store(info api.SessionInfo) {
	t.mu.Lock()
	t.info, t.known = info, true
	t.mu.Unlock()

	t.view.SetQuota(ui.RegionHeader, Notice(ui.RegionHeader, info.Remaining, t.windowMinutes))
	t.view.SetQuota(ui.RegionForm, Notice(ui.RegionForm, info.Remaining, t.windowMinutes))
}

// Notice builds the quota line for one region.
func Notice(region ui.Region, remaining, windowMinutes int) ui.QuotaNotice {
	window := fmt.Sprintf("(%d min window)", windowMinutes)
	if remaining == 0 {
		n := ui.QuotaNotice{
			Remaining: 0,
			Icon:      "⚠️",
			Text:      "recommendations remaining " + window,
			Severity:  ui.SeverityError,
		}
		if region == ui.RegionForm {
			n.Text += ". Wait and try again later."
		}
		return n
	}
	return ui.QuotaNotice{
		Remaining: remaining,
		Icon:      "📊",
		Text:      Plural(remaining, "recommendation") + " remaining " + window,
		Severity:  ui.SeverityOK,
	}
}

// Plural appends "s" to noun unless n is exactly 1.
func Plural(n int, noun string) string {
	if n == 1 {
		return noun
	}
	return noun + "s"
}
