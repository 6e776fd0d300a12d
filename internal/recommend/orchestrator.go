package recommend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/poku-e/ecopack/internal/api"
	"github.com/poku-e/ecopack/internal/config"
	"github.com/poku-e/ecopack/internal/logger"
	"github.com/poku-e/ecopack/internal/session"
	"github.com/poku-e/ecopack/internal/ui"
)

const moduleName = "RECOMMEND"

const (
	MsgMissingFields = "Please select category and shipping mode"
	MsgFailed        = "Failed to generate recommendations"
)

// View is what generation touches on the page.
type View interface {
	SetGenerating(busy bool)
	ShowToast(message string, kind ui.ToastKind)
	ShowResults(recs []api.Recommendation, sortBy string) error
}

// SessionSync keeps the mirrored quota counters current.
type SessionSync interface {
	Check(ctx context.Context) error
	Overwrite(info api.SessionInfo)
}

// Batch is the last successful result set with the ordering it was asked for.
type Batch struct {
	Recommendations []api.Recommendation
	SortBy          string
}

type Orchestrator struct {
	client   *api.Client
	view     View
	session  SessionSync
	log      logger.Logger
	defaults config.RecommendConfig
	quota    config.QuotaConfig

	inFlight atomic.Bool

	mu   sync.RWMutex
	last *Batch
}

func NewOrchestrator(client *api.Client, view View, sess SessionSync, cfg *config.Config, log logger.Logger) *Orchestrator {
	return &Orchestrator{
		client:   client,
		view:     view,
		session:  sess,
		log:      log,
		defaults: cfg.Recommend,
		quota:    cfg.Quota,
	}
}

// InFlight reports whether a generation is running.
func (o *Orchestrator) InFlight() bool { return o.inFlight.Load() }

// LastBatch returns the most recent successful batch, if any.
func (o *Orchestrator) LastBatch() (Batch, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.last == nil {
		return Batch{}, false
	}
	return *o.last, true
}

// Generate submits the form and renders the answer. A call made while another
// is running returns ErrInFlight and leaves the page alone. Once the request
// is issued, cancelling ctx no longer stops it or the quota re-poll after it.
func (o *Orchestrator) Generate(ctx context.Context, form Form) (Batch, error) {
	if !o.inFlight.CompareAndSwap(false, true) {
		return Batch{}, ErrInFlight
	}
	o.view.SetGenerating(true)
	defer func() {
		o.inFlight.Store(false)
		o.view.SetGenerating(false)
	}()

	req := form.Request(o.defaults)
	if !Complete(req) {
		o.view.ShowToast(MsgMissingFields, ui.ToastError)
		return Batch{}, fmt.Errorf("%w: %s", ErrInvalidRequest, MsgMissingFields)
	}

	ctx = context.WithoutCancel(ctx)
	resp, err := o.client.Post(ctx, config.RouteRecommend, req)
	// the counters may have moved whatever the outcome
	defer o.resync(ctx)
	if err != nil {
		o.log.Error(moduleName, "Generation error", map[string]interface{}{"error": err.Error()})
		o.view.ShowToast(MsgFailed, ui.ToastError)
		return Batch{}, err
	}
	body, err := api.ReadBody(resp)
	if err != nil {
		o.log.Error(moduleName, "Generation error", map[string]interface{}{"error": err.Error()})
		o.view.ShowToast(MsgFailed, ui.ToastError)
		return Batch{}, err
	}

	if resp.StatusCode != http.StatusOK {
		msg, err := o.classify(resp.StatusCode, body)
		o.view.ShowToast(msg, ui.ToastError)
		o.log.Warn(moduleName, "Recommendation refused", map[string]interface{}{
			"status": resp.StatusCode,
			"error":  err.Error(),
		})
		return Batch{}, err
	}

	var result api.RecommendResponse
	if err := o.client.DecodeBytes(body, api.SchemaRecommend, &result); err != nil {
		o.log.Error(moduleName, "Generation error", map[string]interface{}{"error": err.Error()})
		o.view.ShowToast(MsgFailed, ui.ToastError)
		return Batch{}, err
	}

	remaining := 0
	if s := result.SessionInfo; s != nil {
		info := api.SessionInfo{}
		if s.Used != nil {
			info.Used = *s.Used
		}
		if s.Remaining != nil {
			info.Remaining = *s.Remaining
		}
		remaining = info.Remaining
		o.session.Overwrite(info)
	}

	batch := Batch{Recommendations: result.Recommendations, SortBy: req.SortBy}
	o.mu.Lock()
	o.last = &batch
	o.mu.Unlock()

	if err := o.view.ShowResults(batch.Recommendations, batch.SortBy); err != nil {
		o.log.Error(moduleName, "Rendering results failed", map[string]interface{}{"error": err.Error()})
		o.view.ShowToast(MsgFailed, ui.ToastError)
		return batch, err
	}
	o.view.ShowToast(SuccessMessage(remaining, o.quota.WindowMinutes()), ui.ToastSuccess)
	o.log.Info(moduleName, "Recommendations generated", map[string]interface{}{
		"count":     len(batch.Recommendations),
		"sort_by":   batch.SortBy,
		"remaining": remaining,
	})
	return batch, nil
}

func (o *Orchestrator) resync(ctx context.Context) {
	// Check logs its own failures
	_ = o.session.Check(ctx)
}

// classify turns a non-OK answer into the toast text and the returned error.
// Three signals mean a quota refusal: status 429, a JSON error envelope that
// says so, or a non-JSON body mentioning it.
func (o *Orchestrator) classify(status int, body []byte) (string, error) {
	if status == http.StatusTooManyRequests {
		var eb api.ErrorBody
		if json.Valid(body) {
			_ = json.Unmarshal(body, &eb)
		}
		msg := eb.Error
		if !mentions(msg, "quota", "limit") {
			msg = o.QuotaMessage()
		}
		return msg, fmt.Errorf("%w: %s", ErrRateLimited, msg)
	}

	var eb api.ErrorBody
	if json.Valid(body) && o.client.DecodeBytes(body, api.SchemaError, &eb) == nil {
		if eb.LimitReached || mentions(eb.Error, "quota", "limit") {
			msg := o.QuotaMessage()
			return msg, fmt.Errorf("%w: %s", ErrRateLimited, msg)
		}
		msg := eb.Error
		if msg == "" {
			msg = MsgFailed
		}
		return msg, &ServerError{Status: status, Message: eb.Error}
	}

	if mentions(string(body), "quota", "limit", "429") {
		msg := o.QuotaMessage()
		return msg, fmt.Errorf("%w: %s", ErrRateLimited, msg)
	}
	return MsgFailed, &ServerError{Status: status}
}

// QuotaMessage is shown when the server gives no usable quota text.
func (o *Orchestrator) QuotaMessage() string {
	return fmt.Sprintf("You've used your quota of %d calls per %d minutes. Wait and try again a bit later.",
		o.quota.Limit, o.quota.WindowMinutes())
}

func SuccessMessage(remaining, windowMinutes int) string {
	return fmt.Sprintf("✅ Success! %d %s remaining (%d min window).",
		remaining, session.Plural(remaining, "recommendation"), windowMinutes)
}

func mentions(s string, markers ...string) bool {
	s = strings.ToLower(s)
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// Reset drops the last batch.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.last = nil
}
