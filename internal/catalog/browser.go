package catalog

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"github.com/poku-e/ecopack/internal/api"
	"github.com/poku-e/ecopack/internal/config"
	"github.com/poku-e/ecopack/internal/logger"
	"github.com/poku-e/ecopack/internal/ui"
)

const moduleName = "CATALOG"

const MsgLoadFailed = "Failed to load materials"

// View is the materials section of the page.
type View interface {
	AppendMaterials(ms []api.Material) error
	ReplaceMaterials(note string)
	SetLoadMoreVisible(visible bool)
	ShowToast(message string, kind ui.ToastKind)
}

// Browser pages through the materials catalog one LoadMore at a time.
type Browser struct {
	client   *api.Client
	view     View
	log      logger.Logger
	pageSize int

	mu        sync.Mutex
	page      int
	loading   bool
	exhausted bool
	loaded    int
	gen       int // bumped by Reset
}

func NewBrowser(client *api.Client, view View, pageSize int, log logger.Logger) *Browser {
	return &Browser{client: client, view: view, log: log, pageSize: pageSize, page: 1}
}

// Result describes what one LoadMore call did.
type Result struct {
	Page      int
	Materials []api.Material
	HasMore   bool
	Skipped   bool
}

// LoadMore fetches the next page. It is a no-op while another load runs and
// once the catalog is exhausted. A page that arrives after Reset is dropped.
func (b *Browser) LoadMore(ctx context.Context) (Result, error) {
	b.mu.Lock()
	if b.loading || b.exhausted {
		b.mu.Unlock()
		return Result{Skipped: true}, nil
	}
	b.loading = true
	page, gen := b.page, b.gen
	b.mu.Unlock()

	data, err := b.fetch(ctx, page)

	// the page is written under mu so Reset cannot interleave with it
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.gen != gen {
		b.log.Debug(moduleName, "Dropping page from before reset", map[string]interface{}{"page": page})
		return Result{Page: page, Skipped: true}, nil
	}
	b.loading = false

	if err != nil {
		b.log.Error(moduleName, "Materials loading error", map[string]interface{}{"page": page, "error": err.Error()})
		b.view.ShowToast(MsgLoadFailed, ui.ToastError)
		return Result{Page: page}, err
	}

	res := Result{Page: page, Materials: data.Materials, HasMore: data.HasMore}
	if len(data.Materials) == 0 {
		b.view.SetLoadMoreVisible(false)
		b.exhausted = true
		if b.loaded == 0 {
			b.view.ReplaceMaterials(ui.NoMaterialsText)
		}
		return res, nil
	}

	if err := b.view.AppendMaterials(data.Materials); err != nil {
		b.view.ShowToast(MsgLoadFailed, ui.ToastError)
		return res, err
	}
	b.view.SetLoadMoreVisible(data.HasMore)
	b.page++
	b.loaded += len(data.Materials)
	b.exhausted = !data.HasMore

	b.log.Debug(moduleName, "Materials page loaded", map[string]interface{}{
		"page":     page,
		"count":    len(data.Materials),
		"has_more": data.HasMore,
	})
	return res, nil
}

func (b *Browser) fetch(ctx context.Context, page int) (api.MaterialsPage, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("page_size", strconv.Itoa(b.pageSize))

	var data api.MaterialsPage
	resp, err := b.client.Get(ctx, config.RouteMaterials+"?"+q.Encode())
	if err != nil {
		return data, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return data, fmt.Errorf("materials page %d: unexpected status %d", page, resp.StatusCode)
	}
	if err := b.client.DecodeJSON(resp, api.SchemaMaterials, &data); err != nil {
		return data, err
	}
	return data, nil
}

// Loaded reports how many entries have been appended so far.
func (b *Browser) Loaded() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.loaded
}

// Page is the next page the browser will request.
func (b *Browser) Page() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.page
}

func (b *Browser) Exhausted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.exhausted
}

// Reset rewinds to the first page, as for a fresh session. A load still
// running is abandoned.
func (b *Browser) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.page, b.loaded, b.exhausted, b.loading = 1, 0, false, false
	b.gen++
}
