package ui

import (
	"fmt"
	"html/template"
	"sync"
	"time"

	"github.com/poku-e/ecopack/internal/api"
	"github.com/poku-e/ecopack/internal/render"
)

type ToastKind string

const (
	ToastInfo    ToastKind = "info"
	ToastSuccess ToastKind = "success"
	ToastError   ToastKind = "error"
)

type Toast struct {
	Message string
	Kind    ToastKind
	ShownAt time.Time
}

type Section string

const (
	SectionHome      Section = "home"
	SectionDashboard Section = "dashboard"
	SectionMaterials Section = "materials"
)

// Sections in navigation order.
var Sections = []Section{SectionHome, SectionDashboard, SectionMaterials}

// ParseSection maps a path segment to a section; unknown names yield false.
func ParseSection(s string) (Section, bool) {
	for _, sec := range Sections {
		if string(sec) == s {
			return sec, true
		}
	}
	return "", false
}

// Region is one of the places the remaining quota is shown.
type Region string

const (
	RegionHeader Region = "header"
	RegionForm   Region = "form"
)

type Severity string

const (
	SeverityOK    Severity = "ok"
	SeverityError Severity = "error"
)

// QuotaNotice is the rendered remaining-quota line for one region.
type QuotaNotice struct {
	Remaining int
	Text      string // plain text after the count, e.g. "recommendations remaining (20 min window)"
	Icon      string
	Severity  Severity
}

func (n QuotaNotice) String() string {
	return fmt.Sprintf("%s %d %s", n.Icon, n.Remaining, n.Text)
}

const (
	ButtonIdleLabel = "🤖 Generate AI Recommendations"
	ButtonBusyLabel = "⏳ Generating..."
	NoMaterialsText = "No materials found."
	PlaceholderText = "The BI dashboard is not available yet."
)

type DashboardEmbed struct {
	Src   string
	Title string
}

// Page is the front end's document: everything a user can see. Components
// mutate it through the narrow interfaces they declare; renderers read
// immutable Views.
type Page struct {
	mu sync.RWMutex

	toastDuration time.Duration
	splashUntil   time.Time
	bus           *Bus

	section         Section
	toast           *Toast
	generating      bool
	quota           map[Region]QuotaNotice
	results         template.HTML
	materialCards   []template.HTML
	materialsNote   string
	loadMoreVisible bool
	dashboard       *DashboardEmbed
}

type PageOption func(*Page)

func WithBus(b *Bus) PageOption { return func(p *Page) { p.bus = b } }

func WithToastDuration(d time.Duration) PageOption {
	return func(p *Page) { p.toastDuration = d }
}

// WithSplash keeps the splash screen up for d after construction.
func WithSplash(d time.Duration) PageOption {
	return func(p *Page) { p.splashUntil = time.Now().Add(d) }
}

func NewPage(opts ...PageOption) *Page {
	p := &Page{toastDuration: 4 * time.Second}
	for _, opt := range opts {
		opt(p)
	}
	p.resetLocked()
	return p
}

func (p *Page) resetLocked() {
	p.section = SectionHome
	p.toast = nil
	p.generating = false
	p.quota = map[Region]QuotaNotice{}
	p.results = ""
	p.materialCards = nil
	p.materialsNote = ""
	p.loadMoreVisible = true
	p.dashboard = nil
}

// Reset returns the page to its startup state, keeping the last toast so a
// logout confirmation survives the reset.
func (p *Page) Reset() {
	p.mu.Lock()
	toast := p.toast
	p.resetLocked()
	p.toast = toast
	p.mu.Unlock()
	p.bus.Publish(Event{Type: EventReset})
}

func (p *Page) ShowToast(message string, kind ToastKind) {
	p.mu.Lock()
	p.toast = &Toast{Message: message, Kind: kind, ShownAt: time.Now()}
	p.mu.Unlock()
	p.bus.Publish(Event{Type: EventToast, Detail: map[string]interface{}{"kind": string(kind), "message": message}})
}

// SetGenerating drives the submit button and the loading overlay together.
func (p *Page) SetGenerating(busy bool) {
	p.mu.Lock()
	p.generating = busy
	p.mu.Unlock()
	p.bus.Publish(Event{Type: EventBusy, Detail: map[string]interface{}{"busy": busy}})
}

func (p *Page) SetQuota(region Region, n QuotaNotice) {
	p.mu.Lock()
	p.quota[region] = n
	p.mu.Unlock()
	p.bus.Publish(Event{Type: EventQuota, Detail: map[string]interface{}{"region": string(region), "remaining": n.Remaining}})
}

// ShowResults renders recs into the results region. An empty list leaves the
// region as it was.
func (p *Page) ShowResults(recs []api.Recommendation, sortBy string) error {
	if len(recs) == 0 {
		return nil
	}
	frag, err := render.Results(recs, sortBy)
	if err != nil {
		return fmt.Errorf("render results: %w", err)
	}
	p.mu.Lock()
	p.results = frag
	p.mu.Unlock()
	p.bus.Publish(Event{Type: EventResults, Detail: map[string]interface{}{"count": len(recs), "sort_by": sortBy}})
	return nil
}

func (p *Page) AppendMaterials(ms []api.Material) error {
	cards := make([]template.HTML, 0, len(ms))
	for _, m := range ms {
		card, err := render.MaterialCard(m)
		if err != nil {
			return fmt.Errorf("render material card: %w", err)
		}
		cards = append(cards, card)
	}
	p.mu.Lock()
	p.materialCards = append(p.materialCards, cards...)
	p.materialsNote = ""
	total := len(p.materialCards)
	p.mu.Unlock()
	p.bus.Publish(Event{Type: EventMaterials, Detail: map[string]interface{}{"appended": len(cards), "total": total}})
	return nil
}

// ReplaceMaterials clears the catalog container and shows note instead.
func (p *Page) ReplaceMaterials(note string) {
	p.mu.Lock()
	p.materialCards = nil
	p.materialsNote = note
	p.mu.Unlock()
	p.bus.Publish(Event{Type: EventMaterials, Detail: map[string]interface{}{"note": note}})
}

func (p *Page) SetLoadMoreVisible(visible bool) {
	p.mu.Lock()
	p.loadMoreVisible = visible
	p.mu.Unlock()
}

func (p *Page) EmbedDashboard(src, title string) {
	p.mu.Lock()
	p.dashboard = &DashboardEmbed{Src: src, Title: title}
	p.mu.Unlock()
	p.bus.Publish(Event{Type: EventDashboard, Detail: map[string]interface{}{"src": src}})
}

// ShowSection makes section the only visible one.
func (p *Page) ShowSection(section Section) {
	p.mu.Lock()
	p.section = section
	p.mu.Unlock()
	p.bus.Publish(Event{Type: EventSection, Detail: map[string]interface{}{"section": string(section)}})
}

func (p *Page) Section() Section {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.section
}

// Toast returns the current toast while it is still on screen.
func (p *Page) Toast(now time.Time) (Toast, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.visibleToastLocked(now)
}

func (p *Page) visibleToastLocked(now time.Time) (Toast, bool) {
	if p.toast == nil || now.Sub(p.toast.ShownAt) >= p.toastDuration {
		return Toast{}, false
	}
	return *p.toast, true
}

type NavItem struct {
	Section Section
	ID      string
	Label   string
	Active  bool
}

type Button struct {
	Label    string
	Disabled bool
}

// View is a consistent copy of the page for rendering.
type View struct {
	Section          Section
	Nav              []NavItem
	Splash           bool
	Toast            *Toast
	Button           Button
	Overlay          bool
	QuotaHeader      QuotaNotice
	QuotaForm        QuotaNotice
	HasQuota         bool
	Results          template.HTML
	MaterialCards    []template.HTML
	MaterialsNote    string
	LoadMoreVisible  bool
	Dashboard        *DashboardEmbed
	DashboardMissing string
}

var navLabels = map[Section]struct{ id, label string }{
	SectionHome:      {"navHome", "Home"},
	SectionDashboard: {"navDashboard", "Dashboard"},
	SectionMaterials: {"navMaterials", "Materials"},
}

func (p *Page) Snapshot(now time.Time) View {
	p.mu.RLock()
	defer p.mu.RUnlock()

	v := View{
		Section:          p.section,
		Splash:           now.Before(p.splashUntil),
		Overlay:          p.generating,
		Button:           Button{Label: ButtonIdleLabel},
		Results:          p.results,
		MaterialCards:    append([]template.HTML(nil), p.materialCards...),
		MaterialsNote:    p.materialsNote,
		LoadMoreVisible:  p.loadMoreVisible,
		DashboardMissing: PlaceholderText,
	}
	for _, s := range Sections {
		n := navLabels[s]
		v.Nav = append(v.Nav, NavItem{Section: s, ID: n.id, Label: n.label, Active: s == p.section})
	}
	if p.generating {
		v.Button = Button{Label: ButtonBusyLabel, Disabled: true}
	}
	if t, ok := p.visibleToastLocked(now); ok {
		v.Toast = &t
	}
	v.QuotaHeader, v.HasQuota = p.quota[RegionHeader]
	v.QuotaForm = p.quota[RegionForm]
	if p.dashboard != nil {
		d := *p.dashboard
		v.Dashboard = &d
	}
	return v
}
