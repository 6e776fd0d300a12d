// Package apitest runs an in-process stand-in for the recommendation API.
// It keeps per-cookie sessions and a fixed quota so front end flows can be
// exercised end to end without the real service.
package apitest

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/poku-e/ecopack/internal/api"
	"github.com/poku-e/ecopack/internal/config"
)

const CookieName = "session"

// PDF is the body served for report downloads.
var PDF = []byte("%PDF-1.4\n% ecopack test report\n")

type sessionState struct {
	used int
	last []api.Recommendation
}

// Upstream holds the fake service state. Exported fields are read without
// locking: set them before Start and use the setters afterwards.
type Upstream struct {
	Limit              int
	Window             int // minutes, for messages
	Recommendations    []api.Recommendation
	Materials          []api.Material
	DashboardAvailable bool
	DashboardHTML      string

	mu       sync.Mutex
	sessions map[string]*sessionState
	hits     map[string]int
}

func New() *Upstream {
	return &Upstream{
		Limit:  3,
		Window: 20,
		Recommendations: []api.Recommendation{
			{MaterialName: "Recycled Kraft Paper", PredCO2: 0.82, PredCost: 0.41, Sustainability: 0.9132, Biodegradable: true, TensileStrength: 48.5},
			{MaterialName: "Molded Pulp", PredCO2: 0.95, PredCost: 0.38, Sustainability: 0.8874, Biodegradable: true, TensileStrength: 12},
			{MaterialName: "Corrugated Cardboard", PredCO2: 1.1, PredCost: 0.29, Sustainability: 0.8511, Biodegradable: true, TensileStrength: 35.2},
			{MaterialName: "rPET Film", PredCO2: 2.3, PredCost: 0.55, Sustainability: 0.6120, Biodegradable: false, TensileStrength: 55},
			{MaterialName: "EPS Foam", PredCO2: 3.7, PredCost: 0.22, Sustainability: 0.3104, Biodegradable: false, TensileStrength: 0.4},
		},
		DashboardHTML: `<!doctype html><html><head><title>EcoPackAI BI Dashboard</title></head>
<body><h1>Sustainability Overview</h1><h2>CO₂ Savings</h2></body></html>`,
		sessions: map[string]*sessionState{},
		hits:     map[string]int{},
	}
}

// Start serves the upstream until the returned server is closed.
func (u *Upstream) Start() *httptest.Server {
	return httptest.NewServer(u.Handler())
}

// Hits counts requests per "METHOD path".
func (u *Upstream) Hits(method, path string) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.hits[method+" "+path]
}

// SetUsed moves the quota counter of every known session.
func (u *Upstream) SetUsed(n int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, s := range u.sessions {
		s.used = n
	}
}

func (u *Upstream) SetDashboardAvailable(v bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.DashboardAvailable = v
}

func (u *Upstream) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET "+config.RouteAuthStatus, func(w http.ResponseWriter, r *http.Request) {
		_, s := u.session(w, r)
		u.mu.Lock()
		used, remaining := s.used, u.remaining(s)
		u.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{
			"authenticated":             true,
			"user_email":                "ecopackai-user@gmail.com",
			"recommendations_used":      used,
			"recommendations_remaining": remaining,
		})
	})

	mux.HandleFunc("POST "+config.RouteAuthLogout, func(w http.ResponseWriter, r *http.Request) {
		id := u.newSession(w)
		writeJSON(w, http.StatusOK, api.LogoutResponse{Success: true, Message: "Logged out successfully", NewSessionID: id})
	})

	mux.HandleFunc("POST "+config.RouteRecommend, func(w http.ResponseWriter, r *http.Request) {
		_, s := u.session(w, r)

		u.mu.Lock()
		if s.used >= u.Limit {
			used := s.used
			u.mu.Unlock()
			writeJSON(w, http.StatusTooManyRequests, map[string]any{
				"error":         fmt.Sprintf("You've used your quota of %d calls per %d minutes. Wait and try again in 1 minute.", u.Limit, u.Window),
				"limit_reached": true,
				"session_info":  map[string]int{"used": used, "remaining": 0},
			})
			return
		}
		s.used++
		used, remaining := s.used, u.remaining(s)
		u.mu.Unlock()

		var req api.RecommendationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
			return
		}
		if req.Category == "" || req.ShippingMode == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing field: Category_item"})
			return
		}
		recs := u.Recommendations
		if req.TopK > 0 && req.TopK < len(recs) {
			recs = recs[:req.TopK]
		}

		u.mu.Lock()
		s.last = recs
		u.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{
			"status":          "success",
			"recommendations": recs,
			"session_info":    map[string]int{"used": used, "remaining": remaining},
		})
	})

	mux.HandleFunc("POST "+config.RouteGeneratePDF, func(w http.ResponseWriter, r *http.Request) {
		if _, ok := u.lastBatch(w, r); !ok {
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Write(PDF)
	})

	mux.HandleFunc("POST "+config.RouteExportExcel, func(w http.ResponseWriter, r *http.Request) {
		recs, ok := u.lastBatch(w, r)
		if !ok {
			return
		}
		b, err := workbook(recs)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Write(b)
	})

	mux.HandleFunc("GET "+config.RouteMaterials, func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		size, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
		if page < 1 {
			page = 1
		}
		if size < 1 {
			size = 12
		}
		start, end := (page-1)*size, page*size
		total := len(u.Materials)
		items := []api.Material{}
		if start < total {
			items = u.Materials[start:min(end, total)]
		}
		writeJSON(w, http.StatusOK, api.MaterialsPage{
			Materials: items,
			Total:     total,
			Page:      page,
			PageSize:  size,
			HasMore:   end < total,
		})
	})

	mux.HandleFunc("GET "+config.RouteDashboardAvailable, func(w http.ResponseWriter, r *http.Request) {
		u.mu.Lock()
		available := u.DashboardAvailable
		u.mu.Unlock()
		writeJSON(w, http.StatusOK, api.DashboardAvailability{Available: available})
	})

	mux.HandleFunc("GET "+config.RouteDashboard, func(w http.ResponseWriter, r *http.Request) {
		u.mu.Lock()
		available := u.DashboardAvailable
		u.mu.Unlock()
		if !available {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "BI dashboard HTML not found at expected path"})
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(u.DashboardHTML))
	})

	return u.count(mux)
}

func (u *Upstream) count(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.mu.Lock()
		u.hits[r.Method+" "+r.URL.Path]++
		u.mu.Unlock()
		h.ServeHTTP(w, r)
	})
}

func (u *Upstream) remaining(s *sessionState) int {
	return max(0, u.Limit-s.used)
}

func (u *Upstream) session(w http.ResponseWriter, r *http.Request) (string, *sessionState) {
	if c, err := r.Cookie(CookieName); err == nil {
		u.mu.Lock()
		s, ok := u.sessions[c.Value]
		u.mu.Unlock()
		if ok {
			return c.Value, s
		}
	}
	id := u.newSession(w)
	u.mu.Lock()
	defer u.mu.Unlock()
	return id, u.sessions[id]
}

func (u *Upstream) newSession(w http.ResponseWriter) string {
	id := uuid.NewString()
	u.mu.Lock()
	u.sessions[id] = &sessionState{}
	u.mu.Unlock()
	http.SetCookie(w, &http.Cookie{Name: CookieName, Value: id, Path: "/", HttpOnly: true})
	return id
}

func (u *Upstream) lastBatch(w http.ResponseWriter, r *http.Request) ([]api.Recommendation, bool) {
	_, s := u.session(w, r)
	u.mu.Lock()
	recs := s.last
	u.mu.Unlock()
	if len(recs) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Generate recommendation first"})
		return nil, false
	}
	return recs, true
}

func workbook(recs []api.Recommendation) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	sw, err := f.NewStreamWriter("Sheet1")
	if err != nil {
		return nil, err
	}
	header := []interface{}{"Rank", "Material", "CO2 (kg)", "Cost ($)", "Sustainability", "Biodegradable"}
	if err := sw.SetRow("A1", header); err != nil {
		return nil, err
	}
	for i, r := range recs {
		bio := "No"
		if r.Biodegradable {
			bio = "Yes"
		}
		addr, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := sw.SetRow(addr, []interface{}{i + 1, r.MaterialName, r.PredCO2, r.PredCost, r.Sustainability, bio}); err != nil {
			return nil, err
		}
	}
	if err := sw.Flush(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(true)
	enc.Encode(v)
}

// LoadMaterialsCSV reads a materials sheet. Empty cells become nulls, the
// way the real service sanitises missing values.
func LoadMaterialsCSV(path string) ([]api.Material, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("csv has no rows")
	}

	headers := map[string]int{}
	for i, h := range records[0] {
		headers[strings.ToLower(strings.TrimSpace(h))] = i
	}
	if _, ok := headers["material_id"]; !ok {
		return nil, fmt.Errorf("missing required column: Material_ID")
	}
	cell := func(row []string, name string) string {
		if i, ok := headers[strings.ToLower(name)]; ok && i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}
	str := func(row []string, name string) *string {
		if v := cell(row, name); v != "" {
			return &v
		}
		return nil
	}
	num := func(row []string, name string) *float64 {
		v, err := strconv.ParseFloat(cell(row, name), 64)
		if err != nil {
			return nil
		}
		return &v
	}

	var out []api.Material
	for _, row := range records[1:] {
		if len(row) == 0 {
			continue
		}
		bio := strings.ToLower(cell(row, "Biodegradable"))
		out = append(out, api.Material{
			ID:              api.Text(cell(row, "Material_ID")),
			Name:            str(row, "Material_Name"),
			Category:        str(row, "Category"),
			Density:         num(row, "Density_kg_m3"),
			TensileStrength: num(row, "Tensile_Strength_MPa"),
			CostPerKg:       num(row, "Cost_per_kg"),
			CO2PerKg:        num(row, "CO2_Emission_kg"),
			Biodegradable:   api.Flag(bio == "yes" || bio == "true" || bio == "1"),
		})
	}
	return out, nil
}
