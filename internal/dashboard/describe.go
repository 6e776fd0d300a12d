package dashboard

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/poku-e/ecopack/internal/api"
	"github.com/poku-e/ecopack/internal/config"
)

// Summary is a text outline of the published dashboard page.
type Summary struct {
	URL      string
	Title    string
	Headings []string
	Tables   []Table
	Links    []string
}

type Table struct {
	Caption string
	Header  []string
	Rows    int
}

var spaceRe = regexp.MustCompile(`\s+`)

// Describe fetches the dashboard page and outlines it.
func (l *Loader) Describe(ctx context.Context) (Summary, error) {
	resp, err := l.client.Do(ctx, http.MethodGet, config.RouteDashboard, nil, map[string]string{
		"Accept": "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
	})
	if err != nil {
		return Summary{}, err
	}
	body, err := api.ReadBody(resp)
	if err != nil {
		return Summary{}, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Summary{}, fmt.Errorf("dashboard: bad status %d", resp.StatusCode)
	}
	return Outline(body, resp.Request.URL)
}

// Outline extracts title, headings, tables and absolute links from html.
func Outline(html []byte, base *url.URL) (Summary, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return Summary{}, err
	}
	s := Summary{Title: condense(doc.Find("title").First().Text())}
	if base != nil {
		s.URL = base.String()
	}

	doc.Find("h1, h2, h3").Each(func(_ int, h *goquery.Selection) {
		if t := condense(h.Text()); t != "" {
			s.Headings = append(s.Headings, t)
		}
	})
	if s.Title == "" && len(s.Headings) > 0 {
		s.Title = s.Headings[0]
	}

	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		t := Table{Caption: condense(table.Find("caption").First().Text())}
		table.Find("thead th").Each(func(_ int, th *goquery.Selection) {
			t.Header = append(t.Header, condense(th.Text()))
		})
		rows := table.Find("tbody > tr")
		if rows.Length() == 0 {
			rows = table.Find("tr").Has("td")
		}
		t.Rows = rows.Length()
		s.Tables = append(s.Tables, t)
	})

	seen := map[string]bool{}
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
			return
		}
		u := resolve(base, href)
		if u != "" && !seen[u] {
			seen[u] = true
			s.Links = append(s.Links, u)
		}
	})
	return s, nil
}

func condense(s string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

func resolve(base *url.URL, ref string) string {
	if ref == "" {
		return ""
	}
	ru, err := url.Parse(ref)
	if err != nil || base == nil {
		return ref
	}
	return base.ResolveReference(ru).String()
}
