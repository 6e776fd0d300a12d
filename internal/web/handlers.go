package web

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/poku-e/ecopack/internal/app"
	"github.com/poku-e/ecopack/internal/export"
	"github.com/poku-e/ecopack/internal/recommend"
	"github.com/poku-e/ecopack/internal/render"
	"github.com/poku-e/ecopack/internal/ui"
)

type pageData struct {
	ui.View
	Categories    []string
	ShippingModes []string
	SortModes     []string
	TopK          int
	SortBy        string
}

func (s *Server) render(c echo.Context, a *app.App) error {
	cfg := a.Config()
	return c.Render(http.StatusOK, "index.html", pageData{
		View:          a.Page.Snapshot(s.now()),
		Categories:    Categories,
		ShippingModes: ShippingModes,
		SortModes:     SortModes,
		TopK:          cfg.Recommend.TopK,
		SortBy:        cfg.Recommend.SortBy,
	})
}

// upstreamCtx is the context for calls made on behalf of a request. Upstream
// calls run to completion even if the browser goes away mid-request.
func upstreamCtx(c echo.Context) context.Context {
	return context.WithoutCancel(c.Request().Context())
}

// section shows one page section. Navigation failures are already on the
// page as toasts, so the page is rendered either way.
func (s *Server) section(sec ui.Section) echo.HandlerFunc {
	return func(c echo.Context) error {
		a, err := s.state(c)
		if err != nil {
			return err
		}
		if err := a.Navigate(upstreamCtx(c), sec); err != nil {
			s.log.Warn(moduleName, "Navigation incomplete", map[string]interface{}{"section": string(sec), "error": err.Error()})
		}
		return s.render(c, a)
	}
}

func (s *Server) loadMore(c echo.Context) error {
	a, err := s.state(c)
	if err != nil {
		return err
	}
	if _, err := a.Catalog.LoadMore(upstreamCtx(c)); err != nil {
		s.log.Warn(moduleName, "Load more failed", map[string]interface{}{"error": err.Error()})
	}
	return c.Redirect(http.StatusSeeOther, "/materials#materialsContainer")
}

func (s *Server) recommend(c echo.Context) error {
	a, err := s.state(c)
	if err != nil {
		return err
	}
	var form recommend.Form
	if err := c.Bind(&form); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed form")
	}
	_, err = a.Recommend.Generate(upstreamCtx(c), form)
	s.metrics.recommendations.WithLabelValues(recommendOutcome(err)).Inc()
	if err != nil {
		return c.Redirect(http.StatusSeeOther, "/")
	}
	return c.Redirect(http.StatusSeeOther, "/#"+render.ResultsAnchor)
}

// export relays the report to the browser as an attachment. A failed export
// sends the browser back to the page, where the toast explains it.
func (s *Server) export(c echo.Context) error {
	kind, ok := export.ParseKind(c.Param("kind"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("unknown export %q", c.Param("kind")))
	}
	a, err := s.state(c)
	if err != nil {
		return err
	}

	var sink export.MemorySink
	f, err := a.Export.Download(upstreamCtx(c), kind, &sink)
	s.metrics.exports.WithLabelValues(string(kind), exportOutcome(err)).Inc()
	if err != nil {
		return c.Redirect(http.StatusSeeOther, "/#"+render.ResultsAnchor)
	}

	if kind == export.KindExcel {
		if sum, err := export.Summarize(bytes.NewReader(sink.Data())); err != nil {
			s.log.Warn(moduleName, "Downloaded workbook unreadable", map[string]interface{}{"error": err.Error()})
		} else {
			s.log.Info(moduleName, "Workbook relayed", map[string]interface{}{"sheet": sum.Sheet, "rows": sum.Rows})
		}
	}

	h := c.Response().Header()
	h.Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", f.Name))
	h.Set(echo.HeaderContentLength, strconv.FormatInt(f.Size, 10))
	return c.Blob(http.StatusOK, kind.ContentType(), sink.Data())
}

func (s *Server) logout(c echo.Context) error {
	a, err := s.state(c)
	if err != nil {
		return err
	}
	if err := a.Logout(upstreamCtx(c)); err != nil {
		s.log.Warn(moduleName, "Logout failed", map[string]interface{}{"error": err.Error()})
	}
	return c.Redirect(http.StatusSeeOther, "/")
}

func (s *Server) session(c echo.Context) error {
	a, err := s.state(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a.State(s.now()))
}
