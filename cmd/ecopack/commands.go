package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/poku-e/ecopack/internal/api"
	"github.com/poku-e/ecopack/internal/export"
	"github.com/poku-e/ecopack/internal/recommend"
	"github.com/poku-e/ecopack/internal/render"
	"github.com/poku-e/ecopack/internal/session"
	"github.com/poku-e/ecopack/internal/ui"
	"github.com/poku-e/ecopack/internal/web"
)

func serveCMD(g *globals) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the EcoPackAI page",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				g.cfg.Server.Address = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return web.New(g.cfg, g.baseURL(), g.log).Run(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	return cmd
}

func statusCMD(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the remaining recommendation quota",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.newApp(cmd.Context())
			if err != nil {
				return err
			}
			render.WriteHint(g.out, "API: %s", a.BaseURL())
			g.quota(a, ui.RegionHeader)
			if _, ok := a.Session.Snapshot(); !ok {
				return errors.New("session status unavailable")
			}
			return nil
		},
	}
}

func recommendCMD(g *globals) *cobra.Command {
	var (
		form     recommend.Form
		moisture bool
		exports  []string
		dir      string
	)
	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Generate packaging recommendations for a shipment",
		Long: "Generate packaging recommendations for a shipment. Reports are tied to the\n" +
			"API session, so --export downloads them in the same run.",
		RunE: func(cmd *cobra.Command, args []string) error {
			kinds := make([]export.Kind, 0, len(exports))
			for _, e := range exports {
				k, ok := export.ParseKind(e)
				if !ok {
					return fmt.Errorf("unknown export %q (want pdf or excel)", e)
				}
				kinds = append(kinds, k)
			}
			if moisture {
				form.MoistureSens = "1"
			}
			if dir == "" {
				dir = g.cfg.Export.Dir
			}

			ctx := cmd.Context()
			a, err := g.newApp(ctx)
			if err != nil {
				return err
			}
			batch, err := a.Recommend.Generate(ctx, form)
			g.toast(a)
			if err != nil {
				g.quota(a, ui.RegionForm)
				return err
			}
			if err := render.WriteResults(g.out, batch.Recommendations, batch.SortBy); err != nil {
				return err
			}
			for _, k := range kinds {
				if err := g.download(ctx, a.Export, k, dir); err != nil {
					return err
				}
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&form.Category, "category", "", "product category (required)")
	f.StringVar(&form.ShippingMode, "shipping", "", "shipping mode: Air, Sea, Road or Rail (required)")
	f.StringVar(&form.Weight, "weight", "", "weight in kg")
	f.StringVar(&form.Distance, "distance", "", "distance in km")
	f.StringVar(&form.Length, "length", "", "length in cm")
	f.StringVar(&form.Width, "width", "", "width in cm")
	f.StringVar(&form.Height, "height", "", "height in cm")
	f.StringVar(&form.Fragility, "fragility", "5", "fragility from 1 to 10")
	f.BoolVar(&moisture, "moisture", false, "contents are moisture sensitive")
	f.StringVar(&form.TopK, "top-k", "", "number of recommendations (default from config)")
	f.StringVar(&form.SortBy, "sort-by", "", "Sustainability, CO2 or Cost (default from config)")
	f.StringSliceVar(&exports, "export", nil, "download reports after generating: pdf, excel")
	f.StringVar(&dir, "dir", "", "directory for downloaded reports (default from config)")
	return cmd
}

func (g *globals) download(ctx context.Context, d *export.Downloader, kind export.Kind, dir string) error {
	f, err := d.Download(ctx, kind, export.DirSink{Dir: dir})
	if err != nil {
		render.WriteNotice(g.out, err.Error(), true)
		return err
	}
	render.WriteNotice(g.out, fmt.Sprintf("%s %s (%d bytes)", kind.SuccessMessage(), f.Path, f.Size), false)
	if kind == export.KindExcel {
		sum, err := export.SummarizeWorkbook(f.Path)
		if err != nil {
			return err
		}
		render.WriteHint(g.out, "Sheet %s: %d %s", sum.Sheet, sum.Rows, session.Plural(sum.Rows, "row"))
	}
	return nil
}

func materialsCMD(g *globals) *cobra.Command {
	var (
		pages int
		all   bool
		out   string
	)
	cmd := &cobra.Command{
		Use:   "materials",
		Short: "Browse the materials catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := g.newApp(ctx)
			if err != nil {
				return err
			}

			var ms []api.Material
			more := false
			for i := 0; all || i < pages; i++ {
				res, err := a.Catalog.LoadMore(ctx)
				if err != nil {
					g.toast(a)
					return err
				}
				if res.Skipped {
					break
				}
				ms = append(ms, res.Materials...)
				more = res.HasMore
				if !more {
					break
				}
			}

			if len(ms) == 0 {
				render.WriteHint(g.out, ui.NoMaterialsText)
				return nil
			}
			if err := render.WriteMaterials(g.out, ms); err != nil {
				return err
			}
			if more {
				render.WriteHint(g.out, "More materials available, use --pages %d or --all", a.Catalog.Page())
			}
			if out != "" {
				if err := export.WriteCatalog(out, ms); err != nil {
					return err
				}
				render.WriteNotice(g.out, fmt.Sprintf("Wrote %d %s to %s", len(ms), session.Plural(len(ms), "material"), out), false)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&pages, "pages", 1, "number of pages to load")
	cmd.Flags().BoolVar(&all, "all", false, "load every page")
	cmd.Flags().StringVarP(&out, "out", "o", "", "also write the loaded materials to a .csv or .xlsx file")
	return cmd
}

func dashboardCMD(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Describe the BI dashboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := g.newApp(ctx)
			if err != nil {
				return err
			}
			available, err := a.Dashboard.Available(ctx)
			if err != nil {
				return err
			}
			if !available {
				render.WriteHint(g.out, ui.PlaceholderText)
				return nil
			}
			sum, err := a.Dashboard.Describe(ctx)
			if err != nil {
				return err
			}
			render.WriteNotice(g.out, sum.Title, false)
			render.WriteHint(g.out, "%s", sum.URL)
			for _, h := range sum.Headings {
				fmt.Fprintf(g.out, "  • %s\n", h)
			}
			for _, t := range sum.Tables {
				name := t.Caption
				if name == "" {
					name = "table"
				}
				fmt.Fprintf(g.out, "  ▦ %s: %d %s\n", name, t.Rows, session.Plural(t.Rows, "row"))
			}
			return nil
		},
	}
}

func logoutCMD(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the API session and start a new one",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := g.newApp(ctx)
			if err != nil {
				return err
			}
			err = a.Logout(ctx)
			g.toast(a)
			if err != nil {
				return err
			}
			g.quota(a, ui.RegionHeader)
			return nil
		},
	}
}
