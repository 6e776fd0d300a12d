// Command ecopack runs the EcoPackAI front end: the web page (serve) or the
// same flows from a terminal.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/poku-e/ecopack/internal/app"
	"github.com/poku-e/ecopack/internal/config"
	"github.com/poku-e/ecopack/internal/logger"
	"github.com/poku-e/ecopack/internal/render"
	"github.com/poku-e/ecopack/internal/ui"
)

func main() {
	if err := rootCMD().Execute(); err != nil {
		os.Exit(1)
	}
}

// globals holds what the persistent flags resolve to.
type globals struct {
	cfgPath string
	host    string
	apiURL  string
	logFile string

	cfg *config.Config
	log logger.Logger
	out io.Writer
}

func rootCMD() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:          "ecopack",
		Short:        "Packaging material recommendations from the EcoPackAI service",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return g.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if g.log != nil {
				_ = g.log.Sync()
			}
		},
	}
	root.PersistentFlags().StringVarP(&g.cfgPath, "config", "c", "", "config file (default is ./config.yaml)")
	root.PersistentFlags().StringVar(&g.host, "host", "", "front end host name, picks the local or remote API")
	root.PersistentFlags().StringVar(&g.apiURL, "api", "", "API base URL, overrides --host")
	root.PersistentFlags().StringVar(&g.logFile, "log-file", "", "log file (default from config)")

	root.AddCommand(
		serveCMD(g),
		statusCMD(g),
		recommendCMD(g),
		materialsCMD(g),
		dashboardCMD(g),
		logoutCMD(g),
	)
	return root
}

func (g *globals) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(g.cfgPath)
	if err != nil {
		return err
	}
	if g.host != "" {
		cfg.Frontend.Host = g.host
	}
	if g.apiURL != "" {
		cfg.API.BaseURL = g.apiURL
	}
	if g.logFile != "" {
		cfg.Log.File = g.logFile
	}
	g.cfg = cfg
	g.out = cmd.OutOrStdout()

	// only the server logs to the console; elsewhere stdout is the output
	if cmd.Name() == "serve" {
		g.log = logger.NewZapLogger(cfg.Log.File, cfg.Log.Production)
	} else {
		g.log = logger.NewFileLogger(cfg.Log.File)
	}
	return nil
}

func (g *globals) baseURL() string {
	return g.cfg.ResolveBaseURL(g.cfg.Frontend.Host)
}

// newApp builds a session against the API and checks its quota.
func (g *globals) newApp(ctx context.Context) (*app.App, error) {
	a, err := app.New(g.cfg, g.baseURL(), g.log)
	if err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}
	a.Init(ctx)
	return a, nil
}

// toast prints the page's current notification, if any.
func (g *globals) toast(a *app.App) {
	if t, ok := a.Page.Toast(time.Now()); ok {
		render.WriteNotice(g.out, t.Message, t.Kind == ui.ToastError)
	}
}

// quota prints the remaining-quota line for region.
func (g *globals) quota(a *app.App, region ui.Region) {
	v := a.Page.Snapshot(time.Now())
	if !v.HasQuota {
		render.WriteHint(g.out, "Session status unavailable")
		return
	}
	n := v.QuotaHeader
	if region == ui.RegionForm {
		n = v.QuotaForm
	}
	render.WriteNotice(g.out, n.String(), n.Severity == ui.SeverityError)
}
