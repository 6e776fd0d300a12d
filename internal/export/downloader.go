package export

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/poku-e/ecopack/internal/api"
	"github.com/poku-e/ecopack/internal/config"
	"github.com/poku-e/ecopack/internal/logger"
	"github.com/poku-e/ecopack/internal/ui"
)

const moduleName = "EXPORT"

type Kind string

const (
	KindPDF   Kind = "pdf"
	KindExcel Kind = "excel"
)

type kindInfo struct {
	route       string
	ext         string
	contentType string
	failMsg     string
	okMsg       string
}

var kinds = map[Kind]kindInfo{
	KindPDF: {
		route:       config.RouteGeneratePDF,
		ext:         ".pdf",
		contentType: "application/pdf",
		failMsg:     "PDF generation failed",
		okMsg:       "PDF downloaded successfully!",
	},
	KindExcel: {
		route:       config.RouteExportExcel,
		ext:         ".xlsx",
		contentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		failMsg:     "Excel export failed",
		okMsg:       "Excel file downloaded successfully!",
	},
}

func ParseKind(s string) (Kind, bool) {
	k := Kind(s)
	_, ok := kinds[k]
	return k, ok
}

// Filename is the report name for the UTC calendar day of t.
func (k Kind) Filename(t time.Time) string {
	return "EcoPackAI_Report_" + t.UTC().Format("2006-01-02") + kinds[k].ext
}

func (k Kind) ContentType() string { return kinds[k].contentType }

// FailureMessage is the toast shown when the server gives no reason.
func (k Kind) FailureMessage() string { return kinds[k].failMsg }

func (k Kind) SuccessMessage() string { return kinds[k].okMsg }

// Error is a refused export. Message is what the user was shown.
type Error struct {
	Kind    Kind
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s export: server returned %d: %s", e.Kind, e.Status, e.Message)
}

type View interface {
	ShowToast(message string, kind ui.ToastKind)
}

// File is a saved report.
type File struct {
	Name string
	Path string
	Size int64
}

// Downloader fetches server-generated reports. Both kinds go through the same
// request, check and save steps.
type Downloader struct {
	client *api.Client
	view   View
	log    logger.Logger
	now    func() time.Time
}

func NewDownloader(client *api.Client, view View, log logger.Logger) *Downloader {
	return &Downloader{client: client, view: view, log: log, now: time.Now}
}

// Download posts to the kind's route and hands the body to sink. Nothing is
// saved unless the server answered OK.
func (d *Downloader) Download(ctx context.Context, kind Kind, sink Sink) (File, error) {
	info, ok := kinds[kind]
	if !ok {
		return File{}, fmt.Errorf("unknown export kind %q", kind)
	}

	resp, err := d.client.Post(ctx, info.route, nil)
	if err != nil {
		d.fail(kind, info.failMsg, err)
		return File{}, err
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := api.ReadBody(resp)
		msg := info.failMsg
		var eb api.ErrorBody
		if json.Valid(body) && json.Unmarshal(body, &eb) == nil && eb.Error != "" {
			msg = eb.Error
		}
		err := &Error{Kind: kind, Status: resp.StatusCode, Message: msg}
		d.fail(kind, msg, err)
		return File{}, err
	}
	defer resp.Body.Close()

	name := kind.Filename(d.now())
	f, err := sink.Save(name, resp.Body)
	if err != nil {
		d.fail(kind, info.failMsg, err)
		return File{}, err
	}

	d.view.ShowToast(info.okMsg, ui.ToastSuccess)
	d.log.Info(moduleName, "Report downloaded", map[string]interface{}{
		"kind": string(kind),
		"name": f.Name,
		"size": f.Size,
	})
	return f, nil
}

func (d *Downloader) fail(kind Kind, msg string, err error) {
	d.log.Error(moduleName, "Report download failed", map[string]interface{}{
		"kind":  string(kind),
		"error": err.Error(),
	})
	d.view.ShowToast(msg, ui.ToastError)
}
