package export

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/poku-e/ecopack/internal/api"
	"github.com/poku-e/ecopack/internal/config"
	"github.com/poku-e/ecopack/internal/logger"
	"github.com/poku-e/ecopack/internal/ui"
)

type toasts struct {
	msgs  []string
	kinds []ui.ToastKind
}

func (t *toasts) ShowToast(m string, k ui.ToastKind) {
	t.msgs = append(t.msgs, m)
	t.kinds = append(t.kinds, k)
}

var fixedNow = time.Date(2025, 3, 9, 23, 30, 0, 0, time.UTC)

func newDownloader(t *testing.T, h http.HandlerFunc) (*Downloader, *toasts) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := api.New(srv.URL)
	require.NoError(t, err)
	view := &toasts{}
	d := NewDownloader(c, view, logger.NewNop())
	d.now = func() time.Time { return fixedNow }
	return d, view
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "EcoPackAI_Report_2025-03-09.pdf", KindPDF.Filename(fixedNow))
	assert.Equal(t, "EcoPackAI_Report_2025-03-09.xlsx", KindExcel.Filename(fixedNow))

	// the date is the UTC day
	east := time.Date(2025, 3, 10, 1, 0, 0, 0, time.FixedZone("UTC+3", 3*3600))
	assert.Equal(t, "EcoPackAI_Report_2025-03-09.pdf", KindPDF.Filename(east))
}

func TestParseKind(t *testing.T) {
	k, ok := ParseKind("excel")
	assert.True(t, ok)
	assert.Equal(t, KindExcel, k)
	_, ok = ParseKind("csv")
	assert.False(t, ok)
}

func TestDownloadPDFToDir(t *testing.T) {
	var method, path string
	var bodyLen int
	d, view := newDownloader(t, func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		b, _ := io.ReadAll(r.Body)
		bodyLen = len(b)
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.4 fake"))
	})
	dir := t.TempDir()

	f, err := d.Download(context.Background(), KindPDF, DirSink{Dir: dir})
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, method)
	assert.Equal(t, config.RouteGeneratePDF, path)
	assert.Zero(t, bodyLen)

	assert.Equal(t, "EcoPackAI_Report_2025-03-09.pdf", f.Name)
	assert.Equal(t, filepath.Join(dir, f.Name), f.Path)
	data, err := os.ReadFile(f.Path)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 fake", string(data))
	assert.Equal(t, int64(len(data)), f.Size)
	assert.Equal(t, []string{"PDF downloaded successfully!"}, view.msgs)
	assert.Equal(t, []ui.ToastKind{ui.ToastSuccess}, view.kinds)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestDownloadExcelToMemory(t *testing.T) {
	book := excelize.NewFile()
	book.SetSheetRow("Sheet1", "A1", &[]interface{}{"Material", "CO2"})
	book.SetSheetRow("Sheet1", "A2", &[]interface{}{"Kraft", 1.2})
	var buf bytes.Buffer
	require.NoError(t, book.Write(&buf))

	d, view := newDownloader(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, config.RouteExportExcel, r.URL.Path)
		w.Write(buf.Bytes())
	})
	sink := &MemorySink{}

	f, err := d.Download(context.Background(), KindExcel, sink)
	require.NoError(t, err)
	assert.Equal(t, "EcoPackAI_Report_2025-03-09.xlsx", sink.Name())
	assert.Equal(t, f.Name, sink.Name())
	assert.Empty(t, f.Path)
	assert.Equal(t, []string{"Excel file downloaded successfully!"}, view.msgs)

	sum, err := Summarize(bytes.NewReader(sink.Data()))
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Rows)
}

func TestDownloadFailureMessages(t *testing.T) {
	tests := []struct {
		name string
		kind Kind
		body string
		want string
	}{
		{"server reason", KindPDF, `{"error":"No recommendations yet"}`, "No recommendations yet"},
		{"json without reason", KindPDF, `{}`, "PDF generation failed"},
		{"html body", KindExcel, `<h1>500</h1>`, "Excel export failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, view := newDownloader(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(tt.body))
			})
			dir := t.TempDir()

			_, err := d.Download(context.Background(), tt.kind, DirSink{Dir: dir})
			var ee *Error
			require.True(t, errors.As(err, &ee))
			assert.Equal(t, http.StatusBadRequest, ee.Status)
			assert.Equal(t, []string{tt.want}, view.msgs)
			assert.Equal(t, []ui.ToastKind{ui.ToastError}, view.kinds)

			entries, _ := os.ReadDir(dir)
			assert.Empty(t, entries)
		})
	}
}

func TestDownloadTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()
	c, err := api.New(url)
	require.NoError(t, err)
	view := &toasts{}
	d := NewDownloader(c, view, logger.NewNop())

	_, err = d.Download(context.Background(), KindExcel, &MemorySink{})
	var te *api.TransportError
	assert.ErrorAs(t, err, &te)
	assert.Equal(t, []string{"Excel export failed"}, view.msgs)
}

func TestDownloadUnknownKind(t *testing.T) {
	d, view := newDownloader(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	_, err := d.Download(context.Background(), Kind("zip"), &MemorySink{})
	assert.Error(t, err)
	assert.Empty(t, view.msgs)
}
