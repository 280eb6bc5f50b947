package check

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"memeful/internal/dialect"
	"memeful/internal/fetch"
	"memeful/internal/imgcache"
	"memeful/internal/observ"
	"memeful/internal/ui"
)

func pngData(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 6, 5))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestRunMixedFiles(t *testing.T) {
	dir := t.TempDir()
	img := pngData(t)
	writeFile(t, filepath.Join(dir, "cat.png"), img)
	goFile := filepath.Join(dir, "main.go")
	writeFile(t, goFile, []byte("package main\n\n// <image url=\"cat.png\"/>\nfunc main() {}\n// <image url=\"https://example.test/dog.png\" scale=\"0.5\"/>\n"))
	pyFile := filepath.Join(dir, "tool.py")
	writeFile(t, pyFile, []byte("# <image url=\"missing.png\"/>\n# <image src=\"x\"/>\n"))
	missing := filepath.Join(dir, "nope.go")

	store, err := imgcache.OpenStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	coord := fetch.NewCoordinator(context.Background(), fetch.TransportFunc(func(ctx context.Context, url string) ([]byte, error) {
		return img, nil
	}), store, imgcache.NewCache())

	events := make(chan ui.Event, 64)
	timer := observ.NewTimer()
	reports, err := Run(context.Background(), Options{
		Files:    []string{goFile, pyFile, missing},
		Fetcher:  coord,
		Jobs:     2,
		Progress: events,
		Timer:    timer,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(reports) != 3 {
		t.Fatalf("expected 3 reports, got %d", len(reports))
	}

	goReport := reports[0]
	if goReport.Dialect != "c" || len(goReport.Lines) != 2 {
		t.Fatalf("unexpected go report %+v", goReport)
	}
	if l := goReport.Lines[0]; l.Line != 2 || l.Kind != "ready" || l.Width != 6 {
		t.Fatalf("unexpected local line %+v", l)
	}
	if l := goReport.Lines[1]; l.Line != 4 || l.Kind != "ready" || l.Scale != 0.5 {
		t.Fatalf("unexpected remote line %+v", l)
	}

	pyReport := reports[1]
	if pyReport.Dialect != "hash" || pyReport.Failed() != 2 {
		t.Fatalf("unexpected python report %+v", pyReport)
	}
	if pyReport.Lines[0].Code != "MEM2002" || pyReport.Lines[1].Code != "MEM1001" {
		t.Fatalf("unexpected codes %+v", pyReport.Lines)
	}

	if reports[2].Err == "" {
		t.Fatal("missing file not reported")
	}
	if !HasErrors(reports) {
		t.Fatal("HasErrors should be true")
	}
	if len(timer.Report().Phases) != 3 {
		t.Fatalf("expected a timing phase per file")
	}

	close(events)
	final := map[string]ui.Status{}
	for ev := range events {
		final[ev.File] = ev.Status
	}
	if final[goFile] != ui.StatusDone || final[pyFile] != ui.StatusError || final[missing] != ui.StatusError {
		t.Fatalf("unexpected final statuses %+v", final)
	}
}

func TestForcedDialect(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.png"), pngData(t))
	path := filepath.Join(dir, "notes.txt")
	writeFile(t, path, []byte("<!-- <image url=\"a.png\"/> -->\n"))

	reports, err := Run(context.Background(), Options{Files: []string{path}})
	if err != nil {
		t.Fatal(err)
	}
	if len(reports[0].Lines) != 0 {
		t.Fatalf("markup comment matched under c dialect: %+v", reports[0].Lines)
	}

	markup := dialect.Markup
	reports, err = Run(context.Background(), Options{Files: []string{path}, Dialect: &markup})
	if err != nil {
		t.Fatal(err)
	}
	if len(reports[0].Lines) != 1 || reports[0].Lines[0].Kind != "ready" || HasErrors(reports) {
		t.Fatalf("unexpected report %+v", reports[0])
	}
}

func TestCanceledRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.go")
	writeFile(t, path, []byte("// nothing\n"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Run(ctx, Options{Files: []string{path}}); err == nil {
		t.Fatal("expected cancellation error")
	}
}
