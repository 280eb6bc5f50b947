package imgcache

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestCacheConcurrentAccess(t *testing.T) {
	c := NewCache()
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			url := fmt.Sprintf("https://x.test/%d.png", i%8)
			c.Put(url, "/tmp/"+url)
			if _, ok := c.TryGet(url); !ok {
				t.Errorf("missing %s right after Put", url)
			}
		}(i)
	}
	wg.Wait()
	if c.Len() != 8 {
		t.Fatalf("expected 8 entries, got %d", c.Len())
	}
	entries := c.Entries()
	for i := 1; i < len(entries); i++ {
		if entries[i-1].URL > entries[i].URL {
			t.Fatalf("entries not sorted: %v", entries)
		}
	}
}

func TestCacheTryGetMiss(t *testing.T) {
	c := NewCache()
	if p, ok := c.TryGet("https://x.test/none.png"); ok || p != "" {
		t.Fatalf("unexpected hit %q", p)
	}
}

func TestTargetPathAvoidsCollisions(t *testing.T) {
	s := &Store{dir: "/cache"}
	a := s.TargetPath("https://a.test/img/cat.png")
	b := s.TargetPath("https://b.test/other/cat.png")
	if a == b {
		t.Fatalf("distinct URLs share a target: %s", a)
	}
	if !strings.HasSuffix(a, "-cat.png") || !strings.HasSuffix(b, "-cat.png") {
		t.Fatalf("last segment not kept: %s %s", a, b)
	}
	if s.TargetPath("https://a.test/img/cat.png") != a {
		t.Fatal("target path is not deterministic")
	}
}

func TestLastSegment(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://x.test/a/b/dog.gif?size=2", "dog.gif"},
		{"https://x.test/", "image"},
		{"https://x.test", "image"},
		{"https://x.test/weird%20name!.png", "weird_name_.png"},
		{"https://x.test/..", "image"},
	}
	for _, tc := range tests {
		if got := lastSegment(tc.url); got != tc.want {
			t.Errorf("lastSegment(%q) = %q, want %q", tc.url, got, tc.want)
		}
	}
}

func TestStoreWriteAndList(t *testing.T) {
	s, err := OpenStore(filepath.Join(t.TempDir(), "images"))
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	data := pngBytes(t, 4, 3)
	info, err := Probe(data)
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if info.Format != "png" || info.Width != 4 || info.Height != 3 {
		t.Fatalf("unexpected info %+v", info)
	}

	url := "https://x.test/pic.png"
	path, err := s.Write(url, data, info)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil || !bytes.Equal(got, data) {
		t.Fatalf("stored bytes differ: %v", err)
	}

	// overwrite in place
	if _, err := s.Write(url, data, info); err != nil {
		t.Fatalf("second Write: %v", err)
	}

	metas, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(metas) != 1 || metas[0].URL != url || metas[0].Width != 4 || metas[0].Size != int64(len(data)) {
		t.Fatalf("unexpected metas %+v", metas)
	}

	if err := s.Clean(); err != nil {
		t.Fatalf("Clean: %v", err)
	}
	if _, err := os.Stat(s.Dir()); !os.IsNotExist(err) {
		t.Fatalf("store dir still present: %v", err)
	}
	metas, err = s.List()
	if err != nil || len(metas) != 0 {
		t.Fatalf("List after clean: %v %v", metas, err)
	}
}

func TestProbeRejectsGarbage(t *testing.T) {
	_, err := Probe([]byte("<html>not an image</html>"))
	var derr *DecodeError
	if !errors.As(err, &derr) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
}

func TestProbeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.png")
	if err := os.WriteFile(path, pngBytes(t, 2, 2), 0o644); err != nil {
		t.Fatal(err)
	}
	info, err := ProbeFile(path)
	if err != nil || info.Width != 2 {
		t.Fatalf("ProbeFile: %+v %v", info, err)
	}
	if _, err := ProbeFile(filepath.Join(t.TempDir(), "missing.png")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}
