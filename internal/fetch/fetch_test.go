package fetch

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"memeful/internal/imgcache"
)

func testPNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 3, 2))); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// gatedTransport blocks every Fetch until release is closed.
type gatedTransport struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
	data    []byte
	err     error
}

func newGated(data []byte, err error) *gatedTransport {
	return &gatedTransport{
		started: make(chan struct{}, 16),
		release: make(chan struct{}),
		data:    data,
		err:     err,
	}
}

func (g *gatedTransport) Fetch(ctx context.Context, url string) ([]byte, error) {
	g.calls.Add(1)
	g.started <- struct{}{}
	select {
	case <-g.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return g.data, g.err
}

func newCoordinator(t *testing.T, tr Transport) *Coordinator {
	t.Helper()
	store, err := imgcache.OpenStore(t.TempDir())
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	return NewCoordinator(context.Background(), tr, store, imgcache.NewCache())
}

func waitResults(t *testing.T, ch <-chan Result, n int) []Result {
	t.Helper()
	out := make([]Result, 0, n)
	timeout := time.After(5 * time.Second)
	for len(out) < n {
		select {
		case r := <-ch:
			out = append(out, r)
		case <-timeout:
			t.Fatalf("got %d of %d results", len(out), n)
		}
	}
	return out
}

func TestConcurrentRequestsShareOneTransfer(t *testing.T) {
	tr := newGated(testPNG(t), nil)
	c := newCoordinator(t, tr)
	const url = "https://x.test/a.png"
	const n = 8

	results := make(chan Result, n)
	c.RequestFetch(url, func(r Result) { results <- r })
	<-tr.started

	for i := 1; i < n; i++ {
		c.RequestFetch(url, func(r Result) { results <- r })
	}
	if got := c.Pending(url); got != n {
		t.Fatalf("expected %d waiters, got %d", n, got)
	}
	close(tr.release)

	for _, r := range waitResults(t, results, n) {
		if r.Err != nil {
			t.Fatalf("unexpected error: %v", r.Err)
		}
		if _, err := os.Stat(r.Path); err != nil {
			t.Fatalf("result path missing: %v", err)
		}
	}
	if tr.calls.Load() != 1 || c.Transfers() != 1 {
		t.Fatalf("expected one transfer, got calls=%d transfers=%d", tr.calls.Load(), c.Transfers())
	}
	if _, ok := c.Cache().TryGet(url); !ok {
		t.Fatal("cache not populated")
	}
	if c.Pending(url) != 0 {
		t.Fatalf("pending entry not discarded: %d", c.Pending(url))
	}
}

func TestCachedURLCompletesSynchronously(t *testing.T) {
	tr := newGated(nil, nil)
	c := newCoordinator(t, tr)
	c.Cache().Put("https://x.test/b.png", "/cache/b.png")

	called := false
	c.RequestFetch("https://x.test/b.png", func(r Result) {
		called = true
		if r.Path != "/cache/b.png" || r.Err != nil {
			t.Errorf("unexpected result %+v", r)
		}
	})
	if !called {
		t.Fatal("callback not invoked synchronously")
	}
	if c.Transfers() != 0 {
		t.Fatalf("cached URL started a transfer")
	}
}

func TestFailureIsNotCached(t *testing.T) {
	boom := errors.New("connection refused")
	var calls atomic.Int32
	tr := TransportFunc(func(ctx context.Context, url string) ([]byte, error) {
		if calls.Add(1) == 1 {
			return nil, boom
		}
		return testPNG(t), nil
	})
	c := newCoordinator(t, tr)
	const url = "https://x.test/c.png"

	results := make(chan Result, 2)
	c.RequestFetch(url, func(r Result) { results <- r })
	first := waitResults(t, results, 1)[0]
	var ferr *FetchError
	if !errors.As(first.Err, &ferr) || ferr.Op != OpDownload || !errors.Is(first.Err, boom) {
		t.Fatalf("expected download FetchError, got %v", first.Err)
	}
	if _, ok := c.Cache().TryGet(url); ok {
		t.Fatal("failure was cached")
	}

	c.RequestFetch(url, func(r Result) { results <- r })
	second := waitResults(t, results, 1)[0]
	if second.Err != nil {
		t.Fatalf("retry failed: %v", second.Err)
	}
	if c.Transfers() != 2 {
		t.Fatalf("expected 2 transfers, got %d", c.Transfers())
	}
}

func TestUndecodableBytes(t *testing.T) {
	tr := TransportFunc(func(ctx context.Context, url string) ([]byte, error) {
		return []byte("<html>404</html>"), nil
	})
	c := newCoordinator(t, tr)
	results := make(chan Result, 1)
	c.RequestFetch("https://x.test/d.png", func(r Result) { results <- r })
	r := waitResults(t, results, 1)[0]

	var ferr *FetchError
	if !errors.As(r.Err, &ferr) || ferr.Op != OpDecode {
		t.Fatalf("expected decode FetchError, got %v", r.Err)
	}
	var derr *imgcache.DecodeError
	if !errors.As(r.Err, &derr) {
		t.Fatalf("expected DecodeError in chain, got %v", r.Err)
	}
}

func TestHTTPTransport(t *testing.T) {
	img := testPNG(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.png":
			if r.Header.Get("User-Agent") != "memeful-test" {
				http.Error(w, "bad agent", http.StatusBadRequest)
				return
			}
			w.Write(img)
		case "/big.png":
			w.Write(bytes.Repeat([]byte{0}, 2048))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	tr := NewHTTPTransport(time.Second, 1024, "memeful-test")
	ctx := context.Background()

	data, err := tr.Fetch(ctx, srv.URL+"/ok.png")
	if err != nil || !bytes.Equal(data, img) {
		t.Fatalf("ok fetch: %v", err)
	}

	_, err = tr.Fetch(ctx, srv.URL+"/missing.png")
	var serr *StatusError
	if !errors.As(err, &serr) || serr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 StatusError, got %v", err)
	}

	if _, err := tr.Fetch(ctx, srv.URL+"/big.png"); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
}

func TestCoordinatorOverHTTP(t *testing.T) {
	img := testPNG(t)
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write(img)
	}))
	defer srv.Close()

	c := newCoordinator(t, NewHTTPTransport(time.Second, 0, ""))
	url := srv.URL + "/pic.png"

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		c.RequestFetch(url, func(r Result) {
			defer wg.Done()
			if r.Err != nil {
				t.Errorf("fetch: %v", r.Err)
			}
		})
	}
	wg.Wait()

	// served from cache now
	done := false
	c.RequestFetch(url, func(Result) { done = true })
	if !done {
		t.Fatal("expected synchronous cache hit")
	}
	if hits.Load() > 2 {
		t.Fatalf("too many requests: %d", hits.Load())
	}
}
