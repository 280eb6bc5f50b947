package fetch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"memeful/internal/imgcache"
	"memeful/internal/trace"
)

// Result is delivered to every waiter of a URL.
type Result struct {
	URL  string
	Path string
	Err  error
}

// Coordinator deduplicates remote image transfers.
type Coordinator struct {
	ctx       context.Context
	transport Transport
	store     *imgcache.Store
	cache     *imgcache.Cache

	group     singleflight.Group
	mu        sync.Mutex
	pending   map[string]int
	transfers atomic.Int64
}

// NewCoordinator creates a coordinator. ctx bounds every transfer and carries
// the tracer; it is normally cancelled only at shutdown.
func NewCoordinator(ctx context.Context, transport Transport, store *imgcache.Store, cache *imgcache.Cache) *Coordinator {
	if ctx == nil {
		ctx = context.Background()
	}
	if cache == nil {
		cache = imgcache.NewCache()
	}
	return &Coordinator{
		ctx:       ctx,
		transport: transport,
		store:     store,
		cache:     cache,
		pending:   make(map[string]int),
	}
}

// Cache returns the resolution cache the coordinator fills.
func (c *Coordinator) Cache() *imgcache.Cache {
	return c.cache
}

// Transfers returns how many transfers have been started.
func (c *Coordinator) Transfers() int64 {
	return c.transfers.Load()
}

// Pending returns the number of waiters for url.
func (c *Coordinator) Pending(url string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending[url]
}

// RequestFetch resolves url to a local path. A cached URL completes
// synchronously on the calling goroutine; otherwise onComplete runs on a
// background goroutine once the single shared transfer ends.
func (c *Coordinator) RequestFetch(url string, onComplete func(Result)) {
	if path, ok := c.cache.TryGet(url); ok {
		onComplete(Result{URL: url, Path: path})
		return
	}

	c.mu.Lock()
	c.pending[url]++
	c.mu.Unlock()

	ch := c.group.DoChan(url, func() (any, error) {
		// a transfer that finished between TryGet and DoChan already filled the cache
		if path, ok := c.cache.TryGet(url); ok {
			return path, nil
		}
		return c.transfer(url)
	})

	go func() {
		res := <-ch
		c.mu.Lock()
		if c.pending[url] <= 1 {
			delete(c.pending, url)
		} else {
			c.pending[url]--
		}
		c.mu.Unlock()

		out := Result{URL: url, Err: res.Err}
		if res.Err == nil {
			out.Path, _ = res.Val.(string)
		}
		onComplete(out)
	}()
}

func (c *Coordinator) transfer(url string) (string, error) {
	c.transfers.Add(1)
	tracer := trace.FromContext(c.ctx)
	span := trace.Begin(tracer, trace.ScopeFetch, "fetch").WithExtra("url", url)

	path, err := c.download(url)
	if err != nil {
		span.End("error")
		trace.Error(tracer, trace.ScopeFetch, "fetch_failed", err.Error())
		return "", err
	}
	span.End(path)
	return path, nil
}

func (c *Coordinator) download(url string) (string, error) {
	if c.transport == nil {
		return "", &FetchError{URL: url, Op: OpDownload, Err: errors.New("no transport configured")}
	}
	data, err := c.transport.Fetch(c.ctx, url)
	if err != nil {
		return "", &FetchError{URL: url, Op: OpDownload, Err: err}
	}
	info, err := imgcache.Probe(data)
	if err != nil {
		return "", &FetchError{URL: url, Op: OpDecode, Err: err}
	}
	if c.store == nil {
		return "", &FetchError{URL: url, Op: OpWrite, Err: errors.New("no cache directory configured")}
	}
	path, err := c.store.Write(url, data, info)
	if err != nil {
		return "", &FetchError{URL: url, Op: OpWrite, Err: err}
	}
	c.cache.Put(url, path)
	return path, nil
}
