// Package offline keeps a versioned cache of the remote pad's web assets
// so the page still loads when its origin is unreachable.
package offline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const refreshTimeout = 10 * time.Second

// Cache answers asset requests from memory first and refreshes entries
// from the origin in the background.
type Cache struct {
	name     string
	origin   Origin
	manifest []string
	logger   *zap.Logger

	mu      sync.RWMutex
	entries map[string]*Response

	refresh singleflight.Group
	pending sync.WaitGroup
}

func New(name string, origin Origin, manifest []string, logger *zap.Logger) *Cache {
	return &Cache{
		name:     name,
		origin:   origin,
		manifest: append([]string(nil), manifest...),
		logger:   logger.Named("offline").With(zap.String("cache", name)),
		entries:  make(map[string]*Response),
	}
}

func (c *Cache) Name() string { return c.name }

// Install pre-populates the cache with every manifest entry. Entries that
// fail are reported together; the ones that succeeded stay cached.
func (c *Cache) Install(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	var mu sync.Mutex
	var failed []error
	for _, path := range c.manifest {
		path := path
		g.Go(func() error {
			if err := c.update(ctx, path); err != nil {
				mu.Lock()
				failed = append(failed, fmt.Errorf("%s: %w", path, err))
				mu.Unlock()
			}
			return nil
		})
	}
	g.Wait()

	if len(failed) > 0 {
		return fmt.Errorf("precaching %s: %w", c.name, errors.Join(failed...))
	}
	c.logger.Info("assets precached", zap.Int("entries", c.Len()))
	return nil
}

func (c *Cache) Match(key string) (*Response, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.entries[key]
	return r, ok
}

// Put stores resp under key. Only complete 200 responses are kept.
func (c *Cache) Put(key string, resp *Response) bool {
	if resp == nil || resp.Status != http.StatusOK {
		return false
	}
	c.mu.Lock()
	c.entries[key] = resp
	c.mu.Unlock()
	return true
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Wait blocks until background refreshes started so far have finished.
func (c *Cache) Wait() { c.pending.Wait() }

func (c *Cache) update(ctx context.Context, key string) error {
	resp, err := c.origin.Fetch(ctx, key)
	if err != nil {
		return err
	}
	if !c.Put(key, resp) {
		return fmt.Errorf("origin answered %d", resp.Status)
	}
	return nil
}

func (c *Cache) refreshInBackground(key string) {
	c.pending.Add(1)
	go func() {
		defer c.pending.Done()
		_, err, _ := c.refresh.Do(key, func() (interface{}, error) {
			ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
			defer cancel()
			return nil, c.update(ctx, key)
		})
		if err != nil {
			c.logger.Debug("background refresh failed", zap.String("key", key), zap.Error(err))
		}
	}()
}

func cacheKey(r *http.Request) string {
	if r.URL.RawQuery != "" {
		return r.URL.Path + "?" + r.URL.RawQuery
	}
	return r.URL.Path
}

func (c *Cache) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}
	key := cacheKey(r)

	if resp, ok := c.Match(key); ok {
		c.write(w, r, resp, "HIT")
		c.refreshInBackground(key)
		return
	}

	resp, err := c.origin.Fetch(r.Context(), key)
	if err != nil {
		c.logger.Warn("asset unavailable", zap.String("key", key), zap.Error(err))
		http.Error(w, "asset unavailable offline", http.StatusBadGateway)
		return
	}
	c.Put(key, resp)
	c.write(w, r, resp, "MISS")
}

func (c *Cache) write(w http.ResponseWriter, r *http.Request, resp *Response, state string) {
	h := w.Header()
	for k, vs := range resp.Header {
		for _, v := range vs {
			h.Add(k, v)
		}
	}
	h.Set("X-Cache", state)
	h.Set("Content-Length", strconv.Itoa(len(resp.Body)))
	w.WriteHeader(resp.Status)
	if r.Method == http.MethodHead {
		return
	}
	w.Write(resp.Body)
}
