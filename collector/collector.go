package collector

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/gorilla/websocket"

	"github.com/pollscribe/pollscribe/store"
)

// Configuration for the Collector service
type Config struct {
	// HTTP server address
	Addr string

	// Backing fragment and segment store
	Store *store.Store

	// Directory to monitor for spooled transcript batches. Empty
	// disables spool ingestion.
	SpoolDir string

	// Number of worker threads for spool processing
	Workers int
}

// Collector is the server side of the pipeline: it ingests transcript
// fragments over HTTP and from the spool directory, persists them, and
// fans live fragments out to websocket subscribers per meeting.
type Collector struct {
	config Config
	store  *store.Store

	// Spool directory watcher, nil when ingestion is disabled
	watcher *fsnotify.Watcher

	// Live fanout
	subscribers sync.Map // map[string][]*wsConnection

	// Spool processing queue
	queue   chan spoolJob
	workers sync.WaitGroup

	// HTTP/Websocket
	server   *http.Server
	upgrader websocket.Upgrader
}

// New creates a new Collector instance
func New(cfg Config) (*Collector, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("collector requires a store")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}

	c := &Collector{
		config: cfg,
		store:  cfg.Store,
		queue:  make(chan spoolJob, 100),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}

	if cfg.SpoolDir != "" {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return nil, fmt.Errorf("failed to create watcher: %w", err)
		}
		c.watcher = watcher
	}

	return c, nil
}

// Start begins the Collector service and blocks until ctx is cancelled.
func (c *Collector) Start(ctx context.Context) error {
	// Start the worker pool
	for i := 0; i < c.config.Workers; i++ {
		c.workers.Add(1)
		go c.worker(ctx)
	}

	// Start the spool watcher when configured
	if c.watcher != nil {
		go c.watchSpool(ctx)
	}

	// Start the HTTP server
	return c.startHTTP(ctx)
}

// Stop gracefully shuts down the Collector service
func (c *Collector) Stop(ctx context.Context) error {
	// Stop accepting new jobs
	close(c.queue)

	// Wait for workers to finish
	done := make(chan struct{})
	go func() {
		c.workers.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("shutdown timed out")
	}

	// Stop the HTTP server
	if c.server != nil {
		if err := c.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to stop HTTP server: %w", err)
		}
	}

	// Close the spool watcher
	if c.watcher != nil {
		if err := c.watcher.Close(); err != nil {
			return fmt.Errorf("failed to close spool watcher: %w", err)
		}
	}

	return nil
}
