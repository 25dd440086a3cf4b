package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/pollscribe/pollscribe/transcript"
)

// spoolJob points at one spooled batch file awaiting ingestion.
type spoolJob struct {
	FilePath string
	Enqueued time.Time
}

// watchSpool ingests transcript batches dropped into the spool
// directory as JSON files. Capture clients with no network path to the
// collector write batches there; a shared mount makes this the offline
// delivery channel.
func (c *Collector) watchSpool(ctx context.Context) {
	defer c.watcher.Close()

	if err := os.MkdirAll(c.config.SpoolDir, 0755); err != nil {
		slog.Error("Failed to create spool directory",
			"error", err,
			"path", c.config.SpoolDir)
		return
	}

	if err := c.watcher.Add(c.config.SpoolDir); err != nil {
		slog.Error("Failed to start watching spool directory",
			"error", err,
			"path", c.config.SpoolDir)
		return
	}

	slog.Info("Started watching spool directory", "path", c.config.SpoolDir)

	// Pick up batches that were spooled before we started watching.
	if err := c.sweepSpool(); err != nil {
		slog.Error("Failed to sweep spool directory", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-c.watcher.Events:
			if !ok {
				return
			}

			if err := c.handleSpoolEvent(event); err != nil {
				slog.Error("Failed to handle spool event",
					"error", err,
					"event", event)
			}

		case err, ok := <-c.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("Spool watcher error", "error", err)
		}
	}
}

func (c *Collector) sweepSpool() error {
	entries, err := os.ReadDir(c.config.SpoolDir)
	if err != nil {
		return fmt.Errorf("failed to read spool directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		if err := c.enqueueSpoolFile(filepath.Join(c.config.SpoolDir, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

func (c *Collector) handleSpoolEvent(event fsnotify.Event) error {
	// Skip temporary files and non-create events. Writers are expected
	// to write to a .tmp name and rename into place.
	if strings.HasSuffix(event.Name, ".tmp") || event.Op != fsnotify.Create {
		return nil
	}
	if !strings.HasSuffix(event.Name, ".json") {
		return nil
	}

	return c.enqueueSpoolFile(event.Name)
}

func (c *Collector) enqueueSpoolFile(path string) error {
	job := spoolJob{
		FilePath: path,
		Enqueued: time.Now(),
	}

	select {
	case c.queue <- job:
		slog.Info("Queued spooled batch for ingestion",
			"file", filepath.Base(path))
	default:
		return fmt.Errorf("job queue is full")
	}

	return nil
}

func (c *Collector) worker(ctx context.Context) {
	slog.Debug("Worker starting")
	defer func() {
		slog.Debug("Worker shutting down")
		c.workers.Done()
	}()

	for {
		select {
		case <-ctx.Done():
			slog.Debug("Worker context cancelled")
			return

		case job, ok := <-c.queue:
			if !ok {
				slog.Debug("Worker queue closed")
				return
			}

			if err := c.processSpoolJob(job); err != nil {
				slog.Error("Failed to ingest spooled batch",
					"error", err,
					"file", job.FilePath)
			}
		}
	}
}

// processSpoolJob reads one spooled batch file, persists its fragments,
// and removes the file. The file stays in place on failure so a later
// sweep can retry it.
func (c *Collector) processSpoolJob(job spoolJob) error {
	data, err := os.ReadFile(job.FilePath)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Info("Spool file already gone (likely claimed by another worker)",
				"file", job.FilePath)
			return nil
		}
		return fmt.Errorf("failed to read spool file: %w", err)
	}

	var batch ingestRequest
	if err := json.Unmarshal(data, &batch); err != nil {
		return fmt.Errorf("failed to decode spool file: %w", err)
	}
	if batch.MeetingID == "" {
		return fmt.Errorf("spool file has no meeting id")
	}

	saved := 0
	for _, f := range batch.Transcripts {
		if f.MeetingID == "" {
			f.MeetingID = batch.MeetingID
		}
		if f.ParticipantID == "" {
			f.ParticipantID = batch.ParticipantID
		}
		if f.Speaker == "" {
			f.Speaker = transcript.SpeakerFromRole(batch.Role)
		}

		stored, storeErr := c.store.Append(f)
		if storeErr != nil {
			return fmt.Errorf("failed to store spooled fragment: %w", storeErr)
		}
		saved++
		c.broadcast(stored)
	}

	if err := os.Remove(job.FilePath); err != nil {
		slog.Warn("Failed to remove ingested spool file",
			"error", err,
			"file", job.FilePath)
	}

	slog.Info("Ingested spooled batch",
		"meetingID", batch.MeetingID,
		"count", saved,
		"file", filepath.Base(job.FilePath))

	return nil
}
