package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/supportcompanion/companion/internal/runtime/ids"
	"github.com/supportcompanion/companion/internal/runtime/logging"
)

// HTTPDownloader is a Downloader that streams HTTP responses to files under a
// root directory. It stands in for the host browser's download machinery:
// jobs are identified by a generated id, progress is reported through the
// Events channel, and an in-memory history maps ids to file paths.
type HTTPDownloader struct {
	root   string
	client *http.Client
	logger logging.ServiceLogger
	events chan DownloadEvent

	mu      sync.Mutex
	history map[string]string // id -> absolute file path
}

// NewHTTPDownloader writes downloads under root using the supplied client.
// A nil client falls back to http.DefaultClient.
func NewHTTPDownloader(root string, client *http.Client, logger logging.ServiceLogger) *HTTPDownloader {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &HTTPDownloader{
		root:    root,
		client:  client,
		logger:  logger,
		events:  make(chan DownloadEvent, 16),
		history: make(map[string]string),
	}
}

// Events returns the progress stream consumed by the DownloadManager.
func (d *HTTPDownloader) Events() <-chan DownloadEvent { return d.events }

// Download assigns an id, records the history entry, and fetches the URL in
// the background. The created event fires before any changed event.
func (d *HTTPDownloader) Download(ctx context.Context, spec DownloadSpec) (string, error) {
	if spec.URL == "" {
		return "", fmt.Errorf("download url is required")
	}
	name := spec.Filename
	if name == "" {
		name = filepath.Base(spec.URL)
	}
	target := filepath.Join(d.root, filepath.FromSlash(name))
	if spec.ConflictAction != "overwrite" {
		target = uniquify(target)
	}

	id := ids.CreateULID()
	d.mu.Lock()
	d.history[id] = target
	d.mu.Unlock()

	d.events <- DownloadEvent{ID: id, State: DownloadStateInProgress, Filename: target}
	go d.fetch(ctx, id, spec.URL, target)
	return id, nil
}

// RemoveFile deletes the downloaded (or partial) file. The history entry is
// left in place for Erase.
func (d *HTTPDownloader) RemoveFile(id string) error {
	d.mu.Lock()
	target, ok := d.history[id]
	d.mu.Unlock()
	if !ok {
		return nil
	}
	err := os.Remove(target)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Erase drops the history entry for the id.
func (d *HTTPDownloader) Erase(id string) error {
	d.mu.Lock()
	delete(d.history, id)
	d.mu.Unlock()
	return nil
}

// Path returns the file path recorded for an id, if still in history.
func (d *HTTPDownloader) Path(id string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	target, ok := d.history[id]
	return target, ok
}

func (d *HTTPDownloader) fetch(ctx context.Context, id, url, target string) {
	size, err := d.fetchToFile(ctx, url, target)
	if err != nil {
		d.logger.Error("download failed", err, logging.LogFields{"id": id, "url": url})
		d.events <- DownloadEvent{ID: id, State: DownloadStateInterrupted, Error: err.Error(), Filename: target}
		return
	}
	d.events <- DownloadEvent{ID: id, State: DownloadStateComplete, FileSize: size, Filename: target}
}

func (d *HTTPDownloader) fetchToFile(ctx context.Context, url, target string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("unexpected status %s", resp.Status)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return 0, err
	}
	f, err := os.Create(target)
	if err != nil {
		return 0, err
	}
	size, err := io.Copy(f, resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return size, err
}

// uniquify appends " (n)" before the extension until the name is free, the
// way browsers resolve filename conflicts.
func uniquify(target string) string {
	if _, err := os.Stat(target); os.IsNotExist(err) {
		return target
	}
	ext := filepath.Ext(target)
	stem := target[:len(target)-len(ext)]
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s (%d)%s", stem, i, ext)
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}
