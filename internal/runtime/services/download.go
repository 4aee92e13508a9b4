// Package services contains the job orchestrators sitting behind the bridge
// routes: file downloads, printing, and POS terminal calls. Each is a thin
// state-tracking wrapper around one capability, with in-memory bookkeeping
// only; a restart loses all in-flight job state by design.
package services

import (
	"context"
	"path"
	"sync"

	"github.com/supportcompanion/companion/internal/runtime/config"
	"github.com/supportcompanion/companion/internal/runtime/errors"
	"github.com/supportcompanion/companion/internal/runtime/events"
	"github.com/supportcompanion/companion/internal/runtime/jsoncodec"
	"github.com/supportcompanion/companion/internal/runtime/logging"
)

// TopicDownloadResponse is the push route announcing terminal download states.
const TopicDownloadResponse = "companion.document.download.response"

// Download states reported by a Downloader through change events.
const (
	DownloadStateInProgress  = "in_progress"
	DownloadStateComplete    = "complete"
	DownloadStateInterrupted = "interrupted"
)

// ReasonEmptyContent marks a download that completed with zero reported
// bytes. The transport considers such a download successful; the manager does
// not.
const ReasonEmptyContent = "Empty content"

// DownloadSpec is the narrowed job description handed to the Downloader.
// Only these fields survive submission; everything else a caller attaches is
// dropped before hand-off.
type DownloadSpec struct {
	URL            string `json:"url"`
	Filename       string `json:"filename"`
	ConflictAction string `json:"conflictAction,omitempty"`
}

// DownloadEvent is emitted by a Downloader as a job progresses.
type DownloadEvent struct {
	ID       string `json:"id"`
	State    string `json:"state,omitempty"`
	FileSize int64  `json:"fileSize"`
	Error    string `json:"error,omitempty"`
	Filename string `json:"filename,omitempty"`
}

// DownloadResult is delivered to the submitter's callback and pushed on the
// download response topic when a job reaches a terminal state.
type DownloadResult struct {
	ID       string `json:"id"`
	Success  bool   `json:"success"`
	Reason   string `json:"reason,omitempty"`
	Filename string `json:"filename,omitempty"`
}

// Downloader is the capability the manager orchestrates. Download returns
// the identifier subsequent events will carry. RemoveFile deletes the
// (partially) downloaded file; Erase deletes the history entry.
type Downloader interface {
	Download(ctx context.Context, spec DownloadSpec) (string, error)
	RemoveFile(id string) error
	Erase(id string) error
	Events() <-chan DownloadEvent
}

type downloadJob struct {
	spec        DownloadSpec
	done        func(DownloadResult)
	downloading bool
}

// DownloadManager tracks in-flight download jobs keyed by the id the
// downloader assigns. Entries are deleted the instant a terminal state is
// reached.
type DownloadManager struct {
	dl     Downloader
	logger logging.ServiceLogger
	bus    *events.Bus

	mu      sync.Mutex
	jobs    map[string]*downloadJob
	baseDir string
}

// NewDownloadManager wires a manager over the given downloader. The bus is
// optional; when present, terminal results are also published as push events.
func NewDownloadManager(dl Downloader, opts *config.Options, bus *events.Bus, logger logging.ServiceLogger) (*DownloadManager, error) {
	if dl == nil {
		return nil, errors.ErrDownloaderRequired
	}
	if logger == nil {
		logger = logging.Nop()
	}
	m := &DownloadManager{
		dl:     dl,
		logger: logger,
		bus:    bus,
		jobs:   make(map[string]*downloadJob),
	}
	if opts != nil {
		m.baseDir = opts.DownloadDir
	}
	return m, nil
}

// ApplyOptions re-applies the option snapshot wholesale.
func (m *DownloadManager) ApplyOptions(opts *config.Options) {
	if opts == nil {
		return
	}
	m.mu.Lock()
	m.baseDir = opts.DownloadDir
	m.mu.Unlock()
}

// Run consumes downloader events until the context is cancelled. Call it
// from a dedicated goroutine.
func (m *DownloadManager) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-m.dl.Events():
			if !ok {
				return
			}
			m.handleEvent(ev)
		}
	}
}

// Submit narrows the raw job params to the allow-listed spec, prefixes the
// filename with the configured base directory, and hands the job off. The
// done callback fires exactly once when the job reaches a terminal state.
func (m *DownloadManager) Submit(ctx context.Context, params any, done func(DownloadResult)) (string, error) {
	var spec DownloadSpec
	if err := jsoncodec.Remarshal(&spec, params); err != nil {
		return "", err
	}

	m.mu.Lock()
	base := m.baseDir
	m.mu.Unlock()
	if base != "" {
		spec.Filename = path.Join(base, spec.Filename)
	}

	id, err := m.dl.Download(ctx, spec)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	m.jobs[id] = &downloadJob{spec: spec, done: done}
	m.mu.Unlock()

	m.logger.Debug("download submitted", logging.LogFields{
		"id":       id,
		"filename": spec.Filename,
	})
	return id, nil
}

// Pending reports the number of jobs still tracked.
func (m *DownloadManager) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.jobs)
}

func (m *DownloadManager) handleEvent(ev DownloadEvent) {
	m.mu.Lock()
	job, ok := m.jobs[ev.ID]
	m.mu.Unlock()
	if !ok {
		return
	}

	switch ev.State {
	case DownloadStateInProgress:
		m.mu.Lock()
		job.downloading = true
		m.mu.Unlock()
	case DownloadStateComplete:
		// A completed download that reported zero bytes is an upstream
		// failure the transport did not surface.
		if ev.FileSize == 0 {
			m.fail(ev.ID, job, ReasonEmptyContent)
			return
		}
		m.succeed(ev.ID, job)
	case DownloadStateInterrupted:
		reason := ev.Error
		if reason == "" {
			reason = "Download interrupted"
		}
		m.fail(ev.ID, job, reason)
	}
}

// succeed drops the registry entry only: the file and its history entry are
// kept.
func (m *DownloadManager) succeed(id string, job *downloadJob) {
	m.mu.Lock()
	delete(m.jobs, id)
	m.mu.Unlock()

	result := DownloadResult{ID: id, Success: true, Filename: job.spec.Filename}
	m.finish(job, result)
}

// fail removes both the partially-downloaded file and the history entry
// before reporting.
func (m *DownloadManager) fail(id string, job *downloadJob, reason string) {
	m.mu.Lock()
	delete(m.jobs, id)
	m.mu.Unlock()

	if err := m.dl.RemoveFile(id); err != nil {
		m.logger.Error("failed to remove download file", err, logging.LogFields{"id": id})
	}
	if err := m.dl.Erase(id); err != nil {
		m.logger.Error("failed to erase download history entry", err, logging.LogFields{"id": id})
	}

	result := DownloadResult{ID: id, Success: false, Reason: reason, Filename: job.spec.Filename}
	m.finish(job, result)
}

func (m *DownloadManager) finish(job *downloadJob, result DownloadResult) {
	if job.done != nil {
		job.done(result)
	}
	if m.bus != nil {
		if err := m.bus.Publish(TopicDownloadResponse, result); err != nil {
			m.logger.Error("failed to publish download response", err, logging.LogFields{"id": result.ID})
		}
	}
	m.logger.Info("download finished", logging.LogFields{
		"id":      result.ID,
		"success": result.Success,
		"reason":  result.Reason,
	})
}
