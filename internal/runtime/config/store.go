package config

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/supportcompanion/companion/internal/runtime/jsoncodec"
	"github.com/supportcompanion/companion/internal/runtime/logging"
)

// Store persists Options as a JSON file and notifies subscribers when the
// file changes on disk. Every notification delivers the full re-read object;
// changes are never diffed.
type Store struct {
	path   string
	logger logging.ServiceLogger

	mu        sync.Mutex
	current   *Options
	listeners []func(*Options)

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewStore opens (or initializes) the option file at path. A missing file is
// created with defaults.
func NewStore(path string, logger logging.ServiceLogger) (*Store, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	s := &Store{path: path, logger: logger}

	opts, err := s.read()
	if os.IsNotExist(err) {
		opts = Default()
		if err := s.write(opts); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}
	s.current = opts
	return s, nil
}

// Load returns a snapshot of the current options.
func (s *Store) Load() *Options {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.Clone()
}

// Save validates, persists, and applies the supplied options wholesale.
func (s *Store) Save(opts *Options) error {
	if err := Validate(opts); err != nil {
		return err
	}
	if err := s.write(opts); err != nil {
		return err
	}
	s.apply(opts.Clone())
	return nil
}

// Subscribe registers a callback invoked with a full snapshot after every
// applied change. The callback also fires once immediately with the current
// options.
func (s *Store) Subscribe(fn func(*Options)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	current := s.current.Clone()
	s.mu.Unlock()
	fn(current)
}

// Watch starts the filesystem watcher so out-of-process edits to the option
// file are picked up. Stop with Close.
func (s *Store) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		watcher.Close()
		return err
	}
	s.watcher = watcher
	s.done = make(chan struct{})
	go s.watchLoop()
	return nil
}

// Close stops the watcher if one is running.
func (s *Store) Close() error {
	if s.watcher == nil {
		return nil
	}
	close(s.done)
	return s.watcher.Close()
}

func (s *Store) watchLoop() {
	for {
		select {
		case <-s.done:
			return
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(s.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			opts, err := s.read()
			if err != nil {
				s.logger.Error("failed to reload options", err, logging.LogFields{"path": s.path})
				continue
			}
			s.logger.Debug("options changed on disk", logging.LogFields{"path": s.path})
			s.apply(opts)
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Error("option watcher error", err, nil)
		}
	}
}

func (s *Store) apply(opts *Options) {
	s.mu.Lock()
	s.current = opts
	listeners := make([]func(*Options), len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()
	for _, fn := range listeners {
		fn(opts.Clone())
	}
}

func (s *Store) read() (*Options, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}
	opts := Default()
	if err := jsoncodec.Unmarshal(data, opts); err != nil {
		return nil, err
	}
	return opts, nil
}

func (s *Store) write(opts *Options) error {
	data, err := jsoncodec.MarshalIndent(opts, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o600)
}
