package services

import (
	"context"
	"sync"

	"github.com/supportcompanion/companion/internal/runtime/message"
)

// fakeDownloader records calls and lets tests feed events by hand.
type fakeDownloader struct {
	mu        sync.Mutex
	nextID    string
	downloads []DownloadSpec
	removed   []string
	erased    []string
	events    chan DownloadEvent
}

func newFakeDownloader() *fakeDownloader {
	return &fakeDownloader{nextID: "dl-1", events: make(chan DownloadEvent, 8)}
}

func (f *fakeDownloader) Download(_ context.Context, spec DownloadSpec) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.downloads = append(f.downloads, spec)
	return f.nextID, nil
}

func (f *fakeDownloader) RemoveFile(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, id)
	return nil
}

func (f *fakeDownloader) Erase(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.erased = append(f.erased, id)
	return nil
}

func (f *fakeDownloader) Events() <-chan DownloadEvent { return f.events }

func (f *fakeDownloader) removedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.removed...)
}

func (f *fakeDownloader) erasedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.erased...)
}

func (f *fakeDownloader) submitted() []DownloadSpec {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]DownloadSpec(nil), f.downloads...)
}

// fakeRequester answers every request with a canned response or error and
// records what it saw.
type fakeRequester struct {
	mu       sync.Mutex
	requests []*message.Request
	resp     *message.Response
	err      error
}

func (f *fakeRequester) Request(_ context.Context, req *message.Request) (*message.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	return f.resp, f.err
}

func (f *fakeRequester) seen() []*message.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*message.Request(nil), f.requests...)
}
