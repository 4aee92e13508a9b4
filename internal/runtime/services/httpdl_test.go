package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func awaitEvent(t *testing.T, d *HTTPDownloader, state string) DownloadEvent {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case ev := <-d.events:
			if ev.State == state {
				return ev
			}
		case <-deadline:
			t.Fatalf("never observed state %q", state)
		}
	}
}

func TestHTTPDownloader_DownloadsToRoot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("%PDF-1.4 fake"))
	}))
	defer srv.Close()

	root := t.TempDir()
	d := NewHTTPDownloader(root, srv.Client(), nil)

	id, err := d.Download(context.Background(), DownloadSpec{URL: srv.URL, Filename: "report.pdf"})
	require.NoError(t, err)

	ev := awaitEvent(t, d, DownloadStateComplete)
	assert.Equal(t, id, ev.ID)
	assert.EqualValues(t, len("%PDF-1.4 fake"), ev.FileSize)

	path, ok := d.Path(id)
	require.True(t, ok)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 fake", string(data))
}

func TestHTTPDownloader_RequiresURL(t *testing.T) {
	d := NewHTTPDownloader(t.TempDir(), nil, nil)
	_, err := d.Download(context.Background(), DownloadSpec{Filename: "a.pdf"})
	assert.Error(t, err)
}

func TestHTTPDownloader_BadStatusInterrupts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	d := NewHTTPDownloader(t.TempDir(), srv.Client(), nil)
	_, err := d.Download(context.Background(), DownloadSpec{URL: srv.URL, Filename: "a.pdf"})
	require.NoError(t, err)

	ev := awaitEvent(t, d, DownloadStateInterrupted)
	assert.Contains(t, ev.Error, "404")
}

func TestHTTPDownloader_ConflictNaming(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.pdf"), []byte("old"), 0o600))

	got := uniquify(filepath.Join(root, "a.pdf"))
	assert.Equal(t, filepath.Join(root, "a (1).pdf"), got)

	require.NoError(t, os.WriteFile(got, []byte("old"), 0o600))
	assert.Equal(t, filepath.Join(root, "a (2).pdf"), uniquify(filepath.Join(root, "a.pdf")))
}

func TestHTTPDownloader_OverwriteSkipsUniquify(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("new"))
	}))
	defer srv.Close()

	root := t.TempDir()
	target := filepath.Join(root, "a.pdf")
	require.NoError(t, os.WriteFile(target, []byte("old"), 0o600))

	d := NewHTTPDownloader(root, srv.Client(), nil)
	id, err := d.Download(context.Background(), DownloadSpec{URL: srv.URL, Filename: "a.pdf", ConflictAction: "overwrite"})
	require.NoError(t, err)
	awaitEvent(t, d, DownloadStateComplete)

	path, _ := d.Path(id)
	assert.Equal(t, target, path)
	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}

func TestHTTPDownloader_RemoveFileAndErase(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("data"))
	}))
	defer srv.Close()

	d := NewHTTPDownloader(t.TempDir(), srv.Client(), nil)
	id, err := d.Download(context.Background(), DownloadSpec{URL: srv.URL, Filename: "a.pdf"})
	require.NoError(t, err)
	awaitEvent(t, d, DownloadStateComplete)

	path, _ := d.Path(id)
	require.NoError(t, d.RemoveFile(id))
	assert.NoFileExists(t, path)
	// Removing an already-removed file stays quiet.
	assert.NoError(t, d.RemoveFile(id))

	require.NoError(t, d.Erase(id))
	_, ok := d.Path(id)
	assert.False(t, ok)
}
