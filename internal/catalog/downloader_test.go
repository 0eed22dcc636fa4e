package catalog

import (
	"context"
	"net/http"
	"os"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
)

func TestIsRemote(t *testing.T) {
	tests := map[string]bool{
		"https://example.org/a100.csv": true,
		"http://example.org/a100.csv":  true,
		"data/a100.csv":                false,
		"/abs/a100.csv":                false,
	}
	for in, want := range tests {
		if got := IsRemote(in); got != want {
			t.Errorf("IsRemote(%q): expected %v, got %v", in, want, got)
		}
	}
}

func TestResolveCachesRemoteCatalog(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte("AGCNr,RAdeg_OC,DECdeg_OC\n1,10,20\n"))
	}))
	defer srv.Close()

	cacheDir := t.TempDir()
	config := DownloadConfig{CacheDir: cacheDir}
	location := srv.URL + "/data/a100.csv"

	cat, err := Open(context.Background(), location, alfalfaColumns, 0, config)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if cat.Len() != 1 {
		t.Errorf("Expected 1 row, got %d", cat.Len())
	}
	if !strings.HasPrefix(cat.Path, cacheDir) || filepath.Base(cat.Path) != "a100.csv" {
		t.Errorf("Expected cached path under %s, got %s", cacheDir, cat.Path)
	}

	if _, err := Open(context.Background(), location, alfalfaColumns, 0, config); err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	if hits.Load() != 1 {
		t.Errorf("Expected one download, got %d", hits.Load())
	}

	config.ForceDownload = true
	if _, err := NewDownloader(config).Resolve(context.Background(), location); err != nil {
		t.Fatalf("forced Resolve failed: %v", err)
	}
	if hits.Load() != 2 {
		t.Errorf("Expected forced re-download, got %d hits", hits.Load())
	}
}

func TestResolveRemoteFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	d := NewDownloader(DownloadConfig{CacheDir: t.TempDir()})
	location := srv.URL + "/missing.csv"
	if _, err := d.Resolve(context.Background(), location); err == nil {
		t.Fatal("Expected error for missing remote catalog, got nil")
	}

	cached, err := d.CachePath(location)
	if err != nil {
		t.Fatal(err)
	}
	if ok, _ := filepath.Glob(cached); len(ok) != 0 {
		t.Errorf("Expected no cached file after failed download, found %v", ok)
	}
}

func TestResolveLocalPathUnchanged(t *testing.T) {
	d := NewDownloader(DownloadConfig{CacheDir: t.TempDir()})
	got, err := d.Resolve(context.Background(), "data/a100.csv")
	if err != nil {
		t.Fatal(err)
	}
	if got != "data/a100.csv" {
		t.Errorf("Expected local path to pass through, got %s", got)
	}
}

func TestClearCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("nibles_id,ra,dec\n101,10,1\n"))
	}))
	defer srv.Close()

	cacheDir := filepath.Join(t.TempDir(), "catalogs")
	d := NewDownloader(DownloadConfig{CacheDir: cacheDir})
	local, err := d.Resolve(context.Background(), srv.URL+"/NIBLES_data.csv")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if _, err := os.Stat(local); err != nil {
		t.Fatalf("Expected cached catalog at %s: %v", local, err)
	}

	if err := d.ClearCache(); err != nil {
		t.Fatalf("ClearCache failed: %v", err)
	}
	if _, err := os.Stat(cacheDir); !os.IsNotExist(err) {
		t.Errorf("Expected cache directory to be removed, got %v", err)
	}
	if d.CacheDir() != cacheDir {
		t.Errorf("Expected cache dir %s, got %s", cacheDir, d.CacheDir())
	}
}
