package catalog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// DefaultCacheDir holds downloaded remote catalogs.
const DefaultCacheDir = "~/.cache/cutouts/catalogs"

// DownloadConfig configures remote catalog downloading
type DownloadConfig struct {
	CacheDir      string
	ForceDownload bool
	HTTPClient    *http.Client
}

// Downloader fetches remote catalogs once and serves them from a local cache.
type Downloader struct {
	config DownloadConfig
}

// NewDownloader creates a new catalog downloader
func NewDownloader(config DownloadConfig) *Downloader {
	if config.CacheDir == "" {
		config.CacheDir = DefaultCacheDir
	}

	// Expand ~ to home directory
	if strings.HasPrefix(config.CacheDir, "~") {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			config.CacheDir = filepath.Join(homeDir, config.CacheDir[1:])
		}
	}

	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{Timeout: 5 * time.Minute}
	}

	return &Downloader{config: config}
}

// IsRemote reports whether location is an http(s) URL.
func IsRemote(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}

// CachePath returns where the catalog at rawURL is cached.
func (d *Downloader) CachePath(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid catalog URL %q: %w", rawURL, err)
	}
	name := path.Base(u.Path)
	if name == "" || name == "/" || name == "." {
		return "", fmt.Errorf("catalog URL %q has no file name", rawURL)
	}
	return filepath.Join(d.config.CacheDir, u.Host, name), nil
}

// Resolve returns a local path for location, downloading remote catalogs
// into the cache when they are not there yet.
func (d *Downloader) Resolve(ctx context.Context, location string) (string, error) {
	if !IsRemote(location) {
		return location, nil
	}

	cachedPath, err := d.CachePath(location)
	if err != nil {
		return "", err
	}

	if !d.config.ForceDownload {
		if _, err := os.Stat(cachedPath); err == nil {
			slog.Info("Using cached catalog", "path", cachedPath)
			return cachedPath, nil
		}
	}

	if err := os.MkdirAll(filepath.Dir(cachedPath), 0o755); err != nil {
		return "", fmt.Errorf("failed to create cache directory: %w", err)
	}

	slog.Info("Downloading catalog", "url", location, "path", cachedPath)
	if err := d.downloadFile(ctx, location, cachedPath); err != nil {
		return "", fmt.Errorf("failed to download catalog: %w", err)
	}

	return cachedPath, nil
}

// downloadFile streams url into destPath through a temp file
func (d *Downloader) downloadFile(ctx context.Context, rawURL, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := d.config.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed with status: %d", resp.StatusCode)
	}

	out, err := os.CreateTemp(filepath.Dir(destPath), ".catalog-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	tempPath := out.Name()

	written, err := io.Copy(out, resp.Body)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("download failed: %w", err)
	}

	if err := os.Rename(tempPath, destPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to move file: %w", err)
	}

	slog.Debug("Catalog downloaded", "bytes", written, "path", destPath)
	return nil
}

// CacheDir returns the expanded cache directory.
func (d *Downloader) CacheDir() string {
	return d.config.CacheDir
}

// ClearCache removes all cached catalogs
func (d *Downloader) ClearCache() error {
	slog.Info("Clearing cache", "path", d.config.CacheDir)
	return os.RemoveAll(d.config.CacheDir)
}

// Open resolves location (local path or URL) and loads it with columns.
func Open(ctx context.Context, location string, columns Columns, limit int, config DownloadConfig) (*Catalog, error) {
	localPath, err := NewDownloader(config).Resolve(ctx, location)
	if err != nil {
		return nil, err
	}
	return NewLoader(localPath, columns).LoadSample(limit)
}
