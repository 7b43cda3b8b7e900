package api

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/richinsley/goshadermate/shader"
)

// Global client with a custom User-Agent header.
var httpClient = &http.Client{
	Transport: &http.Transport{
		Proxy: http.ProxyFromEnvironment,
	},
}

type headerTransport struct {
	Transport http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", "https://github.com/richinsley/goshadermate")
	return t.Transport.RoundTrip(req)
}

func init() {
	httpClient.Transport = &headerTransport{Transport: http.DefaultTransport}
}

// Fetcher resolves shader, include and media locations. Preloaded paths are
// served without touching the network or disk.
type Fetcher struct {
	Preload map[string]string
	// BaseDir resolves relative file paths.
	BaseDir string
	// Client overrides the shared HTTP client.
	Client *http.Client
	// UseCache stores downloaded http(s) resources in the user cache directory.
	UseCache bool
	// CacheDir replaces the user cache directory when set.
	CacheDir string
}

// Fetch returns the bytes behind loc.
func (f *Fetcher) Fetch(ctx context.Context, loc string) ([]byte, error) {
	if f != nil {
		if s, ok := f.Preload[loc]; ok {
			return []byte(s), nil
		}
	}
	if strings.HasPrefix(loc, "http://") || strings.HasPrefix(loc, "https://") {
		return f.download(ctx, loc)
	}
	file := loc
	if f != nil && f.BaseDir != "" && !filepath.IsAbs(file) {
		file = filepath.Join(f.BaseDir, file)
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", loc, err)
	}
	return data, nil
}

// Path returns a local file path for loc when it names one, for decoders that
// need to open the file themselves.
func (f *Fetcher) Path(loc string) (string, bool) {
	if f != nil {
		if _, ok := f.Preload[loc]; ok {
			return "", false
		}
	}
	if strings.Contains(loc, "://") {
		return "", false
	}
	if f != nil && f.BaseDir != "" && !filepath.IsAbs(loc) {
		return filepath.Join(f.BaseDir, loc), true
	}
	return loc, true
}

func (f *Fetcher) Text(ctx context.Context, loc string) (string, error) {
	data, err := f.Fetch(ctx, loc)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Source returns src itself when it is inline shader text, else the fetched text.
func (f *Fetcher) Source(ctx context.Context, src string) (string, error) {
	if IsInline(src) {
		return src, nil
	}
	return f.Text(ctx, src)
}

// IncludeLoader adapts the fetcher to the preprocessor.
func (f *Fetcher) IncludeLoader() shader.Loader {
	return f.Text
}

func (f *Fetcher) download(ctx context.Context, loc string) ([]byte, error) {
	var cachePath string
	if f != nil && f.UseCache {
		if dir, err := f.cacheDir(); err == nil {
			cachePath = filepath.Join(dir, cacheName(loc))
			if data, err := os.ReadFile(cachePath); err == nil {
				slog.Debug("served from cache", "url", loc, "path", cachePath)
				return data, nil
			}
		} else {
			slog.Warn("could not get cache directory", "error", err)
		}
	}

	client := httpClient
	if f != nil && f.Client != nil {
		client = f.Client
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, loc, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s: %w", loc, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", loc, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch %s: %d %s", loc, resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read data from %s: %w", loc, err)
	}
	if cachePath != "" {
		if err := os.WriteFile(cachePath, data, 0644); err != nil {
			slog.Warn("failed to save media to cache", "path", cachePath, "error", err)
		}
	}
	return data, nil
}

func (f *Fetcher) cacheDir() (string, error) {
	if f.CacheDir == "" {
		return getCacheDir("media")
	}
	if err := os.MkdirAll(f.CacheDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create cache directory at %s: %w", f.CacheDir, err)
	}
	return f.CacheDir, nil
}

// cacheName is the hex SHA-256 of the full URL followed by the extension of
// its path.
func cacheName(loc string) string {
	sum := sha256.Sum256([]byte(loc))
	name := hex.EncodeToString(sum[:])
	if u, err := url.Parse(loc); err == nil {
		name += path.Ext(u.Path)
	}
	return name
}

// getCacheDir determines the appropriate OS-specific cache directory.
func getCacheDir(subdir string) (string, error) {
	var baseCacheDir string
	var err error

	switch runtime.GOOS {
	case "windows":
		baseCacheDir = os.Getenv("LOCALAPPDATA")
		if baseCacheDir == "" {
			err = fmt.Errorf("LOCALAPPDATA environment variable not set")
		}
	case "darwin":
		homeDir := os.Getenv("HOME")
		if homeDir == "" {
			err = fmt.Errorf("HOME environment variable not set")
		} else {
			baseCacheDir = filepath.Join(homeDir, "Library", "Caches")
		}
	default:
		baseCacheDir = os.Getenv("XDG_CACHE_HOME")
		if baseCacheDir == "" {
			homeDir := os.Getenv("HOME")
			if homeDir == "" {
				err = fmt.Errorf("HOME environment variable not set")
			} else {
				baseCacheDir = filepath.Join(homeDir, ".cache")
			}
		}
	}
	if err != nil {
		return "", err
	}

	cacheDir := filepath.Join(baseCacheDir, "goshadermate", subdir)
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create cache directory at %s: %w", cacheDir, err)
	}
	return cacheDir, nil
}
