package compiler

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/pendergraft/contraship/internal/validation"
)

// DefaultBinariesURL is the official static solc build mirror
const DefaultBinariesURL = "https://binaries.soliditylang.org"

// ErrChecksumMismatch is returned when a downloaded binary does not match the published sha256
var ErrChecksumMismatch = errors.New("checksum mismatch")

// Installer downloads static solc builds
type Installer struct {
	dir        string
	baseURL    string
	platform   string
	httpClient *http.Client
	logger     *slog.Logger
}

// InstallerOption configures an Installer
type InstallerOption func(*Installer)

// WithBaseURL overrides the binaries mirror
func WithBaseURL(url string) InstallerOption {
	return func(i *Installer) {
		i.baseURL = strings.TrimSuffix(url, "/")
	}
}

// WithPlatform overrides the detected platform directory (e.g. "linux-amd64")
func WithPlatform(platform string) InstallerOption {
	return func(i *Installer) {
		i.platform = platform
	}
}

// WithHTTPClient sets the HTTP client
func WithHTTPClient(c *http.Client) InstallerOption {
	return func(i *Installer) {
		i.httpClient = c
	}
}

// NewInstaller creates an installer placing binaries in dir
func NewInstaller(dir string, logger *slog.Logger, opts ...InstallerOption) *Installer {
	i := &Installer{
		dir:      dir,
		baseURL:  DefaultBinariesURL,
		platform: hostPlatform(),
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
		logger: logger,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

type buildList struct {
	Builds []buildEntry `json:"builds"`
}

type buildEntry struct {
	Path        string `json:"path"`
	Version     string `json:"version"`
	LongVersion string `json:"longVersion"`
	SHA256      string `json:"sha256"`
}

// Install downloads the release build for version and returns its path.
// An existing installation is reused.
func (i *Installer) Install(ctx context.Context, version string) (string, error) {
	if err := validation.ValidateCompilerVersion(version); err != nil {
		return "", err
	}
	version = validation.NormalizeVersion(version)

	dest := InstalledPath(i.dir, version)
	if _, err := os.Stat(dest); err == nil {
		i.logger.Debug("compiler already installed", "version", version, "path", dest)
		return dest, nil
	}

	if i.platform == "" {
		return "", fmt.Errorf("no static solc builds for %s/%s", runtime.GOOS, runtime.GOARCH)
	}

	entry, err := i.lookup(ctx, version)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(i.dir, 0755); err != nil {
		return "", fmt.Errorf("creating compiler directory: %w", err)
	}

	tmp, err := os.CreateTemp(i.dir, ".solc-download-*")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	url := fmt.Sprintf("%s/%s/%s", i.baseURL, i.platform, entry.Path)
	sum, err := i.download(ctx, url, tmp)
	closeErr := tmp.Close()
	if err != nil {
		return "", err
	}
	if closeErr != nil {
		return "", fmt.Errorf("writing compiler: %w", closeErr)
	}

	want := strings.TrimPrefix(strings.ToLower(entry.SHA256), "0x")
	if sum != want {
		return "", fmt.Errorf("%w: %s: got %s, want %s", ErrChecksumMismatch, entry.Path, sum, want)
	}

	if err := os.Chmod(tmp.Name(), 0755); err != nil {
		return "", fmt.Errorf("setting permissions: %w", err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return "", fmt.Errorf("installing compiler: %w", err)
	}

	i.logger.Info("installed compiler", "version", entry.LongVersion, "path", dest)
	return dest, nil
}

func (i *Installer) lookup(ctx context.Context, version string) (*buildEntry, error) {
	url := fmt.Sprintf("%s/%s/list.json", i.baseURL, i.platform)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := i.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching build list: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching build list: unexpected status %d", resp.StatusCode)
	}

	var list buildList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("decoding build list: %w", err)
	}

	// Releases only; nightlies share the version field but carry a prerelease
	for _, b := range list.Builds {
		if b.Version == version && !strings.Contains(b.LongVersion, "nightly") {
			entry := b
			return &entry, nil
		}
	}
	return nil, fmt.Errorf("%w: version %s is not published for %s", ErrCompilerNotFound, version, i.platform)
}

func (i *Installer) download(ctx context.Context, url string, w io.Writer) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	resp, err := i.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("downloading compiler: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("downloading compiler: unexpected status %d", resp.StatusCode)
	}

	h := sha256.New()
	if _, err := io.Copy(io.MultiWriter(w, h), resp.Body); err != nil {
		return "", fmt.Errorf("downloading compiler: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func hostPlatform() string {
	switch runtime.GOOS {
	case "linux":
		if runtime.GOARCH == "amd64" {
			return "linux-amd64"
		}
	case "darwin":
		// universal binaries are published under macosx-amd64
		return "macosx-amd64"
	case "windows":
		if runtime.GOARCH == "amd64" {
			return "windows-amd64"
		}
	}
	return ""
}
