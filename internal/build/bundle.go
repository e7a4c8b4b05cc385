package build

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pendergraft/contraship/internal/config"
)

// ErrSourceNotFound is returned when a declared source path does not exist
var ErrSourceNotFound = errors.New("source not found")

// Bundle maps logical file name to rewritten source content
type Bundle map[string]string

// Names returns the logical file names in sorted order
func (b Bundle) Names() []string {
	names := make([]string, 0, len(b))
	for name := range b {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Hash returns a stable sha256 over the bundle's names and contents
func (b Bundle) Hash() string {
	h := sha256.New()
	for _, name := range b.Names() {
		fmt.Fprintf(h, "%s\x00%d\x00", name, len(b[name]))
		io.WriteString(h, b[name])
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Bundler rewrites a target's sources into a flat directory
type Bundler struct {
	logger *slog.Logger
}

// NewBundler creates a new bundler
func NewBundler(logger *slog.Logger) *Bundler {
	return &Bundler{logger: logger}
}

// Bundle reads every source of the target, rewrites local imports, writes the
// result to <dir>/<logicalName> and returns the same content in memory.
func (b *Bundler) Bundle(target config.Target, dir string) (Bundle, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating bundle directory: %w", err)
	}

	bundle := make(Bundle, len(target.Sources))
	for _, name := range target.SourceNames() {
		src := target.Sources[name]

		content, rewrites, err := rewriteFile(src)
		if err != nil {
			return nil, err
		}

		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			return nil, fmt.Errorf("writing %s: %w", name, err)
		}
		bundle[name] = content

		b.logger.Debug("bundled source", "target", target.Name, "file", name, "path", src, "rewritten_imports", rewrites)
	}

	b.logger.Info("bundled target", "target", target.Name, "files", len(bundle), "dir", dir)
	return bundle, nil
}

func rewriteFile(path string) (string, int, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", 0, fmt.Errorf("%w: %s", ErrSourceNotFound, path)
		}
		return "", 0, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var sb strings.Builder
	rewrites := 0
	r := bufio.NewReader(f)
	for {
		line, err := r.ReadString('\n')
		if line != "" {
			out := RewriteImportLine(line)
			if out != line {
				rewrites++
			}
			sb.WriteString(out)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", 0, fmt.Errorf("reading %s: %w", path, err)
		}
	}
	return sb.String(), rewrites, nil
}
