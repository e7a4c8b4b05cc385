package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// FileName is the compiler output file inside a target directory
const FileName = "compiled.json"

// Store keeps one build directory per target under a root directory.
// A target's path is a symlink to its current build, replaced by rename on
// every commit, so readers never observe a missing build. Where symlinks are
// unavailable the build directory itself is swapped, which leaves a short
// window in which the target has no build.
type Store struct {
	root   string
	logger *slog.Logger
}

// NewStore creates a store rooted at root
func NewStore(root string, logger *slog.Logger) *Store {
	return &Store{root: root, logger: logger}
}

// Root returns the store's root directory
func (s *Store) Root() string {
	return s.root
}

// Dir returns the build directory of a target
func (s *Store) Dir(target string) string {
	return filepath.Join(s.root, target)
}

// Info describes a committed build
type Info struct {
	Target  string    `json:"target"`
	Dir     string    `json:"dir"`
	Hash    string    `json:"hash"`
	Size    int64     `json:"size"`
	BuiltAt time.Time `json:"builtAt"`
}

// Staging is an uncommitted build directory
type Staging struct {
	store  *Store
	target string
	dir    string
	done   bool
}

// Stage creates a fresh staging directory for a target.
// Nothing under the target's build directory changes until Commit.
func (s *Store) Stage(target string) (*Staging, error) {
	if err := os.MkdirAll(s.root, 0755); err != nil {
		return nil, fmt.Errorf("creating build root: %w", err)
	}
	dir, err := os.MkdirTemp(s.root, "."+target+".staging-")
	if err != nil {
		return nil, fmt.Errorf("creating staging directory: %w", err)
	}
	if err := os.Chmod(dir, 0755); err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("creating staging directory: %w", err)
	}
	return &Staging{store: s, target: target, dir: dir}, nil
}

// Dir returns the staging directory sources are bundled into
func (st *Staging) Dir() string {
	return st.dir
}

// Write persists the raw compiler output in the staging directory
func (st *Staging) Write(raw []byte) error {
	if _, err := Parse(raw); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(st.dir, FileName), raw, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", FileName, err)
	}
	return nil
}

// Commit makes the staging directory the target's build
func (st *Staging) Commit() error {
	if st.done {
		return errors.New("staging already finished")
	}
	if _, err := os.Stat(filepath.Join(st.dir, FileName)); err != nil {
		return fmt.Errorf("committing without %s: %w", FileName, err)
	}

	root := st.store.root
	stamp := time.Now().UnixNano()
	build := filepath.Join(root, fmt.Sprintf("%s%d", buildPrefix(st.target), stamp))
	if err := os.Rename(st.dir, build); err != nil {
		return fmt.Errorf("committing build: %w", err)
	}
	st.dir = build

	dest := st.store.Dir(st.target)
	previous, _ := os.Readlink(dest)

	link := filepath.Join(root, fmt.Sprintf(".%s.link-%d", st.target, stamp))
	if err := os.Symlink(filepath.Base(build), link); err != nil {
		st.store.logger.Debug("symlinks unavailable, replacing build directory", "target", st.target, "error", err)
		if err := st.replaceDir(dest); err != nil {
			return err
		}
	} else if err := st.swapLink(link, dest); err != nil {
		os.Remove(link)
		return err
	}
	st.done = true

	// The replaced build stays until the next commit so reads that resolved
	// the old link can finish.
	st.store.prune(st.target, filepath.Base(build), filepath.Base(previous))

	st.store.logger.Debug("committed build", "target", st.target, "dir", build)
	return nil
}

// swapLink renames link over dest. A plain directory left at dest by the
// fallback path is moved aside first.
func (st *Staging) swapLink(link, dest string) error {
	var aside string
	if fi, err := os.Lstat(dest); err == nil && fi.Mode()&os.ModeSymlink == 0 {
		aside = filepath.Join(st.store.root, fmt.Sprintf("%s0-%d", buildPrefix(st.target), time.Now().UnixNano()))
		if err := os.Rename(dest, aside); err != nil {
			return fmt.Errorf("moving previous build aside: %w", err)
		}
	}

	if err := os.Rename(link, dest); err != nil {
		if aside != "" {
			if restoreErr := os.Rename(aside, dest); restoreErr != nil {
				st.store.logger.Error("failed to restore previous build", "target", st.target, "backup", aside, "error", restoreErr)
			}
		}
		return fmt.Errorf("committing build: %w", err)
	}
	return nil
}

// replaceDir moves the staging directory to dest, replacing whatever is there
func (st *Staging) replaceDir(dest string) error {
	var backup string
	if _, err := os.Lstat(dest); err == nil {
		backup = filepath.Join(st.store.root, fmt.Sprintf(".%s.old-%d", st.target, time.Now().UnixNano()))
		if err := os.Rename(dest, backup); err != nil {
			return fmt.Errorf("moving previous build aside: %w", err)
		}
	}

	if err := os.Rename(st.dir, dest); err != nil {
		if backup != "" {
			if restoreErr := os.Rename(backup, dest); restoreErr != nil {
				st.store.logger.Error("failed to restore previous build", "target", st.target, "backup", backup, "error", restoreErr)
			}
		}
		return fmt.Errorf("committing build: %w", err)
	}
	st.dir = dest

	if backup != "" {
		if err := os.RemoveAll(backup); err != nil {
			st.store.logger.Warn("failed to remove previous build", "target", st.target, "path", backup, "error", err)
		}
	}
	return nil
}

func buildPrefix(target string) string {
	return "." + target + ".build-"
}

// prune removes a target's build directories other than keep
func (s *Store) prune(target string, keep ...string) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		s.logger.Warn("failed to list build root", "root", s.root, "error", err)
		return
	}
	prefix := buildPrefix(target)
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, prefix) || slices.Contains(keep, name) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(s.root, name)); err != nil {
			s.logger.Warn("failed to remove previous build", "target", target, "path", name, "error", err)
		}
	}
}

// Discard removes an uncommitted staging directory; it is a no-op after Commit
func (st *Staging) Discard() {
	if st.done {
		return
	}
	st.done = true
	if err := os.RemoveAll(st.dir); err != nil {
		st.store.logger.Warn("failed to remove staging directory", "dir", st.dir, "error", err)
	}
}

// ReadRaw returns the target's compiled.json exactly as written
func (s *Store) ReadRaw(target string) ([]byte, error) {
	raw, err := os.ReadFile(filepath.Join(s.Dir(target), FileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: target %q has not been built", ErrNotFound, target)
		}
		return nil, fmt.Errorf("reading artifact: %w", err)
	}
	return raw, nil
}

// Read loads and parses the target's compiled.json
func (s *Store) Read(target string) (*CompiledArtifact, error) {
	raw, err := s.ReadRaw(target)
	if err != nil {
		return nil, err
	}
	return Parse(raw)
}

// Exists reports whether the target has a committed build
func (s *Store) Exists(target string) bool {
	_, err := os.Stat(filepath.Join(s.Dir(target), FileName))
	return err == nil
}

// Info returns the hash, size and modification time of a committed build
func (s *Store) Info(target string) (*Info, error) {
	path := filepath.Join(s.Dir(target), FileName)
	fi, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: target %q has not been built", ErrNotFound, target)
		}
		return nil, fmt.Errorf("stat artifact: %w", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading artifact: %w", err)
	}
	return &Info{
		Target:  target,
		Dir:     s.Dir(target),
		Hash:    Hash(raw),
		Size:    fi.Size(),
		BuiltAt: fi.ModTime().UTC(),
	}, nil
}

// Hash returns the hex sha256 of an artifact's raw content
func Hash(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
