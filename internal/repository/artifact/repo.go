// Package artifact stores trained models as one directory per name under a fixed root.
//
// Writes go to a temporary sibling directory that is renamed into place, so a reader
// sees either the previous artifact or the new one, never a partial write.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/modeld/internal/domain"
)

const (
	tmpPrefix   = ".tmp-"
	trashPrefix = ".trash-"

	dirPerm  = 0o750
	filePerm = 0o640
)

// Repo implements usecase/model.Repository on the local filesystem.
type Repo struct {
	root   string
	logger *zap.Logger
}

// New creates the storage root if needed and returns a repository over it.
func New(root string, logger *zap.Logger) (*Repo, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root %s: %w", root, err)
	}
	if err := os.MkdirAll(abs, dirPerm); err != nil {
		return nil, fmt.Errorf("create storage root %s: %w", abs, err)
	}
	return &Repo{root: abs, logger: logger}, nil
}

// Root returns the absolute storage root.
func (r *Repo) Root() string { return r.root }

// Save writes the artifact under name, replacing any existing artifact of that name.
// On failure the previous artifact, if any, is left in place.
func (r *Repo) Save(_ context.Context, name string, a domain.Artifact) error {
	final, err := r.pathFor(name)
	if err != nil {
		return err
	}

	tmp := filepath.Join(r.root, tmpPrefix+uuid.NewString())
	if err := os.Mkdir(tmp, dirPerm); err != nil {
		return fmt.Errorf("create temp dir for %s: %w", name, err)
	}
	if err := writeArtifact(tmp, a); err != nil {
		r.removeAll(tmp)
		return fmt.Errorf("write artifact %s: %w", name, err)
	}

	var trash string
	if _, err := os.Lstat(final); err == nil {
		trash = filepath.Join(r.root, trashPrefix+uuid.NewString())
		if err := os.Rename(final, trash); err != nil {
			r.removeAll(tmp)
			return fmt.Errorf("move old artifact %s aside: %w", name, err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		r.removeAll(tmp)
		return fmt.Errorf("stat artifact %s: %w", name, err)
	}

	if err := os.Rename(tmp, final); err != nil {
		r.removeAll(tmp)
		if trash != "" {
			if rerr := os.Rename(trash, final); rerr != nil {
				return errors.Join(fmt.Errorf("install artifact %s: %w", name, err),
					fmt.Errorf("restore old artifact %s: %w", name, rerr))
			}
		}
		return fmt.Errorf("install artifact %s: %w", name, err)
	}

	syncDir(r.root)
	if trash != "" {
		r.removeAll(trash)
	}
	return nil
}

// Load reads the artifact stored under name. Missing and corrupt artifacts both
// yield domain.ErrNotFound; the cause stays in the error chain.
func (r *Repo) Load(_ context.Context, name string) (domain.Artifact, error) {
	dir, err := r.pathFor(name)
	if err != nil {
		return domain.Artifact{}, fmt.Errorf("load artifact %q: %w: %w", name, domain.ErrNotFound, err)
	}

	var meta metadata
	if err := readJSON(filepath.Join(dir, metadataFile), &meta); err != nil {
		return domain.Artifact{}, fmt.Errorf("load artifact %s: %w: %w", name, domain.ErrNotFound, err)
	}
	if meta.Format != formatVersion || meta.Rank <= 0 {
		return domain.Artifact{}, fmt.Errorf("load artifact %s: %w: unsupported metadata format=%d rank=%d",
			name, domain.ErrNotFound, meta.Format, meta.Rank)
	}

	var users, products map[int64][]float64
	if err := readJSON(filepath.Join(dir, userFeaturesFile), &users); err != nil {
		return domain.Artifact{}, fmt.Errorf("load artifact %s: %w: %w", name, domain.ErrNotFound, err)
	}
	if err := readJSON(filepath.Join(dir, productFeaturesFile), &products); err != nil {
		return domain.Artifact{}, fmt.Errorf("load artifact %s: %w: %w", name, domain.ErrNotFound, err)
	}
	if err := checkDims(users, meta.Rank); err != nil {
		return domain.Artifact{}, fmt.Errorf("load artifact %s: user features: %w: %w", name, domain.ErrNotFound, err)
	}
	if err := checkDims(products, meta.Rank); err != nil {
		return domain.Artifact{}, fmt.Errorf("load artifact %s: product features: %w: %w", name, domain.ErrNotFound, err)
	}
	if users == nil {
		users = map[int64][]float64{}
	}
	if products == nil {
		products = map[int64][]float64{}
	}

	return domain.Artifact{
		Features:   domain.FeatureTables{UserFeatures: users, ProductFeatures: products},
		Rank:       meta.Rank,
		Iterations: meta.Iterations,
		Lambda:     meta.Lambda,
		CreatedAt:  meta.CreatedAt,
	}, nil
}

// Delete removes the artifact stored under name. A missing artifact yields domain.ErrNotFound.
func (r *Repo) Delete(_ context.Context, name string) error {
	dir, err := r.pathFor(name)
	if err != nil {
		return err
	}
	if _, err := os.Lstat(dir); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("delete artifact %s: %w", name, domain.ErrNotFound)
		}
		return fmt.Errorf("stat artifact %s: %w", name, err)
	}

	// Detach first so concurrent readers never see a half-removed directory.
	trash := filepath.Join(r.root, trashPrefix+uuid.NewString())
	if err := os.Rename(dir, trash); err != nil {
		return fmt.Errorf("detach artifact %s: %w", name, err)
	}
	if err := os.RemoveAll(trash); err != nil {
		return fmt.Errorf("remove artifact %s: %w", name, err)
	}
	return nil
}

// Exists reports whether an artifact directory exists under name.
func (r *Repo) Exists(_ context.Context, name string) (bool, error) {
	dir, err := r.pathFor(name)
	if err != nil {
		return false, err
	}
	if _, err := os.Lstat(dir); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("stat artifact %s: %w", name, err)
	}
	return true, nil
}

// Sweep removes temp and trash directories left behind by an interrupted write.
func (r *Repo) Sweep(_ context.Context) (int, error) {
	entries, err := os.ReadDir(r.root)
	if err != nil {
		return 0, fmt.Errorf("read storage root: %w", err)
	}
	removed := 0
	for _, e := range entries {
		if !isReserved(e.Name()) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(r.root, e.Name())); err != nil {
			return removed, fmt.Errorf("remove leftover %s: %w", e.Name(), err)
		}
		removed++
	}
	return removed, nil
}

// Ping checks that the storage root is a writable directory.
func (r *Repo) Ping(_ context.Context) error {
	f, err := os.CreateTemp(r.root, tmpPrefix+"ping-")
	if err != nil {
		return fmt.Errorf("storage root not writable: %w", err)
	}
	name := f.Name()
	_ = f.Close()
	if err := os.Remove(name); err != nil {
		return fmt.Errorf("remove ping file: %w", err)
	}
	return nil
}

// pathFor maps a sanitized name to its directory and refuses anything that would
// resolve outside the root or collide with internal temp names.
func (r *Repo) pathFor(name string) (string, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) || isReserved(name) {
		return "", fmt.Errorf("artifact name %q: %w", name, domain.ErrInvalidName)
	}
	p := filepath.Join(r.root, name)
	if filepath.Dir(p) != r.root {
		return "", fmt.Errorf("artifact name %q: %w", name, domain.ErrInvalidName)
	}
	return p, nil
}

func (r *Repo) removeAll(path string) {
	if err := os.RemoveAll(path); err != nil {
		r.logger.Warn("Failed to remove directory", zap.String("path", path), zap.Error(err))
	}
}

func isReserved(name string) bool {
	return strings.HasPrefix(name, tmpPrefix) || strings.HasPrefix(name, trashPrefix)
}

func writeArtifact(dir string, a domain.Artifact) error {
	if err := writeJSON(filepath.Join(dir, userFeaturesFile), a.Features.UserFeatures); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(dir, productFeaturesFile), a.Features.ProductFeatures); err != nil {
		return err
	}
	// Metadata last: its presence marks a complete directory.
	return writeJSON(filepath.Join(dir, metadataFile), metadataFromArtifact(a))
}

func writeJSON(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	f, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_EXCL|os.O_WRONLY, filePerm)
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(path), err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("sync %s: %w", filepath.Base(path), err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", filepath.Base(path), err)
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return nil
}

func checkDims(table map[int64][]float64, rank int) error {
	for id, v := range table {
		if len(v) != rank {
			return fmt.Errorf("entity %d has %d features, want %d", id, len(v), rank)
		}
	}
	return nil
}

// syncDir flushes directory entries after a rename. Best effort: not every platform supports it.
func syncDir(dir string) {
	d, err := os.Open(filepath.Clean(dir))
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}
