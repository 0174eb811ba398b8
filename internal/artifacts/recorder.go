// Package artifacts stores debug artifacts (screenshots, page dumps, reports)
// in the local debug directory and, when configured, mirrors them to object
// storage. Every write is best-effort: failures are logged and never change
// the outcome of a check.
package artifacts

import (
	"context"
	"mime"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/kuitang/ssocheck/internal/obs"
)

// Uploader mirrors an artifact to remote storage. *s3client.Client satisfies it.
type Uploader interface {
	PutObject(ctx context.Context, name string, content []byte, contentType string) error
}

// Recorder writes artifacts beneath a directory. Scoped recorders share the
// same file index.
type Recorder struct {
	root     string
	scope    string
	uploader Uploader
	index    *fileIndex
}

type fileIndex struct {
	mu    sync.Mutex
	files []string
}

// NewRecorder returns a Recorder rooted at dir. uploader may be nil.
func NewRecorder(dir string, uploader Uploader) *Recorder {
	return &Recorder{
		root:     dir,
		uploader: uploader,
		index:    &fileIndex{},
	}
}

// Scope returns a Recorder writing into the named subdirectory.
func (r *Recorder) Scope(name string) *Recorder {
	if r == nil {
		return nil
	}
	name = sanitizeName(name)
	scope := name
	if r.scope != "" {
		scope = path.Join(r.scope, name)
	}
	return &Recorder{
		root:     r.root,
		scope:    scope,
		uploader: r.uploader,
		index:    r.index,
	}
}

// Dir returns the local directory this recorder writes into.
func (r *Recorder) Dir() string {
	return filepath.Join(r.root, filepath.FromSlash(r.scope))
}

// Save writes data to name and mirrors it when an uploader is configured.
// It returns the local path, or "" when the local write failed.
func (r *Recorder) Save(ctx context.Context, name string, data []byte) string {
	if r == nil {
		return ""
	}
	log := obs.From(ctx).With("pkg", "artifacts")

	name = sanitizeName(name)
	rel := name
	if r.scope != "" {
		rel = path.Join(r.scope, name)
	}

	dir := r.Dir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Warn("artifact_dir_failed", "dir", dir, "error", err)
		return ""
	}
	local := filepath.Join(dir, name)
	if err := os.WriteFile(local, data, 0o644); err != nil {
		log.Warn("artifact_write_failed", "path", local, "error", err)
		return ""
	}

	r.index.add(rel)

	if r.uploader != nil {
		if err := r.uploader.PutObject(ctx, rel, data, contentTypeFor(name)); err != nil {
			log.Warn("artifact_upload_failed", "name", rel, "error", err)
		}
	}
	log.Debug("artifact_saved", "path", local, "bytes", len(data))
	return local
}

// SaveScreenshot stores a PNG capture. Empty captures are skipped.
func (r *Recorder) SaveScreenshot(ctx context.Context, name string, png []byte) {
	if len(png) == 0 {
		return
	}
	r.Save(ctx, name, png)
}

// Files returns every artifact saved through this recorder or its scopes,
// relative to the root, sorted.
func (r *Recorder) Files() []string {
	if r == nil {
		return nil
	}
	return r.index.list()
}

func (i *fileIndex) add(name string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	for _, existing := range i.files {
		if existing == name {
			return
		}
	}
	i.files = append(i.files, name)
}

func (i *fileIndex) list() []string {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := append([]string(nil), i.files...)
	sort.Strings(out)
	return out
}

func contentTypeFor(name string) string {
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// sanitizeName keeps artifact names inside the recorder directory.
func sanitizeName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, "\\", "/")
	parts := strings.Split(name, "/")
	kept := parts[:0]
	for _, p := range parts {
		if p == "" || p == "." || p == ".." {
			continue
		}
		kept = append(kept, p)
	}
	if len(kept) == 0 {
		return "artifact"
	}
	return strings.Join(kept, "_")
}
