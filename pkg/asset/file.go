package asset

import (
	"context"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/ajitpratap0/prefabpool/pkg/compression"
	"github.com/ajitpratap0/prefabpool/pkg/errors"
	"github.com/ajitpratap0/prefabpool/pkg/logger"
)

var formatExtensions = []string{".json", ".yaml", ".yml"}

// FileLoader reads templates from <root>/<path>.<format>[.<compression>].
type FileLoader struct {
	root   string
	logger *zap.Logger
	group  singleflight.Group
}

// FileOption configures a FileLoader.
type FileOption func(*FileLoader)

// WithFileLogger sets the loader's logger.
func WithFileLogger(l *zap.Logger) FileOption {
	return func(f *FileLoader) { f.logger = l }
}

// NewFileLoader creates a loader rooted at dir.
func NewFileLoader(dir string, opts ...FileOption) *FileLoader {
	f := &FileLoader{root: dir}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = logger.Or(f.logger, "asset.file")
	return f
}

// Root returns the directory templates are read from.
func (f *FileLoader) Root() string { return f.root }

// Load implements Loader.
func (f *FileLoader) Load(p string) (*Template, error) {
	file, format, alg, err := f.locate(p)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "read template").WithDetail("file", file)
	}
	if alg != compression.None {
		comp, err := compression.Get(alg)
		if err != nil {
			return nil, err
		}
		if data, err = comp.Decompress(data); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeFile, "decompress template").WithDetail("file", file)
		}
	}
	f.logger.Debug("template loaded",
		zap.String("path", p),
		zap.String("file", file),
		zap.String("compression", string(alg)))
	return Decode(data, format, p)
}

// LoadAsync implements Loader. Concurrent async loads of the same path share one read;
// each caller still gets its own handle.
func (f *FileLoader) LoadAsync(ctx context.Context, p string) Request {
	return Go(ctx, func() (*Template, error) {
		v, err, shared := f.group.Do(p, func() (interface{}, error) {
			return f.Load(p)
		})
		if err != nil {
			return nil, err
		}
		tmpl := v.(*Template)
		if shared {
			f.logger.Debug("coalesced template load", zap.String("path", p))
			tmpl = tmpl.Clone()
		}
		return tmpl, nil
	})
}

// List returns every loadable template path under the root in sorted order.
func (f *FileLoader) List() ([]string, error) {
	seen := make(map[string]struct{})
	err := filepath.WalkDir(f.root, func(file string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(f.root, file)
		if err != nil {
			return err
		}
		if p, ok := templatePath(filepath.ToSlash(rel)); ok {
			seen[p] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "list templates").WithDetail("root", f.root)
	}
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out, nil
}

// locate finds the first existing candidate file for p, preferring plain files.
func (f *FileLoader) locate(p string) (string, Format, compression.Algorithm, error) {
	if p == "" || strings.Contains(p, "..") {
		return "", "", "", NotFound(p)
	}
	base := filepath.Join(f.root, filepath.FromSlash(p))
	suffixes := append([]string{""}, compression.Extensions()...)
	sort.Strings(suffixes[1:])
	for _, ext := range formatExtensions {
		for _, suffix := range suffixes {
			candidate := base + ext + suffix
			info, err := os.Stat(candidate)
			if err != nil || info.IsDir() {
				continue
			}
			format, _ := FormatForExtension(ext)
			alg := compression.None
			if suffix != "" {
				alg, _ = compression.ForExtension(suffix)
			}
			return candidate, format, alg, nil
		}
	}
	return "", "", "", NotFound(p)
}

// templatePath strips the format and optional compression suffix from a file name.
func templatePath(rel string) (string, bool) {
	ext := path.Ext(rel)
	if _, ok := compression.ForExtension(ext); ok {
		rel = strings.TrimSuffix(rel, ext)
		ext = path.Ext(rel)
	}
	if _, ok := FormatForExtension(ext); !ok {
		return "", false
	}
	return strings.TrimSuffix(rel, ext), true
}
