package main

import (
	"sort"

	"go.uber.org/zap"

	"github.com/ajitpratap0/prefabpool/internal/sim"
	"github.com/ajitpratap0/prefabpool/pkg/asset"
	"github.com/ajitpratap0/prefabpool/pkg/config"
	"github.com/ajitpratap0/prefabpool/pkg/errors"
)

// templateSource is the loader selected by the configuration plus what the CLI needs
// beyond asset.Loader.
type templateSource struct {
	asset.Loader
	list  func() ([]string, error)
	close func() error
}

func (s *templateSource) List() ([]string, error) { return s.list() }

func (s *templateSource) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

func openSource(cfg *config.Config, log *zap.Logger) (*templateSource, error) {
	switch cfg.Loader.Kind {
	case config.LoaderMemory:
		m := asset.NewMemoryLoader()
		sim.RegisterBuiltins(m)
		return &templateSource{
			Loader: m,
			list:   func() ([]string, error) { return m.List(), nil },
		}, nil
	case config.LoaderFile:
		f := asset.NewFileLoader(cfg.Loader.Dir, asset.WithFileLogger(log))
		return &templateSource{Loader: f, list: f.List}, nil
	case config.LoaderStore:
		s, err := asset.OpenStore(cfg.Loader.StoreDir, nil)
		if err != nil {
			return nil, err
		}
		return &templateSource{Loader: s, list: s.List, close: s.Close}, nil
	}
	return nil, errors.New(errors.ErrorTypeConfig, "unknown loader kind").WithDetail("kind", cfg.Loader.Kind)
}

// importTemplates copies every template from the file loader at dir, or the built-in
// templates when dir is empty, into the store at storeDir.
func importTemplates(dir, storeDir string, log *zap.Logger) ([]string, error) {
	templates := sim.BuiltinTemplates()
	if dir != "" {
		f := asset.NewFileLoader(dir, asset.WithFileLogger(log))
		paths, err := f.List()
		if err != nil {
			return nil, err
		}
		templates = make(map[string]*asset.Template, len(paths))
		for _, p := range paths {
			t, err := f.Load(p)
			if err != nil {
				return nil, err
			}
			templates[p] = t
		}
	}

	store, err := asset.OpenStore(storeDir, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			log.Warn("failed to close template store", zap.Error(cerr))
		}
	}()

	imported := make([]string, 0, len(templates))
	for p, t := range templates {
		if err := store.Put(p, t); err != nil {
			return imported, err
		}
		imported = append(imported, p)
	}
	sort.Strings(imported)
	return imported, nil
}
