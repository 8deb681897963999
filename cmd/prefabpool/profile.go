package main

import (
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"strings"

	"go.uber.org/zap"

	"github.com/ajitpratap0/prefabpool/pkg/errors"
)

// profiler writes pprof profiles around a simulation run.
type profiler struct {
	dir    string
	types  []string
	cpu    *os.File
	logger *zap.Logger
}

// parseProfileTypes parses a comma separated list; "all" selects every type.
func parseProfileTypes(s string) []string {
	if s == "all" {
		return []string{"cpu", "memory", "block", "mutex", "goroutine"}
	}
	parts := strings.Split(s, ",")
	types := make([]string, 0, len(parts))
	for _, part := range parts {
		switch part = strings.TrimSpace(part); part {
		case "mem":
			types = append(types, "memory")
		case "cpu", "memory", "block", "mutex", "goroutine":
			types = append(types, part)
		}
	}
	return types
}

// startProfiler creates dir and starts CPU profiling if requested. An empty dir
// returns a nil profiler, which is safe to stop.
func startProfiler(dir, types string, log *zap.Logger) (*profiler, error) {
	if dir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "create profile directory").WithDetail("dir", dir)
	}
	p := &profiler{dir: dir, types: parseProfileTypes(types), logger: log}
	if p.has("cpu") {
		f, err := os.Create(filepath.Join(dir, "cpu.prof"))
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeFile, "create cpu profile")
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			_ = f.Close()
			return nil, errors.Wrap(err, errors.ErrorTypeInternal, "start cpu profile")
		}
		p.cpu = f
	}
	return p, nil
}

func (p *profiler) has(t string) bool {
	for _, s := range p.types {
		if s == t {
			return true
		}
	}
	return false
}

// Stop ends CPU profiling and writes the remaining profiles.
func (p *profiler) Stop() {
	if p == nil {
		return
	}
	if p.cpu != nil {
		pprof.StopCPUProfile()
		if err := p.cpu.Close(); err != nil {
			p.logger.Warn("failed to close cpu profile", zap.Error(err))
		}
	}
	for _, t := range p.types {
		switch t {
		case "memory":
			runtime.GC()
			p.write("heap", "mem.prof")
		case "block", "mutex", "goroutine":
			p.write(t, t+".prof")
		}
	}
}

func (p *profiler) write(name, file string) {
	profile := pprof.Lookup(name)
	if profile == nil {
		return
	}
	path := filepath.Join(p.dir, file)
	f, err := os.Create(path)
	if err != nil {
		p.logger.Warn("failed to create profile", zap.String("profile", name), zap.Error(err))
		return
	}
	defer f.Close()
	if err := profile.WriteTo(f, 0); err != nil {
		p.logger.Warn("failed to write profile", zap.String("profile", name), zap.Error(err))
		return
	}
	p.logger.Info("profile written", zap.String("profile", name), zap.String("path", path))
}
