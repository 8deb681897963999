package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ajitpratap0/prefabpool/pkg/config"
	"github.com/ajitpratap0/prefabpool/pkg/logger"
)

var version = "0.1.0"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	v := newViper()
	var configFile string

	root := &cobra.Command{
		Use:   "prefabpool",
		Short: "prefabpool - object pooling for spawn-heavy simulations",
		Long: `prefabpool reuses instances of templates across spawn/despawn cycles.
It resolves templates through a cache, keeps a pool of pre-warmed spares and hands
disabled instances back out instead of building new ones.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to a YAML configuration file")
	root.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().String("loader", config.LoaderMemory, "Template source (memory, file, store)")
	root.PersistentFlags().String("template-dir", "", "Template directory for the file loader")
	root.PersistentFlags().String("store-dir", "", "Pebble directory for the store loader")
	_ = v.BindPFlag("observability.log_level", root.PersistentFlags().Lookup("log-level"))
	_ = v.BindPFlag("loader.kind", root.PersistentFlags().Lookup("loader"))
	_ = v.BindPFlag("loader.dir", root.PersistentFlags().Lookup("template-dir"))
	_ = v.BindPFlag("loader.store_dir", root.PersistentFlags().Lookup("store-dir"))

	load := func() (*config.Config, error) {
		return loadConfig(v, configFile)
	}

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "prefabpool v%s\n", version)
			fmt.Fprintf(cmd.OutOrStdout(), "Go version: %s\n", runtime.Version())
			fmt.Fprintf(cmd.OutOrStdout(), "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})
	root.AddCommand(newRunCommand(v, load))
	root.AddCommand(newTemplatesCommand(load))
	return root
}

// newViper reads PREFABPOOL_* variables, with dots in keys becoming underscores.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("PREFABPOOL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// overrides maps viper keys to the config fields they replace.
func overrides(cfg *config.Config) map[string]func(v *viper.Viper, key string) {
	return map[string]func(v *viper.Viper, key string){
		"observability.log_level":      func(v *viper.Viper, k string) { cfg.Observability.LogLevel = v.GetString(k) },
		"observability.log_encoding":   func(v *viper.Viper, k string) { cfg.Observability.LogEncoding = v.GetString(k) },
		"observability.enable_metrics": func(v *viper.Viper, k string) { cfg.Observability.EnableMetrics = v.GetBool(k) },
		"observability.enable_tracing": func(v *viper.Viper, k string) { cfg.Observability.EnableTracing = v.GetBool(k) },
		"loader.kind":                  func(v *viper.Viper, k string) { cfg.Loader.Kind = v.GetString(k) },
		"loader.dir":                   func(v *viper.Viper, k string) { cfg.Loader.Dir = v.GetString(k) },
		"loader.store_dir":             func(v *viper.Viper, k string) { cfg.Loader.StoreDir = v.GetString(k) },
		"pool.reuse":                   func(v *viper.Viper, k string) { cfg.Pool.Reuse = v.GetBool(k) },
		"pool.flags":                   func(v *viper.Viper, k string) { cfg.Pool.Flags = v.GetString(k) },
		"resource.editor_mode":         func(v *viper.Viper, k string) { cfg.Resource.EditorMode = v.GetBool(k) },
		"resource.use_preload":         func(v *viper.Viper, k string) { cfg.Resource.UsePreload = v.GetBool(k) },
		"simulation.mode":              func(v *viper.Viper, k string) { cfg.Simulation.Mode = v.GetString(k) },
		"simulation.template":          func(v *viper.Viper, k string) { cfg.Simulation.Template = v.GetString(k) },
		"simulation.task_template":     func(v *viper.Viper, k string) { cfg.Simulation.TaskTemplate = v.GetString(k) },
		"simulation.duration":          func(v *viper.Viper, k string) { cfg.Simulation.Duration = v.GetDuration(k) },
		"simulation.frame_rate":        func(v *viper.Viper, k string) { cfg.Simulation.FrameRate = v.GetInt(k) },
		"simulation.spawn_per_frame":   func(v *viper.Viper, k string) { cfg.Simulation.SpawnPerFrame = v.GetInt(k) },
		"simulation.spawn_rate_limit":  func(v *viper.Viper, k string) { cfg.Simulation.SpawnRateLimit = v.GetFloat64(k) },
		"simulation.lifetime":          func(v *viper.Viper, k string) { cfg.Simulation.Lifetime = v.GetDuration(k) },
	}
}

// loadConfig reads the config file, if any, then applies flags and PREFABPOOL_*
// environment variables on top.
func loadConfig(v *viper.Viper, path string) (*config.Config, error) {
	cfg := config.NewDefault()
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	}
	for key, apply := range overrides(cfg) {
		if v.IsSet(key) {
			apply(v, key)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := logger.Init(logger.Config{
		Level:    cfg.Observability.LogLevel,
		Encoding: cfg.Observability.LogEncoding,
		// keep stdout for the report
		OutputPaths: []string{"stderr"},
	}); err != nil {
		return nil, err
	}
	logger.Get().Debug("configuration loaded",
		zap.String("file", path),
		zap.String("loader", cfg.Loader.Kind),
		zap.String("mode", cfg.Simulation.Mode))
	return cfg, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
