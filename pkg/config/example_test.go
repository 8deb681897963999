package config_test

import (
	"fmt"
	"log"
	"time"

	"github.com/ajitpratap0/prefabpool/pkg/config"
)

// ExampleNewDefault demonstrates the default configuration.
func ExampleNewDefault() {
	cfg := config.NewDefault()

	fmt.Printf("Loader: %s\n", cfg.Loader.Kind)
	fmt.Printf("Frames: %d\n", cfg.Simulation.Frames())
	fmt.Printf("Lifetime: %s\n", cfg.Simulation.Lifetime)

	// Output:
	// Loader: memory
	// Frames: 300
	// Lifetime: 2s
}

// ExampleConfig_Validate shows how to validate a configuration before using it.
func ExampleConfig_Validate() {
	cfg := config.NewDefault()
	cfg.Simulation.Mode = config.ModeTask
	cfg.Simulation.Duration = 30 * time.Second
	cfg.Preload = []config.PreloadEntry{{Path: "fx/projectile", Count: 64}}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	fmt.Println("Configuration is valid!")
	fmt.Printf("Spares: %d\n", cfg.PreloadTotal())

	// Output:
	// Configuration is valid!
	// Spares: 64
}

// ExampleParse demonstrates decoding YAML over the defaults.
func ExampleParse() {
	cfg, err := config.Parse([]byte(`
name: burst
simulation:
  spawn_per_frame: 8
  spawn_rate_limit: 240
`))
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Name: %s\n", cfg.Name)
	fmt.Printf("Spawn per frame: %d\n", cfg.Simulation.SpawnPerFrame)
	fmt.Printf("Rate limited: %v\n", cfg.Simulation.IsRateLimited())

	// Output:
	// Name: burst
	// Spawn per frame: 8
	// Rate limited: true
}
