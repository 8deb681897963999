// Package config loads prefabpool configuration.
//
// # Key Features
//
// - Config: one structure covering pool, resource, loader, preload, observability
// and simulation settings
// - Environment variable substitution with ${VAR_NAME} and ${VAR_NAME:-default}
// - Defaults from NewDefault, overridden by whatever the file sets
// - Unknown keys are rejected so typos surface early
//
// # Usage
//
//	cfg, err := config.Load("prefabpool.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//
// A minimal file:
//
//	name: demo
//	loader:
//	  kind: file
//	  dir: ${TEMPLATE_DIR:-./templates}
//	preload:
//	  - path: fx/projectile
//	    count: 32
//	simulation:
//	  mode: task
//	  duration: 10s
//
// The CLI layers flags and PREFABPOOL_* environment variables on top of the file.
package config
