package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Version is the current tycheck version.
// Set at build time via -ldflags or by writing to this file.
var Version = "0.3.1"

const SourceFileExt = ".py"

// ScenarioFileExtensions are the recognized flow-scenario file extensions.
var ScenarioFileExtensions = []string{".yaml", ".yml"}

// Engine limits. These are safety valves, not tunables for precision:
// raising them trades time for marginally fewer forced completions.
const (
	// MaxLoopVisits bounds how often the flow walker re-enters a single
	// loop label before forcing its cache entry to complete.
	MaxLoopVisits = 64

	// MaxWalkerCallsPerLoop bounds the total walker invocations of one
	// top-level query; loop iteration forces completion once the count
	// exceeds it.
	MaxWalkerCallsPerLoop = 16384

	// MaxReachabilityDepth bounds the reachability walker's recursion.
	// At the limit the walker conservatively answers "reachable".
	MaxReachabilityDepth = 64

	// MaxConstrainedWalkDepth bounds the constrained-type-var walk.
	MaxConstrainedWalkDepth = 64
)

// IsTestMode indicates if the program is running under the test command.
var IsTestMode = false

// Project represents the optional tycheck.yaml project configuration.
type Project struct {
	// MaxLoopVisits overrides the engine's loop-label revisit cap when > 0.
	MaxLoopVisits int `yaml:"maxLoopVisits,omitempty"`

	// MaxWalkerCallsPerLoop overrides the per-query walker budget when > 0.
	MaxWalkerCallsPerLoop int `yaml:"maxWalkerCallsPerLoop,omitempty"`

	// CachePath is the sqlite file used to persist never-return verdicts
	// between runs. Empty disables persistence.
	CachePath string `yaml:"cachePath,omitempty"`
}

// LoadProject reads and validates a tycheck.yaml file.
func LoadProject(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var p Project
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if p.MaxLoopVisits < 0 {
		return nil, fmt.Errorf("%s: maxLoopVisits must be >= 0", path)
	}
	if p.MaxWalkerCallsPerLoop < 0 {
		return nil, fmt.Errorf("%s: maxWalkerCallsPerLoop must be >= 0", path)
	}
	return &p, nil
}

// LoopVisits returns the effective loop-label revisit cap.
func (p *Project) LoopVisits() int {
	if p != nil && p.MaxLoopVisits > 0 {
		return p.MaxLoopVisits
	}
	return MaxLoopVisits
}

// WalkerCallsPerLoop returns the effective per-query walker budget.
func (p *Project) WalkerCallsPerLoop() int {
	if p != nil && p.MaxWalkerCallsPerLoop > 0 {
		return p.MaxWalkerCallsPerLoop
	}
	return MaxWalkerCallsPerLoop
}
