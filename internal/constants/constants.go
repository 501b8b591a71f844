// Package constants provides named constants used throughout the thresholds codebase.
// This centralizes magic numbers for better maintainability and documentation.
package constants

// Independent cascade defaults
const (
	// DefaultActivationProb is the per-edge Bernoulli success probability (p)
	// used by the push and pull cascade models.
	DefaultActivationProb = 0.2

	// DefaultSeedFraction is the share of nodes forced active before the first
	// epoch (s). The seed set has size round(s * N).
	DefaultSeedFraction = 0.02
)

// Replicate batch defaults
const (
	// DefaultReplicates is the number of independent runs per scenario.
	DefaultReplicates = 1

	// DefaultWorkers is the number of replicates simulated concurrently.
	// A single run is always sequential; workers only parallelize across runs.
	DefaultWorkers = 1

	// DefaultSeed is the base seed used when a scenario does not name one.
	DefaultSeed = 42
)

// Topology generator defaults, taken from the parameter sweeps the
// simulation was originally designed around.
const (
	// DefaultGraphSize is the number of nodes in a generated topology.
	DefaultGraphSize = 1000

	// DefaultMeanDegree is the target mean degree of a generated topology.
	DefaultMeanDegree = 12

	// DefaultRewireProb is the rewiring (Watts-Strogatz) or triad formation
	// (powerlaw-cluster) probability.
	DefaultRewireProb = 0.1
)

// Output layout
const (
	// DirName is the per-user directory holding config and default output.
	DirName = ".thresholds"

	// ConfigFileName is the YAML config file inside DirName.
	ConfigFileName = "config.yaml"

	// RunLogFileName is the JSONL run summary log written at debug level.
	RunLogFileName = "runs.jsonl"

	// DefaultSQLiteFileName is the SQLite results database inside the output directory.
	DefaultSQLiteFileName = "thresholds.db"
)
