// Package sim provides the Monte Carlo engine for dopant energy transfer.
//
// # Reading Guide
//
// Start with these files to understand the simulation kernel:
//   - geometry.go: GeometryProvider and the candidate shell of same-species sites
//   - sampler.go: random doping and interaction-sum sampling across workers
//   - singlecross.go: cache-checked single cross-relaxation simulations
//   - transfer.go: the energy-transfer decay model evaluated against the sums
//
// # Architecture
//
// The sim package defines the domain types and interfaces; implementations
// live in sub-packages:
//   - sim/cache/: ResultStore backends (JSON directory, SQLite)
//   - sim/fit/: joint multi-trace fitting, solvers and uncertainty estimation
//   - sim/fitlog/: fit records and their sinks
//   - sim/plot/: transient, fit and histogram figures
//
// # Key Interfaces
//
//   - GeometryProvider: neighbor distances around the central ion
//   - ResultStore: append-only persistence of interaction-sum vectors
//
// # Determinism
//
// Every random stream derives from a single Seed through PartitionedRNG.
// Simulation output depends on the seed and inputs only, never on the
// number of workers.
package sim
