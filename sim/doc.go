// Package sim provides the discrete-event simulation engine for CeraSim.
//
// # Reading Guide
//
// Start with these files to understand the simulation kernel:
//   - simulator.go: the logical clock, the (time, submission order) event heap and the run loop
//   - process.go: processes as chains of continuations and their suspension points
//   - resource.go: capacity pools with FIFO acquisition and failure injection
//   - container.go and queue.go: bulk buffers and FIFO item stores
//
// # Execution model
//
// Exactly one continuation runs at a time. A process yields only at explicit
// suspension points (Process.Sleep, Resource.Acquire, Container.Get,
// Store.Get); each of them registers the code to run on resumption with the
// scheduler. Because nothing interleaves between suspension points, a
// multi-step mutation such as "check level, then deduct" is atomic without
// locks. Events sharing a timestamp run in the order they were scheduled, so a
// run is fully determined by its SimulationKey, configuration and horizon.
//
// All state of a run hangs off one *Simulator. Separate simulators share
// nothing and may run on separate goroutines.
//
// Sub-packages:
//   - sim/record/: the append-only event log and run summary (no engine dependency)
//   - sim/factory/: the ceramic-tile factory model built on this engine
package sim
