// Package sim provides the orchestration core of the combat simulator.
//
// # Reading Guide
//
// Start with these files to understand a run:
//   - entity.go: entities (monsters, containers, slayer tasks) and the Registry interface
//   - data.go: the per-entity SimulationData record and TrialOutcome
//   - simulator.go: a run end to end (reset, queue, dispatch, aggregate, value)
//
// # Architecture
//
// A run moves through phases that never write the same record:
//   - queue.go: QueueBuilder turns the registry, inclusion filters and player
//     access into an ordered, de-duplicated Queue of work items
//   - dispatch.go: Dispatcher drains the queue through one or more
//     ComputeChannels and merges each result into the Store
//   - aggregate.go: Aggregator derives dungeon, stronghold, depth and slayer
//     task records from their members
//   - value.go: a ValueEngine fills the loot-derived fields
//   - adjust.go: supply adjustment caps rates by the consumables on hand
//   - dataset.go: chart values per plot type and time unit
//
// Implementations live in sub-packages:
//   - sim/catalog/: YAML catalog implementing Registry
//   - sim/engine/: in-process combat engine (a ComputeChannel)
//   - sim/remote/: websocket and HTTP ComputeChannels plus the engine server
//   - sim/loot/: drop-table expectations and the ValueEngine
//   - sim/history/: SQLite run history implementing Recorder
//   - sim/trace/: per-item dispatch records
//
// sim/loot registers its ValueEngine via init() by setting NewValueEngineFunc;
// binaries import it for side effects.
package sim
