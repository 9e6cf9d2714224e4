package sim

// ValueEngine writes the loot-derived fields of every record: gold per
// currency, drop chance and the signet, pet and mark chances. It runs after
// each aggregation pass and must not touch any other field.
type ValueEngine interface {
	Update(store *Store, reg Registry, settings *Settings)
}

// NewValueEngineFunc creates the ValueEngine used by NewSimulator.
// Registered by sim/loot's init(); nil until that package is imported.
var NewValueEngineFunc func() ValueEngine
