package sim_test

// Blank import triggers sim/loot's init(), which registers NewValueEngineFunc.
// This allows package sim's internal test files to build simulators without
// directly importing sim/loot (which would create an import cycle).
import _ "github.com/combat-sim/combat-sim/sim/loot"
