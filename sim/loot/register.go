// register.go wires the loot engine into the sim package's registration
// variable (NewValueEngineFunc). This init() runs when any package imports
// sim/loot, breaking the import cycle between sim/ (interface owner) and
// sim/loot/ (implementation). Test code in package sim uses
// loot_import_test.go for the blank import.
package loot

import "github.com/combat-sim/combat-sim/sim"

func init() {
	sim.NewValueEngineFunc = func() sim.ValueEngine { return NewEngine() }
}
