// Package conquest implements the territory-capture engine: constructs that
// produce and hold units, timed unit transfers between them, capture by
// attrition, upgrades and lateral conversions, and the read-side analysis
// used by AI players. It has no I/O and is driven by World.Step.
package conquest
