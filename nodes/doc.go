// Package nodes is the library of dataflow node types: constants, math,
// vectors, comparisons, strings, conversions and blackboard readers. Every
// type registers itself with the graph registry on import.
package nodes
