// Package layout positions a concept forest on a radial map and tracks the
// positions users drag by hand.
//
// Compute is a pure function of the concepts and a Config. A Coordinator
// holds per-node override state, debounces position writes after a drag, and
// merges overrides over freshly computed positions so manual arrangements
// survive unrelated changes.
package layout
