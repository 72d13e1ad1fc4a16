// Package diagram renders visual specs into PNG images.
//
// The renderer lays out the elements a spec carries: boxes and arrows for
// block diagrams, typed shapes for flowcharts, level-colored trees for
// hierarchies, and actor lifelines for sequence diagrams. Specs produced by
// keyword detection carry no elements; those render as a single placeholder
// shape under the spec's caption so the assembled document still shows a
// figure for the detected concept.
//
// Rendering is best-effort by contract: every failure is a RenderingError
// the pipeline can log and skip without aborting the run.
package diagram
