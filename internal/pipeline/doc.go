// Package pipeline runs one work unit through its stages: fetch the shared
// source once, transform every subitem from it, upload each artifact, then
// clean up local files.
//
// Stage implementations are supplied by the caller through StageSet; this
// package owns only ordering, failure isolation, and the completion rule. A
// failing subitem never stops its siblings, and a unit is completed only when
// its fetch, every transform, and every upload succeeded.
package pipeline
