// Package ir provides the block-graph representation emitted by blockc.
//
// The types mirror the Scratch 3 project.json document: a Project holds
// Targets (one stage, any number of sprites), each target holds a flat map
// of Blocks linked by id through next/parent pointers and input references.
//
// This package contains data types and serialization only. All other
// internal packages may import ir; ir imports nothing internal.
//
// Key constraints:
//   - Block ids are unique within a target
//   - Empty BlockID values serialize as JSON null
//   - Inputs and fields serialize to the positional array encodings of the
//     target format, not to objects
//   - MarshalCanonical is the only serialization used for fingerprints and
//     golden snapshots
package ir
