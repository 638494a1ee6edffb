// Package manifest loads the clip manifest and groups its records into work
// units.
//
// A manifest is a JSON object mapping each output name to a record that names
// its shared source (group key), a time range, and a normalized region. Every
// record becomes one SubItem; records sharing a group key form one WorkUnit so
// the source is fetched once. Iteration order follows the first appearance of
// each group key in the file, and subitems keep file order within a unit.
package manifest
