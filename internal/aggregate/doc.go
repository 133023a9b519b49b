// Package aggregate merges normalized findings from every tool into the
// final ordered finding set.
//
// # De-duplication
//
// Two policies apply, in this order:
//
//  1. Exact duplicates: findings from the same tool with identical
//     location, rule, severity and message are always collapsed.
//  2. Equivalence classes: a configurable table groups "tool:rule" pairs
//     that report the same defect, e.g. pylint:unused-import and
//     ruff:F401. Two members of one class reported on the same path with
//     overlapping line ranges collapse to the one that sorts first.
//
// The default table is empty, so findings from different tools are never
// merged unless configured.
//
// # Ordering
//
// Output is sorted by (path, start line, start column, tool, rule), with
// the remaining fields as tie-breakers. The result depends only on the
// content of the input, never on its order, so the completion order of
// concurrent tool runs cannot leak into a report.
//
// # Configuration
//
//	equivalences:
//	  - [pylint:unused-import, ruff:F401]
//	  - [eslint:no-unused-vars, tsc:6133]
package aggregate
