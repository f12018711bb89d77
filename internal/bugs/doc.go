// Package bugs implements the stabilization dependency graph and the bug
// filing workflow behind `pkgdev bugs`.
//
// The graph is built outward from the user's target packages by a worklist
// walk over a visibility checker: every unsatisfiable dependency diagnostic
// becomes a new node and a directed edge meaning "stabilize that first".
// Merge passes then canonicalize the graph (cycles become one node, children
// whose keywords are entirely new fold into their only parent, configured
// stabilization groups collapse into one bug) before the nodes are filed
// against Bugzilla in dependency order.
//
// Node identity is pointer identity: keyword sets mutate after node creation
// and merging replaces nodes wholesale, so value semantics would be wrong.
// Filing iterates an explicit post-order over the acyclic merged graph with
// an already-filed guard, which keeps a crashed run resumable through
// ScanExistingBugs and keeps filing idempotent within a run.
package bugs
