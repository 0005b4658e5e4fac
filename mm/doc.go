// Package mm implements open multiple dispatch.
//
// A generic operation (a Table) selects its implementation at call time from
// the runtime classes of several arguments at once. This package contains:
//   - The class Registry and its hierarchy builder (topological order,
//     ancestor bitmasks, concrete ordinals)
//   - Method tables with explicit dispatch signatures
//   - The grouping resolver that fills an N-dimensional dispatch table with
//     winners, Undefined and Ambiguous sentinels
//   - Object binding for embedding (native) and side-table (foreign) types
//
// Registration and Finalize form a setup phase. After Finalize returns, the
// dispatch tables are immutable and may be read from any number of
// goroutines without locking.
package mm
