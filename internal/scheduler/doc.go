// Package scheduler walks the producer graph below a target and decides what
// has to be built.
//
// # How It Works
//
// Both modes share one traversal. For a rule and the outputs requested of it:
//  1. Expand the rule's templates against the request (or take them as-is for
//     a top-level target).
//  2. Resolve the frontier of producers for the expanded inputs.
//  3. Recurse into every frontier entry.
//  4. Decide whether the rule itself must run: forced, stale, or (dry mode
//     only) because something upstream runs.
//
// In real mode step 3 collects the job handles returned by the children and
// waits for all of them before step 4, so no rule starts before its upstream
// subtree has finished, while siblings run side by side on the worker pool.
// In dry mode nothing is executed; planned jobs are reported as events.
//
// # Staleness
//
// A rule with outputs needs to run when an output is missing, or when the
// oldest output is not newer than the newest existing input. A rule without
// outputs never needs to run on its own account.
//
// # Deduplication
//
// A Scheduler is created for a single top-level invocation. It remembers every
// job by its exact output tuple; a second request for the same tuple reuses
// the first decision and handle instead of traversing or submitting again.
// All bookkeeping happens on the calling goroutine. Workers only execute job
// bodies and never call back into the scheduler, so the table needs no lock.
package scheduler
