// Package preflight provides readiness checks for the directories and
// encoder binaries reel depends on.
//
// The worker runs RunAll before starting its lanes and refuses to start when
// a required check fails. "reel doctor" renders the same results.
package preflight
