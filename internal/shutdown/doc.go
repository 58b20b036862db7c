// Package shutdown intercepts SIGINT and SIGTERM so that a process asked to
// stop still runs its cleanup.
//
// Without interception both signals kill a Go program on the spot and no
// deferred call runs, which is how lock files end up outliving their owner.
// Once Init has been called the first signal cancels Context and, after an
// optional grace period, runs the registered hooks and then re-raises the
// signal with its default disposition. The parent still sees "killed by
// signal N".
//
// Signal delivery in Go already happens on an ordinary goroutine, so hooks
// may do real work. They should call the same release functions the program
// defers, not a second copy of the cleanup logic.
//
// Typical use:
//
//	func main() {
//	    shutdown.Init()
//	    shutdown.OnShutdown(lockfile.ReleaseAll)
//	    shutdown.Exit(run(shutdown.Context()))
//	}
package shutdown
