// Package lockfile implements process-singleton marker files that do not
// outlive their holder.
//
// A lock is a file created with O_CREATE|O_EXCL inside the volatile runtime
// directory. Whoever creates it holds the lock; everyone else sees it busy
// until the holder calls Release. Because the directory is cleared on every
// boot, a marker orphaned by SIGKILL or power loss lasts one boot at most.
// Graceful termination signals are covered by the shutdown package, which
// calls ReleaseAll before the process dies.
//
// Basic usage:
//
//	lock, ok, err := lockfile.TryLock("myapp.lock")
//	if err != nil {
//	    return err
//	}
//	if !ok {
//	    // another instance is running
//	    return nil
//	}
//	defer lock.Release()
package lockfile
