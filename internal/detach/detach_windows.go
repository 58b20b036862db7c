//go:build windows

package detach

import "errors"

// StartDetached is not supported on Windows.
func StartDetached(args []string, logFile string, workingDir string) (int, error) {
	return 0, errors.New("detached mode is not supported on Windows")
}
