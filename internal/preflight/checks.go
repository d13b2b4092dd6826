package preflight

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"reel/internal/config"
	"reel/internal/deps"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckStorageRole verifies a filesystem storage role. Object storage roles
// are reported as skipped since reaching them needs credentials and network.
func CheckStorageRole(role string, backend config.Backend) Result {
	name := "Storage (" + role + ")"
	if backend.Backend != config.BackendFilesystem && backend.Backend != "" {
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s bucket %s (not probed)", backend.Backend, backend.Bucket)}
	}
	return CheckDirectoryAccess(name, backend.Dir)
}

// CheckSystemDeps evaluates the encoder binaries for the given config.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	return deps.CheckEncoders(cfg.Encoders)
}
