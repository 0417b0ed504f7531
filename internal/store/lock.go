package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/hashicorp/go-hclog"

	ferrors "github.com/provide-io/einkframe/pkg/errors"
	"github.com/provide-io/einkframe/pkg/logging"
)

// Lock is a PID lock file guarding a storage root against a second daemon.
type Lock struct {
	path   string
	logger hclog.Logger
}

// processRunning checks if a process with the given PID is still running.
func processRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// Signal 0 probes for existence without delivering anything.
	return process.Signal(syscall.Signal(0)) == nil
}

// AcquireLock takes the lock for root. A lock left behind by a dead process
// is removed; a lock held by a live process fails with ErrLocked.
func AcquireLock(root string, logger hclog.Logger) (*Lock, error) {
	logger = logging.OrNull(logger)
	if err := os.MkdirAll(root, dirPerms); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	lockPath := filepath.Join(root, lockFileName)

	if data, err := os.ReadFile(lockPath); err == nil {
		logger.Debug("🔍 Lock file exists, checking if it's stale...")
		oldPid, perr := strconv.Atoi(strings.TrimSpace(string(data)))
		switch {
		case perr != nil:
			logger.Info("🧹 Removing invalid lock file (couldn't parse PID)")
			_ = os.Remove(lockPath)
		case oldPid == os.Getpid():
			logger.Debug("🔒 Lock already held by this process")
			return &Lock{path: lockPath, logger: logger}, nil
		case processRunning(oldPid):
			return nil, fmt.Errorf("%w: %s held by pid %d", ferrors.ErrLocked, lockPath, oldPid)
		default:
			logger.Info("🧹 Removing stale lock from dead process", "pid", oldPid)
			_ = os.Remove(lockPath)
		}
	}

	file, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil, fmt.Errorf("%w: %s", ferrors.ErrLocked, lockPath)
		}
		return nil, fmt.Errorf("create lock file: %w", err)
	}
	defer file.Close()

	pid := os.Getpid()
	if _, err := fmt.Fprintf(file, "%d\n", pid); err != nil {
		_ = os.Remove(lockPath)
		return nil, fmt.Errorf("write lock file: %w", err)
	}

	logger.Debug("🔒 Acquired storage lock", "pid", pid, "path", lockPath)
	return &Lock{path: lockPath, logger: logger}, nil
}

// Release removes the lock file.
func (l *Lock) Release() {
	if err := os.Remove(l.path); err != nil {
		l.logger.Debug("⚠️ Failed to remove lock file", "error", err)
		return
	}
	l.logger.Debug("🔓 Released storage lock")
}
