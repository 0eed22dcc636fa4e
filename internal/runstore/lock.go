package runstore

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	runLockDirName   = ".fetch.lock"
	runLockOwnerFile = "owner.yaml"
)

// RunLock is held by one fetch run per output directory.
type RunLock struct {
	lockDir string
}

type runLockOwner struct {
	RunID     string `yaml:"run_id"`
	PID       int    `yaml:"pid"`
	CreatedAt string `yaml:"created_at"`
	Hostname  string `yaml:"hostname,omitempty"`
}

// ForceUnlockHint is appended to lock errors.
const ForceUnlockHint = "rerun with --force-unlock if no other fetch is using it"

// AcquireRunLock claims dir for runID. os.Mkdir is atomic, so a second
// process fails even if both start at the same time.
//
// A lock left by a process that no longer exists on this host is removed
// and claimed. force removes any existing lock.
func AcquireRunLock(dir, runID string, force bool) (RunLock, error) {
	target := strings.TrimSpace(dir)
	if target == "" {
		return RunLock{}, fmt.Errorf("output directory is required")
	}

	lockDir := filepath.Join(target, runLockDirName)
	err := os.Mkdir(lockDir, 0o755)
	if err != nil && os.IsExist(err) {
		owner, readErr := readRunLockOwner(lockDir)
		switch {
		case force:
			slog.Warn("Removing run lock on request", "dir", target, "run_id", owner.RunID, "pid", owner.PID)
		case readErr == nil && owner.stale():
			slog.Warn("Removing stale run lock", "dir", target, "run_id", owner.RunID, "pid", owner.PID, "created_at", owner.CreatedAt)
		case readErr == nil && owner.PID > 0:
			return RunLock{}, fmt.Errorf(
				"output directory is locked: %s (run=%s pid=%d created_at=%s host=%s); %s",
				target, owner.RunID, owner.PID, owner.CreatedAt, owner.Hostname, ForceUnlockHint,
			)
		default:
			return RunLock{}, fmt.Errorf("output directory is locked: %s; %s", target, ForceUnlockHint)
		}

		if err := os.RemoveAll(lockDir); err != nil {
			return RunLock{}, fmt.Errorf("remove run lock for %s: %w", target, err)
		}
		err = os.Mkdir(lockDir, 0o755)
		if err != nil && os.IsExist(err) {
			return RunLock{}, fmt.Errorf("output directory is locked: %s (claimed by another run)", target)
		}
	}
	if err != nil {
		return RunLock{}, fmt.Errorf("acquire run lock for %s: %w", target, err)
	}

	owner := runLockOwner{
		RunID:     runID,
		PID:       os.Getpid(),
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Hostname:  hostnameOrUnknown(),
	}
	if err := WriteYAML(filepath.Join(lockDir, runLockOwnerFile), owner); err != nil {
		_ = os.Remove(lockDir)
		return RunLock{}, fmt.Errorf("write run lock owner for %s: %w", target, err)
	}

	return RunLock{lockDir: lockDir}, nil
}

func readRunLockOwner(lockDir string) (runLockOwner, error) {
	var owner runLockOwner
	err := ReadYAML(filepath.Join(lockDir, runLockOwnerFile), &owner)
	return owner, err
}

// stale reports whether the owner ran on this host and has exited.
func (o runLockOwner) stale() bool {
	if o.PID <= 0 || o.Hostname != hostnameOrUnknown() {
		return false
	}
	return !processAlive(o.PID)
}

// Release removes the lock. Releasing a zero RunLock is a no-op.
func (l RunLock) Release() error {
	if strings.TrimSpace(l.lockDir) == "" {
		return nil
	}
	_ = os.Remove(filepath.Join(l.lockDir, runLockOwnerFile))
	if err := os.Remove(l.lockDir); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("release run lock %s: %w", l.lockDir, err)
	}
	return nil
}

func hostnameOrUnknown() string {
	host, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	host = strings.TrimSpace(host)
	if host == "" {
		return "unknown"
	}
	return host
}
