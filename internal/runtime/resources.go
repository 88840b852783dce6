//go:build linux

package runtime

import (
    "fmt"
    "golang.org/x/sys/unix"
)

// NoFileLimit returns the current soft and hard RLIMIT_NOFILE values.
func NoFileLimit() (soft, hard uint64, err error) {
    var lim unix.Rlimit
    if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &lim); err != nil {
        return 0, 0, fmt.Errorf("getrlimit NOFILE: %w", err)
    }
    return lim.Cur, lim.Max, nil
}

// RaiseNoFileLimit lifts the soft NOFILE limit to target, capped at the hard
// limit. A target of 0 is a no-op.
func RaiseNoFileLimit(target uint64) error {
    if target == 0 { return nil }
    var lim unix.Rlimit
    if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &lim); err != nil {
        return fmt.Errorf("getrlimit NOFILE: %w", err)
    }
    if target > lim.Max {
        target = lim.Max
    }
    if target <= lim.Cur {
        return nil
    }
    lim.Cur = target
    if err := unix.Setrlimit(unix.RLIMIT_NOFILE, &lim); err != nil {
        return fmt.Errorf("setrlimit NOFILE: %w", err)
    }
    return nil
}
