//go:build !linux

package runtime

import "errors"

func NoFileLimit() (soft, hard uint64, err error) { return 0, 0, errors.ErrUnsupported }

func RaiseNoFileLimit(target uint64) error { return errors.ErrUnsupported }
