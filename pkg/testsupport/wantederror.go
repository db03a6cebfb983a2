package testsupport

import (
	"errors"
	"fmt"
)

type WantedError interface {
	CompareErr(error) error
}

type NilError struct{}

func (NilError) CompareErr(other error) error {
	if other == nil {
		return nil
	}
	return fmt.Errorf("wanted `nil`; found `%T`: %v", other, other)
}

type WantedErrFunc func(error) error

func (wef WantedErrFunc) CompareErr(other error) error {
	return wef(other)
}

// Is matches any error chain containing `target`.
func Is(target error) WantedError {
	return WantedErrFunc(func(other error) error {
		if errors.Is(other, target) {
			return nil
		}
		return fmt.Errorf("wanted `%v`; found `%v`", target, other)
	})
}

// CompareErr treats a nil `wanted` as `NilError`.
func CompareErr(wanted WantedError, found error) error {
	if wanted == nil {
		wanted = NilError{}
	}
	return wanted.CompareErr(found)
}
