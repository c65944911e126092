package kernel

import (
	"fmt"
)

// runSafely calls fn, turning a panic into an error carrying scope. Every
// handler invocation and lifecycle hook passes through here so one failing
// module cannot take the process down.
func runSafely(scope string, fn func() error) (err error) {
	defer func() {
		recovered := recover()
		if recovered == nil {
			return
		}
		err = fmt.Errorf("%s: panic recovered: %v", scope, recovered)
	}()

	if err := fn(); err != nil {
		return fmt.Errorf("%s: %w", scope, err)
	}

	return nil
}
