package accounts

import "time"

// IsWithinThresholdPeriod reports whether t falls inside the window described
// by pattern, a time.ParseDuration string counted back from now.
func IsWithinThresholdPeriod(t time.Time, pattern string) (bool, error) {
	window, err := time.ParseDuration(pattern)
	if err != nil {
		return false, err
	}

	return time.Since(t) < window, nil
}

// IsOutsideThresholdPeriod is the negation of IsWithinThresholdPeriod.
func IsOutsideThresholdPeriod(t time.Time, pattern string) (bool, error) {
	within, err := IsWithinThresholdPeriod(t, pattern)
	if err != nil {
		return false, err
	}

	return !within, nil
}
