// Package test holds assertion helpers shared across package tests.
package test

import "testing"

// AssertWantErr checks err against an expected error string, where an empty
// wantErr means no error is expected. It returns true when the test should
// stop because an error (expected or not) occurred.
func AssertWantErr(err error, wantErr, caller string, t *testing.T) bool {
	t.Helper()
	if err != nil {
		if wantErr != err.Error() {
			t.Errorf("%s error = %v, wantErr %q", caller, err, wantErr)
		}

		return true
	} else if wantErr != "" {
		t.Errorf("%s expected error %q, did not receive an error", caller, wantErr)
		return true
	}

	return false
}
