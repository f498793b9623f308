// Package testutil provides shared test infrastructure for the CeraSim
// engine and factory packages: tolerance assertions, invariant stepping and
// log silencing.
package testutil

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
)

// AssertFloat64Equal compares two float64 values with relative tolerance.
func AssertFloat64Equal(t *testing.T, name string, want, got, relTol float64) {
	t.Helper()
	if want == 0 && got == 0 {
		return
	}
	diff := math.Abs(want - got)
	maxVal := math.Max(math.Abs(want), math.Abs(got))
	if diff/maxVal > relTol {
		t.Errorf("%s: got %v, want %v (diff=%v, relDiff=%v)", name, got, want, diff, diff/maxVal)
	}
}

// StepChecked calls step until it returns false, running check after every
// step. It fails the test if more than maxSteps steps execute.
func StepChecked(t *testing.T, step func() bool, check func(), maxSteps int) int {
	t.Helper()
	n := 0
	for step() {
		n++
		check()
		if t.Failed() {
			t.Fatalf("invariant violated after step %d", n)
		}
		if n > maxSteps {
			t.Fatalf("run did not finish within %d steps", maxSteps)
		}
	}
	return n
}

// QuietLogs raises the logrus level to error for the duration of the test.
func QuietLogs(t *testing.T) {
	t.Helper()
	prev := logrus.GetLevel()
	logrus.SetLevel(logrus.ErrorLevel)
	t.Cleanup(func() { logrus.SetLevel(prev) })
}

// WriteFile writes content to name inside a per-test temporary directory and
// returns the full path.
func WriteFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
	return path
}
