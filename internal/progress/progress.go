// Package progress folds test-attempt records into completion summaries
// for tests, modules and courses.
//
// Everything here is a pure function of its inputs: no I/O, no caching,
// no mutation of the records passed in. Callers fetch attempts and the
// catalog structure first and discard the results after rendering.
package progress

import (
	"math"
	"strconv"
	"time"
)

const (
	// DefaultPassThreshold is the minimum percentage a latest attempt
	// needs for its test to count as completed.
	DefaultPassThreshold = 70

	// FullCompletion is the percentage a module must reach to count
	// toward its course. Only exact completion qualifies.
	FullCompletion = 100
)

// TestResult is a single attempt at a test.
type TestResult struct {
	ID          int64     `json:"id,omitempty"`
	TestID      ID        `json:"test_id"`
	Percentage  float64   `json:"percentage"`
	CompletedAt time.Time `json:"completed_at"`
}

// Module describes one module of a course: its identifier and the
// ordered identifiers of its tests.
type Module struct {
	ID      ID   `json:"id"`
	TestIDs []ID `json:"test_ids"`
}

// ModuleProgress summarizes a module. TestResults holds the qualifying
// latest attempt of every completed test; failed or unattempted tests
// are absent.
type ModuleProgress struct {
	Completed   int               `json:"completed"`
	Total       int               `json:"total"`
	Percentage  int               `json:"percentage"`
	TestResults map[ID]TestResult `json:"test_results"`
}

// CourseProgress summarizes a course in terms of fully completed modules.
type CourseProgress struct {
	Completed      int                   `json:"completed"`
	Total          int                   `json:"total"`
	Percentage     int                   `json:"percentage"`
	ModuleProgress map[ID]ModuleProgress `json:"module_progress"`
}

// Policy holds the tunable completion rules.
type Policy struct {
	// PassThreshold is inclusive: an attempt at exactly the threshold passes.
	PassThreshold float64
}

// DefaultPolicy returns the policy with the standard 70% pass mark.
func DefaultPolicy() Policy {
	return Policy{PassThreshold: DefaultPassThreshold}
}

// Calculator applies a Policy. The zero value is not useful; build one
// with NewCalculator. A Calculator is immutable and safe for concurrent use.
type Calculator struct {
	policy Policy
}

// NewCalculator returns a Calculator for p. Thresholds outside [0, 100]
// are clamped and NaN falls back to DefaultPassThreshold.
func NewCalculator(p Policy) Calculator {
	switch {
	case math.IsNaN(p.PassThreshold):
		p.PassThreshold = DefaultPassThreshold
	case p.PassThreshold < 0:
		p.PassThreshold = 0
	case p.PassThreshold > 100:
		p.PassThreshold = 100
	}
	return Calculator{policy: p}
}

// Policy returns the rules the calculator applies.
func (c Calculator) Policy() Policy {
	return c.policy
}

// Passed reports whether a single attempt meets the pass threshold.
func (c Calculator) Passed(r TestResult) bool {
	return r.Percentage >= c.policy.PassThreshold
}

// LatestResultFor returns the most recent attempt at testID.
//
// Attempts sharing the exact same CompletedAt are resolved in favour of the
// higher percentage, then in favour of the one appearing first in results.
func (c Calculator) LatestResultFor(testID ID, results []TestResult) (TestResult, bool) {
	want, ok := testID.Int()
	if !ok {
		return TestResult{}, false
	}

	var (
		latest TestResult
		found  bool
	)
	for _, r := range results {
		got, ok := r.TestID.Int()
		if !ok || got != want {
			continue
		}
		if !found || newer(r, latest) {
			latest = r
			found = true
		}
	}
	return latest, found
}

// IsTestCompleted reports whether the latest attempt at testID passes.
func (c Calculator) IsTestCompleted(testID ID, results []TestResult) bool {
	latest, ok := c.LatestResultFor(testID, results)
	return ok && c.Passed(latest)
}

// ModuleProgress folds the attempts for every test slot of a module.
// moduleID is carried for symmetry with CourseProgress and does not
// affect the result.
func (c Calculator) ModuleProgress(moduleID ID, testIDs []ID, results []TestResult) ModuleProgress {
	mp := ModuleProgress{
		Total:       len(testIDs),
		TestResults: make(map[ID]TestResult),
	}
	for _, testID := range testIDs {
		latest, ok := c.LatestResultFor(testID, results)
		if !ok || !c.Passed(latest) {
			continue
		}
		mp.Completed++
		mp.TestResults[canonical(testID)] = latest
	}
	mp.Percentage = Percent(mp.Completed, mp.Total)
	return mp
}

// IsModuleCompleted reports whether every test of the module is completed.
func (c Calculator) IsModuleCompleted(moduleID ID, testIDs []ID, results []TestResult) bool {
	return c.ModuleProgress(moduleID, testIDs, results).Percentage == FullCompletion
}

// CourseProgress folds every module of a course. A module counts toward
// the course only when its own percentage is exactly FullCompletion.
func (c Calculator) CourseProgress(courseID ID, modules []Module, results []TestResult) CourseProgress {
	cp := CourseProgress{
		Total:          len(modules),
		ModuleProgress: make(map[ID]ModuleProgress, len(modules)),
	}
	for _, m := range modules {
		mp := c.ModuleProgress(m.ID, m.TestIDs, results)
		if mp.Percentage == FullCompletion {
			cp.Completed++
		}
		cp.ModuleProgress[canonical(m.ID)] = mp
	}
	cp.Percentage = Percent(cp.Completed, cp.Total)
	return cp
}

// Percent returns round(100*completed/total) with halves rounded up,
// or 0 when total is not positive.
func Percent(completed, total int) int {
	if total <= 0 || completed <= 0 {
		return 0
	}
	if completed >= total {
		return 100
	}
	return (200*completed + total) / (2 * total)
}

func newer(candidate, current TestResult) bool {
	if !candidate.CompletedAt.Equal(current.CompletedAt) {
		return candidate.CompletedAt.After(current.CompletedAt)
	}
	return candidate.Percentage > current.Percentage
}

// canonical maps numerically equal identifiers onto one map key.
func canonical(id ID) ID {
	if n, ok := id.Int(); ok {
		return ID(strconv.FormatInt(n, 10))
	}
	return id
}
