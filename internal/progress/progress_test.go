package progress

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	t0  = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	std = NewCalculator(DefaultPolicy())
)

func at(minutes int) time.Time {
	return t0.Add(time.Duration(minutes) * time.Minute)
}

func result(testID ID, pct float64, minutes int) TestResult {
	return TestResult{TestID: testID, Percentage: pct, CompletedAt: at(minutes)}
}

func TestLatestResultFor_NoMatches(t *testing.T) {
	results := []TestResult{result("2", 90, 0)}

	_, ok := std.LatestResultFor("1", results)
	assert.False(t, ok)
	assert.False(t, std.IsTestCompleted("1", results))

	_, ok = std.LatestResultFor("1", nil)
	assert.False(t, ok)
}

func TestLatestResultFor_RecencyWinsOverScore(t *testing.T) {
	tests := []struct {
		name    string
		results []TestResult
		wantPct float64
	}{
		{
			name:    "later attempt has higher score",
			results: []TestResult{result("1", 70, 0), result("1", 90, 10)},
			wantPct: 90,
		},
		{
			name:    "later attempt has lower score",
			results: []TestResult{result("1", 95, 0), result("1", 40, 10)},
			wantPct: 40,
		},
		{
			name:    "input order does not matter",
			results: []TestResult{result("1", 40, 10), result("1", 95, 0), result("1", 60, 5)},
			wantPct: 40,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := std.LatestResultFor("1", tt.results)
			require.True(t, ok)
			assert.Equal(t, tt.wantPct, got.Percentage)
		})
	}
}

func TestLatestResultFor_TimestampTie(t *testing.T) {
	results := []TestResult{
		{ID: 1, TestID: "1", Percentage: 60, CompletedAt: at(5)},
		{ID: 2, TestID: "1", Percentage: 80, CompletedAt: at(5)},
		{ID: 3, TestID: "1", Percentage: 80, CompletedAt: at(5)},
	}

	got, ok := std.LatestResultFor("1", results)
	require.True(t, ok)
	assert.Equal(t, int64(2), got.ID, "higher percentage wins, then first encountered")
}

func TestLatestResultFor_NormalizesIdentifiers(t *testing.T) {
	results := []TestResult{
		result("7", 50, 0),
		result(" 7 ", 80, 1),
		result("7.0", 75, 2),
		result("seven", 100, 3),
	}

	got, ok := std.LatestResultFor(IntID(7), results)
	require.True(t, ok)
	assert.Equal(t, 75.0, got.Percentage)

	_, ok = std.LatestResultFor("seven", results)
	assert.False(t, ok, "non-numeric identifiers never match")
}

func TestIsTestCompleted_Threshold(t *testing.T) {
	tests := []struct {
		pct  float64
		want bool
	}{
		{pct: 69, want: false},
		{pct: 69.99, want: false},
		{pct: 70, want: true},
		{pct: 100, want: true},
		{pct: 0, want: false},
	}

	for _, tt := range tests {
		results := []TestResult{result("3", tt.pct, 0)}
		assert.Equal(t, tt.want, std.IsTestCompleted("3", results), "percentage %v", tt.pct)
	}
}

func TestIsTestCompleted_LaterFailureOverridesPass(t *testing.T) {
	results := []TestResult{result("1", 100, 0), result("1", 10, 1)}
	assert.False(t, std.IsTestCompleted("1", results))
}

func TestCalculator_CustomThreshold(t *testing.T) {
	calc := NewCalculator(Policy{PassThreshold: 50})
	results := []TestResult{result("1", 55, 0)}

	assert.True(t, calc.IsTestCompleted("1", results))
	assert.False(t, std.IsTestCompleted("1", results))
}

func TestNewCalculator_ClampsThreshold(t *testing.T) {
	assert.Equal(t, 0.0, NewCalculator(Policy{PassThreshold: -5}).Policy().PassThreshold)
	assert.Equal(t, 100.0, NewCalculator(Policy{PassThreshold: 150}).Policy().PassThreshold)
	assert.Equal(t, 70.0, NewCalculator(DefaultPolicy()).Policy().PassThreshold)
	assert.Equal(t, 70.0, NewCalculator(Policy{PassThreshold: math.NaN()}).Policy().PassThreshold)
}

func TestModuleProgress_Empty(t *testing.T) {
	results := []TestResult{result("1", 100, 0)}

	mp := std.ModuleProgress("m1", nil, results)
	assert.Equal(t, 0, mp.Completed)
	assert.Equal(t, 0, mp.Total)
	assert.Equal(t, 0, mp.Percentage)
	assert.NotNil(t, mp.TestResults)
	assert.Empty(t, mp.TestResults)
}

func TestModuleProgress_PartiallyCompleted(t *testing.T) {
	passing := result("1", 80, 0)
	results := []TestResult{passing}

	mp := std.ModuleProgress("m1", []ID{"1", "2"}, results)
	assert.Equal(t, ModuleProgress{
		Completed:   1,
		Total:       2,
		Percentage:  50,
		TestResults: map[ID]TestResult{"1": passing},
	}, mp)
}

func TestModuleProgress_FailedTestsOmitted(t *testing.T) {
	results := []TestResult{result("1", 80, 0), result("2", 30, 0)}

	mp := std.ModuleProgress("m1", []ID{"1", "2", "3"}, results)
	assert.Equal(t, 1, mp.Completed)
	assert.Equal(t, 3, mp.Total)
	assert.Equal(t, 33, mp.Percentage)
	assert.Contains(t, mp.TestResults, ID("1"))
	assert.NotContains(t, mp.TestResults, ID("2"))
	assert.NotContains(t, mp.TestResults, ID("3"))
}

func TestModuleProgress_KeysAreCanonical(t *testing.T) {
	results := []TestResult{result("4", 90, 0)}

	mp := std.ModuleProgress("m1", []ID{" 04 "}, results)
	assert.Equal(t, 1, mp.Completed)
	assert.Contains(t, mp.TestResults, ID("4"))
}

func TestModuleProgress_MalformedSlotNeverCompletes(t *testing.T) {
	results := []TestResult{result("abc", 90, 0), result("1", 90, 0)}

	mp := std.ModuleProgress("m1", []ID{"1", "abc"}, results)
	assert.Equal(t, 1, mp.Completed)
	assert.Equal(t, 2, mp.Total)
	assert.Equal(t, 50, mp.Percentage)
}

func TestIsModuleCompleted(t *testing.T) {
	results := []TestResult{result("1", 70, 0), result("2", 99, 0)}

	assert.True(t, std.IsModuleCompleted("m1", []ID{"1", "2"}, results))
	assert.False(t, std.IsModuleCompleted("m1", []ID{"1", "2", "3"}, results))
	assert.False(t, std.IsModuleCompleted("m1", nil, results), "an empty module is never complete")
}

func TestCourseProgress_CountsOnlyFullModules(t *testing.T) {
	results := []TestResult{
		result("1", 90, 0),
		result("2", 90, 0),
		result("3", 90, 0),
		result("4", 10, 0),
	}
	modules := []Module{
		{ID: "10", TestIDs: []ID{"1", "2"}},
		{ID: "11", TestIDs: []ID{"3", "4"}},
	}

	cp := std.CourseProgress("c1", modules, results)
	assert.Equal(t, 1, cp.Completed)
	assert.Equal(t, 2, cp.Total)
	assert.Equal(t, 50, cp.Percentage)
	require.Len(t, cp.ModuleProgress, 2)
	assert.Equal(t, 100, cp.ModuleProgress["10"].Percentage)
	assert.Equal(t, 50, cp.ModuleProgress["11"].Percentage)
	assert.Equal(t, 1, cp.ModuleProgress["11"].Completed)
}

func TestCourseProgress_Empty(t *testing.T) {
	cp := std.CourseProgress("c1", nil, nil)
	assert.Equal(t, 0, cp.Completed)
	assert.Equal(t, 0, cp.Total)
	assert.Equal(t, 0, cp.Percentage)
	assert.NotNil(t, cp.ModuleProgress)
}

func TestCourseProgress_ModuleWithoutTestsNeverCounts(t *testing.T) {
	modules := []Module{{ID: "1"}, {ID: "2", TestIDs: []ID{"5"}}}
	results := []TestResult{result("5", 100, 0)}

	cp := std.CourseProgress("c1", modules, results)
	assert.Equal(t, 1, cp.Completed)
	assert.Equal(t, 50, cp.Percentage)
}

func TestCourseProgress_Idempotent(t *testing.T) {
	results := []TestResult{result("1", 90, 0), result("2", 20, 3), result("2", 75, 1)}
	snapshot := append([]TestResult(nil), results...)
	modules := []Module{{ID: "1", TestIDs: []ID{"1", "2"}}}

	first := std.CourseProgress("c1", modules, results)
	second := std.CourseProgress("c1", modules, results)

	assert.Equal(t, first, second)
	assert.Equal(t, snapshot, results, "input must not be mutated")
}

func TestPercent(t *testing.T) {
	tests := []struct {
		completed, total, want int
	}{
		{0, 0, 0},
		{3, 0, 0},
		{0, 5, 0},
		{1, 3, 33},
		{2, 3, 67},
		{1, 2, 50},
		{1, 8, 13},
		{3, 8, 38},
		{7, 7, 100},
		{199, 200, 100},
		{1, 200, 1},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Percent(tt.completed, tt.total), "%d/%d", tt.completed, tt.total)
	}
}
