package model

import "time"

// TestResult is one recorded attempt by a student at a test.
type TestResult struct {
	ID          int64     `json:"id"`
	StudentID   int       `json:"student_id"`
	TestID      int       `json:"test_id"`
	Percentage  float64   `json:"percentage"`
	CompletedAt time.Time `json:"completed_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// SubmitResultRequest is the payload a student sends after finishing a test.
// A missing CompletedAt is stamped with the server time.
type SubmitResultRequest struct {
	Percentage  *float64   `json:"percentage" binding:"required,min=0,max=100"`
	CompletedAt *time.Time `json:"completed_at" binding:"omitempty,notfuture"`
}

// ResultPayload is the queued form of a submitted attempt.
type ResultPayload struct {
	StudentID   int       `json:"student_id"`
	TestID      int       `json:"test_id"`
	Percentage  float64   `json:"percentage"`
	CompletedAt time.Time `json:"completed_at"`
}

// ResultEvent is published on a student's progress channel once an attempt is stored.
type ResultEvent struct {
	Type       string    `json:"type"`
	StudentID  int       `json:"student_id"`
	TestID     int       `json:"test_id"`
	Percentage float64   `json:"percentage"`
	RecordedAt time.Time `json:"recorded_at"`
}

// ResultEventRecorded is the ResultEvent type emitted by the ingestion worker.
const ResultEventRecorded = "result_recorded"
