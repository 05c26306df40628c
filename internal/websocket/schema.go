package websocket

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	// ActionPing asks for a pong event.
	ActionPing Action = "ping"
	// ActionCourse asks for a course snapshot and follows that course from now on.
	ActionCourse Action = "course"
)

// Request is every client message. CourseID is only read for ActionCourse.
type Request struct {
	Action   Action `json:"action"`
	CourseID int    `json:"course_id,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError          Event = "error"
	EventPong           Event = "pong"
	EventCourseProgress Event = "course_progress"
	EventResultRecorded Event = "result_recorded"
)

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}

// CourseProgressResponse carries a full course progress snapshot.
type CourseProgressResponse struct {
	Event    Event       `json:"event"`
	CourseID int         `json:"course_id"`
	Progress interface{} `json:"progress"`
}

// ResultRecordedResponse tells the client one of its attempts was stored.
type ResultRecordedResponse struct {
	Event      Event   `json:"event"`
	TestID     int     `json:"test_id"`
	Percentage float64 `json:"percentage"`
}
