package model

import "time"

// Course is the top-level unit of the catalog. Its modules are ordered by position.
type Course struct {
	ID          int       `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	CoverURL    *string   `json:"cover_url"`
	ModuleCount int       `json:"module_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Module belongs to a course and groups an ordered list of tests.
type Module struct {
	ID        int       `json:"id"`
	CourseID  int       `json:"course_id"`
	Title     string    `json:"title"`
	Position  int       `json:"position"`
	TestCount int       `json:"test_count"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Test is a gradable unit inside a module.
type Test struct {
	ID        int       `json:"id"`
	ModuleID  int       `json:"module_id"`
	Title     string    `json:"title"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ModuleOutline is a module with the ordered ids of its tests.
type ModuleOutline struct {
	ID      int    `json:"id"`
	Title   string `json:"title"`
	TestIDs []int  `json:"test_ids"`
}

// CourseOutline is the structural view of a course used for progress folding.
type CourseOutline struct {
	ID      int             `json:"id"`
	Title   string          `json:"title"`
	Modules []ModuleOutline `json:"modules"`
}

// CreateCourseRequest is the payload for creating a course.
type CreateCourseRequest struct {
	Title       string  `json:"title" binding:"required,min=2,max=200"`
	Description string  `json:"description" binding:"max=5000"`
	CoverURL    *string `json:"cover_url" binding:"omitempty,url,max=1000"`
}

// UpdateCourseRequest is the payload for updating a course.
type UpdateCourseRequest struct {
	Title       string  `json:"title" binding:"required,min=2,max=200"`
	Description string  `json:"description" binding:"max=5000"`
	CoverURL    *string `json:"cover_url" binding:"omitempty,url,max=1000"`
}

// CreateModuleRequest is the payload for adding a module to a course.
// A nil Position appends the module after the current last one.
type CreateModuleRequest struct {
	Title    string `json:"title" binding:"required,min=2,max=200"`
	Position *int   `json:"position" binding:"omitempty,min=0"`
}

// UpdateModuleRequest is the payload for renaming or reordering a module.
type UpdateModuleRequest struct {
	Title    string `json:"title" binding:"required,min=2,max=200"`
	Position int    `json:"position" binding:"min=0"`
}

// CreateTestRequest is the payload for adding a test to a module.
type CreateTestRequest struct {
	Title    string `json:"title" binding:"required,min=2,max=200"`
	Position *int   `json:"position" binding:"omitempty,min=0"`
}

// UpdateTestRequest is the payload for renaming or reordering a test.
type UpdateTestRequest struct {
	Title    string `json:"title" binding:"required,min=2,max=200"`
	Position int    `json:"position" binding:"min=0"`
}
