package model

// Permission represents a string code for a specific system action.
type Permission string

const (
	// PermissionMediaUpload allows uploading course media.
	PermissionMediaUpload Permission = "media:upload"

	// PermissionCoursesRead allows viewing courses, modules and tests.
	PermissionCoursesRead Permission = "courses:read"

	// PermissionCoursesWrite allows editing the catalog.
	PermissionCoursesWrite Permission = "courses:write"

	// PermissionProgressRead allows viewing any student's progress and course reports.
	PermissionProgressRead Permission = "progress:read"

	// PermissionStudentsRead allows listing students.
	PermissionStudentsRead Permission = "students:read"

	// PermissionStudentsWrite allows creating students.
	PermissionStudentsWrite Permission = "students:write"

	// PermissionStudentsResetSession allows resetting a student's active session.
	PermissionStudentsResetSession Permission = "students:reset_session"

	// PermissionSettingsRead allows viewing application settings.
	PermissionSettingsRead Permission = "settings:read"

	// PermissionSettingsWrite allows editing application settings.
	PermissionSettingsWrite Permission = "settings:write"
)

// AllPermissions is a slice of all available permissions.
var AllPermissions = []Permission{
	PermissionMediaUpload,
	PermissionCoursesRead,
	PermissionCoursesWrite,
	PermissionProgressRead,
	PermissionStudentsRead,
	PermissionStudentsWrite,
	PermissionStudentsResetSession,
	PermissionSettingsRead,
	PermissionSettingsWrite,
}
