package model

// Permission represents a string code for a specific system action.
type Permission string

const (
	// PermissionMediaUpload allows uploading page images and cover art.
	PermissionMediaUpload Permission = "media:upload"

	// PermissionStudentsRead allows viewing student lists and details.
	PermissionStudentsRead Permission = "students:read"

	// PermissionStudentsWrite allows creating and updating students.
	PermissionStudentsWrite Permission = "students:write"

	// PermissionStudentsResetSession allows resetting a student's active login session.
	PermissionStudentsResetSession Permission = "students:reset_session"

	// PermissionBooksRead allows viewing book lists and details.
	PermissionBooksRead Permission = "books:read"

	// PermissionBooksWrite allows creating, updating, and deleting books.
	PermissionBooksWrite Permission = "books:write"

	// PermissionQuizzesWrite allows creating and replacing book quizzes.
	PermissionQuizzesWrite Permission = "quizzes:write"

	// PermissionProgressRead allows viewing reading progress records.
	PermissionProgressRead Permission = "progress:read"

	// PermissionProgressReset allows wiping a student's progress for a book,
	// including its uploaded audio.
	PermissionProgressReset Permission = "progress:reset"

	// PermissionAdminsRead allows viewing admin user lists and details.
	PermissionAdminsRead Permission = "admins:read"

	// PermissionAdminsWrite allows creating, updating, and deleting admin users.
	PermissionAdminsWrite Permission = "admins:write"

	// PermissionRolesRead allows viewing admin roles and permissions.
	PermissionRolesRead Permission = "roles:read"

	// PermissionRolesWrite allows creating, updating, and deleting admin roles.
	PermissionRolesWrite Permission = "roles:write"

	// PermissionSettingsRead allows viewing application settings.
	PermissionSettingsRead Permission = "settings:read"

	// PermissionSettingsWrite allows editing application settings.
	PermissionSettingsWrite Permission = "settings:write"
)

// AllPermissions is a slice of all available permissions.
var AllPermissions = []Permission{
	PermissionMediaUpload,
	PermissionStudentsRead,
	PermissionStudentsWrite,
	PermissionStudentsResetSession,
	PermissionBooksRead,
	PermissionBooksWrite,
	PermissionQuizzesWrite,
	PermissionProgressRead,
	PermissionProgressReset,
	PermissionAdminsRead,
	PermissionAdminsWrite,
	PermissionRolesRead,
	PermissionRolesWrite,
	PermissionSettingsRead,
	PermissionSettingsWrite,
}
