package interfaces

import (
	"context"

	"github.com/Lingjia-code/CodeShare-Classroom/pkg/types"
)

// ClassroomStore is the persistence collaborator consumed by the realtime
// core and the REST layer. The core only ever reads room identity and
// writes documents; classroom management is a REST concern.
//
// Implementations own their retry policy. The core treats a failed call as
// terminal for that single request and retries zero times.
type ClassroomStore interface {
	// RoomExists reports whether the classroom ID refers to a known room.
	RoomExists(ctx context.Context, roomID string) (bool, error)

	// InstructorOf returns the user ID of the room's owning instructor.
	// Returns ErrRoomNotFound for unknown rooms.
	InstructorOf(ctx context.Context, roomID string) (string, error)

	// LoadDocument fetches the document for one (room, student) pair.
	// Returns ErrDocumentNotFound when the student has not written yet.
	LoadDocument(ctx context.Context, roomID, studentID string) (*types.CodeDocument, error)

	// SaveDocument overwrites content and language for one (room, student)
	// pair, creating the document with defaults if absent, and refreshes
	// last_updated. At most one database write per call.
	SaveDocument(ctx context.Context, roomID, studentID, content, language string) error

	// Classroom management, used by the REST API.
	CreateClassroom(ctx context.Context, classroom *types.Classroom) error
	GetClassroom(ctx context.Context, roomID string) (*types.Classroom, error)
	ListClassrooms(ctx context.Context) ([]*types.Classroom, error)
	EnrollStudent(ctx context.Context, roomID, studentID string) error

	// HealthCheck verifies connectivity and basic read access.
	HealthCheck(ctx context.Context) error

	// Close releases the store's resources after pending writes drain.
	Close() error
}
