package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	dbconfig "github.com/Lingjia-code/CodeShare-Classroom/pkg/database"
	"github.com/Lingjia-code/CodeShare-Classroom/pkg/interfaces"
	"github.com/Lingjia-code/CodeShare-Classroom/pkg/types"
)

const testSchema = `
CREATE TABLE classrooms (
	id TEXT PRIMARY KEY,
	room_code TEXT NOT NULL UNIQUE,
	instructor_id TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);

CREATE TABLE classroom_students (
	classroom_id TEXT NOT NULL,
	student_id TEXT NOT NULL,
	joined_at TIMESTAMP NOT NULL,
	PRIMARY KEY (classroom_id, student_id),
	FOREIGN KEY (classroom_id) REFERENCES classrooms(id) ON DELETE CASCADE
);

CREATE TABLE documents (
	classroom_id TEXT NOT NULL,
	student_id TEXT NOT NULL,
	content TEXT NOT NULL DEFAULT '',
	language TEXT NOT NULL DEFAULT 'javascript',
	last_updated TIMESTAMP NOT NULL,
	PRIMARY KEY (classroom_id, student_id),
	FOREIGN KEY (classroom_id) REFERENCES classrooms(id) ON DELETE CASCADE
);
`

func newTestManager(t *testing.T) *Manager {
	t.Helper()

	cfg := dbconfig.DefaultConfig()
	cfg.DatabasePath = filepath.Join(t.TempDir(), "test.db")

	m, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })

	if _, err := m.GetDB().Exec(testSchema); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	return m
}

func testClassroom(id, code string) *types.Classroom {
	return &types.Classroom{
		ID:           id,
		RoomCode:     code,
		InstructorID: "prof",
		CreatedAt:    time.Now(),
	}
}

func TestCreateAndGetClassroom(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	if err := m.CreateClassroom(ctx, testClassroom("room-1", "CS101")); err != nil {
		t.Fatalf("failed to create classroom: %v", err)
	}

	got, err := m.GetClassroom(ctx, "room-1")
	if err != nil {
		t.Fatalf("failed to get classroom: %v", err)
	}
	if got.RoomCode != "CS101" || got.InstructorID != "prof" {
		t.Errorf("unexpected classroom: %+v", got)
	}
}

func TestCreateClassroomDuplicateCode(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	if err := m.CreateClassroom(ctx, testClassroom("room-1", "CS101")); err != nil {
		t.Fatalf("failed to create classroom: %v", err)
	}

	err := m.CreateClassroom(ctx, testClassroom("room-2", "CS101"))
	if !errors.Is(err, interfaces.ErrRoomCodeTaken) {
		t.Errorf("expected ErrRoomCodeTaken, got %v", err)
	}
}

func TestGetClassroomNotFound(t *testing.T) {
	m := newTestManager(t)

	_, err := m.GetClassroom(context.Background(), "ghost")
	if !errors.Is(err, interfaces.ErrRoomNotFound) {
		t.Errorf("expected ErrRoomNotFound, got %v", err)
	}
}

func TestRoomExists(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	if err := m.CreateClassroom(ctx, testClassroom("room-1", "CS101")); err != nil {
		t.Fatalf("failed to create classroom: %v", err)
	}

	exists, err := m.RoomExists(ctx, "room-1")
	if err != nil || !exists {
		t.Errorf("expected room-1 to exist, got exists=%v err=%v", exists, err)
	}

	exists, err = m.RoomExists(ctx, "ghost")
	if err != nil || exists {
		t.Errorf("expected ghost to be absent, got exists=%v err=%v", exists, err)
	}
}

func TestInstructorOf(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	if err := m.CreateClassroom(ctx, testClassroom("room-1", "CS101")); err != nil {
		t.Fatalf("failed to create classroom: %v", err)
	}

	owner, err := m.InstructorOf(ctx, "room-1")
	if err != nil || owner != "prof" {
		t.Errorf("expected prof, got %q err=%v", owner, err)
	}

	if _, err := m.InstructorOf(ctx, "ghost"); !errors.Is(err, interfaces.ErrRoomNotFound) {
		t.Errorf("expected ErrRoomNotFound, got %v", err)
	}
}

func TestEnrollStudent(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	if err := m.CreateClassroom(ctx, testClassroom("room-1", "CS101")); err != nil {
		t.Fatalf("failed to create classroom: %v", err)
	}

	if err := m.EnrollStudent(ctx, "room-1", "alice"); err != nil {
		t.Fatalf("failed to enroll: %v", err)
	}

	// Enrolling twice is a no-op.
	if err := m.EnrollStudent(ctx, "room-1", "alice"); err != nil {
		t.Fatalf("double enrollment must not error: %v", err)
	}

	got, err := m.GetClassroom(ctx, "room-1")
	if err != nil {
		t.Fatalf("failed to get classroom: %v", err)
	}
	if len(got.StudentIDs) != 1 || got.StudentIDs[0] != "alice" {
		t.Errorf("expected [alice], got %v", got.StudentIDs)
	}
}

func TestEnrollStudentUnknownRoom(t *testing.T) {
	m := newTestManager(t)

	err := m.EnrollStudent(context.Background(), "ghost", "alice")
	if !errors.Is(err, interfaces.ErrRoomNotFound) {
		t.Errorf("expected ErrRoomNotFound, got %v", err)
	}
}

func TestSaveAndLoadDocument(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	if err := m.CreateClassroom(ctx, testClassroom("room-1", "CS101")); err != nil {
		t.Fatalf("failed to create classroom: %v", err)
	}

	if err := m.SaveDocument(ctx, "room-1", "alice", "print(1)", "python"); err != nil {
		t.Fatalf("failed to save document: %v", err)
	}

	doc, err := m.LoadDocument(ctx, "room-1", "alice")
	if err != nil {
		t.Fatalf("failed to load document: %v", err)
	}
	if doc.Content != "print(1)" || doc.Language != "python" {
		t.Errorf("unexpected document: %+v", doc)
	}
}

func TestSaveDocumentOverwrites(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	if err := m.CreateClassroom(ctx, testClassroom("room-1", "CS101")); err != nil {
		t.Fatalf("failed to create classroom: %v", err)
	}

	if err := m.SaveDocument(ctx, "room-1", "alice", "v1", "python"); err != nil {
		t.Fatalf("failed to save document: %v", err)
	}
	if err := m.SaveDocument(ctx, "room-1", "alice", "v2", "go"); err != nil {
		t.Fatalf("failed to overwrite document: %v", err)
	}

	doc, err := m.LoadDocument(ctx, "room-1", "alice")
	if err != nil {
		t.Fatalf("failed to load document: %v", err)
	}
	if doc.Content != "v2" || doc.Language != "go" {
		t.Errorf("expected the overwrite to win, got %+v", doc)
	}
}

func TestLoadDocumentNotFound(t *testing.T) {
	m := newTestManager(t)

	_, err := m.LoadDocument(context.Background(), "room-1", "never-edited")
	if !errors.Is(err, interfaces.ErrDocumentNotFound) {
		t.Errorf("expected ErrDocumentNotFound, got %v", err)
	}
}

func TestListClassroomsNewestFirst(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	older := testClassroom("room-1", "CS101")
	older.CreatedAt = time.Now().Add(-time.Hour)
	newer := testClassroom("room-2", "CS102")

	if err := m.CreateClassroom(ctx, older); err != nil {
		t.Fatalf("failed to create classroom: %v", err)
	}
	if err := m.CreateClassroom(ctx, newer); err != nil {
		t.Fatalf("failed to create classroom: %v", err)
	}

	got, err := m.ListClassrooms(ctx)
	if err != nil {
		t.Fatalf("failed to list classrooms: %v", err)
	}
	if len(got) != 2 || got[0].ID != "room-2" {
		t.Errorf("expected newest first, got %+v", got)
	}
}

func TestHealthCheck(t *testing.T) {
	m := newTestManager(t)

	if err := m.HealthCheck(context.Background()); err != nil {
		t.Errorf("expected healthy, got %v", err)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	cfg := dbconfig.DefaultConfig()
	cfg.DatabasePath = filepath.Join(t.TempDir(), "test.db")

	m, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	if err := m.Close(); err != nil {
		t.Fatalf("first close failed: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Errorf("second close must be a no-op, got %v", err)
	}
}

func TestWriteAfterClose(t *testing.T) {
	cfg := dbconfig.DefaultConfig()
	cfg.DatabasePath = filepath.Join(t.TempDir(), "test.db")

	m, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}
	_ = m.Close()

	err = m.SaveDocument(context.Background(), "room-1", "alice", "x", "python")
	if err == nil {
		t.Error("expected an error writing to a closed manager")
	}
}
