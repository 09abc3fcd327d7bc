package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	dbconfig "github.com/Lingjia-code/CodeShare-Classroom/pkg/database"
	"github.com/Lingjia-code/CodeShare-Classroom/pkg/interfaces"
	"github.com/Lingjia-code/CodeShare-Classroom/pkg/types"
)

// Manager implements interfaces.ClassroomStore over SQLite. Reads run
// concurrently against the WAL; all writes funnel through one goroutine,
// which is what SQLite wants and what keeps a failed save from partially
// applying.
type Manager struct {
	db           *sql.DB
	config       *dbconfig.Config
	writeChannel chan writeOperation
	shutdown     chan struct{}
	wg           sync.WaitGroup
	closed       bool
	mu           sync.RWMutex
}

type writeOperation struct {
	operation func(*sql.DB) error
	result    chan error
}

// NewManager opens the database and starts the single-writer goroutine.
func NewManager(config *dbconfig.Config) (*Manager, error) {
	db, err := sql.Open("sqlite3", config.DatabasePath+"?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxConnections)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	if err := dbconfig.ApplyOptimizations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply SQLite optimizations: %w", err)
	}

	manager := &Manager{
		db:           db,
		config:       config,
		writeChannel: make(chan writeOperation, 100),
		shutdown:     make(chan struct{}),
	}

	manager.wg.Add(1)
	go manager.writeLoop()

	return manager, nil
}

// writeLoop processes all write operations in a single goroutine, retrying
// exactly once after a short backoff before reporting failure. Sentinel
// errors are outcomes, not failures, and skip the retry.
func (m *Manager) writeLoop() {
	defer m.wg.Done()

	for {
		select {
		case op := <-m.writeChannel:
			err := op.operation(m.db)
			if err != nil && !isSentinel(err) {
				log.Printf("Database write failed, retrying in 5 seconds: %v", err)
				time.Sleep(5 * time.Second)
				err = op.operation(m.db)
				if err != nil {
					log.Printf("Database write failed after retry: %v", err)
				}
			}
			op.result <- err

		case <-m.shutdown:
			log.Println("Database write loop shutting down")
			return
		}
	}
}

func isSentinel(err error) bool {
	return errors.Is(err, interfaces.ErrRoomCodeTaken) ||
		errors.Is(err, interfaces.ErrRoomNotFound) ||
		errors.Is(err, interfaces.ErrDocumentNotFound)
}

func (m *Manager) executeWrite(operation func(*sql.DB) error) error {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return fmt.Errorf("database manager is closed")
	}
	m.mu.RUnlock()

	result := make(chan error, 1)

	select {
	case m.writeChannel <- writeOperation{operation: operation, result: result}:
		return <-result
	case <-time.After(30 * time.Second):
		return fmt.Errorf("write operation timeout")
	case <-m.shutdown:
		return fmt.Errorf("database manager is shutting down")
	}
}

// CreateClassroom inserts a new classroom row. A duplicate room code maps
// to ErrRoomCodeTaken.
func (m *Manager) CreateClassroom(ctx context.Context, classroom *types.Classroom) error {
	return m.executeWrite(func(db *sql.DB) error {
		query := `
			INSERT INTO classrooms (id, room_code, instructor_id, created_at)
			VALUES (?, ?, ?, ?)
		`
		_, err := db.ExecContext(ctx, query,
			classroom.ID,
			classroom.RoomCode,
			classroom.InstructorID,
			classroom.CreatedAt,
		)
		if err != nil {
			if strings.Contains(err.Error(), "UNIQUE constraint failed") {
				return interfaces.ErrRoomCodeTaken
			}
			return fmt.Errorf("failed to insert classroom: %w", err)
		}
		return nil
	})
}

// GetClassroom retrieves a classroom with its enrolled student IDs.
func (m *Manager) GetClassroom(ctx context.Context, roomID string) (*types.Classroom, error) {
	query := `
		SELECT id, room_code, instructor_id, created_at
		FROM classrooms
		WHERE id = ?
	`

	var classroom types.Classroom
	err := m.db.QueryRowContext(ctx, query, roomID).Scan(
		&classroom.ID,
		&classroom.RoomCode,
		&classroom.InstructorID,
		&classroom.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, interfaces.ErrRoomNotFound
		}
		return nil, fmt.Errorf("failed to query classroom: %w", err)
	}

	rows, err := m.db.QueryContext(ctx,
		"SELECT student_id FROM classroom_students WHERE classroom_id = ? ORDER BY joined_at",
		roomID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query enrollment: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var studentID string
		if err := rows.Scan(&studentID); err != nil {
			return nil, fmt.Errorf("failed to scan enrollment row: %w", err)
		}
		classroom.StudentIDs = append(classroom.StudentIDs, studentID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating enrollment rows: %w", err)
	}

	return &classroom, nil
}

// ListClassrooms returns all classrooms, newest first, without enrollment
// detail.
func (m *Manager) ListClassrooms(ctx context.Context) ([]*types.Classroom, error) {
	query := `
		SELECT id, room_code, instructor_id, created_at
		FROM classrooms
		ORDER BY created_at DESC
	`

	rows, err := m.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query classrooms: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var classrooms []*types.Classroom
	for rows.Next() {
		var classroom types.Classroom
		if err := rows.Scan(
			&classroom.ID,
			&classroom.RoomCode,
			&classroom.InstructorID,
			&classroom.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan classroom row: %w", err)
		}
		classrooms = append(classrooms, &classroom)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating classroom rows: %w", err)
	}

	return classrooms, nil
}

// EnrollStudent records a student in a classroom. Enrolling twice is a
// no-op; enrolling into an unknown room returns ErrRoomNotFound.
func (m *Manager) EnrollStudent(ctx context.Context, roomID, studentID string) error {
	return m.executeWrite(func(db *sql.DB) error {
		var count int
		if err := db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM classrooms WHERE id = ?", roomID,
		).Scan(&count); err != nil {
			return fmt.Errorf("failed to check classroom: %w", err)
		}
		if count == 0 {
			return interfaces.ErrRoomNotFound
		}

		_, err := db.ExecContext(ctx, `
			INSERT OR IGNORE INTO classroom_students (classroom_id, student_id, joined_at)
			VALUES (?, ?, ?)
		`, roomID, studentID, time.Now())
		if err != nil {
			return fmt.Errorf("failed to enroll student: %w", err)
		}
		return nil
	})
}

// RoomExists reports whether a classroom exists.
func (m *Manager) RoomExists(ctx context.Context, roomID string) (bool, error) {
	var count int
	err := m.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM classrooms WHERE id = ?", roomID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check classroom: %w", err)
	}
	return count > 0, nil
}

// InstructorOf returns the owning instructor's user ID.
func (m *Manager) InstructorOf(ctx context.Context, roomID string) (string, error) {
	var instructorID string
	err := m.db.QueryRowContext(ctx,
		"SELECT instructor_id FROM classrooms WHERE id = ?", roomID,
	).Scan(&instructorID)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", interfaces.ErrRoomNotFound
		}
		return "", fmt.Errorf("failed to query instructor: %w", err)
	}
	return instructorID, nil
}

// LoadDocument fetches one (room, student) document.
func (m *Manager) LoadDocument(ctx context.Context, roomID, studentID string) (*types.CodeDocument, error) {
	query := `
		SELECT classroom_id, student_id, content, language, last_updated
		FROM documents
		WHERE classroom_id = ? AND student_id = ?
	`

	var doc types.CodeDocument
	err := m.db.QueryRowContext(ctx, query, roomID, studentID).Scan(
		&doc.RoomID,
		&doc.StudentID,
		&doc.Content,
		&doc.Language,
		&doc.LastUpdated,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, interfaces.ErrDocumentNotFound
		}
		return nil, fmt.Errorf("failed to query document: %w", err)
	}

	return &doc, nil
}

// SaveDocument overwrites one (room, student) document, creating it when
// absent. The upsert keeps each accepted edit at exactly one write.
func (m *Manager) SaveDocument(ctx context.Context, roomID, studentID, content, language string) error {
	return m.executeWrite(func(db *sql.DB) error {
		query := `
			INSERT INTO documents (classroom_id, student_id, content, language, last_updated)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(classroom_id, student_id) DO UPDATE SET
				content = excluded.content,
				language = excluded.language,
				last_updated = excluded.last_updated
		`
		_, err := db.ExecContext(ctx, query, roomID, studentID, content, language, time.Now())
		if err != nil {
			return fmt.Errorf("failed to upsert document: %w", err)
		}
		return nil
	})
}

// HealthCheck validates connectivity and basic read access.
func (m *Manager) HealthCheck(ctx context.Context) error {
	if err := m.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	if _, err := m.db.QueryContext(ctx, "SELECT COUNT(*) FROM classrooms LIMIT 1"); err != nil {
		return fmt.Errorf("database read test failed: %w", err)
	}

	return nil
}

// GetDB exposes the underlying handle for migrations.
func (m *Manager) GetDB() *sql.DB {
	return m.db
}

// Close drains pending writes, stops the write loop, and closes the pool.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	close(m.shutdown)
	m.wg.Wait()

	if err := m.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	return nil
}
