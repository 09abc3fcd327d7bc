package editsync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Lingjia-code/CodeShare-Classroom/internal/broadcast"
	"github.com/Lingjia-code/CodeShare-Classroom/pkg/interfaces"
	"github.com/Lingjia-code/CodeShare-Classroom/pkg/types"
)

// Controller owns the accept path for edit events. Per (room, student)
// document the authoritative content is whichever accepted edit ran last;
// there is no merge. Each document's persist-then-broadcast sequence runs
// under a lock keyed by room+student, so interleaved edits from a student
// and an instructor serialize deterministically and the broadcast order
// matches the persisted order.
type Controller struct {
	store       interfaces.ClassroomStore
	broadcaster *broadcast.Broadcaster

	mu       sync.Mutex
	docLocks map[string]*sync.Mutex
}

// NewController creates an edit synchronization controller.
func NewController(store interfaces.ClassroomStore, broadcaster *broadcast.Broadcaster) *Controller {
	return &Controller{
		store:       store,
		broadcaster: broadcaster,
		docLocks:    make(map[string]*sync.Mutex),
	}
}

// ApplyStudentEdit persists a student's own edit and broadcasts the delta
// to the room, excluding the sender. Edits from any other role are dropped
// without content change or broadcast; the drop is logged rather than
// reported to the client.
func (c *Controller) ApplyStudentEdit(ctx context.Context, sender interfaces.Connection, roomID, content, language string) error {
	if sender.Role() != types.RoleStudent {
		log.Printf("Dropped student-edit from non-student: user=%s role=%s room=%s", sender.UserID(), sender.Role(), roomID)
		return nil
	}

	exists, err := c.store.RoomExists(ctx, roomID)
	if err != nil {
		return fmt.Errorf("failed to check classroom %s: %w", roomID, err)
	}
	if !exists {
		return interfaces.ErrRoomNotFound
	}

	language = types.NormalizeLanguage(language)
	studentID := sender.UserID()

	unlock := c.lockDocument(roomID, studentID)
	defer unlock()

	if err := c.store.SaveDocument(ctx, roomID, studentID, content, language); err != nil {
		return fmt.Errorf("failed to save code for student %s: %w", studentID, err)
	}

	c.broadcaster.ToRoomExcept(roomID, sender.ID(), types.EventStudentCodeUpdate, types.StudentCodeUpdatePayload{
		StudentID:   studentID,
		StudentName: sender.Username(),
		Content:     content,
		Language:    language,
		Timestamp:   time.Now(),
	})

	return nil
}

// ApplyInstructorEdit persists an edit the instructor makes on a student's
// behalf. The sender must be the instructor of record for the room; a
// non-owning instructor gets an explicit authorization error and nothing is
// broadcast. A non-instructor sender is dropped silently like a bad
// student edit.
func (c *Controller) ApplyInstructorEdit(ctx context.Context, sender interfaces.Connection, roomID, studentID, content, language string) error {
	if sender.Role() != types.RoleInstructor {
		log.Printf("Dropped instructor-edit from non-instructor: user=%s role=%s room=%s", sender.UserID(), sender.Role(), roomID)
		return nil
	}

	owner, err := c.store.InstructorOf(ctx, roomID)
	if err != nil {
		if errors.Is(err, interfaces.ErrRoomNotFound) {
			return interfaces.ErrRoomNotFound
		}
		return fmt.Errorf("failed to look up instructor of %s: %w", roomID, err)
	}
	if owner != sender.UserID() {
		log.Printf("Rejected instructor-edit from non-owner: user=%s room=%s owner=%s", sender.UserID(), roomID, owner)
		return interfaces.ErrNotRoomOwner
	}

	language = types.NormalizeLanguage(language)

	unlock := c.lockDocument(roomID, studentID)
	defer unlock()

	if err := c.store.SaveDocument(ctx, roomID, studentID, content, language); err != nil {
		return fmt.Errorf("failed to save code for student %s: %w", studentID, err)
	}

	c.broadcaster.ToRoomExcept(roomID, sender.ID(), types.EventInstructorCodeUpdate, types.InstructorCodeUpdatePayload{
		StudentID:      studentID,
		InstructorName: sender.Username(),
		Content:        content,
		Language:       language,
		Timestamp:      time.Now(),
	})

	return nil
}

// GetDocument returns the persisted document for a (room, student) pair.
// A student with no saved code yet yields empty content and the default
// language; "no content yet" is never an error.
func (c *Controller) GetDocument(ctx context.Context, roomID, studentID string) (*types.CodeDocument, error) {
	doc, err := c.store.LoadDocument(ctx, roomID, studentID)
	if err != nil {
		if errors.Is(err, interfaces.ErrDocumentNotFound) {
			return &types.CodeDocument{
				RoomID:    roomID,
				StudentID: studentID,
				Content:   "",
				Language:  types.DefaultLanguage,
			}, nil
		}
		return nil, fmt.Errorf("failed to load code for student %s: %w", studentID, err)
	}
	return doc, nil
}

// lockDocument acquires the serialization lock for one (room, student)
// document and returns its release func. Locks are created on first use
// and kept for the life of the process; the per-room population is
// classroom sized.
func (c *Controller) lockDocument(roomID, studentID string) func() {
	key := roomID + "/" + studentID

	c.mu.Lock()
	lock, ok := c.docLocks[key]
	if !ok {
		lock = &sync.Mutex{}
		c.docLocks[key] = lock
	}
	c.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
