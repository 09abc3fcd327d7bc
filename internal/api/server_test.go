package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Lingjia-code/CodeShare-Classroom/internal/presence"
	"github.com/Lingjia-code/CodeShare-Classroom/pkg/interfaces"
	"github.com/Lingjia-code/CodeShare-Classroom/pkg/types"
)

type fakeStore struct {
	mu         sync.Mutex
	classrooms map[string]*types.Classroom
	enrolled   map[string][]string
	docs       map[string]*types.CodeDocument
	healthErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		classrooms: make(map[string]*types.Classroom),
		enrolled:   make(map[string][]string),
		docs:       make(map[string]*types.CodeDocument),
	}
}

func (s *fakeStore) CreateClassroom(_ context.Context, classroom *types.Classroom) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.classrooms {
		if existing.RoomCode == classroom.RoomCode {
			return interfaces.ErrRoomCodeTaken
		}
	}
	s.classrooms[classroom.ID] = classroom
	return nil
}

func (s *fakeStore) GetClassroom(_ context.Context, roomID string) (*types.Classroom, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	classroom, ok := s.classrooms[roomID]
	if !ok {
		return nil, interfaces.ErrRoomNotFound
	}
	copied := *classroom
	copied.StudentIDs = s.enrolled[roomID]
	return &copied, nil
}

func (s *fakeStore) ListClassrooms(context.Context) ([]*types.Classroom, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*types.Classroom
	for _, c := range s.classrooms {
		copied := *c
		out = append(out, &copied)
	}
	return out, nil
}

func (s *fakeStore) EnrollStudent(_ context.Context, roomID, studentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.classrooms[roomID]; !ok {
		return interfaces.ErrRoomNotFound
	}
	s.enrolled[roomID] = append(s.enrolled[roomID], studentID)
	return nil
}

func (s *fakeStore) RoomExists(_ context.Context, roomID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.classrooms[roomID]
	return ok, nil
}

func (s *fakeStore) InstructorOf(_ context.Context, roomID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	classroom, ok := s.classrooms[roomID]
	if !ok {
		return "", interfaces.ErrRoomNotFound
	}
	return classroom.InstructorID, nil
}

func (s *fakeStore) LoadDocument(_ context.Context, roomID, studentID string) (*types.CodeDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[roomID+"/"+studentID]
	if !ok {
		return nil, interfaces.ErrDocumentNotFound
	}
	copied := *doc
	return &copied, nil
}

func (s *fakeStore) SaveDocument(_ context.Context, roomID, studentID, content, language string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[roomID+"/"+studentID] = &types.CodeDocument{
		RoomID:      roomID,
		StudentID:   studentID,
		Content:     content,
		Language:    language,
		LastUpdated: time.Now(),
	}
	return nil
}

func (s *fakeStore) HealthCheck(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.healthErr
}

func (s *fakeStore) Close() error { return nil }

func setup() (*fakeStore, *presence.Registry, http.Handler) {
	store := newFakeStore()
	registry := presence.NewRegistry()
	server := NewServer(store, registry)
	return store, registry, server.Handler()
}

func postJSON(t *testing.T, handler http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func get(handler http.Handler, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestCreateClassroom(t *testing.T) {
	_, _, handler := setup()

	rec := postJSON(t, handler, "/api/classrooms", map[string]string{
		"roomCode":     "CS101",
		"instructorId": "prof",
	})

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var created types.Classroom
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if created.ID == "" || created.RoomCode != "CS101" || created.InstructorID != "prof" {
		t.Errorf("unexpected classroom: %+v", created)
	}
}

func TestCreateClassroomDuplicateCode(t *testing.T) {
	_, _, handler := setup()

	body := map[string]string{"roomCode": "CS101", "instructorId": "prof"}
	postJSON(t, handler, "/api/classrooms", body)
	rec := postJSON(t, handler, "/api/classrooms", body)

	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", rec.Code)
	}
}

func TestCreateClassroomInvalidInput(t *testing.T) {
	_, _, handler := setup()

	rec := postJSON(t, handler, "/api/classrooms", map[string]string{
		"roomCode":     "has spaces!",
		"instructorId": "prof",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad room code, got %d", rec.Code)
	}
}

func TestGetClassroomNotFound(t *testing.T) {
	_, _, handler := setup()

	rec := get(handler, "/api/classrooms/ghost")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestListClassroomsIncludesPresence(t *testing.T) {
	store, registry, handler := setup()

	classroom := &types.Classroom{ID: "room-1", RoomCode: "CS101", InstructorID: "prof", CreatedAt: time.Now()}
	if err := store.CreateClassroom(context.Background(), classroom); err != nil {
		t.Fatalf("failed to seed classroom: %v", err)
	}
	registry.Join("room-1", &fakeConn{id: "c1", userID: "alice"})

	rec := get(handler, "/api/classrooms")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var listed []struct {
		ID             string `json:"id"`
		PresentMembers int    `json:"presentMembers"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &listed); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(listed) != 1 || listed[0].PresentMembers != 1 {
		t.Errorf("expected one classroom with one present member, got %+v", listed)
	}
}

func TestJoinClassroom(t *testing.T) {
	store, _, handler := setup()

	classroom := &types.Classroom{ID: "room-1", RoomCode: "CS101", InstructorID: "prof", CreatedAt: time.Now()}
	if err := store.CreateClassroom(context.Background(), classroom); err != nil {
		t.Fatalf("failed to seed classroom: %v", err)
	}

	rec := postJSON(t, handler, "/api/classrooms/room-1/join", map[string]string{"studentId": "alice"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	got, _ := store.GetClassroom(context.Background(), "room-1")
	if len(got.StudentIDs) != 1 || got.StudentIDs[0] != "alice" {
		t.Errorf("expected alice enrolled, got %v", got.StudentIDs)
	}
}

func TestJoinUnknownClassroom(t *testing.T) {
	_, _, handler := setup()

	rec := postJSON(t, handler, "/api/classrooms/ghost/join", map[string]string{"studentId": "alice"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestGetCodeNeverEdited(t *testing.T) {
	store, _, handler := setup()

	classroom := &types.Classroom{ID: "room-1", RoomCode: "CS101", InstructorID: "prof", CreatedAt: time.Now()}
	if err := store.CreateClassroom(context.Background(), classroom); err != nil {
		t.Fatalf("failed to seed classroom: %v", err)
	}

	rec := get(handler, "/api/classrooms/room-1/code/alice")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for a never-edited document, got %d", rec.Code)
	}

	var doc types.CodeDocument
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if doc.Content != "" || doc.Language != types.DefaultLanguage {
		t.Errorf("expected empty default document, got %+v", doc)
	}
}

func TestSaveAndGetCode(t *testing.T) {
	store, _, handler := setup()

	classroom := &types.Classroom{ID: "room-1", RoomCode: "CS101", InstructorID: "prof", CreatedAt: time.Now()}
	if err := store.CreateClassroom(context.Background(), classroom); err != nil {
		t.Fatalf("failed to seed classroom: %v", err)
	}

	rec := postJSON(t, handler, "/api/classrooms/room-1/code/alice", map[string]string{
		"content":  "print(1)",
		"language": "python",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = get(handler, "/api/classrooms/room-1/code/alice")
	var doc types.CodeDocument
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if doc.Content != "print(1)" || doc.Language != "python" {
		t.Errorf("unexpected document: %+v", doc)
	}
}

func TestSaveCodeUnknownRoom(t *testing.T) {
	_, _, handler := setup()

	rec := postJSON(t, handler, "/api/classrooms/ghost/code/alice", map[string]string{"content": "x"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestHealthHealthy(t *testing.T) {
	store, registry, _ := setup()
	server := NewServer(store, registry)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	server.HandleHealth(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestHealthUnhealthy(t *testing.T) {
	store, registry, _ := setup()
	store.healthErr = context.DeadlineExceeded
	server := NewServer(store, registry)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	server.HandleHealth(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}

type fakeConn struct {
	id     string
	userID string
}

func (f *fakeConn) ID() string                  { return f.id }
func (f *fakeConn) UserID() string              { return f.userID }
func (f *fakeConn) Username() string            { return f.userID }
func (f *fakeConn) Role() string                { return types.RoleStudent }
func (f *fakeConn) WriteJSON(interface{}) error { return nil }
func (f *fakeConn) Close() error                { return nil }
