package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/cors"

	"github.com/Lingjia-code/CodeShare-Classroom/internal/presence"
	"github.com/Lingjia-code/CodeShare-Classroom/pkg/interfaces"
	"github.com/Lingjia-code/CodeShare-Classroom/pkg/types"
)

// Server exposes classroom management and document access over REST.
// Everything realtime stays on the WebSocket path; these endpoints cover
// setup (create, enroll) and pull-based reads (list, refresh).
type Server struct {
	store    interfaces.ClassroomStore
	registry *presence.Registry
}

// NewServer creates the REST API server.
func NewServer(store interfaces.ClassroomStore, registry *presence.Registry) *Server {
	return &Server{store: store, registry: registry}
}

// Handler returns the API routes wrapped with CORS for browser clients.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/classrooms", s.handleCreateClassroom)
	mux.HandleFunc("GET /api/classrooms", s.handleListClassrooms)
	mux.HandleFunc("GET /api/classrooms/{id}", s.handleGetClassroom)
	mux.HandleFunc("POST /api/classrooms/{id}/join", s.handleJoinClassroom)
	mux.HandleFunc("GET /api/classrooms/{id}/code/{student_id}", s.handleGetCode)
	mux.HandleFunc("POST /api/classrooms/{id}/code/{student_id}", s.handleSaveCode)

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	})

	return c.Handler(mux)
}

type createClassroomRequest struct {
	RoomCode     string `json:"roomCode"`
	InstructorID string `json:"instructorId"`
}

func (s *Server) handleCreateClassroom(w http.ResponseWriter, r *http.Request) {
	var req createClassroomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if !types.IsValidRoomCode(req.RoomCode) {
		writeError(w, http.StatusBadRequest, "Invalid room code")
		return
	}
	if !types.IsValidUserID(req.InstructorID) {
		writeError(w, http.StatusBadRequest, "Invalid instructor ID")
		return
	}

	classroom := &types.Classroom{
		ID:           uuid.New().String(),
		RoomCode:     req.RoomCode,
		InstructorID: req.InstructorID,
		CreatedAt:    time.Now(),
	}

	if err := s.store.CreateClassroom(r.Context(), classroom); err != nil {
		if errors.Is(err, interfaces.ErrRoomCodeTaken) {
			writeError(w, http.StatusConflict, "Room code already in use")
			return
		}
		log.Printf("Failed to create classroom: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to create classroom")
		return
	}

	writeJSON(w, http.StatusCreated, classroom)
}

// classroomSummary augments the persisted record with the live member count
// from the presence registry.
type classroomSummary struct {
	*types.Classroom
	PresentMembers int `json:"presentMembers"`
}

func (s *Server) handleListClassrooms(w http.ResponseWriter, r *http.Request) {
	classrooms, err := s.store.ListClassrooms(r.Context())
	if err != nil {
		log.Printf("Failed to list classrooms: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to list classrooms")
		return
	}

	summaries := make([]classroomSummary, 0, len(classrooms))
	for _, c := range classrooms {
		summaries = append(summaries, classroomSummary{
			Classroom:      c,
			PresentMembers: len(s.registry.MembersOf(c.ID)),
		})
	}

	writeJSON(w, http.StatusOK, summaries)
}

func (s *Server) handleGetClassroom(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("id")

	classroom, err := s.store.GetClassroom(r.Context(), roomID)
	if err != nil {
		if errors.Is(err, interfaces.ErrRoomNotFound) {
			writeError(w, http.StatusNotFound, "Classroom not found")
			return
		}
		log.Printf("Failed to get classroom %s: %v", roomID, err)
		writeError(w, http.StatusInternalServerError, "Failed to get classroom")
		return
	}

	writeJSON(w, http.StatusOK, classroomSummary{
		Classroom:      classroom,
		PresentMembers: len(s.registry.MembersOf(classroom.ID)),
	})
}

type joinClassroomRequest struct {
	StudentID string `json:"studentId"`
}

func (s *Server) handleJoinClassroom(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("id")

	var req joinClassroomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !types.IsValidUserID(req.StudentID) {
		writeError(w, http.StatusBadRequest, "Invalid student ID")
		return
	}

	if err := s.store.EnrollStudent(r.Context(), roomID, req.StudentID); err != nil {
		if errors.Is(err, interfaces.ErrRoomNotFound) {
			writeError(w, http.StatusNotFound, "Classroom not found")
			return
		}
		log.Printf("Failed to enroll student %s in %s: %v", req.StudentID, roomID, err)
		writeError(w, http.StatusInternalServerError, "Failed to join classroom")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "enrolled"})
}

// handleGetCode is the pull-based refresh: clients that reconnect or miss
// broadcasts fetch the persisted document. A never-edited document reads as
// empty content in the default language.
func (s *Server) handleGetCode(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("id")
	studentID := r.PathValue("student_id")

	doc, err := s.store.LoadDocument(r.Context(), roomID, studentID)
	if err != nil {
		if errors.Is(err, interfaces.ErrDocumentNotFound) {
			writeJSON(w, http.StatusOK, &types.CodeDocument{
				RoomID:    roomID,
				StudentID: studentID,
				Content:   "",
				Language:  types.DefaultLanguage,
			})
			return
		}
		log.Printf("Failed to load document %s/%s: %v", roomID, studentID, err)
		writeError(w, http.StatusInternalServerError, "Failed to load code")
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

type saveCodeRequest struct {
	Content  string `json:"content"`
	Language string `json:"language"`
}

func (s *Server) handleSaveCode(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("id")
	studentID := r.PathValue("student_id")

	var req saveCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.Content) > types.MaxContentBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "Content too large")
		return
	}

	exists, err := s.store.RoomExists(r.Context(), roomID)
	if err != nil {
		log.Printf("Failed to check classroom %s: %v", roomID, err)
		writeError(w, http.StatusInternalServerError, "Failed to save code")
		return
	}
	if !exists {
		writeError(w, http.StatusNotFound, "Classroom not found")
		return
	}

	language := types.NormalizeLanguage(req.Language)
	if err := s.store.SaveDocument(r.Context(), roomID, studentID, req.Content, language); err != nil {
		log.Printf("Failed to save document %s/%s: %v", roomID, studentID, err)
		writeError(w, http.StatusInternalServerError, "Failed to save code")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

// HandleHealth reports database connectivity and live presence counters.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	code := http.StatusOK

	if err := s.store.HealthCheck(r.Context()); err != nil {
		log.Printf("Health check failed: %v", err)
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	stats := s.registry.Stats()
	writeJSON(w, code, map[string]interface{}{
		"status":          status,
		"timestamp":       time.Now(),
		"present_members": stats["present_members"],
		"occupied_rooms":  stats["occupied_rooms"],
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
