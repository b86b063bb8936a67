package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"timeline-editor/internal/logging"
	"timeline-editor/internal/models"
	"timeline-editor/internal/service"
	"timeline-editor/internal/session"
	"timeline-editor/internal/storage"
	"timeline-editor/internal/validation"
)

const (
	maxJSONBody  = 8 << 20
	maxMemory    = 32 << 20
	sniffLen     = 3072
	userIDHeader = "X-User-ID"
)

var errMissingUser = errors.New("missing or invalid " + userIDHeader + " header")

// ProjectRepository is the project store as seen by the HTTP layer.
type ProjectRepository interface {
	ListProjects(ctx context.Context, userID uuid.UUID) ([]models.ProjectSummary, error)
	CreateProject(ctx context.Context, userID uuid.UUID, name string, isPremium bool) (*models.Project, error)
	GetProject(ctx context.Context, id, userID uuid.UUID) (*models.Project, error)
	SaveTimeline(ctx context.Context, id, userID uuid.UUID, payload session.Payload) (int, error)
	RenameProject(ctx context.Context, id, userID uuid.UUID, name string) error
	DeleteProject(ctx context.Context, id, userID uuid.UUID) error
}

// DurationProber reads the duration of a stored upload.
type DurationProber interface {
	Duration(ctx context.Context, location string) (float64, error)
}

type EditorHandler struct {
	Projects ProjectRepository
	Editing  *service.EditingService
	Storage  storage.Storage
	Prober   DurationProber // optional; without it sources resolve in the browser

	log *slog.Logger
}

func New(projects ProjectRepository, editing *service.EditingService, store storage.Storage, prober DurationProber) *EditorHandler {
	return &EditorHandler{
		Projects: projects,
		Editing:  editing,
		Storage:  store,
		Prober:   prober,
		log:      logging.Component("http"),
	}
}

// Register mounts the API routes on r, which is expected to be the /api/v1
// subrouter.
func (h *EditorHandler) Register(r *mux.Router) {
	r.HandleFunc("/projects", h.ListProjects).Methods("GET")
	r.HandleFunc("/projects", h.CreateProject).Methods("POST")
	r.HandleFunc("/projects/{id}", h.GetProject).Methods("GET")
	r.HandleFunc("/projects/{id}", h.UpdateProject).Methods("PUT")
	r.HandleFunc("/projects/{id}", h.DeleteProject).Methods("DELETE")
	r.HandleFunc("/projects/{id}/session", h.OpenSession).Methods("GET")
	r.HandleFunc("/projects/{id}/session/commands", h.ApplyCommand).Methods("POST")
	r.HandleFunc("/projects/{id}/session/save", h.SaveSession).Methods("POST")
	r.HandleFunc("/upload", h.UploadFile).Methods("POST")
}

func (h *EditorHandler) ListProjects(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}

	projects, err := h.Projects.ListProjects(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"projects": projects})
}

func (h *EditorHandler) CreateProject(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}

	var req struct {
		Name      string `json:"name"`
		IsPremium bool   `json:"is_premium"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	project, err := h.Projects.CreateProject(r.Context(), userID, req.Name, req.IsPremium)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.log.Info("project created", "project", project.ID, "user", userID)
	writeJSON(w, http.StatusCreated, project)
}

func (h *EditorHandler) GetProject(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := h.userAndProject(w, r)
	if !ok {
		return
	}

	project, err := h.Projects.GetProject(r.Context(), id, userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

// UpdateProject renames a project and/or replaces its timeline payload. A
// replaced payload discards the live session so the next open reloads it.
func (h *EditorHandler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := h.userAndProject(w, r)
	if !ok {
		return
	}

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}
	if err := validation.ValidatePayload(raw); err != nil {
		h.fail(w, r, err)
		return
	}

	var body struct {
		Name *string `json:"name"`
		session.Payload
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	ctx := r.Context()
	if body.Name != nil {
		if err := h.Projects.RenameProject(ctx, id, userID, *body.Name); err != nil {
			h.fail(w, r, err)
			return
		}
	}

	resp := map[string]any{"status": "saved"}
	if body.MediaFiles != nil || body.Clips != nil || body.MusicTracks != nil {
		version, err := h.Projects.SaveTimeline(ctx, id, userID, body.Payload)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		h.Editing.Close(ctx, id)
		resp["version"] = version
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *EditorHandler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := h.userAndProject(w, r)
	if !ok {
		return
	}

	if err := h.Projects.DeleteProject(r.Context(), id, userID); err != nil {
		h.fail(w, r, err)
		return
	}
	h.Editing.Close(r.Context(), id)

	h.log.Info("project deleted", "project", id, "user", userID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *EditorHandler) OpenSession(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := h.userAndProject(w, r)
	if !ok {
		return
	}

	view, err := h.Editing.Open(r.Context(), id, userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// ApplyCommand applies one {"type": ...} command to the live session and
// returns the new state with the directives for the media elements.
func (h *EditorHandler) ApplyCommand(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := h.userAndProject(w, r)
	if !ok {
		return
	}

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}
	cmd, err := session.DecodeCommand(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	view, err := h.Editing.Apply(r.Context(), id, userID, cmd)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *EditorHandler) SaveSession(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := h.userAndProject(w, r)
	if !ok {
		return
	}

	version, err := h.Editing.Save(r.Context(), id, userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "saved", "version": version})
}

// UploadFile stores one multipart "file" and answers with the media file
// entry the client hands to the "upload" command.
func (h *EditorHandler) UploadFile(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, validation.MaxFileSize+maxMemory)
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid file")
		return
	}
	defer file.Close()

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "unreadable file")
		return
	}
	head = head[:n]

	contentType, err := validation.ValidateUpload(header, bytes.NewReader(head))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	ctx := r.Context()
	obj, err := h.Storage.Upload(ctx, io.MultiReader(bytes.NewReader(head), file), header.Filename, contentType)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var duration float64
	if h.Prober != nil {
		location := obj.Path
		if location == "" {
			location = obj.URL
		}
		if duration, err = h.Prober.Duration(ctx, location); err != nil {
			// The browser resolves the duration once the element loads.
			h.log.Warn("probe failed", "key", obj.Key, "error", err)
			duration = 0
		}
	}

	h.log.Info("file uploaded",
		"user", userID,
		"key", obj.Key,
		"type", contentType,
		"size", humanize.Bytes(uint64(obj.Size)),
		"duration", duration,
	)

	writeJSON(w, http.StatusCreated, map[string]any{
		"name":           header.Filename,
		"source":         obj.URL,
		"mediaType":      contentType,
		"type":           validation.KindFor(contentType),
		"sourceDuration": duration,
		"size":           obj.Size,
	})
}

func (h *EditorHandler) user(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, err := uuid.Parse(r.Header.Get(userIDHeader))
	if err != nil {
		writeError(w, http.StatusUnauthorized, errMissingUser.Error())
		return uuid.Nil, false
	}
	return userID, true
}

func (h *EditorHandler) userAndProject(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	userID, ok := h.user(w, r)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid project id")
		return uuid.Nil, uuid.Nil, false
	}
	return userID, id, true
}

// fail maps sentinel errors to status codes. Anything unknown is logged and
// reported as an internal error.
func (h *EditorHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrProjectNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrUnauthorized):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, validation.ErrFileTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, validation.ErrInvalidPayload),
		errors.Is(err, validation.ErrProjectNameMissing),
		errors.Is(err, validation.ErrProjectNameTooLong),
		errors.Is(err, validation.ErrInvalidFileType),
		errors.Is(err, validation.ErrFilenameTooLong),
		errors.Is(err, validation.ErrEmptyFile):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
