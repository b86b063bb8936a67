package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"timeline-editor/internal/logging"
	"timeline-editor/internal/models"
	"timeline-editor/internal/playback"
	"timeline-editor/internal/session"
)

// ProjectStore is the part of the project repository live sessions need.
type ProjectStore interface {
	GetProject(ctx context.Context, id, userID uuid.UUID) (*models.Project, error)
	SaveTimeline(ctx context.Context, id, userID uuid.UUID, payload session.Payload) (int, error)
}

// View is what a client sees after opening a session or applying a command.
type View struct {
	ProjectID  uuid.UUID            `json:"project_id"`
	Version    int                  `json:"version"`
	Total      float64              `json:"total"`
	Playhead   float64              `json:"playhead"`
	State      session.State        `json:"state"`
	Directives []playback.Directive `json:"directives"`
}

// liveSession serialises every command for one project. dirty marks edits
// made since the last save; closed marks a session dropped on purpose.
type liveSession struct {
	mu      sync.Mutex
	owner   uuid.UUID
	version int
	state   session.State
	dirty   bool
	closed  bool
}

// EditingService holds the live editing sessions of recently used projects.
type EditingService struct {
	Projects  ProjectStore
	Snapshots SnapshotCache // optional

	Fallback float64
	Tuning   playback.Tuning

	live *lru.Cache[uuid.UUID, *liveSession]
	log  *slog.Logger
}

func NewEditingService(projects ProjectStore, snapshots SnapshotCache, size int, fallback float64, tuning playback.Tuning) (*EditingService, error) {
	s := &EditingService{
		Projects:  projects,
		Snapshots: snapshots,
		Fallback:  fallback,
		Tuning:    tuning,
		log:       logging.Component("editing"),
	}
	live, err := lru.NewWithEvict[uuid.UUID, *liveSession](size, s.evicted)
	if err != nil {
		return nil, fmt.Errorf("live session cache: %w", err)
	}
	s.live = live
	return s, nil
}

// Open returns the live session of a project, loading it on first use. A
// snapshot of the same saved version wins over the stored payload so unsaved
// edits survive a restart. Opening an already live session remounts it: the
// caller's media elements are assumed empty.
func (s *EditingService) Open(ctx context.Context, projectID, userID uuid.UUID) (View, error) {
	ls, out, opened, err := s.acquire(ctx, projectID, userID)
	if err != nil {
		return View{}, err
	}
	ls.mu.Lock()
	defer ls.mu.Unlock()
	if !opened {
		ls.state, out = s.remount(ls.state)
		s.snapshot(ctx, projectID, ls)
	}
	return ls.view(projectID, out), nil
}

// Apply runs one command against the project's live session.
func (s *EditingService) Apply(ctx context.Context, projectID, userID uuid.UUID, cmd session.Command) (View, error) {
	ls, _, _, err := s.acquire(ctx, projectID, userID)
	if err != nil {
		return View{}, err
	}

	ls.mu.Lock()
	defer ls.mu.Unlock()

	prev := ls.state
	next, out := session.Apply(prev, cmd)
	ls.state = next
	if _, ok := cmd.(session.Playback); !ok {
		ls.dirty = true
	}

	if next.Playback.Dropped > prev.Playback.Dropped {
		s.log.Debug("stale media notification dropped",
			"project", projectID,
			"command", commandType(cmd),
			"dropped_total", next.Playback.Dropped,
		)
	}
	if pb, ok := cmd.(session.Playback); ok {
		if rejected, ok := pb.Event.(playback.PlaybackRejected); ok {
			s.log.Info("host rejected playback", "project", projectID, "slot", rejected.Slot)
		}
	}

	s.snapshot(ctx, projectID, ls)
	return ls.view(projectID, out), nil
}

// Save persists the live session payload and returns the new version.
func (s *EditingService) Save(ctx context.Context, projectID, userID uuid.UUID) (int, error) {
	ls, _, _, err := s.acquire(ctx, projectID, userID)
	if err != nil {
		return 0, err
	}

	ls.mu.Lock()
	defer ls.mu.Unlock()

	version, err := s.Projects.SaveTimeline(ctx, projectID, userID, ls.state.Payload())
	if err != nil {
		return 0, err
	}
	ls.version = version
	ls.dirty = false
	s.snapshot(ctx, projectID, ls)

	s.log.Info("project saved",
		"project", projectID,
		"version", version,
		"clips", len(ls.state.Clips),
		"music", len(ls.state.Music),
	)
	return version, nil
}

// Close drops the live session and its snapshot, for example after the
// project was deleted or its payload replaced.
func (s *EditingService) Close(ctx context.Context, projectID uuid.UUID) {
	if ls, ok := s.live.Peek(projectID); ok {
		ls.mu.Lock()
		ls.closed = true
		ls.mu.Unlock()
	}
	s.live.Remove(projectID)
	if s.Snapshots != nil {
		s.Snapshots.Forget(ctx, projectID)
	}
}

// acquire returns the live session, loading it when it is not cached.
// opened reports whether this call loaded it; out then holds the directives
// of the initial positioning.
func (s *EditingService) acquire(ctx context.Context, projectID, userID uuid.UUID) (ls *liveSession, out []playback.Directive, opened bool, err error) {
	if ls, ok := s.live.Get(projectID); ok {
		if ls.owner != userID {
			return nil, nil, false, ErrUnauthorized
		}
		return ls, nil, false, nil
	}

	project, err := s.Projects.GetProject(ctx, projectID, userID)
	if err != nil {
		return nil, nil, false, err
	}

	ls = &liveSession{owner: project.UserID, version: project.Version}
	if snap, ok := s.loadSnapshot(ctx, projectID, project); ok {
		ls.state, out = s.remount(snap.State)
		ls.dirty = true
	} else {
		ls.state, out = session.Load(project.Payload, s.Fallback, s.Tuning)
	}

	if found, _ := s.live.ContainsOrAdd(projectID, ls); found {
		if existing, ok := s.live.Get(projectID); ok {
			return existing, nil, false, nil
		}
	}
	s.log.Debug("live session opened", "project", projectID, "version", ls.version)
	return ls, out, true, nil
}

// evicted runs when the cache drops a session to make room. Unsaved edits
// are written to the snapshot cache when there is one; without it they are
// gone and only the warning remains.
func (s *EditingService) evicted(projectID uuid.UUID, ls *liveSession) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	if ls.closed || !ls.dirty {
		return
	}
	s.snapshot(context.Background(), projectID, ls)
	s.log.Warn("live session evicted with unsaved edits",
		"project", projectID,
		"version", ls.version,
		"snapshot", s.Snapshots != nil,
	)
}

// remount resets playback to fresh media elements and re-enters the playhead
// so the host receives the loads it needs. The play intent is not restored.
func (s *EditingService) remount(st session.State) (session.State, []playback.Directive) {
	at := st.Playhead()
	st.Playback = playback.New(s.Tuning)
	st.Playback.Playhead = at
	return session.Apply(st, session.Playback{Event: playback.TimelineChanged{}})
}

func (s *EditingService) loadSnapshot(ctx context.Context, projectID uuid.UUID, project *models.Project) (Snapshot, bool) {
	if s.Snapshots == nil {
		return Snapshot{}, false
	}
	snap, ok := s.Snapshots.Load(ctx, projectID)
	if !ok || snap.Owner != project.UserID || snap.Version != project.Version {
		return Snapshot{}, false
	}
	return snap, true
}

func (s *EditingService) snapshot(ctx context.Context, projectID uuid.UUID, ls *liveSession) {
	if s.Snapshots == nil {
		return
	}
	s.Snapshots.Store(ctx, projectID, Snapshot{Owner: ls.owner, Version: ls.version, State: ls.state})
}

func (ls *liveSession) view(projectID uuid.UUID, out []playback.Directive) View {
	if out == nil {
		out = []playback.Directive{}
	}
	return View{
		ProjectID:  projectID,
		Version:    ls.version,
		Total:      ls.state.Total(),
		Playhead:   ls.state.Playhead(),
		State:      ls.state,
		Directives: out,
	}
}

func commandType(cmd session.Command) string {
	if pb, ok := cmd.(session.Playback); ok {
		return fmt.Sprintf("%T", pb.Event)
	}
	return fmt.Sprintf("%T", cmd)
}
