// internal/service/project_service.go
package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"timeline-editor/internal/models"
	"timeline-editor/internal/session"
	"timeline-editor/internal/validation"

	"github.com/google/uuid"
)

// Sentinel errors: callers use errors.Is() instead of string matching
var (
	ErrProjectNotFound = errors.New("project not found")
	ErrUnauthorized    = errors.New("unauthorized: project belongs to another user")
)

const queryTimeout = 5 * time.Second

const schema = `
	CREATE TABLE IF NOT EXISTS projects (
		id           UUID PRIMARY KEY,
		user_id      UUID NOT NULL,
		name         VARCHAR(255) NOT NULL,
		media_files  JSONB NOT NULL DEFAULT '[]',
		clips        JSONB NOT NULL DEFAULT '[]',
		music_tracks JSONB NOT NULL DEFAULT '[]',
		is_premium   BOOLEAN NOT NULL DEFAULT FALSE,
		version      INTEGER NOT NULL DEFAULT 1,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS projects_user_id_idx ON projects (user_id, updated_at DESC);
`

type ProjectService struct {
	DB *sql.DB
}

func (s *ProjectService) Migrate(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if _, err := s.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate projects: %w", err)
	}
	return nil
}

// ListProjects returns the owner's projects, most recently edited first.
func (s *ProjectService) ListProjects(ctx context.Context, userID uuid.UUID) ([]models.ProjectSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, name, is_premium, version, updated_at
		FROM projects
		WHERE user_id = $1
		ORDER BY updated_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	projects := []models.ProjectSummary{}
	for rows.Next() {
		var p models.ProjectSummary
		if err := rows.Scan(&p.ID, &p.Name, &p.IsPremium, &p.Version, &p.UpdatedAt); err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// CreateProject inserts a project with an empty timeline.
func (s *ProjectService) CreateProject(ctx context.Context, userID uuid.UUID, name string, isPremium bool) (*models.Project, error) {
	if err := validation.ValidateProjectName(name); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	project := &models.Project{
		ID:        uuid.New(),
		UserID:    userID,
		Name:      strings.TrimSpace(name),
		Payload:   session.Payload{MediaFiles: []session.Item{}, Clips: []session.Item{}, MusicTracks: []session.Item{}},
		IsPremium: isPremium,
	}

	query := `
		INSERT INTO projects (id, user_id, name, is_premium)
		VALUES ($1, $2, $3, $4)
		RETURNING version, created_at, updated_at
	`
	err := s.DB.QueryRowContext(ctx, query, project.ID, userID, project.Name, isPremium).Scan(
		&project.Version,
		&project.CreatedAt,
		&project.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return project, nil
}

// GetProject fetches a project and verifies ownership.
func (s *ProjectService) GetProject(ctx context.Context, id, userID uuid.UUID) (*models.Project, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		SELECT id, user_id, name, media_files, clips, music_tracks, is_premium, version, created_at, updated_at
		FROM projects
		WHERE id = $1
	`

	project := &models.Project{}
	var mediaJSON, clipsJSON, musicJSON []byte

	err := s.DB.QueryRowContext(ctx, query, id).Scan(
		&project.ID,
		&project.UserID,
		&project.Name,
		&mediaJSON,
		&clipsJSON,
		&musicJSON,
		&project.IsPremium,
		&project.Version,
		&project.CreatedAt,
		&project.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProjectNotFound
	}
	if err != nil {
		return nil, err
	}

	// Ownership check: project must belong to the requesting user
	if project.UserID != userID {
		return nil, ErrUnauthorized
	}

	for _, col := range []struct {
		raw  []byte
		into *[]session.Item
	}{
		{mediaJSON, &project.MediaFiles},
		{clipsJSON, &project.Clips},
		{musicJSON, &project.MusicTracks},
	} {
		if len(col.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(col.raw, col.into); err != nil {
			return nil, fmt.Errorf("%w: %v", validation.ErrInvalidPayload, err)
		}
	}

	return project, nil
}

// SaveTimeline persists the payload and bumps the version counter. It
// returns the new version.
func (s *ProjectService) SaveTimeline(ctx context.Context, id, userID uuid.UUID, payload session.Payload) (int, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return 0, err
	}
	if err := validation.ValidatePayload(raw); err != nil {
		return 0, err
	}

	mediaJSON, err := marshalItems(payload.MediaFiles)
	if err != nil {
		return 0, err
	}
	clipsJSON, err := marshalItems(payload.Clips)
	if err != nil {
		return 0, err
	}
	musicJSON, err := marshalItems(payload.MusicTracks)
	if err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		UPDATE projects
		SET media_files  = $1,
		    clips        = $2,
		    music_tracks = $3,
		    version      = version + 1,
		    updated_at   = NOW()
		WHERE id = $4 AND user_id = $5
		RETURNING version
	`

	var version int
	err = s.DB.QueryRowContext(ctx, query, mediaJSON, clipsJSON, musicJSON, id, userID).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, s.missing(ctx, id)
	}
	if err != nil {
		return 0, err
	}
	return version, nil
}

func (s *ProjectService) RenameProject(ctx context.Context, id, userID uuid.UUID, name string) error {
	if err := validation.ValidateProjectName(name); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := s.DB.ExecContext(ctx,
		`UPDATE projects SET name = $1, updated_at = NOW() WHERE id = $2 AND user_id = $3`,
		strings.TrimSpace(name), id, userID)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return s.missing(ctx, id)
	}
	return nil
}

// DeleteProject permanently removes a project owned by userID.
func (s *ProjectService) DeleteProject(ctx context.Context, id, userID uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := s.DB.ExecContext(ctx,
		`DELETE FROM projects WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return s.missing(ctx, id)
	}
	return nil
}

// missing tells a foreign project apart from an absent one after a write
// filtered by owner touched no row.
func (s *ProjectService) missing(ctx context.Context, id uuid.UUID) error {
	var exists bool
	err := s.DB.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM projects WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return err
	}
	if exists {
		return ErrUnauthorized
	}
	return ErrProjectNotFound
}

// marshalItems encodes a list for a JSONB column. lib/pq sends []byte as
// bytea, so the JSON goes over as text.
func marshalItems(items []session.Item) (string, error) {
	if items == nil {
		items = []session.Item{}
	}
	raw, err := json.Marshal(items)
	return string(raw), err
}
