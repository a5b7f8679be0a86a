package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/photopilot/photopilot/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Users ---

func (s *PostgresStore) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	err := s.pool.QueryRow(ctx,
		`SELECT id, email, display_name, created_at, updated_at FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Email, &u.DisplayName, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

func (s *PostgresStore) GetDefaultUser(ctx context.Context) (*models.User, error) {
	var u models.User
	err := s.pool.QueryRow(ctx,
		`SELECT id, email, display_name, created_at, updated_at FROM users WHERE email = 'default@photopilot.local' LIMIT 1`,
	).Scan(&u.ID, &u.Email, &u.DisplayName, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get default user: %w", err)
	}
	return &u, nil
}

// --- API Keys ---

func (s *PostgresStore) GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, owner_id, name, key_hash, key_prefix, scopes, last_used_at, deleted_at, created_at, updated_at
		 FROM api_keys WHERE key_prefix = $1 AND deleted_at IS NULL`, prefix)
	if err != nil {
		return nil, fmt.Errorf("get api key by prefix: %w", err)
	}
	defer rows.Close()

	var keys []*models.APIKey
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(&k.ID, &k.OwnerID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.Scopes,
			&k.LastUsedAt, &k.DeletedAt, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

func (s *PostgresStore) UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET last_used_at = NOW(), updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("update api key last used: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateAPIKey(ctx context.Context, key *models.APIKey) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO api_keys (id, owner_id, name, key_hash, key_prefix, scopes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		key.ID, key.OwnerID, key.Name, key.KeyHash, key.KeyPrefix, key.Scopes, key.CreatedAt, key.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create api key: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAPIKeys(ctx context.Context, ownerID uuid.UUID) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, owner_id, name, key_hash, key_prefix, scopes, last_used_at, deleted_at, created_at, updated_at
		 FROM api_keys WHERE owner_id = $1 AND deleted_at IS NULL ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()

	var keys []*models.APIKey
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(&k.ID, &k.OwnerID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.Scopes,
			&k.LastUsedAt, &k.DeletedAt, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

func (s *PostgresStore) RevokeAPIKey(ctx context.Context, id uuid.UUID, ownerID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET deleted_at = NOW(), updated_at = NOW()
		 WHERE id = $1 AND owner_id = $2 AND deleted_at IS NULL`, id, ownerID)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Photos ---

const photoColumns = `id, owner_id, display_name, storage_path, content_type, size_bytes,
	 ai_description, ai_tags, analysis_completed_at, created_at, updated_at`

func scanPhoto(row pgx.Row) (*models.Photo, error) {
	var p models.Photo
	err := row.Scan(&p.ID, &p.OwnerID, &p.DisplayName, &p.StoragePath, &p.ContentType, &p.SizeBytes,
		&p.AIDescription, &p.AITags, &p.AnalysisCompletedAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PostgresStore) CreatePhoto(ctx context.Context, photo *models.Photo) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO photos (id, owner_id, display_name, storage_path, content_type, size_bytes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		photo.ID, photo.OwnerID, photo.DisplayName, photo.StoragePath, photo.ContentType,
		photo.SizeBytes, photo.CreatedAt, photo.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create photo: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetPhoto(ctx context.Context, id uuid.UUID, ownerID uuid.UUID) (*models.Photo, error) {
	p, err := scanPhoto(s.pool.QueryRow(ctx,
		`SELECT `+photoColumns+` FROM photos WHERE id = $1 AND owner_id = $2`, id, ownerID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get photo: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) ListPhotos(ctx context.Context, ownerID uuid.UUID) ([]*models.Photo, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+photoColumns+` FROM photos WHERE owner_id = $1 ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list photos: %w", err)
	}
	defer rows.Close()

	var photos []*models.Photo
	for rows.Next() {
		p, err := scanPhoto(rows)
		if err != nil {
			return nil, fmt.Errorf("scan photo: %w", err)
		}
		photos = append(photos, p)
	}
	return photos, rows.Err()
}

func (s *PostgresStore) CountPhotosOwned(ctx context.Context, ownerID uuid.UUID, ids []uuid.UUID) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM photos WHERE owner_id = $1 AND id = ANY($2)`, ownerID, ids,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count photos owned: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) UpdatePhoto(ctx context.Context, id uuid.UUID, ownerID uuid.UUID, upd PhotoUpdate) (*models.Photo, error) {
	if upd.Empty() {
		return s.GetPhoto(ctx, id, ownerID)
	}

	sets := []string{"updated_at = NOW()"}
	args := []any{id, ownerID}
	argIdx := 3

	if upd.DisplayName != nil {
		sets = append(sets, fmt.Sprintf("display_name = $%d", argIdx))
		args = append(args, *upd.DisplayName)
		argIdx++
	}
	if upd.AIDescription != nil {
		sets = append(sets, fmt.Sprintf("ai_description = $%d", argIdx))
		args = append(args, *upd.AIDescription)
		argIdx++
	}
	if upd.AITags != nil {
		sets = append(sets, fmt.Sprintf("ai_tags = $%d", argIdx))
		args = append(args, upd.AITags)
		argIdx++
	}
	if upd.AnalysisCompletedAt != nil {
		sets = append(sets, fmt.Sprintf("analysis_completed_at = $%d", argIdx))
		args = append(args, *upd.AnalysisCompletedAt)
		argIdx++
	}

	query := fmt.Sprintf(
		`UPDATE photos SET %s WHERE id = $1 AND owner_id = $2 RETURNING `+photoColumns,
		strings.Join(sets, ", "))

	p, err := scanPhoto(s.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update photo: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) DeletePhotos(ctx context.Context, ownerID uuid.UUID, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx,
		`DELETE FROM photos WHERE owner_id = $1 AND id = ANY($2)`, ownerID, ids)
	if err != nil {
		return fmt.Errorf("delete photos: %w", err)
	}
	return nil
}

// --- Jobs ---

const jobColumns = `id, owner_id, kind, status, total_items, processed_items, input, output,
	 error_message, started_at, completed_at, created_at, updated_at`

func scanJob(row pgx.Row) (*models.Job, error) {
	var j models.Job
	err := row.Scan(&j.ID, &j.OwnerID, &j.Kind, &j.Status, &j.TotalItems, &j.ProcessedItems,
		&j.Input, &j.Output, &j.ErrorMessage, &j.StartedAt, &j.CompletedAt, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func (s *PostgresStore) CreateJob(ctx context.Context, job *models.Job) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO jobs (id, owner_id, kind, status, total_items, processed_items, input, output, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, '[]'::jsonb, $8, $9)`,
		job.ID, job.OwnerID, job.Kind, job.Status, job.TotalItems, job.ProcessedItems,
		job.Input, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetJob(ctx context.Context, id uuid.UUID, ownerID uuid.UUID) (*models.Job, error) {
	j, err := scanJob(s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = $1 AND owner_id = $2`, id, ownerID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return j, nil
}

func (s *PostgresStore) ListJobs(ctx context.Context, ownerID uuid.UUID) ([]*models.Job, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE owner_id = $1 ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

var validTransitions = map[string][]string{
	models.JobStatusPending:    {models.JobStatusProcessing, models.JobStatusFailed},
	models.JobStatusProcessing: {models.JobStatusCompleted, models.JobStatusFailed},
}

func (s *PostgresStore) TransitionJob(ctx context.Context, id uuid.UUID, expectedStatus, newStatus string, opts ...JobUpdateOption) (*models.Job, error) {
	allowed := false
	for _, next := range validTransitions[expectedStatus] {
		if next == newStatus {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, fmt.Errorf("invalid job status transition: %s -> %s", expectedStatus, newStatus)
	}

	params := &jobUpdateParams{}
	for _, opt := range opts {
		opt(params)
	}

	sets := []string{"status = $3", "updated_at = NOW()"}
	args := []any{id, expectedStatus, newStatus}
	argIdx := 4

	if newStatus == models.JobStatusProcessing {
		sets = append(sets, "started_at = NOW()")
	}
	if newStatus == models.JobStatusCompleted || newStatus == models.JobStatusFailed {
		sets = append(sets, "completed_at = NOW()")
	}
	if params.ErrorMessage != nil {
		sets = append(sets, fmt.Sprintf("error_message = $%d", argIdx))
		args = append(args, *params.ErrorMessage)
		argIdx++
	}

	// The status guard in the WHERE clause is the only mutual exclusion in
	// the pipeline: whichever caller wins the conditional update owns the job.
	query := fmt.Sprintf(
		`UPDATE jobs SET %s WHERE id = $1 AND status = $2 RETURNING `+jobColumns,
		strings.Join(sets, ", "))

	j, err := scanJob(s.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, s.jobMissOrConflict(ctx, id)
	}
	if err != nil {
		return nil, fmt.Errorf("transition job: %w", err)
	}
	return j, nil
}

func (s *PostgresStore) AppendJobProgress(ctx context.Context, id uuid.UUID, result models.ItemResult) (*models.Job, error) {
	entry, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("marshal item result: %w", err)
	}
	// Containment probe used as the at-most-once-per-item guard.
	probe, err := json.Marshal([]map[string]uuid.UUID{{"item_id": result.ItemID}})
	if err != nil {
		return nil, fmt.Errorf("marshal item probe: %w", err)
	}

	// Single statement so concurrent item tasks increment-and-append without
	// a read-modify-write race.
	j, err := scanJob(s.pool.QueryRow(ctx,
		`UPDATE jobs
		 SET processed_items = processed_items + 1,
		     output = output || jsonb_build_array($2::jsonb),
		     updated_at = NOW()
		 WHERE id = $1 AND NOT output @> $3::jsonb
		 RETURNING `+jobColumns,
		id, string(entry), string(probe)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, s.jobMissOrConflict(ctx, id)
	}
	if err != nil {
		return nil, fmt.Errorf("append job progress: %w", err)
	}
	return j, nil
}

// jobMissOrConflict disambiguates a zero-row conditional update: the job is
// either absent or its current state rejected the write.
func (s *PostgresStore) jobMissOrConflict(ctx context.Context, id uuid.UUID) error {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM jobs WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check job existence: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	return ErrConflict
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}
