package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"barqpix-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres implements Store on top of a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// --- Users ---

func (p *Postgres) CreateUser(ctx context.Context, u *models.User) error {
	query := `INSERT INTO users (id, email, display_name, password_hash, created_at) VALUES ($1, $2, $3, $4, $5)`
	_, err := p.pool.Exec(ctx, query, u.ID, u.Email, u.DisplayName, u.PasswordHash, u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (p *Postgres) GetUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	query := `SELECT id, email, display_name, password_hash, created_at FROM users WHERE id = $1`
	err := p.pool.QueryRow(ctx, query, id).Scan(&u.ID, &u.Email, &u.DisplayName, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

func (p *Postgres) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	query := `SELECT id, email, display_name, password_hash, created_at FROM users WHERE email = $1`
	err := p.pool.QueryRow(ctx, query, email).Scan(&u.ID, &u.Email, &u.DisplayName, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

// --- Events ---

func (p *Postgres) CreateEvent(ctx context.Context, e *models.Event) error {
	query := `INSERT INTO events (id, organizer_id, title, description, location, starts_at, ends_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := p.pool.Exec(ctx, query, e.ID, e.OrganizerID, e.Title, e.Description, e.Location, e.StartsAt, e.EndsAt, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}
	return nil
}

func (p *Postgres) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	var e models.Event
	query := `SELECT id, organizer_id, title, description, location, starts_at, ends_at, created_at FROM events WHERE id = $1`
	err := p.pool.QueryRow(ctx, query, id).Scan(&e.ID, &e.OrganizerID, &e.Title, &e.Description, &e.Location, &e.StartsAt, &e.EndsAt, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return &e, nil
}

func (p *Postgres) ListEventsByOrganizer(ctx context.Context, organizerID string) ([]models.Event, error) {
	query := `SELECT id, organizer_id, title, description, location, starts_at, ends_at, created_at
		FROM events WHERE organizer_id = $1 ORDER BY created_at DESC`
	rows, err := p.pool.Query(ctx, query, organizerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		var e models.Event
		if err := rows.Scan(&e.ID, &e.OrganizerID, &e.Title, &e.Description, &e.Location, &e.StartsAt, &e.EndsAt, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (p *Postgres) UpdateEvent(ctx context.Context, e *models.Event) error {
	query := `UPDATE events SET title = $2, description = $3, location = $4, starts_at = $5, ends_at = $6 WHERE id = $1`
	tag, err := p.pool.Exec(ctx, query, e.ID, e.Title, e.Description, e.Location, e.StartsAt, e.EndsAt)
	if err != nil {
		return fmt.Errorf("failed to update event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) DeleteEvent(ctx context.Context, id string) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM qr_tokens WHERE target_type = 'event' AND target_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete event tokens: %w", err)
	}
	tag, err := tx.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return tx.Commit(ctx)
}

// --- QR tokens ---

const tokenColumns = `id, target_type, target_id, quick_id, title, created_at, expires_at, scan_count`

func scanToken(row pgx.Row) (*models.QRToken, error) {
	var t models.QRToken
	err := row.Scan(&t.ID, &t.TargetType, &t.TargetID, &t.QuickID, &t.Title, &t.CreatedAt, &t.ExpiresAt, &t.ScanCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan token: %w", err)
	}
	return &t, nil
}

func (p *Postgres) CreateToken(ctx context.Context, t *models.QRToken) error {
	query := `INSERT INTO qr_tokens (` + tokenColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := p.pool.Exec(ctx, query, t.ID, t.TargetType, t.TargetID, t.QuickID, t.Title, t.CreatedAt, t.ExpiresAt, t.ScanCount)
	if err != nil {
		return fmt.Errorf("failed to create token: %w", err)
	}
	return nil
}

func (p *Postgres) CreateQuickShare(ctx context.Context, t *models.QRToken, s *models.QuickSession) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `INSERT INTO qr_tokens (` + tokenColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err := tx.Exec(ctx, query, t.ID, t.TargetType, t.TargetID, t.QuickID, t.Title, t.CreatedAt, t.ExpiresAt, t.ScanCount); err != nil {
		return fmt.Errorf("failed to create quick token: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO quick_sessions (quick_id, token_id, created_by, created_at) VALUES ($1, $2, $3, $4)`,
		s.QuickID, s.TokenID, s.CreatedBy, s.CreatedAt); err != nil {
		return fmt.Errorf("failed to create quick session: %w", err)
	}
	return tx.Commit(ctx)
}

func (p *Postgres) GetToken(ctx context.Context, tokenOrQuickID string) (*models.QRToken, error) {
	query := `SELECT ` + tokenColumns + ` FROM qr_tokens WHERE id::text = $1 OR quick_id::text = $1`
	return scanToken(p.pool.QueryRow(ctx, query, tokenOrQuickID))
}

func (p *Postgres) DeleteToken(ctx context.Context, tokenID string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM qr_tokens WHERE id = $1`, tokenID)
	if err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) IncrementScanCount(ctx context.Context, tokenID string, entry models.ScanLog) (*models.QRToken, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// In-place increment: concurrent scans serialize on the row, none lost.
	query := `UPDATE qr_tokens SET scan_count = scan_count + 1 WHERE id = $1 RETURNING ` + tokenColumns
	t, err := scanToken(tx.QueryRow(ctx, query, tokenID))
	if err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO scan_logs (token_id, scanner_id, scanner_name, scanned_at) VALUES ($1, $2, $3, $4)`,
		tokenID, entry.ScannerID, entry.ScannerName, entry.ScannedAt); err != nil {
		return nil, fmt.Errorf("failed to record scan: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit scan: %w", err)
	}
	return t, nil
}

// --- Quick sessions ---

func (p *Postgres) GetQuickSession(ctx context.Context, quickID string) (*models.QuickSession, error) {
	var s models.QuickSession
	query := `SELECT quick_id, token_id, created_by, created_at FROM quick_sessions WHERE quick_id = $1`
	err := p.pool.QueryRow(ctx, query, quickID).Scan(&s.QuickID, &s.TokenID, &s.CreatedBy, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &s, nil
}

func (p *Postgres) ExpiredQuickSessions(ctx context.Context, now time.Time) ([]models.QuickSession, error) {
	query := `SELECT s.quick_id, s.token_id, s.created_by, s.created_at
		FROM quick_sessions s
		JOIN qr_tokens t ON t.id = s.token_id
		WHERE t.expires_at IS NOT NULL AND t.expires_at < $1`
	rows, err := p.pool.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query expired sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.QuickSession
	for rows.Next() {
		var s models.QuickSession
		if err := rows.Scan(&s.QuickID, &s.TokenID, &s.CreatedBy, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func (p *Postgres) DeleteQuickShare(ctx context.Context, quickID string) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM photos WHERE quick_id = $1`, quickID); err != nil {
		return fmt.Errorf("failed to delete session photos: %w", err)
	}
	var tokenID string
	err = tx.QueryRow(ctx, `DELETE FROM quick_sessions WHERE quick_id = $1 RETURNING token_id`, quickID).Scan(&tokenID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM qr_tokens WHERE id = $1`, tokenID); err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return tx.Commit(ctx)
}

// --- Photos ---

const photoColumns = `id, quick_id, event_id, uploader_id, uploader_name, filename, url, thumb_url, caption, tags, uploaded_at`

func scanPhoto(row pgx.Row) (*models.Photo, error) {
	var ph models.Photo
	err := row.Scan(&ph.ID, &ph.QuickID, &ph.EventID, &ph.UploaderID, &ph.UploaderName,
		&ph.Filename, &ph.URL, &ph.ThumbURL, &ph.Caption, &ph.Tags, &ph.UploadedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan photo: %w", err)
	}
	return &ph, nil
}

func (p *Postgres) InsertPhoto(ctx context.Context, ph *models.Photo) error {
	query := `INSERT INTO photos (` + photoColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := p.pool.Exec(ctx, query, ph.ID, ph.QuickID, ph.EventID, ph.UploaderID, ph.UploaderName,
		ph.Filename, ph.URL, ph.ThumbURL, ph.Caption, ph.Tags, ph.UploadedAt)
	if err != nil {
		return fmt.Errorf("failed to insert photo: %w", err)
	}
	return nil
}

func (p *Postgres) GetPhoto(ctx context.Context, id string) (*models.Photo, error) {
	query := `SELECT ` + photoColumns + ` FROM photos WHERE id = $1`
	return scanPhoto(p.pool.QueryRow(ctx, query, id))
}

func (p *Postgres) DeletePhoto(ctx context.Context, id string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM photos WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete photo: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) listPhotos(ctx context.Context, column, id string, limit, offset int) (*models.PhotoPage, error) {
	var total int
	if err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM photos WHERE `+column+` = $1`, id).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count photos: %w", err)
	}

	query := `SELECT ` + photoColumns + ` FROM photos WHERE ` + column + ` = $1 ORDER BY uploaded_at DESC LIMIT $2 OFFSET $3`
	rows, err := p.pool.Query(ctx, query, id, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list photos: %w", err)
	}
	defer rows.Close()

	page := &models.PhotoPage{Photos: []models.Photo{}, Total: total, Limit: limit, Offset: offset}
	for rows.Next() {
		ph, err := scanPhoto(rows)
		if err != nil {
			return nil, err
		}
		page.Photos = append(page.Photos, *ph)
	}
	return page, rows.Err()
}

func (p *Postgres) ListQuickPhotos(ctx context.Context, quickID string, limit, offset int) (*models.PhotoPage, error) {
	return p.listPhotos(ctx, "quick_id", quickID, limit, offset)
}

func (p *Postgres) ListEventPhotos(ctx context.Context, eventID string, limit, offset int) (*models.PhotoPage, error) {
	return p.listPhotos(ctx, "event_id", eventID, limit, offset)
}

func (p *Postgres) sessionPhotos(ctx context.Context, column, id string) ([]models.Photo, error) {
	query := `SELECT ` + photoColumns + ` FROM photos WHERE ` + column + ` = $1`
	rows, err := p.pool.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list photos: %w", err)
	}
	defer rows.Close()

	var photos []models.Photo
	for rows.Next() {
		ph, err := scanPhoto(rows)
		if err != nil {
			return nil, err
		}
		photos = append(photos, *ph)
	}
	return photos, rows.Err()
}

func (p *Postgres) SessionPhotos(ctx context.Context, quickID string) ([]models.Photo, error) {
	return p.sessionPhotos(ctx, "quick_id", quickID)
}

func (p *Postgres) EventPhotos(ctx context.Context, eventID string) ([]models.Photo, error) {
	return p.sessionPhotos(ctx, "event_id", eventID)
}

func (p *Postgres) CountQuickPhotos(ctx context.Context, quickID string) (int, error) {
	var n int
	if err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM photos WHERE quick_id = $1`, quickID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count photos: %w", err)
	}
	return n, nil
}

func (p *Postgres) QuickPhotosOlderThan(ctx context.Context, cutoff time.Time) ([]models.Photo, error) {
	query := `SELECT ` + photoColumns + ` FROM photos WHERE quick_id IS NOT NULL AND uploaded_at < $1`
	rows, err := p.pool.Query(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query old photos: %w", err)
	}
	defer rows.Close()

	var photos []models.Photo
	for rows.Next() {
		ph, err := scanPhoto(rows)
		if err != nil {
			return nil, err
		}
		photos = append(photos, *ph)
	}
	return photos, rows.Err()
}
