package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"barqpix-backend/internal/models"
)

// Memory is a mutex-guarded in-memory Store. It backs STORE_DRIVER=memory
// (local development without Postgres) and the test suite. All invariants the
// Postgres implementation gets from transactions are provided here by holding
// the store lock for the whole operation.
type Memory struct {
	mu       sync.RWMutex
	users    map[string]models.User
	events   map[string]models.Event
	tokens   map[string]models.QRToken
	sessions map[string]models.QuickSession
	scans    map[string][]models.ScanLog
	photos   map[string]models.Photo
	scanSeq  int
}

func NewMemory() *Memory {
	return &Memory{
		users:    make(map[string]models.User),
		events:   make(map[string]models.Event),
		tokens:   make(map[string]models.QRToken),
		sessions: make(map[string]models.QuickSession),
		scans:    make(map[string][]models.ScanLog),
		photos:   make(map[string]models.Photo),
	}
}

// --- Users ---

func (m *Memory) CreateUser(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return ErrConflict
		}
	}
	m.users[u.ID] = *u
	return nil
}

func (m *Memory) GetUser(_ context.Context, id string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (m *Memory) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Email == email {
			u := u
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

// --- Events ---

func (m *Memory) CreateEvent(_ context.Context, e *models.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[e.ID] = *e
	return nil
}

func (m *Memory) GetEvent(_ context.Context, id string) (*models.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.events[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &e, nil
}

func (m *Memory) ListEventsByOrganizer(_ context.Context, organizerID string) ([]models.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var events []models.Event
	for _, e := range m.events {
		if e.OrganizerID == organizerID {
			events = append(events, e)
		}
	}
	sort.Slice(events, func(i, j int) bool { return events[i].CreatedAt.After(events[j].CreatedAt) })
	return events, nil
}

func (m *Memory) UpdateEvent(_ context.Context, e *models.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[e.ID]; !ok {
		return ErrNotFound
	}
	m.events[e.ID] = *e
	return nil
}

func (m *Memory) DeleteEvent(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[id]; !ok {
		return ErrNotFound
	}
	delete(m.events, id)
	for tid, t := range m.tokens {
		if t.TargetType == models.TargetEvent && t.TargetID != nil && *t.TargetID == id {
			delete(m.tokens, tid)
			delete(m.scans, tid)
		}
	}
	for pid, ph := range m.photos {
		if ph.EventID != nil && *ph.EventID == id {
			delete(m.photos, pid)
		}
	}
	return nil
}

// --- QR tokens ---

func (m *Memory) CreateToken(_ context.Context, t *models.QRToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[t.ID] = *t
	return nil
}

func (m *Memory) CreateQuickShare(_ context.Context, t *models.QRToken, s *models.QuickSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[t.ID] = *t
	m.sessions[s.QuickID] = *s
	return nil
}

func (m *Memory) GetToken(_ context.Context, tokenOrQuickID string) (*models.QRToken, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.findToken(tokenOrQuickID)
}

// findToken requires the caller to hold at least the read lock.
func (m *Memory) findToken(tokenOrQuickID string) (*models.QRToken, error) {
	if t, ok := m.tokens[tokenOrQuickID]; ok {
		return &t, nil
	}
	for _, t := range m.tokens {
		if t.QuickID != nil && *t.QuickID == tokenOrQuickID {
			t := t
			return &t, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) DeleteToken(_ context.Context, tokenID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tokens[tokenID]; !ok {
		return ErrNotFound
	}
	delete(m.tokens, tokenID)
	delete(m.scans, tokenID)
	return nil
}

func (m *Memory) IncrementScanCount(_ context.Context, tokenID string, entry models.ScanLog) (*models.QRToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[tokenID]
	if !ok {
		return nil, ErrNotFound
	}
	t.ScanCount++
	m.tokens[tokenID] = t
	m.scanSeq++
	entry.ID = m.scanSeq
	entry.TokenID = tokenID
	m.scans[tokenID] = append(m.scans[tokenID], entry)
	return &t, nil
}

// --- Quick sessions ---

func (m *Memory) GetQuickSession(_ context.Context, quickID string) (*models.QuickSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[quickID]
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (m *Memory) ExpiredQuickSessions(_ context.Context, now time.Time) ([]models.QuickSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var sessions []models.QuickSession
	for _, s := range m.sessions {
		t, ok := m.tokens[s.TokenID]
		if ok && t.ExpiresAt != nil && t.ExpiresAt.Before(now) {
			sessions = append(sessions, s)
		}
	}
	return sessions, nil
}

func (m *Memory) DeleteQuickShare(_ context.Context, quickID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[quickID]
	if !ok {
		return ErrNotFound
	}
	for pid, ph := range m.photos {
		if ph.QuickID != nil && *ph.QuickID == quickID {
			delete(m.photos, pid)
		}
	}
	delete(m.sessions, quickID)
	delete(m.tokens, s.TokenID)
	delete(m.scans, s.TokenID)
	return nil
}

// --- Photos ---

func (m *Memory) InsertPhoto(_ context.Context, p *models.Photo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.photos[p.ID] = *p
	return nil
}

func (m *Memory) GetPhoto(_ context.Context, id string) (*models.Photo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.photos[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (m *Memory) DeletePhoto(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.photos[id]; !ok {
		return ErrNotFound
	}
	delete(m.photos, id)
	return nil
}

func (m *Memory) collect(match func(models.Photo) bool) []models.Photo {
	var photos []models.Photo
	for _, p := range m.photos {
		if match(p) {
			photos = append(photos, p)
		}
	}
	sort.Slice(photos, func(i, j int) bool { return photos[i].UploadedAt.After(photos[j].UploadedAt) })
	return photos
}

func (m *Memory) listPage(match func(models.Photo) bool, limit, offset int) *models.PhotoPage {
	all := m.collect(match)
	page := &models.PhotoPage{Photos: []models.Photo{}, Total: len(all), Limit: limit, Offset: offset}
	if offset < len(all) {
		end := offset + limit
		if end > len(all) {
			end = len(all)
		}
		page.Photos = all[offset:end]
	}
	return page
}

func (m *Memory) ListQuickPhotos(_ context.Context, quickID string, limit, offset int) (*models.PhotoPage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listPage(func(p models.Photo) bool { return p.QuickID != nil && *p.QuickID == quickID }, limit, offset), nil
}

func (m *Memory) ListEventPhotos(_ context.Context, eventID string, limit, offset int) (*models.PhotoPage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listPage(func(p models.Photo) bool { return p.EventID != nil && *p.EventID == eventID }, limit, offset), nil
}

func (m *Memory) SessionPhotos(_ context.Context, quickID string) ([]models.Photo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.collect(func(p models.Photo) bool { return p.QuickID != nil && *p.QuickID == quickID }), nil
}

func (m *Memory) EventPhotos(_ context.Context, eventID string) ([]models.Photo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.collect(func(p models.Photo) bool { return p.EventID != nil && *p.EventID == eventID }), nil
}

func (m *Memory) CountQuickPhotos(_ context.Context, quickID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, p := range m.photos {
		if p.QuickID != nil && *p.QuickID == quickID {
			n++
		}
	}
	return n, nil
}

func (m *Memory) QuickPhotosOlderThan(_ context.Context, cutoff time.Time) ([]models.Photo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.collect(func(p models.Photo) bool { return p.QuickID != nil && p.UploadedAt.Before(cutoff) }), nil
}
