package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/onurdev/diagnosys/internal/core/domain"
)

// profileCacheTTL bounds how stale a cached allergy list may get. Profiles
// change rarely; interaction checks read them on every request.
const profileCacheTTL = 5 * time.Minute

type cachedProfile struct {
	profile domain.Profile
	fetched time.Time
}

type ProfileRepository struct {
	db *sql.DB

	mu    sync.RWMutex
	cache map[string]cachedProfile
	now   func() time.Time
}

func NewProfileRepository(db *sql.DB) *ProfileRepository {
	return &ProfileRepository{
		db:    db,
		cache: make(map[string]cachedProfile),
		now:   time.Now,
	}
}

func (r *ProfileRepository) Get(ctx context.Context, userID string) (*domain.Profile, error) {
	if cached, ok := r.lookup(userID); ok {
		return cached, nil
	}

	row := r.db.QueryRowContext(ctx, `
SELECT user_id, allergies, updated_at
FROM profiles
WHERE user_id = $1
`, userID)

	var profile domain.Profile
	var allergiesRaw []byte
	err := row.Scan(&profile.UserID, &allergiesRaw, &profile.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get profile", fmt.Errorf("profile %s", userID))
		}
		return nil, fmt.Errorf("scan profile: %w", err)
	}
	if err := json.Unmarshal(allergiesRaw, &profile.Allergies); err != nil {
		return nil, fmt.Errorf("unmarshal allergies: %w", err)
	}

	r.store(profile)
	return &profile, nil
}

func (r *ProfileRepository) Upsert(ctx context.Context, profile *domain.Profile) error {
	allergiesJSON, err := json.Marshal(profile.Allergies)
	if err != nil {
		return fmt.Errorf("marshal allergies: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO profiles (user_id, allergies, updated_at)
VALUES ($1, $2, $3)
ON CONFLICT (user_id) DO UPDATE SET allergies = $2, updated_at = $3
`, profile.UserID, allergiesJSON, profile.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}

	r.invalidate(profile.UserID)
	return nil
}

func (r *ProfileRepository) lookup(userID string) (*domain.Profile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.cache[userID]
	if !ok || r.now().Sub(entry.fetched) > profileCacheTTL {
		return nil, false
	}
	copied := entry.profile
	copied.Allergies = append([]string(nil), entry.profile.Allergies...)
	return &copied, true
}

func (r *ProfileRepository) store(profile domain.Profile) {
	profile.Allergies = append([]string(nil), profile.Allergies...)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache[profile.UserID] = cachedProfile{profile: profile, fetched: r.now()}
}

func (r *ProfileRepository) invalidate(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cache, userID)
}
