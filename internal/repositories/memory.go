package repositories

import (
	"context"
	"sync"
	"time"

	"github.com/streamhub/backend/internal/models"
)

// MemoryStore keeps users, videos, subscriptions and watch history in process
// memory. It mirrors the constraints of the SQL schema so handler and
// profile tests run without a database.
type MemoryStore struct {
	mu      sync.RWMutex
	users   map[string]models.User
	videos  map[string]models.Video
	subs    map[[2]string]models.Subscription
	history map[string][]string
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:   make(map[string]models.User),
		videos:  make(map[string]models.Video),
		subs:    make(map[[2]string]models.Subscription),
		history: make(map[string][]string),
	}
}

// Users returns a UserRepository view of the store.
func (s *MemoryStore) Users() *MemoryUserRepository { return &MemoryUserRepository{s: s} }

// Subscriptions returns a SubscriptionRepository view of the store.
func (s *MemoryStore) Subscriptions() *MemorySubscriptionRepository {
	return &MemorySubscriptionRepository{s: s}
}

// Videos returns a VideoRepository view of the store.
func (s *MemoryStore) Videos() *MemoryVideoRepository { return &MemoryVideoRepository{s: s} }

// MemoryUserRepository implements UserRepository on a MemoryStore.
type MemoryUserRepository struct{ s *MemoryStore }

// Create inserts user, rejecting a duplicate id, username or email with ErrConflict.
func (r *MemoryUserRepository) Create(_ context.Context, user models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.users[user.ID]; exists {
		return ErrConflict
	}
	for _, existing := range r.s.users {
		if existing.Username == user.Username || existing.Email == user.Email {
			return ErrConflict
		}
	}
	r.s.users[user.ID] = user
	return nil
}

// FindByID returns the user with id or ErrNotFound.
func (r *MemoryUserRepository) FindByID(_ context.Context, id string) (models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	user, ok := r.s.users[id]
	if !ok {
		return models.User{}, ErrNotFound
	}
	return user, nil
}

// FindByUsername returns the user with the exact username or ErrNotFound.
func (r *MemoryUserRepository) FindByUsername(_ context.Context, username string) (models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, user := range r.s.users {
		if user.Username == username {
			return user, nil
		}
	}
	return models.User{}, ErrNotFound
}

// FindByUsernameOrEmail matches either non-empty identifier.
func (r *MemoryUserRepository) FindByUsernameOrEmail(_ context.Context, username, email string) (models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, user := range r.s.users {
		if (username != "" && user.Username == username) || (email != "" && user.Email == email) {
			return user, nil
		}
	}
	return models.User{}, ErrNotFound
}

// FindSummaries returns owner summaries for the ids that exist.
func (r *MemoryUserRepository) FindSummaries(_ context.Context, ids []string) ([]models.UserSummary, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []models.UserSummary
	for _, id := range ids {
		if user, ok := r.s.users[id]; ok {
			out = append(out, models.UserSummary{
				ID:           user.ID,
				OwnerSummary: models.OwnerSummary{FullName: user.FullName, Username: user.Username, AvatarURL: user.AvatarURL},
			})
		}
	}
	return out, nil
}

// UpdateAccount sets the full name and email. A taken email is ErrConflict.
func (r *MemoryUserRepository) UpdateAccount(_ context.Context, id, fullName, email string) (models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for otherID, other := range r.s.users {
		if otherID != id && other.Email == email {
			return models.User{}, ErrConflict
		}
	}
	return r.mutate(id, func(u *models.User) {
		u.FullName = fullName
		u.Email = email
	})
}

// UpdatePassword replaces the stored password hash.
func (r *MemoryUserRepository) UpdatePassword(_ context.Context, id, passwordHash string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	_, err := r.mutate(id, func(u *models.User) { u.PasswordHash = passwordHash })
	return err
}

// UpdateAvatar replaces the avatar URL.
func (r *MemoryUserRepository) UpdateAvatar(_ context.Context, id, url string) (models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.mutate(id, func(u *models.User) { u.AvatarURL = url })
}

// UpdateCoverImage replaces the cover image URL.
func (r *MemoryUserRepository) UpdateCoverImage(_ context.Context, id, url string) (models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.mutate(id, func(u *models.User) { u.CoverImageURL = url })
}

// SetRefreshToken overwrites the refresh-token slot.
func (r *MemoryUserRepository) SetRefreshToken(_ context.Context, id, refreshToken string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	user, ok := r.s.users[id]
	if !ok {
		return ErrNotFound
	}
	user.RefreshToken = refreshToken
	r.s.users[id] = user
	return nil
}

// SwapRefreshToken replaces current with next only while current is stored and non-empty.
func (r *MemoryUserRepository) SwapRefreshToken(_ context.Context, id, current, next string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	user, ok := r.s.users[id]
	if !ok || current == "" || user.RefreshToken != current {
		return false, nil
	}
	user.RefreshToken = next
	r.s.users[id] = user
	return true, nil
}

// AppendWatchHistory appends videoID. Unknown users or videos are ErrNotFound.
func (r *MemoryUserRepository) AppendWatchHistory(_ context.Context, userID, videoID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[userID]; !ok {
		return ErrNotFound
	}
	if _, ok := r.s.videos[videoID]; !ok {
		return ErrNotFound
	}
	r.s.history[userID] = append(r.s.history[userID], videoID)
	return nil
}

// WatchHistory returns the watched video ids in the order they were recorded.
func (r *MemoryUserRepository) WatchHistory(_ context.Context, userID string) ([]string, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if _, ok := r.s.users[userID]; !ok {
		return nil, ErrNotFound
	}
	return append([]string(nil), r.s.history[userID]...), nil
}

// mutate applies fn to the stored user. Callers hold the write lock.
func (r *MemoryUserRepository) mutate(id string, fn func(*models.User)) (models.User, error) {
	user, ok := r.s.users[id]
	if !ok {
		return models.User{}, ErrNotFound
	}
	fn(&user)
	user.UpdatedAt = time.Now().UTC()
	r.s.users[id] = user
	return user, nil
}

// MemorySubscriptionRepository implements SubscriptionRepository on a MemoryStore.
type MemorySubscriptionRepository struct{ s *MemoryStore }

// Create stores sub. An existing pair is left as is.
func (r *MemorySubscriptionRepository) Create(_ context.Context, sub models.Subscription) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	_, subscriberOK := r.s.users[sub.SubscriberID]
	_, channelOK := r.s.users[sub.ChannelID]
	if !subscriberOK || !channelOK {
		return ErrNotFound
	}
	key := [2]string{sub.SubscriberID, sub.ChannelID}
	if _, exists := r.s.subs[key]; !exists {
		r.s.subs[key] = sub
	}
	return nil
}

// Delete removes the pair or reports ErrNotFound.
func (r *MemorySubscriptionRepository) Delete(_ context.Context, subscriberID, channelID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := [2]string{subscriberID, channelID}
	if _, exists := r.s.subs[key]; !exists {
		return ErrNotFound
	}
	delete(r.s.subs, key)
	return nil
}

// CountSubscribers counts edges pointing at channelID.
func (r *MemorySubscriptionRepository) CountSubscribers(_ context.Context, channelID string) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var n int64
	for key := range r.s.subs {
		if key[1] == channelID {
			n++
		}
	}
	return n, nil
}

// CountSubscriptions counts edges starting at subscriberID.
func (r *MemorySubscriptionRepository) CountSubscriptions(_ context.Context, subscriberID string) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var n int64
	for key := range r.s.subs {
		if key[0] == subscriberID {
			n++
		}
	}
	return n, nil
}

// Exists reports whether subscriberID follows channelID.
func (r *MemorySubscriptionRepository) Exists(_ context.Context, subscriberID, channelID string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	_, ok := r.s.subs[[2]string{subscriberID, channelID}]
	return ok, nil
}

// MemoryVideoRepository implements VideoRepository on a MemoryStore.
type MemoryVideoRepository struct{ s *MemoryStore }

// Create stores video. The owner must exist.
func (r *MemoryVideoRepository) Create(_ context.Context, video models.Video) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[video.OwnerID]; !ok {
		return ErrNotFound
	}
	if _, exists := r.s.videos[video.ID]; exists {
		return ErrConflict
	}
	r.s.videos[video.ID] = video
	return nil
}

// FindByIDs returns the videos that exist, in the order of ids.
func (r *MemoryVideoRepository) FindByIDs(_ context.Context, ids []string) ([]models.Video, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []models.Video
	for _, id := range ids {
		if video, ok := r.s.videos[id]; ok {
			out = append(out, video)
		}
	}
	return out, nil
}

// DeleteVideo removes a video and is used to simulate media removed after it was watched.
func (r *MemoryVideoRepository) DeleteVideo(id string) {
	r.s.mu.Lock()
	delete(r.s.videos, id)
	r.s.mu.Unlock()
}

var _ UserRepository = (*MemoryUserRepository)(nil)
var _ SubscriptionRepository = (*MemorySubscriptionRepository)(nil)
var _ VideoRepository = (*MemoryVideoRepository)(nil)
