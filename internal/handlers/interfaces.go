package handlers

import (
	"context"
	"io"

	"github.com/streamhub/backend/internal/models"
)

// UserStore captures the persistence operations required by the account handlers.
type UserStore interface {
	Create(ctx context.Context, user models.User) error
	FindByID(ctx context.Context, id string) (models.User, error)
	FindByUsernameOrEmail(ctx context.Context, username, email string) (models.User, error)
	UpdateAccount(ctx context.Context, id, fullName, email string) (models.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	UpdateAvatar(ctx context.Context, id, url string) (models.User, error)
	UpdateCoverImage(ctx context.Context, id, url string) (models.User, error)
}

// SessionManager issues, rotates and revokes authentication tokens.
type SessionManager interface {
	IssuePair(ctx context.Context, userID string) (models.SessionTokens, error)
	Rotate(ctx context.Context, refreshToken string) (models.SessionTokens, error)
	Revoke(ctx context.Context, userID string) error
	Authenticate(ctx context.Context, accessToken string) (models.User, error)
}

// PasswordHasher hashes and verifies user passwords.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, hash string) bool
}

// FileSpool stages an incoming upload on local disk.
type FileSpool interface {
	Save(r io.Reader, originalName string) (string, error)
}

// AssetUploader moves a spooled file to hosted storage and returns its URL.
type AssetUploader interface {
	Upload(ctx context.Context, localPath string) (string, error)
}

// ChannelService serves channel profiles, subscriptions and watch history.
type ChannelService interface {
	ChannelProfile(ctx context.Context, username, callerID string) (models.ChannelProfile, error)
	WatchHistory(ctx context.Context, userID string) ([]models.WatchHistoryEntry, error)
	Subscribe(ctx context.Context, subscriberID, username string) error
	Unsubscribe(ctx context.Context, subscriberID, username string) error
	RecordWatch(ctx context.Context, userID, videoID string) error
}
