// Package profiles assembles the read-mostly channel and watch-history views
// from the user, subscription and video repositories.
package profiles

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/streamhub/backend/internal/apperr"
	"github.com/streamhub/backend/internal/logging"
	"github.com/streamhub/backend/internal/models"
	"github.com/streamhub/backend/internal/repositories"
)

// Aggregator joins users, subscriptions and videos in application code.
type Aggregator struct {
	users         repositories.UserRepository
	subscriptions repositories.SubscriptionRepository
	videos        repositories.VideoRepository
	now           func() time.Time
}

// NewAggregator wires the repositories the aggregator reads from.
func NewAggregator(users repositories.UserRepository, subscriptions repositories.SubscriptionRepository, videos repositories.VideoRepository) *Aggregator {
	return &Aggregator{
		users:         users,
		subscriptions: subscriptions,
		videos:        videos,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// ChannelProfile returns the public view of the channel named username, as
// seen by callerID. An empty callerID is never subscribed.
func (a *Aggregator) ChannelProfile(ctx context.Context, username, callerID string) (models.ChannelProfile, error) {
	ctx, span := logging.StartSpan(ctx, "profiles.channel")
	defer span.End()

	channel, err := a.findChannel(ctx, username)
	if err != nil {
		return models.ChannelProfile{}, err
	}

	subscribers, err := a.subscriptions.CountSubscribers(ctx, channel.ID)
	if err != nil {
		return models.ChannelProfile{}, a.internal(ctx, "count subscribers", err)
	}

	subscribedTo, err := a.subscriptions.CountSubscriptions(ctx, channel.ID)
	if err != nil {
		return models.ChannelProfile{}, a.internal(ctx, "count subscriptions", err)
	}

	var isSubscribed bool
	if callerID != "" {
		isSubscribed, err = a.subscriptions.Exists(ctx, callerID, channel.ID)
		if err != nil {
			return models.ChannelProfile{}, a.internal(ctx, "check subscription", err)
		}
	}

	return models.ChannelProfile{
		FullName:          channel.FullName,
		Username:          channel.Username,
		Email:             channel.Email,
		AvatarURL:         channel.AvatarURL,
		CoverImageURL:     channel.CoverImageURL,
		SubscribersCount:  subscribers,
		SubscribedToCount: subscribedTo,
		IsSubscribed:      isSubscribed,
	}, nil
}

// WatchHistory resolves the user's watch history into videos enriched with
// their owner's summary. Stored order and duplicates are kept; entries whose
// video no longer exists are dropped.
func (a *Aggregator) WatchHistory(ctx context.Context, userID string) ([]models.WatchHistoryEntry, error) {
	ctx, span := logging.StartSpan(ctx, "profiles.watch_history")
	defer span.End()

	ids, err := a.users.WatchHistory(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperr.NotFound("User not found")
		}
		return nil, a.internal(ctx, "load watch history", err)
	}

	entries := make([]models.WatchHistoryEntry, 0, len(ids))
	if len(ids) == 0 {
		return entries, nil
	}

	videos, err := a.videos.FindByIDs(ctx, unique(ids))
	if err != nil {
		return nil, a.internal(ctx, "load watched videos", err)
	}

	byID := make(map[string]models.Video, len(videos))
	ownerIDs := make([]string, 0, len(videos))
	for _, v := range videos {
		byID[v.ID] = v
		ownerIDs = append(ownerIDs, v.OwnerID)
	}

	summaries, err := a.users.FindSummaries(ctx, unique(ownerIDs))
	if err != nil {
		return nil, a.internal(ctx, "load video owners", err)
	}

	owners := make(map[string]models.OwnerSummary, len(summaries))
	for _, s := range summaries {
		owners[s.ID] = s.OwnerSummary
	}

	for _, id := range ids {
		video, ok := byID[id]
		if !ok {
			continue
		}
		entries = append(entries, models.WatchHistoryEntry{Video: video, Owner: owners[video.OwnerID]})
	}

	return entries, nil
}

// Subscribe makes subscriberID follow the channel named username. Repeating
// the call is harmless.
func (a *Aggregator) Subscribe(ctx context.Context, subscriberID, username string) error {
	channel, err := a.findChannel(ctx, username)
	if err != nil {
		return err
	}
	if channel.ID == subscriberID {
		return apperr.Validation("Cannot subscribe to your own channel")
	}

	err = a.subscriptions.Create(ctx, models.Subscription{
		ID:           uuid.NewString(),
		SubscriberID: subscriberID,
		ChannelID:    channel.ID,
		CreatedAt:    a.now(),
	})
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return apperr.NotFound("User not found")
		}
		return a.internal(ctx, "create subscription", err)
	}
	return nil
}

// Unsubscribe removes the edge from subscriberID to the channel named username.
func (a *Aggregator) Unsubscribe(ctx context.Context, subscriberID, username string) error {
	channel, err := a.findChannel(ctx, username)
	if err != nil {
		return err
	}

	if err := a.subscriptions.Delete(ctx, subscriberID, channel.ID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return apperr.NotFound("Subscription not found")
		}
		return a.internal(ctx, "delete subscription", err)
	}
	return nil
}

// RecordWatch appends videoID to the user's watch history.
func (a *Aggregator) RecordWatch(ctx context.Context, userID, videoID string) error {
	if strings.TrimSpace(videoID) == "" {
		return apperr.Validation("Video id is required")
	}

	if err := a.users.AppendWatchHistory(ctx, userID, videoID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return apperr.NotFound("Video not found")
		}
		return a.internal(ctx, "record watch", err)
	}
	return nil
}

func (a *Aggregator) findChannel(ctx context.Context, username string) (models.User, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		return models.User{}, apperr.Validation("Username is missing")
	}

	channel, err := a.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.User{}, apperr.NotFound("Channel does not exist")
		}
		return models.User{}, a.internal(ctx, "load channel", err)
	}
	return channel, nil
}

func (a *Aggregator) internal(ctx context.Context, op string, err error) error {
	logging.FromContext(ctx).Error("profile operation failed", slog.String("op", op), slog.Any("error", err))
	return apperr.Internal("Something went wrong", err)
}

func unique(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
