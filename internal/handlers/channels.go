package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/streamhub/backend/internal/response"
)

// ChannelHandler serves channel profiles, subscriptions and watch history.
type ChannelHandler struct {
	Channels ChannelService
}

// Profile handles GET /channel/{username}. GET /channel?username= is accepted too.
func (h ChannelHandler) Profile(w http.ResponseWriter, r *http.Request) error {
	caller, err := currentUser(r)
	if err != nil {
		return err
	}

	username := chi.URLParam(r, "username")
	if username == "" {
		username = r.URL.Query().Get("username")
	}

	profile, err := h.Channels.ChannelProfile(r.Context(), username, caller.ID)
	if err != nil {
		return err
	}

	response.JSON(r.Context(), w, http.StatusOK, profile, "User channel fetched successfully")
	return nil
}

// WatchHistory handles GET /watch-history.
func (h ChannelHandler) WatchHistory(w http.ResponseWriter, r *http.Request) error {
	caller, err := currentUser(r)
	if err != nil {
		return err
	}

	entries, err := h.Channels.WatchHistory(r.Context(), caller.ID)
	if err != nil {
		return err
	}

	response.JSON(r.Context(), w, http.StatusOK, entries, "Watch history fetched successfully")
	return nil
}

// RecordWatch handles POST /watch-history/{videoId}.
func (h ChannelHandler) RecordWatch(w http.ResponseWriter, r *http.Request) error {
	caller, err := currentUser(r)
	if err != nil {
		return err
	}

	if err := h.Channels.RecordWatch(r.Context(), caller.ID, chi.URLParam(r, "videoId")); err != nil {
		return err
	}

	response.JSON(r.Context(), w, http.StatusCreated, struct{}{}, "Video added to watch history")
	return nil
}

// Subscribe handles POST /channel/{username}/subscribe.
func (h ChannelHandler) Subscribe(w http.ResponseWriter, r *http.Request) error {
	caller, err := currentUser(r)
	if err != nil {
		return err
	}

	if err := h.Channels.Subscribe(r.Context(), caller.ID, chi.URLParam(r, "username")); err != nil {
		return err
	}

	response.JSON(r.Context(), w, http.StatusOK, struct{}{}, "Subscribed successfully")
	return nil
}

// Unsubscribe handles DELETE /channel/{username}/subscribe.
func (h ChannelHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) error {
	caller, err := currentUser(r)
	if err != nil {
		return err
	}

	if err := h.Channels.Unsubscribe(r.Context(), caller.ID, chi.URLParam(r, "username")); err != nil {
		return err
	}

	response.JSON(r.Context(), w, http.StatusOK, struct{}{}, "Unsubscribed successfully")
	return nil
}
