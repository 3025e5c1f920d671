package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"

	"github.com/devyljin/jintranet-back/internal/models"
	"github.com/devyljin/jintranet-back/internal/repository"
	"github.com/devyljin/jintranet-back/internal/utils"
)

type ChannelHTTP struct {
	channels repository.ChannelRepository
}

func NewChannelHTTP(channels repository.ChannelRepository) *ChannelHTTP {
	return &ChannelHTTP{channels: channels}
}

// GET /api/v1/chat/channels — root channels only.
func (h *ChannelHTTP) List() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roots, err := h.channels.ListRoots(r.Context())
		if err != nil {
			utils.Error(w, http.StatusInternalServerError, err.Error())
			return
		}
		if roots == nil {
			roots = []models.ChatChannel{}
		}
		utils.JSON(w, http.StatusOK, roots)
	}
}

// POST /api/v1/chat/channels
func (h *ChannelHTTP) Create() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			Name       string `json:"name"`
			Visibility string `json:"visibility"`
			Parent     string `json:"parent"`
		}
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			utils.Error(w, http.StatusBadRequest, "invalid json")
			return
		}

		ch := &models.ChatChannel{
			Name:       strings.TrimSpace(in.Name),
			Visibility: in.Visibility,
			Status:     "online",
		}
		if ch.Name == "" {
			ch.Name = "New Topic"
		}
		if ch.Visibility != "public" {
			ch.Visibility = "private"
		}

		// Parent is resolved by id; an unknown parent yields a root
		// channel rather than an error, matching the lenient create.
		if in.Parent != "" {
			if parent, err := h.channels.Get(r.Context(), in.Parent); err == nil && parent != nil {
				ch.ParentID = parent.ID
			}
		}

		if err := h.channels.Create(r.Context(), ch); err != nil {
			utils.Error(w, http.StatusInternalServerError, err.Error())
			return
		}
		utils.JSON(w, http.StatusCreated, ch)
	}
}

// GET /api/v1/chat/channels/{id}
func (h *ChannelHTTP) Get() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		ch, err := h.channels.Get(r.Context(), id)
		if err != nil {
			utils.Error(w, http.StatusInternalServerError, err.Error())
			return
		}
		if ch == nil {
			utils.Error(w, http.StatusNotFound, "channel not found")
			return
		}
		utils.JSON(w, http.StatusOK, ch)
	}
}

// DELETE /api/v1/chat/channels/{id} — messages cascade.
func (h *ChannelHTTP) Delete() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := h.channels.Delete(r.Context(), id); err != nil {
			if err == pgx.ErrNoRows {
				utils.Error(w, http.StatusNotFound, "channel not found")
				return
			}
			utils.Error(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// POST /api/v1/chat/channels/{id}/messages
func (h *ChannelHTTP) AddMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var in struct {
			Content string `json:"content"`
		}
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			utils.Error(w, http.StatusBadRequest, "invalid json")
			return
		}
		in.Content = strings.TrimSpace(in.Content)
		if in.Content == "" {
			utils.Error(w, http.StatusBadRequest, "content is required")
			return
		}

		ch, err := h.channels.Get(r.Context(), id)
		if err != nil {
			utils.Error(w, http.StatusInternalServerError, err.Error())
			return
		}
		if ch == nil {
			utils.Error(w, http.StatusNotFound, "channel not found")
			return
		}

		m, err := h.channels.AddMessage(r.Context(), id, in.Content)
		if err != nil {
			utils.Error(w, http.StatusInternalServerError, err.Error())
			return
		}
		utils.JSON(w, http.StatusCreated, m)
	}
}
