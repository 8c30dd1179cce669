package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/martinslabber/tape-library-robot-control/internal/command"
)

var actionRoutes = []string{"load", "unload", "transfer", "move", "scan", "park"}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		WriteCommandError(w, &command.Error{
			Type:        command.ErrTypeMethod,
			Reason:      "nosuch",
			Description: "no such endpoint",
		})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusMethodNotAllowed, ErrorEnvelope{Error: &command.Error{
			Type:        command.ErrTypeMethod,
			Reason:      "notallowed",
			Description: r.Method + " is not allowed here",
		}})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		for _, action := range actionRoutes {
			r.Post("/"+action, s.handleAction(action))
		}

		r.Get("/commands", s.handleCommands)
		r.Get("/commands/{id}", s.handleCommandStatus)
		r.Delete("/commands/{id}", s.handleCommandCancel)

		r.Get("/inventory", s.handleInventory)
		r.Get("/sensors", s.handleSensors)
		r.Get("/config", s.handleConfig)
		r.Get("/state", s.handleState)
		r.Post("/lock", s.handleLock)
		r.Post("/unlock", s.handleUnlock)

		r.Get("/events", s.handleEvents)
	})

	return r
}

// handleAction submits one named action. Parameters arrive as query
// values; the first value of each key is used.
func (s *Server) handleAction(action string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params := make(map[string]string)
		for key, values := range r.URL.Query() {
			if len(values) > 0 {
				params[key] = values[0]
			}
		}

		reply, err := s.service.Submit(r.Context(), action, params)
		if err != nil {
			writeError(w, err)
			return
		}
		WriteJSON(w, http.StatusAccepted, reply)
	}
}

// handleCommands lists retained commands, newest first. ?limit= caps the
// count; 0 or absent means the retention window.
func (s *Server) handleCommands(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			WriteCommandError(w, &command.Error{
				Type:        command.ErrTypeParameter,
				Reason:      "undefined",
				Description: "limit must be a non-negative integer",
				Parameter:   "limit",
			})
			return
		}
		limit = n
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"commands": s.service.Recent(limit),
	})
}

func (s *Server) handleCommandStatus(w http.ResponseWriter, r *http.Request) {
	cmd, err := s.service.Status(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, cmd)
}

func (s *Server) handleCommandCancel(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Cancel(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	WriteJSON(w, http.StatusAccepted, map[string]string{"result": "cancelling"})
}

func (s *Server) handleInventory(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"cells": s.service.Inventory(),
	})
}

func (s *Server) handleSensors(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"sensors": s.service.Sensors(),
	})
}

// handleConfig echoes the active configuration, read-only.
func (s *Server) handleConfig(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, s.service.Configuration())
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, s.service.CurrentState())
}

func (s *Server) handleLock(w http.ResponseWriter, r *http.Request) {
	s.service.Lock(r.Context())
	WriteJSON(w, http.StatusOK, map[string]bool{"locked": true})
}

func (s *Server) handleUnlock(w http.ResponseWriter, r *http.Request) {
	s.service.Unlock(r.Context())
	WriteJSON(w, http.StatusOK, map[string]bool{"locked": false})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if err := s.hub.Subscribe(w, r); err != nil {
		s.logger.Warn("event stream ended with error", "error", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"uptimeS": int64(time.Since(s.startTime).Seconds()),
	})
}
