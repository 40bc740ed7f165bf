package worker

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/thebtf/devdeck/pkg/models"
)

type createTerminalRequest struct {
	ProjectID string `json:"projectId"`
	Name      string `json:"name"`
}

type renameTerminalRequest struct {
	Name string `json:"name"`
}

type executeRequest struct {
	Command string `json:"command"`
}

type explainRequest struct {
	Index *int `json:"index"`
}

// handleListTerminals returns the sessions of the current project.
func (s *Service) handleListTerminals(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.terminals.List(r.Context(), r.URL.Query().Get("projectId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (s *Service) handleCreateTerminal(w http.ResponseWriter, r *http.Request) {
	var req createTerminalRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.ProjectID == "" {
		req.ProjectID = r.URL.Query().Get("projectId")
	}

	session, err := s.terminals.Create(r.Context(), req.ProjectID, req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (s *Service) handleGetTerminal(w http.ResponseWriter, r *http.Request) {
	session, err := s.terminals.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *Service) handleRenameTerminal(w http.ResponseWriter, r *http.Request) {
	var req renameTerminalRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	session, err := s.terminals.Rename(r.Context(), chi.URLParam(r, "id"), req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// handleDeleteTerminal always reports success, whether or not the session existed.
func (s *Service) handleDeleteTerminal(w http.ResponseWriter, r *http.Request) {
	if err := s.terminals.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// handleExecute runs a command in a session and returns the updated session.
func (s *Service) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Command == "" {
		writeError(w, r, fmt.Errorf("%w: command is required", models.ErrValidation))
		return
	}

	session, err := s.terminals.Execute(r.Context(), chi.URLParam(r, "id"), req.Command)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *Service) handleClearTerminal(w http.ResponseWriter, r *http.Request) {
	session, err := s.terminals.ClearHistory(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// handleExplain asks the assistant about one execution, the latest by default.
func (s *Service) handleExplain(w http.ResponseWriter, r *http.Request) {
	var req explainRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	session, err := s.terminals.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	text, err := s.assistant.ExplainExecution(r.Context(), session, req.Index)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"text": text})
}
