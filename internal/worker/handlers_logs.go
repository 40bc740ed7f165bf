package worker

import (
	"net/http"

	"github.com/thebtf/devdeck/internal/db/gorm"
	"github.com/thebtf/devdeck/pkg/models"
)

type createLogRequest struct {
	ProjectID string          `json:"projectId"`
	Level     models.LogLevel `json:"level"`
	Source    string          `json:"source"`
	Message   string          `json:"message"`
}

func (s *Service) handleListLogs(w http.ResponseWriter, r *http.Request) {
	project, err := s.projectStore.ResolveProject(r.Context(), r.URL.Query().Get("projectId"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	logs, err := s.logStore.ListLogs(r.Context(), project.ID, gorm.ParseLimitParam(r, gorm.DefaultLogLimit))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

func (s *Service) handleCreateLog(w http.ResponseWriter, r *http.Request) {
	var req createLogRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.ProjectID == "" {
		req.ProjectID = r.URL.Query().Get("projectId")
	}

	project, err := s.projectStore.ResolveProject(r.Context(), req.ProjectID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	entry, err := s.logStore.CreateLog(r.Context(), &models.ConsoleLog{
		ProjectID: project.ID,
		Level:     req.Level,
		Source:    req.Source,
		Message:   req.Message,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.broadcaster.Broadcast(models.LogCreated(entry))
	writeJSON(w, http.StatusCreated, entry)
}

func (s *Service) handleClearLogs(w http.ResponseWriter, r *http.Request) {
	project, err := s.projectStore.ResolveProject(r.Context(), r.URL.Query().Get("projectId"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	deleted, err := s.logStore.ClearLogs(r.Context(), project.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "deleted": deleted})
}
