package worker

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/thebtf/devdeck/pkg/models"
)

type createProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (s *Service) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.projectStore.ListProjects(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

func (s *Service) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	project, err := s.projectStore.CreateProject(r.Context(), req.Name, req.Description)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.broadcaster.Broadcast(models.ProjectUpdated(project))
	writeJSON(w, http.StatusCreated, project)
}

// handleCurrentProject returns the project selected by ?projectId=, else the
// newest project, creating the default one when none exists.
func (s *Service) handleCurrentProject(w http.ResponseWriter, r *http.Request) {
	project, err := s.projectStore.ResolveProject(r.Context(), r.URL.Query().Get("projectId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (s *Service) handleGetProject(w http.ResponseWriter, r *http.Request) {
	project, err := s.projectStore.GetProject(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

// handleDeleteProject removes a project with its sessions and logs. Unknown
// ids succeed without a notification.
func (s *Service) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	existed, err := s.projectStore.DeleteProject(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if existed {
		s.broadcaster.Broadcast(models.ProjectDeleted(id))
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
