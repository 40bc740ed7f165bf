package worker

import (
	"net/http"
)

type generateRequest struct {
	Prompt string `json:"prompt"`
}

// handleGenerate answers a free-form prompt with the configured model.
func (s *Service) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	text, err := s.assistant.Generate(r.Context(), req.Prompt)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"text": text})
}
