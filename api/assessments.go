package api

import (
	"encoding/json"
	"net/http"

	"github.com/ascenthq/ascent/pkg/apperr"
	"github.com/ascenthq/ascent/pkg/models"
	"github.com/ascenthq/ascent/pkg/repository"
	"github.com/gorilla/mux"
)

type AssessmentsHandler struct {
	results     repository.AssessmentRepo
	invitations repository.InvitationRepo
}

func NewAssessmentsHandler(results repository.AssessmentRepo, invitations repository.InvitationRepo) *AssessmentsHandler {
	return &AssessmentsHandler{results: results, invitations: invitations}
}

// GetResult returns the stored submission for a share id.
func (h *AssessmentsHandler) GetResult(w http.ResponseWriter, r *http.Request) {
	result, err := h.lookup(r)
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, result, http.StatusOK)
}

type unifiedParticipant struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type unifiedResult struct {
	ShareID         string              `json:"share_id"`
	ToolID          string              `json:"tool_id"`
	ToolName        string              `json:"tool_name"`
	CompletedAt     int64               `json:"completed_at"`
	Participant     *unifiedParticipant `json:"participant,omitempty"`
	Scores          json.RawMessage     `json:"scores"`
	Summary         string              `json:"summary,omitempty"`
	Insights        []string            `json:"insights,omitempty"`
	Recommendations []string            `json:"recommendations,omitempty"`
}

// GetUnifiedResult returns the result in the report shape consumed by the
// sharing UI: tool metadata, participant identity and scores, without the
// raw response payload.
func (h *AssessmentsHandler) GetUnifiedResult(w http.ResponseWriter, r *http.Request) {
	result, err := h.lookup(r)
	if err != nil {
		respondError(w, err)
		return
	}

	unified := unifiedResult{
		ShareID:         result.ShareID,
		ToolID:          result.ToolID,
		ToolName:        result.ToolName,
		CompletedAt:     result.CompletedAt,
		Scores:          result.Scores,
		Summary:         result.Summary,
		Insights:        result.Insights,
		Recommendations: result.Recommendations,
	}

	inv, err := h.invitations.GetInvitationByID(r.Context(), result.InvitationID)
	if err != nil {
		respondError(w, err)
		return
	}
	if inv != nil {
		unified.Participant = &unifiedParticipant{Email: inv.Email, Name: inv.Name}
	}

	writeJSON(w, unified, http.StatusOK)
}

func (h *AssessmentsHandler) lookup(r *http.Request) (*models.AssessmentResult, error) {
	shareID := mux.Vars(r)["shareID"]
	result, err := h.results.GetResultByShareID(r.Context(), shareID)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, apperr.New(apperr.KindNotFound, "result not found")
	}
	return result, nil
}
