package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/GeorgeStrakhov/briefboarder/pkg/approach"
	"github.com/GeorgeStrakhov/briefboarder/pkg/briefs"
	"github.com/GeorgeStrakhov/briefboarder/pkg/core"
	"github.com/GeorgeStrakhov/briefboarder/pkg/errors"
	"github.com/GeorgeStrakhov/briefboarder/pkg/imagegen"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// briefPayload augments a brief with its derived share URL fragment.
type briefPayload struct {
	*briefs.Brief
	ShareSlug string `json:"shareSlug"`
}

func newBriefPayload(b *briefs.Brief) briefPayload {
	return briefPayload{Brief: b, ShareSlug: b.ShareSlug()}
}

func (s *Server) handleListBriefs(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.ListBriefs(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	payload := make([]briefPayload, 0, len(list))
	for _, b := range list {
		payload = append(payload, newBriefPayload(b))
	}
	s.writeJSON(w, http.StatusOK, payload)
}

type createBriefRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (s *Server) handleCreateBrief(w http.ResponseWriter, r *http.Request) {
	var req createBriefRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		s.writeError(w, r, errors.New(errors.InvalidInput, "brief name is required"))
		return
	}

	b := briefs.New(req.Name, req.Description, time.Now())
	if err := s.store.CreateBrief(r.Context(), b); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, newBriefPayload(b))
}

func (s *Server) handleGetBrief(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := briefs.ValidateID(id); err != nil {
		s.writeError(w, r, err)
		return
	}

	b, err := s.store.GetBrief(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, newBriefPayload(b))
}

// handleGetBriefBySlug accepts both the bare random slug and the pretty
// "name-slug" share form.
func (s *Server) handleGetBriefBySlug(w http.ResponseWriter, r *http.Request) {
	slug, err := briefs.ParseShareSlug(r.PathValue("slug"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	b, err := s.store.GetBriefBySlug(r.Context(), slug)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, newBriefPayload(b))
}

func (s *Server) handleUpdateBrief(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := briefs.ValidateID(id); err != nil {
		s.writeError(w, r, err)
		return
	}

	var params briefs.UpdateParams
	if err := decodeJSON(r, &params); err != nil {
		s.writeError(w, r, err)
		return
	}
	if params.IsEmpty() {
		s.writeError(w, r, errors.New(errors.InvalidInput, "update contains no fields"))
		return
	}

	b, err := s.store.UpdateBrief(r.Context(), id, params)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, newBriefPayload(b))
}

func (s *Server) handleDeleteBrief(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := briefs.ValidateID(id); err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.store.DeleteBrief(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type enhanceRequest struct {
	Instructions string `json:"instructions"`
}

type enhanceResponse struct {
	Description string          `json:"description"`
	Usage       *core.TokenInfo `json:"usage,omitempty"`
}

// handleEnhanceBrief asks the LLM to rewrite the brief description. The
// result is returned to the client, not persisted; saving it is an explicit
// PATCH so the user stays in control of their text.
func (s *Server) handleEnhanceBrief(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := briefs.ValidateID(id); err != nil {
		s.writeError(w, r, err)
		return
	}

	b, err := s.store.GetBrief(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if strings.TrimSpace(b.Description) == "" {
		s.writeError(w, r, errors.New(errors.InvalidInput, "brief has no description to enhance"))
		return
	}

	var req enhanceRequest
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
	}

	prompt := fmt.Sprintf(
		"You are an advertising strategist. Rewrite the following brief description to be clearer, more specific, and more inspiring for a creative team. Keep the original intent. Return only the rewritten description.\n\nBrief: %s\nDescription: %s\n",
		b.Name, b.Description)
	if req.Instructions != "" {
		prompt += "\nAdditional instructions: " + req.Instructions + "\n"
	}

	resp, err := s.llm.Generate(r.Context(), prompt)
	if err != nil {
		s.writeError(w, r, errors.Wrap(err, errors.LLMGenerationFailed, "failed to enhance brief description"))
		return
	}

	s.writeJSON(w, http.StatusOK, enhanceResponse{
		Description: strings.TrimSpace(resp.Content),
		Usage:       resp.Usage,
	})
}

func (s *Server) handleGenerateImage(w http.ResponseWriter, r *http.Request) {
	var req imagegen.GenerateRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	resp, err := s.images.Generate(r.Context(), &req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleEditImage(w http.ResponseWriter, r *http.Request) {
	var req imagegen.EditRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	resp, err := s.images.Edit(r.Context(), &req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

type approachInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (s *Server) handleListApproaches(w http.ResponseWriter, r *http.Request) {
	var list []approachInfo
	for _, name := range s.approaches.List() {
		a, err := s.approaches.Get(name)
		if err != nil {
			continue
		}
		list = append(list, approachInfo{Name: a.Name(), Description: a.Description()})
	}
	s.writeJSON(w, http.StatusOK, list)
}

type adImage struct {
	Data     []byte `json:"data"` // base64 in JSON
	MimeType string `json:"mimeType"`
}

type generateAdRequest struct {
	BriefID  string                 `json:"briefId"`
	Approach string                 `json:"approach"`
	Prompt   string                 `json:"prompt"`
	Images   []adImage              `json:"images,omitempty"`
	Extra    map[string]interface{} `json:"extra,omitempty"`
}

// handleGenerateAd loads the brief, resolves the named creative approach,
// and executes it with the brief's generation settings.
func (s *Server) handleGenerateAd(w http.ResponseWriter, r *http.Request) {
	var req generateAdRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := briefs.ValidateID(req.BriefID); err != nil {
		s.writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		s.writeError(w, r, errors.New(errors.InvalidInput, "prompt is required"))
		return
	}

	b, err := s.store.GetBrief(r.Context(), req.BriefID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	name := req.Approach
	if name == "" {
		name = "direct"
	}
	a, err := s.approaches.Get(name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	actx := &approach.Context{
		BriefName:        b.Name,
		BriefDescription: b.Description,
		Prompt:           req.Prompt,
		MaxTokens:        b.Settings.MaxTokens,
		Temperature:      b.Settings.Temperature,
		Extra:            req.Extra,
	}
	for _, img := range req.Images {
		if len(img.Data) == 0 {
			s.writeError(w, r, errors.New(errors.InvalidInput, "image data is required"))
			return
		}
		actx.Images = append(actx.Images, core.NewImageBlock(img.Data, img.MimeType))
	}

	result, err := a.Execute(r.Context(), actx, s.llm)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

type collabSessionRequest struct {
	UserName string `json:"userName"`
	BriefID  string `json:"briefId"`
}

// handleCollabSession issues a signed token binding a user to a brief. The
// brief must exist; the external collaboration service trusts the signature.
func (s *Server) handleCollabSession(w http.ResponseWriter, r *http.Request) {
	var req collabSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.UserName) == "" {
		s.writeError(w, r, errors.New(errors.InvalidInput, "user name is required"))
		return
	}
	if err := briefs.ValidateID(req.BriefID); err != nil {
		s.writeError(w, r, err)
		return
	}

	if _, err := s.store.GetBrief(r.Context(), req.BriefID); err != nil {
		s.writeError(w, r, err)
		return
	}

	session, err := s.sessions.Issue(req.UserName, req.BriefID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, session)
}
