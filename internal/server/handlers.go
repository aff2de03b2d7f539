package server

import (
	stderrors "errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/matzehuels/ercanvas/pkg/cache"
	"github.com/matzehuels/ercanvas/pkg/canvas"
	"github.com/matzehuels/ercanvas/pkg/diagram"
	"github.com/matzehuels/ercanvas/pkg/errors"
	pkgio "github.com/matzehuels/ercanvas/pkg/io"
	"github.com/matzehuels/ercanvas/pkg/observability"
	"github.com/matzehuels/ercanvas/pkg/render"
	"github.com/matzehuels/ercanvas/pkg/store"
	"github.com/matzehuels/ercanvas/pkg/tutor"
	"github.com/matzehuels/ercanvas/pkg/viewport"
)

// withWorkspace resolves {ws} and passes the workspace to fn.
func (s *Server) withWorkspace(fn func(w http.ResponseWriter, r *http.Request, ws *workspace)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, err := s.workspace(r.Context(), chi.URLParam(r, "ws"))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		fn(w, r, ws)
	}
}

func indexParam(r *http.Request) (int, error) {
	i, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		return 0, errors.New(errors.ErrCodeInvalidInput, "attribute index must be an integer")
	}
	return i, nil
}

// =============================================================================
// Workspaces
// =============================================================================

func (s *Server) handleListWorkspaces(w http.ResponseWriter, r *http.Request) {
	ids, err := s.storage.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"workspaces": ids})
}

func (s *Server) handleDeleteWorkspace(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "ws")
	if err := errors.ValidateWorkspaceID(id); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.dropWorkspace(id)
	if err := s.storage.Delete(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// diagramResponse is a snapshot plus the saved viewport.
type diagramResponse struct {
	store.Snapshot
	View viewport.Transform `json:"view"`
}

func (s *Server) handleGetDiagram(w http.ResponseWriter, r *http.Request) {
	s.withWorkspace(func(w http.ResponseWriter, r *http.Request, ws *workspace) {
		ws.mu.Lock()
		view := ws.view
		ws.mu.Unlock()
		writeJSON(w, http.StatusOK, diagramResponse{Snapshot: ws.store.Snapshot(), View: view})
	})(w, r)
}

func (s *Server) handleSetCaseStudy(w http.ResponseWriter, r *http.Request) {
	s.withWorkspace(func(w http.ResponseWriter, r *http.Request, ws *workspace) {
		var req struct {
			Text string `json:"text"`
		}
		if err := decode(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		ws.store.SetCaseStudy(req.Text)
		w.WriteHeader(http.StatusNoContent)
	})(w, r)
}

func (s *Server) handleSetView(w http.ResponseWriter, r *http.Request) {
	s.withWorkspace(func(w http.ResponseWriter, r *http.Request, ws *workspace) {
		var t viewport.Transform
		if err := decode(r, &t); err != nil {
			s.writeError(w, r, err)
			return
		}
		t.K = viewport.Clamp(t.K)
		ws.mu.Lock()
		ws.view = t
		ws.mu.Unlock()
		s.save(ws, true)
		writeJSON(w, http.StatusOK, t)
	})(w, r)
}

func (s *Server) handleScene(w http.ResponseWriter, r *http.Request) {
	s.withWorkspace(func(w http.ResponseWriter, r *http.Request, ws *workspace) {
		export, _ := strconv.ParseBool(r.URL.Query().Get("export"))
		scene := canvas.Build(ws.store.Model(), s.layout, export)
		if !export {
			ws.mu.Lock()
			scene.Transform = ws.view
			ws.mu.Unlock()
		}
		writeJSON(w, http.StatusOK, scene)
	})(w, r)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	s.withWorkspace(func(w http.ResponseWriter, r *http.Request, ws *workspace) {
		m, err := pkgio.ReadModel(r.Body)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if err := ws.store.Replace(m); err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, ws.store.Snapshot())
	})(w, r)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	s.withWorkspace(func(w http.ResponseWriter, r *http.Request, ws *workspace) {
		format, err := render.ParseFormat(chi.URLParam(r, "format"))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		m := ws.store.Model()
		key := s.keyer.ExportKey(cache.HashJSON(struct {
			Model  diagram.Model `json:"model"`
			Layout any           `json:"layout"`
		}{m, s.layout}), string(format))

		hooks := observability.Cache()
		data, hit, _ := s.cache.Get(r.Context(), key)
		if hit {
			hooks.OnCacheHit(r.Context(), "export")
		} else {
			hooks.OnCacheMiss(r.Context(), "export")
			data, err = render.Export(r.Context(), m, s.layout, format)
			if err != nil {
				s.writeError(w, r, err)
				return
			}
			if s.cache.Set(r.Context(), key, data, s.cacheTTL) == nil {
				hooks.OnCacheSet(r.Context(), "export", len(data))
			}
		}
		w.Header().Set("Content-Type", format.ContentType())
		w.Header().Set("Content-Disposition", `attachment; filename="`+ws.id+"."+format.Extension()+`"`)
		_, _ = w.Write(data)
	})(w, r)
}

// =============================================================================
// Entities
// =============================================================================

func (s *Server) handleAddEntity(w http.ResponseWriter, r *http.Request) {
	s.withWorkspace(func(w http.ResponseWriter, r *http.Request, ws *workspace) {
		var req struct {
			Name       string        `json:"name"`
			Attributes []string      `json:"attributes"`
			Position   diagram.Point `json:"position"`
		}
		if err := decode(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		e, err := ws.store.AddEntity(req.Name, req.Attributes, req.Position)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, e)
	})(w, r)
}

func (s *Server) handleUpdateEntity(w http.ResponseWriter, r *http.Request) {
	s.withWorkspace(func(w http.ResponseWriter, r *http.Request, ws *workspace) {
		var patch store.EntityPatch
		if err := decode(r, &patch); err != nil {
			s.writeError(w, r, err)
			return
		}
		e, err := ws.store.UpdateEntity(chi.URLParam(r, "id"), patch)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, e)
	})(w, r)
}

func (s *Server) handleDeleteEntity(w http.ResponseWriter, r *http.Request) {
	s.withWorkspace(func(w http.ResponseWriter, r *http.Request, ws *workspace) {
		removed, err := ws.store.DeleteEntity(chi.URLParam(r, "id"))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if removed == nil {
			removed = []string{}
		}
		writeJSON(w, http.StatusOK, map[string][]string{"removedRelationships": removed})
	})(w, r)
}

func (s *Server) handleToggleCollapse(w http.ResponseWriter, r *http.Request) {
	s.withWorkspace(func(w http.ResponseWriter, r *http.Request, ws *workspace) {
		e, err := ws.store.ToggleCollapse(chi.URLParam(r, "id"))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, e)
	})(w, r)
}

func (s *Server) handleSetData(w http.ResponseWriter, r *http.Request) {
	s.withWorkspace(func(w http.ResponseWriter, r *http.Request, ws *workspace) {
		var records []diagram.Record
		if err := decode(r, &records); err != nil {
			s.writeError(w, r, err)
			return
		}
		e, err := ws.store.SetEntityData(chi.URLParam(r, "id"), records)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, e)
	})(w, r)
}

// =============================================================================
// Attributes
// =============================================================================

func (s *Server) handleAddAttribute(w http.ResponseWriter, r *http.Request) {
	s.withWorkspace(func(w http.ResponseWriter, r *http.Request, ws *workspace) {
		var req struct {
			Name string `json:"name"`
		}
		if err := decode(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		e, err := ws.store.AddAttribute(chi.URLParam(r, "id"), req.Name)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, e)
	})(w, r)
}

// handleUpdateAttribute renames and/or reclassifies one attribute. A blank
// name removes it.
func (s *Server) handleUpdateAttribute(w http.ResponseWriter, r *http.Request) {
	s.withWorkspace(func(w http.ResponseWriter, r *http.Request, ws *workspace) {
		index, err := indexParam(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		var req struct {
			Name     *string `json:"name"`
			Category *string `json:"category"`
		}
		if err := decode(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		id := chi.URLParam(r, "id")
		e, err := ws.store.Entity(id)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if req.Category != nil {
			c, err := diagram.ParseCategory(*req.Category)
			if err != nil {
				s.writeError(w, r, err)
				return
			}
			if e, err = ws.store.SetAttributeCategory(id, index, c); err != nil {
				s.writeError(w, r, err)
				return
			}
		}
		if req.Name != nil {
			if e, err = ws.store.RenameAttribute(id, index, *req.Name); err != nil {
				s.writeError(w, r, err)
				return
			}
		}
		writeJSON(w, http.StatusOK, e)
	})(w, r)
}

func (s *Server) handleRemoveAttribute(w http.ResponseWriter, r *http.Request) {
	s.withWorkspace(func(w http.ResponseWriter, r *http.Request, ws *workspace) {
		index, err := indexParam(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		e, err := ws.store.RemoveAttribute(chi.URLParam(r, "id"), index)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, e)
	})(w, r)
}

func (s *Server) handleReorderAttribute(w http.ResponseWriter, r *http.Request) {
	s.withWorkspace(func(w http.ResponseWriter, r *http.Request, ws *workspace) {
		var req struct {
			From int `json:"from"`
			To   int `json:"to"`
		}
		if err := decode(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		e, err := ws.store.ReorderAttribute(chi.URLParam(r, "id"), req.From, req.To)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, e)
	})(w, r)
}

// =============================================================================
// Relationships
// =============================================================================

func (s *Server) handleAddRelationship(w http.ResponseWriter, r *http.Request) {
	s.withWorkspace(func(w http.ResponseWriter, r *http.Request, ws *workspace) {
		var req diagram.Relationship
		if err := decode(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		rel, err := ws.store.AddRelationshipWith(req)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, rel)
	})(w, r)
}

func (s *Server) handleUpdateRelationship(w http.ResponseWriter, r *http.Request) {
	s.withWorkspace(func(w http.ResponseWriter, r *http.Request, ws *workspace) {
		var patch store.RelationshipPatch
		if err := decode(r, &patch); err != nil {
			s.writeError(w, r, err)
			return
		}
		rel, err := ws.store.UpdateRelationship(chi.URLParam(r, "id"), patch)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, rel)
	})(w, r)
}

func (s *Server) handleDeleteRelationship(w http.ResponseWriter, r *http.Request) {
	s.withWorkspace(func(w http.ResponseWriter, r *http.Request, ws *workspace) {
		if err := ws.store.DeleteRelationship(chi.URLParam(r, "id")); err != nil {
			s.writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})(w, r)
}

// =============================================================================
// Tutor
// =============================================================================

// tutorBody is the optional request body of the tutor endpoints.
type tutorBody struct {
	Difficulty string `json:"difficulty,omitempty"`
	Dialect    string `json:"dialect,omitempty"`
}

// withTutor decodes the optional body and rejects the request when no text
// service is configured.
func (s *Server) withTutor(fn func(w http.ResponseWriter, r *http.Request, ws *workspace, body tutorBody)) http.HandlerFunc {
	return s.withWorkspace(func(w http.ResponseWriter, r *http.Request, ws *workspace) {
		if s.tutor == nil {
			s.writeError(w, r, errors.New(errors.ErrCodeUnsupported, "no text service configured"))
			return
		}
		var body tutorBody
		if r.ContentLength != 0 {
			if err := decode(r, &body); err != nil {
				s.writeError(w, r, err)
				return
			}
		}
		fn(w, r, ws, body)
	})
}

func (s *Server) handleScenario(w http.ResponseWriter, r *http.Request) {
	s.withTutor(func(w http.ResponseWriter, r *http.Request, ws *workspace, body tutorBody) {
		d := tutor.Basic
		if body.Difficulty != "" {
			var err error
			if d, err = tutor.ParseDifficulty(body.Difficulty); err != nil {
				s.writeError(w, r, err)
				return
			}
		}
		text, err := s.tutor.GenerateScenario(r.Context(), d)
		if err != nil {
			s.writeTutorError(w, r, err)
			return
		}
		ws.store.SetCaseStudy(text)
		writeJSON(w, http.StatusOK, map[string]string{"caseStudy": text})
	})(w, r)
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	s.withTutor(func(w http.ResponseWriter, r *http.Request, ws *workspace, _ tutorBody) {
		ev, err := s.tutor.EvaluateModel(r.Context(), ws.store.Model())
		if err != nil {
			s.writeTutorError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, ev)
	})(w, r)
}

func (s *Server) handleSQL(w http.ResponseWriter, r *http.Request) {
	s.withTutor(func(w http.ResponseWriter, r *http.Request, ws *workspace, body tutorBody) {
		d, err := tutor.ParseDialect(body.Dialect)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		sql, err := s.tutor.GenerateSQL(r.Context(), ws.store.Model(), d)
		if err != nil {
			s.writeTutorError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"dialect": string(d), "sql": sql})
	})(w, r)
}

func (s *Server) handleHint(w http.ResponseWriter, r *http.Request) {
	s.withTutor(func(w http.ResponseWriter, r *http.Request, ws *workspace, _ tutorBody) {
		hint, err := s.tutor.GuidedHint(r.Context(), ws.store.Model())
		if err != nil {
			s.writeTutorError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"hint": hint})
	})(w, r)
}

// writeTutorError reports a text-service failure with the tutor's
// user-facing wording. A quota rejection carries Retry-After when known.
func (s *Server) writeTutorError(w http.ResponseWriter, r *http.Request, err error) {
	code := errors.GetCode(err)
	if code == "" {
		code = errors.ErrCodeNetwork
	}
	var quota *errors.QuotaExceededError
	if stderrors.As(err, &quota) && quota.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(quota.RetryAfter))
	}
	status := statusFor(code)
	if status >= 500 {
		s.logger.Warn("tutor request failed", "path", r.URL.Path, "err", err)
	}
	writeJSON(w, status, errorBody{Code: code, Message: tutor.UserMessage(err)})
}
