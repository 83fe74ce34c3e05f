package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/gridmind/gridmind/internal/core"
	"github.com/gridmind/gridmind/internal/engine"
)

// sheetView is the wire representation of an open sheet.
type sheetView struct {
	ID           string                                   `json:"id"`
	Rows         int                                      `json:"rows"`
	Cols         int                                      `json:"cols"`
	Columns      []core.ColumnID                          `json:"columns"`
	Instructions map[core.ColumnID]core.ColumnInstruction `json:"instructions"`
	Cells        []core.ExportCell                        `json:"cells"`
}

func newSheetView(sess *engine.Session) sheetView {
	rows, cols := sess.Grid.Dimensions()
	instructions := make(map[core.ColumnID]core.ColumnInstruction)
	for col, inst := range sess.Grid.Instructions() {
		instructions[col] = *inst
	}
	return sheetView{
		ID:           sess.Grid.ID(),
		Rows:         rows,
		Cols:         cols,
		Columns:      sess.Grid.Columns(),
		Instructions: instructions,
		Cells:        sess.Tracker.ExportViews(),
	}
}

// requestKeys extracts per-request credentials from headers. Missing headers
// leave the configured defaults in effect.
func requestKeys(r *http.Request) engine.Keys {
	return engine.Keys{
		Completion: r.Header.Get("X-Api-Key"),
		Search:     r.Header.Get("X-Serper-Key"),
	}
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*engine.Session, bool) {
	id := chi.URLParam(r, "sheetID")
	sess, err := s.service.Get(r.Context(), id)
	if err != nil {
		s.respondDomainError(w, err)
		return nil, false
	}
	return sess, true
}

func cellRefParam(r *http.Request) (core.CellRef, error) {
	row, err := strconv.Atoi(chi.URLParam(r, "row"))
	if err != nil || row < 0 {
		return core.CellRef{}, core.ErrValidation(core.CodeBadCellRef, "row must be a non-negative integer")
	}
	col := chi.URLParam(r, "col")
	if col == "" {
		return core.CellRef{}, core.ErrValidation(core.CodeBadCellRef, "column is required")
	}
	return core.CellRef{Row: row, Col: core.ColumnID(col)}, nil
}

type createSheetRequest struct {
	ID   string `json:"id,omitempty"`
	Rows int    `json:"rows,omitempty"`
	Cols int    `json:"cols,omitempty"`
}

func (s *Server) handleCreateSheet(w http.ResponseWriter, r *http.Request) {
	var req createSheetRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	sess := s.service.Create(req.ID, req.Rows, req.Cols)
	s.respondJSON(w, http.StatusCreated, newSheetView(sess))
}

func (s *Server) handleListSheets(w http.ResponseWriter, r *http.Request) {
	ids, err := s.service.List(r.Context())
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"sheets": ids})
}

// handleGetSheet returns the sheet, opening a fresh default-sized grid when
// neither an open session nor a stored snapshot exists.
func (s *Server) handleGetSheet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sheetID")
	sess, err := s.service.Get(r.Context(), id)
	if err != nil {
		if !core.IsCategory(err, core.ErrCatNotFound) {
			s.respondDomainError(w, err)
			return
		}
		sess = s.service.Create(id, 0, 0)
	}
	s.respondJSON(w, http.StatusOK, newSheetView(sess))
}

func (s *Server) handleDeleteSheet(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Delete(r.Context(), chi.URLParam(r, "sheetID")); err != nil {
		s.respondDomainError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleSaveSheet(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := s.service.Save(r.Context(), sess); err != nil {
		s.respondDomainError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

func (s *Server) handleExportSheet(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"sheet_id": sess.Grid.ID(),
		"cells":    sess.Tracker.ExportViews(),
	})
}

type editCellRequest struct {
	Value string `json:"value"`
}

func (s *Server) handleEditCell(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	ref, err := cellRefParam(r)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}

	var req editCellRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := sess.Orchestrator.EditCell(ref, req.Value); err != nil {
		s.respondDomainError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, core.ExportView(sess.Tracker.Ensure(ref, req.Value)))
}

func (s *Server) handleClearCell(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	ref, err := cellRefParam(r)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}

	sess.Orchestrator.ClearCell(ref)
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) handleRegenerateCell(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	ref, err := cellRefParam(r)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}

	if err := sess.Orchestrator.RegenerateCell(r.Context(), ref, requestKeys(r)); err != nil {
		s.respondDomainError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, core.ExportView(sess.Tracker.Get(ref)))
}

type setInstructionRequest struct {
	TemplateID   core.TemplateID   `json:"template_id"`
	Instruction  string            `json:"instruction"`
	SourceColumn core.ColumnID     `json:"source_column"`
	Params       map[string]string `json:"params,omitempty"`
}

func (s *Server) handleSetInstruction(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	var req setInstructionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	inst := &core.ColumnInstruction{
		Column:       core.ColumnID(chi.URLParam(r, "col")),
		TemplateID:   req.TemplateID,
		Instruction:  req.Instruction,
		SourceColumn: req.SourceColumn,
		Params:       req.Params,
	}
	if err := sess.Orchestrator.SetInstruction(inst); err != nil {
		s.respondDomainError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, sess.Grid.Instruction(inst.Column))
}

func (s *Server) handleClearInstruction(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	col := core.ColumnID(chi.URLParam(r, "col"))
	sess.Orchestrator.CancelColumn(col)
	sess.Grid.ClearInstruction(col)
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

type applyColumnRequest struct {
	Force bool `json:"force,omitempty"`
}

// handleApplyColumn runs the batch synchronously and returns the summary.
// Progress streams over /events while the request is in flight; a client
// disconnect cancels the batch through the request context.
func (s *Server) handleApplyColumn(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	var req applyColumnRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	col := core.ColumnID(chi.URLParam(r, "col"))
	summary, err := sess.Orchestrator.ApplyColumn(r.Context(), col, engine.ApplyOptions{
		Force: req.Force,
		Keys:  requestKeys(r),
	})
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, summary)
}

func (s *Server) handleCancelColumn(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	sess.Orchestrator.CancelColumn(core.ColumnID(chi.URLParam(r, "col")))
	s.respondJSON(w, http.StatusAccepted, map[string]string{"status": "cancelling"})
}

func (s *Server) handleListTemplates(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]any{"templates": s.registry.Describe()})
}
