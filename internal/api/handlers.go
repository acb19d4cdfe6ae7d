package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Veraticus/chargedesk/internal/aggregate"
	"github.com/Veraticus/chargedesk/internal/auth"
	"github.com/Veraticus/chargedesk/internal/common"
	"github.com/Veraticus/chargedesk/internal/model"
)

// filterFromQuery reads ?agent= and repeated ?status= parameters.
func filterFromQuery(r *http.Request) (aggregate.Filter, error) {
	f := aggregate.Filter{Agent: r.URL.Query().Get("agent")}
	for _, text := range r.URL.Query()["status"] {
		status, err := model.ParseStatus(text)
		if err != nil {
			return aggregate.Filter{}, err
		}
		f.Statuses = append(f.Statuses, status)
	}
	return f, nil
}

// agentParam is the ?agent= filter, replaced by the caller's own agent for
// Agent sessions.
func agentParam(r *http.Request) string {
	if agent, scoped := agentScope(r.Context()); scoped {
		return agent
	}
	return r.URL.Query().Get("agent")
}

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	f, err := filterFromQuery(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	f.Agent = agentParam(r)
	records, err := s.desk.Records(r.Context(), f)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordsJSON(records))
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	records, err := s.desk.Recent(r.Context())
	if err != nil {
		handleError(w, r, err)
		return
	}
	if agent, scoped := agentScope(r.Context()); scoped {
		mine := aggregate.Filter{Agent: agent}
		kept := records[:0]
		for _, rec := range records {
			if mine.Match(rec) {
				kept = append(kept, rec)
			}
		}
		records = kept
	}
	writeJSON(w, http.StatusOK, toRecordsJSON(records))
}

func (s *Server) handlePending(w http.ResponseWriter, r *http.Request) {
	records, err := s.desk.Records(r.Context(), aggregate.Filter{
		Statuses: []model.Status{model.StatusPending},
		Agent:    agentParam(r),
	})
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordsJSON(records))
}

func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := s.desk.Find(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	if agent, scoped := agentScope(r.Context()); scoped && !(aggregate.Filter{Agent: agent}).Match(rec) {
		handleError(w, r, fmt.Errorf("%w: %s", common.ErrRecordNotFound, chi.URLParam(r, "id")))
		return
	}
	writeJSON(w, http.StatusOK, toRecordJSON(rec))
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	sub, err := req.submission(s.desk.Config().Location)
	if err != nil {
		handleError(w, r, err)
		return
	}
	// Agents always submit under their own name.
	if profile, ok := profileFrom(r.Context()); ok && profile.Role == auth.RoleAgent {
		sub.Agent = profile.AgentName
	}
	rec, err := s.desk.Submit(r.Context(), sub)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRecordJSON(rec))
}

func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	var req EditRequest
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	edit, err := req.edit(s.desk.Config().Location)
	if err != nil {
		handleError(w, r, err)
		return
	}
	if edit.Empty() {
		handleError(w, r, fmt.Errorf("%w: nothing to change", common.ErrValidation))
		return
	}
	var rec model.Record
	if agent, scoped := agentScope(r.Context()); scoped {
		rec, err = s.desk.EditOwn(r.Context(), agent, chi.URLParam(r, "id"), edit)
	} else {
		rec, err = s.desk.Edit(r.Context(), chi.URLParam(r, "id"), edit)
	}
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordJSON(rec))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	var req StatusRequest
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	status, err := model.ParseStatus(req.Status)
	if err != nil {
		handleError(w, r, err)
		return
	}
	rec, err := s.desk.Transition(r.Context(), chi.URLParam(r, "id"), status)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordJSON(rec))
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	rec, err := s.desk.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordJSON(rec))
}

func (s *Server) handleDuplicates(w http.ResponseWriter, r *http.Request) {
	groups, err := s.desk.Duplicates(r.Context())
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDuplicatesJSON(groups))
}

func (s *Server) handleNightTotal(w http.ResponseWriter, r *http.Request) {
	total, err := s.desk.NightTotal(r.Context(), agentParam(r))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTotalJSON(total))
}

func (s *Server) handleTodayTotal(w http.ResponseWriter, r *http.Request) {
	total, err := s.desk.TodayTotal(r.Context(), agentParam(r))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTotalJSON(total))
}

func (s *Server) handleHourly(w http.ResponseWriter, r *http.Request) {
	hours, err := s.desk.Hourly(r.Context())
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toHoursJSON(hours))
}

func (s *Server) handleTopAgents(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if text := r.URL.Query().Get("limit"); text != "" {
		n, err := strconv.Atoi(text)
		if err != nil || n < 0 {
			handleError(w, r, fmt.Errorf("%w: limit must be a non-negative integer", common.ErrValidation))
			return
		}
		limit = n
	}
	agents, err := s.desk.TopAgents(r.Context(), limit)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAgentsJSON(agents))
}

func (s *Server) handleStatusCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := s.desk.StatusCounts(r.Context(), agentParam(r))
	if err != nil {
		handleError(w, r, err)
		return
	}
	out := make(map[string]int, len(counts))
	for status, n := range counts {
		out[status.String()] = n
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req SignUpRequest
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	role, err := auth.ParseRole(req.Role)
	if err != nil {
		handleError(w, r, err)
		return
	}
	// With sessions on, only a manager can create another manager.
	if role == auth.RoleManager && s.tokens != nil {
		if caller, ok := profileFrom(r.Context()); !ok || !caller.CanManage() {
			handleError(w, r, fmt.Errorf("%w: a manager session is required to create Manager accounts", common.ErrForbidden))
			return
		}
	}
	profile, err := s.users.SignUp(r.Context(), auth.SignUpRequest{
		ID:        req.ID,
		Password:  req.Password,
		Role:      role,
		AgentName: req.AgentName,
	})
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProfileJSON(profile))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	profile, err := s.users.Login(r.Context(), req.ID, req.Password)
	if err != nil {
		handleError(w, r, err)
		return
	}
	if s.tokens == nil {
		writeJSON(w, http.StatusOK, toProfileJSON(profile))
		return
	}

	token, expires, err := s.tokens.Issue(profile)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SessionJSON{Token: token, ExpiresAt: expires, Profile: toProfileJSON(profile)})
}

func toProfileJSON(p auth.Profile) ProfileJSON {
	return ProfileJSON{ID: p.ID, Role: string(p.Role), AgentName: p.AgentName}
}
