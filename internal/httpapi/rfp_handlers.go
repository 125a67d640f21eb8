package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"rfphub.org/internal/audit"
	"rfphub.org/internal/auth"
	"rfphub.org/internal/rfp"
	"rfphub.org/internal/stream"
)

type createRFPRequest struct {
	Title      string `json:"title"`
	Client     string `json:"client"`
	Department string `json:"department"`
	Status     string `json:"status"`
	Value      int64  `json:"value"`
	Currency   string `json:"currency"`
}

type updateRFPRequest struct {
	Title      *string `json:"title"`
	Client     *string `json:"client"`
	Department *string `json:"department"`
	Status     *string `json:"status"`
	Value      *int64  `json:"value"`
	Currency   *string `json:"currency"`
}

func (a *API) handleRFPs(w http.ResponseWriter, r *http.Request) {
	if a.rfps == nil {
		writeError(w, r, http.StatusServiceUnavailable, "pipeline unavailable")
		return
	}
	switch r.Method {
	case http.MethodGet:
		filter, err := parseRFPFilter(r)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		records, err := a.rfps.List(r.Context(), filter)
		if err != nil {
			handleRFPError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"rfps":  records,
			"count": len(records),
		})

	case http.MethodPost:
		var req createRFPRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		rec := rfp.RFP{
			Title:      req.Title,
			Client:     req.Client,
			Department: auth.Role(req.Department),
			Status:     rfp.Status(req.Status),
			Value:      req.Value,
			Currency:   req.Currency,
		}
		if claims, ok := auth.ClaimsFromContext(r.Context()); ok {
			rec.OwnerID = claims.Subject
		}
		created, err := a.rfps.Create(r.Context(), &rec)
		if err != nil {
			handleRFPError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "rfp.create", map[string]any{
			"rfp_id":     created.ID,
			"department": string(created.Department),
		})
		if a.stream != nil {
			a.stream.Publish(stream.ActivityEvent{
				Kind:    stream.KindRFPCreated,
				Actor:   actorEmail(r),
				Subject: created.ID,
				Detail:  created.Title,
			})
		}
		w.Header().Set("Location", fmt.Sprintf("/v1/rfps/%s", created.ID))
		writeJSON(w, http.StatusCreated, created)

	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleRFPResource(w http.ResponseWriter, r *http.Request) {
	if a.rfps == nil {
		writeError(w, r, http.StatusServiceUnavailable, "pipeline unavailable")
		return
	}
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/rfps/"), "/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		rec, err := a.rfps.Get(r.Context(), id)
		if err != nil {
			handleRFPError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)

	case http.MethodPatch:
		var req updateRFPRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		rec, err := a.rfps.Update(r.Context(), id, toRFPUpdate(req))
		if err != nil {
			handleRFPError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "rfp.update", map[string]any{
			"rfp_id": rec.ID,
			"status": string(rec.Status),
		})
		if a.stream != nil {
			a.stream.Publish(stream.ActivityEvent{
				Kind:    stream.KindRFPUpdated,
				Actor:   actorEmail(r),
				Subject: rec.ID,
				Detail:  string(rec.Status),
			})
		}
		writeJSON(w, http.StatusOK, rec)

	case http.MethodDelete:
		if err := a.rfps.Delete(r.Context(), id); err != nil {
			handleRFPError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "rfp.delete", map[string]any{
			"rfp_id": id,
		})
		if a.stream != nil {
			a.stream.Publish(stream.ActivityEvent{
				Kind:    stream.KindRFPDeleted,
				Actor:   actorEmail(r),
				Subject: id,
			})
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPatch, http.MethodDelete)
	}
}

func (a *API) handleDashboardSummary(w http.ResponseWriter, r *http.Request) {
	if a.rfps == nil {
		writeError(w, r, http.StatusServiceUnavailable, "pipeline unavailable")
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	sum, err := a.rfps.Summary(r.Context())
	if err != nil {
		handleRFPError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func parseRFPFilter(r *http.Request) (rfp.Filter, error) {
	q := r.URL.Query()
	filter := rfp.Filter{
		Department: auth.Role(strings.TrimSpace(q.Get("department"))),
		Status:     rfp.Status(strings.TrimSpace(q.Get("status"))),
	}
	if filter.Department != "" && !auth.ValidRole(filter.Department) {
		return rfp.Filter{}, fmt.Errorf("unknown department %q", filter.Department)
	}
	if filter.Status != "" && !rfp.ValidStatus(filter.Status) {
		return rfp.Filter{}, fmt.Errorf("unknown status %q", filter.Status)
	}
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > 1000 {
			return rfp.Filter{}, errors.New("limit must be between 1 and 1000")
		}
		filter.Limit = limit
	}
	return filter, nil
}

func toRFPUpdate(req updateRFPRequest) rfp.Update {
	upd := rfp.Update{
		Title:    req.Title,
		Client:   req.Client,
		Value:    req.Value,
		Currency: req.Currency,
	}
	if req.Department != nil {
		d := auth.Role(*req.Department)
		upd.Department = &d
	}
	if req.Status != nil {
		st := rfp.Status(*req.Status)
		upd.Status = &st
	}
	return upd
}

func handleRFPError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, rfp.ErrInvalidInput), errors.Is(err, rfp.ErrInvalidStatus):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, rfp.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "rfp not found")
	default:
		writeError(w, r, http.StatusInternalServerError, "pipeline operation failed")
	}
}
