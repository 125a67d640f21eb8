package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"rfphub.org/internal/audit"
	"rfphub.org/internal/auth"
	"rfphub.org/internal/stream"
)

type updateUserRequest struct {
	Name     *string `json:"name"`
	Avatar   *string `json:"avatar"`
	Password *string `json:"password"`
	Type     *string `json:"type"`
	Role     *string `json:"role"`
	Status   *string `json:"status"`
}

func (a *API) handleUsers(w http.ResponseWriter, r *http.Request) {
	if a.users == nil {
		writeError(w, r, http.StatusServiceUnavailable, "user directory unavailable")
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if !a.requireAdmin(w, r) {
		return
	}
	users, err := a.users.ListUsers(r.Context())
	if err != nil {
		handleUserError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"users": users,
		"count": len(users),
	})
}

func (a *API) handleUserResource(w http.ResponseWriter, r *http.Request) {
	if a.users == nil {
		writeError(w, r, http.StatusServiceUnavailable, "user directory unavailable")
		return
	}
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/users/"), "/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if !a.requireAdmin(w, r) {
		return
	}

	switch r.Method {
	case http.MethodGet:
		user, err := a.users.GetUser(r.Context(), id)
		if err != nil {
			handleUserError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, user)

	case http.MethodPatch:
		var req updateUserRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		user, err := a.users.UpdateUser(r.Context(), id, toUserUpdate(req))
		if err != nil {
			handleUserError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "user.update", map[string]any{
			"user_id": user.ID,
			"email":   user.Email,
			"status":  string(user.Status),
		})
		if a.stream != nil {
			a.stream.Publish(stream.ActivityEvent{
				Kind:    stream.KindUserUpdated,
				Actor:   actorEmail(r),
				Subject: user.ID,
				Detail:  string(user.Status),
			})
		}
		writeJSON(w, http.StatusOK, user)

	case http.MethodDelete:
		if err := a.users.DeleteUser(r.Context(), id); err != nil {
			handleUserError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "user.delete", map[string]any{
			"user_id": id,
		})
		if a.stream != nil {
			a.stream.Publish(stream.ActivityEvent{
				Kind:    stream.KindUserDeleted,
				Actor:   actorEmail(r),
				Subject: id,
			})
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPatch, http.MethodDelete)
	}
}

func toUserUpdate(req updateUserRequest) auth.UserUpdate {
	upd := auth.UserUpdate{
		Name:     req.Name,
		Avatar:   req.Avatar,
		Password: req.Password,
	}
	if req.Type != nil {
		t := auth.UserType(*req.Type)
		upd.Type = &t
	}
	if req.Role != nil {
		role := auth.Role(*req.Role)
		upd.Role = &role
	}
	if req.Status != nil {
		st := auth.Status(*req.Status)
		upd.Status = &st
	}
	return upd
}

func actorEmail(r *http.Request) string {
	if claims, ok := auth.ClaimsFromContext(r.Context()); ok {
		return claims.Email
	}
	return ""
}

func handleUserError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrAlreadyExists):
		writeError(w, r, http.StatusConflict, "email already registered")
	case errors.Is(err, auth.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "user not found")
	case errors.Is(err, auth.ErrUnauthorized):
		writeError(w, r, http.StatusForbidden, "access denied")
	default:
		writeError(w, r, http.StatusInternalServerError, "user operation failed")
	}
}
