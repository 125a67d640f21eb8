package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"rfphub.org/internal/audit"
	"rfphub.org/internal/auth"
	"rfphub.org/internal/obs"
	"rfphub.org/internal/otp"
	"rfphub.org/internal/stream"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expires_at"`
	User      *auth.User `json:"user"`
}

type otpRequest struct {
	Action string `json:"action"`
	Email  string `json:"email"`
	Code   string `json:"code,omitempty"`
}

type signupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
	Code     string `json:"code"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if a.users == nil {
		writeError(w, r, http.StatusServiceUnavailable, "authentication unavailable")
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	token, expiresAt, user, err := a.users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		obs.ObserveLogin("failure")
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(w, r, http.StatusUnauthorized, "invalid email or password")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "login failed")
		return
	}
	obs.ObserveLogin("success")

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	_ = audit.LogEvent(r.Context(), "auth.login", map[string]any{
		"user_id": user.ID,
		"email":   user.Email,
	})
	if a.stream != nil {
		a.stream.Publish(stream.ActivityEvent{
			Kind:  stream.KindLoginSucceeded,
			Actor: user.Email,
		})
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      user,
	})
}

func (a *API) handleOTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if a.codes == nil {
		writeError(w, r, http.StatusServiceUnavailable, "verification unavailable")
		return
	}

	var req otpRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	switch strings.TrimSpace(req.Action) {
	case "send":
		if err := a.codes.Send(r.Context(), req.Email); err != nil {
			handleOTPError(w, r, err)
			return
		}
		obs.ObserveOTPIssued()
		writeJSON(w, http.StatusOK, map[string]any{
			"status":     "sent",
			"expires_in": int(a.codes.TTL().Seconds()),
		})
	case "verify":
		if err := a.codes.Verify(r.Context(), req.Email, req.Code); err != nil {
			obs.ObserveOTPVerify(otpOutcome(err))
			handleOTPError(w, r, err)
			return
		}
		obs.ObserveOTPVerify("success")
		writeJSON(w, http.StatusOK, map[string]any{
			"status": "verified",
		})
	default:
		writeError(w, r, http.StatusBadRequest, "action must be send or verify")
	}
}

func (a *API) handleSignup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if a.users == nil {
		writeError(w, r, http.StatusServiceUnavailable, "signup unavailable")
		return
	}

	var req signupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	// Proof of mailbox control comes first when verification is wired.
	if a.codes != nil {
		if err := a.codes.Verify(r.Context(), req.Email, req.Code); err != nil {
			obs.ObserveOTPVerify(otpOutcome(err))
			handleOTPError(w, r, err)
			return
		}
		obs.ObserveOTPVerify("success")
	}

	user, err := a.users.Signup(r.Context(), req.Name, req.Email, req.Password, auth.Role(req.Role))
	if err != nil {
		handleUserError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "auth.signup", map[string]any{
		"user_id": user.ID,
		"email":   user.Email,
		"role":    string(user.Role),
	})
	if a.stream != nil {
		a.stream.Publish(stream.ActivityEvent{
			Kind:    stream.KindUserSignedUp,
			Actor:   user.Email,
			Subject: user.ID,
		})
	}

	writeJSON(w, http.StatusCreated, user)
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	if a.users == nil {
		writeJSON(w, http.StatusOK, claims)
		return
	}
	user, err := a.users.GetUser(r.Context(), claims.Subject)
	if err != nil {
		handleUserError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func handleOTPError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, otp.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, otp.ErrDomainNotAllowed):
		writeError(w, r, http.StatusForbidden, err.Error())
	case errors.Is(err, otp.ErrCodeNotFound):
		writeError(w, r, http.StatusNotFound, "no active code for this address")
	case errors.Is(err, otp.ErrCodeExpired):
		writeError(w, r, http.StatusGone, "code expired, request a new one")
	case errors.Is(err, otp.ErrCodeMismatch):
		writeError(w, r, http.StatusUnauthorized, "incorrect code")
	case errors.Is(err, otp.ErrDispatchFailed):
		writeError(w, r, http.StatusBadGateway, "could not deliver code")
	default:
		writeError(w, r, http.StatusInternalServerError, "verification failed")
	}
}

func otpOutcome(err error) string {
	switch {
	case errors.Is(err, otp.ErrCodeNotFound):
		return "not_found"
	case errors.Is(err, otp.ErrCodeExpired):
		return "expired"
	case errors.Is(err, otp.ErrCodeMismatch):
		return "mismatch"
	default:
		return "error"
	}
}
