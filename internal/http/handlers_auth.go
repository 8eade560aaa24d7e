package http

import (
	"errors"
	"net/http"

	"budgetly/internal/core"
	"budgetly/internal/log"
)

const msgResetRequested = "If that email exists, an OTP was sent"

type signupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type profileRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type resetRequest struct {
	Email       string `json:"email"`
	OTP         string `json:"otp"`
	NewPassword string `json:"newPassword"`
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, "signup", err)
		return
	}
	if _, err := s.svc.Accounts.Signup(r.Context(), sanitizeInput(req.Name), req.Email, req.Password); err != nil {
		writeError(w, r, "signup", err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Message("user created successfully").Write(w)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, "login", err)
		return
	}
	token, user, err := s.svc.Accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, "login", err)
		return
	}
	NewJSONResponse().Body(loginResponse{Token: token, User: toUserResponse(user)}).Write(w)
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	user, err := s.svc.Accounts.Profile(r.Context(), mustUserID(r))
	if err != nil {
		writeError(w, r, "get_profile", err)
		return
	}
	NewJSONResponse().Body(toUserResponse(user)).Write(w)
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, "update_profile", err)
		return
	}
	user, err := s.svc.Accounts.UpdateProfile(r.Context(), mustUserID(r), sanitizeInput(req.Name), req.Email)
	if err != nil {
		writeError(w, r, "update_profile", err)
		return
	}
	NewJSONResponse().Body(toUserResponse(user)).Write(w)
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, "change_password", err)
		return
	}
	if err := s.svc.Accounts.ChangePassword(r.Context(), mustUserID(r), req.CurrentPassword, req.NewPassword); err != nil {
		writeError(w, r, "change_password", err)
		return
	}
	NewJSONResponse().Message("password updated").Write(w)
}

// handleForgotPassword answers with the same acknowledgement for known and
// unknown addresses. The response is flushed before the code is mailed.
func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		s.metrics.RecordReset("request", "invalid")
		writeError(w, r, "forgot_password", err)
		return
	}

	acked := false
	err := s.svc.Resets.RequestPasswordReset(r.Context(), req.Email, func() {
		acked = true
		NewJSONResponse().Message(msgResetRequested).Write(w)
		if err := http.NewResponseController(w).Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
			log.FromContext(r.Context()).DebugContext(r.Context(), "Flush failed", log.FieldError, err)
		}
	})
	if err != nil {
		s.metrics.RecordReset("request", "invalid")
		if !acked {
			writeError(w, r, "forgot_password", err)
		}
		return
	}
	s.metrics.RecordReset("request", "accepted")
}

func (s *Server) handleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		s.metrics.RecordReset("verify", "invalid")
		writeError(w, r, "verify_otp", err)
		return
	}
	if err := s.svc.Resets.VerifyResetCode(r.Context(), req.Email, req.OTP); err != nil {
		s.metrics.RecordReset("verify", resetOutcome(err))
		writeError(w, r, "verify_otp", err)
		return
	}
	s.metrics.RecordReset("verify", "ok")
	NewJSONResponse().Message("OTP verified").Write(w)
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		s.metrics.RecordReset("reset", "invalid")
		writeError(w, r, "reset_password", err)
		return
	}
	if err := s.svc.Resets.ResetPassword(r.Context(), req.Email, req.OTP, req.NewPassword); err != nil {
		s.metrics.RecordReset("reset", resetOutcome(err))
		writeError(w, r, "reset_password", err)
		return
	}
	s.metrics.RecordReset("reset", "ok")
	NewJSONResponse().Message("password updated").Write(w)
}

func resetOutcome(err error) string {
	switch {
	case errors.Is(err, core.ErrInvalidOrExpired):
		return "rejected"
	case core.IsValidation(err):
		return "invalid"
	default:
		return "error"
	}
}
