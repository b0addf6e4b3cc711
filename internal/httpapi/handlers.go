package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	goAccounts "github.com/MrEthical07/goAccounts"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

type handler struct {
	accounts Accounts
	log      *zap.Logger
}

type createUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"pass"`
	Name     string `json:"name"`
	Reason   string `json:"reason"`
}

type loginRequest struct {
	User     string `json:"user"`
	Password string `json:"password"`
	Resume   string `json:"resume"`
}

type setRoomKeyRequest struct {
	RoomID string `json:"rid"`
	KeyID  string `json:"keyID"`
}

type errorBody struct {
	Success   bool              `json:"success"`
	Error     string            `json:"error"`
	ErrorType string            `json:"errorType,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (h *handler) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "username and pass are required", ErrorType: "error-invalid-params"})
		return
	}

	id, err := h.accounts.CreateUser(r.Context(), goAccounts.CreateOptions{
		Username: strings.TrimSpace(req.Username),
		Email:    strings.TrimSpace(req.Email),
		Password: req.Password,
		Name:     req.Name,
		Reason:   req.Reason,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "userId": id})
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decode(w, r, &req) {
		return
	}

	var (
		res *goAccounts.LoginResult
		err error
	)
	switch {
	case req.Resume != "":
		res, err = h.accounts.LoginWithResumeToken(r.Context(), req.Resume)
		if err == nil {
			res.Token = req.Resume
		}
	case req.User != "" && req.Password != "":
		res, err = h.accounts.LoginWithPassword(r.Context(), req.User, req.Password)
	default:
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "user and password or resume are required", ErrorType: "error-invalid-params"})
		return
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"userId":    res.UserID,
		"authToken": res.Token,
	})
}

func (h *handler) setRoomKeyID(w http.ResponseWriter, r *http.Request) {
	var req setRoomKeyRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.accounts.SetRoomKeyID(r.Context(), req.RoomID, req.KeyID); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "request body must be valid JSON", ErrorType: "error-invalid-json"})
		return false
	}
	return true
}

func (h *handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var coded *goAccounts.Error
	switch {
	case errors.As(err, &coded):
		status := coded.Status
		if status == 0 {
			status = http.StatusBadRequest
		}
		msg := coded.Message
		if msg == "" {
			msg = coded.Code
		}
		writeJSON(w, status, errorBody{Error: msg, ErrorType: coded.Code, Details: coded.Details})
	case errors.Is(err, goAccounts.ErrInvalidCredentials), errors.Is(err, goAccounts.ErrResumeTokenInvalid):
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "Unauthorized", ErrorType: "error-unauthorized"})
	case errors.Is(err, goAccounts.ErrEngineNotReady):
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "service unavailable"})
	default:
		h.log.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", chimiddleware.GetReqID(r.Context())),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
