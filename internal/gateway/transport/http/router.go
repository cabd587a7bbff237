// Package http is the gateway's REST surface (spec §6): five endpoints,
// four unguarded auth endpoints that proxy straight to the Identity
// Service over the broker, and one Admission-Guarded image endpoint that
// dispatches to the vision backend by file cardinality.
package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/wrenhollow/aegis/genproto/visionpb"
	"github.com/wrenhollow/aegis/internal/gateway/admission"
	"github.com/wrenhollow/aegis/internal/gateway/identityclient"
	visionclient "github.com/wrenhollow/aegis/internal/gateway/transport/vision"
	"github.com/wrenhollow/aegis/internal/gateway/validate"
)

type Router struct {
	identity *identityclient.Client
	vision   *visionclient.Client
	guard    *admission.Guard
}

func NewRouter(identity *identityclient.Client, vision *visionclient.Client, guard *admission.Guard) *Router {
	return &Router{identity: identity, vision: vision, guard: guard}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/signup", rt.handleSignUp)
	mux.HandleFunc("POST /auth/signin", rt.handleSignIn)
	mux.HandleFunc("POST /auth/refresh", rt.handleRefresh)
	mux.HandleFunc("POST /auth/verify", rt.handleVerify)
	mux.HandleFunc("POST /vision/process-image", rt.handleProcessImage)
	return mux
}

type statusBody struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, statusBody{Status: "error", Message: message})
}

// --- auth/signup ---

type signUpRequest struct {
	FirstName string `json:"firstname"`
	LastName  string `json:"lastname"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

func (rt *Router) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	if err := validate.SignUp(req.FirstName, req.LastName, req.Email, req.Password); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := rt.identity.SignUp(r.Context(), identityclient.SignUpRequest{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
	})
	if err != nil {
		rt.writeUpstreamError(w, err, "user exists")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// --- auth/signin ---

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (rt *Router) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	if err := validate.Email(req.Email); err != nil || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	resp, err := rt.identity.SignIn(r.Context(), identityclient.SignInRequest{Email: req.Email, Password: req.Password})
	if err != nil {
		rt.writeUpstreamError(w, err, "bad credentials")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// --- auth/refresh ---

type refreshRequest struct {
	Token string `json:"token"`
}

func (rt *Router) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.Token == "" {
		writeError(w, http.StatusBadRequest, "token is required")
		return
	}

	resp, err := rt.identity.RefreshToken(r.Context(), req.Token)
	if err != nil {
		rt.writeUpstreamError(w, err, "refresh failed")
		return
	}

	// Token-flow failures are carried in-band, never as an error status
	// (spec §7).
	writeJSON(w, http.StatusOK, resp)
}

// --- auth/verify ---

func (rt *Router) handleVerify(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		writeError(w, http.StatusBadRequest, "key is required")
		return
	}

	resp, err := rt.identity.VerifyUser(r.Context(), key)
	if err != nil {
		rt.writeUpstreamError(w, err, "invalid verification key")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// --- vision/process-image ---

const maxUploadBytes = 32 << 20 // 32MiB, net/http's default in-memory limit for multipart forms

func (rt *Router) handleProcessImage(w http.ResponseWriter, r *http.Request) {
	token := admission.BearerToken(r)
	source := rt.guard.SourceAddr(r)

	if _, err := rt.guard.Admit(r.Context(), token, source); err != nil {
		rt.writeGuardError(w, err)
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "malformed multipart body")
		return
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "at least one image is required")
		return
	}

	model := visionpb.ModelBLIP
	if r.FormValue("model") == "BLIP_QUANTIZED" {
		model = visionpb.ModelBLIPQuantized
	}

	images := make([][]byte, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			writeError(w, http.StatusBadRequest, "unreadable upload")
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			writeError(w, http.StatusBadRequest, "unreadable upload")
			return
		}
		images = append(images, data)
	}

	descriptions, err := rt.vision.Dispatch(r.Context(), images, model)
	if err != nil {
		slog.Error("vision dispatch failed", "error", err)
		writeError(w, http.StatusBadGateway, "vision backend unavailable")
		return
	}

	if len(descriptions) == 1 {
		writeJSON(w, http.StatusOK, map[string]string{"description": descriptions[0]})
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"descriptions": descriptions})
}

func (rt *Router) writeGuardError(w http.ResponseWriter, err error) {
	if errors.Is(err, admission.ErrRateLimited) {
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}
	writeError(w, http.StatusUnauthorized, err.Error())
}

// writeUpstreamError maps an identity RPC failure to an HTTP status using
// the Kind the identity service attached, per spec §6's table: Validation
// → 400, Conflict/InvalidKey → 409, and a reply with any other kind (or
// none) → 409 as well. An error that is not a reply from the identity
// service means the broker call itself failed → 502.
func (rt *Router) writeUpstreamError(w http.ResponseWriter, err error, fallback string) {
	var reqErr *identityclient.RequestError
	if errors.As(err, &reqErr) {
		switch reqErr.Kind {
		case identityclient.KindValidation:
			writeError(w, http.StatusBadRequest, reqErr.Message)
		case identityclient.KindConflict, identityclient.KindInvalidKey:
			writeError(w, http.StatusConflict, reqErr.Message)
		default:
			writeError(w, http.StatusConflict, reqErr.Message)
		}
		return
	}
	if errors.Is(err, identityclient.ErrUpstreamUnavailable) {
		writeError(w, http.StatusBadGateway, "identity service unavailable")
		return
	}
	writeError(w, http.StatusBadGateway, fallback)
}
