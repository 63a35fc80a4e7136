package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/imagehost/service/internal/metastore"
	"github.com/imagehost/service/internal/response"
)

// Handler holds HTTP handlers for auth endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates a new auth Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type credentialsRequest struct {
	Username string `json:"username" example:"ansel"`
	Password string `json:"password" example:"correct horse battery staple"`
}

type keyData struct {
	APIKey string `json:"api_key" example:"eyJhbGci..."`
	UID    string `json:"uid"     example:"u_1f6f37ab90c2"`
}

// Register godoc
//
//	@Summary		Register account
//	@Description	Create an account and receive its first API key. Keys are non-expiring; send them in the X-API-Key header.
//	@Tags			auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		credentialsRequest	true	"Username and password"
//	@Success		201		{object}	response.Envelope{data=keyData}
//	@Failure		400		{object}	response.ErrorEnvelope
//	@Failure		409		{object}	response.ErrorEnvelope
//	@Failure		500		{object}	response.ErrorEnvelope
//	@Router			/register [post]
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		response.BadRequest(w, "username and password are required")
		return
	}

	creds, err := h.svc.Register(r.Context(), req.Username, req.Password)
	if errors.Is(err, metastore.ErrUsernameTaken) {
		response.Conflict(w, "username already taken")
		return
	}
	if err != nil {
		response.Error(w, http.StatusInternalServerError, response.CodeStoreUnreachable, "metadata store unreachable")
		return
	}

	response.Created(w, keyData{APIKey: creds.APIKey, UID: creds.UserID})
}

// Login godoc
//
//	@Summary		Log in
//	@Description	Verify the password and receive a fresh API key. Previously issued keys remain valid.
//	@Tags			auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		credentialsRequest	true	"Username and password"
//	@Success		200		{object}	response.Envelope{data=keyData}
//	@Failure		400		{object}	response.ErrorEnvelope
//	@Failure		401		{object}	response.ErrorEnvelope
//	@Failure		500		{object}	response.ErrorEnvelope
//	@Router			/login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		response.BadRequest(w, "username and password are required")
		return
	}

	creds, err := h.svc.Login(r.Context(), req.Username, req.Password)
	if errors.Is(err, ErrInvalidCredentials) {
		response.Unauthorized(w, "invalid credentials")
		return
	}
	if err != nil {
		response.Error(w, http.StatusInternalServerError, response.CodeStoreUnreachable, "metadata store unreachable")
		return
	}

	response.OK(w, keyData{APIKey: creds.APIKey, UID: creds.UserID})
}

// IssueDevKey godoc
//
//	@Summary		Issue dev key
//	@Description	Mint an API key for a throwaway id without registering. Only routed outside production.
//	@Tags			auth
//	@Produce		json
//	@Success		200	{object}	response.Envelope{data=keyData}
//	@Failure		500	{object}	response.ErrorEnvelope
//	@Router			/dev/issue-key [post]
func (h *Handler) IssueDevKey(w http.ResponseWriter, r *http.Request) {
	creds, err := h.svc.IssueDevKey(r.Context())
	if err != nil {
		response.Error(w, http.StatusInternalServerError, response.CodeStorageError, "could not issue key")
		return
	}
	response.OK(w, keyData{APIKey: creds.APIKey, UID: creds.UserID})
}
