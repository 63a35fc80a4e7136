package images

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/imagehost/service/internal/metastore"
	"github.com/imagehost/service/internal/middleware"
	"github.com/imagehost/service/internal/response"
)

// Handler holds HTTP handlers for image endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates a new images Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type uploadRequest struct {
	Filename string `json:"filename"  example:"My Photo.JPG"`
	MimeType string `json:"mime_type" example:"image/jpeg"`
}

type confirmRequest struct {
	IID      string `json:"iid"       example:"img_9c4a1e2b7f01"`
	Key      string `json:"key"       example:"uploads/u_1f6f37ab90c2/img_9c4a1e2b7f01/my-photo.jpg"`
	Filename string `json:"filename"  example:"My Photo.JPG"`
	MimeType string `json:"mime_type" example:"image/jpeg"`
	Private  bool   `json:"private"   example:"false"`
}

type galleryData struct {
	Items []GalleryItem `json:"items"`
}

type deleteData struct {
	Status string `json:"status" example:"deleted"`
	ID     string `json:"id"     example:"img_9c4a1e2b7f01"`
}

// RequestUpload godoc
//
//	@Summary		Request upload slot
//	@Description	Allocate an image id and receive a presigned PUT URL. PUT the bytes there with the same Content-Type, then call the complete endpoint. Nothing is stored until then.
//	@Tags			images
//	@Accept			json
//	@Produce		json
//	@Security		ApiKeyAuth
//	@Param			request	body		uploadRequest	true	"Filename and declared content type"
//	@Success		200		{object}	response.Envelope{data=UploadTicket}
//	@Failure		400		{object}	response.ErrorEnvelope
//	@Failure		401		{object}	response.ErrorEnvelope
//	@Failure		500		{object}	response.ErrorEnvelope
//	@Router			/upload/request [post]
func (h *Handler) RequestUpload(w http.ResponseWriter, r *http.Request) {
	uid, ok := r.Context().Value(middleware.UserIDKey).(string)
	if !ok || uid == "" {
		response.Unauthorized(w, "missing API key")
		return
	}

	var req uploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if req.Filename == "" || req.MimeType == "" {
		response.BadRequest(w, "filename and mime_type are required")
		return
	}

	ticket, err := h.svc.RequestUpload(r.Context(), uid, req.Filename, req.MimeType)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.OK(w, ticket)
}

// ConfirmUpload godoc
//
//	@Summary		Confirm upload
//	@Description	Record the metadata for an object already uploaded via the presigned URL. The image becomes visible in the gallery atomically. Re-confirming an id you own returns the existing record unchanged; an id owned by someone else is forbidden.
//	@Tags			images
//	@Accept			json
//	@Produce		json
//	@Security		ApiKeyAuth
//	@Param			request	body		confirmRequest	true	"Upload ticket fields plus final metadata"
//	@Success		201		{object}	response.Envelope{data=ConfirmResult}
//	@Failure		400		{object}	response.ErrorEnvelope
//	@Failure		401		{object}	response.ErrorEnvelope
//	@Failure		403		{object}	response.ErrorEnvelope
//	@Failure		500		{object}	response.ErrorEnvelope
//	@Router			/upload/complete [post]
func (h *Handler) ConfirmUpload(w http.ResponseWriter, r *http.Request) {
	uid, ok := r.Context().Value(middleware.UserIDKey).(string)
	if !ok || uid == "" {
		response.Unauthorized(w, "missing API key")
		return
	}

	var req confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if req.IID == "" || req.Key == "" || req.Filename == "" || req.MimeType == "" {
		response.BadRequest(w, "missing required fields")
		return
	}

	result, err := h.svc.ConfirmUpload(r.Context(), uid, req.IID, req.Key, req.Filename, req.MimeType, req.Private)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.Created(w, result)
}

// Gallery godoc
//
//	@Summary		List my images
//	@Description	Newest-first list of the caller's images, at most 50.
//	@Tags			images
//	@Produce		json
//	@Security		ApiKeyAuth
//	@Success		200	{object}	response.Envelope{data=galleryData}
//	@Failure		401	{object}	response.ErrorEnvelope
//	@Failure		500	{object}	response.ErrorEnvelope
//	@Router			/me/images [get]
func (h *Handler) Gallery(w http.ResponseWriter, r *http.Request) {
	uid, ok := r.Context().Value(middleware.UserIDKey).(string)
	if !ok || uid == "" {
		response.Unauthorized(w, "missing API key")
		return
	}

	items, err := h.svc.Gallery(r.Context(), uid)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.OK(w, galleryData{Items: items})
}

// View godoc
//
//	@Summary		View image
//	@Description	Public. Redirects to a short-lived presigned download URL for the image bytes. Share this link, not the presigned one.
//	@Tags			images
//	@Produce		json
//	@Param			iid	path	string	true	"Image id"
//	@Success		302
//	@Failure		404	{object}	response.ErrorEnvelope
//	@Failure		500	{object}	response.ErrorEnvelope
//	@Router			/image/{iid} [get]
func (h *Handler) View(w http.ResponseWriter, r *http.Request) {
	iid := chi.URLParam(r, "iid")

	url, err := h.svc.ResolveView(r.Context(), iid)
	if err != nil {
		h.writeError(w, err)
		return
	}
	http.Redirect(w, r, url, http.StatusFound)
}

// Delete godoc
//
//	@Summary		Delete image
//	@Description	Remove an image you own. The object is deleted from storage first; the metadata only goes once that succeeds, so a failed delete leaves the image intact and retryable.
//	@Tags			images
//	@Produce		json
//	@Security		ApiKeyAuth
//	@Param			iid	path		string	true	"Image id"
//	@Success		200	{object}	response.Envelope{data=deleteData}
//	@Failure		401	{object}	response.ErrorEnvelope
//	@Failure		403	{object}	response.ErrorEnvelope
//	@Failure		404	{object}	response.ErrorEnvelope
//	@Failure		500	{object}	response.ErrorEnvelope
//	@Router			/image/{iid} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	uid, ok := r.Context().Value(middleware.UserIDKey).(string)
	if !ok || uid == "" {
		response.Unauthorized(w, "missing API key")
		return
	}
	iid := chi.URLParam(r, "iid")

	if err := h.svc.Delete(r.Context(), uid, iid); err != nil {
		h.writeError(w, err)
		return
	}
	response.OK(w, deleteData{Status: "deleted", ID: iid})
}

// writeError maps service errors onto the wire codes.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrKeyMismatch):
		response.BadRequest(w, "key does not belong to this upload")
	case errors.Is(err, metastore.ErrNotFound):
		response.NotFound(w, "image not found")
	case errors.Is(err, ErrForbidden):
		response.Forbidden(w, "forbidden")
	case errors.Is(err, ErrCorruptRecord):
		response.Error(w, http.StatusInternalServerError, response.CodeInvalidRecord, "image record is corrupt")
	case errors.Is(err, ErrStorage):
		response.Error(w, http.StatusInternalServerError, response.CodeStorageError, "object storage operation failed")
	default:
		response.Error(w, http.StatusInternalServerError, response.CodeStoreUnreachable, "metadata store unreachable")
	}
}
