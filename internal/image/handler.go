package image

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/celestial/service/internal/middleware"
	"github.com/celestial/service/internal/response"
)

// Handler holds HTTP handlers for image endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates a new image Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// imageBody is the wire representation of an image.
type imageBody struct {
	ID        string    `json:"id"        example:"e7eedc79-0707-4fe4-8734-526b7ef13a7b"`
	Title     string    `json:"title"     example:"sunset over the bay"`
	Image     string    `json:"image"     example:"/media/images/3f2a9c.png"`
	CreatedAt time.Time `json:"createdAt" example:"2026-02-27T14:48:34Z"`
}

type updateImageRequest struct {
	Title string `json:"title" example:"new title"`
}

func (h *Handler) body(img *Image) imageBody {
	return imageBody{
		ID:        img.ID,
		Title:     img.Title,
		Image:     h.svc.URL(img),
		CreatedAt: img.CreatedAt,
	}
}

// principal extracts the authenticated user id or writes a 401.
func principal(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := r.Context().Value(middleware.UserIDKey).(string)
	if !ok || userID == "" {
		response.Unauthorized(w, "unauthorized")
		return "", false
	}
	return userID, true
}

// Upload godoc
//
//	@Summary		Upload an image
//	@Description	Accepts a multipart form with an "image" file field and an optional "title" field. The caller becomes the owner.
//	@Tags			images
//	@Accept			mpfd
//	@Produce		json
//	@Security		BearerAuth
//	@Param			image	formData	file	true	"image file"
//	@Param			title	formData	string	false	"display title"
//	@Success		201		{object}	response.Envelope{data=imageBody}
//	@Failure		400		{object}	response.Envelope
//	@Failure		401		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/images [post]
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	userID, ok := principal(w, r)
	if !ok {
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		response.BadRequest(w, "image file field is required")
		return
	}
	defer file.Close()

	img, err := h.svc.Create(
		r.Context(),
		userID,
		r.FormValue("title"),
		header.Filename,
		file,
		header.Size,
		header.Header.Get("Content-Type"),
	)
	if err != nil {
		if errors.Is(err, ErrEmptyFile) || errors.Is(err, ErrFileTooLarge) {
			response.BadRequest(w, err.Error())
			return
		}
		// Storage and record failures alike are server-side.
		response.InternalError(w)
		return
	}

	response.Created(w, h.body(img))
}

// List godoc
//
//	@Summary		List images
//	@Description	Returns the caller's own images, most recent first.
//	@Tags			images
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	response.Envelope{data=[]imageBody}
//	@Failure		401	{object}	response.Envelope
//	@Failure		500	{object}	response.Envelope
//	@Router			/images [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := principal(w, r)
	if !ok {
		return
	}

	images, err := h.svc.List(r.Context(), userID)
	if err != nil {
		response.InternalError(w)
		return
	}

	bodies := make([]imageBody, 0, len(images))
	for _, img := range images {
		bodies = append(bodies, h.body(img))
	}
	response.OK(w, bodies)
}

// Update godoc
//
//	@Summary		Update an image title
//	@Description	Changes the display title. Only the owner may update; owner and storage key are immutable.
//	@Tags			images
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id		path		string				true	"image id"
//	@Param			request	body		updateImageRequest	true	"new title"
//	@Success		200		{object}	response.Envelope{data=imageBody}
//	@Failure		400		{object}	response.Envelope
//	@Failure		401		{object}	response.Envelope
//	@Failure		403		{object}	response.Envelope
//	@Failure		404		{object}	response.Envelope
//	@Router			/images/{id} [patch]
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := principal(w, r)
	if !ok {
		return
	}

	var req updateImageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	img, err := h.svc.UpdateTitle(r.Context(), userID, chi.URLParam(r, "id"), req.Title)
	if err != nil {
		h.writeError(w, err)
		return
	}

	response.OK(w, h.body(img))
}

// Delete godoc
//
//	@Summary		Delete an image
//	@Description	Removes the image record and its stored file. Only the owner may delete.
//	@Tags			images
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id	path	string	true	"image id"
//	@Success		204
//	@Failure		401	{object}	response.Envelope
//	@Failure		403	{object}	response.Envelope
//	@Failure		404	{object}	response.Envelope
//	@Router			/images/{id} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := principal(w, r)
	if !ok {
		return
	}

	if err := h.svc.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		h.writeError(w, err)
		return
	}

	response.NoContent(w)
}

// writeError maps service errors onto the HTTP boundary. Not-found and
// forbidden stay distinguishable, matching the record-level distinction kept
// for logging.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case h.svc.IsNotFound(err):
		response.NotFound(w, "image not found")
	case h.svc.IsForbidden(err):
		response.Forbidden(w, "you do not own this image")
	default:
		response.InternalError(w)
	}
}
