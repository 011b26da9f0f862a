package media

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/wanderhosts/media/internal/response"
	"github.com/wanderhosts/media/internal/storage"
)

// maxUploadBytes bounds the multipart body read into memory per request.
const maxUploadBytes = 20 << 20 // 20 MiB

// cacheMaxAge is how long served variants may be cached (90 days).
// Variants are immutable once written, so long-lived caching is safe.
const cacheMaxAge = 90 * 24 * time.Hour

// rejectedMessage is the uniform body of every client-caused 400. It is
// deliberately uninformative: the response must not reveal which
// validation check failed.
const rejectedMessage = "upload rejected"

// Handler holds HTTP handlers for the upload and serving endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates a new media Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Routes mounts the media endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/upload", h.Upload)
	r.Get("/img/full/{key}.jpg", h.ServeFull)
	r.Get("/img/thumbnail/{key}.jpg", h.ServeThumbnail)
	r.Get("/robots.txt", h.Robots)
}

// Upload godoc
//
//	@Summary		Upload an image
//	@Description	Accepts a multipart image upload authorized by a signed, single-use token carried in the data/sig query parameters.
//	@Tags			media
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			data	query		string	true	"URL-safe base64 serialized authorization"
//	@Param			sig		query		string	true	"URL-safe base64 keyed BLAKE2b tag"
//	@Param			file	formData	file	true	"Image file (JPEG, PNG, or GIF)"
//	@Success		200		{object}	UploadResult
//	@Failure		400		{object}	response.Envelope
//	@Failure		502		{object}	response.Envelope
//	@Router			/upload [post]
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	data := r.URL.Query().Get("data")
	sig := r.URL.Query().Get("sig")
	if data == "" || sig == "" {
		response.BadRequest(w, rejectedMessage)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, _, err := r.FormFile("file")
	if err != nil {
		response.BadRequest(w, rejectedMessage)
		return
	}
	defer file.Close()

	fileBytes, err := readAllLimited(file, maxUploadBytes)
	if err != nil {
		response.BadRequest(w, rejectedMessage)
		return
	}

	result, err := h.svc.ProcessUpload(r.Context(), data, sig, fileBytes)
	if err != nil {
		if IsClientError(err) {
			response.BadRequest(w, rejectedMessage)
			return
		}
		log.Error().Err(err).Str("phase", "upload").Msg("upload failed")
		response.BadGateway(w, "upload could not be confirmed")
		return
	}

	response.JSON(w, http.StatusOK, result)
}

// ServeFull godoc
//
//	@Summary	Serve the full-size variant
//	@Tags		media
//	@Produce	jpeg
//	@Param		key	path	string	true	"Upload key"
//	@Success	200
//	@Success	304
//	@Failure	404	{object}	response.Envelope
//	@Router		/img/full/{key}.jpg [get]
func (h *Handler) ServeFull(w http.ResponseWriter, r *http.Request) {
	h.serveVariant(w, r, storage.VariantFull)
}

// ServeThumbnail godoc
//
//	@Summary	Serve the square thumbnail variant
//	@Tags		media
//	@Produce	jpeg
//	@Param		key	path	string	true	"Upload key"
//	@Success	200
//	@Success	304
//	@Failure	404	{object}	response.Envelope
//	@Router		/img/thumbnail/{key}.jpg [get]
func (h *Handler) ServeThumbnail(w http.ResponseWriter, r *http.Request) {
	h.serveVariant(w, r, storage.VariantThumbnail)
}

func (h *Handler) serveVariant(w http.ResponseWriter, r *http.Request, variant storage.Variant) {
	key := chi.URLParam(r, "key")

	obj, etag, err := h.svc.GetVariant(r.Context(), key, variant)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			response.NotFound(w, "not found")
			return
		}
		log.Error().Err(err).Str("key", key).Str("phase", "serve").Msg("serve failed")
		response.InternalError(w)
		return
	}

	w.Header().Set("Etag", etag)
	w.Header().Set("Cache-Control", "public, max-age=7776000")
	w.Header().Set("Expires", time.Now().Add(cacheMaxAge).UTC().Format(http.TimeFormat))
	w.Header().Set("Last-Modified", obj.LastModified.UTC().Format(http.TimeFormat))

	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", obj.ContentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(obj.Data)
}

// Robots serves a disallow-all robots.txt: media URLs are unlisted by
// design and should never be crawled.
func (h *Handler) Robots(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("User-agent: *\nDisallow: /\n"))
}
