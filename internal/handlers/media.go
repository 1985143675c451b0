package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"strconv"

	"face-gallery/internal/database"
	"face-gallery/internal/detector"
	"face-gallery/internal/filesystem"
	"face-gallery/internal/gallery"
	"face-gallery/internal/logging"
	"face-gallery/internal/mediatypes"

	"github.com/gorilla/mux"
)

var logger = logging.For("api")

// ListMedia returns one gallery page. ?page is the page key (default 0),
// ?pageSize overrides the configured gallery page size.
func (h *Handlers) ListMedia(w http.ResponseWriter, r *http.Request) {
	params := gallery.LoadParams{PageSize: h.pager.PageSize()}

	if s := r.URL.Query().Get("page"); s != "" {
		page, err := strconv.Atoi(s)
		if err != nil || page < 0 {
			writeJSONError(w, "invalid page", http.StatusBadRequest)
			return
		}
		params.Key = &page
	}
	if s := r.URL.Query().Get("pageSize"); s != "" {
		size, err := strconv.Atoi(s)
		if err != nil || size <= 0 || size > 500 {
			writeJSONError(w, "invalid pageSize", http.StatusBadRequest)
			return
		}
		params.PageSize = size
	}

	result := h.pager.Load(r.Context(), params)
	if errors.Is(result.Err, gallery.ErrInvalidKey) {
		writeJSONError(w, "invalid page", http.StatusBadRequest)
		return
	}
	if result.Err != nil {
		logger.Error("Loading gallery page failed: %v", result.Err)
		writeJSONError(w, "failed to load media", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, result)
}

// GetMedia returns a single media record.
func (h *Handlers) GetMedia(w http.ResponseWriter, r *http.Request) {
	id, ok := mediaID(r)
	if !ok {
		writeJSONError(w, "invalid media id", http.StatusBadRequest)
		return
	}

	record, err := h.store.GetMedia(r.Context(), id)
	if err != nil {
		h.storeError(w, id, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, record)
}

// DeleteMedia removes a media record, its face tags and its thumbnail. The
// photo becomes a candidate again on the next batch run.
func (h *Handlers) DeleteMedia(w http.ResponseWriter, r *http.Request) {
	id, ok := mediaID(r)
	if !ok {
		writeJSONError(w, "invalid media id", http.StatusBadRequest)
		return
	}

	if err := h.store.DeleteMedia(r.Context(), id); err != nil {
		h.storeError(w, id, err)
		return
	}
	if err := h.thumbnails.Remove(id); err != nil {
		logger.Warn("Media %d deleted but thumbnail removal failed: %v", id, err)
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetFaces returns the stored tags of a media record.
func (h *Handlers) GetFaces(w http.ResponseWriter, r *http.Request) {
	id, ok := mediaID(r)
	if !ok {
		writeJSONError(w, "invalid media id", http.StatusBadRequest)
		return
	}

	if _, err := h.store.GetMedia(r.Context(), id); err != nil {
		h.storeError(w, id, err)
		return
	}

	faces, err := h.tagger.Faces(r.Context(), id)
	if err != nil {
		h.storeError(w, id, err)
		return
	}
	if faces == nil {
		faces = []database.FaceRecord{}
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, faces)
}

type saveTagRequest struct {
	Tag string `json:"tag"`
}

// SaveFaceTag sets the tag of one face.
func (h *Handlers) SaveFaceTag(w http.ResponseWriter, r *http.Request) {
	id, ok := mediaID(r)
	if !ok {
		writeJSONError(w, "invalid media id", http.StatusBadRequest)
		return
	}
	faceKey := mux.Vars(r)["faceKey"]

	var req saveTagRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	err := h.tagger.SaveFaceTag(r.Context(), id, faceKey, req.Tag)
	switch {
	case err == nil:
	case errors.Is(err, detector.ErrInvalidFaceKey), errors.Is(err, gallery.ErrInvalidTag):
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	default:
		h.storeError(w, id, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, database.FaceRecord{MediaID: id, FaceKey: faceKey, Tag: req.Tag})
}

// GetFullImage returns the source photo at view size with faces outlined.
// Face boxes are returned in the X-Face-Count header and by GetInspection.
func (h *Handlers) GetFullImage(w http.ResponseWriter, r *http.Request) {
	inspection, ok := h.inspect(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Face-Count", strconv.Itoa(len(inspection.Faces)))
	if _, err := w.Write(inspection.JPEG); err != nil {
		logger.Debug("Writing full image failed: %v", err)
	}
}

// GetInspection returns the detected faces of a media record in view
// coordinates together with their tags.
func (h *Handlers) GetInspection(w http.ResponseWriter, r *http.Request) {
	inspection, ok := h.inspect(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, inspection)
}

func (h *Handlers) inspect(w http.ResponseWriter, r *http.Request) (*gallery.Inspection, bool) {
	id, ok := mediaID(r)
	if !ok {
		writeJSONError(w, "invalid media id", http.StatusBadRequest)
		return nil, false
	}

	inspection, err := h.viewer.Inspect(r.Context(), id)
	if err != nil {
		h.storeError(w, id, err)
		return nil, false
	}
	return inspection, true
}

// GetThumbnail serves the cached thumbnail of a media record.
func (h *Handlers) GetThumbnail(w http.ResponseWriter, r *http.Request) {
	id, ok := mediaID(r)
	if !ok {
		writeJSONError(w, "invalid media id", http.StatusBadRequest)
		return
	}

	record, err := h.store.GetMedia(r.Context(), id)
	if err != nil {
		h.storeError(w, id, err)
		return
	}

	f, err := filesystem.OpenWithRetry(record.ThumbnailLocation, filesystem.DefaultRetryConfig())
	if err != nil {
		logger.Warn("Thumbnail for media %d unreadable: %v", id, err)
		writeJSONError(w, "thumbnail not available", http.StatusNotFound)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		writeJSONError(w, "thumbnail not available", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", mediatypes.GetMimeType(mediatypes.Ext(record.ThumbnailLocation)))
	w.Header().Set("Cache-Control", "public, max-age=86400")
	http.ServeContent(w, r, filepath.Base(record.ThumbnailLocation), info.ModTime(), f)
}

// storeError maps store and pipeline errors to responses.
func (h *Handlers) storeError(w http.ResponseWriter, id int64, err error) {
	if errors.Is(err, database.ErrNotFound) {
		writeJSONError(w, "media not found", http.StatusNotFound)
		return
	}
	logger.Error("Media %d: %v", id, err)
	writeJSONError(w, "internal error", http.StatusInternalServerError)
}
