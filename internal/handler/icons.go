package handler

import (
	"log"
	"net/http"

	"netlayers/internal/domain"
)

// GetIcon serves the image for a device type, tinted by ?status=
func (a *API) GetIcon(w http.ResponseWriter, r *http.Request) {
	if a.icons == nil {
		fail(w, "Icons unavailable", &domain.NotFoundError{Kind: "icon", Key: r.PathValue("type")})
		return
	}
	t := domain.ParseDeviceType(r.PathValue("type"))
	status := domain.ParseStatus(r.URL.Query().Get("status"))

	ic, err := a.icons.Get(t, status)
	if err != nil {
		fail(w, "Failed to load icon", err)
		return
	}

	etag := ic.ETag
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "no-cache")
	if ic.Tint != "" {
		w.Header().Set("X-Icon-Tint", ic.Tint)
	}
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", ic.ContentType)
	if _, err := w.Write(ic.Data); err != nil {
		log.Printf("Failed to write icon %s: %v", ic.File, err)
	}
}
