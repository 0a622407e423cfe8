package handlers

import (
	"errors"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/roadwatch/roadwatch/internal/api"
	"github.com/roadwatch/roadwatch/internal/services"
)

// handleFeed handles GET /api/feed: the public, paginated incident feed.
// Query params: from/to (unix seconds), bbox (min_lat,min_lon,max_lat,max_lon),
// order=severity|recent.
func (h *APIHandler) handleFeed(w http.ResponseWriter, r *http.Request) {
	params := api.ParsePagination(r)

	q := services.FeedQuery{
		Offset:          params.Offset(),
		Limit:           params.PerPage,
		OrderBySeverity: r.URL.Query().Get("order") == "severity",
	}

	if v := r.URL.Query().Get("from"); v != "" {
		if ts, err := strconv.ParseInt(v, 10, 64); err == nil {
			from := time.Unix(ts, 0)
			q.From = &from
		}
	}
	if v := r.URL.Query().Get("to"); v != "" {
		if ts, err := strconv.ParseInt(v, 10, 64); err == nil {
			to := time.Unix(ts, 0)
			q.To = &to
		}
	}

	if v := r.URL.Query().Get("bbox"); v != "" {
		bbox, err := parseBBox(v)
		if err != nil {
			api.RespondError(w, http.StatusBadRequest, "bbox must be min_lat,min_lon,max_lat,max_lon")
			return
		}
		q.BBox = bbox
	}

	items, total, err := h.incidents.Feed(q)
	if err != nil {
		api.RespondError(w, http.StatusInternalServerError, "Failed to load feed")
		return
	}

	// Feed items carry the public artifact URL, never a filesystem path.
	for i := range items {
		items[i].ImagePath = "/images/" + path.Base(items[i].ImagePath)
	}

	api.RespondJSON(w, http.StatusOK, api.PaginatedResponse{
		Data:       items,
		Pagination: params.Meta(total),
	})
}

var errBadBBox = errors.New("invalid bounding box")

func parseBBox(s string) (*services.BoundingBox, error) {
	var b services.BoundingBox
	parts := [4]*float64{&b.MinLat, &b.MinLon, &b.MaxLat, &b.MaxLon}
	fields := strings.Split(s, ",")
	if len(fields) != 4 {
		return nil, errBadBBox
	}
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, errBadBBox
		}
		*parts[i] = v
	}
	if b.MinLat > b.MaxLat || b.MinLon > b.MaxLon {
		return nil, errBadBBox
	}
	return &b, nil
}
