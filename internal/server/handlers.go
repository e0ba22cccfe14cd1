package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/iBurnApp/iBurn-iOS/internal/geo"
	"github.com/iBurnApp/iBurn-iOS/internal/location"
	"github.com/iBurnApp/iBurn-iOS/internal/model"
	"github.com/iBurnApp/iBurn-iOS/internal/storage"
	"github.com/iBurnApp/iBurn-iOS/internal/view"
)

const (
	defaultSearchLimit  = 50
	maxSearchLimit      = 500
	defaultNearbyRadius = 500.0
	maxNotesLength      = 4096
)

// errBadRequest marks client errors raised by the handlers themselves.
var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps errors to HTTP status codes.
func statusFor(err error) int {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errBadRequest),
		errors.Is(err, geo.ErrInvalidCoordinates),
		errors.As(err, &validationErrors):
		return http.StatusBadRequest
	case errors.Is(err, location.ErrNoFix):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.log.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (s *Server) handleHealthcheck(w http.ResponseWriter, r *http.Request) {
	counts, err := s.deps.DB.Storage().Counts(r.Context())
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "counts": counts})
}

func (s *Server) handleArt(w http.ResponseWriter, r *http.Request) {
	art, err := s.deps.DB.Art(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, art)
}

func (s *Server) handleCamps(w http.ResponseWriter, r *http.Request) {
	camps, err := s.deps.DB.Camps(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, camps)
}

// handleEvents lists occurrences starting on ?day=YYYY-MM-DD, today by default.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	fc := s.deps.DB.Festival()
	day := fc.Now()
	if raw := r.URL.Query().Get("day"); raw != "" {
		d, err := fc.ParseDay(raw)
		if err != nil {
			s.writeError(w, r, badRequest("%v", err))
			return
		}
		day = d
	}
	occ, err := s.deps.DB.EventsOnDay(r.Context(), day)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, occ)
}

func (s *Server) handleEventsNow(w http.ResponseWriter, r *http.Request) {
	occ, err := s.deps.DB.CurrentEvents(r.Context(), s.deps.DB.Festival().Now())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, occ)
}

func (s *Server) handleEventsUpcoming(w http.ResponseWriter, r *http.Request) {
	hours := 1
	if raw := r.URL.Query().Get("hours"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.writeError(w, r, badRequest("invalid hours %q", raw))
			return
		}
		hours = n
	}
	occ, err := s.deps.DB.UpcomingEvents(r.Context(), s.deps.DB.Festival().Now(), hours)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, occ)
}

// objectParams reads {type} and {uid}.
func objectParams(r *http.Request) (model.ObjectType, string, error) {
	t, err := model.ParseObjectType(chi.URLParam(r, "type"))
	if err != nil {
		return "", "", badRequest("%v", err)
	}
	uid := strings.TrimSpace(chi.URLParam(r, "uid"))
	if uid == "" {
		return "", "", badRequest("missing uid")
	}
	return t, uid, nil
}

func (s *Server) handleObject(w http.ResponseWriter, r *http.Request) {
	t, uid, err := objectParams(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	obj, err := s.deps.DB.Object(r.Context(), t, uid)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	md, err := s.deps.DB.Metadata(r.Context(), t, uid)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view.Item{Object: obj, Metadata: md})
}

// handleSearch returns matches grouped the way the search screen shows them.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	limit := defaultSearchLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxSearchLimit {
			s.writeError(w, r, badRequest("invalid limit %q", raw))
			return
		}
		limit = n
	}
	objs, err := s.deps.DB.Search(r.Context(), q, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view.GroupSearch(s.deps.DB.Festival(), objs))
}

func (s *Server) handleFavorites(w http.ResponseWriter, r *http.Request) {
	favs, err := s.deps.DB.Favorites(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, favs)
}

type favoriteResponse struct {
	ObjectType model.ObjectType `json:"objectType"`
	ObjectID   string           `json:"objectId"`
	Favorite   bool             `json:"favorite"`
}

func (s *Server) handleToggleFavorite(w http.ResponseWriter, r *http.Request) {
	t, uid, err := objectParams(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	on, err := s.deps.DB.ToggleFavorite(r.Context(), t, uid)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, favoriteResponse{ObjectType: t, ObjectID: uid, Favorite: on})
}

type notesRequest struct {
	Notes       string `json:"notes" validate:"max=4096"`
	VisitStatus string `json:"visitStatus" validate:"omitempty,oneof=unvisited visited wantToVisit"`
}

func (s *Server) handleNotes(w http.ResponseWriter, r *http.Request) {
	t, uid, err := objectParams(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req notesRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4*maxNotesLength)).Decode(&req); err != nil {
		s.writeError(w, r, badRequest("invalid body: %v", err))
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.writeError(w, r, err)
		return
	}

	ctx := r.Context()
	if err := s.deps.DB.SetNotes(ctx, t, uid, strings.TrimSpace(req.Notes)); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.VisitStatus != "" {
		if err := s.deps.DB.SetVisitStatus(ctx, t, uid, model.VisitStatus(req.VisitStatus)); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	md, err := s.deps.DB.Metadata(ctx, t, uid)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, md)
}

func (s *Server) handleNearby(w http.ResponseWriter, r *http.Request) {
	if s.deps.Location == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "location is disabled"})
		return
	}
	radius := defaultNearbyRadius
	if raw := r.URL.Query().Get("radius"); raw != "" {
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil || f < 0 {
			s.writeError(w, r, badRequest("invalid radius %q", raw))
			return
		}
		radius = f
	}
	near, err := s.deps.Location.Nearby(r.Context(), radius)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, near)
}

// viewSnapshot is the body of /views/{name} and the first websocket message.
type viewSnapshot struct {
	Name     string         `json:"name"`
	Version  uint64         `json:"version"`
	Sections []view.Section `json:"sections"`
}

func (s *Server) lookupView(w http.ResponseWriter, r *http.Request) (*view.View, bool) {
	if s.deps.Views == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "views are disabled"})
		return nil, false
	}
	name := chi.URLParam(r, "name")
	v, ok := s.deps.Views.View(name)
	if !ok {
		s.writeError(w, r, fmt.Errorf("view %q: %w", name, storage.ErrNotFound))
		return nil, false
	}
	return v, true
}

func snapshotOf(v *view.View) viewSnapshot {
	return viewSnapshot{Name: v.Name(), Version: v.Version(), Sections: v.Snapshot()}
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	v, ok := s.lookupView(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, snapshotOf(v))
}

// filterOptions reads ?day=YYYY-MM-DD&types=yoga,food&hideExpired=&hideAllDay=&hasLocation=.
func (s *Server) filterOptions(r *http.Request) (view.FilterOptions, error) {
	var opts view.FilterOptions
	q := r.URL.Query()
	if raw := q.Get("day"); raw != "" {
		d, err := s.deps.DB.Festival().ParseDay(raw)
		if err != nil {
			return opts, badRequest("%v", err)
		}
		opts.Day = d
	}
	if raw := q.Get("types"); raw != "" {
		for _, code := range strings.Split(raw, ",") {
			t := model.ParseEventType(code)
			if t == model.EventOther && !strings.EqualFold(strings.TrimSpace(code), string(model.EventOther)) {
				return opts, badRequest("unknown event type %q", code)
			}
			opts.Types = append(opts.Types, t)
		}
	}
	for key, dst := range map[string]*bool{
		"hideExpired": &opts.HideExpired,
		"hideAllDay":  &opts.HideAllDay,
		"hasLocation": &opts.HasLocation,
	} {
		raw := q.Get(key)
		if raw == "" {
			continue
		}
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return opts, badRequest("invalid %s %q", key, raw)
		}
		*dst = b
	}
	return opts, nil
}

// handleViewFilter replaces the extra filter of a view and answers with the
// resulting change set, which is also pushed to websocket subscribers.
func (s *Server) handleViewFilter(w http.ResponseWriter, r *http.Request) {
	v, ok := s.lookupView(w, r)
	if !ok {
		return
	}
	opts, err := s.filterOptions(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	cs, err := s.deps.Views.SetFilter(v.Name(), opts.Filter(s.deps.DB.Festival()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cs)
}

type locationRequest struct {
	Latitude  float64 `json:"latitude" validate:"required,latitude"`
	Longitude float64 `json:"longitude" validate:"required,longitude"`
	Accuracy  float64 `json:"accuracy" validate:"gte=0"`
}

type locationResponse struct {
	Kept     bool         `json:"kept"`
	Location location.Fix `json:"location"`
}

// handleLocation accepts a position pushed by the client.
func (s *Server) handleLocation(w http.ResponseWriter, r *http.Request) {
	if s.deps.Location == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "location is disabled"})
		return
	}
	var req locationRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil {
		s.writeError(w, r, badRequest("invalid body: %v", err))
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.writeError(w, r, err)
		return
	}
	kept, err := s.deps.Location.Update(location.Fix{Latitude: req.Latitude, Longitude: req.Longitude, Accuracy: req.Accuracy})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	last, _ := s.deps.Location.Last()
	writeJSON(w, http.StatusOK, locationResponse{Kept: kept, Location: last})
}

// handleLowMemory shrinks the object cache when the host is under memory
// pressure.
func (s *Server) handleLowMemory(w http.ResponseWriter, r *http.Request) {
	evicted := s.deps.DB.LowMemory()
	writeJSON(w, http.StatusOK, map[string]int{"evicted": evicted})
}
