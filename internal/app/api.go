package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/briangreenhill/moto/internal/geo"
	"github.com/briangreenhill/moto/internal/navigation"
	"github.com/briangreenhill/moto/internal/ride"
	"github.com/google/uuid"
)

const maxBodyBytes = 32 << 20

var errBadRequest = errors.New("bad request")

func NewAPI(logger *slog.Logger, services *Services) *http.ServeMux {
	library := services.Library
	session := services.Session

	mux := http.NewServeMux()
	mux.Handle("GET /rides", handleListRides(logger, library))
	mux.Handle("POST /rides", handleImportRide(logger, library))
	mux.Handle("DELETE /rides", handleClearRides(logger, library))
	mux.Handle("GET /rides/{id}", handleGetRide(logger, session))
	mux.Handle("PATCH /rides/{id}", handleRenameRide(logger, library))
	mux.Handle("DELETE /rides/{id}", handleDeleteRide(logger, library))
	mux.Handle("GET /rides/{id}/gpx", handleRideGPX(logger, session))
	mux.Handle("GET /summary", handleSummary(logger, library))

	mux.Handle("GET /recording", handleRecordingStatus(logger, session))
	mux.Handle("POST /recording/start", handleStartRecording(logger, session))
	mux.Handle("POST /recording/stop", handleStopRecording(logger, session))
	mux.Handle("POST /recording/discard", handleDiscardRecording(logger, session))
	mux.Handle("POST /fixes", handleFixes(logger, session))

	mux.Handle("GET /places", handleSearchPlaces(logger, session))
	mux.Handle("POST /routes", handleCalculateRoutes(logger, session))
	mux.Handle("PUT /routes/gpx", handleLoadRoutes(logger, services))
	mux.Handle("POST /routes/select", handleSelectRoute(logger, session))
	mux.Handle("GET /navigation", handleNavigationState(logger, session))
	mux.Handle("POST /navigation/start", handleStartNavigation(logger, session))
	mux.Handle("POST /navigation/stop", handleStopNavigation(logger, session))

	mux.Handle("GET /live", services.Hub)

	return mux
}

type rideDetail struct {
	Ride     ride.Ride       `json:"ride"`
	Finished bool            `json:"finished"`
	Stats    ride.Statistics `json:"stats"`
	Splits   []ride.Split    `json:"splits"`
}

func handleListRides(logger *slog.Logger, library *ride.Library) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rides := library.Recent()
		if rides == nil {
			rides = []ride.Ride{}
		}
		writeJSON(logger, w, http.StatusOK, rides)
	})
}

func handleImportRide(logger *slog.Logger, library *ride.Library) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			writeError(logger, w, fmt.Errorf("%w: %v", errBadRequest, err))
			return
		}
		imported, err := ride.ImportGPX(data)
		if err != nil {
			writeError(logger, w, fmt.Errorf("%w: %w", errBadRequest, err))
			return
		}
		if err := library.Add(r.Context(), imported); err != nil {
			writeError(logger, w, err)
			return
		}
		writeJSON(logger, w, http.StatusCreated, imported)
	})
}

func handleClearRides(logger *slog.Logger, library *ride.Library) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := library.Clear(r.Context()); err != nil {
			writeError(logger, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func handleGetRide(logger *slog.Logger, session *Session) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		found, err := rideFromPath(r, session)
		if err != nil {
			writeError(logger, w, err)
			return
		}
		writeJSON(logger, w, http.StatusOK, rideDetail{
			Ride:     found,
			Finished: found.Finished(),
			Stats:    found.Stats(time.Now()),
			Splits:   ride.Splits(found.Trace),
		})
	})
}

func handleRenameRide(logger *slog.Logger, library *ride.Library) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			writeError(logger, w, fmt.Errorf("%w: invalid ride id", errBadRequest))
			return
		}
		var body struct {
			Name string `json:"name"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(logger, w, err)
			return
		}
		renamed, err := library.Rename(r.Context(), id, body.Name)
		if err != nil {
			writeError(logger, w, err)
			return
		}
		writeJSON(logger, w, http.StatusOK, renamed)
	})
}

func handleDeleteRide(logger *slog.Logger, library *ride.Library) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			writeError(logger, w, fmt.Errorf("%w: invalid ride id", errBadRequest))
			return
		}
		if err := library.Delete(r.Context(), id); err != nil {
			writeError(logger, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func handleRideGPX(logger *slog.Logger, session *Session) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		found, err := rideFromPath(r, session)
		if err != nil {
			writeError(logger, w, err)
			return
		}
		data, err := ride.ExportGPX(found)
		if err != nil {
			writeError(logger, w, err)
			return
		}

		w.Header().Set("Content-Type", "application/gpx+xml")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", found.ID.String()+".gpx"))
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(data); err != nil {
			logger.Error("Error writing gpx", slog.Any("error", err))
		}
	})
}

func handleSummary(logger *slog.Logger, library *ride.Library) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(logger, w, http.StatusOK, library.Summary(time.Now()))
	})
}

func handleRecordingStatus(logger *slog.Logger, session *Session) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(logger, w, http.StatusOK, session.Recording())
	})
}

func handleStartRecording(logger *slog.Logger, session *Session) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Name string `json:"name"`
		}
		if r.ContentLength != 0 {
			if err := decodeBody(r, &body); err != nil {
				writeError(logger, w, err)
				return
			}
		}
		started, err := session.StartRecording(body.Name)
		if err != nil {
			writeError(logger, w, err)
			return
		}
		writeJSON(logger, w, http.StatusCreated, started)
	})
}

func handleStopRecording(logger *slog.Logger, session *Session) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stopped, err := session.StopRecording(r.Context())
		if err != nil {
			writeError(logger, w, err)
			return
		}
		writeJSON(logger, w, http.StatusOK, stopped)
	})
}

func handleDiscardRecording(logger *slog.Logger, session *Session) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session.DiscardRecording()
		w.WriteHeader(http.StatusNoContent)
	})
}

type fixesResult struct {
	Received int                `json:"received"`
	Recorded int                `json:"recorded"`
	Events   []navigation.Event `json:"events"`
}

// handleFixes accepts a JSON array of fixes and delivers them in order.
func handleFixes(logger *slog.Logger, session *Session) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var fixes []geo.Fix
		if err := decodeBody(r, &fixes); err != nil {
			writeError(logger, w, err)
			return
		}

		result := fixesResult{Received: len(fixes), Events: []navigation.Event{}}
		for _, fix := range fixes {
			recorded, events := session.HandleFix(fix)
			if recorded {
				result.Recorded++
			}
			result.Events = append(result.Events, events...)
		}
		writeJSON(logger, w, http.StatusOK, result)
	})
}

func handleSearchPlaces(logger *slog.Logger, session *Session) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query().Get("q")
		if query == "" {
			writeError(logger, w, fmt.Errorf("%w: missing q", errBadRequest))
			return
		}
		places, err := session.Search(r.Context(), query)
		if err != nil {
			writeError(logger, w, err)
			return
		}
		writeJSON(logger, w, http.StatusOK, places)
	})
}

// handleCalculateRoutes routes either to an explicit place or to a result
// of the last place search.
func handleCalculateRoutes(logger *slog.Logger, session *Session) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Place      *navigation.Place `json:"place"`
			PlaceIndex int               `json:"place_index"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(logger, w, err)
			return
		}

		var (
			routes []navigation.Route
			err    error
		)
		if body.Place != nil {
			routes, err = session.RouteTo(r.Context(), *body.Place)
		} else {
			routes, err = session.RouteToResult(r.Context(), body.PlaceIndex)
		}
		if err != nil {
			writeError(logger, w, err)
			return
		}
		writeJSON(logger, w, http.StatusOK, routes)
	})
}

func handleLoadRoutes(logger *slog.Logger, services *Services) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			writeError(logger, w, fmt.Errorf("%w: %v", errBadRequest, err))
			return
		}
		provider, err := navigation.LoadGPX(data, services.Config.CruiseSpeedKmh)
		if err != nil {
			writeError(logger, w, fmt.Errorf("%w: %v", errBadRequest, err))
			return
		}
		services.Session.UseRoutes(provider)
		w.WriteHeader(http.StatusNoContent)
	})
}

func handleSelectRoute(logger *slog.Logger, session *Session) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Index int `json:"index"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(logger, w, err)
			return
		}
		if err := session.SelectRoute(body.Index); err != nil {
			writeError(logger, w, err)
			return
		}
		writeJSON(logger, w, http.StatusOK, session.Navigation())
	})
}

func handleNavigationState(logger *slog.Logger, session *Session) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(logger, w, http.StatusOK, session.Navigation())
	})
}

func handleStartNavigation(logger *slog.Logger, session *Session) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := session.StartNavigation(); err != nil {
			writeError(logger, w, err)
			return
		}
		writeJSON(logger, w, http.StatusOK, session.Navigation())
	})
}

func handleStopNavigation(logger *slog.Logger, session *Session) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session.StopNavigation()
		writeJSON(logger, w, http.StatusOK, session.Navigation())
	})
}

func rideFromPath(r *http.Request, session *Session) (ride.Ride, error) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return ride.Ride{}, fmt.Errorf("%w: invalid ride id", errBadRequest)
	}
	return session.Ride(id)
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, ride.ErrEmptyGPX),
		errors.Is(err, navigation.ErrRouteIndex):
		return http.StatusBadRequest
	case errors.Is(err, ride.ErrRideNotFound),
		errors.Is(err, navigation.ErrNoResults),
		errors.Is(err, navigation.ErrNoRoute),
		errors.Is(err, ErrNoPlaceSelected):
		return http.StatusNotFound
	case errors.Is(err, ride.ErrAlreadyRecording),
		errors.Is(err, ride.ErrNotRecording),
		errors.Is(err, navigation.ErrNavigationInProgress),
		errors.Is(err, navigation.ErrLocationUnavailable):
		return http.StatusConflict
	case errors.Is(err, ErrBackendDisabled):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeError(logger *slog.Logger, w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error("Error handling request", slog.Any("error", err))
	}
	writeJSON(logger, w, status, map[string]string{"error": err.Error()})
}

func writeJSON(logger *slog.Logger, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Error encoding response", slog.Any("error", err))
	}
}
