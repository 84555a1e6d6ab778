// Package httpapi exposes the operator-facing operations over HTTP using
// chi for routing and go-chi/cors for the browser-facing visualization
// client named in the system's purpose.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"turtled/internal/controller"
	"turtled/internal/direction"
	"turtled/internal/registry"
	"turtled/internal/turtleerr"
)

// New builds the operator HTTP router over reg.
func New(reg *registry.Registry, log *logrus.Entry) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: false,
	}))

	r.Get("/healthz", healthHandler(reg))
	r.Get("/robots", listHandler(reg))
	r.Post("/robots/{id}/command", commandHandler(reg))
	r.Post("/robots/{id}/move", moveHandler(reg))
	r.Post("/robots/{id}/destroy", destroyHandler(reg))
	r.Get("/robots/{id}/inventory", inventoryHandler(reg))
	r.Get("/robots/{id}/world", worldHandler(reg))

	return r
}

func requestLogger(log *logrus.Entry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			log.WithFields(logrus.Fields{"method": req.Method, "path": req.URL.Path}).Debug("operator request")
			next.ServeHTTP(w, req)
		})
	}
}

func healthHandler(reg *registry.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"robots": len(reg.List())})
	}
}

type poseView struct {
	UUID   string `json:"uuid"`
	X      int32  `json:"x"`
	Y      int32  `json:"y"`
	Z      int32  `json:"z"`
	Facing string `json:"facing"`
}

func listHandler(reg *registry.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries := reg.List()
		out := make([]poseView, 0, len(entries))
		for _, e := range entries {
			p := e.Controller.Pose()
			out = append(out, directPoseView(e.ID, p.X, p.Y, p.Z, p.Facing))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func directPoseView(id uuid.UUID, x, y, z int32, facing direction.Direction) poseView {
	return poseView{UUID: id.String(), X: x, Y: y, Z: z, Facing: facing.String()}
}

func commandHandler(reg *registry.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entry, err := resolve(reg, r)
		if err != nil {
			writeError(w, err)
			return
		}
		var body struct {
			Text string `json:"text"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Text == "" {
			writeError(w, turtleerr.ErrBadRequest)
			return
		}
		reply, err := entry.Controller.Command(r.Context(), body.Text)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"reply": reply})
	}
}

func moveHandler(reg *registry.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entry, err := resolve(reg, r)
		if err != nil {
			writeError(w, err)
			return
		}
		var body struct {
			Intent string `json:"intent"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, turtleerr.ErrBadRequest)
			return
		}
		intent, err := direction.Parse(body.Intent)
		if err != nil {
			writeError(w, turtleerr.ErrBadRequest)
			return
		}
		pose, changes, err := entry.Controller.Move(r.Context(), intent)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"pose":    directPoseView(entry.ID, pose.X, pose.Y, pose.Z, pose.Facing),
			"changes": changesView(changes),
		})
	}
}

func destroyHandler(reg *registry.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entry, err := resolve(reg, r)
		if err != nil {
			writeError(w, err)
			return
		}
		var body struct {
			Side string `json:"side"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, turtleerr.ErrBadRequest)
			return
		}
		side, err := direction.Parse(body.Side)
		if err != nil {
			writeError(w, turtleerr.ErrBadRequest)
			return
		}
		change, err := entry.Controller.Destroy(r.Context(), side)
		if err != nil {
			writeError(w, err)
			return
		}
		if change == nil {
			writeJSON(w, http.StatusOK, map[string]any{"change": nil})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"change": changeView(*change)})
	}
}

func inventoryHandler(reg *registry.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entry, err := resolve(reg, r)
		if err != nil {
			writeError(w, err)
			return
		}
		items, err := entry.Controller.Inventory(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, items)
	}
}

func worldHandler(reg *registry.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entry, err := resolve(reg, r)
		if err != nil {
			writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		w.WriteHeader(http.StatusOK)
		w.Write(entry.Controller.WorldSnapshot())
	}
}

func changeView(c controller.WorldChange) map[string]any {
	return map[string]any{
		"x":    c.X,
		"y":    c.Y,
		"z":    c.Z,
		"kind": c.Kind.String(),
		"name": c.Name,
		"r":    c.R,
		"g":    c.G,
		"b":    c.B,
	}
}

func changesView(changes []controller.WorldChange) []map[string]any {
	out := make([]map[string]any, 0, len(changes))
	for _, c := range changes {
		out = append(out, changeView(c))
	}
	return out
}

func resolve(reg *registry.Registry, r *http.Request) (*registry.Entry, error) {
	idParam := chi.URLParam(r, "id")
	id, err := uuid.Parse(idParam)
	if err != nil {
		return nil, turtleerr.ErrBadRequest
	}
	entry, ok := reg.Get(id)
	if !ok {
		return nil, turtleerr.ErrNotFound
	}
	return entry, nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, turtleerr.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, turtleerr.ErrBadRequest):
		status = http.StatusBadRequest
	case errors.Is(err, turtleerr.ErrCannotMove):
		status = http.StatusConflict
	case errors.Is(err, turtleerr.ErrCoordOutOfChunk),
		errors.Is(err, turtleerr.ErrAlreadyAir),
		errors.Is(err, turtleerr.ErrNoSuchChunk),
		errors.Is(err, turtleerr.ErrYRange),
		errors.Is(err, turtleerr.ErrPaletteOverflow):
		status = http.StatusConflict
	case errors.Is(err, turtleerr.ErrNotImplemented):
		status = http.StatusNotImplemented
	case errors.Is(err, turtleerr.ErrWsClosed),
		errors.Is(err, turtleerr.ErrTimeOut),
		errors.Is(err, turtleerr.ErrInvalidResponse),
		errors.Is(err, turtleerr.ErrRequestSendError):
		status = http.StatusBadGateway
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
