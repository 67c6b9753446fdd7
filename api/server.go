package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/wricardo/parkingsim/sim/config"
	"github.com/wricardo/parkingsim/sim/engine"
	"github.com/wricardo/parkingsim/sim/planner"
	"github.com/wricardo/parkingsim/sim/service"
	"github.com/wricardo/parkingsim/transport/websocket"
)

// Server represents the REST API server
type Server struct {
	service service.SimService
	hub     *websocket.Hub
	router  *mux.Router
}

// NewServer creates a new API server. hub may be nil, in which case /ws is not served.
func NewServer(simService service.SimService, hub *websocket.Hub) *Server {
	s := &Server{
		service: simService,
		hub:     hub,
		router:  mux.NewRouter(),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/health", s.handleHealth).Methods("GET")

	// Simulation
	api.HandleFunc("/state", s.handleGetState).Methods("GET")
	api.HandleFunc("/controls", s.handleSetControls).Methods("POST")
	api.HandleFunc("/drive", s.handleDrive).Methods("POST")
	api.HandleFunc("/reset", s.handleReset).Methods("POST")

	// Routing
	api.HandleFunc("/target", s.handleSelectTarget).Methods("POST")
	api.HandleFunc("/route", s.handleGetRoute).Methods("GET")
	api.HandleFunc("/plan", s.handlePlan).Methods("POST")

	// World
	api.HandleFunc("/grid", s.handleGetGrid).Methods("GET")
	api.HandleFunc("/point", s.handleDescribePoint).Methods("GET")

	// Layouts
	api.HandleFunc("/layouts", s.handleListLayouts).Methods("GET")
	api.HandleFunc("/layout", s.handleGetLayout).Methods("GET")
	api.HandleFunc("/layouts/{name}/load", s.handleLoadLayout).Methods("POST")

	if s.hub != nil {
		s.router.HandleFunc("/ws", s.hub.ServeWS)
	}

	// Browser viewer
	s.router.PathPrefix("/").Handler(http.FileServer(http.Dir("./static/")))
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// statusFor maps service errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidTarget), errors.Is(err, planner.ErrUnknownStrategy):
		return http.StatusBadRequest
	case errors.Is(err, config.ErrLayoutNotFound):
		return http.StatusNotFound
	case errors.Is(err, planner.ErrPathNotFound), errors.Is(err, config.ErrInvalidLayout):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// Simulation Handlers

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	snap, err := s.service.State(r.Context())
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

func (s *Server) handleSetControls(w http.ResponseWriter, r *http.Request) {
	var controls engine.Controls
	if err := json.NewDecoder(r.Body).Decode(&controls); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := s.service.SetControls(r.Context(), controls); err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, controls)
}

func (s *Server) handleDrive(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Controls engine.Controls `json:"controls"`
		Ticks    int             `json:"ticks"`
		Dt       float64         `json:"dt,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Ticks <= 0 {
		respondError(w, http.StatusBadRequest, "ticks must be positive")
		return
	}

	result, err := s.service.Drive(r.Context(), req.Controls, req.Ticks, req.Dt)
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	snap, err := s.service.Reset(r.Context())
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

// Routing Handlers

func (s *Server) handleSelectTarget(w http.ResponseWriter, r *http.Request) {
	var target engine.Point
	if err := json.NewDecoder(r.Body).Decode(&target); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	route, err := s.service.SelectTarget(r.Context(), target)
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}
	respondJSON(w, http.StatusAccepted, route)
}

func (s *Server) handleGetRoute(w http.ResponseWriter, r *http.Request) {
	route, err := s.service.Route(r.Context())
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, route)
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	var req service.PlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := s.service.PlanPath(r.Context(), req)
	if err != nil {
		var nf *planner.NotFoundError
		if errors.As(err, &nf) {
			// Partial progress is useful for drawing where the search gave up
			respondJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
				"error":      err.Error(),
				"strategy":   nf.Strategy,
				"partial":    nf.Partial,
				"expansions": nf.Expansions,
			})
			return
		}
		respondError(w, statusFor(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// World Handlers

func (s *Server) handleGetGrid(w http.ResponseWriter, r *http.Request) {
	points, _ := strconv.ParseBool(r.URL.Query().Get("points"))
	info, err := s.service.Grid(r.Context(), points)
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, info)
}

func (s *Server) handleDescribePoint(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	x, errX := strconv.ParseFloat(query.Get("x"), 64)
	y, errY := strconv.ParseFloat(query.Get("y"), 64)
	if errX != nil || errY != nil {
		respondError(w, http.StatusBadRequest, "x and y query parameters are required")
		return
	}

	info, err := s.service.DescribePoint(r.Context(), engine.Point{X: x, Y: y})
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, info)
}

// Layout Handlers

func (s *Server) handleListLayouts(w http.ResponseWriter, r *http.Request) {
	layouts, err := s.service.ListLayouts(r.Context())
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, layouts)
}

func (s *Server) handleGetLayout(w http.ResponseWriter, r *http.Request) {
	layout, err := s.service.Layout(r.Context())
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, layout)
}

func (s *Server) handleLoadLayout(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	snap, err := s.service.LoadLayout(r.Context(), name)
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

// Health check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}
