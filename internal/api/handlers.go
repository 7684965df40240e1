package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/sells-group/solar-cli/internal/cache"
	"github.com/sells-group/solar-cli/internal/lead"
	"github.com/sells-group/solar-cli/internal/model"
	"github.com/sells-group/solar-cli/internal/pipeline"
)

// kindUnavailable marks routes whose backing feature is not configured.
const kindUnavailable pipeline.Kind = "unavailable"

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Kind  pipeline.Kind `json:"kind"`
	Error string        `json:"error"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status   string            `json:"status"`
	Cache    *cache.Stats      `json:"cache,omitempty"`
	Circuits map[string]string `json:"circuits,omitempty"`
}

// InstallersResponse is the body of POST /find_best_solar_installers.
type InstallersResponse struct {
	Address    string                  `json:"address"`
	Installers []model.RankedInstaller `json:"installers"`
}

type addressRequest struct {
	Address string `json:"address"`
}

type reportRequest struct {
	Address     string   `json:"address"`
	MonthlyBill *float64 `json:"monthly_bill"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := HealthResponse{Status: "ok"}
	if s.cache != nil {
		stats := s.cache.Stats()
		resp.Cache = &stats
	}
	if s.breakers != nil {
		states := s.breakers.States()
		resp.Circuits = make(map[string]string, len(states))
		for name, st := range states {
			resp.Circuits[name] = st.String()
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSurface(w http.ResponseWriter, r *http.Request) {
	var req addressRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := s.estimator.BestSurface(r.Context(), req.Address)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	var req reportRequest
	if !decode(w, r, &req) {
		return
	}
	if req.MonthlyBill == nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Kind: pipeline.KindInvalidInput, Error: "monthly_bill is required"})
		return
	}
	res, err := s.estimator.Report(r.Context(), req.Address, *req.MonthlyBill)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleInstallers(w http.ResponseWriter, r *http.Request) {
	var req addressRequest
	if !decode(w, r, &req) {
		return
	}
	ranked, err := s.estimator.RankInstallers(r.Context(), req.Address)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if ranked == nil {
		ranked = []model.RankedInstaller{}
	}
	writeJSON(w, http.StatusOK, InstallersResponse{Address: req.Address, Installers: ranked})
}

func (s *Server) handleCreateLead(w http.ResponseWriter, r *http.Request) {
	if s.leads == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Kind: kindUnavailable, Error: "lead capture is not configured"})
		return
	}
	var in lead.Input
	if !decode(w, r, &in) {
		return
	}
	res, err := s.leads.Create(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	status := http.StatusCreated
	if res.Duplicate {
		status = http.StatusOK
	}
	writeJSON(w, status, res)
}

// decode reads a JSON body into v, writing a 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		msg := "invalid request body"
		if errors.Is(err, io.EOF) {
			msg = "request body is empty"
		}
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Kind: pipeline.KindInvalidInput, Error: msg})
		return false
	}
	return true
}

// statusFor maps a failure kind to its HTTP status.
func statusFor(kind pipeline.Kind) int {
	switch kind {
	case pipeline.KindInvalidInput:
		return http.StatusBadRequest
	case pipeline.KindResolution:
		return http.StatusUnprocessableEntity
	case pipeline.KindNoData:
		return http.StatusNotFound
	case pipeline.KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := pipeline.KindOf(err)
	msg := pipeline.MessageOf(err)
	if lead.IsValidation(err) {
		kind = pipeline.KindInvalidInput
		msg = err.Error()
	} else if kind == pipeline.KindInternal {
		msg = "internal error"
	}

	status := statusFor(kind)
	log := zap.L().Warn
	if status >= http.StatusInternalServerError {
		log = zap.L().Error
	}
	log("api: request failed",
		zap.String("path", r.URL.Path),
		zap.String("kind", string(kind)),
		zap.Int("status", status),
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.Error(err),
	)

	writeJSON(w, status, ErrorResponse{Kind: kind, Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}
