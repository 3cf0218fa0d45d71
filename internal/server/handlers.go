package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sells-group/churn-cli/internal/model"
	"github.com/sells-group/churn-cli/internal/query"
	"github.com/sells-group/churn-cli/internal/store"
)

const predictionIDHeader = "X-Prediction-Id"

// maxListLimit caps the limit query parameter.
const maxListLimit = 1000

// handleHealth reports 503 when the audit store is configured but unreachable.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]string{
		"status": "ok",
		"model":  s.art.Name(),
	}
	if s.store == nil {
		respondJSON(w, http.StatusOK, body)
		return
	}

	if err := s.store.Ping(r.Context()); err != nil {
		zap.L().Warn("server: store ping failed", zap.Error(err))
		body["status"] = "degraded"
		body["store"] = "unavailable"
		respondJSON(w, http.StatusServiceUnavailable, body)
		return
	}
	body["store"] = "ok"
	respondJSON(w, http.StatusOK, body)
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	e, err := model.DecodeEmployee(r.Body)
	if err != nil {
		var ife *model.InvalidFeatureError
		if errors.As(err, &ife) {
			respondInvalid(w, ife)
			return
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "request body too large", nil)
			return
		}
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	pred, err := s.svc.Predict(r.Context(), e)
	if err != nil {
		var ife *model.InvalidFeatureError
		if errors.As(err, &ife) {
			respondInvalid(w, ife)
			return
		}
		zap.L().Error("server: predict failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "prediction failed", nil)
		return
	}

	if id := s.record(r.Context(), e, pred); id != "" {
		w.Header().Set(predictionIDHeader, id)
	}
	respondJSON(w, http.StatusOK, pred)
}

// record writes the prediction to the audit log when one is configured. A
// store failure is logged and never fails the request.
func (s *Server) record(ctx context.Context, e model.Employee, pred model.Prediction) string {
	if s.store == nil {
		return ""
	}
	rec := model.PredictionRecord{
		Employee:   e,
		Prediction: pred,
		Model:      s.art.Name(),
		Source:     model.SourceAPI,
	}
	if err := s.store.SavePrediction(ctx, &rec); err != nil {
		zap.L().Warn("server: save prediction", zap.Error(err))
		return ""
	}
	return rec.ID
}

func (s *Server) handleDefaults(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, model.DefaultEmployee())
}

func (s *Server) handleForm(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"fields": model.FormFields(),
	})
}

func (s *Server) handleModel(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.art.Info())
}

func (s *Server) handleListPredictions(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		respondError(w, http.StatusNotFound, "prediction history is disabled", nil)
		return
	}

	q := r.URL.Query()
	var filter store.PredictionFilter

	if v := q.Get("verdict"); v != "" {
		verdict, err := model.ParseVerdict(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid verdict", err)
			return
		}
		filter.Verdict = verdict
	}
	filter.Model = q.Get("model")
	filter.Source = q.Get("source")

	var ok bool
	if filter.Limit, ok = intParam(w, q.Get("limit"), "limit", maxListLimit); !ok {
		return
	}
	if filter.Offset, ok = intParam(w, q.Get("offset"), "offset", -1); !ok {
		return
	}

	var where *query.Filter
	if expr := q.Get("where"); expr != "" {
		f, err := query.Compile(expr)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid where expression", err)
			return
		}
		where = f
	}

	recs, err := s.store.ListPredictions(r.Context(), filter)
	if err != nil {
		zap.L().Error("server: list predictions", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "list predictions failed", nil)
		return
	}
	if where != nil {
		if recs, err = where.Apply(recs); err != nil {
			respondError(w, http.StatusBadRequest, "where expression failed", err)
			return
		}
	}
	if recs == nil {
		recs = []model.PredictionRecord{}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"predictions": recs,
		"count":       len(recs),
	})
}

func (s *Server) handleGetPrediction(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		respondError(w, http.StatusNotFound, "prediction history is disabled", nil)
		return
	}

	id := chi.URLParam(r, "id")
	rec, err := s.store.GetPrediction(r.Context(), id)
	if err != nil {
		zap.L().Error("server: get prediction", zap.String("id", id), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "get prediction failed", nil)
		return
	}
	if rec == nil {
		respondError(w, http.StatusNotFound, "prediction not found", nil)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

// intParam parses a non-negative integer query parameter. max < 0 means no
// upper bound. It writes a 400 and returns false on bad input.
func intParam(w http.ResponseWriter, raw, name string, max int) (int, bool) {
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 || (max >= 0 && n > max) {
		respondError(w, http.StatusBadRequest, "invalid "+name, nil)
		return 0, false
	}
	return n, true
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data) //nolint:errcheck
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	response := map[string]string{
		"error": message,
	}
	if err != nil {
		response["details"] = err.Error()
	}
	respondJSON(w, status, response)
}

func respondInvalid(w http.ResponseWriter, ife *model.InvalidFeatureError) {
	respondJSON(w, http.StatusUnprocessableEntity, map[string]any{
		"error":      "invalid feature record",
		"violations": ife.Violations,
	})
}
