package handler

import (
	"log/slog"
	"net/http"

	"carprice/internal/api"
	"carprice/internal/middleware"
	"carprice/internal/model"
	"carprice/internal/observability"
	"carprice/internal/service"
)

// PredictionHandler serves price predictions and the history of stored ones.
type PredictionHandler struct {
	predictions *service.PredictionService
}

func NewPredictionHandler(predictions *service.PredictionService) *PredictionHandler {
	return &PredictionHandler{predictions: predictions}
}

// Predict stores the prediction for signed-in users and answers guests
// without storing anything.
func (h *PredictionHandler) Predict(w http.ResponseWriter, r *http.Request) {
	attrs, ok := h.decode(w, r)
	if !ok {
		return
	}

	userID, authenticated := middleware.GetUserID(r.Context())
	if !authenticated {
		h.guest(w, r, attrs)
		return
	}

	p, err := h.predictions.Predict(r.Context(), userID, attrs)
	if err != nil {
		h.predictionFailed(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, service.ToPredictionResponse(p))
}

// PredictGuest never stores the prediction, even for signed-in users.
func (h *PredictionHandler) PredictGuest(w http.ResponseWriter, r *http.Request) {
	attrs, ok := h.decode(w, r)
	if !ok {
		return
	}
	h.guest(w, r, attrs)
}

func (h *PredictionHandler) guest(w http.ResponseWriter, r *http.Request, attrs api.CarAttributes) {
	resp, err := h.predictions.PredictGuest(r.Context(), attrs)
	if err != nil {
		h.predictionFailed(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *PredictionHandler) decode(w http.ResponseWriter, r *http.Request) (api.CarAttributes, bool) {
	body, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return api.CarAttributes{}, false
	}
	attrs, fe, err := api.DecodeCarAttributes(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return api.CarAttributes{}, false
	}
	if fe.Has() {
		writeFieldErrors(w, fe)
		return api.CarAttributes{}, false
	}
	return attrs, true
}

func (h *PredictionHandler) predictionFailed(w http.ResponseWriter, r *http.Request, err error) {
	msg := "prediction failed"
	if model.IsModelError(err) {
		msg = "model request failed"
	}
	observability.FromContext(r.Context()).Error(msg, slog.String("error", err.Error()))
	writeError(w, http.StatusInternalServerError, "Error processing your request")
}

// History returns one page of the caller's predictions.
func (h *PredictionHandler) History(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication credentials were not provided.")
		return
	}

	values := r.URL.Query()
	page, err := h.predictions.History(r.Context(), userID, api.ParseHistoryQuery(values))
	if err != nil {
		writeInternalError(w, r, "failed to list predictions", err)
		return
	}
	page.Filters = api.RawFilters(values)

	writeJSON(w, http.StatusOK, page)
}
