package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"fx-history-service/internal/domain/model"
	"fx-history-service/internal/domain/ports"
	"fx-history-service/internal/service"
	"fx-history-service/pkg/logger"
)

const (
	maxBodyBytes = 1 << 20

	refreshSucceeded = "Data updated successfully"
	refreshFailed    = "Max retries reached. Error updating data."
)

type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

type HistoricalRatesRequest struct {
	CurrencyPair string `json:"currency_pair"`
	TimeFrame    string `json:"time_frame"`
}

// HistoricalRatePoint is a RatePoint as charting clients expect it, with the
// date repeated as timestamp.
type HistoricalRatePoint struct {
	Date         string  `json:"date"`
	ExchangeRate float64 `json:"exchange_rate"`
	Timestamp    string  `json:"timestamp"`
}

type HistoricalRatesResponse struct {
	ExchangeRates []HistoricalRatePoint `json:"exchangeRates"`
}

func newHistoricalRatesResponse(series model.RateSeries) HistoricalRatesResponse {
	points := make([]HistoricalRatePoint, 0, len(series))
	for _, p := range series {
		points = append(points, HistoricalRatePoint{Date: p.Date, ExchangeRate: p.ExchangeRate, Timestamp: p.Date})
	}
	return HistoricalRatesResponse{ExchangeRates: points}
}

type Handler struct {
	service  ports.HistoricalRateService
	ingestor ports.RateIngestor
	log      *logger.Logger
}

func NewHandler(service ports.HistoricalRateService, ingestor ports.RateIngestor, log *logger.Logger) *Handler {
	return &Handler{
		service:  service,
		ingestor: ingestor,
		log:      log,
	}
}

// PostHistoricalRatesHandler reads {"currency_pair","time_frame"} from the body.
func (h *Handler) PostHistoricalRatesHandler(w http.ResponseWriter, r *http.Request) {
	var request HistoricalRatesRequest

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&request); err != nil {
		h.sendErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	h.getHistoricalRates(w, r, request)
}

func (h *Handler) GetHistoricalRatesHandler(w http.ResponseWriter, r *http.Request) {
	h.getHistoricalRates(w, r, HistoricalRatesRequest{
		CurrencyPair: r.URL.Query().Get("currency_pair"),
		TimeFrame:    r.URL.Query().Get("time_frame"),
	})
}

func (h *Handler) getHistoricalRates(w http.ResponseWriter, r *http.Request, request HistoricalRatesRequest) {
	if strings.TrimSpace(request.CurrencyPair) == "" {
		h.sendErrorResponse(w, http.StatusBadRequest, "missing required parameter: currency_pair")
		return
	}

	pair, err := model.ParseCurrencyPair(request.CurrencyPair)
	if err != nil {
		h.sendErrorResponse(w, http.StatusBadRequest, "invalid currency pair, use FROM_TO")
		return
	}

	series, err := h.service.GetHistoricalRates(r.Context(), pair, model.NewTimeFrame(request.TimeFrame))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.sendJSON(w, http.StatusOK, newHistoricalRatesResponse(series))
}

// RefreshRatesHandler runs one ingestion synchronously.
func (h *Handler) RefreshRatesHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.ingestor.Run(r.Context()); err != nil {
		h.log.Error("Manual refresh failed", "error", err)
		h.sendJSON(w, http.StatusInternalServerError, refreshFailed)
		return
	}

	h.sendJSON(w, http.StatusOK, refreshSucceeded)
}

func (h *Handler) sendJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.Error("Failed to encode response", "error", err)
	}
}

func (h *Handler) sendErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	h.sendJSON(w, statusCode, Response{
		Success: false,
		Error:   message,
	})
}

func (h *Handler) handleServiceError(w http.ResponseWriter, err error) {
	statusCode := http.StatusInternalServerError
	errorMessage := "internal server error"

	switch {
	case errors.Is(err, service.ErrInvalidPair):
		statusCode = http.StatusBadRequest
		errorMessage = "invalid currency pair"
	case errors.Is(err, service.ErrRetrieval):
		errorMessage = "failed to retrieve historical rates"
	}

	h.log.Error("Service error", "error", err, "status_code", statusCode)
	h.sendErrorResponse(w, statusCode, errorMessage)
}
