package http

import (
	"errors"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	feedbackapp "polyglot/internal/app/feedback"
	"polyglot/internal/domain/feedback"
	"polyglot/internal/infra/observability"
	"polyglot/internal/shared/logging"
)

// IdempotencyKeyHeader may carry the submission key instead of the body field.
const IdempotencyKeyHeader = "Idempotency-Key"

// FeedbackHandler serves analysis, feedback, product and model endpoints.
type FeedbackHandler struct {
	service      *feedbackapp.Service
	obs          *observability.Observability
	maxBodyBytes int64
	logger       logging.Logger
}

// NewFeedbackHandler builds the feedback handler.
func NewFeedbackHandler(service *feedbackapp.Service, obs *observability.Observability, maxBodyBytes int64) *FeedbackHandler {
	return &FeedbackHandler{
		service:      service,
		obs:          obs,
		maxBodyBytes: maxBodyBytes,
		logger:       logging.NewComponentLogger("FeedbackHandler"),
	}
}

type translateRequest struct {
	Text string `json:"text"`
}

type submitRequest struct {
	Text           string `json:"text"`
	Product        string `json:"product"`
	Language       string `json:"language"`
	TranslatedText string `json:"translated_text"`
	Sentiment      string `json:"sentiment"`
	IdempotencyKey string `json:"idempotency_key"`
}

type bulkDeleteRequest struct {
	IDs []int64 `json:"ids"`
}

type bulkDeleteResponse struct {
	Deleted int     `json:"deleted"`
	IDs     []int64 `json:"ids"`
}

type productRequest struct {
	Name string `json:"name"`
}

type modelRequest struct {
	ModelName string `json:"model_name"`
}

type currentModelResponse struct {
	CurrentModel string `json:"current_model"`
}

// HandleTranslate analyzes text without storing it.
func (h *FeedbackHandler) HandleTranslate(w http.ResponseWriter, r *http.Request) {
	var req translateRequest
	if err := decodeJSONBody(w, r, &req, h.maxBodyBytes); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	analysis, err := h.service.Analyze(r.Context(), req.Text)
	if err != nil {
		writeMappedError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

// HandleSubmit stores a feedback record. Replays of an idempotency key answer 200
// with the original record; new records answer 201.
func (h *FeedbackHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := decodeJSONBody(w, r, &req, h.maxBodyBytes); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	key := strings.TrimSpace(req.IdempotencyKey)
	if key == "" {
		key = strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
	}

	ctx := r.Context()
	if h.obs != nil && h.obs.Tracer != nil {
		spanCtx, span := h.obs.Tracer.StartSpan(ctx, observability.SpanFeedbackSubmit,
			attribute.Bool("polyglot.feedback.preanalyzed", strings.TrimSpace(req.TranslatedText) != ""),
		)
		defer span.End()
		ctx = spanCtx
	}

	record, created, err := h.service.Submit(ctx, feedbackapp.SubmitRequest{
		Text:           req.Text,
		Product:        req.Product,
		Language:       req.Language,
		TranslatedText: req.TranslatedText,
		Sentiment:      req.Sentiment,
		IdempotencyKey: key,
	})
	if err != nil {
		writeMappedError(w, r, h.logger, err)
		return
	}
	status := http.StatusCreated
	if !created {
		status = http.StatusOK
	}
	writeJSON(w, status, record)
}

// HandleList returns one filtered page of records.
func (h *FeedbackHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	skip, err := queryInt(r, "skip")
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	if r.URL.Query().Has("limit") && limit == 0 {
		writeDetail(w, http.StatusBadRequest, "Limit must be between 1 and 1000")
		return
	}
	result, err := h.service.List(r.Context(), filterFromQuery(r), feedback.Page{Skip: skip, Limit: limit})
	if err != nil {
		writeMappedError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleDelete removes one record.
func (h *FeedbackHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		if errors.Is(err, feedback.ErrNotFound) {
			writeDetail(w, http.StatusNotFound, "Feedback not found")
			return
		}
		writeMappedError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted", "id": id})
}

// HandleBulkDelete removes the listed records.
func (h *FeedbackHandler) HandleBulkDelete(w http.ResponseWriter, r *http.Request) {
	var req bulkDeleteRequest
	if err := decodeJSONBody(w, r, &req, h.maxBodyBytes); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	deleted, err := h.service.BulkDelete(r.Context(), req.IDs)
	if err != nil {
		writeMappedError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, bulkDeleteResponse{Deleted: len(deleted), IDs: deleted})
}

// HandleDeleteMatching removes every record matching the query filters.
func (h *FeedbackHandler) HandleDeleteMatching(w http.ResponseWriter, r *http.Request) {
	count, err := h.service.DeleteMatching(r.Context(), filterFromQuery(r))
	if err != nil {
		writeMappedError(w, r, h.logger, err)
		return
	}
	logging.FromContext(r.Context(), h.logger).Info("Deleted %d feedback records", count)
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": count})
}

// HandleStats aggregates sentiment counts for the query filters.
func (h *FeedbackHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context(), filterFromQuery(r))
	if err != nil {
		writeMappedError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// HandleListProducts returns the product catalog.
func (h *FeedbackHandler) HandleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.ListProducts(r.Context())
	if err != nil {
		writeMappedError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

// HandleCreateProduct adds a product.
func (h *FeedbackHandler) HandleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := decodeJSONBody(w, r, &req, h.maxBodyBytes); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	product, err := h.service.CreateProduct(r.Context(), req.Name)
	if err != nil {
		if errors.Is(err, feedback.ErrConflict) {
			writeDetail(w, http.StatusConflict, "Product already exists")
			return
		}
		writeMappedError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, product)
}

// HandleDeleteProduct removes a product.
func (h *FeedbackHandler) HandleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.service.DeleteProduct(r.Context(), id); err != nil {
		if errors.Is(err, feedback.ErrNotFound) {
			writeDetail(w, http.StatusNotFound, "Product not found")
			return
		}
		writeMappedError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted", "id": id})
}

// HandleListModels returns the provider's model catalog.
func (h *FeedbackHandler) HandleListModels(w http.ResponseWriter, r *http.Request) {
	models, err := h.service.ListModels(r.Context())
	if err != nil {
		writeMappedError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"models": models})
}

// HandleGetCurrentModel returns the model used for analysis.
func (h *FeedbackHandler) HandleGetCurrentModel(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, currentModelResponse{CurrentModel: h.service.CurrentModel(r.Context())})
}

// HandleSetCurrentModel selects the model used for analysis.
func (h *FeedbackHandler) HandleSetCurrentModel(w http.ResponseWriter, r *http.Request) {
	var req modelRequest
	if err := decodeJSONBody(w, r, &req, h.maxBodyBytes); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	model, err := h.service.SetCurrentModel(r.Context(), req.ModelName)
	if err != nil {
		writeMappedError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, currentModelResponse{CurrentModel: model})
}

func filterFromQuery(r *http.Request) feedback.Filter {
	query := r.URL.Query()
	return feedback.Filter{
		Product:   strings.TrimSpace(query.Get("product")),
		Language:  strings.TrimSpace(query.Get("language")),
		Sentiment: feedback.Sentiment(strings.TrimSpace(query.Get("sentiment"))),
	}
}
