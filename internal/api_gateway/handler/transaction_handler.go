// Package handler translates HTTP requests into service calls. Handlers bind
// and validate input, resolve the actor from the request context, and map
// domain errors onto HTTP status codes.
package handler

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/scrapyard-ledger/internal/api_gateway/middleware"
	"github.com/scrapyard-ledger/internal/api_gateway/service"
	"github.com/scrapyard-ledger/internal/domain/shared"
	"github.com/scrapyard-ledger/internal/domain/transaction"
)

// TransactionHandler handles HTTP requests for the transaction lifecycle
type TransactionHandler struct {
	transactionService service.TransactionService
	logger             *slog.Logger
}

// NewTransactionHandler creates a new transaction handler
func NewTransactionHandler(logger *slog.Logger, transactionService service.TransactionService) *TransactionHandler {
	return &TransactionHandler{
		transactionService: transactionService,
		logger:             logger,
	}
}

// respondDomainError maps domain errors onto HTTP status codes
func respondDomainError(c *gin.Context, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, shared.ErrTenantMismatch{}):
		RespondForbidden(c, "")
	case errors.Is(err, shared.ErrPermissionDenied{}):
		RespondForbidden(c, err.Error())
	case errors.Is(err, shared.ErrValidation{}):
		RespondBadRequest(c, err.Error())
	case errors.Is(err, transaction.ErrNotFound{}):
		RespondNotFound(c, "Transaction not found")
	case errors.Is(err, transaction.ErrStatusConflict{}):
		RespondConflict(c, err.Error())
	case errors.Is(err, transaction.ErrIncompleteTransaction{}):
		RespondBadRequest(c, err.Error())
	default:
		logger.Error("Unhandled service error", "error", err)
		RespondInternalError(c)
	}
}

// CreateDraft opens a new transaction session. The draft is persisted before
// the user has entered anything.
func (h *TransactionHandler) CreateDraft(c *gin.Context) {
	var req CreateDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	actor := middleware.GetActor(c)
	txn, err := h.transactionService.CreateDraft(c.Request.Context(), actor, transaction.Kind(req.Kind))
	if err != nil {
		respondDomainError(c, h.logger, err)
		return
	}

	RespondCreated(c, mapTransactionToResponse(txn))
}

// SaveDraft replaces the draft snapshot. Used both by explicit saves and by
// the autosave loop; replaying the same snapshot is harmless.
func (h *TransactionHandler) SaveDraft(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid transaction ID")
		return
	}

	var req SaveDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	items := make([]transaction.LineItem, 0, len(req.Items))
	for _, it := range req.Items {
		if (it.Weight == nil) == (it.Pieces == nil) {
			RespondBadRequest(c, "Each item needs exactly one of weight or pieces")
			return
		}
		items = append(items, transaction.LineItem{
			Name:      it.Name,
			Weight:    it.Weight,
			Pieces:    it.Pieces,
			UnitPrice: it.UnitPrice,
			Images:    it.Images,
		})
	}

	actor := middleware.GetActor(c)
	txn, err := h.transactionService.SaveDraft(c.Request.Context(), actor, id, service.DraftSnapshot{
		CustomerType:  req.CustomerType,
		CustomerName:  req.CustomerName,
		EmployeeNames: req.EmployeeNames,
		Location:      req.Location,
		Items:         items,
		Expenses:      req.Expenses,
		SessionImages: req.SessionImages,
	})
	if err != nil {
		respondDomainError(c, h.logger, err)
		return
	}

	RespondOK(c, mapTransactionToResponse(txn))
}

// GetByID retrieves transaction details, returns 404 if not found
func (h *TransactionHandler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid transaction ID")
		return
	}

	actor := middleware.GetActor(c)
	txn, err := h.transactionService.GetTransaction(c.Request.Context(), actor, id)
	if err != nil {
		respondDomainError(c, h.logger, err)
		return
	}

	RespondOK(c, mapTransactionToResponse(txn))
}

// parseListFilter converts query parameters into a repository filter
func parseListFilter(q ListTransactionsQuery) (transaction.ListFilter, error) {
	filter := transaction.ListFilter{
		Status: transaction.Status(q.Status),
		Kind:   transaction.Kind(q.Kind),
	}
	if q.DateFrom != "" {
		from, err := time.Parse("2006-01-02", q.DateFrom)
		if err != nil {
			return filter, err
		}
		filter.DateFrom = from
	}
	if q.DateTo != "" {
		to, err := time.Parse("2006-01-02", q.DateTo)
		if err != nil {
			return filter, err
		}
		// Inclusive upper bound: the whole day counts.
		filter.DateTo = to.Add(24*time.Hour - time.Nanosecond)
	}
	return filter, nil
}

// List returns a filtered, paginated page of transactions
func (h *TransactionHandler) List(c *gin.Context) {
	var q ListTransactionsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		RespondBadRequest(c, "Invalid query parameters: "+err.Error())
		return
	}

	filter, err := parseListFilter(q)
	if err != nil {
		RespondBadRequest(c, "Invalid date filter: "+err.Error())
		return
	}

	actor := middleware.GetActor(c)
	txns, total, err := h.transactionService.ListTransactions(c.Request.Context(), actor, filter, q.Page, q.PerPage)
	if err != nil {
		respondDomainError(c, h.logger, err)
		return
	}

	responses := make([]TransactionResponse, 0, len(txns))
	for _, txn := range txns {
		responses = append(responses, mapTransactionToResponse(txn))
	}

	RespondWithPaginatedData(c, 200, responses, q.Page, q.PerPage, int(total))
}

// Count returns the number of matching transactions without the records
func (h *TransactionHandler) Count(c *gin.Context) {
	var q ListTransactionsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		RespondBadRequest(c, "Invalid query parameters: "+err.Error())
		return
	}

	filter, err := parseListFilter(q)
	if err != nil {
		RespondBadRequest(c, "Invalid date filter: "+err.Error())
		return
	}

	actor := middleware.GetActor(c)
	count, err := h.transactionService.CountTransactions(c.Request.Context(), actor, filter)
	if err != nil {
		respondDomainError(c, h.logger, err)
		return
	}

	RespondOK(c, gin.H{"count": count})
}

// AdvanceToForPayment moves a complete draft to the payment screen
func (h *TransactionHandler) AdvanceToForPayment(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid transaction ID")
		return
	}

	actor := middleware.GetActor(c)
	txn, err := h.transactionService.AdvanceToForPayment(c.Request.Context(), actor, id)
	if err != nil {
		respondDomainError(c, h.logger, err)
		return
	}

	RespondOK(c, mapTransactionToResponse(txn))
}

// Complete finalizes payment. Owner only; at most one cash entry results no
// matter how often this is called.
func (h *TransactionHandler) Complete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid transaction ID")
		return
	}

	actor := middleware.GetActor(c)
	txn, err := h.transactionService.Complete(c.Request.Context(), actor, id)
	if err != nil {
		respondDomainError(c, h.logger, err)
		return
	}

	RespondOK(c, mapTransactionToResponse(txn))
}

// Cancel abandons an open transaction
func (h *TransactionHandler) Cancel(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid transaction ID")
		return
	}

	actor := middleware.GetActor(c)
	txn, err := h.transactionService.Cancel(c.Request.Context(), actor, id)
	if err != nil {
		respondDomainError(c, h.logger, err)
		return
	}

	RespondOK(c, mapTransactionToResponse(txn))
}

// Metrics aggregates completed transactions over a date range
func (h *TransactionHandler) Metrics(c *gin.Context) {
	var q MetricsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		RespondBadRequest(c, "Invalid query parameters: "+err.Error())
		return
	}

	from, err := time.Parse("2006-01-02", q.DateFrom)
	if err != nil {
		RespondBadRequest(c, "Invalid date_from")
		return
	}
	to, err := time.Parse("2006-01-02", q.DateTo)
	if err != nil {
		RespondBadRequest(c, "Invalid date_to")
		return
	}
	to = to.Add(24*time.Hour - time.Nanosecond)

	actor := middleware.GetActor(c)
	metrics, err := h.transactionService.Metrics(c.Request.Context(), actor, from, to)
	if err != nil {
		respondDomainError(c, h.logger, err)
		return
	}

	RespondOK(c, metrics)
}
