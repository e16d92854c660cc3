package handler

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/scrapyard-ledger/internal/api_gateway/middleware"
	"github.com/scrapyard-ledger/internal/api_gateway/service"
	"github.com/scrapyard-ledger/internal/domain/ledger"
)

// LedgerHandler handles HTTP requests for the cash ledger
type LedgerHandler struct {
	ledgerService service.LedgerService
	logger        *slog.Logger
}

// NewLedgerHandler creates a new ledger handler
func NewLedgerHandler(logger *slog.Logger, ledgerService service.LedgerService) *LedgerHandler {
	return &LedgerHandler{
		ledgerService: ledgerService,
		logger:        logger,
	}
}

// Balance reports the tenant's cash on hand, derived from the ledger sum
func (h *LedgerHandler) Balance(c *gin.Context) {
	actor := middleware.GetActor(c)
	balance, err := h.ledgerService.Balance(c.Request.Context(), actor)
	if err != nil {
		respondDomainError(c, h.logger, err)
		return
	}

	RespondOK(c, BalanceResponse{
		Balance: balance,
		AsOf:    time.Now().UTC().Format(time.RFC3339),
	})
}

// ListEntries returns a page of ledger entries, newest first
func (h *LedgerHandler) ListEntries(c *gin.Context) {
	var q PaginationParams
	if err := c.ShouldBindQuery(&q); err != nil {
		RespondBadRequest(c, "Invalid query parameters: "+err.Error())
		return
	}

	actor := middleware.GetActor(c)
	entries, total, err := h.ledgerService.ListEntries(c.Request.Context(), actor, q.Page, q.PerPage)
	if err != nil {
		respondDomainError(c, h.logger, err)
		return
	}

	responses := make([]EntryResponse, 0, len(entries))
	for _, entry := range entries {
		responses = append(responses, mapEntryToResponse(entry))
	}

	RespondWithPaginatedData(c, 200, responses, q.Page, q.PerPage, int(total))
}

// AppendEntry records a manual cash movement (opening, adjustment, expense).
// The entry is staged and becomes visible in the ledger shortly after.
func (h *LedgerHandler) AppendEntry(c *gin.Context) {
	var req AppendEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	actor := middleware.GetActor(c)
	entry, err := h.ledgerService.AppendManual(c.Request.Context(), actor, ledger.EntryType(req.Type), req.Amount, req.Description)
	if err != nil {
		respondDomainError(c, h.logger, err)
		return
	}

	RespondAccepted(c, mapEntryToResponse(entry))
}
