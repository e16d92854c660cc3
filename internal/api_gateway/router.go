package api_gateway

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/scrapyard-ledger/internal/api_gateway/handler"
	"github.com/scrapyard-ledger/internal/api_gateway/middleware"
	"github.com/scrapyard-ledger/internal/config"
)

// setupRouter configures API routes and middleware for the application
func setupRouter(
	logger *slog.Logger,
	r *gin.Engine,
	authCfg *config.AuthConfig,
	transactionHandler *handler.TransactionHandler,
	ledgerHandler *handler.LedgerHandler,
	employeeHandler *handler.EmployeeHandler,
) {
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CorrelationID())

	// API v1 endpoints, all tenant-scoped via the authenticated actor
	v1 := r.Group("/api/v1")
	v1.Use(middleware.Auth(authCfg))
	{
		// Transaction lifecycle
		transactions := v1.Group("/transactions")
		{
			transactions.POST("", transactionHandler.CreateDraft)
			transactions.GET("", transactionHandler.List)
			transactions.GET("/count", transactionHandler.Count)
			transactions.GET("/:id", transactionHandler.GetByID)
			transactions.PUT("/:id/draft", transactionHandler.SaveDraft)
			transactions.POST("/:id/for-payment", transactionHandler.AdvanceToForPayment)
			transactions.POST("/:id/complete", transactionHandler.Complete)
			transactions.POST("/:id/cancel", transactionHandler.Cancel)
		}

		// Cash ledger
		ledgerGroup := v1.Group("/ledger")
		{
			ledgerGroup.GET("/balance", ledgerHandler.Balance)
			ledgerGroup.GET("/entries", ledgerHandler.ListEntries)
			ledgerGroup.POST("/entries", ledgerHandler.AppendEntry)
		}

		// Staff and cash advances
		employees := v1.Group("/employees")
		{
			employees.POST("", employeeHandler.Create)
			employees.GET("", employeeHandler.List)
			employees.GET("/:id", employeeHandler.GetByID)
			employees.POST("/:id/advances", employeeHandler.GrantAdvance)
			employees.GET("/:id/advances", employeeHandler.ListAdvances)
		}

		v1.GET("/metrics", transactionHandler.Metrics)
	}

	// Health check endpoint for monitoring
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})
}
