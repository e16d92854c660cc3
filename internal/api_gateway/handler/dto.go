package handler

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/scrapyard-ledger/internal/domain/employee"
	"github.com/scrapyard-ledger/internal/domain/ledger"
	"github.com/scrapyard-ledger/internal/domain/transaction"
)

// CreateDraftRequest opens a new transaction session
type CreateDraftRequest struct {
	Kind string `json:"kind" binding:"required,oneof=buy sell"`
}

// LineItemRequest is one scrap item in a draft snapshot. Exactly one of
// weight or pieces must be set.
type LineItemRequest struct {
	Name      string           `json:"name" binding:"required"`
	Weight    *decimal.Decimal `json:"weight,omitempty"`
	Pieces    *int64           `json:"pieces,omitempty"`
	UnitPrice int64            `json:"unit_price" binding:"min=0"`
	Images    []string         `json:"images,omitempty"`
}

// SaveDraftRequest is the full mutable snapshot sent on each autosave
type SaveDraftRequest struct {
	CustomerType  string            `json:"customer_type"`
	CustomerName  string            `json:"customer_name"`
	EmployeeNames []string          `json:"employee_names"`
	Location      string            `json:"location"`
	Items         []LineItemRequest `json:"items"`
	Expenses      int64             `json:"expenses" binding:"min=0"`
	SessionImages []string          `json:"session_images"`
}

// LineItemResponse represents a line item in API responses
type LineItemResponse struct {
	Name      string           `json:"name"`
	Weight    *decimal.Decimal `json:"weight,omitempty"`
	Pieces    *int64           `json:"pieces,omitempty"`
	UnitPrice int64            `json:"unit_price"`
	LineTotal int64            `json:"line_total"`
	Images    []string         `json:"images,omitempty"`
}

// TransactionResponse represents a transaction in API responses
type TransactionResponse struct {
	ID            string             `json:"id"`
	Kind          string             `json:"kind"`
	Status        string             `json:"status"`
	CustomerType  string             `json:"customer_type,omitempty"`
	CustomerName  string             `json:"customer_name,omitempty"`
	EmployeeNames []string           `json:"employee_names"`
	Location      string             `json:"location,omitempty"`
	Items         []LineItemResponse `json:"items"`
	Subtotal      int64              `json:"subtotal"`
	Expenses      int64              `json:"expenses"`
	Total         int64              `json:"total"`
	SessionImages []string           `json:"session_images,omitempty"`
	Version       int64              `json:"version"`
	CreatedAt     string             `json:"created_at"`
	UpdatedAt     string             `json:"updated_at"`
	CompletedAt   string             `json:"completed_at,omitempty"`
}

// ListTransactionsQuery holds the filter and pagination parameters
type ListTransactionsQuery struct {
	Status   string `form:"status" binding:"omitempty,oneof=in-progress for-payment completed cancelled"`
	Kind     string `form:"kind" binding:"omitempty,oneof=buy sell"`
	DateFrom string `form:"date_from"`
	DateTo   string `form:"date_to"`
	Page     int    `form:"page,default=1" binding:"min=1"`
	PerPage  int    `form:"per_page,default=20" binding:"min=1,max=100"`
}

// PaginationParams represents pagination parameters for list endpoints
type PaginationParams struct {
	Page    int `form:"page,default=1" binding:"min=1"`
	PerPage int `form:"per_page,default=20" binding:"min=1,max=100"`
}

// AppendEntryRequest records a manual cash movement
type AppendEntryRequest struct {
	Type        string `json:"type" binding:"required,oneof=opening adjustment expense"`
	Amount      int64  `json:"amount" binding:"required"`
	Description string `json:"description"`
}

// EntryResponse represents a ledger entry in API responses
type EntryResponse struct {
	ID            string `json:"id"`
	Type          string `json:"type"`
	Amount        int64  `json:"amount"`
	Description   string `json:"description,omitempty"`
	Employee      string `json:"employee,omitempty"`
	TransactionID string `json:"transaction_id,omitempty"`
	Timestamp     string `json:"timestamp"`
}

// BalanceResponse reports the ledger-derived cash position
type BalanceResponse struct {
	Balance int64  `json:"balance"`
	AsOf    string `json:"as_of"`
}

// MetricsQuery bounds the metrics aggregation window
type MetricsQuery struct {
	DateFrom string `form:"date_from" binding:"required"`
	DateTo   string `form:"date_to" binding:"required"`
}

// CreateEmployeeRequest registers a staff member
type CreateEmployeeRequest struct {
	Name         string `json:"name" binding:"required"`
	Role         string `json:"role" binding:"required,oneof=owner employee"`
	WeeklySalary int64  `json:"weekly_salary" binding:"min=0"`
}

// EmployeeResponse represents an employee in API responses
type EmployeeResponse struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Role            string `json:"role"`
	WeeklySalary    int64  `json:"weekly_salary"`
	CurrentAdvances int64  `json:"current_advances"`
	SessionsHandled int64  `json:"sessions_handled"`
	CreatedAt       string `json:"created_at"`
}

// GrantAdvanceRequest records a cash advance
type GrantAdvanceRequest struct {
	Amount      int64  `json:"amount" binding:"required,gt=0"`
	Description string `json:"description"`
}

// AdvanceResponse represents a cash advance in API responses
type AdvanceResponse struct {
	ID          string `json:"id"`
	EmployeeID  string `json:"employee_id"`
	Amount      int64  `json:"amount"`
	Date        string `json:"date"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status"`
}

func mapTransactionToResponse(txn *transaction.Transaction) TransactionResponse {
	items := make([]LineItemResponse, 0, len(txn.Items))
	for _, li := range txn.Items {
		items = append(items, LineItemResponse{
			Name:      li.Name,
			Weight:    li.Weight,
			Pieces:    li.Pieces,
			UnitPrice: li.UnitPrice,
			LineTotal: li.LineTotal,
			Images:    li.Images,
		})
	}

	resp := TransactionResponse{
		ID:            txn.ID.String(),
		Kind:          string(txn.Kind),
		Status:        string(txn.Status),
		CustomerType:  txn.CustomerType,
		CustomerName:  txn.CustomerName,
		EmployeeNames: txn.EmployeeNames,
		Location:      txn.Location,
		Items:         items,
		Subtotal:      txn.Subtotal,
		Expenses:      txn.Expenses,
		Total:         txn.Total,
		SessionImages: txn.SessionImages,
		Version:       txn.Version,
		CreatedAt:     txn.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     txn.UpdatedAt.Format(time.RFC3339),
	}
	if txn.CompletedAt != nil {
		resp.CompletedAt = txn.CompletedAt.Format(time.RFC3339)
	}
	return resp
}

func mapEntryToResponse(entry *ledger.Entry) EntryResponse {
	resp := EntryResponse{
		ID:          entry.ID.String(),
		Type:        string(entry.Type),
		Amount:      entry.Amount,
		Description: entry.Description,
		Employee:    entry.Employee,
		Timestamp:   entry.Timestamp.Format(time.RFC3339),
	}
	if entry.TransactionID != nil {
		resp.TransactionID = entry.TransactionID.String()
	}
	return resp
}

func mapEmployeeToResponse(emp *employee.Employee) EmployeeResponse {
	return EmployeeResponse{
		ID:              emp.ID.String(),
		Name:            emp.Name,
		Role:            string(emp.Role),
		WeeklySalary:    emp.WeeklySalary,
		CurrentAdvances: emp.CurrentAdvances,
		SessionsHandled: emp.SessionsHandled,
		CreatedAt:       emp.CreatedAt.Format(time.RFC3339),
	}
}

func mapAdvanceToResponse(adv *employee.CashAdvance) AdvanceResponse {
	return AdvanceResponse{
		ID:          adv.ID.String(),
		EmployeeID:  adv.EmployeeID.String(),
		Amount:      adv.Amount,
		Date:        adv.Date.Format(time.RFC3339),
		Description: adv.Description,
		Status:      string(adv.Status),
	}
}
