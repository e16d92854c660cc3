package handler

import (
	"errors"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/scrapyard-ledger/internal/api_gateway/middleware"
	"github.com/scrapyard-ledger/internal/api_gateway/service"
	"github.com/scrapyard-ledger/internal/domain/employee"
	"github.com/scrapyard-ledger/internal/domain/shared"
)

// EmployeeHandler handles HTTP requests for staff and cash advances
type EmployeeHandler struct {
	employeeService service.EmployeeService
	logger          *slog.Logger
}

// NewEmployeeHandler creates a new employee handler
func NewEmployeeHandler(logger *slog.Logger, employeeService service.EmployeeService) *EmployeeHandler {
	return &EmployeeHandler{
		employeeService: employeeService,
		logger:          logger,
	}
}

func (h *EmployeeHandler) respondError(c *gin.Context, err error) {
	if errors.Is(err, employee.ErrEmployeeNotFound{}) {
		RespondNotFound(c, "Employee not found")
		return
	}
	respondDomainError(c, h.logger, err)
}

// Create registers a new staff member. Owner only.
func (h *EmployeeHandler) Create(c *gin.Context) {
	var req CreateEmployeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	actor := middleware.GetActor(c)
	emp, err := h.employeeService.CreateEmployee(c.Request.Context(), actor, req.Name, shared.Role(req.Role), req.WeeklySalary)
	if err != nil {
		h.respondError(c, err)
		return
	}

	RespondCreated(c, mapEmployeeToResponse(emp))
}

// List returns all staff for the actor's tenant
func (h *EmployeeHandler) List(c *gin.Context) {
	actor := middleware.GetActor(c)
	employees, err := h.employeeService.ListEmployees(c.Request.Context(), actor)
	if err != nil {
		h.respondError(c, err)
		return
	}

	responses := make([]EmployeeResponse, 0, len(employees))
	for _, emp := range employees {
		responses = append(responses, mapEmployeeToResponse(emp))
	}

	RespondOK(c, responses)
}

// GetByID retrieves one employee
func (h *EmployeeHandler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid employee ID")
		return
	}

	actor := middleware.GetActor(c)
	emp, err := h.employeeService.GetEmployee(c.Request.Context(), actor, id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	RespondOK(c, mapEmployeeToResponse(emp))
}

// GrantAdvance records a cash advance for an employee. Owner only.
func (h *EmployeeHandler) GrantAdvance(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid employee ID")
		return
	}

	var req GrantAdvanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	actor := middleware.GetActor(c)
	adv, err := h.employeeService.GrantAdvance(c.Request.Context(), actor, id, req.Amount, req.Description)
	if err != nil {
		h.respondError(c, err)
		return
	}

	RespondCreated(c, mapAdvanceToResponse(adv))
}

// ListAdvances returns all advances for one employee, newest first
func (h *EmployeeHandler) ListAdvances(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid employee ID")
		return
	}

	actor := middleware.GetActor(c)
	advances, err := h.employeeService.ListAdvances(c.Request.Context(), actor, id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	responses := make([]AdvanceResponse, 0, len(advances))
	for _, adv := range advances {
		responses = append(responses, mapAdvanceToResponse(adv))
	}

	RespondOK(c, responses)
}
