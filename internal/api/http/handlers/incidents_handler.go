package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/civicwatch/incident-service/internal/api/dto"
	"github.com/civicwatch/incident-service/internal/auth"
	"github.com/civicwatch/incident-service/internal/domain"
	"github.com/civicwatch/incident-service/internal/repository"
	"github.com/civicwatch/incident-service/internal/service"
	apperrors "github.com/civicwatch/incident-service/pkg/util"
)

// IncidentsHandler manages incident endpoints.
type IncidentsHandler struct {
	assignments *service.AssignmentService
	incidents   *service.IncidentService
	stats       *service.StatsService
}

// NewIncidentsHandler constructs handler.
func NewIncidentsHandler(assignments *service.AssignmentService, incidents *service.IncidentService, stats *service.StatsService) *IncidentsHandler {
	return &IncidentsHandler{assignments: assignments, incidents: incidents, stats: stats}
}

// Assign POST /incidents/:id/assign. The caller claims the incident for
// themselves; identity comes from the session, never the body.
func (h *IncidentsHandler) Assign(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("authentication required")
	}

	result, err := h.assignments.Assign(c.UserContext(), principal.User, c.Params("id"))
	if err != nil {
		return err
	}

	switch result.Outcome {
	case domain.AssignmentForbidden:
		return c.Status(http.StatusForbidden).JSON(fiber.Map{
			"error": "official or admin access required to claim incidents",
		})
	case domain.AssignmentConflict:
		var holderName any
		if result.CurrentAssigneeName != "" {
			holderName = result.CurrentAssigneeName
		}
		return c.Status(http.StatusForbidden).JSON(fiber.Map{
			"error":            "incident already assigned to another official and cannot be reassigned",
			"assigned_to_name": holderName,
			"assigned_to_id":   result.CurrentAssigneeID,
		})
	default:
		message := "incident assigned successfully"
		if result.Outcome == domain.AssignmentAcceptedIdempotent {
			message = "incident already assigned to this official"
		}
		return c.JSON(fiber.Map{
			"status":      "success",
			"message":     message,
			"assigned_to": result.AssignedTo,
			"assigned_at": result.AssignedAt,
			"incident":    incidentSummary(result.Incident),
		})
	}
}

// List GET /incidents.
func (h *IncidentsHandler) List(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("authentication required")
	}
	incidents, err := h.incidents.ListIncidents(c.UserContext(), principal.User, parseIncidentQuery(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": incidentSummaries(incidents)})
}

// Get GET /incidents/:id.
func (h *IncidentsHandler) Get(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("authentication required")
	}
	incident, responses, err := h.incidents.GetIncident(c.UserContext(), principal.User, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": incidentDetail(incident, responses)})
}

// Mine GET /incidents/mine.
func (h *IncidentsHandler) Mine(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("authentication required")
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	incidents, err := h.incidents.MyIncidents(c.UserContext(), principal.User, pageSize, (page-1)*pageSize)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": incidentSummaries(incidents)})
}

// UpdateStatus POST /incidents/:id/status.
func (h *IncidentsHandler) UpdateStatus(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	incident, err := h.incidents.UpdateStatus(c.UserContext(), principal.User, c.Params("id"), req.Status, req.ResolutionNotes)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"message":  "incident status updated successfully",
		"incident": incidentSummary(incident),
	})
}

// AddResponse POST /incidents/:id/responses.
func (h *IncidentsHandler) AddResponse(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.AddResponseRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	response, err := h.incidents.AddResponse(c.UserContext(), principal.User, c.Params("id"), req.ActionType, req.Description)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"message":     "response added successfully",
		"response_id": response.ID,
	})
}

// Stats GET /incidents/stats.
func (h *IncidentsHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.stats.Overview(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": stats})
}

func parseIncidentQuery(c *fiber.Ctx) repository.IncidentFilter {
	filter := repository.IncidentFilter{}
	if statusStr := c.Query("status"); statusStr != "" {
		for _, part := range strings.Split(statusStr, ",") {
			filter.Statuses = append(filter.Statuses, domain.IncidentStatus(strings.TrimSpace(part)))
		}
	}
	if typeStr := c.Query("incident_type"); typeStr != "" {
		for _, part := range strings.Split(typeStr, ",") {
			filter.Types = append(filter.Types, domain.IncidentType(strings.TrimSpace(part)))
		}
	}
	if priorityStr := c.Query("priority"); priorityStr != "" {
		for _, part := range strings.Split(priorityStr, ",") {
			filter.Priorities = append(filter.Priorities, domain.IncidentPriority(strings.TrimSpace(part)))
		}
	}
	if assignee := c.Query("assigned_to"); assignee != "" {
		filter.AssigneeID = &assignee
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize
	return filter
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func incidentSummary(incident *domain.IncidentReport) dto.IncidentSummary {
	return dto.IncidentSummary{
		ID:         incident.ID,
		ReporterID: incident.ReporterID,
		Type:       incident.Type,
		Location:   incident.Location,
		Status:     incident.Status,
		Priority:   incident.Priority,
		AssignedTo: incident.AssignedTo,
		AssignedAt: incident.AssignedAt,
		CreatedAt:  incident.CreatedAt,
		UpdatedAt:  incident.UpdatedAt,
	}
}

func incidentSummaries(incidents []domain.IncidentReport) []dto.IncidentSummary {
	items := make([]dto.IncidentSummary, 0, len(incidents))
	for i := range incidents {
		items = append(items, incidentSummary(&incidents[i]))
	}
	return items
}

func incidentDetail(incident *domain.IncidentReport, responses []domain.IncidentResponse) dto.IncidentDetailResponse {
	detail := dto.IncidentDetailResponse{
		IncidentSummary: incidentSummary(incident),
		Description:     incident.Description,
		ResolutionNotes: incident.ResolutionNotes,
		Responses:       make([]dto.IncidentResponseResponse, 0, len(responses)),
	}
	for _, response := range responses {
		detail.Responses = append(detail.Responses, dto.IncidentResponseResponse{
			ID:          response.ID,
			ResponderID: response.ResponderID,
			ActionType:  response.ActionType,
			Description: response.Description,
			CreatedAt:   response.CreatedAt,
		})
	}
	return detail
}
