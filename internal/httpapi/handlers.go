package httpapi

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Relayline/pulse/internal/coldstart"
	"github.com/Relayline/pulse/internal/crm"
	"github.com/Relayline/pulse/internal/history"
	"github.com/Relayline/pulse/internal/insight"
)

type coldStartBody struct {
	ColdStart bool   `json:"cold_start"`
	Reason    string `json:"reason"`
	Message   string `json:"message"`
}

func writeColdStart(c echo.Context, verdict *coldstart.Verdict) error {
	return c.JSON(http.StatusOK, coldStartBody{
		ColdStart: true,
		Reason:    string(verdict.Reason),
		Message:   verdict.Message,
	})
}

type generateEmbeddingsRequest struct {
	EntityType string   `json:"entity_type"`
	IDs        []string `json:"ids,omitempty"`
	Limit      int      `json:"limit"`
}

func (s *Server) handleGenerateEmbeddings(c echo.Context) error {
	var req generateEmbeddingsRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "invalid_input", Message: "malformed request body"})
	}

	entityType, err := crm.ParseEntityType(req.EntityType)
	if err != nil {
		return writeError(c, err)
	}

	report, err := s.generator.Run(c.Request().Context(), tenantID(c), entityType, req.IDs, req.Limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, report)
}

func (s *Server) handleDealCoach(c echo.Context) error {
	result, verdict, err := s.insights.DealCoach(c.Request().Context(), tenantID(c), c.Param("dealId"))
	if err != nil {
		return writeError(c, err)
	}
	if verdict != nil && !verdict.Sufficient {
		return writeColdStart(c, verdict)
	}
	return c.JSON(http.StatusOK, map[string]any{"deal_coach": result})
}

func (s *Server) handlePersonaBuilder(c echo.Context) error {
	result, verdict, err := s.insights.PersonaBuilder(c.Request().Context(), tenantID(c), c.Param("contactId"))
	if err != nil {
		return writeError(c, err)
	}
	if verdict != nil && !verdict.Sufficient {
		return writeColdStart(c, verdict)
	}
	return c.JSON(http.StatusOK, map[string]any{"persona_builder": result})
}

type objectionRequest struct {
	ObjectionText string `json:"objection_text"`
	DealID        string `json:"deal_id,omitempty"`
	ContactID     string `json:"contact_id,omitempty"`
	History       bool   `json:"history,omitempty"`
}

func (s *Server) handleObjectionHandler(c echo.Context) error {
	var req objectionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "invalid_input", Message: "malformed request body"})
	}

	result, err := s.insights.ObjectionHandler(c.Request().Context(), insight.ObjectionRequest{
		TenantID:      tenantID(c),
		ObjectionText: req.ObjectionText,
		DealID:        req.DealID,
		ContactID:     req.ContactID,
		History:       req.History,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"objection_handler": result})
}

func (s *Server) handleWinLoss(c echo.Context) error {
	result, verdict, err := s.insights.WinLoss(c.Request().Context(), tenantID(c), c.Param("dealId"))
	if err != nil {
		return writeError(c, err)
	}
	if verdict != nil && !verdict.Sufficient {
		return writeColdStart(c, verdict)
	}
	return c.JSON(http.StatusOK, map[string]any{"win_loss_explainer": result})
}

type appendMessageRequest struct {
	MessageUser      string `json:"message_user"`
	MessageAssistant string `json:"message_assistant"`
	ContactID        string `json:"contact_id,omitempty"`
	DealID           string `json:"deal_id,omitempty"`
	History          bool   `json:"history"`
}

// handleAppendMessage records one externally produced exchange. Whether to
// log is an explicit request field; when history is false this is an
// acknowledged no-op.
func (s *Server) handleAppendMessage(c echo.Context) error {
	var req appendMessageRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "invalid_input", Message: "malformed request body"})
	}
	if req.MessageUser == "" || req.MessageAssistant == "" {
		return c.JSON(http.StatusBadRequest, errorBody{
			Error:   "invalid_input",
			Message: "message_user and message_assistant are required",
		})
	}

	if req.History {
		if s.histStore == nil {
			return c.JSON(http.StatusServiceUnavailable, errorBody{
				Error:   "service_unavailable",
				Message: "chat history backend is not configured",
			})
		}
		turn := history.Turn{
			ID:               uuid.NewString(),
			TenantID:         tenantID(c),
			ContactID:        req.ContactID,
			DealID:           req.DealID,
			UserMessage:      req.MessageUser,
			AssistantMessage: req.MessageAssistant,
			CreatedAt:        time.Now().UTC(),
		}
		if err := s.histStore.Append(c.Request().Context(), turn); err != nil {
			return writeError(c, err)
		}
	}

	return c.JSON(http.StatusOK, map[string]any{"recorded": req.History})
}

func (s *Server) handleListMessages(c echo.Context) error {
	if s.histStore == nil {
		return c.JSON(http.StatusServiceUnavailable, errorBody{
			Error:   "service_unavailable",
			Message: "chat history backend is not configured",
		})
	}

	turns, err := s.histStore.Recent(
		c.Request().Context(),
		tenantID(c),
		c.QueryParam("contact_id"),
		c.QueryParam("deal_id"),
		s.histLimit,
	)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"messages": turns})
}
