package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/usst-spm/course-api/internal/dto"
	"github.com/usst-spm/course-api/internal/service"
	"github.com/usst-spm/course-api/internal/utils"
)

// AnnouncementHandler wires announcement HTTP routes.
type AnnouncementHandler struct {
	service service.AnnouncementService
	logger  zerolog.Logger
}

// NewAnnouncementHandler constructs the handler.
func NewAnnouncementHandler(service service.AnnouncementService, logger zerolog.Logger) *AnnouncementHandler {
	return &AnnouncementHandler{
		service: service,
		logger:  logger.With().Str("component", "announcement_handler").Logger(),
	}
}

// Register attaches announcement endpoints to the router group.
func (h *AnnouncementHandler) Register(router fiber.Router, teacherOnly fiber.Handler) {
	router.Get("/:id", h.get)
	router.Post("", teacherOnly, h.create)
	router.Patch("/:id", teacherOnly, h.update)
	router.Delete("/:id", teacherOnly, h.delete)
}

// RegisterCourseRoutes attaches the course-scoped listing endpoint.
func (h *AnnouncementHandler) RegisterCourseRoutes(router fiber.Router) {
	router.Get("/:courseID/announcements", h.listByCourse)
}

func (h *AnnouncementHandler) listByCourse(c *fiber.Ctx) error {
	courseID, err := parseUintParam(c, "courseID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	announcements, err := h.service.ListForCourse(c.Context(), courseID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "announcements retrieved", announcements)
}

func (h *AnnouncementHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	announcement, err := h.service.Get(c.Context(), id)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "announcement retrieved", announcement)
}

func (h *AnnouncementHandler) create(c *fiber.Ctx) error {
	var payload dto.AnnouncementCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	announcement, err := h.service.Create(c.Context(), payload, userIDFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "announcement created", announcement)
}

func (h *AnnouncementHandler) update(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.AnnouncementUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	announcement, err := h.service.Update(c.Context(), id, payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "announcement updated", announcement)
}

func (h *AnnouncementHandler) delete(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.service.Delete(c.Context(), id); err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "announcement deleted", fiber.Map{"id": id})
}

func (h *AnnouncementHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrAnnouncementNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "announcement not found")
	case isValidationError(err):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	default:
		h.logger.Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
