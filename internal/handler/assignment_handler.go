package handler

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/usst-spm/course-api/internal/dto"
	"github.com/usst-spm/course-api/internal/lifecycle"
	"github.com/usst-spm/course-api/internal/service"
	"github.com/usst-spm/course-api/internal/utils"
)

// AssignmentHandler wires assignment HTTP routes, covering CRUD, the
// lifecycle verbs and version-chain operations.
type AssignmentHandler struct {
	assignments service.AssignmentService
	versions    service.VersionChainService
	logger      zerolog.Logger
}

// NewAssignmentHandler constructs the handler.
func NewAssignmentHandler(assignments service.AssignmentService, versions service.VersionChainService, logger zerolog.Logger) *AssignmentHandler {
	return &AssignmentHandler{
		assignments: assignments,
		versions:    versions,
		logger:      logger.With().Str("component", "assignment_handler").Logger(),
	}
}

// Register attaches assignment endpoints to the router group.
func (h *AssignmentHandler) Register(router fiber.Router, teacherOnly fiber.Handler) {
	router.Get("/:id", h.get)
	router.Get("/:id/versions", h.listVersions)

	router.Post("", teacherOnly, h.create)
	router.Patch("/:id", teacherOnly, h.update)
	router.Delete("/:id", teacherOnly, h.delete)
	router.Post("/:id/publish", teacherOnly, h.publish)
	router.Post("/:id/unpublish", teacherOnly, h.unpublish)
	router.Post("/:id/close", teacherOnly, h.close)
	router.Post("/:id/archive", teacherOnly, h.archive)
	router.Post("/:id/republish", teacherOnly, h.republish)
	router.Post("/:id/copy", teacherOnly, h.copy)
}

// RegisterCourseRoutes attaches the course-scoped listing endpoint.
func (h *AssignmentHandler) RegisterCourseRoutes(router fiber.Router) {
	router.Get("/:courseID/assignments", h.listByCourse)
}

func (h *AssignmentHandler) listByCourse(c *fiber.Ctx) error {
	courseID, err := parseUintParam(c, "courseID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	// Students get the decorated feed; staff get the plain listing.
	if isStudent(c) {
		assignments, err := h.assignments.ListForStudent(c.Context(), courseID, userIDFromContext(c), c.Query("status"))
		if err != nil {
			return h.handleError(c, err)
		}
		return utils.SendSuccess(c, "assignments retrieved", assignments)
	}

	assignments, err := h.assignments.ListForCourse(c.Context(), courseID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "assignments retrieved", assignments)
}

func (h *AssignmentHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	assignment, err := h.assignments.Get(c.Context(), id)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "assignment retrieved", assignment)
}

func (h *AssignmentHandler) create(c *fiber.Ctx) error {
	var payload dto.AssignmentCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	assignment, err := h.assignments.Create(c.Context(), payload, userIDFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "assignment created", assignment)
}

func (h *AssignmentHandler) update(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.AssignmentUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	assignment, err := h.assignments.Update(c.Context(), id, payload, userIDFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "assignment updated", assignment)
}

func (h *AssignmentHandler) delete(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.assignments.Delete(c.Context(), id, actorFromContext(c)); err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "assignment deleted", fiber.Map{"id": id})
}

func (h *AssignmentHandler) publish(c *fiber.Ctx) error {
	return h.transition(c, h.assignments.Publish, "assignment published")
}

func (h *AssignmentHandler) unpublish(c *fiber.Ctx) error {
	return h.transition(c, h.assignments.Unpublish, "assignment unpublished")
}

func (h *AssignmentHandler) close(c *fiber.Ctx) error {
	return h.transition(c, h.assignments.Close, "assignment closed")
}

func (h *AssignmentHandler) archive(c *fiber.Ctx) error {
	return h.transition(c, h.assignments.Archive, "assignment archived")
}

func (h *AssignmentHandler) transition(
	c *fiber.Ctx,
	op func(ctx context.Context, id uint, actor service.Actor) (dto.AssignmentResponse, error),
	message string,
) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	assignment, err := op(c.Context(), id, actorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, message, assignment)
}

func (h *AssignmentHandler) republish(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.RepublishRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.versions.Republish(c.Context(), id, payload, actorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "assignment republished", result)
}

func (h *AssignmentHandler) copy(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	assignment, err := h.assignments.Copy(c.Context(), id, userIDFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "assignment copied", assignment)
}

func (h *AssignmentHandler) listVersions(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	chain, err := h.versions.ListVersions(c.Context(), id)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "versions retrieved", chain)
}

func (h *AssignmentHandler) handleError(c *fiber.Ctx, err error) error {
	var immutable *service.ImmutableFieldError
	var transition *lifecycle.TransitionError
	switch {
	case errors.Is(err, service.ErrAssignmentNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "assignment not found")
	case errors.Is(err, service.ErrHasSubmissions):
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, service.ErrConflict):
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, service.ErrInvalidSourceState),
		errors.Is(err, service.ErrReasonRequired),
		errors.Is(err, service.ErrTitleRequired),
		errors.Is(err, service.ErrDueDateRequired),
		errors.Is(err, service.ErrNotEditable),
		errors.Is(err, service.ErrNotDeletable):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.As(err, &immutable):
		return utils.SendError(c, fiber.StatusBadRequest, immutable.Error())
	case errors.As(err, &transition):
		return utils.SendError(c, fiber.StatusConflict, transition.Error())
	case isValidationError(err):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	default:
		h.logger.Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
