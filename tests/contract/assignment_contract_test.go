package contract_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/require"

	"github.com/usst-spm/course-api/internal/dto"
	"github.com/usst-spm/course-api/internal/handler"
	"github.com/usst-spm/course-api/internal/service"
)

type stubAssignmentService struct {
	assignment dto.AssignmentResponse
}

func (s stubAssignmentService) Create(context.Context, dto.AssignmentCreateRequest, uint) (dto.AssignmentResponse, error) {
	return s.assignment, nil
}

func (s stubAssignmentService) Get(context.Context, uint) (dto.AssignmentResponse, error) {
	return s.assignment, nil
}

func (s stubAssignmentService) ListForCourse(context.Context, uint) ([]dto.AssignmentResponse, error) {
	return []dto.AssignmentResponse{s.assignment}, nil
}

func (s stubAssignmentService) ListForStudent(context.Context, uint, uint, string) ([]dto.AssignmentResponse, error) {
	return []dto.AssignmentResponse{s.assignment}, nil
}

func (s stubAssignmentService) Update(context.Context, uint, dto.AssignmentUpdateRequest, uint) (dto.AssignmentResponse, error) {
	return s.assignment, nil
}

func (s stubAssignmentService) Publish(context.Context, uint, service.Actor) (dto.AssignmentResponse, error) {
	return s.assignment, nil
}

func (s stubAssignmentService) Unpublish(context.Context, uint, service.Actor) (dto.AssignmentResponse, error) {
	return s.assignment, nil
}

func (s stubAssignmentService) Close(context.Context, uint, service.Actor) (dto.AssignmentResponse, error) {
	return s.assignment, nil
}

func (s stubAssignmentService) Archive(context.Context, uint, service.Actor) (dto.AssignmentResponse, error) {
	return s.assignment, nil
}

func (s stubAssignmentService) Delete(context.Context, uint, service.Actor) error {
	return nil
}

func (s stubAssignmentService) Copy(context.Context, uint, uint) (dto.AssignmentResponse, error) {
	return s.assignment, nil
}

type stubVersionChainService struct{}

func (stubVersionChainService) Republish(context.Context, uint, dto.RepublishRequest, service.Actor) (dto.RepublishResponse, error) {
	return dto.RepublishResponse{}, nil
}

func (stubVersionChainService) ListVersions(context.Context, uint) ([]dto.AssignmentResponse, error) {
	return nil, nil
}

func TestAssignmentResponseContract(t *testing.T) {
	schemaPath, err := filepath.Abs(filepath.Join("..", "contracts", "assignment.schema.json"))
	require.NoError(t, err)

	compiler := jsonschema.NewCompiler()
	schema, err := compiler.Compile("file://" + schemaPath)
	require.NoError(t, err)

	now := time.Now().UTC()
	due := now.Add(72 * time.Hour)
	published := now.Add(-time.Hour)
	origin := uint(10)
	svc := stubAssignmentService{assignment: dto.AssignmentResponse{
		ID:               11,
		CourseID:         3,
		Title:            "Distributed Systems Lab 2",
		Description:      "Implement a replicated log.",
		Type:             "homework",
		TotalScore:       100,
		AllowResubmit:    true,
		MaxResubmitCount: 3,
		DueAt:            &due,
		Version:          2,
		OriginID:         &origin,
		Status:           "PUBLISHED",
		PublishedAt:      &published,
		CreatedAt:        now.Add(-24 * time.Hour),
		UpdatedAt:        now,
	}}

	app := fiber.New()
	group := app.Group("/api/v1/assignments", func(c *fiber.Ctx) error {
		c.Locals("user_id", uint(7))
		c.Locals("user_role", "TEACHER")
		return c.Next()
	})
	noop := func(c *fiber.Ctx) error { return c.Next() }
	handler.NewAssignmentHandler(svc, stubVersionChainService{}, zerolog.Nop()).Register(group, noop)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/assignments/11", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()

	var payload interface{}
	require.NoError(t, json.Unmarshal(body, &payload))
	require.NoError(t, schema.Validate(payload))
}
