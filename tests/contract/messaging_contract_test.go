package contract_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/require"

	"github.com/sahayata/sahayata-api/internal/dto"
	"github.com/sahayata/sahayata-api/internal/handler"
	"github.com/sahayata/sahayata-api/internal/ratelimit"
)

type stubMessageService struct {
	response dto.MessageResponse
}

func (s stubMessageService) SendToPost(context.Context, uint, uint, dto.MessageSendRequest) (dto.MessageResponse, error) {
	return s.response, nil
}

func (s stubMessageService) SendToConversation(context.Context, uint, uint, dto.MessageSendRequest) (dto.MessageResponse, error) {
	return s.response, nil
}

func (s stubMessageService) ListPostPage(context.Context, uint, uint, int, int) ([]dto.MessageResponse, error) {
	return []dto.MessageResponse{s.response}, nil
}

func (s stubMessageService) ListConversationPage(context.Context, uint, uint, int, int) ([]dto.MessageResponse, error) {
	return []dto.MessageResponse{s.response}, nil
}

func (s stubMessageService) Edit(context.Context, uint, uint, dto.MessageEditRequest) (dto.MessageResponse, error) {
	return s.response, nil
}

func (s stubMessageService) ToggleReaction(context.Context, uint, uint, string) ([]dto.ReactionView, error) {
	return s.response.Reactions, nil
}

func (s stubMessageService) DeleteForMe(context.Context, uint, uint) error { return nil }

func (s stubMessageService) DeleteForEveryone(context.Context, uint, uint) error { return nil }

func (s stubMessageService) ClearPostForMe(context.Context, uint, uint) error { return nil }

func (s stubMessageService) ClearPostForEveryone(context.Context, uint) error { return nil }

type throttledGroupMessageService struct{}

func (throttledGroupMessageService) Send(context.Context, uint, uint, dto.GroupMessageSendRequest) (dto.GroupMessageResponse, error) {
	return dto.GroupMessageResponse{}, &ratelimit.ThrottledError{Window: "burst", RetryAfter: time.Second}
}

func (throttledGroupMessageService) ListPage(context.Context, uint, uint, int, int) ([]dto.GroupMessageResponse, error) {
	return nil, nil
}

func (throttledGroupMessageService) MarkRead(context.Context, uint, uint) (dto.GroupReadResponse, error) {
	return dto.GroupReadResponse{}, nil
}

func (throttledGroupMessageService) Unread(context.Context, uint, uint) (dto.GroupUnreadResponse, error) {
	return dto.GroupUnreadResponse{}, nil
}

type stubGroupService struct{}

func (stubGroupService) Create(context.Context, uint, dto.GroupCreateRequest) (dto.GroupResponse, error) {
	return dto.GroupResponse{}, nil
}

func (stubGroupService) List(context.Context, uint, dto.GroupListQuery) ([]dto.GroupResponse, error) {
	return nil, nil
}

func (stubGroupService) Recommended(context.Context, uint, int) ([]dto.GroupResponse, error) {
	return nil, nil
}

func (stubGroupService) Get(context.Context, uint) (dto.GroupResponse, error) {
	return dto.GroupResponse{}, nil
}

func (stubGroupService) Join(context.Context, uint, uint) (dto.GroupResponse, error) {
	return dto.GroupResponse{}, nil
}

func (stubGroupService) Leave(context.Context, uint, uint) (dto.GroupResponse, error) {
	return dto.GroupResponse{}, nil
}

func (stubGroupService) Pledge(context.Context, uint, uint) (dto.GroupResponse, error) {
	return dto.GroupResponse{}, nil
}

func (stubGroupService) Unpledge(context.Context, uint, uint) (dto.GroupResponse, error) {
	return dto.GroupResponse{}, nil
}

func (stubGroupService) UpdateMeta(context.Context, uint, uint, dto.GroupMetaUpdateRequest) (dto.GroupResponse, error) {
	return dto.GroupResponse{}, nil
}

func compileSchema(t *testing.T, name string) *jsonschema.Schema {
	t.Helper()
	schemaPath, err := filepath.Abs(filepath.Join("..", "contracts", name))
	require.NoError(t, err)

	compiler := jsonschema.NewCompiler()
	schema, err := compiler.Compile("file://" + schemaPath)
	require.NoError(t, err)
	return schema
}

func validateBody(t *testing.T, resp *http.Response, schema *jsonschema.Schema) {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var payload interface{}
	require.NoError(t, json.Unmarshal(body, &payload))
	require.NoError(t, schema.Validate(payload))
}

func TestMessageResponseContract(t *testing.T) {
	schema := compileSchema(t, "message_response.schema.json")

	postID := uint(7)
	svc := stubMessageService{response: dto.MessageResponse{
		ID:        10,
		PostID:    &postID,
		Sender:    dto.UserSummary{ID: 42, Name: "Asha"},
		Text:      "water pumps on the way",
		ReadBy:    []uint{42},
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}}

	app := fiber.New()
	group := app.Group("/api/v1/posts", func(c *fiber.Ctx) error {
		c.Locals("user_id", uint(42))
		return c.Next()
	})
	handler.NewMessageHandler(svc, validator.New(validator.WithRequiredStructEnabled()), zerolog.Nop()).RegisterPostRoutes(group)

	body, err := json.Marshal(dto.MessageSendRequest{Text: "water pumps on the way"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/posts/7/messages", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	validateBody(t, resp, schema)
}

func TestThrottledSendContract(t *testing.T) {
	schema := compileSchema(t, "throttled_response.schema.json")

	app := fiber.New()
	group := app.Group("/api/v1/groups", func(c *fiber.Ctx) error {
		c.Locals("user_id", uint(42))
		return c.Next()
	})
	handler.NewGroupHandler(stubGroupService{}, throttledGroupMessageService{}, validator.New(validator.WithRequiredStructEnabled()), zerolog.Nop()).Register(group)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/groups/7/messages", bytes.NewReader([]byte(`{"text":"hi"}`)))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	require.Equal(t, "1", resp.Header.Get(fiber.HeaderRetryAfter))

	validateBody(t, resp, schema)
}
