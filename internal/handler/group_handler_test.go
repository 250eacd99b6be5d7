package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/sahayata/sahayata-api/internal/dto"
	"github.com/sahayata/sahayata-api/internal/handler"
	"github.com/sahayata/sahayata-api/internal/ratelimit"
	"github.com/sahayata/sahayata-api/internal/service"
)

type mockGroupService struct {
	response dto.GroupResponse
	list     []dto.GroupResponse
	err      error
	lastOp   string
}

func (m *mockGroupService) Create(_ context.Context, _ uint, _ dto.GroupCreateRequest) (dto.GroupResponse, error) {
	m.lastOp = "create"
	return m.response, m.err
}

func (m *mockGroupService) List(_ context.Context, _ uint, _ dto.GroupListQuery) ([]dto.GroupResponse, error) {
	m.lastOp = "list"
	return m.list, m.err
}

func (m *mockGroupService) Recommended(_ context.Context, _ uint, _ int) ([]dto.GroupResponse, error) {
	m.lastOp = "recommended"
	return m.list, m.err
}

func (m *mockGroupService) Get(_ context.Context, _ uint) (dto.GroupResponse, error) {
	m.lastOp = "get"
	return m.response, m.err
}

func (m *mockGroupService) Join(_ context.Context, _, _ uint) (dto.GroupResponse, error) {
	m.lastOp = "join"
	return m.response, m.err
}

func (m *mockGroupService) Leave(_ context.Context, _, _ uint) (dto.GroupResponse, error) {
	m.lastOp = "leave"
	return m.response, m.err
}

func (m *mockGroupService) Pledge(_ context.Context, _, _ uint) (dto.GroupResponse, error) {
	m.lastOp = "pledge"
	return m.response, m.err
}

func (m *mockGroupService) Unpledge(_ context.Context, _, _ uint) (dto.GroupResponse, error) {
	m.lastOp = "unpledge"
	return m.response, m.err
}

func (m *mockGroupService) UpdateMeta(_ context.Context, _, _ uint, _ dto.GroupMetaUpdateRequest) (dto.GroupResponse, error) {
	m.lastOp = "update"
	return m.response, m.err
}

type mockGroupMessageService struct {
	response dto.GroupMessageResponse
	err      error
}

func (m *mockGroupMessageService) Send(_ context.Context, _, _ uint, _ dto.GroupMessageSendRequest) (dto.GroupMessageResponse, error) {
	return m.response, m.err
}

func (m *mockGroupMessageService) ListPage(_ context.Context, _, _ uint, _, _ int) ([]dto.GroupMessageResponse, error) {
	if m.err != nil {
		return nil, m.err
	}
	return []dto.GroupMessageResponse{m.response}, nil
}

func (m *mockGroupMessageService) MarkRead(_ context.Context, _, groupID uint) (dto.GroupReadResponse, error) {
	return dto.GroupReadResponse{GroupID: groupID, LastReadAt: time.Now().UTC()}, m.err
}

func (m *mockGroupMessageService) Unread(_ context.Context, _, groupID uint) (dto.GroupUnreadResponse, error) {
	return dto.GroupUnreadResponse{GroupID: groupID, UnreadCount: 4}, m.err
}

func newGroupApp(groups *mockGroupService, messages *mockGroupMessageService, userID uint) *fiber.App {
	logger := zerolog.New(io.Discard)
	validate := validator.New(validator.WithRequiredStructEnabled())
	app := fiber.New()
	handler.NewGroupHandler(groups, messages, validate, logger).Register(app.Group("/api/v1/groups", authed(userID)))
	return app
}

func TestGroupHandler_Create(t *testing.T) {
	groups := &mockGroupService{response: dto.GroupResponse{ID: 3, Name: "Flood relief"}}
	app := newGroupApp(groups, &mockGroupMessageService{}, 42)

	body, err := json.Marshal(dto.GroupCreateRequest{Name: "Flood relief", Description: "pumps and sandbags"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/groups/", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	require.Equal(t, "create", groups.lastOp)
}

func TestGroupHandler_SendMessageThrottledCarriesRetryAfter(t *testing.T) {
	messages := &mockGroupMessageService{err: &ratelimit.ThrottledError{Window: "sustained", RetryAfter: 42 * time.Second}}
	app := newGroupApp(&mockGroupService{}, messages, 42)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/groups/7/messages", bytes.NewReader([]byte(`{"text":"hi"}`)))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
	require.Equal(t, "42", resp.Header.Get(fiber.HeaderRetryAfter))

	var response struct {
		Success bool           `json:"success"`
		Message string         `json:"message"`
		Data    map[string]int `json:"data"`
	}
	decodeResponse(t, resp, &response)
	require.False(t, response.Success)
	require.Equal(t, 42, response.Data["retry_after"])
}

func TestGroupHandler_SendMessageRejectsNonMember(t *testing.T) {
	messages := &mockGroupMessageService{err: service.ErrNotMember}
	app := newGroupApp(&mockGroupService{}, messages, 42)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/groups/7/messages", bytes.NewReader([]byte(`{"text":"hi"}`)))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestGroupHandler_InvalidReplyIsBadRequest(t *testing.T) {
	messages := &mockGroupMessageService{err: service.ErrInvalidReply}
	app := newGroupApp(&mockGroupService{}, messages, 42)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/groups/7/messages", bytes.NewReader([]byte(`{"text":"hi","reply_to_id":999}`)))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestGroupHandler_Unread(t *testing.T) {
	app := newGroupApp(&mockGroupService{}, &mockGroupMessageService{}, 42)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/groups/7/unread", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var response struct {
		Success bool                    `json:"success"`
		Data    dto.GroupUnreadResponse `json:"data"`
	}
	decodeResponse(t, resp, &response)
	require.True(t, response.Success)
	require.Equal(t, int64(4), response.Data.UnreadCount)
}

func TestGroupHandler_MembershipOps(t *testing.T) {
	groups := &mockGroupService{response: dto.GroupResponse{ID: 7}}
	app := newGroupApp(groups, &mockGroupMessageService{}, 42)

	for _, tc := range []struct {
		method string
		path   string
		op     string
	}{
		{http.MethodPost, "/api/v1/groups/7/join", "join"},
		{http.MethodPost, "/api/v1/groups/7/leave", "leave"},
		{http.MethodPost, "/api/v1/groups/7/pledge", "pledge"},
		{http.MethodDelete, "/api/v1/groups/7/pledge", "unpledge"},
	} {
		resp, err := app.Test(httptest.NewRequest(tc.method, tc.path, nil))
		require.NoError(t, err)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		require.Equal(t, tc.op, groups.lastOp)
	}
}

func TestGroupHandler_UpdateMetaByNonCreatorIsForbidden(t *testing.T) {
	groups := &mockGroupService{err: service.ErrNotCreator}
	app := newGroupApp(groups, &mockGroupMessageService{}, 42)

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/groups/7", bytes.NewReader([]byte(`{"status":"Resolved"}`)))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}
