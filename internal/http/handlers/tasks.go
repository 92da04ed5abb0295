package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/geocoder89/taskhub/internal/domain/task"
	"github.com/geocoder89/taskhub/internal/http/middlewares"
	"github.com/geocoder89/taskhub/internal/services"
	"github.com/gin-gonic/gin"
)

type TaskService interface {
	Create(ctx context.Context, ownerID string, req task.CreateTaskRequest) (task.Task, error)
	Get(ctx context.Context, ownerID, id string) (task.Task, error)
	List(ctx context.Context, ownerID string, q services.ListTasksQuery) (services.TaskPage, error)
	Update(ctx context.Context, ownerID, id string, req task.UpdateTaskRequest) (task.Task, error)
	Toggle(ctx context.Context, ownerID, id string) (task.Task, error)
	Delete(ctx context.Context, ownerID, id string) error
}

type TasksHandler struct {
	svc TaskService
}

func NewTasksHandler(svc TaskService) *TasksHandler {
	return &TasksHandler{svc: svc}
}

const taskNotFound = "Task not found"

func ownerFrom(ctx *gin.Context) (string, bool) {
	userID, ok := middlewares.UserIDFromContext(ctx)
	if !ok || userID == "" {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity")
		return "", false
	}
	return userID, true
}

func storeCtx(ctx *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx.Request.Context(), 2*time.Second)
}

// POST /tasks
func (h *TasksHandler) Create(ctx *gin.Context) {
	ownerID, ok := ownerFrom(ctx)
	if !ok {
		return
	}

	var req task.CreateTaskRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := storeCtx(ctx)
	defer cancel()

	t, err := h.svc.Create(cctx, ownerID, req)
	if err != nil {
		RespondServiceError(ctx, err, taskNotFound)
		return
	}

	ctx.JSON(http.StatusCreated, t)
}

// GET /tasks?completed=true&limit=20&cursor=...
func (h *TasksHandler) List(ctx *gin.Context) {
	ownerID, ok := ownerFrom(ctx)
	if !ok {
		return
	}

	q := services.ListTasksQuery{Cursor: ctx.Query("cursor")}

	if s := ctx.Query("completed"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			RespondBadRequest(ctx, "completed must be true or false", nil)
			return
		}
		q.Completed = &b
	}

	if s := ctx.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			RespondBadRequest(ctx, "limit must be a number", nil)
			return
		}
		// 0 would silently mean "default" further down
		if n == 0 {
			RespondValidation(ctx, "limit", "must be between 1 and 100")
			return
		}
		q.Limit = n
	}

	cctx, cancel := storeCtx(ctx)
	defer cancel()

	page, err := h.svc.List(cctx, ownerID, q)
	if err != nil {
		RespondServiceError(ctx, err, taskNotFound)
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, gin.H{
		"items":       page.Items,
		"count":       len(page.Items),
		"has_more":    page.NextCursor != nil,
		"next_cursor": page.NextCursor,
	})
}

// GET /tasks/:id
func (h *TasksHandler) Get(ctx *gin.Context) {
	ownerID, ok := ownerFrom(ctx)
	if !ok {
		return
	}

	cctx, cancel := storeCtx(ctx)
	defer cancel()

	t, err := h.svc.Get(cctx, ownerID, ctx.Param("id"))
	if err != nil {
		RespondServiceError(ctx, err, taskNotFound)
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, t)
}

// PUT /tasks/:id and PATCH /tasks/:id
func (h *TasksHandler) Update(ctx *gin.Context) {
	ownerID, ok := ownerFrom(ctx)
	if !ok {
		return
	}

	var req task.UpdateTaskRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := storeCtx(ctx)
	defer cancel()

	t, err := h.svc.Update(cctx, ownerID, ctx.Param("id"), req)
	if err != nil {
		RespondServiceError(ctx, err, taskNotFound)
		return
	}

	ctx.JSON(http.StatusOK, t)
}

// PATCH /tasks/:id/toggle
func (h *TasksHandler) Toggle(ctx *gin.Context) {
	ownerID, ok := ownerFrom(ctx)
	if !ok {
		return
	}

	cctx, cancel := storeCtx(ctx)
	defer cancel()

	t, err := h.svc.Toggle(cctx, ownerID, ctx.Param("id"))
	if err != nil {
		RespondServiceError(ctx, err, taskNotFound)
		return
	}

	ctx.JSON(http.StatusOK, t)
}

// DELETE /tasks/:id
func (h *TasksHandler) Delete(ctx *gin.Context) {
	ownerID, ok := ownerFrom(ctx)
	if !ok {
		return
	}

	cctx, cancel := storeCtx(ctx)
	defer cancel()

	if err := h.svc.Delete(cctx, ownerID, ctx.Param("id")); err != nil {
		RespondServiceError(ctx, err, taskNotFound)
		return
	}

	ctx.Status(http.StatusNoContent)
}
