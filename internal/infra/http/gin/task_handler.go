package ginserver

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	gin "github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"artisanchat/internal/app/dto"
	"artisanchat/internal/domain/group"
	"artisanchat/internal/domain/task"
	domainuser "artisanchat/internal/domain/user"
	"artisanchat/internal/realtime/hub"
	"artisanchat/internal/realtime/wire"
)

type TaskHTTP interface {
	Create(c *gin.Context)
	ListByGroup(c *gin.Context)
	Get(c *gin.Context)
	Update(c *gin.Context)
	Transition(c *gin.Context)
	Assign(c *gin.Context)
	AddComment(c *gin.Context)
	Delete(c *gin.Context)
}

// TaskHandler manages group task boards. Every operation requires
// membership in the owning group. Mutations fan a task_updated frame to
// the other members' identity rooms.
type TaskHandler struct {
	Tasks  task.Repository
	Groups group.Repository
	Hub    *hub.Hub
	Users  domainuser.Repository
	Logger *slog.Logger
}

const dueSoonWindow = 48 * time.Hour

type createTaskRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	AssignedTo  string   `json:"assigned_to"`
	Priority    string   `json:"priority"`
	Tags        []string `json:"tags"`
	DueDate     string   `json:"due_date"`
}

func (h TaskHandler) Create(c *gin.Context) {
	principal, g, ok := h.loadGroupForMember(c, c.Param("id"))
	if !ok {
		return
	}
	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	var due time.Time
	if req.DueDate != "" {
		parsed, err := time.Parse(time.RFC3339, req.DueDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "due_date must be RFC 3339"})
			return
		}
		due = parsed
	}
	t, err := task.New(task.CreateParams{
		ID:          task.ID(uuid.NewString()),
		GroupID:     g.ID,
		Title:       req.Title,
		Description: req.Description,
		CreatedBy:   domainuser.ID(principal.ID),
		AssignedTo:  domainuser.ID(req.AssignedTo),
		Priority:    task.Priority(req.Priority),
		Tags:        req.Tags,
		DueDate:     due,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.Tasks.Save(c.Request.Context(), t); err != nil {
		h.respondError(c, err, "create task", "group_id", string(g.ID))
		return
	}
	h.notifyUpdate(c, g, t, domainuser.ID(principal.ID), map[string]any{"created": true})
	c.JSON(http.StatusCreated, dto.MapTask(t, time.Now().UTC()))
}

func (h TaskHandler) ListByGroup(c *gin.Context) {
	_, g, ok := h.loadGroupForMember(c, c.Param("id"))
	if !ok {
		return
	}
	now := time.Now().UTC()
	limit := parsePositiveIntStrict(c.Query("limit"), 50)
	offset := parseNonNegativeInt(c.Query("offset"), 0)
	var (
		tasks []*task.Task
		err   error
	)
	switch c.Query("due") {
	case "overdue":
		tasks, err = h.Tasks.Overdue(c.Request.Context(), g.ID, now)
	case "soon":
		tasks, err = h.Tasks.DueSoon(c.Request.Context(), g.ID, now, dueSoonWindow)
	default:
		tasks, err = h.Tasks.ByGroup(c.Request.Context(), g.ID, limit, offset)
	}
	if err != nil {
		h.respondError(c, err, "list tasks", "group_id", string(g.ID))
		return
	}
	items := make([]dto.Task, 0, len(tasks))
	for _, t := range tasks {
		items = append(items, dto.MapTask(t, now))
	}
	c.JSON(http.StatusOK, dto.TaskList{Items: items, Limit: limit, Offset: offset})
}

func (h TaskHandler) Get(c *gin.Context) {
	_, _, t, ok := h.loadTaskForMember(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, dto.MapTask(t, time.Now().UTC()))
}

type updateTaskRequest struct {
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	Priority    *string  `json:"priority"`
	Tags        []string `json:"tags"`
	DueDate     *string  `json:"due_date"`
}

func (h TaskHandler) Update(c *gin.Context) {
	principal, g, t, ok := h.loadTaskForMember(c)
	if !ok {
		return
	}
	var req updateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	update := task.Update{
		Title:       req.Title,
		Description: req.Description,
		Tags:        req.Tags,
	}
	if req.Priority != nil {
		priority := task.Priority(*req.Priority)
		update.Priority = &priority
	}
	if req.DueDate != nil {
		// An empty string clears the deadline.
		var due time.Time
		if *req.DueDate != "" {
			parsed, err := time.Parse(time.RFC3339, *req.DueDate)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "due_date must be RFC 3339"})
				return
			}
			due = parsed
		}
		update.DueDate = &due
	}
	if err := t.Apply(update, time.Now().UTC()); err != nil {
		if errors.Is(err, task.ErrTitleRequired) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.respondTaskError(c, err, "update task")
		return
	}
	if err := h.Tasks.Save(c.Request.Context(), t); err != nil {
		h.respondError(c, err, "save task", "task_id", string(t.ID))
		return
	}
	h.notifyUpdate(c, g, t, domainuser.ID(principal.ID), map[string]any{"title": t.Title})
	c.JSON(http.StatusOK, dto.MapTask(t, time.Now().UTC()))
}

type transitionTaskRequest struct {
	Status string `json:"status"`
}

func (h TaskHandler) Transition(c *gin.Context) {
	principal, g, t, ok := h.loadTaskForMember(c)
	if !ok {
		return
	}
	var req transitionTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Status == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if err := t.Transition(task.Status(req.Status), time.Now().UTC()); err != nil {
		h.respondTaskError(c, err, "transition task")
		return
	}
	if err := h.Tasks.Save(c.Request.Context(), t); err != nil {
		h.respondError(c, err, "save task", "task_id", string(t.ID))
		return
	}
	h.notifyUpdate(c, g, t, domainuser.ID(principal.ID), map[string]any{"status": string(t.Status)})
	c.JSON(http.StatusOK, dto.MapTask(t, time.Now().UTC()))
}

type assignTaskRequest struct {
	UserID string `json:"user_id"`
}

func (h TaskHandler) Assign(c *gin.Context) {
	principal, g, t, ok := h.loadTaskForMember(c)
	if !ok {
		return
	}
	var req assignTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	assignee := domainuser.ID(req.UserID)
	if assignee != "" && !g.IsMember(assignee) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "assignee is not a group member"})
		return
	}
	t.Assign(assignee, time.Now().UTC())
	if err := h.Tasks.Save(c.Request.Context(), t); err != nil {
		h.respondError(c, err, "save task", "task_id", string(t.ID))
		return
	}
	h.notifyUpdate(c, g, t, domainuser.ID(principal.ID), map[string]any{"assigned_to": req.UserID})
	c.JSON(http.StatusOK, dto.MapTask(t, time.Now().UTC()))
}

type taskCommentRequest struct {
	Content string `json:"content"`
}

func (h TaskHandler) AddComment(c *gin.Context) {
	principal, g, t, ok := h.loadTaskForMember(c)
	if !ok {
		return
	}
	var req taskCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	comment, err := t.AddComment(uuid.NewString(), domainuser.ID(principal.ID), req.Content, time.Now().UTC())
	if err != nil {
		h.respondTaskError(c, err, "add comment")
		return
	}
	if err := h.Tasks.Save(c.Request.Context(), t); err != nil {
		h.respondError(c, err, "save task", "task_id", string(t.ID))
		return
	}
	h.notifyUpdate(c, g, t, domainuser.ID(principal.ID), map[string]any{"comment": comment.Content})
	c.JSON(http.StatusCreated, dto.TaskComment{
		ID:        comment.ID,
		UserID:    string(comment.UserID),
		Content:   comment.Content,
		CreatedAt: comment.CreatedAt,
	})
}

func (h TaskHandler) Delete(c *gin.Context) {
	principal, g, t, ok := h.loadTaskForMember(c)
	if !ok {
		return
	}
	actor := domainuser.ID(principal.ID)
	if t.CreatedBy != actor && !g.IsAdmin(actor) {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the creator or a group admin can delete a task"})
		return
	}
	if err := h.Tasks.Delete(c.Request.Context(), t.ID); err != nil {
		h.respondError(c, err, "delete task", "task_id", string(t.ID))
		return
	}
	h.notifyUpdate(c, g, t, actor, map[string]any{"deleted": true})
	c.Status(http.StatusNoContent)
}

func (h TaskHandler) loadGroupForMember(c *gin.Context, groupID string) (principal, *group.Group, bool) {
	p, ok := requirePrincipal(c)
	if !ok {
		return principal{}, nil, false
	}
	g, err := h.Groups.ByID(c.Request.Context(), group.ID(groupID))
	if err != nil {
		if errors.Is(err, group.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "group not found"})
		} else {
			h.respondError(c, err, "load group", "group_id", groupID)
		}
		return principal{}, nil, false
	}
	if !g.IsMember(domainuser.ID(p.ID)) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a group member"})
		return principal{}, nil, false
	}
	return p, g, true
}

func (h TaskHandler) loadTaskForMember(c *gin.Context) (principal, *group.Group, *task.Task, bool) {
	p, ok := requirePrincipal(c)
	if !ok {
		return principal{}, nil, nil, false
	}
	t, err := h.Tasks.ByID(c.Request.Context(), task.ID(c.Param("taskId")))
	if err != nil {
		if errors.Is(err, task.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		} else {
			h.respondError(c, err, "load task", "task_id", c.Param("taskId"))
		}
		return principal{}, nil, nil, false
	}
	g, err := h.Groups.ByID(c.Request.Context(), t.GroupID)
	if err != nil {
		h.respondError(c, err, "load group", "group_id", string(t.GroupID))
		return principal{}, nil, nil, false
	}
	if !g.IsMember(domainuser.ID(p.ID)) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a group member"})
		return principal{}, nil, nil, false
	}
	return p, g, t, true
}

func (h TaskHandler) notifyUpdate(c *gin.Context, g *group.Group, t *task.Task, actor domainuser.ID, update map[string]any) {
	if h.Hub == nil {
		return
	}
	sender := wire.Sender{ID: actor}
	if h.Users != nil {
		if u, err := h.Users.ByID(c.Request.Context(), actor); err == nil {
			sender.Username = u.Username
			sender.FullName = u.FullName
			sender.ProfilePicture = u.ProfilePicture
		}
	}
	payload, err := hub.Marshal(wire.EventTaskUpdated, wire.TaskUpdated{
		TaskID:    string(t.ID),
		Update:    update,
		UpdatedBy: sender,
	})
	if err != nil {
		return
	}
	for _, member := range g.MemberIDs() {
		if member == actor {
			continue
		}
		h.Hub.ToIdentity(member, payload)
	}
}

func (h TaskHandler) respondTaskError(c *gin.Context, err error, op string) {
	switch {
	case errors.Is(err, task.ErrInvalidStatus),
		errors.Is(err, task.ErrInvalidPriority),
		errors.Is(err, task.ErrCommentRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.respondError(c, err, op)
	}
}

func (h TaskHandler) respondError(c *gin.Context, err error, op string, args ...any) {
	if h.Logger != nil {
		h.Logger.Error(op+" failed", append(args, "error", err)...)
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": op + " failed"})
}
