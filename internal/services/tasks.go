package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/moshaveran/moshaver-backend/internal/logger"
	"github.com/moshaveran/moshaver-backend/internal/repos"
	"github.com/moshaveran/moshaver-backend/internal/types"
)

// taskMarkerRe matches the literal [TASK: ...] markers the model is prompted
// to emit around action items.
var taskMarkerRe = regexp.MustCompile(`\[TASK:\s*([^\]]+)\]`)

// ExtractTaskDescriptions returns every marker payload in source order,
// trimmed. No markers means an empty slice.
func ExtractTaskDescriptions(modelOutput string) []string {
	matches := taskMarkerRe.FindAllStringSubmatch(modelOutput, -1)
	descriptions := make([]string, 0, len(matches))
	for _, m := range matches {
		if d := strings.TrimSpace(m[1]); d != "" {
			descriptions = append(descriptions, d)
		}
	}
	return descriptions
}

// StatusUpdate proposes moving one task to a new status.
type StatusUpdate struct {
	TaskID    uuid.UUID
	NewStatus types.TaskStatus
}

// StatusMatcher infers task status transitions from free-form user text.
// The keyword matcher below picks the first eligible task with no binding
// between the user's wording and a specific task; keeping it behind an
// interface lets a smarter matcher replace it without touching callers.
type StatusMatcher interface {
	Match(userMessage string, tasks []*types.Task) []StatusUpdate
}

var completionKeywords = []string{
	"انجام شد", "انجامش دادم", "تمام شد", "تموم شد", "تکمیل شد", "انجام دادم",
	"done", "completed", "finished", "finished it",
}

var inProgressKeywords = []string{
	"شروع کردم", "در حال انجام", "دارم انجام میدم", "دارم روش کار می",
	"started", "working on", "in progress",
}

type keywordStatusMatcher struct{}

func NewKeywordStatusMatcher() StatusMatcher {
	return keywordStatusMatcher{}
}

// Match proposes at most one transition per message. Completion keywords
// take priority over in-progress keywords: a message containing both only
// completes a task.
func (keywordStatusMatcher) Match(userMessage string, tasks []*types.Task) []StatusUpdate {
	lowered := strings.ToLower(userMessage)

	if containsAny(lowered, completionKeywords) {
		for _, task := range tasks {
			if task.Open() {
				return []StatusUpdate{{TaskID: task.ID, NewStatus: types.TaskStatusCompleted}}
			}
		}
		return nil
	}

	if containsAny(lowered, inProgressKeywords) {
		for _, task := range tasks {
			if task.Status == types.TaskStatusPending {
				return []StatusUpdate{{TaskID: task.ID, NewStatus: types.TaskStatusInProgress}}
			}
		}
	}
	return nil
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

type TaskService interface {
	CreateTask(ctx context.Context, chatID uuid.UUID, description string) (*types.Task, error)
	ListTasks(ctx context.Context, chatID uuid.UUID) ([]*types.Task, error)
	ProcessModelOutput(ctx context.Context, chatID uuid.UUID, modelOutput string) []*types.Task
	ProcessUserMessage(ctx context.Context, chatID uuid.UUID, userMessage string) []StatusUpdate
	BuildTaskContext(tasks []*types.Task) string
}

type taskService struct {
	db       *gorm.DB
	log      *logger.Logger
	taskRepo repos.TaskRepo
	matcher  StatusMatcher
}

func NewTaskService(db *gorm.DB, log *logger.Logger, taskRepo repos.TaskRepo, matcher StatusMatcher) TaskService {
	if matcher == nil {
		matcher = NewKeywordStatusMatcher()
	}
	return &taskService{
		db:       db,
		log:      log.With("service", "TaskService"),
		taskRepo: taskRepo,
		matcher:  matcher,
	}
}

// CreateTask records a pending task. When storage is down it returns
// (nil, nil): the task simply was not recorded, chat keeps working.
func (ts *taskService) CreateTask(ctx context.Context, chatID uuid.UUID, description string) (*types.Task, error) {
	task := &types.Task{
		ChatID:      chatID,
		Description: description,
		Status:      types.TaskStatusPending,
	}
	if err := ts.taskRepo.Create(ctx, nil, task); err != nil {
		if errors.Is(err, repos.ErrStorageUnavailable) {
			ts.log.Debug("Task not recorded, storage unavailable", "chat_id", chatID)
			return nil, nil
		}
		return nil, err
	}
	return task, nil
}

func (ts *taskService) ListTasks(ctx context.Context, chatID uuid.UUID) ([]*types.Task, error) {
	tasks, err := ts.taskRepo.ListByChatID(ctx, nil, chatID)
	if err != nil {
		if errors.Is(err, repos.ErrStorageUnavailable) {
			return nil, nil
		}
		return nil, err
	}
	return tasks, nil
}

// ProcessModelOutput extracts task markers from a model reply and records
// each as a pending task. Returns whatever was actually recorded.
func (ts *taskService) ProcessModelOutput(ctx context.Context, chatID uuid.UUID, modelOutput string) []*types.Task {
	var created []*types.Task
	for _, description := range ExtractTaskDescriptions(modelOutput) {
		task, err := ts.CreateTask(ctx, chatID, description)
		if err != nil {
			ts.log.Warn("Failed to create task", "chat_id", chatID, "error", err)
			continue
		}
		if task != nil {
			created = append(created, task)
		}
	}
	return created
}

// ProcessUserMessage runs status detection against the chat's open tasks
// and applies the proposed transition. CompletedAt is stamped on the move
// to completed and never again.
func (ts *taskService) ProcessUserMessage(ctx context.Context, chatID uuid.UUID, userMessage string) []StatusUpdate {
	tasks, err := ts.ListTasks(ctx, chatID)
	if err != nil || len(tasks) == 0 {
		return nil
	}

	updates := ts.matcher.Match(userMessage, tasks)
	applied := make([]StatusUpdate, 0, len(updates))
	for _, update := range updates {
		var completedAt *time.Time
		if update.NewStatus == types.TaskStatusCompleted {
			now := time.Now().UTC()
			completedAt = &now
		}
		if err := ts.taskRepo.UpdateStatus(ctx, nil, update.TaskID, update.NewStatus, completedAt); err != nil {
			ts.log.Warn("Failed to update task status", "chat_id", chatID, "error", err)
			continue
		}
		applied = append(applied, update)
	}
	return applied
}

// BuildTaskContext renders the chat's tasks as a prompt block: open work
// first, then pending items, then the three most recently completed.
// Returns "" when there are no tasks. Pure formatting.
func (ts *taskService) BuildTaskContext(tasks []*types.Task) string {
	if len(tasks) == 0 {
		return ""
	}

	var inProgress, pending, completed []*types.Task
	for _, task := range tasks {
		switch task.Status {
		case types.TaskStatusInProgress:
			inProgress = append(inProgress, task)
		case types.TaskStatusPending:
			pending = append(pending, task)
		case types.TaskStatusCompleted:
			completed = append(completed, task)
		}
	}

	sort.Slice(completed, func(i, j int) bool {
		left, right := completed[i], completed[j]
		if left.CompletedAt == nil || right.CompletedAt == nil {
			return left.UpdatedAt.After(right.UpdatedAt)
		}
		return left.CompletedAt.After(*right.CompletedAt)
	})
	if len(completed) > 3 {
		completed = completed[:3]
	}

	var b strings.Builder
	writeGroup := func(heading string, group []*types.Task) {
		if len(group) == 0 {
			return
		}
		fmt.Fprintf(&b, "%s\n", heading)
		for _, task := range group {
			fmt.Fprintf(&b, "- %s\n", task.Description)
		}
		b.WriteString("\n")
	}

	writeGroup("وظایف در حال انجام:", inProgress)
	writeGroup("وظایف در انتظار:", pending)
	writeGroup("آخرین وظایف تکمیل‌شده:", completed)
	return strings.TrimRight(b.String(), "\n")
}
