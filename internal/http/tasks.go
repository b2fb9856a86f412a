package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mikestefanello/backlite"

	"github.com/theledlead/bookshelf/internal/scheduler"
)

// TasksController exposes background task status and the maintenance
// jobs to staff.
type TasksController struct {
	queue TaskQueue
	jobs  JobRunner
}

// NewTasksController creates a new TasksController. Either dependency may
// be nil when the feature is disabled.
func NewTasksController(queue TaskQueue, jobs JobRunner) *TasksController {
	return &TasksController{queue: queue, jobs: jobs}
}

// GetTaskStatus handles GET /tll-admin/tasks/:task_id/
func (tc *TasksController) GetTaskStatus(c *gin.Context) {
	if tc.queue == nil {
		respondMessage(c, http.StatusServiceUnavailable, "Task queue is disabled")
		return
	}
	taskID := c.Param("task_id")

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status, err := tc.queue.Status(ctx, taskID)
	if err != nil {
		respondInternalError(c, err, "task status")
		return
	}
	if status == backlite.TaskStatusNotFound {
		respondNotFound(c, "Task")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":     taskID,
		"status": taskStatusToString(status),
	})
}

// ListJobs handles GET /tll-admin/jobs/
func (tc *TasksController) ListJobs(c *gin.Context) {
	if tc.jobs == nil {
		c.JSON(http.StatusOK, gin.H{"jobs": []scheduler.JobStatus{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": tc.jobs.Jobs()})
}

// RunJob handles POST /tll-admin/jobs/:name/run/
// The job runs on the request goroutine; with a queue configured that
// only means enqueueing it.
func (tc *TasksController) RunJob(c *gin.Context) {
	if tc.jobs == nil {
		respondNotFound(c, "Job")
		return
	}
	name := c.Param("name")
	if err := tc.jobs.RunNow(c.Request.Context(), name); err != nil {
		if errors.Is(err, scheduler.ErrUnknownJob) {
			respondNotFound(c, "Job")
			return
		}
		respondInternalError(c, err, "run job")
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "Job started", "job": name})
}

func taskStatusToString(status backlite.TaskStatus) string {
	switch status {
	case backlite.TaskStatusPending:
		return "pending"
	case backlite.TaskStatusRunning:
		return "running"
	case backlite.TaskStatusSuccess:
		return "success"
	case backlite.TaskStatusFailure:
		return "failure"
	case backlite.TaskStatusNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}
