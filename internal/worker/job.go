package worker

import (
	"context"

	"omnichat/internal/models"
)

type JobType int

const (
	Generate JobType = iota
	Title
	Usage
	Stop
)

func (t JobType) String() string {
	switch t {
	case Generate:
		return "generate"
	case Title:
		return "title"
	case Usage:
		return "usage"
	case Stop:
		return "stop"
	}
	return "unknown"
}

// Job is the unit the dispatcher hands to pool workers. Exactly one task
// field matching Type is set.
type Job struct {
	Type         JobType
	GenerateTask *generateTask
	TitleTask    *titleTask
	UsageTask    *usageTask
}

// generateTask carries one admitted generation turn. By the time it is
// queued the generating flag is already set and the cancel function is
// registered; ctx is detached from the triggering HTTP request.
type generateTask struct {
	ctx          context.Context
	conversation *models.Conversation
	assistant    *models.Message
	userText     string
	modelID      string // possibly a search variant
	secret       string
}

type titleTask struct {
	conversation  *models.Conversation
	userText      string
	assistantText string
}

type usageTask struct {
	record models.UsageRecord
}

func (job Job) userID() int64 {
	switch job.Type {
	case Generate:
		return job.GenerateTask.conversation.UserID
	case Title:
		return job.TitleTask.conversation.UserID
	case Usage:
		return job.UsageTask.record.UserID
	default:
		return 0
	}
}
