package schedule

import (
	"strings"

	"github.com/oklog/ulid/v2"
)

// Schedule describes the recurring generation run and its last outcome.
type Schedule struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	CronExpression string `json:"cron_expression"`
	Timezone       string `json:"timezone"`
	IsActive       bool   `json:"is_active"`
	NextRunTime    string `json:"next_run_time,omitempty"`
	LastRunAt      string `json:"last_run_at,omitempty"`
	LastRunSuccess *bool  `json:"last_run_success,omitempty"`
	MaxAttempts    int    `json:"max_attempts"`
}

// ExecutionLog records one attempt of a scheduled run.
type ExecutionLog struct {
	ID           string `json:"id"`
	ExecutedAt   string `json:"executed_at"`
	Success      bool   `json:"success"`
	Attempt      int    `json:"attempt"`
	MaxAttempts  int    `json:"max_attempts"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// persisted is the on-disk shape of the schedule store file.
type persisted struct {
	Schedule   Schedule       `json:"schedule"`
	Executions []ExecutionLog `json:"executions"`
}

func newExecutionID() string {
	return strings.ToLower(ulid.Make().String())
}
