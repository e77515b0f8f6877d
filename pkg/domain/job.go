package domain

import (
	"fmt"
	"time"
)

// JobStatus is the lifecycle status of a single job submitted by a run's
// driver pod to the execution backend.
type JobStatus string

const (
	JobCreated  JobStatus = "created"
	JobQueued   JobStatus = "queued"
	JobRunning  JobStatus = "running"
	JobFinished JobStatus = "finished"
	JobFailed   JobStatus = "failed"
	JobStopped  JobStatus = "stopped"
)

func (s JobStatus) String() string {
	return string(s)
}

func AsJobStatus(s string) (JobStatus, error) {
	switch s {
	case string(JobCreated):
		return JobCreated, nil
	case string(JobQueued):
		return JobQueued, nil
	case string(JobRunning):
		return JobRunning, nil
	case string(JobFinished):
		return JobFinished, nil
	case string(JobFailed):
		return JobFailed, nil
	case string(JobStopped):
		return JobStopped, nil
	default:
		return "", fmt.Errorf("'%s' is not a job status", s)
	}
}

// Terminal job records are immutable: no status update may leave them.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobFinished, JobFailed, JobStopped:
		return true
	default:
		return false
	}
}

// Job is one unit of work tracked to a terminal status. The id is assigned
// by the workflow engine and opaque to the controller.
type Job struct {
	Id         string
	RunId      string
	Status     JobStatus
	StartedAt  *time.Time
	FinishedAt *time.Time
}

func (j *Job) Equal(o *Job) bool {
	if (j == nil) || (o == nil) {
		return (j == nil) && (o == nil)
	}
	return j.Id == o.Id &&
		j.RunId == o.RunId &&
		j.Status == o.Status &&
		timePtrEq(j.StartedAt, o.StartedAt) &&
		timePtrEq(j.FinishedAt, o.FinishedAt)
}
