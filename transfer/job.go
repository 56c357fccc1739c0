package transfer

import "github.com/google/uuid"

// A Job is the ordered page buffers of one batch, in acquisition order.
type Job struct {
	ID    string
	pages [][]byte
}

func NewJob() *Job {
	return &Job{ID: uuid.New().String()}
}

func (j *Job) Append(p []byte) { j.pages = append(j.pages, p) }

// Pages returns the page buffers in acquisition order.
func (j *Job) Pages() [][]byte { return j.pages }

func (j *Job) Len() int { return len(j.pages) }

// Clear empties the job.
func (j *Job) Clear() { j.pages = nil }
