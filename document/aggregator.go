// Package document assembles the pages of a job into a single document.
package document

import (
	"fmt"
	"log/slog"

	"github.com/mastercactapus/scanbridge/transfer"
)

// Encoder creates output documents.
type Encoder interface {
	NewDocument() (Document, error)
}

// Document receives raster pages in order and produces the final bytes.
type Document interface {
	AppendPage(img []byte) error
	Finalize() ([]byte, error)
}

// EncodeError reports a failed assembly. Page is the 1-based page that
// failed, or 0 if the failure was not tied to a page.
type EncodeError struct {
	Page int
	Err  error
}

func (e *EncodeError) Error() string {
	if e.Page == 0 {
		return "encode document: " + e.Err.Error()
	}
	return fmt.Sprintf("encode page %d: %v", e.Page, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }

// Aggregator assembles jobs with an Encoder.
type Aggregator struct {
	enc Encoder
	log *slog.Logger
}

var _ transfer.Assembler = &Aggregator{}

func NewAggregator(enc Encoder, log *slog.Logger) *Aggregator {
	if log == nil {
		log = slog.Default()
	}
	return &Aggregator{enc: enc, log: log}
}

// Assemble encodes every page of job, in order, into one document and
// clears the job. An empty job produces nil. On error the job is left
// untouched.
func (a *Aggregator) Assemble(job *transfer.Job) ([]byte, error) {
	if job.Len() == 0 {
		return nil, nil
	}

	doc, err := a.enc.NewDocument()
	if err != nil {
		return nil, &EncodeError{Err: err}
	}
	for i, pg := range job.Pages() {
		if err = doc.AppendPage(pg); err != nil {
			a.log.Error("page could not be encoded", "job", job.ID, "page", i+1, "err", err)
			return nil, &EncodeError{Page: i + 1, Err: err}
		}
	}
	data, err := doc.Finalize()
	if err != nil {
		return nil, &EncodeError{Err: err}
	}

	job.Clear()
	return data, nil
}
