// Package transfer accumulates the pages of a batch as the device delivers
// them and hands the finished job to an assembler once the source disables.
package transfer

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/spf13/afero"

	"github.com/mastercactapus/scanbridge/device"
)

// ErrNothingToRetry is returned by Retry when no failed job is held.
var ErrNothingToRetry = errors.New("no failed job to retry")

// Assembler turns a job into one document. On success it clears the job;
// on failure it must leave the pages intact. An empty job yields nil bytes
// and no error.
type Assembler interface {
	Assemble(*Job) ([]byte, error)
}

// Publisher delivers a finished document to subscribers.
type Publisher interface {
	PublishDocument(doc []byte)
}

type Config struct {
	Assembler Assembler
	Publisher Publisher

	// Fs is used to read pages delivered as file paths. Defaults to the OS
	// filesystem.
	Fs afero.Fs

	Logger *slog.Logger
}

// Stats is a snapshot of the pipeline.
type Stats struct {
	Pages       int `json:"pages"`
	FailedPages int `json:"failedPages"`
}

// Pipeline reacts to the transfer signals of a session. Signal methods run
// on the device loop.
type Pipeline struct {
	asm Assembler
	pub Publisher
	fs  afero.Fs
	log *slog.Logger

	token StopToken

	mx     sync.Mutex
	job    *Job
	failed *Job
}

var _ device.Sink = &Pipeline{}

func New(cfg Config) *Pipeline {
	p := &Pipeline{
		asm: cfg.Assembler,
		pub: cfg.Publisher,
		fs:  cfg.Fs,
		log: cfg.Logger,
	}
	if p.fs == nil {
		p.fs = afero.NewOsFs()
	}
	if p.log == nil {
		p.log = slog.Default()
	}
	return p
}

// Begin resets the stop token and starts a fresh job. Pages left over from
// an aborted batch are discarded.
func (p *Pipeline) Begin() {
	p.token.Reset()

	p.mx.Lock()
	defer p.mx.Unlock()
	if p.job != nil && p.job.Len() > 0 {
		p.log.Warn("discarding unfinished job", "job", p.job.ID, "pages", p.job.Len())
	}
	p.job = NewJob()
}

// Cancel sets the stop token. Safe from any goroutine.
func (p *Pipeline) Cancel() { p.token.Stop() }

func (p *Pipeline) Stats() Stats {
	p.mx.Lock()
	defer p.mx.Unlock()
	var s Stats
	if p.job != nil {
		s.Pages = p.job.Len()
	}
	if p.failed != nil {
		s.FailedPages = p.failed.Len()
	}
	return s
}

func (p *Pipeline) TransferReady() device.Decision {
	if p.token.Stopped() {
		p.log.Info("transfer cancelled")
		return device.CancelAll
	}
	return device.Accept
}

func (p *Pipeline) DataTransferred(pg device.Page) {
	if len(pg.Info) > 0 {
		p.log.Info("extended image info", slog.Any("info", pg.Info))
	}

	data, err := p.read(pg)
	if err != nil {
		p.log.Warn("page dropped", "err", err)
		return
	}

	p.mx.Lock()
	if p.job == nil {
		p.job = NewJob()
	}
	p.job.Append(data)
	id, n := p.job.ID, p.job.Len()
	p.mx.Unlock()

	p.log.Debug("page accepted", "job", id, "page", n, "bytes", len(data))
}

var errEmptyPage = errors.New("page has neither data nor path")

func (p *Pipeline) read(pg device.Page) ([]byte, error) {
	switch {
	case len(pg.Data) > 0:
		return append([]byte(nil), pg.Data...), nil
	case pg.Path != "":
		return afero.ReadFile(p.fs, pg.Path)
	}
	return nil, errEmptyPage
}

// TransferError is logged; the accumulated job is kept.
func (p *Pipeline) TransferError(err error) {
	p.log.Warn("page transfer failed", "err", err)
}

// SourceDisabled assembles the current job and publishes the result. A
// job that fails to assemble is held for Retry.
func (p *Pipeline) SourceDisabled() {
	p.mx.Lock()
	job := p.job
	p.job = nil
	p.mx.Unlock()

	if job == nil || job.Len() == 0 {
		p.log.Info("batch finished without pages")
		return
	}
	p.finish(job)
}

func (p *Pipeline) finish(job *Job) error {
	n := job.Len()
	doc, err := p.asm.Assemble(job)
	if err != nil {
		p.log.Error("assemble document", "job", job.ID, "pages", n, "err", err)
		p.mx.Lock()
		if p.failed != nil && p.failed != job {
			p.log.Warn("replacing failed job", "job", p.failed.ID, "pages", p.failed.Len())
		}
		p.failed = job
		p.mx.Unlock()
		return err
	}
	if doc == nil {
		return nil
	}
	p.log.Info("document assembled", "job", job.ID, "pages", n, "bytes", len(doc))
	p.pub.PublishDocument(doc)
	return nil
}

// Retry re-assembles the held failed job and publishes it on success.
func (p *Pipeline) Retry() error {
	p.mx.Lock()
	job := p.failed
	p.mx.Unlock()
	if job == nil {
		return ErrNothingToRetry
	}
	if err := p.finish(job); err != nil {
		return err
	}
	p.mx.Lock()
	if p.failed == job {
		p.failed = nil
	}
	p.mx.Unlock()
	return nil
}
