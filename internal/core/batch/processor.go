// Package batch owns the bulk transcription queue: an ordered list of jobs
// advanced strictly one at a time, with per-job failure isolation and a fixed
// delay between jobs to stay under upstream rate limits.
package batch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"reelscribe/internal/core/subtitle"
	"reelscribe/internal/core/transcribe"
	"reelscribe/internal/credential"
	"reelscribe/internal/logger"

	"github.com/google/uuid"
)

var (
	ErrNoValidInput      = errors.New("no valid URLs in input")
	ErrCredentialMissing = errors.New("transcription credential not configured")
	ErrNoBatch           = errors.New("no batch")
)

// Resolver converts a page URL into a direct media URL.
type Resolver interface {
	Supports(rawURL string) bool
	Resolve(ctx context.Context, pageURL string) (string, error)
}

// Fetcher retrieves the bytes behind a resolved media URL.
type Fetcher interface {
	Fetch(ctx context.Context, mediaURL string) ([]byte, error)
}

// Transcriber converts media bytes into a transcript.
type Transcriber interface {
	Transcribe(ctx context.Context, media []byte, credential string) (*transcribe.Transcript, error)
}

type Options struct {
	Resolver    Resolver
	Fetcher     Fetcher
	Transcriber Transcriber
	Credentials credential.Store
	Notifier    Notifier
	Clock       Clock
	JobDelay    time.Duration
}

// Processor serializes fetch+transcribe jobs. Only one batch exists at a
// time; starting a new one (or Clear) abandons the old one, and the
// generation tag keeps a stale in-flight job from mutating the replacement.
type Processor struct {
	mu      sync.Mutex
	current *Batch

	resolver    Resolver
	fetcher     Fetcher
	transcriber Transcriber
	creds       credential.Store
	notifier    Notifier
	clock       Clock
	jobDelay    time.Duration
	log         *logger.Logger
}

func NewProcessor(opts Options) *Processor {
	p := &Processor{
		resolver:    opts.Resolver,
		fetcher:     opts.Fetcher,
		transcriber: opts.Transcriber,
		creds:       opts.Credentials,
		notifier:    opts.Notifier,
		clock:       opts.Clock,
		jobDelay:    opts.JobDelay,
		log:         logger.New("BatchProcessor"),
	}
	if p.notifier == nil {
		p.notifier = Fanout{}
	}
	if p.clock == nil {
		p.clock = NewClock()
	}
	if p.jobDelay <= 0 {
		p.jobDelay = time.Second
	}
	return p
}

// StartBatch builds a batch from raw input lines and begins sequential
// processing. The returned snapshot is the synchronous all-pending view; all
// later state arrives through the notifier.
func (p *Processor) StartBatch(urls []string) (*Snapshot, error) {
	jobs := p.buildJobs(urls)
	if len(jobs) == 0 {
		return nil, ErrNoValidInput
	}
	if !p.creds.Has() {
		return nil, ErrCredentialMissing
	}

	b := &Batch{
		Generation: uuid.NewString(),
		Jobs:       jobs,
		Running:    true,
	}

	p.mu.Lock()
	if p.current != nil && p.current.Running {
		p.log.LogWarnf("replacing running batch %s, %d job(s) abandoned",
			p.current.Generation, len(p.current.Jobs))
	}
	p.current = b
	snap := snapshotLocked(b)
	p.mu.Unlock()

	p.log.LogInfof("batch %s started with %d job(s)", b.Generation, len(b.Jobs))
	go p.run(b)
	return snap, nil
}

func (p *Processor) buildJobs(urls []string) []Job {
	var jobs []Job
	for _, line := range urls {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		normalized := NormalizeURL(line)
		if !p.resolver.Supports(normalized) {
			continue
		}
		jobs = append(jobs, Job{
			ID:        len(jobs),
			SourceURL: normalized,
			Status:    StatusPending,
		})
	}
	return jobs
}

// Clear discards the current batch. Any in-flight external call keeps
// running; its result is dropped by the generation guard when it lands.
func (p *Processor) Clear() {
	p.mu.Lock()
	if p.current != nil {
		p.log.LogInfof("batch %s cleared", p.current.Generation)
	}
	p.current = nil
	p.mu.Unlock()
}

// Snapshot returns a copy of the current batch state.
func (p *Processor) Snapshot() (*Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return nil, ErrNoBatch
	}
	return snapshotLocked(p.current), nil
}

// CompletedResults returns the successful results in completion order.
func (p *Processor) CompletedResults() []Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return nil
	}
	out := make([]Result, len(p.current.Completed))
	copy(out, p.current.Completed)
	return out
}

// JobResult returns the result of one completed job.
func (p *Processor) JobResult(id int) (*Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return nil, ErrNoBatch
	}
	if id < 0 || id >= len(p.current.Jobs) {
		return nil, fmt.Errorf("job %d not found", id)
	}
	j := p.current.Jobs[id]
	if j.Status != StatusCompleted || j.Result == nil {
		return nil, fmt.Errorf("job %d has no result (status %s)", id, j.Status)
	}
	res := *j.Result
	return &res, nil
}

func snapshotLocked(b *Batch) *Snapshot {
	jobs := make([]Job, len(b.Jobs))
	copy(jobs, b.Jobs)
	return &Snapshot{
		Generation:     b.Generation,
		Running:        b.Running,
		Jobs:           jobs,
		CompletedCount: len(b.Completed),
		TotalCount:     len(b.Jobs),
	}
}

func (p *Processor) isCurrent(b *Batch) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current != nil && p.current.Generation == b.Generation
}

// run is the sequential advancement loop. It is the only goroutine that
// mutates b, and every mutation is preceded by a generation check so an
// abandoned batch dies quietly.
func (p *Processor) run(b *Batch) {
	ctx := context.Background()
	for i := range b.Jobs {
		if !p.isCurrent(b) {
			return
		}
		p.notifier.JobChanged(p.transition(b, i, StatusProcessing, nil, ""))

		result, failure := p.processJob(ctx, b.Jobs[i].ID, b.Jobs[i].SourceURL)

		// The external calls may have outlived an abandonment.
		if !p.isCurrent(b) {
			return
		}
		if failure != "" {
			p.log.LogWarnf("job %d failed: %s", b.Jobs[i].ID, failure)
			p.notifier.JobChanged(p.transition(b, i, StatusFailed, nil, failure))
		} else {
			p.notifier.JobChanged(p.transition(b, i, StatusCompleted, result, ""))
		}

		if i < len(b.Jobs)-1 {
			p.clock.Sleep(ctx, p.jobDelay)
		}
	}

	if !p.isCurrent(b) {
		return
	}
	p.mu.Lock()
	b.Running = false
	summary := Summary{
		Generation:     b.Generation,
		CompletedCount: len(b.Completed),
		TotalCount:     len(b.Jobs),
	}
	p.mu.Unlock()
	p.log.LogInfof("batch %s done: %d/%d completed", b.Generation, summary.CompletedCount, summary.TotalCount)
	p.notifier.BatchDone(summary)
}

func (p *Processor) transition(b *Batch, idx int, status Status, result *Result, failure string) JobUpdate {
	p.mu.Lock()
	defer p.mu.Unlock()

	j := &b.Jobs[idx]
	j.Status = status
	j.Result = result
	j.FailureReason = failure

	update := JobUpdate{
		Generation:    b.Generation,
		JobID:         j.ID,
		Status:        status,
		FailureReason: failure,
	}
	switch status {
	case StatusCompleted:
		b.Completed = append(b.Completed, *result)
		b.Cursor = idx + 1
		update.ResultSummary = summarize(result.Text)
	case StatusFailed:
		b.Cursor = idx + 1
	}
	return update
}

// processJob runs the resolve, fetch, transcribe, format pipeline for one
// job. A non-empty failure reason means the job failed; the batch continues
// regardless.
func (p *Processor) processJob(ctx context.Context, id int, sourceURL string) (*Result, string) {
	mediaURL, err := p.resolver.Resolve(ctx, sourceURL)
	if err != nil {
		return nil, err.Error()
	}

	media, err := p.fetcher.Fetch(ctx, mediaURL)
	if err != nil {
		return nil, err.Error()
	}

	cred, ok := p.creds.Get()
	if !ok {
		// A 401 earlier in this batch cleared the store; each remaining job
		// fails fast here on its own.
		return nil, ErrCredentialMissing.Error()
	}

	tr, err := p.transcriber.Transcribe(ctx, media, cred)
	if err != nil {
		if transcribe.KindOf(err) == transcribe.KindInvalidCredential {
			p.log.LogWarnf("job %d: credential rejected, clearing stored credential", id)
			p.creds.Clear()
		}
		return nil, err.Error()
	}

	return &Result{
		Text:           tr.Text,
		SubtitleText:   subtitle.Format(tr.Segments),
		SourceURL:      sourceURL,
		ExportBaseName: fmt.Sprintf("transcript_%d", id+1),
		Language:       tr.Language,
	}, ""
}

func summarize(text string) string {
	const max = 120
	runes := []rune(strings.TrimSpace(text))
	if len(runes) <= max {
		return string(runes)
	}
	return strings.TrimSpace(string(runes[:max])) + "…"
}
