package batch

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"reelscribe/internal/core/subtitle"
	"reelscribe/internal/core/transcribe"
	"reelscribe/internal/credential"
)

// mockResolver resolves any supported URL to a derived media URL, with
// per-URL error injection.
type mockResolver struct {
	failFor map[string]error
}

func (m *mockResolver) Supports(rawURL string) bool {
	return strings.Contains(rawURL, "instagram.com")
}

func (m *mockResolver) Resolve(_ context.Context, pageURL string) (string, error) {
	if err, ok := m.failFor[pageURL]; ok {
		return "", err
	}
	return "https://cdn.example.com/" + pageURL[strings.LastIndex(pageURL, "/")+1:] + ".mp4", nil
}

type mockFetcher struct {
	err error
}

func (m *mockFetcher) Fetch(_ context.Context, mediaURL string) ([]byte, error) {
	if m.err != nil {
		return nil, m.err
	}
	return []byte("media:" + mediaURL), nil
}

type mockTranscriber struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (m *mockTranscriber) Transcribe(_ context.Context, _ []byte, _ string) (*transcribe.Transcript, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return &transcribe.Transcript{
		Text:     "hello world",
		Language: "en",
		Segments: []subtitle.Segment{{Start: 0, End: 1.5, Text: " hello world "}},
	}, nil
}

func (m *mockTranscriber) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// instantClock records requested delays without sleeping.
type instantClock struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (c *instantClock) Sleep(_ context.Context, d time.Duration) {
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	c.mu.Unlock()
}

// recorder captures notifications and signals batch completion.
type recorder struct {
	mu      sync.Mutex
	updates []JobUpdate
	done    chan Summary
}

func newRecorder() *recorder {
	return &recorder{done: make(chan Summary, 1)}
}

func (r *recorder) JobChanged(u JobUpdate) {
	r.mu.Lock()
	r.updates = append(r.updates, u)
	r.mu.Unlock()
}

func (r *recorder) BatchDone(s Summary) {
	r.done <- s
}

func (r *recorder) all() []JobUpdate {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]JobUpdate, len(r.updates))
	copy(out, r.updates)
	return out
}

func (r *recorder) wait(t *testing.T) Summary {
	t.Helper()
	select {
	case s := <-r.done:
		return s
	case <-time.After(5 * time.Second):
		t.Fatal("batch did not finish in time")
		return Summary{}
	}
}

type fixture struct {
	proc        *Processor
	resolver    *mockResolver
	fetcher     *mockFetcher
	transcriber *mockTranscriber
	creds       *credential.Memory
	clock       *instantClock
	rec         *recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		resolver:    &mockResolver{failFor: map[string]error{}},
		fetcher:     &mockFetcher{},
		transcriber: &mockTranscriber{},
		creds:       credential.NewMemory("sk-test-credential-123"),
		clock:       &instantClock{},
		rec:         newRecorder(),
	}
	f.proc = NewProcessor(Options{
		Resolver:    f.resolver,
		Fetcher:     f.fetcher,
		Transcriber: f.transcriber,
		Credentials: f.creds,
		Notifier:    f.rec,
		Clock:       f.clock,
		JobDelay:    time.Second,
	})
	return f
}

func TestNormalizeURL(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"https://instagram.com/reel/ABC?igsh=xyz", "https://instagram.com/reel/ABC"},
		{"https://instagram.com/reel/ABC", "https://instagram.com/reel/ABC"},
		{"https://x.test/?a=1?b=2", "https://x.test/"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := NormalizeURL(tc.in); got != tc.want {
			t.Errorf("NormalizeURL(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestStartBatchBuildsJobsFromSurvivingLines(t *testing.T) {
	f := newFixture(t)
	snap, err := f.proc.StartBatch([]string{
		"  https://instagram.com/reel/A?igsh=abc  ",
		"",
		"https://example.com/not-supported",
		"https://instagram.com/reel/B",
		"   ",
	})
	if err != nil {
		t.Fatalf("StartBatch: %v", err)
	}
	if snap.TotalCount != 2 {
		t.Fatalf("TotalCount = %d, want 2", snap.TotalCount)
	}
	if snap.Jobs[0].ID != 0 || snap.Jobs[1].ID != 1 {
		t.Errorf("job ids = %d, %d, want 0, 1", snap.Jobs[0].ID, snap.Jobs[1].ID)
	}
	if snap.Jobs[0].SourceURL != "https://instagram.com/reel/A" {
		t.Errorf("job 0 url = %q, query params not stripped", snap.Jobs[0].SourceURL)
	}
	for _, j := range snap.Jobs {
		if j.Status != StatusPending {
			t.Errorf("job %d initial status = %s, want pending", j.ID, j.Status)
		}
	}
	f.rec.wait(t)
}

func TestStartBatchNoValidInput(t *testing.T) {
	f := newFixture(t)
	_, err := f.proc.StartBatch([]string{"", "https://example.com/other", "  "})
	if !errors.Is(err, ErrNoValidInput) {
		t.Errorf("err = %v, want ErrNoValidInput", err)
	}
	if _, err := f.proc.Snapshot(); !errors.Is(err, ErrNoBatch) {
		t.Error("no batch should exist after rejected input")
	}
}

func TestStartBatchCredentialMissing(t *testing.T) {
	f := newFixture(t)
	f.creds.Clear()
	_, err := f.proc.StartBatch([]string{"https://instagram.com/reel/A"})
	if !errors.Is(err, ErrCredentialMissing) {
		t.Errorf("err = %v, want ErrCredentialMissing", err)
	}
	if _, err := f.proc.Snapshot(); !errors.Is(err, ErrNoBatch) {
		t.Error("no jobs should be created without a credential")
	}
}

func TestBatchAllCompleted(t *testing.T) {
	f := newFixture(t)
	_, err := f.proc.StartBatch([]string{
		"https://instagram.com/reel/A",
		"https://instagram.com/reel/B",
	})
	if err != nil {
		t.Fatalf("StartBatch: %v", err)
	}
	summary := f.rec.wait(t)
	if summary.CompletedCount != 2 || summary.TotalCount != 2 {
		t.Errorf("summary = %+v, want 2/2", summary)
	}

	snap, err := f.proc.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.Running {
		t.Error("batch should be idle after the last job")
	}
	res := f.proc.CompletedResults()
	if len(res) != 2 {
		t.Fatalf("completed results = %d, want 2", len(res))
	}
	if res[0].ExportBaseName != "transcript_1" || res[1].ExportBaseName != "transcript_2" {
		t.Errorf("base names = %q, %q", res[0].ExportBaseName, res[1].ExportBaseName)
	}
	if res[0].SourceURL != "https://instagram.com/reel/A" {
		t.Errorf("completion order broken: first result from %q", res[0].SourceURL)
	}
	want := "1\n00:00:00,000 --> 00:00:01,500\nhello world\n\n"
	if res[0].SubtitleText != want {
		t.Errorf("subtitle text = %q, want %q", res[0].SubtitleText, want)
	}
}

func TestMiddleJobFailureDoesNotAbortBatch(t *testing.T) {
	f := newFixture(t)
	f.resolver.failFor["https://instagram.com/reel/B"] = errors.New("could not resolve a media URL")

	_, err := f.proc.StartBatch([]string{
		"https://instagram.com/reel/A",
		"https://instagram.com/reel/B",
		"https://instagram.com/reel/C",
	})
	if err != nil {
		t.Fatalf("StartBatch: %v", err)
	}
	summary := f.rec.wait(t)
	if summary.CompletedCount != 2 || summary.TotalCount != 3 {
		t.Errorf("summary = %+v, want 2/3", summary)
	}

	snap, _ := f.proc.Snapshot()
	wantStatuses := []Status{StatusCompleted, StatusFailed, StatusCompleted}
	for i, want := range wantStatuses {
		if snap.Jobs[i].Status != want {
			t.Errorf("job %d status = %s, want %s", i, snap.Jobs[i].Status, want)
		}
	}
	if snap.Jobs[1].FailureReason == "" {
		t.Error("failed job should carry a failure reason")
	}
	res := f.proc.CompletedResults()
	if len(res) != 2 || res[1].SourceURL != "https://instagram.com/reel/C" {
		t.Errorf("completed results = %+v", res)
	}
}

func TestSequentialInvariantsAndDelays(t *testing.T) {
	f := newFixture(t)
	_, err := f.proc.StartBatch([]string{
		"https://instagram.com/reel/A",
		"https://instagram.com/reel/B",
		"https://instagram.com/reel/C",
	})
	if err != nil {
		t.Fatalf("StartBatch: %v", err)
	}
	f.rec.wait(t)

	// Notifications arrive in processing order, one Processing at a time.
	processing := -1
	inFlight := 0
	for _, u := range f.rec.all() {
		switch u.Status {
		case StatusProcessing:
			inFlight++
			if inFlight > 1 {
				t.Fatal("two jobs processing at once")
			}
			if u.JobID != processing+1 {
				t.Errorf("processing order: got job %d after job %d", u.JobID, processing)
			}
			processing = u.JobID
		case StatusCompleted, StatusFailed:
			inFlight--
			if u.JobID != processing {
				t.Errorf("terminal update for job %d while job %d in flight", u.JobID, processing)
			}
		}
	}

	// N jobs means N-1 inter-job delays of the configured length.
	f.clock.mu.Lock()
	defer f.clock.mu.Unlock()
	if len(f.clock.sleeps) != 2 {
		t.Fatalf("sleeps = %d, want 2", len(f.clock.sleeps))
	}
	for _, d := range f.clock.sleeps {
		if d != time.Second {
			t.Errorf("inter-job delay = %v, want 1s", d)
		}
	}
}

func TestInvalidCredentialClearsStoreAndLaterJobsStillRun(t *testing.T) {
	f := newFixture(t)
	f.transcriber.err = transcribe.NewError(transcribe.KindInvalidCredential, "API credential was rejected (status 401)")

	_, err := f.proc.StartBatch([]string{
		"https://instagram.com/reel/A",
		"https://instagram.com/reel/B",
	})
	if err != nil {
		t.Fatalf("StartBatch: %v", err)
	}
	summary := f.rec.wait(t)
	if summary.CompletedCount != 0 {
		t.Errorf("summary = %+v, want 0 completed", summary)
	}
	if f.creds.Has() {
		t.Error("stored credential should be cleared after a 401")
	}
	// The second job still went through resolve+fetch and failed fast at the
	// credential check, not by being skipped.
	snap, _ := f.proc.Snapshot()
	if snap.Jobs[1].Status != StatusFailed {
		t.Errorf("job 1 status = %s, want failed", snap.Jobs[1].Status)
	}
	if !strings.Contains(snap.Jobs[1].FailureReason, "credential") {
		t.Errorf("job 1 reason = %q, want credential-related", snap.Jobs[1].FailureReason)
	}
	if got := f.transcriber.callCount(); got != 1 {
		t.Errorf("transcriber calls = %d, want 1 (second job fails before upload)", got)
	}
}

func TestClearAbandonsBatchAndGuardsStaleResults(t *testing.T) {
	f := newFixture(t)

	release := make(chan struct{})
	started := make(chan struct{}, 1)
	f.proc.transcriber = &blockingTranscriber{inner: f.transcriber, release: release, started: started}

	_, err := f.proc.StartBatch([]string{"https://instagram.com/reel/A"})
	if err != nil {
		t.Fatalf("StartBatch: %v", err)
	}
	<-started
	f.proc.Clear()
	close(release)

	if _, err := f.proc.Snapshot(); !errors.Is(err, ErrNoBatch) {
		t.Error("cleared batch should be gone")
	}
	// The in-flight job resolves after abandonment; no phantom notifications.
	select {
	case s := <-f.rec.done:
		t.Errorf("stale batch emitted a summary: %+v", s)
	case <-time.After(100 * time.Millisecond):
	}
	for _, u := range f.rec.all() {
		if u.Status == StatusCompleted || u.Status == StatusFailed {
			t.Errorf("stale terminal update leaked: %+v", u)
		}
	}
}

func TestStartBatchReplacesRunningBatch(t *testing.T) {
	f := newFixture(t)

	release := make(chan struct{})
	started := make(chan struct{}, 2)
	f.proc.transcriber = &blockingTranscriber{inner: f.transcriber, release: release, started: started}

	first, err := f.proc.StartBatch([]string{"https://instagram.com/reel/A"})
	if err != nil {
		t.Fatalf("StartBatch: %v", err)
	}
	<-started

	f.proc.transcriber = f.transcriber
	second, err := f.proc.StartBatch([]string{"https://instagram.com/reel/B"})
	if err != nil {
		t.Fatalf("StartBatch (second): %v", err)
	}
	if first.Generation == second.Generation {
		t.Fatal("replacement batch must carry a new generation")
	}
	close(release)

	summary := f.rec.wait(t)
	if summary.Generation != second.Generation {
		t.Errorf("summary generation = %s, want %s", summary.Generation, second.Generation)
	}
	snap, _ := f.proc.Snapshot()
	if snap.Generation != second.Generation {
		t.Errorf("current batch = %s, want %s", snap.Generation, second.Generation)
	}
}

// blockingTranscriber parks the first call until released, so tests can
// interleave Clear / StartBatch with an in-flight job.
type blockingTranscriber struct {
	inner   Transcriber
	release chan struct{}
	started chan struct{}
	once    sync.Once
}

func (b *blockingTranscriber) Transcribe(ctx context.Context, media []byte, cred string) (*transcribe.Transcript, error) {
	b.once.Do(func() {
		b.started <- struct{}{}
		<-b.release
	})
	return b.inner.Transcribe(ctx, media, cred)
}
