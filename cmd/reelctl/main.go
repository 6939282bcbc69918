// reelctl runs one transcription batch in-process and writes the exports to
// disk, without needing the HTTP service or redis.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/atotto/clipboard"
	"github.com/joho/godotenv"

	"reelscribe/internal/config"
	"reelscribe/internal/core/batch"
	"reelscribe/internal/core/export"
	"reelscribe/internal/core/resolve"
	"reelscribe/internal/core/transcribe"
	"reelscribe/internal/credential"
)

type cliNotifier struct {
	done chan batch.Summary
}

func (n *cliNotifier) JobChanged(u batch.JobUpdate) {
	switch u.Status {
	case batch.StatusProcessing:
		fmt.Printf("job %d: processing...\n", u.JobID+1)
	case batch.StatusCompleted:
		fmt.Printf("job %d: done: %s\n", u.JobID+1, u.ResultSummary)
	case batch.StatusFailed:
		fmt.Printf("job %d: FAILED: %s\n", u.JobID+1, u.FailureReason)
	}
}

func (n *cliNotifier) BatchDone(s batch.Summary) {
	n.done <- s
}

func main() {
	_ = godotenv.Load()

	input := flag.String("input", "", "file with one video URL per line (default: URLs as args)")
	out := flag.String("out", "./transcripts", "directory for exported files")
	archive := flag.Bool("archive", false, "also write a combined transcripts.zip")
	copyJob := flag.Int("copy", 0, "copy the transcript of job N (1-based) to the clipboard")
	key := flag.String("key", "", "transcription API credential (default: TRANSCRIBE_API_KEY)")
	flag.Parse()

	urls, err := collectURLs(*input, flag.Args())
	if err != nil {
		log.Fatal(err)
	}

	apiKey := *key
	if apiKey == "" {
		apiKey = os.Getenv("TRANSCRIBE_API_KEY")
	}
	creds := credential.NewMemory(apiKey)

	cfg := config.Load()
	resolver := resolve.New(resolve.Options{
		Endpoint:  cfg.ResolverEndpoint,
		Platforms: cfg.Platforms,
	})
	downloader := resolve.NewDownloader(cfg.MaxUploadBytes, nil)
	transcriber := transcribe.New(transcribe.Options{
		Endpoint:       cfg.TranscribeEndpoint,
		Model:          cfg.TranscribeModel,
		MaxUploadBytes: cfg.MaxUploadBytes,
	})

	notifier := &cliNotifier{done: make(chan batch.Summary, 1)}
	processor := batch.NewProcessor(batch.Options{
		Resolver:    resolver,
		Fetcher:     downloader,
		Transcriber: transcriber,
		Credentials: creds,
		Notifier:    notifier,
		JobDelay:    time.Duration(cfg.JobDelayMillis) * time.Millisecond,
	})

	snap, err := processor.StartBatch(urls)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("processing %d video(s)...\n", snap.TotalCount)

	summary := <-notifier.done
	fmt.Printf("\nbatch done: %d/%d completed\n", summary.CompletedCount, summary.TotalCount)

	results := processor.CompletedResults()
	if len(results) == 0 {
		os.Exit(1)
	}

	exportSvc, err := export.New(cfg, nil)
	if err != nil {
		log.Fatal(err)
	}
	if err := exportSvc.WriteAll(context.Background(), results, *out); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("exports written to %s\n", *out)

	if *archive {
		data, err := exportSvc.Archive(results)
		if err != nil {
			log.Fatal(err)
		}
		path := filepath.Join(*out, "transcripts.zip")
		if err := os.WriteFile(path, data, 0o644); err != nil {
			log.Fatal(err)
		}
		fmt.Printf("archive written to %s\n", path)
	}

	if *copyJob > 0 {
		res, err := processor.JobResult(*copyJob - 1)
		if err != nil {
			log.Fatalf("copy: %v", err)
		}
		if err := clipboard.WriteAll(res.Text); err != nil {
			log.Fatalf("copy: %v", err)
		}
		fmt.Printf("job %d transcript copied to clipboard\n", *copyJob)
	}
}

func collectURLs(inputPath string, args []string) ([]string, error) {
	if inputPath == "" {
		if len(args) == 0 {
			return nil, fmt.Errorf("no input: pass -input FILE or URLs as arguments")
		}
		return args, nil
	}
	f, err := os.Open(inputPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var urls []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		urls = append(urls, scanner.Text())
	}
	return urls, scanner.Err()
}
