// Package transcribe is the client for the external speech-to-text service.
// The whole fetched media payload is posted directly; any audio extraction or
// compression is the provider's concern.
package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"reelscribe/internal/core/subtitle"
	"reelscribe/internal/logger"
)

// Transcript is the normalized provider response.
type Transcript struct {
	Text     string             `json:"text"`
	Segments []subtitle.Segment `json:"segments"`
	Language string             `json:"language"`
}

type Options struct {
	Endpoint       string
	Model          string
	MaxUploadBytes int64
	HTTPClient     *http.Client
}

type Service struct {
	log      *logger.Logger
	client   *http.Client
	endpoint string
	model    string
	maxBytes int64
}

func New(opts Options) *Service {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Minute}
	}
	return &Service{
		log:      logger.New("TranscribeService"),
		client:   client,
		endpoint: opts.Endpoint,
		model:    opts.Model,
		maxBytes: opts.MaxUploadBytes,
	}
}

// verboseResponse mirrors the provider's verbose_json shape.
type verboseResponse struct {
	Text     string             `json:"text"`
	Language string             `json:"language"`
	Segments []subtitle.Segment `json:"segments"`
}

// Transcribe uploads media bytes and returns the recognized transcript.
// Failures are classified; see KindOf.
func (s *Service) Transcribe(ctx context.Context, media []byte, credential string) (*Transcript, error) {
	if s.maxBytes > 0 && int64(len(media)) > s.maxBytes {
		return nil, NewError(KindPayloadTooLarge, "media is %d bytes, provider limit is %d", len(media), s.maxBytes)
	}

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile("file", "video.mp4")
	if err != nil {
		return nil, wrapError(KindUnknown, err, "build upload form")
	}
	if _, err := part.Write(media); err != nil {
		return nil, wrapError(KindUnknown, err, "build upload form")
	}
	_ = mw.WriteField("model", s.model)
	_ = mw.WriteField("response_format", "verbose_json")
	if err := mw.Close(); err != nil {
		return nil, wrapError(KindUnknown, err, "build upload form")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, body)
	if err != nil {
		return nil, wrapError(KindUnknown, err, "build request")
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+credential)

	s.log.Debug().Str("endpoint", s.endpoint).Int("bytes", len(media)).Msg("transcription upload")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, wrapError(KindUnavailable, err, "transcription request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(resp)
	}

	var vr verboseResponse
	if err := json.NewDecoder(resp.Body).Decode(&vr); err != nil {
		return nil, wrapError(KindUnknown, err, "malformed provider response")
	}
	return &Transcript{Text: vr.Text, Segments: vr.Segments, Language: vr.Language}, nil
}

func classifyStatus(resp *http.Response) *Error {
	// Provider error bodies are {"error": {"message": ...}}; best effort only.
	detail := readErrorDetail(resp.Body)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return NewError(KindInvalidCredential, "API credential was rejected (status %d)", resp.StatusCode)
	case resp.StatusCode == http.StatusRequestEntityTooLarge:
		return NewError(KindPayloadTooLarge, "media exceeds the provider size limit")
	case resp.StatusCode == http.StatusTooManyRequests:
		return NewError(KindRateLimited, "provider rate limit hit, back off before retrying")
	case resp.StatusCode >= 500:
		return NewError(KindUnavailable, "provider unavailable (status %d)", resp.StatusCode)
	}
	if detail != "" {
		return NewError(KindUnknown, "transcription failed (status %d): %s", resp.StatusCode, detail)
	}
	return NewError(KindUnknown, "transcription failed (status %d)", resp.StatusCode)
}

func readErrorDetail(r io.Reader) string {
	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	b, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil {
		return ""
	}
	if err := json.Unmarshal(b, &payload); err != nil {
		return ""
	}
	return payload.Error.Message
}
