// Package archive ships closed-ticket transcripts to an external archive
// service, best-effort: export failures are logged and never surface to the
// close path.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/guildkit/ticketd/internal/model"
)

type Exporter struct {
	baseURL    string
	httpClient *http.Client
}

// NewExporter returns an exporter. With an empty baseURL every call is a
// no-op.
func NewExporter(baseURL string) *Exporter {
	return &Exporter{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// ExportTranscript POSTs the transcript to the archive service.
func (e *Exporter) ExportTranscript(ctx context.Context, t *model.Transcript) {
	if e.baseURL == "" {
		return
	}
	body, err := json.Marshal(t)
	if err != nil {
		log.Printf("archive: marshal transcript %s: %v", t.ThreadID, err)
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/archive/transcripts", bytes.NewReader(body))
	if err != nil {
		log.Printf("archive: new request: %v", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := e.httpClient.Do(req)
	if err != nil {
		log.Printf("archive: request: %v", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		log.Printf("archive: status %d for transcript %s", resp.StatusCode, t.ThreadID)
	}
}

// ExportTranscriptAsync exports in a goroutine with its own timeout so the
// close path never waits on the archive service.
func (e *Exporter) ExportTranscriptAsync(t *model.Transcript) {
	if e.baseURL == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		e.ExportTranscript(ctx, t)
	}()
}
