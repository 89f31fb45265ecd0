package jobs

import (
	"archive/zip"
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SoubhikGhosh/neev-cheques-clearing/constants"
	"github.com/SoubhikGhosh/neev-cheques-clearing/internal/batch"
	"github.com/SoubhikGhosh/neev-cheques-clearing/internal/common"
	"github.com/SoubhikGhosh/neev-cheques-clearing/internal/extract"
	"github.com/SoubhikGhosh/neev-cheques-clearing/internal/fields"
	"github.com/SoubhikGhosh/neev-cheques-clearing/internal/llm"
	"github.com/SoubhikGhosh/neev-cheques-clearing/internal/report"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func buildZip(t *testing.T, entries map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range entries {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

// imageFromRequest recovers the raw image bytes out of one
// chat-completions request body.
func imageFromRequest(t *testing.T, r *http.Request) []byte {
	t.Helper()
	var body struct {
		Messages []struct {
			Content []struct {
				Type     string `json:"type"`
				ImageURL *struct {
					URL string `json:"url"`
				} `json:"image_url"`
			} `json:"content"`
		} `json:"messages"`
	}
	require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
	for _, m := range body.Messages {
		for _, c := range m.Content {
			if c.Type == "image_url" && c.ImageURL != nil {
				_, b64, ok := strings.Cut(c.ImageURL.URL, "base64,")
				require.True(t, ok)
				raw, err := base64.StdEncoding.DecodeString(b64)
				require.NoError(t, err)
				return raw
			}
		}
	}
	t.Fatal("request carried no image part")
	return nil
}

func chatEnvelope(t *testing.T, content string) []byte {
	t.Helper()
	envelope, err := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content, "role": "assistant"}},
		},
	})
	require.NoError(t, err)
	return envelope
}

func newOrchestratorAgainst(t *testing.T, endpointURL, outputDir string, limit int) *Orchestrator {
	t.Helper()
	policy := llm.NewBackoffPolicy(5, time.Millisecond, 2)
	client := llm.NewClient(llm.Config{
		URL:    endpointURL,
		APIKey: "test-key",
		Model:  "test-model",
	}, policy, testLogger())
	extractor := extract.NewExtractor(client, fields.Cheque, 3, time.Millisecond, testLogger())
	executor := batch.NewExecutor(limit, testLogger())
	return NewOrchestrator(NewRegistry(), executor, extractor, fields.Cheque, outputDir, testLogger())
}

func waitTerminal(t *testing.T, o *Orchestrator, jobID string) Snapshot {
	t.Helper()
	deadline := time.Now().Add(15 * time.Second)
	for time.Now().Before(deadline) {
		s, err := o.Snapshot(jobID)
		require.NoError(t, err)
		if s.Status.Terminal() {
			return s
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("job never reached a terminal state")
	return Snapshot{}
}

// The end-to-end scenario: five documents at concurrency two, one
// transient 503, one persistently malformed reply.
func TestOrchestrator_EndToEnd(t *testing.T) {
	validPayload := `{"extracted_fields": [{"field_name": "bank_name", "value": "HDFC BANK LTD", "confidence": 0.97}]}`

	var (
		mu        sync.Mutex
		doc3Calls int
		inFlight  atomic.Int64
		peak      atomic.Int64
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)

		switch string(imageFromRequest(t, r)) {
		case "img3":
			mu.Lock()
			doc3Calls++
			first := doc3Calls == 1
			mu.Unlock()
			if first {
				http.Error(w, "temporarily unavailable", http.StatusServiceUnavailable)
				return
			}
			_, _ = w.Write(chatEnvelope(t, validPayload))
		case "img5":
			_, _ = w.Write(chatEnvelope(t, "I'm sorry, I couldn't produce structured output for this image."))
		default:
			_, _ = w.Write(chatEnvelope(t, validPayload))
		}
	}))
	defer srv.Close()

	archive := buildZip(t, map[string][]byte{
		"batch1/cheque_1.jpg": []byte("img1"),
		"batch1/cheque_2.jpg": []byte("img2"),
		"batch1/cheque_3.jpg": []byte("img3"),
		"batch2/cheque_4.jpg": []byte("img4"),
		"batch2/cheque_5.jpg": []byte("img5"),
	})

	outputDir := t.TempDir()
	o := newOrchestratorAgainst(t, srv.URL, outputDir, 2)

	job := o.Submit([][]byte{archive}, []string{"cheques.zip"})
	s := waitTerminal(t, o, job.ID())

	assert.Equal(t, constants.JobStatusCompleted, s.Status)
	assert.Equal(t, 5, s.TotalUnits)
	assert.Equal(t, 5, s.CompletedUnits)
	assert.InDelta(t, 100.0, s.ProgressPercentage, 1e-9)
	require.NotNil(t, s.EndTime)

	assert.LessOrEqual(t, peak.Load(), int64(2), "endpoint saw more concurrent requests than the limit")

	path, err := o.OutputPath(job.ID())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(outputDir, "cheque_extraction_results_"+job.ID()+".csv"), path)

	table, err := report.ReadCSV(path)
	require.NoError(t, err)
	require.Len(t, table.Rows, 5)
	assert.Contains(t, table.Columns, "error")

	errorsByFile := map[string]string{}
	for _, row := range table.Rows {
		errorsByFile[row["filepath"]] = row["error"]
	}
	assert.Empty(t, errorsByFile["cheque_3.jpg"], "doc 3 must succeed on its second attempt")
	assert.Contains(t, errorsByFile["cheque_5.jpg"], "malformed model output",
		"doc 5 must surface as an error row, not a failed job")
	assert.Empty(t, errorsByFile["cheque_1.jpg"])

	mu.Lock()
	assert.Equal(t, 2, doc3Calls)
	mu.Unlock()
}

func TestOrchestrator_CorruptArchiveFailsJob(t *testing.T) {
	o := newOrchestratorAgainst(t, "http://127.0.0.1:0", t.TempDir(), 2)

	job := o.Submit([][]byte{[]byte("not a zip")}, []string{"bad.zip"})
	s := waitTerminal(t, o, job.ID())

	assert.Equal(t, constants.JobStatusFailed, s.Status)
	assert.Contains(t, s.Error, "unpack archives")
	assert.Empty(t, s.OutputPath)

	_, err := o.OutputPath(job.ID())
	assert.True(t, errors.Is(err, common.ErrNotReady))
}

func TestOrchestrator_EmptyArchiveFailsJob(t *testing.T) {
	archive := buildZip(t, map[string][]byte{"readme.txt": []byte("no images here")})
	o := newOrchestratorAgainst(t, "http://127.0.0.1:0", t.TempDir(), 2)

	job := o.Submit([][]byte{archive}, []string{"empty.zip"})
	s := waitTerminal(t, o, job.ID())

	assert.Equal(t, constants.JobStatusFailed, s.Status)
	assert.Contains(t, s.Error, "no processable cheque images")
}

func TestOrchestrator_UnknownJob(t *testing.T) {
	o := newOrchestratorAgainst(t, "http://127.0.0.1:0", t.TempDir(), 2)

	_, err := o.Snapshot("no-such-job")
	assert.True(t, errors.Is(err, common.ErrNotFound))

	_, err = o.OutputPath("no-such-job")
	assert.True(t, errors.Is(err, common.ErrNotFound))

	assert.Error(t, o.Cancel("no-such-job"))
}

func TestJobStateMachine(t *testing.T) {
	r := NewRegistry()
	job := r.Create([]string{"a.zip"}, nil)

	s := job.Snapshot()
	assert.Equal(t, constants.JobStatusQueued, s.Status)
	assert.Zero(t, s.ProgressPercentage)
	assert.Nil(t, s.EndTime)

	job.begin(4)
	job.unitDone()
	job.unitDone()
	s = job.Snapshot()
	assert.Equal(t, constants.JobStatusProcessing, s.Status)
	assert.Equal(t, 4, s.TotalUnits)
	assert.Equal(t, 2, s.CompletedUnits)
	assert.InDelta(t, 50.0, s.ProgressPercentage, 1e-9)

	job.complete("/tmp/out.csv")
	s = job.Snapshot()
	assert.Equal(t, constants.JobStatusCompleted, s.Status)
	require.NotNil(t, s.EndTime)

	// Terminal states are absorbing.
	job.fail("too late")
	job.begin(99)
	s = job.Snapshot()
	assert.Equal(t, constants.JobStatusCompleted, s.Status)
	assert.Empty(t, s.Error)
	assert.Equal(t, 4, s.TotalUnits)
}

func TestRegistry_CreateGetRemove(t *testing.T) {
	r := NewRegistry()
	job := r.Create([]string{"x.zip"}, nil)

	got, err := r.Get(job.ID())
	require.NoError(t, err)
	assert.Equal(t, job, got)
	assert.Equal(t, 1, r.Len())

	r.Remove(job.ID())
	assert.Equal(t, 0, r.Len())
	_, err = r.Get(job.ID())
	assert.True(t, errors.Is(err, common.ErrNotFound))
}
