package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"menuqa/pricevalidator/services/jobs"
)

func waitForStatus(t *testing.T, srv *httptest.Server, id string, want jobs.Status) jobs.Job {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case <-deadline:
			t.Fatalf("job %s never reached status %s", id, want)
		default:
		}

		resp, err := http.Get(srv.URL + "/api/runs/" + id)
		require.NoError(t, err)
		var job jobs.Job
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&job))
		resp.Body.Close()

		if job.Status == want {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func startRun(t *testing.T, srv *httptest.Server, body string) string {
	t.Helper()
	resp, err := http.Post(srv.URL+"/api/runs", "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var created map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	require.NotEmpty(t, created["job_id"])
	return created["job_id"]
}

func TestServer_RunLifecycle(t *testing.T) {
	reportPath := filepath.Join(t.TempDir(), "results.xlsx")
	require.NoError(t, os.WriteFile(reportPath, []byte("workbook"), 0o644))

	var gotReq RunRequest
	run := func(ctx context.Context, req RunRequest, progress Progress) (RunResult, error) {
		gotReq = req
		progress.Step("Vancouver Downtown (BC) - opening browser")
		return RunResult{ReportPath: reportPath, Summary: "Pass: 2, Fail: 0, Rate: 100.0%"}, nil
	}

	srv := httptest.NewServer(NewServer(jobs.NewTracker(time.Hour), run).Router())
	defer srv.Close()

	id := startRun(t, srv, `{"province":"BC","cart_capture":true}`)
	job := waitForStatus(t, srv, id, jobs.StatusCompleted)

	assert.Equal(t, "BC", gotReq.Province)
	assert.True(t, gotReq.CartCapture)
	assert.Equal(t, 100, job.Progress)
	assert.Contains(t, job.Message, "100.0%")
	assert.Contains(t, job.Log, "Vancouver Downtown (BC) - opening browser")

	resp, err := http.Get(srv.URL + "/api/runs/" + id + "/report")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "spreadsheetml")
}

func TestServer_ProgressAdvancesDuringRun(t *testing.T) {
	release := make(chan struct{})
	run := func(ctx context.Context, req RunRequest, progress Progress) (RunResult, error) {
		progress.Percent(20)
		progress.Step("Collecting prices...")
		<-release
		return RunResult{Summary: "Pass: 1, Fail: 0, Rate: 100.0%"}, nil
	}

	srv := httptest.NewServer(NewServer(jobs.NewTracker(time.Hour), run).Router())
	defer srv.Close()

	id := startRun(t, srv, "")

	// A poll mid-run sees the milestone percentage, not 0.
	deadline := time.After(2 * time.Second)
	for {
		resp, err := http.Get(srv.URL + "/api/runs/" + id)
		require.NoError(t, err)
		var job jobs.Job
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&job))
		resp.Body.Close()

		if job.Progress == 20 {
			assert.Equal(t, jobs.StatusRunning, job.Status)
			break
		}
		select {
		case <-deadline:
			t.Fatalf("job %s progress stuck at %d", id, job.Progress)
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}

	close(release)
	job := waitForStatus(t, srv, id, jobs.StatusCompleted)
	assert.Equal(t, 100, job.Progress)
}

func TestServer_RunFailure(t *testing.T) {
	run := func(ctx context.Context, req RunRequest, progress Progress) (RunResult, error) {
		return RunResult{}, errors.New("no locations configured")
	}

	srv := httptest.NewServer(NewServer(jobs.NewTracker(time.Hour), run).Router())
	defer srv.Close()

	id := startRun(t, srv, "")
	job := waitForStatus(t, srv, id, jobs.StatusError)
	assert.Equal(t, "no locations configured", job.Error)

	// A failed run has no report to download.
	resp, err := http.Get(srv.URL + "/api/runs/" + id + "/report")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestServer_UnknownJob(t *testing.T) {
	run := func(ctx context.Context, req RunRequest, progress Progress) (RunResult, error) {
		return RunResult{}, nil
	}
	srv := httptest.NewServer(NewServer(jobs.NewTracker(time.Hour), run).Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/runs/nope")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_BadRequestBody(t *testing.T) {
	run := func(ctx context.Context, req RunRequest, progress Progress) (RunResult, error) {
		return RunResult{}, nil
	}
	srv := httptest.NewServer(NewServer(jobs.NewTracker(time.Hour), run).Router())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/runs", "application/json", bytes.NewBufferString("{not json"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_Index(t *testing.T) {
	run := func(ctx context.Context, req RunRequest, progress Progress) (RunResult, error) {
		return RunResult{}, nil
	}
	srv := httptest.NewServer(NewServer(jobs.NewTracker(time.Hour), run).Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
