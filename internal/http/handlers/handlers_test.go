package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"carstudio/internal/batch"
	"carstudio/internal/http/handlers"
	"carstudio/internal/http/httpapi"
	"carstudio/internal/infra"
	"carstudio/internal/providers/replicate"
	"carstudio/internal/registry"
	"carstudio/internal/storage"
)

// scriptedGenerator drives handler tests without a real provider.
type scriptedGenerator struct {
	model    string
	generate func(req replicate.GenerateRequest) ([]string, error)
}

func (g *scriptedGenerator) Model() string { return g.model }

func (g *scriptedGenerator) Generate(ctx context.Context, req replicate.GenerateRequest) ([]string, error) {
	if g.generate != nil {
		return g.generate(req)
	}
	return []string{"https://cdn.test/out.png"}, nil
}

func (g *scriptedGenerator) Fetch(ctx context.Context, url string) ([]byte, error) {
	return []byte("image-bytes"), nil
}

type apiEnv struct {
	srv     *httptest.Server
	batches *registry.MemoryBatchRegistry
	jobs    *registry.MemoryJobRegistry
}

func newAPI(t *testing.T, gen replicate.Generator) *apiEnv {
	t.Helper()
	store, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	logger := zerolog.Nop()
	batches := registry.NewMemoryBatchRegistry()
	jobs := registry.NewMemoryJobRegistry()
	queue := batch.NewQueue(2, 16, time.Minute, logger)
	archiver := batch.NewArchiver(store, "/downloads", logger)
	proc := batch.NewProcessor(batches, jobs, gen, store, queue, archiver, nil, logger)

	ctx, cancel := context.WithCancel(context.Background())
	queue.Start(ctx)
	t.Cleanup(cancel)

	app := handlers.NewApp(logger, proc, batches, jobs)
	cfg := &infra.Config{RateLimitPerMin: 10000}
	srv := httptest.NewServer(httpapi.NewRouter(app, cfg, store.DownloadsPath()))
	t.Cleanup(srv.Close)

	return &apiEnv{srv: srv, batches: batches, jobs: jobs}
}

func csvUpload(t *testing.T, dataRows int) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "cars.csv")
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	fmt.Fprintln(fw, "make,model,year,background,aspect_ratio")
	for i := 0; i < dataRows; i++ {
		fmt.Fprintf(fw, "Toyota,Camry,%d,white,16:9\n", 2000+i)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	return &body, mw.FormDataContentType()
}

func postCSV(t *testing.T, env *apiEnv, dataRows int) *http.Response {
	t.Helper()
	body, contentType := csvUpload(t, dataRows)
	resp, err := http.Post(env.srv.URL+"/car-batch", contentType, body)
	if err != nil {
		t.Fatalf("POST /car-batch: %v", err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func waitForStatus(t *testing.T, env *apiEnv, jobID, want string) map[string]any {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	var last map[string]any
	for time.Now().Before(deadline) {
		resp, err := http.Get(env.srv.URL + "/batch/" + jobID)
		if err != nil {
			t.Fatalf("GET /batch/%s: %v", jobID, err)
		}
		last = decodeBody(t, resp)
		if last["status"] == want && last["zip_url"] != nil {
			return last
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s never reached %s: last=%v", jobID, want, last)
	return nil
}

func TestCarBatchEndToEnd(t *testing.T) {
	env := newAPI(t, &scriptedGenerator{model: "model-v1"})

	resp := postCSV(t, env, 3)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status mismatch: got %d want 202", resp.StatusCode)
	}
	jobID, _ := decodeBody(t, resp)["job_id"].(string)
	if jobID == "" {
		t.Fatal("job_id missing from response")
	}

	status := waitForStatus(t, env, jobID, "completed")
	if status["total"].(float64) != 3 || status["done"].(float64) != 3 || status["failed"].(float64) != 0 {
		t.Fatalf("status payload mismatch: %v", status)
	}
	if status["percent"].(float64) != 100 {
		t.Fatalf("percent mismatch: %v", status["percent"])
	}

	zipURL, _ := status["zip_url"].(string)
	dl, err := http.Get(env.srv.URL + zipURL)
	if err != nil {
		t.Fatalf("GET %s: %v", zipURL, err)
	}
	defer dl.Body.Close()
	if dl.StatusCode != http.StatusOK {
		t.Fatalf("download status mismatch: %d", dl.StatusCode)
	}
	if cc := dl.Header.Get("Cache-Control"); !strings.Contains(cc, "max-age=86400") {
		t.Fatalf("Cache-Control mismatch: %q", cc)
	}
}

func TestCarBatchRejectsOversizedCSV(t *testing.T) {
	env := newAPI(t, &scriptedGenerator{model: "model-v1"})

	resp := postCSV(t, env, 51)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status mismatch: got %d want 400", resp.StatusCode)
	}
	resp.Body.Close()
	if env.batches.Len() != 0 {
		t.Fatalf("no job should be created on rejection: len=%d", env.batches.Len())
	}
}

func TestCarBatchRejectsTooFewRows(t *testing.T) {
	env := newAPI(t, &scriptedGenerator{model: "model-v1"})

	resp := postCSV(t, env, 1)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status mismatch: got %d want 400", resp.StatusCode)
	}
	resp.Body.Close()
	if env.batches.Len() != 0 {
		t.Fatalf("no job should be created on rejection: len=%d", env.batches.Len())
	}
}

func TestCarBatchRequiresFile(t *testing.T) {
	env := newAPI(t, &scriptedGenerator{model: "model-v1"})

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	_ = mw.WriteField("note", "no file here")
	_ = mw.Close()

	resp, err := http.Post(env.srv.URL+"/car-batch", mw.FormDataContentType(), &body)
	if err != nil {
		t.Fatalf("POST /car-batch: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status mismatch: got %d want 400", resp.StatusCode)
	}
}

func TestBatchStatusUnknownJob(t *testing.T) {
	env := newAPI(t, &scriptedGenerator{model: "model-v1"})

	resp, err := http.Get(env.srv.URL + "/batch/nope")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status mismatch: got %d want 404", resp.StatusCode)
	}
}

func TestBatchStopContract(t *testing.T) {
	env := newAPI(t, &scriptedGenerator{model: "model-v1"})

	resp, err := http.Post(env.srv.URL+"/batch/nope/stop", "application/json", nil)
	if err != nil {
		t.Fatalf("POST stop: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown job: got %d want 404", resp.StatusCode)
	}

	create := postCSV(t, env, 2)
	jobID, _ := decodeBody(t, create)["job_id"].(string)
	waitForStatus(t, env, jobID, "completed")

	resp, err = http.Post(env.srv.URL+"/batch/"+jobID+"/stop", "application/json", nil)
	if err != nil {
		t.Fatalf("POST stop: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("terminal job stop: got %d want 400", resp.StatusCode)
	}
}

func TestImagesGenerateLifecycle(t *testing.T) {
	env := newAPI(t, &scriptedGenerator{model: "model-v1"})

	payload := strings.NewReader(`{"make":"Mazda","model":"MX-5","aspect_ratio":"16:9"}`)
	resp, err := http.Post(env.srv.URL+"/images/generate", "application/json", payload)
	if err != nil {
		t.Fatalf("POST /images/generate: %v", err)
	}
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status mismatch: got %d want 202", resp.StatusCode)
	}
	jobID, _ := decodeBody(t, resp)["job_id"].(string)
	if jobID == "" {
		t.Fatal("job_id missing")
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		r, err := http.Get(env.srv.URL + "/jobs/" + jobID)
		if err != nil {
			t.Fatalf("GET /jobs/%s: %v", jobID, err)
		}
		body := decodeBody(t, r)
		if body["status"] == "done" {
			if body["result"] == nil {
				t.Fatalf("done job missing result: %v", body)
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("image job never finished")
}
