package review

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/craigmmills/enviroagent/internal/article"
	"github.com/craigmmills/enviroagent/internal/config"
	"github.com/craigmmills/enviroagent/internal/store"
)

func newTestServer(t *testing.T, batch []article.Scored) (*httptest.Server, *store.Store, string) {
	t.Helper()
	base := t.TempDir()
	st := store.New(config.DataConfig{
		RawDir:       filepath.Join(base, "raw"),
		ScoredDir:    filepath.Join(base, "scored"),
		SummaryDir:   filepath.Join(base, "summary"),
		Instructions: filepath.Join(base, "config", "agent_prompt.txt"),
	})

	batchPath := st.ScoredPath(time.Now())
	if err := st.SaveScored(batchPath, batch); err != nil {
		t.Fatalf("Failed to seed batch: %v", err)
	}

	srv := NewServer("127.0.0.1:0", batchPath, st)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, st, batchPath
}

func sampleBatch(n int) []article.Scored {
	batch := make([]article.Scored, 0, n)
	for i := 0; i < n; i++ {
		batch = append(batch, article.Scored{
			Raw: article.Raw{
				Title: "article " + string(rune('a'+i)),
				Name:  "place",
				HTML:  `<a href="http://news.test/story">x</a>`,
			},
			Verdict: article.Verdict{TweetWorthiness: 5 + i, Summary: "verdict " + string(rune('a'+i))},
		})
	}
	return batch
}

func get(t *testing.T, client *http.Client, url string) (string, string) {
	t.Helper()
	resp, err := client.Get(url)
	if err != nil {
		t.Fatalf("GET %s failed: %v", url, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return string(body), resp.Request.URL.Path
}

func postForm(t *testing.T, client *http.Client, url string, form url.Values) string {
	t.Helper()
	resp, err := client.PostForm(url, form)
	if err != nil {
		t.Fatalf("POST %s failed: %v", url, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.Request.URL.Path
}

func TestIndexRedirectsToFirstArticle(t *testing.T) {
	ts, _, _ := newTestServer(t, sampleBatch(2))
	body, path := get(t, ts.Client(), ts.URL+"/")
	if path != "/article/0" {
		t.Errorf("Expected redirect to /article/0, landed on %s", path)
	}
	if !strings.Contains(body, "article a") {
		t.Errorf("Expected first article rendered, got %q", body)
	}
}

func TestAgreeCopiesVerdict(t *testing.T) {
	ts, st, batchPath := newTestServer(t, sampleBatch(2))

	landed := postForm(t, ts.Client(), ts.URL+"/article/0", url.Values{"action": {"agree"}})
	if landed != "/article/1" {
		t.Errorf("Expected to advance to /article/1, landed on %s", landed)
	}

	batch, err := st.LoadScored(batchPath)
	if err != nil {
		t.Fatal(err)
	}
	if !batch[0].Reviewed() {
		t.Fatal("Record 0 should be reviewed after agree")
	}
	if *batch[0].UserScore != batch[0].TweetWorthiness {
		t.Errorf("Agree must copy the score: got %d, want %d", *batch[0].UserScore, batch[0].TweetWorthiness)
	}
	if *batch[0].UserReasoning != batch[0].Summary {
		t.Errorf("Agree must copy the summary: got %q", *batch[0].UserReasoning)
	}
	if batch[1].Reviewed() {
		t.Error("Record 1 must be untouched")
	}
}

func TestOverridePersistsOperatorDecision(t *testing.T) {
	ts, st, batchPath := newTestServer(t, sampleBatch(1))

	postForm(t, ts.Client(), ts.URL+"/article/0", url.Values{
		"action":         {"override"},
		"user_score":     {"2"},
		"user_reasoning": {"not newsworthy at all"},
	})

	batch, _ := st.LoadScored(batchPath)
	if *batch[0].UserScore != 2 {
		t.Errorf("Expected override score 2, got %d", *batch[0].UserScore)
	}
	if *batch[0].UserReasoning != "not newsworthy at all" {
		t.Errorf("Expected override reasoning, got %q", *batch[0].UserReasoning)
	}
}

func TestReviewProgression(t *testing.T) {
	ts, st, batchPath := newTestServer(t, sampleBatch(3))
	client := ts.Client()

	for i := 0; i < 3; i++ {
		landed := postForm(t, client, ts.URL+"/article/"+string(rune('0'+i)), url.Values{"action": {"agree"}})
		want := "/article/" + string(rune('1'+i))
		if i == 2 {
			// Advancing past the last record lands on the completion page.
			want = "/completed"
		}
		if landed != want {
			t.Errorf("Step %d: landed on %s, want %s", i, landed, want)
		}
	}

	// A further visit past the end also reports completion.
	body, path := get(t, client, ts.URL+"/article/3")
	if path != "/completed" {
		t.Errorf("Expected /completed, landed on %s", path)
	}
	if !strings.Contains(body, "Review complete") {
		t.Errorf("Expected completion page, got %q", body)
	}

	batch, _ := st.LoadScored(batchPath)
	for i, rec := range batch {
		if !rec.Reviewed() {
			t.Errorf("Record %d not reviewed after full pass", i)
		}
	}
}

func TestRereviewOverwrites(t *testing.T) {
	ts, st, batchPath := newTestServer(t, sampleBatch(1))
	client := ts.Client()

	postForm(t, client, ts.URL+"/article/0", url.Values{"action": {"agree"}})
	postForm(t, client, ts.URL+"/article/0", url.Values{
		"action":         {"override"},
		"user_score":     {"1"},
		"user_reasoning": {"changed my mind"},
	})

	batch, _ := st.LoadScored(batchPath)
	if *batch[0].UserScore != 1 || *batch[0].UserReasoning != "changed my mind" {
		t.Errorf("Second review must overwrite the first: %+v", batch[0])
	}
}

func TestInvalidOverrideScoreDoesNotPersist(t *testing.T) {
	ts, st, batchPath := newTestServer(t, sampleBatch(1))

	resp, err := ts.Client().PostForm(ts.URL+"/article/0", url.Values{
		"action":         {"override"},
		"user_score":     {"not a number"},
		"user_reasoning": {"whatever"},
	})
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if !strings.Contains(string(body), "Score must be an integer.") {
		t.Error("Expected validation message in re-rendered form")
	}
	batch, _ := st.LoadScored(batchPath)
	if batch[0].Reviewed() {
		t.Error("Invalid submission must not persist a review")
	}
}

func TestProgressExcludesCurrentRecord(t *testing.T) {
	ts, _, _ := newTestServer(t, sampleBatch(3))
	client := ts.Client()

	body, _ := get(t, client, ts.URL+"/article/0")
	if !strings.Contains(body, "Progress: 0%") {
		t.Errorf("Expected 0%% progress at index 0, got %q", body)
	}

	postForm(t, client, ts.URL+"/article/0", url.Values{"action": {"agree"}})
	body, _ = get(t, client, ts.URL+"/article/1")
	if !strings.Contains(body, "Progress: 33%") {
		t.Errorf("Expected 33%% progress at index 1, got %q", body)
	}
}

func TestBadIndexIsNotFound(t *testing.T) {
	ts, _, _ := newTestServer(t, sampleBatch(1))
	resp, err := ts.Client().Get(ts.URL + "/article/banana")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 for non-numeric index, got %d", resp.StatusCode)
	}
}
