package search

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"delegate/api/internal/snapshot"
)

func proposals() []snapshot.Proposal {
	return []snapshot.Proposal{
		{ID: "0xa1", Title: "Treasury diversification", Body: "Swap part of the treasury into stablecoins.", State: snapshot.StateActive, End: 300},
		{ID: "0xa2", Title: "Grants council", Body: "Fund the grants council for another season.", State: snapshot.StateClosed, End: 200},
		{ID: "0xa3", Title: "Risk parameters", Body: "Lower the treasury exposure to volatile assets.", State: snapshot.StateClosed, End: 100},
	}
}

func TestFilterWithoutMeiliMatchesTitleAndBody(t *testing.T) {
	s := NewService(nil, zerolog.Nop())
	got := s.Filter(context.Background(), "aavedao.eth", proposals(), "TREASURY")

	require.Len(t, got, 2)
	assert.Equal(t, "0xa1", got[0].ID)
	assert.Equal(t, "0xa3", got[1].ID)
	assert.Equal(t, EngineMemory, s.Engine())
}

func TestFilterBlankTermReturnsInput(t *testing.T) {
	s := NewService(nil, zerolog.Nop())
	ps := proposals()
	assert.Equal(t, ps, s.Filter(context.Background(), "aavedao.eth", ps, "  "))
}

func TestSearchMemoryFallback(t *testing.T) {
	s := NewService(nil, zerolog.Nop())
	s.Index("aavedao.eth", proposals())
	s.Index("lido-snapshot.eth", []snapshot.Proposal{
		{ID: "0xb1", Title: "Treasury report", Body: "Quarterly numbers.", State: snapshot.StateActive, End: 250},
	})

	resp := s.Search(context.Background(), Query{Text: "treasury"})
	assert.Equal(t, EngineMemory, resp.Engine)
	assert.Equal(t, 3, resp.Total)
	ids := make([]string, 0, len(resp.Results))
	for _, r := range resp.Results {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"0xa1", "0xb1", "0xa3"}, ids)

	resp = s.Search(context.Background(), Query{Text: "treasury", Space: "aavedao.eth", State: snapshot.StateClosed})
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "0xa3", resp.Results[0].ID)
	assert.Equal(t, "aavedao.eth", resp.Results[0].Space)

	resp = s.Search(context.Background(), Query{Text: "treasury", Limit: 1})
	assert.Equal(t, 3, resp.Total)
	assert.Len(t, resp.Results, 1)

	resp = s.Search(context.Background(), Query{Text: "nothing matches"})
	assert.NotNil(t, resp.Results)
	assert.Empty(t, resp.Results)
}

func TestSnippetCentersOnTerm(t *testing.T) {
	body := strings.Repeat("a", 200) + " treasury " + strings.Repeat("b", 200)
	got := snippet(body, "treasury")
	assert.Contains(t, got, "treasury")
	assert.Less(t, len(got), len(body))
}

type fakeMeili struct {
	mu        sync.Mutex
	documents [][]ProposalRecord
	queries   []map[string]any
	hits      []map[string]any
}

func (f *fakeMeili) handler(t *testing.T) http.Handler {
	task := `{"taskUid":1,"indexUid":"delegate_proposals","status":"enqueued","type":"indexCreation","enqueuedAt":"2024-05-01T12:00:00Z"}`
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		body, _ := io.ReadAll(r.Body)
		switch {
		case r.URL.Path == "/health":
			_, _ = w.Write([]byte(`{"status":"available"}`))
		case r.URL.Path == "/multi-search":
			var req struct {
				Queries []map[string]any `json:"queries"`
			}
			require.NoError(t, json.Unmarshal(body, &req))
			f.mu.Lock()
			f.queries = append(f.queries, req.Queries...)
			hits := f.hits
			f.mu.Unlock()
			_ = json.NewEncoder(w).Encode(map[string]any{
				"results": []map[string]any{{
					"indexUid":           idxProposals,
					"hits":               hits,
					"estimatedTotalHits": len(hits),
					"query":              "",
					"limit":              20,
					"offset":             0,
					"processingTimeMs":   1,
				}},
			})
		case r.URL.Path == "/indexes/"+idxProposals+"/documents" && r.Method == http.MethodPost:
			var docs []ProposalRecord
			require.NoError(t, json.Unmarshal(body, &docs))
			f.mu.Lock()
			f.documents = append(f.documents, docs)
			f.mu.Unlock()
			w.WriteHeader(http.StatusAccepted)
			_, _ = w.Write([]byte(task))
		default:
			w.WriteHeader(http.StatusAccepted)
			_, _ = w.Write([]byte(task))
		}
	})
}

func TestMeiliBackedFilterAndIndex(t *testing.T) {
	fake := &fakeMeili{hits: []map[string]any{
		{"id": "0xa3", "title": "Risk parameters", "space": "aavedao.eth", "state": "closed", "end": 100},
		{"id": "0xa1", "title": "Treasury diversification", "space": "aavedao.eth", "state": "active", "end": 300},
	}}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	m := NewMeili(srv.URL, "", zerolog.Nop())
	defer m.Close()
	require.True(t, m.Healthy())

	s := NewService(m, zerolog.Nop())
	assert.Equal(t, EngineMeili, s.Engine())

	got := s.Filter(context.Background(), "aavedao.eth", proposals(), "treasury")
	require.Len(t, got, 2)
	assert.Equal(t, "0xa1", got[0].ID)
	assert.Equal(t, "0xa3", got[1].ID)

	fake.mu.Lock()
	require.Len(t, fake.queries, 1)
	assert.Equal(t, "treasury", fake.queries[0]["q"])
	assert.Equal(t, idxProposals, fake.queries[0]["indexUid"])
	fake.mu.Unlock()

	resp := s.Search(context.Background(), Query{Text: "treasury"})
	assert.Equal(t, EngineMeili, resp.Engine)
	assert.Equal(t, 2, resp.Total)
	assert.Equal(t, snapshot.StateClosed, resp.Results[0].State)
	assert.Equal(t, int64(100), resp.Results[0].End)

	s.Index("aavedao.eth", proposals())
	require.Eventually(t, func() bool {
		fake.mu.Lock()
		defer fake.mu.Unlock()
		return len(fake.documents) == 1 && len(fake.documents[0]) == 3
	}, time.Second, 10*time.Millisecond)
}

func TestMeiliHitWithInvalidEndIsLogged(t *testing.T) {
	fake := &fakeMeili{hits: []map[string]any{
		{"id": "0xa9", "title": "Odd record", "space": "aavedao.eth", "state": "active", "end": "soon"},
	}}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	var logs bytes.Buffer
	m := NewMeili(srv.URL, "", zerolog.New(&logs))
	defer m.Close()

	results, total, err := m.Search(Query{Text: "odd"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, results, 1)
	assert.Equal(t, "0xa9", results[0].ID)
	assert.Zero(t, results[0].End)
	assert.Contains(t, logs.String(), "invalid end time")
}
