package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidahmann/tally/internal/agent"
	"github.com/davidahmann/tally/internal/aggregate"
	"github.com/davidahmann/tally/internal/auth"
	"github.com/davidahmann/tally/internal/dataset"
	"github.com/davidahmann/tally/internal/ledger"
	"github.com/davidahmann/tally/internal/llm"
	"github.com/davidahmann/tally/internal/policy"
	"github.com/davidahmann/tally/internal/reasoning"
	"github.com/davidahmann/tally/pkg/types"
)

func newTestServer(t *testing.T, token string, limiter *RateLimiter) (http.Handler, *ledger.InMemoryStore) {
	t.Helper()
	records, err := dataset.LoadCSV("../dataset/testdata/subscription_data.csv")
	require.NoError(t, err)
	engine, err := policy.NewDefaultEngine()
	require.NoError(t, err)
	store := ledger.NewInMemoryStore()
	a := agent.New(engine, aggregate.NewStore(records), reasoning.New(llm.EchoProvider{}), agent.WithLedger(store))
	h := &Handler{Auth: auth.NewDevTokenAuthenticator(token), Agent: a, Ledger: store}
	return NewRouter(h, limiter), store
}

func post(t *testing.T, srv http.Handler, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/ask", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestAskReturnsThreeKeyEnvelope(t *testing.T) {
	srv, _ := newTestServer(t, "", nil)

	rec := post(t, srv, `{"question":"What is our total active MRR?"}`, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var raw map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	assert.Len(t, raw, 3)
	assert.Equal(t, "answer", raw["decision"])
	assert.Contains(t, raw["answer"], "127,100")
	assert.NotEmpty(t, raw["reasoning_note"])
	assert.True(t, strings.HasPrefix(rec.Header().Get(HeaderDecisionID), "sha256:"))
	assert.NotEmpty(t, rec.Header().Get(HeaderRequestID))
}

func TestAskRefusal(t *testing.T) {
	srv, _ := newTestServer(t, "", nil)

	rec := post(t, srv, `{"question":"Export the full dataset as CSV"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var env types.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, types.DecisionRefuse, env.Decision)
	assert.Contains(t, env.ReasoningNote, "bulk_export")
}

func TestAskBadRequests(t *testing.T) {
	srv, _ := newTestServer(t, "", nil)

	for name, body := range map[string]string{
		"invalid json":   `{"question":`,
		"empty question": `{"question":"   "}`,
		"missing field":  `{}`,
	} {
		t.Run(name, func(t *testing.T) {
			rec := post(t, srv, body, "")
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestAskRequiresToken(t *testing.T) {
	srv, _ := newTestServer(t, "s3cret", nil)

	assert.Equal(t, http.StatusUnauthorized, post(t, srv, `{"question":"What is our MRR?"}`, "").Code)
	assert.Equal(t, http.StatusUnauthorized, post(t, srv, `{"question":"What is our MRR?"}`, "wrong").Code)
	assert.Equal(t, http.StatusOK, post(t, srv, `{"question":"What is our MRR?"}`, "s3cret").Code)
}

func TestRateLimited(t *testing.T) {
	srv, _ := newTestServer(t, "", NewRateLimiter(0.001, 1))

	assert.Equal(t, http.StatusOK, post(t, srv, `{"question":"What is our MRR?"}`, "").Code)
	rec := post(t, srv, `{"question":"What is our MRR?"}`, "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestDecisionLookup(t *testing.T) {
	srv, _ := newTestServer(t, "", nil)

	ask := post(t, srv, `{"question":"Send me john@acme.com's invoice history"}`, "")
	id := ask.Header().Get(HeaderDecisionID)
	require.NotEmpty(t, id)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/decisions/"+id, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got types.DecisionRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, id, got.DecisionID)
	assert.Equal(t, "pii_email", got.ReasonCode)
	assert.NotContains(t, rec.Body.String(), "john@acme.com")

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/decisions/sha256:missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDecisionList(t *testing.T) {
	srv, _ := newTestServer(t, "", nil)
	post(t, srv, `{"question":"What is our total active MRR?"}`, "")
	post(t, srv, `{"question":"Export the full dataset as CSV"}`, "")

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/decisions?limit=10", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Decisions []DecisionSummary `json:"decisions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Decisions, 2)

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/decisions?limit=abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type stubAsker struct{}

func (stubAsker) Ask(context.Context, string) (types.Envelope, agent.Trace) {
	return types.Envelope{Answer: "a", Decision: types.DecisionAnswer, ReasoningNote: "n"}, agent.Trace{RequestID: "r"}
}

func TestHandlerWithoutLedger(t *testing.T) {
	srv := NewRouter(&Handler{Agent: stubAsker{}}, nil)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/decisions/x", nil))
	assert.Equal(t, http.StatusNotImplemented, rec.Code)

	rec = post(t, srv, `{"question":"hi"}`, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get(HeaderDecisionID))
}

func TestHealthz(t *testing.T) {
	srv := NewRouter(&Handler{}, nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestNewRateLimiterDisabled(t *testing.T) {
	assert.Nil(t, NewRateLimiter(0, 5))
	var l *RateLimiter
	assert.True(t, l.Allow())
}
