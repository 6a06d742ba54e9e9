package verifier

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/artpar/chainforge/internal/core/verification"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const poolAddr = "0x5FbDB2315678afecb367f032d93F642f64180aa3"

// fakeExplorer is a minimal Blockscout API v2.
type fakeExplorer struct {
	mu          sync.Mutex
	submissions []submission
	status      map[string]contractResponse
	failStatus  int // number of 503 responses before answering
}

type submission struct {
	address  string
	fields   map[string]string
	input    verification.StandardInput
	apiKey   string
	filename string
}

func newFakeExplorer(t *testing.T) (*fakeExplorer, *httptest.Server) {
	t.Helper()
	fe := &fakeExplorer{status: map[string]contractResponse{}}

	r := chi.NewRouter()
	r.Post("/api/v2/smart-contracts/{address}/verification/via/standard-input", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		sub := submission{
			address: chi.URLParam(r, "address"),
			fields:  map[string]string{},
			apiKey:  r.URL.Query().Get("apikey"),
		}
		for k, v := range r.MultipartForm.Value {
			sub.fields[k] = v[0]
		}
		file, header, err := r.FormFile("files[0]")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()
		sub.filename = header.Filename
		data, _ := io.ReadAll(file)
		_ = json.Unmarshal(data, &sub.input)

		fe.mu.Lock()
		fe.submissions = append(fe.submissions, sub)
		fe.mu.Unlock()
		json.NewEncoder(w).Encode(messageResponse{Message: "Smart-contract verification started"})
	})
	r.Get("/api/v2/smart-contracts/{address}", func(w http.ResponseWriter, r *http.Request) {
		fe.mu.Lock()
		defer fe.mu.Unlock()
		if fe.failStatus > 0 {
			fe.failStatus--
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		st, ok := fe.status[chi.URLParam(r, "address")]
		if !ok {
			http.Error(w, `{"message":"Not found"}`, http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(st)
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return fe, srv
}

func testBundle() verification.SourceBundle {
	return verification.SourceBundle{
		ContractName:    "src/core/Pool.sol:Pool",
		CompilerVersion: "v0.8.20+commit.a1b79de6",
		LicenseType:     "mit",
		Input: verification.StandardInput{
			Language: "Solidity",
			Sources:  map[string]verification.SourceFile{"src/core/Pool.sol": {Content: "contract Pool {}"}},
		},
	}
}

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient(Config{BaseURL: "https://explorer.example/"}, nil)
	assert.Equal(t, "https://explorer.example", c.baseURL)
	assert.NotNil(t, c.httpClient)
	assert.NotNil(t, c.logger)
}

func TestClient_Submit(t *testing.T) {
	fe, srv := newFakeExplorer(t)
	c := NewClient(Config{BaseURL: srv.URL, APIKey: "k3y"}, nil)

	require.NoError(t, c.Submit(context.Background(), poolAddr, testBundle()))

	require.Len(t, fe.submissions, 1)
	sub := fe.submissions[0]
	assert.Equal(t, poolAddr, sub.address)
	assert.Equal(t, "k3y", sub.apiKey)
	assert.Equal(t, "Pool", sub.fields["contract_name"])
	assert.Equal(t, "v0.8.20+commit.a1b79de6", sub.fields["compiler_version"])
	assert.Equal(t, "mit", sub.fields["license_type"])
	assert.Equal(t, "true", sub.fields["autodetect_constructor_args"])
	assert.Equal(t, "input.json", sub.filename)
	assert.Equal(t, "contract Pool {}", sub.input.Sources["src/core/Pool.sol"].Content)
}

func TestClient_Submit_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"bad compiler"}`, http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	err := NewClient(Config{BaseURL: srv.URL}, nil).Submit(context.Background(), poolAddr, testBundle())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "422")
}

func TestClient_Status(t *testing.T) {
	fe, srv := newFakeExplorer(t)
	fe.status[poolAddr] = contractResponse{IsVerified: true, Name: "Pool"}
	c := NewClient(Config{BaseURL: srv.URL}, nil)

	st, err := c.Status(context.Background(), poolAddr)
	require.NoError(t, err)
	assert.True(t, st.Verified)
	assert.Equal(t, "Pool", st.Name)
}

func TestClient_Status_NotIndexed(t *testing.T) {
	_, srv := newFakeExplorer(t)
	c := NewClient(Config{BaseURL: srv.URL}, nil)

	st, err := c.Status(context.Background(), poolAddr)
	require.NoError(t, err)
	assert.False(t, st.Verified)
	assert.Empty(t, st.Name)
}

func TestClient_Status_TransportRetry(t *testing.T) {
	fe, srv := newFakeExplorer(t)
	fe.failStatus = 1
	fe.status[poolAddr] = contractResponse{IsPartiallyVerified: true, Name: "Pool"}
	c := NewClient(Config{BaseURL: srv.URL, TransportRetries: 2}, nil)
	c.httpClient.RetryWaitMin = 0
	c.httpClient.RetryWaitMax = 0

	st, err := c.Status(context.Background(), poolAddr)
	require.NoError(t, err)
	assert.True(t, st.PartiallyVerified)
}
