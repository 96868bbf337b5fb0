package linkcheck

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newBoardServer(t *testing.T) (*httptest.Server, func() []string) {
	t.Helper()
	var (
		mu      sync.Mutex
		methods []string
	)
	mux := http.NewServeMux()
	mux.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		methods = append(methods, r.Method+" "+r.UserAgent())
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/gone", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/boom", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), methods...)
	}
}

func TestChecker_Check(t *testing.T) {
	t.Parallel()

	server, methods := newBoardServer(t)
	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL + "/jobs/1"
	dead.Close()

	entries := []Entry{
		{URL: server.URL + "/ok", Company: "Acme"},
		{URL: server.URL + "/gone", Company: "Globex"},
		{URL: server.URL + "/boom", Company: "Initech"},
		{URL: deadURL, Company: "Hooli"},
		{URL: server.URL + "/ok", Company: "Acme again"},
	}

	checker := New(Config{Concurrency: 2, Timeout: 2 * time.Second, UserAgent: "probe/1.0"}, zap.NewNop())
	results, err := checker.Check(context.Background(), entries)
	require.NoError(t, err)
	require.Len(t, results, len(entries))

	require.Equal(t, "Acme", results[0].Company)
	require.Equal(t, http.StatusOK, results[0].Status)
	require.False(t, results[0].Broken())

	require.Equal(t, http.StatusNotFound, results[1].Status)
	require.True(t, results[1].Broken())
	require.Equal(t, "404", results[1].Detail())

	require.Equal(t, http.StatusInternalServerError, results[2].Status)
	require.True(t, results[2].Broken())

	require.Error(t, results[3].Err)
	require.True(t, results[3].Broken())
	require.Zero(t, results[3].Status)

	require.False(t, results[4].Broken())
	require.Equal(t, []string{"HEAD probe/1.0", "HEAD probe/1.0"}, methods())
}

func TestChecker_IgnoresCertificateErrors(t *testing.T) {
	t.Parallel()

	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	results, err := New(Config{}, nil).Check(context.Background(), []Entry{{URL: server.URL, Company: "Self Signed"}})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, results[0].Status)
	require.False(t, results[0].Broken())
}

func TestChecker_InvalidURL(t *testing.T) {
	t.Parallel()

	results, err := New(Config{}, nil).Check(context.Background(), []Entry{{URL: "://nope", Company: "Broken"}})
	require.NoError(t, err)
	require.True(t, results[0].Broken())
	require.Error(t, results[0].Err)
}

func TestChecker_Canceled(t *testing.T) {
	t.Parallel()

	server, _ := newBoardServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := New(Config{}, nil).Check(ctx, []Entry{{URL: server.URL + "/ok"}})
	require.ErrorIs(t, err, context.Canceled)
	require.True(t, results[0].Broken())
}

func TestReadEntries(t *testing.T) {
	t.Parallel()

	entries, err := ReadEntries(strings.NewReader(`[{"url":"https://a.example/jobs/1","company":"A"}]`))
	require.NoError(t, err)
	require.Equal(t, []Entry{{URL: "https://a.example/jobs/1", Company: "A"}}, entries)

	_, err = ReadEntries(strings.NewReader(`{"url":"x"}`))
	require.ErrorContains(t, err, "decode link entries")
}

func TestWriteReport(t *testing.T) {
	t.Parallel()

	results := []Result{
		{Entry: Entry{URL: "https://a.example/ok"}, Status: http.StatusOK},
		{Entry: Entry{URL: "https://a.example/gone"}, Status: http.StatusGone},
		{Entry: Entry{URL: "https://b.example/x"}, Err: errors.New("dial tcp: connection refused")},
	}
	var buf bytes.Buffer
	n, err := WriteReport(&buf, results)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t,
		"https://a.example/gone | 410\nhttps://b.example/x | dial tcp: connection refused\n",
		buf.String(),
	)
}
