package bangumi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bissquit/mediahook/internal/enrich"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	p := New(Config{BaseURL: server.URL})
	p.httpClient = server.Client()
	p.limiter = rate.NewLimiter(rate.Inf, 1)
	return p
}

func TestProvider_FetchEpisode(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("User-Agent"))

		switch r.URL.Path {
		case "/search/subject/葬送的芙莉莲":
			assert.Equal(t, "2", r.URL.Query().Get("type"))
			_, _ = w.Write([]byte(`{"list":[{"id":400602}]}`))
		case "/v0/subjects/400602":
			_, _ = w.Write([]byte(`{"summary":"勇者一行人打倒魔王之后","images":{"large":"https://lain.bgm.tv/l/1.jpg","common":"https://lain.bgm.tv/c/1.jpg"}}`))
		case "/v0/episodes":
			assert.Equal(t, "400602", r.URL.Query().Get("subject_id"))
			_, _ = w.Write([]byte(`{"data":[{"ep":1,"sort":1,"name":"The Journey's End","name_cn":"冒险的结束","desc":""},{"ep":2,"sort":2,"name":"It Didn't Have to Be Magic","name_cn":"不一定非得是魔法","desc":"第二集简介"}]}`))
		default:
			http.NotFound(w, r)
		}
	})

	res, err := p.Fetch(context.Background(), enrich.Query{SeriesName: "葬送的芙莉莲", Season: 1, Episode: 2})
	require.NoError(t, err)
	assert.Equal(t, "第二集简介", res.Overview)
	assert.Equal(t, "不一定非得是魔法", res.EpisodeTitle)
	assert.Equal(t, "https://lain.bgm.tv/l/1.jpg", res.ImageURL)
}

func TestProvider_SubjectOnly(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v0/subjects/9":
			_, _ = w.Write([]byte(`{"summary":"s","images":{"common":"https://c.jpg"}}`))
		case "/v0/episodes":
			t.Error("episodes must not be requested without an episode number")
		default:
			_, _ = w.Write([]byte(`{"list":[{"id":9}]}`))
		}
	})

	res, err := p.Fetch(context.Background(), enrich.Query{SeriesName: "X"})
	require.NoError(t, err)
	assert.Equal(t, "s", res.Overview)
	assert.Equal(t, "https://c.jpg", res.ImageURL)
	assert.Empty(t, res.EpisodeTitle)
}

func TestProvider_NotFound(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"list":[]}`))
	})

	_, err := p.Fetch(context.Background(), enrich.Query{SeriesName: "nothing"})
	assert.ErrorIs(t, err, enrich.ErrNotFound)
}

func TestProvider_Capabilities(t *testing.T) {
	p := New(Config{})
	assert.Equal(t, "bangumi", p.ID())
	assert.True(t, p.Capabilities().Has(enrich.CapMetadata))
	assert.True(t, p.Capabilities().Has(enrich.CapImage))
}
