package fanart

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

type staticResolver struct {
	id  string
	err error
}

func (r staticResolver) SeriesID(context.Context, string) (string, error) { return r.id, r.err }

func newTestProvider(t *testing.T, resolver SeriesResolver, handler http.HandlerFunc) *Provider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	p, err := New(Config{APIKey: "key", BaseURL: server.URL}, resolver)
	require.NoError(t, err)
	p.httpClient = server.Client()
	p.limiter = rate.NewLimiter(rate.Inf, 1)
	return p
}

func TestProvider_Fetch(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    string
		wantErr error
	}{
		{"poster", `{"tvposter":[{"url":"https://fa/p.jpg"}],"tvbanner":[{"url":"https://fa/b.jpg"}]}`, "https://fa/p.jpg", nil},
		{"banner fallback", `{"tvbanner":[{"url":"https://fa/b.jpg"}]}`, "https://fa/b.jpg", nil},
		{"nothing", `{}`, "", enrich.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProvider(t, staticResolver{id: "267440"}, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/tv/267440", r.URL.Path)
				assert.Equal(t, "key", r.URL.Query().Get("api_key"))
				_, _ = w.Write([]byte(tt.body))
			})

			res, err := p.Fetch(context.Background(), enrich.Query{SeriesName: "Attack on Titan"})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.ImageURL)
			assert.Empty(t, res.Overview)
		})
	}
}

func TestProvider_ResolverError(t *testing.T) {
	p := newTestProvider(t, staticResolver{err: enrich.ErrNotFound}, func(w http.ResponseWriter, _ *http.Request) {
		t.Error("fanart must not be called without a series id")
	})

	_, err := p.Fetch(context.Background(), enrich.Query{SeriesName: "X"})
	assert.ErrorIs(t, err, enrich.ErrNotFound)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{}, staticResolver{})
	require.Error(t, err)
	_, err = New(Config{APIKey: "k"}, nil)
	require.Error(t, err)

	p, err := New(Config{APIKey: "k"}, staticResolver{})
	require.NoError(t, err)
	assert.Equal(t, enrich.CapImage, p.Capabilities())
}
