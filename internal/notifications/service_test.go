package notifications

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/bissquit/mediahook/internal/classify"
	"github.com/bissquit/mediahook/internal/dedup"
	"github.com/bissquit/mediahook/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const jellyfinEpisode = `{"ServerId":"abc","ServerName":"home","ServerUrl":"http://jf:8096","NotificationType":"ItemAdded",
	"ItemId":"42","ItemType":"Episode","Name":"The Dawn of Humanity","SeriesName":"Attack on Titan",
	"SeasonNumber":4,"EpisodeNumber":28,"Overview":"original overview","Timestamp":"2024-01-01T00:00:00Z"}`

type stubEnricher struct {
	calls int
}

func (e *stubEnricher) Enrich(_ context.Context, ev domain.CanonicalEvent) domain.EnrichedEvent {
	e.calls++
	out := domain.EnrichedEvent{CanonicalEvent: ev, DataSourceTag: "tmdb", EpisodeTitle: "人类的黎明"}
	out.Overview = "enriched overview"
	return out
}

type testService struct {
	*Service
	queue    *Queue
	store    *dedup.MemoryStore
	enricher *stubEnricher
}

func newTestService(t *testing.T) testService {
	t.Helper()

	renderer, err := NewRenderer(RendererConfig{Platform: "aiocqhttp", Language: "zh"})
	require.NoError(t, err)

	queue := NewQueue()
	store := dedup.NewMemoryStore()
	enricher := &stubEnricher{}

	svc := NewService(ServiceConfig{DedupTTL: 5 * time.Minute}, ServiceDeps{
		Decoder:    classify.NewDecoder(3),
		Store:      store,
		Classifier: classify.New(classify.Options{MarkerThreshold: 3}),
		Enricher:   enricher,
		Renderer:   renderer,
		Queue:      queue,
	})
	return testService{Service: svc, queue: queue, store: store, enricher: enricher}
}

func TestService_IngestQueuesEnrichedMessage(t *testing.T) {
	ts := newTestService(t)

	outcome, err := ts.Ingest(context.Background(), []byte(jellyfinEpisode), http.Header{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeQueued, outcome)

	entries := ts.queue.Drain()
	require.Len(t, entries, 1)
	msg := entries[0].Message
	assert.Equal(t, domain.SourceJellyfin, msg.Source)
	assert.Equal(t, domain.ItemTypeEpisode, msg.ItemType)
	assert.Contains(t, msg.Text, "S04E28")
	assert.Contains(t, msg.Text, "enriched overview")
	assert.Contains(t, msg.Text, "人类的黎明")
	assert.Contains(t, msg.Text, "TMDB")
	assert.Equal(t, "http://jf:8096/Items/42/Images/Primary", msg.ImageURL)
}

func TestService_Duplicate(t *testing.T) {
	ts := newTestService(t)
	ctx := context.Background()

	_, err := ts.Ingest(ctx, []byte(jellyfinEpisode), nil)
	require.NoError(t, err)

	// Same content with a different timestamp is a duplicate.
	again := bytes.Replace([]byte(jellyfinEpisode), []byte("2024-01-01"), []byte("2024-02-02"), 1)
	outcome, err := ts.Ingest(ctx, again, nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, outcome)

	assert.Equal(t, 1, ts.queue.Len())
	assert.Equal(t, 1, ts.enricher.calls)
}

func TestService_ConcurrentDuplicatesQueuedOnce(t *testing.T) {
	ts := newTestService(t)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ts.Ingest(context.Background(), []byte(`{"ItemType":"Movie","Name":"Dune","Year":2021}`), nil)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ts.queue.Len())
}

func TestService_Malformed(t *testing.T) {
	ts := newTestService(t)

	_, err := ts.Ingest(context.Background(), []byte("not json at all"), nil)
	assert.ErrorIs(t, err, classify.ErrMalformedPayload)
	assert.Zero(t, ts.queue.Len())
}

func TestService_TemplatePassthrough(t *testing.T) {
	ts := newTestService(t)
	body := "${emoji} ${title} 第${episode}集 已更新 ✨"

	_, err := ts.Ingest(context.Background(), []byte(body), nil)
	require.NoError(t, err)

	entries := ts.queue.Drain()
	require.Len(t, entries, 1)
	assert.Equal(t, body, entries[0].Message.Text)
	assert.Equal(t, domain.SourceAniRSS, entries[0].Message.Source)
	assert.Zero(t, ts.enricher.calls)
}

func TestService_Closed(t *testing.T) {
	ts := newTestService(t)
	ts.Close()

	_, err := ts.Ingest(context.Background(), []byte(jellyfinEpisode), nil)
	assert.ErrorIs(t, err, ErrShuttingDown)
}

func TestService_ForgetsFingerprintWhenQueueClosed(t *testing.T) {
	ts := newTestService(t)
	ts.queue.Close()

	_, err := ts.Ingest(context.Background(), []byte(jellyfinEpisode), nil)
	assert.ErrorIs(t, err, ErrShuttingDown)

	n, err := ts.store.Len(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestHandler_StatusCodes(t *testing.T) {
	ts := newTestService(t)
	r := chi.NewRouter()
	NewHandler(ts.Service, "/media-webhook", 1024).RegisterRoutes(r)

	post := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/media-webhook", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "text/plain")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	rec := post(jellyfinEpisode)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"queued"}`, rec.Body.String())

	rec = post(jellyfinEpisode)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.JSONEq(t, `{"status":"duplicate"}`, rec.Body.String())

	rec = post("}{")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = post(`["Dune","Arrival"]`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = post(string(bytes.Repeat([]byte("x"), 2048)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	ts.Close()
	rec = post(`{"ItemType":"Movie","Name":"Other"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRegistry_Resolve(t *testing.T) {
	reg := NewRegistry(nil)
	onebot := &recordingAdapter{merge: true}
	reg.Register(onebot, "napcat", "LLOneBot")

	assert.Same(t, onebot, reg.Resolve("test"))
	assert.Same(t, onebot, reg.Resolve(" NapCat "))
	assert.Same(t, onebot, reg.Resolve("llonebot"))

	generic := reg.Resolve("matrix")
	assert.Equal(t, Capability{Platform: GenericPlatform}, generic.Capability())
	assert.NoError(t, generic.SendIndividual(context.Background(), Message{Text: "hello"}))
	assert.ErrorIs(t, generic.SendForwardBundle(context.Background(), []Message{{Text: "a"}}), ErrBundleNotSupported)
	assert.ElementsMatch(t, []string{"test", "napcat", "llonebot"}, reg.Platforms())
}

func TestRegistry_GenericUsesFallbackTransport(t *testing.T) {
	transport := &recordingAdapter{}
	reg := NewRegistry(transport)

	require.NoError(t, reg.Resolve("unknown").SendIndividual(context.Background(), Message{Text: "x"}))
	require.Len(t, transport.individual, 1)
	assert.Equal(t, "x", transport.individual[0].Text)
}
