package enrich

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/maps-enrich/internal/model"
	"github.com/sells-group/maps-enrich/internal/resilience"
	"github.com/sells-group/maps-enrich/internal/store"
	"github.com/sells-group/maps-enrich/pkg/serpapi"
	"github.com/sells-group/maps-enrich/pkg/serpapi/mocks"
)

// fakeStore records staged outcomes. Methods the enricher does not call are
// left to the embedded nil interface.
type fakeStore struct {
	store.Store
	mu        sync.Mutex
	saved     map[string]model.Outcome
	history   []model.Outcome
	saveErr   error
	savePanic any
	exists    map[string]bool
	existsErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{saved: make(map[string]model.Outcome)}
}

func (f *fakeStore) SaveResult(_ context.Context, o model.Outcome) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.savePanic != nil {
		panic(f.savePanic)
	}
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved[o.AccountID] = o
	return nil
}

func (f *fakeStore) AppendHistory(_ context.Context, o model.Outcome) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.history = append(f.history, o)
	return nil
}

func (f *fakeStore) AccountIDs(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for id, o := range f.saved {
		if o.Status.Resumable() {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (f *fakeStore) Exists(_ context.Context, id string) (bool, error) {
	return f.exists[id], f.existsErr
}

type fakeChecker struct {
	done map[string]bool
	err  error
}

func (c fakeChecker) Processed(_ context.Context, id string) (bool, error) {
	return c.done[id], c.err
}

type panickingChecker struct{}

func (panickingChecker) Processed(context.Context, string) (bool, error) {
	panic("checker exploded")
}

type fakeMarker struct {
	mu     sync.Mutex
	marked map[string]model.Status
}

func (m *fakeMarker) Mark(id string, status model.Status, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.marked == nil {
		m.marked = make(map[string]model.Status)
	}
	if status.Resumable() {
		m.marked[id] = status
	}
	return nil
}

type fakeAuditor struct {
	mu   sync.Mutex
	rows []model.Outcome
}

func (a *fakeAuditor) Write(o model.Outcome) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rows = append(a.rows, o)
	return nil
}

type enricherFixture struct {
	enricher *Enricher
	search   *mocks.MockClient
	store    *fakeStore
	marker   *fakeMarker
	audit    *fakeAuditor
}

func newEnricherFixture(t *testing.T, checker Checker) *enricherFixture {
	t.Helper()
	f := &enricherFixture{
		search: mocks.NewMockClient(t),
		store:  newFakeStore(),
		marker: &fakeMarker{},
		audit:  &fakeAuditor{},
	}
	if checker == nil {
		checker = fakeChecker{}
	}
	f.enricher = NewEnricher(Options{
		Search:    f.search,
		Guard:     resilience.Guard{Backoff: resilience.Backoff{Attempts: 1}},
		Store:     f.store,
		Checker:   checker,
		Processed: f.marker,
		Audit:     f.audit,
		Threshold: 80,
		RunID:     "run-1",
	})
	f.enricher.now = func() time.Time { return time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC) }
	return f
}

var chatNoir = model.Account{
	ID:            "001A",
	Name:          "Le Chat Noir",
	AltName:       "Chat Noir",
	BillingStreet: "12 Rue Oberkampf",
	BillingCity:   "Paris",
}

func resultFor(title string) *serpapi.Response {
	rating := 4.5
	return &serpapi.Response{LocalResults: []serpapi.LocalResult{{
		Title:   title,
		PlaceID: "ChIJ1",
		Rating:  &rating,
		Price:   "$$",
	}}}
}

func TestEnrich_Enriched(t *testing.T) {
	f := newEnricherFixture(t, nil)
	f.search.On("Search", mock.Anything, "Le Chat Noir 12 Rue Oberkampf Paris Restaurant").
		Return(resultFor("Le Chat Noir"), nil).Once()

	out := f.enricher.Enrich(context.Background(), chatNoir)

	assert.Equal(t, model.StatusEnriched, out.Status)
	assert.Equal(t, MsgEnriched, out.Message)
	assert.Equal(t, 100, out.MatchScore)
	assert.Equal(t, "Name", out.MatchedField)
	assert.Equal(t, model.SyncPending, out.SyncStatus)
	require.NotNil(t, out.Place)
	assert.Equal(t, "ChIJ1", out.Place.PlaceID)
	assert.Equal(t, "2024-03-04", out.Place.UpdatedDate)

	assert.Equal(t, out, f.store.saved["001A"])
	assert.Len(t, f.store.history, 1)
	assert.Equal(t, model.StatusEnriched, f.marker.marked["001A"])
	assert.Len(t, f.audit.rows, 1)
}

func TestEnrich_AlreadyProcessedSkipsSearchAndWrites(t *testing.T) {
	f := newEnricherFixture(t, fakeChecker{done: map[string]bool{"001A": true}})

	out := f.enricher.Enrich(context.Background(), chatNoir)

	assert.Equal(t, model.StatusAlreadyProcessed, out.Status)
	f.search.AssertNotCalled(t, "Search", mock.Anything, mock.Anything)
	assert.Empty(t, f.store.saved)
	assert.Empty(t, f.store.history)
	assert.Empty(t, f.audit.rows)
}

func TestEnrich_PrecheckErrorProcessesAnyway(t *testing.T) {
	f := newEnricherFixture(t, fakeChecker{err: errors.New("store down")})
	f.search.On("Search", mock.Anything, mock.Anything).Return(&serpapi.Response{}, nil).Once()

	out := f.enricher.Enrich(context.Background(), chatNoir)
	assert.Equal(t, model.StatusNoResult, out.Status)
	assert.Equal(t, MsgNoResult, out.Message)
}

func TestEnrich_InsufficientData(t *testing.T) {
	f := newEnricherFixture(t, nil)

	out := f.enricher.Enrich(context.Background(), model.Account{ID: "001S", Website: "https://x.example"})

	assert.Equal(t, model.StatusSkipped, out.Status)
	assert.Equal(t, MsgInsufficientData, out.Message)
	assert.Equal(t, model.StatusSkipped, f.store.saved["001S"].Status)
	assert.Equal(t, model.StatusSkipped, f.marker.marked["001S"])
}

func TestEnrich_SanityCheck(t *testing.T) {
	f := newEnricherFixture(t, nil)
	f.search.On("Search", mock.Anything, mock.Anything).Return(resultFor("Sushi Zen"), nil).Once()

	out := f.enricher.Enrich(context.Background(), model.Account{ID: "001P", Name: "Pizza Roma", BillingCity: "Lyon"})

	assert.Equal(t, model.StatusSanityCheck, out.Status)
	assert.Equal(t, "Best match: 21% < 80%", out.Message)
	assert.Equal(t, model.SyncNone, out.SyncStatus)
	require.NotNil(t, out.Place, "rejected place kept for audit")
	assert.Equal(t, "Sushi Zen", out.Place.Title)
}

func TestEnrich_AltNameMatch(t *testing.T) {
	f := newEnricherFixture(t, nil)
	f.search.On("Search", mock.Anything, mock.Anything).Return(resultFor("Chat Noir"), nil).Once()

	out := f.enricher.Enrich(context.Background(), chatNoir)
	assert.Equal(t, model.StatusEnriched, out.Status)
	assert.Equal(t, "Nom_du_restaurant__c", out.MatchedField)
	assert.Equal(t, 100, out.MatchScore)
}

func TestEnrich_SearchErrorIsVerbatim(t *testing.T) {
	f := newEnricherFixture(t, nil)
	f.search.On("Search", mock.Anything, mock.Anything).
		Return(nil, &serpapi.APIError{StatusCode: 401, Message: "Invalid API key."}).Once()

	out := f.enricher.Enrich(context.Background(), chatNoir)

	assert.Equal(t, model.StatusError, out.Status)
	assert.Equal(t, "serpapi: Invalid API key.", out.Message)
	assert.Equal(t, model.StatusError, f.store.saved["001A"].Status)
	_, marked := f.marker.marked["001A"]
	assert.False(t, marked, "errors are retried next run")
	assert.Len(t, f.audit.rows, 1)
}

func TestEnrich_PanicBecomesError(t *testing.T) {
	f := newEnricherFixture(t, nil)
	f.search.On("Search", mock.Anything, mock.Anything).Panic("decoder exploded").Once()

	var out model.Outcome
	require.NotPanics(t, func() {
		out = f.enricher.Enrich(context.Background(), chatNoir)
	})
	assert.Equal(t, model.StatusError, out.Status)
	assert.Equal(t, "decoder exploded", out.Message)
	assert.Equal(t, model.StatusError, f.store.saved["001A"].Status)
}

func TestEnrich_StageFailureIsSwallowed(t *testing.T) {
	f := newEnricherFixture(t, nil)
	f.store.saveErr = errors.New("disk full")
	f.search.On("Search", mock.Anything, mock.Anything).Return(resultFor("Le Chat Noir"), nil).Once()

	out := f.enricher.Enrich(context.Background(), chatNoir)
	assert.Equal(t, model.StatusEnriched, out.Status)
	assert.Len(t, f.store.history, 1)
}

func TestStoreChecker(t *testing.T) {
	st := newFakeStore()
	st.saved["001A"] = model.Outcome{AccountID: "001A", Status: model.StatusEnriched}
	st.saved["001E"] = model.Outcome{AccountID: "001E", Status: model.StatusError}

	c, err := NewStoreChecker(context.Background(), st)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Len())

	ok, _ := c.Processed(context.Background(), "001A")
	assert.True(t, ok)
	ok, _ = c.Processed(context.Background(), "001E")
	assert.False(t, ok)
}

func TestEnrich_CheckerPanicBecomesError(t *testing.T) {
	f := newEnricherFixture(t, panickingChecker{})

	var out model.Outcome
	require.NotPanics(t, func() {
		out = f.enricher.Enrich(context.Background(), chatNoir)
	})
	assert.Equal(t, model.StatusError, out.Status)
	assert.Equal(t, "checker exploded", out.Message)
	f.search.AssertNotCalled(t, "Search", mock.Anything, mock.Anything)
	assert.Equal(t, model.StatusError, f.store.saved["001A"].Status)
	assert.Len(t, f.audit.rows, 1)
}

func TestEnrich_StagePanicIsContained(t *testing.T) {
	f := newEnricherFixture(t, nil)
	f.store.savePanic = "pool closed"
	f.search.On("Search", mock.Anything, mock.Anything).Return(resultFor("Le Chat Noir"), nil).Once()

	var out model.Outcome
	require.NotPanics(t, func() {
		out = f.enricher.Enrich(context.Background(), chatNoir)
	})
	assert.Equal(t, model.StatusEnriched, out.Status)
	assert.Len(t, f.store.history, 1, "later sinks still run")
	assert.Equal(t, model.StatusEnriched, f.marker.marked["001A"])
	assert.Len(t, f.audit.rows, 1)
}

func TestRemoteChecker(t *testing.T) {
	st := newFakeStore()
	st.exists = map[string]bool{"001A": true}
	c := NewRemoteChecker(st)

	ok, err := c.Processed(context.Background(), "001A")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.Processed(context.Background(), "001B")
	require.NoError(t, err)
	assert.False(t, ok)

	st.existsErr = errors.New("conn reset")
	_, err = c.Processed(context.Background(), "001A")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "enrich: lookup 001A")
}

func TestEnrich_RemoteCheckerSkipsStaged(t *testing.T) {
	st := newFakeStore()
	st.exists = map[string]bool{"001A": true}
	f := newEnricherFixture(t, NewRemoteChecker(st))

	out := f.enricher.Enrich(context.Background(), chatNoir)
	assert.Equal(t, model.StatusAlreadyProcessed, out.Status)
	f.search.AssertNotCalled(t, "Search", mock.Anything, mock.Anything)
}
