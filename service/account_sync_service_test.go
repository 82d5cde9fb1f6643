package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/mock/gomock"

	"greader-sync/driver"
	"greader-sync/mocks"
	"greader-sync/models"
	"greader-sync/repository"
	"greader-sync/utils"
)

const (
	accountTags = `{"tags":[{"id":"user/-/label/News","type":"folder"},{"id":"user/-/label/Fav","type":"tag"}]}`
	accountSubs = `{"subscriptions":[` +
		`{"id":"feed/a","title":"A","categories":[{"id":"user/-/label/News"}]},` +
		`{"id":"feed/b","title":"B"}]}`
)

type recordedCycle struct {
	account string
	status  string
}

type cycleRecorderStub struct {
	cycles []recordedCycle
	states []utils.CircuitBreakerState
}

func (c *cycleRecorderStub) CycleCompleted(account, status string, _ time.Duration) {
	c.cycles = append(c.cycles, recordedCycle{account: account, status: status})
}

func (c *cycleRecorderStub) BreakerState(_ string, state utils.CircuitBreakerState) {
	c.states = append(c.states, state)
}

type remoteItem struct {
	feed    string
	read    bool
	starred bool
}

// stateContentsHandler serves item contents carrying read and starred categories
func stateContentsHandler(t *testing.T, catalogue map[string]remoteItem) routeHandler {
	return func(req *driver.Request) (*driver.Response, error) {
		values, err := url.ParseQuery(string(req.Body))
		require.NoError(t, err)

		items := make([]map[string]any, 0, len(values["i"]))
		for _, id := range values["i"] {
			item, ok := catalogue[id]
			if !ok {
				continue
			}
			var categories []string
			if item.read {
				categories = append(categories, StreamRead)
			}
			if item.starred {
				categories = append(categories, StreamStarred)
			}
			items = append(items, itemJSON(id, item.feed, categories...))
		}
		data, _ := json.Marshal(map[string]any{"items": items})
		return &driver.Response{StatusCode: http.StatusOK, Body: data, Header: http.Header{}}, nil
	}
}

func accountTransport(t *testing.T) *scriptedTransport {
	catalogue := map[string]remoteItem{
		longID(1): {feed: "feed/a"},
		longID(2): {feed: "feed/a", read: true},
		longID(3): {feed: "feed/b"},
		longID(4): {feed: "feed/b", read: true, starred: true},
	}
	return loggedInTransport().
		reply(pathTagList, http.StatusOK, accountTags).
		reply(pathSubscriptionList, http.StatusOK, accountSubs).
		reply(idsRoute(StreamStarred, false), http.StatusOK, itemIDsBody("4")).
		reply(idsRoute(StreamReadingList, false), http.StatusOK, itemIDsBody("1", "2", "3", "4")).
		reply(idsRoute(StreamReadingList, true), http.StatusOK, itemIDsBody("1", "3")).
		handle(pathItemContents, stateContentsHandler(t, catalogue))
}

func newAccountService(transport driver.Transport, store repository.MessageStateRepository) *AccountSyncService {
	orchestrator := newTestOrchestrator(models.SpecFor(models.ProviderOther), transport, SyncConfig{IntelligentSync: true})
	return NewAccountSyncService("acct", orchestrator, store, false, nil)
}

func openTestDatabase(t *testing.T) (repository.MessageStateRepository, repository.SyncRunRepository) {
	t.Helper()
	db, err := repository.OpenDatabase(context.Background(), "sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return repository.NewMessageStateRepository(db, "sqlite", "acct", nil), repository.NewSQLSyncRunRepository(db, "sqlite", nil)
}

func TestAccountSyncService_RunCycle(t *testing.T) {
	ctx := context.Background()
	store, runs := openTestDatabase(t)

	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	stub := &cycleRecorderStub{}

	svc := newAccountService(accountTransport(t), store)
	svc.SetRunRepository(runs)
	svc.SetRecorder(stub)
	svc.tracer = provider.Tracer("test")

	report, err := svc.RunCycle(ctx)
	require.NoError(t, err)
	require.NotNil(t, report)

	assert.Equal(t, "acct", report.AccountID)
	assert.NotEmpty(t, report.CycleID)
	assert.True(t, report.GlobalFetch)
	assert.Equal(t, 2, report.FeedsTotal)
	assert.Zero(t, report.FeedsFailed)
	assert.Equal(t, 4, report.MessagesSaved)
	assert.Equal(t, CycleStatusNormal, report.Status)
	assert.Equal(t, map[string]models.FeedStatus{
		"feed/a": models.FeedStatusNormal,
		"feed/b": models.FeedStatusNormal,
	}, report.FeedStatuses)
	assert.Same(t, report, svc.LastReport())

	local, err := store.LoadLocalState(ctx, []string{"feed/a", "feed/b"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{longID(1)}, local["feed/a"].Unread.Slice())
	assert.ElementsMatch(t, []string{longID(2)}, local["feed/a"].Read.Slice())
	assert.ElementsMatch(t, []string{longID(3)}, local["feed/b"].Unread.Slice())
	assert.ElementsMatch(t, []string{longID(4)}, local["feed/b"].Starred.Slice())

	history, err := runs.ListRecent(ctx, "acct", 5)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, report.CycleID, history[0].CycleID)
	assert.Equal(t, 4, history[0].MessagesSaved)
	assert.Equal(t, CycleStatusNormal, history[0].Status)

	assert.Equal(t, []recordedCycle{{account: "acct", status: CycleStatusNormal}}, stub.cycles)
	assert.Equal(t, []utils.CircuitBreakerState{utils.StateClosed}, stub.states)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "sync.cycle", spans[0].Name())
	assert.Contains(t, spans[0].Attributes(), attribute.Int("sync.messages_saved", 4))
}

func TestAccountSyncService_SecondCycleIsIncremental(t *testing.T) {
	ctx := context.Background()
	store, _ := openTestDatabase(t)
	transport := accountTransport(t)
	svc := newAccountService(transport, store)

	_, err := svc.RunCycle(ctx)
	require.NoError(t, err)
	first := len(transport.requestsTo(pathItemContents))

	report, err := svc.RunCycle(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.MessagesSaved)
	assert.Equal(t, first, len(transport.requestsTo(pathItemContents)), "nothing changed remotely")
}

func TestAccountSyncService_TreeFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockMessageStateRepository(ctrl)
	runs := mocks.NewMockSyncRunRepository(ctrl)

	transport := loggedInTransport().reply(pathTagList, http.StatusServiceUnavailable, "")
	svc := newAccountService(transport, store)
	svc.SetRunRepository(runs)

	runs.EXPECT().Record(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, run *models.SyncRun) error {
		assert.Equal(t, "network_error", run.Status)
		assert.Contains(t, run.Error, ErrTreeUnavailable.Error())
		return nil
	})

	report, err := svc.RunCycle(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTreeUnavailable)
	assert.Equal(t, ErrorKindNetwork, KindOf(err))
	require.NotNil(t, report)
	assert.Equal(t, "network_error", report.Status)
}

func TestAccountSyncService_PrefetchFailureMarksEveryFeed(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockMessageStateRepository(ctrl)

	transport := loggedInTransport().
		reply(pathTagList, http.StatusOK, accountTags).
		reply(pathSubscriptionList, http.StatusOK, accountSubs).
		reply(idsRoute(StreamStarred, false), http.StatusBadGateway, "")
	svc := newAccountService(transport, store)

	feeds := []models.Feed{{CustomID: "feed/a"}, {CustomID: "feed/b"}}
	store.EXPECT().SaveTree(gomock.Any(), gomock.Any()).Return(nil)
	store.EXPECT().ListFeeds(gomock.Any()).Return(feeds, nil)
	store.EXPECT().LoadLocalState(gomock.Any(), []string{"feed/a", "feed/b"}).Return(models.LocalState{}, nil)
	store.EXPECT().SetFeedStatus(gomock.Any(), "feed/a", models.FeedStatusNetworkError).Return(nil)
	store.EXPECT().SetFeedStatus(gomock.Any(), "feed/b", models.FeedStatusNetworkError).Return(nil)

	report, err := svc.RunCycle(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPrefetchFailed)
	assert.Equal(t, 2, report.FeedsFailed)
	assert.Equal(t, "network_error", report.Status)
}

func TestAccountSyncService_BreakerOpensOnNetworkFailures(t *testing.T) {
	transport := loggedInTransport().reply(pathTagList, http.StatusServiceUnavailable, "")
	svc := newAccountService(transport, mocks.NewMockMessageStateRepository(gomock.NewController(t)))

	cfg := utils.DefaultCircuitBreakerConfig()
	cfg.FailureThreshold = 1
	cfg.IsFailure = func(err error) bool { return KindOf(err) != ErrorKindOther }
	svc.SetBreaker(utils.NewCircuitBreaker("test", cfg, nil))

	_, err := svc.RunCycle(context.Background())
	require.Error(t, err)

	report, err := svc.RunCycle(context.Background())
	assert.ErrorIs(t, err, utils.ErrCircuitBreakerOpen)
	assert.Equal(t, CycleStatusCircuitOpen, report.Status)
	assert.Len(t, transport.requestsTo(pathTagList), 1)
	assert.Equal(t, utils.StateOpen, svc.BreakerStats().State)
}

func TestAccountSyncService_StorageErrorsDoNotTripBreaker(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockMessageStateRepository(ctrl)
	transport := loggedInTransport().
		reply(pathTagList, http.StatusOK, accountTags).
		reply(pathSubscriptionList, http.StatusOK, accountSubs)
	svc := newAccountService(transport, store)

	cfg := utils.DefaultCircuitBreakerConfig()
	cfg.FailureThreshold = 1
	cfg.IsFailure = func(err error) bool { return KindOf(err) != ErrorKindOther }
	svc.SetBreaker(utils.NewCircuitBreaker("test", cfg, nil))

	diskFull := errors.New("disk full")
	store.EXPECT().SaveTree(gomock.Any(), gomock.Any()).Return(diskFull).Times(2)

	for range 2 {
		report, err := svc.RunCycle(context.Background())
		require.ErrorIs(t, err, diskFull)
		assert.Equal(t, "other_error", report.Status)
	}
	assert.Equal(t, utils.StateClosed, svc.BreakerStats().State)
}

func TestAccountSyncService_QuotaExhausted(t *testing.T) {
	transport := loggedInTransport()
	svc := newAccountService(transport, mocks.NewMockMessageStateRepository(gomock.NewController(t)))

	guard := NewQuotaGuard(10, nil)
	guard.Update(models.APIUsage{Zone1Usage: 99, Zone1Limit: 100, ResetAt: time.Now().Add(time.Hour)})
	svc.SetQuotaGuard(guard)

	report, err := svc.RunCycle(context.Background())
	assert.ErrorIs(t, err, ErrQuotaExhausted)
	assert.Equal(t, CycleStatusQuota, report.Status)
	assert.Empty(t, transport.requestsTo(pathTagList))
}

func TestAccountSyncService_CyclesDoNotOverlap(t *testing.T) {
	svc := newAccountService(loggedInTransport(), mocks.NewMockMessageStateRepository(gomock.NewController(t)))

	svc.running.Lock()
	defer svc.running.Unlock()

	report, err := svc.RunCycle(context.Background())
	assert.Nil(t, report)
	assert.ErrorIs(t, err, ErrCycleInProgress)
}

func TestAccountSyncService_MarkMessages(t *testing.T) {
	ids := []string{longID(1), longID(2)}

	tests := map[string]struct {
		editStatus int
		mark       func(svc *AccountSyncService) error
		expect     func(store *mocks.MockMessageStateRepository)
		wantErr    bool
	}{
		"read_updates_store": {
			editStatus: http.StatusOK,
			mark: func(svc *AccountSyncService) error {
				return svc.MarkRead(context.Background(), true, ids)
			},
			expect: func(store *mocks.MockMessageStateRepository) {
				store.EXPECT().UpdateFlags(gomock.Any(), ids, repository.FlagRead, true).Return(nil)
			},
		},
		"unstar_updates_store": {
			editStatus: http.StatusOK,
			mark: func(svc *AccountSyncService) error {
				return svc.MarkStarred(context.Background(), false, ids)
			},
			expect: func(store *mocks.MockMessageStateRepository) {
				store.EXPECT().UpdateFlags(gomock.Any(), ids, repository.FlagStarred, false).Return(nil)
			},
		},
		"server_rejection_leaves_store": {
			editStatus: http.StatusInternalServerError,
			mark: func(svc *AccountSyncService) error {
				return svc.MarkRead(context.Background(), true, ids)
			},
			expect:  func(*mocks.MockMessageStateRepository) {},
			wantErr: true,
		},
		"empty_ids_noop": {
			editStatus: http.StatusOK,
			mark: func(svc *AccountSyncService) error {
				return svc.MarkRead(context.Background(), true, nil)
			},
			expect: func(*mocks.MockMessageStateRepository) {},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			store := mocks.NewMockMessageStateRepository(ctrl)
			tc.expect(store)

			transport := loggedInTransport().
				reply(pathToken, http.StatusOK, "edit-token").
				reply(pathEditTag, tc.editStatus, "OK")
			svc := newAccountService(transport, store)

			err := tc.mark(svc)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrEditFailed)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestAccountSyncService_RunCycleFeedSubset(t *testing.T) {
	subs := make([]string, 0, 10)
	for i := range 10 {
		subs = append(subs, fmt.Sprintf(`{"id":"feed/%d","title":"Feed %d"}`, i, i))
	}
	catalogue := map[string]remoteItem{
		longID(1): {feed: "feed/3"},
		longID(2): {feed: "feed/3", read: true},
	}

	// listing counts include the unread listing of the same stream
	tests := map[string]struct {
		feeds        []string
		wantGlobal   bool
		wantFeeds    int
		readingLists int
		feedListings int
	}{
		"one of ten feeds is fetched per feed": {
			feeds:        []string{"feed/3"},
			wantGlobal:   false,
			wantFeeds:    1,
			readingLists: 0,
			feedListings: 2,
		},
		"all feeds are fetched globally": {
			wantGlobal:   true,
			wantFeeds:    10,
			readingLists: 2,
			feedListings: 0,
		},
		"unknown feeds are skipped": {
			feeds:        []string{"feed/3", "feed/missing"},
			wantGlobal:   false,
			wantFeeds:    1,
			readingLists: 0,
			feedListings: 2,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			store, _ := openTestDatabase(t)
			transport := loggedInTransport().
				reply(pathTagList, http.StatusOK, `{"tags":[]}`).
				reply(pathSubscriptionList, http.StatusOK, `{"subscriptions":[`+strings.Join(subs, ",")+`]}`).
				reply(idsRoute(StreamStarred, false), http.StatusOK, itemIDsBody()).
				reply(idsRoute(StreamReadingList, false), http.StatusOK, itemIDsBody("1", "2")).
				reply(idsRoute(StreamReadingList, true), http.StatusOK, itemIDsBody("1")).
				reply(idsRoute("feed/3", false), http.StatusOK, itemIDsBody("1", "2")).
				reply(idsRoute("feed/3", true), http.StatusOK, itemIDsBody("1")).
				handle(pathItemContents, stateContentsHandler(t, catalogue))

			orchestrator := newTestOrchestrator(models.SpecFor(models.ProviderOther), transport,
				SyncConfig{IntelligentSync: true, GlobalThreshold: 0.3})
			svc := NewAccountSyncService("acct", orchestrator, store, false, nil)

			report, err := svc.RunCycle(context.Background(), tc.feeds...)
			require.NoError(t, err)

			assert.Equal(t, tc.wantGlobal, report.GlobalFetch)
			assert.Equal(t, tc.wantFeeds, report.FeedsTotal)
			assert.Equal(t, 2, report.MessagesSaved)
			assert.Len(t, transport.requestsTo(idsRoute(StreamReadingList, false)), tc.readingLists)
			assert.Len(t, transport.requestsTo(idsRoute("feed/3", false)), tc.feedListings)
		})
	}
}
