// ABOUTME: Per-account sync entry point choosing between a global prefetch and per-feed reconciliation
// ABOUTME: Owns the prefetch cache for one cycle and maps every failure to a FeedStatus

package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"greader-sync/models"
)

// SyncConfig holds every tunable of the orchestrator
type SyncConfig struct {
	Spec models.ProviderSpec
	// UnreadOnly skips downloading messages the server considers read.
	UnreadOnly bool
	// IntelligentSync reconciles ids before downloading; otherwise whole streams are fetched.
	IntelligentSync bool
	NewerThan       time.Time
	// MaxAge limits messages to a rolling window when NewerThan is zero.
	MaxAge          time.Duration
	GlobalThreshold float64
	// BatchSize caps messages per stream in plain sync; <= 0 means unbounded.
	BatchSize int
	// ItemContentsBatch overrides the provider's ids per item-contents request.
	ItemContentsBatch int
}

// SyncObserver receives cycle outcomes, e.g. for metrics
type SyncObserver interface {
	PrefetchCompleted(provider string, global bool, messages int, status models.FeedStatus)
	FeedCompleted(provider string, messages int, status models.FeedStatus)
}

// SyncOrchestrator runs sync cycles for one account. It is not safe for
// concurrent use; run one instance per account.
type SyncOrchestrator struct {
	cfg      SyncConfig
	client   *GreaderClient
	batches  *BatchFetcher
	decoder  *ContentDecoder
	tree     *TreeDecoder
	observer SyncObserver
	logger   *slog.Logger

	cycleID        string
	globalFetch    bool
	prefetched     []models.Message
	prefetchStatus models.FeedStatus
	liveLabels     models.IDSet
	now            func() time.Time
}

// NewSyncOrchestrator wires the engine components together
func NewSyncOrchestrator(cfg SyncConfig, client *GreaderClient, decoder *ContentDecoder, tree *TreeDecoder, logger *slog.Logger) *SyncOrchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.GlobalThreshold <= 0 {
		cfg.GlobalThreshold = models.GlobalUpdateThreshold
	}
	batchSize := cfg.ItemContentsBatch
	if batchSize <= 0 {
		batchSize = cfg.Spec.ItemContentsBatch
	}

	return &SyncOrchestrator{
		cfg:        cfg,
		client:     client,
		batches:    NewBatchFetcher(client, batchSize, logger),
		decoder:    decoder,
		tree:       tree,
		logger:     logger,
		liveLabels: models.NewIDSet(),
		now:        time.Now,
	}
}

func (o *SyncOrchestrator) newerThan() time.Time {
	if !o.cfg.NewerThan.IsZero() || o.cfg.MaxAge <= 0 {
		return o.cfg.NewerThan
	}
	return o.now().Add(-o.cfg.MaxAge)
}

// SetObserver registers a receiver for cycle outcomes
func (o *SyncOrchestrator) SetObserver(observer SyncObserver) {
	o.observer = observer
}

// SetActiveLabels replaces the label ids messages may be assigned to
func (o *SyncOrchestrator) SetActiveLabels(labelIDs []string) {
	o.liveLabels = models.NewIDSet(labelIDs...)
}

// CycleID identifies the current cycle in logs
func (o *SyncOrchestrator) CycleID() string {
	return o.cycleID
}

// GlobalFetch reports whether the current cycle prefetched account-wide
func (o *SyncOrchestrator) GlobalFetch() bool {
	return o.globalFetch
}

// PrefetchedCount returns the number of cached messages not yet drained
func (o *SyncOrchestrator) PrefetchedCount() int {
	return len(o.prefetched)
}

// PrefetchStatus returns the status every feed of this cycle inherits on failure
func (o *SyncOrchestrator) PrefetchStatus() models.FeedStatus {
	return o.prefetchStatus
}

// PrepareAccountFetch starts a cycle for the feeds about to be updated.
// totalFeeds is the number of leaf feeds of the account.
func (o *SyncOrchestrator) PrepareAccountFetch(ctx context.Context, feeds []models.Feed, totalFeeds int, local models.LocalState) models.FeedStatus {
	o.cycleID = uuid.NewString()
	o.prefetched = nil
	o.prefetchStatus = models.FeedStatusNormal
	o.globalFetch = false

	if !o.cfg.IntelligentSync {
		return models.FeedStatusNormal
	}

	logger := o.logger.With("cycle_id", o.cycleID, "provider", o.cfg.Spec.Provider.String())

	messages, err := o.prefetch(ctx, logger, feeds, totalFeeds, local)
	o.prefetchStatus = StatusFromError(err)
	if err != nil {
		logger.Error("failed to prefetch account messages", "status", o.prefetchStatus.String(), "error", err)
	} else {
		o.prefetched = messages
		logger.Info("prefetch completed", "global_fetch", o.globalFetch, "messages", len(messages))
	}

	if o.observer != nil {
		o.observer.PrefetchCompleted(o.cfg.Spec.Provider.String(), o.globalFetch, len(o.prefetched), o.prefetchStatus)
	}
	return o.prefetchStatus
}

func (o *SyncOrchestrator) prefetch(ctx context.Context, logger *slog.Logger, feeds []models.Feed, totalFeeds int, local models.LocalState) ([]models.Message, error) {
	if err := o.client.Session().EnsureLogin(ctx); err != nil {
		return nil, err
	}

	o.globalFetch = ShouldFetchGlobally(len(feeds), totalFeeds, o.cfg.GlobalThreshold)
	logger.Debug("selected fetch strategy",
		"feeds_updating", len(feeds),
		"feeds_total", totalFeeds,
		"threshold", o.cfg.GlobalThreshold,
		"global_fetch", o.globalFetch)

	remoteStarred, err := o.client.ItemIDs(ctx, StreamStarred, 0, StreamQuery{NewerThan: o.newerThan()})
	if err != nil {
		return nil, err
	}
	toDownload := StarredDelta(local.Starred(), models.NewIDSet(remoteStarred...))

	if o.globalFetch {
		remote, err := o.remoteSnapshot(ctx, StreamReadingList)
		if err != nil {
			return nil, err
		}

		localRead, localUnread := models.NewIDSet(), models.NewIDSet()
		for _, sets := range local {
			localRead = localRead.Union(sets.Read)
			localUnread = localUnread.Union(sets.Unread)
		}

		toDownload = toDownload.Union(Reconcile(ReconcileInput{
			RemoteAll:    remote.All,
			RemoteUnread: remote.Unread,
			LocalRead:    localRead,
			LocalUnread:  localUnread,
			UnreadOnly:   o.cfg.UnreadOnly,
		}))
	}

	return o.fetchContents(ctx, toDownload)
}

// remoteSnapshot lists all and unread ids of a stream; All stays nil in unread-only mode
func (o *SyncOrchestrator) remoteSnapshot(ctx context.Context, streamID string) (models.RemoteIDSnapshot, error) {
	var snapshot models.RemoteIDSnapshot

	if !o.cfg.UnreadOnly {
		all, err := o.client.ItemIDs(ctx, streamID, 0, StreamQuery{NewerThan: o.newerThan()})
		if err != nil {
			return snapshot, err
		}
		snapshot.All = models.NewIDSet(all...)
	}

	unread, err := o.client.ItemIDs(ctx, streamID, 0, StreamQuery{UnreadOnly: true, NewerThan: o.newerThan()})
	if err != nil {
		return snapshot, err
	}
	snapshot.Unread = models.NewIDSet(unread...)
	return snapshot, nil
}

func (o *SyncOrchestrator) fetchContents(ctx context.Context, ids models.IDSet) ([]models.Message, error) {
	if ids.Len() == 0 {
		return nil, nil
	}

	codec := o.client.Codec()
	requestIDs := ids.Slice()
	for i, id := range requestIDs {
		requestIDs[i] = codec.ToRequestForm(id)
	}

	items, err := o.batches.Fetch(ctx, requestIDs)
	if err != nil {
		return nil, err
	}
	return o.decoder.Decode(items, "", o.liveLabels)
}

// FetchFeedMessages returns the messages to store for one feed of the current cycle
func (o *SyncOrchestrator) FetchFeedMessages(ctx context.Context, feed models.Feed, local models.MessageStateSets) ([]models.Message, models.FeedStatus) {
	messages, err := o.fetchFeed(ctx, feed, local)
	status := StatusFromError(err)
	if err != nil {
		o.logger.Error("failed to fetch feed messages",
			"cycle_id", o.cycleID,
			"stream_id", feed.CustomID,
			"status", status.String(),
			"error", err)
		messages = nil
	}

	if o.observer != nil {
		o.observer.FeedCompleted(o.cfg.Spec.Provider.String(), len(messages), status)
	}
	return messages, status
}

func (o *SyncOrchestrator) fetchFeed(ctx context.Context, feed models.Feed, local models.MessageStateSets) ([]models.Message, error) {
	if !o.cfg.IntelligentSync {
		items, err := o.client.StreamContents(ctx, feed.CustomID, o.cfg.BatchSize, StreamQuery{
			UnreadOnly: o.cfg.UnreadOnly,
			NewerThan:  o.newerThan(),
		})
		if err != nil {
			return nil, err
		}
		return o.decoder.Decode(items, feed.CustomID, o.liveLabels)
	}

	if o.prefetchStatus != models.FeedStatusNormal {
		return nil, &SyncError{Kind: kindForStatus(o.prefetchStatus), Op: "prefetch", Stream: feed.CustomID, Err: ErrPrefetchFailed}
	}

	var messages []models.Message
	if !o.globalFetch {
		remote, err := o.remoteSnapshot(ctx, feed.CustomID)
		if err != nil {
			return nil, err
		}

		toDownload := Reconcile(ReconcileInput{
			RemoteAll:    remote.All,
			RemoteUnread: remote.Unread,
			LocalRead:    local.Read,
			LocalUnread:  local.Unread,
			UnreadOnly:   o.cfg.UnreadOnly,
		})

		messages, err = o.fetchContents(ctx, toDownload)
		if err != nil {
			return nil, err
		}
	}

	return o.drain(feed.CustomID, messages), nil
}

// drain moves every cached message of the feed into messages, skipping ids
// already present. Drained entries leave the cache even when skipped.
func (o *SyncOrchestrator) drain(feedID string, messages []models.Message) []models.Message {
	present := models.NewIDSet(models.MessageCustomIDs(messages)...)
	kept := make([]models.Message, 0, len(o.prefetched))

	for _, msg := range o.prefetched {
		if msg.FeedID != feedID {
			kept = append(kept, msg)
			continue
		}
		if !present.Has(msg.CustomID) {
			messages = append(messages, msg)
			present.Add(msg.CustomID)
		}
	}

	o.prefetched = kept
	return messages
}

// FetchTree downloads and decodes the category, feed and label tree and
// makes its labels the live labels for message decoding
func (o *SyncOrchestrator) FetchTree(ctx context.Context, wantIcons bool) (*models.Tree, models.FeedStatus) {
	tags, err := o.client.TagList(ctx)
	if err != nil {
		return nil, o.failed("tag_list", err)
	}
	subs, err := o.client.SubscriptionList(ctx)
	if err != nil {
		return nil, o.failed("subscription_list", err)
	}

	tree := o.tree.Decode(ctx, tags, subs, wantIcons)

	labelIDs := make([]string, 0, len(tree.Labels()))
	for _, idx := range tree.Labels() {
		labelIDs = append(labelIDs, tree.Node(idx).CustomID)
	}
	o.SetActiveLabels(labelIDs)

	return tree, models.FeedStatusNormal
}

// EditMessageState assigns or removes a state stream such as StreamRead on messages
func (o *SyncOrchestrator) EditMessageState(ctx context.Context, state string, assign bool, ids []string) models.FeedStatus {
	if len(ids) == 0 {
		return models.FeedStatusNormal
	}
	if err := o.client.EditTags(ctx, state, assign, ids); err != nil {
		return o.failed("edit_tag", err)
	}
	o.logger.Info("edited message state", "state", state, "assign", assign, "messages", len(ids))
	return models.FeedStatusNormal
}

// MarkMessagesRead marks messages read (or unread when read is false)
func (o *SyncOrchestrator) MarkMessagesRead(ctx context.Context, read bool, ids []string) models.FeedStatus {
	return o.EditMessageState(ctx, StreamRead, read, ids)
}

// MarkMessagesStarred stars (or unstars) messages
func (o *SyncOrchestrator) MarkMessagesStarred(ctx context.Context, starred bool, ids []string) models.FeedStatus {
	return o.EditMessageState(ctx, StreamStarred, starred, ids)
}

// UserInfo returns the account metadata reported by the provider
func (o *SyncOrchestrator) UserInfo(ctx context.Context) (map[string]any, models.FeedStatus) {
	info, err := o.client.UserInfo(ctx)
	if err != nil {
		return nil, o.failed("user_info", err)
	}
	return info, models.FeedStatusNormal
}

func (o *SyncOrchestrator) failed(op string, err error) models.FeedStatus {
	status := StatusFromError(err)
	o.logger.Error("sync operation failed", "op", op, "status", status.String(), "error", err)
	return status
}
