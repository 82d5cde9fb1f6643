// ABOUTME: Pure set reconciliation deciding which remote items must be downloaded
// ABOUTME: Also holds the global-vs-per-feed strategy rule used by the orchestrator

package service

import "greader-sync/models"

// ReconcileInput is the local and remote view of one scope (account or feed).
// RemoteAll is ignored in unread-only mode. Nil sets are treated as empty.
type ReconcileInput struct {
	RemoteAll     models.IDSet
	RemoteUnread  models.IDSet
	RemoteStarred models.IDSet
	LocalRead     models.IDSet
	LocalUnread   models.IDSet
	LocalStarred  models.IDSet
	UnreadOnly    bool
}

// Reconcile returns the ids whose contents must be fetched
func Reconcile(in ReconcileInput) models.IDSet {
	known := in.LocalRead.Union(in.LocalUnread)

	var toDownload models.IDSet
	if in.UnreadOnly {
		toDownload = in.RemoteUnread.Minus(known)
	} else {
		toDownload = in.RemoteAll.Minus(known)
	}

	// read locally, unread remotely
	toDownload = toDownload.Union(in.LocalRead.Intersect(in.RemoteUnread))

	if !in.UnreadOnly {
		remoteRead := in.RemoteAll.Minus(in.RemoteUnread)
		// unread locally, read remotely
		toDownload = toDownload.Union(in.LocalUnread.Intersect(remoteRead))
	}

	return toDownload.Union(StarredDelta(in.LocalStarred, in.RemoteStarred))
}

// StarredDelta is the symmetric difference of the local and remote starred sets
func StarredDelta(local, remote models.IDSet) models.IDSet {
	return remote.Minus(local).Union(local.Minus(remote))
}

// ShouldFetchGlobally picks one account-wide pass when the share of feeds
// being updated is strictly above threshold. totalFeeds counts leaf feeds only.
func ShouldFetchGlobally(updatingFeeds, totalFeeds int, threshold float64) bool {
	if totalFeeds <= 0 {
		return updatingFeeds > 0
	}
	return float64(updatingFeeds)/float64(totalFeeds) > threshold
}
