package repository

import (
	"encoding/json"

	"greader-sync/models"
)

type feedRow struct {
	customID   string
	title      string
	categoryID string
	source     string
	icon       []byte
}

type labelRow struct {
	customID string
	title    string
	color    string
}

// treeRows flattens a tree into the feed and label rows stored per account.
// A feed's category is its parent when that parent is a category node.
func treeRows(tree *models.Tree) ([]feedRow, []labelRow) {
	var feeds []feedRow
	for _, idx := range tree.Feeds() {
		node := tree.Node(idx)
		row := feedRow{customID: node.CustomID, title: node.Title, source: node.Source, icon: node.Icon}
		if node.Parent >= 0 {
			if parent := tree.Node(node.Parent); parent.Kind == models.NodeCategory {
				row.categoryID = parent.CustomID
			}
		}
		feeds = append(feeds, row)
	}

	var labels []labelRow
	for _, idx := range tree.Labels() {
		node := tree.Node(idx)
		labels = append(labels, labelRow{customID: node.CustomID, title: node.Title, color: node.Color})
	}
	return feeds, labels
}

func encodeEnclosures(enclosures []models.Enclosure) string {
	if len(enclosures) == 0 {
		return "[]"
	}
	data, err := json.Marshal(enclosures)
	if err != nil {
		return "[]"
	}
	return string(data)
}

// addToState files one stored message into the feed's read/unread/starred sets
func addToState(state models.LocalState, feedID, customID string, isRead, isImportant bool) {
	sets, ok := state[feedID]
	if !ok {
		sets = models.MessageStateSets{
			Read:    models.NewIDSet(),
			Unread:  models.NewIDSet(),
			Starred: models.NewIDSet(),
		}
		state[feedID] = sets
	}
	if isRead {
		sets.Read.Add(customID)
	} else {
		sets.Unread.Add(customID)
	}
	if isImportant {
		sets.Starred.Add(customID)
	}
}
