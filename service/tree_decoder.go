// ABOUTME: Builds the category, feed and label tree from tag-list and subscription-list payloads
// ABOUTME: Optionally resolves feed icons through an IconResolver

package service

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"strings"

	"greader-sync/driver"
	"greader-sync/models"
	"greader-sync/utils"
)

// SponsoredStreamPrefix marks promotional subscriptions that are never imported
const SponsoredStreamPrefix = "tor/sponsored"

// TreeDecoder converts provider listings into a models.Tree
type TreeDecoder struct {
	spec    models.ProviderSpec
	baseURL string
	icons   IconResolver
	logger  *slog.Logger
}

// NewTreeDecoder creates a decoder; icons may be nil when icons are never wanted
func NewTreeDecoder(spec models.ProviderSpec, baseURL string, icons IconResolver, logger *slog.Logger) *TreeDecoder {
	if logger == nil {
		logger = slog.Default()
	}
	if spec.DefaultBaseURL != "" {
		baseURL = spec.DefaultBaseURL
	}
	return &TreeDecoder{spec: spec, baseURL: baseURL, icons: icons, logger: logger}
}

// Decode builds a fresh tree. Nil payloads are treated as empty lists.
func (d *TreeDecoder) Decode(ctx context.Context, tags *driver.TagListResponse, subs *driver.SubscriptionListResponse, wantIcons bool) *models.Tree {
	if tags == nil {
		tags = &driver.TagListResponse{}
	}
	if subs == nil {
		subs = &driver.SubscriptionListResponse{}
	}

	tree := models.NewTree()
	categories := map[string]int{}
	var labels []models.Node

	addCategory := func(id, description string) {
		idx := tree.Append(tree.Root(), models.Node{
			Kind:        models.NodeCategory,
			CustomID:    id,
			Title:       id[strings.LastIndex(id, "/")+1:],
			Description: description,
		})
		categories[id] = idx
	}

	if d.spec.CategoriesFromSubscriptions {
		for _, sub := range subs.Subscriptions {
			for _, cat := range sub.Categories {
				if _, seen := categories[cat.ID]; !seen {
					addCategory(cat.ID, "")
				}
			}
		}
	}

	for _, tag := range tags.Tags {
		switch {
		case tag.Type == "folder" || (d.spec.LabelTagsAreCategories && strings.Contains(tag.ID, "/label/")):
			if idx, seen := categories[tag.ID]; seen {
				if node := tree.Node(idx); node.Description == "" {
					node.Description = tag.HTMLURL
				}
				continue
			}
			addCategory(tag.ID, tag.HTMLURL)
		case tag.Type == "tag":
			labels = append(labels, newLabelNode(tag.ID))
		case d.spec.LeftoverLabelsAreLabels && strings.Contains(tag.ID, "/label/"):
			if _, isCategory := categories[tag.ID]; !isCategory {
				labels = append(labels, newLabelNode(tag.ID))
			}
		}
	}

	for _, sub := range subs.Subscriptions {
		if strings.HasPrefix(sub.ID, SponsoredStreamPrefix) {
			continue
		}

		parent := tree.Root()
		for _, cat := range sub.Categories {
			if !strings.Contains(cat.ID, "/label/") {
				continue
			}
			if idx, ok := categories[cat.ID]; ok {
				parent = idx
				break
			}
		}

		node := models.Node{
			Kind:        models.NodeFeed,
			CustomID:    sub.ID,
			Title:       sub.Title,
			Description: sub.HTMLURL,
			Source:      sub.HTMLURL,
		}
		if wantIcons {
			node.IconFrom = d.iconCandidates(sub)
			node.Icon = d.resolveIcon(ctx, sub.ID, node.IconFrom)
		}
		tree.Append(parent, node)
	}

	labelsNode := tree.Append(tree.Root(), models.Node{Kind: models.NodeLabels, Title: "Labels"})
	for _, lbl := range labels {
		tree.Append(labelsNode, lbl)
	}

	d.logger.Debug("decoded feed tree",
		"categories", len(categories),
		"labels", len(labels),
		"subscriptions", len(subs.Subscriptions))

	return tree
}

func (d *TreeDecoder) iconCandidates(sub driver.Subscription) []models.IconCandidate {
	var out []models.IconCandidate
	if sub.IconURL != "" {
		out = append(out, models.IconCandidate{
			URL:    utils.NormalizeIconURL(sub.IconURL, d.baseURL, d.spec.AlignIconPort),
			Direct: true,
		})
	}
	return append(out, models.IconCandidate{URL: sub.HTMLURL, Direct: false})
}

func (d *TreeDecoder) resolveIcon(ctx context.Context, feedID string, candidates []models.IconCandidate) []byte {
	if d.icons == nil {
		return nil
	}
	icon, err := d.icons.Resolve(ctx, candidates)
	if err != nil {
		d.logger.Debug("no icon for feed", "feed_id", feedID, "error", err)
		return nil
	}
	return icon
}

func newLabelNode(id string) models.Node {
	return models.Node{
		Kind:     models.NodeLabel,
		CustomID: id,
		Title:    labelTitle(id),
		Color:    labelColor(id),
	}
}

// labelTitle returns the last path segment; ids without one yield ""
func labelTitle(id string) string {
	idx := strings.LastIndex(id, "/")
	if idx <= 0 {
		return ""
	}
	return id[idx+1:]
}

// labelColor derives a stable #rrggbb color from the label id
func labelColor(id string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return fmt.Sprintf("#%06x", h.Sum32()&0xffffff)
}
