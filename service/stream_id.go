// ABOUTME: Converts item ids between the long tag:google.com form and provider short ids
// ABOUTME: Also simplifies user-scoped stream ids for comparison

package service

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"greader-sync/models"
)

// LongIDPrefix starts every canonical item id
const LongIDPrefix = "tag:google.com,2005:reader/item/"

var userSegment = regexp.MustCompile(`/\d+/`)

// StreamIDCodec converts item ids between the canonical long form and the
// provider's native short form
type StreamIDCodec struct {
	spec models.ProviderSpec
}

func NewStreamIDCodec(spec models.ProviderSpec) StreamIDCodec {
	return StreamIDCodec{spec: spec}
}

// ToLong returns the canonical long form of id. Numeric short ids become
// 16 hex digits; opaque or non-numeric ids are wrapped unchanged.
func (c StreamIDCodec) ToLong(id string) string {
	if strings.HasPrefix(id, LongIDPrefix) {
		return id
	}
	if c.spec.OpaqueShortIDs {
		return LongIDPrefix + id
	}
	n, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return LongIDPrefix + id
	}
	return fmt.Sprintf("%s%016x", LongIDPrefix, n)
}

// ToShort renders a long id as the decimal short form. Input that is not a
// long hex id is returned unchanged.
func (c StreamIDCodec) ToShort(id string) string {
	rest, ok := strings.CutPrefix(id, LongIDPrefix)
	if !ok {
		return id
	}
	if c.spec.OpaqueShortIDs {
		return rest
	}
	n, err := strconv.ParseUint(rest, 16, 64)
	if err != nil {
		return id
	}
	return strconv.FormatUint(n, 10)
}

// ToRequestForm converts a long id to whatever the provider expects in requests
func (c StreamIDCodec) ToRequestForm(id string) string {
	if c.spec.ShortIDsInRequests {
		return c.ToShort(id)
	}
	return id
}

// ToLongSet converts every id of a remote listing to long form
func (c StreamIDCodec) ToLongSet(ids []string) models.IDSet {
	out := make(models.IDSet, len(ids))
	for _, id := range ids {
		out.Add(c.ToLong(id))
	}
	return out
}

// SimplifyStreamID replaces numeric user segments with "/-/" so stream ids
// compare equal across accounts
func SimplifyStreamID(id string) string {
	// adjacent segments such as /1/2/ share a slash, so repeat until stable
	for {
		out := userSegment.ReplaceAllString(id, "/-/")
		if out == id {
			return out
		}
		id = out
	}
}
