package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingFetcher struct {
	batches [][]string
	failOn  int
}

func (f *recordingFetcher) ItemContents(_ context.Context, ids []string) ([]json.RawMessage, error) {
	f.batches = append(f.batches, append([]string(nil), ids...))
	if len(f.batches)-1 == f.failOn {
		return nil, errors.New("batch failed")
	}
	out := make([]json.RawMessage, 0, len(ids))
	for _, id := range ids {
		out = append(out, json.RawMessage(`"`+id+`"`))
	}
	return out, nil
}

func TestBatchFetcher_Fetch(t *testing.T) {
	ids := []string{"a", "b", "c", "d", "e"}

	tests := map[string]struct {
		batchSize       int
		failOn          int
		expectedBatches [][]string
		expectErr       bool
	}{
		"chunks in order": {
			batchSize:       2,
			failOn:          -1,
			expectedBatches: [][]string{{"a", "b"}, {"c", "d"}, {"e"}},
		},
		"single chunk": {
			batchSize:       999,
			failOn:          -1,
			expectedBatches: [][]string{ids},
		},
		"second chunk fails": {
			batchSize:       2,
			failOn:          1,
			expectedBatches: [][]string{{"a", "b"}, {"c", "d"}},
			expectErr:       true,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			fetcher := &recordingFetcher{failOn: tc.failOn}
			items, err := NewBatchFetcher(fetcher, tc.batchSize, nil).Fetch(context.Background(), ids)

			assert.Equal(t, tc.expectedBatches, fetcher.batches)
			if tc.expectErr {
				assert.Error(t, err)
				assert.Nil(t, items)
				return
			}
			require.NoError(t, err)
			require.Len(t, items, len(ids))
			for i, id := range ids {
				assert.JSONEq(t, `"`+id+`"`, string(items[i]))
			}
		})
	}
}

func TestBatchFetcher_NoIDs(t *testing.T) {
	fetcher := &recordingFetcher{failOn: -1}
	items, err := NewBatchFetcher(fetcher, 100, nil).Fetch(context.Background(), nil)

	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Empty(t, fetcher.batches)
}
