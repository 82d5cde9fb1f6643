package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"greader-sync/models"
)

func TestQuotaGuard_CheckAllowed(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := map[string]struct {
		usage   *models.APIUsage
		wantErr bool
	}{
		"no_headers_seen": {},
		"plenty_left": {
			usage: &models.APIUsage{Zone1Usage: 100, Zone1Limit: 1000, ResetAt: now.Add(time.Hour)},
		},
		"inside_safety_buffer": {
			usage:   &models.APIUsage{Zone1Usage: 950, Zone1Limit: 1000, ResetAt: now.Add(time.Hour)},
			wantErr: true,
		},
		"exactly_at_buffer": {
			usage:   &models.APIUsage{Zone1Usage: 900, Zone1Limit: 1000, ResetAt: now.Add(time.Hour)},
			wantErr: true,
		},
		"window_already_reset": {
			usage: &models.APIUsage{Zone1Usage: 1000, Zone1Limit: 1000, ResetAt: now.Add(-time.Second)},
		},
		"no_limit_reported": {
			usage: &models.APIUsage{Zone2Usage: 10, Zone2Limit: 20},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			g := NewQuotaGuard(10, nil)
			g.now = func() time.Time { return now }
			if tc.usage != nil {
				g.Update(*tc.usage)
			}

			err := g.CheckAllowed()
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrQuotaExhausted)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestQuotaGuard_UpdateNotifiesAndAlertsOnce(t *testing.T) {
	g := NewQuotaGuard(10, nil)
	var seen []models.APIUsage
	g.OnUpdate(func(u models.APIUsage) { seen = append(seen, u) })

	reset := time.Now().Add(time.Hour)
	g.Update(models.APIUsage{Zone1Usage: 80, Zone1Limit: 100, ResetAt: reset})
	g.Update(models.APIUsage{Zone1Usage: 81, Zone1Limit: 100, ResetAt: reset})

	require.Len(t, seen, 2)
	assert.True(t, g.alerted[75])
	assert.False(t, g.alerted[90])

	usage, ok := g.Usage()
	require.True(t, ok)
	assert.Equal(t, 81, usage.Zone1Usage)

	// a later reset time starts a new window
	g.Update(models.APIUsage{Zone1Usage: 1, Zone1Limit: 100, ResetAt: reset.Add(24 * time.Hour)})
	assert.False(t, g.alerted[75])
}

func TestNewQuotaGuard_ClampsBuffer(t *testing.T) {
	assert.Equal(t, 10, NewQuotaGuard(150, nil).safetyBufferPercent)
	assert.Equal(t, 0, NewQuotaGuard(0, nil).safetyBufferPercent)
}
