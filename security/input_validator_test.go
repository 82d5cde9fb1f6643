// ABOUTME: This file tests admin API request validation
// ABOUTME: Covers the custom message id, account and safe text rules

package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"greader-sync/models"
)

func boolPtr(v bool) *bool {
	return &v
}

func TestRequestValidator_MessageState(t *testing.T) {
	v := NewRequestValidator()

	tests := map[string]struct {
		req       models.MessageStateRequest
		wantField string
	}{
		"valid_long_ids": {
			req: models.MessageStateRequest{
				IDs:   []string{"tag:google.com,2005:reader/item/000000000000001f", "42"},
				Flag:  "read",
				Value: boolPtr(true),
			},
		},
		"missing_ids": {
			req:       models.MessageStateRequest{Flag: "read", Value: boolPtr(true)},
			wantField: "ids",
		},
		"bad_flag": {
			req:       models.MessageStateRequest{IDs: []string{"1"}, Flag: "archived", Value: boolPtr(true)},
			wantField: "flag",
		},
		"missing_value": {
			req:       models.MessageStateRequest{IDs: []string{"1"}, Flag: "starred"},
			wantField: "value",
		},
		"id_with_space": {
			req:       models.MessageStateRequest{IDs: []string{"1 2"}, Flag: "read", Value: boolPtr(false)},
			wantField: "ids[0]",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			err := v.Validate(&tc.req)
			if tc.wantField == "" {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Errors, tc.wantField)
		})
	}
}

func TestRequestValidator_OAuthCallback(t *testing.T) {
	v := NewRequestValidator()

	assert.NoError(t, v.Validate(&models.OAuthCallbackRequest{Code: "abc123", State: "state-1"}))

	err := v.Validate(&models.OAuthCallbackRequest{Code: "abc\x00", State: "s"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "code contains forbidden characters", verr.Errors["code"])

	err = v.Validate(&models.OAuthCallbackRequest{Code: "../../etc/passwd", State: "s"})
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Errors, "code")
}

func TestRequestValidator_RunsQuery(t *testing.T) {
	v := NewRequestValidator()

	assert.NoError(t, v.Validate(&models.RunsQuery{}))
	assert.NoError(t, v.Validate(&models.RunsQuery{Limit: 50}))
	assert.Error(t, v.Validate(&models.RunsQuery{Limit: 500}))
}

func TestRequestValidator_AccountID(t *testing.T) {
	v := NewRequestValidator()

	tests := map[string]bool{
		"home":           true,
		"work_account-2": true,
		"":               false,
		"../secret":      false,
		"has space":      false,
	}
	for account, ok := range tests {
		err := v.ValidateAccountID(account)
		assert.Equal(t, ok, err == nil, "account %q", account)
	}
}

func TestValidationError_Error(t *testing.T) {
	err := &ValidationError{Errors: map[string]string{"b": "second", "a": "first"}}
	assert.Equal(t, "validation failed: a: first, b: second", err.Error())
}

func TestSanitizeString(t *testing.T) {
	tests := map[string]string{
		"  padded  ":       "padded",
		"line\nbreak":      "line break",
		"null\x00byte":     "nullbyte",
		"many   \t spaces": "many spaces",
		"":                 "",
	}
	for input, want := range tests {
		assert.Equal(t, want, SanitizeString(input), "input %q", input)
	}
}
