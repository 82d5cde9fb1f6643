// ABOUTME: Request and response types of the admin API
// ABOUTME: Validation rules live in the validate tags and are enforced by security.RequestValidator

package models

import "time"

// Flags a MessageStateRequest can change
const (
	FlagRead    = "read"
	FlagStarred = "starred"
)

// MessageStateRequest changes the read or starred state of messages
type MessageStateRequest struct {
	IDs   []string `json:"ids" validate:"required,min=1,max=1000,dive,greader_id"`
	Flag  string   `json:"flag" validate:"required,oneof=read starred"`
	Value *bool    `json:"value" validate:"required"`
}

// SyncRequest limits a manual sync to some feeds; an empty body syncs all of them
type SyncRequest struct {
	Feeds []string `json:"feeds" validate:"omitempty,max=1000,dive,required,max=2048,safe_text"`
}

// RunsQuery pages the sync run history
type RunsQuery struct {
	Limit int `query:"limit" validate:"omitempty,min=1,max=200"`
}

// OAuthCallbackRequest carries the provider's redirect parameters
type OAuthCallbackRequest struct {
	Code  string `query:"code" validate:"required,max=2048,safe_text"`
	State string `query:"state" validate:"required,max=512,safe_text"`
	Error string `query:"error" validate:"omitempty,max=256,safe_text"`
}

// AdminAPIResponse is the envelope of every admin API response
type AdminAPIResponse struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message,omitempty"`
	Data      any       `json:"data,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
