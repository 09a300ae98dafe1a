package controllers

import "github.com/mlefebvre/suggestarr/internal/settings"

// DefaultSettings declares the application-level settings the
// controllers read
func DefaultSettings() []settings.Spec {
	return []settings.Spec{
		{Group: "app", Name: "recent_limit", Type: settings.TypeInt, Default: "30", Description: "How many recent watch history rows feed a cycle"},
		{Group: "app", Name: "suggestion_limit", Type: settings.TypeInt, Default: "5", Description: "How many suggestions to ask the model for"},
		{Group: "app", Name: "media_type", Type: settings.TypeString, Default: "movie or tv", Description: "Media type hint passed to the model"},
		{Group: "app", Name: "prompt_template", Type: settings.TypeString, Default: "", Description: "Custom prompt template, empty for the built-in one"},
		{Group: "app", Name: "auto_request", Type: settings.TypeBool, Default: "false", Description: "File new suggestions with a request provider automatically"},
		{Group: "app", Name: "sync_limit", Type: settings.TypeInt, Default: "100", Description: "How many history rows to pull per user per sync"},
		{Group: "app", Name: "test_mode", Type: settings.TypeBool, Default: "false", Description: "Record suggestions without sending any requests"},
	}
}
