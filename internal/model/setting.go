package model

import "time"

// Well-known setting keys.
const (
	// SettingPassThreshold overrides PASS_THRESHOLD at runtime.
	SettingPassThreshold = "pass_threshold"
	// SettingSiteName is shown on the student portal.
	SettingSiteName = "site_name"
)

// PublicSettingKeys lists the settings exposed without authentication.
var PublicSettingKeys = []string{SettingSiteName, SettingPassThreshold}

// AppSetting represents a key-value pair for global application configuration.
type AppSetting struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UpdateSettingsRequest is the payload for bulk updating settings.
type UpdateSettingsRequest struct {
	Settings map[string]string `json:"settings" binding:"required,min=1,dive,keys,min=1,max=64,endkeys,max=2000"`
}
