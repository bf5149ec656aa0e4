package model

import "time"

// Setting keys understood by the server. Unknown keys are stored but ignored.
const (
	SettingPassingPercentage = "passing_percentage"
	SettingAllowRetakes      = "allow_retakes"
)

// DefaultPassingPercentage applies when the setting is missing or malformed.
const DefaultPassingPercentage = 60.0

// SystemSetting is a key-value pair of global configuration.
type SystemSetting struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UpdateSettingsRequest is the payload for bulk updating settings.
type UpdateSettingsRequest struct {
	Settings map[string]string `json:"settings" binding:"required,min=1"`
}
