package config

// Persistent state keys for settings changed at runtime.
const (
	KeyVolume         = "settings_volume"
	KeyWordsPerSecond = "settings_words_per_second"
	KeyCaptionWidth   = "settings_caption_width"
	KeyArrivalRadius  = "settings_arrival_radius"
)

// RuntimeKeys lists the keys accepted by the settings API.
var RuntimeKeys = []string{KeyVolume, KeyWordsPerSecond, KeyCaptionWidth, KeyArrivalRadius}
