package session

// Settings are the global runtime toggles the administrative surface can
// change while the server runs. The registry holds the live copy and
// emits settings_updated whenever it changes.
type Settings struct {
	Enabled         bool   `json:"enabled" yaml:"enabled"`
	RedirectURL     string `json:"redirectUrl" yaml:"redirect_url"`
	BlockVPN        bool   `json:"blockVpn" yaml:"block_vpn"`
	BotFilter       bool   `json:"botFilter" yaml:"bot_filter"`
	EntryStage      string `json:"entryStage" yaml:"entry_stage"`
	PostVerifyStage string `json:"postVerifyStage" yaml:"post_verify_stage"`
}

func DefaultSettings() Settings {
	return Settings{
		Enabled:         true,
		RedirectURL:     "https://example.com",
		EntryStage:      "Gate",
		PostVerifyStage: "Loading",
	}
}
