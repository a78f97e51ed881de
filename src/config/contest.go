package config

import (
	"time"

	"gorm.io/gorm"
)

// ContestConfig tunes round length, thresholds, and rewards.
type ContestConfig struct {
	Countdown        time.Duration
	VoteThreshold    int
	TickInterval     time.Duration
	MinTickInterval  time.Duration
	MaxPerTick       int
	DedupCapacity    int
	CallPause        time.Duration
	StaleResolving   time.Duration
	MaxParagraphs    int
	RewardTitle      int64
	RewardParagraph  int64
	RewardArchive    int64
	SchedulerEnabled bool
}

// LedgerConfig locates the story book object and the signing gateway.
type LedgerConfig struct {
	RPCURL      string
	StoryBookID string
	GatewayURL  string
	GatewayKey  string
	Timeout     time.Duration
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Port           string
	CronAuthToken  string
	AllowedOrigins []string
	WriteRate      int
	WriteWindow    time.Duration
}

// DiscordConfig enables round announcements when a token and channel are set.
type DiscordConfig struct {
	Token     string
	ChannelID string
}

// Enabled reports whether announcements can be posted.
func (d DiscordConfig) Enabled() bool {
	return d.Token != "" && d.ChannelID != ""
}

// Config is the full process configuration.
type Config struct {
	Base
	Contest ContestConfig
	Ledger  LedgerConfig
	Server  ServerConfig
	Discord DiscordConfig
}

// Load reads every section from the settings table with env fallbacks.
func Load(db *gorm.DB) Config {
	base := LoadBase(db)
	return Config{
		Base:    base,
		Contest: LoadContestConfig(),
		Ledger:  LoadLedgerConfig(),
		Server:  LoadServerConfig(),
		Discord: DiscordConfig{
			Token:     GetSetting("discord_token", "DISCORD_TOKEN", ""),
			ChannelID: GetSetting("discord_channel_id", "DISCORD_CHANNEL_ID", ""),
		},
	}
}

// LoadContestConfig reads the contest knobs. Call LoadBase first to warm the settings cache.
func LoadContestConfig() ContestConfig {
	return ContestConfig{
		Countdown:        getSeconds("voting_countdown", "VOTING_COUNTDOWN_SECONDS", 300),
		VoteThreshold:    getPositiveInt("vote_threshold", "VOTE_THRESHOLD", 2),
		TickInterval:     getSeconds("tick_interval", "TICK_INTERVAL_SECONDS", 60),
		MinTickInterval:  getSeconds("min_tick_interval", "MIN_TICK_INTERVAL_SECONDS", 60),
		MaxPerTick:       getPositiveInt("max_resolutions", "MAX_RESOLUTIONS_PER_TICK", 1),
		DedupCapacity:    getPositiveInt("dedup_capacity", "DEDUP_CAPACITY", 50),
		CallPause:        time.Duration(getPositiveInt("call_pause_ms", "CALL_PAUSE_MS", 2000)) * time.Millisecond,
		StaleResolving:   getSeconds("stale_resolving", "STALE_RESOLVING_SECONDS", 600),
		MaxParagraphs:    getPositiveInt("max_paragraphs", "MAX_PARAGRAPHS", 10),
		RewardTitle:      int64(getPositiveInt("reward_title", "REWARD_TITLE", 100)),
		RewardParagraph:  int64(getPositiveInt("reward_paragraph", "REWARD_PARAGRAPH", 20)),
		RewardArchive:    int64(getPositiveInt("reward_archive", "REWARD_ARCHIVE", 70)),
		SchedulerEnabled: getBoolSetting("enable_scheduler", "ENABLE_SCHEDULER", true),
	}
}

// LoadLedgerConfig reads the Sui RPC and gateway endpoints.
func LoadLedgerConfig() LedgerConfig {
	return LedgerConfig{
		RPCURL:      GetSetting("sui_rpc_url", "SUI_RPC_URL", "https://fullnode.testnet.sui.io:443"),
		StoryBookID: GetSetting("storybook_id", "STORYBOOK_ID", ""),
		GatewayURL:  GetSetting("ledger_gateway_url", "LEDGER_GATEWAY_URL", ""),
		GatewayKey:  GetSetting("ledger_gateway_key", "LEDGER_GATEWAY_KEY", ""),
		Timeout:     getSeconds("ledger_timeout", "LEDGER_TIMEOUT_SECONDS", 60),
	}
}

// LoadServerConfig reads HTTP settings.
func LoadServerConfig() ServerConfig {
	origins := parseCSV(GetSetting("allowed_origins", "ALLOWED_ORIGINS", "http://localhost:5173"))
	return ServerConfig{
		Port:           GetSetting("port", "PORT", "3001"),
		CronAuthToken:  GetSetting("cron_auth_token", "CRON_AUTH_TOKEN", ""),
		AllowedOrigins: origins,
		WriteRate:      getPositiveInt("write_rate", "WRITE_RATE", 30),
		WriteWindow:    getSeconds("write_window", "WRITE_WINDOW_SECONDS", 60),
	}
}
