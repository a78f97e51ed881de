package config

import (
	"testing"
	"time"

	"github.com/stake-plus/storyvote/src/data"
	"github.com/stake-plus/storyvote/src/data/sqlitetest"
	"github.com/stake-plus/storyvote/src/types"
	"gorm.io/gorm"
)

func TestLoadContestConfigDefaults(t *testing.T) {
	t.Setenv("VOTE_THRESHOLD", "")
	t.Setenv("VOTING_COUNTDOWN_SECONDS", "")
	loadSettings(t)

	cfg := LoadContestConfig()
	if cfg.Countdown != 300*time.Second {
		t.Fatalf("countdown = %v, want 5m", cfg.Countdown)
	}
	if cfg.VoteThreshold != 2 {
		t.Fatalf("threshold = %d, want 2", cfg.VoteThreshold)
	}
	if cfg.MaxPerTick != 1 || cfg.DedupCapacity != 50 || cfg.MaxParagraphs != 10 {
		t.Fatalf("unexpected limits: %+v", cfg)
	}
	if cfg.RewardTitle != 100 || cfg.RewardParagraph != 20 || cfg.RewardArchive != 70 {
		t.Fatalf("unexpected rewards: %+v", cfg)
	}
}

func TestSettingsTableOverridesEnv(t *testing.T) {
	t.Setenv("VOTE_THRESHOLD", "4")
	t.Setenv("VOTING_COUNTDOWN_SECONDS", "90")
	loadSettings(t, types.Setting{ID: 1, Name: "vote_threshold", Value: "7", Active: 1})

	cfg := LoadContestConfig()
	if cfg.VoteThreshold != 7 {
		t.Fatalf("threshold = %d, want settings value 7", cfg.VoteThreshold)
	}
	if cfg.Countdown != 90*time.Second {
		t.Fatalf("countdown = %v, want env value 90s", cfg.Countdown)
	}
}

func TestInvalidNumbersFallBack(t *testing.T) {
	t.Setenv("MAX_RESOLUTIONS_PER_TICK", "lots")
	t.Setenv("DEDUP_CAPACITY", "-3")
	loadSettings(t)

	cfg := LoadContestConfig()
	if cfg.MaxPerTick != 1 {
		t.Fatalf("max per tick = %d, want 1", cfg.MaxPerTick)
	}
	if cfg.DedupCapacity != 50 {
		t.Fatalf("dedup capacity = %d, want 50", cfg.DedupCapacity)
	}
}

func TestServerOriginsAndDiscord(t *testing.T) {
	t.Setenv("ALLOWED_ORIGINS", "https://story.example, http://localhost:5173")
	t.Setenv("DISCORD_TOKEN", "tok")
	t.Setenv("DISCORD_CHANNEL_ID", "")
	db := loadSettings(t)

	cfg := Load(db)
	if len(cfg.Server.AllowedOrigins) != 2 || cfg.Server.AllowedOrigins[0] != "https://story.example" {
		t.Fatalf("origins = %v", cfg.Server.AllowedOrigins)
	}
	if cfg.Discord.Enabled() {
		t.Fatalf("discord enabled without a channel")
	}
}

func TestParseBoolDefault(t *testing.T) {
	cases := map[string]bool{"yes": true, "0": false, "OFF": false, "maybe": true}
	for in, want := range cases {
		if got := parseBoolDefault(in, true); got != want {
			t.Fatalf("parseBoolDefault(%q) = %v, want %v", in, got, want)
		}
	}
}

func loadSettings(t *testing.T, rows ...types.Setting) *gorm.DB {
	t.Helper()
	db := sqlitetest.Open(t)
	if len(rows) > 0 {
		if err := db.Create(&rows).Error; err != nil {
			t.Fatalf("seed settings: %v", err)
		}
	}
	if _, err := data.LoadSettings(db); err != nil {
		t.Fatalf("load settings: %v", err)
	}
	return db
}
