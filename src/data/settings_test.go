package data_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stake-plus/storyvote/src/data"
	"github.com/stake-plus/storyvote/src/data/sqlitetest"
	"github.com/stake-plus/storyvote/src/types"
)

func TestLoadSettingsSkipsInactiveRows(t *testing.T) {
	db := sqlitetest.Open(t)

	rows := []types.Setting{
		{ID: 1, Name: "vote_threshold", Value: "5", Active: 1},
		{ID: 2, Name: "voting_countdown", Value: "120", Active: 0},
	}
	if err := db.Create(&rows).Error; err != nil {
		t.Fatalf("seed settings: %v", err)
	}

	n, err := data.LoadSettings(db)
	if err != nil {
		t.Fatalf("load settings: %v", err)
	}
	if n != 1 {
		t.Fatalf("loaded %d settings, want 1", n)
	}
	if got := data.GetSetting("vote_threshold"); got != "5" {
		t.Fatalf("vote_threshold = %q, want 5", got)
	}
	if got := data.GetSetting("voting_countdown"); got != "" {
		t.Fatalf("inactive setting leaked: %q", got)
	}
}

func TestLoadSettingsLastRowWins(t *testing.T) {
	db := sqlitetest.Open(t)
	rows := []types.Setting{
		{ID: 1, Name: "vote_threshold", Value: "3", Active: 1},
		{ID: 2, Name: "vote_threshold", Value: " 4 ", Active: 1},
		{ID: 3, Name: "trigger_token", Value: "", Active: 1},
	}
	if err := db.Create(&rows).Error; err != nil {
		t.Fatalf("seed settings: %v", err)
	}
	if _, err := data.LoadSettings(db); err != nil {
		t.Fatalf("load settings: %v", err)
	}
	if got := data.GetSetting("vote_threshold"); got != "4" {
		t.Fatalf("vote_threshold = %q, want 4", got)
	}
	if _, ok := data.LookupSetting("trigger_token"); ok {
		t.Fatalf("empty setting reported as set")
	}
}

func TestOpenRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb, err := data.OpenRedis(context.Background(), "redis://"+mr.Addr())
	if err != nil {
		t.Fatalf("OpenRedis: %v", err)
	}
	defer rdb.Close()

	if _, err := data.OpenRedis(context.Background(), "not a url"); err == nil {
		t.Fatalf("malformed url accepted")
	}
	mr.Close()
	if _, err := data.OpenRedis(context.Background(), "redis://"+mr.Addr()); err == nil {
		t.Fatalf("unreachable server accepted")
	}
}

func TestNormalizeDSN(t *testing.T) {
	dsn := data.NormalizeDSN("user:pw@tcp(db:3306)/story")
	want := "user:pw@tcp(db:3306)/story?parseTime=true&loc=UTC&charset=utf8mb4&collation=utf8mb4_unicode_ci"
	if dsn != want {
		t.Fatalf("dsn = %q, want %q", dsn, want)
	}
}

func TestNormalizeDSNKeepsExplicitCharset(t *testing.T) {
	dsn := data.NormalizeDSN("u@tcp(db)/story?charset=latin1&parseTime=false")
	want := "u@tcp(db)/story?charset=latin1&parseTime=false&loc=UTC"
	if dsn != want {
		t.Fatalf("dsn = %q, want %q", dsn, want)
	}
}
