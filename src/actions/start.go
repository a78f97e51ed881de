package actions

import (
	"context"
	"fmt"
	"log"

	"github.com/stake-plus/storyvote/src/config"
	"github.com/stake-plus/storyvote/src/contest"
	"github.com/stake-plus/storyvote/src/data"
	"github.com/stake-plus/storyvote/src/discord"
	"github.com/stake-plus/storyvote/src/events"
	"github.com/stake-plus/storyvote/src/ledger"
	"github.com/stake-plus/storyvote/src/orchestrator"
	"github.com/stake-plus/storyvote/src/store"
	"github.com/stake-plus/storyvote/src/webserver"
	"gorm.io/gorm"
)

// StartAll wires the contest modules from cfg and starts the manager.
func StartAll(ctx context.Context, db *gorm.DB, cfg config.Config) (*Manager, error) {
	mgr := NewManager()

	reader, err := ledger.NewReader(ledger.ReaderConfig{
		RPCURL:      cfg.Ledger.RPCURL,
		StoryBookID: cfg.Ledger.StoryBookID,
	})
	if err != nil {
		return nil, fmt.Errorf("actions: init book reader: %w", err)
	}
	writer, err := ledger.NewClient(ledger.ClientConfig{
		GatewayURL: cfg.Ledger.GatewayURL,
		APIKey:     cfg.Ledger.GatewayKey,
		Timeout:    cfg.Ledger.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("actions: init ledger client: %w", err)
	}

	var publishers events.Multi
	if cfg.RedisURL != "" {
		rdb, err := data.OpenRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("actions: %w", err)
		}
		publishers = append(publishers, events.NewRedisPublisher(rdb, events.DefaultStream))
		log.Printf("actions: publishing events to redis stream %s", events.DefaultStream)
	} else {
		log.Printf("actions: REDIS_URL not set, event stream disabled")
	}
	if cfg.Discord.Enabled() {
		mod, err := discord.NewModule(cfg.Discord.Token, cfg.Discord.ChannelID)
		if err != nil {
			return nil, fmt.Errorf("actions: init discord module: %w", err)
		}
		publishers = append(publishers, mod.Publisher())
		if err := mgr.Add(mod); err != nil {
			return nil, fmt.Errorf("actions: add discord module: %w", err)
		}
	} else {
		log.Printf("actions: discord announcements disabled via configuration")
	}

	sessions := store.NewSessions(db)
	proposals := store.NewProposals(db)
	stats := store.NewStats(db)

	orch, err := orchestrator.New(orchestrator.Deps{
		Sessions:  sessions,
		Proposals: proposals,
		Stats:     stats,
		Book:      reader,
		Ledger:    writer,
		Events:    publishers,
	}, orchestrator.SettingsFromConfig(cfg.Contest))
	if err != nil {
		return nil, fmt.Errorf("actions: init orchestrator: %w", err)
	}

	if cfg.Contest.SchedulerEnabled {
		if err := mgr.Add(orchestrator.NewScheduler(orch, cfg.Contest.TickInterval)); err != nil {
			return nil, fmt.Errorf("actions: add scheduler: %w", err)
		}
	} else {
		log.Printf("actions: scheduler disabled, rely on /trigger/check-voting")
	}

	api := webserver.NewModule(cfg.Server, webserver.Deps{
		Orchestrator: orch,
		Sessions:     sessions,
		Proposals:    proposals,
		Stats:        stats,
		Contest:      contest.NewService(orch, proposals, stats, publishers),
		Books:        reader,
		Info: webserver.Info{
			StoryBookID:   cfg.Ledger.StoryBookID,
			Countdown:     int(cfg.Contest.Countdown.Seconds()),
			VoteThreshold: cfg.Contest.VoteThreshold,
		},
	})
	if err := mgr.Add(api); err != nil {
		return nil, fmt.Errorf("actions: add webserver: %w", err)
	}

	if err := mgr.Start(ctx); err != nil {
		return nil, err
	}
	return mgr, nil
}
