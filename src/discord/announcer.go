package discord

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stake-plus/storyvote/src/actions/core"
	"github.com/stake-plus/storyvote/src/events"
	"github.com/stake-plus/storyvote/src/types"
)

const (
	colorCompleted = 0x2ECC71
	colorFailed    = 0xE74C3C
	colorOpened    = 0x3498DB

	embedDescriptionLimit = 4096
)

type sender interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Announcer posts round results and new rounds to a channel.
type Announcer struct {
	sender    sender
	channelID string
}

var _ events.Publisher = (*Announcer)(nil)

func NewAnnouncer(s sender, channelID string) *Announcer {
	return &Announcer{sender: s, channelID: channelID}
}

// Publish implements events.Publisher. Proposal and vote events are not announced.
func (a *Announcer) Publish(_ context.Context, ev events.Event) error {
	msg := BuildAnnouncement(ev)
	if msg == nil {
		return nil
	}
	if _, err := a.sender.ChannelMessageSendComplex(a.channelID, msg); err != nil {
		return fmt.Errorf("discord: announce %s for session %d: %w", ev.Kind, ev.SessionID, err)
	}
	return nil
}

// BuildAnnouncement renders ev as an embed, or nil when ev is not announced.
func BuildAnnouncement(ev events.Event) *discordgo.MessageSend {
	var embed *discordgo.MessageEmbed
	switch ev.Kind {
	case events.SessionCreated:
		embed = &discordgo.MessageEmbed{
			Title:       fmt.Sprintf("Voting open: %s", ev.SessionType),
			Description: openedDescription(ev),
			Color:       colorOpened,
		}
		if ev.ExpiresAt != nil {
			embed.Timestamp = ev.ExpiresAt.UTC().Format(time.RFC3339)
			embed.Footer = &discordgo.MessageEmbedFooter{Text: "Closes"}
		}
	case events.SessionResolved:
		embed = resolvedEmbed(ev)
	default:
		return nil
	}
	embed.Description = truncateForDiscord(embed.Description, embedDescriptionLimit)
	return &discordgo.MessageSend{Embeds: []*discordgo.MessageEmbed{embed}}
}

func openedDescription(ev events.Event) string {
	if ev.SessionType == types.SessionTitle {
		return "Propose a title for the next book and vote for your favourite."
	}
	return "Propose the next paragraph of the story and vote for your favourite."
}

func resolvedEmbed(ev events.Event) *discordgo.MessageEmbed {
	if ev.Status != types.StatusCompleted {
		return &discordgo.MessageEmbed{
			Title:       fmt.Sprintf("Round #%d closed without a winner", ev.SessionID),
			Description: ev.Notes,
			Color:       colorFailed,
		}
	}

	title := "New paragraph added"
	switch {
	case ev.SessionType == types.SessionTitle:
		title = "A new book begins"
	case ev.Archived:
		title = "Final paragraph added, book archived"
	}

	var body strings.Builder
	body.WriteString(ev.Content)
	fields := []*discordgo.MessageEmbedField{
		{Name: "Author", Value: shortAddress(ev.Author), Inline: true},
		{Name: "Votes", Value: fmt.Sprintf("%d", ev.Votes), Inline: true},
	}
	if ev.Notes != "" {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Transaction", Value: "`" + ev.Notes + "`"})
	}
	return &discordgo.MessageEmbed{
		Title:       title,
		Description: body.String(),
		Color:       colorCompleted,
		Fields:      fields,
	}
}

var _ core.Module = (*Module)(nil)

// Module keeps the bot session open for the life of the process.
type Module struct {
	session   *discordgo.Session
	announcer *Announcer
	queue     *events.Async
}

func NewModule(token, channelID string) (*Module, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds
	announcer := NewAnnouncer(session, channelID)
	return &Module{
		session:   session,
		announcer: announcer,
		queue:     events.NewAsync("discord", announcer, 32),
	}, nil
}

// Name implements core.Module.
func (m *Module) Name() string { return "discord" }

func (m *Module) Announcer() *Announcer { return m.announcer }

// Publisher queues announcements so a slow Discord API never stalls a caller.
func (m *Module) Publisher() events.Publisher { return m.queue }

func (m *Module) Start(context.Context) error {
	if err := m.session.Open(); err != nil {
		return fmt.Errorf("failed to open Discord connection: %w", err)
	}
	log.Printf("discord: announcing to channel %s", m.announcer.channelID)
	return nil
}

func (m *Module) Stop(ctx context.Context) {
	m.queue.Close(ctx)
	if err := m.session.Close(); err != nil {
		log.Printf("discord: close session: %v", err)
	}
}
