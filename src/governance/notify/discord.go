package notify

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
)

// MaxDiscordMessageLen is Discord's per-message content limit.
const MaxDiscordMessageLen = 2000

// ChannelSender is the part of *discordgo.Session the announcer uses.
type ChannelSender interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// ChannelResolver maps a band to its announcement channel.
type ChannelResolver interface {
	DiscordChannel(bandID uint64) string
}

// DiscordAnnouncer posts proposal outcomes to the band's Discord channel.
// Bands without a channel are skipped.
type DiscordAnnouncer struct {
	session  ChannelSender
	channels ChannelResolver
	baseURL  string
}

// NewDiscordAnnouncer returns an announcer; baseURL prefixes action links.
func NewDiscordAnnouncer(session ChannelSender, channels ChannelResolver, baseURL string) *DiscordAnnouncer {
	return &DiscordAnnouncer{
		session:  session,
		channels: channels,
		baseURL:  strings.TrimRight(baseURL, "/"),
	}
}

func (d *DiscordAnnouncer) Announce(ctx context.Context, bandID uint64, n Notification) error {
	channelID := d.channels.DiscordChannel(bandID)
	if channelID == "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := d.session.ChannelMessageSend(channelID, d.format(n), discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("discord channel %s: %w", channelID, err)
	}
	return nil
}

func (d *DiscordAnnouncer) format(n Notification) string {
	var b strings.Builder
	b.WriteString("**")
	b.WriteString(n.Title)
	b.WriteString("**\n")
	b.WriteString(n.Message)
	if n.ActionURL != "" {
		b.WriteString("\n")
		b.WriteString(d.baseURL)
		b.WriteString(n.ActionURL)
	}
	return truncate(b.String(), MaxDiscordMessageLen)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max - len("…")
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}
