package gateway

import (
	"context"
	"log"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/rahul/stepwise/internal/agent"
)

const (
	discordName = "discord"
	// Discord rejects messages longer than this.
	discordMaxMessage = 2000
)

type DiscordGateway struct {
	Session *discordgo.Session
	Brain   agent.Brain

	ctx context.Context
	wg  sync.WaitGroup
}

func NewDiscordGateway(token string, brain agent.Brain) (*DiscordGateway, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentMessageContent

	dg := &DiscordGateway{Session: session, Brain: brain, ctx: context.Background()}
	session.AddHandler(dg.onMessage)
	return dg, nil
}

func (dg *DiscordGateway) Start(ctx context.Context) error {
	dg.ctx = ctx
	if err := dg.Session.Open(); err != nil {
		return err
	}
	log.Printf("Discord session open as %s", dg.Session.State.User.Username)

	<-ctx.Done()
	dg.wg.Wait()
	return nil
}

func (dg *DiscordGateway) onMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Content == "" {
		return
	}
	if s.State != nil && s.State.User != nil && m.Author.ID == s.State.User.ID {
		return
	}
	log.Printf("[%s] %s", m.Author.Username, m.Content)

	dg.wg.Add(1)
	go func() {
		defer dg.wg.Done()
		response := reply(dg.ctx, dg.Brain, ChatID(discordName, m.ChannelID), m.Content)
		if err := dg.Send(m.ChannelID, response); err != nil {
			log.Printf("Error replying to channel %s: %v", m.ChannelID, err)
		}
	}()
}

// Send splits long text into several messages.
func (dg *DiscordGateway) Send(chatID string, text string) error {
	if _, id, ok := SplitChatID(chatID); ok {
		chatID = id
	}
	for _, part := range chunk(text, discordMaxMessage) {
		if _, err := dg.Session.ChannelMessageSend(chatID, part); err != nil {
			return err
		}
	}
	return nil
}

func (dg *DiscordGateway) Stop() error {
	return dg.Session.Close()
}

// chunk splits s into pieces of at most n runes.
func chunk(s string, n int) []string {
	runes := []rune(s)
	if len(runes) <= n {
		return []string{s}
	}
	var parts []string
	for len(runes) > 0 {
		end := min(n, len(runes))
		parts = append(parts, string(runes[:end]))
		runes = runes[end:]
	}
	return parts
}
