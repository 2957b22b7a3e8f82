package gateway

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rahul/stepwise/internal/agent"
)

const telegramName = "telegram"

type TelegramGateway struct {
	Bot   *tgbotapi.BotAPI
	Brain agent.Brain

	wg sync.WaitGroup
}

func NewTelegramGateway(token string, brain agent.Brain) (*TelegramGateway, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	log.Printf("Authorized on account %s", bot.Self.UserName)

	return &TelegramGateway{Bot: bot, Brain: brain}, nil
}

// Start handles each incoming message as its own run. Runs for different
// messages proceed concurrently.
func (tg *TelegramGateway) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := tg.Bot.GetUpdatesChan(u)
	defer tg.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil || update.Message.Text == "" {
				continue
			}

			from := ""
			if update.Message.From != nil {
				from = update.Message.From.UserName
			}
			log.Printf("[%s] %s", from, update.Message.Text)

			chat := update.Message.Chat.ID
			text := update.Message.Text
			tg.wg.Add(1)
			go func() {
				defer tg.wg.Done()
				response := reply(ctx, tg.Brain, ChatID(telegramName, strconv.FormatInt(chat, 10)), text)
				if _, err := tg.Bot.Send(tgbotapi.NewMessage(chat, response)); err != nil {
					log.Printf("Error replying to chat %d: %v", chat, err)
				}
			}()
		}
	}
}

// Send accepts both qualified ("telegram:123") and bare chat ids.
func (tg *TelegramGateway) Send(chatID string, text string) error {
	if _, id, ok := SplitChatID(chatID); ok {
		chatID = id
	}
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil || id == 0 {
		return fmt.Errorf("invalid chat ID: %s", chatID)
	}

	msg := tgbotapi.NewMessage(id, text)
	msg.ParseMode = "Markdown"
	_, err = tg.Bot.Send(msg)
	return err
}

func (tg *TelegramGateway) Stop() error {
	tg.Bot.StopReceivingUpdates()
	return nil
}
