package bot

import (
	"log"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func (b *Bot) handleUpdate(update tgbotapi.Update) {
	if update.Message == nil {
		return
	}
	b.handleMessage(update.Message)
}

// handleMessage turns one Telegram message into a dialog turn. The chat id is
// the channel identity everywhere downstream.
func (b *Bot) handleMessage(msg *tgbotapi.Message) {
	if b.handler == nil {
		log.Println("Dropping message: no handler wired")
		return
	}

	identity := strconv.FormatInt(msg.Chat.ID, 10)

	// Voice and audio arrive without transcription; the dialog answers with a
	// text-only notice.
	if msg.Voice != nil || msg.Audio != nil {
		b.handler.ProcessMessage(identity, "", true)
		return
	}

	b.handler.ProcessMessage(identity, msg.Text, false)
}
