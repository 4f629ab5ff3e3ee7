package chatbot

import (
	"fmt"
	"log"
	"strings"

	"github.com/Duhfx/LembrAI/internal/domain"
)

const helpText = `🤖 *LembrAI - Seu assistente de lembretes*

Me mande uma mensagem natural, por exemplo:
• _"me lembre de pagar o aluguel amanhã às 10h"_
• _"quais lembretes tenho essa semana?"_
• _"cancela o lembrete do dentista"_

*Comandos:*
/lembretes - listar lembretes ativos
/plano - ver seu plano e uso
/agenda - link do seu calendário
/cancelar - abandonar a conversa atual
/ajuda - esta mensagem`

// handleCommand runs a slash command. Commands work from any dialog state;
// informational ones answer without disturbing an in-flight dialog, /cancelar
// abandons it.
func (b *Chatbot) handleCommand(identity string, user *domain.User, text string) {
	command := strings.ToLower(strings.Fields(text)[0])

	switch command {
	case "/cancelar", "/cancel":
		b.contexts.Clear(identity)
		b.send(identity, "✅ Conversa reiniciada. O que você quer lembrar?")
		return

	case "/ajuda", "/help", "/start":
		b.send(identity, helpText)

	case "/lembretes", "/list":
		reminders, err := b.reminders.ListPending(user.ID)
		if err != nil {
			log.Printf("Error listing reminders for %s: %v", user.ID, err)
			b.send(identity, genericApology)
			return
		}
		b.send(identity, b.reminders.FormatList(reminders))

	case "/plano", "/plan", "/uso", "/usage":
		report, err := b.plans.FormatUsage(user.ID)
		if err != nil {
			log.Printf("Error building usage report for %s: %v", user.ID, err)
			b.send(identity, genericApology)
			return
		}
		b.send(identity, report)

	case "/agenda":
		if b.feedBase == "" {
			b.send(identity, "📅 O calendário ainda não está disponível neste servidor.")
			return
		}
		url := fmt.Sprintf("%s/feed/%s.ics", b.feedBase, user.FeedToken)
		b.send(identity, "📅 Assine seus lembretes em qualquer app de calendário:\n"+url)

	default:
		b.send(identity, "❓ Comando desconhecido. Digite /ajuda para ver os comandos.")
	}
}
