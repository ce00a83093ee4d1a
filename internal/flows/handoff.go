package flows

import (
	"fmt"

	"github.com/Ananth-NQI/segurobot-backend/internal/models"
)

const fieldReason = "reason"

func handoffFlow() *Flow {
	return NewFlow(FlowHandoff,
		&Step{
			Name:   stepStart,
			Prompt: startHandoff,
			Handle: startHandoff,
		},
		&Step{
			Name: stepWaiting,
			Handle: func(t *Turn) error {
				if err := t.Say("⏳ Seu pedido de atendimento já foi registrado. Enquanto isso, posso ajudar com outra coisa."); err != nil {
					return err
				}
				return t.Enter(FlowMainMenu, stepChoose)
			},
		},
	)
}

// requestHandoff enters the handoff flow remembering where it came from
func requestHandoff(t *Turn, reason string) error {
	t.SetFor(FlowHandoff, fieldReason, reason)
	return t.Enter(FlowHandoff, stepStart)
}

// startHandoff pauses the bot for the handoff window, alerts the operator
// once and acknowledges the user once.
func startHandoff(t *Turn) error {
	reason := t.Field(FlowHandoff, fieldReason)
	if reason == "" {
		reason = "pedido direto"
	}
	t.Unset(fieldReason)

	name := t.Field(FlowQuote, fieldName)
	protocol := t.OpenTicket(models.IssueTypeHandoff, "ATD", t.Field(FlowQuote, fieldNationalID), "Origem: "+reason)

	resumeAt := t.DisableBot()
	t.NotifyOperator(handoffNotification(t.Address, name, reason, protocol))
	t.Goto(FlowHandoff, stepWaiting)

	msg := fmt.Sprintf("🙋 Certo! Um corretor foi avisado e vai continuar o atendimento por aqui.\n\n📄 Protocolo: *%s*", protocol)
	if resumeAt != nil {
		msg += fmt.Sprintf("\n\nSe ninguém responder até %s, o atendimento automático volta sozinho.", resumeAt.Format("15:04"))
	}
	msg += "\nPara voltar ao atendimento automático agora, digite *menu*."
	return t.Say(msg)
}
