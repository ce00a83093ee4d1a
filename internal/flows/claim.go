package flows

import (
	"fmt"

	"github.com/Ananth-NQI/segurobot-backend/internal/models"
	"github.com/Ananth-NQI/segurobot-backend/internal/utils"
)

const (
	fieldDescription = "description"
	fieldPolicyEnd   = "policy_end"

	stepCollectDescription = "collect_description"
	stepCollectPolicyEnd   = "collect_policy_end"
)

func claimFlow() *Flow {
	return NewFlow(FlowClaim,
		&Step{
			Name: stepCollectNationalID,
			Prompt: say(ask("🚨 Vamos registrar seu aviso de sinistro.\n\n" +
				"Informe o *CPF do titular* da apólice.")),
			Handle: collectNationalID(FlowClaim, stepCollectDescription),
		},
		&Step{
			Name:   stepCollectDescription,
			Prev:   stepCollectNationalID,
			Prompt: say(ask("Descreva o que aconteceu: data, local e se houve outros envolvidos.")),
			Handle: collectDescription,
		},
		&Step{
			Name:   stepDone,
			Prompt: finishClaim,
			Handle: func(t *Turn) error { return t.Enter(FlowFinalization, stepChoose) },
		},
	)
}

func collectDescription(t *Turn) error {
	if len([]rune(t.Input.Raw)) < 10 {
		return t.Retry("Preciso de um pouco mais de detalhes para registrar o sinistro.")
	}
	desc := t.Input.Raw
	if len([]rune(desc)) > 1000 {
		desc = string([]rune(desc)[:1000])
	}
	t.Set(fieldDescription, desc)
	return t.Enter(FlowClaim, stepDone)
}

func finishClaim(t *Turn) error {
	nid := t.Field(FlowClaim, fieldNationalID)
	desc := t.Field(FlowClaim, fieldDescription)
	protocol := t.OpenTicket(models.IssueTypeClaim, "SIN", nid, desc)

	t.NotifyOperator(ticketNotification("Novo aviso de sinistro", t.Address,
		utils.MaskNationalID(nid), "Relato: "+desc, protocol))

	msg := fmt.Sprintf("✅ Aviso de sinistro registrado!\n\n📄 Protocolo: *%s*\n\n"+
		"Um corretor vai acompanhar seu caso junto à seguradora.\n\n"+
		"⚠️ Se houver feridos, ligue *192* (SAMU) ou *193* (Bombeiros).", protocol)
	if err := t.Say(msg); err != nil {
		return err
	}
	return t.Enter(FlowFinalization, stepChoose)
}

func renewalFlow() *Flow {
	return NewFlow(FlowRenewal,
		&Step{
			Name: stepCollectNationalID,
			Prompt: say(ask("🔄 Vamos cuidar da sua renovação.\n\n" +
				"Informe o *CPF do titular* da apólice.")),
			Handle: collectNationalID(FlowRenewal, stepCollectPolicyEnd),
		},
		&Step{
			Name:   stepCollectPolicyEnd,
			Prev:   stepCollectNationalID,
			Prompt: say(ask("Qual o *mês e ano de vencimento* da apólice atual? (ex: 08/2025)\nSe não souber, digite *não sei*.")),
			Handle: collectPolicyEnd,
		},
		&Step{
			Name:   stepDone,
			Prompt: finishRenewal,
			Handle: func(t *Turn) error { return t.Enter(FlowFinalization, stepChoose) },
		},
	)
}

func collectPolicyEnd(t *Turn) error {
	switch {
	case t.Input.Text == "nao sei" || t.Input.Text == "nao lembro":
		t.Set(fieldPolicyEnd, "")
	case ValidPolicyEnd(t.Input.Raw):
		t.Set(fieldPolicyEnd, t.Input.Raw)
	default:
		return t.Retry("Use o formato MM/AAAA (ex: 08/2025) ou digite *não sei*.")
	}
	return t.Enter(FlowRenewal, stepDone)
}

func finishRenewal(t *Turn) error {
	nid := t.Field(FlowRenewal, fieldNationalID)
	end := t.Field(FlowRenewal, fieldPolicyEnd)
	if end == "" {
		end = "não informado"
	}
	protocol := t.OpenTicket(models.IssueTypeRenewal, "REN", nid, "Vencimento: "+end)

	t.NotifyOperator(ticketNotification("Pedido de renovação", t.Address,
		utils.MaskNationalID(nid), "Vencimento: "+end, protocol))

	msg := fmt.Sprintf("✅ Pedido de renovação registrado!\n\n📄 Protocolo: *%s*\n\n"+
		"Vamos comparar as condições da sua apólice com outras seguradoras e "+
		"retornamos antes do vencimento.", protocol)
	if err := t.Say(msg); err != nil {
		return err
	}
	return t.Enter(FlowFinalization, stepChoose)
}
