package flows

import (
	"fmt"
	"strings"
	"time"
)

const (
	msgGenericError = "😕 Tivemos um problema ao processar sua mensagem.\n\n" +
		"Digite *menu* para voltar ao início ou *atendente* para falar com um corretor."
	msgRoutingError = "😕 Não consegui continuar de onde paramos, então reiniciamos o atendimento.\n\n" +
		"Mande um *oi* para começar de novo."
	msgNotUnderstood = "🤔 Não entendi sua resposta."
	msgFarewell      = "👋 Obrigado pelo contato! Quando precisar, é só mandar um *oi*."
	msgBackHint      = "_Digite *voltar* para a etapa anterior ou *menu* para o início._"
)

func greeting(company, name string) string {
	hello := "Olá! 👋"
	if name != "" {
		hello = fmt.Sprintf("Olá, %s! 👋", firstName(name))
	}
	return fmt.Sprintf("%s\n\nSou o assistente virtual da *%s*. Posso te ajudar com cotações, "+
		"sinistros, renovações e contatos das seguradoras.", hello, company)
}

func firstName(name string) string {
	if f := strings.Fields(name); len(f) > 0 {
		return f[0]
	}
	return name
}

func ask(question string) string {
	return question + "\n\n" + msgBackHint
}

func quoteSummary(fields map[string]string, typeTitle string) string {
	var b strings.Builder
	b.WriteString("✅ *Cotação registrada!*\n\n")
	fmt.Fprintf(&b, "👤 Nome: %s\n", fields[fieldName])
	fmt.Fprintf(&b, "📧 E-mail: %s\n", fields[fieldEmail])
	fmt.Fprintf(&b, "🪪 CPF: %s\n", formatNationalID(fields[fieldNationalID]))
	fmt.Fprintf(&b, "🛡️ Seguro: %s\n", typeTitle)
	if fields[fieldVehicleBrand] != "" {
		fmt.Fprintf(&b, "🚗 Veículo: %s - %s\n", fields[fieldVehicleBrand], fields[fieldVehiclePlate])
		fmt.Fprintf(&b, "📍 CEP: %s\n", formatPostalCode(fields[fieldPostalCode]))
	}
	if fields[fieldNotes] != "" {
		fmt.Fprintf(&b, "📝 Detalhes: %s\n", fields[fieldNotes])
	}
	b.WriteString("\nUm corretor vai analisar as melhores opções e retornar em até 1 dia útil.")
	return b.String()
}

func leadNotification(address string, fields map[string]string, typeTitle string, at time.Time) string {
	var b strings.Builder
	b.WriteString("🔔 *Nova cotação recebida*\n\n")
	fmt.Fprintf(&b, "Cliente: %s (%s)\n", fields[fieldName], displayPhone(address))
	fmt.Fprintf(&b, "E-mail: %s\n", fields[fieldEmail])
	fmt.Fprintf(&b, "Seguro: %s\n", typeTitle)
	if fields[fieldVehicleBrand] != "" {
		fmt.Fprintf(&b, "Veículo: %s - %s\n", fields[fieldVehicleBrand], fields[fieldVehiclePlate])
	}
	fmt.Fprintf(&b, "Recebida em: %s", at.Format("02/01/2006 15:04"))
	return b.String()
}

func handoffNotification(address, name, reason, protocol string) string {
	who := displayPhone(address)
	if name != "" {
		who = fmt.Sprintf("%s (%s)", name, who)
	}
	return fmt.Sprintf("🙋 *Pedido de atendimento humano*\n\nCliente: %s\nOrigem: %s\nProtocolo: %s\n\n"+
		"O bot ficou pausado para você assumir a conversa.", who, reason, protocol)
}

func ticketNotification(kind, address, maskedID, detail, protocol string) string {
	return fmt.Sprintf("🔔 *%s*\n\nCliente: %s\nCPF: %s\n%s\nProtocolo: %s",
		kind, displayPhone(address), maskedID, detail, protocol)
}

func formatNationalID(d string) string {
	if len(d) != 11 {
		return d
	}
	return d[:3] + "." + d[3:6] + "." + d[6:9] + "-" + d[9:]
}

func formatPostalCode(d string) string {
	if len(d) != 8 {
		return d
	}
	return d[:5] + "-" + d[5:]
}

// displayPhone strips the transport prefix from an address
func displayPhone(address string) string {
	return strings.TrimPrefix(address, "whatsapp:")
}
