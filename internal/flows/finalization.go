package flows

const (
	optFinalMenu = "final_menu"
	optFinalEnd  = "final_end"
)

var finalMenu = Menu{
	Title:       "Posso ajudar em algo mais?",
	Description: "Escolha uma opção para continuar.",
	Button:      "Escolher",
	Section:     "Atendimento",
	Options: []Option{
		{ID: optFinalMenu, Title: "Voltar ao menu", Description: "Ver todas as opções",
			Keywords: []string{"sim", "outra", "mais", "ajuda"}},
		{ID: optFinalEnd, Title: "Encerrar atendimento", Description: "Finalizar a conversa",
			Keywords: []string{"nao", "finalizar", "encerrar", "so isso", "era isso"}},
	},
}

func finalizationFlow() *Flow {
	return NewFlow(FlowFinalization, &Step{
		Name:   stepChoose,
		Prompt: func(t *Turn) error { return t.Ask(finalMenu) },
		Handle: chooseFinal,
	})
}

func chooseFinal(t *Turn) error {
	opt, ok := finalMenu.Match(t.Input)
	if !ok {
		return t.Retry(msgNotUnderstood)
	}
	if opt.ID == optFinalEnd {
		return farewell(t)
	}
	// collected data is kept so the next flow can greet by name
	return t.Enter(FlowMainMenu, stepChoose)
}
