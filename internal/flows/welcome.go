package flows

// Step names shared by several flows
const (
	stepStart   = "start"
	stepChoose  = "choose"
	stepWaiting = "waiting"
	stepDone    = "done"
)

const (
	optQuote    = "menu_quote"
	optClaim    = "menu_claim"
	optRenewal  = "menu_renewal"
	optInsurers = "menu_insurers"
	optHuman    = "menu_human"
)

var mainMenu = Menu{
	Title:       "Menu principal",
	Description: "Como posso te ajudar hoje?",
	Button:      "Ver opções",
	Section:     "Atendimento",
	Options: []Option{
		{ID: optQuote, Title: "Cotação de seguro", Description: "Auto, residencial, vida, empresarial ou viagem",
			Keywords: []string{"cotacao", "cotar", "orcamento", "fazer seguro", "contratar"}},
		{ID: optClaim, Title: "Sinistro / assistência", Description: "Acidente, roubo, furto ou guincho",
			Keywords: []string{"sinistro", "acidente", "batida", "bati", "bateram", "roubo", "roubado", "furto", "furtado", "guincho", "assistencia"}},
		{ID: optRenewal, Title: "Renovação de apólice", Description: "Renove seu seguro atual",
			Keywords: []string{"renovar", "renovacao", "vencimento", "vence"}},
		{ID: optInsurers, Title: "Seguradoras parceiras", Description: "Sites e contatos das seguradoras",
			Keywords: []string{"seguradora", "seguradoras", "parceiras", "contato"}},
		{ID: optHuman, Title: "Falar com um corretor", Description: "Atendimento com uma pessoa",
			Keywords: []string{"corretor"}},
	},
}

func welcomeFlow() *Flow {
	greet := func(t *Turn) error {
		if err := t.Say(greeting(t.Catalog().CompanyName, t.Field(FlowQuote, fieldName))); err != nil {
			return err
		}
		return t.Enter(FlowMainMenu, stepChoose)
	}
	return NewFlow(FlowWelcome, &Step{Name: stepStart, Prompt: greet, Handle: greet})
}

func mainMenuFlow() *Flow {
	return NewFlow(FlowMainMenu, &Step{
		Name:   stepChoose,
		Prompt: func(t *Turn) error { return t.Ask(mainMenu) },
		Handle: chooseMainMenu,
	})
}

func chooseMainMenu(t *Turn) error {
	opt, ok := mainMenu.Match(t.Input)
	if !ok {
		return t.Retry(msgNotUnderstood)
	}
	switch opt.ID {
	case optQuote:
		return t.Enter(FlowQuote, stepStart)
	case optClaim:
		return t.Enter(FlowClaim, stepCollectNationalID)
	case optRenewal:
		return t.Enter(FlowRenewal, stepCollectNationalID)
	case optInsurers:
		return t.Enter(FlowInsurers, stepChoose)
	default:
		return requestHandoff(t, "menu principal")
	}
}

// farewell says goodbye and starts the next conversation from scratch
func farewell(t *Turn) error {
	t.ClearData()
	t.Goto(FlowWelcome, stepStart)
	return t.Say(msgFarewell)
}
