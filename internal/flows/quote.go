package flows

import (
	"strings"

	"github.com/Ananth-NQI/segurobot-backend/internal/models"
)

// Fields collected by the quote flow
const (
	fieldName          = "name"
	fieldEmail         = "email"
	fieldNationalID    = "national_id"
	fieldInsuranceType = "insurance_type"
	fieldVehicleBrand  = "vehicle_brand"
	fieldVehiclePlate  = "vehicle_plate"
	fieldPostalCode    = "postal_code"
	fieldNotes         = "notes"
)

const (
	stepCollectName         = "collect_name"
	stepCollectEmail        = "collect_email"
	stepConfirmContinue     = "confirm_continue"
	stepCollectNationalID   = "collect_national_id"
	stepSelectInsuranceType = "select_insurance_type"
	stepCollectVehicleBrand = "collect_vehicle_brand"
	stepCollectVehiclePlate = "collect_vehicle_plate"
	stepCollectPostalCode   = "collect_postal_code"
	stepCollectNotes        = "collect_notes"
	stepSummary             = "summary"
)

const (
	optContinue = "quote_continue"
	optHandoff  = "quote_handoff"

	insuranceOptionPrefix = "ins_"
)

var continueMenu = Menu{
	Title:       "Como prefere seguir?",
	Description: "Posso continuar sua cotação por aqui ou chamar um corretor.",
	Button:      "Escolher",
	Section:     "Cotação",
	Options: []Option{
		{ID: optContinue, Title: "Continuar pelo WhatsApp", Description: "Mais algumas perguntas rápidas",
			Keywords: []string{"continuar", "sim", "seguir", "pode ser", "whatsapp"}},
		{ID: optHandoff, Title: "Falar com um corretor", Description: "Um corretor entra em contato",
			Keywords: []string{"corretor", "ligar", "ligacao", "telefone"}},
	},
}

func insuranceMenu(c *Catalog) Menu {
	opts := make([]Option, 0, len(c.InsuranceTypes))
	for _, it := range c.InsuranceTypes {
		opts = append(opts, Option{
			ID:          insuranceOptionPrefix + it.ID,
			Title:       it.Title,
			Description: it.Description,
			Keywords:    it.Keywords,
		})
	}
	return Menu{
		Title:       "Tipo de seguro",
		Description: "Qual seguro você quer cotar?",
		Button:      "Ver seguros",
		Section:     "Seguros",
		Options:     opts,
	}
}

func quoteFlow() *Flow {
	return NewFlow(FlowQuote,
		&Step{
			Name: stepStart,
			Prompt: func(t *Turn) error {
				if err := t.Say("📋 Ótimo! Vou fazer algumas perguntas para montar sua cotação."); err != nil {
					return err
				}
				return t.Enter(FlowQuote, stepCollectName)
			},
			Handle: func(t *Turn) error { return t.Enter(FlowQuote, stepCollectName) },
		},
		&Step{
			Name:   stepCollectName,
			Prompt: say(ask("Qual é o seu *nome completo*?")),
			Handle: collectName,
		},
		&Step{
			Name:   stepCollectEmail,
			Prev:   stepCollectName,
			Prompt: say(ask("Qual é o seu *e-mail*?")),
			Handle: collectEmail,
		},
		&Step{
			Name:   stepConfirmContinue,
			Prev:   stepCollectEmail,
			Prompt: func(t *Turn) error { return t.Ask(continueMenu) },
			Handle: confirmContinue,
		},
		&Step{
			Name:   stepCollectNationalID,
			Prev:   stepConfirmContinue,
			Prompt: say(ask("Informe seu *CPF* (somente números ou no formato 000.000.000-00).")),
			Handle: collectNationalID(FlowQuote, stepSelectInsuranceType),
		},
		&Step{
			Name:   stepSelectInsuranceType,
			Prev:   stepCollectNationalID,
			Prompt: func(t *Turn) error { return t.Ask(insuranceMenu(t.Catalog())) },
			Handle: selectInsuranceType,
		},
		&Step{
			Name:   stepCollectVehicleBrand,
			Prev:   stepSelectInsuranceType,
			Prompt: say(ask("🚗 Qual a *marca e modelo* do veículo? (ex: Fiat Argo)")),
			Handle: collectVehicleBrand,
		},
		&Step{
			Name:   stepCollectVehiclePlate,
			Prev:   stepCollectVehicleBrand,
			Prompt: say(ask("Qual a *placa* do veículo? Se ainda não tiver placa, envie o *chassi*.")),
			Handle: collectVehiclePlate,
		},
		&Step{
			Name:   stepCollectPostalCode,
			Prev:   stepCollectVehiclePlate,
			Prompt: say(ask("📍 Qual o *CEP* onde o veículo passa a noite?")),
			Handle: collectPostalCode,
		},
		&Step{
			Name:   stepCollectNotes,
			Prev:   stepSelectInsuranceType,
			Prompt: say(ask("Conte um pouco sobre o que você precisa (ex: valor do imóvel, destino da viagem). Se preferir, digite *pular*.")),
			Handle: collectNotes,
		},
		&Step{
			Name:   stepSummary,
			Prompt: finishQuote,
			Handle: func(t *Turn) error { return t.Enter(FlowFinalization, stepChoose) },
		},
	)
}

// say builds a prompt that sends fixed text
func say(text string) Handler {
	return func(t *Turn) error { return t.Say(text) }
}

func collectName(t *Turn) error {
	name, ok := CleanName(t.Input.Raw)
	if !ok {
		return t.Retry("Por favor, informe seu nome usando apenas letras.")
	}
	t.Set(fieldName, name)
	return t.Enter(FlowQuote, stepCollectEmail)
}

func collectEmail(t *Turn) error {
	email := NormalizeEmail(t.Input.Raw)
	if !ValidEmail(email) {
		return t.Retry("Esse e-mail não parece válido. Confira e envie novamente (ex: nome@email.com).")
	}
	t.Set(fieldEmail, email)
	return t.Enter(FlowQuote, stepConfirmContinue)
}

func confirmContinue(t *Turn) error {
	opt, ok := continueMenu.Match(t.Input)
	if !ok {
		return t.Retry(msgNotUnderstood)
	}
	if opt.ID == optHandoff {
		return requestHandoff(t, "cotação")
	}
	return t.Enter(FlowQuote, stepCollectNationalID)
}

// collectNationalID validates a CPF for flow and moves on to next
func collectNationalID(flow, next string) Handler {
	return func(t *Turn) error {
		if !ValidNationalID(t.Input.Raw) {
			return t.Retry("CPF inválido. Confira os números e envie novamente.")
		}
		t.Set(fieldNationalID, NormalizeNationalID(t.Input.Raw))
		return t.Enter(flow, next)
	}
}

func selectInsuranceType(t *Turn) error {
	opt, ok := insuranceMenu(t.Catalog()).Match(t.Input)
	if !ok {
		return t.Retry(msgNotUnderstood)
	}
	kind := strings.TrimPrefix(opt.ID, insuranceOptionPrefix)
	t.Set(fieldInsuranceType, kind)
	if kind == models.InsuranceAuto {
		return t.Enter(FlowQuote, stepCollectVehicleBrand)
	}
	// vehicle answers from an earlier pass no longer apply
	t.Unset(fieldVehicleBrand)
	t.Unset(fieldVehiclePlate)
	t.Unset(fieldPostalCode)
	return t.Enter(FlowQuote, stepCollectNotes)
}

func collectVehicleBrand(t *Turn) error {
	brand := strings.Join(strings.Fields(t.Input.Raw), " ")
	if len([]rune(brand)) < 2 || len([]rune(brand)) > 60 {
		return t.Retry("Informe a marca e o modelo do veículo.")
	}
	t.Set(fieldVehicleBrand, brand)
	return t.Enter(FlowQuote, stepCollectVehiclePlate)
}

func collectVehiclePlate(t *Turn) error {
	if !ValidPlate(t.Input.Raw) && !ValidChassis(t.Input.Raw) {
		return t.Retry("Placa inválida. Use o formato ABC1234 ou ABC1D23, ou envie os 17 caracteres do chassi.")
	}
	t.Set(fieldVehiclePlate, NormalizePlate(t.Input.Raw))
	return t.Enter(FlowQuote, stepCollectPostalCode)
}

func collectPostalCode(t *Turn) error {
	if !ValidPostalCode(t.Input.Raw) {
		return t.Retry("CEP inválido. Envie os 8 números (ex: 01310-100).")
	}
	t.Set(fieldPostalCode, NormalizePostalCode(t.Input.Raw))
	return t.Enter(FlowQuote, stepSummary)
}

func collectNotes(t *Turn) error {
	notes := strings.TrimSpace(t.Input.Raw)
	switch {
	case t.Input.Text == "pular":
		notes = ""
	case len([]rune(notes)) < 3:
		return t.Retry("Conte um pouco mais, ou digite *pular*.")
	case len([]rune(notes)) > 500:
		notes = string([]rune(notes)[:500])
	}
	t.Set(fieldNotes, notes)
	return t.Enter(FlowQuote, stepSummary)
}

// finishQuote exports the intake, confirms it to the user and alerts the
// operator. Reaching it is the only way a quote is exported.
func finishQuote(t *Turn) error {
	fields := t.Fields(FlowQuote)

	typeTitle := fields[fieldInsuranceType]
	if it, ok := t.Catalog().InsuranceType(typeTitle); ok {
		typeTitle = it.Title
	}

	var vehicle string
	if fields[fieldVehicleBrand] != "" {
		vehicle = fields[fieldVehicleBrand] + " - " + fields[fieldVehiclePlate]
	}

	t.Export(&models.QuoteRecord{
		Name:          fields[fieldName],
		Email:         fields[fieldEmail],
		Phone:         displayPhone(t.Address),
		NationalID:    fields[fieldNationalID],
		InsuranceType: fields[fieldInsuranceType],
		VehicleInfo:   vehicle,
		PostalCode:    fields[fieldPostalCode],
		Notes:         fields[fieldNotes],
		Timestamp:     t.Now(),
	})

	if err := t.Say(quoteSummary(fields, typeTitle)); err != nil {
		return err
	}
	t.NotifyOperator(leadNotification(t.Address, fields, typeTitle, t.Now()))
	return t.Enter(FlowFinalization, stepChoose)
}
