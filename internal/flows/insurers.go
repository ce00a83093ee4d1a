package flows

import (
	"fmt"
	"strings"
)

const insurerOptionPrefix = "seg_"

func insurersMenu(c *Catalog) Menu {
	opts := make([]Option, 0, len(c.Insurers))
	for _, ins := range c.Insurers {
		opts = append(opts, Option{
			ID:          insurerOptionPrefix + ins.ID,
			Title:       ins.Name,
			Description: lineTitles(c, ins.Lines, 72),
			Keywords:    []string{Normalize(ins.Name), Normalize(ins.ID)},
		})
	}
	return Menu{
		Title:       "Seguradoras parceiras",
		Description: "Escolha uma seguradora para ver os contatos.",
		Button:      "Ver seguradoras",
		Section:     "Seguradoras",
		Options:     opts,
	}
}

// lineTitles renders product lines as "Auto, Vida", cut to max runes
func lineTitles(c *Catalog, lines []string, max int) string {
	names := make([]string, 0, len(lines))
	for _, l := range lines {
		if it, ok := c.InsuranceType(l); ok {
			names = append(names, strings.TrimPrefix(strings.TrimPrefix(it.Title, "Seguro de "), "Seguro "))
		} else {
			names = append(names, l)
		}
	}
	s := strings.Join(names, ", ")
	if r := []rune(s); len(r) > max {
		s = string(r[:max-1]) + "…"
	}
	return s
}

func insurersFlow() *Flow {
	return NewFlow(FlowInsurers, &Step{
		Name:   stepChoose,
		Prompt: func(t *Turn) error { return t.Ask(insurersMenu(t.Catalog())) },
		Handle: chooseInsurer,
	})
}

func chooseInsurer(t *Turn) error {
	c := t.Catalog()
	opt, ok := insurersMenu(c).Match(t.Input)
	if !ok {
		return t.Retry(msgNotUnderstood)
	}
	ins, ok := c.Insurer(strings.TrimPrefix(opt.ID, insurerOptionPrefix))
	if !ok {
		return fmt.Errorf("insurer option %q missing from catalog", opt.ID)
	}

	msg := fmt.Sprintf("🏢 *%s*\n\n📞 Assistência 24h: %s\n🌐 %s\n🛡️ Produtos: %s",
		ins.Name, ins.Assistance, ins.Website, lineTitles(c, ins.Lines, 200))
	if err := t.Say(msg); err != nil {
		return err
	}
	return t.Enter(FlowFinalization, stepChoose)
}
