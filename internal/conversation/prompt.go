package conversation

import (
	"fmt"
	"strings"

	"github.com/finbot-dev/finbot/internal/model"
	"github.com/finbot-dev/finbot/internal/money"
)

// Prompt is what to send the user next.
type Prompt struct {
	Text    string
	Options []string
}

var kindNouns = map[model.Kind]string{
	model.KindExpense:     "gasto",
	model.KindIncome:      "receita",
	model.KindFixedCost:   "gasto fixo",
	model.KindMealVoucher: "gasto no vale-alimentação",
}

// KindNoun returns the Portuguese noun used for k in messages.
func KindNoun(k model.Kind) string {
	if n, ok := kindNouns[k]; ok {
		return n
	}
	return string(k)
}

// PromptFor returns the question for st's stage, prefixed with why the last reply was refused.
func PromptFor(st State) Prompt {
	var b strings.Builder
	switch st.Notice {
	case NoticeBadAmount:
		b.WriteString("Não entendi o valor. ")
	case NoticeUnknownCategory:
		b.WriteString("Não conheço essa categoria. ")
	case NoticeAmbiguousCategory:
		b.WriteString("Encontrei mais de uma categoria. ")
	case NoticeBadDate:
		b.WriteString("Não entendi a data. ")
	case NoticeNeedConfirmation:
		b.WriteString("Responda sim ou não. ")
	case NoticeAmountMismatch:
		fmt.Fprintf(&b, "Este registro é de %s. Para lançar outro valor, envie /cancelar e comece de novo. ",
			money.Format(st.Draft.Amount.Decimal))
	}

	if st.Purpose == PurposeReset {
		return resetPrompt(&b, st.Stage)
	}

	d := st.Draft
	switch st.Stage {
	case StageAmount:
		b.WriteString("Qual foi o valor? (ex: 45,90)")
		return Prompt{Text: b.String()}

	case StageCategory:
		if d.CategoryGuess != "" && st.Notice == NoticeNone {
			fmt.Fprintf(&b, "Em qual categoria entra %q?", d.CategoryGuess)
		} else {
			b.WriteString("Em qual categoria?")
		}
		for i, opt := range st.Options {
			fmt.Fprintf(&b, "\n%d. %s", i+1, opt)
		}
		return Prompt{Text: b.String(), Options: st.Options}

	case StageDate:
		b.WriteString("Quando foi? (hoje, ontem, 10/03...)")
		return Prompt{Text: b.String(), Options: []string{"hoje", "ontem"}}

	case StageConfirmation:
		fmt.Fprintf(&b, "Confirmar %s de %s em %s no dia %s?",
			KindNoun(d.Kind), money.Format(d.Amount.Decimal), d.Category, d.Date.Format("02/01/2006"))
		if d.Description != "" {
			fmt.Fprintf(&b, " (%s)", d.Description)
		}
		return Prompt{Text: b.String(), Options: []string{"sim", "não"}}

	case StageCommitted:
		return Prompt{Text: fmt.Sprintf("Registrado: %s de %s em %s.", KindNoun(d.Kind), money.Format(d.Amount.Decimal), d.Category)}

	case StageAbandoned:
		return Prompt{Text: "Ok, cancelado. Nada foi registrado."}
	}
	return Prompt{}
}

func resetPrompt(b *strings.Builder, stage Stage) Prompt {
	switch stage {
	case StageConfirmation:
		b.WriteString("Isso apaga TODOS os seus dados: transações, categorias, metas, orçamentos, recorrentes e lembretes. " +
			"Esta ação não pode ser desfeita. Tem certeza?")
		return Prompt{Text: b.String(), Options: []string{"sim", "não"}}
	case StageCommitted:
		return Prompt{Text: "Todos os seus dados foram apagados. Você pode começar do zero."}
	case StageAbandoned:
		return Prompt{Text: "Reset cancelado. Seus dados estão seguros."}
	}
	return Prompt{}
}
