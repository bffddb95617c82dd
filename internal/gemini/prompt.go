package gemini

import (
	"fmt"
	"strings"
	"time"
)

func extractionPrompt(utterance string, vocabulary []string, now time.Time) string {
	return fmt.Sprintf(`Analise a frase abaixo e extraia uma transação financeira.
Hoje é %s.
Retorne APENAS um objeto JSON com os campos:
- "type": "income" para receitas, ganhos ou salário; "expense" para gastos
- "amount": valor numérico da transação, sem símbolo de moeda
- "category": uma destas categorias, se alguma servir: %s
- "date": data no formato AAAA-MM-DD, somente se a frase mencionar uma data
- "description": breve descrição do item
- "confidence": 0-100 indicando sua confiança

Se a frase não for sobre uma transação, retorne {"type": "none", "confidence": 0}.

Frase: %q`, now.Format("2006-01-02"), strings.Join(vocabulary, ", "), utterance)
}

func questionPrompt(question string) string {
	return fmt.Sprintf(`Você é um assistente financeiro útil e amigável que responde em português brasileiro.
Dê conselhos práticos sobre finanças pessoais, sem JSON ou estruturas de dados.

Pergunta: %q`, question)
}
