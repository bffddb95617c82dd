package intent

import "strings"

var usages = map[string]string{
	"addgasto":            "/addgasto <valor> <descrição>",
	"addreceita":          "/addreceita <valor> <descrição>",
	"addreceita_parceiro": "/addreceita_parceiro <valor> <descrição>",
	"fixo":                "/fixo <valor> <descrição>",
	"vale":                "/vale <valor> <descrição>",
	"addmeta":             "/addmeta <valor> <nome>",
	"progresso_meta":      "/progresso_meta <id> <valor>",
	"orcamento":           "/orcamento <valor> [AAAA-MM]",
	"orcamento_categoria": "/orcamento_categoria <categoria> <valor>",
	"addrecorrente":       "/addrecorrente <valor> <dia> <descrição>",
	"pagar_recorrente":    "/pagar_recorrente <id> [AAAA-MM]",
	"addlembrete":         "/addlembrete <dia ou DD/MM/AAAA> <descrição>",
	"addcategoria":        "/addcategoria <nome>",
	"removecategoria":     "/removecategoria <nome>",
	"relatorio":           "/relatorio [formato] [mês ano]",
	"relatorio_mes":       "/relatorio_mes <mês> <ano>",
	"relatorio_detalhado": "/relatorio_detalhado [mês ano]",
	"relatorio_exportar":  "/relatorio_exportar [mês ano]",
	"dashboard":           "/dashboard [mês ano]",
	"saldo":               "/saldo [mês ano]",
	"saldo_mes":           "/saldo_mes <mês> <ano>",
	"mtp":                 "/mtp [renda]",
	"historico_meses":     "/historico_meses [meses]",
	"ia":                  "/ia <pergunta>",
}

// Usage returns the usage line of a command, or "" when it takes no arguments.
func Usage(name string) string {
	if u, ok := usages[name]; ok {
		return "Uso correto: " + u
	}
	return ""
}

// HelpText lists the commands for /ajuda.
func HelpText() string {
	var b strings.Builder
	b.WriteString("Comandos disponíveis:\n")
	for _, line := range []string{
		"/addgasto <valor> <descrição> registra um gasto",
		"/addreceita <valor> <descrição> registra uma receita",
		"/fixo <valor> <descrição> registra um gasto fixo",
		"/vale <valor> <descrição> registra um gasto no vale-alimentação",
		"/saldo, /dashboard, /mtp, /top3, /fatura",
		"/addmeta, /metas, /progresso_meta",
		"/orcamento, /orcamento_categoria",
		"/addrecorrente, /recorrentes, /pagar_recorrente",
		"/addlembrete, /lembretes",
		"/addcategoria, /categorias, /removecategoria",
		"/relatorio, /relatorio_detalhado, /relatorio_exportar, /grafico",
		"/comparar_meses, /historico_meses",
		"/ia <pergunta>, /cancelar",
		"/reset apaga todos os seus dados, depois de confirmar",
	} {
		b.WriteString("  " + line + "\n")
	}
	b.WriteString("Ou apenas escreva, por exemplo: gastei 45 no mercado")
	return b.String()
}
