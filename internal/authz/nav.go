package authz

// NavItem é um item de navegação ou ação de página. Itens sem capacidade
// exigida ficam sempre visíveis.
type NavItem struct {
	Title    string     `json:"title"`
	Href     string     `json:"href"`
	Requires Capability `json:"requires,omitempty"`
	Children []NavItem  `json:"children,omitempty"`
}

// DefaultNav reproduz o menu do painel.
var DefaultNav = []NavItem{
	{Title: "Dashboard", Href: "/dashboard", Requires: CanViewDashboard},
	{Title: "Usuários", Href: "/usuarios", Requires: CanViewAllUsers},
	{Title: "Frequência", Href: "/frequencia", Requires: CanViewFrequency},
	{
		Title:    "Justificativas",
		Href:     "/justificativas",
		Requires: CanApproveJustifications,
		Children: []NavItem{
			{Title: "Pendentes", Href: "/justificativas/pendentes"},
			{Title: "Atestados", Href: "/justificativas/atestados"},
			{Title: "Histórico", Href: "/justificativas/historico"},
		},
	},
	{Title: "Relatórios", Href: "/relatorios", Requires: CanViewReports},
	{Title: "Configurações", Href: "/configuracoes", Requires: CanViewSettings},
	{Title: "Auditoria", Href: "/auditoria", Requires: CanViewAudit},
	{Title: "Minha Frequência", Href: "/minha-frequencia"},
	{Title: "Registrar Presença", Href: "/registrar-presenca"},
	{Title: "Minhas Justificativas", Href: "/minhas-justificativas"},
}

// FilterNav projeta a lista mantendo apenas os itens autorizados. Filhos são
// filtrados com a mesma regra.
func FilterNav(actor Actor, items []NavItem) []NavItem {
	out := make([]NavItem, 0, len(items))
	for _, item := range items {
		if item.Requires != "" && !Authorize(actor, item.Requires) {
			continue
		}
		if len(item.Children) > 0 {
			item.Children = FilterNav(actor, item.Children)
		}
		out = append(out, item)
	}
	return out
}
