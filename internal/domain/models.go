package domain

// ============================================================
// Owners (proprietários)
// ============================================================

// Owner is a person or company holding shares of properties.
type Owner struct {
	ID            int    `json:"id"`
	Nome          string `json:"nome"`
	Sobrenome     string `json:"sobrenome,omitempty"`
	Documento     string `json:"documento,omitempty"`
	TipoDocumento string `json:"tipo_documento,omitempty"`
	Endereco      string `json:"endereco,omitempty"`
	Telefone      string `json:"telefone,omitempty"`
	Email         string `json:"email,omitempty"`
	Banco         string `json:"banco,omitempty"`
	Agencia       string `json:"agencia,omitempty"`
	Conta         string `json:"conta,omitempty"`
	TipoConta     string `json:"tipo_conta,omitempty"`
	Observacoes   string `json:"observacoes,omitempty"`
	Ativo         *bool  `json:"ativo,omitempty"`
	DataCadastro  string `json:"data_cadastro,omitempty"`
}

// FullName joins first and last name.
func (o Owner) FullName() string {
	if o.Sobrenome == "" {
		return o.Nome
	}
	return o.Nome + " " + o.Sobrenome
}

// ============================================================
// Properties (imóveis)
// ============================================================

// Property is a managed real-estate asset.
type Property struct {
	ID               int      `json:"id"`
	Nome             string   `json:"nome"`
	Endereco         string   `json:"endereco"`
	TipoImovel       string   `json:"tipo_imovel,omitempty"`
	AreaTotal        *float64 `json:"area_total,omitempty"`
	AreaConstruida   *float64 `json:"area_construida,omitempty"`
	ValorCadastral   *float64 `json:"valor_cadastral,omitempty"`
	ValorMercado     *float64 `json:"valor_mercado,omitempty"`
	IPTUAnual        *float64 `json:"iptu_anual,omitempty"`
	CondominioMensal *float64 `json:"condominio_mensal,omitempty"`
	Ativo            *bool    `json:"ativo,omitempty"`
	DataCadastro     string   `json:"data_cadastro,omitempty"`
	Observacoes      string   `json:"observacoes,omitempty"`
}

// ============================================================
// Participations (participações)
// ============================================================

// Percentage units a backend may declare explicitly.
const (
	UnitFraction = "fracao"
	UnitPercent  = "percentual"
)

// Participation ties one property to one owner with a percentage share.
// Porcentagem is either a fraction (0.25) or a percentage (25); Unidade,
// when the backend sends it, says which.
type Participation struct {
	ID             int     `json:"id,omitempty"`
	ImovelID       int     `json:"imovel_id"`
	ProprietarioID int     `json:"proprietario_id"`
	Porcentagem    float64 `json:"porcentagem"`
	Unidade        string  `json:"unidade,omitempty"`
	Ativo          *bool   `json:"ativo,omitempty"`
	Observacoes    string  `json:"observacoes,omitempty"`
	DataRegistro   string  `json:"data_registro,omitempty"`
}

// ParticipationInput is one item of a new participation version.
type ParticipationInput struct {
	ImovelID       int     `json:"imovel_id"`
	ProprietarioID int     `json:"proprietario_id"`
	Porcentagem    float64 `json:"porcentagem"`
}

// NewVersionRequest is the body of POST /participacoes/nova-versao.
type NewVersionRequest struct {
	Participacoes []ParticipationInput `json:"participacoes"`
}

// ============================================================
// Rentals (aluguéis)
// ============================================================

// Rental is a month-scoped rent record for one owner and property.
type Rental struct {
	ID                            int     `json:"id,omitempty"`
	ImovelID                      int     `json:"imovel_id"`
	ProprietarioID                int     `json:"proprietario_id"`
	Mes                           int     `json:"mes"`
	Ano                           int     `json:"ano"`
	ValorAluguelProprietario      float64 `json:"valor_aluguel_proprietario"`
	TaxaAdministracaoTotal        float64 `json:"taxa_administracao_total,omitempty"`
	TaxaAdministracaoProprietario float64 `json:"taxa_administracao_proprietario,omitempty"`
	ValorLiquidoProprietario      float64 `json:"valor_liquido_proprietario,omitempty"`
	Observacoes                   string  `json:"observacoes,omitempty"`
	NomeImovel                    string  `json:"nome_imovel,omitempty"`
	NomeProprietario              string  `json:"nome_proprietario,omitempty"`
}

// Period is a year/month pair. Mes is zero when the whole year is meant.
type Period struct {
	Ano int `json:"ano"`
	Mes int `json:"mes"`
}

// AvailableYears is the payload of /alugueis/anos-disponiveis/.
type AvailableYears struct {
	Anos  []int `json:"anos"`
	Total int   `json:"total"`
}

// DistributionRow is one owner line of the rent distribution matrix.
type DistributionRow struct {
	ProprietarioID   int                `json:"proprietario_id"`
	NomeProprietario string             `json:"nome_proprietario"`
	Nome             string             `json:"nome"`
	Valores          map[string]float64 `json:"valores"`
	Total            float64            `json:"total"`
}

// OwnerName returns whichever name field the backend filled.
func (r DistributionRow) OwnerName() string {
	if r.NomeProprietario != "" {
		return r.NomeProprietario
	}
	return r.Nome
}

// DistributionNamed is a reference entry in a distribution response.
type DistributionNamed struct {
	ID   int    `json:"id"`
	Nome string `json:"nome"`
}

// Distribution is the payload of the distribution matrix endpoints.
type Distribution struct {
	Periodo       *Period             `json:"periodo,omitempty"`
	Proprietarios []DistributionNamed `json:"proprietarios"`
	Imoveis       []DistributionNamed `json:"imoveis"`
	Matriz        []DistributionRow   `json:"matriz"`
}

// MonthlySummary is one owner row of /reportes/resumen-mensual.
type MonthlySummary struct {
	NomeProprietario  string  `json:"nome_proprietario"`
	Mes               int     `json:"mes"`
	Ano               int     `json:"ano"`
	ValorTotal        float64 `json:"valor_total"`
	QuantidadeImoveis int     `json:"quantidade_imoveis"`
}

// ============================================================
// Auth payloads
// ============================================================

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Usuario string `json:"usuario"`
	Senha   string `json:"senha"`
}

// LoginResponse is the body returned by a successful login.
type LoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Usuario     string `json:"usuario"`
	TipoUsuario string `json:"tipo_usuario"`
}

// User is a backend account as listed by /auth/usuarios.
type User struct {
	ID            int    `json:"id"`
	Usuario       string `json:"usuario"`
	TipoDeUsuario string `json:"tipo_de_usuario"`
	DataCriacao   string `json:"data_criacao,omitempty"`
}

// NewUserRequest is the body of POST /auth/cadastrar-usuario.
type NewUserRequest struct {
	Usuario       string `json:"usuario"`
	Senha         string `json:"senha"`
	TipoDeUsuario string `json:"tipo_de_usuario"`
}

// UserChange is the body of PUT /auth/alterar-usuario/{id}. Empty fields
// are left unchanged.
type UserChange struct {
	NovaSenha       string `json:"nova_senha,omitempty"`
	NovoTipoUsuario string `json:"novo_tipo_usuario,omitempty"`
}
