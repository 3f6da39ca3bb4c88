package nfse

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// ── Payload DPS (POST /nfse/dps) ──────────────────────────────────────────────

// DPS declaração de prestação de serviço enviada ao provedor.
// As tags validate formam o contrato conferido antes da chamada.
type DPS struct {
	Provedor   string `json:"provedor" validate:"required"`
	Ambiente   string `json:"ambiente" validate:"required,oneof=producao homologacao"`
	Referencia string `json:"referencia" validate:"required"`
	InfDPS     InfDPS `json:"infDPS"`
}

// InfDPS bloco principal da declaração.
type InfDPS struct {
	TpAmb   int       `json:"tpAmb" validate:"oneof=1 2"`
	DhEmi   string    `json:"dhEmi" validate:"required"`
	DCompet string    `json:"dCompet" validate:"required,datetime=2006-01-02"`
	Prest   Prestador `json:"prest"`
	Toma    Tomador   `json:"toma"`
	Serv    Servico   `json:"serv"`
	Valores Valores   `json:"valores"`
}

// Prestador emissor: somente CNPJ.
type Prestador struct {
	CNPJ string `json:"CNPJ" validate:"required,len=14,numeric"`
}

// Tomador destinatário: CPF ou CNPJ.
type Tomador struct {
	CPF   string   `json:"CPF,omitempty" validate:"required_without=CNPJ,excluded_with=CNPJ,omitempty,len=11,numeric"`
	CNPJ  string   `json:"CNPJ,omitempty" validate:"required_without=CPF,omitempty,len=14,numeric"`
	XNome string   `json:"xNome" validate:"required,max=300"`
	End   Endereco `json:"end"`
	Email string   `json:"email,omitempty" validate:"omitempty,email"`
}

// Endereco endereço estruturado do tomador.
type Endereco struct {
	EndNac  EnderecoNacional `json:"endNac"`
	XLgr    string           `json:"xLgr" validate:"required,max=255"`
	Nro     string           `json:"nro" validate:"required,max=60"`
	XCpl    string           `json:"xCpl,omitempty" validate:"max=156"`
	XBairro string           `json:"xBairro" validate:"required,max=60"`
}

// EnderecoNacional cMun é string: o provedor rejeita o código IBGE numérico.
type EnderecoNacional struct {
	CMun string `json:"cMun" validate:"required,len=7,numeric"`
	CEP  string `json:"CEP" validate:"required,len=8,numeric"`
}

// Servico bloco de serviço.
type Servico struct {
	CServ CodigoServico `json:"cServ"`
}

// CodigoServico classificação do serviço (LC 116 / NBS / CNAE repassados).
type CodigoServico struct {
	CTribNac  string `json:"cTribNac" validate:"required,len=6,numeric"`
	CNBS      string `json:"cNBS,omitempty"`
	CNAE      string `json:"CNAE,omitempty"`
	XDescServ string `json:"xDescServ" validate:"required,max=2000"`
}

// Valores valores e tributação.
type Valores struct {
	VServPrest ValorServico `json:"vServPrest"`
	Trib       Tributacao   `json:"trib"`
}

// ValorServico valor bruto do serviço.
type ValorServico struct {
	VServ Amount `json:"vServ"`
}

// Tributacao tributação municipal e totais.
type Tributacao struct {
	TribMun TributacaoMunicipal `json:"tribMun"`
	TotTrib TotalTributos       `json:"totTrib"`
}

// Regime do ISSQN e retenção.
const (
	TribISSQNTributavel   = 1
	RetISSQNNaoRetido     = 1
	IndTotTribNaoInformar = 0
)

// TributacaoMunicipal ISSQN.
type TributacaoMunicipal struct {
	TribISSQN  int    `json:"tribISSQN" validate:"min=1,max=4"`
	TpRetISSQN int    `json:"tpRetISSQN" validate:"min=1,max=3"`
	PAliq      Amount `json:"pAliq"`
}

// TotalTributos indicador de totais aproximados.
type TotalTributos struct {
	IndTotTrib int `json:"indTotTrib"`
}

// Amount valor monetário serializado como número JSON com duas casas.
type Amount struct {
	decimal.Decimal
}

// NewAmount arredonda para duas casas.
func NewAmount(d decimal.Decimal) Amount {
	return Amount{Decimal: d.Round(2)}
}

// MarshalJSON emite 150.00 em vez de "150".
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.StringFixed(2)), nil
}

// UnmarshalJSON aceita número ou string numérica.
func (a *Amount) UnmarshalJSON(b []byte) error {
	return a.Decimal.UnmarshalJSON(b)
}

// ── Resposta do provedor ──────────────────────────────────────────────────────

// Message mensagem de processamento devolvida pelo provedor.
type Message struct {
	Codigo    string `json:"codigo"`
	Descricao string `json:"descricao"`
	Correcao  string `json:"correcao,omitempty"`
}

// Response forma comum de emissão, consulta e cancelamento.
// Raw guarda o corpo recebido para auditoria.
type Response struct {
	ID         string          `json:"id"`
	Status     string          `json:"status"`
	Ambiente   string          `json:"ambiente"`
	Referencia string          `json:"referencia"`
	CreatedAt  string          `json:"created_at"`
	Numero     string          `json:"numero,omitempty"`
	Mensagens  []Message       `json:"mensagens"`
	Raw        json.RawMessage `json:"-"`
}

// FirstMessage descrição da primeira mensagem ou "".
func (r *Response) FirstMessage() string {
	if len(r.Mensagens) == 0 {
		return ""
	}
	return r.Mensagens[0].Descricao
}

// NormalizedStatus status em minúsculas, sem espaços.
func (r *Response) NormalizedStatus() string {
	return strings.ToLower(strings.TrimSpace(r.Status))
}

// MessagesFrom extrai as mensagens de um corpo bruto salvo em event_data.
// Corpo vazio ou ilegível devolve nil.
func MessagesFrom(raw json.RawMessage) []Message {
	if len(raw) == 0 {
		return nil
	}
	var body struct {
		Mensagens []Message `json:"mensagens"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil
	}
	return body.Mensagens
}

// SameMessages compara duas listas de mensagens elemento a elemento.
func SameMessages(a, b []Message) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// cancelRequest corpo de POST /nfse/{id}/cancelamento.
type cancelRequest struct {
	Motivo string `json:"motivo,omitempty"`
}
