package billing

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/wanderleymp/finance-api-sub001/internal/domain"
	"github.com/wanderleymp/finance-api-sub001/internal/domain/entity"
	infranfse "github.com/wanderleymp/finance-api-sub001/internal/infrastructure/nfse"
	"golang.org/x/text/unicode/norm"
)

const provedorPadrao = "padrao"

// PayloadConfig valores padrão da emissão.
type PayloadConfig struct {
	Environment     string // producao | homologacao
	DefaultAliquota decimal.Decimal
	ServiceCode     string // cTribNac quando o item não informa LC 116
}

// BuiltPayload DPS pronta para envio e os valores calculados que vão para a tabela nfse.
type BuiltPayload struct {
	DPS          *infranfse.DPS
	ServiceValue decimal.Decimal
	IssValue     decimal.Decimal
	Aliquota     decimal.Decimal
}

// PayloadBuilder mapeia movimento, tomador, licença e itens para a DPS do provedor.
type PayloadBuilder struct {
	cfg      PayloadConfig
	validate *validator.Validate
	now      func() time.Time
}

// NewPayloadBuilder constrói o builder.
func NewPayloadBuilder(cfg PayloadConfig) *PayloadBuilder {
	if cfg.Environment == "" {
		cfg.Environment = entity.EnvironmentHomologacao
	}
	return &PayloadBuilder{
		cfg:      cfg,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		now:      time.Now,
	}
}

var hundred = decimal.NewFromInt(100)

// Build monta a DPS. Dados incompletos devolvem *domain.ValidationError com o person_id envolvido.
func (b *PayloadBuilder) Build(movement *entity.Movement, tomador *entity.Person, license *entity.License, items []entity.MovementItem) (*BuiltPayload, error) {
	if movement == nil {
		return nil, &domain.ValidationError{Code: domain.CodeMissingMovement, Message: "movimento não informado"}
	}
	if license == nil {
		return nil, &domain.ValidationError{Code: domain.CodeMissingLicense, Message: "licença não informada",
			Details: map[string]any{"movement_id": movement.ID}}
	}
	if license.Person == nil {
		return nil, &domain.ValidationError{Code: domain.CodeMissingPerson, Message: "licença sem pessoa vinculada",
			Details: map[string]any{"license_id": license.ID}}
	}
	if tomador == nil {
		return nil, &domain.ValidationError{Code: domain.CodeMissingPerson, Message: "tomador não informado",
			Details: map[string]any{"movement_id": movement.ID}}
	}
	if len(items) == 0 {
		return nil, &domain.ValidationError{Code: domain.CodeMissingItems, Message: "movimento sem itens",
			Details: map[string]any{"movement_id": movement.ID}}
	}

	issuerCNPJ, err := issuerDocument(license.Person)
	if err != nil {
		return nil, err
	}
	toma, err := b.tomador(tomador)
	if err != nil {
		return nil, err
	}

	serviceValue := decimal.Zero
	for _, it := range items {
		if it.TotalPrice != nil {
			serviceValue = serviceValue.Add(*it.TotalPrice)
		}
	}
	serviceValue = serviceValue.Round(2)
	aliquota := b.cfg.DefaultAliquota
	for _, it := range items {
		if it.Aliquota != nil {
			aliquota = *it.Aliquota
			break
		}
	}
	iss := serviceValue.Mul(aliquota).Div(hundred).Round(2)

	now := b.now()
	competencia := movement.MovementDate
	if competencia.IsZero() {
		competencia = now
	}

	dps := &infranfse.DPS{
		Provedor:   provedorPadrao,
		Ambiente:   b.cfg.Environment,
		Referencia: movement.ID,
		InfDPS: infranfse.InfDPS{
			TpAmb:   tpAmb(b.cfg.Environment),
			DhEmi:   now.Format(time.RFC3339),
			DCompet: competencia.Format("2006-01-02"),
			Prest:   infranfse.Prestador{CNPJ: issuerCNPJ},
			Toma:    *toma,
			Serv: infranfse.Servico{CServ: infranfse.CodigoServico{
				CTribNac:  b.tribNac(items),
				CNAE:      firstCNAE(items),
				XDescServ: serviceDescription(movement, items),
			}},
			Valores: infranfse.Valores{
				VServPrest: infranfse.ValorServico{VServ: infranfse.NewAmount(serviceValue)},
				Trib: infranfse.Tributacao{
					TribMun: infranfse.TributacaoMunicipal{
						TribISSQN:  infranfse.TribISSQNTributavel,
						TpRetISSQN: infranfse.RetISSQNNaoRetido,
						PAliq:      infranfse.NewAmount(aliquota),
					},
					TotTrib: infranfse.TotalTributos{IndTotTrib: infranfse.IndTotTribNaoInformar},
				},
			},
		},
	}

	if err := b.check(dps, tomador.ID); err != nil {
		return nil, err
	}
	return &BuiltPayload{DPS: dps, ServiceValue: serviceValue, IssValue: iss, Aliquota: aliquota}, nil
}

// issuerDocument exige documento do tipo CNPJ com valor.
func issuerDocument(p *entity.Person) (string, error) {
	if len(p.Documents) == 0 {
		return "", domain.NewValidationError(domain.CodeMissingDocument, "prestador sem documentos", p.ID)
	}
	doc := p.DocumentByType(entity.DocumentTypeCNPJ)
	if doc == nil {
		return "", domain.NewValidationError(domain.CodeMissingDocument, "prestador sem CNPJ", p.ID)
	}
	value := digits(doc.Value)
	if value == "" {
		return "", domain.NewValidationError(domain.CodeInvalidDocument, "CNPJ do prestador sem valor", p.ID)
	}
	return value, nil
}

func (b *PayloadBuilder) tomador(p *entity.Person) (*infranfse.Tomador, error) {
	doc := p.FirstDocument()
	if doc == nil {
		return nil, domain.NewValidationError(domain.CodeMissingDocument, "tomador sem documentos", p.ID)
	}
	value := digits(doc.Value)
	if value == "" {
		return nil, domain.NewValidationError(domain.CodeInvalidDocument, "documento do tomador sem valor", p.ID)
	}
	addr := p.PrimaryAddress()
	if addr == nil {
		return nil, domain.NewValidationError(domain.CodeMissingAddress, "tomador sem endereço", p.ID)
	}

	t := &infranfse.Tomador{
		XNome: cleanText(p.Name),
		Email: strings.TrimSpace(p.Email()),
		End: infranfse.Endereco{
			EndNac: infranfse.EnderecoNacional{
				CMun: ibgeCode(addr.IBGE),
				CEP:  digits(addr.PostalCode),
			},
			XLgr:    cleanText(addr.Street),
			Nro:     cleanText(addr.Number),
			XCpl:    cleanText(addr.Complement),
			XBairro: cleanText(addr.Neighborhood),
		},
	}
	switch {
	case strings.EqualFold(doc.Type, entity.DocumentTypeCNPJ):
		t.CNPJ = value
	case strings.EqualFold(doc.Type, entity.DocumentTypeCPF):
		t.CPF = value
	case len(value) == 14:
		t.CNPJ = value
	case len(value) == 11:
		t.CPF = value
	default:
		return nil, domain.NewValidationError(domain.CodeInvalidDocument,
			fmt.Sprintf("documento do tomador do tipo %q não é CPF nem CNPJ", doc.Type), p.ID)
	}
	return t, nil
}

// check confere a DPS contra o contrato das tags validate.
func (b *PayloadBuilder) check(dps *infranfse.DPS, personID string) error {
	err := b.validate.Struct(dps)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validar DPS: %w", err)
	}
	fields := make(map[string]string, len(verrs))
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields[fe.Namespace()] = fe.Tag()
		msgs = append(msgs, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
	}
	return &domain.ValidationError{
		Code:    domain.CodeInvalidPayload,
		Message: "DPS inválida: " + strings.Join(msgs, ", "),
		Details: map[string]any{"person_id": personID, "fields": fields},
	}
}

func (b *PayloadBuilder) tribNac(items []entity.MovementItem) string {
	for _, it := range items {
		if code := tribNacFromLC116(it.ServiceCode); code != "" {
			return code
		}
	}
	return b.cfg.ServiceCode
}

// tribNacFromLC116 converte "1.01" / "01.01" / "0101" para o código nacional de 6 dígitos.
func tribNacFromLC116(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return ""
	}
	if parts := strings.Split(code, "."); len(parts) == 2 {
		item, err1 := strconv.Atoi(parts[0])
		sub, err2 := strconv.Atoi(parts[1])
		if err1 != nil || err2 != nil {
			return ""
		}
		return fmt.Sprintf("%02d%02d01", item, sub)
	}
	d := digits(code)
	switch len(d) {
	case 4:
		return d + "01"
	case 6:
		return d
	}
	return ""
}

func firstCNAE(items []entity.MovementItem) string {
	for _, it := range items {
		if c := digits(it.CNAE); c != "" {
			return c
		}
	}
	return ""
}

func serviceDescription(m *entity.Movement, items []entity.MovementItem) string {
	if d := cleanText(m.Description); d != "" {
		return d
	}
	parts := make([]string, 0, len(items))
	for _, it := range items {
		if d := cleanText(it.Description); d != "" {
			parts = append(parts, d)
		}
	}
	return strings.Join(parts, "; ")
}

func tpAmb(environment string) int {
	if environment == entity.EnvironmentProducao {
		return 1
	}
	return 2
}

// ibgeCode o provedor só aceita o código do município como string de 7 dígitos.
func ibgeCode(ibge int) string {
	if ibge <= 0 {
		return ""
	}
	return strconv.Itoa(ibge)
}

func digits(s string) string {
	var sb strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// cleanText normaliza para NFC, remove caracteres de controle e colapsa espaços.
func cleanText(s string) string {
	s = norm.NFC.String(s)
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}
