// Package transform normalizes decoded ambulatory-procedure tables: raw
// PA_* dissemination columns are renamed to their canonical analytic names
// and sentinel values are cleared. Columns outside the known PA layout pass
// through untouched.
package transform

import (
	"strings"

	"github.com/saudedigital/siasus-pa/internal/models"
)

// renameMap maps the dissemination file's raw column names to the canonical
// names used in the consolidated output.
var renameMap = map[string]string{
	"PA_CODUNI":  "estabelecimento_id_scnes",
	"PA_GESTAO":  "gestao_unidade_geografica_id_sus",
	"PA_CONDIC":  "gestao_condicao_id_siasus",
	"PA_UFMUN":   "unidade_geografica_id_sus",
	"PA_REGCT":   "regra_contratual_id_scnes",
	"PA_INCOUT":  "incremento_outros_id_sigtap",
	"PA_INCURG":  "incremento_urgencia_id_sigtap",
	"PA_TPUPS":   "estabelecimento_tipo_id_sigtap",
	"PA_TIPPRE":  "prestador_tipo_id_sigtap",
	"PA_MN_IND":  "estabelecimento_mantido",
	"PA_CNPJCPF": "estabelecimento_id_cnpj",
	"PA_CNPJMNT": "mantenedora_id_cnpj",
	"PA_CNPJ_CC": "receptor_credito_id_cnpj",
	"PA_MVM":     "processamento_periodo_data_inicio",
	"PA_CMP":     "realizacao_periodo_data_inicio",
	"PA_PROC_ID": "procedimento_id_sigtap",
	"PA_TPFIN":   "financiamento_tipo_id_sigtap",
	"PA_SUBFIN":  "financiamento_subtipo_id_sigtap",
	"PA_NIVCPL":  "complexidade_id_siasus",
	"PA_DOCORIG": "instrumento_registro_id_siasus",
	"PA_AUTORIZ": "autorizacao_id_siasus",
	"PA_CNSMED":  "profissional_id_cns",
	"PA_CBOCOD":  "profissional_vinculo_ocupacao_id_cbo2002",
	"PA_MOTSAI":  "desfecho_motivo_id_siasus",
	"PA_OBITO":   "obito",
	"PA_ENCERR":  "encerramento",
	"PA_PERMAN":  "permanencia",
	"PA_ALTA":    "alta",
	"PA_TRANSF":  "transferencia",
	"PA_CIDPRI":  "condicao_principal_id_cid10",
	"PA_CIDSEC":  "condicao_secundaria_id_cid10",
	"PA_CIDCAS":  "condicao_associada_id_cid10",
	"PA_CATEND":  "carater_atendimento_id_siasus",
	"PA_IDADE":   "usuario_idade",
	"IDADEMIN":   "procedimento_idade_minima",
	"IDADEMAX":   "procedimento_idade_maxima",
	"PA_FLIDADE": "compatibilidade_idade_id_siasus",
	"PA_SEXO":    "usuario_sexo_id_sigtap",
	"PA_RACACOR": "usuario_raca_cor_id_siasus",
	"PA_MUNPCN":  "usuario_residencia_municipio_id_sus",
	"PA_QTDPRO":  "quantidade_apresentada",
	"PA_QTDAPR":  "quantidade_aprovada",
	"PA_VALPRO":  "valor_apresentado",
	"PA_VALAPR":  "valor_aprovado",
	"PA_UFDIF":   "atendimento_residencia_ufs_distintas",
	"PA_MNDIF":   "atendimento_residencia_municipios_distintos",
	"PA_DIF_VAL": "procedimento_valor_diferenca_sigtap",
	"NU_VPA_TOT": "procedimento_valor_vpa",
	"NU_PA_TOT":  "procedimento_valor_sigtap",
	"PA_INDICA":  "aprovacao_status_id_siasus",
	"PA_CODOCO":  "ocorrencia_id_siasus",
	"PA_FLQT":    "erro_quantidade_apresentada_id_siasus",
	"PA_FLER":    "erro_apac",
	"PA_ETNIA":   "usuario_etnia_id_sus",
	"PA_VL_CF":   "complemento_valor_federal",
	"PA_VL_CL":   "complemento_valor_local",
	"PA_VL_INC":  "incremento_valor",
	"PA_SRV_C":   "servico_especializado_id_scnes",
	"PA_INE":     "equipe_id_ine",
	"PA_NAT_JUR": "estabelecimento_natureza_juridica_id_scnes",
}

// Codes made entirely of zeros mean "not informed" in these columns.
var zeroAsEmpty = map[string]bool{
	"regra_contratual_id_scnes":        true,
	"incremento_outros_id_sigtap":      true,
	"incremento_urgencia_id_sigtap":    true,
	"mantenedora_id_cnpj":              true,
	"receptor_credito_id_cnpj":         true,
	"financiamento_subtipo_id_sigtap":  true,
	"condicao_principal_id_cid10":      true,
	"autorizacao_id_siasus":            true,
	"profissional_id_cns":              true,
	"condicao_secundaria_id_cid10":     true,
	"condicao_associada_id_cid10":      true,
	"desfecho_motivo_id_siasus":        true,
	"usuario_sexo_id_sigtap":           true,
	"usuario_raca_cor_id_siasus":       true,
}

// Codes made entirely of nines mean "not informed" in these columns.
var nineAsEmpty = map[string]bool{
	"carater_atendimento_id_siasus":               true,
	"usuario_residencia_municipio_id_sus":         true,
	"atendimento_residencia_ufs_distintas":        true,
	"atendimento_residencia_municipios_distintos": true,
}

// booleanColumns carry a '0'/'1' flag converted to false/true text.
var booleanColumns = []string{
	"obito",
	"encerramento",
	"permanencia",
	"alta",
	"transferencia",
	"atendimento_residencia_ufs_distintas",
	"atendimento_residencia_municipios_distintos",
}

// outcomeFlags are meaningless without a discharge reason and are blanked
// when desfecho_motivo_id_siasus is empty.
var outcomeFlags = []string{
	"obito",
	"encerramento",
	"permanencia",
	"alta",
	"transferencia",
}

const (
	serviceColumn               = "servico_especializado_id_scnes"
	serviceCodeColumn           = "servico_id_sigtap"
	serviceClassificationColumn = "servico_classificacao_id_sigtap"
	ageColumn                   = "usuario_idade"
	maintainedColumn            = "estabelecimento_mantido"
	dischargeReasonColumn       = "desfecho_motivo_id_siasus"
)

// Apply normalizes one decoded table in place and returns it.
func Apply(table *models.Table) *models.Table {
	renameFields(table)
	index := fieldIndex(table)

	for _, row := range table.Rows {
		clearSentinels(row, table.Fields, index)
		convertBooleans(row, index)
	}

	splitServiceColumn(table)
	return table
}

func renameFields(table *models.Table) {
	for i := range table.Fields {
		name := strings.TrimSpace(table.Fields[i].Name)
		if canonical, ok := renameMap[name]; ok {
			name = canonical
		}
		table.Fields[i].Name = name
	}
}

func fieldIndex(table *models.Table) map[string]int {
	index := make(map[string]int, len(table.Fields))
	for i, f := range table.Fields {
		index[f.Name] = i
	}
	return index
}

func clearSentinels(row []string, fields []models.Field, index map[string]int) {
	for i, f := range fields {
		if zeroAsEmpty[f.Name] && isRepeated(row[i], '0') {
			row[i] = ""
		}
		if nineAsEmpty[f.Name] && isRepeated(row[i], '9') {
			row[i] = ""
		}
	}

	if i, ok := index[ageColumn]; ok && row[i] == "999" {
		row[i] = ""
	}

	if i, ok := index[maintainedColumn]; ok {
		if row[i] == "M" {
			row[i] = "true"
		} else {
			row[i] = "false"
		}
	}
}

func isRepeated(value string, digit byte) bool {
	if value == "" {
		return false
	}
	for i := 0; i < len(value); i++ {
		if value[i] != digit {
			return false
		}
	}
	return true
}

func convertBooleans(row []string, index map[string]int) {
	for _, name := range booleanColumns {
		i, ok := index[name]
		if !ok {
			continue
		}
		switch row[i] {
		case "0":
			row[i] = "false"
		case "1":
			row[i] = "true"
		default:
			row[i] = ""
		}
	}

	if i, ok := index[dischargeReasonColumn]; ok && row[i] == "" {
		for _, name := range outcomeFlags {
			if j, ok := index[name]; ok {
				row[j] = ""
			}
		}
	}
}

// splitServiceColumn separates the combined SCNES specialized-service code
// into its service and classification parts, dropping the combined column.
func splitServiceColumn(table *models.Table) {
	position := -1
	for i, f := range table.Fields {
		if f.Name == serviceColumn {
			position = i
			break
		}
	}
	if position < 0 {
		return
	}

	combined := table.Fields[position]
	service := models.Field{Name: serviceCodeColumn, Type: 'C', Width: 3}
	classification := models.Field{Name: serviceClassificationColumn, Type: 'C', Width: combined.Width - 3}

	fields := make([]models.Field, 0, len(table.Fields)+1)
	fields = append(fields, table.Fields[:position]...)
	fields = append(fields, service, classification)
	fields = append(fields, table.Fields[position+1:]...)
	table.Fields = fields

	for r, row := range table.Rows {
		code := row[position]
		var servicePart, classificationPart string
		if len(code) > 3 {
			servicePart, classificationPart = code[:3], code[3:]
		} else {
			servicePart = code
		}

		updated := make([]string, 0, len(row)+1)
		updated = append(updated, row[:position]...)
		updated = append(updated, servicePart, classificationPart)
		updated = append(updated, row[position+1:]...)
		table.Rows[r] = updated
	}
}
