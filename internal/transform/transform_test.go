package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/saudedigital/siasus-pa/internal/models"
)

func tableWith(fields []string, rows ...[]string) *models.Table {
	table := &models.Table{}
	for _, name := range fields {
		table.Fields = append(table.Fields, models.Field{Name: name, Type: 'C', Width: 10})
	}
	table.Rows = rows
	return table
}

func TestApply(t *testing.T) {
	t.Run("RenamesKnownColumns", func(t *testing.T) {
		table := tableWith([]string{"PA_CODUNI", "PA_PROC_ID"}, []string{"1234567", "0301060029"})

		Apply(table)

		assert.Equal(t, []string{"estabelecimento_id_scnes", "procedimento_id_sigtap"}, table.FieldNames())
	})

	t.Run("UnknownColumnsPassThrough", func(t *testing.T) {
		table := tableWith([]string{"F1", "F2"}, []string{"a", "b"})

		Apply(table)

		assert.Equal(t, []string{"F1", "F2"}, table.FieldNames())
		assert.Equal(t, [][]string{{"a", "b"}}, table.Rows)
	})

	t.Run("AllZeroCodesCleared", func(t *testing.T) {
		table := tableWith([]string{"PA_REGCT", "PA_CNPJMNT"}, []string{"0000", "00000000000000"})

		Apply(table)

		assert.Equal(t, [][]string{{"", ""}}, table.Rows)
	})

	t.Run("AllNineCodesCleared", func(t *testing.T) {
		table := tableWith([]string{"PA_CATEND", "PA_MUNPCN"}, []string{"99", "999999"})

		Apply(table)

		assert.Equal(t, [][]string{{"", ""}}, table.Rows)
	})

	t.Run("MixedCodesKept", func(t *testing.T) {
		table := tableWith([]string{"PA_REGCT", "PA_CATEND"}, []string{"0100", "90"})

		Apply(table)

		assert.Equal(t, [][]string{{"0100", "90"}}, table.Rows)
	})

	t.Run("UnknownAgeCleared", func(t *testing.T) {
		table := tableWith([]string{"PA_IDADE"}, []string{"999"}, []string{"42"})

		Apply(table)

		assert.Equal(t, [][]string{{""}, {"42"}}, table.Rows)
	})

	t.Run("MaintainedFlag", func(t *testing.T) {
		table := tableWith([]string{"PA_MN_IND"}, []string{"M"}, []string{"I"})

		Apply(table)

		assert.Equal(t, [][]string{{"true"}, {"false"}}, table.Rows)
	})

	t.Run("OutcomeFlagsConverted", func(t *testing.T) {
		table := tableWith(
			[]string{"PA_MOTSAI", "PA_OBITO", "PA_ALTA"},
			[]string{"11", "0", "1"},
		)

		Apply(table)

		assert.Equal(t, [][]string{{"11", "false", "true"}}, table.Rows)
	})

	t.Run("OutcomeFlagsBlankedWithoutDischargeReason", func(t *testing.T) {
		table := tableWith(
			[]string{"PA_MOTSAI", "PA_OBITO", "PA_ALTA"},
			[]string{"00", "0", "1"},
		)

		Apply(table)

		// Discharge reason "00" is a sentinel; the flags mean nothing then.
		assert.Equal(t, [][]string{{"", "", ""}}, table.Rows)
	})

	t.Run("ServiceCodeSplit", func(t *testing.T) {
		table := tableWith(
			[]string{"PA_PROC_ID", "PA_SRV_C", "PA_INE"},
			[]string{"0301060029", "121001", "ine1"},
		)

		Apply(table)

		assert.Equal(t, []string{
			"procedimento_id_sigtap",
			"servico_id_sigtap",
			"servico_classificacao_id_sigtap",
			"equipe_id_ine",
		}, table.FieldNames())
		assert.Equal(t, [][]string{{"0301060029", "121", "001", "ine1"}}, table.Rows)
	})

	t.Run("ShortServiceCodeKeepsServicePartOnly", func(t *testing.T) {
		table := tableWith([]string{"PA_SRV_C"}, []string{"12"})

		Apply(table)

		assert.Equal(t, [][]string{{"12", ""}}, table.Rows)
	})
}
