package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeUpload(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  string
	}{
		{"plain utf8", []byte("matrícula"), "matrícula"},
		{"bom removed", []byte("\xEF\xBB\xBFmatricula"), "matricula"},
		{"cp1252 decoded", []byte("Matr\xedcula;A\xe7\xe3o"), "Matrícula;Ação"},
		{"cp1252 punctuation", []byte("\x93aspas\x94"), "“aspas”"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, string(decodeUpload(tt.input)))
		})
	}
}

func TestParseCSV(t *testing.T) {
	data := "\"Matrícula\";Bairro \n\nA1;Centro\n;\nA2;\"Vila; Nova\"\nA3\n"

	p, err := parseCSV([]byte(data))
	require.NoError(t, err)

	assert.Equal(t, []string{"Matrícula", "Bairro"}, p.Headers)
	assert.Equal(t, [][]string{
		{"A1", "Centro"},
		{"A2", "Vila; Nova"},
		{"A3"},
	}, p.Rows)
	assert.Equal(t, []int{3, 5, 6}, p.Lines)
}

func TestParseCSV_LazyQuotes(t *testing.T) {
	p, err := parseCSV([]byte("matricula,obs\nA1,diz \"oi\" ali\n"))
	require.NoError(t, err)
	assert.Equal(t, `diz "oi" ali`, p.Rows[0][1])
}

func TestParseCSV_Empty(t *testing.T) {
	_, err := parseCSV(nil)
	assert.ErrorIs(t, err, ErrEmptyFile)

	p, err := parseCSV([]byte("matricula\n"))
	require.NoError(t, err)
	assert.Empty(t, p.Rows)
}
