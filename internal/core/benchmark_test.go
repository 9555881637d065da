package core

import (
	"bytes"
	"fmt"
	"testing"
)

// ============================================================================
// Normalizer Benchmarks
// ============================================================================

// BenchmarkToPgDate benchmarks date parsing, a hot path for the data_*
// columns of adesoes.
func BenchmarkToPgDate(b *testing.B) {
	testCases := []string{
		"15/01/2024",
		"2024-01-15",
		"5/1/2024",
		"15/01/2024 10:30:00",
		"não informado",
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, tc := range testCases {
			ToPgDate(tc)
		}
	}
}

// BenchmarkToPgFloat8 benchmarks coordinate parsing with comma decimals.
func BenchmarkToPgFloat8(b *testing.B) {
	testCases := []string{"-23,9876543", "-46.2564", "", "abc"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, tc := range testCases {
			ToPgFloat8(tc)
		}
	}
}

// BenchmarkToPgBool benchmarks the sim/não normalizer.
func BenchmarkToPgBool(b *testing.B) {
	testCases := []string{"Sim", "não", "S", "n", "talvez"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, tc := range testCases {
			ToPgBool(tc)
		}
	}
}

// ============================================================================
// Header and Separator Benchmarks
// ============================================================================

func BenchmarkNormalizeHeader(b *testing.B) {
	headers := []string{"Matrícula", "Data da Adesão", "Possui Cx Dágua", "  Nº Imóvel  "}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, h := range headers {
			NormalizeHeader(h)
		}
	}
}

func BenchmarkDetectSeparator(b *testing.B) {
	data := []byte("Matrícula;Nome Cliente;Comunidade;Endereço;Data da Adesão\n1;Maria, a filha;Perequê;Rua 1;01/02/2024\n")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		DetectSeparator(data)
	}
}

// ============================================================================
// Parse and Record Benchmarks
// ============================================================================

// generateAdesoesCSV builds a semicolon separated adesoes file.
func generateAdesoesCSV(rows int) []byte {
	var buf bytes.Buffer
	buf.WriteString("Matrícula;Nome Cliente;Comunidade;Data da Adesão;Latitude;Possui Cx Dágua\n")
	for i := 0; i < rows; i++ {
		fmt.Fprintf(&buf, "M%05d;Cliente %d;Perequê;%02d/03/2024;-23,99%d;Sim\n", i, i, i%28+1, i%10)
	}
	return buf.Bytes()
}

func BenchmarkParseCSV(b *testing.B) {
	sizes := []int{100, 1000, 10000}

	for _, size := range sizes {
		data := generateAdesoesCSV(size)
		b.Run(fmt.Sprintf("rows=%d", size), func(b *testing.B) {
			b.SetBytes(int64(len(data)))
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := parseCSV(data); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkBuildRecords(b *testing.B) {
	schema := AdesoesSchema()
	parsed, err := parseCSV(generateAdesoesCSV(1000))
	if err != nil {
		b.Fatal(err)
	}
	idx := MapHeaders(parsed.Headers, schema)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		buildRecords(schema, idx, parsed, &ImportReport{})
	}
}

func BenchmarkNextMatricula(b *testing.B) {
	for i := 0; i < b.N; i++ {
		nextMatricula("JC", "JC0999")
	}
}
