package core

// adesoes columns accepted by the generic import, in INSERT order.
var adesoesImportColumns = []FieldSpec{
	{Name: "matricula"},
	{Name: "dt_envio", Type: FieldDate},
	{Name: "endereco"},
	{Name: "comunidade"},
	{Name: "tentativa_1"},
	{Name: "tentativa_2"},
	{Name: "status_adesao"},
	{Name: "data_adesao", Type: FieldDate},
	{Name: "alt_serv"},
	{Name: "dt_atualiz_cad", Type: FieldDate},
	{Name: "dt_troca_tit", Type: FieldDate},
	{Name: "dt_inclusao_cad", Type: FieldDate},
	{Name: "servico_alterado"},
	{Name: "validacao"},
	{Name: "pendencia"},
	{Name: "status_obra"},
	{Name: "data_obra", Type: FieldDate},
	{Name: "status_termo"},
	{Name: "data_termo", Type: FieldDate},
	{Name: "nome_cliente"},
	{Name: "telefone"},
	{Name: "rg"},
	{Name: "cpf"},
	{Name: "email"},
	{Name: "data_nasc", Type: FieldDate},
	{Name: "econ_res", Type: FieldInteger},
	{Name: "econ_com", Type: FieldInteger},
	{Name: "possui_cx_dagua", Type: FieldBool},
	{Name: "relacao_imovel"},
	{Name: "alugado", Type: FieldBool},
	{Name: "tempo_moradia"},
	{Name: "n_adultos", Type: FieldInteger},
	{Name: "n_criancas", Type: FieldInteger},
	{Name: "tipo_comercio"},
	{Name: "forma_esgotamento"},
	{Name: "obs_atividade"},
	{Name: "deseja_receb_info", Type: FieldBool},
	{Name: "latitude", Type: FieldFloat},
	{Name: "longitude", Type: FieldFloat},
}

// AdesoesSchema describes the adesoes table. orgao_expedidor is edited by
// hand and never imported.
func AdesoesSchema() *TableSchema {
	fields := make([]FieldSpec, 0, len(adesoesImportColumns)+1)
	for _, f := range adesoesImportColumns {
		f.Import = true
		fields = append(fields, f)
	}
	fields = append(fields, FieldSpec{Name: "orgao_expedidor"})

	return &TableSchema{Table: "adesoes", Key: "matricula", Fields: fields}
}

// NovaLigacaoSchema describes nova_ligacao. The generic import only writes
// matricula, codigo, bairro, coordinates and fotos; the remaining columns
// are filled by the legacy importer.
func NovaLigacaoSchema() *TableSchema {
	return &TableSchema{
		Table: "nova_ligacao",
		Key:   "matricula",
		Fields: []FieldSpec{
			{Name: "matricula", Import: true},
			{Name: "codigo", Import: true},
			{Name: "bairro", Import: true},
			{Name: "latitude", Type: FieldFloat, Import: true},
			{Name: "longitude", Type: FieldFloat, Import: true},
			{Name: "fotos", Import: true},
			{Name: "digito"},
			{Name: "cod_antigo"},
			{Name: "comunidade"},
			{Name: "rua"},
			{Name: "numero"},
			{Name: "complemento"},
			{Name: "numero_complemento"},
			{Name: "endereco_completo"},
		},
	}
}

// Field returns the definition of the named column.
func (s *TableSchema) Field(name string) (FieldSpec, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// ImportFields returns the importable columns in declaration order.
func (s *TableSchema) ImportFields() []FieldSpec {
	out := make([]FieldSpec, 0, len(s.Fields))
	for _, f := range s.Fields {
		if f.Import {
			out = append(out, f)
		}
	}
	return out
}

// ImportColumnNames returns the importable column names in declaration order.
func (s *TableSchema) ImportColumnNames() []string {
	fields := s.ImportFields()
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = f.Name
	}
	return out
}
