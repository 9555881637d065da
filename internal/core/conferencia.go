package core

import (
	"context"
	"fmt"
)

// ConferenceFilter selects rows of the verification view. Non-empty
// fields are case-insensitive substring matches on the adhesion.
type ConferenceFilter struct {
	Matricula   string
	Endereco    string
	Comunidade  string
	NomeCliente string
}

// ConferenceInput is the verification record of one adhesion. Dates are
// accepted in any form ParseDate understands; blank values store NULL.
type ConferenceInput struct {
	EquipeConf        string `json:"equipe_conf"`
	DtConf            string `json:"dt_conf"`
	StatusFinal       string `json:"status_final"`
	EntregaCliente    string `json:"entrega_cliente"`
	AlteracaoPendente string `json:"alteracao_pendente"`
	ObsProgramacao    string `json:"obs_programacao"`
	DtAlteracao       string `json:"dt_alteracao"`
	Titularidade      string `json:"titularidade"`
	CpfStatus         string `json:"cpf_status"`
}

const conferenceSelect = `SELECT
	a.matricula, a.nome_cliente, a.orgao_expedidor,
	c.equipe_conf, c.dt_conf, c.status_final, c.titularidade
FROM adesoes a
LEFT JOIN conferencia c ON a.matricula = c.matricula`

func conferenceSearchSQL(f ConferenceFilter) (string, []any) {
	wb := NewWhereBuilder()
	wb.AddContains("a.matricula", f.Matricula)
	wb.AddContains("a.endereco", f.Endereco)
	wb.AddContains("a.comunidade", f.Comunidade)
	wb.AddContains("a.nome_cliente", f.NomeCliente)
	where, args := wb.Build()
	return conferenceSelect + where + " ORDER BY a.matricula", args
}

// SearchConferences lists adhesions with their verification data, if any.
func (s *Service) SearchConferences(ctx context.Context, f ConferenceFilter) ([]Row, error) {
	sql, args := conferenceSearchSQL(f)
	rows, err := s.queryRows(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("search conferences: %w", err)
	}
	return rows, nil
}

const conferenceUpsert = `INSERT INTO conferencia (
	matricula, equipe_conf, dt_conf, status_final, entrega_cliente,
	alteracao_pendente, obs_programacao, dt_alteracao, titularidade, cpf_status
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (matricula) DO UPDATE SET
	equipe_conf = EXCLUDED.equipe_conf,
	dt_conf = EXCLUDED.dt_conf,
	status_final = EXCLUDED.status_final,
	entrega_cliente = EXCLUDED.entrega_cliente,
	alteracao_pendente = EXCLUDED.alteracao_pendente,
	obs_programacao = EXCLUDED.obs_programacao,
	dt_alteracao = EXCLUDED.dt_alteracao,
	titularidade = EXCLUDED.titularidade,
	cpf_status = EXCLUDED.cpf_status
RETURNING *`

func (in ConferenceInput) args(matricula string) []any {
	return []any{
		matricula,
		ToPgText(in.EquipeConf),
		ToPgDate(in.DtConf),
		ToPgText(in.StatusFinal),
		ToPgText(in.EntregaCliente),
		ToPgText(in.AlteracaoPendente),
		ToPgText(in.ObsProgramacao),
		ToPgDate(in.DtAlteracao),
		ToPgText(in.Titularidade),
		ToPgText(in.CpfStatus),
	}
}

// UpsertConference stores the verification record of an adhesion and
// returns the saved row.
func (s *Service) UpsertConference(ctx context.Context, matricula string, in ConferenceInput) (Row, error) {
	rows, err := s.queryRows(ctx, conferenceUpsert, in.args(matricula)...)
	if err != nil {
		return nil, fmt.Errorf("save conference %s: %w", matricula, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("save conference %s: no row returned", matricula)
	}
	s.recordRowChange(ctx, ActionConferenceSave, "conferencia", matricula, rows[0])
	return rows[0], nil
}
