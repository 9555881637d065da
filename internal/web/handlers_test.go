package web

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guaruja-saneamento/adesoes/internal/core"
)

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, "GET", "/healthz", "", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody(t, rec)["status"])

	ts.svc.pingErr = errors.New("connection refused")
	rec = ts.do(t, "GET", "/healthz", "", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestLogin(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name    string
		body    any
		status  int
		message string
	}{
		{"success", map[string]string{"login_usuario": "admin", "password": "segredo123"}, http.StatusOK, "Login bem-sucedido!"},
		{"wrong password", map[string]string{"login_usuario": "admin", "password": "errada"}, http.StatusUnauthorized, "Usuário ou senha inválidos."},
		{"missing password", map[string]string{"login_usuario": "admin"}, http.StatusBadRequest, "Login de usuário e senha são obrigatórios."},
		{"malformed body", []byte("{"), http.StatusBadRequest, "Login de usuário e senha são obrigatórios."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, "POST", "/login", "", tt.body, "application/json")
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			body := decodeBody(t, rec)
			assert.Equal(t, tt.message, body["message"])
			if tt.status == http.StatusOK {
				assert.Equal(t, adminToken, body["token"])
				user := body["user"].(map[string]any)
				assert.Equal(t, "admin", user["login_usuario"])
				assert.NotContains(t, user, "PasswordHash")
			}
		})
	}
}

func TestLogout(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, "POST", "/logout", clerkToken, nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []int64{2}, ts.auth.loggedOut)
}

func TestAuthentication(t *testing.T) {
	ts := newTestServer(t)
	ts.svc.confFn = func(core.ConferenceFilter) ([]core.Row, error) { return []core.Row{}, nil }

	tests := []struct {
		name   string
		token  string
		status int
	}{
		{"no token", "", http.StatusUnauthorized},
		{"unknown token", "forged", http.StatusForbidden},
		{"revoked session", "revoked", http.StatusForbidden},
		{"valid", clerkToken, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, "GET", "/api/conferencia", tt.token, nil, "")
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestRoleGates(t *testing.T) {
	ts := newTestServer(t)
	ts.svc.deleteFn = func(string) error { return nil }
	ts.svc.usersFn = func() ([]core.User, error) { return []core.User{}, nil }
	ts.svc.auditFn = func(core.AuditLogOptions) ([]core.AuditEntry, error) { return []core.AuditEntry{}, nil }
	ts.svc.importFn = func(req core.ImportRequest) (*core.ImportReport, error) {
		return &core.ImportReport{Type: req.Type, Outcome: core.PhaseCommitted}, nil
	}
	csv, ct := multipartBody(t, nil, "nl.csv", []byte("COMUNIDADE\nCanta Galo\n"))

	tests := []struct {
		name        string
		method      string
		path        string
		token       string
		body        any
		contentType string
		status      int
	}{
		{"clerk cannot delete adhesion", "DELETE", "/api/adhesions/CG0001", clerkToken, nil, "", http.StatusForbidden},
		{"admin deletes adhesion", "DELETE", "/api/adhesions/CG0001", adminToken, nil, "", http.StatusOK},
		{"clerk cannot list users", "GET", "/users", clerkToken, nil, "", http.StatusForbidden},
		{"admin lists users", "GET", "/users", adminToken, nil, "", http.StatusOK},
		{"clerk cannot read audit", "GET", "/api/audit", clerkToken, nil, "", http.StatusForbidden},
		{"field user cannot run legacy import", "POST", "/api/upload-nova-ligacao-csv", fieldToken, csv, ct, http.StatusForbidden},
		{"clerk runs legacy import", "POST", "/api/upload-nova-ligacao-csv", clerkToken, csv, ct, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, tt.method, tt.path, tt.token, tt.body, tt.contentType)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func TestUpload(t *testing.T) {
	data := []byte("Matrícula;Nome Cliente\nCG0001;Ana\n")

	tests := []struct {
		name    string
		fields  map[string]string
		file    string
		result  func(core.ImportRequest) (*core.ImportReport, error)
		status  int
		message string
	}{
		{
			name:   "committed",
			fields: map[string]string{"importType": "adesoes"},
			file:   "a.csv",
			result: func(req core.ImportRequest) (*core.ImportReport, error) {
				return &core.ImportReport{ID: "imp-1", Type: req.Type, Outcome: core.PhaseCommitted, Processed: 1}, nil
			},
			status:  http.StatusOK,
			message: "Importação concluída! 1 registos processados.",
		},
		{
			name:   "partial",
			fields: map[string]string{"importType": "nova_ligacao"},
			file:   "n.csv",
			result: func(req core.ImportRequest) (*core.ImportReport, error) {
				return &core.ImportReport{Type: req.Type, Outcome: core.PhaseCommitted, Processed: 4,
					Errors: []string{"Linha 3: erro"}}, nil
			},
			status:  http.StatusMultiStatus,
			message: "Processamento concluído com 4 registros inseridos e 1 erros.",
		},
		{
			name:   "rolled back",
			fields: map[string]string{"importType": "adesoes"},
			file:   "a.csv",
			result: func(req core.ImportRequest) (*core.ImportReport, error) {
				return nil, &core.ImportError{
					Report: &core.ImportReport{ID: "imp-2", Outcome: core.PhaseRolledBack},
					Err:    &core.RowError{Line: 2, Err: errors.New("value too long")},
				}
			},
			status:  http.StatusInternalServerError,
			message: "Erro interno do servidor durante a importação.",
		},
		{
			name:   "invalid type",
			fields: map[string]string{"importType": "clientes"},
			file:   "a.csv",
			result: func(core.ImportRequest) (*core.ImportReport, error) {
				return nil, core.ErrInvalidImportType
			},
			status:  http.StatusBadRequest,
			message: `Tipo de importação inválido. Use "adesoes" ou "nova_ligacao".`,
		},
		{
			name:    "legacy type refused",
			fields:  map[string]string{"importType": string(core.ImportLegacy)},
			file:    "nl.csv",
			status:  http.StatusBadRequest,
			message: `Tipo de importação inválido. Use "adesoes" ou "nova_ligacao".`,
		},
		{
			name:   "busy",
			fields: map[string]string{"importType": "adesoes"},
			file:   "a.csv",
			result: func(core.ImportRequest) (*core.ImportReport, error) {
				return nil, core.ErrTooManyImports
			},
			status:  http.StatusTooManyRequests,
			message: "Já existe uma importação em curso.",
		},
		{
			name:    "no file",
			fields:  map[string]string{"importType": "adesoes"},
			status:  http.StatusBadRequest,
			message: "Nenhum ficheiro CSV enviado.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			ts.svc.importFn = tt.result

			body, ct := multipartBody(t, tt.fields, tt.file, data)
			rec := ts.do(t, "POST", "/api/upload", clerkToken, body, ct)

			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			resp := decodeBody(t, rec)
			assert.Equal(t, tt.message, resp["message"])

			switch tt.status {
			case http.StatusOK, http.StatusMultiStatus:
				assert.IsType(t, []any{}, resp["errors"])
				assert.Equal(t, core.ImportType(tt.fields["importType"]), ts.svc.lastImport.Type)
				assert.Equal(t, tt.file, ts.svc.lastImport.FileName)
				assert.Equal(t, data, ts.svc.lastImport.Data)
			case http.StatusInternalServerError:
				assert.Equal(t, "value too long", resp["error"])
			}
		})
	}
}

func TestUpload_TooLarge(t *testing.T) {
	ts := newTestServer(t)
	ts.cfg.Import.MaxFileSize = 64

	body, ct := multipartBody(t, map[string]string{"importType": "adesoes"}, "a.csv", make([]byte, 1024))
	rec := ts.do(t, "POST", "/api/upload", clerkToken, body, ct)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestLegacyUpload_ForcesType(t *testing.T) {
	ts := newTestServer(t)
	ts.svc.importFn = func(req core.ImportRequest) (*core.ImportReport, error) {
		return &core.ImportReport{Type: req.Type, Outcome: core.PhaseCommitted, Processed: 2}, nil
	}

	body, ct := multipartBody(t, map[string]string{"importType": "adesoes"}, "nl.csv", []byte("COMUNIDADE\nBarreiro\n"))
	rec := ts.do(t, "POST", "/api/upload-nova-ligacao-csv", adminToken, body, ct)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, core.ImportLegacy, ts.svc.lastImport.Type)
	assert.Equal(t, "Arquivo CSV de Nova Ligação processado com sucesso! 2 registros inseridos.", decodeBody(t, rec)["message"])
}

func TestPreview(t *testing.T) {
	ts := newTestServer(t)
	var got core.ImportRequest
	ts.svc.previewFn = func(req core.ImportRequest) (*core.ImportPreview, error) {
		got = req
		return &core.ImportPreview{Type: req.Type, Summary: core.PreviewSummary{TotalRows: 1, NewRows: 1}}, nil
	}

	body, ct := multipartBody(t, map[string]string{"importType": "nova_ligacao"}, "n.csv", []byte("matricula\nCG1\n"))
	rec := ts.do(t, "POST", "/api/upload/preview", clerkToken, body, ct)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, core.ImportNovaLigacao, got.Type)
	summary := decodeBody(t, rec)["summary"].(map[string]any)
	assert.Equal(t, float64(1), summary["newRows"])
}

func TestPreview_ImportTypes(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		token  string
		typ    string
		status int
		want   core.ImportType
	}{
		{"legacy on generic route", "/api/upload/preview", fieldToken, string(core.ImportLegacy), http.StatusBadRequest, ""},
		{"unknown type", "/api/upload/preview", clerkToken, "clientes", http.StatusBadRequest, ""},
		{"legacy route", "/api/upload-nova-ligacao-csv/preview", clerkToken, "adesoes", http.StatusOK, core.ImportLegacy},
		{"legacy route needs role", "/api/upload-nova-ligacao-csv/preview", fieldToken, "", http.StatusForbidden, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			if tt.want != "" {
				ts.svc.previewFn = func(req core.ImportRequest) (*core.ImportPreview, error) {
					assert.Equal(t, tt.want, req.Type)
					return &core.ImportPreview{Type: req.Type}, nil
				}
			}

			body, ct := multipartBody(t, map[string]string{"importType": tt.typ}, "nl.csv", []byte("COMUNIDADE\nBarreiro\n"))
			rec := ts.do(t, "POST", tt.path, tt.token, body, ct)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func TestSearchAdhesions_QueryParams(t *testing.T) {
	ts := newTestServer(t)
	var got core.AdhesionFilter
	ts.svc.searchFn = func(f core.AdhesionFilter) (*core.AdhesionPage, error) {
		got = f
		return &core.AdhesionPage{Rows: []core.Row{{"matricula": "CG0001"}}, HasMore: true, TotalCount: 7}, nil
	}

	rec := ts.do(t, "GET", "/api/adhesions?nome_cliente=ana&status_adesao=ok&limit=5&offset=x", clerkToken, nil, "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, core.AdhesionFilter{NomeCliente: "ana", StatusAdesao: "ok", Limit: 5, Offset: 0}, got)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["hasMore"])
	assert.Equal(t, float64(7), body["totalCount"])
}

func TestUpdateAdhesion(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"ok", nil, http.StatusOK},
		{"not found", core.ErrNotFound, http.StatusNotFound},
		{"no fields", core.ErrNoFields, http.StatusBadRequest},
		{"unknown field", core.ErrUnknownField, http.StatusBadRequest},
		{"not permitted", core.ErrFieldNotPermitted, http.StatusForbidden},
		{"bad value", core.ValidationError{Field: "dt_envio", Message: "invalid date"}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			ts.svc.updateFn = func(ctx context.Context, m string, fields map[string]any) (core.Row, error) {
				c, ok := core.CallerFromContext(ctx)
				require.True(t, ok)
				assert.Equal(t, int64(2), c.ID)
				assert.Equal(t, "CG0001", m)
				assert.Equal(t, map[string]any{"status_adesao": "ok"}, fields)
				if tt.err != nil {
					return nil, tt.err
				}
				return core.Row{"matricula": m, "status_adesao": "ok"}, nil
			}

			rec := ts.do(t, "PUT", "/api/adhesions/CG0001", clerkToken, map[string]any{"status_adesao": "ok"}, "")
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.status == http.StatusOK {
				assert.Equal(t, "Adesão atualizada com sucesso!", decodeBody(t, rec)["message"])
			}
		})
	}
}

func TestDeleteAdhesion_NotFound(t *testing.T) {
	ts := newTestServer(t)
	ts.svc.deleteFn = func(string) error { return core.ErrNotFound }

	rec := ts.do(t, "DELETE", "/api/adhesions/XX0001", adminToken, nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Adesão não encontrada.", decodeBody(t, rec)["message"])
}

func TestSaveConference(t *testing.T) {
	ts := newTestServer(t)
	var got core.ConferenceInput
	ts.svc.upsertFn = func(m string, in core.ConferenceInput) (core.Row, error) {
		got = in
		return core.Row{"matricula": m}, nil
	}

	rec := ts.do(t, "PUT", "/api/conferencia/CG0001", clerkToken,
		map[string]string{"equipe_conf": "Equipe A", "dt_conf": "01/02/2024"}, "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, core.ConferenceInput{EquipeConf: "Equipe A", DtConf: "01/02/2024"}, got)
	assert.Equal(t, "Dados de conferência salvos com sucesso!", decodeBody(t, rec)["message"])
}

func TestPhotos(t *testing.T) {
	urls := "https://fotos/1.jpg"
	ts := newTestServer(t)
	ts.svc.photosFn = func(m string) (*string, error) {
		switch m {
		case "CG0001":
			return &urls, nil
		case "CG0002":
			return nil, nil
		}
		return nil, core.ErrNotFound
	}

	tests := []struct {
		path   string
		status int
		fotos  any
	}{
		{"/api/fotos/CG0001", http.StatusOK, urls},
		{"/api/fotos/CG0002", http.StatusOK, nil},
		{"/api/fotos/ZZ0001", http.StatusOK, nil},
		{"/api/nova_ligacao/CG0001", http.StatusOK, urls},
		{"/api/nova_ligacao/ZZ0001", http.StatusNotFound, nil},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := ts.do(t, "GET", tt.path, clerkToken, nil, "")
			require.Equal(t, tt.status, rec.Code)
			body := decodeBody(t, rec)
			if tt.status == http.StatusOK {
				assert.Contains(t, body, "fotos")
				assert.Equal(t, tt.fotos, body["fotos"])
			} else {
				assert.Equal(t, "Nenhuma ligação encontrada para esta matrícula.", body["message"])
			}
		})
	}
}

func TestCreateUser(t *testing.T) {
	valid := map[string]any{
		"login_usuario": "ana",
		"password":      "segredo123",
		"nome":          "Ana",
		"nivel_acesso":  "backoffice",
	}
	without := func(key string) map[string]any {
		m := map[string]any{}
		for k, v := range valid {
			if k != key {
				m[k] = v
			}
		}
		return m
	}
	with := func(key string, val any) map[string]any {
		m := without(key)
		m[key] = val
		return m
	}

	tests := []struct {
		name    string
		body    map[string]any
		err     error
		status  int
		message string
	}{
		{"created", valid, nil, http.StatusCreated, "Usuário criado com sucesso!"},
		{"missing name", without("nome"), nil, http.StatusBadRequest, "O campo nome é obrigatório."},
		{"short password", with("password", "curta"), nil, http.StatusBadRequest, "A senha deve ter no mínimo 8 caracteres."},
		{"duplicate login", valid, core.ErrDuplicateLogin, http.StatusConflict, "Nome de usuário já existe."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			ts.svc.createFn = func(in core.NewUser) (*core.User, error) {
				assert.Equal(t, "hash:segredo123", in.PasswordHash)
				if tt.err != nil {
					return nil, tt.err
				}
				return &core.User{ID: 9, Login: in.Login, Nome: in.Nome, NivelAcesso: in.NivelAcesso}, nil
			}

			rec := ts.do(t, "POST", "/users", adminToken, tt.body, "")
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.message, decodeBody(t, rec)["message"])
		})
	}
}

func TestUpdateUser(t *testing.T) {
	ts := newTestServer(t)
	var got core.UserUpdate
	ts.svc.updUserFn = func(id int64, up core.UserUpdate) (*core.User, error) {
		if id == 404 {
			return nil, core.ErrNotFound
		}
		got = up
		return &core.User{ID: id}, nil
	}

	rec := ts.do(t, "PUT", "/users/5", adminToken, map[string]any{
		"nome":                       "Ana Maria",
		"password":                   "",
		"adhesion_field_permissions": map[string]bool{"status_adesao": true},
	}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotNil(t, got.Nome)
	assert.Equal(t, "Ana Maria", *got.Nome)
	assert.Nil(t, got.PasswordHash)
	assert.Nil(t, got.NivelAcesso)
	assert.Equal(t, core.FieldPermissions{"status_adesao": true}, got.Permissions)

	rec = ts.do(t, "PUT", "/users/5", adminToken, map[string]any{"password": "nova-senha-1"}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, got.PasswordHash)
	assert.Equal(t, "hash:nova-senha-1", *got.PasswordHash)

	rec = ts.do(t, "PUT", "/users/404", adminToken, map[string]any{"nome": "X"}, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, "PUT", "/users/abc", adminToken, map[string]any{"nome": "X"}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "ID de usuário inválido.", decodeBody(t, rec)["message"])
}

func TestDeleteUser(t *testing.T) {
	ts := newTestServer(t)
	ts.svc.delUserFn = func(id int64) error {
		if id != 5 {
			return core.ErrNotFound
		}
		return nil
	}

	assert.Equal(t, http.StatusOK, ts.do(t, "DELETE", "/users/5", adminToken, nil, "").Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, "DELETE", "/users/6", adminToken, nil, "").Code)
}

func TestAuditLog(t *testing.T) {
	ts := newTestServer(t)
	var got core.AuditLogOptions
	ts.svc.auditFn = func(opts core.AuditLogOptions) ([]core.AuditEntry, error) {
		got = opts
		return []core.AuditEntry{}, nil
	}

	rec := ts.do(t, "GET", "/api/audit?action=import&table=adesoes&since=2024-05-01&limit=10", adminToken, nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, core.ActionImport, got.Action)
	assert.Equal(t, "adesoes", got.TableKey)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), got.Since)
	assert.True(t, got.Until.IsZero())
	assert.Equal(t, 10, got.Limit)

	rec = ts.do(t, "GET", "/api/audit?until=ontem", adminToken, nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{core.ErrEmptyFile, http.StatusBadRequest},
		{core.ErrMissingKeyColumn, http.StatusBadRequest},
		{core.ErrFileTooLarge, http.StatusRequestEntityTooLarge},
		{core.ErrNotFound, http.StatusNotFound},
		{core.ErrInvalidCredentials, http.StatusUnauthorized},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
		{badRequest("x", nil), http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.status, statusFor(tt.err))
		})
	}
}
