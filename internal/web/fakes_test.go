package web

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/guaruja-saneamento/adesoes/internal/auth"
	"github.com/guaruja-saneamento/adesoes/internal/config"
	"github.com/guaruja-saneamento/adesoes/internal/core"
	"github.com/guaruja-saneamento/adesoes/internal/presence"
)

// fakeService answers from its function fields; unset operations fail
// the test.
type fakeService struct {
	t *testing.T

	importFn   func(core.ImportRequest) (*core.ImportReport, error)
	previewFn  func(core.ImportRequest) (*core.ImportPreview, error)
	searchFn   func(core.AdhesionFilter) (*core.AdhesionPage, error)
	updateFn   func(ctx context.Context, m string, fields map[string]any) (core.Row, error)
	deleteFn   func(m string) error
	photosFn   func(m string) (*string, error)
	confFn     func(core.ConferenceFilter) ([]core.Row, error)
	upsertFn   func(m string, in core.ConferenceInput) (core.Row, error)
	usersFn    func() ([]core.User, error)
	createFn   func(core.NewUser) (*core.User, error)
	updUserFn  func(id int64, up core.UserUpdate) (*core.User, error)
	delUserFn  func(id int64) error
	auditFn    func(core.AuditLogOptions) ([]core.AuditEntry, error)
	pingErr    error
	lastImport core.ImportRequest
}

func (f *fakeService) missing(op string) {
	f.t.Helper()
	f.t.Fatalf("unexpected call to %s", op)
}

func (f *fakeService) Import(ctx context.Context, req core.ImportRequest) (*core.ImportReport, error) {
	f.lastImport = req
	if f.importFn == nil {
		f.missing("Import")
	}
	return f.importFn(req)
}

func (f *fakeService) PreviewImport(ctx context.Context, req core.ImportRequest) (*core.ImportPreview, error) {
	if f.previewFn == nil {
		f.missing("PreviewImport")
	}
	return f.previewFn(req)
}

func (f *fakeService) SearchAdhesions(ctx context.Context, flt core.AdhesionFilter) (*core.AdhesionPage, error) {
	if f.searchFn == nil {
		f.missing("SearchAdhesions")
	}
	return f.searchFn(flt)
}

func (f *fakeService) UpdateAdhesion(ctx context.Context, m string, fields map[string]any) (core.Row, error) {
	if f.updateFn == nil {
		f.missing("UpdateAdhesion")
	}
	return f.updateFn(ctx, m, fields)
}

func (f *fakeService) DeleteAdhesion(ctx context.Context, m string) error {
	if f.deleteFn == nil {
		f.missing("DeleteAdhesion")
	}
	return f.deleteFn(m)
}

func (f *fakeService) GetPhotos(ctx context.Context, m string) (*string, error) {
	if f.photosFn == nil {
		f.missing("GetPhotos")
	}
	return f.photosFn(m)
}

func (f *fakeService) SearchConferences(ctx context.Context, flt core.ConferenceFilter) ([]core.Row, error) {
	if f.confFn == nil {
		f.missing("SearchConferences")
	}
	return f.confFn(flt)
}

func (f *fakeService) UpsertConference(ctx context.Context, m string, in core.ConferenceInput) (core.Row, error) {
	if f.upsertFn == nil {
		f.missing("UpsertConference")
	}
	return f.upsertFn(m, in)
}

func (f *fakeService) ListUsers(ctx context.Context) ([]core.User, error) {
	if f.usersFn == nil {
		f.missing("ListUsers")
	}
	return f.usersFn()
}

func (f *fakeService) CreateUser(ctx context.Context, in core.NewUser) (*core.User, error) {
	if f.createFn == nil {
		f.missing("CreateUser")
	}
	return f.createFn(in)
}

func (f *fakeService) UpdateUser(ctx context.Context, id int64, up core.UserUpdate) (*core.User, error) {
	if f.updUserFn == nil {
		f.missing("UpdateUser")
	}
	return f.updUserFn(id, up)
}

func (f *fakeService) DeleteUser(ctx context.Context, id int64) error {
	if f.delUserFn == nil {
		f.missing("DeleteUser")
	}
	return f.delUserFn(id)
}

func (f *fakeService) AuditEntries(ctx context.Context, opts core.AuditLogOptions) ([]core.AuditEntry, error) {
	if f.auditFn == nil {
		f.missing("AuditEntries")
	}
	return f.auditFn(opts)
}

func (f *fakeService) Ping(ctx context.Context) error { return f.pingErr }

// fakeAuth accepts the tokens in sessions.
type fakeAuth struct {
	sessions  map[string]core.Caller
	loggedOut []int64
}

func (a *fakeAuth) Login(ctx context.Context, login, password string) (string, *core.User, error) {
	if login != "admin" || password != "segredo123" {
		return "", nil, core.ErrInvalidCredentials
	}
	return "tok-admin", &core.User{ID: 1, Login: "admin", Nome: "Admin", NivelAcesso: core.RoleAdmin,
		Permissions: core.FieldPermissions{}}, nil
}

func (a *fakeAuth) Verify(ctx context.Context, token string) (core.Caller, error) {
	switch token {
	case "":
		return core.Caller{}, auth.ErrMissingToken
	case "revoked":
		return core.Caller{}, auth.ErrSessionRevoked
	}
	c, ok := a.sessions[token]
	if !ok {
		return core.Caller{}, auth.ErrInvalidToken
	}
	return c, nil
}

func (a *fakeAuth) Logout(ctx context.Context, c core.Caller) error {
	a.loggedOut = append(a.loggedOut, c.ID)
	return nil
}

func (a *fakeAuth) HashPassword(password string) (string, error) {
	if len(password) < 8 {
		return "", core.ErrPasswordTooShort
	}
	return "hash:" + password, nil
}

// Tokens known to fakeAuth.
const (
	adminToken = "tok-admin"
	clerkToken = "tok-clerk"
	fieldToken = "tok-field"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			RequestTimeout: 5 * time.Second,
			AllowedOrigins: []string{"*"},
		},
		Import: config.ImportConfig{MaxFileSize: 1 << 20},
	}
}

type testServer struct {
	*Server
	svc  *fakeService
	auth *fakeAuth
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	svc := &fakeService{t: t}
	a := &fakeAuth{sessions: map[string]core.Caller{
		adminToken: {ID: 1, Login: "admin", Role: core.RoleAdmin},
		clerkToken: {ID: 2, Login: "ana", Role: core.RoleBackoffice},
		fieldToken: {ID: 3, Login: "rui", Role: "campo"},
	}}
	srv := NewServer(testConfig(), Deps{Service: svc, Auth: a, Presence: presence.NewRegistry()})
	return &testServer{Server: srv, svc: svc, auth: a}
}

// do sends a request through the router. body may be nil, a []byte
// (sent as is) or any value (sent as JSON).
func (ts *testServer) do(t *testing.T, method, path, token string, body any, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case []byte:
		rd = bytes.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
		if contentType == "" {
			contentType = "application/json"
		}
	}

	req := httptest.NewRequest(method, path, rd)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.Router().ServeHTTP(rec, req)
	return rec
}

// multipartBody builds an upload form. An empty fileName omits csvFile.
func multipartBody(t *testing.T, fields map[string]string, fileName string, data []byte) ([]byte, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if fileName != "" {
		fw, err := mw.CreateFormFile("csvFile", fileName)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return buf.Bytes(), mw.FormDataContentType()
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}
