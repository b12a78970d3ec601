package handler_test

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/boddenberg/alugueis-admin-go/internal/config"
	"github.com/boddenberg/alugueis-admin-go/internal/domain"
	"github.com/boddenberg/alugueis-admin-go/internal/events"
	"github.com/boddenberg/alugueis-admin-go/internal/handler"
	"github.com/boddenberg/alugueis-admin-go/internal/infra/client"
	"github.com/boddenberg/alugueis-admin-go/internal/infra/observability"
	"github.com/boddenberg/alugueis-admin-go/internal/infra/resilience"
	"github.com/boddenberg/alugueis-admin-go/internal/infra/sessionstore"
	"github.com/boddenberg/alugueis-admin-go/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// newFullDeps wires every module against backend the way cmd/admin does.
func newFullDeps(t *testing.T, backend string) handler.Deps {
	t.Helper()
	logger := zap.NewNop()
	metrics := observability.NewMetrics()

	cfg := config.Load()
	cfg.Version = "9.9.9"
	cfg.Modules = config.Modules{
		Dashboard: true, Proprietarios: true, Imoveis: true, Participacoes: true,
		Alugueis: true, Importacao: true, Relatorios: true, Usuarios: true,
	}

	api := client.NewAPIClient(
		&http.Client{Timeout: 5 * time.Second},
		backend,
		resilience.NewCircuitBreaker("api", logger),
		resilience.NewBulkhead(10),
		metrics,
		logger,
	)
	store := sessionstore.NewMemory(time.Hour)
	t.Cleanup(func() { _ = store.Close() })
	sessions := service.NewSessionManager(api, store, cfg.Endpoints.Auth, time.Hour, metrics, logger)
	t.Cleanup(sessions.Close)
	api.OnUnauthorized(sessions.HandleUnauthorized)

	owners := service.NewOwnerService(api, cfg.Endpoints.Proprietarios, time.Hour, logger)
	properties := service.NewPropertyService(api, cfg.Endpoints.Imoveis, time.Hour, logger)
	participations := service.NewParticipationService(api, cfg.Endpoints.Participacoes, cfg.Endpoints.Proprietarios, cfg.Endpoints.Imoveis, time.Hour, logger)
	rentals := service.NewRentalService(api, cfg.Endpoints.Alugueis, time.Hour, logger)
	t.Cleanup(owners.Close)
	t.Cleanup(properties.Close)
	t.Cleanup(participations.Close)
	t.Cleanup(rentals.Close)

	bus := events.NewBus(metrics, logger)
	bus.Subscribe(domain.KindProperties, "imoveis", properties.Reload)
	paths := map[domain.EntityKind]string{}
	for _, kind := range domain.ImportKinds {
		paths[kind] = cfg.Endpoints.Collection(kind)
	}

	return handler.Deps{
		Config:         cfg,
		Sessions:       sessions,
		Owners:         owners,
		Properties:     properties,
		Participations: participations,
		Rentals:        rentals,
		Imports:        service.NewImportService(api, paths, bus, metrics, logger),
		Dashboard:      service.NewDashboardService(api, cfg.Endpoints.Proprietarios, cfg.Endpoints.Imoveis, cfg.Endpoints.Alugueis, logger),
		Reports:        service.NewReportService(api, cfg.Endpoints.Relatorios, logger),
		Users:          service.NewUserService(api, cfg.Endpoints.Auth, logger),
		API:            api,
		Metrics:        metrics,
		Logger:         logger,
	}
}

// seedModules fills the backend with one period of data for every screen.
func seedModules(api *backend) {
	api.serve("GET", "/api/proprietarios/", `[{"id":1,"nome":"Maria","sobrenome":"Souza"},{"id":2,"nome":"João","sobrenome":"Lima"}]`)
	api.serve("GET", "/api/proprietarios/1", `{"id":1,"nome":"Maria","sobrenome":"Souza","email":"maria@example.com"}`)
	api.serve("GET", "/api/imoveis/", `[{"id":10,"nome":"Apto Centro","endereco":"Rua A, 1"}]`)

	api.serve("GET", "/api/participacoes/datas", `{"datas":["2024-06-01"]}`)
	api.serve("GET", "/api/participacoes/?data_registro=2024-06-01", `[
		{"imovel_id":10,"proprietario_id":1,"porcentagem":60},
		{"imovel_id":10,"proprietario_id":2,"porcentagem":40}
	]`)
	api.serve("POST", "/api/participacoes/nova-versao", `{"mensagem":"Nova versão criada"}`)

	api.serve("GET", "/api/alugueis/anos-disponiveis/", `{"anos":[2024],"total":1}`)
	api.serve("GET", "/api/alugueis/ultimo-periodo/", `{"ano":2024,"mes":3}`)
	api.serve("GET", "/api/alugueis/meses/2024", `[1,2,3]`)
	api.serve("GET", "/api/alugueis/distribuicao-matriz/?ano=2024&mes=3", `{
		"imoveis":[{"id":10,"nome":"Apto Centro"}],
		"proprietarios":[{"id":1,"nome":"Maria Souza"}],
		"matriz":[{"proprietario_id":1,"nome_proprietario":"Maria Souza","valores":{"Apto Centro":1500}}]
	}`)
	api.serve("GET", "/api/alugueis/listar?ano=2024&mes=3", `[
		{"id":5,"imovel_id":10,"proprietario_id":1,"mes":3,"ano":2024,"valor_aluguel_proprietario":1500,"nome_imovel":"Apto Centro","nome_proprietario":"Maria Souza"}
	]`)
	api.serve("GET", "/api/alugueis/listar", `[{"id":5,"imovel_id":10,"proprietario_id":1,"mes":3,"ano":2024,"valor_liquido_proprietario":1350}]`)
	api.serve("GET", "/api/alugueis/obter/5", `{"success":true,"data":{"id":5,"imovel_id":10,"proprietario_id":1,"mes":3,"ano":2024,"valor_aluguel_proprietario":1500,"observacoes":"reajuste anual"}}`)
	api.serve("PUT", "/api/alugueis/5", `{"mensagem":"Aluguel atualizado","aluguel":{"id":5}}`)

	api.serve("GET", "/api/reportes/anos-disponiveis", `[2024, 2023]`)
	api.serve("GET", "/api/reportes/resumen-mensual", `[
		{"nome_proprietario":"Maria Souza","mes":3,"ano":2024,"valor_total":1500,"quantidade_imoveis":1},
		{"nome_proprietario":"João Lima","mes":3,"ano":2024,"valor_total":500,"quantidade_imoveis":1}
	]`)
	api.serve("GET", "/api/reportes/resumen-mensual?ano=2023", `[]`)

	api.serve("GET", "/api/auth/usuarios", `{"success":true,"data":[{"id":1,"usuario":"admin","tipo_de_usuario":"administrador"},{"id":2,"usuario":"bia","tipo_de_usuario":"visualizador"}]}`)
	api.serve("POST", "/api/auth/cadastrar-usuario", `{"mensagem":"Usuário cadastrado"}`)
}

func (b *browser) login(v string) {
	b.t.Helper()
	b.get("/" + v + "/login")
	resp, _ := b.post("/"+v+"/login", url.Values{"usuario": {"admin"}, "senha": {"secret"}, "csrf_token": {b.csrf()}})
	require.Equal(b.t, http.StatusSeeOther, resp.StatusCode)
}

func (b *browser) upload(path, filename string, content []byte) (*http.Response, string) {
	b.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(b.t, mw.WriteField("csrf_token", b.csrf()))
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(b.t, err)
	_, _ = part.Write(content)
	require.NoError(b.t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, b.base+path, &buf)
	require.NoError(b.t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return b.do(req)
}

func newModulesBrowser(t *testing.T) (*browser, *backend) {
	t.Helper()
	api := fakeBackend(t)
	seedModules(api)
	b := newBrowser(t, handler.NewRouter(newFullDeps(t, api.URL)))
	b.login("desktop")
	return b, api
}

// ============================================================
// A rejected token on any backend call ends the session
// ============================================================

func TestScreens_RejectedTokenGoesToExpiredLogin(t *testing.T) {
	tests := []struct {
		name   string
		screen string
		reject string
	}{
		{"owner edit form", "/desktop/proprietarios?editar=1", "/api/proprietarios/1"},
		{"rental records", "/desktop/alugueis", "/api/alugueis/listar"},
		{"rental form options", "/desktop/alugueis", "/api/imoveis/"},
		{"rental months", "/desktop/alugueis", "/api/alugueis/meses/2024"},
		{"rental edit form", "/desktop/alugueis?ano=2024&mes=3&editar=5", "/api/alugueis/obter/5"},
		{"dashboard", "/desktop/dashboard", "/api/imoveis/"},
		{"participations", "/desktop/participacoes", "/api/participacoes/datas"},
		{"report owners", "/desktop/relatorios", "/api/proprietarios/"},
		{"report summary", "/desktop/relatorios", "/api/reportes/resumen-mensual"},
		{"users", "/desktop/usuarios", "/api/auth/usuarios"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, api := newModulesBrowser(t)
			api.reject(tt.reject)

			resp, _ := b.get(tt.screen)
			require.Equal(t, http.StatusSeeOther, resp.StatusCode)
			assert.Equal(t, "/desktop/login?expirada=1", resp.Header.Get("Location"))

			resp, _ = b.get("/desktop/proprietarios")
			assert.Equal(t, http.StatusSeeOther, resp.StatusCode, "the session is logged out")
		})
	}
}

// ============================================================
// Participations
// ============================================================

func TestParticipations_RendersMatrix(t *testing.T) {
	b, _ := newModulesBrowser(t)

	resp, body := b.get("/desktop/participacoes")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Apto Centro")
	assert.Contains(t, body, "Maria Souza")
	assert.Contains(t, body, "João Lima")
	assert.Contains(t, body, "60.00 %")
	assert.Contains(t, body, "40.00 %")
	assert.Contains(t, body, "100%")
	assert.Contains(t, body, `name="pct_1"`, "admins get the new version form")
}

func TestParticipations_NewVersionPostsFullSet(t *testing.T) {
	b, api := newModulesBrowser(t)
	b.get("/desktop/participacoes")

	resp, _ := b.post("/desktop/participacoes/nova-versao", url.Values{
		"csrf_token": {b.csrf()},
		"data":       {"2024-06-01"},
		"imovel_id":  {"10"},
		"pct_1":      {"50"},
		"pct_2":      {"50,00"},
	})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/desktop/participacoes", resp.Header.Get("Location"))

	var sent domain.NewVersionRequest
	require.NoError(t, json.Unmarshal(api.body("POST", "/api/participacoes/nova-versao"), &sent))
	assert.ElementsMatch(t, []domain.ParticipationInput{
		{ImovelID: 10, ProprietarioID: 1, Porcentagem: 50},
		{ImovelID: 10, ProprietarioID: 2, Porcentagem: 50},
	}, sent.Participacoes)

	_, body := b.get("/desktop/participacoes")
	assert.Contains(t, body, "Nova versão de participações criada com sucesso.")
}

func TestParticipations_NewVersionRejectsBadSum(t *testing.T) {
	b, api := newModulesBrowser(t)

	resp, _ := b.post("/desktop/participacoes/nova-versao", url.Values{
		"csrf_token": {b.csrf()},
		"data":       {"2024-06-01"},
		"imovel_id":  {"10"},
		"pct_1":      {"70"},
		"pct_2":      {"40"},
	})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Nil(t, api.body("POST", "/api/participacoes/nova-versao"))

	_, body := b.get(resp.Header.Get("Location"))
	assert.Contains(t, body, "A soma deve ser 100%")
}

// ============================================================
// Rentals
// ============================================================

func TestRentals_RendersLatestPeriod(t *testing.T) {
	b, _ := newModulesBrowser(t)

	resp, body := b.get("/desktop/alugueis")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `<option value="2024" selected>`)
	assert.Contains(t, body, `<option value="3" selected>Março</option>`)
	assert.Contains(t, body, "Apto Centro")
	assert.Contains(t, body, "Registros")
	assert.Contains(t, body, "/desktop/alugueis/5/excluir")
	assert.Contains(t, body, "Novo aluguel")
}

func TestRentals_EditFormIsPrefilled(t *testing.T) {
	b, _ := newModulesBrowser(t)

	resp, body := b.get("/desktop/alugueis?ano=2024&mes=3&editar=5")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `action="/desktop/alugueis/5"`)
	assert.Contains(t, body, `value="reajuste anual"`)
	assert.Contains(t, body, `value="1500"`)
}

func TestRentals_UpdatePutsRecord(t *testing.T) {
	b, api := newModulesBrowser(t)
	b.get("/desktop/alugueis")

	resp, _ := b.post("/desktop/alugueis/5", url.Values{
		"csrf_token":                 {b.csrf()},
		"imovel_id":                  {"10"},
		"proprietario_id":            {"1"},
		"mes":                        {"3"},
		"ano":                        {"2024"},
		"valor_aluguel_proprietario": {"1.600,50"},
	})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/desktop/alugueis?ano=2024&mes=3", resp.Header.Get("Location"))

	var sent domain.Rental
	require.NoError(t, json.Unmarshal(api.body("PUT", "/api/alugueis/5"), &sent))
	assert.Equal(t, 1600.50, sent.ValorAluguelProprietario)
	assert.Equal(t, 3, sent.Mes)

	_, body := b.get(resp.Header.Get("Location"))
	assert.Contains(t, body, "Aluguel atualizado com sucesso.")
}

func TestRentals_DoubleDeleteIsSentOnce(t *testing.T) {
	b, api := newModulesBrowser(t)
	api.serve("DELETE", "/api/alugueis/5", `{"success":true}`)
	entered, release := api.hold("DELETE", "/api/alugueis/5")
	t.Cleanup(release)
	b.get("/desktop/alugueis")

	form := url.Values{"csrf_token": {b.csrf()}, "ano": {"2024"}, "mes": {"3"}}
	first := make(chan int, 1)
	go func() {
		req, err := http.NewRequest(http.MethodPost, b.base+"/desktop/alugueis/5/excluir", strings.NewReader(form.Encode()))
		if err != nil {
			first <- 0
			return
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		resp, err := b.client.Do(req)
		if err != nil {
			first <- 0
			return
		}
		resp.Body.Close()
		first <- resp.StatusCode
	}()

	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("first delete never reached the backend")
	}

	resp, _ := b.post("/desktop/alugueis/5/excluir", form)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/desktop/alugueis?ano=2024&mes=3", resp.Header.Get("Location"))
	_, body := b.get(resp.Header.Get("Location"))
	assert.Contains(t, body, "Operação já em andamento, aguarde.")

	release()
	assert.Equal(t, http.StatusSeeOther, <-first)
	assert.Equal(t, 1, api.count("DELETE", "/api/alugueis/5"))
}

// ============================================================
// Import
// ============================================================

func TestImport_RendersEscapedResult(t *testing.T) {
	b, api := newModulesBrowser(t)
	api.serve("POST", "/api/imoveis/importar/", `{"mensagem":"1 imóvel importado","importados":1,"erros":["<script>alert(1)</script>"]}`)

	resp, body := b.upload("/desktop/importacao/imoveis", "imóveis&1.xls", []byte("legacy workbook"))

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "1 imóvel importado")
	assert.Contains(t, body, "imóveis&amp;1.xls")
	assert.Contains(t, body, "<strong>importados</strong>: 1")
	assert.Contains(t, body, "&lt;script&gt;alert(1)&lt;/script&gt;")
	assert.NotContains(t, body, "<script>alert(1)")
	assert.NotEmpty(t, api.body("POST", "/api/imoveis/importar/"))
}

func TestImport_BackendFailureIsShown(t *testing.T) {
	b, api := newModulesBrowser(t)
	api.serve("POST", "/api/imoveis/importar/", `{"success":false,"mensagem":"planilha sem cabeçalho"}`)

	resp, body := b.upload("/desktop/importacao/imoveis", "imoveis.xls", []byte("legacy workbook"))

	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Contains(t, body, "alert-danger")
}

// ============================================================
// Reports
// ============================================================

func TestReports_RendersSummary(t *testing.T) {
	b, _ := newModulesBrowser(t)

	resp, body := b.get("/desktop/relatorios")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Todos os anos")
	assert.Contains(t, body, `<option value="2023">2023</option>`)
	assert.Contains(t, body, "João Lima")
	assert.Contains(t, body, "Maria Souza")
	assert.Less(t, strings.Index(body, "João Lima</td>"), strings.Index(body, "Maria Souza</td>"), "rows of a period are ordered by owner")
}

func TestReports_EmptyFilter(t *testing.T) {
	b, _ := newModulesBrowser(t)

	resp, body := b.get("/desktop/relatorios?ano=2023")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Nenhum dado encontrado para os filtros selecionados.")
	assert.Contains(t, body, `<option value="2023" selected>2023</option>`)
}

// ============================================================
// Users
// ============================================================

func TestUsers_ListAndCreate(t *testing.T) {
	b, api := newModulesBrowser(t)

	resp, body := b.get("/desktop/usuarios")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "bia")
	assert.Contains(t, body, "/desktop/usuarios/2/excluir")
	assert.NotContains(t, body, "/desktop/usuarios/1/excluir", "an admin cannot delete their own account")

	resp, _ = b.post("/desktop/usuarios", url.Values{
		"csrf_token":      {b.csrf()},
		"usuario":         {"caio"},
		"senha":           {"123456"},
		"tipo_de_usuario": {"usuario"},
	})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	var sent domain.NewUserRequest
	require.NoError(t, json.Unmarshal(api.body("POST", "/api/auth/cadastrar-usuario"), &sent))
	assert.Equal(t, "caio", sent.Usuario)

	_, body = b.get("/desktop/usuarios")
	assert.Contains(t, body, "Usuário caio cadastrado com sucesso.")
}

func TestUsers_ShortPasswordIsNotSent(t *testing.T) {
	b, api := newModulesBrowser(t)
	b.get("/desktop/usuarios")

	resp, _ := b.post("/desktop/usuarios", url.Values{
		"csrf_token":      {b.csrf()},
		"usuario":         {"caio"},
		"senha":           {"123"},
		"tipo_de_usuario": {"usuario"},
	})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Nil(t, api.body("POST", "/api/auth/cadastrar-usuario"))

	_, body := b.get("/desktop/usuarios")
	assert.Contains(t, body, "Senha deve ter pelo menos 6 caracteres")
}
