package httpapi

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"bankmesh.org/internal/auth"
	"bankmesh.org/internal/credit"
	"bankmesh.org/internal/engine"
	"bankmesh.org/internal/ledger"
	"bankmesh.org/internal/obs"
	"bankmesh.org/internal/stream"
)

const (
	testBank  ledger.BankID = 1003004
	otherBank ledger.BankID = 1003005
	password                = "secret"
)

func TestMain(m *testing.M) {
	obs.Logger().SetOutput(io.Discard)
	os.Exit(m.Run())
}

type apiClient struct {
	baseURL string
	client  *http.Client
	engine  *engine.Engine
	t       *testing.T
}

func newTestAPI(t *testing.T, opts ...Option) *apiClient {
	t.Helper()

	eng := engine.New()
	for _, b := range []engine.BankInfo{
		{BIK: testBank, Name: "Belarusbank", Address: "Nezalezhnasci pr, 4"},
		{BIK: otherBank, Name: "Priorbank", Address: "V. Khoruzhey, 31A"},
	} {
		if err := eng.AddBank(b); err != nil {
			t.Fatalf("add bank: %v", err)
		}
	}
	t.Cleanup(eng.Close)

	users := auth.NewDirectory(bcrypt.MinCost)
	for login, role := range map[string]auth.Role{
		"cli":  auth.RoleClient,
		"cli2": auth.RoleClient,
		"opr":  auth.RoleOperator,
		"mng":  auth.RoleManager,
		"ent":  auth.RoleEnterprise,
		"adm":  auth.RoleAdministrator,
	} {
		if err := users.Add(login, password, role); err != nil {
			t.Fatalf("add user %s: %v", login, err)
		}
	}
	tokens, err := auth.NewIssuer("test-secret-0123456789")
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}

	opts = append([]Option{WithRateLimit(1000, 1000)}, opts...)
	api := New(ReadyProbe{}, "test", eng, users, tokens, opts...)

	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	return &apiClient{
		baseURL: srv.URL,
		client:  srv.Client(),
		engine:  eng,
		t:       t,
	}
}

func (c *apiClient) do(method, path, token string, body any) *http.Response {
	c.t.Helper()
	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
		payload = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, c.baseURL+path, payload)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

// expect checks the status and closes the body.
func (c *apiClient) expect(resp *http.Response, code int) {
	c.t.Helper()
	defer resp.Body.Close()
	if resp.StatusCode != code {
		raw, _ := io.ReadAll(resp.Body)
		c.t.Fatalf("expected %d, got %d: %s", code, resp.StatusCode, raw)
	}
}

func (c *apiClient) login(user string) string {
	c.t.Helper()
	resp := c.do(http.MethodPost, "/v1/auth/login", "", credentialsRequest{Login: user, Password: password})
	if resp.StatusCode != http.StatusOK {
		c.t.Fatalf("unexpected login status for %s: %d", user, resp.StatusCode)
	}
	payload := decode[tokenResponse](c.t, resp)
	if payload.Token == "" {
		c.t.Fatalf("empty token issued")
	}
	return payload.Token
}

func (c *apiClient) openAccount(token string, bik ledger.BankID) ledger.AccountID {
	c.t.Helper()
	resp := c.do(http.MethodPost, bankPath(bik, "/accounts"), token, nil)
	if resp.StatusCode != http.StatusCreated {
		c.t.Fatalf("open account: status %d", resp.StatusCode)
	}
	if resp.Header.Get("Location") == "" {
		c.t.Fatalf("expected Location header")
	}
	out := decode[struct {
		ID ledger.AccountID `json:"id"`
	}](c.t, resp)
	return out.ID
}

func (c *apiClient) balance(token string, bik ledger.BankID, id ledger.AccountID) ledger.Money {
	c.t.Helper()
	resp := c.do(http.MethodGet, bankPath(bik, "/accounts"), token, nil)
	if resp.StatusCode != http.StatusOK {
		c.t.Fatalf("list accounts: status %d", resp.StatusCode)
	}
	list := decode[itemsResponse[ledger.Account]](c.t, resp)
	for _, a := range list.Items {
		if a.ID == id {
			return a.Balance
		}
	}
	c.t.Fatalf("account %d not listed", id)
	return 0
}

func bankPath(bik ledger.BankID, suffix string) string {
	return "/v1/banks/" + strconv.FormatUint(uint64(bik), 10) + suffix
}

func decode[T any](t *testing.T, r *http.Response) T {
	t.Helper()
	defer r.Body.Close()
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestHealthzAndInfo(t *testing.T) {
	c := newTestAPI(t)

	resp := c.do(http.MethodGet, "/healthz", "", nil)
	health := decode[map[string]any](t, resp)
	if health["status"] != "ok" || health["version"] != "test" {
		t.Fatalf("unexpected healthz body: %v", health)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatalf("expected X-Request-ID header")
	}
	if resp.Header.Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("expected security headers")
	}

	info := decode[map[string]any](t, c.do(http.MethodGet, "/v1/info", "", nil))
	if info["name"] != serviceName {
		t.Fatalf("unexpected info: %v", info)
	}

	banks := decode[itemsResponse[engine.BankInfo]](t, c.do(http.MethodGet, "/v1/banks", "", nil))
	if len(banks.Items) != 2 || banks.Items[0].BIK != testBank {
		t.Fatalf("unexpected banks: %+v", banks.Items)
	}

	c.expect(c.do(http.MethodGet, "/v1/nope", "", nil), http.StatusUnauthorized)
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("db down") }

func TestReadyzReportsStoreFailure(t *testing.T) {
	api := New(ReadyProbe{Store: failingPinger{}}, "test", engine.New(), auth.NewDirectory(bcrypt.MinCost), nil)
	rr := httptest.NewRecorder()
	api.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	if obs.IsReady() {
		t.Fatalf("expected readiness flag cleared")
	}

	api = New(ReadyProbe{}, "test", engine.New(), auth.NewDirectory(bcrypt.MinCost), nil)
	rr = httptest.NewRecorder()
	api.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusOK || !obs.IsReady() {
		t.Fatalf("expected ready, got %d", rr.Code)
	}
}

func TestAuthRequired(t *testing.T) {
	c := newTestAPI(t)

	resp := c.do(http.MethodGet, bankPath(testBank, "/accounts"), "", nil)
	if resp.Header.Get("WWW-Authenticate") == "" {
		t.Fatalf("expected WWW-Authenticate header")
	}
	c.expect(resp, http.StatusUnauthorized)

	c.expect(c.do(http.MethodGet, bankPath(testBank, "/accounts"), "garbage", nil), http.StatusUnauthorized)
	c.expect(c.do(http.MethodPost, "/v1/auth/login", "", credentialsRequest{Login: "cli", Password: "wrong"}), http.StatusUnauthorized)
	c.expect(c.do(http.MethodPost, "/v1/auth/login", "", map[string]any{"login": "cli", "pass": "x"}), http.StatusBadRequest)
}

func TestRegistrationFlow(t *testing.T) {
	c := newTestAPI(t)

	c.expect(c.do(http.MethodPost, "/v1/auth/register", "", credentialsRequest{Login: "newbie", Password: "pw123"}), http.StatusAccepted)
	c.expect(c.do(http.MethodPost, "/v1/auth/register", "", credentialsRequest{Login: "cli", Password: "pw123"}), http.StatusConflict)
	c.expect(c.do(http.MethodPost, "/v1/auth/login", "", credentialsRequest{Login: "newbie", Password: "pw123"}), http.StatusForbidden)

	c.expect(c.do(http.MethodGet, "/v1/auth/registrations", c.login("cli"), nil), http.StatusForbidden)

	mng := c.login("mng")
	list := decode[itemsResponse[string]](t, c.do(http.MethodGet, "/v1/auth/registrations", mng, nil))
	if len(list.Items) != 1 || list.Items[0] != "newbie" {
		t.Fatalf("unexpected registrations: %v", list.Items)
	}
	c.expect(c.do(http.MethodPost, "/v1/auth/registrations/newbie/accept", mng, nil), http.StatusOK)
	c.expect(c.do(http.MethodPost, "/v1/auth/registrations/ghost/accept", mng, nil), http.StatusNotFound)

	resp := c.do(http.MethodPost, "/v1/auth/login", "", credentialsRequest{Login: "newbie", Password: "pw123"})
	tok := decode[tokenResponse](t, resp)
	if tok.Role != auth.RoleClient {
		t.Fatalf("expected client role, got %q", tok.Role)
	}
}

func TestTransferRevertFlow(t *testing.T) {
	c := newTestAPI(t)
	cli, cli2, opr := c.login("cli"), c.login("cli2"), c.login("opr")

	src := c.openAccount(cli, testBank)
	dst := c.openAccount(cli2, otherBank)
	if got := c.balance(cli, testBank, src); got != 1334 {
		t.Fatalf("expected promo balance 1334, got %d", got)
	}

	body := transferRequest{FromAccount: src, To: ledger.Endpoint{BankID: otherBank, AccountID: dst}, Amount: 334}
	req, _ := http.NewRequest(http.MethodPost, c.baseURL+bankPath(testBank, "/transfers"), bytes.NewReader(mustJSON(t, body)))
	req.Header.Set("Authorization", "Bearer "+cli)
	req.Header.Set("Idempotency-Key", "tx-1")
	resp, err := c.client.Do(req)
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	first := decode[ledger.Transaction](t, resp)

	body.IdempotencyKey = "tx-1"
	resp = c.do(http.MethodPost, bankPath(testBank, "/transfers"), cli, body)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("replay: expected 201, got %d", resp.StatusCode)
	}
	if replay := decode[ledger.Transaction](t, resp); replay.ID != first.ID {
		t.Fatalf("replay returned a new entry: %s != %s", replay.ID, first.ID)
	}
	if got := c.balance(cli, testBank, src); got != 1000 {
		t.Fatalf("expected 1000 after transfer, got %d", got)
	}
	if got := c.balance(cli2, otherBank, dst); got != 1668 {
		t.Fatalf("expected 1668 after transfer, got %d", got)
	}

	body.IdempotencyKey = ""
	body.Amount = 5000
	c.expect(c.do(http.MethodPost, bankPath(testBank, "/transfers"), cli, body), http.StatusConflict)
	body.Amount = 0
	c.expect(c.do(http.MethodPost, bankPath(testBank, "/transfers"), cli, body), http.StatusBadRequest)
	body.Amount = 1
	c.expect(c.do(http.MethodPost, bankPath(testBank, "/transfers"), cli2, body), http.StatusForbidden)

	list := decode[listTransactionsResponse](t, c.do(http.MethodGet, "/v1/transactions?limit=10", opr, nil))
	if len(list.Items) != 1 {
		t.Fatalf("expected one journal entry, got %d", len(list.Items))
	}
	c.expect(c.do(http.MethodGet, "/v1/transactions", cli, nil), http.StatusForbidden)
	c.expect(c.do(http.MethodGet, "/v1/transactions?limit=0", opr, nil), http.StatusBadRequest)

	c.expect(c.do(http.MethodPost, "/v1/transactions/revert", cli, nil), http.StatusForbidden)
	c.expect(c.do(http.MethodPost, "/v1/transactions/revert", opr, nil), http.StatusCreated)
	if got := c.balance(cli, testBank, src); got != 1334 {
		t.Fatalf("expected 1334 after revert, got %d", got)
	}
	c.expect(c.do(http.MethodPost, "/v1/transactions/revert", opr, nil), http.StatusConflict)
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return raw
}

func TestAccountLifecycle(t *testing.T) {
	c := newTestAPI(t)
	cli, mng := c.login("cli"), c.login("mng")

	id := c.openAccount(cli, testBank)
	path := bankPath(testBank, "/accounts/"+id.String())

	c.expect(c.do(http.MethodPut, path+"/status", cli, statusRequest{Status: ledger.StatusFrozen}), http.StatusForbidden)
	c.expect(c.do(http.MethodPut, path+"/status", mng, statusRequest{Status: ledger.StatusFrozen}), http.StatusOK)
	c.expect(c.do(http.MethodPut, path+"/status", mng, map[string]any{"status": "melted"}), http.StatusBadRequest)

	c.expect(c.do(http.MethodDelete, path, cli, nil), http.StatusConflict)
	c.expect(c.do(http.MethodPut, path+"/status", mng, statusRequest{Status: ledger.StatusNormal}), http.StatusOK)

	// Still holds the promo balance.
	c.expect(c.do(http.MethodDelete, path, cli, nil), http.StatusConflict)
	spare := c.openAccount(cli, testBank)
	c.expect(c.do(http.MethodPost, bankPath(testBank, "/transfers"), cli, transferRequest{
		FromAccount: id,
		To:          ledger.Endpoint{BankID: testBank, AccountID: spare},
		Amount:      1334,
	}), http.StatusCreated)
	c.expect(c.do(http.MethodDelete, path, cli, nil), http.StatusNoContent)
	c.expect(c.do(http.MethodDelete, path, cli, nil), http.StatusNotFound)

	c.expect(c.do(http.MethodPost, "/v1/banks/abc/accounts", cli, nil), http.StatusBadRequest)
	c.expect(c.do(http.MethodPost, bankPath(42, "/accounts"), cli, nil), http.StatusNotFound)
	c.expect(c.do(http.MethodPost, bankPath(testBank, "/accounts"), mng, nil), http.StatusForbidden)
}

func TestDepositFlow(t *testing.T) {
	c := newTestAPI(t)
	cli, mng, adm := c.login("cli"), c.login("mng"), c.login("adm")
	acc := c.openAccount(cli, testBank)

	c.expect(c.do(http.MethodPost, "/v1/transfers/unprotected", mng, unprotectedRequest{
		From:   ledger.Endpoint{BankID: testBank},
		To:     ledger.Endpoint{BankID: testBank, AccountID: acc},
		Amount: 10000,
	}), http.StatusCreated)

	c.expect(c.do(http.MethodPost, bankPath(testBank, "/deposits"), cli, engine.DepositRequest{Account: acc, Amount: 1000, Months: 1}), http.StatusCreated)
	c.expect(c.do(http.MethodPost, bankPath(testBank, "/deposits"), cli, engine.DepositRequest{Account: acc, Amount: 1000}), http.StatusBadRequest)
	if got := c.balance(cli, testBank, acc); got != 10334 {
		t.Fatalf("expected 10334, got %d", got)
	}

	withdraw := withdrawRequest{Account: acc}
	c.expect(c.do(http.MethodPost, bankPath(testBank, "/deposits/0/withdraw"), cli, withdraw), http.StatusConflict)

	c.expect(c.do(http.MethodPost, "/v1/admin/clock", cli, clockRequest{Months: 1}), http.StatusForbidden)
	c.expect(c.do(http.MethodPost, "/v1/admin/clock", adm, clockRequest{}), http.StatusBadRequest)
	c.expect(c.do(http.MethodPost, "/v1/admin/clock", adm, clockRequest{Months: 1}), http.StatusOK)
	past := time.Now().Add(-time.Hour)
	c.expect(c.do(http.MethodPost, "/v1/admin/clock", adm, clockRequest{To: &past}), http.StatusConflict)
	far := time.Date(12000, 1, 1, 0, 0, 0, 0, time.UTC)
	c.expect(c.do(http.MethodPost, "/v1/admin/clock", adm, clockRequest{To: &far}), http.StatusBadRequest)
	c.engine.Accrue()

	resp := c.do(http.MethodPost, bankPath(testBank, "/deposits/0/withdraw"), cli, withdraw)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("withdraw: expected 200, got %d", resp.StatusCode)
	}
	out := decode[struct {
		Amount ledger.Money `json:"amount"`
	}](t, resp)
	if out.Amount != 1004 {
		t.Fatalf("expected 1004 paid out, got %d", out.Amount)
	}
	if got := c.balance(cli, testBank, acc); got != 11338 {
		t.Fatalf("expected 11338, got %d", got)
	}
	c.expect(c.do(http.MethodPost, bankPath(testBank, "/deposits/0/withdraw"), cli, withdraw), http.StatusNotFound)
}

func TestCreditFlow(t *testing.T) {
	c := newTestAPI(t)
	cli, mng := c.login("cli"), c.login("mng")
	acc := c.openAccount(cli, testBank)

	params := credit.Params{SrcAccount: acc, InterestRate: 1, Term: credit.Term12, Amount: 100000}
	resp := c.do(http.MethodPost, bankPath(testBank, "/credits"), cli, params)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("request credit: expected 202, got %d", resp.StatusCode)
	}
	quote := decode[struct {
		MonthlyPay ledger.Money `json:"monthly_pay"`
	}](t, resp)
	if quote.MonthlyPay != credit.MonthlyPayment(params) {
		t.Fatalf("unexpected quote %d", quote.MonthlyPay)
	}
	c.expect(c.do(http.MethodPost, bankPath(testBank, "/credits"), cli, map[string]any{"src_account": acc, "term": "7m", "amount": 1}), http.StatusBadRequest)

	c.expect(c.do(http.MethodGet, bankPath(testBank, "/credits/pending"), cli, nil), http.StatusForbidden)
	pending := decode[itemsResponse[credit.Request]](t, c.do(http.MethodGet, bankPath(testBank, "/credits/pending"), mng, nil))
	if len(pending.Items) != 1 || pending.Items[0].Owner != "cli" {
		t.Fatalf("unexpected pending: %+v", pending.Items)
	}

	c.expect(c.do(http.MethodPost, bankPath(testBank, "/credits/pending/3/accept"), mng, nil), http.StatusNotFound)
	c.expect(c.do(http.MethodPost, bankPath(testBank, "/credits/pending/0/accept"), mng, nil), http.StatusCreated)
	if got := c.balance(cli, testBank, acc); got != 101334 {
		t.Fatalf("expected disbursed balance 101334, got %d", got)
	}

	credits := decode[itemsResponse[credit.Credit]](t, c.do(http.MethodGet, bankPath(testBank, "/credits"), cli, nil))
	if len(credits.Items) != 1 || credits.Items[0].MonthlyPay != quote.MonthlyPay {
		t.Fatalf("unexpected credits: %+v", credits.Items)
	}
	c.expect(c.do(http.MethodDelete, bankPath(testBank, "/accounts/"+acc.String()), cli, nil), http.StatusConflict)
}

func TestSalaryFlow(t *testing.T) {
	c := newTestAPI(t)
	cli, ent, mng := c.login("cli"), c.login("ent"), c.login("mng")

	payFrom := c.openAccount(ent, testBank)
	payTo := c.openAccount(cli, otherBank)

	c.expect(c.do(http.MethodGet, "/v1/salary/project", ent, nil), http.StatusNotFound)
	c.expect(c.do(http.MethodPost, "/v1/salary/project", ent, projectRequest{Account: ledger.Endpoint{BankID: testBank, AccountID: payFrom}}), http.StatusCreated)
	c.expect(c.do(http.MethodPost, "/v1/salary/requests", cli, salaryRequest{Enterprise: "ent", Account: ledger.Endpoint{BankID: otherBank, AccountID: payTo}}), http.StatusAccepted)

	reqs := decode[itemsResponse[struct {
		Client string `json:"client"`
	}]](t, c.do(http.MethodGet, "/v1/salary/requests", ent, nil))
	if len(reqs.Items) != 1 || reqs.Items[0].Client != "cli" {
		t.Fatalf("unexpected salary requests: %+v", reqs.Items)
	}
	decision := decisionRequest{Accept: true, Salary: 500}
	c.expect(c.do(http.MethodPost, "/v1/salary/requests/0/decision", ent, decision), http.StatusConflict)
	c.expect(c.do(http.MethodPost, "/v1/salary/payout", ent, nil), http.StatusConflict)

	c.expect(c.do(http.MethodPost, "/v1/salary/projects/ent/accept", ent, nil), http.StatusForbidden)
	c.expect(c.do(http.MethodPost, "/v1/salary/projects/ent/accept", mng, nil), http.StatusOK)
	c.expect(c.do(http.MethodPost, "/v1/salary/requests/1/decision", ent, decision), http.StatusNotFound)
	c.expect(c.do(http.MethodPost, "/v1/salary/requests/0/decision", ent, decision), http.StatusOK)

	resp := c.do(http.MethodPost, "/v1/salary/payout", ent, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("payout: expected 201, got %d", resp.StatusCode)
	}
	paid := decode[itemsResponse[ledger.Transaction]](t, resp)
	if len(paid.Items) != 1 || paid.Items[0].Amount != 500 {
		t.Fatalf("unexpected payout: %+v", paid.Items)
	}
	if got := c.balance(cli, otherBank, payTo); got != 1834 {
		t.Fatalf("expected 1834, got %d", got)
	}
}

type fakeArchive struct{ events []stream.TransferEvent }

func (f fakeArchive) ListArchived(_ context.Context, limit int, after uint64) ([]stream.TransferEvent, uint64, error) {
	return f.events, 0, nil
}

func TestArchiveEndpoint(t *testing.T) {
	c := newTestAPI(t)
	c.expect(c.do(http.MethodGet, "/v1/transactions/archive", c.login("opr"), nil), http.StatusServiceUnavailable)

	c = newTestAPI(t, WithArchive(fakeArchive{events: []stream.TransferEvent{{ID: "a", Sequence: 1}}}))
	c.expect(c.do(http.MethodGet, "/v1/transactions/archive", c.login("cli"), nil), http.StatusForbidden)
	out := decode[listArchivedResponse](t, c.do(http.MethodGet, "/v1/transactions/archive", c.login("opr"), nil))
	if len(out.Items) != 1 || out.Items[0].ID != "a" {
		t.Fatalf("unexpected archive page: %+v", out.Items)
	}
}

func TestStreamDeliversTransfers(t *testing.T) {
	s := stream.New()
	c := newTestAPI(t, WithStream(s))
	// The engine here has no publisher, so events are fed to the stream directly.
	cli := c.login("cli")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/transactions/stream", nil)
	req.Header.Set("Authorization", "Bearer "+cli)
	resp, err := c.client.Do(req)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	if err != nil || !strings.HasPrefix(line, ": stream started") {
		t.Fatalf("unexpected preamble %q: %v", line, err)
	}

	s.Publish(ledger.Transaction{ID: "tx-1", Sequence: 1, Kind: ledger.KindTransfer, Amount: 250})

	for {
		line, err = reader.ReadString('\n')
		if err != nil {
			t.Fatalf("read stream: %v", err)
		}
		if strings.HasPrefix(line, "data: ") {
			break
		}
	}
	var ev stream.TransferEvent
	if err := json.Unmarshal([]byte(strings.TrimPrefix(strings.TrimSpace(line), "data: ")), &ev); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if ev.ID != "tx-1" || ev.Amount != 250 || ev.Kind != ledger.KindTransfer {
		t.Fatalf("unexpected event: %+v", ev)
	}
}
