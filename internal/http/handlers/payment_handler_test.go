package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sphinxlike/go-receipts-backend/internal/config"
	"github.com/sphinxlike/go-receipts-backend/internal/domain"
	"github.com/sphinxlike/go-receipts-backend/internal/repo"
	"github.com/sphinxlike/go-receipts-backend/internal/services"
	"github.com/sphinxlike/go-receipts-backend/internal/validate"
)

// ---------- test plumbing ----------

type stubVerifier struct {
	user *services.AuthUser
	err  error
}

func (s stubVerifier) Verify(string) (*services.AuthUser, error) { return s.user, s.err }

// stubPayments satisfies PaymentAPI with overridable behaviors.
type stubPayments struct {
	dashboard     func(ctx context.Context, groupID int64) (*services.Dashboard, error)
	houseRegistry func(ctx context.Context, groupID int64) ([]domain.House, error)
	housePayments func(ctx context.Context, groupID int64, house string, limit int) ([]domain.PaymentRow, error)
	userPayments  func(ctx context.Context, groupID, userID int64, limit int) ([]domain.PaymentRow, error)
	lookupHouse   func(ctx context.Context, groupID int64, number string) (*domain.House, error)
	submit        func(ctx context.Context, groupID, userID int64, sub services.DirectSubmission) (*domain.PaymentRow, *validate.Outcome, error)
}

func (s stubPayments) Dashboard(ctx context.Context, groupID int64) (*services.Dashboard, error) {
	return s.dashboard(ctx, groupID)
}

func (s stubPayments) HouseRegistry(ctx context.Context, groupID int64) ([]domain.House, error) {
	return s.houseRegistry(ctx, groupID)
}

func (s stubPayments) HousePayments(ctx context.Context, groupID int64, house string, limit int) ([]domain.PaymentRow, error) {
	return s.housePayments(ctx, groupID, house, limit)
}

func (s stubPayments) UserPayments(ctx context.Context, groupID, userID int64, limit int) ([]domain.PaymentRow, error) {
	return s.userPayments(ctx, groupID, userID, limit)
}

func (s stubPayments) LookupHouse(ctx context.Context, groupID int64, number string) (*domain.House, error) {
	return s.lookupHouse(ctx, groupID, number)
}

func (s stubPayments) Months() []string { return []string{"Meskerem", "Tikimt"} }

func (s stubPayments) PaymentTypes() []map[string]string {
	return []map[string]string{{"value": "water", "label": "ውሀ"}}
}

func (s stubPayments) Submit(ctx context.Context, groupID, userID int64, sub services.DirectSubmission) (*domain.PaymentRow, *validate.Outcome, error) {
	return s.submit(ctx, groupID, userID, sub)
}

const testMember int64 = 9917

func newAPIRouter(api PaymentAPI, auth InitDataVerifier) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := New(nil, api, auth)
	r := gin.New()
	r.POST("/auth", h.Authenticate)
	r.GET("/dashboard/:groupID", h.Dashboard)
	r.GET("/houses/:groupID", h.ListHouses)
	r.GET("/houses/:groupID/:number", h.HouseDetail)
	r.GET("/user/:groupID", h.UserPayments)
	r.GET("/months", h.Months)
	r.GET("/payment-types", h.PaymentTypes)
	r.POST("/payments/:groupID", h.SubmitPayment)
	return r
}

func okVerifier() stubVerifier {
	return stubVerifier{user: &services.AuthUser{ID: testMember, FirstName: "Abebe"}}
}

func getWithInitData(t *testing.T, r *gin.Engine, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set(HeaderInitData, "query_id=x")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ---------- auth ----------

func TestAuthenticate(t *testing.T) {
	r := newAPIRouter(stubPayments{}, okVerifier())

	w := postJSON(t, r, "/auth", map[string]string{"init_data": "query_id=x"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	var resp AuthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.User.ID != testMember || resp.User.FirstName != "Abebe" {
		t.Fatalf("user unexpected: %+v", resp.User)
	}
}

func TestAuthenticate_MissingBody(t *testing.T) {
	r := newAPIRouter(stubPayments{}, okVerifier())
	w := postJSON(t, r, "/auth", map[string]string{})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestAuthenticate_Invalid(t *testing.T) {
	r := newAPIRouter(stubPayments{}, stubVerifier{err: services.ErrInvalidInitData})
	w := postJSON(t, r, "/auth", map[string]string{"init_data": "query_id=x"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", w.Code)
	}
	var er ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil || er.Code != ErrCodeInvalidInitData {
		t.Fatalf("error envelope unexpected: %s", w.Body.String())
	}
}

// ---------- dashboard ----------

func TestDashboard_Stubbed(t *testing.T) {
	api := stubPayments{dashboard: func(_ context.Context, gid int64) (*services.Dashboard, error) {
		if gid != -1001234 {
			t.Fatalf("groupID = %d", gid)
		}
		return &services.Dashboard{GroupID: gid, RowCount: 3}, nil
	}}
	r := newAPIRouter(api, okVerifier())

	w := getWithInitData(t, r, "/dashboard/-1001234")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	var dash services.Dashboard
	if err := json.Unmarshal(w.Body.Bytes(), &dash); err != nil || dash.RowCount != 3 {
		t.Fatalf("dashboard unexpected: %s", w.Body.String())
	}
}

func TestDashboard_Unauthorized(t *testing.T) {
	r := newAPIRouter(stubPayments{}, stubVerifier{err: services.ErrInvalidInitData})
	w := getWithInitData(t, r, "/dashboard/-1001234")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestDashboard_BadGroupID(t *testing.T) {
	r := newAPIRouter(stubPayments{}, okVerifier())
	w := getWithInitData(t, r, "/dashboard/abc")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestDashboard_UnknownGroup(t *testing.T) {
	api := stubPayments{dashboard: func(context.Context, int64) (*services.Dashboard, error) {
		return nil, services.ErrGroupNotRegistered
	}}
	r := newAPIRouter(api, okVerifier())
	w := getWithInitData(t, r, "/dashboard/-5")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
}

// Conditional requests require the real service so the handler can compute
// the ledger ETag from group stats.
func TestDashboard_ETagNotModified(t *testing.T) {
	db, err := repo.OpenSQLite(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	groups, err := config.NewRegistry([]config.Group{{Name: "A", ChatID: -1001234, Category: "block-a"}})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	if _, err := repo.CreatePaymentRow(db, domain.PaymentRow{
		ID:          uuid.NewString(),
		GroupID:     -1001234,
		Category:    domain.ReasonWater,
		HouseNumber: "407",
		Month:       "Hidar",
		Amount:      500,
	}); err != nil {
		t.Fatalf("seed row: %v", err)
	}

	store := &services.GormStore{DB: db}
	svc := services.NewPaymentService(db, store, store, groups)
	r := newAPIRouter(svc, okVerifier())

	w := getWithInitData(t, r, "/dashboard/-1001234")
	if w.Code != http.StatusOK {
		t.Fatalf("first status = %d body=%s", w.Code, w.Body.String())
	}
	etag := w.Header().Get("ETag")
	if etag == "" || !strings.HasPrefix(etag, `W/"dashboard:`) {
		t.Fatalf("etag unexpected: %q", etag)
	}

	req := httptest.NewRequest(http.MethodGet, "/dashboard/-1001234", nil)
	req.Header.Set(HeaderInitData, "query_id=x")
	req.Header.Set("If-None-Match", etag)
	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, req)
	if w2.Code != http.StatusNotModified {
		t.Fatalf("conditional status = %d", w2.Code)
	}
}

// ---------- houses ----------

func TestListHouses(t *testing.T) {
	api := stubPayments{houseRegistry: func(_ context.Context, gid int64) ([]domain.House, error) {
		return []domain.House{{GroupID: gid, Number: "407", OwnerName: "SEYOUM ASSEFA"}}, nil
	}}
	r := newAPIRouter(api, okVerifier())

	w := getWithInitData(t, r, "/houses/-1001234")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	var resp struct {
		Houses []domain.House `json:"houses"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || len(resp.Houses) != 1 || resp.Houses[0].Number != "407" {
		t.Fatalf("houses unexpected: %s", w.Body.String())
	}
}

func TestHouseDetail(t *testing.T) {
	api := stubPayments{
		lookupHouse: func(_ context.Context, _ int64, number string) (*domain.House, error) {
			if number != "407" {
				return nil, services.ErrRowNotFound
			}
			return &domain.House{Number: "407", OwnerName: "SEYOUM ASSEFA"}, nil
		},
		housePayments: func(_ context.Context, _ int64, _ string, limit int) ([]domain.PaymentRow, error) {
			if limit != 50 {
				t.Fatalf("default limit = %d", limit)
			}
			return []domain.PaymentRow{{HouseNumber: "407", Month: "Hidar"}}, nil
		},
	}
	r := newAPIRouter(api, okVerifier())

	w := getWithInitData(t, r, "/houses/-1001234/407")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	var resp HouseDetailResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.House.OwnerName != "SEYOUM ASSEFA" || len(resp.Payments) != 1 {
		t.Fatalf("detail unexpected: %+v", resp)
	}

	w = getWithInitData(t, r, "/houses/-1001234/999")
	if w.Code != http.StatusNotFound {
		t.Fatalf("missing house status = %d", w.Code)
	}
}

// ---------- member history ----------

func TestUserPayments_UsesVerifiedIdentity(t *testing.T) {
	api := stubPayments{userPayments: func(_ context.Context, _ int64, userID int64, _ int) ([]domain.PaymentRow, error) {
		if userID != testMember {
			t.Fatalf("userID = %d; want the verified visitor", userID)
		}
		return []domain.PaymentRow{{Month: "Hidar"}}, nil
	}}
	r := newAPIRouter(api, okVerifier())

	w := getWithInitData(t, r, "/user/-1001234?limit=400") // clamped to 200
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	var resp struct {
		Payments []domain.PaymentRow `json:"payments"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || len(resp.Payments) != 1 {
		t.Fatalf("payments unexpected: %s", w.Body.String())
	}
}

// ---------- static lists ----------

func TestMonthsAndPaymentTypes(t *testing.T) {
	r := newAPIRouter(stubPayments{}, okVerifier())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/months", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "Meskerem") {
		t.Fatalf("months unexpected: %d %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/payment-types", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "ውሀ") {
		t.Fatalf("payment types unexpected: %d %s", w.Code, w.Body.String())
	}
}

// ---------- direct submission ----------

func TestSubmitPayment_Created(t *testing.T) {
	api := stubPayments{submit: func(_ context.Context, gid, uid int64, sub services.DirectSubmission) (*domain.PaymentRow, *validate.Outcome, error) {
		if gid != -1001234 || uid != testMember {
			t.Fatalf("identity mismatch: %d %d", gid, uid)
		}
		if sub.HouseNumber != "407" || sub.Category != "water" {
			t.Fatalf("submission unexpected: %+v", sub)
		}
		return &domain.PaymentRow{ID: "row-1", HouseNumber: sub.HouseNumber}, &validate.Outcome{OK: true}, nil
	}}
	r := newAPIRouter(api, okVerifier())

	req := httptest.NewRequest(http.MethodPost, "/payments/-1001234",
		strings.NewReader(`{"house_number":" 407 ","month":"Hidar","amount":500,"category":" water "}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderInitData, "query_id=x")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	var row domain.PaymentRow
	if err := json.Unmarshal(w.Body.Bytes(), &row); err != nil || row.ID != "row-1" {
		t.Fatalf("row unexpected: %s", w.Body.String())
	}
}

func TestSubmitPayment_Rejected(t *testing.T) {
	api := stubPayments{submit: func(context.Context, int64, int64, services.DirectSubmission) (*domain.PaymentRow, *validate.Outcome, error) {
		out := validate.Outcome{FailedGate: validate.GateDuplicate, Detail: "Already recorded under water for house 407"}
		return nil, &out, services.ErrSubmissionRejected
	}}
	r := newAPIRouter(api, okVerifier())

	w := postJSONAuthed(t, r, "/payments/-1001234",
		map[string]any{"house_number": "407", "month": "Hidar", "category": "water"})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	var resp RejectionResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Code != ErrCodeSubmissionRejected || resp.Gate != string(validate.GateDuplicate) {
		t.Fatalf("rejection unexpected: %+v", resp)
	}
	if !strings.Contains(resp.Detail, "407") {
		t.Fatalf("detail should name the house: %q", resp.Detail)
	}
}

func TestSubmitPayment_BadBodyAndUnknownGroup(t *testing.T) {
	api := stubPayments{submit: func(context.Context, int64, int64, services.DirectSubmission) (*domain.PaymentRow, *validate.Outcome, error) {
		return nil, nil, services.ErrGroupNotRegistered
	}}
	r := newAPIRouter(api, okVerifier())

	// missing required fields
	w := postJSONAuthed(t, r, "/payments/-1001234", map[string]any{"amount": 10})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad body status = %d", w.Code)
	}

	// unknown group
	w = postJSONAuthed(t, r, "/payments/-5",
		map[string]any{"house_number": "407", "month": "Hidar", "category": "water"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown group status = %d", w.Code)
	}
}

// Replay needs the real service so the handler can persist and look up
// idempotency records next to the ledger.
func TestSubmitPayment_IdempotencyKeyReplays(t *testing.T) {
	db, err := repo.OpenSQLite(filepath.Join(t.TempDir(), "idem.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	groups, err := config.NewRegistry([]config.Group{{Name: "A", ChatID: -1001234, Category: "block-a"}})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	store := &services.GormStore{DB: db}
	svc := services.NewPaymentService(db, store, store, groups)
	r := newAPIRouter(svc, okVerifier())

	post := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/payments/-1001234",
			strings.NewReader(`{"house_number":"407","month":"Hidar","amount":500,"category":"water","transaction_id":"AB12CD34"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(HeaderInitData, "query_id=x")
		req.Header.Set("Idempotency-Key", "retry-key-1")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := post()
	if w.Code != http.StatusCreated {
		t.Fatalf("first status = %d body=%s", w.Code, w.Body.String())
	}
	var created domain.PaymentRow
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil || created.ID == "" {
		t.Fatalf("created row unexpected: %s", w.Body.String())
	}

	// The identical retry must not run the gates again: it would be
	// rejected as a duplicate transaction id, and it must not add a row.
	w2 := post()
	if w2.Code != http.StatusOK {
		t.Fatalf("replay status = %d body=%s", w2.Code, w2.Body.String())
	}
	if w2.Header().Get("Idempotency-Replayed") != "true" {
		t.Fatalf("replay header missing")
	}
	var replayed domain.PaymentRow
	if err := json.Unmarshal(w2.Body.Bytes(), &replayed); err != nil || replayed.ID != created.ID {
		t.Fatalf("replay must return the original row: %s", w2.Body.String())
	}

	var count int64
	if err := db.Model(&domain.PaymentRow{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("rows = %d, want 1 (replay must not re-commit)", count)
	}

	// A different key is a new submission and hits the duplicate gate.
	req := httptest.NewRequest(http.MethodPost, "/payments/-1001234",
		strings.NewReader(`{"house_number":"407","month":"Hidar","amount":500,"category":"water","transaction_id":"AB12CD34"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderInitData, "query_id=x")
	req.Header.Set("Idempotency-Key", "retry-key-2")
	w3 := httptest.NewRecorder()
	r.ServeHTTP(w3, req)
	if w3.Code != http.StatusUnprocessableEntity {
		t.Fatalf("fresh key with duplicate txid: status = %d body=%s", w3.Code, w3.Body.String())
	}
}

func postJSONAuthed(t *testing.T, r *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(string(raw)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderInitData, "query_id=x")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}
