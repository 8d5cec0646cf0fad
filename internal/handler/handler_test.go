package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/dormdash/internal/domain/assistant"
	"github.com/xenking/dormdash/internal/domain/auth"
	"github.com/xenking/dormdash/internal/domain/cart"
	"github.com/xenking/dormdash/internal/domain/order"
	"github.com/xenking/dormdash/internal/domain/rating"
	"github.com/xenking/dormdash/internal/domain/validation"
	"github.com/xenking/dormdash/internal/domain/vendor"
	"github.com/xenking/dormdash/internal/gemini"
	"github.com/xenking/dormdash/internal/live"
	"github.com/xenking/dormdash/internal/session"
)

// --- Mock implementations ---

type mockAuth struct {
	account *auth.Account
	student *auth.Student
	err     error
}

func (m *mockAuth) SignUpStudent(_ context.Context, in auth.StudentSignUp) (*auth.Account, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &auth.Account{ID: "stu-new", Email: in.Email, Role: auth.RoleStudent}, nil
}

func (m *mockAuth) SignUpVendor(_ context.Context, in auth.VendorSignUp) (*auth.Account, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &auth.Account{ID: "ven-new", Email: in.Email, Role: auth.RoleVendor}, nil
}

func (m *mockAuth) SignIn(_ context.Context, _, _ string, _ auth.Role) (*auth.Account, error) {
	return m.account, m.err
}

func (m *mockAuth) Student(_ context.Context, _ string) (*auth.Student, error) {
	if m.student == nil {
		return nil, auth.ErrAccountNotFound
	}
	return m.student, nil
}

// mockSessions keeps sessions and carts in memory. The token is the
// session id.
type mockSessions struct {
	mu       sync.Mutex
	sessions map[string]*session.Session
	carts    map[string][]cart.Item
	opened   int
	// saveErr fails UpdateCart after fn has run.
	saveErr error
}

func newMockSessions() *mockSessions {
	return &mockSessions{
		sessions: make(map[string]*session.Session),
		carts:    make(map[string][]cart.Item),
	}
}

func (m *mockSessions) add(id, accountID string, role auth.Role) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[id] = &session.Session{
		ID:        id,
		AccountID: accountID,
		Email:     accountID + "@campus.edu",
		Role:      role,
		ExpiresAt: time.Now().Add(time.Hour),
	}
	return id
}

func (m *mockSessions) Open(_ context.Context, a *auth.Account) (string, *session.Session, error) {
	m.mu.Lock()
	m.opened++
	m.mu.Unlock()
	id := "tok-" + a.ID
	m.add(id, a.ID, a.Role)
	return id, m.sessions[id], nil
}

func (m *mockSessions) Resolve(_ context.Context, token string) (*session.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[token]
	if !ok {
		return nil, session.ErrInvalidToken
	}
	return s, nil
}

func (m *mockSessions) Close(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, token)
	delete(m.carts, token)
	return nil
}

func (m *mockSessions) Cart(_ context.Context, id string) (*cart.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cart.Restore(cart.DefaultTaxRate, m.carts[id]), nil
}

func (m *mockSessions) UpdateCart(_ context.Context, id string, fn func(c *cart.Cart) error) (*cart.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := cart.Restore(cart.DefaultTaxRate, m.carts[id])
	if err := fn(c); err != nil {
		return nil, err
	}
	if m.saveErr != nil {
		return nil, m.saveErr
	}
	m.carts[id] = c.Items()
	return c, nil
}

type mockVendors struct {
	vendors map[string]*vendor.Vendor
	menus   map[string][]vendor.MenuItem
	created vendor.MenuInput
	upload  *vendor.Upload
	err     error
}

func (m *mockVendors) Browse(_ context.Context, f vendor.Filter) ([]vendor.Vendor, error) {
	var out []vendor.Vendor
	for _, v := range m.vendors {
		if f.Match(*v) {
			out = append(out, *v)
		}
	}
	return out, nil
}

func (m *mockVendors) Get(_ context.Context, id string) (*vendor.Vendor, error) {
	v, ok := m.vendors[id]
	if !ok {
		return nil, errors.Wrapf(vendor.ErrNotFound, "get vendor %s", id)
	}
	return v, nil
}

func (m *mockVendors) Menu(_ context.Context, vendorID string) ([]vendor.MenuItem, error) {
	return m.menus[vendorID], nil
}

func (m *mockVendors) SetActive(_ context.Context, vendorID string, active bool) error {
	v, ok := m.vendors[vendorID]
	if !ok {
		return vendor.ErrNotFound
	}
	v.IsActive = active
	return nil
}

func (m *mockVendors) UpdateImage(_ context.Context, vendorID string, u vendor.Upload) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	body, _ := io.ReadAll(u.Body)
	u.Body = bytes.NewReader(body)
	m.upload = &u
	return "https://img.example/vendors/" + vendorID + "/" + u.Filename, nil
}

func (m *mockVendors) CreateItem(_ context.Context, vendorID string, in vendor.MenuInput) (*vendor.MenuItem, error) {
	m.created = in
	if !in.Price.IsPositive() {
		return nil, validation.Invalid("price", "must be greater than 0")
	}
	return &vendor.MenuItem{
		ID:          "item-new",
		VendorID:    vendorID,
		Name:        in.Name,
		Price:       in.Price,
		IsAvailable: in.IsAvailable,
	}, nil
}

func (m *mockVendors) UpdateItem(_ context.Context, _, _ string, _ vendor.MenuInput) (*vendor.MenuItem, error) {
	return nil, vendor.ErrItemNotFound
}

func (m *mockVendors) DeleteItem(_ context.Context, _, _ string) error {
	return m.err
}

func (m *mockVendors) UploadItemImage(_ context.Context, _, _ string, _ vendor.Upload) (*vendor.MenuItem, error) {
	return nil, vendor.ErrUploadsDisabled
}

type mockOrders struct {
	mu        sync.Mutex
	orders    []order.Order
	actionErr error
	checkouts int
}

func (m *mockOrders) Checkout(_ context.Context, studentID string, c *cart.Cart) (*order.Order, error) {
	if c.Len() == 0 {
		return nil, order.ErrEmptyCart
	}
	m.mu.Lock()
	m.checkouts++
	m.mu.Unlock()
	vendorID, vendorName := c.Vendor()
	return &order.Order{
		ID:          "ord-new",
		StudentID:   studentID,
		VendorID:    vendorID,
		VendorName:  vendorName,
		TotalAmount: c.GrandTotal(),
		Status:      order.StatusReceived,
		OrderNumber: 1234,
	}, nil
}

func (m *mockOrders) action(to order.Status) (*order.Order, error) {
	if m.actionErr != nil {
		return nil, m.actionErr
	}
	return &order.Order{ID: "ord-1", Status: to}, nil
}

func (m *mockOrders) Accept(_ context.Context, _, _ string) (*order.Order, error) {
	return m.action(order.StatusPreparing)
}

func (m *mockOrders) Reject(_ context.Context, _, _ string) (*order.Order, error) {
	return m.action(order.StatusRejected)
}

func (m *mockOrders) MarkReady(_ context.Context, _, _ string) (*order.Order, error) {
	return m.action(order.StatusReady)
}

func (m *mockOrders) Cancel(_ context.Context, _, _ string) (*order.Order, error) {
	return m.action(order.StatusCancelled)
}

func (m *mockOrders) ConfirmPickup(_ context.Context, _, _ string) (*order.Order, error) {
	return m.action(order.StatusCompleted)
}

func (m *mockOrders) snapshot() []order.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]order.Order(nil), m.orders...)
}

func (m *mockOrders) set(orders ...order.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders = orders
}

func (m *mockOrders) StudentOrders(_ context.Context, _ string) ([]order.Order, error) {
	return m.snapshot(), nil
}

func (m *mockOrders) VendorOrders(_ context.Context, _ string) ([]order.Order, error) {
	return m.snapshot(), nil
}

func (m *mockOrders) CountStudentOrders(_ context.Context, _ string) (int, error) {
	return len(m.snapshot()), nil
}

func (m *mockOrders) Analytics(_ context.Context, _ string, now time.Time) (*order.Analytics, error) {
	a := order.Summarize(m.snapshot(), now)
	return &a, nil
}

type mockRatings struct {
	err error
}

func (m *mockRatings) Submit(_ context.Context, studentID, orderID string, r int) (*rating.Result, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &rating.Result{
		Review: rating.Review{ID: "rev-1", OrderID: orderID, StudentID: studentID, Rating: r},
		Stats:  rating.Stats{Rating: decimal.RequireFromString("4.5"), TotalReviews: 2},
	}, nil
}

type mockAssistant struct {
	answer *assistant.Answer
	err    error
}

func (m *mockAssistant) Ask(_ context.Context, _, _ string) (*assistant.Answer, error) {
	return m.answer, m.err
}

// --- Helpers ---

type fixture struct {
	auth      *mockAuth
	sessions  *mockSessions
	vendors   *mockVendors
	orders    *mockOrders
	ratings   *mockRatings
	assistant *mockAssistant
	broker    *live.Broker
	handler   *Handler
	mux       *http.ServeMux

	studentToken string
	vendorToken  string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		auth:     &mockAuth{},
		sessions: newMockSessions(),
		vendors: &mockVendors{
			vendors: map[string]*vendor.Vendor{
				"ven-1": {ID: "ven-1", RestaurantName: "Campus Grill", Category: "Fast Food", IsActive: true, Rating: decimal.Zero},
				"ven-2": {ID: "ven-2", RestaurantName: "Noodle Bar", Category: "Asian", IsActive: true, Rating: decimal.Zero},
				"ven-3": {ID: "ven-3", RestaurantName: "Closed Cafe", IsActive: false, Rating: decimal.Zero},
			},
			menus: map[string][]vendor.MenuItem{
				"ven-1": {
					{ID: "burger", VendorID: "ven-1", Name: "Burger", Price: decimal.RequireFromString("120"), IsAvailable: true},
					{ID: "shake", VendorID: "ven-1", Name: "Shake", Price: decimal.RequireFromString("80"), IsAvailable: false},
				},
				"ven-2": {
					{ID: "ramen", VendorID: "ven-2", Name: "Ramen", Price: decimal.RequireFromString("150"), IsAvailable: true, IsVeg: true},
				},
				"ven-3": {
					{ID: "latte", VendorID: "ven-3", Name: "Latte", Price: decimal.RequireFromString("60"), IsAvailable: true},
				},
			},
		},
		orders:    &mockOrders{},
		ratings:   &mockRatings{},
		assistant: &mockAssistant{},
		broker:    live.NewBroker(),
	}
	t.Cleanup(f.broker.Close)

	f.studentToken = f.sessions.add("sess-student", "stu-1", auth.RoleStudent)
	f.vendorToken = f.sessions.add("sess-vendor", "ven-1", auth.RoleVendor)

	f.handler = NewHandler(HandlerConfig{MaxUploadBytes: 1 << 16}, Services{
		Auth:      f.auth,
		Sessions:  f.sessions,
		Vendors:   f.vendors,
		Orders:    f.orders,
		Ratings:   f.ratings,
		Assistant: f.assistant,
		Broker:    f.broker,
	})
	f.mux = http.NewServeMux()
	f.handler.Register(f.mux)
	return f
}

func (f *fixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.mux.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&v), w.Body.String())
	return v
}

func assertError(t *testing.T, w *httptest.ResponseRecorder, code int) apiError {
	t.Helper()
	require.Equal(t, code, w.Code, w.Body.String())
	e := decodeBody[apiError](t, w)
	assert.Equal(t, code, e.Code)
	assert.NotEmpty(t, e.Message)
	return e
}

// --- Tests ---

func TestRequire_MissingToken(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodGet, "/api/cart", "", nil)
	assertError(t, w, http.StatusUnauthorized)
}

func TestRequire_InvalidToken(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodGet, "/api/cart", "forged", nil)
	e := assertError(t, w, http.StatusUnauthorized)
	assert.Equal(t, session.ErrInvalidToken.Error(), e.Message)
}

func TestRequire_WrongRole(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/api/cart", f.vendorToken, nil)
	assertError(t, w, http.StatusForbidden)

	w = f.do(t, http.MethodGet, "/api/vendor/orders", f.studentToken, nil)
	assertError(t, w, http.StatusForbidden)
}

func TestSignUpStudent(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodPost, "/api/auth/students", "", studentSignUpRequest{
		Name: "Asha", Email: "asha@campus.edu", Password: "secret1",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	resp := decodeBody[sessionResponse](t, w)
	assert.Equal(t, "tok-stu-new", resp.Token)
	assert.Equal(t, auth.RoleStudent, resp.Role)
}

func TestSignUpVendor_EmailTaken(t *testing.T) {
	f := newFixture(t)
	f.auth.err = errors.Wrap(auth.ErrEmailTaken, "create vendor")

	w := f.do(t, http.MethodPost, "/api/auth/vendors", "", vendorSignUpRequest{Email: "a@b.c"})
	e := assertError(t, w, http.StatusConflict)
	assert.Equal(t, auth.ErrEmailTaken.Error(), e.Message)
}

func TestSignUp_MalformedBody(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/students", strings.NewReader("{"))
	w := httptest.NewRecorder()
	f.mux.ServeHTTP(w, req)
	assertError(t, w, http.StatusBadRequest)
}

func TestSignIn(t *testing.T) {
	tests := []struct {
		name     string
		account  *auth.Account
		err      error
		wantCode int
		opened   int
	}{
		{
			name:     "success",
			account:  &auth.Account{ID: "stu-9", Email: "x@campus.edu", Role: auth.RoleStudent},
			wantCode: http.StatusOK,
			opened:   1,
		},
		{name: "bad password", err: auth.ErrInvalidCredentials, wantCode: http.StatusUnauthorized},
		{name: "no profile for role", err: auth.ErrProfileNotFound, wantCode: http.StatusForbidden},
		{name: "missing field", err: validation.Invalid("email", "is required"), wantCode: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.auth.account, f.auth.err = tt.account, tt.err

			w := f.do(t, http.MethodPost, "/api/auth/sessions", "", signInRequest{
				Email: "x@campus.edu", Password: "secret1", Role: auth.RoleStudent,
			})
			assert.Equal(t, tt.wantCode, w.Code, w.Body.String())
			assert.Equal(t, tt.opened, f.sessions.opened)
		})
	}
}

func TestSignOut_InvalidatesToken(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/api/auth/sessions/current", f.studentToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "stu-1", decodeBody[sessionResponse](t, w).AccountID)

	w = f.do(t, http.MethodDelete, "/api/auth/sessions/current", f.studentToken, nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = f.do(t, http.MethodGet, "/api/auth/sessions/current", f.studentToken, nil)
	assertError(t, w, http.StatusUnauthorized)
}

func TestBrowseVendors_Filter(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodGet, "/api/vendors?category=asian", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	vendors := decodeBody[[]vendorResponse](t, w)
	require.Len(t, vendors, 1)
	assert.Equal(t, "Noodle Bar", vendors[0].RestaurantName)
}

func TestGetVendor(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/api/vendors/ven-1", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	detail := decodeBody[vendorDetailResponse](t, w)
	assert.Equal(t, "Campus Grill", detail.Vendor.RestaurantName)
	assert.Len(t, detail.Menu, 2)

	w = f.do(t, http.MethodGet, "/api/vendors/nope", "", nil)
	e := assertError(t, w, http.StatusNotFound)
	assert.Equal(t, vendor.ErrNotFound.Error(), e.Message)
}

func TestAddCartItem_PricesFromMenu(t *testing.T) {
	f := newFixture(t)

	for range 2 {
		w := f.do(t, http.MethodPost, "/api/cart/items", f.studentToken, addCartItemRequest{VendorID: "ven-1", ItemID: "burger"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	w := f.do(t, http.MethodGet, "/api/cart", f.studentToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	c := decodeBody[cartResponse](t, w)
	require.Len(t, c.Items, 1)
	assert.Equal(t, 2, c.Items[0].Quantity)
	assert.Equal(t, 120.0, c.Items[0].Price)
	assert.Equal(t, 240.0, c.Subtotal)
	assert.Equal(t, 12.0, c.Tax)
	assert.Equal(t, 252.0, c.Total)
	assert.Equal(t, "Campus Grill", c.VendorName)
}

func TestAddCartItem_Rejections(t *testing.T) {
	tests := []struct {
		name string
		req  addCartItemRequest
		code int
	}{
		{name: "missing item", req: addCartItemRequest{VendorID: "ven-1"}, code: http.StatusBadRequest},
		{name: "unknown vendor", req: addCartItemRequest{VendorID: "nope", ItemID: "x"}, code: http.StatusNotFound},
		{name: "unknown item", req: addCartItemRequest{VendorID: "ven-1", ItemID: "x"}, code: http.StatusNotFound},
		{name: "unavailable item", req: addCartItemRequest{VendorID: "ven-1", ItemID: "shake"}, code: http.StatusUnprocessableEntity},
		{name: "closed vendor", req: addCartItemRequest{VendorID: "ven-3", ItemID: "latte"}, code: http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			w := f.do(t, http.MethodPost, "/api/cart/items", f.studentToken, tt.req)
			assertError(t, w, tt.code)
		})
	}
}

func TestAddCartItem_OtherVendor(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/cart/items", f.studentToken, addCartItemRequest{VendorID: "ven-1", ItemID: "burger"})
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodPost, "/api/cart/items", f.studentToken, addCartItemRequest{VendorID: "ven-2", ItemID: "ramen"})
	assertError(t, w, http.StatusConflict)

	w = f.do(t, http.MethodGet, "/api/cart", f.studentToken, nil)
	assert.Len(t, decodeBody[cartResponse](t, w).Items, 1)
}

func TestCartQuantityAndRemove(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/api/cart/items", f.studentToken, addCartItemRequest{VendorID: "ven-1", ItemID: "burger"})

	w := f.do(t, http.MethodPut, "/api/cart/items/burger", f.studentToken, setQuantityRequest{Quantity: 3})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 3, decodeBody[cartResponse](t, w).Items[0].Quantity)

	w = f.do(t, http.MethodPut, "/api/cart/items/burger", f.studentToken, setQuantityRequest{Quantity: 0})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decodeBody[cartResponse](t, w).Items)

	f.do(t, http.MethodPost, "/api/cart/items", f.studentToken, addCartItemRequest{VendorID: "ven-1", ItemID: "burger"})
	w = f.do(t, http.MethodDelete, "/api/cart/items/burger", f.studentToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decodeBody[cartResponse](t, w).Items)
}

func TestCheckout_ClearsCart(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/orders", f.studentToken, nil)
	e := assertError(t, w, http.StatusBadRequest)
	assert.Equal(t, order.ErrEmptyCart.Error(), e.Message)

	f.do(t, http.MethodPost, "/api/cart/items", f.studentToken, addCartItemRequest{VendorID: "ven-1", ItemID: "burger"})
	w = f.do(t, http.MethodPost, "/api/orders", f.studentToken, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	o := decodeBody[orderResponse](t, w)
	assert.Equal(t, "stu-1", o.StudentID)
	assert.Equal(t, "ven-1", o.VendorID)
	assert.Equal(t, order.StatusReceived, o.Status)
	assert.Equal(t, 126.0, o.TotalAmount)

	w = f.do(t, http.MethodGet, "/api/cart", f.studentToken, nil)
	assert.Empty(t, decodeBody[cartResponse](t, w).Items)
	assert.Equal(t, 1, f.orders.checkouts)
}

func TestCheckout_CartSaveFailureStillReturnsOrder(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/api/cart/items", f.studentToken, addCartItemRequest{VendorID: "ven-1", ItemID: "burger"})
	f.sessions.saveErr = errors.New("redis: connection reset")

	w := f.do(t, http.MethodPost, "/api/orders", f.studentToken, nil)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	o := decodeBody[orderResponse](t, w)
	assert.Equal(t, "ven-1", o.VendorID)
	assert.Equal(t, 1, f.orders.checkouts)
}

func TestOrderActions_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{name: "ok", code: http.StatusOK},
		{name: "not found", err: order.ErrNotFound, code: http.StatusNotFound},
		{name: "not owner", err: order.ErrForbidden, code: http.StatusForbidden},
		{
			name: "illegal transition",
			err: &order.TransitionError{
				From: order.StatusReady, To: order.StatusPreparing, Actor: order.ActorVendor,
			},
			code: http.StatusConflict,
		},
		{name: "raced", err: errors.Wrap(order.ErrStatusChanged, "update order"), code: http.StatusConflict},
		{name: "store down", err: errors.New("connection refused"), code: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.orders.actionErr = tt.err

			w := f.do(t, http.MethodPost, "/api/vendor/orders/ord-1/accept", f.vendorToken, nil)
			require.Equal(t, tt.code, w.Code, w.Body.String())
			if tt.err == nil {
				assert.Equal(t, order.StatusPreparing, decodeBody[orderResponse](t, w).Status)
			}
		})
	}
}

func TestStudentActions(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/orders/ord-1/cancel", f.studentToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, order.StatusCancelled, decodeBody[orderResponse](t, w).Status)

	w = f.do(t, http.MethodPost, "/api/orders/ord-1/pickup", f.studentToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, order.StatusCompleted, decodeBody[orderResponse](t, w).Status)
}

func TestRateOrder(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{name: "accepted", code: http.StatusCreated},
		{name: "out of range", err: validation.Invalid("rating", "must be between 1 and 5"), code: http.StatusBadRequest},
		{name: "already rated", err: rating.ErrAlreadyRated, code: http.StatusConflict},
		{name: "not completed", err: rating.ErrNotCompleted, code: http.StatusConflict},
		{name: "contention", err: rating.ErrRetriesExhausted, code: http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.ratings.err = tt.err

			w := f.do(t, http.MethodPost, "/api/orders/ord-1/rating", f.studentToken, ratingRequest{Rating: 5})
			require.Equal(t, tt.code, w.Code, w.Body.String())
			if tt.err == nil {
				resp := decodeBody[ratingResponse](t, w)
				assert.Equal(t, 4.5, resp.VendorRating)
				assert.Equal(t, 2, resp.TotalReviews)
			}
		})
	}
}

func TestStudentOrders_Buckets(t *testing.T) {
	f := newFixture(t)
	now := time.Now()
	f.orders.set(
		order.Order{ID: "a", Status: order.StatusPreparing, CreatedAt: now.Add(-time.Hour)},
		order.Order{ID: "b", Status: order.StatusCompleted, CreatedAt: now.Add(-2 * time.Hour)},
		order.Order{ID: "c", Status: order.StatusReceived, CreatedAt: now},
	)

	w := f.do(t, http.MethodGet, "/api/orders", f.studentToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	b := decodeBody[studentOrdersResponse](t, w)
	require.Len(t, b.Active, 2)
	assert.Equal(t, "c", b.Active[0].ID)
	require.Len(t, b.Past, 1)
	assert.Equal(t, "b", b.Past[0].ID)
}

func TestStudentProfile(t *testing.T) {
	f := newFixture(t)
	f.auth.student = &auth.Student{ID: "stu-1", Name: "Asha", Email: "asha@campus.edu"}
	f.orders.set(order.Order{ID: "a"}, order.Order{ID: "b"})

	w := f.do(t, http.MethodGet, "/api/student/profile", f.studentToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	p := decodeBody[studentProfileResponse](t, w)
	assert.Equal(t, "Asha", p.Name)
	assert.Equal(t, 2, p.TotalOrders)
}

func TestAnalytics(t *testing.T) {
	f := newFixture(t)
	five := 5
	f.handler.now = func() time.Time { return time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC) }
	f.orders.set(order.Order{
		ID:          "a",
		Status:      order.StatusCompleted,
		TotalAmount: decimal.RequireFromString("210"),
		Rating:      &five,
		CreatedAt:   time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC),
	})

	w := f.do(t, http.MethodGet, "/api/vendor/analytics", f.vendorToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	a := decodeBody[analyticsResponse](t, w)
	assert.Equal(t, 210.0, a.RevenueToday)
	assert.Equal(t, 1, a.TotalReviews)
	assert.Len(t, a.RatedOrders, 1)
}

func TestAsk(t *testing.T) {
	t.Run("answer", func(t *testing.T) {
		f := newFixture(t)
		f.assistant.answer = &assistant.Answer{Text: "Try Campus Grill", VendorID: "ven-1", VendorName: "Campus Grill"}

		w := f.do(t, http.MethodPost, "/api/assistant", f.studentToken, askRequest{Question: "burgers?"})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "ven-1", decodeBody[answerResponse](t, w).VendorID)
	})

	t.Run("upstream failure", func(t *testing.T) {
		f := newFixture(t)
		f.assistant.err = errors.Wrap(&gemini.APIError{StatusCode: 503, Status: "Service Unavailable"}, "generate")

		w := f.do(t, http.MethodPost, "/api/assistant", f.studentToken, askRequest{Question: "burgers?"})
		assertError(t, w, http.StatusBadGateway)
	})

	t.Run("disabled", func(t *testing.T) {
		f := newFixture(t)
		f.handler.assistant = nil

		w := f.do(t, http.MethodPost, "/api/assistant", f.studentToken, askRequest{Question: "burgers?"})
		assertError(t, w, http.StatusServiceUnavailable)
	})
}

func TestVendorProfileAndActive(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPut, "/api/vendor/active", f.vendorToken, setActiveRequest{IsActive: false})
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decodeBody[vendorResponse](t, w).IsActive)

	w = f.do(t, http.MethodGet, "/api/vendor/profile", f.vendorToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decodeBody[vendorResponse](t, w).IsActive)
}

func TestCreateMenuItem(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/vendor/menu", f.vendorToken, map[string]any{
		"name": "Fries", "price": "49.50",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	item := decodeBody[menuItemResponse](t, w)
	assert.Equal(t, 49.5, item.Price)
	assert.True(t, item.IsAvailable)
	assert.True(t, f.vendors.created.IsAvailable)

	w = f.do(t, http.MethodPost, "/api/vendor/menu", f.vendorToken, map[string]any{
		"name": "Fries", "price": 0,
	})
	e := assertError(t, w, http.StatusBadRequest)
	assert.Contains(t, e.Message, "price")
}

func TestUpdateAndDeleteMenuItem(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPut, "/api/vendor/menu/other", f.vendorToken, map[string]any{"name": "X", "price": 1})
	assertError(t, w, http.StatusNotFound)

	w = f.do(t, http.MethodDelete, "/api/vendor/menu/burger", f.vendorToken, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func multipartImage(t *testing.T, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(imageField, filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func pngBytes() []byte {
	return append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 64)...)
}

func TestUploadVendorImage(t *testing.T) {
	f := newFixture(t)

	body, contentType := multipartImage(t, "logo.png", pngBytes())
	req := httptest.NewRequest(http.MethodPost, "/api/vendor/image", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+f.vendorToken)
	w := httptest.NewRecorder()
	f.mux.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "https://img.example/vendors/ven-1/logo.png", decodeBody[imageResponse](t, w).ImageURL)
	require.NotNil(t, f.vendors.upload)
	assert.Equal(t, "image/png", f.vendors.upload.ContentType)
	data, err := io.ReadAll(f.vendors.upload.Body)
	require.NoError(t, err)
	assert.Equal(t, pngBytes(), data)
}

func TestUploadVendorImage_NotAnImage(t *testing.T) {
	f := newFixture(t)

	body, contentType := multipartImage(t, "notes.txt", []byte("hello, not an image"))
	req := httptest.NewRequest(http.MethodPost, "/api/vendor/image", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+f.vendorToken)
	w := httptest.NewRecorder()
	f.mux.ServeHTTP(w, req)

	assertError(t, w, http.StatusBadRequest)
	assert.Nil(t, f.vendors.upload)
}

func TestUploadMenuItemImage_Disabled(t *testing.T) {
	f := newFixture(t)

	body, contentType := multipartImage(t, "fries.png", pngBytes())
	req := httptest.NewRequest(http.MethodPost, "/api/vendor/menu/fries/image", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+f.vendorToken)
	w := httptest.NewRecorder()
	f.mux.ServeHTTP(w, req)

	assertError(t, w, http.StatusServiceUnavailable)
}
