// Package handler serves the DormDash JSON API and its live WebSocket
// endpoints on a net/http ServeMux.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/xenking/dormdash/internal/domain/assistant"
	"github.com/xenking/dormdash/internal/domain/auth"
	"github.com/xenking/dormdash/internal/domain/cart"
	"github.com/xenking/dormdash/internal/domain/order"
	"github.com/xenking/dormdash/internal/domain/rating"
	"github.com/xenking/dormdash/internal/domain/vendor"
	"github.com/xenking/dormdash/internal/live"
	"github.com/xenking/dormdash/internal/session"
)

// DefaultMaxUploadBytes caps image uploads when HandlerConfig leaves it unset.
const DefaultMaxUploadBytes = 5 << 20

// AuthService signs accounts up and in.
type AuthService interface {
	SignUpStudent(ctx context.Context, in auth.StudentSignUp) (*auth.Account, error)
	SignUpVendor(ctx context.Context, in auth.VendorSignUp) (*auth.Account, error)
	SignIn(ctx context.Context, email, password string, role auth.Role) (*auth.Account, error)
	Student(ctx context.Context, id string) (*auth.Student, error)
}

// SessionManager issues bearer tokens and owns the per-session cart.
type SessionManager interface {
	Open(ctx context.Context, a *auth.Account) (string, *session.Session, error)
	Resolve(ctx context.Context, token string) (*session.Session, error)
	Close(ctx context.Context, token string) error
	Cart(ctx context.Context, sessionID string) (*cart.Cart, error)
	UpdateCart(ctx context.Context, sessionID string, fn func(c *cart.Cart) error) (*cart.Cart, error)
}

// VendorService is the catalog and vendor profile API.
type VendorService interface {
	Browse(ctx context.Context, f vendor.Filter) ([]vendor.Vendor, error)
	Get(ctx context.Context, id string) (*vendor.Vendor, error)
	Menu(ctx context.Context, vendorID string) ([]vendor.MenuItem, error)
	SetActive(ctx context.Context, vendorID string, active bool) error
	UpdateImage(ctx context.Context, vendorID string, u vendor.Upload) (string, error)
	CreateItem(ctx context.Context, vendorID string, in vendor.MenuInput) (*vendor.MenuItem, error)
	UpdateItem(ctx context.Context, vendorID, itemID string, in vendor.MenuInput) (*vendor.MenuItem, error)
	DeleteItem(ctx context.Context, vendorID, itemID string) error
	UploadItemImage(ctx context.Context, vendorID, itemID string, u vendor.Upload) (*vendor.MenuItem, error)
}

// OrderService places orders and drives their lifecycle.
type OrderService interface {
	Checkout(ctx context.Context, studentID string, c *cart.Cart) (*order.Order, error)
	Accept(ctx context.Context, vendorID, orderID string) (*order.Order, error)
	Reject(ctx context.Context, vendorID, orderID string) (*order.Order, error)
	MarkReady(ctx context.Context, vendorID, orderID string) (*order.Order, error)
	Cancel(ctx context.Context, studentID, orderID string) (*order.Order, error)
	ConfirmPickup(ctx context.Context, studentID, orderID string) (*order.Order, error)
	StudentOrders(ctx context.Context, studentID string) ([]order.Order, error)
	VendorOrders(ctx context.Context, vendorID string) ([]order.Order, error)
	CountStudentOrders(ctx context.Context, studentID string) (int, error)
	Analytics(ctx context.Context, vendorID string, now time.Time) (*order.Analytics, error)
}

// RatingService records a student's rating of a completed order.
type RatingService interface {
	Submit(ctx context.Context, studentID, orderID string, r int) (*rating.Result, error)
}

// Assistant answers food questions.
type Assistant interface {
	Ask(ctx context.Context, studentID, question string) (*assistant.Answer, error)
}

// Services bundles the domain dependencies of a Handler. Assistant may be
// nil, in which case /api/assistant answers 503.
type Services struct {
	Auth      AuthService
	Sessions  SessionManager
	Vendors   VendorService
	Orders    OrderService
	Ratings   RatingService
	Assistant Assistant
	Broker    *live.Broker
}

// HandlerConfig holds non-dependency configuration for the Handler.
type HandlerConfig struct {
	// MaxUploadBytes limits multipart image uploads.
	MaxUploadBytes int64
	// AllowedOrigins restricts WebSocket upgrades. Empty or "*" allows any
	// origin.
	AllowedOrigins []string
}

// Handler serves the API routes.
type Handler struct {
	auth      AuthService
	sessions  SessionManager
	vendors   VendorService
	orders    OrderService
	ratings   RatingService
	assistant Assistant
	broker    *live.Broker

	maxUpload int64
	upgrader  websocket.Upgrader
	now       func() time.Time
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(cfg HandlerConfig, svc Services) *Handler {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}
	return &Handler{
		auth:      svc.Auth,
		sessions:  svc.Sessions,
		vendors:   svc.Vendors,
		orders:    svc.Orders,
		ratings:   svc.Ratings,
		assistant: svc.Assistant,
		broker:    svc.Broker,
		maxUpload: cfg.MaxUploadBytes,
		upgrader:  newUpgrader(cfg.AllowedOrigins),
		now:       time.Now,
	}
}

// Register mounts every API route on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/auth/students", h.signUpStudent)
	mux.HandleFunc("POST /api/auth/vendors", h.signUpVendor)
	mux.HandleFunc("POST /api/auth/sessions", h.signIn)
	mux.Handle("GET /api/auth/sessions/current", h.require("", h.currentSession))
	mux.Handle("DELETE /api/auth/sessions/current", h.require("", h.signOut))

	mux.HandleFunc("GET /api/vendors", h.browseVendors)
	mux.HandleFunc("GET /api/vendors/{id}", h.getVendor)

	student := func(fn sessionHandler) http.Handler { return h.require(auth.RoleStudent, fn) }
	mux.Handle("GET /api/cart", student(h.getCart))
	mux.Handle("DELETE /api/cart", student(h.clearCart))
	mux.Handle("POST /api/cart/items", student(h.addCartItem))
	mux.Handle("PUT /api/cart/items/{id}", student(h.setCartQuantity))
	mux.Handle("DELETE /api/cart/items/{id}", student(h.removeCartItem))

	mux.Handle("POST /api/orders", student(h.checkout))
	mux.Handle("GET /api/orders", student(h.studentOrders))
	mux.Handle("GET /api/orders/live", student(h.studentOrdersLive))
	mux.Handle("POST /api/orders/{id}/cancel", student(h.orderAction(h.orders.Cancel)))
	mux.Handle("POST /api/orders/{id}/pickup", student(h.orderAction(h.orders.ConfirmPickup)))
	mux.Handle("POST /api/orders/{id}/rating", student(h.rateOrder))
	mux.Handle("GET /api/student/profile", student(h.studentProfile))
	mux.Handle("POST /api/assistant", student(h.ask))

	vendorOnly := func(fn sessionHandler) http.Handler { return h.require(auth.RoleVendor, fn) }
	mux.Handle("GET /api/vendor/orders", vendorOnly(h.vendorOrders))
	mux.Handle("GET /api/vendor/orders/live", vendorOnly(h.vendorOrdersLive))
	mux.Handle("POST /api/vendor/orders/{id}/accept", vendorOnly(h.orderAction(h.orders.Accept)))
	mux.Handle("POST /api/vendor/orders/{id}/reject", vendorOnly(h.orderAction(h.orders.Reject)))
	mux.Handle("POST /api/vendor/orders/{id}/ready", vendorOnly(h.orderAction(h.orders.MarkReady)))
	mux.Handle("GET /api/vendor/profile", vendorOnly(h.vendorProfile))
	mux.Handle("PUT /api/vendor/active", vendorOnly(h.setActive))
	mux.Handle("POST /api/vendor/image", vendorOnly(h.uploadVendorImage))
	mux.Handle("GET /api/vendor/menu", vendorOnly(h.listMenu))
	mux.Handle("POST /api/vendor/menu", vendorOnly(h.createMenuItem))
	mux.Handle("PUT /api/vendor/menu/{id}", vendorOnly(h.updateMenuItem))
	mux.Handle("DELETE /api/vendor/menu/{id}", vendorOnly(h.deleteMenuItem))
	mux.Handle("POST /api/vendor/menu/{id}/image", vendorOnly(h.uploadMenuItemImage))
	mux.Handle("GET /api/vendor/analytics", vendorOnly(h.analytics))
}
