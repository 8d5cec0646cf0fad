package handler

import (
	"context"
	"net/http"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/dormdash/internal/domain/cart"
	"github.com/xenking/dormdash/internal/domain/order"
	"github.com/xenking/dormdash/internal/session"
)

// orderAction is one of the order.Service lifecycle methods.
type orderAction func(ctx context.Context, actorID, orderID string) (*order.Order, error)

// checkout places an order from the session cart and empties the cart in
// the same cart update, so a concurrent add cannot slip between the two.
func (h *Handler) checkout(w http.ResponseWriter, r *http.Request, s *session.Session) {
	var placed *order.Order
	_, err := h.sessions.UpdateCart(r.Context(), s.ID, func(c *cart.Cart) error {
		o, err := h.orders.Checkout(r.Context(), s.AccountID, c)
		if err != nil {
			return err
		}
		placed = o
		c.Clear()
		return nil
	})
	if err != nil {
		if placed == nil {
			fail(w, r, err)
			return
		}
		// The order exists; failing here would invite a duplicate retry.
		zctx.From(r.Context()).Warn("Order placed but cart not cleared",
			zap.String("order_id", placed.ID),
			zap.Error(err),
		)
	}
	writeJSON(w, http.StatusCreated, toOrder(*placed))
}

func (h *Handler) studentOrders(w http.ResponseWriter, r *http.Request, s *session.Session) {
	orders, err := h.orders.StudentOrders(r.Context(), s.AccountID)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toStudentOrders(order.ClassifyStudent(orders)))
}

func (h *Handler) vendorOrders(w http.ResponseWriter, r *http.Request, s *session.Session) {
	orders, err := h.orders.VendorOrders(r.Context(), s.AccountID)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toVendorOrders(order.ClassifyVendor(orders)))
}

// orderAction applies action on behalf of the signed-in account, which must
// own the order named by the {id} path segment.
func (h *Handler) orderAction(action orderAction) sessionHandler {
	return func(w http.ResponseWriter, r *http.Request, s *session.Session) {
		o, err := action(r.Context(), s.AccountID, r.PathValue("id"))
		if err != nil {
			fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toOrder(*o))
	}
}

func (h *Handler) rateOrder(w http.ResponseWriter, r *http.Request, s *session.Session) {
	var req ratingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, r, err)
		return
	}
	res, err := h.ratings.Submit(r.Context(), s.AccountID, r.PathValue("id"), req.Rating)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRating(res))
}

func (h *Handler) studentProfile(w http.ResponseWriter, r *http.Request, s *session.Session) {
	st, err := h.auth.Student(r.Context(), s.AccountID)
	if err != nil {
		fail(w, r, err)
		return
	}
	count, err := h.orders.CountStudentOrders(r.Context(), s.AccountID)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, studentProfileResponse{
		ID:          st.ID,
		Name:        st.Name,
		Email:       st.Email,
		TotalOrders: count,
		CreatedAt:   st.CreatedAt,
	})
}

func (h *Handler) analytics(w http.ResponseWriter, r *http.Request, s *session.Session) {
	a, err := h.orders.Analytics(r.Context(), s.AccountID, h.now())
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAnalytics(a))
}

func (h *Handler) ask(w http.ResponseWriter, r *http.Request, s *session.Session) {
	if h.assistant == nil {
		fail(w, r, errAssistantDisabled)
		return
	}
	var req askRequest
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, r, err)
		return
	}
	a, err := h.assistant.Ask(r.Context(), s.AccountID, req.Question)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAnswer(a))
}
