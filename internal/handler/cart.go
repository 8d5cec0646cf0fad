package handler

import (
	"net/http"

	"github.com/xenking/dormdash/internal/domain/cart"
	"github.com/xenking/dormdash/internal/domain/validation"
	"github.com/xenking/dormdash/internal/domain/vendor"
	"github.com/xenking/dormdash/internal/session"
)

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request, s *session.Session) {
	c, err := h.sessions.Cart(r.Context(), s.ID)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCart(c))
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request, s *session.Session) {
	h.updateCart(w, r, s, func(c *cart.Cart) error {
		c.Clear()
		return nil
	})
}

// addCartItem prices the line from the vendor's current menu. A cart holds
// items of a single vendor.
func (h *Handler) addCartItem(w http.ResponseWriter, r *http.Request, s *session.Session) {
	var req addCartItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, r, err)
		return
	}
	if err := validation.Required(
		validation.Field{Name: "vendorId", Value: req.VendorID},
		validation.Field{Name: "itemId", Value: req.ItemID},
	); err != nil {
		fail(w, r, err)
		return
	}

	ctx := r.Context()
	v, err := h.vendors.Get(ctx, req.VendorID)
	if err != nil {
		fail(w, r, err)
		return
	}
	if !v.IsActive {
		fail(w, r, errVendorClosed)
		return
	}
	item, err := h.menuItem(r, v.ID, req.ItemID)
	if err != nil {
		fail(w, r, err)
		return
	}
	if !item.IsAvailable {
		fail(w, r, errItemUnavailable)
		return
	}

	isVeg := item.IsVeg
	h.updateCart(w, r, s, func(c *cart.Cart) error {
		if id, _ := c.Vendor(); id != "" && id != v.ID {
			return errOtherVendor
		}
		c.Add(cart.Item{
			ID:         item.ID,
			Name:       item.Name,
			Price:      item.Price,
			VendorID:   v.ID,
			VendorName: v.RestaurantName,
			IsVeg:      &isVeg,
		})
		return nil
	})
}

// setCartQuantity removes the line when quantity drops to zero or below.
func (h *Handler) setCartQuantity(w http.ResponseWriter, r *http.Request, s *session.Session) {
	var req setQuantityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, r, err)
		return
	}
	id := r.PathValue("id")
	h.updateCart(w, r, s, func(c *cart.Cart) error {
		c.SetQuantity(id, req.Quantity)
		return nil
	})
}

func (h *Handler) removeCartItem(w http.ResponseWriter, r *http.Request, s *session.Session) {
	id := r.PathValue("id")
	h.updateCart(w, r, s, func(c *cart.Cart) error {
		c.Remove(id)
		return nil
	})
}

func (h *Handler) updateCart(w http.ResponseWriter, r *http.Request, s *session.Session, fn func(c *cart.Cart) error) {
	c, err := h.sessions.UpdateCart(r.Context(), s.ID, fn)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCart(c))
}

func (h *Handler) menuItem(r *http.Request, vendorID, itemID string) (*vendor.MenuItem, error) {
	items, err := h.vendors.Menu(r.Context(), vendorID)
	if err != nil {
		return nil, err
	}
	for i := range items {
		if items[i].ID == itemID {
			return &items[i], nil
		}
	}
	return nil, vendor.ErrItemNotFound
}
