package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/dormdash/internal/domain/assistant"
	"github.com/xenking/dormdash/internal/domain/auth"
	"github.com/xenking/dormdash/internal/domain/cart"
	"github.com/xenking/dormdash/internal/domain/order"
	"github.com/xenking/dormdash/internal/domain/rating"
	"github.com/xenking/dormdash/internal/domain/vendor"
	"github.com/xenking/dormdash/internal/session"
)

// Requests.

type studentSignUpRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type vendorSignUpRequest struct {
	Email          string `json:"email"`
	Password       string `json:"password"`
	OwnerName      string `json:"ownerName"`
	PhoneNumber    string `json:"phoneNumber"`
	RestaurantName string `json:"restaurantName"`
	Location       string `json:"location"`
	Description    string `json:"description"`
	Category       string `json:"category"`
}

type signInRequest struct {
	Email    string    `json:"email"`
	Password string    `json:"password"`
	Role     auth.Role `json:"role"`
}

type addCartItemRequest struct {
	VendorID string `json:"vendorId"`
	ItemID   string `json:"itemId"`
}

type setQuantityRequest struct {
	Quantity int `json:"quantity"`
}

type ratingRequest struct {
	Rating int `json:"rating"`
}

type setActiveRequest struct {
	IsActive bool `json:"isActive"`
}

type askRequest struct {
	Question string `json:"question"`
}

// menuItemRequest accepts the price as a JSON number or string. A missing
// isAvailable means available.
type menuItemRequest struct {
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	IsVeg       bool            `json:"isVeg"`
	IsAvailable *bool           `json:"isAvailable"`
	PrepTime    int             `json:"prepTime"`
}

func (r menuItemRequest) input() vendor.MenuInput {
	available := true
	if r.IsAvailable != nil {
		available = *r.IsAvailable
	}
	return vendor.MenuInput{
		Name:        r.Name,
		Price:       r.Price,
		Description: r.Description,
		Category:    r.Category,
		IsVeg:       r.IsVeg,
		IsAvailable: available,
		PrepTime:    r.PrepTime,
	}
}

// Responses. Amounts are rounded to two places and rendered as numbers.

func money(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

type sessionResponse struct {
	Token     string    `json:"token,omitempty"`
	AccountID string    `json:"accountId"`
	Email     string    `json:"email"`
	Role      auth.Role `json:"role"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func toSession(token string, s *session.Session) sessionResponse {
	return sessionResponse{
		Token:     token,
		AccountID: s.AccountID,
		Email:     s.Email,
		Role:      s.Role,
		ExpiresAt: s.ExpiresAt,
	}
}

type vendorResponse struct {
	ID             string    `json:"id"`
	RestaurantName string    `json:"restaurantName"`
	OwnerName      string    `json:"ownerName"`
	Email          string    `json:"email"`
	PhoneNumber    string    `json:"phoneNumber"`
	Description    string    `json:"description"`
	ImageURL       string    `json:"imageUrl"`
	Rating         float64   `json:"rating"`
	TotalReviews   int       `json:"totalReviews"`
	IsActive       bool      `json:"isActive"`
	Location       string    `json:"location"`
	Category       string    `json:"category"`
	OpeningTime    string    `json:"openingTime"`
	ClosingTime    string    `json:"closingTime"`
	TotalOrders    int       `json:"totalOrders"`
	CreatedAt      time.Time `json:"createdAt"`
}

func toVendor(v vendor.Vendor) vendorResponse {
	return vendorResponse{
		ID:             v.ID,
		RestaurantName: v.RestaurantName,
		OwnerName:      v.OwnerName,
		Email:          v.Email,
		PhoneNumber:    v.PhoneNumber,
		Description:    v.Description,
		ImageURL:       v.ImageURL,
		Rating:         v.Rating.Round(1).InexactFloat64(),
		TotalReviews:   v.TotalReviews,
		IsActive:       v.IsActive,
		Location:       v.Location,
		Category:       v.Category,
		OpeningTime:    v.OpeningTime,
		ClosingTime:    v.ClosingTime,
		TotalOrders:    v.TotalOrders,
		CreatedAt:      v.CreatedAt,
	}
}

type menuItemResponse struct {
	ID          string  `json:"id"`
	VendorID    string  `json:"vendorId"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	IsVeg       bool    `json:"isVeg"`
	IsAvailable bool    `json:"isAvailable"`
	PrepTime    int     `json:"prepTime"`
	ImageURL    string  `json:"imageUrl"`
}

func toMenuItem(m vendor.MenuItem) menuItemResponse {
	return menuItemResponse{
		ID:          m.ID,
		VendorID:    m.VendorID,
		Name:        m.Name,
		Price:       money(m.Price),
		Description: m.Description,
		Category:    m.Category,
		IsVeg:       m.IsVeg,
		IsAvailable: m.IsAvailable,
		PrepTime:    m.PrepTime,
		ImageURL:    m.ImageURL,
	}
}

func toMenu(items []vendor.MenuItem) []menuItemResponse {
	out := make([]menuItemResponse, len(items))
	for i, m := range items {
		out[i] = toMenuItem(m)
	}
	return out
}

type vendorDetailResponse struct {
	Vendor vendorResponse     `json:"vendor"`
	Menu   []menuItemResponse `json:"menu"`
}

type cartItemResponse struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Price      float64 `json:"price"`
	Quantity   int     `json:"quantity"`
	LineTotal  float64 `json:"lineTotal"`
	VendorID   string  `json:"vendorId"`
	VendorName string  `json:"vendorName"`
	IsVeg      *bool   `json:"isVeg,omitempty"`
}

type cartResponse struct {
	VendorID   string             `json:"vendorId,omitempty"`
	VendorName string             `json:"vendorName,omitempty"`
	Items      []cartItemResponse `json:"items"`
	Subtotal   float64            `json:"subtotal"`
	Tax        float64            `json:"tax"`
	Total      float64            `json:"total"`
}

func toCart(c *cart.Cart) cartResponse {
	items := c.Items()
	resp := cartResponse{
		Items:    make([]cartItemResponse, len(items)),
		Subtotal: money(c.Total()),
		Tax:      money(c.Tax()),
		Total:    money(c.GrandTotal()),
	}
	resp.VendorID, resp.VendorName = c.Vendor()
	for i, it := range items {
		resp.Items[i] = cartItemResponse{
			ID:         it.ID,
			Name:       it.Name,
			Price:      money(it.Price),
			Quantity:   it.Quantity,
			LineTotal:  money(it.LineTotal()),
			VendorID:   it.VendorID,
			VendorName: it.VendorName,
			IsVeg:      it.IsVeg,
		}
	}
	return resp
}

type lineItemResponse struct {
	ItemID   string  `json:"itemId"`
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

type orderResponse struct {
	ID          string             `json:"id"`
	StudentID   string             `json:"studentId"`
	VendorID    string             `json:"vendorId"`
	VendorName  string             `json:"vendorName"`
	Items       []lineItemResponse `json:"items"`
	TotalAmount float64            `json:"totalAmount"`
	Status      order.Status       `json:"status"`
	OrderNumber int                `json:"orderNumber"`
	Rating      *int               `json:"rating,omitempty"`
	CreatedAt   time.Time          `json:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt"`
}

func toOrder(o order.Order) orderResponse {
	items := make([]lineItemResponse, len(o.Items))
	for i, li := range o.Items {
		items[i] = lineItemResponse{
			ItemID:   li.ItemID,
			Name:     li.Name,
			Quantity: li.Quantity,
			Price:    money(li.Price),
		}
	}
	return orderResponse{
		ID:          o.ID,
		StudentID:   o.StudentID,
		VendorID:    o.VendorID,
		VendorName:  o.VendorName,
		Items:       items,
		TotalAmount: money(o.TotalAmount),
		Status:      o.Status,
		OrderNumber: o.OrderNumber,
		Rating:      o.Rating,
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
	}
}

func toOrders(orders []order.Order) []orderResponse {
	out := make([]orderResponse, len(orders))
	for i, o := range orders {
		out[i] = toOrder(o)
	}
	return out
}

type studentOrdersResponse struct {
	Active []orderResponse `json:"active"`
	Past   []orderResponse `json:"past"`
}

func toStudentOrders(b order.StudentBuckets) studentOrdersResponse {
	return studentOrdersResponse{
		Active: toOrders(b.Active),
		Past:   toOrders(b.Past),
	}
}

type vendorOrdersResponse struct {
	Received  []orderResponse `json:"received"`
	Preparing []orderResponse `json:"preparing"`
	Ready     []orderResponse `json:"ready"`
	History   []orderResponse `json:"history"`
}

func toVendorOrders(b order.VendorBuckets) vendorOrdersResponse {
	return vendorOrdersResponse{
		Received:  toOrders(b.Received),
		Preparing: toOrders(b.Preparing),
		Ready:     toOrders(b.Ready),
		History:   toOrders(b.History),
	}
}

type studentProfileResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	TotalOrders int       `json:"totalOrders"`
	CreatedAt   time.Time `json:"createdAt"`
}

type ratingResponse struct {
	ReviewID     string  `json:"reviewId"`
	OrderID      string  `json:"orderId"`
	Rating       int     `json:"rating"`
	VendorRating float64 `json:"vendorRating"`
	TotalReviews int     `json:"totalReviews"`
}

func toRating(res *rating.Result) ratingResponse {
	return ratingResponse{
		ReviewID:     res.Review.ID,
		OrderID:      res.Review.OrderID,
		Rating:       res.Review.Rating,
		VendorRating: res.Stats.Rating.Round(1).InexactFloat64(),
		TotalReviews: res.Stats.TotalReviews,
	}
}

type analyticsResponse struct {
	AverageRating float64         `json:"averageRating"`
	TotalReviews  int             `json:"totalReviews"`
	RevenueToday  float64         `json:"revenueToday"`
	RatedOrders   []orderResponse `json:"ratedOrders"`
}

func toAnalytics(a *order.Analytics) analyticsResponse {
	return analyticsResponse{
		AverageRating: a.AverageRating.Round(1).InexactFloat64(),
		TotalReviews:  a.TotalReviews,
		RevenueToday:  money(a.RevenueToday),
		RatedOrders:   toOrders(a.Rated),
	}
}

type answerResponse struct {
	Text       string `json:"text"`
	VendorID   string `json:"vendorId,omitempty"`
	VendorName string `json:"vendorName,omitempty"`
}

func toAnswer(a *assistant.Answer) answerResponse {
	return answerResponse{Text: a.Text, VendorID: a.VendorID, VendorName: a.VendorName}
}

type imageResponse struct {
	ImageURL string `json:"imageUrl"`
}
