package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/dormdash/internal/domain/auth"
	"github.com/xenking/dormdash/internal/domain/order"
	"github.com/xenking/dormdash/internal/domain/rating"
	"github.com/xenking/dormdash/internal/domain/validation"
	"github.com/xenking/dormdash/internal/domain/vendor"
	"github.com/xenking/dormdash/internal/gemini"
	"github.com/xenking/dormdash/internal/session"
)

var (
	errUnauthenticated   = errors.New("missing bearer token")
	errWrongRole         = errors.New("route is not available for this account")
	errVendorClosed      = errors.New("vendor is not accepting orders")
	errItemUnavailable   = errors.New("menu item is unavailable")
	errOtherVendor       = errors.New("cart already holds items from another vendor")
	errAssistantDisabled = errors.New("assistant is not configured")
)

// requestError is a malformed request body or parameter.
type requestError struct {
	msg string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(msg string) error { return &requestError{msg: msg} }

// apiError is the JSON body of every error response.
type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// statusOf maps err to an HTTP status and the message shown to the client.
// Unknown errors are 500 with a generic message.
func statusOf(err error) (int, string) {
	var (
		fe  *validation.FieldError
		re  *requestError
		te  *order.TransitionError
		api *gemini.APIError
	)
	switch {
	case errors.As(err, &fe):
		return http.StatusBadRequest, fe.Error()
	case errors.As(err, &re):
		return http.StatusBadRequest, re.Error()
	case errors.Is(err, order.ErrEmptyCart):
		return http.StatusBadRequest, order.ErrEmptyCart.Error()

	case errors.Is(err, errUnauthenticated),
		errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, session.ErrInvalidToken),
		errors.Is(err, session.ErrNotFound):
		return http.StatusUnauthorized, rootMessage(err,
			errUnauthenticated, auth.ErrInvalidCredentials, session.ErrInvalidToken, session.ErrNotFound)

	case errors.Is(err, errWrongRole),
		errors.Is(err, auth.ErrProfileNotFound),
		errors.Is(err, order.ErrForbidden):
		return http.StatusForbidden, rootMessage(err, errWrongRole, auth.ErrProfileNotFound, order.ErrForbidden)

	case errors.Is(err, order.ErrNotFound),
		errors.Is(err, vendor.ErrNotFound),
		errors.Is(err, vendor.ErrItemNotFound),
		errors.Is(err, auth.ErrAccountNotFound):
		return http.StatusNotFound, rootMessage(err,
			order.ErrNotFound, vendor.ErrNotFound, vendor.ErrItemNotFound, auth.ErrAccountNotFound)

	case errors.As(err, &te):
		return http.StatusConflict, te.Error()
	case errors.Is(err, order.ErrStatusChanged),
		errors.Is(err, rating.ErrAlreadyRated),
		errors.Is(err, rating.ErrNotCompleted),
		errors.Is(err, auth.ErrEmailTaken),
		errors.Is(err, session.ErrConflict),
		errors.Is(err, errOtherVendor):
		return http.StatusConflict, rootMessage(err,
			order.ErrStatusChanged, rating.ErrAlreadyRated, rating.ErrNotCompleted, auth.ErrEmailTaken,
			session.ErrConflict, errOtherVendor)

	case errors.Is(err, errVendorClosed), errors.Is(err, errItemUnavailable):
		return http.StatusUnprocessableEntity, rootMessage(err, errVendorClosed, errItemUnavailable)

	case errors.As(err, &api), errors.Is(err, gemini.ErrEmptyResponse):
		return http.StatusBadGateway, "assistant is temporarily unavailable"

	case errors.Is(err, rating.ErrRetriesExhausted):
		return http.StatusServiceUnavailable, "rating is busy, try again"
	case errors.Is(err, vendor.ErrUploadsDisabled),
		errors.Is(err, gemini.ErrNotConfigured),
		errors.Is(err, errAssistantDisabled):
		return http.StatusServiceUnavailable, rootMessage(err,
			vendor.ErrUploadsDisabled, gemini.ErrNotConfigured, errAssistantDisabled)
	}
	return http.StatusInternalServerError, "internal server error"
}

// rootMessage returns the message of the first sentinel err wraps, so that
// wrapping context such as ids never leaks to clients.
func rootMessage(err error, sentinels ...error) string {
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return err.Error()
}

// fail writes err as an apiError. Server-side failures are logged.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	code, msg := statusOf(err)
	if code >= http.StatusInternalServerError {
		zctx.From(r.Context()).Error("Request failed", zap.Error(err), zap.Int("status", code))
	}
	writeJSON(w, code, apiError{Code: code, Message: msg})
}
