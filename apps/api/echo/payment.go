package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/alumnet/alumnet/core/payment"
	"github.com/alumnet/alumnet/core/user"
)

type paymentApi struct {
	kind     payment.Kind
	svc      payment.Service
	users    user.Service
	validate *validator.Validate
}

// registerPaymentAPI mounts the checkout, key and verify endpoints of one payment kind under prefix.
func registerPaymentAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps, kind payment.Kind, prefix string) {
	api := paymentApi{
		kind:     kind,
		svc:      deps.PaymentSvc,
		users:    deps.UserSvc,
		validate: deps.Validate,
	}

	pg := g.Group(prefix)
	pg.GET("/key", api.key)
	pg.POST("/checkout", api.checkout, jwt)
	pg.POST("/verify", api.verify, jwt)
	pg.GET("/verifications/:paymentId", api.verification, jwt, adminMiddleware())
}

func (api *paymentApi) key(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, KeyResponse{Key: api.svc.KeyID()})
}

func (api *paymentApi) checkout(ctx echo.Context) error {
	var data payment.Checkout
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Checkout")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	order, err := api.svc.Checkout(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "checking out")
	}
	return ctx.JSON(http.StatusOK, CheckoutResponse{Success: true, Order: order})
}

func (api *paymentApi) verify(ctx echo.Context) error {
	var data payment.VerifyPayment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to VerifyPayment")
	}
	if err := data.Validate(api.kind, api.validate); err != nil {
		return err
	}

	// only admins may verify a payment on behalf of somebody else
	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if data.UserID != ctxUsr.ID && !ctxUsr.IsAdmin() {
		return errHttpForbidden
	}

	res, err := api.svc.Verify(ctx.Request().Context(), api.kind, data)
	if err != nil {
		return errors.Wrapf(err, "verifying %s payment", api.kind)
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *paymentApi) verification(ctx echo.Context) error {
	v, err := api.svc.GetVerification(ctx.Request().Context(), ctx.Param("paymentId"))
	if err != nil {
		return errors.Wrap(err, "finding payment verification")
	}
	if v.Kind != api.kind {
		return errHttpNotFound
	}
	return ctx.JSON(http.StatusOK, v)
}

type (
	KeyResponse struct {
		Key string `json:"key"`
	}

	CheckoutResponse struct {
		Success bool          `json:"success"`
		Order   payment.Order `json:"order"`
	}
)
