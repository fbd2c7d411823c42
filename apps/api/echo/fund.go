package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/alumnet/alumnet/core/fund"
	"github.com/alumnet/alumnet/core/payment"
	"github.com/alumnet/alumnet/core/user"
)

type fundApi struct {
	svc      fund.Service
	users    user.Service
	payments payment.Service
	validate *validator.Validate
}

func registerFundAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := fundApi{
		svc:      deps.FundSvc,
		users:    deps.UserSvc,
		payments: deps.PaymentSvc,
		validate: deps.Validate,
	}

	fg := g.Group("/funds", jwt)
	fg.GET("", api.query)
	fg.POST("", api.create, adminMiddleware())
	fg.GET("/:id", api.retrieve)
	fg.GET("/:id/fundings", api.fundings)
}

func (api *fundApi) create(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data fund.NewFund
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewFund")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	img, closer, err := bindImage(ctx)
	if err != nil {
		return err
	}
	defer closer.Close()

	fnd, err := api.svc.Create(ctx.Request().Context(), ctxUsr.ID, data, img)
	if err != nil {
		return errors.Wrap(err, "creating fund")
	}
	return ctx.JSON(http.StatusCreated, fnd)
}

func (api *fundApi) query(ctx echo.Context) error {
	ordering := new(Ordering)
	ordering.Bind(ctx)

	funds, err := api.svc.Query(ctx.Request().Context(), ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying funds")
	}
	return ctx.JSON(http.StatusOK, funds)
}

func (api *fundApi) retrieve(ctx echo.Context) error {
	fnd, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding fund by ID")
	}
	return ctx.JSON(http.StatusOK, fnd)
}

// fundings lists the contributors of the fund with what each gave.
func (api *fundApi) fundings(ctx echo.Context) error {
	fnd, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding fund by ID")
	}
	totals, err := api.payments.PayerTotals(ctx.Request().Context(), payment.KindFunding, fnd.ID)
	if err != nil {
		return errors.Wrap(err, "querying funding totals")
	}
	return ctx.JSON(http.StatusOK, totals)
}
