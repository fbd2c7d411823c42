package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/alumnet/alumnet/core/message"
	"github.com/alumnet/alumnet/core/user"
)

type messageApi struct {
	svc      message.Service
	users    user.Service
	validate *validator.Validate
}

func registerMessageAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := messageApi{
		svc:      deps.MessageSvc,
		users:    deps.UserSvc,
		validate: deps.Validate,
	}

	mg := g.Group("/messages", jwt)
	mg.POST("", api.create)
	mg.GET("/:userId", api.conversation)
}

func (api *messageApi) create(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data message.NewMessage
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMessage")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	if _, err = api.users.GetByID(ctx.Request().Context(), data.To); err != nil {
		return errors.Wrap(err, "finding recipient by ID")
	}

	msg, err := api.svc.Add(ctx.Request().Context(), ctxUsr.ID, data)
	if err != nil {
		return errors.Wrap(err, "adding message")
	}
	return ctx.JSON(http.StatusCreated, msg)
}

func (api *messageApi) conversation(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	msgs, err := api.svc.Conversation(ctx.Request().Context(), ctxUsr.ID, ctx.Param("userId"))
	if err != nil {
		return errors.Wrap(err, "querying conversation")
	}
	return ctx.JSON(http.StatusOK, msgs)
}
