package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/alumnet/alumnet/core"
	"github.com/alumnet/alumnet/core/event"
	"github.com/alumnet/alumnet/core/user"
)

type eventApi struct {
	svc      event.Service
	users    user.Service
	validate *validator.Validate
}

func registerEventAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := eventApi{
		svc:      deps.EventSvc,
		users:    deps.UserSvc,
		validate: deps.Validate,
	}

	eg := g.Group("/events", jwt)
	eg.GET("", api.query)
	eg.POST("", api.create)
	eg.GET("/types", api.choices(event.Types))
	eg.GET("/reminders", api.choices(event.Reminders))
	eg.GET("/registered", api.registered)

	dg := eg.Group("/:id", objectMiddleware(api.loadEvent))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update, api.ownerMiddleware())
	dg.DELETE("", api.destroy, api.ownerMiddleware())
	dg.POST("/reactions", api.react)
	dg.POST("/register", api.register)
}

func (api *eventApi) create(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if !ctxUsr.CanPublish() {
		return errHttpForbidden
	}

	var data event.NewEvent
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEvent")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	img, closer, err := bindImage(ctx)
	if err != nil {
		return err
	}
	defer closer.Close()
	if img == nil {
		return core.NewFieldValidationError(imageField, errPhotoRequired)
	}

	e, err := api.svc.Create(ctx.Request().Context(), ctxUsr.ID, data, *img)
	if err != nil {
		return errors.Wrap(err, "creating event")
	}
	return ctx.JSON(http.StatusCreated, e)
}

func (api *eventApi) query(ctx echo.Context) error {
	filter := new(event.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []event.Event{})
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	events, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying events")
	}
	return ctx.JSON(http.StatusOK, events)
}

func (api *eventApi) choices(choices []string) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		return ctx.JSON(http.StatusOK, choices)
	}
}

func (api *eventApi) registered(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	events, err := api.svc.Registered(ctx.Request().Context(), ctxUsr.ID)
	if err != nil {
		return errors.Wrap(err, "querying registered events")
	}
	return ctx.JSON(http.StatusOK, events)
}

func (api *eventApi) retrieve(ctx echo.Context) error {
	e, err := contextEvent(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, e)
}

func (api *eventApi) update(ctx echo.Context) error {
	e, err := contextEvent(ctx)
	if err != nil {
		return err
	}

	var data event.UpdateEvent
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateEvent")
	}
	if err = data.Validate(e, api.validate); err != nil {
		return err
	}
	img, closer, err := bindImage(ctx)
	if err != nil {
		return err
	}
	defer closer.Close()

	e, err = api.svc.Update(ctx.Request().Context(), e, data, img)
	if err != nil {
		return errors.Wrap(err, "updating event")
	}
	return ctx.JSON(http.StatusOK, e)
}

func (api *eventApi) destroy(ctx echo.Context) error {
	e, err := contextEvent(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), e); err != nil {
		return errors.Wrap(err, "deleting event")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *eventApi) react(ctx echo.Context) error {
	e, ctxUsr, err := api.eventAndUser(ctx)
	if err != nil {
		return err
	}
	reaction, err := bindReaction(ctx)
	if err != nil {
		return err
	}
	e, err = api.svc.React(ctx.Request().Context(), e, ctxUsr.ID, reaction)
	if err != nil {
		return errors.Wrap(err, "reacting to event")
	}
	return ctx.JSON(http.StatusOK, e)
}

func (api *eventApi) register(ctx echo.Context) error {
	e, ctxUsr, err := api.eventAndUser(ctx)
	if err != nil {
		return err
	}
	e, err = api.svc.Register(ctx.Request().Context(), e, ctxUsr.ID)
	if err != nil {
		return errors.Wrap(err, "registering for event")
	}
	return ctx.JSON(http.StatusOK, e)
}

func (api *eventApi) eventAndUser(ctx echo.Context) (event.Event, user.User, error) {
	e, err := contextEvent(ctx)
	if err != nil {
		return event.Event{}, user.User{}, err
	}
	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return event.Event{}, user.User{}, errors.Wrap(err, "getting context user")
	}
	return e, ctxUsr, nil
}

func (api *eventApi) loadEvent(ctx echo.Context, id string) (interface{}, error) {
	e, err := api.svc.GetByID(ctx.Request().Context(), id)
	if err != nil {
		return nil, errors.Wrap(err, "finding event by ID")
	}
	return e, nil
}

func (api *eventApi) ownerMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			e, ctxUsr, err := api.eventAndUser(ctx)
			if err != nil {
				return err
			}
			if !event.CanManage(e, ctxUsr.ID, ctxUsr.IsAdmin()) {
				return event.ErrForbidden
			}
			return next(ctx)
		}
	}
}

func contextEvent(ctx echo.Context) (event.Event, error) {
	e, ok := ctx.Get(contextObjectKey).(event.Event)
	if !ok {
		return event.Event{}, errors.Wrap(errObjNotFoundInCtx, "retrieving event from context")
	}
	return e, nil
}
