package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/alumnet/alumnet/core/group"
	"github.com/alumnet/alumnet/core/user"
)

type groupApi struct {
	svc      group.Service
	users    user.Service
	validate *validator.Validate
}

func registerGroupAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := groupApi{
		svc:      deps.GroupSvc,
		users:    deps.UserSvc,
		validate: deps.Validate,
	}

	gg := g.Group("/groups", jwt)
	gg.GET("", api.query)
	gg.POST("", api.create)

	// detail endpoints
	dg := gg.Group("/:id", objectMiddleware(api.loadGroup))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update, api.managerMiddleware())
	dg.DELETE("", api.destroy, api.managerMiddleware())
	dg.GET("/members", api.members)
	dg.POST("/members", api.addMember)
	dg.DELETE("/members/:userId", api.removeMember)
	dg.GET("/messages", api.messages)
	dg.POST("/messages", api.addMessage)
}

// Handlers

func (api *groupApi) create(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if !ctxUsr.CanLeadGroups() {
		return errHttpForbidden
	}

	var data group.NewGroup
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewGroup")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	img, closer, err := bindImage(ctx)
	if err != nil {
		return err
	}
	defer closer.Close()

	grp, err := api.svc.Create(ctx.Request().Context(), ctxUsr.ID, data, img)
	if err != nil {
		return errors.Wrap(err, "creating group")
	}
	return ctx.JSON(http.StatusCreated, grp)
}

func (api *groupApi) query(ctx echo.Context) error {
	ordering := new(Ordering)
	ordering.Bind(ctx)

	groups, err := api.svc.Query(ctx.Request().Context(), ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying groups")
	}
	return ctx.JSON(http.StatusOK, groups)
}

func (api *groupApi) retrieve(ctx echo.Context) error {
	grp, err := contextGroup(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, grp)
}

func (api *groupApi) update(ctx echo.Context) error {
	grp, err := contextGroup(ctx)
	if err != nil {
		return err
	}

	var data group.UpdateGroup
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateGroup")
	}
	if err = data.Validate(grp, api.validate); err != nil {
		return err
	}
	img, closer, err := bindImage(ctx)
	if err != nil {
		return err
	}
	defer closer.Close()

	grp, err = api.svc.Update(ctx.Request().Context(), grp, data, img)
	if err != nil {
		return errors.Wrap(err, "updating group")
	}
	return ctx.JSON(http.StatusOK, grp)
}

func (api *groupApi) destroy(ctx echo.Context) error {
	grp, err := contextGroup(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), grp); err != nil {
		return errors.Wrap(err, "deleting group")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *groupApi) members(ctx echo.Context) error {
	grp, err := contextGroup(ctx)
	if err != nil {
		return err
	}

	members := make([]user.User, 0, len(grp.Members))
	for _, id := range grp.Members {
		usr, err := api.users.GetByID(ctx.Request().Context(), id)
		if err != nil {
			if errors.Cause(err) == user.ErrNotFound {
				continue
			}
			return errors.Wrap(err, "finding member by ID")
		}
		members = append(members, usr)
	}
	return ctx.JSON(http.StatusOK, members)
}

func (api *groupApi) addMember(ctx echo.Context) error {
	grp, err := contextGroup(ctx)
	if err != nil {
		return err
	}

	var data MemberRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to MemberRequest")
	}
	if err = api.validate.Struct(data); err != nil {
		return err
	}
	if err = api.checkMembershipChange(ctx, grp, data.UserID); err != nil {
		return err
	}
	if _, err = api.users.GetByID(ctx.Request().Context(), data.UserID); err != nil {
		return errors.Wrap(err, "finding user by ID")
	}

	grp, err = api.svc.AddMember(ctx.Request().Context(), grp, data.UserID)
	if err != nil {
		return errors.Wrap(err, "adding group member")
	}
	return ctx.JSON(http.StatusOK, grp)
}

func (api *groupApi) removeMember(ctx echo.Context) error {
	grp, err := contextGroup(ctx)
	if err != nil {
		return err
	}

	userID := ctx.Param("userId")
	if err = api.checkMembershipChange(ctx, grp, userID); err != nil {
		return err
	}

	grp, err = api.svc.RemoveMember(ctx.Request().Context(), grp, userID)
	if err != nil {
		return errors.Wrap(err, "removing group member")
	}
	return ctx.JSON(http.StatusOK, grp)
}

// checkMembershipChange lets users join or leave on their own; the creator or an admin may change anyone.
func (api *groupApi) checkMembershipChange(ctx echo.Context, grp group.Group, userID string) error {
	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if userID == ctxUsr.ID || group.CanManage(grp, ctxUsr.ID, ctxUsr.IsAdmin()) {
		return nil
	}
	return group.ErrForbidden
}

func (api *groupApi) messages(ctx echo.Context) error {
	grp, err := contextGroup(ctx)
	if err != nil {
		return err
	}
	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	msgs, err := api.svc.Messages(ctx.Request().Context(), grp, ctxUsr.ID)
	if err != nil {
		return errors.Wrap(err, "querying group messages")
	}
	return ctx.JSON(http.StatusOK, msgs)
}

func (api *groupApi) addMessage(ctx echo.Context) error {
	grp, err := contextGroup(ctx)
	if err != nil {
		return err
	}
	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data group.NewMessage
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMessage")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	msg, err := api.svc.AddMessage(ctx.Request().Context(), grp, ctxUsr.ID, data)
	if err != nil {
		return errors.Wrap(err, "adding group message")
	}
	return ctx.JSON(http.StatusCreated, msg)
}

func (api *groupApi) loadGroup(ctx echo.Context, id string) (interface{}, error) {
	grp, err := api.svc.GetByID(ctx.Request().Context(), id)
	if err != nil {
		return nil, errors.Wrap(err, "finding group by ID")
	}
	return grp, nil
}

func (api *groupApi) managerMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			grp, err := contextGroup(ctx)
			if err != nil {
				return err
			}
			ctxUsr, err := getContextUser(ctx, api.users)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}
			if !group.CanManage(grp, ctxUsr.ID, ctxUsr.IsAdmin()) {
				return group.ErrForbidden
			}
			return next(ctx)
		}
	}
}

func contextGroup(ctx echo.Context) (group.Group, error) {
	grp, ok := ctx.Get(contextObjectKey).(group.Group)
	if !ok {
		return group.Group{}, errors.Wrap(errObjNotFoundInCtx, "retrieving group from context")
	}
	return grp, nil
}

type MemberRequest struct {
	UserID string `json:"user_id" validate:"required,uuid"`
}
