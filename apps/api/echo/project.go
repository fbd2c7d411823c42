package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/alumnet/alumnet/core/payment"
	"github.com/alumnet/alumnet/core/project"
	"github.com/alumnet/alumnet/core/user"
)

type projectApi struct {
	svc      project.Service
	users    user.Service
	payments payment.Service
	validate *validator.Validate
}

func registerProjectAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := projectApi{
		svc:      deps.ProjectSvc,
		users:    deps.UserSvc,
		payments: deps.PaymentSvc,
		validate: deps.Validate,
	}

	pg := g.Group("/projects", jwt)
	pg.GET("", api.query)
	pg.POST("", api.create)
	pg.GET("/types", api.queryChoices(project.ProjectTypes))
	pg.GET("/departments", api.queryChoices(project.Departments))

	// detail endpoints
	dg := pg.Group("/:id", objectMiddleware(api.loadProject))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update, api.ownerMiddleware())
	dg.DELETE("", api.destroy, api.ownerMiddleware())
	dg.POST("/contributors", api.addContributor)
	dg.DELETE("/contributors", api.removeContributor)
	dg.GET("/donations", api.donations)
}

// Handlers

func (api *projectApi) create(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data project.NewProject
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewProject")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	prj, err := api.svc.Create(ctx.Request().Context(), ctxUsr.ID, data)
	if err != nil {
		return errors.Wrap(err, "creating project")
	}
	return ctx.JSON(http.StatusCreated, prj)
}

func (api *projectApi) query(ctx echo.Context) error {
	filter := new(project.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []project.Project{})
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	projects, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying projects")
	}
	return ctx.JSON(http.StatusOK, projects)
}

func (api *projectApi) queryChoices(choices []string) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		return ctx.JSON(http.StatusOK, choices)
	}
}

func (api *projectApi) retrieve(ctx echo.Context) error {
	prj, err := contextProject(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, prj)
}

func (api *projectApi) update(ctx echo.Context) error {
	prj, err := contextProject(ctx)
	if err != nil {
		return err
	}

	var data project.UpdateProject
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateProject")
	}
	if err = data.Validate(prj, api.validate); err != nil {
		return err
	}

	prj, err = api.svc.Update(ctx.Request().Context(), prj, data)
	if err != nil {
		return errors.Wrap(err, "updating project")
	}
	return ctx.JSON(http.StatusOK, prj)
}

func (api *projectApi) destroy(ctx echo.Context) error {
	prj, err := contextProject(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), prj); err != nil {
		return errors.Wrap(err, "deleting project")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *projectApi) addContributor(ctx echo.Context) error {
	prj, ctxUsr, err := api.projectAndUser(ctx)
	if err != nil {
		return err
	}
	prj, err = api.svc.AddContributor(ctx.Request().Context(), prj, ctxUsr.ID)
	if err != nil {
		return errors.Wrap(err, "adding contributor")
	}
	return ctx.JSON(http.StatusOK, prj)
}

func (api *projectApi) removeContributor(ctx echo.Context) error {
	prj, ctxUsr, err := api.projectAndUser(ctx)
	if err != nil {
		return err
	}
	prj, err = api.svc.RemoveContributor(ctx.Request().Context(), prj, ctxUsr.ID)
	if err != nil {
		return errors.Wrap(err, "removing contributor")
	}
	return ctx.JSON(http.StatusOK, prj)
}

// donations lists the donors of the project with what each gave.
func (api *projectApi) donations(ctx echo.Context) error {
	prj, err := contextProject(ctx)
	if err != nil {
		return err
	}
	totals, err := api.payments.PayerTotals(ctx.Request().Context(), payment.KindDonation, prj.ID)
	if err != nil {
		return errors.Wrap(err, "querying donation totals")
	}
	return ctx.JSON(http.StatusOK, totals)
}

func (api *projectApi) projectAndUser(ctx echo.Context) (project.Project, user.User, error) {
	prj, err := contextProject(ctx)
	if err != nil {
		return project.Project{}, user.User{}, err
	}
	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return project.Project{}, user.User{}, errors.Wrap(err, "getting context user")
	}
	return prj, ctxUsr, nil
}

func (api *projectApi) loadProject(ctx echo.Context, id string) (interface{}, error) {
	prj, err := api.svc.GetByID(ctx.Request().Context(), id)
	if err != nil {
		return nil, errors.Wrap(err, "finding project by ID")
	}
	return prj, nil
}

func (api *projectApi) ownerMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			prj, ctxUsr, err := api.projectAndUser(ctx)
			if err != nil {
				return err
			}
			if !project.CanManage(prj, ctxUsr.ID, ctxUsr.IsAdmin()) {
				return project.ErrForbidden
			}
			return next(ctx)
		}
	}
}

func contextProject(ctx echo.Context) (project.Project, error) {
	prj, ok := ctx.Get(contextObjectKey).(project.Project)
	if !ok {
		return project.Project{}, errors.Wrap(errObjNotFoundInCtx, "retrieving project from context")
	}
	return prj, nil
}
