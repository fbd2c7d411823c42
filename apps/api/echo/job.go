package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/alumnet/alumnet/core"
	"github.com/alumnet/alumnet/core/job"
	"github.com/alumnet/alumnet/core/user"
)

type jobApi struct {
	svc      job.Service
	users    user.Service
	validate *validator.Validate
}

func registerJobAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := jobApi{
		svc:      deps.JobSvc,
		users:    deps.UserSvc,
		validate: deps.Validate,
	}

	jg := g.Group("/jobs", jwt)
	jg.GET("", api.query)
	jg.POST("", api.create)
	jg.GET("/types", api.types)
	jg.GET("/saved", api.saved)
	jg.GET("/applied", api.applied)

	dg := jg.Group("/:id", objectMiddleware(api.loadJob))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update, api.ownerMiddleware())
	dg.DELETE("", api.destroy, api.ownerMiddleware())
	dg.POST("/reactions", api.react)
	dg.POST("/save", api.save)
	dg.POST("/apply", api.apply)
	dg.GET("/applicants", api.applicants, api.ownerMiddleware())
}

func (api *jobApi) create(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if !ctxUsr.CanPublish() {
		return errHttpForbidden
	}

	var data job.NewJob
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewJob")
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

	j, err := api.svc.Create(ctx.Request().Context(), ctxUsr.ID, data, *img)
	if err != nil {
		return errors.Wrap(err, "creating job")
	}
	return ctx.JSON(http.StatusCreated, j)
}

func (api *jobApi) query(ctx echo.Context) error {
	filter := new(job.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []job.Job{})
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	jobs, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying jobs")
	}
	return ctx.JSON(http.StatusOK, jobs)
}

func (api *jobApi) types(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, job.Types)
}

func (api *jobApi) saved(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	jobs, err := api.svc.Saved(ctx.Request().Context(), ctxUsr.ID)
	if err != nil {
		return errors.Wrap(err, "querying saved jobs")
	}
	return ctx.JSON(http.StatusOK, jobs)
}

func (api *jobApi) applied(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	jobs, err := api.svc.Applied(ctx.Request().Context(), ctxUsr.ID)
	if err != nil {
		return errors.Wrap(err, "querying applied jobs")
	}
	return ctx.JSON(http.StatusOK, jobs)
}

func (api *jobApi) retrieve(ctx echo.Context) error {
	j, err := contextJob(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, j)
}

func (api *jobApi) update(ctx echo.Context) error {
	j, err := contextJob(ctx)
	if err != nil {
		return err
	}

	var data job.UpdateJob
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateJob")
	}
	if err = data.Validate(j, api.validate); err != nil {
		return err
	}
	img, closer, err := bindImage(ctx)
	if err != nil {
		return err
	}
	defer closer.Close()

	j, err = api.svc.Update(ctx.Request().Context(), j, data, img)
	if err != nil {
		return errors.Wrap(err, "updating job")
	}
	return ctx.JSON(http.StatusOK, j)
}

func (api *jobApi) destroy(ctx echo.Context) error {
	j, err := contextJob(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), j); err != nil {
		return errors.Wrap(err, "deleting job")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *jobApi) react(ctx echo.Context) error {
	j, ctxUsr, err := api.jobAndUser(ctx)
	if err != nil {
		return err
	}
	reaction, err := bindReaction(ctx)
	if err != nil {
		return err
	}
	j, err = api.svc.React(ctx.Request().Context(), j, ctxUsr.ID, reaction)
	if err != nil {
		return errors.Wrap(err, "reacting to job")
	}
	return ctx.JSON(http.StatusOK, j)
}

func (api *jobApi) save(ctx echo.Context) error {
	j, ctxUsr, err := api.jobAndUser(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Save(ctx.Request().Context(), j, ctxUsr.ID); err != nil {
		return errors.Wrap(err, "saving job")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Job saved."})
}

func (api *jobApi) apply(ctx echo.Context) error {
	j, ctxUsr, err := api.jobAndUser(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Apply(ctx.Request().Context(), j, ctxUsr.ID); err != nil {
		return errors.Wrap(err, "applying for job")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Application recorded."})
}

// applicants lists the users who applied, oldest application first.
func (api *jobApi) applicants(ctx echo.Context) error {
	j, err := contextJob(ctx)
	if err != nil {
		return err
	}
	ids, err := api.svc.Applicants(ctx.Request().Context(), j)
	if err != nil {
		return errors.Wrap(err, "querying job applicants")
	}
	users := make([]user.User, 0, len(ids))
	for _, id := range ids {
		usr, err := api.users.GetByID(ctx.Request().Context(), id)
		if err != nil {
			if errors.Cause(err) == user.ErrNotFound {
				continue
			}
			return errors.Wrap(err, "finding applicant by ID")
		}
		users = append(users, usr)
	}
	return ctx.JSON(http.StatusOK, users)
}

func (api *jobApi) jobAndUser(ctx echo.Context) (job.Job, user.User, error) {
	j, err := contextJob(ctx)
	if err != nil {
		return job.Job{}, user.User{}, err
	}
	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return job.Job{}, user.User{}, errors.Wrap(err, "getting context user")
	}
	return j, ctxUsr, nil
}

func (api *jobApi) loadJob(ctx echo.Context, id string) (interface{}, error) {
	j, err := api.svc.GetByID(ctx.Request().Context(), id)
	if err != nil {
		return nil, errors.Wrap(err, "finding job by ID")
	}
	return j, nil
}

func (api *jobApi) ownerMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			j, ctxUsr, err := api.jobAndUser(ctx)
			if err != nil {
				return err
			}
			if !job.CanManage(j, ctxUsr.ID, ctxUsr.IsAdmin()) {
				return job.ErrForbidden
			}
			return next(ctx)
		}
	}
}

func contextJob(ctx echo.Context) (job.Job, error) {
	j, ok := ctx.Get(contextObjectKey).(job.Job)
	if !ok {
		return job.Job{}, errors.Wrap(errObjNotFoundInCtx, "retrieving job from context")
	}
	return j, nil
}
