package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/alumnet/alumnet/core"
	"github.com/alumnet/alumnet/core/post"
	"github.com/alumnet/alumnet/core/user"
)

type postApi struct {
	svc      post.Service
	users    user.Service
	validate *validator.Validate
}

func registerPostAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := postApi{
		svc:      deps.PostSvc,
		users:    deps.UserSvc,
		validate: deps.Validate,
	}

	pg := g.Group("/posts", jwt)
	pg.GET("", api.query)
	pg.POST("", api.create)
	pg.GET("/saved", api.saved)

	dg := pg.Group("/:id", objectMiddleware(api.loadPost))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update, api.ownerMiddleware())
	dg.DELETE("", api.destroy, api.ownerMiddleware())
	dg.POST("/reactions", api.react)
	dg.POST("/save", api.save)
}

func (api *postApi) create(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data post.NewPost
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPost")
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

	p, err := api.svc.Create(ctx.Request().Context(), ctxUsr.ID, data, *img)
	if err != nil {
		return errors.Wrap(err, "creating post")
	}
	return ctx.JSON(http.StatusCreated, p)
}

func (api *postApi) query(ctx echo.Context) error {
	filter := new(post.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []post.Post{})
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	posts, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying posts")
	}
	return ctx.JSON(http.StatusOK, posts)
}

func (api *postApi) saved(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	posts, err := api.svc.Saved(ctx.Request().Context(), ctxUsr.ID)
	if err != nil {
		return errors.Wrap(err, "querying saved posts")
	}
	return ctx.JSON(http.StatusOK, posts)
}

func (api *postApi) retrieve(ctx echo.Context) error {
	p, err := contextPost(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *postApi) update(ctx echo.Context) error {
	p, err := contextPost(ctx)
	if err != nil {
		return err
	}

	var data post.UpdatePost
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdatePost")
	}
	if err = data.Validate(p, api.validate); err != nil {
		return err
	}
	img, closer, err := bindImage(ctx)
	if err != nil {
		return err
	}
	defer closer.Close()

	p, err = api.svc.Update(ctx.Request().Context(), p, data, img)
	if err != nil {
		return errors.Wrap(err, "updating post")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *postApi) destroy(ctx echo.Context) error {
	p, err := contextPost(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), p); err != nil {
		return errors.Wrap(err, "deleting post")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *postApi) react(ctx echo.Context) error {
	p, ctxUsr, err := api.postAndUser(ctx)
	if err != nil {
		return err
	}
	reaction, err := bindReaction(ctx)
	if err != nil {
		return err
	}
	p, err = api.svc.React(ctx.Request().Context(), p, ctxUsr.ID, reaction)
	if err != nil {
		return errors.Wrap(err, "reacting to post")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *postApi) save(ctx echo.Context) error {
	p, ctxUsr, err := api.postAndUser(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Save(ctx.Request().Context(), p, ctxUsr.ID); err != nil {
		return errors.Wrap(err, "saving post")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Post saved."})
}

func (api *postApi) postAndUser(ctx echo.Context) (post.Post, user.User, error) {
	p, err := contextPost(ctx)
	if err != nil {
		return post.Post{}, user.User{}, err
	}
	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return post.Post{}, user.User{}, errors.Wrap(err, "getting context user")
	}
	return p, ctxUsr, nil
}

func (api *postApi) loadPost(ctx echo.Context, id string) (interface{}, error) {
	p, err := api.svc.GetByID(ctx.Request().Context(), id)
	if err != nil {
		return nil, errors.Wrap(err, "finding post by ID")
	}
	return p, nil
}

func (api *postApi) ownerMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			p, ctxUsr, err := api.postAndUser(ctx)
			if err != nil {
				return err
			}
			if !post.CanManage(p, ctxUsr.ID, ctxUsr.IsAdmin()) {
				return post.ErrForbidden
			}
			return next(ctx)
		}
	}
}

func contextPost(ctx echo.Context) (post.Post, error) {
	p, ok := ctx.Get(contextObjectKey).(post.Post)
	if !ok {
		return post.Post{}, errors.Wrap(errObjNotFoundInCtx, "retrieving post from context")
	}
	return p, nil
}
