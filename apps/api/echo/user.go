package echoapi

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/alumnet/alumnet/core"
	"github.com/alumnet/alumnet/core/payment"
	"github.com/alumnet/alumnet/core/user"
)

var (
	errNoPermsToSetRoles = errors.New("not enough rights to set these roles")
	errPhotoRequired     = errors.New("an image is required")
)

type userApi struct {
	conf     *core.Config
	svc      user.Service
	payments payment.Service
	validate *validator.Validate
}

func registerUserAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := userApi{
		conf:     deps.Conf,
		svc:      deps.UserSvc,
		payments: deps.PaymentSvc,
		validate: deps.Validate,
	}

	ug := g.Group("/users")

	// un-authed endpoints
	// TODO: rate limit `/password-reset` & `/password-reset-confirm`
	ug.POST("/signup", api.signup)
	ug.POST("/login", api.login)
	ug.POST("/logout", api.logout)
	ug.POST("/password-reset", api.resetPassword)
	ug.POST("/password-reset-confirm", api.confirmPasswordReset)

	og := g.Group("/otp")
	og.POST("/send", api.sendOTP)
	og.POST("/verify", api.verifyOTP)

	// authed endpoints
	ag := ug.Group("", jwt)
	ag.POST("/token-refresh", api.refreshToken)
	ag.POST("/register", api.create, adminMiddleware())
	ag.GET("", api.query)
	ag.DELETE("", api.destroyMultiple, adminMiddleware())
	ag.GET("/roles", api.queryRoles)

	// detail endpoints
	dg := ag.Group("/:id", objectMiddleware(api.loadUser))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update, api.selfOrAdminMiddleware())
	dg.DELETE("", api.destroy, adminMiddleware())
	dg.PUT("/photo", api.setPhoto, api.selfOrAdminMiddleware())
	dg.POST("/follow", api.follow)
	dg.DELETE("/follow", api.unfollow)
	dg.GET("/followers", api.followers)
	dg.GET("/following", api.following)
	dg.GET("/donations", api.payerTotals(payment.KindDonation))
	dg.GET("/fundings", api.payerTotals(payment.KindFunding))
}

// Handlers

func (api *userApi) signup(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}
	if err := data.Validate(ctx.Request().Context(), api.validate, api.svc); err != nil {
		return err
	}
	if core.ContainsString(data.Roles, user.RoleAdmin) {
		return core.NewFieldValidationError("roles", errNoPermsToSetRoles)
	}

	usr, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating user")
	}
	return ctx.JSON(http.StatusCreated, usr)
}

func (api *userApi) create(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}
	if err := data.Validate(ctx.Request().Context(), api.validate, api.svc); err != nil {
		return err
	}

	// ctxUser cannot set a role > their own max role
	ctxUsr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if user.MaxRolePriority(data.Roles) > user.MaxRolePriority(ctxUsr.Roles) {
		return core.NewFieldValidationError("roles", errNoPermsToSetRoles)
	}

	usr, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating user")
	}
	return ctx.JSON(http.StatusCreated, usr)
}

func (api *userApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := authenticate(ctx.Request().Context(), data.Username, data.Password, api.svc)
	if err != nil {
		return errors.Wrap(err, "authenticating")
	}
	token, err := GenerateToken(api.conf, GetUserClaims(api.conf, usr))
	if err != nil {
		return errors.Wrap(err, "generating token")
	}

	setTokenCookie(ctx, api.conf, token, api.conf.Server.JWTExpirationDelta)
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token, User: &usr})
}

func (api *userApi) logout(ctx echo.Context) error {
	setTokenCookie(ctx, api.conf, "", -time.Second)
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Logged out successfully."})
}

func (api *userApi) resetPassword(ctx echo.Context) error {
	var data EmailRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EmailRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.svc.RequestPasswordReset(ctx.Request().Context(), data.Email); !(err == nil || errors.Cause(err) == user.ErrNotFound) {
		// do not return errors to attackers
		ctx.Logger().Errorf("%+v", errors.Wrap(err, "requesting password reset"))
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{
		Success: "If the email address supplied is associated with an active account on this system, " +
			"an email will arrive in your inbox shortly with instructions to reset your password.",
	})
}

func (api *userApi) confirmPasswordReset(ctx echo.Context) error {
	var data user.ResetUserPassword
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResetUserPassword")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.svc.ResetPassword(ctx.Request().Context(), data); err != nil {
		return errors.Wrap(err, "resetting password")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Password has been reset with the new password."})
}

func (api *userApi) sendOTP(ctx echo.Context) error {
	var data EmailRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EmailRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.svc.RequestOTP(ctx.Request().Context(), data.Email); err != nil {
		return errors.Wrap(err, "requesting otp")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "A verification code has been sent to " + data.Email + "."})
}

func (api *userApi) verifyOTP(ctx echo.Context) error {
	var data OTPRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to OTPRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.svc.VerifyOTP(ctx.Request().Context(), data.Email, data.Code); err != nil {
		return errors.Wrap(err, "verifying otp")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Email verified successfully."})
}

func (api *userApi) query(ctx echo.Context) error {
	filter := new(user.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []user.User{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	users, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	if users == nil {
		users = []user.User{}
	}
	return ctx.JSON(http.StatusOK, users)
}

func (api *userApi) retrieve(ctx echo.Context) error {
	usr, err := contextUserObject(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) update(ctx echo.Context) error {
	usr, err := contextUserObject(ctx)
	if err != nil {
		return err
	}

	var data user.UpdateUser
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateUser")
	}

	ctxUsr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	// `IsActive` and `Roles` can only be changed by admin
	if !ctxUsr.IsAdmin() && (data.IsActive != nil || data.Roles != nil) {
		return errHttpForbidden
	}

	if err = data.Validate(ctx.Request().Context(), usr, api.validate, api.svc); err != nil {
		return err
	}

	// ctxUser cannot set a role > their own max role
	if user.MaxRolePriority(data.Roles) > user.MaxRolePriority(ctxUsr.Roles) {
		return core.NewFieldValidationError("roles", errNoPermsToSetRoles)
	}

	usr, err = api.svc.Update(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "updating user")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) setPhoto(ctx echo.Context) error {
	usr, err := contextUserObject(ctx)
	if err != nil {
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

	usr, err = api.svc.SetProfilePhoto(ctx.Request().Context(), usr, img.File, img.Filename)
	if err != nil {
		return errors.Wrap(err, "setting profile photo")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) destroy(ctx echo.Context) error {
	usr, err := contextUserObject(ctx)
	if err != nil {
		return err
	}

	// ctxUser cannot delete themselves
	ctxUsr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if usr.ID == ctxUsr.ID {
		return errHttpForbidden
	}

	if err := api.svc.Delete(ctx.Request().Context(), usr.ID); err != nil {
		return errors.Wrap(err, "deleting user")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *userApi) destroyMultiple(ctx echo.Context) error {
	var query DestroyMultipleRequest
	if err := ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to DestroyMultipleRequest")
	}
	if query.IDs == nil {
		return ctx.NoContent(http.StatusNoContent)
	}

	// ctxUser cannot delete themselves
	ctxUsr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if core.ContainsString(query.IDs, ctxUsr.ID) {
		return errHttpForbidden
	}

	if err := api.svc.Delete(ctx.Request().Context(), query.IDs...); err != nil {
		return errors.Wrap(err, "deleting users")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *userApi) queryRoles(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, user.Roles)
}

func (api *userApi) refreshToken(ctx echo.Context) error {
	token, err := refreshToken(ctx, api.conf, api.svc)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	setTokenCookie(ctx, api.conf, token, api.conf.Server.JWTExpirationDelta)
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *userApi) follow(ctx echo.Context) error {
	usr, ctxUsr, err := api.followPair(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Follow(ctx.Request().Context(), ctxUsr.ID, usr.ID); err != nil {
		return errors.Wrap(err, "following user")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "You are now following " + usr.Name() + "."})
}

func (api *userApi) unfollow(ctx echo.Context) error {
	usr, ctxUsr, err := api.followPair(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Unfollow(ctx.Request().Context(), ctxUsr.ID, usr.ID); err != nil {
		return errors.Wrap(err, "unfollowing user")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *userApi) followPair(ctx echo.Context) (user.User, user.User, error) {
	usr, err := contextUserObject(ctx)
	if err != nil {
		return user.User{}, user.User{}, err
	}
	ctxUsr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return user.User{}, user.User{}, errors.Wrap(err, "getting context user")
	}
	return usr, ctxUsr, nil
}

func (api *userApi) followers(ctx echo.Context) error {
	usr, err := contextUserObject(ctx)
	if err != nil {
		return err
	}
	users, err := api.svc.Followers(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "querying followers")
	}
	return ctx.JSON(http.StatusOK, users)
}

func (api *userApi) following(ctx echo.Context) error {
	usr, err := contextUserObject(ctx)
	if err != nil {
		return err
	}
	users, err := api.svc.Following(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "querying following")
	}
	return ctx.JSON(http.StatusOK, users)
}

// payerTotals lists what the user gave, per project or fund.
func (api *userApi) payerTotals(kind payment.Kind) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		usr, err := contextUserObject(ctx)
		if err != nil {
			return err
		}
		totals, err := api.payments.TargetTotals(ctx.Request().Context(), kind, usr.ID)
		if err != nil {
			return errors.Wrapf(err, "querying %s totals", kind)
		}
		return ctx.JSON(http.StatusOK, totals)
	}
}

func (api *userApi) loadUser(ctx echo.Context, id string) (interface{}, error) {
	usr, err := api.svc.GetByID(ctx.Request().Context(), id)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return nil, errHttpNotFound
		}
		return nil, errors.Wrap(err, "finding user by ID")
	}
	return usr, nil
}

func (api *userApi) selfOrAdminMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			ctxUsr, err := getContextUser(ctx, api.svc)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}
			if ctx.Param("id") == ctxUsr.ID || ctxUsr.IsAdmin() {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

func contextUserObject(ctx echo.Context) (user.User, error) {
	usr, ok := ctx.Get(contextObjectKey).(user.User)
	if !ok {
		return user.User{}, errors.Wrap(errObjNotFoundInCtx, "retrieving user from context")
	}
	return usr, nil
}

type (
	LoginRequest struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token string     `json:"token"`
		User  *user.User `json:"user,omitempty"`
	}

	EmailRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	OTPRequest struct {
		Email string `json:"email" validate:"required,email"`
		Code  string `json:"otp" validate:"required,len=6,numeric"`
	}

	DestroyMultipleRequest struct {
		IDs []string `query:"id"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Username = core.CleanString(lr.Username, true /* lower */)
	return validate.Struct(lr)
}

func (er *EmailRequest) Validate(validate *validator.Validate) error {
	er.Email = core.CleanString(er.Email, true /* lower */)
	return validate.Struct(er)
}

func (otp *OTPRequest) Validate(validate *validator.Validate) error {
	otp.Email = core.CleanString(otp.Email, true /* lower */)
	otp.Code = core.CleanString(otp.Code)
	return validate.Struct(otp)
}
