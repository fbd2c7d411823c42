package user

import (
	"context"
	"io"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/alumnet/alumnet/core"
)

var (
	// errors
	ErrNotFound       = errors.New("user not found")
	ErrEmailExists    = errors.New("a user with this email already exists")
	ErrUsernameExists = errors.New("a user with this username already exists")
	ErrSelfFollow     = errors.New("you cannot follow yourself")
	ErrInvalidUID     = errors.New("invalid uid")
)

type (
	Repository interface {
		// CheckUsernameUniqueness returns ErrUsernameExists or ErrEmailExists if another user (excluding
		// excludedUsers) holds the username or email.
		CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers []User) error
		CreateUser(ctx context.Context, usr User) (User, error)
		// QueryUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of the names, User.Username or User.Email.
		QueryUsers(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error)
		GetUserByID(ctx context.Context, id string) (User, error)
		GetUserByEmail(ctx context.Context, email string) (User, error)
		GetUserByUsernameOrEmail(ctx context.Context, username string) (User, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
		SetCustomerID(ctx context.Context, id, customerID string) error
		DeleteUsersByID(ctx context.Context, ids ...string) error

		// Follow is a no-op if the edge already exists.
		Follow(ctx context.Context, f Follow) error
		Unfollow(ctx context.Context, followerID, followeeID string) error
		QueryFollowers(ctx context.Context, id string) ([]User, error)
		QueryFollowing(ctx context.Context, id string) ([]User, error)

		SaveOTP(ctx context.Context, otp OTP) error
		GetOTP(ctx context.Context, email string) (OTP, error)
		DeleteOTP(ctx context.Context, email string) error
	}

	Service interface {
		CheckUniqueness(ctx context.Context, uname, email string, exclUsers ...User) error
		Create(ctx context.Context, nu NewUser) (User, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error)
		GetByID(ctx context.Context, id string) (User, error)
		GetByEmail(ctx context.Context, email string) (User, error)
		GetByUsernameOrEmail(ctx context.Context, uname string) (User, error)
		Update(ctx context.Context, usr User, uu UpdateUser) (User, error)
		SetLastLogin(ctx context.Context, usr User) (User, error)
		SetProfilePhoto(ctx context.Context, usr User, file io.Reader, filename string) (User, error)
		SetCustomerID(ctx context.Context, id, customerID string) error
		Delete(ctx context.Context, ids ...string) error
		RequestPasswordReset(ctx context.Context, email string) error
		ResetPassword(ctx context.Context, data ResetUserPassword) error
		Follow(ctx context.Context, followerID, followeeID string) error
		Unfollow(ctx context.Context, followerID, followeeID string) error
		Followers(ctx context.Context, id string) ([]User, error)
		Following(ctx context.Context, id string) ([]User, error)
		RequestOTP(ctx context.Context, email string) error
		VerifyOTP(ctx context.Context, email, code string) error
	}

	service struct {
		repo     Repository
		mailSvc  core.EmailService
		images   core.ImageUploader
		tokens   tokenGenerator
		otps     otpGenerator
		frontURL string
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, mailSvc core.EmailService, images core.ImageUploader, conf *core.Config) Service {
	return &service{
		repo:     repo,
		mailSvc:  mailSvc,
		images:   images,
		tokens:   newTokenGenerator(conf.SecretKey, conf.PasswordResetTimeoutDelta),
		otps:     newOTPGenerator(conf.SecretKey, conf.OTPExpirationDelta),
		frontURL: conf.FrontendBaseURL,
	}
}

func (svc *service) CheckUniqueness(ctx context.Context, uname, email string, exclUsers ...User) error {
	if err := svc.repo.CheckUsernameUniqueness(ctx, uname, email, exclUsers); err != nil {
		var field string
		switch errors.Cause(err) {
		case ErrUsernameExists:
			field = "username"
		case ErrEmailExists:
			field = "email"
		default:
			return errors.Wrap(err, "checking username uniqueness")
		}
		return core.NewFieldValidationError(field, errors.Cause(err))
	}
	return nil
}

func (svc *service) Create(ctx context.Context, nu NewUser) (User, error) {
	now := time.Now().UTC()
	usr := User{
		FirstName:    nu.FirstName,
		LastName:     nu.LastName,
		Username:     nu.Username,
		Email:        nu.Email,
		Phone:        nu.Phone,
		Roles:        nu.Roles,
		ProfilePhoto: defaultAvatar(nu.FirstName, nu.LastName),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if usr.Roles == nil {
		usr.Roles = []string{RoleStudent}
	}
	usr.SetActive(true)
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}

	usr, err := svc.repo.CreateUser(ctx, usr)
	if err != nil {
		return User{}, errors.Wrap(err, "creating user")
	}
	if usr.Email != "" {
		svc.mailSvc.SendMessages(mailBuilder{frontURL: svc.frontURL}.welcome(usr))
	}
	return usr, nil
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error) {
	return svc.repo.QueryUsers(ctx, filter, ordering)
}

func (svc *service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUserByID(ctx, id)
}

func (svc *service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
}

func (svc *service) GetByUsernameOrEmail(ctx context.Context, uname string) (User, error) {
	return svc.repo.GetUserByUsernameOrEmail(ctx, core.CleanString(uname, true /* lower */))
}

// Update applies uu (already validated against usr) to usr.
func (svc *service) Update(ctx context.Context, usr User, uu UpdateUser) (User, error) {
	usr.FirstName = uu.FirstName
	usr.LastName = uu.LastName
	usr.Username = uu.Username
	usr.Email = uu.Email
	usr.Phone = uu.Phone
	usr.Roles = uu.Roles
	if uu.Bio != nil {
		usr.Bio = core.CleanString(*uu.Bio)
	}
	if uu.IsActive != nil {
		usr.SetActive(*uu.IsActive)
	}
	if uu.Password != "" {
		if err := usr.SetPassword(uu.Password); err != nil {
			return User{}, errors.Wrap(err, "setting password")
		}
	}
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

// SetProfilePhoto uploads the new photo and destroys the previous one.
func (svc *service) SetProfilePhoto(ctx context.Context, usr User, file io.Reader, filename string) (User, error) {
	img, err := svc.images.Upload(ctx, file, filename)
	if err != nil {
		return User{}, errors.Wrap(err, "uploading profile photo")
	}
	oldPublicID := usr.ProfilePhotoID

	usr.ProfilePhoto = img.URL
	usr.ProfilePhotoID = img.PublicID
	usr.UpdatedAt = time.Now().UTC()
	if usr, err = svc.repo.UpdateUser(ctx, usr); err != nil {
		return User{}, errors.Wrap(err, "updating user")
	}

	if oldPublicID != "" {
		if err = svc.images.Destroy(ctx, oldPublicID); err != nil {
			return User{}, errors.Wrap(err, "destroying previous profile photo")
		}
	}
	return usr, nil
}

func (svc *service) SetCustomerID(ctx context.Context, id, customerID string) error {
	return svc.repo.SetCustomerID(ctx, id, customerID)
}

func (svc *service) Delete(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteUsersByID(ctx, ids...)
}

func (svc *service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !usr.Active() {
		return ErrNotFound
	}
	go svc.sendPasswordResetMail(usr)
	return nil
}

func (svc *service) sendPasswordResetMail(usr User) {
	svc.mailSvc.SendMessages(mailBuilder{frontURL: svc.frontURL}.passwordReset(usr, svc.tokens.makeToken(usr)))
}

func (svc *service) ResetPassword(ctx context.Context, data ResetUserPassword) error {
	id, err := decodeUID(data.UID)
	if err != nil {
		return core.NewFieldValidationError("uid", ErrInvalidUID)
	}
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return core.NewFieldValidationError("uid", ErrInvalidUID)
		}
		return errors.Wrap(err, "finding user by ID")
	}
	if err = svc.tokens.verifyToken(usr, data.Token); err != nil {
		return core.NewFieldValidationError("token", err)
	}
	if err = usr.SetPassword(data.Password); err != nil {
		return errors.Wrap(err, "setting password")
	}
	usr.UpdatedAt = time.Now().UTC()
	if _, err = svc.repo.UpdateUser(ctx, usr); err != nil {
		return errors.Wrap(err, "updating user")
	}
	return nil
}

func (svc *service) Follow(ctx context.Context, followerID, followeeID string) error {
	if followerID == followeeID {
		return core.NewValidationError(ErrSelfFollow)
	}
	if _, err := svc.repo.GetUserByID(ctx, followeeID); err != nil {
		return err
	}
	return svc.repo.Follow(ctx, Follow{FollowerID: followerID, FolloweeID: followeeID, CreatedAt: time.Now().UTC()})
}

func (svc *service) Unfollow(ctx context.Context, followerID, followeeID string) error {
	if _, err := svc.repo.GetUserByID(ctx, followeeID); err != nil {
		return err
	}
	return svc.repo.Unfollow(ctx, followerID, followeeID)
}

func (svc *service) Followers(ctx context.Context, id string) ([]User, error) {
	return svc.repo.QueryFollowers(ctx, id)
}

func (svc *service) Following(ctx context.Context, id string) ([]User, error) {
	return svc.repo.QueryFollowing(ctx, id)
}

// mailBuilder renders the user related emails.
type mailBuilder struct {
	frontURL string
}

func (b mailBuilder) recipient(usr User) []mail.Address {
	return []mail.Address{{Name: usr.Name(), Address: usr.Email}}
}

func (b mailBuilder) welcome(usr User) *core.EmailMessage {
	return &core.EmailMessage{
		To:              b.recipient(usr),
		Subject:         "Welcome!",
		TemplateName:    "welcome",
		TemplateData:    map[string]interface{}{"Name": usr.Name()},
		FrontendBaseURL: b.frontURL,
	}
}

func (b mailBuilder) passwordReset(usr User, token string) *core.EmailMessage {
	return &core.EmailMessage{
		To:           b.recipient(usr),
		Subject:      "Password Reset",
		TemplateName: "password_reset",
		TemplateData: map[string]interface{}{
			"Name":  usr.Name(),
			"UID":   EncodeUID(usr),
			"Token": token,
		},
		FrontendBaseURL: b.frontURL,
	}
}

func (b mailBuilder) otp(email, code string, ttl time.Duration) *core.EmailMessage {
	return &core.EmailMessage{
		To:           []mail.Address{{Address: email}},
		Subject:      "Your verification code",
		TemplateName: "otp",
		TemplateData: map[string]interface{}{
			"Code":    code,
			"Minutes": int(ttl / time.Minute),
		},
		FrontendBaseURL: b.frontURL,
	}
}
