// Package job holds the job, internship and apprenticeship offers posted by alumni and faculty.
package job

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/alumnet/alumnet/core"
)

const notSpecified = "Not specified"

var (
	Types = []string{"job", "internship", "apprenticeship"}

	// errors
	ErrNotFound       = errors.New("job not found")
	ErrForbidden      = errors.New("you do not have permission to manage this job")
	ErrAlreadyApplied = errors.New("you have already applied for this job")
)

type Job struct {
	ID              string   `json:"id"`
	CreatedBy       string   `json:"created_by"`
	Title           string   `json:"title"`
	Company         string   `json:"company"`
	Location        string   `json:"location"`
	Description     string   `json:"description"`
	Photo           string   `json:"photo"`
	PhotoPublicID   string   `json:"-"`
	Skills          []string `json:"skills"`
	Type            string   `json:"type"`
	StipendOrSalary string   `json:"stipend_or_salary"`
	ApplyLink       string   `json:"apply_link"`
	core.Reactions
	PostedAt  time.Time `json:"posted_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewJob contains information needed to create a new Job. The photo comes separately.
type NewJob struct {
	Title           string   `json:"title" form:"title" validate:"required,max=255"`
	Company         string   `json:"company" form:"company" validate:"required,max=255"`
	Location        string   `json:"location" form:"location" validate:"max=255"`
	Description     string   `json:"description" form:"description" validate:"required"`
	Skills          []string `json:"skills" form:"skills" validate:"min=1,max=20,dive,max=64"`
	Type            string   `json:"type" form:"type" validate:"required,oneof=job internship apprenticeship"`
	StipendOrSalary string   `json:"stipend_or_salary" form:"stipend_or_salary" validate:"max=100"`
	ApplyLink       string   `json:"apply_link" form:"apply_link" validate:"required,url"`
}

func (nj *NewJob) Validate(validate *validator.Validate) error {
	nj.Title = core.CleanString(nj.Title)
	nj.Company = core.CleanString(nj.Company)
	nj.Location = orDefault(core.CleanString(nj.Location), notSpecified)
	nj.Description = core.CleanString(nj.Description)
	nj.Skills = core.CleanList(nj.Skills)
	nj.Type = core.CleanString(nj.Type, true)
	nj.StipendOrSalary = orDefault(core.CleanString(nj.StipendOrSalary), notSpecified)
	nj.ApplyLink = core.CleanString(nj.ApplyLink)
	return validate.Struct(nj)
}

// UpdateJob defines what information may be provided to modify an existing Job.
// Empty fields keep their current value.
type UpdateJob struct {
	Title           string   `json:"title" form:"title" validate:"required,max=255"`
	Company         string   `json:"company" form:"company" validate:"required,max=255"`
	Location        string   `json:"location" form:"location" validate:"max=255"`
	Description     string   `json:"description" form:"description" validate:"required"`
	Skills          []string `json:"skills" form:"skills" validate:"min=1,max=20,dive,max=64"`
	Type            string   `json:"type" form:"type" validate:"required,oneof=job internship apprenticeship"`
	StipendOrSalary string   `json:"stipend_or_salary" form:"stipend_or_salary" validate:"max=100"`
	ApplyLink       string   `json:"apply_link" form:"apply_link" validate:"required,url"`
}

func (uj *UpdateJob) Validate(orig Job, validate *validator.Validate) error {
	uj.Title = orDefault(core.CleanString(uj.Title), orig.Title)
	uj.Company = orDefault(core.CleanString(uj.Company), orig.Company)
	uj.Location = orDefault(core.CleanString(uj.Location), orig.Location)
	uj.Description = orDefault(core.CleanString(uj.Description), orig.Description)
	if uj.Skills = core.CleanList(uj.Skills); len(uj.Skills) == 0 {
		uj.Skills = orig.Skills
	}
	uj.Type = orDefault(core.CleanString(uj.Type, true), orig.Type)
	uj.StipendOrSalary = orDefault(core.CleanString(uj.StipendOrSalary), orig.StipendOrSalary)
	uj.ApplyLink = orDefault(core.CleanString(uj.ApplyLink), orig.ApplyLink)
	return validate.Struct(uj)
}

type QueryFilter struct {
	CreatedBy string `query:"created_by"`
	Type      string `query:"type"`
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

type (
	Repository interface {
		CreateJob(ctx context.Context, j Job) (Job, error)
		QueryJobs(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Job, error)
		GetJobByID(ctx context.Context, id string) (Job, error)
		UpdateJob(ctx context.Context, j Job) (Job, error)
		DeleteJob(ctx context.Context, id string) error
		SetReaction(ctx context.Context, jobID, userID string, r core.Reaction) error
		SaveJob(ctx context.Context, jobID, userID string) error
		QuerySavedJobs(ctx context.Context, userID string) ([]Job, error)
		// AddApplication fails with ErrAlreadyApplied when the user already applied.
		AddApplication(ctx context.Context, jobID, userID string, at time.Time) error
		QueryAppliedJobs(ctx context.Context, userID string) ([]Job, error)
		QueryApplicants(ctx context.Context, jobID string) ([]string, error)
	}

	Service interface {
		Create(ctx context.Context, creatorID string, nj NewJob, photo core.ImageFile) (Job, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Job, error)
		GetByID(ctx context.Context, id string) (Job, error)
		Update(ctx context.Context, j Job, uj UpdateJob, photo *core.ImageFile) (Job, error)
		Delete(ctx context.Context, j Job) error
		React(ctx context.Context, j Job, userID string, r core.Reaction) (Job, error)
		Save(ctx context.Context, j Job, userID string) error
		Saved(ctx context.Context, userID string) ([]Job, error)
		Apply(ctx context.Context, j Job, userID string) error
		Applied(ctx context.Context, userID string) ([]Job, error)
		Applicants(ctx context.Context, j Job) ([]string, error)
	}

	service struct {
		repo   Repository
		images core.ImageUploader
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, images core.ImageUploader) Service {
	return &service{repo: repo, images: images}
}

// CanManage reports whether the user may update or delete j, or see who applied.
func CanManage(j Job, userID string, isAdmin bool) bool {
	return isAdmin || j.CreatedBy == userID
}

func (svc *service) Create(ctx context.Context, creatorID string, nj NewJob, photo core.ImageFile) (Job, error) {
	img, err := svc.images.Upload(ctx, photo.File, photo.Filename)
	if err != nil {
		return Job{}, errors.Wrap(err, "uploading job photo")
	}
	now := time.Now().UTC()
	return svc.repo.CreateJob(ctx, Job{
		CreatedBy:       creatorID,
		Title:           nj.Title,
		Company:         nj.Company,
		Location:        nj.Location,
		Description:     nj.Description,
		Photo:           img.URL,
		PhotoPublicID:   img.PublicID,
		Skills:          nj.Skills,
		Type:            nj.Type,
		StipendOrSalary: nj.StipendOrSalary,
		ApplyLink:       nj.ApplyLink,
		Reactions:       core.Reactions{}.Copy(),
		PostedAt:        now,
		UpdatedAt:       now,
	})
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Job, error) {
	return svc.repo.QueryJobs(ctx, filter, ordering)
}

func (svc *service) GetByID(ctx context.Context, id string) (Job, error) {
	return svc.repo.GetJobByID(ctx, id)
}

// Update replaces the photo too when one is given; the previous one is then destroyed.
func (svc *service) Update(ctx context.Context, j Job, uj UpdateJob, photo *core.ImageFile) (Job, error) {
	oldPublicID := ""
	if photo != nil {
		img, err := svc.images.Upload(ctx, photo.File, photo.Filename)
		if err != nil {
			return Job{}, errors.Wrap(err, "uploading job photo")
		}
		oldPublicID = j.PhotoPublicID
		j.Photo, j.PhotoPublicID = img.URL, img.PublicID
	}
	j.Title = uj.Title
	j.Company = uj.Company
	j.Location = uj.Location
	j.Description = uj.Description
	j.Skills = uj.Skills
	j.Type = uj.Type
	j.StipendOrSalary = uj.StipendOrSalary
	j.ApplyLink = uj.ApplyLink
	j.UpdatedAt = time.Now().UTC()

	j, err := svc.repo.UpdateJob(ctx, j)
	if err != nil {
		return Job{}, err
	}
	if oldPublicID != "" {
		_ = svc.images.Destroy(ctx, oldPublicID)
	}
	return j, nil
}

func (svc *service) Delete(ctx context.Context, j Job) error {
	if err := svc.repo.DeleteJob(ctx, j.ID); err != nil {
		return err
	}
	if j.PhotoPublicID != "" {
		_ = svc.images.Destroy(ctx, j.PhotoPublicID)
	}
	return nil
}

func (svc *service) React(ctx context.Context, j Job, userID string, r core.Reaction) (Job, error) {
	if err := svc.repo.SetReaction(ctx, j.ID, userID, r); err != nil {
		return Job{}, errors.Wrap(err, "setting reaction")
	}
	return svc.repo.GetJobByID(ctx, j.ID)
}

func (svc *service) Save(ctx context.Context, j Job, userID string) error {
	return svc.repo.SaveJob(ctx, j.ID, userID)
}

func (svc *service) Saved(ctx context.Context, userID string) ([]Job, error) {
	return svc.repo.QuerySavedJobs(ctx, userID)
}

func (svc *service) Apply(ctx context.Context, j Job, userID string) error {
	if err := svc.repo.AddApplication(ctx, j.ID, userID, time.Now().UTC()); err != nil {
		if errors.Cause(err) == ErrAlreadyApplied {
			return core.NewValidationError(ErrAlreadyApplied)
		}
		return errors.Wrap(err, "adding job application")
	}
	return nil
}

func (svc *service) Applied(ctx context.Context, userID string) ([]Job, error) {
	return svc.repo.QueryAppliedJobs(ctx, userID)
}

func (svc *service) Applicants(ctx context.Context, j Job) ([]string, error) {
	return svc.repo.QueryApplicants(ctx, j.ID)
}
