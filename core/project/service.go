package project

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/alumnet/alumnet/core"
)

var (
	// errors
	ErrNotFound  = errors.New("project not found")
	ErrForbidden = errors.New("you do not have permission to manage this project")
)

type (
	Repository interface {
		CreateProject(ctx context.Context, prj Project) (Project, error)
		QueryProjects(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Project, error)
		GetProjectByID(ctx context.Context, id string) (Project, error)
		// UpdateProject never touches the donated amount.
		UpdateProject(ctx context.Context, prj Project) (Project, error)
		DeleteProject(ctx context.Context, id string) error
		AddContributor(ctx context.Context, projectID, userID string) error
		RemoveContributor(ctx context.Context, projectID, userID string) error
	}

	Service interface {
		Create(ctx context.Context, creatorID string, np NewProject) (Project, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Project, error)
		GetByID(ctx context.Context, id string) (Project, error)
		Update(ctx context.Context, prj Project, up UpdateProject) (Project, error)
		Delete(ctx context.Context, prj Project) error
		AddContributor(ctx context.Context, prj Project, userID string) (Project, error)
		RemoveContributor(ctx context.Context, prj Project, userID string) (Project, error)
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

// CanManage reports whether the user may update or delete prj.
func CanManage(prj Project, userID string, isAdmin bool) bool {
	return isAdmin || prj.CreatedBy == userID
}

func (svc *service) Create(ctx context.Context, creatorID string, np NewProject) (Project, error) {
	now := time.Now().UTC()
	return svc.repo.CreateProject(ctx, Project{
		CreatedBy:       creatorID,
		Topic:           np.Topic,
		Description:     np.Description,
		ProjectType:     np.ProjectType,
		Department:      np.Department,
		Phase:           np.Phase,
		Technologies:    np.Technologies,
		FundingRequired: np.FundingRequired,
		OpenForMentor:   np.OpenForMentor,
		OpenForStudent:  np.OpenForStudent,
		Contributors:    []string{},
		DonatedAmount:   decimal.Zero,
		CreatedAt:       now,
		UpdatedAt:       now,
	})
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Project, error) {
	return svc.repo.QueryProjects(ctx, filter, ordering)
}

func (svc *service) GetByID(ctx context.Context, id string) (Project, error) {
	return svc.repo.GetProjectByID(ctx, id)
}

func (svc *service) Update(ctx context.Context, prj Project, up UpdateProject) (Project, error) {
	prj.Topic = up.Topic
	prj.Description = up.Description
	prj.ProjectType = up.ProjectType
	prj.Department = up.Department
	prj.Phase = up.Phase
	prj.Technologies = up.Technologies
	if up.FundingRequired != nil {
		prj.FundingRequired = *up.FundingRequired
	}
	if up.OpenForMentor != nil {
		prj.OpenForMentor = *up.OpenForMentor
	}
	if up.OpenForStudent != nil {
		prj.OpenForStudent = *up.OpenForStudent
	}
	prj.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateProject(ctx, prj)
}

func (svc *service) Delete(ctx context.Context, prj Project) error {
	return svc.repo.DeleteProject(ctx, prj.ID)
}

func (svc *service) AddContributor(ctx context.Context, prj Project, userID string) (Project, error) {
	if err := svc.repo.AddContributor(ctx, prj.ID, userID); err != nil {
		return Project{}, errors.Wrap(err, "adding contributor")
	}
	return svc.repo.GetProjectByID(ctx, prj.ID)
}

func (svc *service) RemoveContributor(ctx context.Context, prj Project, userID string) (Project, error) {
	if err := svc.repo.RemoveContributor(ctx, prj.ID, userID); err != nil {
		return Project{}, errors.Wrap(err, "removing contributor")
	}
	return svc.repo.GetProjectByID(ctx, prj.ID)
}
