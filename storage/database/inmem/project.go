package inmemdb

import (
	"context"

	"github.com/alumnet/alumnet/core"
	"github.com/alumnet/alumnet/core/project"
)

var projectOrderingFields = []string{"created_at", "topic", "donated_amount"}

type projectRepository struct {
	db *DB
}

var _ project.Repository = (*projectRepository)(nil)

func NewProjectRepository(db *DB) project.Repository {
	return &projectRepository{db: db}
}

func copyProject(prj project.Project) project.Project {
	prj.Technologies = copyStrings(prj.Technologies)
	prj.Contributors = copyStrings(prj.Contributors)
	if prj.Technologies == nil {
		prj.Technologies = []string{}
	}
	if prj.Contributors == nil {
		prj.Contributors = []string{}
	}
	return prj
}

func (repo *projectRepository) CreateProject(ctx context.Context, prj project.Project) (project.Project, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	prj.ID = core.NewID()
	prj = copyProject(prj)
	repo.db.projects[prj.ID] = prj
	return copyProject(prj), nil
}

func (repo *projectRepository) QueryProjects(ctx context.Context, filter *project.QueryFilter, ordering []core.DBOrdering) ([]project.Project, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	projects := make([]project.Project, 0, len(repo.db.projects))
	for _, prj := range repo.db.projects {
		if filter != nil && filter.CreatedBy != "" && prj.CreatedBy != filter.CreatedBy {
			continue
		}
		projects = append(projects, copyProject(prj))
	}
	ord := orderBy(ordering, projectOrderingFields, core.DBOrdering{Field: "created_at"})
	sortSlice(projects, ord, func(i, j int) bool {
		switch ord.Field {
		case "topic":
			return projects[i].Topic < projects[j].Topic
		case "donated_amount":
			return projects[i].DonatedAmount.LessThan(projects[j].DonatedAmount)
		default:
			return projects[i].CreatedAt.Before(projects[j].CreatedAt)
		}
	})
	return projects, nil
}

func (repo *projectRepository) GetProjectByID(ctx context.Context, id string) (project.Project, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if prj, ok := repo.db.projects[id]; ok {
		return copyProject(prj), nil
	}
	return project.Project{}, project.ErrNotFound
}

func (repo *projectRepository) UpdateProject(ctx context.Context, prj project.Project) (project.Project, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.projects[prj.ID]
	if !ok {
		return project.Project{}, project.ErrNotFound
	}
	prj.CreatedBy = orig.CreatedBy
	prj.Contributors = orig.Contributors
	prj.DonatedAmount = orig.DonatedAmount
	prj.CreatedAt = orig.CreatedAt
	prj = copyProject(prj)
	repo.db.projects[prj.ID] = prj
	return copyProject(prj), nil
}

func (repo *projectRepository) DeleteProject(ctx context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.projects[id]; !ok {
		return project.ErrNotFound
	}
	delete(repo.db.projects, id)
	return nil
}

func (repo *projectRepository) AddContributor(ctx context.Context, projectID, userID string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	prj, ok := repo.db.projects[projectID]
	if !ok {
		return project.ErrNotFound
	}
	if !core.ContainsString(prj.Contributors, userID) {
		prj.Contributors = append(copyStrings(prj.Contributors), userID)
		repo.db.projects[projectID] = prj
	}
	return nil
}

func (repo *projectRepository) RemoveContributor(ctx context.Context, projectID, userID string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	prj, ok := repo.db.projects[projectID]
	if !ok {
		return project.ErrNotFound
	}
	contributors := make([]string, 0, len(prj.Contributors))
	for _, id := range prj.Contributors {
		if id != userID {
			contributors = append(contributors, id)
		}
	}
	prj.Contributors = contributors
	repo.db.projects[projectID] = prj
	return nil
}
