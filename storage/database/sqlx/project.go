package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/alumnet/alumnet/core"
	"github.com/alumnet/alumnet/core/project"
)

var projectOrderingFields = []string{"created_at", "topic", "donated_amount"}

const projectSelect = `SELECT p.id, p.created_by, p.topic, p.description, p.project_type, p.department, p.phase,
	p.technologies, p.funding_required, p.open_for_mentor, p.open_for_student, p.donated_amount, p.created_at,
	p.updated_at,
	COALESCE(array_agg(c.user_id::text) FILTER (WHERE c.user_id IS NOT NULL), '{}') AS contributors
	FROM projects p LEFT JOIN project_contributors c ON c.project_id = p.id`

type dbProject struct {
	ID              string          `db:"id"`
	CreatedBy       string          `db:"created_by"`
	Topic           string          `db:"topic"`
	Description     string          `db:"description"`
	ProjectType     string          `db:"project_type"`
	Department      string          `db:"department"`
	Phase           string          `db:"phase"`
	Technologies    pq.StringArray  `db:"technologies"`
	FundingRequired bool            `db:"funding_required"`
	OpenForMentor   bool            `db:"open_for_mentor"`
	OpenForStudent  bool            `db:"open_for_student"`
	DonatedAmount   decimal.Decimal `db:"donated_amount"`
	Contributors    pq.StringArray  `db:"contributors"`
	CreatedAt       time.Time       `db:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at"`
}

func (p dbProject) toProject() project.Project {
	prj := project.Project{
		ID:              p.ID,
		CreatedBy:       p.CreatedBy,
		Topic:           p.Topic,
		Description:     p.Description,
		ProjectType:     p.ProjectType,
		Department:      p.Department,
		Phase:           p.Phase,
		Technologies:    []string(p.Technologies),
		FundingRequired: p.FundingRequired,
		OpenForMentor:   p.OpenForMentor,
		OpenForStudent:  p.OpenForStudent,
		Contributors:    []string(p.Contributors),
		DonatedAmount:   p.DonatedAmount,
		CreatedAt:       p.CreatedAt.UTC(),
		UpdatedAt:       p.UpdatedAt.UTC(),
	}
	if prj.Technologies == nil {
		prj.Technologies = []string{}
	}
	if prj.Contributors == nil {
		prj.Contributors = []string{}
	}
	return prj
}

type projectRepository struct {
	db core.DB
}

var _ project.Repository = (*projectRepository)(nil)

func NewProjectRepository(db core.DB) project.Repository {
	return &projectRepository{db: db}
}

func (repo *projectRepository) CreateProject(ctx context.Context, prj project.Project) (project.Project, error) {
	prj.ID = core.NewID()
	err := core.InTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		q := `INSERT INTO projects (id, created_by, topic, description, project_type, department, phase,
			technologies, funding_required, open_for_mentor, open_for_student, donated_amount, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 0, $12, $13)`
		if _, err := tx.ExecContext(ctx, q, prj.ID, prj.CreatedBy, prj.Topic, prj.Description, prj.ProjectType,
			prj.Department, prj.Phase, pq.Array(nonNil(prj.Technologies)), prj.FundingRequired, prj.OpenForMentor,
			prj.OpenForStudent, prj.CreatedAt, prj.UpdatedAt); err != nil {
			return errors.Wrap(err, "inserting project")
		}
		for _, userID := range prj.Contributors {
			if err := addContributor(ctx, tx, prj.ID, userID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return project.Project{}, err
	}
	return repo.GetProjectByID(ctx, prj.ID)
}

func (repo *projectRepository) QueryProjects(ctx context.Context, filter *project.QueryFilter, ordering []core.DBOrdering) ([]project.Project, error) {
	var args []interface{}
	q := projectSelect
	if filter != nil && filter.CreatedBy != "" {
		q += " WHERE p.created_by::text = $1"
		args = append(args, filter.CreatedBy)
	}
	q += " GROUP BY p.id ORDER BY " + core.OrderByClause(prefixOrdering("p", ordering), prefixFields("p", projectOrderingFields), "p.created_at DESC")

	var rows []dbProject
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting projects")
	}
	projects := make([]project.Project, 0, len(rows))
	for _, row := range rows {
		projects = append(projects, row.toProject())
	}
	return projects, nil
}

func (repo *projectRepository) GetProjectByID(ctx context.Context, id string) (project.Project, error) {
	var row dbProject
	if err := repo.db.GetContext(ctx, &row, projectSelect+" WHERE p.id::text = $1 GROUP BY p.id", id); err != nil {
		return project.Project{}, notFound(err, project.ErrNotFound)
	}
	return row.toProject(), nil
}

func (repo *projectRepository) UpdateProject(ctx context.Context, prj project.Project) (project.Project, error) {
	q := `UPDATE projects SET topic = $1, description = $2, project_type = $3, department = $4, phase = $5,
		technologies = $6, funding_required = $7, open_for_mentor = $8, open_for_student = $9, updated_at = $10
		WHERE id::text = $11`
	if err := execOne(ctx, repo.db, project.ErrNotFound, q, prj.Topic, prj.Description, prj.ProjectType,
		prj.Department, prj.Phase, pq.Array(nonNil(prj.Technologies)), prj.FundingRequired, prj.OpenForMentor,
		prj.OpenForStudent, prj.UpdatedAt, prj.ID); err != nil {
		return project.Project{}, err
	}
	return repo.GetProjectByID(ctx, prj.ID)
}

func (repo *projectRepository) DeleteProject(ctx context.Context, id string) error {
	return execOne(ctx, repo.db, project.ErrNotFound, "DELETE FROM projects WHERE id::text = $1", id)
}

func addContributor(ctx context.Context, db core.DBExecutor, projectID, userID string) error {
	q := "INSERT INTO project_contributors (project_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING"
	_, err := db.ExecContext(ctx, q, projectID, userID)
	return errors.Wrap(err, "inserting project contributor")
}

func (repo *projectRepository) AddContributor(ctx context.Context, projectID, userID string) error {
	if _, err := repo.GetProjectByID(ctx, projectID); err != nil {
		return err
	}
	return addContributor(ctx, repo.db, projectID, userID)
}

func (repo *projectRepository) RemoveContributor(ctx context.Context, projectID, userID string) error {
	if _, err := repo.GetProjectByID(ctx, projectID); err != nil {
		return err
	}
	q := "DELETE FROM project_contributors WHERE project_id = $1 AND user_id = $2"
	_, err := repo.db.ExecContext(ctx, q, projectID, userID)
	return errors.Wrap(err, "deleting project contributor")
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
