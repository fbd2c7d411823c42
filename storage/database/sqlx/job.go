package sqlxrepos

import (
	"context"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/alumnet/alumnet/core"
	"github.com/alumnet/alumnet/core/job"
)

var jobOrderingFields = []string{"posted_at", "title", "company"}

var jobSelect = `SELECT j.id, j.created_by, j.title, j.company, j.location, j.description, j.photo, j.photo_public_id,
	j.skills, j.job_type, j.stipend_or_salary, j.apply_link, j.posted_at, j.updated_at, ` +
	reactionColumns(kindJob, "j.id") + ` FROM jobs j`

type dbJob struct {
	ID              string         `db:"id"`
	CreatedBy       string         `db:"created_by"`
	Title           string         `db:"title"`
	Company         string         `db:"company"`
	Location        string         `db:"location"`
	Description     string         `db:"description"`
	Photo           string         `db:"photo"`
	PhotoPublicID   string         `db:"photo_public_id"`
	Skills          pq.StringArray `db:"skills"`
	JobType         string         `db:"job_type"`
	StipendOrSalary string         `db:"stipend_or_salary"`
	ApplyLink       string         `db:"apply_link"`
	PostedAt        time.Time      `db:"posted_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
	dbReactions
}

func (j dbJob) toJob() job.Job {
	return job.Job{
		ID:              j.ID,
		CreatedBy:       j.CreatedBy,
		Title:           j.Title,
		Company:         j.Company,
		Location:        j.Location,
		Description:     j.Description,
		Photo:           j.Photo,
		PhotoPublicID:   j.PhotoPublicID,
		Skills:          nonNil(j.Skills),
		Type:            j.JobType,
		StipendOrSalary: j.StipendOrSalary,
		ApplyLink:       j.ApplyLink,
		Reactions:       j.toReactions(),
		PostedAt:        j.PostedAt.UTC(),
		UpdatedAt:       j.UpdatedAt.UTC(),
	}
}

type jobRepository struct {
	db core.DB
}

var _ job.Repository = (*jobRepository)(nil)

func NewJobRepository(db core.DB) job.Repository {
	return &jobRepository{db: db}
}

func (repo *jobRepository) selectJobs(ctx context.Context, q string, args ...interface{}) ([]job.Job, error) {
	var rows []dbJob
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting jobs")
	}
	jobs := make([]job.Job, 0, len(rows))
	for _, row := range rows {
		jobs = append(jobs, row.toJob())
	}
	return jobs, nil
}

func (repo *jobRepository) CreateJob(ctx context.Context, j job.Job) (job.Job, error) {
	j.ID = core.NewID()
	q := `INSERT INTO jobs (id, created_by, title, company, location, description, photo, photo_public_id, skills,
		job_type, stipend_or_salary, apply_link, posted_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	if _, err := repo.db.ExecContext(ctx, q, j.ID, j.CreatedBy, j.Title, j.Company, j.Location, j.Description,
		j.Photo, j.PhotoPublicID, pq.Array(nonNil(j.Skills)), j.Type, j.StipendOrSalary, j.ApplyLink,
		j.PostedAt, j.UpdatedAt); err != nil {
		return job.Job{}, errors.Wrap(err, "inserting job")
	}
	return repo.GetJobByID(ctx, j.ID)
}

func (repo *jobRepository) QueryJobs(ctx context.Context, filter *job.QueryFilter, ordering []core.DBOrdering) ([]job.Job, error) {
	var (
		args  []interface{}
		conds []string
	)
	if filter != nil {
		if filter.CreatedBy != "" {
			args = append(args, filter.CreatedBy)
			conds = append(conds, "j.created_by::text = $"+strconv.Itoa(len(args)))
		}
		if filter.Type != "" {
			args = append(args, filter.Type)
			conds = append(conds, "j.job_type = $"+strconv.Itoa(len(args)))
		}
	}
	q := jobSelect + where(conds) + " ORDER BY " +
		core.OrderByClause(prefixOrdering("j", ordering), prefixFields("j", jobOrderingFields), "j.posted_at DESC")
	return repo.selectJobs(ctx, q, args...)
}

func (repo *jobRepository) GetJobByID(ctx context.Context, id string) (job.Job, error) {
	var row dbJob
	if err := repo.db.GetContext(ctx, &row, jobSelect+" WHERE j.id::text = $1", id); err != nil {
		return job.Job{}, notFound(err, job.ErrNotFound)
	}
	return row.toJob(), nil
}

func (repo *jobRepository) UpdateJob(ctx context.Context, j job.Job) (job.Job, error) {
	q := `UPDATE jobs SET title = $1, company = $2, location = $3, description = $4, photo = $5, photo_public_id = $6,
		skills = $7, job_type = $8, stipend_or_salary = $9, apply_link = $10, updated_at = $11 WHERE id::text = $12`
	if err := execOne(ctx, repo.db, job.ErrNotFound, q, j.Title, j.Company, j.Location, j.Description, j.Photo,
		j.PhotoPublicID, pq.Array(nonNil(j.Skills)), j.Type, j.StipendOrSalary, j.ApplyLink, j.UpdatedAt, j.ID); err != nil {
		return job.Job{}, err
	}
	return repo.GetJobByID(ctx, j.ID)
}

func (repo *jobRepository) DeleteJob(ctx context.Context, id string) error {
	return core.InTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		if err := execOne(ctx, tx, job.ErrNotFound, "DELETE FROM jobs WHERE id::text = $1", id); err != nil {
			return err
		}
		return dropTargetRows(ctx, tx, kindJob, id)
	})
}

func (repo *jobRepository) SetReaction(ctx context.Context, jobID, userID string, r core.Reaction) error {
	if _, err := repo.GetJobByID(ctx, jobID); err != nil {
		return err
	}
	return setReaction(ctx, repo.db, kindJob, jobID, userID, r)
}

func (repo *jobRepository) SaveJob(ctx context.Context, jobID, userID string) error {
	if _, err := repo.GetJobByID(ctx, jobID); err != nil {
		return err
	}
	return addBookmark(ctx, repo.db, kindJob, jobID, userID)
}

func (repo *jobRepository) QuerySavedJobs(ctx context.Context, userID string) ([]job.Job, error) {
	return repo.selectJobs(ctx, jobSelect+bookmarkJoin(kindJob, "j"), userID)
}

func (repo *jobRepository) AddApplication(ctx context.Context, jobID, userID string, at time.Time) error {
	if _, err := repo.GetJobByID(ctx, jobID); err != nil {
		return err
	}
	q := "INSERT INTO job_applications (job_id, user_id, applied_at) VALUES ($1, $2, $3)"
	if _, err := repo.db.ExecContext(ctx, q, jobID, userID, at); err != nil {
		if uniqueViolationOn(err, "job_applications_pkey") {
			return job.ErrAlreadyApplied
		}
		return errors.Wrap(err, "inserting job application")
	}
	return nil
}

func (repo *jobRepository) QueryAppliedJobs(ctx context.Context, userID string) ([]job.Job, error) {
	q := jobSelect + " JOIN job_applications a ON a.job_id = j.id WHERE a.user_id::text = $1 ORDER BY a.applied_at DESC"
	return repo.selectJobs(ctx, q, userID)
}

func (repo *jobRepository) QueryApplicants(ctx context.Context, jobID string) ([]string, error) {
	if _, err := repo.GetJobByID(ctx, jobID); err != nil {
		return nil, err
	}
	applicants := []string{}
	q := "SELECT user_id::text FROM job_applications WHERE job_id::text = $1 ORDER BY applied_at"
	if err := repo.db.SelectContext(ctx, &applicants, q, jobID); err != nil {
		return nil, errors.Wrap(err, "selecting job applicants")
	}
	return applicants, nil
}
