package inmemdb

import (
	"context"
	"time"

	"github.com/alumnet/alumnet/core"
	"github.com/alumnet/alumnet/core/job"
)

var jobOrderingFields = []string{"posted_at", "title", "company"}

type jobRepository struct {
	db *DB
}

var _ job.Repository = (*jobRepository)(nil)

func NewJobRepository(db *DB) job.Repository {
	return &jobRepository{db: db}
}

func copyJob(j job.Job) job.Job {
	j.Skills = nonNilStrings(copyStrings(j.Skills))
	j.Reactions = j.Reactions.Copy()
	return j
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func (repo *jobRepository) CreateJob(ctx context.Context, j job.Job) (job.Job, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	j.ID = core.NewID()
	j = copyJob(j)
	repo.db.jobs[j.ID] = j
	return copyJob(j), nil
}

func (repo *jobRepository) QueryJobs(ctx context.Context, filter *job.QueryFilter, ordering []core.DBOrdering) ([]job.Job, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	jobs := make([]job.Job, 0, len(repo.db.jobs))
	for _, j := range repo.db.jobs {
		if filter != nil {
			if filter.CreatedBy != "" && j.CreatedBy != filter.CreatedBy {
				continue
			}
			if filter.Type != "" && j.Type != filter.Type {
				continue
			}
		}
		jobs = append(jobs, copyJob(j))
	}
	ord := orderBy(ordering, jobOrderingFields, core.DBOrdering{Field: "posted_at"})
	sortSlice(jobs, ord, func(i, j int) bool {
		switch ord.Field {
		case "title":
			return jobs[i].Title < jobs[j].Title
		case "company":
			return jobs[i].Company < jobs[j].Company
		default:
			return jobs[i].PostedAt.Before(jobs[j].PostedAt)
		}
	})
	return jobs, nil
}

func (repo *jobRepository) GetJobByID(ctx context.Context, id string) (job.Job, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if j, ok := repo.db.jobs[id]; ok {
		return copyJob(j), nil
	}
	return job.Job{}, job.ErrNotFound
}

func (repo *jobRepository) UpdateJob(ctx context.Context, j job.Job) (job.Job, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.jobs[j.ID]
	if !ok {
		return job.Job{}, job.ErrNotFound
	}
	j.CreatedBy = orig.CreatedBy
	j.PostedAt = orig.PostedAt
	j.Reactions = orig.Reactions
	j = copyJob(j)
	repo.db.jobs[j.ID] = j
	return copyJob(j), nil
}

func (repo *jobRepository) DeleteJob(ctx context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.jobs[id]; !ok {
		return job.ErrNotFound
	}
	delete(repo.db.jobs, id)
	repo.db.dropBookmarks(kindJob, id)
	kept := repo.db.applications[:0]
	for _, a := range repo.db.applications {
		if a.jobID != id {
			kept = append(kept, a)
		}
	}
	repo.db.applications = kept
	return nil
}

func (repo *jobRepository) SetReaction(ctx context.Context, jobID, userID string, r core.Reaction) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	j, ok := repo.db.jobs[jobID]
	if !ok {
		return job.ErrNotFound
	}
	j.Reactions = j.Reactions.Copy()
	j.Reactions.Apply(userID, r)
	repo.db.jobs[jobID] = j
	return nil
}

func (repo *jobRepository) SaveJob(ctx context.Context, jobID, userID string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.jobs[jobID]; !ok {
		return job.ErrNotFound
	}
	repo.db.addBookmark(kindJob, jobID, userID)
	return nil
}

func (repo *jobRepository) QuerySavedJobs(ctx context.Context, userID string) ([]job.Job, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	return repo.jobsByID(repo.db.savedIDs(kindJob, userID)), nil
}

func (repo *jobRepository) jobsByID(ids []string) []job.Job {
	jobs := []job.Job{}
	for _, id := range ids {
		if j, ok := repo.db.jobs[id]; ok {
			jobs = append(jobs, copyJob(j))
		}
	}
	return jobs
}

func (repo *jobRepository) AddApplication(ctx context.Context, jobID, userID string, at time.Time) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.jobs[jobID]; !ok {
		return job.ErrNotFound
	}
	for _, a := range repo.db.applications {
		if a.jobID == jobID && a.userID == userID {
			return job.ErrAlreadyApplied
		}
	}
	repo.db.applications = append(repo.db.applications, application{jobID: jobID, userID: userID, at: at})
	return nil
}

func (repo *jobRepository) QueryAppliedJobs(ctx context.Context, userID string) ([]job.Job, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var ids []string
	for i := len(repo.db.applications) - 1; i >= 0; i-- {
		if a := repo.db.applications[i]; a.userID == userID {
			ids = append(ids, a.jobID)
		}
	}
	return repo.jobsByID(ids), nil
}

func (repo *jobRepository) QueryApplicants(ctx context.Context, jobID string) ([]string, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if _, ok := repo.db.jobs[jobID]; !ok {
		return nil, job.ErrNotFound
	}
	applicants := []string{}
	for _, a := range repo.db.applications {
		if a.jobID == jobID {
			applicants = append(applicants, a.userID)
		}
	}
	return applicants, nil
}
