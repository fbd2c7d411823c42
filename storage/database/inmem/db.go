// Package inmemdb implements the repositories on process memory. It backs the tests and the no-DB dev mode.
package inmemdb

import (
	"sort"
	"sync"

	"github.com/alumnet/alumnet/core"
	"github.com/alumnet/alumnet/core/event"
	"github.com/alumnet/alumnet/core/fund"
	"github.com/alumnet/alumnet/core/group"
	"github.com/alumnet/alumnet/core/job"
	"github.com/alumnet/alumnet/core/message"
	"github.com/alumnet/alumnet/core/payment"
	"github.com/alumnet/alumnet/core/post"
	"github.com/alumnet/alumnet/core/project"
	"github.com/alumnet/alumnet/core/user"
)

type followKey struct{ follower, followee string }

// DB holds every table behind one lock, so multi-table writes are atomic like a SQL transaction.
type DB struct {
	mutex sync.RWMutex

	users   map[string]user.User
	follows map[followKey]user.Follow
	otps    map[string]user.OTP

	groups        map[string]group.Group
	groupMessages []group.Message
	messages      []message.Message

	projects map[string]project.Project
	funds    map[string]fund.Fund

	payments      map[string]payment.Payment // by payment id
	verifications map[string]payment.Verification
	ledger        []payment.LedgerEntry

	posts        map[string]post.Post
	jobs         map[string]job.Job
	events       map[string]event.Event
	bookmarks    []bookmark
	applications []application
}

func NewDB() *DB {
	return &DB{
		users:         make(map[string]user.User),
		follows:       make(map[followKey]user.Follow),
		otps:          make(map[string]user.OTP),
		groups:        make(map[string]group.Group),
		projects:      make(map[string]project.Project),
		funds:         make(map[string]fund.Fund),
		payments:      make(map[string]payment.Payment),
		verifications: make(map[string]payment.Verification),
		posts:         make(map[string]post.Post),
		jobs:          make(map[string]job.Job),
		events:        make(map[string]event.Event),
	}
}

// Repositories bundles one repository per domain, all sharing db.
type Repositories struct {
	Users    user.Repository
	Groups   group.Repository
	Messages message.Repository
	Projects project.Repository
	Funds    fund.Repository
	Payments payment.Repository
	Posts    post.Repository
	Jobs     job.Repository
	Events   event.Repository
}

func NewRepositories(db *DB) Repositories {
	return Repositories{
		Users:    NewUserRepository(db),
		Groups:   NewGroupRepository(db),
		Messages: NewMessageRepository(db),
		Projects: NewProjectRepository(db),
		Funds:    NewFundRepository(db),
		Payments: NewPaymentRepository(db),
		Posts:    NewPostRepository(db),
		Jobs:     NewJobRepository(db),
		Events:   NewEventRepository(db),
	}
}

func copyStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append(make([]string, 0, len(s)), s...)
}

// orderBy returns the first ordering on an allowed field, or fallback.
func orderBy(orderings []core.DBOrdering, allowed []string, fallback core.DBOrdering) core.DBOrdering {
	for _, ord := range orderings {
		if core.ContainsString(allowed, ord.Field) {
			return ord
		}
	}
	return fallback
}

// sortSlice sorts slice with less, reversed when ord is descending.
func sortSlice(slice interface{}, ord core.DBOrdering, less func(i, j int) bool) {
	sort.SliceStable(slice, func(i, j int) bool {
		if ord.Ascending {
			return less(i, j)
		}
		return less(j, i)
	})
}
