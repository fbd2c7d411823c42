package inmemdb

import "time"

const (
	kindPost = "post"
	kindJob  = "job"
)

// bookmark is a post or job saved by a user.
type bookmark struct {
	kind, targetID, userID string
}

type application struct {
	jobID, userID string
	at            time.Time
}

// addBookmark is a no-op when the user already saved the target. Callers hold the write lock.
func (db *DB) addBookmark(kind, targetID, userID string) {
	for _, b := range db.bookmarks {
		if b.kind == kind && b.targetID == targetID && b.userID == userID {
			return
		}
	}
	db.bookmarks = append(db.bookmarks, bookmark{kind, targetID, userID})
}

// savedIDs lists what userID saved of kind, most recent first.
func (db *DB) savedIDs(kind, userID string) []string {
	var ids []string
	for i := len(db.bookmarks) - 1; i >= 0; i-- {
		if b := db.bookmarks[i]; b.kind == kind && b.userID == userID {
			ids = append(ids, b.targetID)
		}
	}
	return ids
}

func (db *DB) dropBookmarks(kind, targetID string) {
	kept := db.bookmarks[:0]
	for _, b := range db.bookmarks {
		if b.kind != kind || b.targetID != targetID {
			kept = append(kept, b)
		}
	}
	db.bookmarks = kept
}
