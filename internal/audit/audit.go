// Package audit records who did what to which document.
package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
)

// Action types recorded by the signing services.
const (
	ActionAssignSigners   = "ASSIGN_SIGNERS"
	ActionUpdateSigners   = "UPDATE_SIGNERS"
	ActionSignDocument    = "SIGN_DOCUMENT"
	ActionRejectDocument  = "REJECT_DOCUMENT"
	ActionFinalize        = "FINALIZE_DOCUMENT"
	ActionSignPackage     = "SIGN_PACKAGE"
	ActionAddMember       = "ADD_MEMBER"
	ActionRemoveMember    = "REMOVE_MEMBER"
	ActionVerifyUnlock    = "VERIFY_UNLOCK"
	ActionVerifyLockedOut = "VERIFY_LOCKED_OUT"
)

// Entry is one audit record.
type Entry struct {
	Action      string    `bson:"action" json:"action"`
	ActorID     string    `bson:"actorId" json:"actorId"`
	SubjectID   string    `bson:"subjectId" json:"subjectId"`
	Description string    `bson:"description" json:"description"`
	IPAddress   string    `bson:"ipAddress,omitempty" json:"ipAddress,omitempty"`
	UserAgent   string    `bson:"userAgent,omitempty" json:"userAgent,omitempty"`
	At          time.Time `bson:"at" json:"at"`
}

// MongoLogger appends entries to a collection.
type MongoLogger struct {
	col *mongo.Collection
}

func NewMongoLogger(col *mongo.Collection) *MongoLogger {
	return &MongoLogger{col: col}
}

func (l *MongoLogger) Log(ctx context.Context, e Entry) error {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	if _, err := l.col.InsertOne(ctx, e); err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// Noop discards entries.
type Noop struct{}

func (Noop) Log(ctx context.Context, e Entry) error { return nil }

// Recorder keeps entries in memory.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
}

func (r *Recorder) Log(ctx context.Context, e Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	r.entries = append(r.entries, e)
	return nil
}

// Entries returns a copy of everything logged so far.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Entry(nil), r.entries...)
}

// Actions returns the recorded action types in order.
func (r *Recorder) Actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Action)
	}
	return out
}
