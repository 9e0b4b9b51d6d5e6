package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tandatangan/tandatangan/backend/go-services/internal/document"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func commandNames(mt *mtest.T) []string {
	var out []string
	for _, e := range mt.GetAllStartedEvents() {
		out = append(out, e.CommandName)
	}
	return out
}

func TestMongoCommitFinalizationOrder(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("version is written before the document is claimed", func(mt *mtest.T) {
		r := NewMongoRepo(mt.DB)
		mt.ClearEvents()
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}),
		)

		v := &document.DocumentVersion{DocumentID: "d1", URL: "signed.pdf"}
		require.NoError(t, r.CommitFinalization(context.Background(), "d1", v, "signed.pdf"))
		assert.NotEmpty(t, v.ID)
		assert.Equal(t, []string{"insert", "update"}, commandNames(mt))
	})

	mt.Run("lost claim removes the version", func(mt *mtest.T) {
		r := NewMongoRepo(mt.DB)
		mt.ClearEvents()
		ns := mt.DB.Name() + ".documents"
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}),
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{{Key: "n", Value: int32(1)}}),
		)

		err := r.CommitFinalization(context.Background(), "d1", &document.DocumentVersion{DocumentID: "d1"}, "signed.pdf")
		require.ErrorIs(t, err, ErrConflict)
		assert.Equal(t, []string{"insert", "update", "delete", "aggregate"}, commandNames(mt))
	})

	mt.Run("failed insert leaves the document alone", func(mt *mtest.T) {
		r := NewMongoRepo(mt.DB)
		mt.ClearEvents()
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 11000, Message: "duplicate key"}))

		err := r.CommitFinalization(context.Background(), "d1", &document.DocumentVersion{DocumentID: "d1"}, "signed.pdf")
		require.Error(t, err)
		assert.Equal(t, []string{"insert"}, commandNames(mt))
	})
}
