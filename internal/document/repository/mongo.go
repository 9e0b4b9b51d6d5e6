package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tandatangan/tandatangan/backend/go-services/internal/document"
	"github.com/tandatangan/tandatangan/backend/go-services/pkg/logger"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoRepo implements Store on top of one MongoDB database. Each entity
// lives in its own collection; ids are UUID strings stored in _id.
type MongoRepo struct {
	docs       *mongo.Collection
	versions   *mongo.Collection
	signers    *mongo.Collection
	signatures *mongo.Collection
	groups     *mongo.Collection
	members    *mongo.Collection
	packages   *mongo.Collection
	pkgDocs    *mongo.Collection
}

var _ Store = (*MongoRepo)(nil)

func NewMongoRepo(db *mongo.Database) *MongoRepo {
	r := &MongoRepo{
		docs:       db.Collection("documents"),
		versions:   db.Collection("document_versions"),
		signers:    db.Collection("group_document_signers"),
		signatures: db.Collection("signatures"),
		groups:     db.Collection("groups"),
		members:    db.Collection("group_members"),
		packages:   db.Collection("packages"),
		pkgDocs:    db.Collection("package_documents"),
	}
	r.ensureIndexes(context.Background())
	return r
}

func (r *MongoRepo) ensureIndexes(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	unique := options.Index().SetUnique(true)
	idx := []struct {
		col   *mongo.Collection
		model mongo.IndexModel
	}{
		{r.docs, mongo.IndexModel{Keys: bson.D{{Key: "groupId", Value: 1}}}},
		{r.versions, mongo.IndexModel{Keys: bson.D{{Key: "documentId", Value: 1}, {Key: "createdAt", Value: 1}}}},
		{r.signers, mongo.IndexModel{Keys: bson.D{{Key: "documentId", Value: 1}, {Key: "userId", Value: 1}}, Options: unique}},
		{r.signatures, mongo.IndexModel{Keys: bson.D{{Key: "versionId", Value: 1}, {Key: "signedAt", Value: 1}}}},
		{r.members, mongo.IndexModel{Keys: bson.D{{Key: "groupId", Value: 1}, {Key: "userId", Value: 1}}, Options: unique}},
		{r.pkgDocs, mongo.IndexModel{Keys: bson.D{{Key: "packageId", Value: 1}, {Key: "position", Value: 1}}}},
		{r.pkgDocs, mongo.IndexModel{Keys: bson.D{{Key: "packageId", Value: 1}, {Key: "documentId", Value: 1}}, Options: unique}},
	}
	for _, i := range idx {
		if _, err := i.col.Indexes().CreateOne(ctx, i.model); err != nil {
			logger.Warnf("mongo: create index on %s: %v", i.col.Name(), err)
		}
	}
}

func notFound(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return err
}

func findAll[T any](ctx context.Context, col *mongo.Collection, filter any, opts ...*options.FindOptions) ([]*T, error) {
	cur, err := col.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []*T{}
	for cur.Next(ctx) {
		var v T
		if err := cur.Decode(&v); err != nil {
			return nil, err
		}
		out = append(out, &v)
	}
	return out, cur.Err()
}

func count(ctx context.Context, col *mongo.Collection, filter any) (int, error) {
	n, err := col.CountDocuments(ctx, filter)
	return int(n), err
}

// documents

func (r *MongoRepo) CreateDocument(ctx context.Context, d *document.Document) error {
	d.ID = newID(d.ID)
	if d.Status == "" {
		d.Status = document.StatusDraft
	}
	now := time.Now().UTC()
	d.CreatedAt = now
	d.UpdatedAt = now
	_, err := r.docs.InsertOne(ctx, d)
	return err
}

func (r *MongoRepo) GetDocument(ctx context.Context, id string) (*document.Document, error) {
	var d document.Document
	if err := r.docs.FindOne(ctx, bson.M{"_id": id}).Decode(&d); err != nil {
		return nil, notFound(err)
	}
	return &d, nil
}

func (r *MongoRepo) ListGroupDocuments(ctx context.Context, groupID string) ([]*document.Document, error) {
	return findAll[document.Document](ctx, r.docs, bson.M{"groupId": groupID}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
}

func (r *MongoRepo) CountGroupDocuments(ctx context.Context, groupID string) (int, error) {
	return count(ctx, r.docs, bson.M{"groupId": groupID})
}

func (r *MongoRepo) UpdateStatus(ctx context.Context, id string, from, to document.Status) error {
	res, err := r.docs.UpdateOne(ctx,
		bson.M{"_id": id, "status": from},
		bson.M{"$set": bson.M{"status": to, "updatedAt": time.Now().UTC()}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return r.missingOrConflict(ctx, id)
	}
	return nil
}

func (r *MongoRepo) missingOrConflict(ctx context.Context, id string) error {
	n, err := r.docs.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return ErrConflict
}

func (r *MongoRepo) CreateVersion(ctx context.Context, v *document.DocumentVersion) error {
	v.ID = newID(v.ID)
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	_, err := r.versions.InsertOne(ctx, v)
	return err
}

func (r *MongoRepo) GetVersion(ctx context.Context, id string) (*document.DocumentVersion, error) {
	var v document.DocumentVersion
	if err := r.versions.FindOne(ctx, bson.M{"_id": id}).Decode(&v); err != nil {
		return nil, notFound(err)
	}
	return &v, nil
}

func (r *MongoRepo) CountVersions(ctx context.Context, documentID string) (int, error) {
	return count(ctx, r.versions, bson.M{"documentId": documentID})
}

func (r *MongoRepo) SetCurrentVersion(ctx context.Context, documentID, versionID string) error {
	res, err := r.docs.UpdateOne(ctx, bson.M{"_id": documentID},
		bson.M{"$set": bson.M{"currentVersionId": versionID, "updatedAt": time.Now().UTC()}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// CommitFinalization inserts the version and then claims the document with
// a conditional update on its status. A document never points at a version
// that does not exist; when the claim fails the version is removed again.
func (r *MongoRepo) CommitFinalization(ctx context.Context, documentID string, v *document.DocumentVersion, signedFileURL string) error {
	v.ID = newID(v.ID)
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	if _, err := r.versions.InsertOne(ctx, v); err != nil {
		return fmt.Errorf("insert version: %w", err)
	}
	res, err := r.docs.UpdateOne(ctx,
		bson.M{"_id": documentID, "status": bson.M{"$in": []document.Status{document.StatusDraft, document.StatusPending}}},
		bson.M{"$set": bson.M{
			"status":           document.StatusCompleted,
			"currentVersionId": v.ID,
			"signedFileUrl":    signedFileURL,
			"updatedAt":        time.Now().UTC(),
		}},
	)
	if err == nil && res.MatchedCount == 1 {
		return nil
	}
	if _, derr := r.versions.DeleteOne(ctx, bson.M{"_id": v.ID}); derr != nil {
		logger.Errorf("mongo: remove unclaimed version %s of %s: %v", v.ID, documentID, derr)
	}
	if err != nil {
		return err
	}
	return r.missingOrConflict(ctx, documentID)
}

// signers

func (r *MongoRepo) ListSigners(ctx context.Context, documentID string) ([]*document.GroupDocumentSigner, error) {
	return findAll[document.GroupDocumentSigner](ctx, r.signers, bson.M{"documentId": documentID}, options.Find().SetSort(bson.D{{Key: "userId", Value: 1}}))
}

func (r *MongoRepo) AddSigners(ctx context.Context, documentID string, userIDs []string) (int, error) {
	added := 0
	for _, uid := range userIDs {
		res, err := r.signers.UpdateOne(ctx,
			bson.M{"documentId": documentID, "userId": uid},
			bson.M{"$setOnInsert": document.GroupDocumentSigner{
				DocumentID: documentID,
				UserID:     uid,
				Status:     document.SignerPending,
				UpdatedAt:  time.Now().UTC(),
			}},
			options.Update().SetUpsert(true))
		if err != nil {
			return added, err
		}
		if res.UpsertedCount > 0 {
			added++
		}
	}
	return added, nil
}

func (r *MongoRepo) RemoveSigner(ctx context.Context, documentID, userID string) error {
	res, err := r.signers.DeleteOne(ctx, bson.M{
		"documentId": documentID,
		"userId":     userID,
		"status":     bson.M{"$ne": document.SignerSigned},
	})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		n, err := r.signers.CountDocuments(ctx, bson.M{"documentId": documentID, "userId": userID})
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		return ErrConflict
	}
	return nil
}

func (r *MongoRepo) SetSignerStatus(ctx context.Context, documentID, userID string, status document.SignerStatus) error {
	res, err := r.signers.UpdateOne(ctx,
		bson.M{"documentId": documentID, "userId": userID},
		bson.M{"$set": bson.M{"status": status, "updatedAt": time.Now().UTC()}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoRepo) CountPending(ctx context.Context, documentID string) (int, error) {
	return count(ctx, r.signers, bson.M{"documentId": documentID, "status": document.SignerPending})
}

// signatures

func (r *MongoRepo) CreateSignatures(ctx context.Context, sigs []*document.Signature) error {
	if len(sigs) == 0 {
		return nil
	}
	docs := make([]any, 0, len(sigs))
	for _, s := range sigs {
		s.ID = newID(s.ID)
		if s.SignedAt.IsZero() {
			s.SignedAt = time.Now().UTC()
		}
		docs = append(docs, s)
	}
	_, err := r.signatures.InsertMany(ctx, docs)
	return err
}

func (r *MongoRepo) GetSignature(ctx context.Context, id string) (*document.Signature, error) {
	var s document.Signature
	if err := r.signatures.FindOne(ctx, bson.M{"_id": id}).Decode(&s); err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

func (r *MongoRepo) ListByVersion(ctx context.Context, versionID string, kind document.SignatureKind) ([]*document.Signature, error) {
	filter := bson.M{"versionId": versionID}
	if kind != "" {
		filter["kind"] = kind
	}
	return findAll[document.Signature](ctx, r.signatures, filter,
		options.Find().SetSort(bson.D{{Key: "signedAt", Value: 1}, {Key: "_id", Value: 1}}))
}

func (r *MongoRepo) DeleteBySigner(ctx context.Context, versionID, signerID string) error {
	_, err := r.signatures.DeleteMany(ctx, bson.M{"versionId": versionID, "signerId": signerID})
	return err
}

func (r *MongoRepo) DeleteSignatures(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.signatures.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}})
	return err
}

func (r *MongoRepo) SetAccessCode(ctx context.Context, id, codeHash string) error {
	res, err := r.signatures.UpdateOne(ctx,
		bson.M{"_id": id, "$or": bson.A{
			bson.M{"accessCodeHash": bson.M{"$exists": false}},
			bson.M{"accessCodeHash": ""},
		}},
		bson.M{"$set": bson.M{"accessCodeHash": codeHash}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		n, err := r.signatures.CountDocuments(ctx, bson.M{"_id": id})
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		return ErrConflict
	}
	return nil
}

func (r *MongoRepo) ClearAccessCode(ctx context.Context, id string) error {
	res, err := r.signatures.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$unset": bson.M{"accessCodeHash": ""}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ReserveAttempt runs as one pipeline update so concurrent attempts each
// get their own count.
func (r *MongoRepo) ReserveAttempt(ctx context.Context, id string, now time.Time) (int, *time.Time, error) {
	active := bson.D{{Key: "$gt", Value: bson.A{"$lockedUntil", now}}}
	expired := bson.D{{Key: "$eq", Value: bson.A{bson.D{{Key: "$type", Value: "$lockedUntil"}}, "date"}}}
	next := bson.D{{Key: "$add", Value: bson.A{bson.D{{Key: "$ifNull", Value: bson.A{"$retryCount", 0}}}, 1}}}
	pipeline := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "retryCount", Value: bson.D{{Key: "$switch", Value: bson.D{
				{Key: "branches", Value: bson.A{
					bson.D{{Key: "case", Value: active}, {Key: "then", Value: "$retryCount"}},
					bson.D{{Key: "case", Value: expired}, {Key: "then", Value: 1}},
				}},
				{Key: "default", Value: next},
			}}}},
			{Key: "lockedUntil", Value: bson.D{{Key: "$cond", Value: bson.A{active, "$lockedUntil", "$$REMOVE"}}}},
		}}},
	}
	var sig document.Signature
	err := r.signatures.FindOneAndUpdate(ctx, bson.M{"_id": id}, pipeline,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&sig)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, nil, ErrNotFound
		}
		return 0, nil, err
	}
	return sig.RetryCount, sig.LockedUntil, nil
}

func (r *MongoRepo) UpdateGate(ctx context.Context, id string, retryCount int, lockedUntil *time.Time) error {
	update := bson.M{"$set": bson.M{"retryCount": retryCount}}
	if lockedUntil != nil {
		update["$set"].(bson.M)["lockedUntil"] = *lockedUntil
	} else {
		update["$unset"] = bson.M{"lockedUntil": ""}
	}
	res, err := r.signatures.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// groups

func (r *MongoRepo) CreateGroup(ctx context.Context, g *document.Group) error {
	g.ID = newID(g.ID)
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now().UTC()
	}
	_, err := r.groups.InsertOne(ctx, g)
	return err
}

func (r *MongoRepo) GetGroup(ctx context.Context, id string) (*document.Group, error) {
	var g document.Group
	if err := r.groups.FindOne(ctx, bson.M{"_id": id}).Decode(&g); err != nil {
		return nil, notFound(err)
	}
	return &g, nil
}

func (r *MongoRepo) CountOwnedGroups(ctx context.Context, ownerID string) (int, error) {
	return count(ctx, r.groups, bson.M{"ownerId": ownerID})
}

func (r *MongoRepo) GetMember(ctx context.Context, groupID, userID string) (*document.GroupMember, error) {
	var m document.GroupMember
	if err := r.members.FindOne(ctx, bson.M{"groupId": groupID, "userId": userID}).Decode(&m); err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

func (r *MongoRepo) AddMember(ctx context.Context, m *document.GroupMember) error {
	if m.JoinedAt.IsZero() {
		m.JoinedAt = time.Now().UTC()
	}
	if _, err := r.members.InsertOne(ctx, m); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrConflict
		}
		return err
	}
	return nil
}

func (r *MongoRepo) RemoveMember(ctx context.Context, groupID, userID string) error {
	res, err := r.members.DeleteOne(ctx, bson.M{"groupId": groupID, "userId": userID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoRepo) CountMembers(ctx context.Context, groupID string) (int, error) {
	return count(ctx, r.members, bson.M{"groupId": groupID})
}

// packages

func (r *MongoRepo) CreatePackage(ctx context.Context, p *document.Package) error {
	p.ID = newID(p.ID)
	if p.Status == "" {
		p.Status = document.PackageDraft
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	_, err := r.packages.InsertOne(ctx, p)
	return err
}

func (r *MongoRepo) GetPackage(ctx context.Context, id string) (*document.Package, error) {
	var p document.Package
	if err := r.packages.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (r *MongoRepo) SetPackageStatus(ctx context.Context, id string, status document.PackageStatus) error {
	res, err := r.packages.UpdateOne(ctx, bson.M{"_id": id},
		bson.M{"$set": bson.M{"status": status, "updatedAt": time.Now().UTC()}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoRepo) AddPackageDocument(ctx context.Context, pd *document.PackageDocument) error {
	pd.ID = newID(pd.ID)
	if _, err := r.pkgDocs.InsertOne(ctx, pd); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrConflict
		}
		return err
	}
	return nil
}

func (r *MongoRepo) ListPackageDocuments(ctx context.Context, packageID string) ([]*document.PackageDocument, error) {
	return findAll[document.PackageDocument](ctx, r.pkgDocs, bson.M{"packageId": packageID},
		options.Find().SetSort(bson.D{{Key: "position", Value: 1}, {Key: "_id", Value: 1}}))
}

func (r *MongoRepo) SetSignedVersion(ctx context.Context, packageDocumentID, versionID string) error {
	res, err := r.pkgDocs.UpdateOne(ctx, bson.M{"_id": packageDocumentID},
		bson.M{"$set": bson.M{"signedVersionId": versionID}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
