package mongo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ree-portal/agent-onboarding/internal/core/domain"
)

const objectBucket = "objects"

// ObjectStore keeps uploaded files in GridFS. The file name is
// "<bucket>/<path>"; a re-upload adds a revision and reads return the newest.
type ObjectStore struct {
	db *mongo.Database
}

func NewObjectStore(db *mongo.Database) *ObjectStore {
	return &ObjectStore{db: db}
}

func (s *ObjectStore) Put(ctx context.Context, obj domain.Object) error {
	bucket, err := s.bucket(ctx)
	if err != nil {
		return err
	}

	opts := options.GridFSUpload().SetMetadata(bson.D{
		{Key: "bucket", Value: obj.Bucket},
		{Key: "content_type", Value: obj.ContentType},
	})
	if _, err := bucket.UploadFromStream(objectName(obj.Bucket, obj.Path), bytes.NewReader(obj.Data), opts); err != nil {
		return fmt.Errorf("upload object: %w", err)
	}
	return nil
}

func (s *ObjectStore) Get(ctx context.Context, bucketName, path string) (*domain.Object, error) {
	bucket, err := s.bucket(ctx)
	if err != nil {
		return nil, err
	}

	stream, err := bucket.OpenDownloadStreamByName(objectName(bucketName, path))
	if err != nil {
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return nil, domain.ErrObjectNotFound
		}
		return nil, fmt.Errorf("open object: %w", err)
	}
	defer stream.Close()

	data, err := io.ReadAll(stream)
	if err != nil {
		return nil, fmt.Errorf("read object: %w", err)
	}

	obj := &domain.Object{Bucket: bucketName, Path: path, Data: data}
	if meta := stream.GetFile().Metadata; meta != nil {
		if ct, ok := meta.Lookup("content_type").StringValueOK(); ok {
			obj.ContentType = ct
		}
	}
	return obj, nil
}

// bucket returns a GridFS handle bound to ctx's deadline. Handles are not
// shared because deadlines are per handle.
func (s *ObjectStore) bucket(ctx context.Context) (*gridfs.Bucket, error) {
	b, err := gridfs.NewBucket(s.db, options.GridFSBucket().SetName(objectBucket))
	if err != nil {
		return nil, fmt.Errorf("gridfs bucket: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = b.SetWriteDeadline(deadline)
		_ = b.SetReadDeadline(deadline)
	}
	return b, nil
}

func objectName(bucket, path string) string {
	return bucket + "/" + path
}
