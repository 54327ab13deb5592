package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/TheMichaelB/logvault/internal/events"
	"github.com/TheMichaelB/logvault/internal/models"
)

// S3Store keeps encrypted records and their token index in a bucket.
// Layout:
//
//	<prefix>/records/<tenant>/<log>/<recordID>        record JSON
//	<prefix>/index/<tenant>/<log>/<token>/<recordID>  empty marker
//
// The bucket sees only ciphertext and opaque tokens; search is key
// listing plus intersection over the marker objects.
type S3Store struct {
	client *s3.Client
	bucket string
	prefix string
	logger *events.Logger
}

// NewS3Store creates an S3-backed store using the ambient AWS config.
func NewS3Store(ctx context.Context, bucket, prefix string, logger *events.Logger) (*S3Store, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &S3Store{
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
		prefix: prefix,
		logger: logger.WithField("component", "s3_store"),
	}, nil
}

// Put persists an encrypted record and writes its token index markers.
func (s *S3Store) Put(ctx context.Context, tenantID, logName string, record *models.EncryptedRecord, tokens []models.SearchToken, token *models.ResourceToken) (string, error) {
	if err := checkToken(token, tenantID, logName, nil); err != nil {
		return "", err
	}

	id, err := newRecordID()
	if err != nil {
		return "", err
	}

	stored := *record
	stored.ID = id

	data, err := json.Marshal(&stored)
	if err != nil {
		return "", fmt.Errorf("marshal record: %w", err)
	}

	key := s.recordKey(tenantID, logName, id)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return "", &models.StorageError{Op: "put", Tenant: tenantID, LogName: logName, Err: err}
	}

	for _, t := range tokens {
		marker := s.indexKey(tenantID, logName, string(t), id)
		_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(marker),
			Body:   bytes.NewReader(nil),
		})
		if err != nil {
			return "", &models.StorageError{Op: "put-index", Tenant: tenantID, LogName: logName, Err: err}
		}
	}

	s.logger.WithFields(map[string]interface{}{
		"key":    key,
		"size":   len(data),
		"tokens": len(tokens),
	}).Debug("Stored record in S3")

	return id, nil
}

// Get returns all records of a log.
func (s *S3Store) Get(ctx context.Context, tenantID, logName string, token *models.ResourceToken) ([]models.EncryptedRecord, error) {
	if err := checkToken(token, tenantID, logName, nil); err != nil {
		return nil, err
	}

	ids, err := s.listKeys(ctx, s.recordKey(tenantID, logName, ""))
	if err != nil {
		return nil, &models.StorageError{Op: "get", Tenant: tenantID, LogName: logName, Err: err}
	}
	if len(ids) == 0 {
		return nil, ErrLogNotFound
	}

	return s.fetchRecords(ctx, tenantID, logName, ids)
}

// MatchTokens intersects the token index markers and fetches the
// matching records.
func (s *S3Store) MatchTokens(ctx context.Context, tenantID, logName string, tokens []models.SearchToken, token *models.ResourceToken) ([]models.EncryptedRecord, error) {
	if err := checkToken(token, tenantID, logName, nil); err != nil {
		return nil, err
	}

	if len(tokens) == 0 {
		return nil, nil
	}

	var candidates map[string]struct{}
	for _, t := range tokens {
		ids, err := s.listKeys(ctx, s.indexKey(tenantID, logName, string(t), ""))
		if err != nil {
			return nil, &models.StorageError{Op: "match", Tenant: tenantID, LogName: logName, Err: err}
		}

		set := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			set[id] = struct{}{}
		}

		if candidates == nil {
			candidates = set
			continue
		}
		for id := range candidates {
			if _, ok := set[id]; !ok {
				delete(candidates, id)
			}
		}
		if len(candidates) == 0 {
			return nil, nil
		}
	}

	ids := make([]string, 0, len(candidates))
	for id := range candidates {
		ids = append(ids, id)
	}

	return s.fetchRecords(ctx, tenantID, logName, ids)
}

// Close releases resources.
func (s *S3Store) Close() error {
	return nil
}

func (s *S3Store) fetchRecords(ctx context.Context, tenantID, logName string, ids []string) ([]models.EncryptedRecord, error) {
	records := make([]models.EncryptedRecord, 0, len(ids))
	for _, id := range ids {
		key := s.recordKey(tenantID, logName, id)

		out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			var noKey *types.NoSuchKey
			if errors.As(err, &noKey) {
				continue
			}
			return nil, &models.StorageError{Op: "fetch", Tenant: tenantID, LogName: logName, Err: err}
		}

		data, err := io.ReadAll(out.Body)
		out.Body.Close()
		if err != nil {
			return nil, &models.StorageError{Op: "fetch", Tenant: tenantID, LogName: logName, Err: err}
		}

		var record models.EncryptedRecord
		if err := json.Unmarshal(data, &record); err != nil {
			return nil, &models.StorageError{Op: "fetch", Tenant: tenantID, LogName: logName, Err: err}
		}

		records = append(records, record)
	}

	return records, nil
}

// listKeys returns the final path element of every object under prefix.
func (s *S3Store) listKeys(ctx context.Context, prefix string) ([]string, error) {
	var ids []string

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list objects: %w", err)
		}
		for _, obj := range page.Contents {
			if obj.Key == nil {
				continue
			}
			ids = append(ids, path.Base(*obj.Key))
		}
	}

	return ids, nil
}

func (s *S3Store) recordKey(tenantID, logName, id string) string {
	return path.Join(s.prefix, "records", tenantID, logName, id)
}

func (s *S3Store) indexKey(tenantID, logName, token, id string) string {
	return path.Join(s.prefix, "index", tenantID, logName, token, id)
}
