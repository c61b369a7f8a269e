package services

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"regexp"
	"strings"
	"time"

	appContext "github.com/alphabatem/common/context"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	log "github.com/sirupsen/logrus"

	"github.com/answerhive/answerhive_api/dto"
	"github.com/answerhive/answerhive_api/shared"
)

// Filenames pass through shell-adjacent code paths upstream; anything that
// smells like SQL or command injection is rejected before storage.
var unsafeFilenamePattern = regexp.MustCompile(`(?i)(%27)|(')|(%23)|(#)|(--|drop|select|;|insert|update|delete|union)`)

// DocumentService stores the knowledge-base files an owner uploads for
// their assistant. Objects are keyed per user so tenants never see each
// other's documents.
type DocumentService struct {
	appContext.DefaultService

	client     *minio.Client
	bucketName string
	endpoint   string
	accessKey  string
	secretKey  string
	useSSL     bool
}

const DOCUMENT_SVC = "document_svc"

func (svc DocumentService) Id() string {
	return DOCUMENT_SVC
}

func (svc *DocumentService) Configure(ctx *appContext.Context) error {
	svc.endpoint = os.Getenv("MINIO_ENDPOINT")
	if svc.endpoint == "" {
		svc.endpoint = "localhost:9000"
	}

	svc.accessKey = os.Getenv("MINIO_ACCESS_KEY")
	if svc.accessKey == "" {
		svc.accessKey = "admin"
	}

	svc.secretKey = os.Getenv("MINIO_SECRET_KEY")
	if svc.secretKey == "" {
		svc.secretKey = "password123"
	}

	svc.useSSL = os.Getenv("MINIO_USE_SSL") == "true"

	svc.bucketName = os.Getenv("MINIO_BUCKET_NAME")
	if svc.bucketName == "" {
		svc.bucketName = "answerhive-documents"
	}

	return svc.DefaultService.Configure(ctx)
}

func (svc *DocumentService) Start() error {
	client, err := minio.New(svc.endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(svc.accessKey, svc.secretKey, ""),
		Secure: svc.useSSL,
	})
	if err != nil {
		return fmt.Errorf("failed to create MinIO client: %v", err)
	}

	svc.client = client

	if err := svc.ensureBucket(); err != nil {
		return fmt.Errorf("failed to ensure bucket exists: %v", err)
	}

	log.Printf("Document storage started successfully with endpoint: %s", svc.endpoint)
	return nil
}

func (svc *DocumentService) ensureBucket() error {
	ctx := context.Background()

	exists, err := svc.client.BucketExists(ctx, svc.bucketName)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %v", err)
	}

	if !exists {
		err = svc.client.MakeBucket(ctx, svc.bucketName, minio.MakeBucketOptions{})
		if err != nil {
			return fmt.Errorf("failed to create bucket: %v", err)
		}
		log.Printf("Created MinIO bucket: %s", svc.bucketName)
	}

	return nil
}

func (svc *DocumentService) objectKey(userID, fileName string) string {
	return userID + "/" + path.Base(fileName)
}

// ValidateFileName mirrors the payload checks the blocklist skips for the
// upload path. The path itself is exempt from the middleware predicate, so
// the check happens here instead.
func ValidateFileName(fileName string) error {
	if strings.TrimSpace(fileName) == "" {
		return shared.NewBadRequestError(nil, "File name is required")
	}
	if unsafeFilenamePattern.MatchString(fileName) {
		return shared.NewBadRequestError(nil, "File name contains forbidden characters")
	}
	if strings.Contains(fileName, "../") {
		return shared.NewBadRequestError(nil, "File name contains forbidden characters")
	}
	return nil
}

func (svc *DocumentService) Upload(ctx context.Context, userID, fileName string, reader io.Reader, size int64, contentType string) (*dto.DocumentUploadResponse, error) {
	if err := ValidateFileName(fileName); err != nil {
		return nil, err
	}

	key := svc.objectKey(userID, fileName)
	info, err := svc.client.PutObject(ctx, svc.bucketName, key, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload document: %v", err)
	}

	return &dto.DocumentUploadResponse{
		Key:  key,
		Size: info.Size,
	}, nil
}

func (svc *DocumentService) List(ctx context.Context, userID string) (*dto.DocumentListResponse, error) {
	documents := make([]dto.DocumentInfo, 0)

	objectCh := svc.client.ListObjects(ctx, svc.bucketName, minio.ListObjectsOptions{
		Prefix:    userID + "/",
		Recursive: true,
	})

	for object := range objectCh {
		if object.Err != nil {
			return nil, fmt.Errorf("failed to list documents: %v", object.Err)
		}
		documents = append(documents, dto.DocumentInfo{
			Key:          object.Key,
			FileName:     path.Base(object.Key),
			Size:         object.Size,
			ContentType:  object.ContentType,
			LastModified: object.LastModified,
		})
	}

	return &dto.DocumentListResponse{Documents: documents}, nil
}

func (svc *DocumentService) Delete(ctx context.Context, userID, fileName string) error {
	key := svc.objectKey(userID, fileName)
	err := svc.client.RemoveObject(ctx, svc.bucketName, key, minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("failed to delete document: %v", err)
	}
	return nil
}

func (svc *DocumentService) PresignedURL(ctx context.Context, userID, fileName string, expiry time.Duration) (string, error) {
	key := svc.objectKey(userID, fileName)
	presignedURL, err := svc.client.PresignedGetObject(ctx, svc.bucketName, key, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %v", err)
	}
	return presignedURL.String(), nil
}
