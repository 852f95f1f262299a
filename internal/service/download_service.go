package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/mediagrab/api/internal/client"
	"github.com/mediagrab/api/internal/model"
	"github.com/mediagrab/api/internal/store"
)

// DownloadService handles download submission, status reads and retrieval
type DownloadService struct {
	store           store.DownloadStore
	storage         client.StorageClient
	dispatcher      Dispatcher
	validator       *validator.Validate
	signedURLExpiry time.Duration
	log             *logrus.Logger

	now   func() time.Time
	newID func() string
}

func NewDownloadService(downloads store.DownloadStore, storage client.StorageClient, dispatcher Dispatcher, signedURLExpiry time.Duration, log *logrus.Logger) *DownloadService {
	return &DownloadService{
		store:           downloads,
		storage:         storage,
		dispatcher:      dispatcher,
		validator:       NewValidator(),
		signedURLExpiry: signedURLExpiry,
		log:             log,
		now:             time.Now,
		newID:           func() string { return uuid.New().String() },
	}
}

// Validate checks a submission without creating anything.
func (s *DownloadService) Validate(req *model.SubmitDownloadRequest) error {
	req.URL = strings.TrimSpace(req.URL)
	if err := s.validator.Struct(req); err != nil {
		return model.NewError(model.KindInvalidRequest, "", errors.New(validationMessage(err)))
	}
	return nil
}

// Submit creates the download record and schedules its background task. It
// returns before any download work starts.
func (s *DownloadService) Submit(ctx context.Context, req *model.SubmitDownloadRequest) (*model.Download, error) {
	if err := s.Validate(req); err != nil {
		return nil, err
	}

	d := model.NewDownload(s.newID(), req.URL, req.Format, s.now())
	if err := s.store.Insert(ctx, d); err != nil {
		return nil, err
	}

	log := s.log.WithFields(logrus.Fields{
		"download_id": d.ID,
		"format":      d.Format,
	})

	if err := s.dispatcher.Dispatch(ctx, d.ID); err != nil {
		log.WithError(err).Error("failed to dispatch download")

		cause := model.NewError(model.KindStorageFailed, "dispatch", err)
		if _, uerr := s.store.Update(ctx, d.ID, model.FailedUpdate(cause.Error())); uerr != nil {
			log.WithError(uerr).Error("failed to mark undispatched download as failed")
		}
		return nil, cause
	}

	log.Info("download submitted")
	return d, nil
}

// GetStatus returns the current record of a download.
func (s *DownloadService) GetStatus(ctx context.Context, id string) (*model.Download, error) {
	return s.store.Get(ctx, id)
}

// SignedURL mints a time-limited URL for a completed download's artifact.
func (s *DownloadService) SignedURL(ctx context.Context, id string) (string, error) {
	if id == "" {
		return "", model.NewError(model.KindInvalidRequest, "", errors.New("downloadId is required"))
	}

	d, err := s.store.Get(ctx, id)
	if err != nil {
		if store.IsNotFound(err) {
			return "", fmt.Errorf("download not found or not completed: %w", err)
		}
		return "", err
	}
	if d.Status != model.StatusCompleted || d.FilePath == "" {
		return "", errors.New("download not found or not completed")
	}

	exists, err := s.storage.Exists(ctx, d.FilePath)
	if err != nil {
		return "", model.NewError(model.KindStorageFailed, "exists", err)
	}
	if !exists {
		return "", model.NewError(model.KindStorageFailed, "", fmt.Errorf("file not found: %s", d.FilePath))
	}

	signed, err := s.storage.GetSignedURL(ctx, d.FilePath, s.signedURLExpiry)
	if err != nil {
		return "", model.NewError(model.KindStorageFailed, "sign", err)
	}
	return signed, nil
}
