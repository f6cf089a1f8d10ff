package googleDriveApi

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"path/filepath"
	"time"

	"github.com/KotFed0t/portfolio_tracker/utils"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

const downloadLinkTemplate = "https://drive.google.com/file/d/%s/view"

type GoogleDriveApi struct {
	srv     *drive.Service
	fileTTL time.Duration
	now     func() time.Time
}

// New authenticates with a service account credentials file. Extra client
// options are appended after the credentials.
func New(ctx context.Context, credentialsFile string, fileTTL time.Duration, opts ...option.ClientOption) (*GoogleDriveApi, error) {
	opts = append([]option.ClientOption{option.WithCredentialsFile(credentialsFile)}, opts...)

	srv, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("drive.NewService: %w", err)
	}

	return &GoogleDriveApi{srv: srv, fileTTL: fileTTL, now: time.Now}, nil
}

func (a *GoogleDriveApi) UploadFile(ctx context.Context, reader io.Reader, filename string) (downloadLink string, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "GoogleDriveApi.UploadFile"

	slog.Debug("UploadFile start", slog.String("rqID", rqID), slog.String("op", op), slog.String("filename", filename))

	fileMeta := &drive.File{
		Name:     filename,
		MimeType: mime.TypeByExtension(filepath.Ext(filename)),
	}

	// Media uploads in chunks and retries them on network errors
	uploadedFile, err := a.srv.Files.
		Create(fileMeta).
		Media(reader).
		Context(ctx).
		Do()
	if err != nil {
		slog.Error("failed on uploading file to google drive", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return "", err
	}

	perm := &drive.Permission{
		Type: "anyone",
		Role: "reader",
	}

	_, err = a.srv.Permissions.Create(uploadedFile.Id, perm).Context(ctx).Do()
	if err != nil {
		slog.Error("failed on creating permission to uploaded file in google drive", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return "", err
	}

	slog.Debug("UploadFile completed", slog.String("rqID", rqID), slog.String("op", op), slog.String("fileID", uploadedFile.Id))

	return fmt.Sprintf(downloadLinkTemplate, uploadedFile.Id), nil
}

// DeleteOldFiles removes uploaded reports older than the configured TTL.
func (a *GoogleDriveApi) DeleteOldFiles(ctx context.Context) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "GoogleDriveApi.DeleteOldFiles"

	slog.Debug("DeleteOldFiles start", slog.String("rqID", rqID), slog.String("op", op))

	r, err := a.srv.Files.List().Fields("files(id, createdTime)").Context(ctx).Do()
	if err != nil {
		slog.Error("failed on getting files", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	cutoff := a.now().Add(-a.fileTTL)
	deletedFiles := 0
	for _, f := range r.Files {
		if !Expired(f.CreatedTime, cutoff) {
			continue
		}

		if err := a.srv.Files.Delete(f.Id).Context(ctx).Do(); err != nil {
			slog.Error(
				"failed delete file",
				slog.String("rqID", rqID),
				slog.String("op", op),
				slog.String("err", err.Error()),
				slog.String("fileID", f.Id),
			)
			continue
		}
		deletedFiles++
	}

	if err := a.srv.Files.EmptyTrash().Context(ctx).Do(); err != nil {
		slog.Error("failed empty trash", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
	}

	slog.Info(
		"delete old files done",
		slog.String("rqID", rqID),
		slog.Int("deletedFiles", deletedFiles),
		slog.Int("remainingFiles", len(r.Files)-deletedFiles),
	)

	return nil
}

// Expired reports whether an RFC 3339 creation time is before cutoff.
// Unparsable times are never expired.
func Expired(createdTime string, cutoff time.Time) bool {
	created, err := time.Parse(time.RFC3339, createdTime)
	if err != nil {
		slog.Warn("failed parse time", slog.String("createdTime", createdTime), slog.String("err", err.Error()))
		return false
	}
	return created.Before(cutoff)
}
