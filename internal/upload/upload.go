// Package upload creates a listing and attaches media through presigned
// object-storage URLs, one file at a time.
package upload

import (
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/Bernard-Murphy/dbay-public/internal/apiclient"
	"github.com/Bernard-Murphy/dbay-public/internal/domain"
	"github.com/Bernard-Murphy/dbay-public/internal/platform/logger"
	"github.com/Bernard-Murphy/dbay-public/internal/platform/metrics"
	"go.uber.org/zap"
)

// MaxVideoBytes is the largest accepted video file.
const MaxVideoBytes int64 = 100 << 20

const (
	MediaImage = "image"
	MediaVideo = "video"
)

// File is one selected media file.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

// FromMultipart adapts an uploaded form file.
func FromMultipart(fh *multipart.FileHeader) File {
	ct := fh.Header.Get("Content-Type")
	if ct == "" || ct == "application/octet-stream" {
		if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(fh.Filename))); byExt != "" {
			ct = byExt
		}
	}
	return File{
		Name:        fh.Filename,
		ContentType: ct,
		Size:        fh.Size,
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

// MediaType classifies a content type as video or image.
func MediaType(contentType string) string {
	if strings.HasPrefix(strings.ToLower(contentType), "video/") {
		return MediaVideo
	}
	return MediaImage
}

// ValidateFiles rejects oversized videos before anything is sent.
func ValidateFiles(files []File) error {
	for _, f := range files {
		if MediaType(f.ContentType) == MediaVideo && f.Size > MaxVideoBytes {
			return fmt.Errorf("%w: Video %q is over 100MB", domain.ErrVideoTooLarge, f.Name)
		}
	}
	return nil
}

// ProgressFunc receives per-file upload progress in percent.
type ProgressFunc func(index int, percent int)

// Backend is the part of the API client used by the upload flow.
type Backend interface {
	CreateListing(ctx context.Context, req apiclient.CreateListingRequest) (*domain.Listing, error)
	PresignMedia(ctx context.Context, listingID domain.ID, req apiclient.PresignRequest) (*apiclient.PresignResponse, error)
	PutObject(ctx context.Context, uploadURL, contentType string, body io.Reader, size int64) error
	ConfirmMedia(ctx context.Context, listingID domain.ID, req apiclient.ConfirmMediaRequest) error
}

type FileStatus string

const (
	StatusConfirmed  FileStatus = "confirmed"
	StatusFailed     FileStatus = "failed"
	StatusNotStarted FileStatus = "not_started"
)

type FileResult struct {
	Index     int
	Name      string
	MediaType string
	Status    FileStatus
	Percent   int
	Error     string
}

// Result reports what exists after the flow ran. A listing that was created
// stays created even if media failed.
type Result struct {
	Listing     *domain.Listing
	Files       []FileResult
	FailedIndex int
	Err         error
}

func (r *Result) Failed() bool { return r.Err != nil }

// FailedFile returns the file that stopped the flow, if any.
func (r *Result) FailedFile() *FileResult {
	if r.FailedIndex < 0 || r.FailedIndex >= len(r.Files) {
		return nil
	}
	return &r.Files[r.FailedIndex]
}

type Uploader struct {
	backend Backend
	logger  *logger.Logger
	metrics *metrics.MetricsManager
}

func NewUploader(backend Backend, log *logger.Logger, m *metrics.MetricsManager) *Uploader {
	return &Uploader{backend: backend, logger: log.Named("upload"), metrics: m}
}

// CreateWithMedia validates files, creates the listing, then uploads and
// confirms each file in order. The first failing file stops the flow; it is
// not retried and nothing is rolled back. The returned error is non-nil only
// when validation or listing creation failed.
func (u *Uploader) CreateWithMedia(ctx context.Context, req apiclient.CreateListingRequest, files []File, progress ProgressFunc) (*Result, error) {
	if err := ValidateFiles(files); err != nil {
		return nil, err
	}

	listing, err := u.backend.CreateListing(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create listing: %w", err)
	}
	log := u.logger.With(zap.String("listing_id", listing.ID.String()))

	res := &Result{Listing: listing, FailedIndex: -1, Files: make([]FileResult, len(files))}
	for i, f := range files {
		res.Files[i] = FileResult{Index: i, Name: f.Name, MediaType: MediaType(f.ContentType), Status: StatusNotStarted}
	}

	for i, f := range files {
		report := func(pct int) {
			res.Files[i].Percent = pct
			if progress != nil {
				progress(i, pct)
			}
		}
		if err := u.uploadOne(ctx, listing.ID, f, report); err != nil {
			res.Files[i].Status = StatusFailed
			res.Files[i].Error = apiclient.Message(err)
			res.FailedIndex = i
			res.Err = fmt.Errorf("upload of %q failed: %w", f.Name, err)
			u.metrics.UploadFinished(res.Files[i].MediaType, "failed")
			log.Warn("media upload failed, remaining files skipped",
				zap.Int("index", i), zap.String("file", f.Name), zap.Int("skipped", len(files)-i-1), zap.Error(err))
			break
		}
		res.Files[i].Status = StatusConfirmed
		u.metrics.UploadFinished(res.Files[i].MediaType, "confirmed")
	}
	return res, nil
}

func (u *Uploader) uploadOne(ctx context.Context, listingID domain.ID, f File, report func(int)) error {
	presign, err := u.backend.PresignMedia(ctx, listingID, apiclient.PresignRequest{
		FileName:    f.Name,
		ContentType: f.ContentType,
	})
	if err != nil {
		return err
	}

	body, err := f.Open()
	if err != nil {
		return fmt.Errorf("failed to open %q: %w", f.Name, err)
	}
	defer body.Close()

	report(0)
	pr := &progressReader{r: body, total: f.Size, report: report, last: -1}
	if err := u.backend.PutObject(ctx, presign.UploadURL, f.ContentType, pr, f.Size); err != nil {
		return err
	}
	report(100)

	return u.backend.ConfirmMedia(ctx, listingID, apiclient.ConfirmMediaRequest{
		S3Key:     presign.S3Key,
		MediaType: MediaType(f.ContentType),
		FileSize:  f.Size,
	})
}

// progressReader reports whole-percent progress as bytes are read.
type progressReader struct {
	r      io.Reader
	total  int64
	read   int64
	last   int
	report func(int)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.read += int64(n)
	if p.total > 0 {
		pct := int(p.read * 100 / p.total)
		if pct > 100 {
			pct = 100
		}
		if pct != p.last {
			p.last = pct
			p.report(pct)
		}
	}
	return n, err
}
