// Package drive is the remote store client. It consumes a narrow subset of
// the Google Drive v3 API: list, create folder, upload, delete and download.
// Any provider exposing those operations behind OAuth2 refresh-token auth
// would be substitutable.
package drive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gdrive "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"snapvault/internal/credstore"
	"snapvault/internal/logger"
)

var (
	// ErrNotAuthorized means no active credential exists; the caller should
	// route the user through the authorization wizard, not retry.
	ErrNotAuthorized = errors.New("remote storage is not authorized")

	// ErrUploadFailed means a snapshot could not be stored remotely.
	ErrUploadFailed = errors.New("upload failed")
)

// Scope is the Drive capability requested during authorization. Per-file
// scope: the client only ever sees files and folders it created.
const Scope = gdrive.DriveFileScope

const folderMimeType = "application/vnd.google-apps.folder"

// Entry describes a file or folder living in remote storage.
type Entry struct {
	ID          string
	Name        string
	SizeBytes   int64
	CreatedTime time.Time
}

// api is the capability subset of the provider this client needs.
// Tests substitute a fake; production uses the Drive service adapter.
type api interface {
	findFolders(ctx context.Context, name string) ([]Entry, error)
	createFolder(ctx context.Context, name string) (Entry, error)
	listFiles(ctx context.Context, folderID string) ([]Entry, error)
	upload(ctx context.Context, folderID, name string, r io.Reader) (Entry, error)
	delete(ctx context.Context, id string) error
	download(ctx context.Context, id string, w io.Writer) error
}

// Client performs backup operations against the remote storage account.
type Client struct {
	api        api
	folderName string
	maxBackups int
	log        logger.Logger
}

// NewClient builds an authenticated client from the stored credential.
// Anything other than an active record fails with ErrNotAuthorized.
func NewClient(ctx context.Context, rec credstore.Record, folderName string, maxBackups int, log logger.Logger) (*Client, error) {
	switch rec.State {
	case credstore.StateActive:
		if !rec.IsActive() {
			return nil, ErrNotAuthorized
		}
	case credstore.StateEmpty, credstore.StatePending:
		return nil, ErrNotAuthorized
	default:
		return nil, ErrNotAuthorized
	}

	conf := &oauth2.Config{
		ClientID:     rec.ClientID,
		ClientSecret: rec.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{Scope},
	}
	source := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: rec.RefreshToken})

	svc, err := gdrive.NewService(ctx, option.WithTokenSource(source))
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}

	return newClient(&driveAPI{svc: svc}, folderName, maxBackups, log), nil
}

func newClient(a api, folderName string, maxBackups int, log logger.Logger) *Client {
	return &Client{api: a, folderName: folderName, maxBackups: maxBackups, log: log}
}

// ResolveBackupFolder finds the well-known backup folder, creating it if
// absent. Repeated sequential calls return the same folder id. Two callers
// racing on first use could still both create; Drive offers no atomic
// create-if-absent for names.
func (c *Client) ResolveBackupFolder(ctx context.Context) (string, error) {
	folders, err := c.api.findFolders(ctx, c.folderName)
	if err != nil {
		return "", fmt.Errorf("find backup folder: %w", err)
	}
	if len(folders) > 0 {
		return folders[0].ID, nil
	}

	created, err := c.api.createFolder(ctx, c.folderName)
	if err != nil {
		return "", fmt.Errorf("create backup folder: %w", err)
	}
	c.log.Info("Created remote backup folder", "name", c.folderName, "id", created.ID)
	return created.ID, nil
}

// Upload stores one snapshot in the backup folder.
func (c *Client) Upload(ctx context.Context, folderID, name string, r io.Reader) (Entry, error) {
	entry, err := c.api.upload(ctx, folderID, name, r)
	if err != nil {
		return Entry{}, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	return entry, nil
}

// ListBackups returns the folder's entries, newest first.
func (c *Client) ListBackups(ctx context.Context, folderID string) ([]Entry, error) {
	entries, err := c.api.listFiles(ctx, folderID)
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CreatedTime.After(entries[j].CreatedTime)
	})
	return entries, nil
}

// EnforceRetention deletes the oldest entries beyond the retention bound.
// Each deletion is attempted independently; failed deletions are logged and
// never abort the rest. The returned error covers listing only.
func (c *Client) EnforceRetention(ctx context.Context, folderID string) ([]Entry, error) {
	entries, err := c.ListBackups(ctx, folderID)
	if err != nil {
		return nil, err
	}
	if len(entries) <= c.maxBackups {
		return nil, nil
	}

	var deleted []Entry
	for _, excess := range entries[c.maxBackups:] {
		if err := c.api.delete(ctx, excess.ID); err != nil {
			c.log.Warn("Failed to delete old backup", "name", excess.Name, "id", excess.ID, "error", err)
			continue
		}
		c.log.Info("Deleted old backup", "name", excess.Name, "id", excess.ID)
		deleted = append(deleted, excess)
	}
	return deleted, nil
}

// Download streams a remote backup into w.
func (c *Client) Download(ctx context.Context, fileID string, w io.Writer) error {
	if err := c.api.download(ctx, fileID, w); err != nil {
		return fmt.Errorf("download backup: %w", err)
	}
	return nil
}

// FormatSize returns human-readable size
func FormatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
