package drive

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	gdrive "google.golang.org/api/drive/v3"
)

// driveAPI adapts the generated Drive v3 client to the api interface.
type driveAPI struct {
	svc *gdrive.Service
}

func (d *driveAPI) findFolders(ctx context.Context, name string) ([]Entry, error) {
	query := fmt.Sprintf("name = '%s' and mimeType = '%s' and trashed = false",
		escapeQuery(name), folderMimeType)

	var entries []Entry
	call := d.svc.Files.List().Q(query).
		Fields("nextPageToken", "files(id, name, createdTime)").
		Context(ctx)
	err := call.Pages(ctx, func(page *gdrive.FileList) error {
		for _, f := range page.Files {
			entries = append(entries, toEntry(f))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (d *driveAPI) createFolder(ctx context.Context, name string) (Entry, error) {
	f, err := d.svc.Files.Create(&gdrive.File{
		Name:     name,
		MimeType: folderMimeType,
	}).Fields("id, name, createdTime").Context(ctx).Do()
	if err != nil {
		return Entry{}, err
	}
	return toEntry(f), nil
}

func (d *driveAPI) listFiles(ctx context.Context, folderID string) ([]Entry, error) {
	query := fmt.Sprintf("'%s' in parents and trashed = false", escapeQuery(folderID))

	var entries []Entry
	call := d.svc.Files.List().Q(query).
		OrderBy("createdTime desc").
		Fields("nextPageToken", "files(id, name, size, createdTime)").
		Context(ctx)
	err := call.Pages(ctx, func(page *gdrive.FileList) error {
		for _, f := range page.Files {
			entries = append(entries, toEntry(f))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (d *driveAPI) upload(ctx context.Context, folderID, name string, r io.Reader) (Entry, error) {
	f, err := d.svc.Files.Create(&gdrive.File{
		Name:    name,
		Parents: []string{folderID},
	}).Media(r).Fields("id, name, size, createdTime").Context(ctx).Do()
	if err != nil {
		return Entry{}, err
	}
	return toEntry(f), nil
}

func (d *driveAPI) delete(ctx context.Context, id string) error {
	return d.svc.Files.Delete(id).Context(ctx).Do()
}

func (d *driveAPI) download(ctx context.Context, id string, w io.Writer) error {
	resp, err := d.svc.Files.Get(id).Context(ctx).Download()
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("read download stream: %w", err)
	}
	return nil
}

func toEntry(f *gdrive.File) Entry {
	created, _ := time.Parse(time.RFC3339, f.CreatedTime)
	return Entry{
		ID:          f.Id,
		Name:        f.Name,
		SizeBytes:   f.Size,
		CreatedTime: created,
	}
}

// escapeQuery escapes a value embedded in a Drive query string.
func escapeQuery(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}
