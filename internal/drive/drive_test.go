package drive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"snapvault/internal/credstore"
	"snapvault/internal/logger"
)

// fakeAPI is an in-memory remote store.
type fakeAPI struct {
	folders []Entry
	files   map[string][]Entry

	createFolderCalls int
	uploadErr         error
	deleteErr         map[string]error
	deleted           []string
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		files:     make(map[string][]Entry),
		deleteErr: make(map[string]error),
	}
}

func (f *fakeAPI) findFolders(ctx context.Context, name string) ([]Entry, error) {
	var out []Entry
	for _, e := range f.folders {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeAPI) createFolder(ctx context.Context, name string) (Entry, error) {
	f.createFolderCalls++
	e := Entry{ID: fmt.Sprintf("folder-%d", f.createFolderCalls), Name: name}
	f.folders = append(f.folders, e)
	return e, nil
}

func (f *fakeAPI) listFiles(ctx context.Context, folderID string) ([]Entry, error) {
	return append([]Entry(nil), f.files[folderID]...), nil
}

func (f *fakeAPI) upload(ctx context.Context, folderID, name string, r io.Reader) (Entry, error) {
	if f.uploadErr != nil {
		return Entry{}, f.uploadErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return Entry{}, err
	}
	e := Entry{
		ID:          fmt.Sprintf("file-%d", len(f.files[folderID])+1),
		Name:        name,
		SizeBytes:   int64(len(data)),
		CreatedTime: time.Now().UTC(),
	}
	f.files[folderID] = append(f.files[folderID], e)
	return e, nil
}

func (f *fakeAPI) delete(ctx context.Context, id string) error {
	if err := f.deleteErr[id]; err != nil {
		return err
	}
	f.deleted = append(f.deleted, id)
	for folderID, entries := range f.files {
		for i, e := range entries {
			if e.ID == id {
				f.files[folderID] = append(entries[:i], entries[i+1:]...)
				break
			}
		}
	}
	return nil
}

func (f *fakeAPI) download(ctx context.Context, id string, w io.Writer) error {
	_, err := io.WriteString(w, "payload:"+id)
	return err
}

func testClient(api *fakeAPI) *Client {
	return newClient(api, "snapvault", 5, logger.NewNullLogger())
}

func TestResolveBackupFolderCreatesOnce(t *testing.T) {
	api := newFakeAPI()
	client := testClient(api)

	first, err := client.ResolveBackupFolder(context.Background())
	if err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	second, err := client.ResolveBackupFolder(context.Background())
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}

	if first != second {
		t.Errorf("resolve returned different folders: %q vs %q", first, second)
	}
	if api.createFolderCalls != 1 {
		t.Errorf("expected exactly one folder creation, got %d", api.createFolderCalls)
	}
}

func TestResolveBackupFolderReusesExisting(t *testing.T) {
	api := newFakeAPI()
	api.folders = append(api.folders, Entry{ID: "existing", Name: "snapvault"})
	client := testClient(api)

	id, err := client.ResolveBackupFolder(context.Background())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if id != "existing" {
		t.Errorf("expected existing folder, got %q", id)
	}
	if api.createFolderCalls != 0 {
		t.Errorf("expected no folder creation, got %d", api.createFolderCalls)
	}
}

func TestUploadWrapsFailure(t *testing.T) {
	api := newFakeAPI()
	api.uploadErr = errors.New("quota exceeded")
	client := testClient(api)

	_, err := client.Upload(context.Background(), "folder-1", "x.db", strings.NewReader("data"))
	if !errors.Is(err, ErrUploadFailed) {
		t.Errorf("expected ErrUploadFailed, got %v", err)
	}
}

func TestListBackupsNewestFirst(t *testing.T) {
	api := newFakeAPI()
	base := time.Date(2026, 8, 1, 3, 30, 0, 0, time.UTC)
	api.files["folder-1"] = []Entry{
		{ID: "b", Name: "middle", CreatedTime: base.Add(24 * time.Hour)},
		{ID: "a", Name: "oldest", CreatedTime: base},
		{ID: "c", Name: "newest", CreatedTime: base.Add(48 * time.Hour)},
	}
	client := testClient(api)

	entries, err := client.ListBackups(context.Background(), "folder-1")
	if err != nil {
		t.Fatalf("ListBackups: %v", err)
	}

	var got []string
	for _, e := range entries {
		got = append(got, e.ID)
	}
	want := []string{"c", "b", "a"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, got)
		}
	}
}

func seedBackups(api *fakeAPI, folderID string, n int) {
	base := time.Date(2026, 8, 1, 3, 30, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		api.files[folderID] = append(api.files[folderID], Entry{
			ID:          fmt.Sprintf("backup-%d", i+1),
			Name:        fmt.Sprintf("snapshot-%02d.db", i+1),
			CreatedTime: base.Add(time.Duration(i) * 24 * time.Hour),
		})
	}
}

func TestEnforceRetentionDeletesOldest(t *testing.T) {
	api := newFakeAPI()
	seedBackups(api, "folder-1", 7)
	client := testClient(api)

	deleted, err := client.EnforceRetention(context.Background(), "folder-1")
	if err != nil {
		t.Fatalf("EnforceRetention: %v", err)
	}

	if len(deleted) != 2 {
		t.Fatalf("expected 2 deletions, got %d", len(deleted))
	}
	// The two oldest entries go; the five newest survive.
	gone := map[string]bool{deleted[0].ID: true, deleted[1].ID: true}
	if !gone["backup-1"] || !gone["backup-2"] {
		t.Errorf("expected backup-1 and backup-2 deleted, got %v", deleted)
	}
	if len(api.files["folder-1"]) != 5 {
		t.Errorf("expected 5 survivors, got %d", len(api.files["folder-1"]))
	}
}

func TestEnforceRetentionAtBoundDeletesNothing(t *testing.T) {
	api := newFakeAPI()
	seedBackups(api, "folder-1", 5)
	client := testClient(api)

	deleted, err := client.EnforceRetention(context.Background(), "folder-1")
	if err != nil {
		t.Fatalf("EnforceRetention: %v", err)
	}
	if len(deleted) != 0 {
		t.Errorf("expected no deletions at the bound, got %v", deleted)
	}
}

func TestEnforceRetentionIsolatesDeleteFailures(t *testing.T) {
	api := newFakeAPI()
	seedBackups(api, "folder-1", 7)
	api.deleteErr["backup-1"] = errors.New("transient")
	client := testClient(api)

	deleted, err := client.EnforceRetention(context.Background(), "folder-1")
	if err != nil {
		t.Fatalf("EnforceRetention: %v", err)
	}

	// The failed deletion is skipped; the other excess entry still goes.
	if len(deleted) != 1 || deleted[0].ID != "backup-2" {
		t.Errorf("expected backup-2 deleted despite backup-1 failure, got %v", deleted)
	}
}

func TestNewClientRequiresActiveCredential(t *testing.T) {
	records := []credstore.Record{
		{State: credstore.StateEmpty},
		{State: credstore.StatePending, ClientID: "c", ClientSecret: "s"},
		{State: credstore.StateActive, ClientID: "c", ClientSecret: "s"}, // no refresh token
		{State: "weird"},
	}
	for _, rec := range records {
		_, err := NewClient(context.Background(), rec, "snapvault", 5, logger.NewNullLogger())
		if !errors.Is(err, ErrNotAuthorized) {
			t.Errorf("record %+v: expected ErrNotAuthorized, got %v", rec, err)
		}
	}
}

func TestDownload(t *testing.T) {
	api := newFakeAPI()
	client := testClient(api)

	var buf strings.Builder
	if err := client.Download(context.Background(), "file-9", &buf); err != nil {
		t.Fatalf("Download: %v", err)
	}
	if buf.String() != "payload:file-9" {
		t.Errorf("unexpected download content %q", buf.String())
	}
}

func TestFormatSize(t *testing.T) {
	cases := []struct {
		in   int64
		want string
	}{
		{512, "512 B"},
		{2048, "2.0 KiB"},
		{5 * 1024 * 1024, "5.0 MiB"},
	}
	for _, c := range cases {
		if got := FormatSize(c.in); got != c.want {
			t.Errorf("FormatSize(%d) = %q, want %q", c.in, got, c.want)
		}
	}
}
