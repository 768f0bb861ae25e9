package credentials

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/j-veylop/glm-usage-tui/internal/models"
)

func newTestService(t *testing.T) (*Service, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.json")
	svc, err := New(path)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	t.Cleanup(func() {
		if err := svc.Close(); err != nil {
			t.Logf("Close() failed: %v", err)
		}
	})
	return svc, path
}

func waitEvent(t *testing.T, svc *Service, want EventType) Event {
	t.Helper()
	timeout := time.After(3 * time.Second)
	for {
		select {
		case ev := <-svc.Events():
			if ev.Type == want {
				return ev
			}
		case <-timeout:
			t.Fatalf("timed out waiting for event %d", want)
			return Event{}
		}
	}
}

func TestNew_MissingFile(t *testing.T) {
	svc, path := newTestService(t)

	if got := svc.Get(); got != nil {
		t.Errorf("Get() = %+v, want nil", got)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("config file should not be created on load, stat err = %v", err)
	}
	ev := waitEvent(t, svc, EventLoaded)
	if ev.Credentials != nil {
		t.Errorf("loaded event carries %+v, want nil", ev.Credentials)
	}
}

func TestNew_ExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	data := `{"token":"abc","organization":"org","project":"proj","refresh_interval":45}`
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}

	svc, err := New(path)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer func() { _ = svc.Close() }()

	got := svc.Get()
	if got == nil || got.Token != "abc" || got.Project != "proj" {
		t.Fatalf("Get() = %+v", got)
	}
	if got.RefreshIntervalSeconds != models.DefaultRefreshInterval {
		t.Errorf("RefreshIntervalSeconds = %d, want default for unsupported value", got.RefreshIntervalSeconds)
	}
}

func TestNew_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}

	svc, err := New(path)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer func() { _ = svc.Close() }()

	if got := svc.Get(); got != nil {
		t.Errorf("Get() = %+v, want nil for corrupt file", got)
	}
}

func TestSave(t *testing.T) {
	svc, path := newTestService(t)

	creds := models.Credentials{Token: "tok", Organization: "org", Project: "proj"}
	if err := svc.Save(creds); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var onDisk map[string]any
	if err := json.Unmarshal(data, &onDisk); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"token", "organization", "project", "refresh_interval"} {
		if _, ok := onDisk[key]; !ok {
			t.Errorf("saved file missing %q: %s", key, data)
		}
	}

	got := svc.Get()
	if got == nil || got.RefreshIntervalSeconds != models.DefaultRefreshInterval {
		t.Errorf("Get() = %+v, want saved credentials with default interval", got)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file left behind")
	}

	waitEvent(t, svc, EventSaved)
}

func TestSave_Failure(t *testing.T) {
	svc, path := newTestService(t)

	// A directory in place of the temp file makes the write fail.
	if err := os.Mkdir(path+".tmp", 0750); err != nil {
		t.Fatal(err)
	}

	err := svc.Save(models.Credentials{Token: "tok", Organization: "org", Project: "proj"})
	var pe *models.PersistenceError
	if !errors.As(err, &pe) {
		t.Fatalf("Save() error = %v, want *PersistenceError", err)
	}
	if pe.Path != path {
		t.Errorf("Path = %q, want %q", pe.Path, path)
	}
	if svc.Get() != nil {
		t.Error("failed save must not change current credentials")
	}
}

func TestGet_ReturnsCopy(t *testing.T) {
	svc, _ := newTestService(t)
	if err := svc.Save(models.Credentials{Token: "tok", Organization: "org", Project: "proj"}); err != nil {
		t.Fatal(err)
	}

	c := svc.Get()
	c.Token = "mutated"

	if svc.Get().Token != "tok" {
		t.Error("Get() exposes internal state")
	}
}

func TestWatcher_ExternalChange(t *testing.T) {
	svc, path := newTestService(t)
	waitEvent(t, svc, EventLoaded)

	data := `{"token":"external","organization":"o","project":"p","refresh_interval":120}`
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}

	ev := waitEvent(t, svc, EventChanged)
	if ev.Credentials == nil || ev.Credentials.Token != "external" {
		t.Fatalf("changed event = %+v", ev.Credentials)
	}
	if got := svc.Get(); got.RefreshIntervalSeconds != 120 {
		t.Errorf("RefreshIntervalSeconds = %d, want 120", got.RefreshIntervalSeconds)
	}
}

func TestClose_Idempotent(t *testing.T) {
	svc, err := New(filepath.Join(t.TempDir(), "config.json"))
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := svc.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
}
