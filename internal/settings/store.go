package settings

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/natefinch/atomic"

	"CatalogPoster/internal/domain"
)

const (
	settingsFile     = "settings.json"
	postSettingsFile = "post_settings.json"
	lockFile         = "settings.lock"
	backupDir        = "backups"
	backupPrefix     = "settings_"
	corruptPrefix    = "corrupted_"
	timestampLayout  = "20060102_150405.000"

	// MaxBackups is the number of rolling snapshots kept on disk.
	MaxBackups = 10
	staleLock  = 5 * time.Minute
)

// ErrLocked is returned when another save holds the lock file.
var ErrLocked = errors.New("settings are locked by another writer")

// Backup describes one snapshot file.
type Backup struct {
	Name    string
	Path    string
	ModTime time.Time
	Size    int64
}

// Store owns settings.json and its backups inside one directory.
type Store struct {
	dir    string
	lookup LookupFunc
	now    func() time.Time
	log    *slog.Logger
	mu     sync.Mutex
}

// NewStore creates a store rooted at dir. Environment overrides are read
// through os.LookupEnv.
func NewStore(dir string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{dir: dir, lookup: os.LookupEnv, now: time.Now, log: logger}
}

// WithLookup replaces the environment source.
func (s *Store) WithLookup(lookup LookupFunc) *Store {
	s.lookup = lookup
	return s
}

// Path returns the settings file location.
func (s *Store) Path() string { return filepath.Join(s.dir, settingsFile) }

// Load merges defaults, settings.json, post_settings.json and the environment.
// A corrupted settings.json is set aside and repaired from the newest backup,
// or from defaults when no backup parses.
func (s *Store) Load() (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.readSettings()
	if err != nil {
		return Document{}, err
	}

	if raw, err := os.ReadFile(filepath.Join(s.dir, postSettingsFile)); err == nil {
		if err := applyPostSettings(&doc, raw); err != nil {
			s.log.Warn("post settings ignored", "err", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return Document{}, fmt.Errorf("read post settings: %w", err)
	}

	if err := applyEnv(&doc, s.lookup); err != nil {
		return Document{}, domain.NewError(domain.KindConfigInvalid, "settings.env", err)
	}
	if doc.ActiveJob == 0 {
		doc.ActiveJob = 1
	}
	if err := doc.validateShape(); err != nil {
		return Document{}, err
	}
	return doc.Clone(), nil
}

func (s *Store) readSettings() (Document, error) {
	raw, err := os.ReadFile(s.Path())
	if errors.Is(err, os.ErrNotExist) {
		return Defaults(), nil
	}
	if err != nil {
		return Document{}, fmt.Errorf("read settings: %w", err)
	}

	doc, err := decode(raw)
	if err == nil {
		return doc, nil
	}
	s.log.Error("settings file is corrupted", "path", s.Path(), "err", err)
	return s.repair(raw)
}

// decode reads a settings file over the defaults. The job map and the
// schedule hours are taken whole from the file when present; defaults only
// fill keys the file does not carry.
func decode(raw []byte) (Document, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return Document{}, errors.New("empty settings file")
	}
	var present struct {
		Jobs     json.RawMessage `json:"jobs"`
		Schedule struct {
			Hours json.RawMessage `json:"hours"`
		} `json:"schedule"`
	}
	if err := json.Unmarshal(raw, &present); err != nil {
		return Document{}, err
	}

	defaults := Defaults()
	doc := defaults
	doc.Jobs = nil
	doc.Schedule.Hours = nil
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Document{}, err
	}
	if len(present.Jobs) == 0 {
		doc.Jobs = defaults.Jobs
	} else if doc.Jobs == nil {
		doc.Jobs = map[string]domain.JobSpec{}
	}
	if len(present.Schedule.Hours) == 0 {
		doc.Schedule.Hours = defaults.Schedule.Hours
	} else if doc.Schedule.Hours == nil {
		doc.Schedule.Hours = map[int]int{}
	}
	return doc, nil
}

func (s *Store) repair(raw []byte) (Document, error) {
	dir := filepath.Join(s.dir, backupDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Document{}, fmt.Errorf("repair settings: %w", err)
	}
	corrupted := filepath.Join(dir, corruptPrefix+s.now().Format(timestampLayout)+".json")
	if err := os.WriteFile(corrupted, raw, 0o644); err != nil {
		return Document{}, fmt.Errorf("repair settings: keep corrupted copy: %w", err)
	}

	backups, err := s.listBackups()
	if err != nil {
		return Document{}, fmt.Errorf("repair settings: %w", err)
	}
	for _, b := range backups {
		data, err := os.ReadFile(b.Path)
		if err != nil {
			continue
		}
		doc, err := decode(data)
		if err != nil {
			continue
		}
		if err := atomic.WriteFile(s.Path(), bytes.NewReader(data)); err != nil {
			return Document{}, fmt.Errorf("repair settings: restore %s: %w", b.Name, err)
		}
		s.log.Warn("settings restored from backup", "backup", b.Name, "corrupted", filepath.Base(corrupted))
		return doc, nil
	}

	doc := Defaults()
	data, err := encode(doc)
	if err != nil {
		return Document{}, err
	}
	if err := atomic.WriteFile(s.Path(), bytes.NewReader(data)); err != nil {
		return Document{}, fmt.Errorf("repair settings: write defaults: %w", err)
	}
	s.log.Warn("settings reset to defaults", "corrupted", filepath.Base(corrupted))
	return doc, nil
}

// Save snapshots the current file, bumps the version and writes doc
// atomically under the lock file. The saved document is returned.
func (s *Store) Save(doc Document) (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(doc)
}

func (s *Store) save(doc Document) (Document, error) {
	if err := doc.validateShape(); err != nil {
		return Document{}, err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return Document{}, fmt.Errorf("save settings: %w", err)
	}

	release, err := s.acquire()
	if err != nil {
		return Document{}, err
	}
	defer release()

	prev := 0
	if raw, err := os.ReadFile(s.Path()); err == nil {
		if old, err := decode(raw); err == nil {
			prev = old.Version
		}
		if err := s.snapshot(raw); err != nil {
			return Document{}, err
		}
	}

	doc = doc.Clone()
	if doc.Version < prev {
		doc.Version = prev
	}
	doc.Version++
	doc.LastUpdated = s.now().Format(time.RFC3339)

	data, err := encode(doc)
	if err != nil {
		return Document{}, err
	}
	if err := atomic.WriteFile(s.Path(), bytes.NewReader(data)); err != nil {
		return Document{}, fmt.Errorf("save settings: %w", err)
	}
	s.log.Info("settings saved", "version", doc.Version)
	return doc, nil
}

func encode(doc Document) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode settings: %w", err)
	}
	return append(data, '\n'), nil
}

func (s *Store) acquire() (func(), error) {
	path := filepath.Join(s.dir, lockFile)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if errors.Is(err, os.ErrExist) {
		info, statErr := os.Stat(path)
		if statErr != nil || s.now().Sub(info.ModTime()) < staleLock {
			return nil, ErrLocked
		}
		s.log.Warn("removing stale settings lock", "path", path)
		if err := os.Remove(path); err != nil {
			return nil, fmt.Errorf("remove stale lock: %w", err)
		}
		f, err = os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	}
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, ErrLocked
		}
		return nil, fmt.Errorf("acquire settings lock: %w", err)
	}
	fmt.Fprintf(f, "%d\n", os.Getpid())
	_ = f.Close()
	return func() { _ = os.Remove(path) }, nil
}

func (s *Store) snapshot(raw []byte) error {
	dir := filepath.Join(s.dir, backupDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("backup settings: %w", err)
	}
	name := backupPrefix + s.now().Format(timestampLayout) + ".json"
	if err := atomic.WriteFile(filepath.Join(dir, name), bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("backup settings: %w", err)
	}

	backups, err := s.listBackups()
	if err != nil {
		return err
	}
	for _, old := range backups[min(len(backups), MaxBackups):] {
		if err := os.Remove(old.Path); err != nil {
			s.log.Warn("cannot prune backup", "backup", old.Name, "err", err)
		}
	}
	return nil
}

// ListBackups returns snapshots newest first.
func (s *Store) ListBackups() ([]Backup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listBackups()
}

func (s *Store) listBackups() ([]Backup, error) {
	entries, err := os.ReadDir(filepath.Join(s.dir, backupDir))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}
	var out []Backup
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, backupPrefix) || !strings.HasSuffix(name, ".json") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, Backup{
			Name:    name,
			Path:    filepath.Join(s.dir, backupDir, name),
			ModTime: info.ModTime(),
			Size:    info.Size(),
		})
	}
	// Timestamped names sort chronologically.
	sort.Slice(out, func(i, j int) bool { return out[i].Name > out[j].Name })
	return out, nil
}

// RestoreBackup makes the named snapshot the current settings. The current
// file is itself backed up first.
func (s *Store) RestoreBackup(name string) (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if name != filepath.Base(name) || !strings.HasPrefix(name, backupPrefix) {
		return Document{}, fmt.Errorf("invalid backup name %q", name)
	}
	raw, err := os.ReadFile(filepath.Join(s.dir, backupDir, name))
	if err != nil {
		return Document{}, fmt.Errorf("read backup: %w", err)
	}
	doc, err := decode(raw)
	if err != nil {
		return Document{}, fmt.Errorf("backup %s is not valid: %w", name, err)
	}
	return s.save(doc)
}

// ResetDefaults replaces the settings with factory defaults, keeping credentials.
func (s *Store) ResetDefaults() (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := Defaults()
	if raw, err := os.ReadFile(s.Path()); err == nil {
		if old, err := decode(raw); err == nil {
			doc.Credentials = old.Credentials
		}
	}
	return s.save(doc)
}
