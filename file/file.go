// Package file keeps sessions as JSON files in a directory, one per name.
package file

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/jsphweid/keystation/model"
	"github.com/jsphweid/keystation/util"
	"github.com/pkg/errors"
)

const ext = ".json"

var validName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_. -]*$`)

type Store struct {
	dir string
}

func New(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) path(name string) (string, error) {
	if !validName.MatchString(name) || strings.Contains(name, "..") {
		return "", errors.Wrapf(model.ErrInvalidName, "%q", name)
	}
	return filepath.Join(s.dir, name+ext), nil
}

// Save writes the session atomically through a temporary file.
func (s *Store) Save(_ context.Context, sess model.Session) error {
	path, err := s.path(sess.Name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return errors.Wrapf(err, "creating %s", s.dir)
	}
	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding session")
	}
	tmp, err := os.CreateTemp(s.dir, ".session-*")
	if err != nil {
		return errors.Wrap(err, "creating temp file")
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "writing session")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "writing session")
	}
	return errors.Wrapf(os.Rename(tmp.Name(), path), "saving %s", sess.Name)
}

func (s *Store) Load(_ context.Context, name string) (model.Session, error) {
	path, err := s.path(name)
	if err != nil {
		return model.Session{}, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return model.Session{}, errors.Wrap(model.ErrSessionNotFound, name)
	}
	if err != nil {
		return model.Session{}, errors.Wrapf(err, "reading %s", path)
	}
	var sess model.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return model.Session{}, errors.Wrapf(err, "decoding %s", path)
	}
	if sess.Name == "" {
		sess.Name = name
	}
	return sess, nil
}

// List returns the saved session names, sorted. A missing directory holds
// no sessions.
func (s *Store) List(_ context.Context) ([]string, error) {
	paths, err := util.GatherAllPaths(s.dir, 0, ext)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "listing %s", s.dir)
	}
	seen := make(map[string]bool)
	for _, p := range paths {
		if filepath.Dir(p) != filepath.Clean(s.dir) {
			continue
		}
		seen[strings.TrimSuffix(filepath.Base(p), ext)] = true
	}
	return util.GetKeys(seen), nil
}

func (s *Store) Delete(_ context.Context, name string) error {
	path, err := s.path(name)
	if err != nil {
		return err
	}
	err = os.Remove(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return errors.Wrapf(err, "deleting %s", name)
}
