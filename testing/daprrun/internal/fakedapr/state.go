package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

type State struct {
	Dir string `name:"state-dir" env:"FAKEDAPR_STATE_DIR" required:"" help:"Where runs are recorded."`
}

type record struct {
	appID    string
	pid      int
	httpPort int
	grpcPort int
	appPort  int
}

func (s State) path(appID string) string {
	return filepath.Join(s.Dir, appID)
}

func (s State) save(r record) error {
	line := fmt.Sprintf("%d %d %d %d", r.pid, r.httpPort, r.grpcPort, r.appPort)
	return os.WriteFile(s.path(r.appID), []byte(line), 0o600)
}

func (s State) remove(appID string) {
	_ = os.Remove(s.path(appID))
}

func (s State) load(appID string) (record, error) {
	b, err := os.ReadFile(s.path(appID))
	if err != nil {
		return record{}, err
	}
	fields := strings.Fields(string(b))
	if len(fields) != 4 {
		return record{}, errors.New("corrupt record for " + appID)
	}
	r := record{appID: appID}
	for i, dst := range []*int{&r.pid, &r.httpPort, &r.grpcPort, &r.appPort} {
		if *dst, err = strconv.Atoi(fields[i]); err != nil {
			return record{}, err
		}
	}
	return r, nil
}

func (s State) all() ([]record, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, err
	}
	var records []record
	for _, e := range entries {
		r, err := s.load(e.Name())
		if err != nil {
			continue
		}
		records = append(records, r)
	}
	return records, nil
}
