// Package persist owns the bot's on-disk state: the login key, the
// poll-data snapshot, and the login-attempt history. Writes are atomic
// (tmp + rename) and asynchronous; IsWritingToFiles lets the shutdown
// path wait for the last write to land.
package persist

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const (
	loginKeyFile      = "loginkey.txt"
	pollDataFile      = "polldata.json"
	loginAttemptsFile = "loginattempts.json"
)

// PollData is the persisted snapshot of trade-offer polling state,
// used to resume offer tracking after a restart.
type PollData struct {
	Sent        map[string]int `json:"sent,omitempty"`
	Received    map[string]int `json:"received,omitempty"`
	OffersSince int64          `json:"offersSince,omitempty"`
	Timestamp   int64          `json:"timestamp,omitempty"`
}

type Store struct {
	dir     string
	writing atomic.Int32

	// wmu serializes writes so two saves of the same file cannot
	// interleave on the shared tmp path.
	wmu sync.Mutex
}

func NewStore(dir string) (*Store, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, fmt.Errorf("persist dir required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("persist mkdir %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// IsWritingToFiles reports whether any asynchronous write is in flight.
func (s *Store) IsWritingToFiles() bool {
	return s.writing.Load() > 0
}

// ReadLoginKey returns the stored login key. A missing file is not an
// error; found is false.
func (s *Store) ReadLoginKey() (key string, found bool, err error) {
	b, err := os.ReadFile(filepath.Join(s.dir, loginKeyFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", false, nil
		}
		return "", false, err
	}
	return strings.TrimSpace(string(b)), true, nil
}

// SaveLoginKey stores the login key asynchronously.
func (s *Store) SaveLoginKey(key string) {
	s.saveAsync(loginKeyFile, []byte(strings.TrimSpace(key)+"\n"))
}

// ReadPollData loads the poll-data snapshot. A missing file is not an error.
func (s *Store) ReadPollData() (pd PollData, found bool, err error) {
	b, err := os.ReadFile(filepath.Join(s.dir, pollDataFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return PollData{}, false, nil
		}
		return PollData{}, false, err
	}
	if err := json.Unmarshal(b, &pd); err != nil {
		return PollData{}, false, fmt.Errorf("parse %s: %w", pollDataFile, err)
	}
	return pd, true, nil
}

// SavePollData stores the poll-data snapshot asynchronously.
func (s *Store) SavePollData(pd PollData) {
	b, err := json.MarshalIndent(pd, "", "  ")
	if err != nil {
		log.Printf("[warn] marshal poll data: %v", err)
		return
	}
	s.saveAsync(pollDataFile, append(b, '\n'))
}

// ReadLoginAttempts loads the persisted attempt history. Attempts are
// stored as unix seconds.
func (s *Store) ReadLoginAttempts() (attempts []time.Time, found bool, err error) {
	b, err := os.ReadFile(filepath.Join(s.dir, loginAttemptsFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var secs []int64
	if err := json.Unmarshal(b, &secs); err != nil {
		return nil, false, fmt.Errorf("parse %s: %w", loginAttemptsFile, err)
	}
	attempts = make([]time.Time, 0, len(secs))
	for _, sec := range secs {
		attempts = append(attempts, time.Unix(sec, 0))
	}
	return attempts, true, nil
}

// SaveLoginAttempts stores the attempt history asynchronously.
func (s *Store) SaveLoginAttempts(attempts []time.Time) {
	secs := make([]int64, 0, len(attempts))
	for _, ts := range attempts {
		secs = append(secs, ts.Unix())
	}
	b, err := json.Marshal(secs)
	if err != nil {
		log.Printf("[warn] marshal login attempts: %v", err)
		return
	}
	s.saveAsync(loginAttemptsFile, append(b, '\n'))
}

func (s *Store) saveAsync(name string, data []byte) {
	s.writing.Add(1)
	go func() {
		defer s.writing.Add(-1)
		if err := s.writeAtomic(name, data); err != nil {
			log.Printf("[warn] write %s: %v", name, err)
		}
	}()
}

func (s *Store) writeAtomic(name string, data []byte) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	path := filepath.Join(s.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
