// Copyright 2026 LinkDAO
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package auditlog

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/magickw/linkdao/event"
	"github.com/magickw/linkdao/governance"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Entry is one immutable audit record. Entries are keyed by a strictly
// increasing sequence number and never rewritten.
type Entry struct {
	Seq         uint64    `json:"seq"`
	Time        time.Time `json:"time"`
	Kind        string    `json:"kind"`
	ProposalID  uint64    `json:"proposal_id,omitempty"`
	ActionIndex int       `json:"action_index,omitempty"`
	Target      string    `json:"target,omitempty"`
	Value       uint64    `json:"value,omitempty"`
	Success     bool      `json:"success,omitempty"`
	Detail      string    `json:"detail,omitempty"`
}

const (
	KindStateChange = "state_change"
	KindExecution   = "execution"
)

type Config struct {
	PromRegistry prometheus.Registerer
	Logger       *slog.Logger
	EventBus     *event.EventBus
	DataDir      string
}

// AuditLog is an append-only record of governance state transitions and
// execution dispatches, stored in a local BadgerDB. When an event bus is
// configured, the log feeds itself from the governance event stream.
type AuditLog struct {
	config  Config
	metrics struct {
		entries prometheus.Counter
	}
	logger   *slog.Logger
	db       *badger.DB
	subIds   map[event.EventType]event.EventSubscriberId
	nextSeq  uint64
	gcTicker *time.Ticker
	gcStopCh chan struct{}
	gcWg     sync.WaitGroup
	mutex    sync.Mutex
}

// New opens the audit log. With no data directory the log is in-memory
// and lost on shutdown.
func New(config Config) (*AuditLog, error) {
	a := &AuditLog{
		config: config,
		subIds: make(map[event.EventType]event.EventSubscriberId),
	}
	if config.Logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		a.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	} else {
		a.logger = config.Logger
	}
	var db *badger.DB
	var err error
	if config.DataDir == "" {
		badgerOpts := badger.DefaultOptions("").
			WithLogger(NewBadgerLogger(a.logger)).
			// The default INFO logging is a bit verbose
			WithLoggingLevel(badger.WARNING).
			WithInMemory(true)
		db, err = badger.Open(badgerOpts)
		if err != nil {
			return nil, err
		}
	} else {
		if _, err := os.Stat(config.DataDir); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read data dir: %w", err)
			}
			if err := os.MkdirAll(config.DataDir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create data dir: %w", err)
			}
		}
		auditDir := filepath.Join(
			config.DataDir,
			"audit",
		)
		badgerOpts := badger.DefaultOptions(auditDir).
			WithLogger(NewBadgerLogger(a.logger)).
			WithLoggingLevel(badger.WARNING)
		db, err = badger.Open(badgerOpts)
		if err != nil {
			return nil, err
		}
		a.gcTicker = time.NewTicker(5 * time.Minute)
		a.gcStopCh = make(chan struct{})
		a.gcWg.Add(1)
		go a.valueLogGc(a.gcTicker, a.gcStopCh)
	}
	a.db = db
	promautoFactory := promauto.With(config.PromRegistry)
	a.metrics.entries = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "linkdao_auditlog_entries_total",
		Help: "total audit log entries appended",
	})
	if err := a.loadNextSeq(); err != nil {
		db.Close()
		return nil, err
	}
	if config.EventBus != nil {
		a.subscribe()
	}
	return a, nil
}

// loadNextSeq finds the highest existing sequence number so appends
// continue where the previous run left off
func (a *AuditLog) loadNextSeq() error {
	return a.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		it.Seek([]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff})
		if it.Valid() {
			key := it.Item().KeyCopy(nil)
			if len(key) == 8 {
				a.nextSeq = binary.BigEndian.Uint64(key) + 1
			}
		}
		return nil
	})
}

func (a *AuditLog) subscribe() {
	bus := a.config.EventBus
	a.subIds[governance.StateEventType] = bus.SubscribeFunc(
		governance.StateEventType,
		a.handleStateEvent,
	)
	a.subIds[governance.ExecutionEventType] = bus.SubscribeFunc(
		governance.ExecutionEventType,
		a.handleExecutionEvent,
	)
}

func (a *AuditLog) handleStateEvent(evt event.Event) {
	e, ok := evt.Data.(governance.StateEvent)
	if !ok {
		return
	}
	err := a.Append(Entry{
		Time:       evt.Timestamp,
		Kind:       KindStateChange,
		ProposalID: e.ProposalID,
		Detail: fmt.Sprintf(
			"%s -> %s",
			e.OldState,
			e.NewState,
		),
	})
	if err != nil {
		a.logger.Error(
			"failed to append audit entry",
			"component", "auditlog",
			"error", err,
		)
	}
}

func (a *AuditLog) handleExecutionEvent(evt event.Event) {
	e, ok := evt.Data.(governance.ExecutionEvent)
	if !ok {
		return
	}
	err := a.Append(Entry{
		Time:        evt.Timestamp,
		Kind:        KindExecution,
		ProposalID:  e.ProposalID,
		ActionIndex: e.ActionIndex,
		Target:      e.Target,
		Value:       e.Value,
		Success:     e.Success,
	})
	if err != nil {
		a.logger.Error(
			"failed to append audit entry",
			"component", "auditlog",
			"error", err,
		)
	}
}

// Append assigns the next sequence number and writes the entry
func (a *AuditLog) Append(entry Entry) error {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	entry.Seq = a.nextSeq
	if entry.Time.IsZero() {
		entry.Time = time.Now()
	}
	value, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode audit entry: %w", err)
	}
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, entry.Seq)
	err = a.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
	if err != nil {
		return fmt.Errorf("failed to write audit entry: %w", err)
	}
	a.nextSeq++
	a.metrics.entries.Inc()
	return nil
}

// Entries returns up to limit entries starting at fromSeq in sequence
// order. A zero limit returns all remaining entries.
func (a *AuditLog) Entries(fromSeq uint64, limit int) ([]Entry, error) {
	var ret []Entry
	start := make([]byte, 8)
	binary.BigEndian.PutUint64(start, fromSeq)
	err := a.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(start); it.Valid(); it.Next() {
			if limit > 0 && len(ret) >= limit {
				break
			}
			err := it.Item().Value(func(value []byte) error {
				var entry Entry
				if err := json.Unmarshal(value, &entry); err != nil {
					return err
				}
				ret = append(ret, entry)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read audit entries: %w", err)
	}
	return ret, nil
}

func (a *AuditLog) valueLogGc(t *time.Ticker, stop <-chan struct{}) {
	defer a.gcWg.Done()
	for {
		select {
		case <-t.C:
		again:
			err := a.db.RunValueLogGC(0.5)
			if err != nil {
				// Log any actual errors
				if !errors.Is(err, badger.ErrNoRewrite) {
					a.logger.Warn(
						fmt.Sprintf("audit DB: GC failure: %s", err),
						"component", "auditlog",
					)
				}
			} else {
				// Run it again if it just ran successfully
				goto again
			}
		case <-stop:
			return
		}
	}
}

// Close unsubscribes from the event bus, stops GC, and closes the store
func (a *AuditLog) Close() error {
	if a.config.EventBus != nil {
		for eventType, subId := range a.subIds {
			a.config.EventBus.Unsubscribe(eventType, subId)
		}
	}
	if a.gcTicker != nil {
		a.gcTicker.Stop()
		if a.gcStopCh != nil {
			close(a.gcStopCh)
			a.gcStopCh = nil
		}
		a.gcWg.Wait()
		a.gcTicker = nil
	}
	return a.db.Close()
}
