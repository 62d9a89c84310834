// Package statestore implements the crash-safe, process-locked repository
// of task and mailbox state described in spec §4.1: a single JSON document
// guarded by an exclusive advisory file lock, written with tmp+rename for
// atomicity.
package statestore

import (
	"encoding/json"
	"fmt"

	"github.com/c360studio/taskorchestrator/task"
)

// StateVersion is the on-disk schema version written into every document.
const StateVersion = 2

// Meta holds store-wide bookkeeping: the mailbox sequence counter and the
// progress marker used for idle-timeout detection.
type Meta struct {
	Sequence        int     `json:"sequence"`
	ProgressCounter int     `json:"progress_counter"`
	LastProgressAt  float64 `json:"last_progress_at"`
}

// document is the full on-disk shape of state.json.
type document struct {
	Version  int                    `json:"version"`
	Tasks    map[string]*task.Task  `json:"tasks"`
	Messages []task.MailMessage     `json:"messages"`
	Meta     Meta                   `json:"meta"`
}

func newDocument(now float64) *document {
	return &document{
		Version:  StateVersion,
		Tasks:    make(map[string]*task.Task),
		Messages: []task.MailMessage{},
		Meta: Meta{
			Sequence:        0,
			ProgressCounter: 0,
			LastProgressAt:  now,
		},
	}
}

func (d *document) touchProgress(now float64) {
	d.Meta.ProgressCounter++
	d.Meta.LastProgressAt = now
}

func decodeDocument(data []byte) (*document, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode state.json: %w", err)
	}
	if doc.Tasks == nil {
		doc.Tasks = make(map[string]*task.Task)
	}
	return &doc, nil
}

func encodeDocument(doc *document) ([]byte, error) {
	return json.MarshalIndent(doc, "", "  ")
}
