// SPDX-License-Identifier: MIT

package ledger

import (
	"context"
	"sync"

	"github.com/ManuGH/vidsync/internal/model"
)

// Fake is an in-memory Ledger with scriptable failures, for tests of
// anything that talks to a ledger.
type Fake struct {
	mu       sync.Mutex
	docs     map[string]model.SyncRecord
	profiles map[string]struct{}

	// GetErrs are returned (and consumed) one per Get call before any
	// document is served. A nil entry means "succeed".
	GetErrs []error
	// SetErr, DeleteErr fail the respective operations when non-nil.
	SetErr    error
	DeleteErr error

	GetCalls    int
	SetCalls    int
	DeleteCalls int
}

// NewFake creates an empty fake ledger.
func NewFake() *Fake {
	return &Fake{
		docs:     make(map[string]model.SyncRecord),
		profiles: make(map[string]struct{}),
	}
}

// Seed stores a document directly, bypassing failure scripting.
func (f *Fake) Seed(account string, rec model.SyncRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec.Normalize()
	f.docs[account] = rec.Clone()
}

// Document returns the stored document and whether it exists.
func (f *Fake) Document(account string) (model.SyncRecord, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.docs[account]
	if !ok {
		return model.SyncRecord{}, false
	}
	return rec.Clone(), true
}

func (f *Fake) Get(ctx context.Context, account string, _ Source) (*model.SyncRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.GetCalls++

	if len(f.GetErrs) > 0 {
		err := f.GetErrs[0]
		f.GetErrs = f.GetErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	rec, ok := f.docs[account]
	if !ok {
		return nil, nil
	}
	out := rec.Clone()
	return &out, nil
}

func (f *Fake) Set(ctx context.Context, account string, record model.SyncRecord, mergeFields bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.SetCalls++

	if f.SetErr != nil {
		return f.SetErr
	}
	record.Normalize()
	if mergeFields {
		// Field-level merge: this fake only models whole-record writes of
		// non-empty fields, which is all the engine produces.
		existing, ok := f.docs[account]
		if ok {
			if len(record.History) == 0 {
				record.History = existing.History
			}
			if len(record.Favorites) == 0 {
				record.Favorites = existing.Favorites
			}
			if len(record.Playlists) == 0 {
				record.Playlists = existing.Playlists
			}
			if len(record.Settings) == 0 {
				record.Settings = existing.Settings
			}
		}
	}
	f.docs[account] = record.Clone()
	return nil
}

func (f *Fake) Delete(ctx context.Context, account string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.DeleteCalls++

	if f.DeleteErr != nil {
		return f.DeleteErr
	}
	delete(f.docs, account)
	return nil
}

func (f *Fake) DeleteProfile(ctx context.Context, account string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.profiles, account)
	return nil
}

var _ Ledger = (*Fake)(nil)
