// Copyright 2025 Poiesic Systems
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


package badger

import (
	"context"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/vortex/core"
	"github.com/poiesic/vortex/storage"
)

// RunRepository implements storage.RunLedger for BadgerDB.
// Only the latest run of each collection is kept.
type RunRepository struct {
	backend *Backend
}

var _ storage.RunLedger = (*RunRepository)(nil)

// NewRunRepository creates a new RunRepository.
func NewRunRepository(backend *Backend) *RunRepository {
	return &RunRepository{
		backend: backend,
	}
}

// SaveRun persists report as the latest run of its collection.
func (r *RunRepository) SaveRun(ctx context.Context, report *core.IngestionReport) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeRunKey(report.Collection)
		if err := tx.Set(key, storage.MarshalReport(report)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// LastRun retrieves the latest run of a collection.
// Returns nil, nil if no run exists.
func (r *RunRepository) LastRun(ctx context.Context, collection string) (*core.IngestionReport, error) {
	var report *core.IngestionReport
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		val, err := getValue(tx, makeRunKey(collection))
		if err != nil || val == nil {
			return err
		}
		report, err = storage.UnmarshalReport(val)
		return err
	}, false)

	return report, err
}
