// Moimo - Meetup Session and Realtime Chat Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/moimo

package credential

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/moimo/internal/models"
)

// ErrNoCredential is returned by Persister.Load when nothing is saved.
var ErrNoCredential = errors.New("no saved credential")

// credentialKey is the single BadgerDB key holding the credential.
const credentialKey = "credential:current"

// Persister saves the credential across process restarts.
type Persister interface {
	Load() (models.Credential, error)
	Save(cred models.Credential) error
	Clear() error
}

// BadgerPersister stores the credential in BadgerDB.
type BadgerPersister struct {
	db     *badger.DB
	ownsDB bool
}

// OpenBadgerPersister opens (or creates) a BadgerDB at path.
func OpenBadgerPersister(path string) (*BadgerPersister, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // Suppress BadgerDB logs

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db for credential: %w", err)
	}
	return &BadgerPersister{db: db, ownsDB: true}, nil
}

// NewBadgerPersister wraps an already open database. Close does not close it.
func NewBadgerPersister(db *badger.DB) *BadgerPersister {
	return &BadgerPersister{db: db}
}

// Load returns the saved credential or ErrNoCredential.
func (p *BadgerPersister) Load() (models.Credential, error) {
	var cred models.Credential

	err := p.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(credentialKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNoCredential
		}
		if err != nil {
			return fmt.Errorf("get credential: %w", err)
		}

		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &cred)
		})
	})
	if err != nil {
		return models.Credential{}, err
	}
	if !cred.LoggedIn {
		return models.Credential{}, ErrNoCredential
	}

	return cred, nil
}

// Save writes cred, replacing any previous value.
func (p *BadgerPersister) Save(cred models.Credential) error {
	data, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("marshal credential: %w", err)
	}

	return p.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(credentialKey), data)
	})
}

// Clear removes the saved credential.
func (p *BadgerPersister) Clear() error {
	return p.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(credentialKey)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("delete credential: %w", err)
		}
		return nil
	})
}

// Close closes the database if this persister opened it.
func (p *BadgerPersister) Close() error {
	if p.ownsDB {
		return p.db.Close()
	}
	return nil
}
