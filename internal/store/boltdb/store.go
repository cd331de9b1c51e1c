// Package boltdb archives verified signatures in a bolt database.
package boltdb

import (
	"bytes"
	"encoding/binary"
	"errors"
	"path"
	"sync"

	bolt "go.etcd.io/bbolt"

	"github.com/drand/stepout/common/log"
	"github.com/drand/stepout/common/signature"
	"github.com/drand/stepout/crypto"
)

// Store archives signatures keyed by member index and nonce. Values are the
// wire encoding of the signature.
//
//nolint:gocritic// We do want to have a mutex here
type Store struct {
	sync.Mutex
	db     *bolt.DB
	scheme *crypto.Scheme

	log log.Logger
}

var signatureBucket = []byte("signatures")

// BoltFileName is the name of the file boltdb writes to
const BoltFileName = "signatures.db"

// BoltStoreOpenPerm is the permission we will use to read bolt store file from disk
const BoltStoreOpenPerm = 0600

// ErrNotFound is returned when no signature is stored under the key.
var ErrNotFound = errors.New("signature not found")

// NewStore opens or creates the archive in folder.
func NewStore(l log.Logger, folder string, sch *crypto.Scheme, opts *bolt.Options) (*Store, error) {
	db, err := bolt.Open(path.Join(folder, BoltFileName), BoltStoreOpenPerm, opts)
	if err != nil {
		return nil, err
	}
	// create the bucket already
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(signatureBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, scheme: sch, log: l.Named("archive")}, nil
}

func indexKey(index uint32) []byte {
	k := make([]byte, 4)
	binary.BigEndian.PutUint32(k, index)
	return k
}

func signatureKey(index uint32, nonce []byte) []byte {
	return append(indexKey(index), nonce...)
}

// Put stores sig, overwriting any signature with the same index and nonce.
func (s *Store) Put(sig *signature.Signature) error {
	buff, err := sig.Marshal()
	if err != nil {
		return err
	}
	s.Lock()
	defer s.Unlock()
	return s.db.Update(func(tx *bolt.Tx) error {
		err := tx.Bucket(signatureBucket).Put(signatureKey(sig.Index, sig.Nonce), buff)
		if err != nil {
			s.log.Debugw("storing signature", "index", sig.Index, "err", err)
		}
		return err
	})
}

// Get returns the signature of member index with the given nonce.
func (s *Store) Get(index uint32, nonce []byte) (*signature.Signature, error) {
	var sig *signature.Signature
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(signatureBucket).Get(signatureKey(index, nonce))
		if v == nil {
			return ErrNotFound
		}
		var err error
		sig, err = signature.Unmarshal(s.scheme, v)
		return err
	})
	return sig, err
}

// Member returns every archived signature of member index, ordered by nonce.
func (s *Store) Member(index uint32) ([]*signature.Signature, error) {
	var sigs []*signature.Signature
	prefix := indexKey(index)
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(signatureBucket).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			sig, err := signature.Unmarshal(s.scheme, v)
			if err != nil {
				return err
			}
			sigs = append(sigs, sig)
		}
		return nil
	})
	return sigs, err
}

// Len returns the number of archived signatures.
func (s *Store) Len() (int, error) {
	var length int
	err := s.db.View(func(tx *bolt.Tx) error {
		length = tx.Bucket(signatureBucket).Stats().KeyN
		return nil
	})
	if err != nil {
		s.log.Warnw("", "boltdb", "error getting length", "err", err)
	}
	return length, err
}

// Close closes the database.
func (s *Store) Close() error {
	err := s.db.Close()
	if err != nil {
		s.log.Errorw("", "boltdb", "close", "err", err)
	}
	return err
}
