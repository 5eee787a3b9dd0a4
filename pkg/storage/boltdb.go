package storage

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/cuemby/hutch/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var (
	// Bucket names
	bucketTasks        = []byte("tasks")
	bucketCertificates = []byte("certificates")
	bucketHosts        = []byte("hosts")
	bucketInstances    = []byte("instances")
	bucketPlans        = []byte("plans")
	bucketLocks        = []byte("locks")
)

// BoltStore implements Store interface using BoltDB
type BoltStore struct {
	db *bolt.DB
}

// lockRecord is the persisted form of a held lock.
type lockRecord struct {
	Owner  string    `json:"owner"`
	Expiry time.Time `json:"expiry"`
}

// NewBoltStore creates a new BoltDB-backed store
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "hutch.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		buckets := [][]byte{
			bucketTasks,
			bucketCertificates,
			bucketHosts,
			bucketInstances,
			bucketPlans,
			bucketLocks,
		}

		for _, bucket := range buckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})

	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// put marshals a record and upserts it under key in bucket.
func (s *BoltStore) put(bucket []byte, key string, record interface{}) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		data, err := json.Marshal(record)
		if err != nil {
			return err
		}
		return b.Put([]byte(key), data)
	})
}

// get unmarshals the record stored under key in bucket into out.
func (s *BoltStore) get(bucket []byte, key string, out interface{}) error {
	return s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		data := b.Get([]byte(key))
		if data == nil {
			return fmt.Errorf("%w: %s/%s", ErrNotFound, bucket, key)
		}
		return json.Unmarshal(data, out)
	})
}

func (s *BoltStore) delete(bucket []byte, key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Delete([]byte(key))
	})
}

// Pending task operations
func (s *BoltStore) PutTask(task *types.PendingTask) error {
	return s.put(bucketTasks, task.ID, task)
}

func (s *BoltStore) GetTask(id string) (*types.PendingTask, error) {
	var task types.PendingTask
	if err := s.get(bucketTasks, id, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (s *BoltStore) ListTasks() ([]*types.PendingTask, error) {
	var out []*types.PendingTask
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTasks).ForEach(func(k, v []byte) error {
			var task types.PendingTask
			if err := json.Unmarshal(v, &task); err != nil {
				return err
			}
			out = append(out, &task)
			return nil
		})
	})
	return out, err
}

func (s *BoltStore) DeleteTask(id string) error {
	return s.delete(bucketTasks, id)
}

// Certificate operations
func (s *BoltStore) PutCertificate(cert *types.CertificateRecord) error {
	return s.put(bucketCertificates, cert.Name, cert)
}

func (s *BoltStore) GetCertificate(name string) (*types.CertificateRecord, error) {
	var cert types.CertificateRecord
	if err := s.get(bucketCertificates, name, &cert); err != nil {
		return nil, err
	}
	return &cert, nil
}

func (s *BoltStore) ListCertificates() ([]*types.CertificateRecord, error) {
	var out []*types.CertificateRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCertificates).ForEach(func(k, v []byte) error {
			var cert types.CertificateRecord
			if err := json.Unmarshal(v, &cert); err != nil {
				return err
			}
			out = append(out, &cert)
			return nil
		})
	})
	return out, err
}

func (s *BoltStore) DeleteCertificate(name string) error {
	return s.delete(bucketCertificates, name)
}

// Host operations. Hosts are keyed by network address so the health sweep
// can resolve the nodes the health registry reports.
func (s *BoltStore) PutHost(host *types.Host) error {
	return s.put(bucketHosts, host.DNSName, host)
}

func (s *BoltStore) GetHostByAddress(address string) (*types.Host, error) {
	var host types.Host
	if err := s.get(bucketHosts, address, &host); err != nil {
		return nil, err
	}
	return &host, nil
}

func (s *BoltStore) ListHosts() ([]*types.Host, error) {
	var out []*types.Host
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketHosts).ForEach(func(k, v []byte) error {
			var host types.Host
			if err := json.Unmarshal(v, &host); err != nil {
				return err
			}
			out = append(out, &host)
			return nil
		})
	})
	return out, err
}

func (s *BoltStore) DeleteHostByAddress(address string) error {
	return s.delete(bucketHosts, address)
}

// Instance operations
func (s *BoltStore) PutInstance(instance *types.Instance) error {
	return s.put(bucketInstances, instance.Name, instance)
}

func (s *BoltStore) GetInstance(name string) (*types.Instance, error) {
	var instance types.Instance
	if err := s.get(bucketInstances, name, &instance); err != nil {
		return nil, err
	}
	return &instance, nil
}

func (s *BoltStore) DeleteInstance(name string) error {
	return s.delete(bucketInstances, name)
}

// Plan operations
func (s *BoltStore) PutPlan(plan *types.Plan) error {
	return s.put(bucketPlans, plan.Name, plan)
}

func (s *BoltStore) GetPlan(name string) (*types.Plan, error) {
	var plan types.Plan
	if err := s.get(bucketPlans, name, &plan); err != nil {
		return nil, err
	}
	return &plan, nil
}

// Lock operations. The check-and-set runs inside a single write transaction,
// which is what makes the lock safe across workers sharing the store.
func (s *BoltStore) TryAcquireLock(name, owner string, now, expiry time.Time) (bool, error) {
	acquired := false
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketLocks)
		if data := b.Get([]byte(name)); data != nil {
			var rec lockRecord
			if err := json.Unmarshal(data, &rec); err != nil {
				return err
			}
			if rec.Expiry.After(now) {
				return nil // held elsewhere
			}
		}
		data, err := json.Marshal(lockRecord{Owner: owner, Expiry: expiry})
		if err != nil {
			return err
		}
		if err := b.Put([]byte(name), data); err != nil {
			return err
		}
		acquired = true
		return nil
	})
	return acquired, err
}

func (s *BoltStore) UpdateLockExpiry(name, owner string, expiry time.Time) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketLocks)
		data := b.Get([]byte(name))
		if data == nil {
			return fmt.Errorf("%w: lock %s", ErrNotFound, name)
		}
		var rec lockRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return err
		}
		if rec.Owner != owner {
			return fmt.Errorf("lock %s is not held by %s", name, owner)
		}
		rec.Expiry = expiry
		updated, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return b.Put([]byte(name), updated)
	})
}

func (s *BoltStore) ReleaseLock(name, owner string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketLocks)
		data := b.Get([]byte(name))
		if data == nil {
			return fmt.Errorf("%w: lock %s", ErrNotFound, name)
		}
		var rec lockRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return err
		}
		if rec.Owner != owner {
			return fmt.Errorf("lock %s is not held by %s", name, owner)
		}
		return b.Delete([]byte(name))
	})
}
