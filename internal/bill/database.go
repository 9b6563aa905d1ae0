package bill

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"go.etcd.io/bbolt"
)

const bucketName = "bills"

// ErrNotFound is returned when a bill ID has no record
var ErrNotFound = errors.New("bill not found")

// DB defines the interface for bill persistence
type DB interface {
	// SaveBill inserts or replaces a bill
	SaveBill(ctx context.Context, b *Bill) error

	// GetBill retrieves a bill by ID
	GetBill(ctx context.Context, id string) (*Bill, error)

	// ListBills returns bills matching the filter, newest bill date first
	ListBills(ctx context.Context, f Filter) ([]Bill, error)

	// ExistsSimilar reports whether a bill from vendor on billDate carries billNumber
	ExistsSimilar(ctx context.Context, vendor, billNumber string, billDate civil.Date) (bool, error)

	// DeleteBill removes a bill
	DeleteBill(ctx context.Context, id string) error

	// Close closes the database connection
	Close() error
}

// BoltDB implements DB using BoltDB
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB opens (or creates) the database at path
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db}, nil
}

// SaveBill saves a bill to the database
func (b *BoltDB) SaveBill(ctx context.Context, bill *Bill) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(bill)
		if err != nil {
			return fmt.Errorf("marshaling bill: %w", err)
		}
		return tx.Bucket([]byte(bucketName)).Put([]byte(bill.ID), data)
	})
}

// GetBill retrieves a bill by ID
func (b *BoltDB) GetBill(ctx context.Context, id string) (*Bill, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var bill *Bill
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(bucketName)).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return json.Unmarshal(data, &bill)
	})
	if err != nil {
		return nil, err
	}
	return bill, nil
}

// ListBills scans the bucket, keeps matching bills, sorts them by bill date
// (newest first) and applies Offset and Limit. A non-positive Limit means no limit.
func (b *BoltDB) ListBills(ctx context.Context, f Filter) ([]Bill, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	bills := make([]Bill, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).ForEach(func(k, v []byte) error {
			var bill Bill
			if err := json.Unmarshal(v, &bill); err != nil {
				return fmt.Errorf("unmarshaling bill %s: %w", k, err)
			}
			if f.Matches(&bill) {
				bills = append(bills, bill)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	SortNewestFirst(bills)

	if f.Offset > 0 {
		if f.Offset >= len(bills) {
			return []Bill{}, nil
		}
		bills = bills[f.Offset:]
	}
	if f.Limit > 0 && len(bills) > f.Limit {
		bills = bills[:f.Limit]
	}
	return bills, nil
}

// ExistsSimilar only reports a match when billNumber is set and equal to a
// stored bill from the same vendor on the same date. Vendor and date alone
// are not enough: recurring bills share both.
func (b *BoltDB) ExistsSimilar(ctx context.Context, vendor, billNumber string, billDate civil.Date) (bool, error) {
	if billNumber == "" {
		return false, nil
	}
	candidates, err := b.ListBills(ctx, Filter{
		Vendor:   vendor,
		DateFrom: &billDate,
		DateTo:   &billDate,
		Limit:    100,
	})
	if err != nil {
		return false, fmt.Errorf("listing candidates: %w", err)
	}
	for _, c := range candidates {
		if strings.TrimSpace(c.BillNumber) == strings.TrimSpace(billNumber) {
			return true, nil
		}
	}
	return false, nil
}

// DeleteBill removes a bill from the database
func (b *BoltDB) DeleteBill(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Delete([]byte(id))
	})
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}

// SortNewestFirst orders bills by bill date descending. Bills sharing a date
// keep their relative order.
func SortNewestFirst(bills []Bill) {
	slices.SortStableFunc(bills, func(x, y Bill) int {
		switch {
		case x.BillDate.After(y.BillDate):
			return -1
		case x.BillDate.Before(y.BillDate):
			return 1
		}
		return 0
	})
}
