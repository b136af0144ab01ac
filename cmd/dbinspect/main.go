package main

import (
	"bytes"
	"encoding/json/v2"
	"fmt"
	"log"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/skywatch-app/skywatch-server/internal/domain"
)

func main() {
	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = os.ExpandEnv("$HOME/skywatch/data/db")
	}

	opts := badger.DefaultOptions(dbPath).
		WithReadOnly(true).
		WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	fmt.Println("=== Archive Inspection ===")
	fmt.Println()

	labelCount := 0
	negations := 0
	valueCounts := map[string]int{}

	err = db.View(func(txn *badger.Txn) error {
		return forEach(txn, "label:", func(val []byte) error {
			var ev domain.LabelEvent
			if err := json.Unmarshal(val, &ev); err != nil {
				return err
			}
			labelCount++
			valueCounts[ev.Value]++
			if ev.Negated {
				negations++
			}
			return nil
		})
	})
	if err != nil {
		log.Fatalf("Failed to scan labels: %v", err)
	}

	fmt.Printf("Label events: %d (%d negations)\n", labelCount, negations)
	for val, n := range valueCounts {
		fmt.Printf("  %-24s %d\n", val, n)
	}
	fmt.Println()

	contentCount := 0
	contentTombstones := 0
	err = db.View(func(txn *badger.Txn) error {
		return forEach(txn, "content:", func(val []byte) error {
			var rec domain.ContentRecord
			if err := json.Unmarshal(val, &rec); err != nil {
				return err
			}
			contentCount++
			if rec.NotFound {
				contentTombstones++
			}
			return nil
		})
	})
	if err != nil {
		log.Fatalf("Failed to scan content records: %v", err)
	}
	fmt.Printf("Content records: %d (%d gone at fetch time)\n", contentCount, contentTombstones)

	accountCount := 0
	accountTombstones := 0
	err = db.View(func(txn *badger.Txn) error {
		return forEach(txn, "account:", func(val []byte) error {
			var rec domain.AccountRecord
			if err := json.Unmarshal(val, &rec); err != nil {
				return err
			}
			accountCount++
			if rec.NotFound {
				accountTombstones++
			}
			return nil
		})
	})
	if err != nil {
		log.Fatalf("Failed to scan account records: %v", err)
	}
	fmt.Printf("Account records: %d (%d gone at fetch time)\n", accountCount, accountTombstones)

	blobCount := 0
	stored := 0
	err = db.View(func(txn *badger.Txn) error {
		return forEach(txn, "blob:", func(val []byte) error {
			var rec domain.BlobRecord
			if err := json.Unmarshal(val, &rec); err != nil {
				return err
			}
			blobCount++
			if rec.StorageLocator != "" {
				stored++
			}
			return nil
		})
	})
	if err != nil {
		log.Fatalf("Failed to scan blob records: %v", err)
	}
	fmt.Printf("Blob records: %d (%d with stored bytes)\n", blobCount, stored)
}

// forEach visits the value of every primary key under prefix, skipping
// secondary index keys.
func forEach(txn *badger.Txn, prefix string, fn func(val []byte) error) error {
	idxPrefix := []byte(prefix + "idx:")

	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefix)
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Rewind(); it.Valid(); it.Next() {
		if bytes.HasPrefix(it.Item().Key(), idxPrefix) {
			continue
		}
		if err := it.Item().Value(fn); err != nil {
			return err
		}
	}
	return nil
}
