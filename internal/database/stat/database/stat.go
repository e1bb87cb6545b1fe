package database

import (
	"encoding/json"
	"fmt"

	"github.com/liars-games/liarsdice/internal/cache"
	"github.com/liars-games/liarsdice/internal/database"
	"github.com/liars-games/liarsdice/internal/database/stat/model"
	bolt "go.etcd.io/bbolt"
)

const prefix = "stat"

var ErrNotFound = fmt.Errorf("not found")

func New(db *database.DB, cache cache.Cache) *DB {
	return &DB{sDB: db, cache: cache}
}

type DB struct {
	sDB *database.DB

	cache cache.Cache
}

func (db *DB) bucket(playerName string) []byte {
	return []byte(prefix + playerName)
}

func (db *DB) FetchProfileStat(playerName string) (model.AggregationStat, error) {
	var aggregationStat model.AggregationStat

	stats, err := db.FetchByPlayerName(playerName)
	if err != nil {
		return aggregationStat, fmt.Errorf("fetch by player name: %w", err)
	}

	for _, stat := range stats {
		aggregationStat.Games++
		if stat.Conclusion == model.ConclusionWinner {
			aggregationStat.Wins++
		}
		aggregationStat.ChallengesWon += stat.ChallengesWon
		aggregationStat.ChallengesLost += stat.ChallengesLost
		aggregationStat.DiceLost += stat.DiceLost
	}

	return aggregationStat, nil
}

func (db *DB) FetchByPlayerName(playerName string) ([]model.Stat, error) {
	var list []model.Stat
	bucket := db.bucket(playerName)
	if db.cache != nil {
		v, ok := db.cache.Get(string(bucket))
		if ok {
			return v.([]model.Stat), nil
		}
	}

	if err := db.sDB.DB.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return ErrNotFound
		}

		if err := b.ForEach(func(k, v []byte) error {
			var stat model.Stat
			if err := json.Unmarshal(v, &stat); err != nil {
				return fmt.Errorf("json unmarshal error, %w", err)
			}
			list = append(list, stat)
			return nil
		}); err != nil {
			return fmt.Errorf("bucket for each: %w", err)
		}

		return nil
	}); err != nil {
		return nil, fmt.Errorf("view transaction error: %w", err)
	}

	if db.cache != nil {
		db.cache.Add(string(bucket), list)
	}

	return list, nil
}

func (db *DB) Add(m model.Stat) error {
	tx, err := db.sDB.DB.Begin(true)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}

	defer tx.Rollback() //nolint

	bucket := db.bucket(m.PlayerName)

	b := tx.Bucket(bucket)
	if b == nil {
		bs, err := tx.CreateBucket(bucket)
		if err != nil {
			return fmt.Errorf("can not create bucket %s: %w", m.PlayerName, err)
		}
		b = bs
	}

	binaryID, err := m.ID.MarshalBinary()
	if err != nil {
		return fmt.Errorf("uuid binary: %w", err)
	}

	bytes, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	if err := b.Put(binaryID, bytes); err != nil {
		return fmt.Errorf("put to bucket error: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	if db.cache != nil {
		db.cache.Delete(string(bucket))
	}

	return nil
}
