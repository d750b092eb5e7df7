package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"voxelbend.ai/internal/persistence/indexdb"
	"voxelbend.ai/internal/protocol"
	"voxelbend.ai/internal/sim/tuning"
)

type runtimeIndex interface {
	Publish(ev protocol.Event)
	Close() error
	UpsertTuning(tune tuning.Tuning, partitions []string) error
	Stats() any
}

type sqliteIndex struct{ *indexdb.SQLiteIndex }

func (s sqliteIndex) Stats() any { return s.SQLiteIndex.Stats() }

// d1Index has no local catalog; the tuning lives in the journal and sqlite only.
type d1Index struct{ *indexdb.D1Index }

func (d1Index) UpsertTuning(tuning.Tuning, []string) error { return nil }
func (d d1Index) Stats() any                               { return d.D1Index.Stats() }

func openRuntimeIndex(dataDir, serverID string, disableDB bool, logger *log.Logger) (runtimeIndex, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("VB_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		idx, err := indexdb.OpenSQLite(filepath.Join(dataDir, "index", "events.sqlite"))
		if err != nil {
			return nil, err
		}
		return sqliteIndex{idx}, nil
	case "d1":
		endpoint := strings.TrimSpace(os.Getenv("VB_INDEX_D1_INGEST_URL"))
		if endpoint == "" {
			return nil, fmt.Errorf("VB_INDEX_BACKEND=d1 but VB_INDEX_D1_INGEST_URL is empty")
		}
		idx, err := indexdb.OpenD1(indexdb.D1Config{
			Endpoint:      endpoint,
			Token:         strings.TrimSpace(os.Getenv("VB_INDEX_D1_TOKEN")),
			ServerID:      serverID,
			BatchSize:     envInt("VB_INDEX_D1_BATCH_SIZE", 128),
			FlushInterval: time.Duration(envInt("VB_INDEX_D1_FLUSH_MS", 500)) * time.Millisecond,
			Logger:        logger,
		})
		if err != nil {
			return nil, err
		}
		return d1Index{idx}, nil
	default:
		return nil, fmt.Errorf("unsupported VB_INDEX_BACKEND: %s", backend)
	}
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
