package server

import (
	"context"
	"log"
	"time"

	"github.com/gorhill/cronexpr"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/spinwisely/kbase/config"
	"github.com/spinwisely/kbase/internal/store"
)

// Cleaner runs the retention pass on a cron schedule: prune old activity
// events and drop document rows that never got chunks indexed. A redis
// lock keeps multiple replicas from running the pass at once.
type Cleaner struct {
	Store *store.Store
	Rdb   *redis.Client
	Cfg   appconfig.CleanupConfig
	Stop  chan struct{}

	last *time.Time
}

func (c *Cleaner) Start() {
	ticker := time.NewTicker(1 * time.Hour)
	go func() {
		for {
			select {
			case <-c.Stop:
				ticker.Stop()
				return
			case <-ticker.C:
				c.tick()
			}
		}
	}()
}

func (c *Cleaner) Close() {
	close(c.Stop)
}

func (c *Cleaner) tick() {
	if !isDue(c.Cfg.Schedule, c.last) {
		return
	}
	ctx := context.Background()

	if c.Rdb != nil {
		ok, _ := c.Rdb.SetNX(ctx, "cleanup:lock", "1", 10*time.Minute).Result()
		if !ok {
			return
		}
		defer c.Rdb.Del(ctx, "cleanup:lock")
	}

	now := time.Now()
	c.last = &now

	retention := c.Cfg.ActivityRetentionDays
	if retention <= 0 {
		retention = 90
	}
	cutoff := now.AddDate(0, 0, -retention)
	if pruned, err := c.Store.PruneActivities(ctx, cutoff); err != nil {
		log.Printf("[CLEANER] prune activities: %v", err)
	} else if pruned > 0 {
		log.Printf("[CLEANER] pruned %d activity events older than %s", pruned, cutoff.Format("2006-01-02"))
	}

	if deleted, err := c.Store.DeleteOrphanDocuments(ctx); err != nil {
		log.Printf("[CLEANER] delete orphan documents: %v", err)
	} else if deleted > 0 {
		log.Printf("[CLEANER] removed %d orphaned documents", deleted)
	}
}

// isDue determines if a pass with cronSpec should run now based on the last
// run time. Supports "@daily", "@hourly", and standard 5-field cron
// expressions.
func isDue(cronSpec string, last *time.Time) bool {
	now := time.Now()
	switch cronSpec {
	case "@daily", "":
		if last == nil {
			return true
		}
		return now.Sub(*last) >= 24*time.Hour
	case "@hourly":
		if last == nil {
			return true
		}
		return now.Sub(*last) >= time.Hour
	default:
		expr, err := cronexpr.Parse(cronSpec)
		if err != nil {
			// invalid expressions degrade to @daily
			if last == nil {
				return true
			}
			return now.Sub(*last) >= 24*time.Hour
		}
		if last == nil {
			return true
		}
		next := expr.Next(*last)
		return !next.After(now)
	}
}
