package db

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// Connections holds database and cache connections
type Connections struct {
	DB    *gorm.DB
	Redis *RedisClient
}

// NewConnections creates a new Connections instance
func NewConnections(db *gorm.DB, redis *RedisClient) *Connections {
	return &Connections{
		DB:    db,
		Redis: redis,
	}
}

// WithContext returns a copy whose gorm handle is bound to ctx.
func (c *Connections) WithContext(ctx context.Context) *Connections {
	if c.DB == nil {
		return c
	}
	return &Connections{DB: c.DB.WithContext(ctx), Redis: c.Redis}
}

// Close releases whichever connections are open.
func (c *Connections) Close() error {
	var errs []error
	if c.Redis != nil {
		errs = append(errs, c.Redis.Close())
	}
	if c.DB != nil {
		if sqlDB, err := c.DB.DB(); err != nil {
			errs = append(errs, err)
		} else {
			errs = append(errs, sqlDB.Close())
		}
	}
	return errors.Join(errs...)
}
