package storage

import (
	"context"
	"database/sql"
	"fmt"

	"marketplace/internal/config"
	"marketplace/internal/domain"
	"marketplace/internal/infrastructure/memory"
	"marketplace/internal/infrastructure/mysql"
	"marketplace/pkg/logger"
	"marketplace/pkg/utils"
)

// Stores groups the entity stores selected by storage.driver.
type Stores struct {
	Offers        domain.OfferRepository
	Bids          domain.BidStore
	Notifications domain.NotificationRepository
	Users         domain.UserDirectory
	// Locker is set when the stores live in this process only, so an
	// in-process lock is enough to serialize bids. Nil for shared drivers.
	Locker domain.OfferLocker

	db *sql.DB
}

func Open(ctx context.Context, cfg *config.Config, log logger.Logger) (*Stores, error) {
	const op = "storage.Open"

	switch cfg.Storage.Driver {
	case "memory":
		log.Warn("Using in-memory storage; data is lost on restart and not shared between processes")
		store := memory.NewStore()
		return &Stores{
			Offers:        store,
			Bids:          store,
			Notifications: store,
			Users:         store,
			Locker:        memory.NewOfferLocker(),
		}, nil

	case "mysql":
		db, err := utils.OpenMySQL(ctx, cfg.MySQL)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if err := mysql.ApplySchema(ctx, db); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		log.Info("Connected to MySQL")
		return newMySQLStores(db), nil
	}
	return nil, fmt.Errorf("%s: unknown driver %q", op, cfg.Storage.Driver)
}

func newMySQLStores(db *sql.DB) *Stores {
	return &Stores{
		Offers:        mysql.NewMySQLOfferRepository(db),
		Bids:          mysql.NewMySQLBidRepository(db),
		Notifications: mysql.NewMySQLNotificationRepository(db),
		Users:         mysql.NewMySQLUserDirectory(db),
		db:            db,
	}
}

func (s *Stores) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
