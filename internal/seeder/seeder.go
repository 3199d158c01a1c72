package seeder

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"go.uber.org/zap"

	"github.com/linzen78111/pos2/internal/database"
	"github.com/linzen78111/pos2/internal/entity"
)

// Seeder performs database seeding for local/dev setups.
type Seeder struct {
	db     *bun.DB
	logger *zap.Logger
}

// New constructs a Seeder backed by the primary database connection.
func New(conns *database.Connections, logger *zap.Logger) *Seeder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Seeder{db: conns.Writer, logger: logger}
}

// SampleMenu is the catalog loaded by Menu.
func SampleMenu() []entity.MenuItem {
	item := func(name, price, category, note string, limit int) entity.MenuItem {
		return entity.MenuItem{
			Name:       name,
			Price:      decimal.RequireFromString(price),
			Category:   category,
			Note:       note,
			Enabled:    true,
			OrderLimit: limit,
		}
	}
	return []entity.MenuItem{
		item("紅茶", "30", "飲料", "", 0),
		item("綠茶", "30", "飲料", "無糖", 0),
		item("珍珠奶茶", "55", "飲料", "", 5),
		item("滷肉飯", "45", "主食", "", 0),
		item("雞腿便當", "110", "主食", "", 10),
		item("牛肉麵", "150", "主食", "", 10),
		item("水餃", "70", "點心", "10顆", 0),
		item("酸辣湯", "40", "湯品", "", 0),
	}
}

// Menu inserts the sample catalog. Items whose name already exists are left
// untouched, so seeding twice is harmless.
func (s *Seeder) Menu(ctx context.Context) error {
	items := SampleMenu()

	q := s.db.NewInsert().Model(&items).Returning("NULL")
	if s.db.Dialect().Name() == dialect.MySQL {
		q = q.Ignore()
	} else {
		q = q.On("CONFLICT (name) DO NOTHING")
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return err
	}

	inserted, _ := res.RowsAffected()
	s.logger.Info("seeded menu", zap.Int("items", len(items)), zap.Int64("inserted", inserted))
	return nil
}
