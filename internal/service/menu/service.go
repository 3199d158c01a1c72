package menu

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/linzen78111/pos2/internal/cache"
	"github.com/linzen78111/pos2/internal/config"
	"github.com/linzen78111/pos2/internal/entity"
	"github.com/linzen78111/pos2/internal/observability"
	repo "github.com/linzen78111/pos2/internal/repository/menu"
	"github.com/linzen78111/pos2/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/linzen78111/pos2/service/menu")

// Client-facing messages.
const (
	MsgMenuFailed     = "取得菜單失敗"
	MsgHotItemsFailed = "取得本週熱銷商品失敗"
)

const menuCacheKey = "menu:enabled"

// Repository is the catalog storage the service needs.
type Repository interface {
	Enabled(ctx context.Context) ([]entity.MenuItem, error)
	TopSellers(ctx context.Context, from, to time.Time, limit int) ([]entity.Seller, error)
	AllTimeSellers(ctx context.Context, limit int) ([]entity.Seller, error)
}

// HotItems is a popularity ranking computed under one policy.
type HotItems struct {
	Policy  string          `json:"policy"`
	From    time.Time       `json:"from"`
	To      time.Time       `json:"to"`
	Sellers []entity.Seller `json:"sellers"`
}

// Names lists the ranked item names.
func (h HotItems) Names() []string {
	names := make([]string, 0, len(h.Sellers))
	for _, s := range h.Sellers {
		names = append(names, s.Name)
	}
	return names
}

// Service serves the catalog and the hot-items ranking.
type Service struct {
	repo        Repository
	cache       cache.Store
	cfg         config.Menu
	logger      *zap.Logger
	instruments *observability.Instruments
	now         func() time.Time
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Repository  *repo.Repository
	Cache       cache.Store
	Config      config.Config
	Logger      *zap.Logger
	Instruments *observability.Instruments `optional:"true"`
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return New(p.Repository, p.Cache, p.Config.Menu, p.Logger, p.Instruments)
}

// New builds a Service from explicit collaborators. A nil store disables
// caching.
func New(r Repository, store cache.Store, cfg config.Menu, logger *zap.Logger, instruments *observability.Instruments) *Service {
	if store == nil {
		store = cache.NewNoop()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.HotItemsPolicy == "" {
		cfg.HotItemsPolicy = config.HotItemsWeekly
	}
	return &Service{
		repo:        r,
		cache:       store,
		cfg:         cfg,
		logger:      logger,
		instruments: instruments,
		now:         time.Now,
	}
}

// Policy reports the configured hot-items policy.
func (s *Service) Policy() string {
	return s.cfg.HotItemsPolicy
}

// Menu lists the enabled catalog, ordered by category then name.
func (s *Service) Menu(ctx context.Context) ([]entity.MenuItem, error) {
	ctx, span := serviceTracer.Start(ctx, "MenuService.Menu")
	defer span.End()

	var items []entity.MenuItem
	if err := cache.GetJSON(ctx, s.cache, menuCacheKey, &items); err == nil {
		return items, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("menu cache read failed", zap.Error(err))
	}

	items, err := s.repo.Enabled(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		s.logger.Error("load menu failed", zap.Error(err))
		return nil, errorbank.Internal(MsgMenuFailed, errorbank.WithCause(err))
	}

	if err := cache.SetJSON(ctx, s.cache, menuCacheKey, items, s.cfg.CacheTTL); err != nil {
		s.logger.Warn("menu cache write failed", zap.Error(err))
	}
	return items, nil
}

// HotItems returns the ranking for the current window, from cache when fresh.
func (s *Service) HotItems(ctx context.Context) (*HotItems, error) {
	ctx, span := serviceTracer.Start(ctx, "MenuService.HotItems", trace.WithAttributes(
		attribute.String("hot_items.policy", s.cfg.HotItemsPolicy),
	))
	defer span.End()

	key := s.hotItemsKey(s.now())
	var cached HotItems
	if err := cache.GetJSON(ctx, s.cache, key, &cached); err == nil {
		return &cached, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("hot items cache read failed", zap.String("key", key), zap.Error(err))
	}

	hot, err := s.RefreshHotItems(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "aggregation failed")
		return nil, err
	}
	return hot, nil
}

// RefreshHotItems recomputes the ranking and replaces the cached copy.
func (s *Service) RefreshHotItems(ctx context.Context) (*HotItems, error) {
	now := s.now()
	started := time.Now()

	hot := &HotItems{Policy: s.cfg.HotItemsPolicy}
	var (
		sellers []entity.Seller
		err     error
	)
	switch s.cfg.HotItemsPolicy {
	case config.HotItemsAllTime:
		sellers, err = s.repo.AllTimeSellers(ctx, s.cfg.HotItemsLimit)
	default:
		hot.From, hot.To = WeekWindow(now, s.cfg.Location)
		sellers, err = s.repo.TopSellers(ctx, hot.From, hot.To, s.cfg.HotItemsLimit)
	}
	if err != nil {
		s.logger.Error("hot items aggregation failed", zap.String("policy", hot.Policy), zap.Error(err))
		return nil, errorbank.Internal(MsgHotItemsFailed, errorbank.WithCause(err))
	}
	hot.Sellers = entity.RankSellers(sellers, s.cfg.HotItemsLimit)
	s.instruments.HotItemsComputed(ctx, hot.Policy, time.Since(started))

	key := s.hotItemsKey(now)
	if err := cache.SetJSON(ctx, s.cache, key, hot, s.cfg.HotItemsCacheTTL); err != nil {
		s.logger.Warn("hot items cache write failed", zap.String("key", key), zap.Error(err))
	}
	return hot, nil
}

func (s *Service) hotItemsKey(now time.Time) string {
	if s.cfg.HotItemsPolicy == config.HotItemsAllTime {
		return "hot_items:all_time"
	}
	from, _ := WeekWindow(now, s.cfg.Location)
	return fmt.Sprintf("hot_items:weekly:%s", from.Format("20060102"))
}

// WeekWindow returns the Monday 00:00 to Sunday 23:59:59.999999999 week
// containing now, in loc.
func WeekWindow(now time.Time, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.Local
	}
	local := now.In(loc)
	offset := (int(local.Weekday()) + 6) % 7
	start := time.Date(local.Year(), local.Month(), local.Day()-offset, 0, 0, 0, 0, loc)
	end := start.AddDate(0, 0, 7).Add(-time.Nanosecond)
	return start, end
}
