package pos

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/Jar-Mar/tukjaishop-pos/internal/model"
	"github.com/Jar-Mar/tukjaishop-pos/internal/storeapi"
)

// GoodsSource — внешний источник товаров, обычно HTTP API магазина.
type GoodsSource interface {
	GetGoodsByBarcode(ctx context.Context, code string) (*model.Goods, error)
}

// Beeper подаёт звуковой сигнал подтверждения сканирования.
// Сигнал необязателен: сбой воспроизведения не прерывает работу кассы.
type Beeper interface {
	Beep() error
}

// DefaultCatalog — локальная таблица товаров, доступная кассе без связи
// с сервером.
func DefaultCatalog() map[string]model.Goods {
	return map[string]model.Goods{
		"123456": {Barcode: "123456", Name: "Camera Lens", Price: 1500},
		"789012": {Barcode: "789012", Name: "Lighting Kit", Price: 3200},
		"345678": {Barcode: "345678", Name: "Encoder Cable", Price: 450},
	}
}

// Resolver подбирает товар по отсканированному или введённому коду:
// сначала через сервер магазина, затем по локальной таблице.
type Resolver struct {
	remote GoodsSource
	local  map[string]model.Goods
	beeper Beeper
	logger *zap.Logger
}

// NewResolver создаёт Resolver. Любой из источников может быть nil:
// касса без сервера работает только по локальной таблице и наоборот.
func NewResolver(remote GoodsSource, local map[string]model.Goods, beeper Beeper, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		remote: remote,
		local:  local,
		beeper: beeper,
		logger: logger,
	}
}

// Resolve возвращает товар по коду. Недоступность сервера не является
// ошибкой подбора: выполняется переход к локальной таблице. Успешный
// подбор сопровождается звуковым сигналом.
func (r *Resolver) Resolve(ctx context.Context, code string) (*model.Goods, bool) {
	if code == "" {
		return nil, false
	}

	if r.remote != nil {
		g, err := r.remote.GetGoodsByBarcode(ctx, code)
		if err == nil {
			r.beep()
			return g, true
		}
		if !errors.Is(err, storeapi.ErrNotFound) {
			r.logger.Warn("remote goods lookup failed, falling back to local catalog",
				zap.String("barcode", code), zap.Error(err))
		}
	}

	if g, ok := r.local[code]; ok {
		r.beep()
		return &g, true
	}

	return nil, false
}

func (r *Resolver) beep() {
	if r.beeper == nil {
		return
	}
	if err := r.beeper.Beep(); err != nil {
		r.logger.Debug("beep failed", zap.Error(err))
	}
}
