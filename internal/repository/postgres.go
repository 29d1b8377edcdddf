// Package repository содержит реализацию доступа к данным в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/Jar-Mar/tukjaishop-pos/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrGoodsExists возвращается при попытке создать товар с уже занятым штрихкодом.
var (
	ErrGoodsExists = errors.New("goods with this barcode already exists")
	// ErrGoodsNotFound возвращается, если товар по штрихкоду не найден.
	ErrGoodsNotFound = errors.New("goods not found")
	// ErrMemberExists возвращается при повторной регистрации телефона.
	ErrMemberExists = errors.New("member already registered")
	// ErrMemberNotFound возвращается, если участник не найден.
	ErrMemberNotFound = errors.New("member not found")
)

// Суммы хранятся в сатангах (1 бат = 100 сатангов), чтобы избежать
// накопления ошибок округления. Наружу репозиторий отдаёт баты.
func toSatang(baht float64) int64 {
	return int64(math.Round(baht * 100))
}

func fromSatang(satang int64) float64 {
	return float64(satang) / 100
}

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	var err error
	delays := []time.Duration{1 * time.Second, 3 * time.Second, 5 * time.Second}

	for i := 0; i <= len(delays); i++ {
		err = fn()
		if err == nil {
			return nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected {
				if i < len(delays) {
					time.Sleep(delays[i])
					continue
				}
			}
		}

		if isConnectionError(err) {
			if i < len(delays) {
				time.Sleep(delays[i])
				continue
			}
		}

		break
	}
	return err
}

func isConnectionError(err error) bool {
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// CreateGoods сохраняет новый товар каталога.
func (r *PostgresRepository) CreateGoods(ctx context.Context, g *model.Goods) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO goods (barcode, name, type, cost, price, stock, supplier)
		 VALUES (NULLIF($1, ''), $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		g.Barcode, g.Name, g.Type, toSatang(g.Cost), toSatang(g.Price), g.Stock, g.Supplier,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return 0, fmt.Errorf("%w: %s", ErrGoodsExists, g.Barcode)
		}
		return 0, fmt.Errorf("create goods: %w", err)
	}
	return id, nil
}

// GetGoodsByBarcode возвращает товар по штрихкоду.
func (r *PostgresRepository) GetGoodsByBarcode(ctx context.Context, code string) (*model.Goods, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT COALESCE(barcode, ''), name, type, cost, price, stock, supplier
		 FROM goods
		 WHERE barcode = $1`,
		code,
	)

	var g model.Goods
	var costSatang, priceSatang int64
	err := row.Scan(&g.Barcode, &g.Name, &g.Type, &costSatang, &priceSatang, &g.Stock, &g.Supplier)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrGoodsNotFound
		}
		return nil, fmt.Errorf("get goods: %w", err)
	}

	g.Cost = fromSatang(costSatang)
	g.Price = fromSatang(priceSatang)

	return &g, nil
}

// CreateMember регистрирует нового участника программы лояльности.
func (r *PostgresRepository) CreateMember(ctx context.Context, m *model.Member) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO members (phone, name, points) VALUES ($1, $2, $3) RETURNING id`,
		m.Phone, m.Name, m.Points,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return 0, fmt.Errorf("%w: %s", ErrMemberExists, m.Phone)
		}
		return 0, fmt.Errorf("create member: %w", err)
	}
	return id, nil
}

// GetMemberByPhone возвращает участника по номеру телефона.
func (r *PostgresRepository) GetMemberByPhone(ctx context.Context, phone string) (*model.Member, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT phone, name, points FROM members WHERE phone = $1`,
		phone,
	)

	var m model.Member
	err := row.Scan(&m.Phone, &m.Name, &m.Points)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMemberNotFound
		}
		return nil, fmt.Errorf("get member: %w", err)
	}

	return &m, nil
}

// UpdateMemberPoints устанавливает новый баланс баллов участника.
func (r *PostgresRepository) UpdateMemberPoints(ctx context.Context, phone string, points int) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE members SET points = $2 WHERE phone = $1`,
		phone, points,
	)
	if err != nil {
		return fmt.Errorf("update points: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrMemberNotFound
	}
	return nil
}

// CreateOrder сохраняет заказ вместе с позициями и возвращает номер чека.
// Повторяет транзакцию при deadlock и сбоях сериализации.
func (r *PostgresRepository) CreateOrder(ctx context.Context, o *model.Order) (int64, error) {
	var receiptNo int64
	err := r.withRetry(ctx, func() error {
		var err error
		receiptNo, err = r.createOrderTx(ctx, o)
		return err
	})
	return receiptNo, err
}

func (r *PostgresRepository) createOrderTx(ctx context.Context, o *model.Order) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var memberPhone, memberName *string
	if o.Member != nil {
		memberPhone = &o.Member.Phone
		memberName = &o.Member.Name
	}

	var orderID int64
	err = tx.QueryRow(ctx,
		`INSERT INTO orders (member_phone, member_name, payment_type, cash_received,
		                     grand_total, discount, net_total, change_due,
		                     redeemed_points, earned_points, points_before, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 RETURNING id`,
		memberPhone, memberName, string(o.PaymentType), toSatang(o.CashReceived),
		toSatang(o.GrandTotal), toSatang(o.Discount), toSatang(o.NetTotal), toSatang(o.Change),
		o.RedeemedPoints, o.EarnedPoints, o.PointsBefore, o.Date,
	).Scan(&orderID)
	if err != nil {
		return 0, fmt.Errorf("insert order: %w", err)
	}

	for i, l := range o.Lines {
		_, err = tx.Exec(ctx,
			`INSERT INTO order_items (order_id, goods_id, name, quantity, price, discount, position)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			orderID, l.ID, l.Name, l.Quantity, toSatang(l.Price), toSatang(l.Discount), i,
		)
		if err != nil {
			return 0, fmt.Errorf("insert order item: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}

	// Нумерация чеков начинается с 1001, как в бумажной книге магазина.
	return 1000 + orderID, nil
}

// ListOrders возвращает заказы за период, сначала самые новые.
func (r *PostgresRepository) ListOrders(ctx context.Context, from, to time.Time) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, COALESCE(member_phone, ''), COALESCE(member_name, ''), payment_type,
		        cash_received, grand_total, discount, net_total, change_due,
		        redeemed_points, earned_points, points_before, created_at
		 FROM orders
		 WHERE created_at >= $1 AND created_at < $2
		 ORDER BY created_at DESC`,
		from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	var orders []model.Order
	ids := make([]int64, 0)
	byID := make(map[int64]int)

	for rows.Next() {
		var (
			id                                 int64
			phone, name, paymentType           string
			cash, grand, discount, net, change int64
			redeemed, earned, before           int
			createdAt                          time.Time
		)
		if err := rows.Scan(&id, &phone, &name, &paymentType, &cash, &grand, &discount,
			&net, &change, &redeemed, &earned, &before, &createdAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}

		o := model.Order{
			PaymentType:    model.PaymentType(paymentType),
			CashReceived:   fromSatang(cash),
			GrandTotal:     fromSatang(grand),
			Discount:       fromSatang(discount),
			NetTotal:       fromSatang(net),
			Change:         fromSatang(change),
			RedeemedPoints: redeemed,
			EarnedPoints:   earned,
			PointsBefore:   before,
			Date:           createdAt,
		}
		if phone != "" {
			o.Member = &model.Member{Phone: phone, Name: name}
		}

		byID[id] = len(orders)
		ids = append(ids, id)
		orders = append(orders, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	if len(ids) == 0 {
		return orders, nil
	}

	itemRows, err := r.pool.Query(ctx,
		`SELECT order_id, goods_id, name, quantity, price, discount
		 FROM order_items
		 WHERE order_id = ANY($1)
		 ORDER BY order_id, position`,
		ids,
	)
	if err != nil {
		return nil, fmt.Errorf("select order items: %w", err)
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var (
			orderID         int64
			goodsID, name   string
			quantity        int
			price, discount int64
		)
		if err := itemRows.Scan(&orderID, &goodsID, &name, &quantity, &price, &discount); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}

		idx, ok := byID[orderID]
		if !ok {
			continue
		}
		orders[idx].Lines = append(orders[idx].Lines, model.OrderLine{
			ID:       goodsID,
			Name:     name,
			Quantity: quantity,
			Price:    fromSatang(price),
			Discount: fromSatang(discount),
		})
	}

	if err := itemRows.Err(); err != nil {
		return nil, fmt.Errorf("item rows error: %w", err)
	}

	return orders, nil
}

// GetDailySales возвращает выручку по дням за период для отчёта по продажам.
func (r *PostgresRepository) GetDailySales(ctx context.Context, from, to time.Time) ([]model.DailySales, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT date_trunc('day', created_at) AS day, COUNT(*), COALESCE(SUM(net_total), 0)
		 FROM orders
		 WHERE created_at >= $1 AND created_at < $2
		 GROUP BY day
		 ORDER BY day`,
		from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("select daily sales: %w", err)
	}
	defer rows.Close()

	var res []model.DailySales
	for rows.Next() {
		var (
			day     time.Time
			count   int
			revenue int64
		)
		if err := rows.Scan(&day, &count, &revenue); err != nil {
			return nil, fmt.Errorf("scan daily sales: %w", err)
		}

		res = append(res, model.DailySales{
			Date:    day,
			Orders:  count,
			Revenue: fromSatang(revenue),
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}
