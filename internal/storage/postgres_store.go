package storage

import (
	"database/sql"

	_ "github.com/lib/pq"

	"github.com/example/delivery-dispatch/internal/models"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	// quick ping
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) SaveOrder(o *models.Order) error {
	tx, err := p.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`INSERT INTO orders(id, order_number, customer_id, merchant_id, driver_id, status, subtotal, delivery_fee, service_fee, total_amount, delivery_address, delivery_lat, delivery_lon, delivery_notes, created_at)
		VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		o.ID, o.Number, o.CustomerID, o.MerchantID, nullable(o.DriverID), string(o.Status),
		o.Subtotal, o.DeliveryFee, o.ServiceFee, o.Total,
		o.DeliveryAddress, o.DeliveryLoc.Lat, o.DeliveryLoc.Lon, o.DeliveryNotes, o.CreatedAt)
	if err != nil {
		return err
	}
	for _, it := range o.Items {
		if _, err := tx.Exec(`INSERT INTO order_items(id, order_id, menu_item_id, quantity, unit_price, total_price)
			VALUES($1,$2,$3,$4,$5,$6)`,
			it.ID, o.ID, it.MenuItemID, it.Quantity, it.UnitPrice, it.TotalPrice); err != nil {
			return err
		}
	}
	for _, h := range o.History {
		if err := insertHistory(tx, o.ID, h); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (p *PostgresStore) UpdateOrder(o *models.Order) error {
	tx, err := p.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.Exec(`UPDATE orders SET status=$1, driver_id=$2 WHERE id=$3`,
		string(o.Status), nullable(o.DriverID), o.ID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	// history is append-only: persist only the newest entry
	if len(o.History) > 0 {
		if err := insertHistory(tx, o.ID, o.History[len(o.History)-1]); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (p *PostgresStore) GetOrder(id string) (*models.Order, error) {
	o := &models.Order{}
	var driverID sql.NullString
	var status string
	err := p.db.QueryRow(`SELECT id, order_number, customer_id, merchant_id, driver_id, status, subtotal, delivery_fee, service_fee, total_amount, delivery_address, delivery_lat, delivery_lon, delivery_notes, created_at
		FROM orders WHERE id=$1`, id).Scan(
		&o.ID, &o.Number, &o.CustomerID, &o.MerchantID, &driverID, &status,
		&o.Subtotal, &o.DeliveryFee, &o.ServiceFee, &o.Total,
		&o.DeliveryAddress, &o.DeliveryLoc.Lat, &o.DeliveryLoc.Lon, &o.DeliveryNotes, &o.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	o.DriverID = driverID.String
	o.Status = models.OrderStatus(status)

	rows, err := p.db.Query(`SELECT id, menu_item_id, quantity, unit_price, total_price FROM order_items WHERE order_id=$1`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var it models.OrderItem
		if err := rows.Scan(&it.ID, &it.MenuItemID, &it.Quantity, &it.UnitPrice, &it.TotalPrice); err != nil {
			return nil, err
		}
		o.Items = append(o.Items, it)
	}

	hrows, err := p.db.Query(`SELECT status, actor_id, created_at FROM order_status_history WHERE order_id=$1 ORDER BY created_at ASC`, id)
	if err != nil {
		return nil, err
	}
	defer hrows.Close()
	for hrows.Next() {
		var h models.StatusChange
		var hs string
		if err := hrows.Scan(&hs, &h.ActorID, &h.Timestamp); err != nil {
			return nil, err
		}
		h.Status = models.OrderStatus(hs)
		o.History = append(o.History, h)
	}
	return o, nil
}

func insertHistory(tx *sql.Tx, orderID string, h models.StatusChange) error {
	// UNIQUE(order_id, status, created_at) makes re-inserting the latest
	// entry a no-op on driver-assignment updates.
	_, err := tx.Exec(`INSERT INTO order_status_history(order_id, status, actor_id, created_at) VALUES($1,$2,$3,$4) ON CONFLICT DO NOTHING`,
		orderID, string(h.Status), h.ActorID, h.Timestamp)
	return err
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
