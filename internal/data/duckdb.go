package data

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/walachey/magicmarket-sub000/internal/model"
	"github.com/walachey/magicmarket-sub000/internal/utility/fixed"
)

// Archive reads ticks from a duckdb database holding one <pair>_ticks table
// per instrument with ts, bid and ask columns.
type Archive struct {
	dataSourceName string
	db             *sql.DB
}

func NewArchive(dataSourceName string) *Archive {
	return &Archive{dataSourceName: dataSourceName}
}

func (a *Archive) Connect() error {
	db, err := sql.Open("duckdb", a.dataSourceName)
	if err != nil {
		return fmt.Errorf("unable to open archive %q: %w", a.dataSourceName, err)
	}
	a.db = db
	return nil
}

func (a *Archive) Close() {
	_ = a.db.Close()
}

// LoadTicks streams the pair's ticks in the half-open period [from, to]
// through handler, in timestamp order. A handler error aborts the scan.
func (a *Archive) LoadTicks(ctx context.Context, pair string, from, to time.Time, handler func(model.Tick) error) error {
	query := fmt.Sprintf(`SELECT ts, bid, ask FROM %s_ticks WHERE ts BETWEEN ? AND ? ORDER BY ts`, pair)

	rows, err := a.db.QueryContext(ctx, query, from, to)
	if err != nil {
		return fmt.Errorf("unable to query archive: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			ts       time.Time
			bid, ask float64
		)
		if err := rows.Scan(&ts, &bid, &ask); err != nil {
			return fmt.Errorf("unable to scan tick row: %w", err)
		}
		tick := model.Tick{
			Time: ts.UTC(),
			Bid:  fixed.FromFloat64(bid),
			Ask:  fixed.FromFloat64(ask),
		}
		if err := handler(tick); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("unable to scan archive: %w", err)
	}
	return nil
}
