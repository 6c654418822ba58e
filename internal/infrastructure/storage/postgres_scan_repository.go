package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver

	"qc-scanner/internal/domain/entity"
	"qc-scanner/internal/domain/port"
)

const schema = `
create table if not exists scan_records (
  id             text primary key,
  created_at     timestamptz not null,
  status         text not null,
  product_model  text not null,
  target_present boolean not null,
  defects        jsonb not null default '[]'::jsonb,
  confidence     double precision not null,
  source_image   text not null default '',
  stored_at      timestamptz not null default now()
);
create index if not exists scan_records_created_at_idx on scan_records (created_at desc);`

// OpenPostgres открывает пул соединений через pgx и проверяет доступность БД
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db.Ping: %w", err)
	}
	return db, nil
}

// PostgresScanRepository хранит проверки в таблице scan_records
type PostgresScanRepository struct{ DB *sql.DB }

func NewPostgresScanRepository(db *sql.DB) *PostgresScanRepository {
	return &PostgresScanRepository{DB: db}
}

// EnsureSchema создаёт таблицу, если её нет
func (r *PostgresScanRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.DB.ExecContext(ctx, schema)
	return err
}

// Add: одна вставка на проверку, без транзакций между запросами.
func (r *PostgresScanRepository) Add(ctx context.Context, rec *entity.ScanRecord) error {
	defects, err := encodeDefects(rec.Defects)
	if err != nil {
		return err
	}
	const q = `
insert into scan_records (
  id, created_at, status, product_model,
  target_present, defects, confidence, source_image
) values ($1,$2,$3,$4,$5,$6,$7,$8)`
	_, err = r.DB.ExecContext(ctx, q,
		rec.ID, rec.Timestamp, string(rec.Status), rec.ProductModel,
		rec.TargetPresent, defects, rec.Confidence, rec.SourceImage,
	)
	return err
}

// History возвращает последние записи, новые первыми
func (r *PostgresScanRepository) History(ctx context.Context, limit int) ([]*entity.ScanRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `
select id, created_at, status, product_model,
       target_present, defects, confidence, source_image
from scan_records
order by created_at desc
limit $1`
	rows, err := r.DB.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*entity.ScanRecord
	for rows.Next() {
		var (
			rec     entity.ScanRecord
			status  string
			ts      time.Time
			defects []byte
		)
		if err := rows.Scan(&rec.ID, &ts, &status, &rec.ProductModel,
			&rec.TargetPresent, &defects, &rec.Confidence, &rec.SourceImage); err != nil {
			return nil, err
		}
		rec.Timestamp = ts.UTC()
		rec.Status = entity.ScanStatus(status)
		if rec.Defects, err = decodeDefects(defects); err != nil {
			return nil, fmt.Errorf("scan %s: %w", rec.ID, err)
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}

// Statistics считает агрегаты одним запросом
func (r *PostgresScanRepository) Statistics(ctx context.Context) (*entity.ScanStatistics, error) {
	const q = `
select count(*),
       coalesce(sum(case when status = 'approved' then 1 else 0 end), 0),
       coalesce(sum(case when status = 'rejected' then 1 else 0 end), 0),
       coalesce(avg(confidence), 0)
from scan_records`
	var s entity.ScanStatistics
	if err := r.DB.QueryRowContext(ctx, q).Scan(&s.Total, &s.Approved, &s.Rejected, &s.AvgConfidence); err != nil {
		return nil, err
	}
	return &s, nil
}

func encodeDefects(defects []entity.DefectFinding) (string, error) {
	if defects == nil {
		defects = []entity.DefectFinding{}
	}
	js, err := json.Marshal(defects)
	if err != nil {
		return "", fmt.Errorf("marshal defects: %w", err)
	}
	return string(js), nil
}

func decodeDefects(js []byte) ([]entity.DefectFinding, error) {
	defects := []entity.DefectFinding{}
	if len(js) == 0 {
		return defects, nil
	}
	if err := json.Unmarshal(js, &defects); err != nil {
		return nil, fmt.Errorf("unmarshal defects: %w", err)
	}
	if defects == nil {
		defects = []entity.DefectFinding{}
	}
	return defects, nil
}

var _ port.ScanRepository = (*PostgresScanRepository)(nil)
