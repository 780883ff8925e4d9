package config

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	internal "github.com/pinio-labs/pinioscan/src/internal"

	_ "github.com/go-sql-driver/mysql"
)

// ScanRecord scans 表中的一行归档记录
type ScanRecord struct {
	Address       string
	Name          string
	Symbol        string
	Score         int
	RiskLevel     string
	ReportJSON    string
	AttestationTx string
	CreatedAt     time.Time
}

// InitDB 初始化 MySQL 连接池并 ping 验证。归档是可选能力：
// 缓存负责报告回放，账本合约才是历史的权威来源。
func InitDB(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("InitDB: empty DSN")
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("InitDB: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("InitDB ping failed: %w", err)
	}

	return db, nil
}

// SaveScan 保存/更新一次扫描结果到 scans 表
func SaveScan(ctx context.Context, db *sql.DB, report *internal.PinioscanReport) error {
	if db == nil {
		return fmt.Errorf("SaveScan: db is nil")
	}
	if report == nil {
		return fmt.Errorf("SaveScan: report is nil")
	}

	reportJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("SaveScan: marshal report failed: %w", err)
	}

	query := `
	INSERT INTO scans (address, name, symbol, score, risklevel, report, attestationtx, createdat)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON DUPLICATE KEY UPDATE
		name = VALUES(name),
		symbol = VALUES(symbol),
		score = VALUES(score),
		risklevel = VALUES(risklevel),
		report = VALUES(report),
		attestationtx = VALUES(attestationtx),
		createdat = VALUES(createdat)
	`

	_, err = db.ExecContext(ctx, query,
		report.Token.Address,
		report.Token.Name,
		report.Token.Symbol,
		report.OverallScore,
		report.RiskLevel,
		string(reportJSON),
		report.AttestationTx,
		time.UnixMilli(report.Timestamp),
	)
	return err
}

// ScanArchive *sql.DB 上的归档访问器，同时服务写入与历史查询
type ScanArchive struct {
	db *sql.DB
}

// NewScanArchive 包装一个已初始化的连接池
func NewScanArchive(db *sql.DB) *ScanArchive {
	return &ScanArchive{db: db}
}

// SaveScan 归档一份报告
func (a *ScanArchive) SaveScan(ctx context.Context, report *internal.PinioscanReport) error {
	return SaveScan(ctx, a.db, report)
}

// RecentScans 最近的归档记录
func (a *ScanArchive) RecentScans(ctx context.Context, limit int) ([]ScanRecord, error) {
	return GetRecentScans(ctx, a.db, limit)
}

// GetRecentScans 按时间倒序读取最近的归档记录，limit<=0 默认 50
func GetRecentScans(ctx context.Context, db *sql.DB, limit int) ([]ScanRecord, error) {
	if db == nil {
		return nil, fmt.Errorf("GetRecentScans: db is nil")
	}
	if limit <= 0 {
		limit = 50
	}

	query := fmt.Sprintf("SELECT address, name, symbol, score, risklevel, report, attestationtx, createdat FROM scans ORDER BY createdat DESC LIMIT %d", limit)
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ScanRecord
	for rows.Next() {
		var r ScanRecord
		var attTx sql.NullString
		if err := rows.Scan(&r.Address, &r.Name, &r.Symbol, &r.Score, &r.RiskLevel, &r.ReportJSON, &attTx, &r.CreatedAt); err != nil {
			return nil, err
		}
		if attTx.Valid {
			r.AttestationTx = attTx.String
		}
		out = append(out, r)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
