package history

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLConfig 描述 MySQL 连接参数。
type MySQLConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// MySQLRepository 把对话记录持久化到 MySQL。
type MySQLRepository struct {
	db *sql.DB
}

const createTableStatement = `CREATE TABLE IF NOT EXISTS conversation_turns (
	id VARCHAR(64) NOT NULL,
	session_key VARCHAR(191) NOT NULL,
	utterance TEXT NOT NULL,
	reply TEXT NOT NULL,
	intent_kind VARCHAR(32) NOT NULL DEFAULT '',
	outcome VARCHAR(32) NOT NULL,
	created_at BIGINT NOT NULL,
	PRIMARY KEY (id),
	KEY idx_session_created (session_key, created_at)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`

// NewMySQLRepository 建立连接池并执行建表迁移。
func NewMySQLRepository(ctx context.Context, cfg MySQLConfig) (*MySQLRepository, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("MySQL DSN 不能为空")
	}
	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("连接 MySQL 失败: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	} else {
		db.SetMaxOpenConns(20)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	} else {
		db.SetMaxIdleConns(10)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	} else {
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("MySQL 连接检测失败: %w", err)
	}
	if _, err := db.ExecContext(ctx, createTableStatement); err != nil {
		db.Close()
		return nil, fmt.Errorf("初始化对话记录表失败: %w", err)
	}
	return &MySQLRepository{db: db}, nil
}

// Save 写入一条对话记录。
func (r *MySQLRepository) Save(ctx context.Context, record Record) error {
	const query = `INSERT INTO conversation_turns
(id, session_key, utterance, reply, intent_kind, outcome, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		record.ID,
		record.SessionKey,
		record.Utterance,
		record.Reply,
		record.IntentKind,
		record.Outcome,
		record.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("保存对话记录失败: %w", err)
	}
	return nil
}

// ListRecent 按时间升序返回指定会话最近的 limit 条记录。
func (r *MySQLRepository) ListRecent(ctx context.Context, sessionKey string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 10
	}
	const query = `SELECT id, session_key, utterance, reply, intent_kind, outcome, created_at
FROM conversation_turns
WHERE session_key = ?
ORDER BY created_at DESC
LIMIT ?`
	rows, err := r.db.QueryContext(ctx, query, sessionKey, limit)
	if err != nil {
		return nil, fmt.Errorf("查询对话记录失败: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var record Record
		var createdAt int64
		if err := rows.Scan(
			&record.ID,
			&record.SessionKey,
			&record.Utterance,
			&record.Reply,
			&record.IntentKind,
			&record.Outcome,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("解析对话记录失败: %w", err)
		}
		record.CreatedAt = time.Unix(createdAt, 0)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("遍历对话记录失败: %w", err)
	}
	// 查询按时间倒序取最近 N 条，返回前翻转为升序。
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	return records, nil
}

// Close 释放连接池。
func (r *MySQLRepository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

var _ Repository = (*MySQLRepository)(nil)
