package provider

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/vku/taskchat/internal/config"
	"github.com/vku/taskchat/internal/models"
)

// tunnelNets hands out unique driver network names, one per MySQLStore, so
// independent stores can register independent dialers.
var tunnelNets atomic.Int64

// MySQLStore is the Provider implementation backed by the job-management
// MySQL database, optionally reached through an SSH tunnel.
type MySQLStore struct {
	db     *sql.DB
	tunnel *sshTunnel
}

// NewMySQLStore connects to the configured database. When the tunnel is
// enabled, connections are dialed through the SSH host with a direct-dial
// fallback.
func NewMySQLStore(cfg config.MySQLConfig) (*MySQLStore, error) {
	addr := net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", cfg.Port))

	dsn := mysql.Config{
		User:                 cfg.User,
		Passwd:               cfg.Password,
		Net:                  "tcp",
		Addr:                 addr,
		DBName:               cfg.Database,
		ParseTime:            true,
		Timeout:              5 * time.Second,
		AllowNativePasswords: true,
	}

	var tun *sshTunnel
	if cfg.Tunnel.Enabled {
		tun = newSSHTunnel(cfg.Tunnel.Host, cfg.Tunnel.Port, cfg.Tunnel.User, cfg.Tunnel.KeyPath, addr)
		netName := fmt.Sprintf("taskchat+ssh-%d", tunnelNets.Add(1))
		mysql.RegisterDialContext(netName, tun.DialContext)
		dsn.Net = netName
	}

	db, err := sql.Open("mysql", dsn.FormatDSN())
	if err != nil {
		if tun != nil {
			tun.Close()
		}
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &MySQLStore{db: db, tunnel: tun}, nil
}

// Close releases the connection pool and the tunnel.
func (s *MySQLStore) Close() error {
	err := s.db.Close()
	if s.tunnel != nil {
		if terr := s.tunnel.Close(); err == nil {
			err = terr
		}
	}
	return err
}

// Ping checks the database connection is alive.
func (s *MySQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Roles returns the role names assigned to a user.
func (s *MySQLStore) Roles(ctx context.Context, userID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT r.name FROM roles r
		 JOIN user_roles ur ON r.id = ur.role_id
		 WHERE ur.user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: query roles: %v", ErrDataUnavailable, err)
	}
	defer rows.Close()

	var roles []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("%w: scan role: %v", ErrDataUnavailable, err)
		}
		roles = append(roles, name)
	}
	return roles, rows.Err()
}

// Tasks returns task records, all of them in admin mode.
func (s *MySQLStore) Tasks(ctx context.Context, userID int64, isAdmin bool) ([]models.Task, error) {
	// deadline is a DATE column; format it in SQL so both stores yield the
	// same column types to scanTasks.
	query := `SELECT t.id, t.createddate, t.title, t.description, t.status,
	                 DATE_FORMAT(t.deadline, '%Y-%m-%d'), t.user_id, t.allow_user_update, up.full_name
	          FROM tasks t
	          JOIN users u ON t.user_id = u.id
	          JOIN user_profiles up ON u.profile_id = up.id`

	var (
		rows *sql.Rows
		err  error
	)
	if isAdmin {
		rows, err = s.db.QueryContext(ctx, query+` ORDER BY t.id`)
	} else {
		rows, err = s.db.QueryContext(ctx, query+` WHERE u.id = ? ORDER BY t.id`, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: query tasks: %v", ErrDataUnavailable, err)
	}
	defer rows.Close()

	return scanTasks(rows)
}

var _ Provider = (*MySQLStore)(nil)
var _ Provider = (*SQLiteStore)(nil)
