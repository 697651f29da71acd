package provider

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vku/taskchat/internal/models"
	_ "modernc.org/sqlite"
)

// SQLiteStore is the embedded Provider implementation. It owns its schema
// and is the default for local deployments and tests.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at path and runs
// migrations.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// Open with WAL mode for better concurrency
	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping checks the database connection is alive.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate runs idempotent schema migrations. The schema mirrors the
// job-management service tables the gateway reads in production.
func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS user_profiles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		full_name TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		profile_id INTEGER NOT NULL,
		FOREIGN KEY (profile_id) REFERENCES user_profiles(id)
	);

	CREATE TABLE IF NOT EXISTS roles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE
	);

	CREATE TABLE IF NOT EXISTS user_roles (
		user_id INTEGER NOT NULL,
		role_id INTEGER NOT NULL,
		PRIMARY KEY (user_id, role_id),
		FOREIGN KEY (user_id) REFERENCES users(id),
		FOREIGN KEY (role_id) REFERENCES roles(id)
	);

	CREATE TABLE IF NOT EXISTS tasks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		createddate DATETIME NOT NULL,
		title TEXT NOT NULL,
		description TEXT,
		status TEXT NOT NULL DEFAULT 'OPEN',
		deadline TEXT,
		user_id INTEGER NOT NULL,
		allow_user_update INTEGER NOT NULL DEFAULT 0,
		FOREIGN KEY (user_id) REFERENCES users(id)
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_user_id ON tasks(user_id);
	CREATE INDEX IF NOT EXISTS idx_user_roles_user_id ON user_roles(user_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Roles returns the role names assigned to a user.
func (s *SQLiteStore) Roles(ctx context.Context, userID int64) ([]string, error) {
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
func (s *SQLiteStore) Tasks(ctx context.Context, userID int64, isAdmin bool) ([]models.Task, error) {
	query := `SELECT t.id, t.createddate, t.title, t.description, t.status,
	                 t.deadline, t.user_id, t.allow_user_update, up.full_name
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

// scanTasks converts task rows into models. Shared with the MySQL store,
// whose query yields the same column list.
func scanTasks(rows *sql.Rows) ([]models.Task, error) {
	var tasks []models.Task
	for rows.Next() {
		var (
			task        models.Task
			description sql.NullString
			deadline    sql.NullString
			status      string
			fullName    sql.NullString
		)
		if err := rows.Scan(&task.ID, &task.CreatedAt, &task.Title, &description,
			&status, &deadline, &task.AssignedUserID, &task.AllowUserUpdate, &fullName); err != nil {
			return nil, fmt.Errorf("%w: scan task: %v", ErrDataUnavailable, err)
		}
		task.Description = description.String
		task.Deadline = deadline.String
		task.Status = models.TaskStatus(status)
		task.AssignedFullName = fullName.String
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// --- Seeding helpers (used by the task CLI and tests) ---

// EnsureUser creates or updates a user with the given profile and roles.
func (s *SQLiteStore) EnsureUser(ctx context.Context, userID int64, username, fullName string, roles ...string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var profileID int64
	err = tx.QueryRowContext(ctx, `SELECT profile_id FROM users WHERE id = ?`, userID).Scan(&profileID)
	switch {
	case err == sql.ErrNoRows:
		res, err := tx.ExecContext(ctx, `INSERT INTO user_profiles (full_name) VALUES (?)`, fullName)
		if err != nil {
			return fmt.Errorf("insert profile: %w", err)
		}
		profileID, _ = res.LastInsertId()
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO users (id, username, profile_id) VALUES (?, ?, ?)`,
			userID, username, profileID); err != nil {
			return fmt.Errorf("insert user: %w", err)
		}
	case err != nil:
		return fmt.Errorf("lookup user: %w", err)
	default:
		if _, err := tx.ExecContext(ctx,
			`UPDATE user_profiles SET full_name = ? WHERE id = ?`, fullName, profileID); err != nil {
			return fmt.Errorf("update profile: %w", err)
		}
	}

	for _, role := range roles {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO roles (name) VALUES (?)`, role); err != nil {
			return fmt.Errorf("insert role: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO user_roles (user_id, role_id)
			 SELECT ?, id FROM roles WHERE name = ?`, userID, role); err != nil {
			return fmt.Errorf("assign role: %w", err)
		}
	}

	return tx.Commit()
}

// CreateTask inserts a task assigned to userID and returns its id.
func (s *SQLiteStore) CreateTask(ctx context.Context, userID int64, title, description string, status models.TaskStatus, deadline string, allowUserUpdate bool) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (createddate, title, description, status, deadline, user_id, allow_user_update)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		time.Now().UTC(), title, description, string(status), deadline, userID, allowUserUpdate)
	if err != nil {
		return 0, fmt.Errorf("insert task: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("task id: %w", err)
	}
	return id, nil
}
