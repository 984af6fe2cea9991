package health

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type DBChecker struct {
	db *gorm.DB
}

func NewDBChecker(db *gorm.DB) Checker {
	if db == nil {
		return nil
	}
	return &DBChecker{db: db}
}

func (c *DBChecker) Check(ctx context.Context) CheckResult {
	res := CheckResult{Name: "db", Healthy: true}
	sqlDB, err := c.db.DB()
	if err != nil {
		res.Healthy = false
		res.Error = err.Error()
		return res
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		res.Healthy = false
		res.Error = err.Error()
	}
	return res
}

// requiredTables lists every table the service depends on together with the
// columns the auth flows read or write.
var requiredTables = map[string][]string{
	"users": {
		"id", "email", "password_hash", "email_verified",
		"failed_login_attempts", "last_failed_login_at", "last_login_at",
	},
	"refresh_tokens":            {"id", "user_id", "token_hash", "expires_at"},
	"password_reset_tokens":     {"id", "user_id", "token_hash", "expires_at"},
	"email_verification_tokens": {"id", "user_id", "token_hash", "expires_at"},
}

type TableStatus struct {
	Name           string   `json:"name"`
	Present        bool     `json:"present"`
	MissingColumns []string `json:"missing_columns,omitempty"`
}

// SchemaChecker verifies the live database matches the expected schema.
type SchemaChecker struct {
	db     *gorm.DB
	schema string
}

func NewSchemaChecker(db *gorm.DB, schema string) *SchemaChecker {
	if db == nil {
		return nil
	}
	if schema == "" {
		schema = "public"
	}
	return &SchemaChecker{db: db, schema: schema}
}

func (c *SchemaChecker) Schema() string {
	if c == nil {
		return ""
	}
	return c.schema
}

// Report inspects every required table and column via the gorm migrator.
func (c *SchemaChecker) Report(ctx context.Context) (bool, []TableStatus) {
	migrator := c.db.WithContext(ctx).Migrator()
	names := make([]string, 0, len(requiredTables))
	for name := range requiredTables {
		names = append(names, name)
	}
	sort.Strings(names)

	ok := true
	statuses := make([]TableStatus, 0, len(names))
	for _, name := range names {
		st := TableStatus{Name: name, Present: migrator.HasTable(name)}
		if !st.Present {
			ok = false
			statuses = append(statuses, st)
			continue
		}
		for _, col := range requiredTables[name] {
			if !migrator.HasColumn(name, col) {
				st.MissingColumns = append(st.MissingColumns, col)
			}
		}
		if len(st.MissingColumns) > 0 {
			ok = false
		}
		statuses = append(statuses, st)
	}
	return ok, statuses
}

func (c *SchemaChecker) Check(ctx context.Context) CheckResult {
	res := CheckResult{Name: "schema", Healthy: true}
	ok, statuses := c.Report(ctx)
	if ok {
		return res
	}
	res.Healthy = false
	var problems []string
	for _, st := range statuses {
		if !st.Present {
			problems = append(problems, fmt.Sprintf("table %s missing", st.Name))
			continue
		}
		if len(st.MissingColumns) > 0 {
			problems = append(problems, fmt.Sprintf("table %s missing columns %s", st.Name, strings.Join(st.MissingColumns, ",")))
		}
	}
	res.Error = strings.Join(problems, "; ")
	return res
}

type RedisChecker struct {
	client redis.UniversalClient
}

func NewRedisChecker(client redis.UniversalClient) Checker {
	if client == nil {
		return nil
	}
	return &RedisChecker{client: client}
}

func (c *RedisChecker) Check(ctx context.Context) CheckResult {
	res := CheckResult{Name: "redis", Healthy: true}
	if err := c.client.Ping(ctx).Err(); err != nil {
		res.Healthy = false
		res.Error = err.Error()
	}
	return res
}
