package relational

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sync"

	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrations embed.FS

// goose keeps its dialect and base FS in package state.
var gooseMu sync.Mutex

type dialect struct {
	goose string
	dir   string
}

var (
	dialectSQLite   = dialect{goose: "sqlite3", dir: "migrations/sqlite"}
	dialectPostgres = dialect{goose: "postgres", dir: "migrations/postgres"}
)

func (s *UserStore) migrate(ctx context.Context) error {
	sub, err := fs.Sub(migrations, s.dialect.dir)
	if err != nil {
		return fmt.Errorf("migrations dir: %w", err)
	}

	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(sub)
	defer goose.SetBaseFS(nil)
	goose.SetLogger(gooseLogger{s.logger})
	if err := goose.SetDialect(s.dialect.goose); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, s.db.DB, "."); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// gooseLogger routes goose output to debug level.
type gooseLogger struct {
	l logrus.FieldLogger
}

func (g gooseLogger) Printf(format string, v ...any) {
	g.l.Debugf(format, v...)
}

func (g gooseLogger) Fatalf(format string, v ...any) {
	g.l.Errorf(format, v...)
}
