// Package hostlist pins message service keys on first use. A host whose
// fingerprint differs from the pinned one is refused; an unknown host is
// pinned only after the trust callback accepts it.
package hostlist

import (
	"context"
	"crypto/rsa"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pressly/goose/v3"

	"github.com/dmitrijs2005/gophgroups/internal/client/migrations"
	"github.com/dmitrijs2005/gophgroups/internal/client/repositories/hosts"
	"github.com/dmitrijs2005/gophgroups/internal/cryptox"
	"github.com/dmitrijs2005/gophgroups/internal/dbx"
	"github.com/dmitrijs2005/gophgroups/internal/session"

	_ "modernc.org/sqlite"
)

var (
	ErrHostKeyMismatch = errors.New("host key does not match pinned fingerprint")
	ErrUntrusted       = errors.New("host not trusted")
)

// TrustFunc is asked about hosts seen for the first time.
type TrustFunc func(ctx context.Context, address, fingerprint string) (bool, error)

type List struct {
	db   *sql.DB
	repo hosts.Repository
}

// RunMigrations applies the embedded SQLite schema.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	return goose.UpContext(ctx, db, ".")
}

// Open opens the SQLite host list at dsn and migrates it.
func Open(ctx context.Context, dsn string) (*List, error) {
	db, err := dbx.Open(ctx, "sqlite", dsn)
	if err != nil {
		return nil, err
	}

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &List{db: db, repo: hosts.NewSQLiteRepository(db)}, nil
}

// New builds a List over an existing repository.
func New(repo hosts.Repository) *List {
	return &List{repo: repo}
}

func (l *List) Close() error {
	if l.db == nil {
		return nil
	}
	return l.db.Close()
}

func (l *List) Pinned(ctx context.Context) (map[string]string, error) {
	return l.repo.List(ctx)
}

// Forget drops the pin for address so the next connection asks again.
func (l *List) Forget(ctx context.Context, address string) error {
	return l.repo.Delete(ctx, address)
}

// Verifier checks keys presented by the host at address.
func (l *List) Verifier(address string, trust TrustFunc) session.HostVerifier {
	return &verifier{list: l, address: address, trust: trust}
}

type verifier struct {
	list    *List
	address string
	trust   TrustFunc
}

func (v *verifier) VerifyHost(ctx context.Context, pub *rsa.PublicKey) error {
	fp, err := cryptox.Fingerprint(pub)
	if err != nil {
		return err
	}

	pinned, err := v.list.repo.Get(ctx, v.address)
	if err != nil {
		return err
	}
	if pinned != "" {
		if pinned != fp {
			return fmt.Errorf("%w: %s presented %s", ErrHostKeyMismatch, v.address, fp)
		}
		return nil
	}

	if v.trust == nil {
		return ErrUntrusted
	}
	ok, err := v.trust(ctx, v.address, fp)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUntrusted
	}
	return v.list.repo.Set(ctx, v.address, fp)
}
