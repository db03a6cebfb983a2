package device

import (
	"database/sql"
	"errors"
	"fmt"
	"os"

	"github.com/lib/pq"
	"github.com/weberc2/sanicfs/pkg/types"
)

// Postgres stores images in two tables: one row of geometry per volume and
// one row per block that has ever been written. Blocks without a row read
// back as zeroes, so creating a volume costs one insert.
type Postgres struct {
	DB       *sql.DB
	geometry Geometry
	volume   string
}

func NewPostgres(db *sql.DB, geometry Geometry) *Postgres {
	return &Postgres{DB: db, geometry: geometry}
}

// OpenEnv connects using the `PG_*` environment variables.
func OpenEnv() (*sql.DB, error) {
	db, err := sql.Open(
		"postgres",
		fmt.Sprintf(
			"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			getEnv("PG_HOST", "localhost"),
			getEnv("PG_PORT", "5432"),
			getEnv("PG_USER", "postgres"),
			getEnv("PG_PASS", ""),
			getEnv("PG_DB_NAME", "postgres"),
			getEnv("PG_SSL_MODE", "disable"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("opening postgres database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgres database: %w", err)
	}
	return db, nil
}

func getEnv(env, def string) string {
	x := os.Getenv(env)
	if x == "" {
		return def
	}
	return x
}

func (pg *Postgres) EnsureTables() error {
	if _, err := pg.DB.Exec(
		"CREATE TABLE IF NOT EXISTS sanicfs_volumes (" +
			"volume TEXT NOT NULL PRIMARY KEY, " +
			"block_size INTEGER NOT NULL, " +
			"blocks INTEGER NOT NULL)",
	); err != nil {
		return fmt.Errorf("creating `sanicfs_volumes` table: %w", pgErr(err))
	}
	if _, err := pg.DB.Exec(
		"CREATE TABLE IF NOT EXISTS sanicfs_blocks (" +
			"volume TEXT NOT NULL REFERENCES sanicfs_volumes (volume) " +
			"ON DELETE CASCADE, " +
			"idx INTEGER NOT NULL, " +
			"data BYTEA NOT NULL, " +
			"PRIMARY KEY (volume, idx))",
	); err != nil {
		return fmt.Errorf("creating `sanicfs_blocks` table: %w", pgErr(err))
	}
	return nil
}

func (pg *Postgres) DropTables() error {
	if _, err := pg.DB.Exec(
		"DROP TABLE IF EXISTS sanicfs_blocks, sanicfs_volumes",
	); err != nil {
		return fmt.Errorf("dropping sanicfs tables: %w", pgErr(err))
	}
	return nil
}

func (pg *Postgres) Geometry() Geometry { return pg.geometry }

func (pg *Postgres) Create(name string) error {
	if err := pg.geometry.Validate(); err != nil {
		return types.NewDeviceErr("create", err)
	}
	if pg.volume != "" {
		return types.NewDeviceErr(
			"create",
			fmt.Errorf("volume `%s` is still open", pg.volume),
		)
	}
	tx, err := pg.DB.Begin()
	if err != nil {
		return types.NewDeviceErr("create", pgErr(err))
	}
	if _, err := tx.Exec(
		"DELETE FROM sanicfs_volumes WHERE volume = $1",
		name,
	); err != nil {
		tx.Rollback()
		return types.NewDeviceErr(
			"create",
			fmt.Errorf("wiping volume `%s`: %w", name, pgErr(err)),
		)
	}
	if _, err := tx.Exec(
		"INSERT INTO sanicfs_volumes (volume, block_size, blocks) "+
			"VALUES ($1, $2, $3)",
		name,
		pg.geometry.BlockSize,
		pg.geometry.Blocks,
	); err != nil {
		tx.Rollback()
		return types.NewDeviceErr(
			"create",
			fmt.Errorf("inserting volume `%s`: %w", name, pgErr(err)),
		)
	}
	if err := tx.Commit(); err != nil {
		return types.NewDeviceErr("create", pgErr(err))
	}
	pg.volume = name
	return nil
}

func (pg *Postgres) Open(name string) error {
	if pg.volume != "" {
		return types.NewDeviceErr(
			"open",
			fmt.Errorf("volume `%s` is still open", pg.volume),
		)
	}
	var found Geometry
	if err := pg.DB.QueryRow(
		"SELECT block_size, blocks FROM sanicfs_volumes WHERE volume = $1",
		name,
	).Scan(&found.BlockSize, &found.Blocks); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = types.ErrVolumeNotFound
		}
		return types.NewDeviceErr(
			"open",
			fmt.Errorf("looking up volume `%s`: %w", name, pgErr(err)),
		)
	}
	if found != pg.geometry {
		return types.NewDeviceErr(
			"open",
			fmt.Errorf(
				"volume `%s` has geometry `%+v`; wanted `%+v`: %w",
				name,
				found,
				pg.geometry,
				types.ErrInvalidGeometry,
			),
		)
	}
	pg.volume = name
	return nil
}

func (pg *Postgres) Close() error {
	if pg.volume == "" {
		return types.NewDeviceErr("close", errNotOpen)
	}
	pg.volume = ""
	return nil
}

func (pg *Postgres) ReadBlock(index types.Block, p []byte) error {
	if pg.volume == "" {
		return &types.DeviceErr{Op: "read", Block: index, Err: errNotOpen}
	}
	if err := checkTransfer(pg.geometry, "read", index, p); err != nil {
		return err
	}
	var data []byte
	if err := pg.DB.QueryRow(
		"SELECT data FROM sanicfs_blocks WHERE volume = $1 AND idx = $2",
		pg.volume,
		index,
	).Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			for i := range p {
				p[i] = 0
			}
			return nil
		}
		return &types.DeviceErr{Op: "read", Block: index, Err: pgErr(err)}
	}
	if len(data) != len(p) {
		return &types.DeviceErr{
			Op:    "read",
			Block: index,
			Err: fmt.Errorf(
				"stored block is `%d` bytes; wanted `%d`",
				len(data),
				len(p),
			),
		}
	}
	copy(p, data)
	return nil
}

func (pg *Postgres) WriteBlock(index types.Block, p []byte) error {
	if pg.volume == "" {
		return &types.DeviceErr{Op: "write", Block: index, Err: errNotOpen}
	}
	if err := checkTransfer(pg.geometry, "write", index, p); err != nil {
		return err
	}
	if _, err := pg.DB.Exec(
		"INSERT INTO sanicfs_blocks (volume, idx, data) VALUES ($1, $2, $3) "+
			"ON CONFLICT (volume, idx) DO UPDATE SET data = EXCLUDED.data",
		pg.volume,
		index,
		p,
	); err != nil {
		return &types.DeviceErr{Op: "write", Block: index, Err: pgErr(err)}
	}
	return nil
}

// pgErr annotates postgres errors with their condition name.
func pgErr(err error) error {
	var e *pq.Error
	if errors.As(err, &e) {
		return fmt.Errorf("postgres `%s` (%s): %w", e.Code, e.Code.Name(), err)
	}
	return err
}
