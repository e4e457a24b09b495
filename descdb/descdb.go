// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package descdb retrieves M47 device descriptors from the configuration
// database.
//
// A descriptor is a named set of initialization values: ID PROM check,
// debug level, M47_CONTROL and M47_TRANSMODE words and path to the
// FLEXlogic bitstream.
package descdb // import "github.com/go-lpc/ssi/descdb"

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-lpc/ssi/m47"
	"github.com/go-sql-driver/mysql"
)

var (
	host = envOr("SSI_DB_HOST", "localhost")
	usr  = envOr("SSI_DB_USER", "username")
	pwd  = envOr("SSI_DB_PASS", "s3cr3t")

	drvName = "mysql"
)

// ErrNotFound is returned when no descriptor matches a query.
var ErrNotFound = errors.New("descdb: descriptor not found")

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// DB exposes convenience methods to retrieve M47 descriptors.
type DB struct {
	db   *sql.DB
	name string
}

// Open opens a connection to the configuration database dbname.
func Open(dbname string) (*DB, error) {
	db, err := sql.Open(drvName, dsn(dbname))
	if err != nil {
		return nil, fmt.Errorf("descdb: could not open %q db: %w", dbname, err)
	}

	err = ping(db, dbname)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &DB{db: db, name: dbname}, nil
}

func dsn(db string) string {
	cfg := mysql.NewConfig()
	cfg.User = usr
	cfg.Passwd = pwd
	cfg.Net = "tcp"
	cfg.Addr = host
	cfg.DBName = db
	cfg.Timeout = 5 * time.Second
	return cfg.FormatDSN()
}

func ping(db *sql.DB, dbname string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("descdb: could not ping %q db: %w", dbname, err)
	}

	return nil
}

// Close closes the connection to the database.
func (db *DB) Close() error {
	return db.db.Close()
}

// Descriptor holds the initialization values of an M47 device.
type Descriptor struct {
	Name       string
	IDCheck    bool
	DebugLevel uint32
	Control    uint32 // M47_CONTROL
	TransMode  uint32 // M47_TRANSMODE
	Bitstream  string // path to the FLEXlogic file
}

// Options returns the device options described by desc.
// The FLEXlogic bitstream is loaded from disk, if any.
func (desc Descriptor) Options() ([]m47.Option, error) {
	opts := []m47.Option{
		m47.WithIDCheck(desc.IDCheck),
		m47.WithDebugLevel(desc.DebugLevel),
		m47.WithControl(desc.Control),
		m47.WithTransMode(desc.TransMode),
	}
	if desc.Bitstream != "" {
		flex, err := m47.LoadBitstream(desc.Bitstream)
		if err != nil {
			return nil, fmt.Errorf("descdb: could not load bitstream of descriptor %q: %w", desc.Name, err)
		}
		opts = append(opts, m47.WithBitstream(flex))
	}
	return opts, nil
}

// Descriptor returns the most recent descriptor with the provided name.
func (db *DB) Descriptor(ctx context.Context, name string) (Descriptor, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var (
		desc  Descriptor
		found bool
	)
	rows, err := db.db.QueryContext(
		ctx,
		`SELECT name, id_check, debug_level, m47_control, m47_transmode, bitstream
		 FROM m47_descriptors WHERE name=? ORDER BY datetime DESC LIMIT 1`,
		name,
	)
	if err != nil {
		return desc, fmt.Errorf("descdb: could not query descriptor %q: %w", name, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			idCheck int64
			dbg     int64
			ctrl    int64
			mode    int64
			flex    sql.NullString
		)
		err = rows.Scan(&desc.Name, &idCheck, &dbg, &ctrl, &mode, &flex)
		if err != nil {
			return desc, fmt.Errorf("descdb: could not get descriptor %q values: %w", name, err)
		}
		desc.IDCheck = idCheck != 0
		desc.DebugLevel = uint32(dbg)
		desc.Control = uint32(ctrl)
		desc.TransMode = uint32(mode)
		desc.Bitstream = flex.String
		found = true
	}

	if err := rows.Err(); err != nil {
		return desc, fmt.Errorf("descdb: could not scan db for descriptor %q: %w", name, err)
	}

	if err := ctx.Err(); err != nil {
		return desc, fmt.Errorf("descdb: context error while retrieving descriptor %q: %w", name, err)
	}

	if !found {
		return desc, fmt.Errorf("descdb: no descriptor %q in db %q: %w", name, db.name, ErrNotFound)
	}

	return desc, nil
}

// Names returns the names of all descriptors, sorted.
func (db *DB) Names(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var names []string
	rows, err := db.db.QueryContext(
		ctx,
		"SELECT DISTINCT name FROM m47_descriptors ORDER BY name",
	)
	if err != nil {
		return nil, fmt.Errorf("descdb: could not query descriptor names: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		err = rows.Scan(&name)
		if err != nil {
			return nil, fmt.Errorf("descdb: could not get descriptor name: %w", err)
		}
		names = append(names, name)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("descdb: could not scan db for descriptor names: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("descdb: context error while retrieving descriptor names: %w", err)
	}

	return names, nil
}
