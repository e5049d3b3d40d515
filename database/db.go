package database

import (
	"database/sql"
	"log"
	"sync"

	"github.com/blnkfinance/esusu/config"
	"github.com/blnkfinance/esusu/internal/cache"
)

// Declare a package-level variable to hold the singleton instance.
// Ensure the instance is not accessible outside the package.
var instance *Datasource
var once sync.Once

type Datasource struct {
	Conn  *sql.DB
	Cache cache.Cache
}

func NewDataSource(configuration *config.Configuration) (IDataSource, error) {
	con, err := GetDBConnection(configuration)
	if err != nil {
		return nil, err
	}
	return con, nil
}

// GetDBConnection provides a global access point to the instance and initializes it if it's not already.
func GetDBConnection(configuration *config.Configuration) (*Datasource, error) {
	var err error
	once.Do(func() {
		con, errConn := ConnectDB(configuration.DataSource.Dns)
		if errConn != nil {
			err = errConn
			return
		}
		newCache, errCache := cache.NewCache()
		if errCache != nil {
			// Reads fall through to the database when the cache is unavailable.
			log.Printf("cache unavailable, continuing without it: %v", errCache)
		}
		instance = &Datasource{Conn: con, Cache: newCache}
	})
	if err != nil {
		return nil, err
	}
	return instance, nil
}

func ConnectDB(dns string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dns)
	if err != nil {
		return nil, err
	}
	err = db.Ping()
	if err != nil {
		log.Printf("database Connection error ❌: %v", err)
		return nil, err
	}
	err = createCircleTable(db)
	if err != nil {
		return nil, err
	}
	err = createMemberTable(db)
	if err != nil {
		return nil, err
	}
	err = createBorrowRequestTable(db)
	if err != nil {
		return nil, err
	}
	err = createTransactionTable(db)
	if err != nil {
		return nil, err
	}
	return db, nil
}

// createCircleTable creates the circles table in the esusu schema.
func createCircleTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE SCHEMA IF NOT EXISTS esusu;
		CREATE TABLE IF NOT EXISTS esusu.circles (
			id SERIAL PRIMARY KEY,
			circle_id TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			total_amount NUMERIC NOT NULL,
			contribution_amount NUMERIC NOT NULL,
			duration_days INTEGER NOT NULL,
			interest_rate NUMERIC NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			meta_data JSONB,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	return err
}

// createMemberTable creates the members table; an address joins a circle once.
func createMemberTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS esusu.members (
			id SERIAL PRIMARY KEY,
			circle_id TEXT NOT NULL REFERENCES esusu.circles(circle_id),
			address TEXT NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			contributions_made INTEGER NOT NULL DEFAULT 0,
			total_contributed NUMERIC NOT NULL DEFAULT 0,
			has_active_loan BOOLEAN NOT NULL DEFAULT FALSE,
			joined_at TIMESTAMP NOT NULL DEFAULT NOW(),
			UNIQUE (circle_id, address)
		)
	`)
	return err
}

// createBorrowRequestTable creates the borrow_requests table.
func createBorrowRequestTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS esusu.borrow_requests (
			id SERIAL PRIMARY KEY,
			request_id TEXT NOT NULL UNIQUE,
			circle_id TEXT NOT NULL REFERENCES esusu.circles(circle_id),
			borrower_address TEXT NOT NULL,
			amount NUMERIC NOT NULL,
			reason TEXT NOT NULL,
			duration_days INTEGER NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			rejection_reason TEXT NOT NULL DEFAULT '',
			requested_at TIMESTAMP NOT NULL DEFAULT NOW(),
			approved_at TIMESTAMP,
			repaid_at TIMESTAMP
		)
	`)
	return err
}

// createTransactionTable creates the append-only transaction log.
func createTransactionTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS esusu.transactions (
			id SERIAL PRIMARY KEY,
			transaction_id TEXT NOT NULL UNIQUE,
			hash TEXT NOT NULL,
			type TEXT NOT NULL,
			amount NUMERIC NOT NULL,
			source TEXT NOT NULL,
			destination TEXT NOT NULL,
			circle_id TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	return err
}
