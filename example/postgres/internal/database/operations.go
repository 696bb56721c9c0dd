package database

import (
	"context"

	"github.com/kroma-labs/sentinel-conn/conn"
)

// User represents a user in the database
type User struct {
	ID    int    `db:"id"`
	Name  string `db:"name"`
	Email string `db:"email"`
}

// CreateTable creates the users table if it doesn't exist
func (db *DB) CreateTable(ctx context.Context) error {
	return db.BatchExecute(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id SERIAL PRIMARY KEY,
			name VARCHAR(100),
			email VARCHAR(100) UNIQUE
		)
	`)
}

// InsertUsers inserts sample users
func (db *DB) InsertUsers(ctx context.Context) error {
	users := []User{
		{Name: "Alice", Email: "alice@example.com"},
		{Name: "Bob", Email: "bob@example.com"},
		{Name: "Charlie", Email: "charlie@example.com"},
	}

	var inserted int64
	for _, user := range users {
		n, err := db.ExecuteReturningCount(
			ctx,
			"INSERT INTO users (name, email) VALUES ($1, $2) ON CONFLICT DO NOTHING",
			user.Name,
			user.Email,
		)
		if err != nil {
			return err
		}
		inserted += n
	}

	db.log.Info().Int64("rows", inserted).Msg("inserted users")
	return nil
}

// QueryUsers loads users into a slice
func (db *DB) QueryUsers(ctx context.Context) error {
	var users []User
	if err := conn.LoadAll(ctx, db, &users, "SELECT id, name, email FROM users LIMIT 10"); err != nil {
		return err
	}
	db.log.Info().Int("count", len(users)).Msg("queried users")
	return nil
}

// InsertWithTransaction inserts and reads back a user in one transaction.
// The BEGIN/COMMIT statements show up as children of the transaction span.
func (db *DB) InsertWithTransaction(ctx context.Context) error {
	user, err := conn.Transact(ctx, db, func(ctx context.Context, tx conn.Connection) (User, error) {
		_, err := tx.ExecuteReturningCount(ctx,
			"INSERT INTO users (name, email) VALUES ($1, $2) ON CONFLICT DO NOTHING",
			"Transaction User",
			"tx@example.com",
		)
		if err != nil {
			return User{}, err
		}

		var users []User
		err = conn.LoadAll(ctx, tx, &users,
			"SELECT id, name, email FROM users WHERE email = $1",
			"tx@example.com",
		)
		if err != nil || len(users) == 0 {
			return User{}, err
		}
		return users[0], nil
	})
	if err != nil {
		return err
	}

	db.log.Info().Str("name", user.Name).Str("email", user.Email).Msg("transaction committed")
	return nil
}

// Report runs a read-only serializable transaction
func (db *DB) Report(ctx context.Context) error {
	return db.BuildTransaction().
		Serializable().
		ReadOnly().
		Deferrable().
		Run(ctx, func(ctx context.Context, tx conn.Connection) error {
			var counts []int64
			if err := conn.LoadAll(ctx, tx, &counts, "SELECT count(*) FROM users"); err != nil {
				return err
			}
			db.log.Info().Int64("users", counts[0]).Msg("report")
			return nil
		})
}
