package client

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// State is the sqlite-backed StateStore: small bookkeeping that survives
// restarts (session tokens, the last known gateway endpoint, per-channel
// read positions). It never holds entity-cache data.
type State struct {
	db  *sql.DB
	dir string
}

// OpenState opens or creates the client state database.
func OpenState(path string) (*State, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}

	// One connection is enough for a client-local database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	state := &State{db: db, dir: dir}
	if err := state.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return state, nil
}

func (s *State) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS Config (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS Tokens (
			account TEXT PRIMARY KEY,
			token   TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS ReadState (
			channel_id TEXT PRIMARY KEY,
			message_id TEXT NOT NULL,
			updated_at INTEGER NOT NULL DEFAULT (strftime('%s','now'))
		);
	`)
	return err
}

// Close closes the state database.
func (s *State) Close() error {
	return s.db.Close()
}

// GetConfig retrieves a configuration value, "" when unset.
func (s *State) GetConfig(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM Config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// SetConfig stores a configuration value.
func (s *State) SetConfig(key, value string) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO Config (key, value) VALUES (?, ?)
	`, key, value)
	return err
}

// GetToken returns the cached session token for an account, "" when none.
func (s *State) GetToken(account string) (string, error) {
	var token string
	err := s.db.QueryRow("SELECT token FROM Tokens WHERE account = ?", account).Scan(&token)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return token, err
}

// SetToken caches the session token for an account.
func (s *State) SetToken(account, token string) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO Tokens (account, token) VALUES (?, ?)
	`, account, token)
	return err
}

// GetGatewayURL returns the last resolved gateway endpoint, "" when none.
func (s *State) GetGatewayURL() (string, error) {
	return s.GetConfig("gateway_url")
}

// SetGatewayURL stores the last resolved gateway endpoint.
func (s *State) SetGatewayURL(url string) error {
	return s.SetConfig("gateway_url", url)
}

// GetReadState returns the last acknowledged message id for a channel, ""
// when the channel was never read.
func (s *State) GetReadState(channelID string) (string, error) {
	var messageID string
	err := s.db.QueryRow("SELECT message_id FROM ReadState WHERE channel_id = ?", channelID).Scan(&messageID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return messageID, err
}

// UpdateReadState records the last acknowledged message id for a channel.
func (s *State) UpdateReadState(channelID, messageID string) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO ReadState (channel_id, message_id, updated_at)
		VALUES (?, ?, strftime('%s','now'))
	`, channelID, messageID)
	return err
}

// StateDir returns the directory holding the state database.
func (s *State) StateDir() string {
	return s.dir
}
