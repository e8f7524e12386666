package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/voxhall/voxhall/pkg/client"
)

func newLogger() *log.Logger {
	if !verbose {
		return nil
	}
	return log.New(os.Stderr, "voxcat ", log.LstdFlags)
}

func openState(cfg TOMLConfig) (*client.State, error) {
	path, err := expandPath(cfg.State.DatabasePath)
	if err != nil {
		return nil, err
	}
	state, err := client.OpenState(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}
	return state, nil
}

func buildClient(cfg TOMLConfig, state *client.State) *client.Client {
	c := client.NewDefault(cfg.API.BaseURL, client.Config{
		ConnectTimeout:       time.Duration(cfg.Connection.ConnectTimeoutSeconds) * time.Second,
		UseMessageQueue:      cfg.Connection.UseMessageQueue,
		MessageQueueInterval: time.Duration(cfg.Connection.QueueIntervalMillis) * time.Millisecond,
		EnableVoice:          cfg.Connection.EnableVoice,
		TrackActivity:        cfg.Connection.TrackActivity,
	})
	if logger := newLogger(); logger != nil {
		c.SetLogger(logger)
	}
	if state != nil {
		c.SetStateStore(state)
	}
	return c
}

// resolveToken picks the session token: the --token flag, then the
// VOXCAT_TOKEN environment variable, then the cached token for the
// configured account.
func resolveToken(flagToken string, cfg TOMLConfig, state *client.State) (string, error) {
	if flagToken != "" {
		return flagToken, nil
	}
	if env := os.Getenv("VOXCAT_TOKEN"); env != "" {
		return env, nil
	}
	if state != nil {
		account := cfg.API.Account
		if account == "" {
			// 'voxcat login' remembers the last account here.
			account, _ = state.GetConfig("account")
		}
		if account != "" {
			token, err := state.GetToken(account)
			if err != nil {
				return "", fmt.Errorf("failed to read cached token: %w", err)
			}
			if token != "" {
				return token, nil
			}
		}
	}
	return "", fmt.Errorf("no session token; pass --token, set VOXCAT_TOKEN, or run 'voxcat login'")
}
