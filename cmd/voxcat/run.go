package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/voxhall/voxhall/pkg/cache"
	"github.com/voxhall/voxhall/pkg/client"
)

var (
	runToken string
	runEcho  bool
)

func init() {
	runCmd.Flags().StringVar(&runToken, "token", "", "Session token (overrides config and cache)")
	runCmd.Flags().BoolVar(&runEcho, "echo", false, "Reply to every incoming message with its own text")
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Connect and follow the event stream until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadRunConfig()
		if err != nil {
			return err
		}
		state, err := openState(cfg)
		if err != nil {
			return err
		}
		defer state.Close()

		token, err := resolveToken(runToken, cfg, state)
		if err != nil {
			return err
		}

		c := buildClient(cfg, state)
		registerPrinters(c)
		if runEcho {
			registerEcho(c)
		}

		if cfg.Metrics.Enabled {
			go serveMetrics(cfg.Metrics.ListenAddr)
		}

		if err := c.Connect(token); err != nil {
			return fmt.Errorf("connect failed: %w", err)
		}
		defer c.Disconnect()

		if me := c.CurrentUser(); me != nil {
			_, servers, channels, _, _, _ := c.Cache().Counts()
			fmt.Printf("Connected as %s#%s (%d servers, %d channels)\n",
				me.Name, me.Discriminator, servers, channels)
		}

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh
		fmt.Println("\nDisconnecting")
		return nil
	},
}

// registerPrinters wires stdout reporting for the interesting events.
func registerPrinters(c *client.Client) {
	c.OnDisconnected(func(err error) {
		if err != nil {
			fmt.Printf("!! disconnected: %v\n", err)
		}
	})

	c.OnMessageCreated(func(m *cache.Message) {
		fmt.Printf("[%s] %s: %s\n",
			channelLabel(c, m.ChannelID), userLabel(c, m.AuthorID), m.Text)
	})
	c.OnMessageUpdated(func(m *cache.Message) {
		fmt.Printf("[%s] %s (edited): %s\n",
			channelLabel(c, m.ChannelID), userLabel(c, m.AuthorID), m.Text)
	})
	c.OnMessageSent(func(m *cache.Message) {
		if m.Failed {
			fmt.Printf("!! send rejected in [%s]: %s\n", channelLabel(c, m.ChannelID), m.Text)
		}
	})

	c.OnMemberJoined(func(m *cache.Member) {
		fmt.Printf("-> %s joined %s\n", userLabel(c, m.UserID), serverLabel(c, m.ServerID))
	})
	c.OnMemberLeft(func(m *cache.Member) {
		fmt.Printf("<- %s left %s\n", userLabel(c, m.UserID), serverLabel(c, m.ServerID))
	})

	c.OnServerCreated(func(s *cache.Server) {
		fmt.Printf("++ joined server %s\n", s.Name)
	})
	c.OnServerDestroyed(func(s *cache.Server) {
		fmt.Printf("-- removed from server %s\n", s.Name)
	})

	c.OnUserIsTyping(func(u *cache.User, ch *cache.Channel) {
		fmt.Printf(".. %s is typing in [%s]\n", u.Name, ch.Name)
	})
	c.OnUserIsSpeaking(func(m *cache.Member, speaking bool) {
		if speaking {
			fmt.Printf(")) %s started speaking\n", userLabel(c, m.UserID))
		}
	})

	c.OnBanAdded(func(u *cache.User, s *cache.Server) {
		fmt.Printf("xx %s banned from %s\n", u.Name, s.Name)
	})
}

// registerEcho replies to every message from another user with the same
// text. The client's own messages never trigger an echo.
func registerEcho(c *client.Client) {
	c.OnMessageCreated(func(m *cache.Message) {
		me := c.CurrentUser()
		if me == nil || m.AuthorID == me.ID || m.Text == "" {
			return
		}
		if _, err := c.SendMessage(m.ChannelID, m.Text); err != nil {
			fmt.Printf("!! echo failed in [%s]: %v\n", channelLabel(c, m.ChannelID), err)
		}
	})
}

func channelLabel(c *client.Client, channelID string) string {
	if ch := c.Cache().Channel(channelID); ch != nil && ch.Name != "" {
		return "#" + ch.Name
	}
	return channelID
}

func userLabel(c *client.Client, userID string) string {
	if u := c.Cache().User(userID); u != nil && u.Name != "" {
		return u.Name
	}
	if userID == "" {
		return "?"
	}
	return userID
}

func serverLabel(c *client.Client, serverID string) string {
	if s := c.Cache().Server(serverID); s != nil && s.Name != "" {
		return s.Name
	}
	return serverID
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		fmt.Fprintf(os.Stderr, "metrics server: %v\n", err)
	}
}
