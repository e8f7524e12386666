package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/voxhall/voxhall/pkg/cache"
)

var (
	sendToken string
	sendTTS   bool
)

func init() {
	sendCmd.Flags().StringVar(&sendToken, "token", "", "Session token (overrides config and cache)")
	sendCmd.Flags().BoolVar(&sendTTS, "tts", false, "Request text-to-speech playback")
	rootCmd.AddCommand(sendCmd)
}

var sendCmd = &cobra.Command{
	Use:   "send <channel-id> <text>...",
	Short: "Connect, send one message, and disconnect",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		channelID := args[0]
		text := strings.Join(args[1:], " ")

		cfg, err := loadRunConfig()
		if err != nil {
			return err
		}
		// One-shot sends deliver inline so failure surfaces on the call.
		cfg.Connection.UseMessageQueue = false

		state, err := openState(cfg)
		if err != nil {
			return err
		}
		defer state.Close()

		token, err := resolveToken(sendToken, cfg, state)
		if err != nil {
			return err
		}

		c := buildClient(cfg, state)
		if err := c.Connect(token); err != nil {
			return fmt.Errorf("connect failed: %w", err)
		}
		defer c.Disconnect()

		var msg *cache.Message
		if sendTTS {
			msg, err = c.SendTTSMessage(channelID, text)
		} else {
			msg, err = c.SendMessage(channelID, text)
		}
		if err != nil {
			return fmt.Errorf("send failed: %w", err)
		}
		if msg.Failed {
			return fmt.Errorf("send rejected by the service")
		}
		fmt.Printf("Sent %s\n", msg.ID)
		return nil
	},
}
