package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/acornrpa/acorn/internal/models"
)

func newMessageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "message",
		Short: "Message history commands",
	}

	cmd.AddCommand(newMessageListCmd())
	cmd.AddCommand(newMessageCountCmd())
	return cmd
}

func newMessageListCmd() *cobra.Command {
	var (
		configPath string
		sender     string
		unreplied  bool
		limit      int
		offset     int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded messages, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, st, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}

			var msgs []models.ChatMessage
			switch {
			case unreplied:
				msgs, err = st.UnrepliedMessages()
			case sender != "":
				msgs, err = st.MessagesBySender(sender, limit, offset)
			default:
				msgs, err = st.RecentMessages(limit, offset)
			}
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTIME\tSENDER\tMESSAGE\tREPLY")
			for _, m := range msgs {
				reply := ""
				if m.ReplyContent != nil {
					reply = *m.ReplyContent
				}
				ts := time.UnixMilli(m.Timestamp).Format("2006-01-02 15:04:05")
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", m.ID, ts, m.Sender, m.Content, reply)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "acorn.yaml", "path to config file")
	cmd.Flags().StringVar(&sender, "sender", "", "filter by sender")
	cmd.Flags().BoolVar(&unreplied, "unreplied", false, "only messages without a reply")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum messages to show")
	cmd.Flags().IntVar(&offset, "offset", 0, "messages to skip")
	return cmd
}

func newMessageCountCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "count",
		Short: "Count recorded messages",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, st, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			n, err := st.MessageCount()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d messages\n", n)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "acorn.yaml", "path to config file")
	return cmd
}
