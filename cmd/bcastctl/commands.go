package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/gyaneshwarpardhi/broadcastevent/internal/payload"
	"github.com/gyaneshwarpardhi/broadcastevent/internal/receiver"
)

var (
	sendAction   string
	sendKey      string
	sendValue    string
	sendCategory string

	regFilter   string
	regCategory string
	regActions  string
	regEvent    string
	regWhere    string
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Emit a broadcast carrying one field",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()
		id, err := newClient().send(ctx, sendAction, sendKey, sendValue, sendCategory)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "sent %s\n", id)
		return nil
	},
}

var listenCmd = &cobra.Command{
	Use:   "listen <event>",
	Short: "Stream an event channel as JSON lines",
	Long:  "Attach to an event channel and print every event as one JSON line. The server keeps one listener per event, so this replaces any other.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		enc := json.NewEncoder(cmd.OutOrStdout())
		return newClient().listen(ctx, args[0], func(ev *payload.Event) {
			_ = enc.Encode(ev)
		})
	},
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Register a receiver",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()
		h, err := newClient().register(ctx, registerRequest{
			Filter:   regFilter,
			Category: regCategory,
			Actions:  payload.ParseActions(regActions),
			Event:    regEvent,
			Where:    regWhere,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d\n", h)
		return nil
	},
}

var unregisterCmd = &cobra.Command{
	Use:   "unregister <handle>",
	Short: "Unregister a receiver by handle",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := receiver.ParseHandle(args[0])
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()
		if err := newClient().unregister(ctx, h); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "unregistered %d\n", h)
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered receivers",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()
		infos, err := newClient().list(ctx)
		if err != nil {
			return err
		}
		printReceivers(cmd, infos)
		return nil
	},
}

func printReceivers(cmd *cobra.Command, infos []receiver.Info) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "HANDLE\tFILTER\tCATEGORY\tEVENT\tACTIONS\tSOURCE")
	for _, i := range infos {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n", i.Handle, i.Filter, i.Category, i.Event, strings.Join(i.Actions, ","), i.Source)
	}
	_ = w.Flush()
}

func init() {
	sendCmd.Flags().StringVar(&sendAction, "action", "", "broadcast action (filter name)")
	sendCmd.Flags().StringVar(&sendKey, "key", "", "field name")
	sendCmd.Flags().StringVar(&sendValue, "value", "", "field value")
	sendCmd.Flags().StringVar(&sendCategory, "category", "", "category (default: "+payload.DefaultCategory+")")
	_ = sendCmd.MarkFlagRequired("action")
	_ = sendCmd.MarkFlagRequired("key")

	registerCmd.Flags().StringVar(&regFilter, "filter", "", "filter name to listen for")
	registerCmd.Flags().StringVar(&regCategory, "category", "", "category (default: "+payload.DefaultCategory+")")
	registerCmd.Flags().StringVar(&regActions, "actions", "", `fields to extract, ";"-separated`)
	registerCmd.Flags().StringVar(&regEvent, "event", "", "event channel to publish on")
	registerCmd.Flags().StringVar(&regWhere, "where", "", "optional match expression")
	_ = registerCmd.MarkFlagRequired("filter")
	_ = registerCmd.MarkFlagRequired("event")

	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(listenCmd)
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(unregisterCmd)
	rootCmd.AddCommand(listCmd)
}
