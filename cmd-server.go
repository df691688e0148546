package main

import (
	"fmt"

	"github.com/rpcpool/hashdb/internal/hashdb"
	"github.com/rpcpool/hashdb/internal/scanserver"
	"github.com/urfave/cli/v2"
	"k8s.io/klog/v2"
)

func newCmd_Server() *cli.Command {
	var flagAddr string
	return &cli.Command{
		Name:        "server",
		Usage:       "Run a scan-only TCP server against a database",
		Description: "Binds addr and answers spec.md §6's binary scan wire protocol until interrupted. Opens the database read-only, with bloom filters served through the memory-mapped reader path instead of a mutable copy, and never mutates it.",
		ArgsUsage:   "<hashdb_dir>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "address to listen on, host:port (empty host means all interfaces)",
				Value:       ":21335",
				Destination: &flagAddr,
			},
		},
		Action: withCommandMetrics("server", func(c *cli.Context) error {
			args, err := requireArgs(c, 1, "server <hashdb_dir>")
			if err != nil {
				return err
			}
			dir := args[0]

			m, err := hashdb.OpenReadOnly(dir)
			if err != nil {
				return fmt.Errorf("server: %w", err)
			}
			defer m.Close()

			if _, err := scanserver.KindForRequestType(m.Settings().HashDigestType); err != nil {
				return fmt.Errorf("server: %w", err)
			}

			srv := scanserver.New(m)
			klog.Infof("server: serving %s on %s", dir, flagAddr)
			if err := srv.ListenAndServe(c.Context, flagAddr); err != nil {
				return fmt.Errorf("server: %w", err)
			}
			return nil
		}),
	}
}
