/*
 * SPDX-FileCopyrightText: © Fanflow Authors <dev@fanflow.io>
 * SPDX-License-Identifier: Apache-2.0
 */

package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang/glog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/fanflow/fanflow/graphql/schema"
	"github.com/fanflow/fanflow/graphql/web"
	"github.com/fanflow/fanflow/store"
	"github.com/fanflow/fanflow/x"
)

// Serve is the subcommand that runs the GraphQL server.
var Serve x.SubCommand

func init() {
	Serve.Cmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the fanflow GraphQL server",
		Run: func(cmd *cobra.Command, args []string) {
			defer glog.Flush()
			if err := runServe(); err != nil {
				glog.Errorf("Server exited with error: %v", err)
				os.Exit(1)
			}
		},
	}
	Serve.EnvPrefix = "FANFLOW"

	flags := Serve.Cmd.Flags()
	flags.String("addr", ":8080", "Address the HTTP server listens on.")
	flags.String("data", "",
		"Directory for the badger store. Empty runs an in-memory store.")
	flags.Bool("seed", false, "Load demo fixtures into the store at startup.")
}

func runServe() error {
	st, err := store.Open(Serve.GetString("data"))
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			glog.Errorf("Closing store: %v", err)
		}
	}()

	if Serve.GetBool("seed") {
		if err := store.SeedDemo(context.Background(), st); err != nil {
			return err
		}
	}

	s, err := schema.New()
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:    Serve.GetString("addr"),
		Handler: web.NewServer(s, st).HTTPHandler(),
	}

	g, ctx := errgroup.WithContext(context.Background())

	g.Go(func() error {
		glog.Infof("Serving GraphQL on %s/graphql", srv.Addr)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		select {
		case sig := <-sigCh:
			glog.Infof("Received %v, shutting down", sig)
		case <-ctx.Done():
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
