package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	pz "github.com/weberc2/httpeasy"
	"github.com/weberc2/sanicfs/pkg/config"
	"github.com/weberc2/sanicfs/pkg/fs"
	"github.com/weberc2/sanicfs/pkg/server"
	"github.com/weberc2/sanicfs/pkg/types"
	"golang.org/x/sync/errgroup"
)

// serve mounts the volume, making it first if the device has none, and
// serves it until SIGINT or SIGTERM. The volume is unmounted on the way
// out.
func serve(
	c *config.Config,
	filesystem *fs.FileSystem,
	cliCtx *cli.Context,
) error {
	if err := filesystem.Mount(c.Volume); errors.Is(err, types.ErrVolumeNotFound) {
		logrus.WithField("volume", c.Volume).Info("volume not found; making it")
		if err := filesystem.Make(c.Volume); err != nil {
			return err
		}
		if err := filesystem.Mount(c.Volume); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	ctx, cancel := context.WithCancel(cliCtx.Context)
	defer cancel()

	go func() {
		select {
		case sig := <-sigChan:
			logrus.WithField("signal", sig.String()).Info("received signal")
			cancel()
		case <-ctx.Done():
		}
	}()

	srv := &http.Server{
		Addr:         c.Addr,
		Handler:      pz.Register(pz.JSONLog(os.Stderr), server.New(filesystem).Routes()...),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logrus.WithField("addr", c.Addr).Info("starting http server")
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logrus.Info("shutting down http server")
		shutdownCtx, cancel := context.WithTimeout(
			context.Background(),
			10*time.Second,
		)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	if unmountErr := filesystem.Unmount(c.Volume); unmountErr != nil {
		if err == nil {
			err = unmountErr
		} else {
			err = fmt.Errorf("%w (unmounting: %v)", err, unmountErr)
		}
	}
	return err
}
