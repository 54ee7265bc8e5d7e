// Command simfsd serves a simulated storage stack over HTTP: a small
// block-addressed disk, an indexed-allocation file system, an LRU page
// cache, and a prioritized async I/O layer.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/sys/unix"

	"github.com/oslab/go-simfs/aio"
	"github.com/oslab/go-simfs/api"
	"github.com/oslab/go-simfs/blockdev"
	"github.com/oslab/go-simfs/buffer"
	"github.com/oslab/go-simfs/common"
	"github.com/oslab/go-simfs/fs"
	"github.com/oslab/go-simfs/ipc"
	"github.com/oslab/go-simfs/sched"
	"github.com/oslab/go-simfs/util"
)

func main() {
	app := &cli.App{
		Name:  "simfsd",
		Usage: "simulated file system daemon",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "path to a YAML config file",
			},
			&cli.StringFlag{
				Name:  "addr",
				Usage: "listen address",
			},
			&cli.StringFlag{
				Name:  "backing",
				Usage: "block store backing: mem, file, goose-mem, or goose-file",
			},
			&cli.StringFlag{
				Name:  "disk",
				Usage: "backing file path for file-backed stores",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "async I/O worker count",
			},
			&cli.Uint64Flag{
				Name:  "debug",
				Usage: "debug verbosity level",
			},
			&cli.BoolFlag{
				Name:  "format",
				Usage: "format the disk instead of mounting the existing image",
			},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(c *cli.Context) error {
	cfg, err := LoadConfig(c.String("config"))
	if err != nil {
		return err
	}
	// flags win over env and file
	if c.IsSet("addr") {
		cfg.Addr = c.String("addr")
	}
	if c.IsSet("backing") {
		cfg.Backing = c.String("backing")
	}
	if c.IsSet("disk") {
		cfg.DiskPath = c.String("disk")
	}
	if c.IsSet("workers") {
		cfg.Workers = c.Int("workers")
	}
	if c.IsSet("debug") {
		cfg.Debug = c.Uint64("debug")
	}
	if c.IsSet("format") {
		cfg.Format = c.Bool("format")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	util.Debug = cfg.Debug

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	fsys := fs.MkFileSystem(store)
	if cfg.Format {
		if err := fsys.Format(); err != nil {
			return fmt.Errorf("formatting disk: %w", err)
		}
	} else if err := fsys.Mount(); err != nil {
		return fmt.Errorf("mounting disk: %w", err)
	}

	cache := buffer.MkManager(fsys.Store(), buffer.NPages)
	disp := aio.MkDispatcher(fsys, cache, cfg.Workers)
	disp.Start()

	pipes := ipc.MkPipeManager()
	syncs := ipc.MkSyncManager()
	sch := sched.MkScheduler()
	sch.Start()
	runner := sched.MkCommandRunner(sch, pipes, syncs)

	srv := api.MkServer(fsys, cache, disp, sch, runner, pipes, syncs)
	httpSrv := &http.Server{
		Addr:    cfg.Addr,
		Handler: srv.Engine(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("simfsd listening on %s (backing=%s, %d workers)",
			cfg.Addr, cfg.Backing, cfg.Workers)
		if err := httpSrv.ListenAndServe(); err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, unix.SIGINT, unix.SIGTERM, unix.SIGUSR1)
	for {
		select {
		case err := <-errCh:
			return err
		case sig := <-sigCh:
			if sig == unix.SIGUSR1 {
				disp.WriteOpStats(os.Stderr)
				continue
			}
			log.Printf("shutting down on %v", sig)
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			err := httpSrv.Shutdown(ctx)
			cancel()
			disp.Stop()
			sch.Stop()
			if ferr := cache.FlushAll(); ferr != nil {
				log.Printf("flushing cache: %v", ferr)
			}
			return err
		}
	}
}

func openStore(cfg *Config) (blockdev.Store, error) {
	switch cfg.Backing {
	case "mem":
		return blockdev.NewMemStore(common.TotalBlocks), nil
	case "file":
		return blockdev.NewFileStore(cfg.DiskPath, common.TotalBlocks)
	case "goose-mem":
		return blockdev.NewGooseMemStore(common.TotalBlocks), nil
	case "goose-file":
		return blockdev.NewGooseFileStore(cfg.DiskPath, common.TotalBlocks)
	}
	return nil, fmt.Errorf("invalid backing %q", cfg.Backing)
}
