package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"github.com/weberc2/sanicfs/pkg/config"
	"github.com/weberc2/sanicfs/pkg/fs"
	"github.com/weberc2/sanicfs/pkg/types"
)

func main() {
	nameFlag := &cli.StringFlag{
		Name:     "name",
		Aliases:  []string{"n"},
		Usage:    "the file name",
		Required: true,
	}

	app := cli.App{
		Name:        "sanicfs",
		Description: "a flat file system on an emulated block device",
		Commands: []*cli.Command{{
			Name:        "make",
			Aliases:     []string{"mkfs", "format"},
			Description: "create an empty volume, replacing any existing one",
			Action: withFileSystem(func(c *config.Config, filesystem *fs.FileSystem, ctx *cli.Context) error {
				return filesystem.Make(c.Volume)
			}),
		}, {
			Name:        "ls",
			Aliases:     []string{"list"},
			Description: "list the files on the volume",
			Action: withMounted(func(filesystem *fs.FileSystem, ctx *cli.Context) error {
				files, err := filesystem.Files()
				if err != nil {
					return err
				}
				return printJSON(files)
			}),
		}, {
			Name:        "put",
			Description: "write a file from stdin or `--source`, creating it if needed",
			Flags: []cli.Flag{
				nameFlag,
				&cli.StringFlag{
					Name:  "source",
					Usage: "a host file to copy from; defaults to stdin",
				},
			},
			Action: withMounted(func(filesystem *fs.FileSystem, ctx *cli.Context) error {
				var source io.Reader = os.Stdin
				if path := ctx.String("source"); path != "" {
					file, err := os.Open(path)
					if err != nil {
						return fmt.Errorf("opening source: %w", err)
					}
					defer file.Close()
					source = file
				}
				return put(filesystem, ctx.String("name"), source)
			}),
		}, {
			Name:        "cat",
			Description: "write a file's contents to stdout",
			Flags:       []cli.Flag{nameFlag},
			Action: withMounted(func(filesystem *fs.FileSystem, ctx *cli.Context) error {
				f, err := filesystem.OpenFile(ctx.String("name"))
				if err != nil {
					return err
				}
				_, err = io.Copy(os.Stdout, f)
				if closeErr := f.Close(); err == nil {
					err = closeErr
				}
				return err
			}),
		}, {
			Name:        "rm",
			Aliases:     []string{"delete", "remove"},
			Description: "delete a file",
			Flags:       []cli.Flag{nameFlag},
			Action: withMounted(func(filesystem *fs.FileSystem, ctx *cli.Context) error {
				return filesystem.Delete(ctx.String("name"))
			}),
		}, {
			Name:        "truncate",
			Description: "shrink a file to `--length` bytes",
			Flags: []cli.Flag{
				nameFlag,
				&cli.Int64Flag{
					Name:     "length",
					Usage:    "the new size in bytes",
					Required: true,
				},
			},
			Action: withMounted(func(filesystem *fs.FileSystem, ctx *cli.Context) error {
				f, err := filesystem.OpenFile(ctx.String("name"))
				if err != nil {
					return err
				}
				err = f.Truncate(types.Byte(ctx.Int64("length")))
				if closeErr := f.Close(); err == nil {
					err = closeErr
				}
				return err
			}),
		}, {
			Name:        "stat",
			Description: "print a file's directory entry",
			Flags:       []cli.Flag{nameFlag},
			Action: withMounted(func(filesystem *fs.FileSystem, ctx *cli.Context) error {
				files, err := filesystem.Files()
				if err != nil {
					return err
				}
				for i := range files {
					if files[i].Name == ctx.String("name") {
						return printJSON(&files[i])
					}
				}
				return fmt.Errorf(
					"stat `%s`: %w",
					ctx.String("name"),
					types.ErrNotFound,
				)
			}),
		}, {
			Name:        "check",
			Aliases:     []string{"fsck"},
			Description: "check the volume's block chains and free blocks",
			Action: withMounted(func(filesystem *fs.FileSystem, ctx *cli.Context) error {
				report, err := filesystem.Check()
				if err != nil {
					return err
				}
				if err := printJSON(&report); err != nil {
					return err
				}
				if !report.OK() {
					return fmt.Errorf(
						"volume has `%d` problems",
						len(report.Problems),
					)
				}
				return nil
			}),
		}, {
			Name:        "serve",
			Description: "serve the volume over HTTP",
			Action:      withFileSystem(serve),
		}},
	}

	if err := app.Run(os.Args); err != nil {
		logrus.Fatal(err)
	}
}

// put replaces the contents of `name` with everything read from `source`.
func put(filesystem *fs.FileSystem, name string, source io.Reader) error {
	if err := filesystem.Create(name); err != nil &&
		!errors.Is(err, types.ErrAlreadyExists) {
		return err
	}
	f, err := filesystem.OpenFile(name)
	if err != nil {
		return err
	}
	err = f.Truncate(0)
	if err == nil {
		_, err = io.Copy(f, source)
	}
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	return err
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	if _, err := fmt.Printf("%s\n", data); err != nil {
		return fmt.Errorf("writing JSON to stdout: %w", err)
	}
	return nil
}

// withFileSystem loads the configuration and hands `f` an unmounted
// session over the configured device.
func withFileSystem(
	f func(*config.Config, *fs.FileSystem, *cli.Context) error,
) cli.ActionFunc {
	return func(ctx *cli.Context) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if err := c.ConfigureLogger(logrus.StandardLogger()); err != nil {
			return err
		}
		dev, cleanup, err := newDevice(c)
		if err != nil {
			return err
		}
		defer func() {
			if err := cleanup(); err != nil {
				logrus.Errorf("releasing device: %v", err)
			}
		}()
		return f(c, fs.New(&fs.Params{
			Device:       dev,
			NewAllocator: newAllocator(c),
			Logger:       logrus.StandardLogger(),
		}), ctx)
	}
}

// withMounted mounts the configured volume around `f`.
func withMounted(f func(*fs.FileSystem, *cli.Context) error) cli.ActionFunc {
	return withFileSystem(func(
		c *config.Config,
		filesystem *fs.FileSystem,
		ctx *cli.Context,
	) error {
		if err := filesystem.Mount(c.Volume); err != nil {
			return err
		}
		err := f(filesystem, ctx)
		if unmountErr := filesystem.Unmount(c.Volume); err == nil {
			err = unmountErr
		}
		return err
	})
}
