package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/absfs/stackedfs"
)

const (
	configFlag   = "config"
	logLevelFlag = "log-level"
	asyncFlag    = "async"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if err := newApp().Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("stackedfs: command failed")
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "stackedfs",
		Usage: "Inspect a stacked view of project files",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    configFlag,
				Aliases: []string{"c"},
				Value:   "./stackedfs.yaml",
				EnvVars: []string{"STACKEDFS_CONFIG"},
				Usage:   "YAML file describing the reader stack",
			},
			&cli.StringFlag{
				Name:  logLevelFlag,
				Usage: "override the configured log level",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "cat",
				Usage:     "Print a file as resolved through the stack",
				ArgsUsage: "PATH",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: asyncFlag, Usage: "query every layer concurrently"},
				},
				Action: catCommand,
			},
			{
				Name:      "ls",
				Usage:     "List a merged directory",
				ArgsUsage: "PATH",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: asyncFlag, Usage: "query every layer concurrently"},
				},
				Action: lsCommand,
			},
			{
				Name:      "watch",
				Usage:     "Print change notifications for the given paths until interrupted",
				ArgsUsage: "PATH...",
				Action:    watchCommand,
			},
		},
	}
}

func openStack(c *cli.Context) (*stackedfs.Stack, error) {
	cfg, err := stackConfig(c.String(configFlag), c.String(logLevelFlag), c.Command.Name == "watch")
	if err != nil {
		return nil, err
	}

	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	zerolog.SetGlobalLevel(level)

	return cfg.Open()
}

// stackConfig loads the configuration and applies command line overrides
func stackConfig(path, level string, watch bool) (*stackedfs.Config, error) {
	cfg, err := stackedfs.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	if level != "" {
		cfg.Log.Level = level
	}
	if watch {
		cfg.Watch.Enabled = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func pathArg(c *cli.Context) (string, error) {
	if c.NArg() != 1 {
		return "", cli.Exit(fmt.Sprintf("%s: expected exactly one PATH", c.Command.Name), 2)
	}
	return c.Args().First(), nil
}

func catCommand(c *cli.Context) error {
	p, err := pathArg(c)
	if err != nil {
		return err
	}
	stack, err := openStack(c)
	if err != nil {
		return err
	}
	defer stack.Close()

	var data []byte
	if c.Bool(asyncFlag) {
		entry, err := stack.Read(c.Context, p)
		if err != nil {
			return err
		}
		file, ok := entry.(stackedfs.File)
		if !ok {
			return notAFile(p, entry)
		}
		if data, err = file.Read(c.Context); err != nil {
			return err
		}
	} else {
		entry, err := stack.ReadSync(p)
		if err != nil {
			return err
		}
		file, ok := entry.(stackedfs.FileSync)
		if !ok {
			return notAFile(p, entry)
		}
		if data, err = file.ReadSync(); err != nil {
			return err
		}
	}

	_, err = c.App.Writer.Write(data)
	return err
}

func notAFile(p string, entry stackedfs.EntrySync) error {
	if entry == nil {
		return cli.Exit(fmt.Sprintf("%s: no such file", p), 1)
	}
	return cli.Exit(fmt.Sprintf("%s: is a directory", p), 1)
}

func lsCommand(c *cli.Context) error {
	p := "."
	if c.NArg() > 0 {
		p = c.Args().First()
	}
	stack, err := openStack(c)
	if err != nil {
		return err
	}
	defer stack.Close()

	var names []string
	if c.Bool(asyncFlag) {
		entry, err := stack.Read(c.Context, p)
		if err != nil {
			return err
		}
		dir, ok := entry.(stackedfs.Directory)
		if !ok {
			return notADirectory(p, entry)
		}
		children, err := dir.Entries(c.Context)
		if err != nil {
			return err
		}
		for _, child := range children {
			names = append(names, describe(child))
		}
	} else {
		entry, err := stack.ReadSync(p)
		if err != nil {
			return err
		}
		dir, ok := entry.(stackedfs.DirectorySync)
		if !ok {
			return notADirectory(p, entry)
		}
		children, err := dir.EntriesSync()
		if err != nil {
			return err
		}
		for _, child := range children {
			names = append(names, describe(child))
		}
	}

	for _, name := range names {
		fmt.Fprintln(c.App.Writer, name)
	}
	return nil
}

func notADirectory(p string, entry stackedfs.EntrySync) error {
	if entry == nil {
		return cli.Exit(fmt.Sprintf("%s: no such directory", p), 1)
	}
	return cli.Exit(fmt.Sprintf("%s: %v", p, stackedfs.ErrNotDirectory), 1)
}

func describe(entry stackedfs.EntrySync) string {
	switch entry.(type) {
	case stackedfs.Directory, stackedfs.DirectorySync:
		return entry.Name() + "/"
	default:
		return entry.Name()
	}
}

func watchCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return cli.Exit("watch: expected at least one PATH", 2)
	}
	paths := c.Args().Slice()

	stack, err := openStack(c)
	if err != nil {
		return err
	}
	defer stack.Close()

	listener := stackedfs.NewListener(
		func() []string { return paths },
		func(p string, info stackedfs.ChangeInfo) {
			fmt.Fprintf(c.App.Writer, "%s\tvirtual=%t\n", p, info.Virtual)
		},
	)
	stack.Listeners().Add(listener)
	defer stack.Listeners().Remove(listener)

	if err := stack.Sync(); err != nil {
		log.Warn().Err(err).Msg("stackedfs: some paths are not watched")
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Strs("paths", paths).Msg("stackedfs: watching")
	<-ctx.Done()
	return nil
}
