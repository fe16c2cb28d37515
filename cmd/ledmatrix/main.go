package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/bodgit/ledmatrix"
	"github.com/bodgit/ledmatrix/internal/logging"
	"github.com/bodgit/ledmatrix/page"
	"github.com/bodgit/ledmatrix/panel"
	"github.com/bodgit/ledmatrix/store"
	"github.com/urfave/cli/v2"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

const defaultStore = "data"

func init() {
	cli.VersionFlag = &cli.BoolFlag{
		Name:  "version, V",
		Usage: "print the version",
	}
}

func newLogger(c *cli.Context) *logging.Logger {
	logger := logging.Discard()
	if c.Bool("verbose") {
		logger.SetOutput(os.Stderr)
		logger.SetLevelFromString(c.String("log-level"))
	}
	return logger
}

func newConfig(c *cli.Context) ledmatrix.Config {
	config := ledmatrix.DefaultConfig()
	config.Width = c.Int("width")
	config.Height = c.Int("height")
	config.MaxUploadSize = c.Int64("max-upload-size")
	config.FrameInterval = c.Duration("frame-interval")
	config.LogLevel = c.String("log-level")
	if c.IsSet("listen") {
		config.Listen = c.String("listen")
	}
	return config
}

func openStore(c *cli.Context) (store.Store, func() error, error) {
	if db := c.String("db"); db != "" {
		s, err := store.NewSQLite(db)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	}

	s, err := store.NewDir(c.String("store"))
	if err != nil {
		return nil, nil, err
	}
	return s, func() error { return nil }, nil
}

func openMatrix(c *cli.Context) (*ledmatrix.Matrix, func() error, error) {
	s, closer, err := openStore(c)
	if err != nil {
		return nil, nil, err
	}

	m, err := ledmatrix.New(s, newConfig(c), newLogger(c))
	if err != nil {
		closer()
		return nil, nil, err
	}
	return m, closer, nil
}

func createFile(name string, fn func(io.Writer) error) error {
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		os.Remove(name)
		return err
	}
	return f.Close()
}

func writeRecord(name string, r interface{ MarshalBinary() ([]byte, error) }) error {
	b, err := r.MarshalBinary()
	if err != nil {
		return err
	}
	return createFile(name, func(w io.Writer) error {
		_, err := w.Write(b)
		return err
	})
}

func convert(c *cli.Context) error {
	if c.NArg() < 2 {
		cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
	}

	in, err := os.Open(c.Args().Get(0))
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer in.Close()

	err = createFile(c.Args().Get(1), func(w io.Writer) error {
		if strings.EqualFold(filepath.Ext(in.Name()), ".bmp") && c.Int("colors") == 0 {
			return ledmatrix.ConvertBMP(w, in)
		}
		m, _, err := image.Decode(in)
		if err != nil {
			return err
		}
		return ledmatrix.ConvertImage(w, m, c.Int("colors"))
	})
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	return nil
}

func compilePage(c *cli.Context) error {
	if c.NArg() < 2 {
		cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
	}

	f, err := os.Open(c.Args().Get(0))
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer f.Close()

	d, err := page.ReadDefinition(f)
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	p, err := d.Compile()
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	if err := writeRecord(c.Args().Get(1), p); err != nil {
		return cli.NewExitError(err, 1)
	}

	return nil
}

func dumpPage(c *cli.Context) error {
	if c.NArg() < 1 {
		cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
	}

	f, err := os.Open(c.Args().First())
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer f.Close()

	var p page.Page
	if err := p.Read(f); err != nil {
		return cli.NewExitError(err, 1)
	}

	if err := page.WriteDefinition(os.Stdout, page.Describe(&p)); err != nil {
		return cli.NewExitError(err, 1)
	}

	return nil
}

func compileAnimation(c *cli.Context) error {
	if c.NArg() < 2 {
		cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
	}

	f, err := os.Open(c.Args().Get(0))
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer f.Close()

	d, err := page.ReadAnimationDefinition(f)
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	a, err := d.Compile()
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	if err := writeRecord(c.Args().Get(1), a); err != nil {
		return cli.NewExitError(err, 1)
	}

	return nil
}

func render(c *cli.Context) error {
	if c.NArg() < 1 {
		cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
	}

	m, closer, err := openMatrix(c)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer closer()

	now := time.Now()
	if c.IsSet("time") {
		if now, err = time.Parse(time.RFC3339, c.String("time")); err != nil {
			return cli.NewExitError(err, 1)
		}
	}

	d := m.Display()
	d.SetTemperatureSource(func() float64 { return c.Float64("temperature") })
	if err := d.ChangePage(uint8(c.Uint("page")), now); err != nil {
		return cli.NewExitError(err, 1)
	}

	canvas := panel.NewCanvas(image.Rect(0, 0, m.Config().Width, m.Config().Height))
	d.Update(canvas, now)

	if err := createFile(c.Args().First(), func(w io.Writer) error {
		return png.Encode(w, canvas)
	}); err != nil {
		return cli.NewExitError(err, 1)
	}

	return nil
}

func serve(c *cli.Context) error {
	m, closer, err := openMatrix(c)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer closer()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	canvas := panel.NewCanvas(image.Rect(0, 0, m.Config().Width, m.Config().Height))
	var flush func() error

	if name := c.String("spi"); name != "" {
		if _, err := host.Init(); err != nil {
			return cli.NewExitError(err, 1)
		}

		p, err := spireg.Open(name)
		if err != nil {
			return cli.NewExitError(err, 1)
		}
		defer p.Close()

		dev, err := panel.NewSPI(p, &panel.Opts{W: m.Config().Width, H: m.Config().Height})
		if err != nil {
			return cli.NewExitError(err, 1)
		}
		defer dev.Halt()

		flush = func() error {
			return dev.Flush(canvas)
		}
	}

	srv := m.NewServer()
	errc := make(chan error, 2)

	go func() {
		if err := m.Run(ctx, canvas, flush); err != nil && !errors.Is(err, context.Canceled) {
			errc <- err
		}
	}()

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errc:
		stop()
		return cli.NewExitError(err, 1)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return cli.NewExitError(fmt.Errorf("shutdown: %w", err), 1)
	}

	return nil
}

func main() {
	app := cli.NewApp()

	app.Name = "ledmatrix"
	app.Usage = "LED matrix page management utility"
	app.Version = "1.0.0"

	cwd, err := os.Getwd()
	if err != nil {
		log.Fatal(err)
	}

	defaults := ledmatrix.DefaultConfig()

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "store",
			EnvVars: []string{"LEDMATRIX_STORE"},
			Value:   filepath.Join(cwd, defaultStore),
			Usage:   "path to storage directory",
		},
		&cli.StringFlag{
			Name:    "db",
			EnvVars: []string{"LEDMATRIX_DB"},
			Usage:   "path to SQLite database, used instead of the storage directory",
		},
		&cli.IntFlag{
			Name:    "width",
			EnvVars: []string{"LEDMATRIX_WIDTH"},
			Value:   defaults.Width,
			Usage:   "panel width in pixels",
		},
		&cli.IntFlag{
			Name:    "height",
			EnvVars: []string{"LEDMATRIX_HEIGHT"},
			Value:   defaults.Height,
			Usage:   "panel height in pixels",
		},
		&cli.Int64Flag{
			Name:    "max-upload-size",
			EnvVars: []string{"LEDMATRIX_MAX_UPLOAD_SIZE"},
			Value:   defaults.MaxUploadSize,
			Usage:   "largest accepted upload in bytes",
		},
		&cli.DurationFlag{
			Name:    "frame-interval",
			EnvVars: []string{"LEDMATRIX_FRAME_INTERVAL"},
			Value:   defaults.FrameInterval,
			Usage:   "time between rendered frames",
		},
		&cli.StringFlag{
			Name:    "log-level",
			EnvVars: []string{"LEDMATRIX_LOG_LEVEL"},
			Value:   defaults.LogLevel,
			Usage:   "one of debug, info, warn or error",
		},
		&cli.BoolFlag{
			Name:  "verbose, v",
			Usage: "increase verbosity",
		},
	}

	app.Commands = []*cli.Command{
		{
			Name:        "convert",
			Usage:       "Convert an image to a 16-bit bitmap",
			Description: "Bitmaps are converted directly, other images are decoded first.",
			ArgsUsage:   "INPUT OUTPUT",
			Flags: []cli.Flag{
				&cli.IntFlag{
					Name:  "colors",
					Usage: "reduce to this many colors first, 0 to keep all",
				},
			},
			Action: convert,
		},
		{
			Name:        "import",
			Usage:       "Import a directory of assets into the store",
			Description: "",
			ArgsUsage:   "DIRECTORY",
			Action: func(c *cli.Context) error {
				if c.NArg() < 1 {
					cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
				}

				m, closer, err := openMatrix(c)
				if err != nil {
					return cli.NewExitError(err, 1)
				}
				defer closer()

				if err := m.Import(c.Args().First()); err != nil {
					return cli.NewExitError(err, 1)
				}

				return nil
			},
		},
		{
			Name:  "page",
			Usage: "Work with page records",
			Subcommands: []*cli.Command{
				{
					Name:      "compile",
					Usage:     "Compile a YAML page definition",
					ArgsUsage: "DEFINITION RECORD",
					Action:    compilePage,
				},
				{
					Name:      "dump",
					Usage:     "Print a page record as YAML",
					ArgsUsage: "RECORD",
					Action:    dumpPage,
				},
			},
		},
		{
			Name:  "animation",
			Usage: "Work with animation records",
			Subcommands: []*cli.Command{
				{
					Name:      "compile",
					Usage:     "Compile a YAML animation definition",
					ArgsUsage: "DEFINITION RECORD",
					Action:    compileAnimation,
				},
			},
		},
		{
			Name:      "render",
			Usage:     "Render a page to a PNG image",
			ArgsUsage: "OUTPUT",
			Flags: []cli.Flag{
				&cli.UintFlag{
					Name:  "page",
					Usage: "page to render",
				},
				&cli.StringFlag{
					Name:  "time",
					Usage: "render as of this RFC 3339 time",
				},
				&cli.Float64Flag{
					Name:  "temperature",
					Value: 20,
					Usage: "temperature reading in Celsius",
				},
			},
			Action: render,
		},
		{
			Name:  "serve",
			Usage: "Serve the HTTP interface and drive the panel",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "listen",
					EnvVars: []string{"LEDMATRIX_LISTEN"},
					Value:   defaults.Listen,
					Usage:   "address to listen on",
				},
				&cli.StringFlag{
					Name:    "spi",
					EnvVars: []string{"LEDMATRIX_SPI"},
					Usage:   "SPI port the panel is connected to, none to render off-screen",
				},
			},
			Action: serve,
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
