package ledmatrix

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bodgit/ledmatrix/page"
	"gopkg.in/yaml.v2"
)

const (
	importWorkers = 10

	// Anything bigger is certainly not meant for the panel
	maxImportSize = 16 << (10 * 2)
)

func (m *Matrix) findFiles(ctx context.Context, base string) (<-chan string, <-chan error, error) {
	out := make(chan string)
	errc := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errc)
		errc <- filepath.Walk(base, func(file string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}

			// Ignore any hidden files or directories, otherwise we end up fighting with things like Spotlight, etc.
			if info.Name()[0] == '.' && file != base {
				if info.Mode().IsDir() {
					return filepath.SkipDir
				}
				return nil
			}

			// Ignore anything that isn't a normal file
			if !info.Mode().IsRegular() {
				return nil
			}

			if info.Size() > maxImportSize {
				m.logger.Warn("Skipping %s, too large", file)
				return nil
			}

			select {
			case out <- file:
			case <-ctx.Done():
				return errors.New("walk cancelled")
			}

			return nil
		})
	}()
	return out, errc, nil
}

func (m *Matrix) save(name string, fn func(io.Writer) error) error {
	w, err := m.store.Create(name)
	if err != nil {
		return err
	}
	if err := fn(w); err != nil {
		w.Close()
		_ = m.store.Remove(name)
		return err
	}
	return w.Close()
}

func isAnimationDefinition(b []byte) bool {
	var probe struct {
		Frames []interface{} `yaml:"frames"`
	}
	return yaml.Unmarshal(b, &probe) == nil && len(probe.Frames) > 0
}

func (m *Matrix) compileDefinition(name string, b []byte) error {
	var (
		rec interface{ MarshalBinary() ([]byte, error) }
		err error
	)

	if isAnimationDefinition(b) {
		var d *page.AnimationDefinition
		if d, err = page.ReadAnimationDefinition(bytes.NewReader(b)); err == nil {
			rec, err = d.Compile()
		}
	} else {
		var d *page.Definition
		if d, err = page.ReadDefinition(bytes.NewReader(b)); err == nil {
			rec, err = d.Compile()
		}
	}
	if err != nil {
		return err
	}

	out, err := rec.MarshalBinary()
	if err != nil {
		return err
	}
	return m.save(name, func(w io.Writer) error {
		_, err := w.Write(out)
		return err
	})
}

// importFile stores file under the slash separated name rel.
func (m *Matrix) importFile(file, rel string) error {
	ext := strings.ToLower(filepath.Ext(rel))
	stem := strings.TrimSuffix(rel, filepath.Ext(rel))

	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	switch ext {
	case ".bmp":
		return m.save(rel, func(w io.Writer) error {
			return ConvertBMP(w, f)
		})
	case ".png", ".jpg", ".jpeg", ".gif":
		img, _, err := image.Decode(f)
		if err != nil {
			return err
		}
		return m.save(stem+".bmp", func(w io.Writer) error {
			return ConvertImage(w, img, 0)
		})
	case ".yml", ".yaml":
		b, err := ioutil.ReadAll(f)
		if err != nil {
			return err
		}
		return m.compileDefinition(stem, b)
	}

	return m.save(rel, func(w io.Writer) error {
		_, err := io.Copy(w, f)
		return err
	})
}

func (m *Matrix) fileWorker(ctx context.Context, base string, in <-chan string) (<-chan error, error) {
	errc := make(chan error, 1)
	go func() {
		defer close(errc)
		for file := range in {
			rel, err := filepath.Rel(base, file)
			if err != nil {
				errc <- err
				return
			}
			rel = filepath.ToSlash(rel)

			if err := m.importFile(file, rel); err != nil {
				errc <- fmt.Errorf("%s: %w", file, err)
				return
			}
			m.logger.Info("Imported %s", rel)
		}
	}()
	return errc, nil
}

func waitForPipeline(errs ...<-chan error) error {
	errc := mergeErrors(errs...)
	for err := range errc {
		if err != nil {
			return err
		}
	}
	return nil
}

func mergeErrors(cs ...<-chan error) <-chan error {
	var wg sync.WaitGroup
	out := make(chan error, len(cs))
	wg.Add(len(cs))
	for _, c := range cs {
		go func(c <-chan error) {
			for n := range c {
				out <- n
			}
			wg.Done()
		}(c)
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}

// Import copies the asset tree at path into the store. Bitmaps are
// converted, other images are converted to bitmaps and page and animation
// definitions are compiled to records named after the definition without
// its extension. Everything else is copied as is.
func (m *Matrix) Import(path string) error {
	dir, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	ctx, cancelFunc := context.WithCancel(context.Background())
	defer cancelFunc()

	var errcList []<-chan error

	files, errc, err := m.findFiles(ctx, dir)
	if err != nil {
		return err
	}
	errcList = append(errcList, errc)

	for i := 0; i < importWorkers; i++ {
		errc, err := m.fileWorker(ctx, dir, files)
		if err != nil {
			return err
		}
		errcList = append(errcList, errc)
	}

	return waitForPipeline(errcList...)
}
