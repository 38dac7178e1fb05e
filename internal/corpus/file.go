package corpus

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/encoding/charmap"
)

// FileSource loads a Corpus from files on disk.
//
// Paths left empty are discovered in Dir: the constitution table is the first
// "*.csv" (lexical order) whose lowercase name contains "constitution", the
// index table the first containing "index", and the penal code the first
// "*.pdf" containing "penal" or "ipc". Relative paths are resolved against Dir.
type FileSource struct {
	Dir          string
	Constitution string
	Index        string
	IPC          string
}

// Load discovers and reads all three files concurrently. Any failure aborts
// the load.
func (s *FileSource) Load(ctx context.Context) (Corpus, error) {
	start := time.Now()

	constPath, indexPath, ipcPath, err := s.resolve()
	if err != nil {
		return Corpus{}, err
	}
	slog.Info("corpus files located",
		"constitution", constPath,
		"index", indexPath,
		"ipc", ipcPath,
	)

	var c Corpus
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		text, err := ReadCSVColumn(gctx, constPath)
		c.Constitution = text
		return err
	})
	g.Go(func() error {
		text, err := ReadCSVColumn(gctx, indexPath)
		c.Index = text
		return err
	})
	g.Go(func() error {
		text, err := ReadPenalCode(gctx, ipcPath)
		c.IPC = text
		return err
	})
	if err := g.Wait(); err != nil {
		return Corpus{}, err
	}

	slog.Info("corpus loaded",
		"lines", c.Lines(),
		"duration", time.Since(start),
	)
	return c, nil
}

func (s *FileSource) resolve() (constPath, indexPath, ipcPath string, err error) {
	var names []string
	needScan := s.Constitution == "" || s.Index == "" || s.IPC == ""
	if needScan {
		entries, rerr := os.ReadDir(s.dirOrDot())
		if rerr != nil {
			return "", "", "", fmt.Errorf("corpus: read dir %q: %w", s.dirOrDot(), rerr)
		}
		for _, e := range entries {
			if !e.IsDir() {
				names = append(names, e.Name())
			}
		}
		slices.Sort(names)
	}

	constPath, err = s.pick(s.Constitution, names, "constitution table", ".csv", "constitution")
	if err != nil {
		return "", "", "", err
	}
	indexPath, err = s.pick(s.Index, names, "index table", ".csv", "index")
	if err != nil {
		return "", "", "", err
	}
	ipcPath, err = s.pick(s.IPC, names, "penal code", ".pdf", "penal", "ipc")
	if err != nil {
		return "", "", "", err
	}
	return constPath, indexPath, ipcPath, nil
}

func (s *FileSource) pick(explicit string, names []string, what, ext string, needles ...string) (string, error) {
	if explicit != "" {
		p := explicit
		if !filepath.IsAbs(p) {
			p = filepath.Join(s.dirOrDot(), p)
		}
		if _, err := os.Stat(p); err != nil {
			return "", fmt.Errorf("%w: %s %q: %w", ErrNotFound, what, p, err)
		}
		return p, nil
	}
	for _, n := range names {
		lower := strings.ToLower(n)
		if !strings.HasSuffix(lower, ext) {
			continue
		}
		for _, needle := range needles {
			if strings.Contains(lower, needle) {
				return filepath.Join(s.dirOrDot(), n), nil
			}
		}
	}
	return "", fmt.Errorf("%w: no %s (*%s containing %q) in %q", ErrNotFound, what, ext, needles, s.dirOrDot())
}

func (s *FileSource) dirOrDot() string {
	if s.Dir == "" {
		return "."
	}
	return s.Dir
}

// ReadCSVColumn reads the first column of every data row of a CSV file and
// joins the values with "\n". The first row is a header and is skipped.
// The file is decoded as UTF-8, falling back to Windows-1252 when it is not
// valid UTF-8.
func ReadCSVColumn(ctx context.Context, path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("corpus: read %q: %w", path, err)
	}
	text, err := decodeText(raw)
	if err != nil {
		return "", fmt.Errorf("corpus: decode %q: %w", path, err)
	}

	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var values []string
	header := true
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("corpus: parse %q: %w", path, err)
		}
		if header {
			header = false
			continue
		}
		if len(rec) == 0 {
			values = append(values, "")
			continue
		}
		values = append(values, rec[0])
	}
	return strings.Join(values, "\n"), nil
}

// decodeText returns raw as a string, transcoding from Windows-1252 when raw
// is not valid UTF-8. A leading UTF-8 byte order mark is dropped.
func decodeText(raw []byte) (string, error) {
	raw = bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))
	if utf8.Valid(raw) {
		return string(raw), nil
	}
	out, err := charmap.Windows1252.NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrEncoding, err)
	}
	return string(out), nil
}

// ReadPenalCode extracts the plain text of a PDF, page by page. Each page
// that yields text is followed by "\n". Files ending in ".txt" are read
// verbatim, which lets deployments ship a pre-extracted text instead.
func ReadPenalCode(ctx context.Context, path string) (string, error) {
	if strings.EqualFold(filepath.Ext(path), ".txt") {
		raw, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("corpus: read %q: %w", path, err)
		}
		text, err := decodeText(raw)
		if err != nil {
			return "", fmt.Errorf("corpus: decode %q: %w", path, err)
		}
		return text, nil
	}
	return readPDF(ctx, path)
}

// readPDF converts panics raised by the PDF reader on malformed input into
// errors.
func readPDF(ctx context.Context, path string) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("corpus: malformed pdf %q: %v", path, r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("corpus: open pdf %q: %w", path, err)
	}
	defer f.Close()

	var b strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("corpus: extract page %d of %q: %w", i, path, err)
		}
		if text == "" {
			continue
		}
		b.WriteString(text)
		b.WriteByte('\n')
	}
	return b.String(), nil
}
