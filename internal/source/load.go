package source

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/ginjaninja78/ledgersync/internal/config"
	"github.com/ginjaninja78/ledgersync/internal/csvparser"
	"github.com/ginjaninja78/ledgersync/internal/logging"
	"github.com/ginjaninja78/ledgersync/internal/types"
	"github.com/ginjaninja78/ledgersync/internal/workbook"
)

// Converter turns legacy .xls files into .xlsx with an external command.
type Converter struct {
	Command string
	Args    []string
}

// NewConverter builds a Converter from configuration.
func NewConverter(cfg config.ConverterConfig) *Converter {
	return &Converter{Command: cfg.Command, Args: cfg.Args}
}

// Convert writes an .xlsx copy of input into outDir and returns its path.
func (c *Converter) Convert(ctx context.Context, input, outDir string) (string, error) {
	if c == nil || c.Command == "" {
		return "", fmt.Errorf("no converter configured for %s", filepath.Base(input))
	}

	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		a = strings.ReplaceAll(a, "{input}", input)
		args[i] = strings.ReplaceAll(a, "{outdir}", outDir)
	}

	logging.FromContext(ctx).Debug().Str("command", c.Command).Strs("args", args).Msg("converting xls export")

	out, err := exec.CommandContext(ctx, c.Command, args...).CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("converting %s with %s failed: %w: %s", input, c.Command, err, strings.TrimSpace(string(out)))
	}

	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	converted := filepath.Join(outDir, base+".xlsx")
	if _, err := os.Stat(converted); err != nil {
		return "", fmt.Errorf("converter did not produce %s: %w", converted, err)
	}
	return converted, nil
}

// OpenWorkbook opens an xlsx export, converting .xls first. The returned
// cleanup closes the workbook and removes any temporary conversion.
func OpenWorkbook(ctx context.Context, path string, conv *Converter) (*workbook.Workbook, func(), error) {
	tmpDir := ""
	cleanup := func() {
		if tmpDir != "" {
			os.RemoveAll(tmpDir)
		}
	}

	target := path
	if strings.EqualFold(filepath.Ext(path), ".xls") {
		dir, err := os.MkdirTemp("", "ledgersync-xls-")
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create temp dir: %w", err)
		}
		tmpDir = dir

		target, err = conv.Convert(ctx, path, dir)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
	}

	wb, err := workbook.Open(target, "")
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return wb, func() {
		wb.Close()
		cleanup()
	}, nil
}

// Load parses an export into a table according to its extension.
func Load(ctx context.Context, path string, src config.SourceConfig, conv *Converter) (*types.Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt":
		return csvparser.Parse(path, src)

	case ".xlsx", ".xlsm", ".xls":
		wb, done, err := OpenWorkbook(ctx, path, conv)
		if err != nil {
			return nil, err
		}
		defer done()

		sheet := src.Sheet
		if sheet == "" {
			sheet = wb.FirstSheet()
		}
		table, err := wb.ReadSheet(sheet, workbook.Layout{HeaderRow: src.HeaderRow, FirstColumn: 1})
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		table.Source = path

		logging.FromContext(ctx).Debug().Str("file", path).Str("sheet", sheet).Int("rows", len(table.Rows)).Msg("export loaded")
		return table, nil

	default:
		return nil, fmt.Errorf("unsupported export type %s", filepath.Ext(path))
	}
}

// ReadCells reads fixed cells of an export's sheet (first sheet when empty).
func ReadCells(ctx context.Context, path, sheet string, cells []string, conv *Converter) ([]string, error) {
	wb, done, err := OpenWorkbook(ctx, path, conv)
	if err != nil {
		return nil, err
	}
	defer done()

	if sheet == "" {
		sheet = wb.FirstSheet()
	}
	values := make([]string, len(cells))
	for i, cell := range cells {
		v, err := wb.GetCell(sheet, cell)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return values, nil
}
