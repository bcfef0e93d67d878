// Package source finds and loads the broker exports a job consumes.
//
// Exports are picked from a download folder by file name prefix and
// extension. When several match, the selection mode decides: the most
// recently modified file, or the lowest or highest number embedded in the
// file name (HTS tools number their downloads Excel1.xls, Excel2.xls, ...).
package source

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ginjaninja78/ledgersync/internal/config"
	"github.com/ginjaninja78/ledgersync/internal/logging"
	"github.com/ginjaninja78/ledgersync/pkg/errors"
	"github.com/ginjaninja78/ledgersync/pkg/utils"
)

// Selection modes.
const (
	SelectNewest        = "newest"
	SelectLowestNumber  = "lowest-number"
	SelectHighestNumber = "highest-number"
)

var firstNumber = regexp.MustCompile(`\d+`)

type candidate struct {
	path    string
	name    string
	modTime time.Time
	number  int
}

// Discover returns the export a job should consume.
//
// Returns a *errors.NoInputFileError when nothing matches, including when
// the folder itself does not exist.
func Discover(ctx context.Context, src config.SourceConfig) (string, error) {
	dir, err := utils.ExpandHome(src.Dir)
	if err != nil {
		return "", err
	}
	notFound := &errors.NoInputFileError{Dir: dir, Prefix: src.Prefix, Extensions: src.Extensions}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", notFound
		}
		return "", err
	}

	var matches []candidate
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, "~$") || !strings.HasPrefix(name, src.Prefix) {
			continue
		}
		if !hasExtension(name, src.Extensions) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		matches = append(matches, candidate{
			path:    filepath.Join(dir, name),
			name:    name,
			modTime: info.ModTime(),
			number:  NumberInName(name),
		})
	}

	log := logging.FromContext(ctx)
	log.Debug().Str("dir", dir).Str("prefix", src.Prefix).Int("matches", len(matches)).Msg("export discovery")

	if len(matches) == 0 {
		return "", notFound
	}

	switch src.Select {
	case SelectLowestNumber, SelectHighestNumber:
		sort.SliceStable(matches, func(i, j int) bool {
			if matches[i].number != matches[j].number {
				return matches[i].number < matches[j].number
			}
			return matches[i].name < matches[j].name
		})
		if src.Select == SelectLowestNumber {
			return matches[0].path, nil
		}
		return matches[len(matches)-1].path, nil

	default:
		sort.SliceStable(matches, func(i, j int) bool {
			if !matches[i].modTime.Equal(matches[j].modTime) {
				return matches[i].modTime.After(matches[j].modTime)
			}
			return matches[i].name > matches[j].name
		})
		return matches[0].path, nil
	}
}

// NumberInName returns the first integer in a file name, or 0.
func NumberInName(name string) int {
	m := firstNumber.FindString(name)
	if m == "" {
		return 0
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0
	}
	return n
}

func hasExtension(name string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range exts {
		if ext == strings.ToLower(e) {
			return true
		}
	}
	return false
}
