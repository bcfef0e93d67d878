// Package ledgerpath locates the customer ledger workbook.
//
// The ledger normally lives in a synced office folder whose location differs
// per machine. Resolution order:
//
//  1. ledger.path, when configured (no search is done)
//  2. a walk of each folder named by the ledger.search_env variables,
//     looking for ledger.file_name
//  3. the ledger.candidates paths, in order
package ledgerpath

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ginjaninja78/ledgersync/internal/config"
	"github.com/ginjaninja78/ledgersync/internal/logging"
	"github.com/ginjaninja78/ledgersync/pkg/errors"
	"github.com/ginjaninja78/ledgersync/pkg/utils"
	"golang.org/x/text/unicode/norm"
)

// maxDepth bounds the folder walk below each search root.
const maxDepth = 6

// Resolve returns the ledger path for cfg.
//
// Returns a *errors.NotFoundError listing every location tried when the
// ledger cannot be found.
func Resolve(cfg config.LedgerConfig) (string, error) {
	log := logging.Default()

	if cfg.Path != "" {
		path, err := utils.ExpandHome(cfg.Path)
		if err != nil {
			return "", err
		}
		if isFile(path) {
			return path, nil
		}
		return "", errors.NewNotFoundError("ledger", cfg.Path, path)
	}

	var tried []string
	for _, env := range cfg.SearchEnv {
		root := os.Getenv(env)
		if root == "" {
			tried = append(tried, "$"+env+" (not set)")
			continue
		}
		tried = append(tried, filepath.Join(root, "**", cfg.FileName))

		if found := search(root, cfg.FileName); found != "" {
			log.Debug().Str("env", env).Str("path", found).Msg("ledger found")
			return found, nil
		}
	}

	for _, c := range cfg.Candidates {
		path, err := utils.ExpandHome(c)
		if err != nil {
			continue
		}
		tried = append(tried, path)
		if isFile(path) {
			log.Debug().Str("path", path).Msg("ledger found among candidates")
			return path, nil
		}
	}

	return "", errors.NewNotFoundError("ledger", cfg.FileName, tried...)
}

// search walks root for a file named name. Names are compared in NFC so
// decomposed Hangul file names from synced folders still match.
func search(root, name string) string {
	want := norm.NFC.String(name)
	found := ""

	filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if depth(root, path) > maxDepth {
				return fs.SkipDir
			}
			return nil
		}
		if norm.NFC.String(d.Name()) == want {
			found = path
			return fs.SkipAll
		}
		return nil
	})
	return found
}

func depth(root, path string) int {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return 0
	}
	n := 1
	for _, r := range rel {
		if r == filepath.Separator {
			n++
		}
	}
	return n
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
