// Package ledger keeps the file-based run records: the processed-account set
// used for resume and the per-account CSV audit log.
package ledger

import (
	"encoding/csv"
	"os"
	"path/filepath"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
)

// appendFile opens path for appending and returns an encoder that writes the
// header only when the file is new or empty.
func appendFile(path string) (*os.File, *csv.Writer, *csvutil.Encoder, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, nil, eris.Wrapf(err, "ledger: create dir for %s", path)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, nil, eris.Wrapf(err, "ledger: open %s", path)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close() //nolint:errcheck
		return nil, nil, nil, eris.Wrapf(err, "ledger: stat %s", path)
	}

	w := csv.NewWriter(f)
	enc := csvutil.NewEncoder(w)
	enc.AutoHeader = info.Size() == 0
	return f, w, enc, nil
}

func flush(w *csv.Writer) error {
	w.Flush()
	return w.Error()
}
