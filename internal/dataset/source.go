package dataset

import (
	"fmt"
	"log/slog"

	"github.com/yhanli/innervoice/internal/config"
)

// LoadSource reads the master sentence table and keeps only the rows
// matching the configured filter. All columns survive the filter so
// the result can be cached verbatim for later resumption.
func LoadSource(src config.SourceConfig, logger *slog.Logger) (*Table, error) {
	table, err := ReadTable(src.Path)
	if err != nil {
		return nil, err
	}

	filtered, err := table.FilterRows(src.FilterColumn, src.FilterValue)
	if err != nil {
		return nil, err
	}

	logger.Info("Source table loaded",
		"path", src.Path,
		"total_rows", len(table.Rows),
		"selected_rows", len(filtered.Rows),
		"filter", fmt.Sprintf("%s=%s", src.FilterColumn, src.FilterValue))

	return filtered, nil
}
