package file

import (
	"context"

	"github.com/cchevrot/backtest/internal/domain"
	"github.com/cchevrot/backtest/internal/reporting"
	"github.com/cchevrot/backtest/internal/storage"
)

// BestResults rewrites a ranked CSV report on every call.
type BestResults struct {
	path string
}

// NewBestResults creates a reporter writing to path.
func NewBestResults(path string) *BestResults {
	return &BestResults{path: path}
}

var _ storage.Reporter = (*BestResults)(nil)

// WriteTop replaces the report with records, which must already be ranked.
func (b *BestResults) WriteTop(_ context.Context, records []*domain.ResultRecord) error {
	return writeFileAtomic(b.path, []byte(reporting.RenderCSV(records)))
}
