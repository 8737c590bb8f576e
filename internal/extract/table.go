package extract

import (
	"context"

	"github.com/go-scripts/wikicrawl/internal/dom"
	"github.com/go-scripts/wikicrawl/internal/types"
)

// ExtractTable reads a table element. Rows become keyed rows when the
// table has header cells and positional rows otherwise. It returns nil
// when no row carries data.
func ExtractTable(ctx context.Context, table dom.Node) (*types.Table, error) {
	ths, err := table.QueryAll(ctx, "th")
	if err != nil {
		return nil, err
	}
	headers, err := nonEmptyTexts(ctx, ths)
	if err != nil {
		return nil, err
	}

	trs, err := table.QueryAll(ctx, "tr")
	if err != nil {
		return nil, err
	}

	var rows []types.Row
	for _, tr := range trs {
		tds, err := tr.QueryAll(ctx, "td")
		if err != nil {
			return nil, err
		}
		cells, err := nonEmptyTexts(ctx, tds)
		if err != nil {
			return nil, err
		}
		if len(cells) == 0 {
			continue
		}
		if len(headers) > 0 {
			rows = append(rows, types.KeyedRow(headers, cells))
		} else {
			rows = append(rows, types.PositionalRow(cells))
		}
	}

	if len(rows) == 0 {
		return nil, nil
	}
	return &types.Table{Headers: headers, Rows: rows}, nil
}
