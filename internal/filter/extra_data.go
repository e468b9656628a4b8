package filter

import (
	"encoding/json"

	"github.com/ragkb-chat/core/internal/model"
	logx "github.com/ragkb-chat/core/pkg/logger"
)

// BuildExtraData translates every configured selection and wraps the
// surviving filters into extra-data envelopes, in configuration order.
// Callers rebuild it on every send, retry and edit.
func BuildExtraData(selections Selections, configs []Configuration) []model.ExtraData {
	items := make([]model.ExtraData, 0, len(configs))
	for i, sel := range selections.Positional(configs) {
		f := Translate(sel, configs[i])
		if f == nil || !f.HasValue() {
			continue
		}
		b, err := json.Marshal(f)
		if err != nil {
			logx.Error().Err(err).Str("filter_key", configs[i].Key).Msg("failed to serialize retrieval filter")
			continue
		}
		items = append(items, model.ExtraData{
			Type: model.ExtraDataTypeJSON,
			Name: model.ExtraDataNameFilter,
			Source: model.ExtraDataSource{
				Type:      model.ExtraDataTypeJSON,
				MediaType: model.MediaTypeJSON,
				Data:      string(b),
			},
		})
	}
	return items
}

// FiltersFromExtraData extracts the retrieval filters carried by extra data.
// Items that are not filters are ignored; undecodable filters are logged and skipped.
func FiltersFromExtraData(items []model.ExtraData) []RetrievalFilter {
	var out []RetrievalFilter
	for _, item := range items {
		if item.Name != model.ExtraDataNameFilter || item.Source.MediaType != model.MediaTypeJSON {
			continue
		}
		f, err := ParseRetrievalFilter(item.Source.Data)
		if err != nil {
			logx.Warn().Err(err).Str("data", item.Source.Data).Msg("skipping malformed filter extra data")
			continue
		}
		out = append(out, f)
	}
	return out
}
