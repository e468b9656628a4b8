package observers

import (
	"context"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/retriever"
	callbackHelper "github.com/cloudwego/eino/utils/callbacks"

	logx "github.com/ragkb-chat/core/pkg/logger"
)

func newRetrieverHandler() *callbackHelper.RetrieverCallbackHandler {
	return &callbackHelper.RetrieverCallbackHandler{
		OnStart: func(ctx context.Context, info *einocb.RunInfo, input *retriever.CallbackInput) context.Context {
			if input != nil {
				logx.Debug().Str("name", info.Name).Str("query", input.Query).Msg("retrieve start")
			}
			return ctx
		},
		OnEnd: func(ctx context.Context, info *einocb.RunInfo, output *retriever.CallbackOutput) context.Context {
			if output != nil {
				ids := make([]string, 0, len(output.Docs))
				for _, d := range output.Docs {
					if d != nil {
						ids = append(ids, d.ID)
					}
				}
				logx.Debug().Str("name", info.Name).Strs("documents", ids).Msg("retrieve end")
			}
			return ctx
		},
		OnError: func(ctx context.Context, info *einocb.RunInfo, err error) context.Context {
			logx.Error().Err(err).Str("name", info.Name).Msg("retrieve error")
			return ctx
		},
	}
}
