package llm

import (
	"context"
	"fmt"

	einomodel "github.com/cloudwego/eino/components/model"
	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	contractx "github.com/voca-labs/voca/agent/contract"
)

func compileToolPlanningGraph(
	ctx context.Context,
	chatModel einomodel.BaseChatModel,
	systemPrompt string,
) (compose.Runnable[map[string]any, *schema.Message], error) {
	template := einoprompt.FromMessages(
		schema.FString,
		schema.SystemMessage(systemPrompt),
		schema.UserMessage("{input}"),
	)

	graph := compose.NewGraph[map[string]any, *schema.Message]()
	if err := graph.AddChatTemplateNode("prompt", template); err != nil {
		return nil, fmt.Errorf("add tool planning prompt node: %w", err)
	}
	if err := graph.AddChatModelNode("model", chatModel); err != nil {
		return nil, fmt.Errorf("add tool planning model node: %w", err)
	}
	if err := graph.AddEdge(compose.START, "prompt"); err != nil {
		return nil, fmt.Errorf("add tool planning edge start->prompt: %w", err)
	}
	if err := graph.AddEdge("prompt", "model"); err != nil {
		return nil, fmt.Errorf("add tool planning edge prompt->model: %w", err)
	}
	if err := graph.AddEdge("model", compose.END); err != nil {
		return nil, fmt.Errorf("add tool planning edge model->end: %w", err)
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("generator.tool_planning_graph"))
	if err != nil {
		return nil, fmt.Errorf("compile tool planning graph: %w", err)
	}
	return runner, nil
}

func compileStructuredGraph[T any](
	ctx context.Context,
	chatModel einomodel.BaseChatModel,
	systemPrompt string,
	graphName string,
) (compose.Runnable[map[string]any, T], error) {
	template := einoprompt.FromMessages(
		schema.FString,
		schema.SystemMessage(systemPrompt),
		schema.UserMessage("{input}"),
	)

	parser := schema.NewMessageJSONParser[T](&schema.MessageJSONParseConfig{
		ParseFrom: schema.MessageParseFromContent,
	})

	graph := compose.NewGraph[map[string]any, T]()
	if err := graph.AddChatTemplateNode("prompt", template); err != nil {
		return nil, fmt.Errorf("add structured prompt node: %w", err)
	}
	if err := graph.AddChatModelNode("model", chatModel); err != nil {
		return nil, fmt.Errorf("add structured model node: %w", err)
	}
	if err := graph.AddLambdaNode("parse_json", compose.MessageParser(parser)); err != nil {
		return nil, fmt.Errorf("add structured parser node: %w", err)
	}

	if err := graph.AddEdge(compose.START, "prompt"); err != nil {
		return nil, fmt.Errorf("add structured edge start->prompt: %w", err)
	}
	if err := graph.AddEdge("prompt", "model"); err != nil {
		return nil, fmt.Errorf("add structured edge prompt->model: %w", err)
	}
	if err := graph.AddEdge("model", "parse_json"); err != nil {
		return nil, fmt.Errorf("add structured edge model->parse: %w", err)
	}
	if err := graph.AddEdge("parse_json", compose.END); err != nil {
		return nil, fmt.Errorf("add structured edge parse->end: %w", err)
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName(graphName))
	if err != nil {
		return nil, fmt.Errorf("compile structured graph: %w", err)
	}
	return runner, nil
}

func compileTurnGraph(
	ctx context.Context,
	planFlow func(context.Context, contractx.TurnRequest) (contractx.TurnResponse, error),
	finalizeFlow func(context.Context, contractx.TurnRequest) (contractx.TurnResponse, error),
) (compose.Runnable[contractx.TurnRequest, contractx.TurnResponse], error) {
	graph := compose.NewGraph[contractx.TurnRequest, contractx.TurnResponse]()

	if err := graph.AddLambdaNode("validate",
		compose.InvokableLambda(func(ctx context.Context, req contractx.TurnRequest) (contractx.TurnRequest, error) {
			if req.Customer.CustomerID == "" {
				return contractx.TurnRequest{}, fmt.Errorf("%w: customer snapshot is required", contractx.ErrValidation)
			}
			return req, nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add turn validate node: %w", err)
	}

	if err := graph.AddLambdaNode("plan_path",
		compose.InvokableLambda(func(ctx context.Context, req contractx.TurnRequest) (contractx.TurnResponse, error) {
			return planFlow(ctx, req)
		}),
	); err != nil {
		return nil, fmt.Errorf("add turn plan node: %w", err)
	}

	if err := graph.AddLambdaNode("finalize_path",
		compose.InvokableLambda(func(ctx context.Context, req contractx.TurnRequest) (contractx.TurnResponse, error) {
			return finalizeFlow(ctx, req)
		}),
	); err != nil {
		return nil, fmt.Errorf("add turn finalize node: %w", err)
	}

	// Tool results present means the turn's single tool round already ran;
	// the only path left is a user-facing reply.
	branch := compose.NewGraphBranch(
		func(ctx context.Context, req contractx.TurnRequest) (string, error) {
			if len(req.ToolResults) == 0 {
				return "plan_path", nil
			}
			return "finalize_path", nil
		},
		map[string]bool{
			"plan_path":     true,
			"finalize_path": true,
		},
	)

	if err := graph.AddBranch("validate", branch); err != nil {
		return nil, fmt.Errorf("add turn branch: %w", err)
	}
	if err := graph.AddEdge(compose.START, "validate"); err != nil {
		return nil, fmt.Errorf("add turn edge start->validate: %w", err)
	}
	if err := graph.AddEdge("plan_path", compose.END); err != nil {
		return nil, fmt.Errorf("add turn edge plan->end: %w", err)
	}
	if err := graph.AddEdge("finalize_path", compose.END); err != nil {
		return nil, fmt.Errorf("add turn edge finalize->end: %w", err)
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("generator.turn_graph"))
	if err != nil {
		return nil, fmt.Errorf("compile turn graph: %w", err)
	}
	return runner, nil
}
