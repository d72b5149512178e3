package tools

import (
	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

const managerDescription = "Manage the user's todo list. " +
	"Use action 'create' with text (and optional priority 1-5) to add a todo, " +
	"'read' to list all todos, " +
	"'update' with id to change text, priority or completion state, and " +
	"'delete' with id to remove a todo. " +
	"Always 'read' first when you need a todo's id."

// Register defines the todo_manager tool on the Genkit instance. The handler
// never returns an error: operation failures come back as structured text so
// the model can recover within the same turn.
func Register(g *genkit.Genkit, manager *Manager) ai.Tool {
	return genkit.DefineTool(g, ManagerToolName, managerDescription,
		WithEvents(ManagerToolName, func(ctx *ai.ToolContext, in Input) (string, error) {
			return manager.Invoke(ctx.Context, in).Display(), nil
		}))
}
