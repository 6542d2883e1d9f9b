// Package agent describes the get_nba_stats tool to external agent hosts.
package agent

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	AgentName        = "nba_stats_agent"
	AgentDescription = "An assistant for NBA stats that answers questions by querying a SQL database of NBA stats data."
	ToolName         = "get_nba_stats"
	ToolDescription  = "Query the NBA stats database. Returns the rows of a SQL query that answers the question, " +
		"\"No results found.\" when nothing matches, or a short error message."
	QuestionParameter = "question"

	Greeting = "You are looking live at the most pivotal, the most disruptive force in basketball analysis today. " +
		"I am NBAi, and if it has to do with stats, from box scores to advanced analytics, you better believe I've got your answer."
)

const instructionsTemplate = `
You are an assistant for NBA stats that answers questions, simple or complex, with the tools at your disposal.

Before answering the user's first question, introduce yourself with this greeting:
"%[1]s"

Tone: talk like a sports talking head who knows the game and likes a joke. Keep answers fun, engaging and dramatic, but never misstate a stat.

Tools:

%[2]s(%[3]s: string) -> string
- Queries the NBA stats database and returns the result of a SQL query that answers the question.
- Pass the user's exact question, with typos corrected.

Normal workflow, e.g. "What is the highest scoring season by a player?"
1. Receive a natural language question from the user.
2. Call %[2]s to generate and run a SQL query that answers it.
3. Interpret the result and present it readably. Return a table whenever possible.

Complex workflow, when the user asks you to argue a position, e.g. "Explain why Steph Curry is better than Kobe Bryant."
1. Deconstruct the request: identify the entities being compared and the nature of the claim.
2. Brainstorm the metrics that matter. For a "who is better" debate consider:
   * Scoring: points per game, career totals, true shooting and effective field goal percentage.
   * Playmaking: assists per game.
   * Defense: steals, blocks, defensive win shares.
   * Advanced: PER, VORP, box plus/minus.
   * Accolades and winning: MVP awards, championships, All-NBA selections.
3. Gather evidence by calling %[2]s several times with targeted questions, for example:
   * "What is Stephen Curry's career true shooting percentage?"
   * "How many MVP awards did Kobe Bryant win?"
   * "Compare the career VORP for Stephen Curry and Kobe Bryant."
4. Once the evidence is in, build the argument from it. Leaning on the numbers that favor your side is fine.

Only return the final answer to the user.
`

// Instructions returns the persona instructions for a host running the
// conversational loop around get_nba_stats.
func Instructions() string {
	return strings.TrimSpace(fmt.Sprintf(instructionsTemplate, Greeting, ToolName, QuestionParameter))
}

type Parameters struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required"`
}

type Property struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

// FunctionDeclaration follows the function-calling shape shared by the
// Gemini and OpenAI tool APIs.
type FunctionDeclaration struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Parameters  Parameters `json:"parameters"`
}

type Manifest struct {
	Name         string                `json:"name"`
	Description  string                `json:"description"`
	Instructions string                `json:"instructions"`
	Tools        []FunctionDeclaration `json:"tools"`
}

func StatsTool() FunctionDeclaration {
	return FunctionDeclaration{
		Name:        ToolName,
		Description: ToolDescription,
		Parameters: Parameters{
			Type: "object",
			Properties: map[string]Property{
				QuestionParameter: {
					Type:        "string",
					Description: "The user's question about NBA stats, verbatim with typos corrected.",
				},
			},
			Required: []string{QuestionParameter},
		},
	}
}

func NewManifest() Manifest {
	return Manifest{
		Name:         AgentName,
		Description:  AgentDescription,
		Instructions: Instructions(),
		Tools:        []FunctionDeclaration{StatsTool()},
	}
}

// ParseCall extracts the question from a tool call's JSON arguments.
func ParseCall(arguments []byte) (string, error) {
	var args map[string]any
	if err := json.Unmarshal(arguments, &args); err != nil {
		return "", fmt.Errorf("decode %s arguments: %w", ToolName, err)
	}
	raw, ok := args[QuestionParameter]
	if !ok {
		return "", fmt.Errorf("%s arguments missing %q", ToolName, QuestionParameter)
	}
	question, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%s argument %q must be a string", ToolName, QuestionParameter)
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return "", fmt.Errorf("%s argument %q is empty", ToolName, QuestionParameter)
	}
	return question, nil
}
