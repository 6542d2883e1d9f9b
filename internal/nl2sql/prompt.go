package nl2sql

import (
	"fmt"
	"strings"
)

// promptTemplate arguments: 1 dialect, 2 schema, 3 question.
const promptTemplate = `You are an expert SQL developer. Convert the natural language question below into one raw %[1]s query.

These are the relevant tables, with their schemas and a few example rows:

%[2]s

User question: %[3]s

Guidelines:
- Table references: use table names exactly as they appear in the schema, enclosed in double quotes, e.g. "Player Per Game". Table names are case sensitive. Do not add database or schema prefixes such as nba. or main.
- Joins: join as few tables as possible. Join columns must have the same data type. Use the schemas to work out how the tables relate.
- Aggregations: every non-aggregated column in the SELECT list must appear in the GROUP BY clause.
- Syntax: return syntactically and semantically correct SQL. Use AS to alias columns and tables where it helps. Always wrap subqueries and UNION queries in parentheses.
- Columns: use ONLY the column names listed in the schemas, and only on the table they belong to.
- Filters: keep the number of returned rows small with WHERE, HAVING and aggregate functions.
- Window functions: to filter on RANK, ROW_NUMBER and similar, use a common table expression or a subquery. Never use QUALIFY.

Data rules:
1. Assume the user wants per game stats unless they say otherwise.
   Example: "What is the highest scoring season by a player?" means highest points per game.
2. If the user does not say how many results they want, return the top 10.
   Example: "What are the highest rebounding seasons ever?" returns the top 10 rebounding seasons.
3. Return all relevant data, even if it was not asked for directly.
   Example: "What is the highest assists season ever?" returns the player, the season and the assists.
4. When evaluating seasons of a player who played for several teams, use only the combined season row (team = '2TM').
5. Write exactly ONE statement.
6. Unless stated otherwise, questions about the best seasons for a stat only consider players with at least 50 games.
7. League averages are the sum of the team totals for the season divided by the total games played by all teams.
   A player's career average is the sum of their season totals divided by their games played.
   An average over a time period is the sum of the game totals in that period divided by the number of games.
   Never average percentages such as field goal or three-point percentage: sum the raw makes and attempts (fg, fga, x3p, x3pa) and compute the percentage from the totals.
8. When using the "Player Individual Game Stats" table for a time period, exclude games where minutes played is null so missed games do not count toward averages.

Think step by step about the schemas, the question and the rules above.

Return ONLY the single raw SQL query.`

var dialectNames = map[string]string{
	"sqlite":   "SQLite",
	"duckdb":   "DuckDB",
	"postgres": "PostgreSQL",
}

// BuildPrompt fills the synthesis template.
func BuildPrompt(dialect, schema, question string) string {
	name, ok := dialectNames[strings.ToLower(strings.TrimSpace(dialect))]
	if !ok {
		name = "SQL"
	}
	return fmt.Sprintf(promptTemplate, name, strings.TrimSpace(schema), strings.TrimSpace(question))
}
