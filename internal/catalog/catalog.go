package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownTable = errors.New("catalog: unknown table")

// TableDescriptor is the text a table is embedded from.
type TableDescriptor struct {
	Name        string `json:"name"`
	Group       string `json:"group"`
	Description string `json:"description"`
}

const (
	GroupPlayer        = "player"
	GroupPlayerPace    = "player_normalized"
	GroupPlayerProfile = "player_info"
	GroupTeam          = "team"
	GroupOpponent      = "opponent"
	GroupMisc          = "misc"
)

var descriptors = []TableDescriptor{
	{
		Name:        "Player Per Game",
		Group:       GroupPlayer,
		Description: "The primary table for individual player performance, containing per-game averages for every full season. Use this for questions about points per game (pts_per_game), rebounds, assists, steals, blocks, turnovers, and shooting percentages like field goal percent (fg_percent) and three-point percentage (x3p_percent).",
	},
	{
		Name:        "Player Totals",
		Group:       GroupPlayer,
		Description: "Contains the cumulative season totals for individual players across a full season. Use this for questions about total points (pts), total rebounds (trb), total assists (ast), and other cumulative stats over a full season, not averages.",
	},
	{
		Name:        "Player Shooting",
		Group:       GroupPlayer,
		Description: "Contains highly detailed individual player shooting data across a full season. Use this for complex questions about a player's shooting effectiveness from different ranges (e.g., 0-3 feet, 3-10 feet, corner threes), the percentage of shots that were assisted, number of dunks, and career-highs for specific shooting stats.",
	},
	{
		Name:        "Advanced",
		Group:       GroupPlayer,
		Description: "Contains advanced  statistics for individual players for each full season. Use this for deep statistical analysis involving metrics like Player Efficiency Rating (per), True Shooting Percentage (ts_percent), Win Shares (ows, dws, ws), Box Plus/Minus (bpm), and Value Over Replacement Player (vorp).",
	},
	{
		Name:        "Player Individual Game Stats",
		Group:       GroupPlayer,
		Description: "Contains player statistics for individual games. Use this for questions that require looking at unique game box score stats like 'What's the most points Kobe Bryant scored in 2006?' This is also necessary for looking at stats over a specific time period (e. g. LeBron James stats in January 2014).",
	},
	{
		Name:        "Per 100 Poss",
		Group:       GroupPlayerPace,
		Description: "Contains player statistics normalized per 100 team possessions by season. This is useful for comparing players' production in a pace-adjusted manner, removing the effect of team speed on their stats.",
	},
	{
		Name:        "Per 36 Minutes",
		Group:       GroupPlayerPace,
		Description: "Contains player statistics normalized to a per-36-minute basis by season. This is useful for comparing the per-minute production of players who have different roles or playing times (e.g., a starter vs. a bench player).",
	},
	{
		Name:        "Player Career Info",
		Group:       GroupPlayerProfile,
		Description: "Contains biographical and high-level career data for individual players. Use this to find a player's height (ht_in_in), weight (wt), birth date, college, and Hall of Fame (hof) status. This table is essential for linking a player's name to their unique player_id.",
	},
	{
		Name:        "Player Award Shares",
		Group:       GroupPlayerProfile,
		Description: "Details the results of voting for major individual awards (like MVP, DPOY) each season. Use this to find who won an award (winner), who received votes, and how close the voting was (pts_won, pts_max, share).",
	},
	{
		Name:        "All-Star Selections",
		Group:       GroupPlayerProfile,
		Description: "A simple log of every player selected for an All-Star game in a given season, including the team they represented.",
	},
	{
		Name:        "End of Season Teams",
		Group:       GroupPlayerProfile,
		Description: "Lists the players who were selected to honorary end-of-season teams, such as All-NBA, All-Defensive, and All-Rookie teams for each season.",
	},
	{
		Name:        "End of Season Teams (Voting)",
		Group:       GroupPlayerProfile,
		Description: "Provides the detailed voting results for the honorary end-of-season teams (All-NBA, etc.), showing the points and vote share each player received.",
	},
	{
		Name:        "Team Summaries",
		Group:       GroupTeam,
		Description: "Contains a high-level summary of each team's performance for a given season. The best table for finding a team's record (wins 'w', losses 'l'), offensive rating (o_rtg), defensive rating (d_rtg), pace, and strength of schedule (sos).",
	},
	{
		Name:        "Team Stats Per Game",
		Group:       GroupTeam,
		Description: "Contains team-level statistics averaged per game for a season, such as points per game, rebounds per game, and assists per game for the entire team.",
	},
	{
		Name:        "Team Totals",
		Group:       GroupTeam,
		Description: "Contains the total cumulative statistics for each team over an entire season. Useful for questions about total points, field goals made, etc., for the whole team.",
	},
	{
		Name:        "Team Stats Per 100 Poss",
		Group:       GroupTeam,
		Description: "Contains team-level statistics normalized per 100 possessions. Ideal for comparing team performance while adjusting for pace.",
	},
	{
		Name:        "Opponent Stats Per Game",
		Group:       GroupOpponent,
		Description: "Shows the average statistics that a team's OPPONENTS recorded against them on a per-game basis. Use this to answer questions about a team's defense (e.g., 'which team allowed the fewest points per game?').",
	},
	{
		Name:        "Opponent Totals",
		Group:       GroupOpponent,
		Description: "Shows the total cumulative statistics that a team's OPPONENTS recorded against them over a full season.",
	},
	{
		Name:        "Opponent Stats Per 100 Poss",
		Group:       GroupOpponent,
		Description: "Opponent statistics normalized per 100 possessions, useful for analyzing a team's defensive performance adjusted for pace.",
	},
	{
		Name:        "Draft Pick History",
		Group:       GroupMisc,
		Description: "Contains historical NBA draft data from every season. Use this to find where a player was drafted (overall_pick, round), by which team, and from what college.",
	},
	{
		Name:        "Player Play By Play",
		Group:       GroupMisc,
		Description: "Contains niche statistics derived from play-by-play logs, such as a player's on-court plus-minus per 100 possessions and the percentage of minutes they played at each position (pg_percent, c_percent).",
	},
	{
		Name:        "Player Season Info",
		Group:       GroupMisc,
		Description: "A simple utility table that links a player_id to their team, position, and years of experience for a specific season.",
	},
	{
		Name:        "Team Abbrev",
		Group:       GroupMisc,
		Description: "A utility table that maps a team's full name to its abbreviation for a given season.",
	},
}

var byName = func() map[string]int {
	index := make(map[string]int, len(descriptors))
	for i, d := range descriptors {
		index[d.Name] = i
	}
	return index
}()

// Descriptors returns a copy of the catalog in its canonical order.
func Descriptors() []TableDescriptor {
	out := make([]TableDescriptor, len(descriptors))
	copy(out, descriptors)
	return out
}

func Names() []string {
	out := make([]string, len(descriptors))
	for i, d := range descriptors {
		out[i] = d.Name
	}
	return out
}

func Lookup(name string) (TableDescriptor, error) {
	i, ok := byName[name]
	if !ok {
		return TableDescriptor{}, fmt.Errorf("%w: %q", ErrUnknownTable, name)
	}
	return descriptors[i], nil
}

func Known(name string) bool {
	_, ok := byName[name]
	return ok
}

// ContentHash fingerprints the descriptor set. Snapshots record it so a
// snapshot built from older descriptions can be detected.
func ContentHash() string {
	return HashDescriptors(descriptors)
}

func HashDescriptors(set []TableDescriptor) string {
	h := sha256.New()
	for _, d := range set {
		h.Write([]byte(d.Name))
		h.Write([]byte{0})
		h.Write([]byte(strings.TrimSpace(d.Description)))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
