package models

// AgentRole identifies one of the fixed set of analysis contributors whose
// report text is stored per session. The set is closed: any other key is
// rejected at the store boundary with ErrUnknownAgentRole.
type AgentRole string

const (
	RoleMarket           AgentRole = "market"
	RoleNews             AgentRole = "news"
	RoleFundamentals     AgentRole = "fundamentals"
	RoleSocial           AgentRole = "social"
	RoleBull             AgentRole = "bull"
	RoleBear             AgentRole = "bear"
	RoleResearchManager  AgentRole = "research_manager"
	RoleTrader           AgentRole = "trader"
	RoleRisky            AgentRole = "risky"
	RoleNeutral          AgentRole = "neutral"
	RoleSafe             AgentRole = "safe"
	RolePortfolioManager AgentRole = "portfolio_manager"
)

// agentRoleColumns maps each role to its report column in the agent_reports
// table. Iteration order for callers that need a stable listing goes through
// AllAgentRoles instead.
var agentRoleColumns = map[AgentRole]string{
	RoleMarket:           "market_analyst_report",
	RoleNews:             "news_analyst_report",
	RoleFundamentals:     "fundamentals_analyst_report",
	RoleSocial:           "social_analyst_report",
	RoleBull:             "bull_researcher_report",
	RoleBear:             "bear_researcher_report",
	RoleResearchManager:  "research_manager_report",
	RoleTrader:           "trader_report",
	RoleRisky:            "risky_analyst_report",
	RoleNeutral:          "neutral_analyst_report",
	RoleSafe:             "safe_analyst_report",
	RolePortfolioManager: "portfolio_manager_report",
}

// AllAgentRoles lists every known role in pipeline order.
func AllAgentRoles() []AgentRole {
	return []AgentRole{
		RoleMarket,
		RoleNews,
		RoleFundamentals,
		RoleSocial,
		RoleBull,
		RoleBear,
		RoleResearchManager,
		RoleTrader,
		RoleRisky,
		RoleNeutral,
		RoleSafe,
		RolePortfolioManager,
	}
}

// Valid reports whether the role belongs to the closed set.
func (r AgentRole) Valid() bool {
	_, ok := agentRoleColumns[r]
	return ok
}

// Column returns the agent_reports column that stores this role's report.
// Callers must validate the role first; an unknown role returns "".
func (r AgentRole) Column() string {
	return agentRoleColumns[r]
}

// ParseAgentRole validates a raw role key from an API path or request body.
func ParseAgentRole(raw string) (AgentRole, error) {
	role := AgentRole(raw)
	if !role.Valid() {
		return "", ErrUnknownAgentRole
	}
	return role, nil
}
